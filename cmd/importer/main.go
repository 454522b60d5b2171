package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jp-address-parser/app/config"
	"github.com/jp-address-parser/app/models"
	"github.com/jp-address-parser/internal/csvio"
	"github.com/jp-address-parser/internal/gazetteer"
	"github.com/jp-address-parser/internal/search"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type importOpts struct {
	configPath string
	file       string
}

func main() {
	opts := &importOpts{}

	rootCmd := &cobra.Command{
		Use:          "importer",
		Short:        "Load gazetteer rows into a search backend or export the bundled gazetteer",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "parser config file (YAML)")
	rootCmd.PersistentFlags().StringVarP(&opts.file, "file", "f", "", "gazetteer CSV (prefecture,city,town); the bundled gazetteer when empty")

	rootCmd.AddCommand(createPostgresCmd(opts))
	rootCmd.AddCommand(createMeiliCmd(opts))
	rootCmd.AddCommand(createExportCmd(opts))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadRows reads the CSV named by file, or flattens the bundled gazetteer.
func loadRows(file string) ([]models.GazetteerTown, error) {
	if file == "" {
		src, err := gazetteer.NewEmbeddedSource()
		if err != nil {
			return nil, err
		}
		return src.Rows(), nil
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()
	return csvio.ReadTowns(f)
}

func setup(opts *importOpts) (*config.ParserCfg, []models.GazetteerTown, *zap.Logger, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	rows, err := loadRows(opts.file)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Info("gazetteer rows loaded", zap.Int("rows", len(rows)), zap.String("file", opts.file))
	return cfg, rows, logger, nil
}

func createPostgresCmd(opts *importOpts) *cobra.Command {
	var (
		dsn     string
		replace bool
	)
	cmd := &cobra.Command{
		Use:   "postgres",
		Short: "COPY gazetteer rows into the jp_towns table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, rows, logger, err := setup(opts)
			if err != nil {
				return err
			}
			defer logger.Sync()
			if dsn == "" {
				dsn = cfg.Gazetteer.PostgresDSN
			}
			if dsn == "" {
				return fmt.Errorf("no postgres dsn: pass --dsn or set gazetteer.postgres_dsn")
			}

			ctx := cmd.Context()
			pg, err := search.NewPostgresSource(ctx, dsn, logger)
			if err != nil {
				return err
			}
			defer pg.Close()
			if err := pg.EnsureSchema(ctx); err != nil {
				return err
			}
			n, err := pg.ImportTowns(ctx, rows, replace)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "postgres connection string")
	cmd.Flags().BoolVar(&replace, "replace", false, "truncate jp_towns before loading")
	return cmd
}

func createMeiliCmd(opts *importOpts) *cobra.Command {
	var host, key, index string
	cmd := &cobra.Command{
		Use:   "meilisearch",
		Short: "Configure the index and upsert gazetteer documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, rows, logger, err := setup(opts)
			if err != nil {
				return err
			}
			defer logger.Sync()

			sc := search.SearchConfig{
				Host:      firstNonEmpty(host, cfg.Gazetteer.MeiliHost),
				APIKey:    firstNonEmpty(key, cfg.Gazetteer.MeiliKey),
				IndexName: firstNonEmpty(index, cfg.Gazetteer.MeiliIndex),
				Timeout:   cfg.RequestTimeout(),
			}
			ms, err := search.NewMeiliSource(sc, logger)
			if err != nil {
				return err
			}
			if err := ms.BuildIndexes(); err != nil {
				return err
			}
			n, err := ms.SeedTowns(rows)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %d documents into %s\n", n, sc.IndexName)
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "meilisearch host")
	cmd.Flags().StringVar(&key, "key", "", "meilisearch API key")
	cmd.Flags().StringVar(&index, "index", "", "index name")
	return cmd
}

func createExportCmd(opts *importOpts) *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the gazetteer as CSV or YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return export(opts.file, format, w)
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "csv or yaml")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file")
	return cmd
}

func export(file, format string, w io.Writer) error {
	rows, err := loadRows(file)
	if err != nil {
		return err
	}
	switch format {
	case "csv":
		return csvio.WriteTowns(w, rows)
	case "yaml":
		src := gazetteer.NewEmbeddedSourceFromTowns("export", rows)
		return src.WriteYAML(w)
	}
	return fmt.Errorf("unknown format %q", format)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
