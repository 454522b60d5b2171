package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jp-address-parser/app/config"
	"github.com/jp-address-parser/app/models"
	"github.com/jp-address-parser/app/services"
	"github.com/jp-address-parser/internal/csvio"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errFailedRecords makes the process exit 1 in --strict mode.
var errFailedRecords = errors.New("some records failed to parse")

type globalOpts struct {
	configPath string
	verbose    bool
}

func main() {
	opts := &globalOpts{}

	rootCmd := &cobra.Command{
		Use:           "jpaddr",
		Short:         "Japanese address parser",
		Long:          `Splits free-form Japanese addresses into postal code, prefecture, city, ward, town, block and building.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "parser config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(createParseCmd(opts))
	rootCmd.AddCommand(createBatchCmd(opts))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errFailedRecords) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// openPipeline loads the config and builds the parser. The caller must Close
// the pipeline and Sync the logger.
func openPipeline(ctx context.Context, opts *globalOpts) (*services.Pipeline, *config.ParserCfg, *zap.Logger, error) {
	logger, err := newLogger(opts.verbose)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	pipeline, err := services.BuildPipeline(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return pipeline, cfg, logger, nil
}

func createParseCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <address...>",
		Short: "Parse addresses given as arguments and print JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, _, logger, err := openPipeline(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer pipeline.Close()

			return runParse(cmd.Context(), pipeline.Parser, args, cmd.OutOrStdout())
		},
	}
}

type parseOutput struct {
	Input  string                `json:"input"`
	Result *models.AddressRecord `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

func runParse(ctx context.Context, p services.Parser, args []string, out io.Writer) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	failed := false
	for _, raw := range args {
		o := parseOutput{Input: raw}
		record, err := p.Parse(ctx, raw)
		if err != nil {
			o.Error = err.Error()
			failed = true
		} else {
			o.Result = record
		}
		if err := enc.Encode(o); err != nil {
			return err
		}
	}
	if failed {
		return errFailedRecords
	}
	return nil
}

type batchOpts struct {
	in      string
	out     string
	workers int
	null    string
	strict  bool
}

func createBatchCmd(opts *globalOpts) *cobra.Command {
	bo := &batchOpts{}
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Parse a CSV of addresses into a CSV of records",
		Long: `Reads the first column of --in (no header) and writes one row per address to --out.
A summary is printed on stderr. Use "-" for stdin/stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, cfg, logger, err := openPipeline(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer pipeline.Close()

			if !cmd.Flags().Changed("workers") {
				bo.workers = cfg.Workers
			}
			return runBatch(cmd.Context(), pipeline.Parser, bo, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
		},
	}
	cmd.Flags().StringVarP(&bo.in, "in", "i", "-", "input CSV")
	cmd.Flags().StringVarP(&bo.out, "out", "o", "-", "output CSV")
	cmd.Flags().IntVarP(&bo.workers, "workers", "w", 0, "parallel workers (0 = number of CPUs)")
	cmd.Flags().StringVar(&bo.null, "null", "", "marker written for absent fields")
	cmd.Flags().BoolVar(&bo.strict, "strict", false, "exit 1 when any record fails")
	return cmd
}

func runBatch(ctx context.Context, p services.Parser, bo *batchOpts, stdin io.Reader, stdout, stderr io.Writer, logger *zap.Logger) error {
	in := stdin
	if bo.in != "-" {
		f, err := os.Open(bo.in)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	lines, err := csvio.ReadAddresses(in)
	if err != nil {
		return err
	}

	started := time.Now()
	results := p.ParseBatch(ctx, lines, bo.workers)
	if err := ctx.Err(); err != nil {
		return err
	}

	out := stdout
	if bo.out != "-" {
		f, err := os.Create(bo.out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := csvio.NewWriter(out, bo.null).WriteAll(results); err != nil {
		return err
	}

	summary := models.Summarize(results)
	logger.Info("batch complete",
		zap.Int("total", summary.Total),
		zap.Int("failed", summary.Failed),
		zap.Duration("elapsed", time.Since(started)))

	enc := json.NewEncoder(stderr)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(summary); err != nil {
		return err
	}

	if bo.strict && summary.Failed > 0 {
		return errFailedRecords
	}
	return nil
}
