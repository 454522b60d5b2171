package search

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jp-address-parser/app/models"
	"go.uber.org/zap"
)

const townsSchema = `
CREATE TABLE IF NOT EXISTS jp_towns (
	seq        BIGSERIAL,
	prefecture TEXT NOT NULL,
	city       TEXT NOT NULL,
	town       TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (prefecture, city, town)
);
CREATE INDEX IF NOT EXISTS jp_towns_seq_idx ON jp_towns (seq);
`

// PostgresSource reads gazetteer names from the jp_towns table. A city with no
// towns is stored as one row with an empty town. Names come back in import
// order.
type PostgresSource struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresSource opens a pool for dsn and pings it.
func NewPostgresSource(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresSource, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("search: open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("search: ping postgres: %w", err)
	}
	return NewPostgresSourceFromPool(pool, logger), nil
}

// NewPostgresSourceFromPool wraps an existing pool.
func NewPostgresSourceFromPool(pool *pgxpool.Pool, logger *zap.Logger) *PostgresSource {
	return &PostgresSource{db: pool, logger: logger}
}

// EnsureSchema creates the jp_towns table if it does not exist.
func (ps *PostgresSource) EnsureSchema(ctx context.Context) error {
	if _, err := ps.db.Exec(ctx, townsSchema); err != nil {
		return fmt.Errorf("search: create jp_towns: %w", err)
	}
	return nil
}

func (ps *PostgresSource) Prefectures(ctx context.Context) ([]string, error) {
	return ps.queryNames(ctx, `
		SELECT prefecture FROM jp_towns
		GROUP BY prefecture
		ORDER BY min(seq)`)
}

func (ps *PostgresSource) Cities(ctx context.Context, pref string) ([]string, error) {
	return ps.queryNames(ctx, `
		SELECT city FROM jp_towns
		WHERE prefecture = $1
		GROUP BY city
		ORDER BY min(seq)`, pref)
}

func (ps *PostgresSource) Towns(ctx context.Context, pref, city string) ([]string, error) {
	return ps.queryNames(ctx, `
		SELECT town FROM jp_towns
		WHERE prefecture = $1 AND city = $2 AND town <> ''
		ORDER BY seq`, pref, city)
}

func (ps *PostgresSource) queryNames(ctx context.Context, sql string, args ...any) ([]string, error) {
	rows, err := ps.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("search: query jp_towns: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("search: scan jp_towns: %w", err)
	}
	return names, nil
}

// ImportTowns bulk-loads rows with COPY. With replace set the table is
// truncated first, inside the same transaction.
func (ps *PostgresSource) ImportTowns(ctx context.Context, rows []models.GazetteerTown, replace bool) (int64, error) {
	tx, err := ps.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("search: begin import: %w", err)
	}
	defer tx.Rollback(ctx)

	if replace {
		if _, err := tx.Exec(ctx, `TRUNCATE jp_towns RESTART IDENTITY`); err != nil {
			return 0, fmt.Errorf("search: truncate jp_towns: %w", err)
		}
	}

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"jp_towns"},
		[]string{"prefecture", "city", "town"},
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			return []any{rows[i].Prefecture, rows[i].City, rows[i].Town}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("search: copy into jp_towns: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("search: commit import: %w", err)
	}
	ps.logger.Info("imported gazetteer rows", zap.Int64("rows", n), zap.Bool("replace", replace))
	return n, nil
}

// Close releases the pool.
func (ps *PostgresSource) Close() {
	ps.db.Close()
}
