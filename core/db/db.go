package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a pgxpool.Pool used by the read-only SQL tool.
type DB struct {
	pool *pgxpool.Pool
}

type Config struct {
	// Must point at read-only credentials; queries come from the model.
	DSN string

	MaxConns int32
}

// New creates a new DB instance with the given configuration.
func New(ctx context.Context, cfg Config) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	} else {
		poolCfg.MaxConns = 4
	}
	poolCfg.MinConns = 0

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

// WithReadOnlyTx runs fn inside a READ ONLY transaction that is always rolled back.
func (db *DB) WithReadOnlyTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	return fn(tx)
}

// QueryJSON wraps a SELECT statement so Postgres aggregates its rows into
// {"data": [...]} and returns the raw JSON.
func (db *DB) QueryJSON(ctx context.Context, query string) ([]byte, error) {
	var out []byte
	err := db.WithReadOnlyTx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, WrapJSONQuery(query)).Scan(&out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WrapJSONQuery builds the aggregate statement used by QueryJSON.
func WrapJSONQuery(query string) string {
	query = strings.TrimRight(strings.TrimSpace(query), "; \n\t")
	return fmt.Sprintf("select jsonb_build_object('data', jsonb_agg(t)) from (%s) t", query)
}
