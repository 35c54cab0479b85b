package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDB wraps a pgx connection pool with helper methods for direct SQL
// access — no ORM layer between the batch/mirror-sync code and the wire.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// PoolOptions tunes the pgxpool beyond its defaults. Zero values fall back
// to pgxpool's own defaults.
type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
}

// NewPostgresDB creates a PostgreSQL connection pool using pgx, applying
// the given pool sizing (5 steady-state connections plus a 5-connection
// overflow is the standard sizing for this service's sync-engine load) and
// a periodic health check standing in for pool_pre_ping.
//
//	db, err := NewPostgresDB(ctx, dsn, PoolOptions{MaxConns: 10, MinConns: 5, MaxConnIdleTime: 300 * time.Second})
func NewPostgresDB(ctx context.Context, connString string, opts PoolOptions) (*PostgresDB, error) {
	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if opts.MaxConns > 0 {
		poolCfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		poolCfg.MinConns = opts.MinConns
	}
	if opts.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	poolCfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the database connection pool.
func (db *PostgresDB) Close() {
	db.pool.Close()
}

// Exec executes a SQL statement.
// Returns error if execution fails.
func (db *PostgresDB) Exec(ctx context.Context, sql string, args ...interface{}) error {
	_, err := db.pool.Exec(ctx, sql, args...)
	return err
}

// Query executes a query that returns rows.
// Caller must call rows.Close() when done.
func (db *PostgresDB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return db.pool.Query(ctx, sql, args...)
}

// QueryRow executes a query that returns a single row.
// Row scanning should be done immediately as the connection is released after scanning.
func (db *PostgresDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return db.pool.QueryRow(ctx, sql, args...)
}

// Pool returns the underlying connection pool for advanced operations.
// Use this for transactions, batch operations, or custom connection management.
func (db *PostgresDB) Pool() *pgxpool.Pool {
	return db.pool
}
