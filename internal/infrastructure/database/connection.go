package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// DB is a pgx pool exposed through database/sql so repositories can use sqlx.
type DB struct {
	*sqlx.DB
	pool *pgxpool.Pool
}

// Open creates a pgx connection pool for PostgreSQL and checks it answers.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	cfg := pool.Config().ConnConfig
	logger.Info("postgres connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
		zap.Int32("max_conns", pool.Config().MaxConns))

	return &DB{
		DB:   sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx"),
		pool: pool,
	}, nil
}

// Close releases the sql handle and then the pool.
func (d *DB) Close() error {
	err := d.DB.Close()
	d.pool.Close()
	return err
}
