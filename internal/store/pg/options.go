// Package pg implementa store.OptionStore sobre PostgreSQL (pgxpool).
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dropDatabas3/trustedlogin/internal/observability/logger"
	"github.com/dropDatabas3/trustedlogin/internal/store"
	"github.com/dropDatabas3/trustedlogin/migrations/postgres"
)

// Pool es la parte de *pgxpool.Pool que usa el store.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

var _ Pool = (*pgxpool.Pool)(nil)

// Options es el OptionStore persistido en la tabla trustedlogin_options.
type Options struct{ pool Pool }

var _ store.OptionStore = (*Options)(nil)

// Config tuning opcional del pool.
type Config struct {
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
}

// New abre el pool. El ping inicial es no bloqueante: si la base no responde se
// loguea y la app arranca igual.
func New(ctx context.Context, dsn string, cfg Config) (*Options, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	} else {
		pcfg.MaxConns = 5
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.ConnMaxLifetime
		pcfg.MaxConnIdleTime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	log := logger.From(ctx).With(logger.Component("store.pg"))
	if err := pool.Ping(ctx); err != nil {
		log.Warn("pg_pool_startup_ping_failed", logger.Err(err))
	} else {
		log.Info("pg_pool_ready", zap.Int32("max_conns", pcfg.MaxConns))
	}
	return &Options{pool: pool}, nil
}

// NewWithPool usa un pool ya abierto.
func NewWithPool(p Pool) *Options { return &Options{pool: p} }

// Migrate aplica las migraciones embebidas en orden. Son idempotentes.
func (o *Options) Migrate(ctx context.Context) error {
	files, err := postgres.Files()
	if err != nil {
		return err
	}
	for _, f := range files {
		sql, err := postgres.FS.ReadFile(f)
		if err != nil {
			return err
		}
		if _, err := o.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("pg: migrate %s: %w", f, err)
		}
	}
	return nil
}

func (o *Options) Ping(ctx context.Context) error { return o.pool.Ping(ctx) }

// Close cierra el pool (idempotente).
func (o *Options) Close() {
	if o != nil && o.pool != nil {
		o.pool.Close()
	}
}

const (
	qGetOption = `SELECT value FROM trustedlogin_options WHERE name = $1`
	qSetOption = `
INSERT INTO trustedlogin_options (name, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	qDeleteOption = `DELETE FROM trustedlogin_options WHERE name = $1`
)

func (o *Options) Get(ctx context.Context, name string) (string, error) {
	var v string
	if err := o.pool.QueryRow(ctx, qGetOption, name).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", store.ErrNotFound
		}
		return "", err
	}
	return v, nil
}

func (o *Options) Set(ctx context.Context, name, value string) error {
	_, err := o.pool.Exec(ctx, qSetOption, name, value)
	return err
}

func (o *Options) Delete(ctx context.Context, name string) error {
	_, err := o.pool.Exec(ctx, qDeleteOption, name)
	return err
}
