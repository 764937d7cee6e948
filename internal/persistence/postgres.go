package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/campusnet/academic-platform/internal/config"
)

const (
	connectAttempts = 5
	connectBackoff  = 500 * time.Millisecond
)

// Postgres holds the user directory pool. A zero Postgres is disabled and the service falls
// back to its in-memory directory.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects, retrying while the database comes up, and applies migrations when
// configured. An empty DSN yields a disabled handle.
func OpenPostgres(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	if cfg.DSN == "" {
		logger.Warn("POSTGRES_DSN not provided; using the in-memory user directory")
		return &Postgres{}, nil
	}

	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pingWithRetry(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("connected to postgres", zap.String("host", poolCfg.ConnConfig.Host))

	if cfg.RunMigrations {
		if err := RunMigrations(ctx, pool, cfg.MigrationsDir, logger); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return &Postgres{pool: pool}, nil
}

func poolConfig(cfg config.PostgresConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse POSTGRES_DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleSec) * time.Second
	}
	if cfg.ConnMaxLifeSec > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.ConnMaxLifeSec) * time.Second
	}
	return poolCfg, nil
}

func pingWithRetry(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	wait := connectBackoff
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if err = pool.Ping(ctx); err == nil {
			return nil
		}
		logger.Warn("postgres not ready", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return fmt.Errorf("postgres unreachable after %d attempts: %w", connectAttempts, err)
}

// Pool returns the pgx pool, nil when disabled.
func (p *Postgres) Pool() *pgxpool.Pool {
	if p == nil {
		return nil
	}
	return p.pool
}

// Enabled reports whether a database is configured.
func (p *Postgres) Enabled() bool {
	return p.Pool() != nil
}

// Ping verifies database connectivity. A disabled handle reports healthy.
func (p *Postgres) Ping(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	return p.pool.Ping(ctx)
}

// Close releases pool resources.
func (p *Postgres) Close() {
	if p.Enabled() {
		p.pool.Close()
	}
}
