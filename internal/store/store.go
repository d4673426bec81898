// Package store persists forwarded live events to PostgreSQL. The archive
// is opt-in: without a database block in the config the gateway runs
// entirely stateless.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolConfig holds database connection configuration.
type PoolConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	PoolSize int    `yaml:"pool_size"`
	SSLMode  string `yaml:"ssl_mode"` // disable, require, verify-ca, verify-full
}

// ConnectionString returns a PostgreSQL connection string.
func (c PoolConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// Event is one archived live event row.
type Event struct {
	ReceivedAt time.Time
	Vendor     string
	EventType  string
	Payload    []byte
}

// Archive wraps the connection pool for the live_events table.
type Archive struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// Open connects, pings, and returns an Archive.
func Open(ctx context.Context, cfg PoolConfig, log *slog.Logger) (*Archive, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("couldn't parse pool config: %w", err)
	}
	if cfg.PoolSize > 0 {
		poolCfg.MaxConns = int32(cfg.PoolSize)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("couldn't create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("couldn't ping database: %w", err)
	}

	return &Archive{pool: pool, log: log.With("component", "archive")}, nil
}

func (a *Archive) Close() {
	a.pool.Close()
}

// InsertEvents writes a batch of events in one round trip. Returns the
// number of rows inserted.
func (a *Archive) InsertEvents(ctx context.Context, events []Event) (int64, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(
			`INSERT INTO live_events (time, vendor, event_type, payload) VALUES ($1, $2, $3, $4)`,
			ev.ReceivedAt, ev.Vendor, ev.EventType, ev.Payload,
		)
	}

	results := a.pool.SendBatch(ctx, batch)
	defer results.Close()

	var inserted int64
	for range events {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("couldn't insert event batch: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}
