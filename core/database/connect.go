package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/m3rciful/utilitybot/core/logger"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know; it uses ? placeholders.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

const (
	connectTimeout = 30 * time.Second
	retryInterval  = 2 * time.Second
)

// Connect opens the database, waits for it to answer pings and configures the pool.
func Connect(cfg Config) (*sqlx.DB, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	start := time.Now()
	db, err := sqlx.Open(cfg.Driver, cfg.DSN())
	if err == nil {
		err = waitForPing(ctx, db)
	}
	took := time.Since(start)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		logger.DB.Error("db connect failed",
			slog.String("event", "db.connect"),
			slog.String("driver", cfg.Driver),
			slog.String("db", cfg.Target()),
			slog.Duration("duration", took),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)

	logger.DB.Info("db connected",
		slog.String("event", "db.connect"),
		slog.String("driver", cfg.Driver),
		slog.String("db", cfg.Target()),
		slog.Int("pool_open", cfg.MaxConnections),
		slog.Duration("duration", took),
	)
	return db, nil
}

// waitForPing retries until the server answers or ctx expires; a freshly
// started postgres container usually needs a few seconds.
func waitForPing(ctx context.Context, db *sqlx.DB) error {
	for {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}
		timer := time.NewTimer(retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("timeout reached waiting for database: %w", err)
		case <-timer.C:
		}
	}
}
