// Package storage persists users, their task counters and task history.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/utilitybot/bots/utility/domain"
	"github.com/m3rciful/utilitybot/core/logger"
)

const component = "storage"

// ErrNotFound is returned when the user has never been seen.
var ErrNotFound = errors.New("storage: not found")

// Gateway is the bot's only way to the database. Safe for concurrent use.
type Gateway struct {
	db  *sqlx.DB
	now func() time.Time
}

// Option tweaks a Gateway.
type Option func(*Gateway)

// WithClock overrides the time source used for joined_at and created_at.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// New wraps an open database. Placeholders are rebound for the driver sqlx was opened with.
func New(db *sqlx.DB, opts ...Option) *Gateway {
	g := &Gateway{db: db, now: time.Now}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Gateway) timestamp() time.Time {
	return g.now().UTC().Truncate(time.Microsecond)
}

// UpsertUser creates the user on first contact. A repeat call only refreshes the
// display name; the counter and join time stay as they are.
func (g *Gateway) UpsertUser(ctx context.Context, id int64, displayName string) (domain.User, error) {
	start := time.Now()
	_, err := g.db.ExecContext(ctx, g.db.Rebind(`
		INSERT INTO users (id, display_name, task_count, joined_at)
		VALUES (?, ?, 0, ?)
		ON CONFLICT (id) DO UPDATE SET display_name = excluded.display_name`),
		id, displayName, g.timestamp(),
	)
	if err != nil {
		g.logFail(ctx, "user.upsert", start, err)
		return domain.User{}, fmt.Errorf("upsert user %d: %w", id, err)
	}
	u, err := g.user(ctx, g.db, id)
	if err != nil {
		return domain.User{}, err
	}
	logger.Debug(ctx, component, "user.upsert",
		slog.String("status", "ok"),
		slog.Int64("task_count", u.TaskCount),
		slog.Duration("duration", logger.Took(start)),
	)
	return u, nil
}

// IncrementTaskCount adds one completed task to the user's counter.
func (g *Gateway) IncrementTaskCount(ctx context.Context, userID int64) error {
	return g.increment(ctx, g.db, userID)
}

// AppendHistory stores a task with its input cut to domain.HistoryInputLimit runes.
func (g *Gateway) AppendHistory(ctx context.Context, userID int64, kind domain.TaskKind, input string) error {
	return g.appendHistory(ctx, g.db, userID, kind, input)
}

// RecordTask increments the counter and appends history atomically.
func (g *Gateway) RecordTask(ctx context.Context, userID int64, kind domain.TaskKind, input string) (err error) {
	start := time.Now()
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		g.logFail(ctx, "task.record", start, err)
		return fmt.Errorf("record task: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = g.increment(ctx, tx, userID); err != nil {
		return err
	}
	if err = g.appendHistory(ctx, tx, userID, kind, input); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		g.logFail(ctx, "task.record", start, err)
		return fmt.Errorf("record task: commit: %w", err)
	}
	logger.Debug(ctx, component, "task.record",
		slog.String("status", "ok"),
		slog.String("kind", string(kind)),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// GetStats returns the user's counters or ErrNotFound.
func (g *Gateway) GetStats(ctx context.Context, userID int64) (domain.Stats, error) {
	u, err := g.user(ctx, g.db, userID)
	if err != nil {
		return domain.Stats{}, err
	}
	var history int64
	if err := g.db.GetContext(ctx, &history,
		g.db.Rebind(`SELECT COUNT(*) FROM task_history WHERE user_id = ?`), userID); err != nil {
		return domain.Stats{}, fmt.Errorf("count history for %d: %w", userID, err)
	}
	return domain.Stats{
		UserID:       u.ID,
		TaskCount:    u.TaskCount,
		JoinedAt:     u.JoinedAt,
		HistoryCount: history,
	}, nil
}

// GlobalStats aggregates over every user.
func (g *Gateway) GlobalStats(ctx context.Context) (domain.GlobalStats, error) {
	out := domain.GlobalStats{ByKind: map[domain.TaskKind]int64{}}
	var totals struct {
		Users int64 `db:"users"`
		Tasks int64 `db:"tasks"`
	}
	if err := g.db.GetContext(ctx, &totals,
		`SELECT COUNT(*) AS users, COALESCE(SUM(task_count), 0) AS tasks FROM users`); err != nil {
		return out, fmt.Errorf("global stats: %w", err)
	}
	out.Users, out.Tasks = totals.Users, totals.Tasks

	var rows []struct {
		Kind  domain.TaskKind `db:"kind"`
		Count int64           `db:"n"`
	}
	if err := g.db.SelectContext(ctx, &rows,
		`SELECT kind, COUNT(*) AS n FROM task_history GROUP BY kind`); err != nil {
		return out, fmt.Errorf("global stats by kind: %w", err)
	}
	for _, r := range rows {
		out.ByKind[r.Kind] = r.Count
	}
	return out, nil
}

// History lists the user's most recent tasks, newest first.
func (g *Gateway) History(ctx context.Context, userID int64, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []domain.HistoryEntry
	err := g.db.SelectContext(ctx, &out, g.db.Rebind(`
		SELECT id, user_id, kind, input_snapshot, created_at
		FROM task_history WHERE user_id = ?
		ORDER BY id DESC LIMIT ?`), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("history for %d: %w", userID, err)
	}
	return out, nil
}

// Ping reports whether the database answers.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.db.PingContext(ctx)
}

func (g *Gateway) user(ctx context.Context, q sqlx.QueryerContext, id int64) (domain.User, error) {
	var u domain.User
	err := sqlx.GetContext(ctx, q, &u, g.db.Rebind(
		`SELECT id, display_name, task_count, joined_at FROM users WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("load user %d: %w", id, err)
	}
	return u, nil
}

func (g *Gateway) increment(ctx context.Context, ex sqlx.ExecerContext, userID int64) error {
	res, err := ex.ExecContext(ctx, g.db.Rebind(
		`UPDATE users SET task_count = task_count + 1 WHERE id = ?`), userID)
	if err != nil {
		return fmt.Errorf("increment task count for %d: %w", userID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *Gateway) appendHistory(ctx context.Context, ex sqlx.ExecerContext, userID int64, kind domain.TaskKind, input string) error {
	_, err := ex.ExecContext(ctx, g.db.Rebind(`
		INSERT INTO task_history (user_id, kind, input_snapshot, created_at)
		VALUES (?, ?, ?, ?)`),
		userID, string(kind), domain.Truncate(input, domain.HistoryInputLimit, ""), g.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("append history for %d: %w", userID, err)
	}
	return nil
}

func (g *Gateway) logFail(ctx context.Context, event string, start time.Time, err error) {
	logger.Warn(ctx, component, event,
		slog.String("status", "fail"),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		slog.Duration("duration", logger.Took(start)),
	)
}
