package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/utilitybot/bots/utility/domain"
	"github.com/m3rciful/utilitybot/bots/utility/migrations"
	"github.com/m3rciful/utilitybot/core/database"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: database.DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.RunMigrations(db, database.DriverSQLite, migrations.FS))
	return db
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newGateway(t *testing.T) (*Gateway, *clock) {
	c := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return New(newTestDB(t), WithClock(c.now)), c
}

func TestUpsertUserIsIdempotent(t *testing.T) {
	g, c := newGateway(t)
	ctx := context.Background()

	u, err := g.UpsertUser(ctx, 42, "Ann")
	require.NoError(t, err)
	require.Equal(t, int64(42), u.ID)
	require.Zero(t, u.TaskCount)
	joined := u.JoinedAt

	require.NoError(t, g.RecordTask(ctx, 42, domain.TaskQRGeneration, "hello"))

	c.t = c.t.Add(48 * time.Hour)
	u, err = g.UpsertUser(ctx, 42, "Ann B.")
	require.NoError(t, err)
	require.Equal(t, "Ann B.", u.DisplayName)
	require.Equal(t, int64(1), u.TaskCount, "counter survives repeat contact")
	require.True(t, joined.Equal(u.JoinedAt), "join time survives repeat contact")
}

func TestRecordTaskAndStats(t *testing.T) {
	g, _ := newGateway(t)
	ctx := context.Background()

	_, err := g.UpsertUser(ctx, 7, "Bob")
	require.NoError(t, err)
	require.NoError(t, g.RecordTask(ctx, 7, domain.TaskURLShortening, "https://example.com"))
	require.NoError(t, g.RecordTask(ctx, 7, domain.TaskQRGeneration, "hi"))

	st, err := g.GetStats(ctx, 7)
	require.NoError(t, err)
	want := domain.Stats{
		UserID:       7,
		TaskCount:    2,
		JoinedAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		HistoryCount: 2,
	}
	if diff := cmp.Diff(want, st, cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })); diff != "" {
		t.Fatalf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordTaskUnknownUserRollsBack(t *testing.T) {
	g, _ := newGateway(t)
	ctx := context.Background()

	require.ErrorIs(t, g.RecordTask(ctx, 99, domain.TaskQRGeneration, "x"), ErrNotFound)

	gs, err := g.GlobalStats(ctx)
	require.NoError(t, err)
	require.Zero(t, gs.Users)
	require.Empty(t, gs.ByKind)
}

func TestGetStatsUnknownUser(t *testing.T) {
	g, _ := newGateway(t)
	_, err := g.GetStats(context.Background(), 99)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAppendHistoryTruncatesInput(t *testing.T) {
	g, _ := newGateway(t)
	ctx := context.Background()

	_, err := g.UpsertUser(ctx, 1, "")
	require.NoError(t, err)
	long := strings.Repeat("ж", 150)
	require.NoError(t, g.AppendHistory(ctx, 1, domain.TaskQRGeneration, long))
	require.NoError(t, g.IncrementTaskCount(ctx, 1))

	entries, err := g.History(ctx, 1, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, strings.Repeat("ж", domain.HistoryInputLimit), entries[0].InputSnapshot)
	require.Equal(t, domain.TaskQRGeneration, entries[0].Kind)
}

func TestIncrementUnknownUser(t *testing.T) {
	g, _ := newGateway(t)
	require.ErrorIs(t, g.IncrementTaskCount(context.Background(), 5), ErrNotFound)
}

func TestGlobalStats(t *testing.T) {
	g, _ := newGateway(t)
	ctx := context.Background()

	for _, id := range []int64{1, 2, 3} {
		_, err := g.UpsertUser(ctx, id, "")
		require.NoError(t, err)
	}
	require.NoError(t, g.RecordTask(ctx, 1, domain.TaskQRGeneration, "a"))
	require.NoError(t, g.RecordTask(ctx, 2, domain.TaskQRGeneration, "b"))
	require.NoError(t, g.RecordTask(ctx, 2, domain.TaskURLShortening, "https://c"))

	gs, err := g.GlobalStats(ctx)
	require.NoError(t, err)
	want := domain.GlobalStats{
		Users: 3,
		Tasks: 3,
		ByKind: map[domain.TaskKind]int64{
			domain.TaskQRGeneration:  2,
			domain.TaskURLShortening: 1,
		},
	}
	if diff := cmp.Diff(want, gs); diff != "" {
		t.Fatalf("global stats mismatch (-want +got):\n%s", diff)
	}
	require.NoError(t, g.Ping(ctx))
}

func TestHistoryNewestFirst(t *testing.T) {
	g, c := newGateway(t)
	ctx := context.Background()

	_, err := g.UpsertUser(ctx, 3, "Cy")
	require.NoError(t, err)
	for _, in := range []string{"one", "two", "https://example.com/three"} {
		c.t = c.t.Add(time.Minute)
		kind := domain.TaskQRGeneration
		if strings.HasPrefix(in, "https://") {
			kind = domain.TaskURLShortening
		}
		require.NoError(t, g.RecordTask(ctx, 3, kind, in))
	}

	got, err := g.History(ctx, 3, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "https://example.com/three", got[0].InputSnapshot)
	require.Equal(t, domain.TaskURLShortening, got[0].Kind)
	require.Equal(t, "two", got[1].InputSnapshot)

	all, err := g.History(ctx, 3, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)

	none, err := g.History(ctx, 99, 5)
	require.NoError(t, err)
	require.Empty(t, none)
}
