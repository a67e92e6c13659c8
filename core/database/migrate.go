package database

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/utilitybot/core/logger"
)

// ErrDirty means an earlier migration failed halfway and needs manual repair
// (fix the schema, then force the version with the migrate CLI).
var ErrDirty = errors.New("database is in a dirty migration state")

// RunMigrations applies all up migrations found under the driver named
// directory of migrations (for example "sqlite/0001_init.up.sql").
func RunMigrations(db *sqlx.DB, driver string, migrations fs.FS) error {
	if db == nil {
		return errors.New("run migrations: nil db")
	}
	if migrations == nil {
		return errors.New("run migrations: no migration source")
	}

	files := listMigrationFiles(migrations, driver)
	logger.MIG.Debug("migrations resolved", fileAttrs("resolve", files, slog.String("driver", driver))...)

	m, err := newMigrator(db, driver, migrations)
	if err != nil {
		logger.MIG.Error("init failed",
			slog.String("event", "db.migrate"),
			slog.String("driver", driver),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	// m.Close is not called: it would close the shared *sql.DB.

	from, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		from = 0
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case dirty:
		logger.MIG.Error("dirty schema", slog.String("event", "apply"), slog.Uint64("from_ver", uint64(from)))
		return fmt.Errorf("%w at version %d", ErrDirty, from)
	}

	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.MIG.Error("migration failed",
			slog.String("event", "apply"),
			slog.String("err", err.Error()),
			slog.Duration("duration", logger.Took(start)),
		)
		return fmt.Errorf("migration execution failed: %w", err)
	}
	took := logger.Took(start)

	to := from
	if v, _, err := m.Version(); err == nil {
		to = v
	}
	applied := selectApplied(files, uint64(from), uint64(to))
	if len(applied) > 0 {
		logger.MIG.Debug("applied files", fileAttrs("apply", applied)...)
	}
	logger.MIG.Info("migrations summary",
		slog.String("event", "summary"),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", took),
	)
	return nil
}

func fileAttrs(event string, names []string, extra ...any) []any {
	args := append([]any{slog.String("event", event), slog.Int("files_total", len(names))}, extra...)
	if preview, cut := logger.SummarizeStrings(names, 6); preview != "" {
		args = append(args, slog.String("files_preview", preview))
		if cut {
			args = append(args, slog.Bool("files_truncated", true))
		}
	}
	return args
}

func newMigrator(db *sqlx.DB, driver string, migrations fs.FS) (*migrate.Migrate, error) {
	src, err := iofs.New(migrations, driver)
	if err != nil {
		return nil, fmt.Errorf("open migration source: %w", err)
	}

	var target migratedb.Driver
	switch driver {
	case DriverSQLite:
		target, err = sqlite.WithInstance(db.DB, &sqlite.Config{})
	case DriverPostgres:
		target, err = postgres.WithInstance(db.DB, &postgres.Config{})
	default:
		err = fmt.Errorf("unsupported driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	return migrate.NewWithInstance("iofs", src, driver, target)
}

func listMigrationFiles(migrations fs.FS, dir string) []string {
	entries, err := fs.ReadDir(migrations, dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names
}

func parseVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

func selectApplied(files []string, from, to uint64) []string {
	if to <= from {
		return nil
	}
	var out []string
	for _, f := range files {
		if v := parseVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
