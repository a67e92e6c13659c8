// Package domain holds the records shared by the utility bot packages.
package domain

import (
	"time"
	"unicode/utf8"
)

// TaskKind names a completed task in the history table.
type TaskKind string

const (
	// TaskQRGeneration is a rendered QR code.
	TaskQRGeneration TaskKind = "qr_generation"
	// TaskURLShortening is a shortened link.
	TaskURLShortening TaskKind = "url_shortening"
)

// HistoryInputLimit caps the stored input snapshot, in runes.
const HistoryInputLimit = 100

// User is a person who talked to the bot at least once.
type User struct {
	ID          int64     `db:"id"`
	DisplayName string    `db:"display_name"`
	TaskCount   int64     `db:"task_count"`
	JoinedAt    time.Time `db:"joined_at"`
}

// HistoryEntry is one completed task.
type HistoryEntry struct {
	ID            int64     `db:"id"`
	UserID        int64     `db:"user_id"`
	Kind          TaskKind  `db:"kind"`
	InputSnapshot string    `db:"input_snapshot"`
	CreatedAt     time.Time `db:"created_at"`
}

// Stats answers "what did I do with the bot".
type Stats struct {
	UserID       int64
	TaskCount    int64
	JoinedAt     time.Time
	HistoryCount int64
}

// GlobalStats aggregates usage over all users.
type GlobalStats struct {
	Users  int64
	Tasks  int64
	ByKind map[TaskKind]int64
}

// Truncate returns s cut to at most limit runes, with suffix appended when something was cut.
func Truncate(s string, limit int, suffix string) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit]) + suffix
}
