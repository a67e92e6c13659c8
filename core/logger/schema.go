package logger

import (
	"log/slog"
	"slices"
	"strings"
)

// enumFields lists the closed value sets for fields that dashboards group by.
var enumFields = map[string][]string{
	"status":  {"ok", "fail", "skip", "retry", "fallback", "rate_limited", "cancelled"},
	"cache":   {"hit", "miss", "off"},
	"outcome": {"ok", "fail", "invalid", "cancelled", "rate_limited"},
}

// strictEnums are dropped from a line when the value is unknown.
// Other enum fields keep the lowercased raw value.
var strictEnums = []string{"cache", "outcome"}

func levelName(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "DEBUG"
	case l < slog.LevelWarn:
		return "INFO"
	case l < slog.LevelError:
		return "WARN"
	default:
		return "ERROR"
	}
}

func normalizeEnum(field, raw string) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return "", false
	}
	return v, slices.Contains(enumFields[field], v)
}

// defaultKeyOrder puts identity first, then the request, then the
// bot-specific payload, and errors last.
var defaultKeyOrder = []string{
	// identity
	"ts", "level", "component", "event", "status",
	// request
	"rid", "rid_full", "trace_id", "ts_unix_nano",
	"update_id", "user_id", "chat_id", "chat_type", "handler",
	// conversation
	"option", "state", "next_state", "task", "cb_key", "outcome",
	// cost
	"duration_ms", "messages", "kb", "bytes", "cache", "payload", "input_len",
	// transport and storage
	"username", "mode", "listen", "public_url", "http_code",
	"driver", "db", "host", "port",
	// failure
	"err", "err_code", "cause", "attempts", "backoff_ms", "expired",
}
