package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler renders records as flat JSON objects or key=value lines
// with a stable key order, so grep and jq work the same on both formats.
type structuredHandler struct {
	cfg    handlerConfig
	attrs  []slog.Attr
	groups []string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = append([]string(nil), defaultKeyOrder...)
	}
	return &structuredHandler{cfg: cfg}
}

// Enabled reports whether the handler allows processing the provided level.
func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

// Handle formats the slog.Record and hands the line to the async writer.
func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return fmt.Errorf("logger: writer not initialized")
	}

	isJSON := h.cfg.format == formatJSON
	fields := make(map[string]any, 16)
	ts := r.Time.UTC()
	fields["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	fields["level"] = levelName(r.Level)
	if isJSON {
		fields["ts_unix_nano"] = ts.UnixNano()
	}

	for _, a := range h.attrs {
		h.collect(fields, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.collect(fields, a)
		return true
	})
	addContextFields(ctx, fields)

	if rid, ok := stringField(fields, "rid"); ok && rid != "" {
		if compact := CompactRID(rid); compact != rid {
			if isJSON {
				fields["rid_full"] = rid
			}
			fields["rid"] = compact
		}
	}

	if event, _ := stringField(fields, "event"); event == "" {
		event = r.Message
		if event == "" {
			event = "unknown"
		}
		fields["event"] = event
	}
	if component, _ := stringField(fields, "component"); component == "" {
		fields["component"] = "app"
	}

	sanitizeEnumerations(fields)
	maskSecrets(fields)
	pruneEmpty(fields)

	buf := bufPool.Get().(*bytes.Buffer)
	defer bufPool.Put(buf)
	buf.Reset()
	if err := render(buf, fields, h.cfg.keyOrder, isJSON); err != nil {
		return err
	}
	return h.cfg.writer.Write(buf.Bytes())
}

// WithAttrs returns a shallow copy of the handler enriched with attrs.
func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

// WithGroup returns a shallow copy of the handler with an additional group prefix.
func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func (h *structuredHandler) collect(fields map[string]any, attr slog.Attr) {
	flattenAttr(strings.Join(h.groups, "."), attr, func(k string, v slog.Value) {
		if key, val, ok := normalizeAttr(k, v); ok {
			fields[key] = val
		}
	})
}

func flattenAttr(prefix string, attr slog.Attr, fn func(string, slog.Value)) {
	key := attr.Key
	switch {
	case key == "":
		key = prefix
	case prefix != "":
		key = prefix + "." + key
	}
	val := attr.Value.Resolve()
	if val.Kind() == slog.KindGroup {
		for _, child := range val.Group() {
			flattenAttr(key, child, fn)
		}
		return
	}
	if key != "" {
		fn(key, val)
	}
}

// durationKey maps duration attributes onto the *_ms naming used across dashboards.
func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_duration"):
		return strings.TrimSuffix(key, "_duration") + "_duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	default:
		return key + "_ms"
	}
}

func normalizeAttr(key string, val slog.Value) (string, any, bool) {
	switch val.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(val.String()), true
	case slog.KindBool:
		return key, val.Bool(), true
	case slog.KindInt64:
		return key, val.Int64(), true
	case slog.KindUint64:
		if u := val.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, val.Uint64(), true
	case slog.KindFloat64:
		return key, val.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(val.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, val.Time().UTC().Format(time.RFC3339Nano), true
	}

	switch x := val.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case string:
		return key, strings.TrimSpace(x), true
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

func sanitizeEnumerations(fields map[string]any) {
	if s, ok := stringField(fields, "status"); ok && s != "" {
		fields["status"], _ = normalizeEnum("status", s)
	}
	for _, key := range strictEnums {
		raw, ok := stringField(fields, key)
		if !ok || raw == "" {
			continue
		}
		if v, valid := normalizeEnum(key, raw); valid {
			fields[key] = v
		} else {
			delete(fields, key)
		}
	}
}

func pruneEmpty(fields map[string]any) {
	for k, v := range fields {
		switch val := v.(type) {
		case nil:
			delete(fields, k)
		case string:
			if val == "" {
				delete(fields, k)
			}
		}
	}
}

var bufPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// secretKeys are masked wherever they appear, including as the last segment of a group key.
var secretKeys = map[string]struct{}{"token": {}, "password": {}, "secret": {}}

func maskSecrets(fields map[string]any) {
	for k := range fields {
		if _, ok := secretKeys[k[strings.LastIndexByte(k, '.')+1:]]; ok {
			fields[k] = "***"
		}
	}
}

type fieldEncoder func(buf *bytes.Buffer, key string, val any) error

func encodeJSONField(buf *bytes.Buffer, key string, val any) error {
	data, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("logger: encode %s: %w", key, err)
	}
	buf.WriteString(strconv.Quote(key))
	buf.WriteByte(':')
	buf.Write(data)
	return nil
}

func encodeKVField(buf *bytes.Buffer, key string, val any) error {
	buf.WriteString(key)
	buf.WriteByte('=')
	buf.WriteString(formatValueKV(val))
	return nil
}

// render writes one newline-terminated line: a flat JSON object or key=value pairs.
func render(buf *bytes.Buffer, fields map[string]any, order []string, asJSON bool) error {
	enc, sep := fieldEncoder(encodeKVField), byte(' ')
	if asJSON {
		enc, sep = encodeJSONField, ','
		buf.WriteByte('{')
	}
	for i, key := range orderedKeys(fields, order) {
		if i > 0 {
			buf.WriteByte(sep)
		}
		if err := enc(buf, key, fields[key]); err != nil {
			return err
		}
	}
	if asJSON {
		buf.WriteByte('}')
	}
	buf.WriteByte('\n')
	return nil
}

// orderedKeys lists the configured keys first and the rest alphabetically.
func orderedKeys(fields map[string]any, order []string) []string {
	keys := make([]string, 0, len(fields))
	placed := make(map[string]bool, len(order))
	for _, k := range order {
		if _, ok := fields[k]; ok && !placed[k] {
			keys = append(keys, k)
			placed[k] = true
		}
	}
	tail := len(keys)
	for k := range fields {
		if !placed[k] {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys[tail:])
	return keys
}

func formatValueKV(val any) string {
	var s string
	switch v := val.(type) {
	case string:
		s = v
	case bool, int, int64, uint64, float64:
		return fmt.Sprint(v)
	default:
		s = fmt.Sprint(v)
	}
	if strings.IndexFunc(s, needsQuote) >= 0 {
		return strconv.Quote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}

func stringField(fields map[string]any, key string) (string, bool) {
	v, ok := fields[key]
	if !ok {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	case fmt.Stringer:
		return val.String(), true
	default:
		return fmt.Sprint(val), true
	}
}

// addContextFields fills request metadata from ctx; explicit attrs win.
func addContextFields(ctx context.Context, fields map[string]any) {
	if ctx == nil {
		return
	}
	rid, trace, handler := RIDFrom(ctx), TraceIDFrom(ctx), HandlerFrom(ctx)
	uid, upd, cid := UserIDFrom(ctx), UpdateIDFrom(ctx), ChatIDFrom(ctx)
	for _, f := range []struct {
		key string
		val any
		set bool
	}{
		{"rid", rid, rid != ""},
		{"trace_id", trace, trace != ""},
		{"user_id", uid, uid != 0},
		{"update_id", upd, upd != 0},
		{"chat_id", cid, cid != 0},
		{"handler", handler, handler != ""},
	} {
		if _, exists := fields[f.key]; f.set && !exists {
			fields[f.key] = f.val
		}
	}
}
