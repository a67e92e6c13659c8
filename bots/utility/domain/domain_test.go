package domain

import "testing"

func TestTruncate(t *testing.T) {
	cases := []struct {
		in     string
		limit  int
		suffix string
		want   string
	}{
		{"hello", 10, "...", "hello"},
		{"hello world", 5, "...", "hello..."},
		{"ёжик в тумане", 4, "", "ёжик"},
		{"exact", 5, "...", "exact"},
		{"x", 0, "...", ""},
	}
	for _, tc := range cases {
		if got := Truncate(tc.in, tc.limit, tc.suffix); got != tc.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
		}
	}
}
