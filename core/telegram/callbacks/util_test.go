package callbacks

import (
	"testing"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func TestParseData(t *testing.T) {
	cases := []struct {
		raw, unique, payload string
	}{
		{"\fgenerate_qr", "generate_qr", ""},
		{"\fshow_stats|42", "show_stats", "42"},
		{`\fshorten_url`, "shorten_url", ""},
		{"show_help", "show_help", ""},
		{"\fa|b|c", "a", "b|c"},
		{"", "", ""},
	}
	for _, tc := range cases {
		unique, payload := ParseData(tc.raw)
		require.Equal(t, tc.unique, unique, "raw %q", tc.raw)
		require.Equal(t, tc.payload, payload, "raw %q", tc.raw)
	}
}

func TestParseCallbackDataNil(t *testing.T) {
	unique, payload := ParseCallbackData(nil)
	require.Empty(t, unique)
	require.Empty(t, payload)

	unique, _ = ParseCallbackData(&tele.Callback{Data: "\fgenerate_qr"})
	require.Equal(t, "generate_qr", unique)
}
