package keyboard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInlineButtonsRowsLayout(t *testing.T) {
	markup := InlineButtonsRows(
		[]InlineBtn{{Text: "QR", Unique: "generate_qr"}, {Text: "Shorten", Unique: "shorten_url"}},
		[]InlineBtn{{Text: "Stats", Unique: "show_stats"}},
	)
	require.Len(t, markup.InlineKeyboard, 2)
	require.Len(t, markup.InlineKeyboard[0], 2)
	require.Len(t, markup.InlineKeyboard[1], 1)
	require.Equal(t, "generate_qr", markup.InlineKeyboard[0][0].Unique)
	require.Equal(t, "Stats", markup.InlineKeyboard[1][0].Text)
}

func TestInlineButtonsRowsSkipsEmpty(t *testing.T) {
	require.Nil(t, InlineButtonsRows())
	require.Nil(t, InlineButtonsRows(nil, []InlineBtn{}))

	markup := InlineButtonsRows(nil, []InlineBtn{{Text: "QR", Unique: "generate_qr"}})
	require.Len(t, markup.InlineKeyboard, 1)
	require.Equal(t, "QR", markup.InlineKeyboard[0][0].Text)
}
