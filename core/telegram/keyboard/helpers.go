// Package keyboard builds inline keyboards.
package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn is a callback button; presses are routed by Unique.
type InlineBtn struct {
	Text   string
	Unique string
}

// InlineButtonsRows builds an inline keyboard, one tele.Row per row of buttons.
// Empty rows are dropped; no rows yields nil so callers can pass the result unconditionally.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	out := make([]tele.Row, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make(tele.Row, 0, len(row))
		for _, b := range row {
			r = append(r, markup.Data(b.Text, b.Unique))
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil
	}
	markup.Inline(out...)
	return markup
}
