// Package callbacks decodes inline button payloads.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Telebot prefixes data of buttons built with a unique id with a form feed.
const uniquePrefix = "\f"

// ParseData splits raw callback data in the form [\f]<unique>[|<payload>].
func ParseData(raw string) (unique, payload string) {
	raw = strings.TrimPrefix(raw, uniquePrefix)
	// some clients echo the escaped form back
	raw = strings.TrimPrefix(raw, `\f`)
	unique, payload, _ = strings.Cut(raw, "|")
	return strings.TrimSpace(unique), payload
}

// ParseCallbackData parses the Data of cb; see ParseData.
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	return ParseData(cb.Data)
}

// CallbackKey returns cb.Unique if present; otherwise parses it from Data.
// Unique is empty when the update reaches a generic OnCallback handler.
func CallbackKey(c tele.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	if cb.Unique != "" {
		return cb.Unique
	}
	k, _ := ParseCallbackData(cb)
	return k
}
