// Package ui declares replies a bot provides for updates nothing else handles.
package ui

import tele "gopkg.in/telebot.v4"

// FallbackProvider exposes handlers used when incoming updates
// cannot be mapped to commands, callbacks, or expected text.
type FallbackProvider interface {
	UnknownCallback() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	RateLimited() tele.HandlerFunc
	AdminRejected() tele.HandlerFunc
}
