package helpers

import (
	"bytes"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/utilitybot/core/logger"
	"github.com/m3rciful/utilitybot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

func sendAsync(c tele.Context, action, endpoint string, run func() error) error {
	disp := currentDispatcher()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	if err := disp.Enqueue(ctx, action, endpoint, run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

func firstMarkup(markup []*tele.ReplyMarkup) *tele.ReplyMarkup {
	if len(markup) > 0 {
		return markup[0]
	}
	return nil
}

// SendText sends raw text (no parse mode) to the current recipient.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var sendOpts *tele.SendOptions
	if len(opts) > 0 {
		sendOpts = opts[0]
	}
	return sendAsync(c, "send.text", "sendMessage", func() error {
		if sendOpts != nil {
			return c.Send(text, sendOpts)
		}
		return c.Send(text)
	})
}

// SendMD sends a message with Markdown parse mode and optional reply markup.
func SendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: firstMarkup(markup)}
	return SendText(c, text, opts)
}

// EditOrSendMD edits the message behind a callback (Markdown) or sends a new one otherwise.
func EditOrSendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: firstMarkup(markup)}
	return sendAsync(c, "edit.text", "editMessageText", func() error {
		return c.EditOrSend(text, opts)
	})
}

// SendPhoto uploads a PNG image with a Markdown caption.
// The reader is rebuilt on each attempt so retries upload the full image.
func SendPhoto(c tele.Context, image []byte, caption string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: firstMarkup(markup)}
	return sendAsync(c, "send.photo", "sendPhoto", func() error {
		photo := &tele.Photo{
			File:    tele.FromReader(bytes.NewReader(image)),
			Caption: caption,
		}
		return c.Send(photo, opts)
	})
}

// Notify answers the pending callback query with a short toast.
// Outside of callbacks it is a no-op.
func Notify(c tele.Context, text string) error {
	if c.Callback() == nil {
		return nil
	}
	c.Set(answeredKey, true)
	return c.Respond(&tele.CallbackResponse{Text: text})
}

// CallbackAnswered reports whether Notify already answered the callback of c.
func CallbackAnswered(c tele.Context) bool {
	answered, _ := c.Get(answeredKey).(bool)
	return answered
}
