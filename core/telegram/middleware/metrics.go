package middleware

import (
	"sync/atomic"

	tele "gopkg.in/telebot.v4"
)

const tallyKey = "reply_tally"

// replyTally counts replies produced while handling one update. Async sender
// jobs may bump it after the handler returned, hence atomics.
type replyTally struct {
	messages atomic.Int32
	keyboard atomic.Bool
}

func (t *replyTally) add(err error, opts []interface{}) error {
	if err != nil || t == nil {
		return err
	}
	t.messages.Add(1)
	if hasKeyboard(opts) {
		t.keyboard.Store(true)
	}
	return nil
}

func hasKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// countingContext forwards outgoing calls and records the successful ones.
type countingContext struct {
	tele.Context
	tally *replyTally
}

func (c countingContext) Send(what interface{}, opts ...interface{}) error {
	return c.tally.add(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what interface{}, opts ...interface{}) error {
	return c.tally.add(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) Edit(what interface{}, opts ...interface{}) error {
	return c.tally.add(c.Context.Edit(what, opts...), opts)
}

func (c countingContext) EditOrSend(what interface{}, opts ...interface{}) error {
	return c.tally.add(c.Context.EditOrSend(what, opts...), opts)
}

// MessageMetricsMiddleware counts the replies a handler sends and whether any
// of them carried a keyboard. Handler summaries read the result via GetCounters.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		t := &replyTally{}
		c.Set(tallyKey, t)
		return next(countingContext{Context: c, tally: t})
	}
}

// GetCounters returns the reply count and keyboard flag for the current update.
func GetCounters(c tele.Context) (int, bool) {
	t, _ := c.Get(tallyKey).(*replyTally)
	if t == nil {
		return 0, false
	}
	return int(t.messages.Load()), t.keyboard.Load()
}
