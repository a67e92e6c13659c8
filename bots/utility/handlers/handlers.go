// Package handlers adapts telebot updates to the dispatcher and its replies back to Telegram.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/m3rciful/utilitybot/bots/utility/dispatch"
	tg "github.com/m3rciful/utilitybot/core/telegram"
	"github.com/m3rciful/utilitybot/core/telegram/callbacks"
	"github.com/m3rciful/utilitybot/core/telegram/commands"
	tghelpers "github.com/m3rciful/utilitybot/core/telegram/helpers"
	"github.com/m3rciful/utilitybot/core/telegram/keyboard"
	"github.com/m3rciful/utilitybot/core/telegram/ui"

	tele "gopkg.in/telebot.v4"
)

const (
	textRateLimited   = "⏳ Slow down a little, then try again."
	textAdminRejected = "⛔ This command is for the bot admin only."
	textNoDocuments   = "📄 I can't process files. Send text or a link instead."
)

var _ ui.FallbackProvider = (*Handlers)(nil)

// Handlers binds the dispatcher to Telegram.
type Handlers struct {
	d *dispatch.Dispatcher
}

// New wraps d.
func New(d *dispatch.Dispatcher) *Handlers {
	return &Handlers{d: d}
}

// Register adds the bot commands and menu callbacks to reg.
func (h *Handlers) Register(reg *tg.Registry) error {
	cmds := []struct {
		name string
		cmd  commands.Command
	}{
		{"/start", commands.Command{Handler: h.Start, Description: "Start the bot"}},
		{"/help", commands.Command{Handler: h.Help, Description: "Show help"}},
		{"/cancel", commands.Command{Handler: h.Cancel, Description: "Drop the pending task"}},
		{"/botstats", commands.Command{Handler: h.BotStats, Description: "Usage over all users", AdminOnly: true}},
	}
	var errs []error
	for _, c := range cmds {
		errs = append(errs, reg.RegisterCommand(c.name, c.cmd))
	}
	for _, opt := range dispatch.OptionIDs {
		errs = append(errs, reg.RegisterCallback(opt, h.Select))
	}
	reg.SetCallbackNotFound(h.Select)
	return errors.Join(errs...)
}

// Start handles /start.
func (h *Handlers) Start(c tele.Context) error {
	u, ok := userOf(c)
	if !ok {
		return nil
	}
	return h.d.Start(tghelpers.BuildContext(c), u, responder{c: c})
}

// Help handles /help.
func (h *Handlers) Help(c tele.Context) error {
	u, _ := userOf(c)
	return h.d.Help(tghelpers.BuildContext(c), u, responder{c: c})
}

// Cancel handles /cancel.
func (h *Handlers) Cancel(c tele.Context) error {
	u, ok := userOf(c)
	if !ok {
		return nil
	}
	return h.d.Cancel(tghelpers.BuildContext(c), u, responder{c: c})
}

// BotStats handles the admin /botstats command.
func (h *Handlers) BotStats(c tele.Context) error {
	return h.d.AdminStats(tghelpers.BuildContext(c), responder{c: c})
}

// Select handles every inline menu button, known or not.
func (h *Handlers) Select(c tele.Context) error {
	u, ok := userOf(c)
	if !ok || c.Callback() == nil {
		return nil
	}
	return h.d.Select(tghelpers.BuildContext(c), u, callbacks.CallbackKey(c), responder{c: c})
}

// Text handles non-command text messages.
func (h *Handlers) Text(c tele.Context) error {
	u, ok := userOf(c)
	if !ok {
		return nil
	}
	return h.d.Text(tghelpers.BuildContext(c), u, c.Text(), responder{c: c})
}

// UnknownCallback implements ui.FallbackProvider.
func (h *Handlers) UnknownCallback() tele.HandlerFunc { return h.Select }

// UnknownDocument implements ui.FallbackProvider.
func (h *Handlers) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error { return tghelpers.SendText(c, textNoDocuments) }
}

// RateLimited implements ui.FallbackProvider.
func (h *Handlers) RateLimited() tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Callback() != nil {
			return tghelpers.Notify(c, textRateLimited)
		}
		return tghelpers.SendText(c, textRateLimited)
	}
}

// AdminRejected implements ui.FallbackProvider.
func (h *Handlers) AdminRejected() tele.HandlerFunc {
	return func(c tele.Context) error { return tghelpers.SendText(c, textAdminRejected) }
}

func userOf(c tele.Context) (dispatch.User, bool) {
	s := c.Sender()
	if s == nil {
		return dispatch.User{}, false
	}
	return dispatch.User{ID: s.ID, DisplayName: displayName(s)}, true
}

func displayName(u *tele.User) string {
	if name := strings.TrimSpace(u.FirstName); name != "" {
		return name
	}
	if u.Username != "" {
		return u.Username
	}
	return fmt.Sprintf("user %d", u.ID)
}

type responder struct{ c tele.Context }

func (r responder) Reply(_ context.Context, rep dispatch.Reply) error {
	markup := toMarkup(rep.Menu)
	switch {
	case rep.Notice != "":
		return tghelpers.Notify(r.c, rep.Notice)
	case len(rep.Image) > 0:
		return tghelpers.SendPhoto(r.c, rep.Image, rep.Caption, markup)
	case rep.Edit && r.c.Callback() != nil:
		return tghelpers.EditOrSendMD(r.c, rep.Text, markup)
	default:
		return tghelpers.SendMD(r.c, rep.Text, markup)
	}
}

func toMarkup(menu dispatch.Menu) *tele.ReplyMarkup {
	if len(menu) == 0 {
		return nil
	}
	rows := make([][]keyboard.InlineBtn, len(menu))
	for i, row := range menu {
		rows[i] = make([]keyboard.InlineBtn, len(row))
		for j, b := range row {
			rows[i][j] = keyboard.InlineBtn{Text: b.Text, Unique: b.Option}
		}
	}
	return keyboard.InlineButtonsRows(rows...)
}
