package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/utilitybot/bots/utility/dispatch"
	"github.com/m3rciful/utilitybot/bots/utility/domain"
	tg "github.com/m3rciful/utilitybot/core/telegram"
	"github.com/m3rciful/utilitybot/core/telegram/state"
)

type nopQR struct{}

func (nopQR) Generate(context.Context, string) ([]byte, error) { return []byte{1}, nil }
func (nopQR) Size() int                                        { return 400 }

type nopShortener struct{}

func (nopShortener) Shorten(_ context.Context, u string) string { return u }

type nopStore struct{}

func (nopStore) UpsertUser(_ context.Context, id int64, name string) (domain.User, error) {
	return domain.User{ID: id, DisplayName: name}, nil
}
func (nopStore) RecordTask(context.Context, int64, domain.TaskKind, string) error { return nil }
func (nopStore) GetStats(context.Context, int64) (domain.Stats, error)            { return domain.Stats{}, nil }
func (nopStore) GlobalStats(context.Context) (domain.GlobalStats, error) {
	return domain.GlobalStats{}, nil
}

func newHandlers(t *testing.T) (*Handlers, *state.Store) {
	t.Helper()
	st := state.NewStore(state.Options{})
	d, err := dispatch.New(dispatch.Deps{States: st, QR: nopQR{}, Shortener: nopShortener{}, Store: nopStore{}})
	require.NoError(t, err)
	return New(d), st
}

func TestRegister(t *testing.T) {
	h, _ := newHandlers(t)
	reg := tg.NewRegistry()
	require.NoError(t, h.Register(reg))

	require.ElementsMatch(t, dispatch.OptionIDs, reg.ListCallbacks())
	visible := reg.ListCommands(true)
	names := make([]string, 0, len(visible))
	for _, c := range visible {
		names = append(names, c.Text)
	}
	require.Equal(t, []string{"/cancel", "/help", "/start"}, names)

	_, cmd, ok := reg.LookupCommand("/botstats")
	require.True(t, ok)
	require.True(t, cmd.AdminOnly)

	require.Error(t, h.Register(reg), "nothing can be registered twice")
}

func TestDisplayName(t *testing.T) {
	require.Equal(t, "Ann", displayName(&tele.User{ID: 1, FirstName: " Ann "}))
	require.Equal(t, "ann_b", displayName(&tele.User{ID: 1, Username: "ann_b"}))
	require.Equal(t, "user 9", displayName(&tele.User{ID: 9}))
}

func TestUserOf(t *testing.T) {
	c := tele.NewContext(nil, tele.Update{Message: &tele.Message{Sender: &tele.User{ID: 42, FirstName: "Ann"}}})
	u, ok := userOf(c)
	require.True(t, ok)
	require.Equal(t, dispatch.User{ID: 42, DisplayName: "Ann"}, u)

	_, ok = userOf(tele.NewContext(nil, tele.Update{Message: &tele.Message{}}))
	require.False(t, ok)
}

func TestToMarkup(t *testing.T) {
	require.Nil(t, toMarkup(nil))

	m := toMarkup(dispatch.MainMenu())
	require.Len(t, m.InlineKeyboard, 2)
	require.Len(t, m.InlineKeyboard[0], 2)
	require.Equal(t, "🎯 Generate QR", m.InlineKeyboard[0][0].Text)
	require.Equal(t, dispatch.OptionShowHelp, m.InlineKeyboard[1][1].Unique)
}

func TestCommandTextIsNotConsumed(t *testing.T) {
	h, st := newHandlers(t)
	st.Set(42, dispatch.StateAwaitingQR)

	c := tele.NewContext(nil, tele.Update{Message: &tele.Message{
		Sender: &tele.User{ID: 42},
		Chat:   &tele.Chat{ID: 42},
		Text:   "/whatever",
	}})
	require.NoError(t, h.Text(c))
	require.Equal(t, dispatch.StateAwaitingQR, st.Get(42))
}

func TestUpdatesWithoutSenderAreIgnored(t *testing.T) {
	h, _ := newHandlers(t)
	c := tele.NewContext(nil, tele.Update{Message: &tele.Message{Text: "hello"}})
	require.NoError(t, h.Text(c))
	require.NoError(t, h.Start(c))
	require.NoError(t, h.Cancel(c))
	require.NoError(t, h.Select(c))
}
