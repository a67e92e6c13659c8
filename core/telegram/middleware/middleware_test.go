package middleware

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/utilitybot/core/logger"
	tghelpers "github.com/m3rciful/utilitybot/core/telegram/helpers"
)

func messageCtx(updateID int, userID int64, text string) tele.Context {
	return tele.NewContext(nil, tele.Update{
		ID: updateID,
		Message: &tele.Message{
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
			Text:   text,
		},
	})
}

func callbackCtx(updateID int, userID int64, data string) tele.Context {
	return tele.NewContext(nil, tele.Update{
		ID: updateID,
		Callback: &tele.Callback{
			Sender: &tele.User{ID: userID},
			Data:   data,
		},
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limited := 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Second,
		Exclude:   map[string]struct{}{"callback": {}},
		OnLimited: func(tele.Context) error { limited++; return nil },
		Now:       func() time.Time { return now },
	})
	calls := 0
	h := mw(func(tele.Context) error { calls++; return nil })

	require.NoError(t, h(messageCtx(1, 7, "a")))
	require.NoError(t, h(messageCtx(2, 7, "b")))
	require.NoError(t, h(messageCtx(3, 8, "c")), "other users are not limited")
	require.NoError(t, h(callbackCtx(4, 7, "\fgenerate_qr")), "excluded kinds pass")
	now = now.Add(time.Second)
	require.NoError(t, h(messageCtx(5, 7, "d")))

	require.Equal(t, 4, calls)
	require.Equal(t, 1, limited)
}

func TestAdminOnlyMiddleware(t *testing.T) {
	rejected := 0
	opts := AdminOptions{AdminID: 1, OnReject: func(tele.Context) error { rejected++; return nil }}
	calls := 0
	h := AdminOnlyMiddleware(opts)(func(tele.Context) error { calls++; return nil })

	require.NoError(t, h(messageCtx(1, 1, "/botstats")))
	require.NoError(t, h(messageCtx(2, 2, "/botstats")))
	require.Equal(t, 1, calls)
	require.Equal(t, 1, rejected)

	require.False(t, AdminOptions{}.IsAdmin(messageCtx(3, 0, "")), "no admin configured")
}

func TestRecoverMiddleware(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	err := h(messageCtx(1, 1, "x"))
	require.Error(t, err)
	require.ErrorIs(t, err, ErrPanic)
	require.Contains(t, err.Error(), "boom")

	sentinel := errors.New("plain")
	require.ErrorIs(t, RecoverMiddleware(func(tele.Context) error { return sentinel })(messageCtx(2, 1, "x")), sentinel)
}

func TestLoggerMiddlewareStoresContext(t *testing.T) {
	c := messageCtx(10, 42, "hello")
	err := LoggerMiddleware(func(c tele.Context) error {
		ctx, ok := tghelpers.ContextFrom(c)
		require.True(t, ok)
		require.Equal(t, int64(42), logger.UserIDFrom(ctx))
		require.Equal(t, 10, logger.UpdateIDFrom(ctx))
		require.Equal(t, logger.BuildRID(10, 42, 42), logger.RIDFrom(ctx))
		require.NotEmpty(t, logger.TraceIDFrom(ctx))
		return nil
	})(c)
	require.NoError(t, err)
}

func TestUpdateSeenDedup(t *testing.T) {
	u := &updateSeen{seen: make(map[int]time.Time)}
	now := time.Now()
	require.True(t, u.firstTime(1, now))
	require.False(t, u.firstTime(1, now))
	require.True(t, u.firstTime(1, now.Add(dedupWindow+time.Second)))
}

func TestMessageMetricsCounters(t *testing.T) {
	c := messageCtx(1, 1, "x")
	err := MessageMetricsMiddleware(func(c tele.Context) error {
		msgs, kb := GetCounters(c)
		require.Zero(t, msgs)
		require.False(t, kb)
		return nil
	})(c)
	require.NoError(t, err)
	require.True(t, hasKeyboard([]interface{}{&tele.SendOptions{ReplyMarkup: &tele.ReplyMarkup{}}}))
	require.False(t, hasKeyboard([]interface{}{&tele.SendOptions{ParseMode: tele.ModeMarkdown}}))
}

func TestReplyTallyCounts(t *testing.T) {
	tally := &replyTally{}
	require.NoError(t, tally.add(nil, nil))
	require.NoError(t, tally.add(nil, []interface{}{&tele.ReplyMarkup{}}))
	require.Error(t, tally.add(errors.New("blocked"), []interface{}{&tele.ReplyMarkup{}}))
	require.Equal(t, int32(2), tally.messages.Load())
	require.True(t, tally.keyboard.Load())
}
