package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func TestBuildPollerLongpollDefault(t *testing.T) {
	p, ok := BuildPoller(PollerOptions{RunMode: "longpoll"}).(*tele.LongPoller)
	require.True(t, ok)
	require.Equal(t, 10*time.Second, p.Timeout)

	p, ok = BuildPoller(PollerOptions{LongPollTimeoutSeconds: 30}).(*tele.LongPoller)
	require.True(t, ok)
	require.Equal(t, 30*time.Second, p.Timeout)
}

func TestBuildPollerWebhook(t *testing.T) {
	p, ok := BuildPoller(PollerOptions{
		RunMode: "Webhook",
		Webhook: WebhookOptions{Listen: "0.0.0.0", Port: 8443, URL: "https://bot.example/hook"},
	}).(*tele.Webhook)
	require.True(t, ok)
	require.Equal(t, "0.0.0.0:8443", p.Listen)
	require.Equal(t, "https://bot.example/hook", p.Endpoint.PublicURL)
}
