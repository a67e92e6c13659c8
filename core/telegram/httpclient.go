package telegram

import (
	"net/http"
	"time"

	"github.com/m3rciful/utilitybot/core/telegram/netutil"
)

// BuildHTTPClient returns an HTTP client tuned for Telegram API calls.
// Long polling holds requests open, so the client timeout stays well above
// the poll timeout.
func BuildHTTPClient() *http.Client {
	return netutil.NewClient(netutil.ClientOptions{
		Timeout:         30 * time.Second,
		DialTimeout:     5 * time.Second,
		ResponseTimeout: 25 * time.Second,
		Retries:         3,
		Backoff:         2 * time.Second,
	})
}
