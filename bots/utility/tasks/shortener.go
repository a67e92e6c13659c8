package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/m3rciful/utilitybot/core/logger"
	"github.com/m3rciful/utilitybot/core/telegram/netutil"
)

const (
	shortenerComponent = "tasks.shortener"
	maxShortBody       = 2048
)

// Cache remembers short links for long URLs. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, longURL string) (string, bool, error)
	Set(ctx context.Context, longURL, shortURL string) error
}

// ShortenerOptions configures a Shortener.
type ShortenerOptions struct {
	// Endpoint receives GET <endpoint>?url=<long url> and answers with the short link as plain text.
	Endpoint string
	Timeout  time.Duration
	// Client overrides the HTTP client; its own timeout is ignored in favour of Timeout.
	Client *http.Client
	Cache  Cache
}

// Shortener turns long URLs into short ones through a remote API.
// It never fails: on any problem the original URL comes back.
type Shortener struct {
	endpoint *url.URL
	timeout  time.Duration
	client   *http.Client
	cache    Cache
	group    singleflight.Group
}

// NewShortener validates the endpoint and builds a Shortener.
func NewShortener(opts ShortenerOptions) (*Shortener, error) {
	endpoint, err := url.Parse(opts.Endpoint)
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return nil, fmt.Errorf("shortener: invalid endpoint %q", opts.Endpoint)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := opts.Client
	if client == nil {
		client = netutil.NewClient(netutil.ClientOptions{Timeout: timeout})
	}
	return &Shortener{
		endpoint: endpoint,
		timeout:  timeout,
		client:   client,
		cache:    opts.Cache,
	}, nil
}

// Shorten returns the short form of longURL, or longURL itself when the
// backend is unavailable, slow, or answers with anything but a 200 and a body.
// Concurrent calls for the same URL share one backend request.
func (s *Shortener) Shorten(ctx context.Context, longURL string) string {
	start := time.Now()
	cacheState := "off"
	if s.cache != nil {
		short, ok, err := s.cache.Get(ctx, longURL)
		switch {
		case err != nil:
			logger.Warn(ctx, shortenerComponent, "cache.get",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
			cacheState = "miss"
		case ok:
			logger.Debug(ctx, shortenerComponent, "shorten",
				slog.String("status", "ok"),
				slog.String("cache", "hit"),
				slog.Duration("duration", logger.Took(start)),
			)
			return short
		default:
			cacheState = "miss"
		}
	}

	v, _, _ := s.group.Do(longURL, func() (any, error) {
		short, err := s.call(ctx, longURL)
		if err != nil {
			return "", err
		}
		if s.cache != nil {
			if err := s.cache.Set(context.WithoutCancel(ctx), longURL, short); err != nil {
				logger.Warn(ctx, shortenerComponent, "cache.set",
					slog.String("status", "fail"),
					slog.String("err", err.Error()),
				)
			}
		}
		return short, nil
	})

	short, _ := v.(string)
	if short == "" {
		logger.Warn(ctx, shortenerComponent, "shorten",
			slog.String("status", "fallback"),
			slog.String("cache", cacheState),
			slog.Duration("duration", logger.Took(start)),
		)
		return longURL
	}
	logger.Info(ctx, shortenerComponent, "shorten",
		slog.String("status", "ok"),
		slog.String("cache", cacheState),
		slog.Duration("duration", logger.Took(start)),
	)
	return short
}

func (s *Shortener) call(ctx context.Context, longURL string) (string, error) {
	// shared by every caller waiting on the flight, so one caller leaving must not abort it
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	u := *s.endpoint
	q := u.Query()
	q.Set("url", longURL)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		logger.Warn(ctx, shortenerComponent, "request",
			slog.String("status", "fail"),
			slog.String("reason", transportReason(err)),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxShortBody))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		logger.Warn(ctx, shortenerComponent, "request",
			slog.String("status", "fail"),
			slog.Int("http_code", resp.StatusCode),
		)
		return "", fmt.Errorf("shortener: status %d", resp.StatusCode)
	}
	short := strings.TrimSpace(string(body))
	if short == "" {
		return "", errors.New("shortener: empty response")
	}
	return short, nil
}

func transportReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) || netutil.ShouldRetry(err) {
		return "unavailable"
	}
	return "transport"
}
