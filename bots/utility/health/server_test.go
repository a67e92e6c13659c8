package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	s := New(Options{
		Version:  "v1.0.0",
		Counters: func() map[string]uint64 { return map[string]uint64{"sent": 3} },
	})
	rec := get(t, s.Handler(), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body healthBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body.Status)
	require.Equal(t, "v1.0.0", body.Version)
	require.Equal(t, uint64(3), body.Counters["sent"])
}

func TestReadyz(t *testing.T) {
	dbErr := errors.New("database is closed")
	healthy := true
	s := New(Options{Checks: map[string]Checker{
		"database": func(context.Context) error {
			if healthy {
				return nil
			}
			return dbErr
		},
		"redis": func(context.Context) error { return nil },
	}})

	rec := get(t, s.Handler(), "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)

	healthy = false
	rec = get(t, s.Handler(), "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body readyBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "fail", body.Status)
	require.Equal(t, map[string]string{"database": "database is closed", "redis": "ok"}, body.Checks)
}

func TestReadyzCheckTimeout(t *testing.T) {
	s := New(Options{
		CheckTimeout: 20 * time.Millisecond,
		Checks: map[string]Checker{"slow": func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	})
	require.Equal(t, http.StatusServiceUnavailable, get(t, s.Handler(), "/readyz").Code)
}

func TestMethodNotAllowed(t *testing.T) {
	s := New(Options{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New(Options{Listen: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestRunReportsListenError(t *testing.T) {
	s := New(Options{Listen: "256.0.0.1:bad"})
	require.Error(t, s.Run(context.Background()))
}
