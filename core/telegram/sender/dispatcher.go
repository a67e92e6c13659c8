// Package sender runs outbound Telegram calls on a small worker pool with retries.
package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/utilitybot/core/logger"
	"github.com/m3rciful/utilitybot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

const component = "tg.sender"

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull means the job was dropped because every slot is taken.
	ErrQueueFull = errors.New("telegram sender: queue full")

	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Options tunes the pool. Zero values pick defaults.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds one job including every retry and flood wait.
	MaxDuration time.Duration
	// Retryable defaults to network failures plus Telegram flood errors.
	Retryable func(error) bool
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	if o.Retryable == nil {
		o.Retryable = retryable
	}
	return o
}

func retryable(err error) bool {
	var flood tele.FloodError
	return errors.As(err, &flood) || netutil.ShouldRetry(err)
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

func (j job) attrs(extra ...slog.Attr) []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return append(attrs, extra...)
}

// Dispatcher executes outbound Telegram calls asynchronously.
type Dispatcher struct {
	opts Options

	mu     sync.RWMutex
	closed bool
	jobs   chan job

	wg   sync.WaitGroup
	once sync.Once
	sent atomic.Uint64
	errs atomic.Uint64
}

// NewDispatcher starts the worker pool.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{opts: opts, jobs: make(chan job, opts.QueueSize)}
	d.wg.Add(opts.Workers)
	for range opts.Workers {
		go func() {
			defer d.wg.Done()
			for j := range d.jobs {
				d.handle(j)
			}
		}()
	}
	return d
}

// Enqueue schedules run. It never blocks; a saturated queue returns ErrQueueFull.
// run must be idempotent when retries are enabled.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Sent is the number of jobs that eventually succeeded.
func (d *Dispatcher) Sent() uint64 { return d.sent.Load() }

// ErrorCount is the number of jobs that gave up.
func (d *Dispatcher) ErrorCount() uint64 { return d.errs.Load() }

// Queued is the number of jobs waiting for a worker.
func (d *Dispatcher) Queued() int { return len(d.jobs) }

// Close stops accepting jobs and waits for the queue to drain.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.jobs)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) handle(j job) {
	start := time.Now()
	attempts, err := d.deliver(j)
	elapsed := slog.Duration("elapsed", logger.Took(start))

	switch {
	case err == nil && attempts == 1:
		d.sent.Add(1)
		logger.Debug(j.ctx, component, "send.success", j.attrs(elapsed)...)
	case err == nil:
		d.sent.Add(1)
		logger.Info(j.ctx, component, "send.retry.success", j.attrs(elapsed, slog.Int("attempt", attempts))...)
	default:
		d.errs.Add(1)
		logger.Error(j.ctx, component, "send.fail", j.attrs(
			slog.String("status", "fail"),
			slog.String("err", sanitizeErrorMessage(err)),
			slog.String("error_kind", classifyError(err)),
			slog.Int("attempts", attempts),
			elapsed,
		)...)
	}
}

// deliver runs the job until it succeeds, fails permanently, runs out of
// attempts or exceeds MaxDuration. The handler context is usually done by the
// time a worker picks the job up, so only its values are kept.
func (d *Dispatcher) deliver(j job) (int, error) {
	deadline, cancel := context.WithTimeout(context.WithoutCancel(j.ctx), d.opts.MaxDuration)
	defer cancel()

	limit := d.opts.MaxRetries + 1
	for attempt := 1; ; attempt++ {
		err := j.run()
		if err == nil || attempt == limit || !d.opts.Retryable(err) {
			return attempt, err
		}

		delay := d.backoff(attempt, err)
		logger.Debug(j.ctx, component, "send.retry.backoff",
			j.attrs(slog.Int("attempt", attempt), slog.Duration("backoff", delay))...)

		timer := time.NewTimer(delay)
		select {
		case <-deadline.Done():
			timer.Stop()
			return attempt, errors.Join(err, deadline.Err())
		case <-timer.C:
		}
	}
}

// backoff grows linearly and never undercuts a flood wait requested by Telegram.
func (d *Dispatcher) backoff(attempt int, err error) time.Duration {
	delay := d.opts.RetryBackoff * time.Duration(attempt)
	var flood tele.FloodError
	if errors.As(err, &flood) {
		delay = max(delay, time.Duration(flood.RetryAfter)*time.Second)
	}
	return delay
}

// errorKinds is checked in order; the first match names the failure.
var errorKinds = []struct {
	kind  string
	match func(error) bool
}{
	{"timeout", func(err error) bool {
		var netErr net.Error
		return errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
	}},
	{"dns", func(err error) bool {
		var dnsErr *net.DNSError
		return errors.As(err, &dnsErr)
	}},
	{"dial", func(err error) bool {
		var opErr *net.OpError
		return errors.As(err, &opErr) && opErr.Op == "dial"
	}},
	{"tls", func(err error) bool {
		var alert tls.AlertError
		return errors.As(err, &alert)
	}},
	{"flood", func(err error) bool { return httpStatusFromError(err) == http.StatusTooManyRequests }},
	{"http_5xx", func(err error) bool { return httpStatusFromError(err) >= 500 }},
	{"http_4xx", func(err error) bool { return httpStatusFromError(err) >= 400 }},
}

func classifyError(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if k.match(err) {
			return k.kind
		}
	}
	return "unknown"
}

// sanitizeErrorMessage strips bot tokens that telebot embeds in request URLs.
func sanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}

func httpStatusFromError(err error) int {
	var apiErr *tele.Error
	var flood tele.FloodError
	var group tele.GroupError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code
	case errors.As(err, &flood):
		return http.StatusTooManyRequests
	case errors.As(err, &group):
		return http.StatusBadRequest
	}

	// telebot formats unknown API failures as "telegram: <description> (<code>)"
	msg := err.Error()
	open, end := strings.LastIndex(msg, "("), strings.LastIndex(msg, ")")
	if open < 0 || end <= open+1 {
		return 0
	}
	code, convErr := strconv.Atoi(strings.TrimSpace(msg[open+1 : end]))
	if convErr != nil {
		return 0
	}
	return code
}
