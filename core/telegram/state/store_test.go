package state

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const awaitingQR State = "awaiting_qr_input"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestStoreGetSetClear(t *testing.T) {
	s := NewStore(Options{})

	require.Equal(t, StateIdle, s.Get(42))

	s.Set(42, awaitingQR)
	require.Equal(t, awaitingQR, s.Get(42))
	require.Equal(t, StateIdle, s.Get(7), "other users are unaffected")

	s.Set(42, "awaiting_url_input")
	require.Equal(t, State("awaiting_url_input"), s.Get(42), "selection overwrites the pending task")

	s.Clear(42)
	s.Clear(42)
	require.Equal(t, StateIdle, s.Get(42))
	require.Zero(t, s.Len())
}

func TestStoreSetIdleClears(t *testing.T) {
	s := NewStore(Options{})
	s.Set(1, awaitingQR)
	s.Set(1, StateIdle)
	require.Zero(t, s.Len())
}

func TestStoreTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := NewStore(Options{TTL: 10 * time.Minute, Now: clock.Now})

	s.Set(42, awaitingQR)
	clock.Advance(9 * time.Minute)
	require.Equal(t, awaitingQR, s.Get(42))

	clock.Advance(time.Minute)
	require.Equal(t, StateIdle, s.Get(42), "entry expires at ttl")
	require.Zero(t, s.Len(), "expired entry is dropped on read")
}

func TestStoreSweep(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := NewStore(Options{TTL: time.Minute, Now: clock.Now})

	s.Set(1, awaitingQR)
	s.Set(2, awaitingQR)
	clock.Advance(30 * time.Second)
	s.Set(3, awaitingQR)
	clock.Advance(45 * time.Second)

	require.Equal(t, 2, s.Sweep())
	require.Equal(t, 1, s.Len())
	require.Equal(t, awaitingQR, s.Get(3))
}

func TestStoreRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewStore(Options{TTL: time.Millisecond, SweepInterval: time.Millisecond})
	s.Set(1, awaitingQR)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestStoreRunWithoutTTL(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewStore(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)
}

func TestStoreLockSerializesSameUser(t *testing.T) {
	s := NewStore(Options{})

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.Lock(42)
			defer unlock()
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), maxSeen.Load())
	require.Zero(t, s.lockCount(), "released locks are dropped")
}

func TestStoreLockIndependentUsers(t *testing.T) {
	s := NewStore(Options{})

	unlockA := s.Lock(1)
	acquired := make(chan struct{})
	go func() {
		unlock := s.Lock(2)
		unlock()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock for another user blocked")
	}
	unlockA()
	unlockA()
	require.Zero(t, s.lockCount())
}
