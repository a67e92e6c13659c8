package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/utilitybot/core/logger"
)

// State identifies the task a user is expected to supply input for.
type State string

// StateIdle means no task is pending for the user.
const StateIdle State = "idle"

// Options configures a Store.
type Options struct {
	// TTL bounds how long a pending task survives; zero keeps entries until cleared.
	TTL time.Duration
	// SweepInterval controls how often Run purges expired entries.
	SweepInterval time.Duration
	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

type entry struct {
	state     State
	expiresAt time.Time
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// Store is an in-memory map of pending tasks keyed by user id.
type Store struct {
	ttl   time.Duration
	sweep time.Duration
	now   func() time.Time

	mu      sync.Mutex
	entries map[int64]entry

	locksMu sync.Mutex
	locks   map[int64]*userLock
}

// NewStore returns an empty store.
func NewStore(opts Options) *Store {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	sweep := opts.SweepInterval
	if sweep <= 0 && opts.TTL > 0 {
		sweep = opts.TTL
	}
	return &Store{
		ttl:     opts.TTL,
		sweep:   sweep,
		now:     now,
		entries: make(map[int64]entry),
		locks:   make(map[int64]*userLock),
	}
}

// Get returns the pending state of the user, StateIdle when there is none
// or when the entry expired.
func (s *Store) Get(userID int64) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		return StateIdle
	}
	if s.expired(e, s.now()) {
		delete(s.entries, userID)
		return StateIdle
	}
	return e.state
}

// Set records st as the pending state of the user, replacing any previous one.
// Setting StateIdle is the same as Clear.
func (s *Store) Set(userID int64, st State) {
	if st == "" || st == StateIdle {
		s.Clear(userID)
		return
	}
	e := entry{state: st}
	if s.ttl > 0 {
		e.expiresAt = s.now().Add(s.ttl)
	}
	s.mu.Lock()
	s.entries[userID] = e
	s.mu.Unlock()
}

// Clear drops the pending state of the user. Clearing an idle user is a no-op.
func (s *Store) Clear(userID int64) {
	s.mu.Lock()
	delete(s.entries, userID)
	s.mu.Unlock()
}

// Len reports the number of stored entries, expired ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep removes expired entries and returns how many were dropped.
func (s *Store) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.entries {
		if s.expired(e, now) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Run sweeps expired entries periodically until ctx is done.
func (s *Store) Run(ctx context.Context) error {
	if s.ttl <= 0 || s.sweep <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(s.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Debug(ctx, "state", "sweep",
					slog.Int("expired", n),
					slog.Int("entries", s.Len()),
				)
			}
		}
	}
}

// Lock acquires the per-user mutex and returns the function releasing it.
// Mutexes are reference counted and dropped once nobody holds or waits on them.
func (s *Store) Lock(userID int64) (unlock func()) {
	s.locksMu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &userLock{}
		s.locks[userID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			s.locksMu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(s.locks, userID)
			}
			s.locksMu.Unlock()
		})
	}
}

func (s *Store) lockCount() int {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	return len(s.locks)
}

func (s *Store) expired(e entry, now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}
