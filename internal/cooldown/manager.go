// Package cooldown tracks when commands and matches last fired and decides
// whether they may fire again.
package cooldown

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
)

const shardCount = 64

// Key identifies one cooldown timer. Invoker is empty unless cooldowns are
// scoped per user.
type Key struct {
	Target   string
	Platform string
	Invoker  string
}

func (k Key) String() string {
	return k.Target + "|" + k.Platform + "|" + k.Invoker
}

// ParseKey reverses Key.String. Target may itself contain '|'.
func ParseKey(s string) (Key, bool) {
	i := strings.LastIndex(s, "|")
	if i < 0 {
		return Key{}, false
	}
	head, invoker := s[:i], s[i+1:]
	j := strings.LastIndex(head, "|")
	if j < 0 {
		return Key{}, false
	}
	return Key{Target: head[:j], Platform: head[j+1:], Invoker: invoker}, true
}

// Clock is the time source. The default uses time.Now, whose readings carry
// the monotonic clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type shard struct {
	mu   sync.Mutex
	last map[Key]time.Time
}

// Manager holds the last-fired table. It is safe for concurrent use; keys are
// spread over independent shards so unrelated dispatches never contend.
type Manager struct {
	shards [shardCount]shard
	clock  Clock
	store  Store
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the time source.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithStore persists every recorded invocation to s.
func WithStore(s Store) Option {
	return func(m *Manager) { m.store = s }
}

// NewManager returns an empty manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{clock: systemClock{}}
	for i := range m.shards {
		m.shards[i].last = make(map[Key]time.Time)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) shard(k Key) *shard {
	return &m.shards[xxhash.Sum64String(k.String())%shardCount]
}

func remaining(last, now time.Time, d time.Duration) time.Duration {
	if last.IsZero() {
		return 0
	}
	r := d - now.Sub(last)
	if r < 0 {
		return 0
	}
	return r
}

// Check reports whether k may fire under cooldown d, and otherwise how long
// is left. It never modifies state.
func (m *Manager) Check(k Key, d time.Duration) (bool, time.Duration) {
	if d <= 0 {
		return true, 0
	}
	s := m.shard(k)
	s.mu.Lock()
	last := s.last[k]
	s.mu.Unlock()

	r := remaining(last, m.clock.Now(), d)
	return r == 0, r
}

// Record marks k as fired now.
func (m *Manager) Record(k Key) {
	now := m.clock.Now()
	s := m.shard(k)
	s.mu.Lock()
	s.last[k] = now
	s.mu.Unlock()
	m.persist(k, now)
}

// Acquire atomically checks k and records it when eligible. Of two concurrent
// callers for the same key, only one wins.
func (m *Manager) Acquire(k Key, d time.Duration) (bool, time.Duration) {
	now := m.clock.Now()
	s := m.shard(k)
	s.mu.Lock()
	if d > 0 {
		if r := remaining(s.last[k], now, d); r > 0 {
			s.mu.Unlock()
			return false, r
		}
	}
	s.last[k] = now
	s.mu.Unlock()
	m.persist(k, now)
	return true, 0
}

func (m *Manager) persist(k Key, at time.Time) {
	if m.store != nil {
		m.store.Put(k, at)
	}
}

// Restore loads persisted records. Newer in-memory records are kept.
func (m *Manager) Restore(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	records, err := m.store.Load(ctx)
	if err != nil {
		return err
	}
	for k, at := range records {
		s := m.shard(k)
		s.mu.Lock()
		if cur, ok := s.last[k]; !ok || cur.Before(at) {
			s.last[k] = at
		}
		s.mu.Unlock()
	}
	log.Info().Str("component", "cooldown").Int("records", len(records)).Msg("restored cooldowns")
	return nil
}

// Sweep drops records older than maxAge and returns how many were removed.
func (m *Manager) Sweep(maxAge time.Duration) int {
	now := m.clock.Now()
	removed := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		for k, at := range s.last {
			if now.Sub(at) > maxAge {
				delete(s.last, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len returns the number of live records.
func (m *Manager) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		n += len(s.last)
		s.mu.Unlock()
	}
	return n
}
