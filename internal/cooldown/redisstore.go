package cooldown

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisStore keeps cooldown records in a single redis hash. Writes are
// buffered and flushed in the background with one pipeline per batch.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration

	mu      sync.Mutex
	pending map[string]int64
	wake    chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	closed  bool
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithHashKey sets the redis key of the hash. Defaults to "togglebot:cooldowns".
func WithHashKey(key string) RedisOption {
	return func(s *RedisStore) { s.key = key }
}

// WithExpiry refreshes an expiry on the whole hash after each flush.
func WithExpiry(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// NewRedisStore starts the flush worker for client.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:  client,
		key:     "togglebot:cooldowns",
		pending: make(map[string]int64),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Load reads the whole hash.
func (s *RedisStore) Load(ctx context.Context) (map[Key]time.Time, error) {
	raw, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[Key]time.Time, len(raw))
	for field, value := range raw {
		k, ok := ParseKey(field)
		if !ok {
			continue
		}
		ms, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			log.Warn().Str("component", "cooldown").Str("key", field).Msg("skipping malformed cooldown value")
			continue
		}
		out[k] = time.UnixMilli(ms)
	}
	return out, nil
}

// Put queues k for the next flush.
func (s *RedisStore) Put(k Key, at time.Time) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending[k.String()] = at.UnixMilli()
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Flush writes all queued records now.
func (s *RedisStore) Flush(ctx context.Context) error {
	s.mu.Lock()
	batch := s.pending
	s.pending = make(map[string]int64)
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	values := make([]any, 0, len(batch)*2)
	for field, ms := range batch {
		values = append(values, field, ms)
	}
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.key, values...)
		if s.ttl > 0 {
			p.Expire(ctx, s.key, s.ttl)
		}
		return nil
	})
	if err != nil {
		s.requeue(batch)
	}
	return err
}

func (s *RedisStore) requeue(batch map[string]int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for field, ms := range batch {
		if cur, ok := s.pending[field]; !ok || cur < ms {
			s.pending[field] = ms
		}
	}
}

// Close stops the worker and flushes what is left.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Flush(ctx)
}

func (s *RedisStore) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.Flush(ctx); err != nil {
				log.Error().Err(err).Str("component", "cooldown").Msg("redis flush failed")
			}
			cancel()
		}
	}
}
