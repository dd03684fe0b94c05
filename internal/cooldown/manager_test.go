package cooldown

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
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

func TestKey_RoundTrip(t *testing.T) {
	for _, k := range []Key{
		{Target: "lark", Platform: "twitch"},
		{Target: "match|3", Platform: "discord", Invoker: "alice"},
	} {
		got, ok := ParseKey(k.String())
		require.True(t, ok)
		assert.Equal(t, k, got)
	}
	_, ok := ParseKey("nopipes")
	assert.False(t, ok)
}

func TestManager_NeverInvokedIsEligible(t *testing.T) {
	m := NewManager(WithClock(newFakeClock()))
	ok, left := m.Check(Key{Target: "lark", Platform: "twitch"}, time.Minute)
	assert.True(t, ok)
	assert.Zero(t, left)
}

func TestManager_CheckRecord(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(WithClock(clock))
	k := Key{Target: "lark", Platform: "twitch"}

	m.Record(k)
	clock.Advance(10 * time.Second)

	ok, left := m.Check(k, 30*time.Second)
	assert.False(t, ok)
	assert.Equal(t, 20*time.Second, left)

	ok, _ = m.Check(k, 0)
	assert.True(t, ok, "zero cooldown is always eligible")

	clock.Advance(20 * time.Second)
	ok, left = m.Check(k, 30*time.Second)
	assert.True(t, ok)
	assert.Zero(t, left)
}

func TestManager_CheckDoesNotRecord(t *testing.T) {
	m := NewManager(WithClock(newFakeClock()))
	k := Key{Target: "lark", Platform: "twitch"}
	for range 3 {
		ok, _ := m.Check(k, time.Minute)
		assert.True(t, ok)
	}
	assert.Zero(t, m.Len())
}

func TestManager_PlatformsAreIndependent(t *testing.T) {
	m := NewManager(WithClock(newFakeClock()))
	m.Record(Key{Target: "lark", Platform: "twitch"})

	ok, _ := m.Check(Key{Target: "lark", Platform: "discord"}, time.Minute)
	assert.True(t, ok)
	ok, _ = m.Check(Key{Target: "lark", Platform: "twitch"}, time.Minute)
	assert.False(t, ok)
}

func TestManager_RemainingClampsAtZero(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(WithClock(clock))
	k := Key{Target: "lark", Platform: "twitch"}
	m.Record(k)

	clock.Advance(3 * time.Hour)
	ok, left := m.Check(k, time.Second)
	assert.True(t, ok)
	assert.Zero(t, left)
}

func TestManager_AcquireSingleWinner(t *testing.T) {
	m := NewManager()
	k := Key{Target: "lark", Platform: "twitch"}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := m.Acquire(k, time.Minute); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestManager_Sweep(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(WithClock(clock))
	m.Record(Key{Target: "old", Platform: "twitch"})
	clock.Advance(time.Hour)
	m.Record(Key{Target: "new", Platform: "twitch"})

	assert.Equal(t, 1, m.Sweep(30*time.Minute))
	assert.Equal(t, 1, m.Len())
}

func TestPolicy(t *testing.T) {
	p := Every(5 * time.Second)
	assert.Equal(t, 5*time.Second, p.For("twitch"))

	p = Policy{Platforms: map[string]time.Duration{"twitch": 30 * time.Second}}
	assert.Equal(t, 30*time.Second, p.For("twitch"))
	assert.Zero(t, p.For("discord"))
	assert.Equal(t, 30*time.Second, p.Max())
}

func TestFileStore_PersistAndRestore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cooldowns.json")
	cfg := DefaultFileConfig(path)
	cfg.Retention = 0

	store, err := NewFileStore(cfg)
	require.NoError(t, err)

	m := NewManager(WithStore(store))
	k := Key{Target: "lark", Platform: "twitch", Invoker: "bob"}
	m.Record(k)
	require.NoError(t, store.Close())

	reopened, err := NewFileStore(cfg)
	require.NoError(t, err)
	defer reopened.Close()

	restored := NewManager(WithStore(reopened))
	require.NoError(t, restored.Restore(context.Background()))
	ok, left := restored.Check(k, time.Hour)
	assert.False(t, ok)
	assert.Greater(t, left, 59*time.Minute)
}

func TestFileStore_Backups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cooldowns.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"lark|twitch|":1}`), 0o644))
	for i := 1; i <= 4; i++ {
		old := fmt.Sprintf("%s.backup.20000101_00000%d", path, i)
		require.NoError(t, os.WriteFile(old, []byte("{}"), 0o644))
	}

	cfg := DefaultFileConfig(path)
	cfg.Retention = 0
	store, err := NewFileStore(cfg)
	require.NoError(t, err)
	defer store.Close()

	store.Put(Key{Target: "a", Platform: "twitch"}, time.Now())
	require.NoError(t, store.Save())
	store.Put(Key{Target: "b", Platform: "twitch"}, time.Now())
	require.NoError(t, store.Save())

	backups, err := filepath.Glob(path + ".backup.*")
	require.NoError(t, err)
	require.Len(t, backups, 3)
	assert.NotContains(t, backups, path+".backup.20000101_000001")
	assert.NotContains(t, backups, path+".backup.20000101_000002")

	newest, err := os.ReadFile(backups[2])
	require.NoError(t, err)
	assert.JSONEq(t, `{"lark|twitch|":1}`, string(newest), "backup holds the file found at startup")
}

func TestRedisStore_PersistAndRestore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisStore(client, WithHashKey("test:cooldowns"))
	m := NewManager(WithStore(store))
	k := Key{Target: "lark", Platform: "discord"}
	m.Record(k)
	require.NoError(t, store.Close())

	assert.True(t, mr.Exists("test:cooldowns"))

	reopened := NewRedisStore(client, WithHashKey("test:cooldowns"))
	defer reopened.Close()
	restored := NewManager(WithStore(reopened))
	require.NoError(t, restored.Restore(context.Background()))
	ok, _ := restored.Check(k, time.Hour)
	assert.False(t, ok)
}

func TestRunCleaner_StopsOnCancel(t *testing.T) {
	m := NewManager()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunCleaner(ctx, m, time.Millisecond, func() time.Duration { return time.Hour })
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleaner did not stop")
	}
}
