package cooldown

import (
	"context"
	"time"
)

// Store persists last-fired times so cooldowns survive a restart.
//
// Put is called on the dispatch path with the shard lock released and must
// not block; implementations buffer and flush in the background.
type Store interface {
	Load(ctx context.Context) (map[Key]time.Time, error)
	Put(k Key, at time.Time)
	Close() error
}
