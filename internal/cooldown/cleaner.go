package cooldown

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// RunCleaner drops records older than maxAge() every interval until ctx is
// done. maxAge should report at least the longest configured cooldown; it is
// asked again on every sweep so that reloads are honored.
func RunCleaner(ctx context.Context, m *Manager, interval time.Duration, maxAge func() time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(maxAge()); n > 0 {
				log.Debug().Str("component", "cooldown").Int("removed", n).Msg("swept expired cooldowns")
			}
		}
	}
}
