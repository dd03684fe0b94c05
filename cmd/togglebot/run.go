package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"slices"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/keshon/togglebot/internal/config"
	"github.com/keshon/togglebot/internal/cooldown"
	"github.com/keshon/togglebot/internal/metrics"
	"github.com/keshon/togglebot/internal/platform"
	"github.com/keshon/togglebot/internal/platform/discord"
	"github.com/keshon/togglebot/internal/platform/twitch"
	"github.com/keshon/togglebot/pkg/jobmgr"
)

const (
	cleanInterval = time.Minute
	minRetention  = time.Hour
)

// supportJobs only serve the platform connections.
var supportJobs = []string{"metrics", "config-watch"}

func newRunCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to every configured platform and answer messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, g.env, g.configPath)
		},
	}
}

func run(ctx context.Context, env *config.Env, path string) error {
	log.Info().Str("version", version).Str("config", path).Msg("starting togglebot")

	cfg, err := config.LoadMerged(path)
	if err != nil {
		return err
	}
	for _, w := range cfg.Warnings {
		log.Warn().Str("component", "config").Msg(w)
	}

	store, err := openStore(ctx, env)
	if err != nil {
		return err
	}
	defer func() {
		if store == nil {
			return
		}
		if err := store.Close(); err != nil {
			log.Error().Err(err).Str("component", "cooldown").Msg("closing store")
		}
	}()

	var opts []cooldown.Option
	if store != nil {
		opts = append(opts, cooldown.WithStore(store))
	}
	cooldowns := cooldown.NewManager(opts...)
	if err := cooldowns.Restore(ctx); err != nil {
		log.Warn().Err(err).Str("component", "cooldown").Msg("could not restore cooldowns")
	}

	var retention atomic.Int64
	retention.Store(int64(longestCooldown(cfg)))
	go cooldown.RunCleaner(ctx, cooldowns, cleanInterval, func() time.Duration {
		return time.Duration(retention.Load())
	})

	rtOpts := platform.RuntimeOptions{
		PerInvoker:      env.PerInvokerCooldown,
		FunctionTimeout: env.FunctionTimeout,
	}
	rt, err := platform.NewRuntime(cfg, cooldowns, rtOpts)
	if err != nil {
		return err
	}
	m := metrics.New("")
	h := platform.NewHandler(rt, m)

	jm := jobmgr.NewManager(ctx, nil)
	if env.MetricsAddr != "" {
		if err := jm.StartAsync("metrics", func(ctx context.Context) error {
			return m.Serve(ctx, env.MetricsAddr)
		}); err != nil {
			return err
		}
	}
	if env.WatchConfig {
		if err := jm.StartAsync("config-watch", func(ctx context.Context) error {
			return config.Watch(ctx, path, cfg, func(next *config.Config) {
				rt, err := platform.NewRuntime(next, cooldowns, rtOpts)
				if err != nil {
					log.Error().Err(err).Str("component", "config").Msg("reload rejected")
					return
				}
				retention.Store(int64(longestCooldown(next)))
				h.Swap(rt)
				log.Info().Str("component", "config").Int("commands", len(next.Commands)).Msg("configuration reloaded")
			})
		}); err != nil {
			return err
		}
	}

	conns := connect(cfg, h)
	if len(conns) == 0 {
		return errors.New("no platform could be started")
	}
	var live atomic.Int32
	live.Store(int32(len(conns)))
	for _, c := range conns {
		if err := jm.StartAsync(c.Name(), func(ctx context.Context) error {
			defer func() {
				if live.Add(-1) == 0 {
					stopSupportJobs(jm)
				}
			}()
			return c.Run(ctx)
		}); err != nil {
			return err
		}
	}
	go func() {
		<-ctx.Done()
		log.Info().Str("jobs", jm.Status()).Msg("shutting down")
	}()

	err = jm.Wait()
	log.Info().Msg("togglebot exited")
	return err
}

// stopSupportJobs cancels the support jobs once no platform is left, so Wait
// can return.
func stopSupportJobs(jm *jobmgr.Manager) {
	for _, name := range jm.List() {
		if slices.Contains(supportJobs, name) {
			_ = jm.Stop(name)
		}
	}
}

// openStore returns the configured cooldown store, or nil for memory only.
func openStore(ctx context.Context, env *config.Env) (cooldown.Store, error) {
	switch env.CooldownStore {
	case "file":
		fs, err := cooldown.NewFileStore(cooldown.DefaultFileConfig(env.CooldownFile))
		if err != nil {
			return nil, fmt.Errorf("cooldown file: %w", err)
		}
		return fs, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: env.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis %s: %w", env.RedisAddr, err)
		}
		return &closingStore{
			Store:  cooldown.NewRedisStore(client, cooldown.WithExpiry(24*time.Hour)),
			client: client,
		}, nil
	}
	return nil, nil
}

// closingStore closes the redis client after the store's final flush.
type closingStore struct {
	cooldown.Store
	client *redis.Client
}

func (s *closingStore) Close() error {
	return errors.Join(s.Store.Close(), s.client.Close())
}

// connect builds one connection per configured platform. Platforms that
// cannot be built are logged and skipped.
func connect(cfg *config.Config, h *platform.Handler) []platform.Conn {
	var conns []platform.Conn
	for _, p := range cfg.Platforms {
		var (
			c   platform.Conn
			err error
		)
		switch p.Type {
		case "discord":
			c, err = discord.New(p, h)
		case "twitch":
			c, err = twitch.New(p, h)
		default:
			err = fmt.Errorf("unsupported platform type %q", p.Type)
		}
		if err != nil {
			log.Error().Err(err).Str("platform", p.Name).Msg("skipping platform")
			continue
		}
		conns = append(conns, c)
	}
	return conns
}

// longestCooldown is how long records must be kept for cfg.
func longestCooldown(cfg *config.Config) time.Duration {
	longest := minRetention
	for _, c := range cfg.Commands {
		longest = max(longest, c.Cooldown.Max())
	}
	for _, m := range cfg.Matches {
		longest = max(longest, m.Cooldown.Max())
	}
	return longest
}
