package executor

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keshon/togglebot/pkg/cmd"
)

// Logging logs every invocation with its id, platform and duration.
func Logging() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) (string, error) {
			start := time.Now()
			out, err := c.Run(ctx, inv)
			ev := log.Debug()
			if err != nil {
				ev = log.Error().Err(err)
			}
			ev.Str("component", "executor").
				Str("function", c.Name()).
				Str("invocation", inv.ID).
				Str("platform", inv.Platform).
				Str("sender", inv.Sender).
				Dur("took", time.Since(start)).
				Msg("function invoked")
			return out, err
		})
	}
}

// Timeout cancels the invocation's context after d and returns the context
// error if the function has not finished by then.
func Timeout(d time.Duration) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) (string, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			type result struct {
				out string
				err error
			}
			done := make(chan result, 1)
			go func() {
				out, err := c.Run(ctx, inv)
				done <- result{out, err}
			}()

			select {
			case r := <-done:
				return r.out, r.err
			case <-ctx.Done():
				return "", ctx.Err()
			}
		})
	}
}
