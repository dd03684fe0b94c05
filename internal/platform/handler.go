// Package platform connects chat services to the dispatcher.
package platform

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keshon/togglebot/internal/config"
	"github.com/keshon/togglebot/internal/cooldown"
	"github.com/keshon/togglebot/internal/dispatch"
	"github.com/keshon/togglebot/internal/executor"
	"github.com/keshon/togglebot/internal/metrics"
)

// Conn is one live platform connection.
type Conn interface {
	Name() string
	Run(ctx context.Context) error
}

// Runtime pairs an engine with the executor for its instructions. Both are
// rebuilt together when the configuration changes.
type Runtime struct {
	Engine   *dispatch.Engine
	Executor *executor.Executor
}

// RuntimeOptions are the process settings a Runtime is built with.
type RuntimeOptions struct {
	PerInvoker      bool
	FunctionTimeout time.Duration
}

// NewRuntime builds the engine and executor for cfg. The cooldown manager
// outlives runtimes so that reloads keep running cooldowns.
func NewRuntime(cfg *config.Config, cooldowns *cooldown.Manager, opts RuntimeOptions) (*Runtime, error) {
	engine := dispatch.New(cfg, cooldowns, dispatch.WithPerInvoker(opts.PerInvoker))
	x, err := executor.New(engine, executor.WithTimeout(opts.FunctionTimeout))
	if err != nil {
		return nil, err
	}
	return &Runtime{Engine: engine, Executor: x}, nil
}

// Handler turns inbound messages into replies. It is shared by every
// connection and safe for concurrent use.
type Handler struct {
	current atomic.Pointer[Runtime]
	metrics *metrics.Metrics
}

// NewHandler returns a handler serving rt. m may be nil.
func NewHandler(rt *Runtime, m *metrics.Metrics) *Handler {
	h := &Handler{metrics: m}
	h.current.Store(rt)
	return h
}

// Swap makes rt serve every message from now on. Messages already being
// handled finish with the previous runtime.
func (h *Handler) Swap(rt *Runtime) {
	h.current.Store(rt)
	if h.metrics != nil {
		h.metrics.Reloaded()
	}
}

// Runtime returns the runtime currently serving messages.
func (h *Handler) Runtime() *Runtime { return h.current.Load() }

// Handle dispatches msg and returns the reply to post, if any. Argument
// errors are answered with their message; cooldowns and configuration gaps
// stay silent.
func (h *Handler) Handle(ctx context.Context, msg dispatch.Message) (string, bool) {
	start := time.Now()
	rt := h.current.Load()
	res := rt.Engine.Dispatch(msg)
	if h.metrics != nil {
		h.metrics.Dispatch(msg.Platform, res.Outcome.String())
	}

	logger := log.With().
		Str("component", "platform").
		Str("platform", msg.Platform).
		Str("sender", msg.Sender).
		Str("target", res.Target.String()).
		Logger()

	switch res.Outcome {
	case dispatch.NoMatch:
		return "", false
	case dispatch.ArgumentError:
		logger.Debug().Str("reason", res.Message).Msg("rejected arguments")
		return res.Message, res.Message != ""
	case dispatch.OnCooldown:
		logger.Debug().Dur("remaining", res.Remaining).Msg("on cooldown")
		return "", false
	case dispatch.ResolveFailed:
		logger.Warn().Err(res.Err).Msg("configuration gap")
		return "", false
	}

	reply, err := rt.Executor.Execute(ctx, msg, res)
	if h.metrics != nil {
		h.metrics.Observe(msg.Platform, time.Since(start))
	}
	if err != nil {
		if h.metrics != nil {
			h.metrics.FunctionError(msg.Platform)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Error().Err(err).Msg("function timed out")
		} else {
			logger.Error().Err(err).Msg("execution failed")
		}
		return "Sorry, something went wrong", true
	}
	return reply, reply != ""
}
