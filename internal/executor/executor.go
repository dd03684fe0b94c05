// Package executor runs dispatched instructions: it renders templates and
// invokes named functions.
package executor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/keshon/togglebot/internal/dispatch"
	"github.com/keshon/togglebot/pkg/action"
	"github.com/keshon/togglebot/pkg/cmd"
)

// ErrUnknownFunction is returned when a dispatched function reference has
// no registered implementation.
var ErrUnknownFunction = errors.New("unknown function")

// Executor runs the instructions produced by one engine.
type Executor struct {
	engine   *dispatch.Engine
	registry *cmd.Registry
	timeout  time.Duration
	mws      []cmd.Middleware

	client     *http.Client
	crateIndex string
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout bounds every function invocation. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(x *Executor) { x.timeout = d }
}

// WithMiddleware wraps every registered function, outermost last.
func WithMiddleware(mws ...cmd.Middleware) Option {
	return func(x *Executor) { x.mws = append(x.mws, mws...) }
}

// WithHTTPClient sets the client used by functions that call out, such as
// @tb/crate.
func WithHTTPClient(c *http.Client) Option {
	return func(x *Executor) { x.client = c }
}

// WithCrateIndex sets the base URL @tb/crate checks crate names against.
func WithCrateIndex(base string) Option {
	return func(x *Executor) { x.crateIndex = base }
}

// New builds an executor whose registry holds the built-in functions and the
// configuration's local functions.
func New(engine *dispatch.Engine, opts ...Option) (*Executor, error) {
	x := &Executor{
		engine:   engine,
		registry:   cmd.NewRegistry(),
		timeout:    5 * time.Second,
		client:     http.DefaultClient,
		crateIndex: DefaultCrateIndex,
	}
	for _, opt := range opts {
		opt(x)
	}

	var mws []cmd.Middleware
	if x.timeout > 0 {
		mws = append(mws, Timeout(x.timeout))
	}
	mws = append(mws, x.mws...)
	mws = append(mws, Logging())

	functions := append(x.builtins(), locals(engine.Config())...)
	for _, f := range functions {
		if err := x.registry.Register(cmd.Apply(f, mws...)); err != nil {
			return nil, err
		}
	}
	return x, nil
}

// Registry exposes the function registry.
func (x *Executor) Registry() *cmd.Registry { return x.registry }

// Execute produces the reply for a Dispatched result. Other outcomes yield
// an empty reply.
func (x *Executor) Execute(ctx context.Context, msg dispatch.Message, res dispatch.Result) (string, error) {
	if res.Outcome != dispatch.Dispatched || res.Instruction == nil {
		return "", nil
	}
	ins := res.Instruction

	switch ins.Kind {
	case action.Inline:
		return Render(ins.Template, res.Args, ins.Constants), nil
	case action.Function:
		return x.Invoke(ctx, ins.Function, &cmd.Invocation{
			Args:      res.Args,
			Platform:  msg.Platform,
			Sender:    msg.Sender,
			Channel:   msg.Channel,
			Constants: ins.Constants,
		})
	}
	return "", fmt.Errorf("cannot execute %s instruction", ins.Kind)
}

// Invoke runs the function registered for ref.
func (x *Executor) Invoke(ctx context.Context, ref action.FunctionRef, inv *cmd.Invocation) (string, error) {
	f := x.registry.Get(ref)
	if f == nil {
		return "", fmt.Errorf("%w %s", ErrUnknownFunction, ref)
	}
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	return f.Run(ctx, inv)
}
