// Package dispatch turns chat messages into resolved actions.
package dispatch

import (
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/keshon/togglebot/internal/config"
	"github.com/keshon/togglebot/internal/cooldown"
	"github.com/keshon/togglebot/pkg/action"
	"github.com/keshon/togglebot/pkg/argspec"
)

// Message is one inbound chat message.
type Message struct {
	Platform string
	Text     string
	Sender   string
	Channel  string
}

// Outcome is the terminal state of a dispatch.
type Outcome int

const (
	NoMatch Outcome = iota
	ArgumentError
	OnCooldown
	ResolveFailed
	Dispatched
)

func (o Outcome) String() string {
	switch o {
	case NoMatch:
		return "no_match"
	case ArgumentError:
		return "argument_error"
	case OnCooldown:
		return "on_cooldown"
	case ResolveFailed:
		return "resolve_failed"
	case Dispatched:
		return "dispatched"
	}
	return "unknown"
}

// Result describes what happened to a message. Target is set for every
// outcome except NoMatch.
type Result struct {
	Outcome Outcome
	Target  Target

	// Args holds the bound arguments once binding succeeded.
	Args []argspec.Value
	// Message is the user facing text of an ArgumentError.
	Message string
	// Remaining is how long an OnCooldown target still cools down.
	Remaining time.Duration
	// Err is the *action.ResolveError of a ResolveFailed result.
	Err error
	// Instruction is set when the message was Dispatched.
	Instruction *action.Instruction
}

// Target is the command or match a message selected.
type Target struct {
	Command *config.Command
	Match   *config.Match
}

// ID is the stable identity of the target, used as its cooldown key.
func (t Target) ID() string {
	switch {
	case t.Command != nil:
		return "command:" + t.Command.Name
	case t.Match != nil:
		return "match:" + strconv.Itoa(t.Match.Index)
	}
	return ""
}

func (t Target) String() string {
	switch {
	case t.Command != nil:
		return "command " + t.Command.Name
	case t.Match != nil:
		return t.Match.String()
	}
	return "none"
}

func (t Target) args() argspec.List {
	if t.Command != nil {
		return t.Command.Args
	}
	return t.Match.Args
}

func (t Target) cooldown() cooldown.Policy {
	if t.Command != nil {
		return t.Command.Cooldown
	}
	return t.Match.Cooldown
}

func (t Target) action() action.Ref {
	if t.Command != nil {
		return t.Command.Action
	}
	return t.Match.Action
}

// Engine dispatches messages against one immutable configuration. It is safe
// for concurrent use.
type Engine struct {
	cfg        *config.Config
	cooldowns  *cooldown.Manager
	perInvoker bool

	// platform -> name or alias -> command
	commands map[string]map[string]*config.Command
	// platform -> matches in declared order
	matches map[string][]*config.Match
}

// Option configures an Engine.
type Option func(*Engine)

// WithPerInvoker scopes cooldowns to the sender as well as the target and
// platform.
func WithPerInvoker(enabled bool) Option {
	return func(e *Engine) { e.perInvoker = enabled }
}

// New indexes cfg for dispatch. The cooldown manager may be shared by
// successive engines so that a reload keeps running cooldowns.
func New(cfg *config.Config, cooldowns *cooldown.Manager, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		cooldowns: cooldowns,
		commands:  make(map[string]map[string]*config.Command),
		matches:   make(map[string][]*config.Match),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, c := range cfg.Commands {
		for _, p := range c.Platforms {
			if e.commands[p] == nil {
				e.commands[p] = make(map[string]*config.Command)
			}
			for _, name := range c.Names() {
				e.commands[p][name] = c
			}
		}
	}
	for _, m := range cfg.Matches {
		for _, p := range m.Platforms {
			e.matches[p] = append(e.matches[p], m)
		}
	}
	return e
}

// Config returns the configuration the engine was built from.
func (e *Engine) Config() *config.Config { return e.cfg }

// Commands lists the commands enabled on platform in declared order.
func (e *Engine) Commands(platform string) []*config.Command {
	var out []*config.Command
	for _, c := range e.cfg.Commands {
		if c.Enabled(platform) {
			out = append(out, c)
		}
	}
	return out
}

// Dispatch runs msg through command lookup, match scanning, argument
// binding, the cooldown check and action resolution. Every branch ends in a
// Result; none of them is an error of the engine itself.
func (e *Engine) Dispatch(msg Message) Result {
	tokens := strings.Fields(msg.Text)
	if len(tokens) == 0 {
		return Result{Outcome: NoMatch}
	}

	cand, ok := e.lookupCommand(msg.Platform, tokens)
	if !ok {
		cand, ok = e.scanMatches(msg, tokens)
	}
	if !ok {
		return Result{Outcome: NoMatch}
	}

	res := Result{Target: cand.target}

	args, err := cand.bind()
	if err != nil {
		res.Outcome = ArgumentError
		var f *argspec.Failure
		if errors.As(err, &f) {
			res.Message = f.Message
		} else {
			res.Message = err.Error()
		}
		return res
	}
	res.Args = args

	key := cooldown.Key{Target: cand.target.ID(), Platform: msg.Platform}
	if e.perInvoker {
		key.Invoker = msg.Sender
	}
	d := cand.target.cooldown().For(msg.Platform)
	if eligible, remaining := e.cooldowns.Check(key, d); !eligible {
		res.Outcome, res.Remaining = OnCooldown, remaining
		return res
	}

	ins, err := action.Resolve(cand.target.action(), msg.Platform, e.cfg.Constants)
	if err != nil {
		log.Warn().Err(err).Str("component", "dispatch").Str("target", cand.target.String()).Msg("action did not resolve")
		res.Outcome, res.Err = ResolveFailed, err
		return res
	}

	if won, remaining := e.cooldowns.Acquire(key, d); !won {
		res.Outcome, res.Remaining = OnCooldown, remaining
		return res
	}
	res.Outcome, res.Instruction = Dispatched, ins
	return res
}

// candidate is a selected target together with its raw input: the tokens
// after the first, or the capture groups of a regex match.
type candidate struct {
	target Target
	tokens []string
	groups []argspec.Value
	regex  bool
}

// bind validates the raw input against the target's argument specs. Targets
// declaring no arguments receive their raw input unvalidated.
func (c candidate) bind() ([]argspec.Value, error) {
	list := c.target.args()
	if c.regex && len(c.groups) > 0 {
		if len(list) == 0 {
			return c.groups, nil
		}
		return list.BindEach(c.groups)
	}
	if len(list) == 0 {
		values := make([]argspec.Value, len(c.tokens))
		for i, t := range c.tokens {
			values[i] = argspec.Value{Text: t, Present: true}
		}
		return values, nil
	}
	return list.Bind(c.tokens)
}

func (e *Engine) lookupCommand(platform string, tokens []string) (candidate, bool) {
	trigger := e.cfg.Trigger
	name, found := strings.CutPrefix(tokens[0], trigger)
	if !found || name == "" {
		return candidate{}, false
	}
	cmd, ok := e.commands[platform][name]
	if !ok {
		return candidate{}, false
	}
	return candidate{target: Target{Command: cmd}, tokens: tokens[1:]}, true
}

func (e *Engine) scanMatches(msg Message, tokens []string) (candidate, bool) {
	text := strings.TrimSpace(msg.Text)
	for _, m := range e.matches[msg.Platform] {
		if m.Pattern == nil {
			if slices.Contains(m.Names, tokens[0]) {
				return candidate{target: Target{Match: m}, tokens: tokens[1:]}, true
			}
			continue
		}

		found, err := m.Pattern.FindStringMatch(text)
		if err != nil {
			log.Warn().Err(err).Str("component", "dispatch").Str("target", m.String()).Msg("regex match aborted")
			continue
		}
		if found == nil {
			continue
		}
		c := candidate{target: Target{Match: m}, tokens: tokens[1:], regex: true}
		for _, g := range found.Groups()[1:] {
			if len(g.Captures) == 0 {
				c.groups = append(c.groups, argspec.Absent)
				continue
			}
			c.groups = append(c.groups, argspec.Value{Text: g.String(), Present: true})
		}
		return c, true
	}
	return candidate{}, false
}
