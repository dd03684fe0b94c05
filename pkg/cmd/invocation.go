// Package cmd provides a transport-agnostic function core: a function is
// something with a name, a description and Run(ctx, invocation). Chat
// platforms reach it through the dispatcher, which only knows references of
// the form @namespace/name.
package cmd

import (
	"context"

	"github.com/keshon/togglebot/pkg/argspec"
)

// Invocation carries everything a function may use: bound arguments, where
// the message came from and the constants resolved for it.
type Invocation struct {
	ID        string
	Args      []argspec.Value
	Platform  string
	Sender    string
	Channel   string
	Constants map[string]string
}

// Command is the universal contract: identity plus execution. Run returns the
// reply to post, which may be empty.
type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) (string, error)
}

// Func adapts a plain function to Command.
type Func struct {
	FuncName string
	Desc     string
	RunFunc  func(ctx context.Context, inv *Invocation) (string, error)
}

func (f *Func) Name() string        { return f.FuncName }
func (f *Func) Description() string { return f.Desc }

func (f *Func) Run(ctx context.Context, inv *Invocation) (string, error) {
	return f.RunFunc(ctx, inv)
}
