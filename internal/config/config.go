// Package config loads the bot's YAML configuration and the process
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/keshon/togglebot/internal/cooldown"
	"github.com/keshon/togglebot/pkg/action"
	"github.com/keshon/togglebot/pkg/argspec"
)

// DefaultTrigger prefixes command names.
const DefaultTrigger = "!"

var (
	ErrDuplicateName = errors.New("duplicate command name")
	ErrInvalid       = errors.New("invalid configuration")
)

// LoadError locates one problem in the configuration.
type LoadError struct {
	File string
	Line int
	Path string // e.g. commands.lark.args[1]
	Err  error
}

func (e *LoadError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d", e.Line)
		}
		b.WriteString(": ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *LoadError) Unwrap() error { return e.Err }

// Platform is a configured chat connection.
type Platform struct {
	Name    string
	Type    string
	Login   string
	Channel string
	Token   string
}

// Credential returns the token, falling back to the <NAME>_TOKEN
// environment variable.
func (p Platform) Credential() string {
	if p.Token != "" {
		return p.Token
	}
	return os.Getenv(strings.ToUpper(p.Name) + "_TOKEN")
}

// Command is a compiled entry of the commands section.
type Command struct {
	Name      string
	Aliases   []string
	Args      argspec.List
	Action    action.Ref
	Cooldown  cooldown.Policy
	Platforms []string
}

// Enabled reports whether the command answers on platform.
func (c *Command) Enabled(platform string) bool {
	return slices.Contains(c.Platforms, platform)
}

// Names returns the name followed by the aliases.
func (c *Command) Names() []string {
	return append([]string{c.Name}, c.Aliases...)
}

// Match is a compiled entry of the matches section. Exactly one of Names and
// Pattern is set.
type Match struct {
	Index     int
	Names     []string
	Pattern   *regexp2.Regexp
	Regex     string
	Args      argspec.List
	Action    action.Ref
	Cooldown  cooldown.Policy
	Platforms []string
}

// Enabled reports whether the match applies on platform.
func (m *Match) Enabled(platform string) bool {
	return slices.Contains(m.Platforms, platform)
}

func (m *Match) String() string {
	if m.Pattern != nil {
		return fmt.Sprintf("match[%d] /%s/", m.Index, m.Regex)
	}
	return fmt.Sprintf("match[%d] %s", m.Index, strings.Join(m.Names, ","))
}

// Config is the merged and validated configuration. It is never modified
// after LoadMerged returns it.
type Config struct {
	Trigger   string
	Platforms []Platform
	Commands  []*Command
	Matches   []*Match
	Functions map[string]string
	Constants action.Constants

	// Files lists every file read, main document last.
	Files []string
	// Warnings are problems that do not prevent startup.
	Warnings []string
}

// PlatformNames returns the configured platform names in order.
func (c *Config) PlatformNames() []string {
	names := make([]string, len(c.Platforms))
	for i, p := range c.Platforms {
		names[i] = p.Name
	}
	return names
}

// Platform looks up a platform by name.
func (c *Config) Platform(name string) (Platform, bool) {
	for _, p := range c.Platforms {
		if p.Name == name {
			return p, true
		}
	}
	return Platform{}, false
}
