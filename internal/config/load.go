package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/keshon/togglebot/internal/cooldown"
	"github.com/keshon/togglebot/pkg/action"
	"github.com/keshon/togglebot/pkg/argspec"
)

var validate = validator.New()

// defaultPlatforms are enabled when the configuration names none.
var defaultPlatforms = []Platform{
	{Name: "discord", Type: "discord"},
	{Name: "twitch", Type: "twitch"},
}

// LoadMerged reads the main document at path and the files it includes,
// folds them with Merge (includes in listed order, main document last) and
// validates the result. Every problem found is returned, joined.
func LoadMerged(path string) (*Config, error) {
	main, err := ReadDocument(path)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(main.Include)+1)
	var errs []error
	for _, inc := range main.Include {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(path), inc)
		}
		doc, err := ReadDocument(inc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(doc.Include) > 0 {
			log.Warn().Str("component", "config").Str("file", inc).Msg("include is only read in the main config, ignoring")
		}
		docs = append(docs, doc)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	docs = append(docs, main)

	cfg, err := Compile(Merge(docs...))
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		cfg.Files = append(cfg.Files, d.File)
	}
	return cfg, nil
}

// ReadDocument parses one YAML file.
func ReadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, &LoadError{File: path, Err: err}
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return Document{}, &LoadError{File: path, Err: fmt.Errorf("%w: %w", ErrInvalid, err)}
	}
	doc.File = path
	for i := range doc.Commands {
		doc.Commands[i].File = path
	}
	for i := range doc.Matches {
		doc.Matches[i].File = path
	}
	return doc, nil
}

// ParseDocument parses YAML bytes.
func ParseDocument(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

type compiler struct {
	doc       Document
	cfg       *Config
	platforms []string
	errs      []error
}

func (c *compiler) fail(file string, line int, path string, err error) {
	c.errs = append(c.errs, &LoadError{File: file, Line: line, Path: path, Err: err})
}

func (c *compiler) warn(format string, args ...any) {
	c.cfg.Warnings = append(c.cfg.Warnings, fmt.Sprintf(format, args...))
}

// Compile validates a merged document and builds the immutable Config.
func Compile(doc Document) (*Config, error) {
	c := &compiler{
		doc: doc,
		cfg: &Config{
			Trigger:   doc.Trigger,
			Functions: doc.Functions,
			Constants: make(action.Constants, len(doc.Constants)),
		},
	}
	if c.cfg.Trigger == "" {
		c.cfg.Trigger = DefaultTrigger
	}
	if strings.ContainsAny(c.cfg.Trigger, " \t\n") {
		c.fail(doc.File, 0, "trigger", fmt.Errorf("%w: trigger must not contain whitespace", ErrInvalid))
	}

	c.compilePlatforms()
	c.compileConstants()
	c.compileCommands()
	c.compileMatches()

	if len(c.errs) > 0 {
		return nil, errors.Join(c.errs...)
	}
	return c.cfg, nil
}

func (c *compiler) compilePlatforms() {
	if len(c.doc.Platforms) == 0 {
		c.cfg.Platforms = slices.Clone(defaultPlatforms)
	}
	names := make([]string, 0, len(c.doc.Platforms))
	for name := range c.doc.Platforms {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := c.doc.Platforms[name]
		if p.Type == "" && (name == "twitch" || name == "discord") {
			p.Type = name
		}
		if err := validate.Struct(p); err != nil {
			c.fail(c.doc.File, 0, "platforms."+name, fmt.Errorf("%w: %w", ErrInvalid, err))
			continue
		}
		c.cfg.Platforms = append(c.cfg.Platforms, Platform{
			Name:    name,
			Type:    p.Type,
			Login:   p.Login,
			Channel: p.Channel,
			Token:   p.Token,
		})
	}
	c.platforms = c.cfg.PlatformNames()
}

func (c *compiler) compileConstants() {
	for key, t := range c.doc.Constants {
		if strings.HasPrefix(key, "@") {
			if _, err := action.ParseFunctionRef(key); err != nil {
				c.fail(c.doc.File, t.Line, "constants."+key, err)
				continue
			}
		}
		for platform := range t.Platforms {
			if !slices.Contains(c.platforms, platform) {
				c.warn("constants.%s: platform %q is not configured", key, platform)
			}
		}
		c.cfg.Constants[key] = action.Table{Flat: t.Flat, Platforms: t.Platforms}
	}
}

// enabled resolves a platform restriction against the configured platforms.
func (c *compiler) enabled(file string, line int, path string, restrict StringList) []string {
	if len(restrict) == 0 {
		return slices.Clone(c.platforms)
	}
	out := make([]string, 0, len(restrict))
	for _, p := range restrict {
		if !slices.Contains(c.platforms, p) {
			c.fail(file, line, path+".platforms", fmt.Errorf("%w: unknown platform %q", ErrInvalid, p))
			continue
		}
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

func (c *compiler) args(file string, line int, path string, specs StringList) argspec.List {
	list, err := argspec.ParseList(specs)
	if err != nil {
		c.fail(file, line, path+".args", err)
	}
	return list
}

func (c *compiler) action(file string, path string, doc ActionDoc, platforms []string) action.Ref {
	if doc.IsZero() {
		c.fail(file, doc.Line, path+".action", fmt.Errorf("%w: action is required", ErrInvalid))
		return action.Ref{}
	}

	var ref action.Ref
	var err error
	if doc.Platforms != nil {
		ref, err = action.ParsePlatforms(doc.Platforms)
	} else {
		ref, err = action.Parse(doc.Text)
	}
	if err != nil {
		c.fail(file, doc.Line, path+".action", err)
		return action.Ref{}
	}

	if ref.Kind == action.PerPlatform {
		for p := range ref.Platforms {
			if !slices.Contains(c.platforms, p) {
				c.fail(file, doc.Line, path+".action", fmt.Errorf("%w: unknown platform %q", ErrInvalid, p))
			}
		}
		if missing := ref.Missing(platforms); len(missing) > 0 {
			c.warn("%s: action has no entry for %s", path, strings.Join(missing, ", "))
		}
	}

	for _, f := range ref.Functions() {
		if f.Namespace != "local" {
			continue
		}
		if _, ok := c.doc.Functions[f.Name]; !ok {
			c.fail(file, doc.Line, path+".action", fmt.Errorf("%w: unknown function %s", ErrInvalid, f))
		}
	}

	c.checkConstants(path, ref, platforms)
	return ref
}

// checkConstants warns about template references with no value on an
// enabled platform. They fail at dispatch time with a missing constant.
func (c *compiler) checkConstants(path string, ref action.Ref, platforms []string) {
	check := func(template string, on []string) {
		for _, name := range action.References(template) {
			i := strings.LastIndex(name, ".")
			for _, p := range on {
				if _, ok := c.cfg.Constants.Lookup(name[:i], name[i+1:], p); !ok {
					c.warn("%s: constant %s has no value on %s", path, name, p)
				}
			}
		}
	}
	switch ref.Kind {
	case action.Inline:
		check(ref.Template, platforms)
	case action.PerPlatform:
		for p, sub := range ref.Platforms {
			if sub.Kind == action.Inline {
				check(sub.Template, []string{p})
			}
		}
	}
}

// maxSeconds is the longest cooldown a time.Duration can hold.
const maxSeconds = float64(math.MaxInt64 / int64(time.Second))

// seconds converts a configured cooldown. Negative, non-finite and
// overflowing values are rejected.
func seconds(s float64) (time.Duration, error) {
	switch {
	case math.IsNaN(s) || math.IsInf(s, 0):
		return 0, fmt.Errorf("%w: cooldown must be a finite number of seconds", ErrInvalid)
	case s < 0:
		return 0, fmt.Errorf("%w: cooldown must not be negative", ErrInvalid)
	case s > maxSeconds:
		return 0, fmt.Errorf("%w: cooldown must be at most %.0f seconds", ErrInvalid, maxSeconds)
	}
	return time.Duration(s * float64(time.Second)), nil
}

func (c *compiler) cooldown(file, path string, doc *CooldownDoc, perPlatform bool) cooldown.Policy {
	if doc == nil {
		return cooldown.Policy{}
	}
	if doc.Platforms == nil {
		d, err := seconds(doc.Seconds)
		if err != nil {
			c.fail(file, doc.Line, path+".cooldown", err)
			return cooldown.Policy{}
		}
		return cooldown.Every(d)
	}
	if !perPlatform {
		c.fail(file, doc.Line, path+".cooldown", fmt.Errorf("%w: match cooldown must be a single number", ErrInvalid))
		return cooldown.Policy{}
	}
	policy := cooldown.Policy{Platforms: make(map[string]time.Duration, len(doc.Platforms))}
	for p, s := range doc.Platforms {
		d, err := seconds(s)
		if err != nil {
			c.fail(file, doc.Line, path+".cooldown."+p, err)
			continue
		}
		if !slices.Contains(c.platforms, p) {
			c.warn("%s.cooldown: platform %q is not configured", path, p)
		}
		policy.Platforms[p] = d
	}
	return policy
}

func (c *compiler) compileCommands() {
	type owner struct {
		command string
		file    string
	}
	// platform -> name or alias -> command that claimed it
	claimed := make(map[string]map[string]owner)

	for _, nc := range c.doc.Commands {
		path := "commands." + nc.Name
		if nc.Name == "" || strings.ContainsAny(nc.Name, " \t\n") {
			c.fail(nc.File, nc.Line, path, fmt.Errorf("%w: command name must be a single word", ErrInvalid))
			continue
		}

		cmd := &Command{
			Name:      nc.Name,
			Aliases:   []string(nc.Aliases),
			Platforms: c.enabled(nc.File, nc.Line, path, nc.Platforms),
		}
		cmd.Args = c.args(nc.File, nc.Line, path, nc.Args)
		cmd.Action = c.action(nc.File, path, nc.Action, cmd.Platforms)
		cmd.Cooldown = c.cooldown(nc.File, path, nc.Cooldown, true)

		for _, p := range cmd.Platforms {
			if claimed[p] == nil {
				claimed[p] = make(map[string]owner)
			}
			for _, name := range cmd.Names() {
				if strings.ContainsAny(name, " \t\n") || name == "" {
					c.fail(nc.File, nc.Line, path+".aliases", fmt.Errorf("%w: alias %q must be a single word", ErrInvalid, name))
					continue
				}
				if prev, ok := claimed[p][name]; ok {
					if prev.command == cmd.Name {
						continue
					}
					c.fail(nc.File, nc.Line, path, fmt.Errorf("%w: %q on %s is already used by command %s (%s)",
						ErrDuplicateName, name, p, prev.command, prev.file))
					continue
				}
				claimed[p][name] = owner{command: cmd.Name, file: nc.File}
			}
		}
		c.cfg.Commands = append(c.cfg.Commands, cmd)
	}
}

func (c *compiler) compileMatches() {
	for i, md := range c.doc.Matches {
		path := fmt.Sprintf("matches[%d]", i)
		m := &Match{
			Index:     i,
			Names:     []string(md.Names),
			Platforms: c.enabled(md.File, md.Line, path, md.Platforms),
		}

		switch {
		case len(md.Names) > 0 && md.Regex != "":
			c.fail(md.File, md.Line, path, fmt.Errorf("%w: names and regex are mutually exclusive", ErrInvalid))
		case len(md.Names) == 0 && md.Regex == "":
			c.fail(md.File, md.Line, path, fmt.Errorf("%w: one of names or regex is required", ErrInvalid))
		case md.Regex != "":
			re, err := regexp2.Compile(`\A(?:`+md.Regex+`)\z`, regexp2.None)
			if err != nil {
				c.fail(md.File, md.Line, path+".regex", fmt.Errorf("%w: %w", ErrInvalid, err))
				break
			}
			re.MatchTimeout = argspec.MatchTimeout
			m.Pattern, m.Regex = re, md.Regex
		}

		m.Args = c.args(md.File, md.Line, path, md.Args)
		m.Action = c.action(md.File, path, md.Action, m.Platforms)
		m.Cooldown = c.cooldown(md.File, path, md.Cooldown, false)
		c.cfg.Matches = append(c.cfg.Matches, m)
	}
}
