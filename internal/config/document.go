package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Document is one YAML file as written, before merging and validation.
type Document struct {
	Trigger   string                 `yaml:"trigger"`
	Include   StringList             `yaml:"include"`
	Platforms map[string]PlatformDoc `yaml:"platforms"`
	Commands  CommandSet             `yaml:"commands"`
	Matches   []MatchDoc             `yaml:"matches"`
	Functions map[string]string      `yaml:"functions"`
	Constants map[string]ConstantDoc `yaml:"constants"`

	// File is the path the document was read from.
	File string `yaml:"-"`
}

// StringList accepts a single string or a list of strings.
type StringList []string

func (s *StringList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		*s = StringList{n.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := n.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	}
	return fmt.Errorf("line %d: expected a string or a list of strings", n.Line)
}

// PlatformDoc is one entry of the platforms section. Type may be omitted
// when the entry is named twitch or discord.
type PlatformDoc struct {
	Type    string `yaml:"type" validate:"required,oneof=twitch discord"`
	Login   string `yaml:"login" validate:"required_if=Type twitch"`
	Channel string `yaml:"channel" validate:"required_if=Type twitch"`
	Token   string `yaml:"token"`
}

// CooldownDoc is a number of seconds, or a mapping of platform to seconds.
type CooldownDoc struct {
	Seconds   float64
	Platforms map[string]float64
	Line      int
}

func (c *CooldownDoc) UnmarshalYAML(n *yaml.Node) error {
	c.Line = n.Line
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Decode(&c.Seconds)
	case yaml.MappingNode:
		return n.Decode(&c.Platforms)
	}
	return fmt.Errorf("line %d: cooldown must be a number or a mapping of platform to number", n.Line)
}

// ActionDoc is a template or function reference, or a mapping of platform to
// either.
type ActionDoc struct {
	Text      string
	Platforms map[string]string
	Line      int
}

func (a *ActionDoc) UnmarshalYAML(n *yaml.Node) error {
	a.Line = n.Line
	switch n.Kind {
	case yaml.ScalarNode:
		a.Text = n.Value
		return nil
	case yaml.MappingNode:
		return n.Decode(&a.Platforms)
	}
	return fmt.Errorf("line %d: action must be a string or a mapping of platform to string", n.Line)
}

// IsZero reports whether no action was written.
func (a ActionDoc) IsZero() bool {
	return a.Text == "" && a.Platforms == nil
}

// CommandDoc is one entry of the commands section. A bare string is read as
// an action with every other field left empty.
type CommandDoc struct {
	Args      StringList   `yaml:"args"`
	Action    ActionDoc    `yaml:"action"`
	Cooldown  *CooldownDoc `yaml:"cooldown"`
	Aliases   StringList   `yaml:"aliases"`
	Platforms StringList   `yaml:"platforms"`

	Line int    `yaml:"-"`
	File string `yaml:"-"`
}

func (c *CommandDoc) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		*c = CommandDoc{Action: ActionDoc{Text: n.Value, Line: n.Line}, Line: n.Line}
		return nil
	}
	type plain CommandDoc
	var p plain
	if err := n.Decode(&p); err != nil {
		return err
	}
	*c = CommandDoc(p)
	c.Line = n.Line
	return nil
}

// NamedCommand pairs a command with its name.
type NamedCommand struct {
	Name string
	CommandDoc
}

// CommandSet keeps commands in the order they were written.
type CommandSet []NamedCommand

func (s *CommandSet) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: commands must be a mapping of name to command", n.Line)
	}
	out := make(CommandSet, 0, len(n.Content)/2)
	// name -> line of its first definition
	seen := make(map[string]int, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i]
		if line, ok := seen[key.Value]; ok {
			return fmt.Errorf("line %d: %w: command %q already defined at line %d", key.Line, ErrDuplicateName, key.Value, line)
		}
		seen[key.Value] = key.Line

		var doc CommandDoc
		if err := n.Content[i+1].Decode(&doc); err != nil {
			return err
		}
		out = append(out, NamedCommand{Name: key.Value, CommandDoc: doc})
	}
	*s = out
	return nil
}

// MatchDoc is one entry of the matches section: exactly one of Names and
// Regex is set.
type MatchDoc struct {
	Names     StringList   `yaml:"names"`
	Regex     string       `yaml:"regex"`
	Platforms StringList   `yaml:"platforms"`
	Args      StringList   `yaml:"args"`
	Action    ActionDoc    `yaml:"action"`
	Cooldown  *CooldownDoc `yaml:"cooldown"`

	Line int    `yaml:"-"`
	File string `yaml:"-"`
}

func (m *MatchDoc) UnmarshalYAML(n *yaml.Node) error {
	type plain MatchDoc
	var p plain
	if err := n.Decode(&p); err != nil {
		return err
	}
	*m = MatchDoc(p)
	m.Line = n.Line
	return nil
}

// ConstantDoc is one constants table. Scalar values are shared by every
// platform; mapping values are per-platform sub-tables.
type ConstantDoc struct {
	Flat      map[string]string
	Platforms map[string]map[string]string
	Line      int
}

func (c *ConstantDoc) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: constants table must be a mapping", n.Line)
	}
	c.Line = n.Line
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i].Value, n.Content[i+1]
		switch value.Kind {
		case yaml.ScalarNode:
			if c.Flat == nil {
				c.Flat = make(map[string]string)
			}
			c.Flat[key] = value.Value
		case yaml.MappingNode:
			var sub map[string]string
			if err := value.Decode(&sub); err != nil {
				return fmt.Errorf("line %d: constants %s: %w", value.Line, key, err)
			}
			if c.Platforms == nil {
				c.Platforms = make(map[string]map[string]string)
			}
			c.Platforms[key] = sub
		default:
			return fmt.Errorf("line %d: constant %s must be a scalar or a mapping", value.Line, key)
		}
	}
	return nil
}
