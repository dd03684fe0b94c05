// Package docs renders a Markdown reference of the configured commands.
package docs

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/rs/zerolog/log"

	"github.com/keshon/togglebot/internal/config"
	"github.com/keshon/togglebot/pkg/action"
)

// DefaultTemplate is used when no template file is given.
const DefaultTemplate = `# Commands

{{range .Platforms}}## {{.Name}}

{{range .Commands}}- **{{.Usage}}**{{if .Aliases}} (or {{join .Aliases ", "}}){{end}}: {{.Action}}{{if .Cooldown}} _{{.Cooldown}} cooldown_{{end}}
{{else}}_No commands._
{{end}}
{{end}}`

// Entry is one command as shown on one platform.
type Entry struct {
	Usage    string
	Aliases  []string
	Action   string
	Cooldown string
}

// Section groups the commands of one platform.
type Section struct {
	Name     string
	Commands []Entry
}

// Sections lists the commands available on every configured platform.
func Sections(cfg *config.Config) []Section {
	out := make([]Section, 0, len(cfg.Platforms))
	for _, p := range cfg.Platforms {
		s := Section{Name: p.Name}
		for _, c := range cfg.Commands {
			if !c.Enabled(p.Name) {
				continue
			}
			e := Entry{
				Usage:   usage(cfg.Trigger, c),
				Aliases: c.Aliases,
				Action:  describe(c.Action, p.Name),
			}
			if d := c.Cooldown.For(p.Name); d > 0 {
				e.Cooldown = d.String()
			}
			s.Commands = append(s.Commands, e)
		}
		out = append(out, s)
	}
	return out
}

func usage(trigger string, c *config.Command) string {
	parts := []string{trigger + c.Name}
	for _, d := range c.Args {
		if d.Optional() {
			parts = append(parts, "["+d.TypeName()+"]")
		} else {
			parts = append(parts, "<"+d.TypeName()+">")
		}
	}
	return strings.Join(parts, " ")
}

func describe(ref action.Ref, platform string) string {
	if ref.Kind == action.PerPlatform {
		sub, ok := ref.Platforms[platform]
		if !ok {
			return "not available"
		}
		ref = sub
	}
	if ref.Kind == action.Function {
		return "`" + ref.Function.String() + "`"
	}
	return strings.ReplaceAll(ref.Template, "\n", " ")
}

// Render writes the reference for cfg using tmpl, or DefaultTemplate when
// tmpl is empty.
func Render(w io.Writer, cfg *config.Config, tmpl string) error {
	if tmpl == "" {
		tmpl = DefaultTemplate
	}
	t, err := template.New("commands").Funcs(template.FuncMap{"join": strings.Join}).Parse(tmpl)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	return t.Execute(w, struct {
		Trigger   string
		Platforms []Section
	}{cfg.Trigger, Sections(cfg)})
}

// WriteFile renders the reference into path. tmplPath may be empty.
func WriteFile(cfg *config.Config, tmplPath, path string) error {
	var tmpl string
	if tmplPath != "" {
		data, err := os.ReadFile(tmplPath)
		if err != nil {
			return err
		}
		tmpl = string(data)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := Render(f, cfg, tmpl); err != nil {
		return err
	}
	log.Info().Str("component", "docs").Str("path", path).Msg("command reference updated")
	return nil
}
