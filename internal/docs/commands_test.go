package docs

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/togglebot/internal/config"
)

const source = `
platforms:
  twitch: {login: bot, channel: chan}
  discord: {}
commands:
  lark:
    args: ["string!<!>who?", "string?"]
    action: "{} is a lark!"
    aliases: [bird]
    cooldown: 30
  links: "@tb/links"
  hello:
    action:
      discord: hi discord
`

func compile(t *testing.T) *config.Config {
	t.Helper()
	doc, err := config.ParseDocument([]byte(source))
	require.NoError(t, err)
	cfg, err := config.Compile(doc)
	require.NoError(t, err)
	return cfg
}

func TestSections(t *testing.T) {
	sections := Sections(compile(t))
	require.Len(t, sections, 2)
	assert.Equal(t, "discord", sections[0].Name)

	twitch := sections[1]
	require.Len(t, twitch.Commands, 3)
	assert.Equal(t, Entry{
		Usage:    "!lark <string> [string]",
		Aliases:  []string{"bird"},
		Action:   "{} is a lark!",
		Cooldown: "30s",
	}, twitch.Commands[0])
	assert.Equal(t, "`@tb/links`", twitch.Commands[1].Action)
	assert.Equal(t, "not available", twitch.Commands[2].Action)
	assert.Equal(t, "hi discord", sections[0].Commands[2].Action)
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, compile(t), ""))
	out := buf.String()
	assert.Contains(t, out, "## twitch\n")
	assert.Contains(t, out, "- **!lark <string> [string]** (or bird): {} is a lark! _30s cooldown_\n")

	buf.Reset()
	require.NoError(t, Render(&buf, compile(t), "{{.Trigger}}{{len .Platforms}}"))
	assert.Equal(t, "!2", buf.String())

	assert.Error(t, Render(&buf, compile(t), "{{"))
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "COMMANDS.md.tmpl")
	require.NoError(t, os.WriteFile(tmpl, []byte("{{range .Platforms}}{{.Name}} {{end}}"), 0o644))
	out := filepath.Join(dir, "COMMANDS.md")

	require.NoError(t, WriteFile(compile(t), tmpl, out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "discord twitch ", string(data))
}
