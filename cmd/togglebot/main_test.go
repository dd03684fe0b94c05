package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/togglebot/internal/config"
	"github.com/keshon/togglebot/internal/cooldown"
	"github.com/keshon/togglebot/pkg/jobmgr"
)

const testConfig = `
platforms:
  twitch: {login: bot, channel: chan, token: x}
  discord: {token: y}
commands:
  lark:
    args: "string!<!>Who is the lark?"
    action: "{} is a lark!"
    cooldown: 30
  links: "@tb/links"
  only:
    platforms: [discord]
    action: hi
constants:
  "@tb/links":
    github: https://github.com/togglebit
`

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o644))
	t.Setenv("CONFIG_PATH", path)

	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func TestCheck(t *testing.T) {
	out, _, err := execute(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "platforms: discord, twitch")
	assert.Contains(t, out, "!lark cooldown 30s [discord,twitch]")
	assert.Contains(t, out, "!only [discord]")
	assert.Contains(t, out, "  @tb/links: ")
	assert.NotContains(t, out, "unknown function")
}

func TestCheck_UnknownFunction(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "typo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("commands:\n  x: \"@tb/linsk\"\n"), 0o644))

	out, _, err := execute(t, "check", "--config", path)
	assert.ErrorContains(t, err, "1 unknown function reference(s)")
	assert.Contains(t, out, "error: unknown function @tb/linsk\n")
	assert.Contains(t, out, "  @tb/commands: ")
}

func TestCheck_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("commands:\n  x:\n    args: nope\n    action: a\n"), 0o644))

	_, errOut, err := execute(t, "check", "--config", path)
	require.Error(t, err)
	assert.Contains(t, errOut, "error:")
	assert.Contains(t, errOut, "commands.x.args")
}

func TestDispatch(t *testing.T) {
	out, _, err := execute(t, "dispatch", "-p", "twitch", "!lark", "!lark Bob", "!lark Alice", "!links", "nothing")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "argument_error\tcommand lark\tWho is the lark?", lines[0])
	assert.Equal(t, "dispatched\tcommand lark\tBob is a lark!", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "on_cooldown\tcommand lark\t"), lines[2])
	assert.Equal(t, "dispatched\tcommand links\tgithub: https://github.com/togglebit", lines[3])
	assert.Equal(t, "no_match\tnone", lines[4])
}

func TestDispatch_UnknownPlatform(t *testing.T) {
	_, _, err := execute(t, "dispatch", "-p", "kick", "!lark")
	assert.ErrorContains(t, err, `platform "kick" is not configured`)
}

func TestOpenStore(t *testing.T) {
	env := &config.Env{CooldownStore: "memory"}
	s, err := openStore(t.Context(), env)
	require.NoError(t, err)
	assert.Nil(t, s)

	env = &config.Env{CooldownStore: "file", CooldownFile: filepath.Join(t.TempDir(), "cd.json")}
	s, err = openStore(t.Context(), env)
	require.NoError(t, err)
	require.IsType(t, &cooldown.FileStore{}, s)
	require.NoError(t, s.Close())
}

func TestLongestCooldown(t *testing.T) {
	cfg := &config.Config{Commands: []*config.Command{
		{Name: "a", Cooldown: cooldown.Every(2 * time.Hour)},
		{Name: "b", Cooldown: cooldown.Policy{Platforms: map[string]time.Duration{"twitch": 3 * time.Hour}}},
	}}
	assert.Equal(t, 3*time.Hour, longestCooldown(cfg))
	assert.Equal(t, minRetention, longestCooldown(&config.Config{}))
}

func TestStopSupportJobs(t *testing.T) {
	jm := jobmgr.NewManager(t.Context(), func(string) {})
	block := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	for _, name := range []string{"metrics", "config-watch", "twitch"} {
		require.NoError(t, jm.StartAsync(name, block))
	}

	stopSupportJobs(jm)
	assert.Equal(t, []string{"twitch"}, jm.List())
	assert.Equal(t, "Running jobs: twitch", jm.Status())

	require.NoError(t, jm.Stop("twitch"))
	assert.NoError(t, jm.Wait())
	assert.Equal(t, "No jobs are running.", jm.Status())
}

func TestDocs_Stdout(t *testing.T) {
	out, _, err := execute(t, "docs", "-o", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "## discord\n")
	assert.Contains(t, out, "- **!only**: hi\n")
}
