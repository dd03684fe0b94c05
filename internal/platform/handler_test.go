package platform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/togglebot/internal/config"
	"github.com/keshon/togglebot/internal/cooldown"
	"github.com/keshon/togglebot/internal/dispatch"
	"github.com/keshon/togglebot/internal/metrics"
)

func runtime(t *testing.T, yml string, cd *cooldown.Manager) *Runtime {
	t.Helper()
	doc, err := config.ParseDocument([]byte(yml))
	require.NoError(t, err)
	cfg, err := config.Compile(config.Merge(doc))
	require.NoError(t, err)
	rt, err := NewRuntime(cfg, cd, RuntimeOptions{})
	require.NoError(t, err)
	return rt
}

const handlerConfig = `
commands:
  lark:
    args: "string!<!>need a word"
    action: "You're a lark, {}!"
    cooldown: 60
  gap:
    action:
      twitch: only twitch
`

func TestHandler_Replies(t *testing.T) {
	m := metrics.New("")
	h := NewHandler(runtime(t, handlerConfig, cooldown.NewManager()), m)
	ctx := context.Background()

	reply, ok := h.Handle(ctx, dispatch.Message{Platform: "twitch", Text: "!lark"})
	assert.True(t, ok)
	assert.Equal(t, "need a word", reply)

	reply, ok = h.Handle(ctx, dispatch.Message{Platform: "twitch", Text: "!lark bob"})
	assert.True(t, ok)
	assert.Equal(t, "You're a lark, bob!", reply)

	_, ok = h.Handle(ctx, dispatch.Message{Platform: "twitch", Text: "!lark bob"})
	assert.False(t, ok, "cooldowns are silent")

	_, ok = h.Handle(ctx, dispatch.Message{Platform: "discord", Text: "!gap"})
	assert.False(t, ok, "configuration gaps are silent")

	_, ok = h.Handle(ctx, dispatch.Message{Platform: "twitch", Text: "hello"})
	assert.False(t, ok)

	body := scrape(t, m)
	assert.Contains(t, body, `togglebot_dispatch_results_total{outcome="argument_error",platform="twitch"} 1`)
	assert.Contains(t, body, `togglebot_dispatch_results_total{outcome="on_cooldown",platform="twitch"} 1`)
	assert.Contains(t, body, `togglebot_dispatch_results_total{outcome="resolve_failed",platform="discord"} 1`)
}

func TestHandler_SwapKeepsCooldowns(t *testing.T) {
	cd := cooldown.NewManager()
	h := NewHandler(runtime(t, handlerConfig, cd), nil)
	ctx := context.Background()

	_, ok := h.Handle(ctx, dispatch.Message{Platform: "twitch", Text: "!lark bob"})
	require.True(t, ok)

	h.Swap(runtime(t, handlerConfig, cd))
	_, ok = h.Handle(ctx, dispatch.Message{Platform: "twitch", Text: "!lark bob"})
	assert.False(t, ok)
}

func TestHandler_ExecutionFailure(t *testing.T) {
	h := NewHandler(runtime(t, "commands:\n  x: \"@tb/missing\"\n", cooldown.NewManager()), nil)
	reply, ok := h.Handle(context.Background(), dispatch.Message{Platform: "twitch", Text: "!x"})
	assert.True(t, ok)
	assert.Equal(t, "Sorry, something went wrong", reply)
}

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}
