package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"

	"github.com/keshon/togglebot/internal/config"
	"github.com/keshon/togglebot/internal/dispatch"
)

func TestToMessage(t *testing.T) {
	m := &discordgo.Message{
		Content:   "!lark hello",
		ChannelID: "42",
		Author:    &discordgo.User{ID: "7", Username: "bob"},
	}
	msg, ok := toMessage("discord", "1", m)
	assert.True(t, ok)
	assert.Equal(t, dispatch.Message{Platform: "discord", Text: "!lark hello", Sender: "bob", Channel: "42"}, msg)

	_, ok = toMessage("discord", "7", m)
	assert.False(t, ok, "own messages are ignored")

	m.Author.Bot = true
	_, ok = toMessage("discord", "1", m)
	assert.False(t, ok, "other bots are ignored")
}

func TestNew_RequiresToken(t *testing.T) {
	t.Setenv("ALTDISCORD_TOKEN", "")
	_, err := New(config.Platform{Name: "altdiscord", Type: "discord"}, nil)
	assert.Error(t, err)

	t.Setenv("ALTDISCORD_TOKEN", "secret")
	b, err := New(config.Platform{Name: "altdiscord", Type: "discord"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, "altdiscord", b.Name())
}
