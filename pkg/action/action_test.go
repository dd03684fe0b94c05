package action

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFunctionRef(t *testing.T) {
	f, err := ParseFunctionRef("@tb/links")
	require.NoError(t, err)
	assert.Equal(t, FunctionRef{Namespace: "tb", Name: "links"}, f)
	assert.Equal(t, "@tb/links", f.String())

	for _, bad := range []string{"tb/links", "@tb", "@/links", "@tb/", "@a/b/c", "@"} {
		_, err := ParseFunctionRef(bad)
		assert.ErrorIs(t, err, ErrBadFunctionRef, bad)
	}
}

func TestParse(t *testing.T) {
	r, err := Parse("You're a lark!")
	require.NoError(t, err)
	assert.Equal(t, Inline, r.Kind)
	assert.Equal(t, "You're a lark!", r.Template)

	r, err = Parse("@local/greet")
	require.NoError(t, err)
	assert.Equal(t, Function, r.Kind)
	assert.Equal(t, "local", r.Function.Namespace)

	r, err = Parse("$@everyone look")
	require.NoError(t, err)
	assert.Equal(t, Inline, r.Kind)
	assert.Equal(t, "@everyone look", r.Template)

	_, err = Parse("@everyone look")
	assert.ErrorIs(t, err, ErrBadFunctionRef)
}

func TestParsePlatforms(t *testing.T) {
	r, err := ParsePlatforms(map[string]string{"twitch": "hi chat", "discord": "@tb/links"})
	require.NoError(t, err)
	assert.Equal(t, PerPlatform, r.Kind)
	assert.Equal(t, Function, r.Platforms["discord"].Kind)
	assert.Equal(t, []string{"kick"}, r.Missing([]string{"twitch", "discord", "kick"}))
	assert.Len(t, r.Functions(), 1)

	_, err = ParsePlatforms(map[string]string{"twitch": "@broken"})
	assert.ErrorIs(t, err, ErrBadFunctionRef)
}

func constants() Constants {
	return Constants{
		"links": {
			Flat: map[string]string{"github": "https://github.com/togglebit", "youtube": "https://youtube.com/togglebit"},
			Platforms: map[string]map[string]string{
				"discord": {"github": "<https://github.com/togglebit>"},
			},
		},
		"@tb/links": {
			Flat:      map[string]string{"site": "https://togglebit.io"},
			Platforms: map[string]map[string]string{"twitch": {"chat": "twitch.tv/togglebit"}},
		},
	}
}

func TestConstants_Lookup(t *testing.T) {
	c := constants()

	v, ok := c.Lookup("links", "github", "discord")
	require.True(t, ok)
	assert.Equal(t, "<https://github.com/togglebit>", v)

	v, ok = c.Lookup("links", "github", "twitch")
	require.True(t, ok)
	assert.Equal(t, "https://github.com/togglebit", v)

	v, ok = c.Lookup("links", "youtube", "discord")
	require.True(t, ok, "flat fallback")
	assert.Equal(t, "https://youtube.com/togglebit", v)

	_, ok = c.Lookup("links", "mastodon", "discord")
	assert.False(t, ok)
	_, ok = c.Lookup("nope", "github", "discord")
	assert.False(t, ok)
}

func TestResolve_Inline(t *testing.T) {
	ins, err := Resolve(Template("code at {links.github}, videos at {links.youtube}, arg {}"), "discord", constants())
	require.NoError(t, err)
	assert.Equal(t, Inline, ins.Kind)
	assert.Equal(t, "discord", ins.Platform)
	assert.Equal(t, map[string]string{
		"links.github":  "<https://github.com/togglebit>",
		"links.youtube": "https://youtube.com/togglebit",
	}, ins.Constants)
}

func TestResolve_MissingConstant(t *testing.T) {
	_, err := Resolve(Template("{links.mastodon}"), "twitch", constants())
	require.ErrorIs(t, err, ErrMissingConstant)

	var re *ResolveError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "links.mastodon", re.Constant)
}

func TestResolve_Function(t *testing.T) {
	ins, err := Resolve(Named(FunctionRef{Namespace: "tb", Name: "links"}), "twitch", constants())
	require.NoError(t, err)
	assert.Equal(t, Function, ins.Kind)
	assert.Equal(t, map[string]string{"site": "https://togglebit.io", "chat": "twitch.tv/togglebit"}, ins.Constants)

	ins, err = Resolve(Named(FunctionRef{Namespace: "local", Name: "x"}), "twitch", constants())
	require.NoError(t, err)
	assert.Nil(t, ins.Constants)
}

func TestResolve_PerPlatform(t *testing.T) {
	ref, err := ParsePlatforms(map[string]string{"twitch": "hello twitch"})
	require.NoError(t, err)

	ins, err := Resolve(ref, "twitch", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello twitch", ins.Template)

	_, err = Resolve(ref, "discord", nil)
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
	assert.NotErrorIs(t, err, ErrMissingConstant)
}

func TestReferences(t *testing.T) {
	assert.Equal(t, []string{"links.github", "@tb/links.site"},
		References("{links.github} {} {0} {links.github} {@tb/links.site}"))
	assert.Nil(t, References("no placeholders {}"))
}
