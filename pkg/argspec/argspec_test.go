package argspec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		spec    string
		kind    Kind
		width   int
		mode    Mode
		parser  string
		message string
	}{
		{"string", KindString, 1, ModeDefault, "", ""},
		{"url", KindURL, 1, ModeDefault, "", ""},
		{"string3", KindFixed, 3, ModeDefault, "", ""},
		{"string...", KindRest, 0, ModeDefault, "", ""},
		{"string!<!>need a word", KindString, 1, ModeRequired, "", "need a word"},
		{"string?3<!>expected a number", KindString, 1, ModeOptional, "3", "expected a number"},
		{"string?yes|no", KindString, 1, ModeOptional, "yes|no", ""},
		{"url!https://example.com/{}<!>bad link", KindURL, 1, ModeRequired, "https://example.com/{}", "bad link"},
		{"string2!\\d+ \\d+<!>two numbers<!>please", KindFixed, 2, ModeRequired, `\d+ \d+`, "two numbers<!>please"},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			d, err := Parse(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, d.Kind)
			assert.Equal(t, tt.width, d.Width)
			assert.Equal(t, tt.mode, d.Mode)
			assert.Equal(t, tt.parser, d.Parser)
			assert.Equal(t, tt.message, d.Message)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]error{
		"":            ErrUnknownType,
		"int":         ErrUnknownType,
		"strin":       ErrUnknownType,
		"string0":     ErrUnknownType,
		"string-1":    ErrUnknownType,
		"string+3":    ErrUnknownType,
		"string 3":    ErrUnknownType,
		"url2":        ErrUnknownType,
		"string..":    ErrUnknownType,
		"?string":     ErrUnknownType,
		"string!(":    ErrBadParser,
		"string?[a-":  ErrBadParser,
		"string3!a(b": ErrBadParser,
	}
	for spec, want := range tests {
		_, err := Parse(spec)
		assert.ErrorIs(t, err, want, "spec %q", spec)
	}
}

func TestParse_URLParserIsNotCompiled(t *testing.T) {
	d, err := Parse("url!(")
	require.NoError(t, err)
	assert.Equal(t, "(", d.Parser)
}

func TestString_Idempotent(t *testing.T) {
	specs := []string{
		"string",
		"url",
		"url?",
		"string!",
		"string7",
		"string...",
		"string...?",
		"string!<!>need a word",
		"string!x<!>",
		"string?3<!>expected a number",
		"string2!a b|c d<!>pick a pair",
		"url!https://crates.io/{}<!>no such crate",
	}
	for _, spec := range specs {
		first, err := Parse(spec)
		require.NoError(t, err, spec)

		second, err := Parse(first.String())
		require.NoError(t, err, spec)

		assert.Equal(t, first.String(), second.String(), spec)
		assert.Equal(t, first.Kind, second.Kind, spec)
		assert.Equal(t, first.Width, second.Width, spec)
		assert.Equal(t, first.Mode, second.Mode, spec)
		assert.Equal(t, first.Parser, second.Parser, spec)
		assert.Equal(t, first.Message, second.Message, spec)
	}
}

func TestValidate(t *testing.T) {
	t.Run("url", func(t *testing.T) {
		d := MustParse("url")
		_, err := d.Validate("https://togglebit.io/path?q=1")
		assert.NoError(t, err)
		for _, bad := range []string{"togglebit.io", "mailto:me@example.com", "https://", "not a url"} {
			_, err := d.Validate(bad)
			assert.Error(t, err, bad)
		}
	})

	t.Run("string without parser accepts any token", func(t *testing.T) {
		d := MustParse("string")
		v, err := d.Validate("anything")
		require.NoError(t, err)
		assert.Equal(t, "anything", v)

		_, err = d.Validate("")
		assert.Error(t, err)
	})

	t.Run("parser must match the whole value", func(t *testing.T) {
		d := MustParse("string!yes|no<!>answer yes or no")
		_, err := d.Validate("yes")
		assert.NoError(t, err)
		_, err = d.Validate("yesno")
		assert.EqualError(t, err, "answer yes or no")
	})

	t.Run("default message names the type", func(t *testing.T) {
		_, err := MustParse("string!\\d+").Validate("abc")
		assert.EqualError(t, err, "string: expected a word matching `\\d+`")
	})
}

func TestParseList(t *testing.T) {
	l, err := ParseList([]string{"string", "url?", "string..."})
	require.NoError(t, err)
	assert.Equal(t, []string{"string", "url?", "string..."}, l.Strings())

	_, err = ParseList([]string{"string...", "string"})
	assert.ErrorIs(t, err, ErrVariadicNotLast)

	_, err = ParseList([]string{"string", "string...", "url"})
	assert.ErrorIs(t, err, ErrVariadicNotLast)

	_, err = ParseList([]string{"string", "bogus"})
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestBind(t *testing.T) {
	t.Run("required missing uses custom message", func(t *testing.T) {
		l, _ := ParseList([]string{"string!<!>need a word"})
		_, err := l.Bind(nil)

		var f *Failure
		require.True(t, errors.As(err, &f))
		assert.Equal(t, "need a word", f.Message)
		assert.Equal(t, 0, f.Index)
	})

	t.Run("required missing uses default message", func(t *testing.T) {
		l, _ := ParseList([]string{"url"})
		_, err := l.Bind(nil)

		var f *Failure
		require.True(t, errors.As(err, &f))
		assert.Equal(t, "url: expected an absolute URL with scheme and host", f.Message)
	})

	t.Run("optional missing is absent", func(t *testing.T) {
		l, _ := ParseList([]string{"string", "string?"})
		values, err := l.Bind([]string{"one"})
		require.NoError(t, err)
		assert.Equal(t, []Value{{Text: "one", Present: true}, Absent}, values)
	})

	t.Run("fixed width consumes N tokens", func(t *testing.T) {
		l, _ := ParseList([]string{"string2", "string"})
		values, err := l.Bind([]string{"a", "b", "c", "d"})
		require.NoError(t, err)
		assert.Equal(t, "a b", values[0].Text)
		assert.Equal(t, "c", values[1].Text)
	})

	t.Run("fixed width with too few tokens fails", func(t *testing.T) {
		l, _ := ParseList([]string{"string3?"})
		_, err := l.Bind([]string{"a", "b"})
		assert.Error(t, err)
	})

	t.Run("rest joins everything", func(t *testing.T) {
		l, _ := ParseList([]string{"string", "string..."})
		values, err := l.Bind([]string{"to", "be", "or", "not"})
		require.NoError(t, err)
		assert.Equal(t, "be or not", values[1].Text)
	})

	t.Run("parser failure reports index", func(t *testing.T) {
		l, _ := ParseList([]string{"string", "string!\\d+<!>expected a number"})
		_, err := l.Bind([]string{"x", "y"})

		var f *Failure
		require.True(t, errors.As(err, &f))
		assert.Equal(t, 1, f.Index)
		assert.Equal(t, "expected a number", f.Message)
	})

	t.Run("extra tokens are ignored", func(t *testing.T) {
		l, _ := ParseList([]string{"string"})
		values, err := l.Bind([]string{"a", "b"})
		require.NoError(t, err)
		assert.Len(t, values, 1)
	})
}

func TestBindEach(t *testing.T) {
	l, err := ParseList([]string{"string!morning|night<!>morning or night?", "string?"})
	require.NoError(t, err)

	values, err := l.BindEach([]Value{{Text: "night", Present: true}, Absent})
	require.NoError(t, err)
	assert.Equal(t, []Value{{Text: "night", Present: true}, Absent}, values)

	_, err = l.BindEach([]Value{{Text: "noon", Present: true}})
	var f *Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, "morning or night?", f.Message)

	_, err = l.BindEach(nil)
	assert.Error(t, err)
}
