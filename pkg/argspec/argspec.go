// Package argspec parses and validates the argument mini-language used by
// command and match declarations.
//
// A spec has the shape
//
//	<type>[<mode><parser>[<!><error message>]]
//
// where type is one of url, string, string<N> or string..., mode is ? (optional)
// or ! (required) and parser is a regular expression the value must match in
// full. Examples:
//
//	string
//	string!<!>need a word
//	string?yes|no<!>answer yes or no
//	string3
//	url?
//	string...
package argspec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// Errors reported by Parse and ParseList.
var (
	ErrUnknownType     = errors.New("unknown argument type")
	ErrBadParser       = errors.New("bad parser expression")
	ErrVariadicNotLast = errors.New("string... must be the last argument")
)

// MatchTimeout bounds a single parser evaluation.
var MatchTimeout = 100 * time.Millisecond

const messageDelimiter = "<!>"

// Kind is the base type of an argument.
type Kind int

const (
	KindString Kind = iota // one token
	KindURL                // one token, absolute URL
	KindFixed              // exactly Width tokens
	KindRest               // every remaining token
)

// Mode tells whether an argument must be supplied.
type Mode int

const (
	ModeDefault  Mode = iota // no mode given: required, type-only validation
	ModeOptional             // ?
	ModeRequired             // !
)

func (m Mode) symbol() string {
	switch m {
	case ModeOptional:
		return "?"
	case ModeRequired:
		return "!"
	}
	return ""
}

// Descriptor is a compiled argument spec. The zero value is not usable; build
// descriptors with Parse.
type Descriptor struct {
	Kind    Kind
	Width   int // tokens consumed; 0 for KindRest
	Mode    Mode
	Parser  string
	Message string

	re *regexp2.Regexp
}

// Parse compiles a single argument spec.
func Parse(spec string) (Descriptor, error) {
	typ, rest, hasMode := cutMode(spec)

	d, err := parseType(typ)
	if err != nil {
		return Descriptor{}, err
	}
	if !hasMode {
		return d, nil
	}

	switch rest[0] {
	case '?':
		d.Mode = ModeOptional
	case '!':
		d.Mode = ModeRequired
	}
	rest = rest[1:]

	d.Parser, d.Message, _ = strings.Cut(rest, messageDelimiter)

	if d.Parser != "" && d.Kind != KindURL {
		re, err := regexp2.Compile(`\A(?:`+d.Parser+`)\z`, regexp2.None)
		if err != nil {
			return Descriptor{}, fmt.Errorf("%w %q: %v", ErrBadParser, d.Parser, err)
		}
		re.MatchTimeout = MatchTimeout
		d.re = re
	}
	return d, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// built-in declarations.
func MustParse(spec string) Descriptor {
	d, err := Parse(spec)
	if err != nil {
		panic(err)
	}
	return d
}

// cutMode splits spec at the first mode symbol.
func cutMode(spec string) (typ, rest string, ok bool) {
	i := strings.IndexAny(spec, "?!")
	if i < 0 {
		return spec, "", false
	}
	return spec[:i], spec[i:], true
}

func parseType(typ string) (Descriptor, error) {
	switch {
	case typ == "url":
		return Descriptor{Kind: KindURL, Width: 1}, nil
	case typ == "string":
		return Descriptor{Kind: KindString, Width: 1}, nil
	case typ == "string...":
		return Descriptor{Kind: KindRest}, nil
	case strings.HasPrefix(typ, "string"):
		width := strings.TrimPrefix(typ, "string")
		if width == "" || strings.TrimLeft(width, "0123456789") != "" {
			break
		}
		n, err := strconv.Atoi(width)
		if err == nil && n > 0 {
			return Descriptor{Kind: KindFixed, Width: n}, nil
		}
	}
	if typ == "" {
		return Descriptor{}, fmt.Errorf("%w: empty type", ErrUnknownType)
	}
	return Descriptor{}, fmt.Errorf("%w %q", ErrUnknownType, typ)
}

// TypeName returns the type part of the spec, e.g. "string3".
func (d Descriptor) TypeName() string {
	switch d.Kind {
	case KindURL:
		return "url"
	case KindFixed:
		return "string" + strconv.Itoa(d.Width)
	case KindRest:
		return "string..."
	}
	return "string"
}

// Optional reports whether a missing value is acceptable.
func (d Descriptor) Optional() bool { return d.Mode == ModeOptional }

// String re-serializes the descriptor. Parse(d.String()) yields an equivalent
// descriptor.
func (d Descriptor) String() string {
	var b strings.Builder
	b.WriteString(d.TypeName())
	if d.Mode == ModeDefault {
		return b.String()
	}
	b.WriteString(d.Mode.symbol())
	b.WriteString(d.Parser)
	if d.Message != "" {
		b.WriteString(messageDelimiter)
		b.WriteString(d.Message)
	}
	return b.String()
}

// ErrorMessage is the text shown to a user whose input was rejected.
func (d Descriptor) ErrorMessage() string {
	if d.Message != "" {
		return d.Message
	}
	var shape string
	switch d.Kind {
	case KindURL:
		shape = "an absolute URL with scheme and host"
	case KindFixed:
		shape = fmt.Sprintf("%d words", d.Width)
	case KindRest:
		shape = "some text"
	default:
		shape = "a word"
	}
	if d.re != nil {
		shape += fmt.Sprintf(" matching `%s`", d.Parser)
	}
	return fmt.Sprintf("%s: expected %s", d.TypeName(), shape)
}
