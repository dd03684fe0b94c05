package argspec

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Value is a bound argument. Present is false for an optional argument the
// user did not supply.
type Value struct {
	Text    string
	Present bool
}

// Absent is the value bound to a missing optional argument.
var Absent = Value{}

// Failure describes rejected input. Message is safe to show to users.
type Failure struct {
	Index   int
	Spec    Descriptor
	Message string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("argument %d (%s): %s", f.Index+1, f.Spec.TypeName(), f.Message)
}

// Validate checks a single value against the descriptor and returns the
// accepted text.
func (d Descriptor) Validate(value string) (string, error) {
	switch d.Kind {
	case KindURL:
		if !isURL(value) {
			return "", errors.New(d.ErrorMessage())
		}
		return value, nil
	case KindString:
		if value == "" {
			return "", errors.New(d.ErrorMessage())
		}
	}
	if d.re != nil {
		ok, err := d.re.MatchString(value)
		if err != nil || !ok {
			return "", errors.New(d.ErrorMessage())
		}
	}
	return value, nil
}

func isURL(s string) bool {
	if err := validate.Var(s, "required,url"); err != nil {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// List is an ordered, compiled argument sequence.
type List []Descriptor

// ParseList compiles every spec and checks that string... only appears last.
func ParseList(specs []string) (List, error) {
	list := make(List, 0, len(specs))
	for i, s := range specs {
		d, err := Parse(s)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		if d.Kind == KindRest && i != len(specs)-1 {
			return nil, fmt.Errorf("argument %d: %w", i+1, ErrVariadicNotLast)
		}
		list = append(list, d)
	}
	return list, nil
}

// Strings re-serializes the list.
func (l List) Strings() []string {
	out := make([]string, len(l))
	for i, d := range l {
		out[i] = d.String()
	}
	return out
}

// Bind matches tokens against the list, left to right. Tokens left over after
// the last descriptor are ignored.
func (l List) Bind(tokens []string) ([]Value, error) {
	values := make([]Value, 0, len(l))
	for i, d := range l {
		var raw string
		switch {
		case len(tokens) == 0:
			if d.Optional() {
				values = append(values, Absent)
				continue
			}
			return nil, &Failure{Index: i, Spec: d, Message: d.ErrorMessage()}
		case d.Kind == KindRest:
			raw = strings.Join(tokens, " ")
			tokens = nil
		case len(tokens) < d.Width:
			return nil, &Failure{Index: i, Spec: d, Message: d.ErrorMessage()}
		default:
			raw = strings.Join(tokens[:d.Width], " ")
			tokens = tokens[d.Width:]
		}

		text, err := d.Validate(raw)
		if err != nil {
			return nil, &Failure{Index: i, Spec: d, Message: err.Error()}
		}
		values = append(values, Value{Text: text, Present: true})
	}
	return values, nil
}

// BindEach validates one value per descriptor, as when arguments come from
// regex capture groups rather than whitespace tokens. An absent value fails a
// required descriptor; descriptors past the end of values see absent values.
func (l List) BindEach(values []Value) ([]Value, error) {
	out := make([]Value, 0, len(l))
	for i, d := range l {
		v := Absent
		if i < len(values) {
			v = values[i]
		}
		if !v.Present || v.Text == "" {
			if d.Optional() {
				out = append(out, Absent)
				continue
			}
			return nil, &Failure{Index: i, Spec: d, Message: d.ErrorMessage()}
		}
		text, err := d.Validate(v.Text)
		if err != nil {
			return nil, &Failure{Index: i, Spec: d, Message: err.Error()}
		}
		out = append(out, Value{Text: text, Present: true})
	}
	return out, nil
}
