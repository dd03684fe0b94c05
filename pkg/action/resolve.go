package action

import (
	"errors"
	"fmt"
)

// Sentinels matched by errors.Is against a *ResolveError.
var (
	ErrUnsupportedPlatform = errors.New("action not available on platform")
	ErrMissingConstant     = errors.New("missing constant")
)

// ResolveError is returned by Resolve. It is a configuration gap rather than
// a user error.
type ResolveError struct {
	Kind     error // ErrUnsupportedPlatform or ErrMissingConstant
	Platform string
	Constant string
}

func (e *ResolveError) Error() string {
	if e.Constant != "" {
		return fmt.Sprintf("%v %q on %s", e.Kind, e.Constant, e.Platform)
	}
	return fmt.Sprintf("%v %s", e.Kind, e.Platform)
}

func (e *ResolveError) Unwrap() error { return e.Kind }

// Instruction is what an executor runs: either a template to render or a
// function to invoke, with the constants it needs already looked up.
type Instruction struct {
	Kind     Kind // Inline or Function
	Template string
	Function FunctionRef
	Platform string

	// Constants holds "table.key" values for templates, and the platform view
	// of the table keyed by the function reference for functions.
	Constants map[string]string
}

// Resolve selects the variant of ref that applies to platform and looks up
// the constants it needs.
func Resolve(ref Ref, platform string, constants Constants) (*Instruction, error) {
	if ref.Kind == PerPlatform {
		sub, ok := ref.Platforms[platform]
		if !ok {
			return nil, &ResolveError{Kind: ErrUnsupportedPlatform, Platform: platform}
		}
		ref = sub
	}

	switch ref.Kind {
	case Function:
		return &Instruction{
			Kind:      Function,
			Function:  ref.Function,
			Platform:  platform,
			Constants: constants.View(ref.Function.String(), platform),
		}, nil
	case Inline:
		values := make(map[string]string)
		for _, name := range References(ref.Template) {
			table, key := splitReference(name)
			v, ok := constants.Lookup(table, key, platform)
			if !ok {
				return nil, &ResolveError{Kind: ErrMissingConstant, Platform: platform, Constant: name}
			}
			values[name] = v
		}
		return &Instruction{
			Kind:      Inline,
			Template:  ref.Template,
			Platform:  platform,
			Constants: values,
		}, nil
	}
	return nil, fmt.Errorf("nested per-platform action on %s", platform)
}
