// Package action holds action references and resolves them into the concrete
// instruction an executor runs for a given platform.
package action

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrBadFunctionRef is returned for references that are not of the form
// @namespace/name.
var ErrBadFunctionRef = errors.New("bad function reference")

// Kind tags the variant held by a Ref.
type Kind int

const (
	Inline Kind = iota
	Function
	PerPlatform
)

func (k Kind) String() string {
	switch k {
	case Function:
		return "function"
	case PerPlatform:
		return "per-platform"
	}
	return "inline"
}

// FunctionRef names a function in the external registry.
type FunctionRef struct {
	Namespace string
	Name      string
}

// ParseFunctionRef parses "@namespace/name". Both segments must be non-empty
// and the name may not contain another slash.
func ParseFunctionRef(s string) (FunctionRef, error) {
	rest, ok := strings.CutPrefix(s, "@")
	if !ok {
		return FunctionRef{}, fmt.Errorf("%w %q: must start with @", ErrBadFunctionRef, s)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return FunctionRef{}, fmt.Errorf("%w %q: want @namespace/name", ErrBadFunctionRef, s)
	}
	return FunctionRef{Namespace: parts[0], Name: parts[1]}, nil
}

func (f FunctionRef) String() string {
	return "@" + f.Namespace + "/" + f.Name
}

// Ref is an action reference. Exactly one variant is populated, as told by
// Kind. Refs are built once at load time and never re-inspected for shape.
type Ref struct {
	Kind      Kind
	Template  string
	Function  FunctionRef
	Platforms map[string]Ref
}

// Template returns an inline template ref.
func Template(s string) Ref {
	return Ref{Kind: Inline, Template: s}
}

// Named returns a named function ref.
func Named(f FunctionRef) Ref {
	return Ref{Kind: Function, Function: f}
}

// Parse classifies a single string action. Strings starting with @ must be
// function references; a leading $ marks a raw template and is dropped.
func Parse(s string) (Ref, error) {
	if raw, ok := strings.CutPrefix(s, "$"); ok {
		return Template(raw), nil
	}
	if strings.HasPrefix(s, "@") {
		f, err := ParseFunctionRef(s)
		if err != nil {
			return Ref{}, err
		}
		return Named(f), nil
	}
	return Template(s), nil
}

// ParsePlatforms builds a per-platform ref from platform -> action strings.
func ParsePlatforms(m map[string]string) (Ref, error) {
	ref := Ref{Kind: PerPlatform, Platforms: make(map[string]Ref, len(m))}
	for platform, s := range m {
		r, err := Parse(s)
		if err != nil {
			return Ref{}, fmt.Errorf("platform %s: %w", platform, err)
		}
		ref.Platforms[platform] = r
	}
	return ref, nil
}

// Missing reports the platforms of ps that have no entry in a per-platform
// ref. It returns nil for the other variants.
func (r Ref) Missing(ps []string) []string {
	if r.Kind != PerPlatform {
		return nil
	}
	var out []string
	for _, p := range ps {
		if _, ok := r.Platforms[p]; !ok {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Functions returns every function reference reachable from r.
func (r Ref) Functions() []FunctionRef {
	switch r.Kind {
	case Function:
		return []FunctionRef{r.Function}
	case PerPlatform:
		var out []FunctionRef
		for _, sub := range r.Platforms {
			if sub.Kind == Function {
				out = append(out, sub.Function)
			}
		}
		return out
	}
	return nil
}

func (r Ref) String() string {
	switch r.Kind {
	case Function:
		return r.Function.String()
	case PerPlatform:
		keys := make([]string, 0, len(r.Platforms))
		for k := range r.Platforms {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + "=" + r.Platforms[k].String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprintf("%q", r.Template)
}
