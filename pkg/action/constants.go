package action

import (
	"regexp"
	"strings"
)

// ConstantPlaceholder matches {table.key} references inside templates. The
// key is everything after the last dot, so tables named after functions
// ({@tb/links.github}) work.
var ConstantPlaceholder = regexp.MustCompile(`\{([^{}\s]+)\.([^{}.\s]+)\}`)

// Table is one entry of the constants section: flat values shared by every
// platform plus per-platform overrides.
type Table struct {
	Flat      map[string]string
	Platforms map[string]map[string]string
}

// Constants maps a table key (plain name or function reference) to its table.
type Constants map[string]Table

// Lookup returns the value of table.key for platform. The platform specific
// entry wins over the flat one.
func (c Constants) Lookup(table, key, platform string) (string, bool) {
	t, ok := c[table]
	if !ok {
		return "", false
	}
	if v, ok := t.Platforms[platform][key]; ok {
		return v, true
	}
	v, ok := t.Flat[key]
	return v, ok
}

// View flattens a table for platform: flat values overlaid with the platform
// specific ones. It returns nil when the table does not exist.
func (c Constants) View(table, platform string) map[string]string {
	t, ok := c[table]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(t.Flat)+len(t.Platforms[platform]))
	for k, v := range t.Flat {
		out[k] = v
	}
	for k, v := range t.Platforms[platform] {
		out[k] = v
	}
	return out
}

// References lists the distinct table.key names a template refers to, in
// order of first appearance.
func References(template string) []string {
	matches := ConstantPlaceholder.FindAllStringSubmatch(template, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		name := m[1] + "." + m[2]
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// splitReference splits "table.key" at the last dot.
func splitReference(name string) (table, key string) {
	i := strings.LastIndex(name, ".")
	return name[:i], name[i+1:]
}
