package executor

import (
	"strconv"
	"strings"

	"github.com/keshon/togglebot/pkg/argspec"
)

// Render substitutes placeholders in template: {} takes the next argument,
// {N} argument N (zero based) and {table.key} a resolved constant. Absent
// arguments render empty; anything else in braces is copied verbatim.
func Render(template string, args []argspec.Value, constants map[string]string) string {
	var b strings.Builder
	b.Grow(len(template))

	next := 0
	arg := func(i int) string {
		if i < 0 || i >= len(args) {
			return ""
		}
		return args[i].Text
	}

	for {
		open := strings.IndexByte(template, '{')
		if open < 0 {
			b.WriteString(template)
			return b.String()
		}
		end := strings.IndexByte(template[open:], '}')
		if end < 0 {
			b.WriteString(template)
			return b.String()
		}
		end += open

		b.WriteString(template[:open])
		inner := template[open+1 : end]
		switch {
		case inner == "":
			b.WriteString(arg(next))
			next++
		case isIndex(inner):
			n, _ := strconv.Atoi(inner)
			b.WriteString(arg(n))
		default:
			if v, ok := constants[inner]; ok {
				b.WriteString(v)
			} else {
				b.WriteString(template[open : end+1])
			}
		}
		template = template[end+1:]
	}
}

func isIndex(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
