package config

import "maps"

// Merge folds documents in order into one. Later documents win per key:
// trigger, platforms, commands, functions and whole constants tables are
// replaced, matches are appended. Include lists are not carried over.
// The inputs are not modified.
func Merge(docs ...Document) Document {
	var out Document
	for _, d := range docs {
		if d.Trigger != "" {
			out.Trigger = d.Trigger
		}
		out.Platforms = mergeMap(out.Platforms, d.Platforms)
		out.Functions = mergeMap(out.Functions, d.Functions)
		out.Constants = mergeMap(out.Constants, d.Constants)
		out.Commands = mergeCommands(out.Commands, d.Commands, d.File)
		for _, m := range d.Matches {
			if m.File == "" {
				m.File = d.File
			}
			out.Matches = append(out.Matches, m)
		}
		out.File = d.File
	}
	return out
}

func mergeMap[V any](dst, src map[string]V) map[string]V {
	if len(src) == 0 {
		return dst
	}
	out := make(map[string]V, len(dst)+len(src))
	maps.Copy(out, dst)
	maps.Copy(out, src)
	return out
}

func mergeCommands(dst, src CommandSet, file string) CommandSet {
	if len(src) == 0 {
		return dst
	}
	out := make(CommandSet, len(dst), len(dst)+len(src))
	copy(out, dst)
	index := make(map[string]int, len(out))
	for i, c := range out {
		index[c.Name] = i
	}
	for _, c := range src {
		if c.File == "" {
			c.File = file
		}
		if i, ok := index[c.Name]; ok {
			out[i] = c
			continue
		}
		index[c.Name] = len(out)
		out = append(out, c)
	}
	return out
}
