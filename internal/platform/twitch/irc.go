package twitch

import "strings"

// Line is one parsed IRC message with IRCv3 tags.
type Line struct {
	Tags    map[string]string
	Prefix  string
	Command string
	Params  []string
}

// Nick returns the nickname part of the prefix.
func (l Line) Nick() string {
	nick, _, _ := strings.Cut(l.Prefix, "!")
	return nick
}

// Param returns parameter i or "".
func (l Line) Param(i int) string {
	if i < len(l.Params) {
		return l.Params[i]
	}
	return ""
}

// ParseLine parses a raw IRC line. It never fails; malformed input yields a
// Line with whatever could be read.
func ParseLine(raw string) Line {
	raw = strings.TrimRight(raw, "\r\n")
	var l Line

	if strings.HasPrefix(raw, "@") {
		var tags string
		tags, raw, _ = strings.Cut(raw[1:], " ")
		l.Tags = make(map[string]string)
		for _, kv := range strings.Split(tags, ";") {
			k, v, _ := strings.Cut(kv, "=")
			l.Tags[k] = unescapeTag(v)
		}
	}
	if strings.HasPrefix(raw, ":") {
		l.Prefix, raw, _ = strings.Cut(raw[1:], " ")
	}

	head, trailing, hasTrailing := strings.Cut(raw, " :")
	if strings.HasPrefix(raw, ":") {
		head, trailing, hasTrailing = "", raw[1:], true
	}
	fields := strings.Fields(head)
	if len(fields) > 0 {
		l.Command, l.Params = fields[0], fields[1:]
	}
	if hasTrailing {
		l.Params = append(l.Params, trailing)
	}
	return l
}

var tagUnescaper = strings.NewReplacer(`\:`, ";", `\s`, " ", `\\`, `\`, `\r`, "\r", `\n`, "\n")

func unescapeTag(v string) string {
	if !strings.Contains(v, `\`) {
		return v
	}
	return tagUnescaper.Replace(v)
}

// sanitize makes text safe for one PRIVMSG line.
func sanitize(text string) string {
	text = strings.ReplaceAll(text, "\r", "")
	return strings.Join(strings.Split(text, "\n"), " ")
}

// privmsg formats a message to channel, threaded under parentID when set.
func privmsg(channel, parentID, text string) string {
	line := "PRIVMSG #" + channel + " :" + sanitize(text)
	if parentID != "" {
		line = "@reply-parent-msg-id=" + parentID + " " + line
	}
	return line
}
