package sam

import (
	"sort"
	"strings"
	"unicode"

	samerr "gosam/internal/errors"
)

// Command is one framed control line.  Name is the two leading tokens
// joined by a single space ("SESSION STATUS"); Args is everything after
// the following space, kept verbatim.
type Command struct {
	Name string
	Args string
}

// ParseCommand splits a single line (without its terminating newline)
// into a Command.  A trailing carriage return is ignored.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSuffix(line, "\r")
	if line == "" {
		return Command{}, &samerr.ParseError{Line: line, Reason: "empty line"}
	}

	i := strings.IndexByte(line, ' ')
	if i <= 0 {
		return Command{}, &samerr.ParseError{Line: line, Reason: "expected two tokens"}
	}
	verb, rest := line[:i], line[i+1:]

	action, args := rest, ""
	if j := strings.IndexByte(rest, ' '); j >= 0 {
		action, args = rest[:j], rest[j+1:]
	}
	if action == "" {
		return Command{}, &samerr.ParseError{Line: line, Reason: "expected two tokens"}
	}
	if hasSpace(verb) || hasSpace(action) {
		return Command{}, &samerr.ParseError{Line: line, Reason: "tokens must be separated by single spaces"}
	}
	return Command{Name: verb + " " + action, Args: args}, nil
}

// Verb returns the first token ("STREAM").
func (c Command) Verb() string {
	v, _, _ := strings.Cut(c.Name, " ")
	return v
}

// Action returns the second token ("STATUS").
func (c Command) Action() string {
	_, a, _ := strings.Cut(c.Name, " ")
	return a
}

// Result returns the RESULT= value of the arguments, or "".
func (c Command) Result() string {
	return ParseArgs(c.Args)["RESULT"]
}

// OK reports whether the command carries RESULT=OK.
func (c Command) OK() bool { return c.Result() == "OK" }

// String renders the command as it appears on the wire, without the
// trailing newline.
func (c Command) String() string {
	if c.Args == "" {
		return c.Name
	}
	return c.Name + " " + c.Args
}

// ParseArgs parses a space separated list of KEY=VALUE pairs.  Values
// may be double-quoted, in which case they can contain spaces and \"
// escapes.  A bare KEY maps to "".  Later duplicates win.
func ParseArgs(s string) map[string]string {
	out := make(map[string]string)
	for i := 0; i < len(s); {
		for i < len(s) && s[i] == ' ' {
			i++
		}
		if i >= len(s) {
			break
		}

		start := i
		for i < len(s) && s[i] != '=' && s[i] != ' ' {
			i++
		}
		key := s[start:i]
		if i >= len(s) || s[i] == ' ' {
			out[key] = ""
			continue
		}
		i++ // '='

		if i < len(s) && s[i] == '"' {
			i++
			var b strings.Builder
			for i < len(s) && s[i] != '"' {
				if s[i] == '\\' && i+1 < len(s) {
					i++
				}
				b.WriteByte(s[i])
				i++
			}
			i++ // closing quote, if any
			out[key] = b.String()
			continue
		}

		start = i
		for i < len(s) && s[i] != ' ' {
			i++
		}
		out[key] = s[start:i]
	}
	return out
}

// FormatArgs renders pairs in sorted key order, quoting values that
// contain spaces or quotes.
func FormatArgs(pairs map[string]string) string {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(quoteValue(pairs[k]))
	}
	return b.String()
}

func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " \t\"") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
}

func hasSpace(s string) bool {
	return strings.IndexFunc(s, unicode.IsSpace) >= 0
}
