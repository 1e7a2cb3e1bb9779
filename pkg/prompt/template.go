package prompt

import "strings"

// Substitute replaces every `{{key}}` placeholder in tmpl with its value
// from values, in a single pass over the template — never re-scanning
// substituted output. This is what spec §4.7 means by "substitution must
// not allow values to be interpreted as further placeholders": a naive
// iterated strings.Replace (or repeated regexp substitution) would let a
// value like `{{SECRET}}` be re-expanded on a later pass; building the
// output by walking tmpl once and looking up each placeholder exactly
// once rules that out structurally.
func Substitute(tmpl string, values map[string]string) string {
	var out strings.Builder
	rest := tmpl

	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			out.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			out.WriteString(rest)
			break
		}
		end += start

		out.WriteString(rest[:start])
		key := strings.TrimSpace(rest[start+2 : end])
		if val, ok := values[key]; ok {
			out.WriteString(val)
		} else {
			out.WriteString(rest[start : end+2])
		}
		rest = rest[end+2:]
	}

	return out.String()
}
