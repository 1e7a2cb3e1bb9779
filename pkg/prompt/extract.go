package prompt

import (
	"strings"

	"github.com/yknld/geminiloop/pkg/errkind"
)

// ExtractJSON finds the first balanced top-level JSON object or array in
// text, tolerating fenced code blocks and surrounding prose. Per spec
// §4.7 this must be a recursive brace-matcher, not a single non-greedy
// regex, because a non-greedy regex truncates at the first nested closing
// brace rather than the matching one.
func ExtractJSON(text string) (string, error) {
	candidate := stripFence(text)

	start := firstOpenBracket(candidate)
	if start < 0 {
		return "", &errkind.ProtocolShape{Detail: "no JSON object or array found in response"}
	}

	end, ok := matchBrackets(candidate, start)
	if !ok {
		return "", &errkind.ProtocolShape{Detail: "unbalanced braces in response"}
	}

	return candidate[start : end+1], nil
}

// stripFence removes a single leading/trailing ```...``` fence if present,
// without touching braces that appear inside surrounding prose.
func stripFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	withoutOpen := trimmed[3:]
	if nl := strings.IndexByte(withoutOpen, '\n'); nl >= 0 {
		// Drop an optional language tag on the fence's opening line.
		withoutOpen = withoutOpen[nl+1:]
	}
	if idx := strings.LastIndex(withoutOpen, "```"); idx >= 0 {
		withoutOpen = withoutOpen[:idx]
	}
	return strings.TrimSpace(withoutOpen)
}

func firstOpenBracket(s string) int {
	for i, r := range s {
		if r == '{' || r == '[' {
			return i
		}
	}
	return -1
}

// matchBrackets walks s from start, tracking bracket depth and honoring
// string literals (so braces inside quoted strings don't affect depth),
// returning the index of the matching closing bracket.
func matchBrackets(s string, start int) (int, bool) {
	open := rune(s[start])
	close := '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := rune(s[i])

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}

	return 0, false
}
