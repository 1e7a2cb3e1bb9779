package evaluator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/yknld/geminiloop/pkg/prompt"
)

// functionCall is one parsed `ACTION: tool_name({...})` line.
type functionCall struct {
	Name string
	Args map[string]any
}

// actionLinePattern finds the tool name prefix of an ACTION line; the
// argument object itself is recovered with prompt.ExtractJSON rather than
// captured by the regex, so nested braces in the arguments never break
// the match (spec §4.7's brace-matcher requirement applies here too).
var actionLinePattern = regexp.MustCompile(`(?m)^ACTION:\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\(`)

// parseFunctionCalls iterates every ACTION line in response and parses
// its argument object, collecting every function_call observed — per
// spec §4.10 step 3 the caller must not assume only the first is present.
func parseFunctionCalls(response string) []functionCall {
	var calls []functionCall

	matches := actionLinePattern.FindAllStringSubmatchIndex(response, -1)
	for _, m := range matches {
		name := response[m[2]:m[3]]
		parenStart := m[1] - 1 // index of '('
		rest := response[parenStart:]

		args := map[string]any{}
		if jsonText, err := prompt.ExtractJSON(rest); err == nil {
			_ = json.Unmarshal([]byte(jsonText), &args)
		}

		calls = append(calls, functionCall{Name: name, Args: args})
	}

	return calls
}

// extractReasoning concatenates every Thought: line in response.
func extractReasoning(response string) string {
	var lines []string
	for _, line := range strings.Split(response, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "Thought:") {
			lines = append(lines, strings.TrimSpace(strings.TrimPrefix(trimmed, "Thought:")))
		}
	}
	return strings.Join(lines, " ")
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", v)
	}
	return ""
}

func intArg(args map[string]any, key string) int {
	v, ok := args[key]
	if !ok {
		return 0
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case string:
		n, _ := strconv.Atoi(val)
		return n
	default:
		return 0
	}
}
