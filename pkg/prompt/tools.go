package prompt

import (
	"fmt"
	"strings"
)

// Tool is a minimal description of one browser-driver tool exposed to the
// evaluator. It mirrors the teacher's Tool interface shape (Name,
// Description, Parameters) so BuildToolsSection stays a pure string
// formatter independent of the concrete genai function-declaration type.
type Tool struct {
	Name        string
	Description string
	Parameters  string
}

// BuildToolsSection renders a compact, context-efficient reference for the
// tool set the evaluator may call by writing an ACTION: line in its reply —
// grounded on the teacher's BuildToolsSection tabular layout.
func BuildToolsSection(tools []Tool) string {
	var sb strings.Builder
	sb.WriteString("# AVAILABLE TOOLS\n\n")
	sb.WriteString("**Call format**: ACTION: tool_name({\"param\": \"value\"})\n\n")
	for _, t := range tools {
		fmt.Fprintf(&sb, "- **%s**(%s) — %s\n", t.Name, t.Parameters, t.Description)
	}
	return sb.String()
}

// DefaultTools is the evaluator's superset tool schema (spec §4.6).
var DefaultTools = []Tool{
	{"navigate", "url", "Navigate the page to a new URL within the preview origin."},
	{"get_url", "", "Return the current page URL."},
	{"screenshot", "fullPage, filename", "Capture a screenshot of the current viewport or full page."},
	{"dom_snapshot", "", "Return a serialized snapshot of the current DOM."},
	{"console_messages", "", "Return console messages logged since the last call."},
	{"evaluate", "expression", "Run a JavaScript expression in the page and return its result."},
	{"wait", "ms", "Pause for the given number of milliseconds."},
	{"wait_for", "selector|text, timeout", "Wait until a selector or text appears, up to timeout."},
	{"click", "selector", "Click the element matching selector."},
	{"type", "selector, text", "Type text into the element matching selector."},
	{"hover", "selector", "Hover over the element matching selector."},
	{"press_key", "key", "Press a single keyboard key."},
	{"scroll", "direction, amount", "Scroll the page in the given direction by amount pixels."},
	{"start_recording", "path", "Start recording a video of the session to path."},
	{"stop_recording", "", "Stop the active recording."},
	{"finish_exploration", "", "Signal that exploration is complete; ends the loop."},
}
