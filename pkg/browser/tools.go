package browser

import (
	"context"
	"fmt"
)

// Navigate loads url in the page. Callers must have already validated url
// is http(s):// (spec §4.2/§4.10); Navigate does not re-validate.
func (c *Client) Navigate(ctx context.Context, url string) (ToolResult, error) {
	return c.CallTool(ctx, "navigate", map[string]any{"url": url})
}

// GetURL returns the current page URL.
func (c *Client) GetURL(ctx context.Context) (ToolResult, error) {
	return c.CallTool(ctx, "get_url", nil)
}

// Screenshot captures the viewport (or full page) and asks the driver to
// save it under filename.
func (c *Client) Screenshot(ctx context.Context, fullPage bool, filename string) (ToolResult, error) {
	return c.CallTool(ctx, "screenshot", map[string]any{"fullPage": fullPage, "filename": filename})
}

// DomSnapshot returns a serialized snapshot of the current DOM.
func (c *Client) DomSnapshot(ctx context.Context) (ToolResult, error) {
	return c.CallTool(ctx, "dom_snapshot", nil)
}

// ConsoleMessages returns console output logged since the last call.
func (c *Client) ConsoleMessages(ctx context.Context) (ToolResult, error) {
	return c.CallTool(ctx, "console_messages", nil)
}

// Evaluate runs a JavaScript expression in the page.
func (c *Client) Evaluate(ctx context.Context, expression string) (ToolResult, error) {
	return c.CallTool(ctx, "evaluate", map[string]any{"expression": expression})
}

// Wait pauses for ms milliseconds.
func (c *Client) Wait(ctx context.Context, ms int) (ToolResult, error) {
	return c.CallTool(ctx, "wait", map[string]any{"ms": ms})
}

// WaitFor waits until selectorOrText appears, up to timeoutMs.
func (c *Client) WaitFor(ctx context.Context, selectorOrText string, timeoutMs int) (ToolResult, error) {
	return c.CallTool(ctx, "wait_for", map[string]any{"selector": selectorOrText, "timeout": timeoutMs})
}

// Click clicks the element matching selector. If the driver's native
// click is unavailable (ProtocolShape) or fails, it falls back to an
// evaluate-based dispatch, per spec §4.10 step 4.
func (c *Client) Click(ctx context.Context, selector string) (ToolResult, error) {
	result, err := c.CallTool(ctx, "click", map[string]any{"selector": selector})
	if err == nil && result.Success {
		return result, nil
	}
	fallback := fmt.Sprintf(`(function(){var el=document.querySelector(%s); if(!el) return false; el.click(); return true;})()`, jsString(selector))
	return c.Evaluate(ctx, fallback)
}

// Type types text into the element matching selector, falling back to a
// synthetic input-event dispatch if the native tool fails.
func (c *Client) Type(ctx context.Context, selector, text string) (ToolResult, error) {
	result, err := c.CallTool(ctx, "type", map[string]any{"selector": selector, "text": text})
	if err == nil && result.Success {
		return result, nil
	}
	fallback := fmt.Sprintf(`(function(){var el=document.querySelector(%s); if(!el) return false; el.value=%s; el.dispatchEvent(new Event('input',{bubbles:true})); return true;})()`,
		jsString(selector), jsString(text))
	return c.Evaluate(ctx, fallback)
}

// Hover hovers over the element matching selector.
func (c *Client) Hover(ctx context.Context, selector string) (ToolResult, error) {
	return c.CallTool(ctx, "hover", map[string]any{"selector": selector})
}

// PressKey presses a single keyboard key.
func (c *Client) PressKey(ctx context.Context, key string) (ToolResult, error) {
	return c.CallTool(ctx, "press_key", map[string]any{"key": key})
}

// Scroll scrolls the page in direction by amount pixels. If the native
// tool fails, falls back to window.scrollBy.
func (c *Client) Scroll(ctx context.Context, direction string, amount int) (ToolResult, error) {
	result, err := c.CallTool(ctx, "scroll", map[string]any{"direction": direction, "amount": amount})
	if err == nil && result.Success {
		return result, nil
	}
	dx, dy := 0, amount
	if direction == "left" {
		dx, dy = -amount, 0
	} else if direction == "right" {
		dx, dy = amount, 0
	} else if direction == "up" {
		dy = -amount
	}
	fallback := fmt.Sprintf(`window.scrollBy(%d, %d); true;`, dx, dy)
	return c.Evaluate(ctx, fallback)
}

// StartRecording starts a session video recording to path.
func (c *Client) StartRecording(ctx context.Context, path string) (ToolResult, error) {
	return c.CallTool(ctx, "start_recording", map[string]any{"path": path})
}

// StopRecording stops the active recording.
func (c *Client) StopRecording(ctx context.Context) (ToolResult, error) {
	return c.CallTool(ctx, "stop_recording", nil)
}

// dialogWrapperScript replaces window.alert/confirm/prompt and
// onbeforeunload with no-op recorders, so dialogs never block the
// exploration loop (spec §4.10 step 2).
const dialogWrapperScript = `(function(){
  if (window.__geminiloop_dialogs) return true;
  window.__geminiloop_dialogs = [];
  var record = function(type, message) {
    window.__geminiloop_dialogs.push({type: type, message: String(message), timestamp: Date.now()});
  };
  window.alert = function(message) { record('alert', message); };
  window.confirm = function(message) { record('confirm', message); return true; };
  window.prompt = function(message) { record('prompt', message); return ''; };
  window.onbeforeunload = function() { record('beforeunload', ''); };
  return true;
})()`

// InjectDialogWrapper neutralizes native dialogs for the lifetime of the
// page (spec §4.10 per-run setup step 2).
func (c *Client) InjectDialogWrapper(ctx context.Context) (ToolResult, error) {
	return c.Evaluate(ctx, dialogWrapperScript)
}

func jsString(s string) string {
	escaped := make([]byte, 0, len(s)+2)
	escaped = append(escaped, '"')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\\':
			escaped = append(escaped, '\\', s[i])
		default:
			escaped = append(escaped, s[i])
		}
	}
	escaped = append(escaped, '"')
	return string(escaped)
}
