// Package browser implements C6 (Browser Driver Client): a subprocess
// speaking newline-delimited JSON-RPC 2.0 over its stdin/stdout to an
// external headless-browser MCP server.
//
// Grounded on the teacher's os/exec subprocess idiom
// (pkg/core/tools/search.go, primary-tool-with-fallback) for process
// lifecycle, and on marcus-qen-legator's internal/mcp/client.go
// connection/session bookkeeping shape (ServerConnection, Healthy,
// logr-based logging) for the client's own struct layout — adapted from
// an HTTP-transport MCP manager to a single stdio subprocess connection,
// since no pack example speaks line-delimited JSON-RPC over stdio.
package browser

import "encoding/json"

// request is one outgoing JSON-RPC 2.0 call or notification. ID is nil
// for notifications (e.g. notifications/initialized), which receive no
// response.
type request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      *int64      `json:"id,omitempty"`
	Method  string      `json:"method"`
	Params  any         `json:"params,omitempty"`
}

// response is one incoming JSON-RPC 2.0 reply, demultiplexed on ID by the
// client's background reader.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// toolCallResult is the body of every tools/call response per spec §6:
// `{success, result?, error?}`.
type toolCallResult struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ToolResult is what CallTool returns to its caller, after unwrapping the
// double result.result layer described in spec §4.6/§6.
type ToolResult struct {
	Success bool
	Result  any
	Error   string
}

// unwrapDouble implements the "result-shape contract": a tool's payload
// sometimes lives under an extra nesting level (response.result.result)
// because the MCP server wraps tool output a second time. Callers must
// unwrap defensively rather than assume one shape, per spec §7
// (ProtocolShape).
func unwrapDouble(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}

	var outer any
	if err := json.Unmarshal(raw, &outer); err != nil {
		return string(raw)
	}

	if m, ok := outer.(map[string]any); ok {
		if inner, ok := m["result"]; ok {
			return inner
		}
	}
	return outer
}
