package browser

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-logr/logr"

	"github.com/yknld/geminiloop/pkg/errkind"
)

// DefaultTimeout is the per-request timeout for any tool call without a
// more specific override (spec §4.6).
const DefaultTimeout = 30 * time.Second

// timeoutOverrides holds the operation-specific budgets that exceed
// DefaultTimeout.
var timeoutOverrides = map[string]time.Duration{
	"screenshot":        90 * time.Second,
	"evaluate":          90 * time.Second,
	"console_messages":  60 * time.Second,
}

// timeoutFor returns the budget for a named tool call.
func timeoutFor(tool string) time.Duration {
	if d, ok := timeoutOverrides[tool]; ok {
		return d
	}
	return DefaultTimeout
}

// gracePeriod is how long Disconnect waits after SIGTERM before escalating
// to SIGKILL.
const gracePeriod = 3 * time.Second

// pendingCall is one in-flight request awaiting its response.
type pendingCall struct {
	resultCh chan response
}

// Client is a single subprocess connection to the browser driver MCP
// server. Scheduling is single-threaded cooperative at the caller level;
// Client itself runs exactly one background reader goroutine that
// demultiplexes responses by id.
type Client struct {
	log logr.Logger

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	mu      sync.Mutex
	pending map[int64]*pendingCall
	nextID  int64
	closed  atomic.Bool

	readerDone chan struct{}
}

// New returns an unconnected Client; call Connect to spawn the subprocess.
func New(log logr.Logger) *Client {
	return &Client{log: log.WithName("browser"), pending: make(map[int64]*pendingCall)}
}

// Connect spawns the subprocess, starts the background reader, sends
// initialize, and waits for its ack before sending the
// notifications/initialized notification.
func (c *Client) Connect(ctx context.Context, command string, args ...string) error {
	cmd := exec.CommandContext(ctx, command, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("browser: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("browser: stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return &errkind.TransportError{Cause: fmt.Errorf("browser: start subprocess: %w", err)}
	}

	c.cmd = cmd
	c.stdin = stdin
	c.stdout = stdout
	c.readerDone = make(chan struct{})

	go c.readLoop()

	initCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()
	if _, err := c.request(initCtx, "initialize", map[string]any{}); err != nil {
		return fmt.Errorf("browser: initialize: %w", err)
	}

	if err := c.notify("notifications/initialized", nil); err != nil {
		return fmt.Errorf("browser: send initialized notification: %w", err)
	}

	return nil
}

// CallTool invokes tools/call for name with args, honoring the
// operation-specific timeout, and returns the unwrapped payload.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (ToolResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeoutFor(name))
	defer cancel()

	raw, err := c.request(callCtx, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return ToolResult{}, &errkind.Timeout{Op: "browser.call_tool:" + name, Cause: callCtx.Err()}
		}
		return ToolResult{}, err
	}

	var body toolCallResult
	if err := json.Unmarshal(raw, &body); err != nil {
		return ToolResult{}, &errkind.ProtocolShape{Detail: fmt.Sprintf("tools/call %s: %v", name, err)}
	}

	return ToolResult{
		Success: body.Success,
		Result:  unwrapDouble(body.Result),
		Error:   body.Error,
	}, nil
}

// Disconnect performs a best-effort graceful shutdown: close stdin (most
// MCP servers exit on EOF), then SIGTERM, then SIGKILL after gracePeriod.
func (c *Client) Disconnect() {
	if c.closed.Swap(true) {
		return
	}

	if c.stdin != nil {
		_ = c.stdin.Close()
	}

	done := make(chan struct{})
	go func() {
		if c.cmd != nil {
			_ = c.cmd.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
		c.cleanupPending()
		return
	case <-time.After(gracePeriod):
	}

	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Signal(syscall.SIGTERM)
	}

	select {
	case <-done:
	case <-time.After(gracePeriod):
		if c.cmd != nil && c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		<-done
	}

	c.cleanupPending()
}

func (c *Client) cleanupPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, p := range c.pending {
		close(p.resultCh)
		delete(c.pending, id)
	}
}

// request sends a JSON-RPC call and blocks until its matching response
// arrives, the context is done, or the transport is lost.
func (c *Client) request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, &errkind.TransportError{Cause: fmt.Errorf("browser: client already disconnected")}
	}

	id := atomic.AddInt64(&c.nextID, 1)
	call := &pendingCall{resultCh: make(chan response, 1)}

	c.mu.Lock()
	c.pending[id] = call
	c.mu.Unlock()

	req := request{JSONRPC: "2.0", ID: &id, Method: method, Params: params}
	if err := c.writeLine(req); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, &errkind.TransportError{Cause: err}
	}

	select {
	case resp, ok := <-call.resultCh:
		if !ok {
			return nil, &errkind.TransportError{Cause: fmt.Errorf("browser: transport lost awaiting %s", method)}
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("browser: %s: %s", method, resp.Error.Message)
		}
		return resp.Result, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

// notify sends a JSON-RPC notification (no id, no response expected).
func (c *Client) notify(method string, params any) error {
	return c.writeLine(request{JSONRPC: "2.0", Method: method, Params: params})
}

func (c *Client) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("browser: marshal request: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.stdin.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("browser: write request: %w", err)
	}
	return nil
}

// readLoop is the client's single background reader task: it
// demultiplexes every incoming line to the pending call matching its id.
// Transport loss (EOF, read error) cancels every pending future.
func (c *Client) readLoop() {
	defer close(c.readerDone)

	scanner := bufio.NewScanner(c.stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var resp response
		if err := json.Unmarshal(line, &resp); err != nil {
			c.log.V(1).Info("browser: dropping unparseable line", "error", err.Error())
			continue
		}

		c.mu.Lock()
		call, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()

		if ok {
			call.resultCh <- resp
			close(call.resultCh)
		}
	}

	c.cleanupPending()
}
