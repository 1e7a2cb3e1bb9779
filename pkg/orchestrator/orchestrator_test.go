package orchestrator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"

	"github.com/yknld/geminiloop/pkg/codegen"
	"github.com/yknld/geminiloop/pkg/config"
	"github.com/yknld/geminiloop/pkg/llm"
	"github.com/yknld/geminiloop/pkg/pathcfg"
	"github.com/yknld/geminiloop/pkg/runstate"
)

// fakeEngineClient answers successive scoring calls with the scores listed
// in Scores (in order, holding the last one once exhausted) and every other
// (exploration) call by finishing immediately, so a full RunLoop completes
// without a live LLM or browser driver.
type fakeEngineClient struct {
	Scores   []int
	scoreIdx int
}

func (f *fakeEngineClient) Chat(messages []llm.Message) (string, error) {
	for _, m := range messages {
		if strings.Contains(m.Content, "RUBRIC OUTPUT CONTRACT") {
			score := 90
			if len(f.Scores) > 0 {
				idx := f.scoreIdx
				if idx >= len(f.Scores) {
					idx = len(f.Scores) - 1
				}
				score = f.Scores[idx]
				f.scoreIdx++
			}
			return scoringResponse(score), nil
		}
	}
	return "Thought: nothing more to explore\nACTION: finish_exploration({})", nil
}
func (f *fakeEngineClient) ChatStream(messages []llm.Message, cb llm.StreamCallback) (string, error) {
	return f.Chat(messages)
}
func (f *fakeEngineClient) CheckConnection() error { return nil }
func (f *fakeEngineClient) GetModel() string       { return "fake" }

// scoringResponse builds a rubric JSON payload whose category_scores sum to
// exactly score, greedily filling each category's max in weight order
// (functionality, visual_design, ux, accessibility, responsiveness,
// robustness) before moving to the next.
func scoringResponse(score int) string {
	order := []struct {
		name string
		max  int
	}{
		{"functionality", 25},
		{"visual_design", 25},
		{"ux", 15},
		{"accessibility", 15},
		{"responsiveness", 15},
		{"robustness", 5},
	}

	remaining := score
	categoryScores := make(map[string]int, len(order))
	for _, c := range order {
		v := c.max
		if v > remaining {
			v = remaining
		}
		if v < 0 {
			v = 0
		}
		categoryScores[c.name] = v
		remaining -= v
	}

	payload := map[string]any{
		"score":           score,
		"passed":          score >= 70,
		"category_scores": categoryScores,
		"issues":          []any{},
		"fix_suggestions": []any{},
		"feedback":        "synthetic score",
	}
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// readManifest reads and parses the run's on-disk manifest.json.run, the
// only place stop_reason and error_message are persisted (RunResult itself
// carries no StopReason field).
func readManifest(t *testing.T, workspaceRoot, runID string) runstate.RunManifest {
	t.Helper()
	path := filepath.Join(workspaceRoot, "runs", runID, "artifacts", "manifest.json.run")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var manifest runstate.RunManifest
	require.NoError(t, json.Unmarshal(data, &manifest))
	return manifest
}

// genericToolServerScript acks initialize and answers every tools/call with
// a double-wrapped null result, sufficient for every tool the observation
// phase calls defensively. A "screenshot" call also writes a dummy PNG
// payload to the requested filename, since the evaluator now reads real
// bytes back off disk rather than trusting the RPC ack payload.
const genericToolServerScript = `
while IFS= read -r line; do
  id=$(echo "$line" | sed -n 's/.*"id":\([0-9]*\).*/\1/p')
  case "$line" in
    *'"method":"initialize"'*)
      printf '{"jsonrpc":"2.0","id":%s,"result":{}}\n' "$id"
      ;;
    *'"name":"screenshot"'*)
      filename=$(echo "$line" | sed -n 's/.*"filename":"\([^"]*\)".*/\1/p')
      if [ -n "$filename" ]; then
        printf '\211PNG\r\n\032\n' > "$filename"
      fi
      printf '{"jsonrpc":"2.0","id":%s,"result":{"success":true,"result":{"result":null}}}\n' "$id"
      ;;
    *'"method":"tools/call"'*)
      printf '{"jsonrpc":"2.0","id":%s,"result":{"success":true,"result":{"result":null}}}\n' "$id"
      ;;
  esac
done
`

// transportLossServerScript acks initialize plus the first two tools/call
// requests (navigate, the dialog-wrapper evaluate), then exits without
// responding to the third (the desktop screenshot) — simulating the C6
// subprocess dying mid-step (scenario S6). The desktop screenshot call's
// error is the first one Observer.Run does not swallow, so it surfaces as
// a lost transport (errkind.TransportError) and must propagate all the way
// to stop_reason=error.
const transportLossServerScript = `
n=0
while IFS= read -r line; do
  id=$(echo "$line" | sed -n 's/.*"id":\([0-9]*\).*/\1/p')
  case "$line" in
    *'"method":"initialize"'*)
      printf '{"jsonrpc":"2.0","id":%s,"result":{}}\n' "$id"
      ;;
    *'"method":"tools/call"'*)
      n=$((n + 1))
      if [ "$n" -gt 2 ]; then
        exit 0
      fi
      filename=$(echo "$line" | sed -n 's/.*"filename":"\([^"]*\)".*/\1/p')
      if [ -n "$filename" ]; then
        printf '\211PNG\r\n\032\n' > "$filename"
      fi
      printf '{"jsonrpc":"2.0","id":%s,"result":{"success":true,"result":{"result":null}}}\n' "$id"
      ;;
  esac
done
`

func TestRunLoopCompletesOnFirstPassingIteration(t *testing.T) {
	t.Cleanup(pathcfg.Reset)
	roots, err := pathcfg.Init(pathcfg.Options{WorkspaceRootOverride: t.TempDir()})
	require.NoError(t, err)
	roots.PreviewPort = 0 // let the OS pick an ephemeral port for the test

	cfg := config.Default()
	cfg.WorkspaceRoot = roots.WorkspaceRoot

	engine := New(cfg, roots, BrowserDriverCommand{Command: "sh", Args: []string{"-c", genericToolServerScript}},
		&fakeEngineClient{}, codegen.NewScripted(), logr.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := engine.RunLoop(ctx, RunRequest{Task: "build a landing page", Notes: "dark theme", MaxIterations: 2})
	require.NoError(t, err)
	require.True(t, result.FinalPassed)
	require.Equal(t, 90, result.FinalScore)
	require.Len(t, result.Iterations, 1)
}

// TestRunLoopPatchesThenPasses covers scenario S2: a failing first
// iteration triggers a patch plan, and the second (re-evaluated) iteration
// passes.
func TestRunLoopPatchesThenPasses(t *testing.T) {
	t.Cleanup(pathcfg.Reset)
	roots, err := pathcfg.Init(pathcfg.Options{WorkspaceRootOverride: t.TempDir()})
	require.NoError(t, err)
	roots.PreviewPort = 0

	cfg := config.Default()
	cfg.WorkspaceRoot = roots.WorkspaceRoot

	engine := New(cfg, roots, BrowserDriverCommand{Command: "sh", Args: []string{"-c", genericToolServerScript}},
		&fakeEngineClient{Scores: []int{45, 82}}, codegen.NewScripted(), logr.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := engine.RunLoop(ctx, RunRequest{Task: "build a landing page", MaxIterations: 2})
	require.NoError(t, err)
	require.True(t, result.FinalPassed)
	require.Equal(t, 82, result.FinalScore)
	require.Len(t, result.Iterations, 2)
	require.False(t, result.Iterations[0].Passed)
	require.True(t, result.Iterations[1].Passed)

	manifest := readManifest(t, roots.WorkspaceRoot, result.RunID)
	require.Equal(t, runstate.StopReasonPassed, manifest.StopReason)
}

// TestRunLoopReachesMaxIterationsWhenNeverPassing covers scenario S3: every
// iteration keeps scoring below the passing threshold and the run exhausts
// its iteration budget without ever passing.
func TestRunLoopReachesMaxIterationsWhenNeverPassing(t *testing.T) {
	t.Cleanup(pathcfg.Reset)
	roots, err := pathcfg.Init(pathcfg.Options{WorkspaceRootOverride: t.TempDir()})
	require.NoError(t, err)
	roots.PreviewPort = 0

	cfg := config.Default()
	cfg.WorkspaceRoot = roots.WorkspaceRoot

	engine := New(cfg, roots, BrowserDriverCommand{Command: "sh", Args: []string{"-c", genericToolServerScript}},
		&fakeEngineClient{Scores: []int{60, 60}}, codegen.NewScripted(), logr.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := engine.RunLoop(ctx, RunRequest{Task: "build a landing page", MaxIterations: 2})
	require.NoError(t, err)
	require.False(t, result.FinalPassed)
	require.Equal(t, 60, result.FinalScore)
	require.Len(t, result.Iterations, 2)

	manifest := readManifest(t, roots.WorkspaceRoot, result.RunID)
	require.Equal(t, runstate.StopReasonMaxIterations, manifest.StopReason)
}

// TestRunLoopSetsErrorStopReasonWhenBrowserTransportLost covers scenario
// S6: the C6 subprocess is lost mid-step, which must surface as
// stop_reason=error with a populated error_message rather than being
// silently folded into max_iterations.
func TestRunLoopSetsErrorStopReasonWhenBrowserTransportLost(t *testing.T) {
	t.Cleanup(pathcfg.Reset)
	roots, err := pathcfg.Init(pathcfg.Options{WorkspaceRootOverride: t.TempDir()})
	require.NoError(t, err)
	roots.PreviewPort = 0

	cfg := config.Default()
	cfg.WorkspaceRoot = roots.WorkspaceRoot

	engine := New(cfg, roots, BrowserDriverCommand{Command: "sh", Args: []string{"-c", transportLossServerScript}},
		&fakeEngineClient{}, codegen.NewScripted(), logr.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := engine.RunLoop(ctx, RunRequest{Task: "build a landing page", MaxIterations: 1})
	require.Error(t, err)
	require.False(t, result.FinalPassed)
	require.NotEmpty(t, result.ErrorMessage)

	manifest := readManifest(t, roots.WorkspaceRoot, result.RunID)
	require.Equal(t, runstate.StopReasonError, manifest.StopReason)
	require.NotEmpty(t, manifest.ErrorMessage)
}
