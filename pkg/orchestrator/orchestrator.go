// Package orchestrator implements C11 (Orchestration Engine): the bounded
// iteration controller that composes C1-C10 into one run_loop call.
//
// Grounded on the teacher's cmd/falcon main-loop shape (init roots, run
// the work, always shut down cleanly in a deferred block) and
// pkg/core/init.go's singleton-with-reset convention, generalized from a
// single-shot CLI invocation into the INIT -> BOOTSTRAP -> PREVIEW_UP ->
// PLAN -> ITER(k) -> FINALIZE state machine.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/yknld/geminiloop/pkg/bootstrap"
	"github.com/yknld/geminiloop/pkg/browser"
	"github.com/yknld/geminiloop/pkg/codegen"
	"github.com/yknld/geminiloop/pkg/config"
	"github.com/yknld/geminiloop/pkg/errkind"
	"github.com/yknld/geminiloop/pkg/evaluator"
	"github.com/yknld/geminiloop/pkg/llm"
	"github.com/yknld/geminiloop/pkg/pathcfg"
	"github.com/yknld/geminiloop/pkg/patchplanner"
	"github.com/yknld/geminiloop/pkg/planner"
	"github.com/yknld/geminiloop/pkg/preview"
	"github.com/yknld/geminiloop/pkg/runstate"
	"github.com/yknld/geminiloop/pkg/trace"
)

// RunRequest is the run-entry boundary request (spec §6).
type RunRequest struct {
	Task          string
	Notes         string
	MaxIterations int
}

// BrowserDriverCommand names the subprocess C6 launches; callers set this to
// whatever browser-driver binary is installed in the deployment.
type BrowserDriverCommand struct {
	Command string
	Args    []string
}

// Engine owns one run's lifecycle. Exactly one run is ever active per
// Engine instance (spec §5 "single-threaded cooperative... exactly one
// active run per engine instance").
type Engine struct {
	Config  *config.Config
	Roots   *pathcfg.Roots
	Driver  BrowserDriverCommand
	LLM     llm.Client
	Adapter codegen.Adapter
	Log     logr.Logger
}

// New wires an Engine from process configuration, resolved roots, and the
// collaborator clients the caller has already constructed.
func New(cfg *config.Config, roots *pathcfg.Roots, driver BrowserDriverCommand, llmClient llm.Client, adapter codegen.Adapter, log logr.Logger) *Engine {
	return &Engine{Config: cfg, Roots: roots, Driver: driver, LLM: llmClient, Adapter: adapter, Log: log}
}

// RunLoop executes one full run: INIT, BOOTSTRAP, PREVIEW_UP, PLAN,
// ITER(1..max_iterations), FINALIZE. It never panics on a component error;
// every error path is captured into the returned RunResult per spec §7.
func (e *Engine) RunLoop(ctx context.Context, req RunRequest) (runstate.RunResult, error) {
	cfg, err := runstate.NewRunConfig(req.Task, req.MaxIterations, e.Config.WorkspaceRoot, "", runstate.OpenHandsMode(e.Config.OpenHandsMode))
	if err != nil {
		return runstate.RunResult{}, fmt.Errorf("orchestrator: invalid run config: %w", err)
	}

	state, err := runstate.New(cfg, e.Config.GeminiModel, e.Config.EvaluatorModel, evaluator.RubricVersion)
	if err != nil {
		return runstate.RunResult{}, fmt.Errorf("orchestrator: create run state: %w", err)
	}

	tracePath := fmt.Sprintf("%s/trace.jsonl", state.ArtifactsDir)
	tr, err := trace.NewLog(tracePath, config.Redact)
	if err != nil {
		return runstate.RunResult{}, fmt.Errorf("orchestrator: open trace log: %w", err)
	}

	store, err := trace.NewStore(state.ArtifactsDir)
	if err != nil {
		return runstate.RunResult{}, fmt.Errorf("orchestrator: open artifact store: %w", err)
	}

	tr.Infof("run_start task=%q max_iterations=%d", req.Task, cfg.MaxIterations)
	_, _ = tr.Emit(trace.EventRunStart, "run started", map[string]any{"task": req.Task, "max_iterations": cfg.MaxIterations})

	stopReason, finalScore, finalPassed, previewURL, runErr := e.run(ctx, req, state, tr, store)

	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
		_, _ = tr.Emit(trace.EventError, "run failed", map[string]any{"error": errMsg})
	}

	if err := state.Complete(stopReason, finalScore, finalPassed, previewURL, errMsg); err != nil {
		e.Log.Error(err, "failed to persist final run state")
	}
	_, _ = tr.Emit(trace.EventRunEnd, "run ended", map[string]any{"stop_reason": string(stopReason)})

	if _, err := store.SaveReport(state.Result); err != nil {
		e.Log.Error(err, "failed to save report")
	}

	return state.Result, runErr
}

// run executes the state machine body. The preview server and the browser
// driver subprocess are both torn down unconditionally via defer, per the
// invariant "Preview server start/stop is bracketed by try/finally."
func (e *Engine) run(ctx context.Context, req RunRequest, state *runstate.State, tr *trace.Log, store *trace.Store) (runstate.StopReason, int, bool, string, error) {
	// BOOTSTRAP
	bootstrapResult, err := bootstrap.Run(ctx, e.Roots, bootstrap.Options{
		RepoURL:        e.Config.TemplateRepoURL,
		Ref:            e.Config.TemplateRef,
		ProjectDirName: e.Config.ProjectDirName,
		RunInit:        e.Config.RunTemplateInit,
		PublishToSite:  e.Config.PublishToSite,
	}, e.Log)
	if err != nil {
		return runstate.StopReasonError, 0, false, "", fmt.Errorf("bootstrap: %w", err)
	}
	_, _ = tr.Emit(trace.EventInfo, "bootstrap complete", map[string]any{
		"enabled": bootstrapResult.Enabled, "files_count": bootstrapResult.FilesCount,
	})
	state.Result.BootstrapRepoURL = bootstrapResult.RepoURL
	state.Result.BootstrapRef = bootstrapResult.Ref

	// PREVIEW_UP
	previewServer := preview.New(e.Log, e.Roots.ProjectRoot, e.Roots.PreviewHost, e.Roots.PreviewPort)
	if err := previewServer.Start(); err != nil {
		return runstate.StopReasonError, 0, false, "", fmt.Errorf("preview: %w", err)
	}
	defer previewServer.Stop()
	previewURL := previewServer.URL()
	_, _ = tr.Emit(trace.EventInfo, "preview server up", map[string]any{"url": previewURL})

	// Browser driver subprocess, shared across the whole run.
	browserClient := browser.New(e.Log)
	if err := browserClient.Connect(ctx, e.Driver.Command, e.Driver.Args...); err != nil {
		return runstate.StopReasonError, 0, false, previewURL, fmt.Errorf("browser connect: %w", err)
	}
	defer browserClient.Disconnect()

	// PLAN
	brief, err := planner.Plan(e.LLM, req.Task, req.Notes)
	if err != nil {
		return runstate.StopReasonError, 0, false, previewURL, fmt.Errorf("plan: %w", err)
	}
	_, _ = tr.Emit(trace.EventInfo, "plan complete", map[string]any{"skipped": brief.Skipped, "source": brief.Source})
	if _, err := store.SaveFile("brief.txt", []byte(brief.Text), map[string]any{"skipped": brief.Skipped}); err != nil {
		e.Log.Error(err, "failed to save planner brief")
	}

	ev := evaluator.New(browserClient, e.LLM, tr, store, e.Log, e.Config.AgenticMaxSteps)

	var lastEval evaluator.EvaluationResult
	var lastPassed bool

	for k := 1; k <= state.Config.MaxIterations; k++ {
		iterStart := time.Now()
		_, _ = tr.Emit(trace.EventIterationStart, "iteration start", map[string]any{"iteration": k})

		// GENERATE
		_, _ = tr.Emit(trace.EventGenerationStart, "generation start", map[string]any{"iteration": k})
		genResult, genErr := e.Adapter.GenerateCode(req.Task, e.Roots.ProjectRoot, brief.Text)
		_, _ = tr.Emit(trace.EventGenerationEnd, "generation end", map[string]any{"iteration": k, "files_generated": len(genResult.FilesGenerated)})
		if genErr != nil {
			ir := runstate.NewIterationResult(k, 0)
			ir.Error = genErr.Error()
			_ = state.AddIteration(ir)
			stopReason, runErr := classifyComponentError(genErr)
			return stopReason, lastEval.Score, lastPassed, previewURL, runErr
		}

		// SERVE: code is generated into PROJECT_ROOT, the directory the
		// preview server already serves; nothing further to start per
		// iteration.
		_, _ = tr.Emit(trace.EventTestingStart, "serve ready", map[string]any{"iteration": k})
		_, _ = tr.Emit(trace.EventTestingEnd, "serve ready", map[string]any{"iteration": k})

		// EVALUATE
		_, _ = tr.Emit(trace.EventEvaluationStart, "evaluation start", map[string]any{"iteration": k})
		result, evalErr := ev.Evaluate(ctx, req.Task, previewURL, k)
		_, _ = tr.Emit(trace.EventEvaluationEnd, "evaluation end", map[string]any{"iteration": k})
		if evalErr != nil {
			ir := runstate.NewIterationResult(k, 0)
			ir.Error = evalErr.Error()
			_ = state.AddIteration(ir)
			stopReason, runErr := classifyComponentError(evalErr)
			return stopReason, lastEval.Score, lastPassed, previewURL, runErr
		}

		if _, err := store.SaveEvaluation(k, result); err != nil {
			e.Log.Error(err, "failed to save evaluation")
		}

		lastEval = result
		lastPassed = result.Passed

		ir := runstate.NewIterationResult(k, result.Score)
		ir.CodeGenerated = genResult
		ir.Evaluation = result
		ir.PhaseDurationsMs = map[string]int64{"iteration": time.Since(iterStart).Milliseconds()}
		_ = state.AddIteration(ir)

		_, _ = tr.Emit(trace.EventIterationEnd, "iteration end", map[string]any{"iteration": k, "score": result.Score, "passed": result.Passed})

		if result.Passed {
			return runstate.StopReasonPassed, result.Score, true, previewURL, nil
		}
		if k == state.Config.MaxIterations {
			return runstate.StopReasonMaxIterations, result.Score, false, previewURL, nil
		}

		// PATCH: mandatory re-evaluation next iteration replaces final_*.
		plan := patchplanner.Plan(result, defaultEditTarget)
		_, _ = tr.Emit(trace.EventPatchPlanned, "patch planned", map[string]any{"iteration": k, "issues_count": plan.IssuesCount})
		if _, err := store.SaveFile(fmt.Sprintf("patch_plan_iter_%d.json", k), mustJSON(plan), map[string]any{"iteration": k}); err != nil {
			e.Log.Error(err, "failed to save patch plan")
		}

		applyResult, applyErr := e.Adapter.ApplyPatchPlan(e.Roots.ProjectRoot, plan)
		_, _ = tr.Emit(trace.EventPatchApplied, "patch applied", map[string]any{"iteration": k, "success": applyResult.Success})
		if applyErr != nil || !applyResult.Success {
			// PatchFailure does not fail the run; it routes to finalize.
			return runstate.StopReasonMaxIterations, result.Score, false, previewURL, nil
		}
	}

	return runstate.StopReasonCompleted, lastEval.Score, lastPassed, previewURL, nil
}

// classifyComponentError maps a GENERATE/EVALUATE failure to its stop
// reason: PathEscape and a lost browser-driver transport are unrecoverable
// and set stop_reason=error with the error propagated up to FINALIZE; every
// other component error (e.g. Timeout) is recoverable and simply ends the
// run at max_iterations with no run-level error.
func classifyComponentError(err error) (runstate.StopReason, error) {
	var pathErr *errkind.PathEscape
	var transportErr *errkind.TransportError
	if errors.As(err, &pathErr) || errors.As(err, &transportErr) {
		return runstate.StopReasonError, err
	}
	return runstate.StopReasonMaxIterations, nil
}

// defaultEditTarget is the file the Patch Planner targets when issues don't
// name a specific file — the scaffold entry point most generated sites use.
const defaultEditTarget = "index.html"

func mustJSON(v any) []byte {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return []byte("{}")
	}
	return data
}
