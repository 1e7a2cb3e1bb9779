package evaluator

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/yknld/geminiloop/pkg/browser"
	"github.com/yknld/geminiloop/pkg/llm"
	"github.com/yknld/geminiloop/pkg/trace"
)

// Evaluator composes the observation phase and the scoring phase into
// C10's single entry point: a rendered preview goes in, a rubric-scored
// EvaluationResult comes out.
type Evaluator struct {
	Browser  *browser.Client
	LLM      llm.Client
	Trace    *trace.Log
	Store    *trace.Store
	Log      logr.Logger
	MaxSteps int
}

// New wires the evaluator's browser and LLM clients together; MaxSteps
// defaults to DefaultMaxSteps when zero. store persists screenshots under
// the run's artifacts/screenshots/iter_<N> layout and registers them in
// the manifest (spec §6).
func New(b *browser.Client, client llm.Client, tr *trace.Log, store *trace.Store, log logr.Logger, maxSteps int) *Evaluator {
	return &Evaluator{Browser: b, LLM: client, Trace: tr, Store: store, Log: log, MaxSteps: maxSteps}
}

// Evaluate runs the full two-phase evaluation: observe, then score.
// iteration labels screenshots under this evaluation's artifacts/
// screenshots/iter_<N> directory.
func (e *Evaluator) Evaluate(ctx context.Context, task, previewURL string, iteration int) (EvaluationResult, error) {
	observer := NewObserver(e.Browser, e.LLM, e.Trace, e.Store, e.Log, iteration, e.MaxSteps)

	e.Trace.Infof("evaluation observation phase starting for %s", previewURL)
	obs, err := observer.Run(ctx, task, previewURL)
	if err != nil {
		return EvaluationResult{}, fmt.Errorf("evaluator: observation phase: %w", err)
	}

	e.Trace.Infof("evaluation scoring phase starting")
	result, err := Score(e.LLM, task, obs)
	if err != nil {
		return EvaluationResult{}, fmt.Errorf("evaluator: scoring phase: %w", err)
	}

	e.Trace.Infof("evaluation complete: score=%d passed=%v issues=%d", result.Score, result.Passed, len(result.Issues))
	return result, nil
}
