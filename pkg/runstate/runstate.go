// Package runstate implements C5 (Run State): the immutable RunConfig, the
// mutable RunState that owns a run's three directories, and the
// RunResult/RunManifest records persisted to JSON.
//
// Grounded on the teacher's manifest persistence idiom
// (pkg/core/tools/shared/manifest.go) generalized from a knowledge-base
// summary to the full run lifecycle record spec §3 describes.
package runstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OpenHandsMode mirrors config.OpenHandsMode without importing pkg/config,
// keeping runstate dependency-free of process configuration concerns.
type OpenHandsMode string

// Status is a RunResult's lifecycle state. Terminal states are sticky.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// StopReason is written to the manifest exactly once, at FINALIZE.
type StopReason string

const (
	StopReasonPassed        StopReason = "passed"
	StopReasonMaxIterations StopReason = "max_iterations"
	StopReasonCompleted     StopReason = "completed"
	StopReasonFailed        StopReason = "failed"
	StopReasonError         StopReason = "error"
)

// RunConfig is immutable for the lifetime of a run.
type RunConfig struct {
	Task          string        `json:"task"`
	MaxIterations int           `json:"max_iterations"`
	BaseDir       string        `json:"base_dir"`
	RunID         string        `json:"run_id"`
	OpenHandsMode OpenHandsMode `json:"openhands_mode"`
}

// coreMaxIterations is the hard upper bound on MaxIterations in this
// implementation (spec §3: "upper bound 2 in core").
const coreMaxIterations = 2

// NewRunConfig validates and fills in defaults (run_id, max_iterations).
func NewRunConfig(task string, maxIterations int, baseDir, runID string, mode OpenHandsMode) (RunConfig, error) {
	if maxIterations == 0 {
		maxIterations = 2
	}
	if maxIterations < 1 {
		return RunConfig{}, fmt.Errorf("runstate: max_iterations must be >= 1, got %d", maxIterations)
	}
	if maxIterations > coreMaxIterations {
		maxIterations = coreMaxIterations
	}
	if runID == "" {
		runID = generateRunID()
	}
	if mode == "" {
		mode = "mock"
	}
	return RunConfig{
		Task:          task,
		MaxIterations: maxIterations,
		BaseDir:       baseDir,
		RunID:         runID,
		OpenHandsMode: mode,
	}, nil
}

func generateRunID() string {
	ts := time.Now().UTC().Format("20060102_150405")
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%s", ts, suffix)
}

// IterationResult is the record of one Generate→Serve→Evaluate(+Patch) pass.
type IterationResult struct {
	Iteration       int            `json:"iteration"`
	CodeGenerated   any            `json:"code_generated,omitempty"`
	Screenshots     map[string]string `json:"screenshots,omitempty"` // viewport -> path
	Evaluation      any            `json:"evaluation,omitempty"`
	Score           int            `json:"score"`
	Passed          bool           `json:"passed"`
	PhaseDurationsMs map[string]int64 `json:"phase_durations_ms,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// PassingScore is the rubric's passing threshold (spec §6 rubric).
const PassingScore = 70

// NewIterationResult derives Passed from Score per the spec invariant
// passed = score >= 70.
func NewIterationResult(iteration, score int) IterationResult {
	return IterationResult{Iteration: iteration, Score: score, Passed: score >= PassingScore}
}

// RunResult is the outer, user-visible record of a run.
type RunResult struct {
	RunID             string            `json:"run_id"`
	Status            Status            `json:"status"`
	Iterations        []IterationResult `json:"iterations"`
	FinalScore        int               `json:"final_score"`
	FinalPassed       bool              `json:"final_passed"`
	PreviewURL        string            `json:"preview_url"`
	BootstrapRepoURL  string            `json:"bootstrap_repo_url,omitempty"`
	BootstrapRef      string            `json:"bootstrap_ref,omitempty"`
	ErrorMessage      string            `json:"error_message,omitempty"`
}

// RunManifest mirrors RunResult plus run-metadata required for
// interoperability (spec §6 "Manifest schema").
type RunManifest struct {
	RunID                 string     `json:"run_id"`
	Task                  string     `json:"task"`
	StartTime             string     `json:"start_time"`
	EndTime               string     `json:"end_time,omitempty"`
	DurationSeconds       float64    `json:"duration_seconds"`
	GeminiModelVersion    string     `json:"gemini_model_version"`
	EvaluatorModelVersion string     `json:"evaluator_model_version"`
	RubricVersion         string     `json:"rubric_version"`
	OpenHandsMode         OpenHandsMode `json:"openhands_mode"`
	MaxIterations         int        `json:"max_iterations"`
	IterationCount        int        `json:"iteration_count"`
	FinalScore            int        `json:"final_score"`
	FinalPassed           bool       `json:"final_passed"`
	StopReason            StopReason `json:"stop_reason"`
	WorkspaceDir          string     `json:"workspace_dir"`
	ArtifactsDir          string     `json:"artifacts_dir"`
	SiteDir               string     `json:"site_dir"`
	PreviewURL            string     `json:"preview_url"`
	ErrorMessage          string     `json:"error_message,omitempty"`

	startedAt time.Time
}

// State owns everything under the run's three directories: workspace/,
// artifacts/, site/. It is the sole writer of state.json, created at run
// start and expected to be discarded at run end.
type State struct {
	Config       RunConfig
	WorkspaceDir string
	ArtifactsDir string
	SiteDir      string

	Result   RunResult
	Manifest RunManifest
}

// New creates the run directory tree and an initial RunState/RunManifest,
// grounded on the filesystem layout of spec §6.
func New(cfg RunConfig, geminiModel, evaluatorModel, rubricVersion string) (*State, error) {
	runDir := filepath.Join(cfg.BaseDir, "runs", cfg.RunID)
	workspaceDir := filepath.Join(runDir, "workspace")
	artifactsDir := filepath.Join(runDir, "artifacts")
	siteDir := filepath.Join(runDir, "site")

	for _, dir := range []string{workspaceDir, artifactsDir, siteDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("runstate: create %s: %w", dir, err)
		}
	}

	now := time.Now().UTC()
	s := &State{
		Config:       cfg,
		WorkspaceDir: workspaceDir,
		ArtifactsDir: artifactsDir,
		SiteDir:      siteDir,
		Result: RunResult{
			RunID:  cfg.RunID,
			Status: StatusRunning,
		},
		Manifest: RunManifest{
			RunID:                 cfg.RunID,
			Task:                  cfg.Task,
			StartTime:             now.Format(time.RFC3339Nano),
			GeminiModelVersion:    geminiModel,
			EvaluatorModelVersion: evaluatorModel,
			RubricVersion:         rubricVersion,
			OpenHandsMode:         cfg.OpenHandsMode,
			MaxIterations:         cfg.MaxIterations,
			WorkspaceDir:          workspaceDir,
			ArtifactsDir:          artifactsDir,
			SiteDir:               siteDir,
			startedAt:             now,
		},
	}

	if err := s.SaveState(); err != nil {
		return nil, err
	}
	if err := s.SaveManifest(); err != nil {
		return nil, err
	}

	return s, nil
}

// StatePath / ManifestPath are the well-known artifact file locations.
func (s *State) StatePath() string    { return filepath.Join(s.ArtifactsDir, "state.json") }
func (s *State) ManifestPath() string { return filepath.Join(s.ArtifactsDir, "manifest.json.run") }

// SaveState serializes RunResult to state.json via write-temp-then-rename.
func (s *State) SaveState() error {
	return writeJSONAtomic(s.StatePath(), s.Result)
}

// SaveManifest serializes RunManifest. Note this is a distinct file from
// the artifact Manifest (manifest.json) tracked by pkg/trace; the run
// manifest records run-level metadata, not per-file artifact entries.
func (s *State) SaveManifest() error {
	return writeJSONAtomic(s.ManifestPath(), s.Manifest)
}

// AddIteration appends an iteration result, keeping Result/Manifest in
// sync, and persists both.
func (s *State) AddIteration(ir IterationResult) error {
	s.Result.Iterations = append(s.Result.Iterations, ir)
	s.Manifest.IterationCount = len(s.Result.Iterations)
	if err := s.SaveState(); err != nil {
		return err
	}
	return s.SaveManifest()
}

// Complete transitions the run to its terminal state: completed unless
// stopReason is error, in which case failed. Status transitions are sticky
// — Complete is a no-op once the run is already terminal.
func (s *State) Complete(stopReason StopReason, finalScore int, finalPassed bool, previewURL, errMsg string) error {
	if s.Result.Status != StatusRunning {
		return nil
	}

	now := time.Now().UTC()
	s.Result.FinalScore = finalScore
	s.Result.FinalPassed = finalPassed
	s.Result.PreviewURL = previewURL
	if errMsg != "" {
		s.Result.ErrorMessage = errMsg
	}

	if stopReason == StopReasonError {
		s.Result.Status = StatusFailed
	} else {
		s.Result.Status = StatusCompleted
	}

	s.Manifest.EndTime = now.Format(time.RFC3339Nano)
	s.Manifest.DurationSeconds = now.Sub(s.Manifest.startedAt).Seconds()
	s.Manifest.FinalScore = finalScore
	s.Manifest.FinalPassed = finalPassed
	s.Manifest.StopReason = stopReason
	s.Manifest.PreviewURL = previewURL
	s.Manifest.ErrorMessage = errMsg

	if err := s.SaveState(); err != nil {
		return err
	}
	return s.SaveManifest()
}

func writeJSONAtomic(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("runstate: marshal %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("runstate: write temp %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("runstate: rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
