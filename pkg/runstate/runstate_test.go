package runstate

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRunConfigDefaultsAndClamps(t *testing.T) {
	cfg, err := NewRunConfig("build a landing page", 0, t.TempDir(), "", "")
	require.NoError(t, err)
	require.Equal(t, 2, cfg.MaxIterations)
	require.NotEmpty(t, cfg.RunID)
	require.Equal(t, OpenHandsMode("mock"), cfg.OpenHandsMode)

	clamped, err := NewRunConfig("task", 7, t.TempDir(), "", "")
	require.NoError(t, err)
	require.Equal(t, coreMaxIterations, clamped.MaxIterations)

	_, err = NewRunConfig("task", -1, t.TempDir(), "", "")
	require.Error(t, err)
}

func TestNewCreatesDirectoryTreeAndPersistsState(t *testing.T) {
	base := t.TempDir()
	cfg, err := NewRunConfig("build a landing page", 2, base, "fixed_run_id", "mock")
	require.NoError(t, err)

	st, err := New(cfg, "gemini-2.5-pro", "gemini-2.5-flash", "v1")
	require.NoError(t, err)

	require.DirExists(t, st.WorkspaceDir)
	require.DirExists(t, st.ArtifactsDir)
	require.DirExists(t, st.SiteDir)
	require.FileExists(t, st.StatePath())
	require.FileExists(t, st.ManifestPath())

	data, err := os.ReadFile(st.StatePath())
	require.NoError(t, err)
	var persisted RunResult
	require.NoError(t, json.Unmarshal(data, &persisted))
	require.Equal(t, StatusRunning, persisted.Status)
}

func TestAddIterationThenCompleteIsSticky(t *testing.T) {
	cfg, err := NewRunConfig("task", 2, t.TempDir(), "", "mock")
	require.NoError(t, err)
	st, err := New(cfg, "gemini-2.5-pro", "gemini-2.5-flash", "v1")
	require.NoError(t, err)

	require.NoError(t, st.AddIteration(NewIterationResult(1, 45)))
	require.NoError(t, st.AddIteration(NewIterationResult(2, 82)))
	require.Len(t, st.Result.Iterations, 2)
	require.False(t, st.Result.Iterations[0].Passed)
	require.True(t, st.Result.Iterations[1].Passed)

	require.NoError(t, st.Complete(StopReasonPassed, 82, true, "http://127.0.0.1:8000", ""))
	require.Equal(t, StatusCompleted, st.Result.Status)
	require.Equal(t, StopReasonPassed, st.Manifest.StopReason)

	// Completing again must not overwrite the terminal state.
	require.NoError(t, st.Complete(StopReasonError, 0, false, "", "boom"))
	require.Equal(t, StatusCompleted, st.Result.Status)
	require.Equal(t, 82, st.Result.FinalScore)
}

func TestCompleteWithErrorStopReasonMarksFailed(t *testing.T) {
	cfg, err := NewRunConfig("task", 2, t.TempDir(), "", "mock")
	require.NoError(t, err)
	st, err := New(cfg, "gemini-2.5-pro", "gemini-2.5-flash", "v1")
	require.NoError(t, err)

	require.NoError(t, st.Complete(StopReasonError, 0, false, "", "bootstrap failed"))
	require.Equal(t, StatusFailed, st.Result.Status)
	require.Equal(t, "bootstrap failed", st.Result.ErrorMessage)
}
