package trace

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmitAssignsContiguousIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	log, err := NewLog(path, nil)
	require.NoError(t, err)

	first, err := log.Emit(EventRunStart, "run started", nil)
	require.NoError(t, err)
	require.Equal(t, 0, first.EventID)

	second, err := log.Emit(EventIterationStart, "iter 1", map[string]any{"iteration": 1})
	require.NoError(t, err)
	require.Equal(t, 1, second.EventID)

	last, err := log.Emit(EventRunEnd, "run ended", nil)
	require.NoError(t, err)
	require.Equal(t, 2, last.EventID)

	reader := NewReader(path)
	events, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, EventRunStart, events[0].EventType)
	require.Equal(t, EventRunEnd, events[len(events)-1].EventType)
	for i, ev := range events {
		require.Equal(t, i, ev.EventID)
	}
}

func TestEmitRedactsSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	redact := func(key, value string) string {
		if key == "api_key" {
			return "****"
		}
		return value
	}
	log, err := NewLog(path, redact)
	require.NoError(t, err)

	_, err = log.Emit(EventInfo, "calling provider", map[string]any{"api_key": "sk-should-not-appear"})
	require.NoError(t, err)

	events, err := NewReader(path).ReadAll()
	require.NoError(t, err)
	require.Equal(t, "****", events[0].Data["api_key"])
}

func TestManifestRegisterIsAtomic(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	path, err := store.SaveScreenshot(1, "desktop.png", []byte("fake-png"), map[string]any{"phase": "setup"})
	require.NoError(t, err)
	require.FileExists(t, path)

	entries := store.Manifest.Entries(CategoryScreenshots)
	require.Len(t, entries, 1)
	require.Equal(t, "desktop.png", entries[0].Filename)

	reloaded, err := NewManifest(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)
	require.Len(t, reloaded.Categories[CategoryScreenshots], 1)
}
