package evaluator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yknld/geminiloop/pkg/llm"
)

type fakeScoringClient struct {
	response string
	err      error
}

func (f *fakeScoringClient) Chat(messages []llm.Message) (string, error) { return f.response, f.err }
func (f *fakeScoringClient) ChatStream(messages []llm.Message, cb llm.StreamCallback) (string, error) {
	return f.Chat(messages)
}
func (f *fakeScoringClient) CheckConnection() error { return nil }
func (f *fakeScoringClient) GetModel() string       { return "fake" }

func TestScoreSumsCategoryScoresRegardlessOfReportedTotal(t *testing.T) {
	client := &fakeScoringClient{response: `{
		"score": 999,
		"passed": true,
		"category_scores": {"functionality": 20, "visual_design": 20, "ux": 10, "accessibility": 10, "responsiveness": 10, "robustness": 5},
		"issues": [],
		"fix_suggestions": [],
		"feedback": "looks fine"
	}`}

	result, err := Score(client, "build a page", BrowserObservation{})
	require.NoError(t, err)
	require.Equal(t, 75, result.Score)
	require.True(t, result.Passed)
	require.Contains(t, result.Feedback, "clamped/recomputed")
}

func TestScoreClampsOutOfRangeCategoryScores(t *testing.T) {
	client := &fakeScoringClient{response: `{
		"score": 100,
		"category_scores": {"functionality": 999, "visual_design": -5, "ux": 15, "accessibility": 15, "responsiveness": 15, "robustness": 5},
		"issues": [],
		"fix_suggestions": [],
		"feedback": "ok"
	}`}

	result, err := Score(client, "task", BrowserObservation{})
	require.NoError(t, err)
	require.Equal(t, 25, result.CategoryScores["functionality"])
	require.Equal(t, 0, result.CategoryScores["visual_design"])
	require.Contains(t, result.Feedback, "clamped/recomputed")
}

func TestScoreFillsInMissingCategoriesAsZero(t *testing.T) {
	client := &fakeScoringClient{response: `{
		"score": 25,
		"category_scores": {"functionality": 25},
		"issues": [],
		"fix_suggestions": [],
		"feedback": "partial"
	}`}

	result, err := Score(client, "task", BrowserObservation{})
	require.NoError(t, err)
	require.Equal(t, 0, result.CategoryScores["visual_design"])
	require.Equal(t, 25, result.Score)
	require.False(t, result.Passed)
}

// capturingScoringClient records the Images attached to the last Chat call
// it received, so a test can assert real screenshot bytes were forwarded.
type capturingScoringClient struct {
	response   string
	lastImages []llm.Image
}

func (c *capturingScoringClient) Chat(messages []llm.Message) (string, error) {
	for _, m := range messages {
		if len(m.Images) > 0 {
			c.lastImages = m.Images
		}
	}
	return c.response, nil
}
func (c *capturingScoringClient) ChatStream(messages []llm.Message, cb llm.StreamCallback) (string, error) {
	return c.Chat(messages)
}
func (c *capturingScoringClient) CheckConnection() error { return nil }
func (c *capturingScoringClient) GetModel() string       { return "fake" }

func TestScoreReadsRealScreenshotBytesFromDisk(t *testing.T) {
	dir := t.TempDir()
	desktopPath := filepath.Join(dir, "desktop.png")
	pngBytes := []byte("\x89PNG\r\n\x1a\nfake-desktop")
	require.NoError(t, os.WriteFile(desktopPath, pngBytes, 0o644))

	client := &capturingScoringClient{response: `{
		"score": 70,
		"category_scores": {"functionality": 20, "visual_design": 20, "ux": 10, "accessibility": 10, "responsiveness": 5, "robustness": 5},
		"issues": [],
		"fix_suggestions": [],
		"feedback": "ok"
	}`}

	result, err := Score(client, "task", BrowserObservation{DesktopScreenshot: desktopPath})
	require.NoError(t, err)
	require.True(t, result.Passed)

	require.Len(t, client.lastImages, 1)
	require.Equal(t, pngBytes, client.lastImages[0].Data)
	require.Equal(t, "image/png", client.lastImages[0].MIMEType)
}

func TestScoreFailsWhenScreenshotPathUnreadable(t *testing.T) {
	client := &fakeScoringClient{response: `{}`}
	_, err := Score(client, "task", BrowserObservation{DesktopScreenshot: "/nonexistent/path/desktop.png"})
	require.Error(t, err)
}

func TestScoreAcceptsFencedJSONWithSurroundingProse(t *testing.T) {
	client := &fakeScoringClient{response: "Here is my evaluation:\n```json\n" + `{
		"score": 70,
		"category_scores": {"functionality": 20, "visual_design": 20, "ux": 10, "accessibility": 10, "responsiveness": 5, "robustness": 5},
		"issues": [{"category": "ux", "severity": "medium", "description": "small issue", "repro_steps": ["click button"]}],
		"fix_suggestions": ["improve spacing"],
		"feedback": "decent"
	}` + "\n```\nThanks.")

	result, err := Score(client, "task", BrowserObservation{})
	require.NoError(t, err)
	require.Equal(t, 70, result.Score)
	require.True(t, result.Passed)
	require.Len(t, result.Issues, 1)
	require.Equal(t, SeverityMedium, result.Issues[0].Severity)
}
