package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yknld/geminiloop/pkg/llm"
)

type fakeClient struct {
	response string
	err      error
	calls    [][]llm.Message
}

func (f *fakeClient) Chat(messages []llm.Message) (string, error) {
	f.calls = append(f.calls, messages)
	return f.response, f.err
}
func (f *fakeClient) ChatStream(messages []llm.Message, cb llm.StreamCallback) (string, error) {
	return f.Chat(messages)
}
func (f *fakeClient) CheckConnection() error { return nil }
func (f *fakeClient) GetModel() string       { return "fake" }

func TestPlanSkipsWhenNotesSupplied(t *testing.T) {
	client := &fakeClient{response: "should not be used"}
	brief, err := Plan(client, "build a landing page", "use a dark theme with a hero section")
	require.NoError(t, err)
	require.True(t, brief.Skipped)
	require.Equal(t, "notes", brief.Source)
	require.Equal(t, "use a dark theme with a hero section", brief.Text)
	require.Empty(t, client.calls)
}

func TestPlanCallsLLMWhenNoNotes(t *testing.T) {
	client := &fakeClient{response: "detailed brief text"}
	brief, err := Plan(client, "build a landing page", "")
	require.NoError(t, err)
	require.False(t, brief.Skipped)
	require.Equal(t, "planner", brief.Source)
	require.Equal(t, "detailed brief text", brief.Text)
	require.Len(t, client.calls, 1)
	require.Contains(t, client.calls[0][1].Content, "build a landing page")
}

func TestPlanFailsOnEmptyBrief(t *testing.T) {
	client := &fakeClient{response: ""}
	_, err := Plan(client, "task", "")
	require.Error(t, err)
}
