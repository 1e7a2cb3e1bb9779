package llm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewGeminiClientAppliesDefaults(t *testing.T) {
	client, err := NewGeminiClient("fake-key", "", Options{})
	require.NoError(t, err)
	require.Equal(t, "gemini-2.5-pro", client.GetModel())
	require.NotNil(t, client.limiter)
}

func TestNewGeminiClientHonorsExplicitModel(t *testing.T) {
	client, err := NewGeminiClient("fake-key", "gemini-2.5-flash", DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, "gemini-2.5-flash", client.GetModel())
}

func TestMessageRoleConstantsMatchGeminiVocabulary(t *testing.T) {
	require.Equal(t, Role("model"), RoleModel)
	require.Equal(t, Role("user"), RoleUser)
	require.Equal(t, Role("system"), RoleSystem)
}
