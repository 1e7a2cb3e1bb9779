package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	v := viper.New()
	cfg := Load(v)
	require.Equal(t, "project", cfg.ProjectDirName)
	require.Equal(t, 8000, cfg.PreviewPort)
	require.Equal(t, OpenHandsModeMock, cfg.OpenHandsMode)
	require.Equal(t, 600, cfg.OpenHandsTimeoutSeconds)
	require.Equal(t, 15, cfg.AgenticMaxSteps)
}

func TestLoadAppliesOverrides(t *testing.T) {
	v := viper.New()
	v.Set("preview_port", 9001)
	v.Set("openhands_mode", "LOCAL")
	cfg := Load(v)
	require.Equal(t, 9001, cfg.PreviewPort)
	require.Equal(t, OpenHandsModeLocal, cfg.OpenHandsMode)
}

func TestRedactMasksSecretKey(t *testing.T) {
	require.Equal(t, "****", Redact("api_key", "short"))
	masked := Redact("GOOGLE_AI_STUDIO_API_KEY", "AIzaSyABCDEFGHIJKLMNOPQRSTUVWXYZ012345")
	require.NotEqual(t, "AIzaSyABCDEFGHIJKLMNOPQRSTUVWXYZ012345", masked)
	require.Contains(t, masked, "...")
}

func TestRedactLeavesNonSecretsAlone(t *testing.T) {
	require.Equal(t, "gemini-2.5-pro", Redact("gemini_model", "gemini-2.5-pro"))
}
