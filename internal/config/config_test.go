package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
}

func TestNewManager_AppliesDefaults(t *testing.T) {
	resetViper(t)
	t.Setenv("RESEARCH_CORE_CHAT_HUGGINGFACE_TOKEN", "token")

	m, err := NewManager()
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, 5, cfg.Research.MaxIterations)
	assert.Equal(t, 0.90, cfg.Research.DedupSimilarityThreshold)
	assert.Len(t, cfg.Research.Providers, 6)
	assert.Equal(t, "stdio", cfg.MCP.TransportType)
}

func TestNewManager_EnvironmentOverridesDefault(t *testing.T) {
	resetViper(t)
	t.Setenv("RESEARCH_CORE_RESEARCH_MAX_ITERATIONS", "9")
	t.Setenv("RESEARCH_CORE_CHAT_HUGGINGFACE_TOKEN", "token")

	m, err := NewManager()
	require.NoError(t, err)
	assert.Equal(t, 9, m.GetConfig().Research.MaxIterations)
}

func TestValidate_RejectsMissingChatCredentials(t *testing.T) {
	resetViper(t)
	os.Unsetenv("RESEARCH_CORE_CHAT_HUGGINGFACE_TOKEN")
	os.Unsetenv("RESEARCH_CORE_CHAT_PREMIUM_API_KEY")

	m, err := NewManager()
	require.NoError(t, err)
	assert.Error(t, m.Validate())
}

func TestValidate_RejectsInvalidPort(t *testing.T) {
	resetViper(t)
	t.Setenv("RESEARCH_CORE_SERVER_PORT", "0")
	t.Setenv("RESEARCH_CORE_CHAT_HUGGINGFACE_TOKEN", "token")

	m, err := NewManager()
	require.NoError(t, err)
	assert.Error(t, m.Validate())
}

func TestIsDevelopment_DefaultsTrueWhenUnset(t *testing.T) {
	resetViper(t)
	os.Unsetenv("RESEARCH_CORE_ENVIRONMENT")
	t.Setenv("RESEARCH_CORE_CHAT_HUGGINGFACE_TOKEN", "token")

	m, err := NewManager()
	require.NoError(t, err)
	assert.True(t, m.IsDevelopment())
	assert.False(t, m.IsProduction())
}
