package mcp

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litagent/research-core/internal/config"
)

func newTestConfigManager(t *testing.T) *config.Manager {
	t.Helper()
	viper.Reset()
	t.Setenv("RESEARCH_CORE_CHAT_HUGGINGFACE_TOKEN", "test-token")
	t.Setenv("RESEARCH_CORE_EMBEDDER_HUGGINGFACE_TOKEN", "test-token")

	m, err := config.NewManager()
	require.NoError(t, err)
	return m
}

func TestNewServer_WiresResearchQuestionTool(t *testing.T) {
	configManager := newTestConfigManager(t)

	server, err := NewServer(configManager)
	require.NoError(t, err)
	require.NotNil(t, server)

	assert.NotNil(t, server.protocolCore)
	assert.NotNil(t, server.router)
	assert.NotNil(t, server.health)
	assert.NotNil(t, server.metrics)

	_, exists := server.router.GetToolHandler("research_question")
	assert.True(t, exists)
}

func TestNewServer_RegistersSystemMethods(t *testing.T) {
	configManager := newTestConfigManager(t)

	server, err := NewServer(configManager)
	require.NoError(t, err)

	methods := server.router.GetSupportedMethods()
	assert.Contains(t, methods, "initialize")
	assert.Contains(t, methods, "tools/list")
	assert.Contains(t, methods, "tools/call")
}

func TestNewServer_SkipsDisabledProviders(t *testing.T) {
	configManager := newTestConfigManager(t)

	server, err := NewServer(configManager)
	require.NoError(t, err)
	require.NotNil(t, server)
	// "web" is disabled by default; the remaining five enabled providers
	// must still build without error.
}

func TestClose_IsSafeBeforeStart(t *testing.T) {
	configManager := newTestConfigManager(t)
	server, err := NewServer(configManager)
	require.NoError(t, err)

	assert.NoError(t, server.Close())
}
