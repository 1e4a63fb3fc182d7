package config

import (
	"fmt"
	"strings"

	"github.com/litagent/research-core/internal/domain"
	"github.com/spf13/viper"
)

// Manager implements layered configuration loading (env + optional YAML
// file + defaults) using Viper, following the teacher's
// NewManager/loadConfig/setDefaults/Validate/GetConfig/Reload shape.
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources.
func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/research-core/")

	viper.SetEnvPrefix("RESEARCH_CORE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using defaults and environment variables.
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values for every SPEC_FULL.md §6
// option, mirroring the teacher's per-external-client default block.
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "120s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.tls_enabled", false)

	// Research orchestration defaults
	viper.SetDefault("research.max_iterations", 5)
	viper.SetDefault("research.max_results_per_provider", 10)
	viper.SetDefault("research.search_timeout_seconds", 15)
	viper.SetDefault("research.overall_timeout_seconds", 300)
	viper.SetDefault("research.emergency_evidence_threshold", 10)
	viper.SetDefault("research.dedup_similarity_threshold", 0.90)
	viper.SetDefault("research.judge_sufficient_mechanism_threshold", 6)
	viper.SetDefault("research.judge_sufficient_clinical_threshold", 6)
	viper.SetDefault("research.judge_sufficient_confidence_threshold", 0.7)
	viper.SetDefault("research.max_evidence_sent_to_judge", 30)

	viper.SetDefault("research.providers", []map[string]interface{}{
		{"name": "pubmed", "base_url": "https://eutils.ncbi.nlm.nih.gov/entrez/eutils", "timeout": "15s", "rate_limit": 3, "retry_count": 3, "enabled": true},
		{"name": "clinicaltrials", "base_url": "https://clinicaltrials.gov/api/v2", "timeout": "15s", "rate_limit": 5, "retry_count": 3, "enabled": true},
		{"name": "europepmc", "base_url": "https://www.ebi.ac.uk/europepmc/webservices/rest", "timeout": "15s", "rate_limit": 5, "retry_count": 3, "enabled": true},
		{"name": "openalex", "base_url": "https://api.openalex.org", "timeout": "15s", "rate_limit": 5, "retry_count": 3, "enabled": true},
		{"name": "preprint", "base_url": "https://www.ebi.ac.uk/europepmc/webservices/rest", "timeout": "15s", "rate_limit": 5, "retry_count": 3, "enabled": true},
		{"name": "web", "base_url": "", "timeout": "15s", "rate_limit": 5, "retry_count": 2, "enabled": false},
	})

	// Chat client defaults
	viper.SetDefault("chat.backend", "")
	viper.SetDefault("chat.model_id", "gpt-4o-mini")
	viper.SetDefault("chat.premium_api_key", "")
	viper.SetDefault("chat.premium_base_url", "")
	viper.SetDefault("chat.huggingface_token", "")
	viper.SetDefault("chat.free_model_id", "meta-llama/Llama-3.2-3B-Instruct")
	viper.SetDefault("chat.request_timeout", "60s")
	viper.SetDefault("chat.retry_max_attempts", 3)
	viper.SetDefault("chat.retry_min_backoff", "1s")
	viper.SetDefault("chat.retry_max_backoff", "10s")

	// Embedder defaults
	viper.SetDefault("embedder.backend", "huggingface")
	viper.SetDefault("embedder.model_id", "sentence-transformers/all-MiniLM-L6-v2")
	viper.SetDefault("embedder.huggingface_token", "")
	viper.SetDefault("embedder.cache_size", 2048)
	viper.SetDefault("embedder.request_timeout", "10s")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 28)
	viper.SetDefault("logging.compress", true)

	// MCP defaults
	viper.SetDefault("mcp.server_name", "research-orchestration-core")
	viper.SetDefault("mcp.server_version", "1.0.0")
	viper.SetDefault("mcp.transport_type", "stdio")
	viper.SetDefault("mcp.max_clients", 10)
	viper.SetDefault("mcp.request_timeout", "300s")
	viper.SetDefault("mcp.enable_metrics", true)
}

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration.
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetResearchConfig returns research orchestration configuration.
func (m *Manager) GetResearchConfig() *domain.ResearchConfig {
	return &m.config.Research
}

// GetChatConfig returns chat client configuration.
func (m *Manager) GetChatConfig() *domain.ChatConfig {
	return &m.config.Chat
}

// GetEmbedderConfig returns embedder configuration.
func (m *Manager) GetEmbedderConfig() *domain.EmbedderConfig {
	return &m.config.Embedder
}

// Reload reloads the configuration from its sources.
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate checks the loaded configuration for obviously invalid values.
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Research.MaxIterations <= 0 {
		return fmt.Errorf("research.max_iterations must be positive")
	}
	if config.Research.DedupSimilarityThreshold <= 0 || config.Research.DedupSimilarityThreshold > 1 {
		return fmt.Errorf("research.dedup_similarity_threshold must be in (0, 1]")
	}
	if len(config.Research.Providers) == 0 {
		return fmt.Errorf("at least one search provider must be configured")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	if config.Chat.PremiumAPIKey == "" && config.Chat.HuggingFaceToken == "" {
		return fmt.Errorf("chat: either premium_api_key or huggingface_token must be set")
	}

	return nil
}

// IsProduction returns true if running in production mode.
func (m *Manager) IsProduction() bool {
	return strings.ToLower(viper.GetString("environment")) == "production"
}

// IsDevelopment returns true if running in development mode.
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(viper.GetString("environment"))
	return env == "development" || env == "dev" || env == ""
}
