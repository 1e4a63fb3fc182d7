package domain

import "time"

// Config represents the main application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Research ResearchConfig `mapstructure:"research"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Embedder EmbedderConfig `mapstructure:"embedder"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	MCP      MCPConfig      `mapstructure:"mcp"`
}

// ServerConfig represents HTTP server configuration for cmd/research-api.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	TLSEnabled   bool          `mapstructure:"tls_enabled"`
	CertFile     string        `mapstructure:"cert_file"`
	KeyFile      string        `mapstructure:"key_file"`
}

// ResearchConfig covers every orchestration option recognized per spec §6.
type ResearchConfig struct {
	MaxIterations                     int                       `mapstructure:"max_iterations"`
	MaxResultsPerProvider             int                       `mapstructure:"max_results_per_provider"`
	SearchTimeoutSeconds              int                       `mapstructure:"search_timeout_seconds"`
	OverallTimeoutSeconds             int                       `mapstructure:"overall_timeout_seconds"`
	EmergencyEvidenceThreshold        int                       `mapstructure:"emergency_evidence_threshold"`
	DedupSimilarityThreshold          float64                   `mapstructure:"dedup_similarity_threshold"`
	JudgeSufficientMechanismThreshold int                       `mapstructure:"judge_sufficient_mechanism_threshold"`
	JudgeSufficientClinicalThreshold  int                       `mapstructure:"judge_sufficient_clinical_threshold"`
	JudgeSufficientConfidenceThreshold float64                  `mapstructure:"judge_sufficient_confidence_threshold"`
	MaxEvidenceSentToJudge            int                       `mapstructure:"max_evidence_sent_to_judge"`
	Providers                         []ProviderConfig          `mapstructure:"providers"`
}

// ProviderConfig is the shape shared by every Search Provider, following the
// teacher's per-external-API config struct (BaseURL/APIKey/Timeout/RateLimit).
type ProviderConfig struct {
	Name       string        `mapstructure:"name"`
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Email      string        `mapstructure:"email"` // required by NCBI-family APIs (PubMed)
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  int           `mapstructure:"rate_limit"`
	RetryCount int           `mapstructure:"retry_count"`
	Enabled    bool          `mapstructure:"enabled"`
}

// ChatConfig configures the Chat Client Abstraction's backend factory.
type ChatConfig struct {
	Backend          string        `mapstructure:"backend"` // "premium", "free", or "" (auto-select)
	ModelID          string        `mapstructure:"model_id"`
	PremiumAPIKey    string        `mapstructure:"premium_api_key"`
	PremiumBaseURL   string        `mapstructure:"premium_base_url"`
	FreeModelID      string        `mapstructure:"free_model_id"`
	HuggingFaceToken string        `mapstructure:"huggingface_token"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	RetryMaxAttempts int           `mapstructure:"retry_max_attempts"`
	RetryMinBackoff  time.Duration `mapstructure:"retry_min_backoff"`
	RetryMaxBackoff  time.Duration `mapstructure:"retry_max_backoff"`
}

// EmbedderConfig configures the embedding capability used for semantic
// dedup and top-N relevance ranking.
type EmbedderConfig struct {
	Backend          string        `mapstructure:"backend"` // "huggingface" or "disabled"
	ModelID          string        `mapstructure:"model_id"`
	HuggingFaceToken string        `mapstructure:"huggingface_token"`
	CacheSize        int           `mapstructure:"cache_size"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// MCPConfig represents MCP server configuration.
type MCPConfig struct {
	ServerName     string        `mapstructure:"server_name"`
	ServerVersion  string        `mapstructure:"server_version"`
	TransportType  string        `mapstructure:"transport_type"` // "stdio"
	MaxClients     int           `mapstructure:"max_clients"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	EnableMetrics  bool          `mapstructure:"enable_metrics"`
}
