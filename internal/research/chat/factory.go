package chat

import (
	"github.com/sirupsen/logrus"

	"github.com/litagent/research-core/internal/domain"
)

// NewFromConfig implements the backend selection policy of spec §4.6: use
// the premium backend if a premium API key is configured, otherwise fall
// back to the free HuggingFace Inference backend. Both paths are wrapped
// with the same retry + token-tracking middleware chain via chat.New.
func NewFromConfig(cfg domain.ChatConfig, log *logrus.Logger) *Client {
	retry := RetryConfig{
		MaxAttempts: cfg.RetryMaxAttempts,
		MinBackoff:  cfg.RetryMinBackoff,
		MaxBackoff:  cfg.RetryMaxBackoff,
	}
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryConfig()
	}

	var backend Backend
	if cfg.PremiumAPIKey != "" {
		backend = NewOpenAIBackend(cfg, log)
	} else {
		backend = NewHuggingFaceBackend(cfg)
	}
	return New(backend, retry)
}
