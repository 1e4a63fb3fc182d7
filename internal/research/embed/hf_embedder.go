package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/litagent/research-core/internal/domain"
)

// HuggingFaceEmbedder calls the HuggingFace feature-extraction endpoint,
// mirroring the teacher's hand-rolled external API clients (net/http, no
// SDK) rather than pulling in a dedicated embeddings client.
type HuggingFaceEmbedder struct {
	modelID string
	token   string
	client  *http.Client
}

// NewHuggingFaceEmbedder constructs an embedder for the given config.
func NewHuggingFaceEmbedder(cfg domain.EmbedderConfig) *HuggingFaceEmbedder {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HuggingFaceEmbedder{
		modelID: cfg.ModelID,
		token:   cfg.HuggingFaceToken,
		client:  &http.Client{Timeout: timeout},
	}
}

func (h *HuggingFaceEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	url := fmt.Sprintf("https://api-inference.huggingface.co/pipeline/feature-extraction/%s", h.modelID)

	body, err := json.Marshal(map[string]interface{}{
		"inputs":  text,
		"options": map[string]bool{"wait_for_model": true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding backend returned status %d", resp.StatusCode)
	}

	var vec []float32
	if err := json.NewDecoder(resp.Body).Decode(&vec); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	return vec, nil
}
