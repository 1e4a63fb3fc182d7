package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/litagent/research-core/internal/domain"
	"github.com/litagent/research-core/internal/research/search"
)

// Web is the catch-all provider for general web results (drug-company
// press releases, regulatory filings, conference abstracts) that the
// literature-specific providers don't index. It calls a generic
// Brave-Search-compatible JSON endpoint, the one web-search API in the
// retrieved corpus with a stable, documented free tier.
type Web struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewWeb(cfg domain.ProviderConfig) *Web {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.search.brave.com/res/v1/web/search"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Web{baseURL: baseURL, apiKey: cfg.APIKey, httpClient: &http.Client{Timeout: timeout}}
}

func (w *Web) Name() string { return "web" }

func (w *Web) Ping(ctx context.Context) error {
	if w.apiKey == "" {
		return fmt.Errorf("web provider not configured")
	}
	_, err := w.fetch(ctx, "test", 1)
	return err
}

func (w *Web) Search(ctx context.Context, query string, maxResults int) ([]search.EvidenceResult, error) {
	if w.apiKey == "" {
		// Web search is optional; an unconfigured key is not a provider
		// failure, just an empty contribution to the batch.
		return nil, nil
	}

	hits, err := w.fetch(ctx, query, maxResults)
	if err != nil {
		return nil, &search.ProviderSearchError{Kind: domain.ProviderUpstreamUnavailable, Err: err}
	}

	results := make([]search.EvidenceResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, search.EvidenceResult{
			Content:   h.Description,
			Title:     h.Title,
			URL:       h.URL,
			Date:      "Unknown",
			Relevance: 0.3,
			Metadata:  map[string]interface{}{"snippet_source": "web"},
		})
	}
	return results, nil
}

type webResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

func (w *Web) fetch(ctx context.Context, query string, maxResults int) ([]webResult, error) {
	fullURL := fmt.Sprintf("%s?q=%s&count=%d", w.baseURL, strings.ReplaceAll(query, " ", "+"), maxResults)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Subscription-Token", w.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web search returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Web struct {
			Results []webResult `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	results := parsed.Web.Results
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}
