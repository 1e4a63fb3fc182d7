package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/litagent/research-core/internal/domain"
	"github.com/litagent/research-core/internal/research/search"
)

// Preprint searches bioRxiv/medRxiv preprints via Europe PMC's aggregated
// index scoped to the preprint source facet, rather than a separate bioRxiv
// client — Europe PMC indexes both servers uniformly and exposes the same
// REST contract this provider already knows how to call.
type Preprint struct {
	baseURL    string
	httpClient *http.Client
}

func NewPreprint(cfg domain.ProviderConfig) *Preprint {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://www.ebi.ac.uk/europepmc/webservices/rest/search"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Preprint{baseURL: baseURL, httpClient: &http.Client{Timeout: timeout}}
}

func (p *Preprint) Name() string { return "preprint" }

func (p *Preprint) Ping(ctx context.Context) error {
	_, err := p.fetch(ctx, "cancer", 1)
	return err
}

func (p *Preprint) Search(ctx context.Context, query string, maxResults int) ([]search.EvidenceResult, error) {
	hits, err := p.fetch(ctx, query, maxResults)
	if err != nil {
		return nil, &search.ProviderSearchError{Kind: domain.ProviderUpstreamUnavailable, Err: err}
	}

	results := make([]search.EvidenceResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, search.EvidenceResult{
			Content:   h.AbstractText,
			Title:     h.Title,
			URL:       fmt.Sprintf("https://europepmc.org/article/PPR/%s", h.ID),
			Date:      h.FirstPublicationDate,
			Authors:   strings.Split(h.AuthorString, ", "),
			Relevance: 0.4,
			Metadata: map[string]interface{}{
				"doi":      h.DOI,
				"preprint": true,
			},
		})
	}
	return results, nil
}

func (p *Preprint) fetch(ctx context.Context, query string, maxResults int) ([]europePMCHit, error) {
	params := url.Values{
		"query":      {fmt.Sprintf("%s AND SRC:PPR", query)},
		"format":     {"json"},
		"pageSize":   {strconv.Itoa(maxResults)},
		"resultType": {"core"},
	}
	fullURL := fmt.Sprintf("%s?%s", p.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("preprint search returned status %d", resp.StatusCode)
	}

	var parsed struct {
		ResultList struct {
			Result []europePMCHit `json:"result"`
		} `json:"resultList"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	return parsed.ResultList.Result, nil
}
