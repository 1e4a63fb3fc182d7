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

// EuropePMC queries the Europe PMC REST search API, covering both published
// articles and preprints indexed by EuropePMC's aggregator.
type EuropePMC struct {
	baseURL    string
	httpClient *http.Client
}

func NewEuropePMC(cfg domain.ProviderConfig) *EuropePMC {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://www.ebi.ac.uk/europepmc/webservices/rest/search"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &EuropePMC{baseURL: baseURL, httpClient: &http.Client{Timeout: timeout}}
}

func (e *EuropePMC) Name() string { return "europepmc" }

func (e *EuropePMC) Ping(ctx context.Context) error {
	_, err := e.fetch(ctx, "cancer", 1)
	return err
}

func (e *EuropePMC) Search(ctx context.Context, query string, maxResults int) ([]search.EvidenceResult, error) {
	hits, err := e.fetch(ctx, query, maxResults)
	if err != nil {
		return nil, &search.ProviderSearchError{Kind: domain.ProviderUpstreamUnavailable, Err: err}
	}

	results := make([]search.EvidenceResult, 0, len(hits))
	for _, h := range hits {
		doi := h.DOI
		resultURL := fmt.Sprintf("https://europepmc.org/article/%s/%s", strings.ToUpper(h.Source), h.ID)
		results = append(results, search.EvidenceResult{
			Content:   h.AbstractText,
			Title:     h.Title,
			URL:       resultURL,
			Date:      h.FirstPublicationDate,
			Authors:   strings.Split(h.AuthorString, ", "),
			Relevance: 0.5,
			Metadata: map[string]interface{}{
				"doi":              doi,
				"cited_by_count":   h.CitedByCount,
				"is_open_access":   h.IsOpenAccess == "Y",
			},
		})
	}
	return results, nil
}

type europePMCHit struct {
	ID                   string `json:"id"`
	Source               string `json:"source"`
	Title                string `json:"title"`
	AbstractText         string `json:"abstractText"`
	DOI                  string `json:"doi"`
	AuthorString         string `json:"authorString"`
	FirstPublicationDate string `json:"firstPublicationDate"`
	CitedByCount         int    `json:"citedByCount"`
	IsOpenAccess         string `json:"isOpenAccess"`
}

func (e *EuropePMC) fetch(ctx context.Context, query string, maxResults int) ([]europePMCHit, error) {
	params := url.Values{
		"query":      {query},
		"format":     {"json"},
		"pageSize":   {strconv.Itoa(maxResults)},
		"resultType": {"core"},
	}
	fullURL := fmt.Sprintf("%s?%s", e.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("europepmc returned status %d", resp.StatusCode)
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
