package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/litagent/research-core/internal/domain"
	"github.com/litagent/research-core/internal/research/search"
)

// ClinicalTrials queries the ClinicalTrials.gov v2 REST API for studies
// matching a free-text query, in the same hand-rolled net/http style as the
// teacher's external clients.
type ClinicalTrials struct {
	baseURL    string
	httpClient *http.Client
}

func NewClinicalTrials(cfg domain.ProviderConfig) *ClinicalTrials {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://clinicaltrials.gov/api/v2/studies"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ClinicalTrials{baseURL: baseURL, httpClient: &http.Client{Timeout: timeout}}
}

func (c *ClinicalTrials) Name() string { return "clinicaltrials" }

func (c *ClinicalTrials) Ping(ctx context.Context) error {
	_, err := c.fetch(ctx, "cancer", 1)
	return err
}

func (c *ClinicalTrials) Search(ctx context.Context, query string, maxResults int) ([]search.EvidenceResult, error) {
	studies, err := c.fetch(ctx, query, maxResults)
	if err != nil {
		return nil, &search.ProviderSearchError{Kind: domain.ProviderUpstreamUnavailable, Err: err}
	}

	results := make([]search.EvidenceResult, 0, len(studies))
	for _, s := range studies {
		id := s.ProtocolSection.IdentificationModule.NCTId
		title := s.ProtocolSection.IdentificationModule.BriefTitle
		summary := s.ProtocolSection.DescriptionModule.BriefSummary
		status := s.ProtocolSection.StatusModule.OverallStatus
		results = append(results, search.EvidenceResult{
			Content:   summary,
			Title:     title,
			URL:       fmt.Sprintf("https://clinicaltrials.gov/study/%s", id),
			Date:      s.ProtocolSection.StatusModule.StartDateStruct.Date,
			Relevance: 0.5,
			Metadata: map[string]interface{}{
				"nct_id": id,
				"status": status,
			},
		})
	}
	return results, nil
}

type ctStudy struct {
	ProtocolSection struct {
		IdentificationModule struct {
			NCTId      string `json:"nctId"`
			BriefTitle string `json:"briefTitle"`
		} `json:"identificationModule"`
		StatusModule struct {
			OverallStatus   string `json:"overallStatus"`
			StartDateStruct struct {
				Date string `json:"date"`
			} `json:"startDateStruct"`
		} `json:"statusModule"`
		DescriptionModule struct {
			BriefSummary string `json:"briefSummary"`
		} `json:"descriptionModule"`
	} `json:"protocolSection"`
}

func (c *ClinicalTrials) fetch(ctx context.Context, query string, maxResults int) ([]ctStudy, error) {
	params := url.Values{
		"query.term":   {query},
		"pageSize":     {strconv.Itoa(maxResults)},
		"format":       {"json"},
	}
	fullURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("clinicaltrials.gov returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Studies []ctStudy `json:"studies"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	return parsed.Studies, nil
}
