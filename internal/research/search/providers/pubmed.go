// Package providers implements the six Search Providers named in the
// closed Citation.source enum (spec §3): pubmed, clinicaltrials, europepmc,
// openalex, preprint, web. Each is a thin net/http client adapted from the
// teacher's pkg/external clients (hand-rolled HTTP, no SDK), generalized
// from variant-lookup queries to free-text literature search.
package providers

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/litagent/research-core/internal/domain"
	"github.com/litagent/research-core/internal/research/search"
)

// PubMed queries NCBI PubMed via E-utilities, grounded on the teacher's
// pkg/external/pubmed.go (esearch + esummary, XML decoding, rate limiting)
// but generalized to arbitrary free-text research queries instead of a
// single genetic variant.
type PubMed struct {
	baseURL    string
	apiKey     string
	email      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewPubMed constructs a PubMed provider from a domain.ProviderConfig.
func NewPubMed(cfg domain.ProviderConfig) *PubMed {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/"
	}
	reqPerSec := cfg.RateLimit
	if reqPerSec <= 0 {
		reqPerSec = 3
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PubMed{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		email:      cfg.Email,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(reqPerSec), 1),
	}
}

func (p *PubMed) Name() string { return "pubmed" }

// Ping satisfies the health package's ProviderPinger contract with a cheap
// esearch call bounded to one result.
func (p *PubMed) Ping(ctx context.Context) error {
	_, err := p.searchIDs(ctx, "test", 1)
	return err
}

func (p *PubMed) Search(ctx context.Context, query string, maxResults int) ([]search.EvidenceResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ids, err := p.searchIDs(ctx, query, maxResults)
	if err != nil {
		return nil, &search.ProviderSearchError{Kind: domain.ProviderUpstreamUnavailable, Err: err}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	summaries, err := p.summaries(ctx, ids)
	if err != nil {
		return nil, &search.ProviderSearchError{Kind: domain.ProviderProtocolError, Err: err}
	}

	results := make([]search.EvidenceResult, 0, len(summaries))
	for _, s := range summaries {
		title, journal, year, authors := parseDocSummary(s)
		results = append(results, search.EvidenceResult{
			Content:   title,
			Title:     title,
			URL:       fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%s/", s.UID),
			Date:      year,
			Authors:   authors,
			Relevance: 0.5,
			Metadata: map[string]interface{}{
				"pmid":    s.UID,
				"journal": journal,
			},
		})
	}
	return results, nil
}

func (p *PubMed) searchIDs(ctx context.Context, query string, maxResults int) ([]string, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"term":    {query},
		"retmode": {"xml"},
		"retmax":  {strconv.Itoa(maxResults)},
	}
	if p.apiKey != "" {
		params.Set("api_key", p.apiKey)
	}
	if p.email != "" {
		params.Set("email", p.email)
	}

	fullURL := fmt.Sprintf("%sesearch.fcgi?%s", p.baseURL, params.Encode())
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
		return nil, fmt.Errorf("pubmed esearch returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		XMLName xml.Name `xml:"eSearchResult"`
		IDList  struct {
			IDs []string `xml:"Id"`
		} `xml:"IdList"`
	}
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	return parsed.IDList.IDs, nil
}

type docSummary struct {
	UID   string `xml:"Id"`
	Items []struct {
		Name  string `xml:"Name,attr"`
		Value string `xml:",innerxml"`
	} `xml:"Item"`
}

func (p *PubMed) summaries(ctx context.Context, ids []string) ([]docSummary, error) {
	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(ids, ",")},
		"retmode": {"xml"},
	}
	if p.apiKey != "" {
		params.Set("api_key", p.apiKey)
	}

	fullURL := fmt.Sprintf("%sesummary.fcgi?%s", p.baseURL, params.Encode())
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
		return nil, fmt.Errorf("pubmed esummary returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		XMLName xml.Name     `xml:"eSummaryResult"`
		DocSum  []docSummary `xml:"DocSum"`
	}
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	return parsed.DocSum, nil
}

func parseDocSummary(s docSummary) (title, journal, year string, authors []string) {
	for _, item := range s.Items {
		switch item.Name {
		case "Title":
			title = cleanXML(item.Value)
		case "Source":
			journal = cleanXML(item.Value)
		case "PubDate":
			year = extractYear(item.Value)
		case "AuthorList":
			authors = parseAuthorList(item.Value)
		}
	}
	return
}

func cleanXML(v string) string {
	r := strings.NewReplacer("<b>", "", "</b>", "", "<i>", "", "</i>", "")
	return strings.TrimSpace(r.Replace(v))
}

func extractYear(dateStr string) string {
	for _, part := range strings.Fields(cleanXML(dateStr)) {
		if len(part) == 4 {
			if year, err := strconv.Atoi(part); err == nil && year > 1900 {
				return part
			}
		}
	}
	return "Unknown"
}

func parseAuthorList(v string) []string {
	var authors []string
	for _, a := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(cleanXML(a)); trimmed != "" {
			authors = append(authors, trimmed)
		}
	}
	return authors
}
