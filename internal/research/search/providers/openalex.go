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

// OpenAlex queries the OpenAlex works API, a free, fully open scholarly
// graph covering citation counts and open-access status for nearly every
// indexed work.
type OpenAlex struct {
	baseURL    string
	mailto     string
	httpClient *http.Client
}

func NewOpenAlex(cfg domain.ProviderConfig) *OpenAlex {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openalex.org/works"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OpenAlex{baseURL: baseURL, mailto: cfg.Email, httpClient: &http.Client{Timeout: timeout}}
}

func (o *OpenAlex) Name() string { return "openalex" }

func (o *OpenAlex) Ping(ctx context.Context) error {
	_, err := o.fetch(ctx, "cancer", 1)
	return err
}

func (o *OpenAlex) Search(ctx context.Context, query string, maxResults int) ([]search.EvidenceResult, error) {
	works, err := o.fetch(ctx, query, maxResults)
	if err != nil {
		return nil, &search.ProviderSearchError{Kind: domain.ProviderUpstreamUnavailable, Err: err}
	}

	results := make([]search.EvidenceResult, 0, len(works))
	for _, w := range works {
		authors := make([]string, 0, len(w.Authorships))
		for _, a := range w.Authorships {
			authors = append(authors, a.Author.DisplayName)
		}
		abstract := reconstructAbstract(w.AbstractInvertedIndex)
		results = append(results, search.EvidenceResult{
			Content:   abstract,
			Title:     w.Title,
			URL:       w.ID,
			Date:      w.PublicationDate,
			Authors:   authors,
			Relevance: 0.5,
			Metadata: map[string]interface{}{
				"doi":            w.DOI,
				"cited_by_count": w.CitedByCount,
				"is_open_access": w.OpenAccess.IsOA,
			},
		})
	}
	return results, nil
}

type openAlexWork struct {
	ID                    string `json:"id"`
	Title                 string `json:"title"`
	DOI                   string `json:"doi"`
	PublicationDate       string `json:"publication_date"`
	CitedByCount          int    `json:"cited_by_count"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
	OpenAccess            struct {
		IsOA bool `json:"is_oa"`
	} `json:"open_access"`
	Authorships []struct {
		Author struct {
			DisplayName string `json:"display_name"`
		} `json:"author"`
	} `json:"authorships"`
}

func (o *OpenAlex) fetch(ctx context.Context, query string, maxResults int) ([]openAlexWork, error) {
	params := url.Values{
		"search":   {query},
		"per-page": {strconv.Itoa(maxResults)},
	}
	if o.mailto != "" {
		params.Set("mailto", o.mailto)
	}
	fullURL := fmt.Sprintf("%s?%s", o.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openalex returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Results []openAlexWork `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	return parsed.Results, nil
}

// reconstructAbstract rebuilds plain text from OpenAlex's inverted-index
// abstract representation (word -> positions), which it uses in place of
// a plain string for copyright reasons.
func reconstructAbstract(index map[string][]int) string {
	if len(index) == 0 {
		return ""
	}
	maxPos := 0
	for _, positions := range index {
		for _, p := range positions {
			if p > maxPos {
				maxPos = p
			}
		}
	}
	words := make([]string, maxPos+1)
	for word, positions := range index {
		for _, p := range positions {
			words[p] = word
		}
	}
	return strings.Join(strings.Fields(strings.Join(words, " ")), " ")
}
