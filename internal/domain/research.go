package domain

import "time"

// CitationSource is the closed set of origins a Citation may be drawn from.
type CitationSource string

const (
	SourcePubMed         CitationSource = "pubmed"
	SourceClinicalTrials CitationSource = "clinicaltrials"
	SourceEuropePMC      CitationSource = "europepmc"
	SourceOpenAlex       CitationSource = "openalex"
	SourcePreprint       CitationSource = "preprint"
	SourceWeb            CitationSource = "web"
)

// Citation identifies where a piece of Evidence came from.
type Citation struct {
	Source  CitationSource `json:"source"`
	Title   string         `json:"title"`
	URL     string         `json:"url"`
	Date    string         `json:"date"` // YYYY-MM-DD, or "Unknown"
	Authors []string       `json:"authors"`
}

// Evidence is one retrieved, citable piece of content. It is immutable once
// constructed; its identity for deduplication purposes is the canonical ID
// derived from Metadata/Citation.URL (see CanonicalID).
type Evidence struct {
	Content   string                 `json:"content"`
	Citation  Citation               `json:"citation"`
	Relevance float64                `json:"relevance"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// CanonicalID computes the deduplication key for an Evidence record, in
// priority order: pmid > doi > url.
func (e Evidence) CanonicalID() string {
	if pmid, ok := e.Metadata["pmid"]; ok {
		if s, ok := pmid.(string); ok && s != "" {
			return "pmid:" + s
		}
	}
	if doi, ok := e.Metadata["doi"]; ok {
		if s, ok := doi.(string); ok && s != "" {
			return "doi:" + normalizeDOI(s)
		}
	}
	return "url:" + e.Citation.URL
}

func normalizeDOI(doi string) string {
	s := doi
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "doi:"} {
		if len(s) > len(prefix) && s[:len(prefix)] == prefix {
			s = s[len(prefix):]
			break
		}
	}
	return s
}

// Recommendation is the Judge's verdict on whether to continue iterating or
// move to synthesis.
type Recommendation string

const (
	RecommendationContinue   Recommendation = "continue"
	RecommendationSynthesize Recommendation = "synthesize"
)

// JudgeAssessment is the structured sufficiency verdict returned by the Judge
// for one iteration. It carries no inter-iteration state.
type JudgeAssessment struct {
	MechanismScore     int            `json:"mechanism_score"`
	ClinicalScore      int            `json:"clinical_score"`
	DrugCandidates     []string       `json:"drug_candidates"`
	KeyFindings        []string       `json:"key_findings"`
	MechanismReasoning string         `json:"mechanism_reasoning"`
	ClinicalReasoning  string         `json:"clinical_reasoning"`
	Sufficient         bool           `json:"sufficient"`
	Confidence         float64        `json:"confidence"`
	Recommendation     Recommendation `json:"recommendation"`
	NextQueries        []string       `json:"next_queries"`
	Reasoning          string         `json:"reasoning"`
	Forced             bool           `json:"forced"`
}

// EventType is the closed set of progress event tags the Orchestrator emits.
type EventType string

const (
	EventStarted          EventType = "started"
	EventThinking         EventType = "thinking"
	EventSearching        EventType = "searching"
	EventSearchComplete   EventType = "search_complete"
	EventJudging          EventType = "judging"
	EventJudgeComplete    EventType = "judge_complete"
	EventLooping          EventType = "looping"
	EventSynthesizing     EventType = "synthesizing"
	EventComplete         EventType = "complete"
	EventError            EventType = "error"
	EventStreaming        EventType = "streaming"
	EventHypothesizing    EventType = "hypothesizing"
	EventAnalyzing        EventType = "analyzing"
	EventAnalysisComplete EventType = "analysis_complete"
	EventProgress         EventType = "progress"
)

// Event is one entry on the Orchestrator's progress stream.
type Event struct {
	RunID     string                 `json:"run_id"`
	Type      EventType              `json:"type"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Iteration int                    `json:"iteration"`
	Timestamp time.Time              `json:"timestamp"`
}

// Reference is one entry in a Report's bibliography. Its URL must resolve to
// an Evidence that was actually ingested into the Evidence Store.
type Reference struct {
	Title   string   `json:"title"`
	Authors []string `json:"authors"`
	Source  string   `json:"source"`
	Date    string   `json:"date"`
	URL     string   `json:"url"`
}

// Report is the single terminal output of a research run.
type Report struct {
	Title               string      `json:"title"`
	ExecutiveSummary    string      `json:"executive_summary"`
	ResearchQuestion     string      `json:"research_question"`
	Methodology         string      `json:"methodology"`
	MechanisticFindings string      `json:"mechanistic_findings"`
	ClinicalFindings    string      `json:"clinical_findings"`
	DrugCandidates      []string    `json:"drug_candidates"`
	Limitations         []string    `json:"limitations"`
	Conclusion          string      `json:"conclusion"`
	References          []Reference `json:"references"`
	SourcesSearched     []string    `json:"sources_searched"`
	TotalPapersReviewed int         `json:"total_papers_reviewed"`
	SearchIterations    int         `json:"search_iterations"`
	ConfidenceScore     float64     `json:"confidence_score"`
}

// ProviderErrorKind is the closed set of ways a Search Provider call can fail.
type ProviderErrorKind string

const (
	ProviderRateLimit           ProviderErrorKind = "RateLimit"
	ProviderUpstreamUnavailable ProviderErrorKind = "UpstreamUnavailable"
	ProviderTimeout             ProviderErrorKind = "Timeout"
	ProviderProtocolError       ProviderErrorKind = "ProtocolError"
)

// ProviderError records one failed provider invocation inside a SearchBatch.
type ProviderError struct {
	ProviderName string            `json:"provider_name"`
	ErrorKind    ProviderErrorKind `json:"error_kind"`
	Message      string            `json:"message"`
}

// SearchBatch is the result of one fan-out round across all registered
// Search Providers.
type SearchBatch struct {
	Query           string          `json:"query"`
	Evidence        []Evidence      `json:"evidence"`
	SourcesSearched []string        `json:"sources_searched"`
	TotalFound      int             `json:"total_found"`
	Errors          []ProviderError `json:"errors"`
}
