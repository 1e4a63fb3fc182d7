// Package synth implements the Synthesizer/Reporter (spec §4.4): it turns
// an Evidence Store's contents into the single terminal Report of a
// research run, either in normal mode (a full structured write-up driven by
// the Chat Client) or fallback mode (a templated report assembled directly
// from the Evidence Store when no chat backend answer is available).
//
// Citation handling is grounded on the citation-ordering/deduplication
// pattern in the retrieved corpus's deep-research handler
// (orderCitationsByClaims/dedupeCitations): references are reordered to
// match first-citation-order in the generated text and deduplicated by
// canonical ID, and any reference whose index matches no supplied Evidence
// record is dropped rather than trusted from the model's own output.
package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/litagent/research-core/internal/domain"
	"github.com/litagent/research-core/internal/research/chat"
)

var citationIndexPattern = regexp.MustCompile(`\[(\d{1,3})\]`)

// Synthesizer turns gathered Evidence into a Report.
type Synthesizer struct {
	client *chat.Client
	log    *logrus.Logger
}

// New constructs a Synthesizer over the given Chat Client.
func New(client *chat.Client, log *logrus.Logger) *Synthesizer {
	return &Synthesizer{client: client, log: log}
}

// Input bundles everything the Synthesizer needs to produce a Report; it
// carries no reference back to the Store so normal and fallback mode share
// one signature.
type Input struct {
	Question         string
	Evidence         []domain.Evidence
	SourcesSearched  []string
	SearchIterations int
	BudgetExhausted  bool // true when the loop hit max_iterations without sufficiency
}

// Synthesize produces a Report in normal mode: a full structured write-up
// from the Chat Client, constrained to cite only ingested Evidence. On any
// backend or parsing failure it falls back to Fallback rather than
// propagating the error, per spec §4.4's "synthesis never fails the run"
// guarantee.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) domain.Report {
	messages := []chat.Message{
		{Role: "system", Content: systemPrompt()},
		{Role: "user", Content: userPrompt(in)},
	}

	resp, err := s.client.Complete(ctx, messages, chat.CompletionOptions{Temperature: 0.3, MaxTokens: 3000})
	if err != nil {
		s.log.WithError(err).Warn("synthesis backend unavailable, falling back to templated report")
		return s.Fallback(in)
	}

	raw, err := parseReport(resp.Content)
	if err != nil {
		s.log.WithError(err).Warn("synthesis returned malformed report, falling back to templated report")
		return s.Fallback(in)
	}

	report := buildReport(raw, in)
	report.References = reconcileReferences(raw.References, in.Evidence, report.ExecutiveSummary+" "+report.MechanisticFindings+" "+report.ClinicalFindings+" "+report.Conclusion)
	return report
}

// Fallback builds a templated Report directly from the Evidence Store's
// contents, with no Chat Client call. It is used when the Judge forces
// synthesis on backend unavailability, and when Synthesize itself cannot
// reach or parse a chat completion.
func (s *Synthesizer) Fallback(in Input) domain.Report {
	top := in.Evidence
	if len(top) > 15 {
		top = top[:15]
	}

	var findings strings.Builder
	for i, e := range top {
		fmt.Fprintf(&findings, "%d. %s (%s, %s)\n", i+1, e.Citation.Title, e.Citation.Source, e.Citation.Date)
	}

	limitations := []string{
		"This report was generated from a templated fallback synthesis, not a full language-model write-up.",
	}
	if in.BudgetExhausted {
		limitations = append(limitations, "The search budget (max_iterations) was exhausted before the Judge confirmed sufficiency; findings may be incomplete.")
	}

	references := make([]domain.Reference, 0, len(top))
	for _, e := range top {
		references = append(references, domain.Reference{
			Title:   e.Citation.Title,
			Authors: e.Citation.Authors,
			Source:  string(e.Citation.Source),
			Date:    e.Citation.Date,
			URL:     e.Citation.URL,
		})
	}

	return domain.Report{
		Title:               "Research Summary: " + in.Question,
		ExecutiveSummary:    "A full synthesis could not be completed; below is a ranked summary of the evidence gathered.",
		ResearchQuestion:    in.Question,
		Methodology:         fmt.Sprintf("Automated literature search across %d iteration(s) and %d source(s).", in.SearchIterations, len(in.SourcesSearched)),
		MechanisticFindings: findings.String(),
		ClinicalFindings:    "",
		Limitations:         limitations,
		Conclusion:          "Insufficient synthesis was possible; consult the listed sources directly.",
		References:          references,
		SourcesSearched:     in.SourcesSearched,
		TotalPapersReviewed: len(in.Evidence),
		SearchIterations:    in.SearchIterations,
		ConfidenceScore:     0.1,
	}
}

func systemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a biomedical research synthesizer. You are given a research question and a ")
	b.WriteString("numbered list of evidence excerpts. Write an authoritative, well-organized report that answers ")
	b.WriteString("the question using ONLY the supplied evidence. Cite evidence inline using [n] markers matching ")
	b.WriteString("the evidence numbers. Never invent a citation or reference a source not in the supplied list.\n\n")
	b.WriteString("Respond with a single JSON object matching this schema exactly:\n")
	b.WriteString(`{"title":string,"executive_summary":string,"methodology":string,` +
		`"mechanistic_findings":string,"clinical_findings":string,"drug_candidates":[string],` +
		`"limitations":[string],"conclusion":string,"confidence_score":float,` +
		`"references":[{"index":int,"title":string}]}`)
	return b.String()
}

func userPrompt(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research question: %s\n\nEvidence:\n", in.Question)
	for i, e := range in.Evidence {
		fmt.Fprintf(&b, "\n[%d] %s (%s, %s)\n%s\n", i+1, e.Citation.Title, e.Citation.Source, e.Citation.Date, truncate(e.Content, 800))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

type rawReference struct {
	Index int    `json:"index"`
	Title string `json:"title"`
}

type rawReport struct {
	Title               string         `json:"title"`
	ExecutiveSummary    string         `json:"executive_summary"`
	Methodology         string         `json:"methodology"`
	MechanisticFindings string         `json:"mechanistic_findings"`
	ClinicalFindings    string         `json:"clinical_findings"`
	DrugCandidates      []string       `json:"drug_candidates"`
	Limitations         []string       `json:"limitations"`
	Conclusion          string         `json:"conclusion"`
	ConfidenceScore     float64        `json:"confidence_score"`
	References          []rawReference `json:"references"`
}

func parseReport(content string) (rawReport, error) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start == -1 || end == -1 || end < start {
		return rawReport{}, fmt.Errorf("no JSON object found in synthesis response")
	}
	var raw rawReport
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return rawReport{}, err
	}
	return raw, nil
}

func buildReport(raw rawReport, in Input) domain.Report {
	return domain.Report{
		Title:               raw.Title,
		ExecutiveSummary:    raw.ExecutiveSummary,
		ResearchQuestion:    in.Question,
		Methodology:         raw.Methodology,
		MechanisticFindings: raw.MechanisticFindings,
		ClinicalFindings:    raw.ClinicalFindings,
		DrugCandidates:      raw.DrugCandidates,
		Limitations:         raw.Limitations,
		Conclusion:          raw.Conclusion,
		SourcesSearched:     in.SourcesSearched,
		TotalPapersReviewed: len(in.Evidence),
		SearchIterations:    in.SearchIterations,
		ConfidenceScore:     raw.ConfidenceScore,
	}
}

// reconcileReferences rebuilds the Report's bibliography from the evidence
// that was actually ingested, in the order the generated text first cites
// each [n] marker (grounded on orderCitationsByClaims), and drops any
// reference the model claimed that does not correspond to a real evidence
// index; entries that share a canonical ID are listed once.
func reconcileReferences(raw []rawReference, evidence []domain.Evidence, generatedText string) []domain.Reference {
	byIndex := make(map[int]domain.Evidence, len(evidence))
	for i, e := range evidence {
		byIndex[i+1] = e
	}

	cited := make([]int, 0, len(raw))
	seen := make(map[int]struct{}, len(raw))
	for _, m := range citationIndexPattern.FindAllStringSubmatch(generatedText, -1) {
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if _, ok := byIndex[idx]; !ok {
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		cited = append(cited, idx)
	}

	// Any reference the model listed but never actually cited inline is
	// still appended, in ascending index order, so a valid source isn't
	// silently dropped for lacking an inline marker.
	remaining := make([]int, 0)
	for _, r := range raw {
		if _, ok := byIndex[r.Index]; !ok {
			continue
		}
		if _, ok := seen[r.Index]; ok {
			continue
		}
		seen[r.Index] = struct{}{}
		remaining = append(remaining, r.Index)
	}
	sort.Ints(remaining)
	cited = append(cited, remaining...)

	out := make([]domain.Reference, 0, len(cited))
	urlSeen := make(map[string]struct{}, len(cited))
	for _, idx := range cited {
		e := byIndex[idx]
		key := e.CanonicalID()
		if _, dup := urlSeen[key]; dup {
			continue
		}
		urlSeen[key] = struct{}{}
		out = append(out, domain.Reference{
			Title:   e.Citation.Title,
			Authors: e.Citation.Authors,
			Source:  string(e.Citation.Source),
			Date:    e.Citation.Date,
			URL:     e.Citation.URL,
		})
	}
	return out
}
