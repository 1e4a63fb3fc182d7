package synth

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litagent/research-core/internal/domain"
	"github.com/litagent/research-core/internal/research/chat"
)

type scriptedBackend struct {
	content string
	err     error
}

func (s *scriptedBackend) Name() string { return "scripted" }

func (s *scriptedBackend) Complete(ctx context.Context, messages []chat.Message, opts chat.CompletionOptions) (chat.AssistantMessage, error) {
	if s.err != nil {
		return chat.AssistantMessage{}, s.err
	}
	return chat.AssistantMessage{Content: s.content}, nil
}

func (s *scriptedBackend) Stream(ctx context.Context, messages []chat.Message, opts chat.CompletionOptions, onDelta func(chat.StreamDelta) error) error {
	return nil
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func sampleEvidence() []domain.Evidence {
	return []domain.Evidence{
		{Content: "drug A inhibits pathway P", Citation: domain.Citation{Title: "Study A", Source: domain.SourcePubMed, URL: "https://pubmed/1"}},
		{Content: "trial shows benefit in patients", Citation: domain.Citation{Title: "Trial B", Source: domain.SourceClinicalTrials, URL: "https://ct/2"}},
	}
}

func TestSynthesize_BuildsReportAndReconcilesReferences(t *testing.T) {
	content := `Some preamble. {"title":"Drug A for Condition X","executive_summary":"Evidence supports use [1].",` +
		`"methodology":"systematic search","mechanistic_findings":"inhibits pathway P [1]",` +
		`"clinical_findings":"trial benefit observed [2]","drug_candidates":["drugA"],` +
		`"limitations":["small sample"],"conclusion":"promising but early [2][1]",` +
		`"confidence_score":0.75,"references":[{"index":1,"title":"Study A"},{"index":2,"title":"Trial B"}]}`
	backend := &scriptedBackend{content: content}
	s := New(chat.New(backend, chat.RetryConfig{MaxAttempts: 1}), discardLogger())

	report := s.Synthesize(context.Background(), Input{
		Question:         "does drug A help condition X?",
		Evidence:         sampleEvidence(),
		SourcesSearched:  []string{"pubmed", "clinicaltrials"},
		SearchIterations: 2,
	})

	assert.Equal(t, "Drug A for Condition X", report.Title)
	require.Len(t, report.References, 2)
	assert.Equal(t, "Study A", report.References[0].Title)
	assert.Equal(t, "Trial B", report.References[1].Title)
	assert.Equal(t, 2, report.TotalPapersReviewed)
}

func TestSynthesize_DropsReferenceNotInEvidence(t *testing.T) {
	content := `{"title":"t","executive_summary":"s [1] [9]","methodology":"m","mechanistic_findings":"f",` +
		`"clinical_findings":"c","conclusion":"concl","confidence_score":0.5,` +
		`"references":[{"index":1,"title":"Study A"},{"index":9,"title":"fabricated"}]}`
	backend := &scriptedBackend{content: content}
	s := New(chat.New(backend, chat.RetryConfig{MaxAttempts: 1}), discardLogger())

	report := s.Synthesize(context.Background(), Input{Question: "q", Evidence: sampleEvidence()})
	require.Len(t, report.References, 1)
	assert.Equal(t, "Study A", report.References[0].Title)
}

func TestSynthesize_FallsBackOnBackendError(t *testing.T) {
	backend := &scriptedBackend{err: assert.AnError}
	s := New(chat.New(backend, chat.RetryConfig{MaxAttempts: 1}), discardLogger())

	report := s.Synthesize(context.Background(), Input{
		Question:        "q",
		Evidence:        sampleEvidence(),
		BudgetExhausted: true,
	})
	assert.Equal(t, 0.1, report.ConfidenceScore)
	assert.Contains(t, report.Limitations[len(report.Limitations)-1], "max_iterations")
	require.Len(t, report.References, 2)
}

func TestSynthesize_FallsBackOnMalformedJSON(t *testing.T) {
	backend := &scriptedBackend{content: "not json at all"}
	s := New(chat.New(backend, chat.RetryConfig{MaxAttempts: 1}), discardLogger())

	report := s.Synthesize(context.Background(), Input{Question: "q", Evidence: sampleEvidence()})
	assert.Equal(t, 0.1, report.ConfidenceScore)
}

func TestFallback_NeverErrorsAndCapsEvidenceListing(t *testing.T) {
	evidence := make([]domain.Evidence, 20)
	for i := range evidence {
		evidence[i] = domain.Evidence{Citation: domain.Citation{Title: "t", URL: "https://x/" + string(rune('a'+i))}}
	}
	s := New(chat.New(&scriptedBackend{}, chat.RetryConfig{MaxAttempts: 1}), discardLogger())

	report := s.Fallback(Input{Question: "q", Evidence: evidence})
	assert.Len(t, report.References, 15)
	assert.Equal(t, 20, report.TotalPapersReviewed)
}
