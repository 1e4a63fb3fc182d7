package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litagent/research-core/internal/domain"
	"github.com/litagent/research-core/internal/research/chat"
	"github.com/litagent/research-core/internal/research/judge"
	"github.com/litagent/research-core/internal/research/search"
	"github.com/litagent/research-core/internal/research/synth"
)

type fakeProvider struct {
	name   string
	result []search.EvidenceResult
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(ctx context.Context, query string, maxResults int) ([]search.EvidenceResult, error) {
	return f.result, nil
}

type scriptedChatBackend struct {
	contents []string
	calls    int
}

func (s *scriptedChatBackend) Name() string { return "scripted" }

func (s *scriptedChatBackend) Complete(ctx context.Context, messages []chat.Message, opts chat.CompletionOptions) (chat.AssistantMessage, error) {
	i := s.calls
	s.calls++
	if i >= len(s.contents) {
		i = len(s.contents) - 1
	}
	return chat.AssistantMessage{Content: s.contents[i]}, nil
}

func (s *scriptedChatBackend) Stream(ctx context.Context, messages []chat.Message, opts chat.CompletionOptions, onDelta func(chat.StreamDelta) error) error {
	return nil
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func collectEvents(ch <-chan domain.Event) []domain.Event {
	var out []domain.Event
	for e := range ch {
		out = append(out, e)
	}
	return out
}

func TestRun_SynthesizesImmediatelyWhenJudgeSufficientOnFirstPass(t *testing.T) {
	provider := &fakeProvider{name: "pubmed", result: []search.EvidenceResult{
		{Content: "drug inhibits pathway", Title: "Study A", URL: "https://pubmed/1"},
	}}
	dispatcher := search.NewDispatcher([]search.Provider{provider}, []domain.CitationSource{domain.SourcePubMed}, time.Second)

	judgeContent := `{"mechanism_score":8,"clinical_score":8,"confidence":0.9,"next_queries":[],"reasoning":"strong evidence across both dimensions"}`
	j := judge.New(chat.New(&scriptedChatBackend{contents: []string{judgeContent}}, chat.RetryConfig{MaxAttempts: 1}), discardLogger())

	synthContent := `{"title":"Report","executive_summary":"summary [1]","methodology":"m","mechanistic_findings":"f [1]","clinical_findings":"c","conclusion":"concl","confidence_score":0.9,"references":[{"index":1,"title":"Study A"}]}`
	sy := synth.New(chat.New(&scriptedChatBackend{contents: []string{synthContent}}, chat.RetryConfig{MaxAttempts: 1}), discardLogger())

	orch := New(dispatcher, j, sy, nil, 0.9, Config{MaxIterations: 5, OverallTimeout: 10 * time.Second}, discardLogger())
	events := collectEvents(orch.Run(context.Background(), "does the drug help?"))

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, domain.EventComplete, last.Type)
	assert.Equal(t, 1, last.Iteration)

	report, ok := last.Data["report"].(domain.Report)
	require.True(t, ok)
	assert.Equal(t, "Report", report.Title)

	require.NotEmpty(t, events[0].RunID)
	for _, e := range events {
		assert.Equal(t, events[0].RunID, e.RunID)
	}
}

func TestRun_BudgetExhaustedFallsBackAfterMaxIterations(t *testing.T) {
	provider := &fakeProvider{name: "pubmed", result: []search.EvidenceResult{
		{Content: "weak evidence", Title: "Study A", URL: "https://pubmed/1"},
	}}
	dispatcher := search.NewDispatcher([]search.Provider{provider}, []domain.CitationSource{domain.SourcePubMed}, time.Second)

	insufficientContent := `{"mechanism_score":2,"clinical_score":2,"confidence":0.3,"next_queries":["refine query"],"reasoning":"not enough evidence yet to conclude"}`
	backend := &scriptedChatBackend{contents: []string{insufficientContent}}
	j := judge.New(chat.New(backend, chat.RetryConfig{MaxAttempts: 1}), discardLogger())

	// A non-empty, well-formed synth response: if the Orchestrator ever
	// mistakenly routed this termination through normal Synthesize, this
	// backend would happily produce a full report instead of a fallback
	// one, so the test would catch the regression instead of masking it.
	synthBackend := &scriptedChatBackend{contents: []string{`{"title":"Should Not Be Used","executive_summary":"s","methodology":"m","mechanistic_findings":"f","clinical_findings":"c","conclusion":"concl","confidence_score":0.9,"references":[]}`}}
	sy := synth.New(chat.New(synthBackend, chat.RetryConfig{MaxAttempts: 1}), discardLogger())

	orch := New(dispatcher, j, sy, nil, 0.9, Config{MaxIterations: 2, EmergencyEvidenceThreshold: 100, OverallTimeout: 10 * time.Second}, discardLogger())
	events := collectEvents(orch.Run(context.Background(), "q"))

	last := events[len(events)-1]
	assert.Equal(t, domain.EventComplete, last.Type)
	assert.Equal(t, 2, last.Iteration)

	report, ok := last.Data["report"].(domain.Report)
	require.True(t, ok)
	assert.NotEqual(t, "Should Not Be Used", report.Title, "budget exhaustion must take the fallback path, not normal Synthesize")
	require.NotEmpty(t, report.Limitations)
	assert.Contains(t, report.Limitations[len(report.Limitations)-1], "max_iterations")
	assert.Zero(t, synthBackend.calls, "fallback synthesis must not call the chat backend at all")
}

func TestRun_EmergencyEvidenceThresholdAlsoFallsBack(t *testing.T) {
	provider := &fakeProvider{name: "pubmed", result: []search.EvidenceResult{
		{Content: "weak evidence", Title: "Study A", URL: "https://pubmed/1"},
	}}
	dispatcher := search.NewDispatcher([]search.Provider{provider}, []domain.CitationSource{domain.SourcePubMed}, time.Second)

	insufficientContent := `{"mechanism_score":2,"clinical_score":2,"confidence":0.3,"next_queries":["refine query"],"reasoning":"not enough evidence yet to conclude"}`
	j := judge.New(chat.New(&scriptedChatBackend{contents: []string{insufficientContent}}, chat.RetryConfig{MaxAttempts: 1}), discardLogger())

	synthBackend := &scriptedChatBackend{contents: []string{`{"title":"Should Not Be Used","executive_summary":"s","methodology":"m","mechanistic_findings":"f","clinical_findings":"c","conclusion":"concl","confidence_score":0.9,"references":[]}`}}
	sy := synth.New(chat.New(synthBackend, chat.RetryConfig{MaxAttempts: 1}), discardLogger())

	// EmergencyEvidenceThreshold of 1 means the store's single ingested
	// item always satisfies "evidence-count >= emergency_threshold", so
	// this exercises decision table row 3, not row 4.
	orch := New(dispatcher, j, sy, nil, 0.9, Config{MaxIterations: 1, EmergencyEvidenceThreshold: 1, OverallTimeout: 10 * time.Second}, discardLogger())
	events := collectEvents(orch.Run(context.Background(), "q"))

	last := events[len(events)-1]
	assert.Equal(t, domain.EventComplete, last.Type)

	report, ok := last.Data["report"].(domain.Report)
	require.True(t, ok)
	assert.NotEqual(t, "Should Not Be Used", report.Title)
	assert.Zero(t, synthBackend.calls, "the emergency-evidence termination must also use fallback synthesis, not normal Synthesize")
}

func TestDecide_ForcedAlwaysSynthesizesRegardlessOfScores(t *testing.T) {
	a := domain.JudgeAssessment{Forced: true, MechanismScore: 0, ClinicalScore: 0}
	assert.Equal(t, decisionSynthesize, decide(a, 1, 5, 0, 10))
}

func TestDecide_EmergencyThresholdAlsoFallsBackAtMaxIterations(t *testing.T) {
	a := domain.JudgeAssessment{Sufficient: false}
	// Decision table rows 3 and 4 are both non-Judge-approved breaks, so
	// both resolve to decisionBudgetExhausted (fallback synthesis) whether
	// or not the emergency evidence threshold was reached.
	assert.Equal(t, decisionBudgetExhausted, decide(a, 5, 5, 12, 10))
}

func TestDecide_BudgetExhaustedAtMaxIterationsBelowEmergencyThreshold(t *testing.T) {
	a := domain.JudgeAssessment{Sufficient: false}
	assert.Equal(t, decisionBudgetExhausted, decide(a, 5, 5, 3, 10))
}

func TestDecide_ContinuesWhenNotSufficientAndBudgetRemains(t *testing.T) {
	a := domain.JudgeAssessment{Sufficient: false}
	assert.Equal(t, decisionContinue, decide(a, 1, 5, 1, 10))
}
