package tools

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litagent/research-core/internal/domain"
	"github.com/litagent/research-core/internal/mcp/protocol"
	"github.com/litagent/research-core/internal/research/chat"
	"github.com/litagent/research-core/internal/research/judge"
	"github.com/litagent/research-core/internal/research/orchestrator"
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

type scriptedBackend struct {
	contents []string
	calls    int
}

func (s *scriptedBackend) Name() string { return "scripted" }

func (s *scriptedBackend) Complete(ctx context.Context, messages []chat.Message, opts chat.CompletionOptions) (chat.AssistantMessage, error) {
	i := s.calls
	s.calls++
	if i >= len(s.contents) {
		i = len(s.contents) - 1
	}
	return chat.AssistantMessage{Content: s.contents[i]}, nil
}

func (s *scriptedBackend) Stream(ctx context.Context, messages []chat.Message, opts chat.CompletionOptions, onDelta func(chat.StreamDelta) error) error {
	return nil
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func buildHandler() *ResearchQuestionHandler {
	provider := &fakeProvider{name: "pubmed", result: []search.EvidenceResult{
		{Content: "drug inhibits pathway", Title: "Study A", URL: "https://pubmed/1"},
	}}
	dispatcher := search.NewDispatcher([]search.Provider{provider}, []domain.CitationSource{domain.SourcePubMed}, time.Second)

	judgeContent := `{"mechanism_score":8,"clinical_score":8,"confidence":0.9,"next_queries":[],"reasoning":"strong evidence across both dimensions"}`
	j := judge.New(chat.New(&scriptedBackend{contents: []string{judgeContent}}, chat.RetryConfig{MaxAttempts: 1}), discardLogger())

	synthContent := `{"title":"Report","executive_summary":"summary [1]","methodology":"m","mechanistic_findings":"f [1]","clinical_findings":"c","conclusion":"concl","confidence_score":0.9,"references":[{"index":1,"title":"Study A"}]}`
	sy := synth.New(chat.New(&scriptedBackend{contents: []string{synthContent}}, chat.RetryConfig{MaxAttempts: 1}), discardLogger())

	orch := orchestrator.New(dispatcher, j, sy, nil, 0.9, orchestrator.Config{MaxIterations: 5, OverallTimeout: 10 * time.Second}, discardLogger())
	return NewResearchQuestionHandler(orch, discardLogger())
}

func TestHandleTool_ReturnsReportOnSuccess(t *testing.T) {
	h := buildHandler()
	resp := h.HandleTool(context.Background(), &protocol.JSONRPC2Request{
		Params: map[string]interface{}{"question": "does the drug help?"},
	})

	require.Nil(t, resp.Error)
	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)
	report, ok := result["report"].(domain.Report)
	require.True(t, ok)
	assert.Equal(t, "Report", report.Title)
}

func TestHandleTool_RejectsMissingQuestion(t *testing.T) {
	h := buildHandler()
	resp := h.HandleTool(context.Background(), &protocol.JSONRPC2Request{
		Params: map[string]interface{}{},
	})

	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.InvalidParams, resp.Error.Code)
}

func TestValidateParams_RejectsEmptyQuestion(t *testing.T) {
	h := buildHandler()
	err := h.ValidateParams(map[string]interface{}{"question": ""})
	assert.Error(t, err)
}

func TestHandleTool_HonorsMaxIterationsOverride(t *testing.T) {
	provider := &fakeProvider{name: "pubmed", result: []search.EvidenceResult{
		{Content: "weak evidence", Title: "Study A", URL: "https://pubmed/1"},
	}}
	dispatcher := search.NewDispatcher([]search.Provider{provider}, []domain.CitationSource{domain.SourcePubMed}, time.Second)

	insufficientContent := `{"mechanism_score":2,"clinical_score":2,"confidence":0.3,"next_queries":["refine query"],"reasoning":"not enough evidence yet to conclude"}`
	j := judge.New(chat.New(&scriptedBackend{contents: []string{insufficientContent}}, chat.RetryConfig{MaxAttempts: 1}), discardLogger())

	synthContent := `{"title":"Report","executive_summary":"summary","methodology":"m","mechanistic_findings":"f","clinical_findings":"c","conclusion":"concl","confidence_score":0.9,"references":[]}`
	sy := synth.New(chat.New(&scriptedBackend{contents: []string{synthContent}}, chat.RetryConfig{MaxAttempts: 1}), discardLogger())

	// Config says 5 iterations, but the call overrides it to 1: if the
	// handler silently discarded max_iterations, this run would still be
	// continuing after the first insufficient judge verdict instead of
	// falling back to synthesis.
	orch := orchestrator.New(dispatcher, j, sy, nil, 0.9, orchestrator.Config{MaxIterations: 5, OverallTimeout: 10 * time.Second}, discardLogger())
	h := NewResearchQuestionHandler(orch, discardLogger())

	resp := h.HandleTool(context.Background(), &protocol.JSONRPC2Request{
		Params: map[string]interface{}{"question": "does the drug help?", "max_iterations": 1},
	})

	require.Nil(t, resp.Error)
	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)
	report, ok := result["report"].(domain.Report)
	require.True(t, ok)
	require.NotEmpty(t, report.Limitations)
	assert.Contains(t, report.Limitations[len(report.Limitations)-1], "max_iterations")
}

func TestGetToolInfo_NamesTheTool(t *testing.T) {
	h := buildHandler()
	info := h.GetToolInfo()
	assert.Equal(t, "research_question", info.Name)
	assert.NotEmpty(t, info.InputSchema)
}
