package tools

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/litagent/research-core/internal/domain"
	"github.com/litagent/research-core/internal/mcp/protocol"
	"github.com/litagent/research-core/internal/research/orchestrator"
)

// ResearchQuestionParams is the single tool's input: a free-text biomedical
// research question, plus an optional per-call override of the configured
// iteration budget.
type ResearchQuestionParams struct {
	Question      string `json:"question"`
	MaxIterations int    `json:"max_iterations,omitempty"`
}

// ResearchQuestionHandler exposes the Orchestrator as the MCP tool named in
// spec §5: one call drains the Orchestrator's Event stream to completion
// and returns the resulting Report as the tool's JSON-RPC result. Progress
// Events are logged structurally rather than streamed over the wire, since
// ToolHandler's contract is request/response, not a subscription.
type ResearchQuestionHandler struct {
	orch *orchestrator.Orchestrator
	log  *logrus.Logger
}

// NewResearchQuestionHandler builds the handler around a wired Orchestrator.
func NewResearchQuestionHandler(orch *orchestrator.Orchestrator, log *logrus.Logger) *ResearchQuestionHandler {
	return &ResearchQuestionHandler{orch: orch, log: log}
}

func (h *ResearchQuestionHandler) GetToolInfo() protocol.ToolInfo {
	return protocol.ToolInfo{
		Name:        "research_question",
		Description: "Research a biomedical literature question across PubMed, ClinicalTrials.gov, Europe PMC, OpenAlex, preprint servers, and the web, iterating search rounds until a judge model finds the evidence sufficient, then returns a cited report.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "The research question to investigate.",
				},
				"max_iterations": map[string]interface{}{
					"type":        "integer",
					"description": "Optional override of the maximum number of search/judge iterations before forced synthesis.",
				},
			},
			"required": []string{"question"},
		},
	}
}

func (h *ResearchQuestionHandler) ValidateParams(params interface{}) error {
	var p ResearchQuestionParams
	if err := ParseParams(params, &p); err != nil {
		return err
	}
	if p.Question == "" {
		return errMissingQuestion
	}
	return nil
}

func (h *ResearchQuestionHandler) HandleTool(ctx context.Context, req *protocol.JSONRPC2Request) *protocol.JSONRPC2Response {
	var params ResearchQuestionParams
	if err := ParseParams(req.Params, &params); err != nil {
		return &protocol.JSONRPC2Response{
			Error: &protocol.RPCError{
				Code:    protocol.InvalidParams,
				Message: "invalid research_question parameters",
				Data:    err.Error(),
			},
		}
	}
	if params.Question == "" {
		return &protocol.JSONRPC2Response{
			Error: &protocol.RPCError{
				Code:    protocol.InvalidParams,
				Message: errMissingQuestion.Error(),
			},
		}
	}

	events := h.orch.RunWithOptions(ctx, params.Question, orchestrator.RunOptions{MaxIterations: params.MaxIterations})

	var report domain.Report
	var haveReport bool
	for event := range events {
		h.log.WithFields(logrus.Fields{
			"run_id":    event.RunID,
			"type":      event.Type,
			"iteration": event.Iteration,
		}).Debug(event.Message)

		if event.Type == domain.EventComplete {
			if r, ok := event.Data["report"].(domain.Report); ok {
				report = r
				haveReport = true
			}
		}
		if event.Type == domain.EventError {
			return &protocol.JSONRPC2Response{
				Error: &protocol.RPCError{
					Code:    protocol.MCPToolError,
					Message: event.Message,
				},
			}
		}
	}

	if !haveReport {
		return &protocol.JSONRPC2Response{
			Error: &protocol.RPCError{
				Code:    protocol.InternalError,
				Message: "research run ended without producing a report",
			},
		}
	}

	return &protocol.JSONRPC2Response{
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{"type": "text", "text": report.ExecutiveSummary},
			},
			"report": report,
		},
	}
}

var errMissingQuestion = toolError("question is required")

type toolError string

func (e toolError) Error() string { return string(e) }
