package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/litagent/research-core/internal/domain"
)

// OpenAIBackend is the premium Chat Client backend: any OpenAI-compatible
// hosted model, reached through the sashabaranov/go-openai SDK client the
// way the reference goresearch-style apps in the retrieved corpus wire it
// up (openai.NewClientWithConfig over a configurable BaseURL, so the same
// backend also serves OpenAI-compatible third-party hosts).
type OpenAIBackend struct {
	client  *openai.Client
	modelID string
	log     *logrus.Logger
}

// NewOpenAIBackend constructs the premium backend from chat config.
func NewOpenAIBackend(cfg domain.ChatConfig, log *logrus.Logger) *OpenAIBackend {
	clientCfg := openai.DefaultConfig(cfg.PremiumAPIKey)
	if cfg.PremiumBaseURL != "" {
		clientCfg.BaseURL = cfg.PremiumBaseURL
	}
	return &OpenAIBackend{
		client:  openai.NewClientWithConfig(clientCfg),
		modelID: cfg.ModelID,
		log:     log,
	}
}

func (o *OpenAIBackend) Name() string { return "openai-premium" }

func (o *OpenAIBackend) Complete(ctx context.Context, messages []Message, opts CompletionOptions) (AssistantMessage, error) {
	req := o.buildRequest(messages, opts)
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return AssistantMessage{}, classifyOpenAIErr(err)
	}
	if len(resp.Choices) == 0 {
		return AssistantMessage{}, fmt.Errorf("openai backend returned no choices")
	}
	choice := resp.Choices[0]
	return AssistantMessage{
		Content:      choice.Message.Content,
		ToolCalls:    convertToolCallsFromOpenAI(choice.Message.ToolCalls),
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Stream sends token-level deltas. The terminal delta carries a zero-valued
// Usage: streamed requests do not ask the API for usage, so the
// token-tracking middleware records no tokens for them.
func (o *OpenAIBackend) Stream(ctx context.Context, messages []Message, opts CompletionOptions, onDelta func(StreamDelta) error) error {
	req := o.buildRequest(messages, opts)
	req.Stream = true

	stream, err := o.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return classifyOpenAIErr(err)
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return classifyOpenAIErr(err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		delta := StreamDelta{
			ContentDelta: choice.Delta.Content,
			ToolCalls:    convertToolCallsFromOpenAI(choice.Delta.ToolCalls),
			FinishReason: string(choice.FinishReason),
		}
		if choice.FinishReason != "" {
			delta.Usage = &Usage{}
		}
		if err := onDelta(delta); err != nil {
			return err
		}
	}
}

func (o *OpenAIBackend) buildRequest(messages []Message, opts CompletionOptions) openai.ChatCompletionRequest {
	model := opts.Model
	if model == "" {
		model = o.modelID
	}
	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    convertMessagesToOpenAI(messages),
		Temperature: float32(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if len(opts.Tools) > 0 {
		for _, t := range convertToolsForOpenAI(opts.Tools, o.log) {
			req.Tools = append(req.Tools, openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
	}
	return req
}

func convertMessagesToOpenAI(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		})
	}
	return out
}

func convertToolCallsFromOpenAI(calls []openai.ToolCall) []ToolCall {
	out := make([]ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, ToolCall{
			ID:        c.ID,
			ToolName:  c.Function.Name,
			Arguments: c.Function.Arguments,
		})
	}
	return out
}

func classifyOpenAIErr(err error) error {
	if err == nil {
		return nil
	}
	if isQuotaOpenAIErr(err) {
		return &QuotaExceededError{Err: err}
	}
	return &RetryableError{Retryable: isRetryableOpenAIErr(err), Err: err}
}

// isQuotaOpenAIErr recognizes OpenAI's billing/quota error code, which is
// reported with its own "insufficient_quota" code (not just a bare 429) so
// it can be told apart from an ordinary rate limit that is worth retrying.
func isQuotaOpenAIErr(err error) bool {
	apiErr, ok := err.(*openai.APIError)
	if !ok {
		return false
	}
	if code, ok := apiErr.Code.(string); ok && code == "insufficient_quota" {
		return true
	}
	return strings.Contains(strings.ToLower(apiErr.Message), "quota")
}

func isRetryableOpenAIErr(err error) bool {
	apiErr, ok := err.(*openai.APIError)
	if !ok {
		// Connection failures and timeouts reach here as *url.Error,
		// which implements net.Error.
		var netErr net.Error
		return errors.As(err, &netErr)
	}
	switch apiErr.HTTPStatusCode {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
