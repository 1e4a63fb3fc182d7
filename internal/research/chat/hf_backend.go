package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/litagent/research-core/internal/domain"
)

// HuggingFaceBackend is the free-tier Chat Client backend: HuggingFace's
// chat-completion-compatible Inference API, called with plain net/http in
// the teacher's hand-rolled-client style rather than a dedicated SDK.
// Spec §4.6 recommends a small (<=30B parameter) model for this tier since
// larger free-tier models route through third-party providers with
// unreliable availability; that choice lives in configuration, not here.
type HuggingFaceBackend struct {
	baseURL string
	modelID string
	token   string
	client  *http.Client
}

// NewHuggingFaceBackend constructs the free backend from chat config.
func NewHuggingFaceBackend(cfg domain.ChatConfig) *HuggingFaceBackend {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	modelID := cfg.FreeModelID
	if modelID == "" {
		modelID = "meta-llama/Llama-3.2-3B-Instruct"
	}
	return &HuggingFaceBackend{
		baseURL: "https://api-inference.huggingface.co/models",
		modelID: modelID,
		token:   cfg.HuggingFaceToken,
		client:  &http.Client{Timeout: timeout},
	}
}

func (h *HuggingFaceBackend) Name() string { return "huggingface-free" }

type hfChatRequest struct {
	Model    string       `json:"model"`
	Messages []hfMessage  `json:"messages"`
	MaxTokens int         `json:"max_tokens,omitempty"`
}

type hfMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type hfChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (h *HuggingFaceBackend) Complete(ctx context.Context, messages []Message, opts CompletionOptions) (AssistantMessage, error) {
	model := opts.Model
	if model == "" {
		model = h.modelID
	}
	reqBody := hfChatRequest{Model: model, Messages: toHFMessages(messages), MaxTokens: opts.MaxTokens}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return AssistantMessage{}, err
	}

	url := fmt.Sprintf("%s/%s/v1/chat/completions", h.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return AssistantMessage{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return AssistantMessage{}, &RetryableError{Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusPaymentRequired {
		// HuggingFace's Inference API reports exhausted free-tier/billing
		// quota with 402, distinct from an ordinary 429 rate limit.
		return AssistantMessage{}, &QuotaExceededError{Err: fmt.Errorf("huggingface backend reports quota exhausted (402)")}
	}
	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == 429 || resp.StatusCode >= 500
		return AssistantMessage{}, &RetryableError{Retryable: retryable, Err: fmt.Errorf("huggingface backend returned status %d", resp.StatusCode)}
	}

	var parsed hfChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return AssistantMessage{}, fmt.Errorf("failed to decode huggingface response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return AssistantMessage{}, fmt.Errorf("huggingface backend returned no choices")
	}

	return AssistantMessage{
		Content:      parsed.Choices[0].Message.Content,
		FinishReason: parsed.Choices[0].FinishReason,
		Usage: Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}

// Stream falls back to a single complete() call followed by one terminal
// delta: the free-tier chat-completions endpoint this backend targets does
// not reliably support server-sent-event streaming across hosted models,
// so callers receive the full content as one delta rather than token-level
// increments.
func (h *HuggingFaceBackend) Stream(ctx context.Context, messages []Message, opts CompletionOptions, onDelta func(StreamDelta) error) error {
	msg, err := h.Complete(ctx, messages, opts)
	if err != nil {
		return err
	}
	usage := msg.Usage
	return onDelta(StreamDelta{
		ContentDelta: msg.Content,
		ToolCalls:    msg.ToolCalls,
		FinishReason: msg.FinishReason,
		Usage:        &usage,
	})
}

func toHFMessages(messages []Message) []hfMessage {
	out := make([]hfMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, hfMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
