// Package chat implements the Chat Client Abstraction (spec §4.6): a single
// uniform complete/stream contract so the Judge and Synthesizer never know
// whether they are talking to a premium hosted model or a free inference
// API. Grounded on the teacher's classifier_service.go pattern of wrapping
// an external SDK client behind a small domain-specific interface, and on
// the go-openai usage shown across the retrieved corpus (sashabaranov/go-openai).
package chat

import "context"

// Message is one turn in a chat completion request.
type Message struct {
	Role    string // "system", "user", "assistant", "tool"
	Content string
	// ToolCallID links a "tool" role message back to the ToolCall it answers.
	ToolCallID string
}

// ToolDescriptor is an in-memory description of a callable tool; backends
// are responsible for converting this to whatever JSON-schema shape their
// wire protocol expects. Spec §4.6 calls out a failure to do this
// conversion as the documented cause of a P0 crash in the reference
// implementation — every backend in this package must perform the
// conversion defensively and degrade (drop the tool, don't crash) rather
// than panic on an unconvertible descriptor.
type ToolDescriptor struct {
	Name        string
	Description string
	Parameters  map[string]interface{} // JSON-schema object
}

// ToolCall is a backend's request that the caller invoke a described tool
// and reply with a "tool" role Message carrying the result before the next
// completion.
type ToolCall struct {
	ID        string
	ToolName  string
	Arguments string // raw JSON
}

// CompletionOptions bounds a single complete/stream call.
type CompletionOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Tools       []ToolDescriptor
}

// AssistantMessage is the result of a blocking complete() call.
type AssistantMessage struct {
	Content    string
	ToolCalls  []ToolCall
	FinishReason string
	Usage        Usage
}

// Usage tracks token accounting, surfaced by the token-tracking middleware.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// StreamDelta is one increment of a stream() call: either a text delta or,
// on the final delta, a non-empty FinishReason and the cumulative Usage.
type StreamDelta struct {
	ContentDelta string
	ToolCalls    []ToolCall
	FinishReason string
	Usage        *Usage
}

// Client is the uniform capability every Judge/Synthesizer backend
// implements, regardless of which LLM provider sits behind it.
type Client struct {
	backend Backend
}

// Backend is what a concrete provider (premium, free, local) implements;
// Client wraps a Backend with the retry and token-tracking middleware
// chain described in spec §4.6.
type Backend interface {
	Name() string
	Complete(ctx context.Context, messages []Message, opts CompletionOptions) (AssistantMessage, error)
	Stream(ctx context.Context, messages []Message, opts CompletionOptions, onDelta func(StreamDelta) error) error
}

// New wraps backend with the standard retry + token-tracking middleware
// chain, in that order (retry outermost, so a retried attempt still
// accumulates usage from every attempt).
func New(backend Backend, retry RetryConfig) *Client {
	wrapped := Backend(&tokenTrackingBackend{inner: backend})
	wrapped = &retryingBackend{inner: wrapped, cfg: retry}
	return &Client{backend: wrapped}
}

func (c *Client) Name() string { return c.backend.Name() }

func (c *Client) Complete(ctx context.Context, messages []Message, opts CompletionOptions) (AssistantMessage, error) {
	return c.backend.Complete(ctx, messages, opts)
}

func (c *Client) Stream(ctx context.Context, messages []Message, opts CompletionOptions, onDelta func(StreamDelta) error) error {
	return c.backend.Stream(ctx, messages, opts, onDelta)
}
