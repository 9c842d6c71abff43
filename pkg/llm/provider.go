// Package llm provides the model gateway abstraction for webpilot.
//
// A Provider turns a conversation and a tool catalog into a lazy stream of
// response fragments. Providers handle wire-level concerns only; assembling
// tool calls from fragments and managing conversation state belong to the
// agent layer.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/entrhq/webpilot/pkg/types"
)

// Provider defines the interface for chat-completion gateways.
type Provider interface {
	// StreamCompletion sends the ordered message list and tool catalog to
	// the model and streams back response fragments.
	//
	// The returned channel emits StreamChunk values:
	// - Content deltas as they arrive
	// - Tool-call deltas keyed by position index within the turn
	// - Usage counters, typically on the final fragment
	// - A chunk with Finished=true when the stream ends cleanly
	// - A chunk with Error set if the stream fails mid-flight
	//
	// The channel is closed when streaming completes or fails. An error is
	// returned directly only when streaming cannot be initiated at all
	// (bad request, non-2xx status, unreachable endpoint).
	StreamCompletion(ctx context.Context, messages []*types.Message, tools []types.ToolSpec) (<-chan *StreamChunk, error)

	// Pricing resolves the per-million-token prices for the given model.
	// It never fails: on any lookup problem it falls back to a static
	// table, and to zero prices for unknown models.
	Pricing(ctx context.Context, model string) ModelPricing

	// Model returns the model identifier used for completions.
	Model() string
}

// StreamChunk is one incremental fragment of a streamed model response.
type StreamChunk struct {
	// Content is a partial text delta of the assistant message.
	Content string

	// ToolCalls holds tool-call deltas carried by this fragment.
	ToolCalls []ToolCallDelta

	// Usage holds token counters when the fragment carries them.
	Usage *Usage

	// Finished is true on the terminal fragment of a clean stream.
	Finished bool

	// Error is set when the stream failed after being initiated.
	Error error
}

// IsError reports whether the chunk carries a stream error.
func (c *StreamChunk) IsError() bool {
	return c.Error != nil
}

// ToolCallDelta is a partial tool-call fragment. A delta with a non-empty
// Name opens a new call at Index; Arguments text is appended to the call at
// Index regardless of whether Name arrived in the same fragment.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// Usage carries prompt and completion token counts reported by the gateway.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// ModelPricing holds USD prices per million tokens for one model.
type ModelPricing struct {
	PromptPerMTok     float64
	CompletionPerMTok float64
}

// Cost computes the USD cost of the given token counts.
func (p ModelPricing) Cost(promptTokens, completionTokens int) float64 {
	return (float64(promptTokens)*p.PromptPerMTok + float64(completionTokens)*p.CompletionPerMTok) / 1_000_000
}

// ErrTimeout marks a transport-level timeout, reported distinctly from a
// connection failure so callers can tell the two apart.
var ErrTimeout = errors.New("request timed out")

// APIError is a terminal non-2xx response from the gateway, raised before
// any fragments are yielded.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}

// TransportError wraps a connection-level failure (DNS, refused, reset).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
