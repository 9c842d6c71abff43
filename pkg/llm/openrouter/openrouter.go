// Package openrouter implements the llm.Provider interface against the
// OpenRouter chat-completions API.
//
// The implementation streams raw server-sent events rather than using a
// higher-level SDK stream, which keeps malformed-fragment handling and
// tool-call delta surfacing under our control: individual bad fragments are
// skipped, a non-2xx status is a terminal failure raised before any fragment
// is yielded, and transport timeouts are reported distinctly from connection
// errors.
package openrouter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/entrhq/webpilot/pkg/llm"
	"github.com/entrhq/webpilot/pkg/logging"
	"github.com/entrhq/webpilot/pkg/types"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("openrouter")
	if err != nil {
		debugLog.Warnf("Failed to initialize openrouter logger, using stderr fallback: %v", err)
	}
}

const (
	// DefaultBaseURL is the OpenRouter API root.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultModel is used when no model is configured.
	DefaultModel = "anthropic/claude-sonnet-4"

	// DefaultTimeout bounds a single completion request end to end.
	DefaultTimeout = 120 * time.Second

	defaultTemperature = 0.7
	defaultMaxTokens   = 4096
)

// Client is an OpenRouter chat-completions client with SSE streaming and a
// per-model pricing cache.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
	timeout    time.Duration

	pricing *pricingCache
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithModel sets the model used for completions.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL points the client at a different API root. Useful for tests
// and OpenAI-compatible proxies.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// NewClient creates an OpenRouter client. If apiKey is empty it falls back
// to the OPENROUTER_API_KEY environment variable; if no model is configured
// it falls back to OPENROUTER_MODEL, then DefaultModel.
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenRouter API key is required (provide via parameter or OPENROUTER_API_KEY environment variable)")
	}

	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
		pricing: newPricingCache(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.model == "" {
		c.model = os.Getenv("OPENROUTER_MODEL")
	}
	if c.model == "" {
		c.model = DefaultModel
	}

	c.httpClient = &http.Client{Timeout: c.timeout}
	return c, nil
}

// Model returns the model identifier used for completions.
func (c *Client) Model() string {
	return c.model
}

// StreamCompletion sends the conversation and tool catalog to OpenRouter and
// streams back response fragments.
func (c *Client) StreamCompletion(ctx context.Context, messages []*types.Message, tools []types.ToolSpec) (<-chan *llm.StreamChunk, error) {
	resp, err := c.sendStreamRequest(ctx, messages, tools)
	if err != nil {
		return nil, err
	}

	chunks := make(chan *llm.StreamChunk, 10)
	go c.processStream(ctx, resp, chunks)
	return chunks, nil
}

// sendStreamRequest builds and sends the streaming HTTP request.
func (c *Client) sendStreamRequest(ctx context.Context, messages []*types.Message, tools []types.ToolSpec) (*http.Response, error) {
	reqBody := map[string]any{
		"model":       c.model,
		"messages":    convertMessages(messages),
		"temperature": defaultTemperature,
		"max_tokens":  defaultMaxTokens,
		"stream":      true,
		"stream_options": map[string]any{
			"include_usage": true,
		},
	}
	if len(tools) > 0 {
		reqBody["tools"] = convertTools(tools)
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	debugLog.Debugf("Streaming completion: model=%s messages=%d tools=%d", c.model, len(messages), len(tools))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		debugLog.Errorf("Request failed: %v", err)
		return nil, classifyTransportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			body = []byte(fmt.Sprintf("(failed to read error body: %v)", readErr))
		}
		debugLog.Errorf("API returned status %d", resp.StatusCode)
		return nil, &llm.APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return resp, nil
}

// classifyTransportError maps a request error to the typed failure kinds:
// timeouts wrap llm.ErrTimeout, everything else becomes a TransportError.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", llm.ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", llm.ErrTimeout, err)
	}
	return &llm.TransportError{Err: err}
}

// processStream reads the SSE response line by line and forwards chunks.
func (c *Client) processStream(ctx context.Context, resp *http.Response, chunks chan<- *llm.StreamChunk) {
	defer close(chunks)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		if !isDataLine(line) {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			c.send(ctx, chunks, &llm.StreamChunk{Finished: true})
			return
		}

		chunk, ok := parseSSEChunk(data)
		if !ok {
			// Malformed fragments are skipped, not fatal.
			continue
		}
		if chunk != nil && !c.send(ctx, chunks, chunk) {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		c.send(ctx, chunks, &llm.StreamChunk{Error: classifyTransportError(err)})
		return
	}

	// Stream ended without a [DONE] marker; treat as a clean finish.
	c.send(ctx, chunks, &llm.StreamChunk{Finished: true})
}

// send delivers a chunk unless the context is canceled first.
func (c *Client) send(ctx context.Context, chunks chan<- *llm.StreamChunk, chunk *llm.StreamChunk) bool {
	select {
	case chunks <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// isDataLine reports whether an SSE line carries an event payload. Comment
// lines (": ...") and blank keep-alives are ignored.
func isDataLine(line string) bool {
	return line != "" && !strings.HasPrefix(line, ":") && strings.HasPrefix(line, "data: ")
}

// sseChunk mirrors the wire shape of one chat-completions stream event.
type sseChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// parseSSEChunk decodes one SSE payload into a StreamChunk. It returns
// ok=false for malformed JSON and a nil chunk for events that carry nothing
// of interest.
func parseSSEChunk(data string) (*llm.StreamChunk, bool) {
	var raw sseChunk
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, false
	}

	chunk := &llm.StreamChunk{}

	if raw.Usage != nil {
		chunk.Usage = &llm.Usage{
			PromptTokens:     raw.Usage.PromptTokens,
			CompletionTokens: raw.Usage.CompletionTokens,
		}
	}

	if len(raw.Choices) > 0 {
		delta := raw.Choices[0].Delta
		chunk.Content = delta.Content
		for _, tc := range delta.ToolCalls {
			chunk.ToolCalls = append(chunk.ToolCalls, llm.ToolCallDelta{
				Index:     tc.Index,
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
	}

	if chunk.Content == "" && len(chunk.ToolCalls) == 0 && chunk.Usage == nil {
		return nil, true
	}
	return chunk, true
}

// convertMessages transforms our Message slice into OpenAI SDK message param
// unions, preserving assistant tool calls and tool-result correlation IDs.
func convertMessages(messages []*types.Message) []openaisdk.ChatCompletionMessageParamUnion {
	result := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case types.RoleSystem:
			result = append(result, openaisdk.SystemMessage(msg.Content))
		case types.RoleUser:
			result = append(result, openaisdk.UserMessage(msg.Content))
		case types.RoleAssistant:
			result = append(result, convertAssistantMessage(msg))
		case types.RoleTool:
			result = append(result, openaisdk.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			result = append(result, openaisdk.UserMessage(msg.Content))
		}
	}

	return result
}

// convertAssistantMessage builds an assistant param carrying tool calls.
func convertAssistantMessage(msg *types.Message) openaisdk.ChatCompletionMessageParamUnion {
	if len(msg.ToolCalls) == 0 {
		return openaisdk.AssistantMessage(msg.Content)
	}

	toolCalls := make([]openaisdk.ChatCompletionMessageToolCallParam, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		toolCalls = append(toolCalls, openaisdk.ChatCompletionMessageToolCallParam{
			ID: tc.ID,
			Function: openaisdk.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}

	assistant := openaisdk.ChatCompletionAssistantMessageParam{
		ToolCalls: toolCalls,
	}
	if msg.Content != "" {
		assistant.Content = openaisdk.ChatCompletionAssistantMessageParamContentUnion{
			OfString: param.NewOpt(msg.Content),
		}
	}

	return openaisdk.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
}

// convertTools transforms catalog specs into OpenAI SDK tool params.
func convertTools(tools []types.ToolSpec) []openaisdk.ChatCompletionToolParam {
	result := make([]openaisdk.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		result = append(result, openaisdk.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: param.NewOpt(t.Description),
				Parameters:  shared.FunctionParameters(t.Parameters),
			},
		})
	}
	return result
}
