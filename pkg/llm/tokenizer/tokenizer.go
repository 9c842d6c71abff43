// Package tokenizer provides client-side token counting used when the
// gateway stream does not carry usage counters.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/entrhq/webpilot/pkg/types"
)

// encoding is a reasonable cross-model approximation; exact counts come
// from the gateway's usage fragments when available.
const encoding = "cl100k_base"

// messageOverhead approximates the per-message framing tokens added by
// chat-completion APIs.
const messageOverhead = 4

// Tokenizer counts tokens for prompt-size estimation.
type Tokenizer struct {
	encoder *tiktoken.Tiktoken
}

// New creates a tokenizer. It fails only if the encoding data cannot be
// loaded, in which case callers should fall back to gateway-reported usage.
func New() (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", encoding, err)
	}
	return &Tokenizer{encoder: enc}, nil
}

// CountTokens returns the token count of a single string.
func (t *Tokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(t.encoder.Encode(text, nil, nil))
}

// CountMessagesTokens estimates the token footprint of a rendered message
// list, including per-message framing overhead and tool-call arguments.
func (t *Tokenizer) CountMessagesTokens(messages []*types.Message) int {
	total := 0
	for _, msg := range messages {
		total += messageOverhead
		total += t.CountTokens(string(msg.Role))
		total += t.CountTokens(msg.Content)
		for _, tc := range msg.ToolCalls {
			total += t.CountTokens(tc.Name)
			total += t.CountTokens(tc.Arguments)
		}
	}
	return total
}
