package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/entrhq/webpilot/pkg/llm"
	"github.com/entrhq/webpilot/pkg/types"
)

// scriptedProvider replays pre-built chunk sequences, one per model call.
type scriptedProvider struct {
	mu      sync.Mutex
	turns   [][]*llm.StreamChunk
	callErr error
	pricing llm.ModelPricing
	calls   int

	// gate, when set, holds the first call's channel open until released.
	gate chan struct{}
}

func (p *scriptedProvider) StreamCompletion(ctx context.Context, messages []*types.Message, tools []types.ToolSpec) (<-chan *llm.StreamChunk, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.callErr != nil {
		return nil, p.callErr
	}

	var turn []*llm.StreamChunk
	if p.calls < len(p.turns) {
		turn = p.turns[p.calls]
	}
	p.calls++

	ch := make(chan *llm.StreamChunk, len(turn)+1)
	gate := p.gate
	p.gate = nil

	go func() {
		defer close(ch)
		if gate != nil {
			<-gate
		}
		for _, chunk := range turn {
			ch <- chunk
		}
	}()
	return ch, nil
}

func (p *scriptedProvider) Pricing(ctx context.Context, model string) llm.ModelPricing {
	return p.pricing
}

func (p *scriptedProvider) Model() string {
	return "test/model"
}

// scriptedExecutor returns canned results per tool name and records the
// order of executions.
type scriptedExecutor struct {
	mu       sync.Mutex
	results  map[string]*types.ActionResult
	executed []string
}

func (e *scriptedExecutor) Execute(ctx context.Context, name string, args map[string]any) *types.ActionResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.executed = append(e.executed, name)
	if result, ok := e.results[name]; ok {
		return result
	}
	return types.Success(fmt.Sprintf("ran %s", name))
}

func contentChunk(text string) *llm.StreamChunk {
	return &llm.StreamChunk{Content: text}
}

func toolChunk(index int, id, name, args string) *llm.StreamChunk {
	return &llm.StreamChunk{ToolCalls: []llm.ToolCallDelta{{Index: index, ID: id, Name: name, Arguments: args}}}
}

func argsChunk(index int, args string) *llm.StreamChunk {
	return &llm.StreamChunk{ToolCalls: []llm.ToolCallDelta{{Index: index, Arguments: args}}}
}

func usageChunk(prompt, completion int) *llm.StreamChunk {
	return &llm.StreamChunk{Usage: &llm.Usage{PromptTokens: prompt, CompletionTokens: completion}}
}

func errorChunk(err error) *llm.StreamChunk {
	return &llm.StreamChunk{Error: err}
}

func drain(events <-chan *types.AgentEvent) []*types.AgentEvent {
	var collected []*types.AgentEvent
	for event := range events {
		collected = append(collected, event)
	}
	return collected
}

func eventsOfType(events []*types.AgentEvent, eventType types.AgentEventType) []*types.AgentEvent {
	var matched []*types.AgentEvent
	for _, event := range events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}
