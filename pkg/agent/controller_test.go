package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/webpilot/pkg/llm"
	"github.com/entrhq/webpilot/pkg/types"
)

// assertPairing verifies every tool result immediately follows the
// assistant message carrying the call it answers.
func assertPairing(t *testing.T, history []*types.Message) {
	t.Helper()

	for i, msg := range history {
		if !msg.IsToolResult() {
			continue
		}

		// Walk back over any earlier results of the same turn to the
		// assistant message.
		j := i - 1
		for j >= 0 && history[j].IsToolResult() {
			j--
		}
		require.GreaterOrEqual(t, j, 0, "tool result at %d has no preceding assistant message", i)
		require.Equal(t, types.RoleAssistant, history[j].Role, "tool result at %d orphaned", i)

		found := false
		for _, call := range history[j].ToolCalls {
			if call.ID == msg.ToolCallID {
				found = true
			}
		}
		assert.True(t, found, "tool result at %d answers no call on its assistant message", i)
	}
}

func TestProcessTaskEndToEnd(t *testing.T) {
	provider := &scriptedProvider{
		pricing: llm.ModelPricing{PromptPerMTok: 3, CompletionPerMTok: 15},
		turns: [][]*llm.StreamChunk{
			{
				toolChunk(0, "call_1", "browser_navigate", `{"url":"https://example.com"}`),
				usageChunk(100, 20),
			},
			{
				toolChunk(0, "call_2", "browser_get_title", `{}`),
				usageChunk(150, 10),
			},
			{
				contentChunk("The page title is "),
				contentChunk("Example Domain."),
				usageChunk(200, 30),
			},
		},
	}
	executor := &scriptedExecutor{
		results: map[string]*types.ActionResult{
			"browser_get_title": types.Success("Example Domain"),
		},
	}

	controller := NewController(provider, executor)
	events := drain(controller.ProcessTask(context.Background(), "Open example.com and report the title"))

	toolCalls := eventsOfType(events, types.EventTypeToolCall)
	require.Len(t, toolCalls, 2)
	assert.Equal(t, "browser_navigate", toolCalls[0].ToolName)
	assert.Equal(t, "browser_get_title", toolCalls[1].ToolName)
	assert.Equal(t, []string{"browser_navigate", "browser_get_title"}, executor.executed)

	var text strings.Builder
	for _, event := range eventsOfType(events, types.EventTypeContent) {
		text.WriteString(event.Content)
	}
	assert.Equal(t, "The page title is Example Domain.", text.String())

	ends := eventsOfType(events, types.EventTypeMessageEnd)
	require.Len(t, ends, 3)
	assert.False(t, ends[0].IsFinal)
	assert.False(t, ends[1].IsFinal)
	assert.True(t, ends[2].IsFinal)

	usages := eventsOfType(events, types.EventTypeUsage)
	require.Len(t, usages, 1)
	assert.Greater(t, usages[0].Usage.CompletionTokens, 0)
	assert.Equal(t, 450, usages[0].Usage.PromptTokens)
	assert.Equal(t, 510, usages[0].Usage.TotalTokens)
	assert.Same(t, usages[0], events[len(events)-1], "usage must be the terminal event")

	assert.Empty(t, eventsOfType(events, types.EventTypeError))
	assertPairing(t, controller.history)
}

func TestProcessTaskGatewayCallFailure(t *testing.T) {
	provider := &scriptedProvider{
		callErr: &llm.APIError{StatusCode: 401, Body: "unauthorized"},
	}
	controller := NewController(provider, &scriptedExecutor{})

	events := drain(controller.ProcessTask(context.Background(), "do something"))

	errs := eventsOfType(events, types.EventTypeError)
	require.Len(t, errs, 1)

	var apiErr *llm.APIError
	require.ErrorAs(t, errs[0].Err, &apiErr)
	assert.Equal(t, 401, apiErr.StatusCode)

	assert.Empty(t, eventsOfType(events, types.EventTypeUsage),
		"no usage summary after a transport failure")
	assert.Equal(t, 0, controller.stats.LifetimeTotal())

	// History keeps the user message so the session stays appendable.
	require.Len(t, controller.history, 1)
	assert.Equal(t, types.RoleUser, controller.history[0].Role)
}

func TestProcessTaskMidStreamFailure(t *testing.T) {
	streamErr := errors.New("connection reset")
	provider := &scriptedProvider{
		turns: [][]*llm.StreamChunk{
			{contentChunk("partial "), errorChunk(streamErr)},
		},
	}
	controller := NewController(provider, &scriptedExecutor{})

	events := drain(controller.ProcessTask(context.Background(), "task"))

	errs := eventsOfType(events, types.EventTypeError)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0].Err, streamErr)
	assert.Empty(t, eventsOfType(events, types.EventTypeUsage))
}

func TestOrphanedToolCallGetsSynthesizedResult(t *testing.T) {
	provider := &scriptedProvider{
		turns: [][]*llm.StreamChunk{
			{toolChunk(0, "call_1", "browser_click", `{"ref":"e1"`)}, // never closes
			{contentChunk("done")},
		},
	}
	executor := &scriptedExecutor{}
	controller := NewController(provider, executor)

	events := drain(controller.ProcessTask(context.Background(), "click the thing"))

	errs := eventsOfType(events, types.EventTypeError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Err.Error(), "browser_click")
	assert.Empty(t, executor.executed, "unparseable call must not execute")

	// The call still receives a failure result so the pairing invariant
	// holds for the next model call.
	var toolMsgs []*types.Message
	for _, msg := range controller.history {
		if msg.IsToolResult() {
			toolMsgs = append(toolMsgs, msg)
		}
	}
	require.Len(t, toolMsgs, 1)
	assert.Equal(t, "call_1", toolMsgs[0].ToolCallID)
	assert.Contains(t, toolMsgs[0].Content, `"ok":false`)
	assertPairing(t, controller.history)
}

func TestProcessTaskIterationCap(t *testing.T) {
	clickTurn := []*llm.StreamChunk{
		toolChunk(0, "call_1", "browser_click", `{"ref":"e1"}`),
	}
	provider := &scriptedProvider{
		turns: [][]*llm.StreamChunk{clickTurn, clickTurn, clickTurn},
	}
	controller := NewController(provider, &scriptedExecutor{}, WithMaxIterations(2))

	events := drain(controller.ProcessTask(context.Background(), "loop forever"))

	warnings := eventsOfType(events, types.EventTypeWarning)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Content, "maximum iterations (2)")

	// The cap is a graceful stop, not an error: usage still goes out.
	assert.Len(t, eventsOfType(events, types.EventTypeUsage), 1)
	assert.Equal(t, 2, provider.calls)
}

func TestProcessTaskCostComputation(t *testing.T) {
	provider := &scriptedProvider{
		pricing: llm.ModelPricing{PromptPerMTok: 15, CompletionPerMTok: 75},
		turns: [][]*llm.StreamChunk{
			{contentChunk("done"), usageChunk(1_000_000, 1_000_000)},
		},
	}
	controller := NewController(provider, &scriptedExecutor{})

	events := drain(controller.ProcessTask(context.Background(), "task"))

	usages := eventsOfType(events, types.EventTypeUsage)
	require.Len(t, usages, 1)
	assert.InDelta(t, 90.0, usages[0].Usage.CostUSD, 1e-9)
}

func TestUsageEstimatedWhenStreamOmitsCounters(t *testing.T) {
	provider := &scriptedProvider{
		turns: [][]*llm.StreamChunk{{contentChunk("a short answer")}},
	}
	controller := NewController(provider, &scriptedExecutor{})
	if controller.tokenizer == nil {
		t.Skip("tokenizer encoding unavailable")
	}

	events := drain(controller.ProcessTask(context.Background(), "task"))

	usages := eventsOfType(events, types.EventTypeUsage)
	require.Len(t, usages, 1)
	assert.Greater(t, usages[0].Usage.PromptTokens, 0)
	assert.Greater(t, usages[0].Usage.CompletionTokens, 0)
}

func TestProcessTaskRejectsConcurrentSubmission(t *testing.T) {
	gate := make(chan struct{})
	provider := &scriptedProvider{
		gate:  gate,
		turns: [][]*llm.StreamChunk{{contentChunk("done")}},
	}
	controller := NewController(provider, &scriptedExecutor{})

	first := controller.ProcessTask(context.Background(), "task one")

	// Wait for the first task to be mid-stream.
	start := <-first
	require.Equal(t, types.EventTypeMessageStart, start.Type)

	second := drain(controller.ProcessTask(context.Background(), "task two"))
	require.Len(t, second, 1)
	assert.ErrorIs(t, second[0].Err, ErrTaskInFlight)

	close(gate)
	drain(first)
}

func TestResetClearsSessionState(t *testing.T) {
	provider := &scriptedProvider{
		turns: [][]*llm.StreamChunk{
			{contentChunk("hello"), usageChunk(10, 5)},
		},
	}
	controller := NewController(provider, &scriptedExecutor{})
	drain(controller.ProcessTask(context.Background(), "task"))

	require.NotZero(t, controller.HistoryLen())
	require.NotZero(t, controller.stats.LifetimeTotal())

	require.NoError(t, controller.Reset())
	assert.Zero(t, controller.HistoryLen())
	assert.Zero(t, controller.stats.LifetimeTotal())
	assert.Empty(t, controller.loops.recent)
}

func TestCompactionBoundsHistory(t *testing.T) {
	// 20 tool-calling turns followed by a plain-text turn.
	var turns [][]*llm.StreamChunk
	for i := 0; i < 20; i++ {
		turns = append(turns, []*llm.StreamChunk{
			toolChunk(0, "call", "browser_get_text", `{"ref":"e1"}`),
		})
	}
	turns = append(turns, []*llm.StreamChunk{contentChunk("finished")})

	provider := &scriptedProvider{turns: turns}
	controller := NewController(provider, &scriptedExecutor{})

	events := drain(controller.ProcessTask(context.Background(), "read everything"))

	assert.Len(t, eventsOfType(events, types.EventTypeUsage), 1)
	assert.LessOrEqual(t, controller.HistoryLen(), historyHighWater,
		"sliding window must bound stored history")
	assertPairing(t, controller.history)
}

func TestSetDebugEnablesDebugEventsMidSession(t *testing.T) {
	turn := []*llm.StreamChunk{contentChunk("done")}
	provider := &scriptedProvider{turns: [][]*llm.StreamChunk{turn, turn}}
	controller := NewController(provider, &scriptedExecutor{})

	events := drain(controller.ProcessTask(context.Background(), "first"))
	assert.Empty(t, eventsOfType(events, types.EventTypeDebug))

	require.NoError(t, controller.SetDebug(true))
	events = drain(controller.ProcessTask(context.Background(), "second"))
	debugs := eventsOfType(events, types.EventTypeDebug)
	require.NotEmpty(t, debugs)
	assert.Contains(t, debugs[0].Content, "Iteration 1/")

	require.NoError(t, controller.SetDebug(false))
	events = drain(controller.ProcessTask(context.Background(), "third"))
	assert.Empty(t, eventsOfType(events, types.EventTypeDebug))
}

func TestSetDebugRejectedWhileTaskInFlight(t *testing.T) {
	gate := make(chan struct{})
	provider := &scriptedProvider{
		gate:  gate,
		turns: [][]*llm.StreamChunk{{contentChunk("done")}},
	}
	controller := NewController(provider, &scriptedExecutor{})

	events := controller.ProcessTask(context.Background(), "task")
	start := <-events
	require.Equal(t, types.EventTypeMessageStart, start.Type)

	assert.ErrorIs(t, controller.SetDebug(true), ErrTaskInFlight)

	close(gate)
	drain(events)
}

func TestStatsReportsSessionAndTaskCounters(t *testing.T) {
	provider := &scriptedProvider{
		turns: [][]*llm.StreamChunk{
			{contentChunk("one"), usageChunk(100, 20)},
			{contentChunk("two"), usageChunk(40, 10)},
		},
	}
	controller := NewController(provider, &scriptedExecutor{})

	drain(controller.ProcessTask(context.Background(), "first"))
	drain(controller.ProcessTask(context.Background(), "second"))

	stats := controller.Stats()
	assert.Equal(t, 140, stats.LifetimePromptTokens)
	assert.Equal(t, 30, stats.LifetimeCompletionTokens)
	assert.Equal(t, 170, stats.LifetimeTotal())

	// Task counters cover only the most recent task.
	assert.Equal(t, 40, stats.TaskPromptTokens)
	assert.Equal(t, 10, stats.TaskCompletionTokens)
}

func TestLoopDetectionAdvisoryDoesNotHalt(t *testing.T) {
	sameClick := []*llm.StreamChunk{
		toolChunk(0, "call", "browser_click", `{"ref":"e1"}`),
	}
	var turns [][]*llm.StreamChunk
	for i := 0; i < 6; i++ {
		turns = append(turns, sameClick)
	}
	turns = append(turns, []*llm.StreamChunk{contentChunk("stopping")})

	provider := &scriptedProvider{turns: turns}
	executor := &scriptedExecutor{}
	controller := NewController(provider, executor)

	events := drain(controller.ProcessTask(context.Background(), "click it"))

	loops := eventsOfType(events, types.EventTypeLoopDetected)
	require.NotEmpty(t, loops)
	assert.Equal(t, "browser_click", loops[0].ToolName)

	// Advisory only: every call still executed and the task completed.
	assert.Len(t, executor.executed, 6)
	assert.Len(t, eventsOfType(events, types.EventTypeUsage), 1)
}

func TestDebugLogInitialized(t *testing.T) {
	require.NotNil(t, debugLog)
	assert.NotEmpty(t, debugLog.SessionID())
}
