// Package agent implements the control loop that lets a model drive the
// browser: it streams model output, assembles tool calls from partial
// deltas, executes them in order, feeds results back into a bounded
// conversation history, watches for repetitive behavior, and accounts for
// token usage and cost.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/entrhq/webpilot/pkg/llm"
	"github.com/entrhq/webpilot/pkg/llm/tokenizer"
	"github.com/entrhq/webpilot/pkg/logging"
	"github.com/entrhq/webpilot/pkg/tools"
	"github.com/entrhq/webpilot/pkg/types"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("agent")
	if err != nil {
		debugLog.Warnf("Failed to initialize agent logger, using stderr fallback: %v", err)
	}
}

// DefaultMaxIterations caps the model-call/tool-execution cycles per task.
const DefaultMaxIterations = 1000

// ErrTaskInFlight is returned when a task is submitted or a reset requested
// while another task is still running. Callers must serialize tasks.
var ErrTaskInFlight = errors.New("a task is already in flight")

// Controller owns the conversation history and drives the agent loop for
// one interactive session. It is not safe for concurrent task submission;
// a second ProcessTask while one is running yields an error event.
type Controller struct {
	provider llm.Provider
	executor tools.Executor
	catalog  []types.ToolSpec
	recorder Recorder

	customInstructions string
	maxIterations      int
	bufferSize         int
	debug              bool

	// tokenizer provides client-side estimates for context inspection;
	// nil when initialization failed.
	tokenizer *tokenizer.Tokenizer

	taskMu sync.Mutex

	// Mutable session state, guarded by taskMu being held for the
	// duration of a task.
	history   []*types.Message
	turnStart int
	stats     SessionStats
	loops     *loopDetector
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithRecorder sets the session recorder sink.
func WithRecorder(recorder Recorder) ControllerOption {
	return func(c *Controller) {
		if recorder != nil {
			c.recorder = recorder
		}
	}
}

// WithMaxIterations overrides the per-task iteration cap.
func WithMaxIterations(max int) ControllerOption {
	return func(c *Controller) {
		if max > 0 {
			c.maxIterations = max
		}
	}
}

// WithBufferSize sets the event channel buffer size.
func WithBufferSize(size int) ControllerOption {
	return func(c *Controller) {
		if size > 0 {
			c.bufferSize = size
		}
	}
}

// WithDebug enables debug events in the task stream.
func WithDebug(debug bool) ControllerOption {
	return func(c *Controller) {
		c.debug = debug
	}
}

// WithCustomInstructions appends user-provided instructions to the system
// prompt.
func WithCustomInstructions(instructions string) ControllerOption {
	return func(c *Controller) {
		c.customInstructions = instructions
	}
}

// NewController creates a controller bound to a model provider and a
// browser action executor.
func NewController(provider llm.Provider, executor tools.Executor, opts ...ControllerOption) *Controller {
	tok, err := tokenizer.New()
	if err != nil {
		tok = nil
	}

	c := &Controller{
		provider:      provider,
		executor:      executor,
		catalog:       tools.Catalog(),
		recorder:      nopRecorder{},
		maxIterations: DefaultMaxIterations,
		bufferSize:    10,
		tokenizer:     tok,
		loops:         newLoopDetector(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ProcessTask runs one user task through the agent loop, returning the
// stream of observable events. The channel is closed when the task ends;
// the last event is either a usage summary or a terminal error.
func (c *Controller) ProcessTask(ctx context.Context, task string) <-chan *types.AgentEvent {
	events := make(chan *types.AgentEvent, c.bufferSize)

	go func() {
		defer close(events)

		if !c.taskMu.TryLock() {
			events <- types.NewErrorEvent(ErrTaskInFlight)
			return
		}
		defer c.taskMu.Unlock()

		c.runTask(ctx, task, events)
	}()

	return events
}

// Reset clears the conversation history, loop ring, and token counters.
// The browser session is left alone so it can be reused across resets.
func (c *Controller) Reset() error {
	if !c.taskMu.TryLock() {
		return ErrTaskInFlight
	}
	defer c.taskMu.Unlock()

	c.history = nil
	c.turnStart = 0
	c.stats.Reset()
	c.loops.Reset()
	return nil
}

// SetDebug toggles debug events for subsequent tasks. It fails when a task
// is in flight.
func (c *Controller) SetDebug(debug bool) error {
	if !c.taskMu.TryLock() {
		return ErrTaskInFlight
	}
	defer c.taskMu.Unlock()

	c.debug = debug
	return nil
}

// Stats returns a copy of the session token counters. It blocks while a
// task is in flight.
func (c *Controller) Stats() SessionStats {
	c.taskMu.Lock()
	defer c.taskMu.Unlock()
	return c.stats
}

// HistoryLen reports the number of stored conversation messages. It blocks
// while a task is in flight.
func (c *Controller) HistoryLen() int {
	c.taskMu.Lock()
	defer c.taskMu.Unlock()
	return len(c.history)
}

// ContextTokens estimates the tokens the next model call will consume,
// or 0 when the tokenizer is unavailable. It blocks while a task is in
// flight.
func (c *Controller) ContextTokens() int {
	c.taskMu.Lock()
	defer c.taskMu.Unlock()

	if c.tokenizer == nil {
		return 0
	}
	return c.tokenizer.CountTokens(c.promptText()) +
		c.tokenizer.CountMessagesTokens(c.history)
}

func (c *Controller) runTask(ctx context.Context, task string, events chan<- *types.AgentEvent) {
	c.stats.BeginTask()
	debugLog.Infof("Task started with %d history messages", len(c.history))

	c.recorder.RecordMessage("user", task)
	c.history = append(c.history, types.NewUserMessage(task))
	c.turnStart = len(c.history)

	iteration := 0
	finished := false

	for iteration < c.maxIterations {
		iteration++

		if ctx.Err() != nil {
			events <- types.NewErrorEvent(ctx.Err())
			return
		}

		if c.debug {
			events <- types.NewDebugEvent(fmt.Sprintf("Iteration %d/%d", iteration, c.maxIterations))
		}

		calls, err := c.streamTurn(ctx, events)
		if err != nil {
			// A gateway failure aborts the whole task. History up to this
			// point is preserved and the counters stay at their
			// pre-failure values, so no usage summary is emitted.
			taskErr := fmt.Errorf("error communicating with LLM: %w", err)
			debugLog.Errorf("Stream failed on iteration %d: %v", iteration, err)
			c.recorder.RecordError(taskErr.Error())
			events <- types.NewErrorEvent(taskErr)
			return
		}

		if len(calls) == 0 {
			finished = true
			break
		}

		c.executeToolCalls(ctx, calls, events)
		if ctx.Err() != nil {
			events <- types.NewErrorEvent(ctx.Err())
			return
		}
	}

	if !finished {
		warning := fmt.Sprintf("Reached maximum iterations (%d)", c.maxIterations)
		debugLog.Warnf("%s", warning)
		c.recorder.RecordError(warning)
		events <- types.NewWarningEvent(warning)
	}

	events <- types.NewUsageEvent(c.usageReport(ctx))
}

// streamTurn performs one model call: it streams the response, emits
// content deltas as they arrive, accumulates usage, and appends the fully
// assembled assistant message to history. It returns the turn's tool calls
// in the order they were opened.
func (c *Controller) streamTurn(ctx context.Context, events chan<- *types.AgentEvent) ([]*pendingCall, error) {
	messages := make([]*types.Message, 0, len(c.history)+1)
	messages = append(messages, types.NewSystemMessage(c.promptText()))
	messages = append(messages, c.history...)

	chunks, err := c.provider.StreamCompletion(ctx, messages, c.catalog)
	if err != nil {
		return nil, err
	}

	events <- types.NewMessageStartEvent()

	assembler := newCallAssembler()
	var content strings.Builder
	sawUsage := false

	for chunk := range chunks {
		if chunk.IsError() {
			return nil, chunk.Error
		}
		if chunk.Usage != nil {
			sawUsage = true
			c.stats.AddUsage(chunk.Usage.PromptTokens, chunk.Usage.CompletionTokens)
		}
		if chunk.Content != "" {
			content.WriteString(chunk.Content)
			events <- types.NewContentEvent(chunk.Content)
		}
		for _, delta := range chunk.ToolCalls {
			assembler.Apply(delta)
		}
	}

	// The assistant message goes into history before any tool results,
	// even when its text is empty.
	records := assembler.Records()
	debugLog.Debugf("Turn complete: %d content chars, %d tool calls", content.Len(), len(records))
	c.history = append(c.history, types.NewAssistantMessage(content.String(), records))
	c.turnStart = len(c.history) - 1
	c.recorder.RecordMessage("assistant", content.String())

	if !sawUsage {
		c.estimateUsage(messages, content.String(), records)
	}

	events <- types.NewMessageEndEvent(len(records) == 0)

	return assembler.Calls(), nil
}

// executeToolCalls runs the turn's tool calls strictly in the order they
// were opened; later calls may depend on page state produced by earlier
// ones.
func (c *Controller) executeToolCalls(ctx context.Context, calls []*pendingCall, events chan<- *types.AgentEvent) {
	for _, call := range calls {
		if ctx.Err() != nil {
			return
		}

		if !call.Executable() {
			// The argument buffer never became valid JSON. The call is not
			// executed, but it still gets a synthesized failure result so
			// every call the model issued has a matching answer.
			callErr := fmt.Errorf("tool call %q had incomplete or invalid arguments", call.Name)
			c.recorder.RecordError(callErr.Error())
			events <- types.NewErrorEvent(callErr)

			c.appendToolResult(call, types.Failure("Tool call arguments were incomplete or invalid JSON"))
			continue
		}

		if c.loops.Record(actionSignature(call.Name, call.Args)) {
			events <- types.NewLoopDetectedEvent(call.Name, call.Args)
		}

		events <- types.NewToolCallEvent(call.Name, call.Args)
		c.recorder.RecordToolCall(call.Name, call.Args)
		if c.debug {
			events <- types.NewDebugEvent(fmt.Sprintf("Tool call: %s(%v)", call.Name, call.Args))
		}

		result := c.executor.Execute(ctx, call.Name, call.Args)

		// The recorder and event stream get the full result; history gets
		// the reduced form.
		c.recorder.RecordToolResult(call.Name, result)
		events <- types.NewToolResultEvent(call.Name, result)
		if c.debug {
			events <- types.NewDebugEvent(fmt.Sprintf("Tool result: ok=%t", result.OK))
		}

		c.appendToolResult(call, result)
	}
}

// estimateUsage fills in token counters for a turn whose stream carried no
// usage fragments, using client-side tokenizer counts.
func (c *Controller) estimateUsage(sent []*types.Message, content string, records []types.ToolCallRecord) {
	if c.tokenizer == nil {
		return
	}

	prompt := c.tokenizer.CountMessagesTokens(sent)
	completion := c.tokenizer.CountTokens(content)
	for _, rec := range records {
		completion += c.tokenizer.CountTokens(rec.Name) + c.tokenizer.CountTokens(rec.Arguments)
	}
	c.stats.AddUsage(prompt, completion)
}

func (c *Controller) appendToolResult(call *pendingCall, result *types.ActionResult) {
	c.history = append(c.history, types.NewToolMessage(call.ID, call.Name, resultForHistory(call.Name, result)))
	c.compact()
}

// compact applies the sliding window to everything before the turn in
// flight. The live turn is exempt so a tool result appended a moment later
// can never be separated from its assistant message.
func (c *Controller) compact() {
	head := c.history[:c.turnStart]
	compacted := slideWindow(head)
	if len(compacted) == len(head) {
		return
	}
	debugLog.Debugf("Compacted history head from %d to %d messages", len(head), len(compacted))

	rebuilt := make([]*types.Message, 0, len(compacted)+len(c.history)-c.turnStart)
	rebuilt = append(rebuilt, compacted...)
	rebuilt = append(rebuilt, c.history[c.turnStart:]...)
	c.history = rebuilt
	c.turnStart = len(compacted)
}

func (c *Controller) usageReport(ctx context.Context) *types.UsageReport {
	pricing := c.provider.Pricing(ctx, c.provider.Model())
	return &types.UsageReport{
		PromptTokens:     c.stats.LifetimePromptTokens,
		CompletionTokens: c.stats.LifetimeCompletionTokens,
		TotalTokens:      c.stats.LifetimeTotal(),
		CostUSD:          pricing.Cost(c.stats.LifetimePromptTokens, c.stats.LifetimeCompletionTokens),
	}
}

func (c *Controller) promptText() string {
	if c.customInstructions == "" {
		return systemPrompt
	}
	return systemPrompt + "\n\nAdditional instructions from the user:\n" + c.customInstructions
}
