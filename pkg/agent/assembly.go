package agent

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/entrhq/webpilot/pkg/llm"
	"github.com/entrhq/webpilot/pkg/types"
)

// pendingCall is a tool call under assembly from streamed fragments.
// Argument text accumulates across fragments; Args holds the most recent
// successful decode of the accumulated buffer.
type pendingCall struct {
	Index    int
	ID       string
	Name     string
	argsBuf  strings.Builder
	Args     map[string]any
	parsedOK bool
}

// Arguments returns the raw accumulated argument text.
func (p *pendingCall) Arguments() string {
	return p.argsBuf.String()
}

// Executable reports whether the accumulated arguments decoded to JSON.
// A call whose buffer never formed valid JSON must not be dispatched.
func (p *pendingCall) Executable() bool {
	return p.parsedOK
}

// callAssembler reconstructs tool calls from streaming deltas. Calls are
// keyed by their zero-based index within the turn: a delta carrying a
// non-empty name opens the call at that index, and argument text appends
// to whichever call the index addresses, whether or not the name arrived
// in the same delta.
type callAssembler struct {
	calls []*pendingCall
}

func newCallAssembler() *callAssembler {
	return &callAssembler{}
}

// Apply folds one streamed delta into the assembly state.
func (a *callAssembler) Apply(delta llm.ToolCallDelta) {
	if delta.Name != "" {
		a.open(delta)
	}
	if delta.Arguments != "" {
		a.appendArgs(delta.Index, delta.Arguments)
	}
}

func (a *callAssembler) open(delta llm.ToolCallDelta) {
	// Gateways occasionally omit the call ID; the result message needs one
	// to answer, so synthesize it here where the record and the result will
	// both see it.
	id := delta.ID
	if id == "" {
		id = "call_" + uuid.NewString()[:8]
	}

	call := &pendingCall{
		Index: delta.Index,
		ID:    id,
		Name:  delta.Name,
	}
	for len(a.calls) <= delta.Index {
		a.calls = append(a.calls, nil)
	}
	a.calls[delta.Index] = call
}

func (a *callAssembler) appendArgs(index int, text string) {
	if index < 0 || index >= len(a.calls) || a.calls[index] == nil {
		return
	}

	call := a.calls[index]
	call.argsBuf.WriteString(text)

	// Partial JSON is expected mid-stream; keep the last good decode and
	// wait for more fragments.
	var parsed map[string]any
	if err := json.Unmarshal([]byte(call.Arguments()), &parsed); err == nil {
		call.Args = parsed
		call.parsedOK = true
	}
}

// Calls returns the assembled calls in index order, skipping indexes that
// never received a name.
func (a *callAssembler) Calls() []*pendingCall {
	calls := make([]*pendingCall, 0, len(a.calls))
	for _, call := range a.calls {
		if call != nil {
			calls = append(calls, call)
		}
	}
	return calls
}

// Records converts the assembled calls into the tool call records stored
// on the assistant message, each carrying the final argument string.
func (a *callAssembler) Records() []types.ToolCallRecord {
	calls := a.Calls()
	if len(calls) == 0 {
		return nil
	}

	records := make([]types.ToolCallRecord, 0, len(calls))
	for _, call := range calls {
		records = append(records, types.ToolCallRecord{
			ID:        call.ID,
			Name:      call.Name,
			Arguments: call.Arguments(),
		})
	}
	return records
}
