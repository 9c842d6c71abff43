package agent

import "github.com/entrhq/webpilot/pkg/types"

// Recorder is the write-only sink the controller feeds with the full,
// unsummarized record of a session. Implementations must not block for
// long; the controller calls them inline on the task goroutine.
type Recorder interface {
	RecordMessage(role, content string)
	RecordToolCall(name string, args map[string]any)
	RecordToolResult(name string, result *types.ActionResult)
	RecordError(message string)
}

// nopRecorder discards everything. Used when no recorder is configured.
type nopRecorder struct{}

func (nopRecorder) RecordMessage(string, string)                 {}
func (nopRecorder) RecordToolCall(string, map[string]any)        {}
func (nopRecorder) RecordToolResult(string, *types.ActionResult) {}
func (nopRecorder) RecordError(string)                           {}
