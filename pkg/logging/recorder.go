package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/entrhq/webpilot/pkg/types"
)

// SessionRecorder is an append-only structured transcript of one run. Each
// session gets its own timestamped directory under the runs root:
//
//	runs/20260826_143702/session.jsonl   one JSON entry per record
//	runs/20260826_143702/browser.log     raw browser driver output
//
// Write failures are swallowed after the recorder is constructed; the
// transcript is best-effort and must never interrupt a task.
type SessionRecorder struct {
	mu         sync.Mutex
	sessionDir string
	file       *os.File
	browserLog *os.File
}

// sessionEntry is one line of session.jsonl.
type sessionEntry struct {
	Timestamp string         `json:"timestamp"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Tool      string         `json:"tool,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
	OK        *bool          `json:"ok,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewSessionRecorder creates the session directory and opens the
// transcript file. runsDir defaults to "runs" when empty.
func NewSessionRecorder(runsDir string) (*SessionRecorder, error) {
	if runsDir == "" {
		runsDir = "runs"
	}

	sessionDir := filepath.Join(runsDir, time.Now().Format("20060102_150405"))
	if err := os.MkdirAll(sessionDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	file, err := os.OpenFile(filepath.Join(sessionDir, "session.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open session file: %w", err)
	}

	return &SessionRecorder{
		sessionDir: sessionDir,
		file:       file,
	}, nil
}

// SessionDir returns the directory holding this session's artifacts.
func (r *SessionRecorder) SessionDir() string {
	return r.sessionDir
}

func (r *SessionRecorder) append(entry sessionEntry) {
	entry.Timestamp = time.Now().Format(time.RFC3339Nano)

	line, err := json.Marshal(entry)
	if err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return
	}
	r.file.Write(append(line, '\n'))
}

// RecordMessage appends a conversation message.
func (r *SessionRecorder) RecordMessage(role, content string) {
	r.append(sessionEntry{Role: role, Content: content})
}

// RecordToolCall appends a tool invocation with its parsed arguments.
func (r *SessionRecorder) RecordToolCall(name string, args map[string]any) {
	r.append(sessionEntry{
		Role:    "tool",
		Content: fmt.Sprintf("Calling tool: %s", name),
		Tool:    name,
		Args:    args,
	})
}

// RecordToolResult appends a tool result, unsummarized.
func (r *SessionRecorder) RecordToolResult(name string, result *types.ActionResult) {
	ok := result.OK
	r.append(sessionEntry{
		Role:     "tool_result",
		Content:  result.Output,
		Tool:     name,
		OK:       &ok,
		Metadata: result.Metadata,
	})
}

// RecordError appends an error record.
func (r *SessionRecorder) RecordError(message string) {
	r.append(sessionEntry{Role: "error", Content: message})
}

// BrowserLog returns a writer for raw browser driver output, opening
// browser.log on first use.
func (r *SessionRecorder) BrowserLog() (*os.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browserLog != nil {
		return r.browserLog, nil
	}

	f, err := os.OpenFile(filepath.Join(r.sessionDir, "browser.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open browser log: %w", err)
	}
	r.browserLog = f
	return f, nil
}

// Close closes the transcript files.
func (r *SessionRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.file != nil {
		err = r.file.Close()
		r.file = nil
	}
	if r.browserLog != nil {
		if cerr := r.browserLog.Close(); err == nil {
			err = cerr
		}
		r.browserLog = nil
	}
	return err
}
