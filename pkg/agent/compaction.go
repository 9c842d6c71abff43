package agent

import (
	"encoding/json"
	"fmt"

	"github.com/entrhq/webpilot/pkg/types"
)

const (
	// historyHighWater is the message count past which compaction kicks in.
	historyHighWater = 12
	// historyLowWater is the message count compaction shrinks back to.
	historyLowWater = 6

	screenshotPlaceholder = "[Screenshot captured; image omitted from conversation]"
)

// resultForHistory renders an action result as the tool message content
// fed back to the model. Snapshots and screenshots are reduced immediately
// at production: the model gets element and size statistics (plus ref
// metadata) instead of the raw page text, which dominates prompt size.
// The full result still reaches the recorder and event stream elsewhere.
func resultForHistory(name string, result *types.ActionResult) string {
	if !result.OK {
		return result.JSON()
	}

	switch name {
	case "browser_snapshot":
		reduced := &types.ActionResult{
			OK:       true,
			Output:   fmt.Sprintf("Snapshot: %v interactive elements (%d chars)", result.Metadata["element_count"], len(result.Output)),
			Metadata: result.Metadata,
		}
		return reduced.JSON()
	case "browser_screenshot":
		reduced := &types.ActionResult{
			OK:       true,
			Output:   screenshotPlaceholder,
			Metadata: result.Metadata,
		}
		return reduced.JSON()
	}
	return result.JSON()
}

// slideWindow applies the history compaction policy to the messages that
// precede the turn currently in flight. Past the high-water mark the
// oldest tool results are first rewritten in place as one-line summaries,
// then whole turns are evicted from the front until the low-water mark is
// reached. Eviction always removes an assistant message together with its
// tool results so a result is never left without the call it answers.
func slideWindow(history []*types.Message) []*types.Message {
	if len(history) <= historyHighWater {
		return history
	}

	budget := len(history) - historyLowWater
	for _, msg := range history {
		if budget == 0 {
			break
		}
		if !msg.IsToolResult() {
			continue
		}
		if summary, ok := summarizeToolResult(msg.ToolName, msg.Content); ok {
			msg.Content = summary
			budget--
		}
	}

	for len(history) > historyLowWater {
		history = evictOldestTurn(history)
	}
	return history
}

// evictOldestTurn drops the front message; when that is an assistant
// message its trailing tool results go with it.
func evictOldestTurn(history []*types.Message) []*types.Message {
	if len(history) == 0 {
		return history
	}

	cut := 1
	if history[0].Role == types.RoleAssistant {
		for cut < len(history) && history[cut].IsToolResult() {
			cut++
		}
	}
	return history[cut:]
}

// summarizeToolResult collapses a stored tool result to a one-line,
// action-specific reminder that the action happened. Stored results are
// ActionResult JSON; content that does not decode was already summarized
// on an earlier round and is reported as ok=false.
func summarizeToolResult(name, content string) (string, bool) {
	var res types.ActionResult
	if err := json.Unmarshal([]byte(content), &res); err != nil {
		return "", false
	}

	output := content
	if res.Output != "" {
		output = res.Output
	}

	switch name {
	case "browser_snapshot", "browser_screenshot":
		// Already reduced when produced; drop the stale ref metadata.
		return output, true
	case "browser_navigate":
		return "Opened a page", true
	case "browser_click":
		return "Clicked element", true
	case "browser_fill", "browser_type":
		return "Entered text into element", true
	case "browser_get_text", "browser_get_value", "browser_get_title", "browser_get_url":
		return "Retrieved: " + clip(output, 100), true
	default:
		return clip(output, 100), true
	}
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
