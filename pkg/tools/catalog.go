// Package tools declares the fixed catalog of browser actions advertised to
// the model, independent of how they are executed. The catalog is the
// complete tool contract: every entry must have a matching handler in the
// executor's dispatch table, and vice versa.
package tools

import (
	"context"

	"github.com/entrhq/webpilot/pkg/types"
)

// Executor dispatches a named catalog action against the browser backend.
// Implementations must never panic or return errors past this boundary:
// every failure, including timeouts and backend crashes, is captured as a
// failed ActionResult.
type Executor interface {
	Execute(ctx context.Context, name string, args map[string]any) *types.ActionResult
}

// objectSchema builds a JSON-schema object declaration for tool parameters.
func objectSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func refProperty(desc string) map[string]any {
	return map[string]any{
		"type":        "string",
		"description": desc,
	}
}

// Catalog returns the full set of browser action specs, in a stable order.
func Catalog() []types.ToolSpec {
	return []types.ToolSpec{
		{
			Name:        "browser_navigate",
			Description: "Navigate to a URL and wait for the page to load. Always start a browsing task with this.",
			Parameters: objectSchema(map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "The URL to navigate to (must include protocol, e.g. https://example.com)",
				},
			}, []string{"url"}),
		},
		{
			Name:        "browser_snapshot",
			Description: "Capture the current page as a list of elements with refs (e.g. 'e1'). Use refs from the most recent snapshot to interact with elements.",
			Parameters: objectSchema(map[string]any{
				"interactive": map[string]any{
					"type":        "boolean",
					"description": "If true, include only interactive elements (links, buttons, inputs)",
				},
			}, nil),
		},
		{
			Name:        "browser_click",
			Description: "Click an element by its ref from the most recent snapshot.",
			Parameters: objectSchema(map[string]any{
				"ref": refProperty("Element ref from the snapshot (e.g. 'e1')"),
			}, []string{"ref"}),
		},
		{
			Name:        "browser_fill",
			Description: "Replace the contents of a text input with the given text.",
			Parameters: objectSchema(map[string]any{
				"ref":  refProperty("Element ref from the snapshot (e.g. 'e2')"),
				"text": map[string]any{"type": "string", "description": "Text to fill into the input"},
			}, []string{"ref", "text"}),
		},
		{
			Name:        "browser_type",
			Description: "Type text into an element key by key, triggering per-keystroke handlers.",
			Parameters: objectSchema(map[string]any{
				"ref":  refProperty("Element ref from the snapshot"),
				"text": map[string]any{"type": "string", "description": "Text to type"},
			}, []string{"ref", "text"}),
		},
		{
			Name:        "browser_hover",
			Description: "Hover the mouse over an element.",
			Parameters: objectSchema(map[string]any{
				"ref": refProperty("Element ref from the snapshot"),
			}, []string{"ref"}),
		},
		{
			Name:        "browser_scroll",
			Description: "Scroll the page vertically.",
			Parameters: objectSchema(map[string]any{
				"direction": map[string]any{
					"type":        "string",
					"description": "Scroll direction: 'up' or 'down'",
				},
				"amount": map[string]any{
					"type":        "integer",
					"description": "Distance in pixels (default 600)",
				},
			}, []string{"direction"}),
		},
		{
			Name:        "browser_select",
			Description: "Select an option in a dropdown by its value or visible label.",
			Parameters: objectSchema(map[string]any{
				"ref":   refProperty("Element ref of the select control"),
				"value": map[string]any{"type": "string", "description": "Option value or label to select"},
			}, []string{"ref", "value"}),
		},
		{
			Name:        "browser_check",
			Description: "Check or uncheck a checkbox or radio button.",
			Parameters: objectSchema(map[string]any{
				"ref": refProperty("Element ref of the checkbox"),
				"checked": map[string]any{
					"type":        "boolean",
					"description": "Desired state (default true)",
				},
			}, []string{"ref"}),
		},
		{
			Name:        "browser_press_key",
			Description: "Press a keyboard key (e.g. 'Enter', 'Tab', 'ArrowDown') on the focused element.",
			Parameters: objectSchema(map[string]any{
				"key": map[string]any{"type": "string", "description": "Key name to press"},
			}, []string{"key"}),
		},
		{
			Name:        "browser_wait_for",
			Description: "Wait for an element to reach a state, or for the page to finish loading when no ref is given.",
			Parameters: objectSchema(map[string]any{
				"ref": refProperty("Optional element ref to wait on"),
				"state": map[string]any{
					"type":        "string",
					"description": "Element state to wait for: 'visible' (default), 'hidden', 'attached', 'detached'",
				},
				"timeout_ms": map[string]any{
					"type":        "integer",
					"description": "Maximum wait in milliseconds (default 30000)",
				},
			}, nil),
		},
		{
			Name:        "browser_get_text",
			Description: "Get the text content of an element, or of the whole page when no ref is given.",
			Parameters: objectSchema(map[string]any{
				"ref": refProperty("Optional element ref from the snapshot"),
			}, nil),
		},
		{
			Name:        "browser_get_value",
			Description: "Get the current value of an input, textarea, or select element.",
			Parameters: objectSchema(map[string]any{
				"ref": refProperty("Element ref from the snapshot"),
			}, []string{"ref"}),
		},
		{
			Name:        "browser_get_url",
			Description: "Get the current page URL.",
			Parameters:  objectSchema(map[string]any{}, nil),
		},
		{
			Name:        "browser_get_title",
			Description: "Get the current page title.",
			Parameters:  objectSchema(map[string]any{}, nil),
		},
		{
			Name:        "browser_screenshot",
			Description: "Take a screenshot of the current page and save it to disk.",
			Parameters: objectSchema(map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Optional file path for the PNG (defaults to the session run directory)",
				},
			}, nil),
		},
		{
			Name:        "browser_save_state",
			Description: "Save browser storage state (cookies, local storage) to a file for later reuse.",
			Parameters: objectSchema(map[string]any{
				"path": map[string]any{"type": "string", "description": "File path to write the state to"},
			}, []string{"path"}),
		},
		{
			Name:        "browser_load_state",
			Description: "Load previously saved browser storage state from a file.",
			Parameters: objectSchema(map[string]any{
				"path": map[string]any{"type": "string", "description": "File path to read the state from"},
			}, []string{"path"}),
		},
		{
			Name:        "browser_close",
			Description: "Close the browser session. Use when the task is finished with the browser.",
			Parameters:  objectSchema(map[string]any{}, nil),
		},
	}
}

// CatalogNames returns the catalog action names in declaration order.
func CatalogNames() []string {
	specs := Catalog()
	names := make([]string, 0, len(specs))
	for _, s := range specs {
		names = append(names, s.Name)
	}
	return names
}
