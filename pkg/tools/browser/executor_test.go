package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/webpilot/pkg/security/workspace"
	"github.com/entrhq/webpilot/pkg/tools"
	"github.com/entrhq/webpilot/pkg/types"
)

// newOfflineExecutor builds an executor whose manager was never initialized.
// Argument validation and path guarding run before any session is touched,
// so those paths are testable without a Playwright driver.
func newOfflineExecutor(t *testing.T, opts ...ExecutorOption) *Executor {
	t.Helper()
	return NewExecutor(NewManager(), opts...)
}

func TestExecutorCoversCatalog(t *testing.T) {
	e := newOfflineExecutor(t)

	names := tools.CatalogNames()
	require.Len(t, e.handlers, len(names))
	for _, name := range names {
		assert.True(t, e.Supports(name), "catalog action %s has no handler", name)
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	e := newOfflineExecutor(t)

	result := e.Execute(context.Background(), "browser_levitate", nil)
	require.NotNil(t, result)
	assert.False(t, result.OK)
	assert.Contains(t, result.Output, "Unknown tool: browser_levitate")
}

func TestExecuteMissingArguments(t *testing.T) {
	e := newOfflineExecutor(t)
	ctx := context.Background()

	cases := []struct {
		tool string
		args map[string]any
		want string
	}{
		{"browser_navigate", map[string]any{}, "url is required"},
		{"browser_click", map[string]any{}, "ref is required"},
		{"browser_fill", map[string]any{"ref": "e1"}, "ref and text are required"},
		{"browser_type", map[string]any{"text": "hi"}, "ref and text are required"},
		{"browser_hover", nil, "ref is required"},
		{"browser_scroll", map[string]any{}, "direction is required"},
		{"browser_select", map[string]any{"ref": "e3"}, "ref and value are required"},
		{"browser_check", nil, "ref is required"},
		{"browser_press_key", nil, "key is required"},
		{"browser_get_value", nil, "ref is required"},
		{"browser_save_state", nil, "path is required"},
		{"browser_load_state", nil, "path is required"},
	}

	for _, tc := range cases {
		t.Run(tc.tool, func(t *testing.T) {
			result := e.Execute(ctx, tc.tool, tc.args)
			require.NotNil(t, result)
			assert.False(t, result.OK)
			assert.Equal(t, tc.want, result.Output)
		})
	}
}

func TestExecuteWithoutInitializedBackend(t *testing.T) {
	e := newOfflineExecutor(t)

	result := e.Execute(context.Background(), "browser_navigate", map[string]any{"url": "https://example.com"})
	require.NotNil(t, result)
	assert.False(t, result.OK)
	assert.Contains(t, result.Output, "Browser error:")
	assert.Contains(t, result.Output, "not initialized")
}

func TestExecutePathGuardRejectsEscapes(t *testing.T) {
	guard, err := workspace.NewGuard(t.TempDir())
	require.NoError(t, err)
	e := newOfflineExecutor(t, WithPathGuard(guard))
	ctx := context.Background()

	for _, tool := range []string{"browser_screenshot", "browser_save_state", "browser_load_state"} {
		t.Run(tool, func(t *testing.T) {
			result := e.Execute(ctx, tool, map[string]any{"path": "../escape.png"})
			require.NotNil(t, result)
			assert.False(t, result.OK)
			assert.Contains(t, result.Output, "outside the workspace")
		})
	}

	// Absolute paths outside the root are rejected the same way.
	result := e.Execute(ctx, "browser_save_state", map[string]any{"path": "/etc/passwd"})
	assert.False(t, result.OK)
	assert.Contains(t, result.Output, "outside the workspace")
}

func TestExecuteCloseWithoutSession(t *testing.T) {
	e := newOfflineExecutor(t)

	result := e.Execute(context.Background(), "browser_close", nil)
	require.NotNil(t, result)
	assert.True(t, result.OK)
	assert.Equal(t, "Browser session closed", result.Output)
}

func TestExecuteTimeout(t *testing.T) {
	e := newOfflineExecutor(t, WithActionTimeout(20*time.Millisecond))
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	e.handlers["browser_block"] = func(arguments) (*types.ActionResult, error) {
		<-block
		return types.Success("never"), nil
	}

	result := e.Execute(context.Background(), "browser_block", nil)
	require.NotNil(t, result)
	assert.False(t, result.OK)
	assert.Contains(t, result.Output, "timed out")
}

func TestExecuteContextCancellation(t *testing.T) {
	e := newOfflineExecutor(t)
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	e.handlers["browser_block"] = func(arguments) (*types.ActionResult, error) {
		<-block
		return types.Success("never"), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := e.Execute(ctx, "browser_block", nil)
	require.NotNil(t, result)
	assert.False(t, result.OK)
	assert.Contains(t, result.Output, "canceled")
}

func TestExecutePanicRecovery(t *testing.T) {
	e := newOfflineExecutor(t)
	e.handlers["browser_boom"] = func(arguments) (*types.ActionResult, error) {
		panic("kaboom")
	}

	result := e.Execute(context.Background(), "browser_boom", nil)
	require.NotNil(t, result)
	assert.False(t, result.OK)
	assert.Contains(t, result.Output, "kaboom")
}

func TestArgumentsCoercion(t *testing.T) {
	a := arguments{
		"s":     "text",
		"b":     true,
		"fnum":  float64(42), // JSON numbers decode as float64
		"inum":  7,
		"wrong": []string{"not a scalar"},
	}

	assert.Equal(t, "text", a.str("s"))
	assert.Equal(t, "", a.str("missing"))
	assert.Equal(t, "", a.str("wrong"))

	assert.True(t, a.boolean("b", false))
	assert.False(t, a.boolean("missing", false))
	assert.True(t, a.boolean("missing", true))

	assert.Equal(t, 42, a.integer("fnum", 0))
	assert.Equal(t, 7, a.integer("inum", 0))
	assert.Equal(t, 600, a.integer("missing", 600))
}
