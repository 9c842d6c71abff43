package browser

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/webpilot/pkg/security/workspace"
	"github.com/entrhq/webpilot/pkg/tools"
	"github.com/entrhq/webpilot/pkg/types"
)

// DefaultActionTimeout bounds the wall-clock time of a single action,
// including driver round trips.
const DefaultActionTimeout = 180 * time.Second

// Executor translates named catalog actions into browser session calls.
//
// The dispatch table is a closed mapping built at construction: every
// catalog name has exactly one strongly typed handler, and the pairing is
// asserted by tests. No failure escapes Execute as an error or panic; the
// worst outcome of any action is a failed ActionResult.
type Executor struct {
	manager  *Manager
	timeout  time.Duration
	shotDir  string
	guard    *workspace.Guard
	handlers map[string]handlerFunc
}

// handlerFunc runs one action against the backend.
type handlerFunc func(a arguments) (*types.ActionResult, error)

var _ tools.Executor = (*Executor)(nil)

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithActionTimeout bounds each action's wall-clock duration. On timeout
// the in-flight session is closed so the backend does not keep working on
// an abandoned call.
func WithActionTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithScreenshotDir sets the directory used for screenshots when the model
// does not supply a path.
func WithScreenshotDir(dir string) ExecutorOption {
	return func(e *Executor) {
		if dir != "" {
			e.shotDir = dir
		}
	}
}

// WithPathGuard confines model-supplied file paths (screenshots, storage
// state) to the guard's workspace root.
func WithPathGuard(guard *workspace.Guard) ExecutorOption {
	return func(e *Executor) {
		e.guard = guard
	}
}

// NewExecutor creates an executor bound to the given session manager.
func NewExecutor(manager *Manager, opts ...ExecutorOption) *Executor {
	e := &Executor{
		manager: manager,
		timeout: DefaultActionTimeout,
		shotDir: ".",
	}
	for _, opt := range opts {
		opt(e)
	}

	e.handlers = map[string]handlerFunc{
		"browser_navigate":   e.navigate,
		"browser_snapshot":   e.snapshot,
		"browser_click":      e.click,
		"browser_fill":       e.fill,
		"browser_type":       e.typeText,
		"browser_hover":      e.hover,
		"browser_scroll":     e.scroll,
		"browser_select":     e.selectOption,
		"browser_check":      e.check,
		"browser_press_key":  e.pressKey,
		"browser_wait_for":   e.waitFor,
		"browser_get_text":   e.getText,
		"browser_get_value":  e.getValue,
		"browser_get_url":    e.getURL,
		"browser_get_title":  e.getTitle,
		"browser_screenshot": e.screenshot,
		"browser_save_state": e.saveState,
		"browser_load_state": e.loadState,
		"browser_close":      e.closeSession,
	}
	return e
}

// Supports reports whether the executor has a handler for the action.
func (e *Executor) Supports(name string) bool {
	_, ok := e.handlers[name]
	return ok
}

// Execute dispatches a named action. It never panics or returns an error
// past this boundary: unknown actions, handler errors, backend crashes, and
// timeouts all come back as failed ActionResults. Output is capped at the
// configured maximum with a truncation marker.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) (result *types.ActionResult) {
	defer func() {
		if r := recover(); r != nil {
			result = types.Failure(fmt.Sprintf("Tool error: %s panicked: %v", name, r))
		}
	}()

	handler, ok := e.handlers[name]
	if !ok {
		return types.Failure(fmt.Sprintf("Unknown tool: %s", name))
	}

	debugLog.Debugf("Executing %s", name)
	result = e.runWithTimeout(ctx, handler, arguments(args))
	result.Output = tools.TruncateDefault(result.Output)
	return result
}

// runWithTimeout executes a handler, bounding it by the executor timeout
// and the caller's context. On timeout or cancellation the session is
// closed so the driver abandons the in-flight operation.
func (e *Executor) runWithTimeout(ctx context.Context, handler handlerFunc, a arguments) *types.ActionResult {
	done := make(chan *types.ActionResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- types.Failure(fmt.Sprintf("Tool error: action panicked: %v", r))
			}
		}()
		res, err := handler(a)
		if err != nil {
			res = types.Failure(fmt.Sprintf("Browser error: %v", err))
		}
		done <- res
	}()

	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res
	case <-timer.C:
		debugLog.Warnf("Action timed out after %s, closing session", e.timeout)
		e.manager.CloseSession()
		return types.Failure(fmt.Sprintf("Action timed out after %s", e.timeout))
	case <-ctx.Done():
		e.manager.CloseSession()
		return types.Failure(fmt.Sprintf("Action canceled: %v", ctx.Err()))
	}
}

func (e *Executor) navigate(a arguments) (*types.ActionResult, error) {
	url := a.str("url")
	if url == "" {
		return types.Failure("url is required"), nil
	}

	session, err := e.manager.ActiveSession()
	if err != nil {
		return nil, err
	}
	if err := session.Navigate(url); err != nil {
		return nil, err
	}

	title, _ := session.Title()
	return types.Success(fmt.Sprintf("Opened %s\nTitle: %s", session.CurrentURL, title)), nil
}

func (e *Executor) snapshot(a arguments) (*types.ActionResult, error) {
	session, err := e.manager.ActiveSession()
	if err != nil {
		return nil, err
	}

	text, elements, err := session.Snapshot(a.boolean("interactive", false))
	if err != nil {
		return nil, err
	}

	result := types.Success(text)
	result.Metadata = map[string]any{
		"element_count": len(elements),
		"refs":          Refs(elements),
	}
	return result, nil
}

func (e *Executor) click(a arguments) (*types.ActionResult, error) {
	ref := a.str("ref")
	if ref == "" {
		return types.Failure("ref is required"), nil
	}

	session, err := e.manager.ActiveSession()
	if err != nil {
		return nil, err
	}
	if err := session.Click(ref); err != nil {
		return nil, err
	}
	return types.Success(fmt.Sprintf("Clicked %s (now at %s)", ref, session.CurrentURL)), nil
}

func (e *Executor) fill(a arguments) (*types.ActionResult, error) {
	ref, text := a.str("ref"), a.str("text")
	if ref == "" || text == "" {
		return types.Failure("ref and text are required"), nil
	}

	session, err := e.manager.ActiveSession()
	if err != nil {
		return nil, err
	}
	if err := session.Fill(ref, text); err != nil {
		return nil, err
	}
	return types.Success(fmt.Sprintf("Filled %s", ref)), nil
}

func (e *Executor) typeText(a arguments) (*types.ActionResult, error) {
	ref, text := a.str("ref"), a.str("text")
	if ref == "" || text == "" {
		return types.Failure("ref and text are required"), nil
	}

	session, err := e.manager.ActiveSession()
	if err != nil {
		return nil, err
	}
	if err := session.Type(ref, text); err != nil {
		return nil, err
	}
	return types.Success(fmt.Sprintf("Typed into %s", ref)), nil
}

func (e *Executor) hover(a arguments) (*types.ActionResult, error) {
	ref := a.str("ref")
	if ref == "" {
		return types.Failure("ref is required"), nil
	}

	session, err := e.manager.ActiveSession()
	if err != nil {
		return nil, err
	}
	if err := session.Hover(ref); err != nil {
		return nil, err
	}
	return types.Success(fmt.Sprintf("Hovering over %s", ref)), nil
}

func (e *Executor) scroll(a arguments) (*types.ActionResult, error) {
	direction := a.str("direction")
	if direction == "" {
		return types.Failure("direction is required"), nil
	}

	session, err := e.manager.ActiveSession()
	if err != nil {
		return nil, err
	}
	if err := session.Scroll(direction, a.integer("amount", 600)); err != nil {
		return nil, err
	}
	return types.Success(fmt.Sprintf("Scrolled %s", direction)), nil
}

func (e *Executor) selectOption(a arguments) (*types.ActionResult, error) {
	ref, value := a.str("ref"), a.str("value")
	if ref == "" || value == "" {
		return types.Failure("ref and value are required"), nil
	}

	session, err := e.manager.ActiveSession()
	if err != nil {
		return nil, err
	}
	if err := session.Select(ref, value); err != nil {
		return nil, err
	}
	return types.Success(fmt.Sprintf("Selected %q in %s", value, ref)), nil
}

func (e *Executor) check(a arguments) (*types.ActionResult, error) {
	ref := a.str("ref")
	if ref == "" {
		return types.Failure("ref is required"), nil
	}
	checked := a.boolean("checked", true)

	session, err := e.manager.ActiveSession()
	if err != nil {
		return nil, err
	}
	if err := session.SetChecked(ref, checked); err != nil {
		return nil, err
	}
	if checked {
		return types.Success(fmt.Sprintf("Checked %s", ref)), nil
	}
	return types.Success(fmt.Sprintf("Unchecked %s", ref)), nil
}

func (e *Executor) pressKey(a arguments) (*types.ActionResult, error) {
	key := a.str("key")
	if key == "" {
		return types.Failure("key is required"), nil
	}

	session, err := e.manager.ActiveSession()
	if err != nil {
		return nil, err
	}
	if err := session.PressKey(key); err != nil {
		return nil, err
	}
	return types.Success(fmt.Sprintf("Pressed %s", key)), nil
}

func (e *Executor) waitFor(a arguments) (*types.ActionResult, error) {
	session, err := e.manager.ActiveSession()
	if err != nil {
		return nil, err
	}

	ref := a.str("ref")
	state := a.str("state")
	timeoutMs := float64(a.integer("timeout_ms", 0))

	if err := session.WaitFor(ref, state, timeoutMs); err != nil {
		return nil, err
	}
	if ref == "" {
		return types.Success("Page finished loading"), nil
	}
	return types.Success(fmt.Sprintf("Element %s reached state %q", ref, stateOrDefault(state))), nil
}

func stateOrDefault(state string) string {
	if state == "" {
		return "visible"
	}
	return state
}

func (e *Executor) getText(a arguments) (*types.ActionResult, error) {
	session, err := e.manager.ActiveSession()
	if err != nil {
		return nil, err
	}

	text, err := session.GetText(a.str("ref"))
	if err != nil {
		return nil, err
	}
	return types.Success(text), nil
}

func (e *Executor) getValue(a arguments) (*types.ActionResult, error) {
	ref := a.str("ref")
	if ref == "" {
		return types.Failure("ref is required"), nil
	}

	session, err := e.manager.ActiveSession()
	if err != nil {
		return nil, err
	}
	value, err := session.GetValue(ref)
	if err != nil {
		return nil, err
	}
	return types.Success(value), nil
}

func (e *Executor) getURL(arguments) (*types.ActionResult, error) {
	session, err := e.manager.ActiveSession()
	if err != nil {
		return nil, err
	}
	return types.Success(session.URL()), nil
}

func (e *Executor) getTitle(arguments) (*types.ActionResult, error) {
	session, err := e.manager.ActiveSession()
	if err != nil {
		return nil, err
	}

	title, err := session.Title()
	if err != nil {
		return nil, err
	}
	return types.Success(title), nil
}

// resolvePath applies the path guard when one is configured.
func (e *Executor) resolvePath(path string) (string, error) {
	if e.guard == nil {
		return path, nil
	}
	return e.guard.Resolve(path)
}

func (e *Executor) screenshot(a arguments) (*types.ActionResult, error) {
	path := a.str("path")
	if path == "" {
		path = filepath.Join(e.shotDir, fmt.Sprintf("screenshot-%s.png", uuid.NewString()[:8]))
	}
	path, err := e.resolvePath(path)
	if err != nil {
		return types.Failure(err.Error()), nil
	}

	session, err := e.manager.ActiveSession()
	if err != nil {
		return nil, err
	}
	if err := session.Screenshot(path); err != nil {
		return nil, err
	}

	result := types.Success(fmt.Sprintf("Screenshot saved to %s", path))
	result.Metadata = map[string]any{"path": path}
	return result, nil
}

func (e *Executor) saveState(a arguments) (*types.ActionResult, error) {
	path := a.str("path")
	if path == "" {
		return types.Failure("path is required"), nil
	}
	path, err := e.resolvePath(path)
	if err != nil {
		return types.Failure(err.Error()), nil
	}

	session, err := e.manager.ActiveSession()
	if err != nil {
		return nil, err
	}
	if err := session.SaveState(path); err != nil {
		return nil, err
	}
	return types.Success(fmt.Sprintf("Storage state saved to %s", path)), nil
}

func (e *Executor) loadState(a arguments) (*types.ActionResult, error) {
	path := a.str("path")
	if path == "" {
		return types.Failure("path is required"), nil
	}
	path, err := e.resolvePath(path)
	if err != nil {
		return types.Failure(err.Error()), nil
	}

	if _, err := e.manager.ReplaceSessionWithState(path); err != nil {
		return nil, err
	}
	return types.Success(fmt.Sprintf("Storage state loaded from %s (fresh session, take a new snapshot)", path)), nil
}

func (e *Executor) closeSession(arguments) (*types.ActionResult, error) {
	if err := e.manager.CloseSession(); err != nil {
		return nil, err
	}
	return types.Success("Browser session closed"), nil
}
