// Package browser executes catalog actions against a Playwright-driven
// browser. The Playwright driver runs as an external process; this package
// owns its lifecycle, a single implicit page session, and the ref model
// used to address page elements between snapshots.
package browser

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/webpilot/pkg/logging"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("browser")
	if err != nil {
		debugLog.Warnf("Failed to initialize browser logger, using stderr fallback: %v", err)
	}
}

// Defaults for the managed session.
const (
	DefaultTimeout        = 30000.0 // per-operation timeout in milliseconds
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
)

// Manager owns the Playwright driver and the single browser session the
// agent operates on. The session is created lazily on first use and survives
// controller resets; Shutdown tears everything down including the driver
// process.
type Manager struct {
	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	session     *Session
	headless    bool
	timeout     float64
	driverOut   io.Writer
	initialized bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithHeadless controls whether the browser runs without a visible window.
func WithHeadless(headless bool) ManagerOption {
	return func(m *Manager) {
		m.headless = headless
	}
}

// WithOperationTimeout sets the default per-operation timeout in
// milliseconds applied to every page call.
func WithOperationTimeout(ms float64) ManagerOption {
	return func(m *Manager) {
		if ms > 0 {
			m.timeout = ms
		}
	}
}

// WithDriverOutput directs the driver process's stdout and stderr to w,
// typically the session recorder's browser.log. Output is discarded when
// no writer is configured.
func WithDriverOutput(w io.Writer) ManagerOption {
	return func(m *Manager) {
		if w != nil {
			m.driverOut = w
		}
	}
}

// NewManager creates a session manager. Initialize must be called before
// any session is used.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		headless:  true,
		timeout:   DefaultTimeout,
		driverOut: io.Discard,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize installs and starts the Playwright driver and launches the
// browser. Driver output goes to the configured writer so it stays off the
// terminal.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	debugLog.Infof("Starting browser driver (headless=%t)", m.headless)

	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  m.driverOut,
		Stderr:  m.driverOut,
	}

	if err := playwright.Install(runOpts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(m.headless),
	})
	if err != nil {
		pw.Stop()
		debugLog.Errorf("Browser launch failed: %v", err)
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	m.pw = pw
	m.browser = browser
	m.initialized = true
	debugLog.Infof("Browser launched")
	return nil
}

// ActiveSession returns the current session, creating it if necessary.
func (m *Manager) ActiveSession() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureSessionLocked("")
}

// ensureSessionLocked creates the session when missing. statePath, when
// non-empty, seeds the context from a saved storage state file.
func (m *Manager) ensureSessionLocked(statePath string) (*Session, error) {
	if !m.initialized {
		return nil, fmt.Errorf("browser manager not initialized")
	}
	if m.session != nil {
		return m.session, nil
	}

	contextOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		},
	}
	if statePath != "" {
		contextOpts.StorageStatePath = playwright.String(statePath)
	}

	context, err := m.browser.NewContext(contextOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(m.timeout)

	now := time.Now()
	m.session = &Session{
		Context:    context,
		Page:       page,
		CreatedAt:  now,
		LastUsedAt: now,
		CurrentURL: "about:blank",
	}
	return m.session, nil
}

// CloseSession closes the active page and context but keeps the browser and
// driver alive for reuse.
func (m *Manager) CloseSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeSessionLocked()
}

func (m *Manager) closeSessionLocked() error {
	if m.session == nil {
		return nil
	}
	_ = m.session.Page.Close()
	_ = m.session.Context.Close()
	m.session = nil
	return nil
}

// ReplaceSessionWithState discards the current session and creates a fresh
// one seeded from the given storage state file. Loading state requires a new
// context, so any in-page state (including snapshot refs) is lost.
func (m *Manager) ReplaceSessionWithState(statePath string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.closeSessionLocked(); err != nil {
		return nil, err
	}
	return m.ensureSessionLocked(statePath)
}

// HasSession reports whether a session is currently open.
func (m *Manager) HasSession() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// Shutdown closes the session, the browser, and the Playwright driver.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeSessionLocked()

	if m.browser != nil {
		_ = m.browser.Close()
		m.browser = nil
	}

	if m.initialized && m.pw != nil {
		if err := m.pw.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		m.pw = nil
		m.initialized = false
		debugLog.Infof("Browser driver stopped")
	}
	return nil
}
