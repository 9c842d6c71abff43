package browser

import (
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Session is the single page the agent drives. Element refs handed to the
// model are scoped to the most recent snapshot; LastSnapshotRefs tracks how
// many are currently live.
type Session struct {
	Context playwright.BrowserContext
	Page    playwright.Page

	CreatedAt  time.Time
	LastUsedAt time.Time
	CurrentURL string

	// LastSnapshotRefs is the element count of the most recent snapshot.
	LastSnapshotRefs int
}

// touch updates the LastUsedAt timestamp.
func (s *Session) touch() {
	s.LastUsedAt = time.Now()
}

// refSelector addresses an element tagged by the most recent snapshot.
func refSelector(ref string) string {
	return fmt.Sprintf(`[data-wp-ref=%q]`, ref)
}

// Navigate loads the given URL and waits for the load event.
func (s *Session) Navigate(url string) error {
	s.touch()

	waitUntil := playwright.WaitUntilStateLoad
	_, err := s.Page.Goto(url, playwright.PageGotoOptions{WaitUntil: waitUntil})
	if err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}

	s.CurrentURL = s.Page.URL()
	return nil
}

// Click clicks the element with the given ref.
func (s *Session) Click(ref string) error {
	s.touch()

	if err := s.Page.Click(refSelector(ref)); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}

	// A click may have navigated.
	s.CurrentURL = s.Page.URL()
	return nil
}

// Fill replaces the contents of an input element with value.
func (s *Session) Fill(ref, value string) error {
	s.touch()

	if err := s.Page.Fill(refSelector(ref), value); err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}
	return nil
}

// Type enters text into an element key by key.
func (s *Session) Type(ref, text string) error {
	s.touch()

	if err := s.Page.Type(refSelector(ref), text); err != nil {
		return fmt.Errorf("type failed: %w", err)
	}
	return nil
}

// Hover moves the mouse over an element.
func (s *Session) Hover(ref string) error {
	s.touch()

	if err := s.Page.Hover(refSelector(ref)); err != nil {
		return fmt.Errorf("hover failed: %w", err)
	}
	return nil
}

// Scroll scrolls the page vertically by amount pixels. direction must be
// "up" or "down".
func (s *Session) Scroll(direction string, amount int) error {
	s.touch()

	if amount <= 0 {
		amount = 600
	}

	var dy float64
	switch direction {
	case "down":
		dy = float64(amount)
	case "up":
		dy = -float64(amount)
	default:
		return fmt.Errorf("invalid scroll direction: %s (must be 'up' or 'down')", direction)
	}

	if err := s.Page.Mouse().Wheel(0, dy); err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	return nil
}

// Select picks an option in a select element by value, falling back to the
// visible label when no option carries that value.
func (s *Session) Select(ref, value string) error {
	s.touch()

	selector := refSelector(ref)
	selected, err := s.Page.SelectOption(selector, playwright.SelectOptionValues{
		Values: &[]string{value},
	})
	if err == nil && len(selected) > 0 {
		return nil
	}

	if _, labelErr := s.Page.SelectOption(selector, playwright.SelectOptionValues{
		Labels: &[]string{value},
	}); labelErr != nil {
		if err == nil {
			err = labelErr
		}
		return fmt.Errorf("select failed: %w", err)
	}
	return nil
}

// SetChecked checks or unchecks a checkbox or radio button.
func (s *Session) SetChecked(ref string, checked bool) error {
	s.touch()

	var err error
	if checked {
		err = s.Page.Check(refSelector(ref))
	} else {
		err = s.Page.Uncheck(refSelector(ref))
	}
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}
	return nil
}

// PressKey presses a keyboard key on the currently focused element.
func (s *Session) PressKey(key string) error {
	s.touch()

	if err := s.Page.Keyboard().Press(key); err != nil {
		return fmt.Errorf("key press failed: %w", err)
	}
	return nil
}

// WaitFor waits for an element to reach the given state, or for the page
// load event when ref is empty.
func (s *Session) WaitFor(ref, state string, timeoutMs float64) error {
	s.touch()

	if ref == "" {
		opts := playwright.PageWaitForLoadStateOptions{
			State: playwright.LoadStateLoad,
		}
		if timeoutMs > 0 {
			opts.Timeout = playwright.Float(timeoutMs)
		}
		if err := s.Page.WaitForLoadState(opts); err != nil {
			return fmt.Errorf("wait failed: %w", err)
		}
		return nil
	}

	if state == "" {
		state = "visible"
	}
	waitState := playwright.WaitForSelectorState(state)
	opts := playwright.PageWaitForSelectorOptions{State: &waitState}
	if timeoutMs > 0 {
		opts.Timeout = playwright.Float(timeoutMs)
	}

	if _, err := s.Page.WaitForSelector(refSelector(ref), opts); err != nil {
		return fmt.Errorf("wait failed: %w", err)
	}
	return nil
}

// GetText returns the text content of an element, or the cleaned text of
// the whole page when ref is empty.
func (s *Session) GetText(ref string) (string, error) {
	s.touch()

	if ref != "" {
		text, err := s.Page.TextContent(refSelector(ref))
		if err != nil {
			return "", fmt.Errorf("text extraction failed: %w", err)
		}
		return text, nil
	}

	rawHTML, err := s.Page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to read page content: %w", err)
	}
	return ExtractText(rawHTML)
}

// GetValue returns the current value of an input, textarea, or select.
func (s *Session) GetValue(ref string) (string, error) {
	s.touch()

	value, err := s.Page.InputValue(refSelector(ref))
	if err != nil {
		return "", fmt.Errorf("value extraction failed: %w", err)
	}
	return value, nil
}

// Title returns the current page title.
func (s *Session) Title() (string, error) {
	s.touch()
	return s.Page.Title()
}

// URL returns the current page URL.
func (s *Session) URL() string {
	s.touch()
	return s.Page.URL()
}

// Screenshot captures the viewport as a PNG at path.
func (s *Session) Screenshot(path string) error {
	s.touch()

	_, err := s.Page.Screenshot(playwright.PageScreenshotOptions{
		Path: playwright.String(path),
	})
	if err != nil {
		return fmt.Errorf("screenshot failed: %w", err)
	}
	return nil
}

// SaveState writes the context's storage state (cookies, local storage) to
// the given file.
func (s *Session) SaveState(path string) error {
	s.touch()

	if _, err := s.Context.StorageState(path); err != nil {
		return fmt.Errorf("failed to save storage state: %w", err)
	}
	return nil
}
