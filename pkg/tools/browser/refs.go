package browser

import (
	"fmt"
	"strings"
)

// snapshotScript walks the live DOM, tags visible interactive elements with
// sequential data-wp-ref attributes, and returns a descriptor per element.
// Refs from prior snapshots are cleared first, so a ref is only valid
// against the most recent snapshot.
const snapshotScript = `() => {
	document.querySelectorAll('[data-wp-ref]').forEach((el) => el.removeAttribute('data-wp-ref'));

	const selectors = 'a[href], button, input, select, textarea, summary, ' +
		'[role="button"], [role="link"], [role="checkbox"], [role="radio"], ' +
		'[role="textbox"], [role="combobox"], [role="menuitem"], [role="tab"], [onclick]';

	const isVisible = (el) => {
		const rect = el.getBoundingClientRect();
		if (rect.width === 0 || rect.height === 0) return false;
		const style = getComputedStyle(el);
		return style.visibility !== 'hidden' && style.display !== 'none';
	};

	const describe = (el) => {
		const label = el.getAttribute('aria-label') ||
			(el.innerText || '').trim() ||
			el.value ||
			el.getAttribute('placeholder') ||
			el.getAttribute('title') ||
			el.getAttribute('alt') || '';
		return String(label).trim().replace(/\s+/g, ' ').slice(0, 80);
	};

	const elements = [];
	let counter = 0;
	for (const el of document.querySelectorAll(selectors)) {
		if (!isVisible(el)) continue;
		counter += 1;
		const ref = 'e' + counter;
		el.setAttribute('data-wp-ref', ref);
		elements.push({
			ref: ref,
			tag: el.tagName.toLowerCase(),
			role: el.getAttribute('role') || '',
			type: el.getAttribute('type') || '',
			name: describe(el),
		});
	}
	return elements;
}`

// Element describes one interactive page element discovered by a snapshot.
type Element struct {
	Ref  string
	Tag  string
	Role string
	Type string
	Name string
}

// kind maps the element to the word shown to the model: the explicit ARIA
// role when present, otherwise a friendlier name for common tags.
func (e Element) kind() string {
	if e.Role != "" {
		return e.Role
	}
	switch e.Tag {
	case "a":
		return "link"
	case "input":
		if e.Type != "" {
			return e.Type + " input"
		}
		return "input"
	case "textarea":
		return "textbox"
	case "select":
		return "combobox"
	default:
		return e.Tag
	}
}

// Snapshot captures the current page's interactive elements, assigning
// fresh refs. It returns the rendered snapshot text and the discovered
// elements. When interactive is false the snapshot also includes the
// page's cleaned text content for context.
func (s *Session) Snapshot(interactive bool) (string, []Element, error) {
	s.touch()

	raw, err := s.Page.Evaluate(snapshotScript)
	if err != nil {
		return "", nil, fmt.Errorf("snapshot failed: %w", err)
	}

	elements := decodeElements(raw)
	s.LastSnapshotRefs = len(elements)

	title, _ := s.Page.Title()

	var b strings.Builder
	fmt.Fprintf(&b, "Page: %s\nURL: %s\n\nInteractive elements (%d):\n", title, s.Page.URL(), len(elements))
	for _, el := range elements {
		if el.Name != "" {
			fmt.Fprintf(&b, "- %s %q [ref=%s]\n", el.kind(), el.Name, el.Ref)
		} else {
			fmt.Fprintf(&b, "- %s [ref=%s]\n", el.kind(), el.Ref)
		}
	}

	if !interactive {
		if content, err := s.pageText(); err == nil && content != "" {
			b.WriteString("\nPage content:\n")
			b.WriteString(content)
			b.WriteString("\n")
		}
	}

	return b.String(), elements, nil
}

// Refs renders the elements as compact descriptors suitable for tool
// result metadata.
func Refs(elements []Element) []map[string]any {
	refs := make([]map[string]any, 0, len(elements))
	for _, el := range elements {
		refs = append(refs, map[string]any{
			"ref":  el.Ref,
			"kind": el.kind(),
			"name": el.Name,
		})
	}
	return refs
}

// pageText extracts the cleaned visible text of the page.
func (s *Session) pageText() (string, error) {
	rawHTML, err := s.Page.Content()
	if err != nil {
		return "", err
	}
	return ExtractText(rawHTML)
}

// decodeElements converts the Evaluate result (a []any of map[string]any)
// into Element descriptors, tolerating missing fields.
func decodeElements(raw any) []Element {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}

	elements := make([]Element, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		elements = append(elements, Element{
			Ref:  asString(m["ref"]),
			Tag:  asString(m["tag"]),
			Role: asString(m["role"]),
			Type: asString(m["type"]),
			Name: asString(m["name"]),
		})
	}
	return elements
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
