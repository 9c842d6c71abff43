package browser

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// maxExtractedText caps whole-page text extraction before the executor's
// own output cap applies; large pages are summarized by snapshot stats
// anyway, so there is no value in carrying megabytes of text around.
const maxExtractedText = 40000

// ExtractText parses raw HTML and returns its visible text content with
// scripts, styles, and other non-content elements removed. Block-level
// elements are separated by newlines.
func ExtractText(rawHTML string) (string, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	var b strings.Builder
	collectText(doc, &b)

	text := normalizeWhitespace(b.String())
	if len(text) > maxExtractedText {
		text = text[:maxExtractedText] + fmt.Sprintf("\n\n[Content truncated: %d total characters]", len(text))
	}
	return text, nil
}

// collectText walks the node tree appending visible text.
func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.CommentNode {
		return
	}

	if n.Type == html.ElementNode {
		tag := strings.ToLower(n.Data)
		if isNoiseElement(tag) {
			return
		}
		if isBlockElement(tag) {
			b.WriteString("\n")
		}
	}

	if n.Type == html.TextNode {
		text := strings.TrimSpace(n.Data)
		if text != "" {
			b.WriteString(text)
			b.WriteString(" ")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

// normalizeWhitespace collapses runs of blank lines and trailing spaces.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// isNoiseElement reports elements whose content is never visible text.
func isNoiseElement(tag string) bool {
	switch tag {
	case "script", "style", "noscript", "iframe", "embed", "object", "svg", "template", "head":
		return true
	}
	return false
}

// isBlockElement reports block-level elements, used for line breaking.
func isBlockElement(tag string) bool {
	switch tag {
	case "div", "p", "section", "article", "header", "footer", "nav", "main",
		"aside", "h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "li",
		"table", "tr", "td", "th", "form", "fieldset", "blockquote", "pre", "br":
		return true
	}
	return false
}
