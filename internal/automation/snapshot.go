// internal/automation/snapshot.go
package automation

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Snapshot is the rendered state of the page at one instant. Marker detection
// and read-only lookups run offline against it.
type Snapshot struct {
	URL  string
	HTML string

	doc *html.Node
}

// Contains reports whether pattern occurs in the page source, ignoring case.
func (s *Snapshot) Contains(pattern string) bool {
	return strings.Contains(strings.ToLower(s.HTML), strings.ToLower(pattern))
}

func (s *Snapshot) root() (*html.Node, error) {
	if s.doc != nil {
		return s.doc, nil
	}
	doc, err := htmlquery.Parse(strings.NewReader(s.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	s.doc = doc
	return doc, nil
}

// Exists reports whether xpath selects at least one node.
func (s *Snapshot) Exists(xpath string) (bool, error) {
	doc, err := s.root()
	if err != nil {
		return false, err
	}
	node, err := htmlquery.Query(doc, xpath)
	if err != nil {
		return false, fmt.Errorf("invalid xpath %q: %w", xpath, err)
	}
	return node != nil, nil
}

// Text returns the trimmed inner text of the first node matching xpath, or
// ErrElementNotFound.
func (s *Snapshot) Text(xpath string) (string, error) {
	doc, err := s.root()
	if err != nil {
		return "", err
	}
	node, err := htmlquery.Query(doc, xpath)
	if err != nil {
		return "", fmt.Errorf("invalid xpath %q: %w", xpath, err)
	}
	if node == nil {
		return "", fmt.Errorf("%w: %s", ErrElementNotFound, xpath)
	}
	return strings.TrimSpace(htmlquery.InnerText(node)), nil
}

// Within joins a row xpath and a relative child path (".//td...") into one
// absolute expression.
func Within(row, relative string) string {
	return row + strings.TrimPrefix(relative, ".")
}
