// Package dom is a thin structural-query facade over goquery. Extraction
// code describes what it is looking for with a Spec instead of hand-built
// CSS strings, which keeps the heuristic fallback chains readable and lets
// predicates participate in matching.
package dom

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Spec describes one structural query. Zero-value fields are ignored;
// all set fields must match.
type Spec struct {
	// Tag restricts matches to elements with this tag name.
	Tag string
	// Class requires the element to carry this CSS class.
	Class string
	// Attr requires attribute equality for every listed attribute.
	Attr map[string]string
	// AttrMatch requires the named attribute to exist and satisfy the predicate.
	AttrMatch map[string]func(string) bool
	// Text requires the element's collapsed text to equal this string.
	Text string
	// TextMatch requires the element's collapsed text to satisfy the predicate.
	TextMatch func(string) bool
}

func (s Spec) selector() string {
	sel := s.Tag
	if sel == "" {
		sel = "*"
	}
	if s.Class != "" {
		sel += "." + s.Class
	}
	for name, val := range s.Attr {
		sel += `[` + name + `="` + val + `"]`
	}
	for name := range s.AttrMatch {
		sel += `[` + name + `]`
	}
	return sel
}

func (s Spec) matches(el *goquery.Selection) bool {
	for name, pred := range s.AttrMatch {
		val, ok := el.Attr(name)
		if !ok || !pred(val) {
			return false
		}
	}
	if s.Text != "" && Text(el, true) != s.Text {
		return false
	}
	if s.TextMatch != nil && !s.TextMatch(Text(el, true)) {
		return false
	}
	return true
}

// ParseDocument parses rendered HTML into a queryable document.
func ParseDocument(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// Find returns the first element under root matching the spec, or nil.
func Find(root *goquery.Selection, spec Spec) *goquery.Selection {
	var found *goquery.Selection
	root.Find(spec.selector()).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if spec.matches(el) {
			found = el
			return false
		}
		return true
	})
	return found
}

// FindAll returns every element under root matching the spec, in
// document order.
func FindAll(root *goquery.Selection, spec Spec) []*goquery.Selection {
	var out []*goquery.Selection
	root.Find(spec.selector()).Each(func(_ int, el *goquery.Selection) {
		if spec.matches(el) {
			out = append(out, el)
		}
	})
	return out
}

var innerWhitespace = regexp.MustCompile(`\s+`)

// Text returns the element's text. With collapse set, runs of whitespace
// shrink to single spaces and the result is trimmed.
func Text(el *goquery.Selection, collapse bool) string {
	if el == nil {
		return ""
	}
	text := el.Text()
	if collapse {
		text = strings.TrimSpace(innerWhitespace.ReplaceAllString(text, " "))
	}
	return text
}

// Attr returns the named attribute value, or "" when absent.
func Attr(el *goquery.Selection, name string) string {
	if el == nil {
		return ""
	}
	val, _ := el.Attr(name)
	return val
}
