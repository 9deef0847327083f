package audit

import (
	"strings"

	"golang.org/x/net/html"
)

// descendants returns every element under root, excluding root itself,
// that satisfies match. Results are in document order.
func descendants(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && match(c) {
				found = append(found, c)
			}
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return found
}

// named returns a matcher for elements with one of the given tag names.
func named(tags ...string) func(*html.Node) bool {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[t] = true
	}
	return func(n *html.Node) bool {
		return set[n.Data]
	}
}

// attr returns the value of key on n and whether it is present.
func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// render returns the HTML of n. Render only fails on writer errors, which
// a strings.Builder never returns.
func render(n *html.Node) string {
	var sb strings.Builder
	_ = html.Render(&sb, n) //nolint:errcheck // strings.Builder does not fail
	return sb.String()
}

// isEmpty reports whether n has no children or every child is blank.
//
// A child's string form is its text for text nodes, its text without
// delimiters for comments, and its markup for elements. Element markup is
// never blank, so any element child makes n non-empty (<p><br></p> is not
// an empty paragraph).
func isEmpty(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode, html.CommentNode:
			if strings.TrimSpace(c.Data) != "" {
				return false
			}
		case html.ElementNode:
			return false
		default:
			if strings.TrimSpace(render(c)) != "" {
				return false
			}
		}
	}
	return true
}
