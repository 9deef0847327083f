// Package resolver rewrites relative resource URLs in a parsed document to
// absolute URLs, so the content still works once it is pasted into an email
// that has no base URL of its own.
package resolver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// ErrRelativeBase is returned when the base URL is not absolute.
var ErrRelativeBase = errors.New("base URL must be absolute")

// urlAttributes maps each rewritten element to the attribute holding its URL.
var urlAttributes = map[string]string{
	"img":    "src",
	"iframe": "src",
	"a":      "href",
	"link":   "href",
}

// Resolver resolves references against a fixed base URL.
type Resolver struct {
	// base is the absolute URL of the page the document came from.
	base *url.URL

	// logger receives a debug entry for every value that cannot be parsed.
	logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// New creates a Resolver for base.
// It returns ErrRelativeBase if base has no scheme or host.
func New(base string, opts ...Option) (*Resolver, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrRelativeBase, base)
	}

	r := &Resolver{
		base:   u,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r, nil
}

// Resolve rewrites, in place, the src of every img and iframe and the href
// of every a and link under root. Elements without the attribute are
// skipped and values that cannot be parsed are left as they are.
// It returns the number of attributes rewritten.
func (r *Resolver) Resolve(root *html.Node) int {
	if root == nil {
		return 0
	}

	count := 0
	if root.Type == html.ElementNode {
		if key, ok := urlAttributes[root.Data]; ok {
			if r.resolveAttr(root, key) {
				count++
			}
		}
	}

	for c := root.FirstChild; c != nil; c = c.NextSibling {
		count += r.Resolve(c)
	}
	return count
}

// resolveAttr rewrites the attribute key of n. It reports whether the
// attribute was present and could be resolved.
func (r *Resolver) resolveAttr(n *html.Node, key string) bool {
	for i := range n.Attr {
		attr := &n.Attr[i]
		if attr.Namespace != "" || attr.Key != key {
			continue
		}

		ref, err := url.Parse(strings.TrimSpace(attr.Val))
		if err != nil {
			r.logger.Debug("leaving unparsable reference",
				"element", n.Data,
				"value", attr.Val,
				"error", err,
			)
			return false
		}

		attr.Val = r.base.ResolveReference(ref).String()
		return true
	}
	return false
}

// Base returns the base URL.
func (r *Resolver) Base() *url.URL {
	return r.base
}

// Resolve is a convenience wrapper that resolves root against base.
func Resolve(root *html.Node, base string) error {
	r, err := New(base)
	if err != nil {
		return err
	}
	r.Resolve(root)
	return nil
}
