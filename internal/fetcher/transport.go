package fetcher

import (
	"net/http"
	"strings"
)

// headerInjectingTransport wraps an http.RoundTripper to inject
// custom headers and cookies into every request.
//
// Design decision: We use a custom RoundTripper to inject headers/cookies
// rather than modifying each request. This ensures all requests (including
// redirects, liveness checks and stylesheet fetches) include the configured
// values, which matters for preview pages behind a login.
//
// When host is set, only requests to that host receive the values, so a
// subscriber cookie never reaches third-party link targets.
type headerInjectingTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
	host    string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.host != "" && !strings.EqualFold(req.URL.Hostname(), t.host) {
		return t.base.RoundTrip(req)
	}

	clone := req.Clone(req.Context())

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}

	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}

// wrapTransport returns base wrapped for header injection, or base itself
// when there is nothing to inject.
func wrapTransport(base http.RoundTripper, cookie string, headers map[string]string, host string) http.RoundTripper {
	if cookie == "" && len(headers) == 0 {
		return base
	}
	if base == nil {
		base = http.DefaultTransport
	}
	return &headerInjectingTransport{
		base:    base,
		cookie:  cookie,
		headers: headers,
		host:    host,
	}
}
