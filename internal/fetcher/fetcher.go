package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds each request, including reading the body.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies newslettercheck in HTTP requests.
	DefaultUserAgent = "newslettercheck/1.0 (+https://github.com/nao1215/newslettercheck)"

	// DefaultMaxBodySize limits how much of a response body is read.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultContentType is the exact Content-Type a page must be served with.
	DefaultContentType = "text/html; charset=UTF-8"

	// maxRedirects is the redirect limit of the default client.
	maxRedirects = 10
)

// Fetcher retrieves newsletter pages and checks whether linked resources
// are alive. A Fetcher is safe for concurrent use.
type Fetcher struct {
	// client performs all requests.
	client *http.Client

	// timeout bounds each request.
	timeout time.Duration

	// userAgent is sent with every request.
	userAgent string

	// maxBodySize limits how many body bytes are read.
	maxBodySize int64

	// contentType is the exact Content-Type Fetch accepts.
	contentType string

	// cookie and headers are injected into requests to credentialHost,
	// or into every request when credentialHost is empty.
	cookie         string
	headers        map[string]string
	credentialHost string

	// limiter throttles requests when non-nil.
	limiter *rate.Limiter

	// logger for structured logging.
	logger *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets the HTTP client used for all requests.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		if timeout > 0 {
			f.timeout = timeout
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(f *Fetcher) {
		if userAgent != "" {
			f.userAgent = userAgent
		}
	}
}

// WithMaxBodySize sets the maximum number of body bytes read per response.
func WithMaxBodySize(size int64) Option {
	return func(f *Fetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithContentType sets the exact Content-Type Fetch accepts.
func WithContentType(contentType string) Option {
	return func(f *Fetcher) {
		if contentType != "" {
			f.contentType = contentType
		}
	}
}

// WithCookie sets a raw cookie string ("name=value; other=value") sent with
// every request.
func WithCookie(cookie string) Option {
	return func(f *Fetcher) {
		f.cookie = cookie
	}
}

// WithHeaders sets extra headers sent with every request.
func WithHeaders(headers map[string]string) Option {
	return func(f *Fetcher) {
		f.headers = headers
	}
}

// WithCredentialHost restricts the cookie and extra headers to requests
// for host. Liveness checks of links on other hosts go out without them.
func WithCredentialHost(host string) Option {
	return func(f *Fetcher) {
		f.credentialHost = host
	}
}

// WithRateLimit limits requests to perSecond across all goroutines sharing
// the Fetcher. Zero or a negative value disables the limit.
func WithRateLimit(perSecond float64) Option {
	return func(f *Fetcher) {
		if perSecond > 0 {
			f.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			f.limiter = nil
		}
	}
}

// WithLimiter makes the Fetcher draw from limiter, so several Fetchers can
// share one request budget. A nil limiter disables the limit.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(f *Fetcher) {
		f.limiter = limiter
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout:     DefaultTimeout,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		contentType: DefaultContentType,
	}

	for _, opt := range opts {
		opt(f)
	}

	if f.logger == nil {
		f.logger = slog.Default()
	}
	if f.client == nil {
		f.client = newHTTPClient()
	}
	if f.cookie != "" || len(f.headers) > 0 {
		// Copy so the caller's client is not modified.
		client := *f.client
		client.Transport = wrapTransport(client.Transport, f.cookie, f.headers, f.credentialHost)
		f.client = &client
	}

	return f
}

// newHTTPClient creates the default client.
func newHTTPClient() *http.Client {
	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        32,
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     30 * time.Second,
		},
		Jar: jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// do performs a GET of rawURL and hands the response to fn before the
// request context is released.
func (f *Fetcher) do(ctx context.Context, rawURL string, fn func(*http.Response) error) error {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrFetchTransport, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetchTransport, err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetchTransport, err)
	}
	defer resp.Body.Close()

	return fn(resp)
}

// Fetch retrieves rawURL and parses it into a Document.
//
// The response must be 200 OK with a Content-Type exactly equal to the
// configured value (no case folding, no whitespace tolerance). Malformed
// markup is never an error; the HTML5 parser recovers from it.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*html.Node, error) {
	var doc *html.Node

	err := f.do(ctx, rawURL, func(resp *http.Response) error {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%w: %s returned %d", ErrUnavailablePage, rawURL, resp.StatusCode)
		}

		if got := resp.Header.Get("Content-Type"); got != f.contentType {
			return fmt.Errorf("%w: %s served %q, expected %q", ErrNotHTMLContent, rawURL, got, f.contentType)
		}

		parsed, err := html.Parse(io.LimitReader(resp.Body, f.maxBodySize))
		if err != nil {
			return fmt.Errorf("%w: reading %s: %w", ErrFetchTransport, rawURL, err)
		}
		doc = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}

	f.logger.Debug("page fetched", "url", rawURL)
	return doc, nil
}

// Get retrieves rawURL and returns its body. Only the status is checked.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	var body []byte

	err := f.do(ctx, rawURL, func(resp *http.Response) error {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%w: %s returned %d", ErrUnavailablePage, rawURL, resp.StatusCode)
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
		if err != nil {
			return fmt.Errorf("%w: reading %s: %w", ErrFetchTransport, rawURL, err)
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Check reports whether rawURL answers 200 OK. It never fails: every
// problem is folded into the returned Liveness. Checks are never retried.
func (f *Fetcher) Check(ctx context.Context, rawURL string) Liveness {
	result := Liveness{URL: rawURL}

	err := f.do(ctx, rawURL, func(resp *http.Response) error {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, f.maxBodySize)) //nolint:errcheck // body content is irrelevant

		result.StatusCode = resp.StatusCode
		if resp.StatusCode == http.StatusOK {
			result.Status = StatusReachable
		} else {
			result.Status = StatusUnreachable
		}
		return nil
	})
	if err != nil {
		result.Status = StatusTransportError
		result.StatusCode = transportErrorStatusCode
		result.Err = err
		f.logger.Debug("liveness check failed", "url", rawURL, "error", err)
	}

	return result
}
