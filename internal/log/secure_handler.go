package log

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// MaskValue replaces every redacted value.
const MaskValue = "***REDACTED***"

// exactKeys are attribute keys masked only on an exact, case-insensitive
// match. They are too short to be matched as substrings.
var exactKeys = map[string]struct{}{
	"sid":        {},
	"set-cookie": {},
}

// keyFragments mask any attribute key that contains one of them. A bare
// "key" is not listed: "cache_key" and "primary_key" are harmless.
var keyFragments = []string{
	"password", "passwd", "secret", "token", "auth", "credential",
	"private", "cookie", "session", "api_key", "api-key", "apikey",
}

// secretShapes mask a string value whatever its key.
var secretShapes = []*regexp.Regexp{
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`), // JWT
	regexp.MustCompile(`(?i)^(bearer|basic)\s+\S+`),
	regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`),
	regexp.MustCompile(`(?i)-----BEGIN [A-Z ]*(PRIVATE|SECRET) KEY-----`),
}

// trackingParams are query parameters whose values are masked inside a
// logged URL. Newsletter links carry subscriber identities and signed
// tracking tokens in them.
var trackingParams = map[string]struct{}{
	"token": {}, "access_token": {}, "key": {}, "api_key": {}, "apikey": {},
	"sig": {}, "signature": {}, "auth": {}, "password": {},
	"email": {}, "subscriber": {},
}

// SecureHandler is a slog.Handler that redacts attributes before handing
// records to the wrapped handler. Keys that name a credential and values
// shaped like one are masked outright; http(s) URLs are kept but lose
// their userinfo and tracking parameters, so a log line still shows which
// link failed.
type SecureHandler struct {
	next slog.Handler
}

// NewSecureHandler wraps next. A nil next falls back to the handler of
// slog.Default().
func NewSecureHandler(next slog.Handler) *SecureHandler {
	if next == nil {
		next = slog.Default().Handler()
	}
	return &SecureHandler{next: next}
}

// Enabled defers to the wrapped handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle redacts the record's attributes and forwards it.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redact(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

// WithAttrs redacts attrs once, when they are bound.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SecureHandler{next: h.next.WithAttrs(redactAll(attrs))}
}

// WithGroup opens a group on the wrapped handler.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{next: h.next.WithGroup(name)}
}

func redactAll(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, redact(a))
	}
	return out
}

// redact returns a with its value masked or cleaned. Groups are walked.
func redact(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redactAll(a.Value.Group())...)}
	}

	key := strings.ToLower(a.Key)
	if _, ok := exactKeys[key]; ok || containsSensitiveKeyword(key) {
		return slog.String(a.Key, MaskValue)
	}

	if a.Value.Kind() != slog.KindString {
		return a
	}

	s := a.Value.String()
	for _, shape := range secretShapes {
		if shape.MatchString(s) {
			return slog.String(a.Key, MaskValue)
		}
	}
	if cleaned, changed := sanitizeURL(s); changed {
		return slog.String(a.Key, cleaned)
	}
	return a
}

// containsSensitiveKeyword reports whether the lowercase key contains one
// of keyFragments.
func containsSensitiveKeyword(key string) bool {
	for _, fragment := range keyFragments {
		if strings.Contains(key, fragment) {
			return true
		}
	}
	return false
}

// sanitizeURL strips userinfo and masks tracking parameters in an http(s)
// URL. The bool is false when value is not such a URL or is already clean.
func sanitizeURL(value string) (string, bool) {
	lower := strings.ToLower(value)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return "", false
	}

	u, err := url.Parse(value)
	if err != nil {
		return "", false
	}

	changed := u.User != nil
	u.User = nil

	if u.RawQuery != "" {
		query := u.Query()
		masked := false
		for name := range query {
			if _, ok := trackingParams[strings.ToLower(name)]; ok {
				query.Set(name, MaskValue)
				masked = true
			}
		}
		if masked {
			u.RawQuery = query.Encode()
			changed = true
		}
	}

	if !changed {
		return "", false
	}
	return u.String(), true
}

// NewSecureLogger returns a text logger on w that redacts secrets. Verbose
// enables debug output; otherwise only warnings and errors are written.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewTextHandler(w, handlerOptions(verbose))))
}

// NewSecureJSONLogger is NewSecureLogger with JSON output.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewJSONHandler(w, handlerOptions(verbose))))
}

func handlerOptions(verbose bool) *slog.HandlerOptions {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}
