// Package log provides secure logging built on the standard slog package.
//
// The SecureHandler wraps any slog.Handler and cleans attributes before they
// are written:
//   - values under sensitive keys (Cookie, Authorization, token, ...) are masked
//   - values shaped like secrets (JWTs, bearer and basic credentials) are masked
//   - http(s) URLs lose their userinfo, and sensitive query parameters
//     (token, key, sig, email, ...) are masked
//
// Newsletter pages are often fetched with a subscriber cookie, and their
// links carry per-reader tracking tokens, so debug logs would otherwise
// leak both.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//
//	logger.Debug("resource not reachable",
//	    "url", "https://cdn.example.com/a.png?sig=abc", // sig is masked
//	)
package log
