// Package main provides the entry point for the newslettercheck CLI.
//
// newslettercheck scrapes newsletter pages built with an email builder,
// sanitizes their content for email delivery (encoding cleanup, absolute
// URLs, inline CSS) and audits the result for empty tags, broken links and
// images that are missing a source or alt text.
//
// Usage:
//
//	newslettercheck scan <url>
//	newslettercheck inline <file>
//	newslettercheck history <url>
//
// See --help for all available options.
package main

// main is the entry point for newslettercheck.
func main() {
	Execute()
}
