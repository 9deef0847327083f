// Package model defines the core data structures used throughout newslettercheck.
//
// This package contains the following main types:
//   - ScrapeReport: The state carried through one scrape of a newsletter page
//   - State: The pipeline stage a ScrapeReport has reached
//   - ErrorReport: The ordered audit result, category by category
//   - CheckResult: The result of one audit category (clean or a list of defects)
//   - Summary: A condensed, human-readable view of a ScrapeReport
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. The pipeline, audit, report, and database packages all need
// these types, so centralizing them prevents import cycles.
//
// Parsed documents are represented directly as *html.Node trees from
// golang.org/x/net/html. Their node kinds (element, text, comment) form the
// closed variant every traversal in this module switches on.
package model
