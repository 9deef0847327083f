// Package pipeline turns a newsletter page URL into sanitized, audited
// content.
//
// A scrape runs eight steps in order: fetch, zap, resolve_urls, wrap_body,
// inline, reparse, audit and serialize. Each step advances the
// model.ScrapeReport by exactly one model.State, so a report always shows
// how far a failed scrape got. The first failing step stops the scrape and
// no partial content is produced.
//
// Scraper wires the steps to the fetcher, inliner and auditor packages and
// exposes Scrape. BatchProcessor runs several scrapes concurrently with
// errgroup while keeping results in input order.
package pipeline
