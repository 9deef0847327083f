// Package fetcher performs the HTTP work of a scrape: retrieving the
// newsletter page, retrieving linked stylesheets, and checking whether
// linked pages and images are alive.
//
// Every request carries the configured User-Agent, optional cookie and
// headers, and a per-request timeout. Requests are never retried: a
// resource that does not answer the first time is reported as broken.
//
// Fetch is deliberately strict. The page must answer 200 OK with a
// Content-Type header byte-equal to the expected value, because the email
// builder always serves rendered newsletters with exactly that header and
// anything else means the URL points somewhere it should not.
package fetcher
