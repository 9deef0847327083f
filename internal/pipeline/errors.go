package pipeline

import "errors"

// ErrMissingContentBody is returned when a page has no <body> to wrap, or
// when the content wrapper cannot be found again after style inlining.
var ErrMissingContentBody = errors.New("page has no content body")
