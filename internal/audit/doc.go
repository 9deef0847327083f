// Package audit inspects a sanitized content fragment for the structural
// defects that make a newsletter look broken in an inbox: empty headings,
// paragraphs and list items, links that are empty or lead nowhere, and
// images that cannot be loaded or have no alt text.
//
// The result is a model.ErrorReport with one entry per check category.
// A category with nothing to report is recorded as model.NoDefects, so a
// clean audit is distinguishable from a category that was never run.
//
// Unreachable resources are defects, never errors: an audit always
// completes, even when every liveness check times out.
package audit
