// Package inliner converts stylesheet rules into inline style attributes.
//
// Most email clients ignore <style> and <link> elements, so every rule that
// applies to an element has to be copied onto that element's own style
// attribute before the content can be mailed.
//
// Design decision: We delegate the CSS work to github.com/aymerick/douceur
// rather than matching selectors ourselves because:
// 1. It parses real-world CSS, including at-rules it cannot inline
// 2. It computes specificity and merges declarations in cascade order
// 3. It selects elements through goquery/cascadia, the same stack we use
//    to pull the body back out of the inlined document
package inliner
