// Package gremlin normalizes the character encoding of scraped newsletter text.
//
// Content pasted into the email builder often arrives with "gremlins": C1
// control characters (U+0080 to U+009F) that are really Windows-1252 bytes
// for curly quotes, dashes and the euro sign, decoded as Latin-1. Email
// clients render these as boxes or drop them.
//
// Normalization runs in two passes:
//  1. KillGremlins remaps each gremlin through the Windows-1252 code page
//     to the character it was meant to be.
//  2. Transliterate replaces every non-ASCII character with its closest
//     ASCII approximation.
//
// Zap applies both passes to a string and ZapTree applies Zap to every text
// and comment node of a parsed document.
//
// Design decision: The code page table is built once from
// golang.org/x/text/encoding/charmap instead of being written out by hand
// because:
// 1. The mapping is defined by the encoding, not by this package
// 2. Bytes the code page leaves undefined pass through unchanged for free
// 3. The table is read-only after init, so concurrent scrapes can share it
package gremlin
