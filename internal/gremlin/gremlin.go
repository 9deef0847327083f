package gremlin

import (
	"strings"
	"unicode/utf8"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/net/html"
	"golang.org/x/text/encoding/charmap"
)

const (
	// gremlinLow and gremlinHigh bound the C1 control range that holds
	// misdecoded Windows-1252 bytes.
	gremlinLow  = 0x80
	gremlinHigh = 0x9F
)

// codepoints maps every byte value to its Windows-1252 code point.
var codepoints = buildCodepoints()

func buildCodepoints() [256]rune {
	var table [256]rune
	for b := 0; b < len(table); b++ {
		r := charmap.Windows1252.DecodeByte(byte(b))
		if r == utf8.RuneError {
			r = rune(b)
		}
		table[b] = r
	}
	return table
}

// Codepoint returns the Windows-1252 code point for b.
// Bytes the code page leaves undefined (0x81, 0x8D, 0x8F, 0x90, 0x9D)
// map to themselves.
func Codepoint(b byte) rune {
	return codepoints[b]
}

// hasGremlin reports whether s contains a rune in the C1 range or a byte
// that is not valid UTF-8.
func hasGremlin(s string) bool {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if isRawByte(r, size) || (r >= gremlinLow && r <= gremlinHigh) {
			return true
		}
		i += size
	}
	return false
}

// isRawByte reports whether a decode result stands for a single byte that
// is not part of any UTF-8 sequence.
func isRawByte(r rune, size int) bool {
	return r == utf8.RuneError && size == 1
}

// KillGremlins remaps misdecoded Windows-1252 characters to the Unicode
// characters they stand for. Raw bytes that are not valid UTF-8, as left
// by a page that mislabels its charset, are remapped byte by byte through
// the same table. Strings without either kind of gremlin are returned
// unchanged.
func KillGremlins(s string) string {
	if !hasGremlin(s) {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case isRawByte(r, size):
			r = codepoints[s[i]]
		case r <= 0xFF:
			r = codepoints[r]
		}
		sb.WriteRune(r)
		i += size
	}
	return sb.String()
}

// isASCII reports whether s is pure 7-bit ASCII.
func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// Transliterate returns the closest ASCII approximation of s.
// Characters with no approximation are dropped.
func Transliterate(s string) string {
	if isASCII(s) {
		return s
	}
	return unidecode.Unidecode(s)
}

// Zap fixes gremlins in s and then reduces it to ASCII.
// It is deterministic and the identity on ASCII input.
func Zap(s string) string {
	return Transliterate(KillGremlins(s))
}

// ZapTree applies Zap to every text and comment node under n, in place.
// Element structure and attributes are left untouched; comments are
// treated as containers and their children, if any, are visited too.
// Text inside <style> and <script> is zapped like any other text, so
// non-ASCII CSS content strings come out transliterated.
func ZapTree(n *html.Node) {
	if n == nil {
		return
	}

	switch n.Type {
	case html.TextNode, html.CommentNode:
		n.Data = Zap(n.Data)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		ZapTree(c)
	}
}
