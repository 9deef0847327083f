package gremlin

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

// TestCodepoint tests the Windows-1252 table.
func TestCodepoint(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		b        byte
		expected rune
	}{
		{"ASCII passes through", 'A', 'A'},
		{"euro sign", 0x80, '€'},
		{"left double quote", 0x93, '“'},
		{"right double quote", 0x94, '”'},
		{"right single quote", 0x92, '’'},
		{"em dash", 0x97, '—'},
		{"trademark", 0x99, '™'},
		{"undefined 0x81 passes through", 0x81, 0x81},
		{"undefined 0x8D passes through", 0x8D, 0x8D},
		{"undefined 0x8F passes through", 0x8F, 0x8F},
		{"undefined 0x90 passes through", 0x90, 0x90},
		{"undefined 0x9D passes through", 0x9D, 0x9D},
		{"Latin-1 e acute", 0xE9, 'é'},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Codepoint(tc.b); got != tc.expected {
				t.Errorf("Codepoint(%#x) = %U, expected %U", tc.b, got, tc.expected)
			}
		})
	}
}

// TestKillGremlins tests remapping of C1 characters.
func TestKillGremlins(t *testing.T) {
	t.Parallel()

	t.Run("no gremlins returns input unchanged", func(t *testing.T) {
		t.Parallel()

		in := "plain café text"
		if got := KillGremlins(in); got != in {
			t.Errorf("got %q, expected %q", got, in)
		}
	})

	t.Run("remaps smart quotes", func(t *testing.T) {
		t.Parallel()

		got := KillGremlins("\u0093Hi\u0094")
		if got != "“Hi”" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("leaves characters above Latin-1 alone", func(t *testing.T) {
		t.Parallel()

		got := KillGremlins("\u0096 中")
		if got != "– 中" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("remaps raw Windows-1252 bytes", func(t *testing.T) {
		t.Parallel()

		got := KillGremlins("\x93Hi\x94 \x96 caf\xe9")
		if got != "“Hi” – café" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("valid replacement character is not a gremlin", func(t *testing.T) {
		t.Parallel()

		in := "a\uFFFDb"
		if got := KillGremlins(in); got != in {
			t.Errorf("got %q, expected %q", got, in)
		}
	})

	t.Run("undefined bytes survive", func(t *testing.T) {
		t.Parallel()

		got := KillGremlins("a\u0081b")
		if got != "a\u0081b" {
			t.Errorf("got %q", got)
		}
	})
}

// TestZap tests the combined normalization.
func TestZap(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"ASCII is identity", "Hello, world!", "Hello, world!"},
		{"empty string", "", ""},
		{"gremlin quotes become ASCII quotes", "\u0093Hi\u0094", `"Hi"`},
		{"unicode quotes become ASCII quotes", "“Hi”", `"Hi"`},
		{"accents are stripped", "café", "cafe"},
		{"gremlin apostrophe", "don\u0092t", "don't"},
		{"raw byte quotes become ASCII quotes", "\x93Hi\x94", `"Hi"`},
		{"raw Latin-1 accent", "caf\xe9", "cafe"},
		{"raw bytes mixed with ASCII", "He said \x93hi\x94 \x96 ok", `He said "hi" - ok`},
		{"raw bytes next to valid UTF-8", "\x93caf\u00e9\x94", `"cafe"`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Zap(tc.input); got != tc.expected {
				t.Errorf("Zap(%q) = %q, expected %q", tc.input, got, tc.expected)
			}
		})
	}
}

// TestZapIsASCII tests that output is always 7-bit.
func TestZapIsASCII(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"\u0080\u0085\u0091\u0092\u0093\u0094\u0096\u0097",
		"naïve résumé",
		"Ångström",
		"\x80\x85\x91\x92\x93\x94\x96\x97",
		"r\xe9sum\xe9 \x85 na\xefve",
	}

	for _, in := range inputs {
		out := Zap(in)
		if !isASCII(out) {
			t.Errorf("Zap(%q) = %q is not ASCII", in, out)
		}
		if Zap(out) != out {
			t.Errorf("Zap is not idempotent on %q", out)
		}
	}
}

// TestZapTree tests in-place normalization of a parsed document.
func TestZapTree(t *testing.T) {
	t.Parallel()

	src := "<html><body><p class=\"café\">\u0093Hi\u0094</p><!-- café --><ul><li>naïve</li></ul></body></html>"
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	ZapTree(doc)

	var sb strings.Builder
	if err := html.Render(&sb, doc); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := sb.String()

	if !strings.Contains(out, "<p class=\"café\">&#34;Hi&#34;</p>") {
		t.Errorf("text node not zapped or attribute changed: %s", out)
	}
	if !strings.Contains(out, "<!-- cafe -->") {
		t.Errorf("comment not zapped: %s", out)
	}
	if !strings.Contains(out, "<li>naive</li>") {
		t.Errorf("nested text not zapped: %s", out)
	}

	// nil is a no-op
	ZapTree(nil)
}

// TestZapTreeRawInput tests a tree parsed from bytes that are not UTF-8,
// and that style text is normalized along with body text.
func TestZapTreeRawInput(t *testing.T) {
	t.Parallel()

	src := "<html><head><style>p::before { content: \"\u00e9\"; }</style></head>" +
		"<body><p>\x93Go Slugs\x94 \x96 caf\xe9</p></body></html>"
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	ZapTree(doc)

	var sb strings.Builder
	if err := html.Render(&sb, doc); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := sb.String()

	if !strings.Contains(out, "<p>&#34;Go Slugs&#34; - cafe</p>") {
		t.Errorf("raw bytes not remapped: %q", out)
	}
	if !strings.Contains(out, `content: "e";`) {
		t.Errorf("style text not zapped: %q", out)
	}
}
