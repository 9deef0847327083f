package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/nao1215/newslettercheck/internal/model"
)

// parseDoc parses src into a Document.
func parseDoc(t *testing.T, src string) *html.Node {
	t.Helper()

	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

// reportAt returns a report already in state.
func reportAt(state model.State, doc *html.Node) *model.ScrapeReport {
	report := model.NewScrapeReport("https://example.com/news/issue-1.html")
	report.State = state
	report.Document = doc
	return report
}

// TestZapAndResolveSteps tests the in-place normalization steps.
func TestZapAndResolveSteps(t *testing.T) {
	t.Parallel()

	doc := parseDoc(t, "<html><body><p>Caf\u00e9 \u2014 <a href=\"../archive\">archive</a></p><img src=\"img/logo.png\"></body></html>")
	report := reportAt(model.StateFetched, doc)

	if err := NewZapStep().Do(context.Background(), report); err != nil {
		t.Fatalf("zap: %v", err)
	}
	if err := NewResolveStep(nil).Do(context.Background(), report); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if report.State != model.StateURLsResolved {
		t.Errorf("expected state %s, got %s", model.StateURLsResolved, report.State)
	}

	var sb strings.Builder
	if err := html.Render(&sb, report.Document); err != nil {
		t.Fatal(err)
	}
	out := sb.String()

	for _, want := range []string{
		"Cafe",
		`href="https://example.com/archive"`,
		`src="https://example.com/news/img/logo.png"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %s", want, out)
		}
	}
	if strings.ContainsFunc(out, func(r rune) bool { return r > 0x7F }) {
		t.Errorf("expected ASCII output, got %s", out)
	}
}

// TestWrapStep tests wrapping the body into the content wrapper.
func TestWrapStep(t *testing.T) {
	t.Parallel()

	t.Run("moves every body child into the wrapper", func(t *testing.T) {
		t.Parallel()

		doc := parseDoc(t, `<html><body><h1>Title</h1><!-- c --><p>one</p>tail</body></html>`)
		report := reportAt(model.StateURLsResolved, doc)

		if err := NewWrapStep().Do(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		body := findElement(doc, atom.Body)
		if body.FirstChild != report.Fragment || body.LastChild != report.Fragment {
			t.Fatal("wrapper should be the only child of body")
		}
		if !hasClass(report.Fragment, ContentClass) {
			t.Error("wrapper lacks content class")
		}

		got, err := Serialize(report.Fragment)
		if err != nil {
			t.Fatal(err)
		}
		if got != `<h1>Title</h1><!-- c --><p>one</p>tail` {
			t.Errorf("unexpected wrapper content %s", got)
		}
	})

	t.Run("missing body", func(t *testing.T) {
		t.Parallel()

		report := reportAt(model.StateURLsResolved, &html.Node{Type: html.DocumentNode})

		err := NewWrapStep().Do(context.Background(), report)
		if !errors.Is(err, ErrMissingContentBody) {
			t.Errorf("expected ErrMissingContentBody, got %v", err)
		}
		if report.State != model.StateURLsResolved {
			t.Errorf("state should not advance, got %s", report.State)
		}
	})
}

// TestReparseStep tests locating the wrapper in inlined output.
func TestReparseStep(t *testing.T) {
	t.Parallel()

	t.Run("finds the wrapper", func(t *testing.T) {
		t.Parallel()

		report := reportAt(model.StateInlined, nil)
		report.Inlined = `<div class="content_div"><p style="color: red;">x</p></div>`

		if err := NewReparseStep().Do(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, err := Serialize(report.Fragment)
		if err != nil {
			t.Fatal(err)
		}
		if got != `<p style="color: red;">x</p>` {
			t.Errorf("unexpected fragment %s", got)
		}
	})

	t.Run("wrapper lost", func(t *testing.T) {
		t.Parallel()

		report := reportAt(model.StateInlined, nil)
		report.Inlined = `<p>no wrapper</p>`

		if err := NewReparseStep().Do(context.Background(), report); !errors.Is(err, ErrMissingContentBody) {
			t.Errorf("expected ErrMissingContentBody, got %v", err)
		}
	})
}

// TestSerialize tests content serialization.
func TestSerialize(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		inner    string
		expected string
	}{
		{
			name:     "keeps order",
			inner:    `<h1>a</h1><p>b</p>c`,
			expected: `<h1>a</h1><p>b</p>c`,
		},
		{
			name:     "keeps comments",
			inner:    `<p>a</p><!-- keep me --><p>b</p>`,
			expected: `<p>a</p><!-- keep me --><p>b</p>`,
		},
		{
			name:     "drops ignored elements",
			inner:    `<p>a</p><div class="footer ignore">drop</div><p>b</p>`,
			expected: `<p>a</p><p>b</p>`,
		},
		{
			name:     "class must match a whole token",
			inner:    `<div class="ignored">keep</div>`,
			expected: `<div class="ignored">keep</div>`,
		},
		{
			name:     "only direct children are filtered",
			inner:    `<div><span class="ignore">nested</span></div>`,
			expected: `<div><span class="ignore">nested</span></div>`,
		},
		{
			name:     "empty wrapper",
			inner:    ``,
			expected: ``,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			doc := parseDoc(t, `<html><body><div class="content_div">`+tc.inner+`</div></body></html>`)
			var fragment *html.Node
			for n := findElement(doc, atom.Body).FirstChild; n != nil; n = n.NextSibling {
				if n.Type == html.ElementNode && hasClass(n, ContentClass) {
					fragment = n
				}
			}
			if fragment == nil {
				t.Fatal("wrapper not found")
			}

			got, err := Serialize(fragment)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.expected {
				t.Errorf("got %q, expected %q", got, tc.expected)
			}
		})
	}

	t.Run("nil wrapper", func(t *testing.T) {
		t.Parallel()

		got, err := Serialize(nil)
		if err != nil || got != "" {
			t.Errorf("expected empty result, got %q, %v", got, err)
		}
	})
}

// TestSerializeStep tests content hashing.
func TestSerializeStep(t *testing.T) {
	t.Parallel()

	hashOf := func(inner string) string {
		doc := parseDoc(t, `<html><body>`+inner+`</body></html>`)
		report := reportAt(model.StateAudited, doc)
		report.Fragment = findElement(doc, atom.Body)

		if err := NewSerializeStep().Do(context.Background(), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.State != model.StateSerialized {
			t.Errorf("expected serialized state, got %s", report.State)
		}
		return report.ContentHash
	}

	a := hashOf(`<p>a</p>`)
	if len(a) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(a))
	}
	if a != hashOf(`<p>a</p>`) {
		t.Error("same content should hash the same")
	}
	if a == hashOf(`<p>b</p>`) {
		t.Error("different content should hash differently")
	}
}
