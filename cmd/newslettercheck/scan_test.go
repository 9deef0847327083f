package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/nao1215/newslettercheck/internal/config"
	"github.com/nao1215/newslettercheck/internal/report"
)

// newsletterPage has one broken link and one image without alt text.
const newsletterPage = `<html><head><title>Issue</title><style>p { color: red }</style></head><body>
<h1>Weekly news</h1>
<p>Read the <a href="/ok">full story</a> or the <a href="/gone">archive</a>.</p>
<img src="/ok">
</body></html>`

// newNewsletterServer serves a newsletter page and its link targets.
func newNewsletterServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/issue", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", config.DefaultContentType)
		_, _ = w.Write([]byte(newsletterPage))
	})
	mux.HandleFunc("/private", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Cookie") != "session=abc" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", config.DefaultContentType)
		_, _ = w.Write([]byte(newsletterPage))
	})
	mux.HandleFunc("/ok", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// writeConfig writes a configuration file into a temporary directory so
// tests never pick up a file from the working or home directory.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), config.DefaultConfigFile)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// executeScan runs the scan command and returns stdout, stderr and the error.
func executeScan(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := NewScanCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// TestNewScanCmd tests the scan command flags.
func TestNewScanCmd(t *testing.T) {
	t.Parallel()

	cmd := NewScanCmd()

	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{"timeout", "t", config.DefaultTimeout.String()},
		{"concurrency", "n", "8"},
		{"batch", "b", "4"},
		{"rate-limit", "r", "0"},
		{"user-agent", "u", config.DefaultUserAgent},
		{"config", "c", ""},
		{"json", "j", "false"},
		{"markdown", "m", "false"},
		{"output", "o", ""},
		{"content", "C", "false"},
		{"no-history", "", "false"},
		{"db-dir", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("expected default %q, got %q", tt.defValue, flag.DefValue)
			}
		})
	}
}

// TestNormalizeTarget tests URL argument validation.
func TestNormalizeTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"https://news.example.com/issue-1", "https://news.example.com/issue-1", false},
		{"  HTTPS://News.Example.com/Issue-1 ", "https://news.example.com/Issue-1", false},
		{"http://127.0.0.1:8080/x?y=1", "http://127.0.0.1:8080/x?y=1", false},
		{"news.example.com/issue-1", "", true},
		{"ftp://news.example.com/", "", true},
		{"mailto:editor@example.com", "", true},
		{"http://[::1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := normalizeTarget(tt.input)
			if tt.wantErr {
				if !errors.Is(err, errInvalidTarget) {
					t.Errorf("expected errInvalidTarget, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// TestScanCmd tests complete scans against a local newsletter server.
func TestScanCmd(t *testing.T) {
	t.Parallel()

	server := newNewsletterServer(t)
	emptyConfig := writeConfig(t, "defaults: {}\n")

	t.Run("JSON report of an audited page", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := executeScan(t, "-c", emptyConfig, "--no-history", "--json", "-C", server.URL+"/issue")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded report.JSONReport
		if err := json.Unmarshal([]byte(stdout), &decoded); err != nil {
			t.Fatalf("stdout is not a JSON report: %v\n%s", err, stdout)
		}

		if decoded.Report.State.String() != "serialized" {
			t.Errorf("expected serialized state, got %s", decoded.Report.State)
		}
		if decoded.Summary.LinkDefects != 1 || decoded.Summary.ImageDefects != 1 || decoded.Summary.TagDefects != 0 {
			t.Errorf("unexpected defect counts %+v", decoded.Summary)
		}
		if !strings.Contains(decoded.Report.Content, "Weekly news") || strings.Contains(decoded.Report.Content, "<body") {
			t.Errorf("expected body content only, got %q", decoded.Report.Content)
		}
		if !strings.Contains(decoded.Report.Content, "color: red") {
			t.Errorf("expected inlined styles, got %q", decoded.Report.Content)
		}
		if !strings.Contains(decoded.Report.Content, server.URL+"/gone") {
			t.Errorf("expected absolute URLs, got %q", decoded.Report.Content)
		}
	})

	t.Run("text report by default", func(t *testing.T) {
		t.Parallel()

		stdout, stderr, err := executeScan(t, "-c", emptyConfig, "--no-history", server.URL+"/issue")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "NEWSLETTERCHECK REPORT") || !strings.Contains(stdout, "Link is broken: 1") {
			t.Errorf("unexpected report:\n%s", stdout)
		}
		if !strings.Contains(stderr, "Scraping "+server.URL+"/issue") {
			t.Errorf("expected progress on stderr, got %q", stderr)
		}
	})

	t.Run("markdown report", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := executeScan(t, "-c", emptyConfig, "--no-history", "-m", server.URL+"/issue")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(stdout, "# Newsletter Check Report") {
			t.Errorf("unexpected markdown:\n%s", stdout)
		}
	})

	t.Run("unavailable page fails the run", func(t *testing.T) {
		t.Parallel()

		stdout, _, err := executeScan(t, "-c", emptyConfig, "--no-history", server.URL+"/missing")
		if !errors.Is(err, errScrapesFailed) {
			t.Fatalf("expected errScrapesFailed, got %v", err)
		}
		if !strings.Contains(stdout, "ERROR") {
			t.Errorf("failed page should still be reported:\n%s", stdout)
		}
	})

	t.Run("site cookie is applied", func(t *testing.T) {
		t.Parallel()

		cfgPath := writeConfig(t, "sites:\n  127.0.0.1:\n    cookie: \"session=abc\"\n")
		if _, _, err := executeScan(t, "-c", cfgPath, "--no-history", server.URL+"/private"); err != nil {
			t.Fatalf("expected cookie to unlock the page, got %v", err)
		}
		if _, _, err := executeScan(t, "-c", emptyConfig, "--no-history", server.URL+"/private"); !errors.Is(err, errScrapesFailed) {
			t.Fatalf("expected failure without cookie, got %v", err)
		}
	})

	t.Run("stylesheets apply per site only", func(t *testing.T) {
		t.Parallel()

		css := filepath.Join(t.TempDir(), "email.css")
		if err := os.WriteFile(css, []byte("h1 { color: teal; }"), 0600); err != nil {
			t.Fatalf("failed to write stylesheet: %v", err)
		}

		tests := []struct {
			name      string
			config    string
			wantStyle bool
		}{
			{"defaults are for the inline command", "defaults:\n  stylesheets:\n    - " + css + "\n", false},
			{"site stylesheets are applied", "sites:\n  127.0.0.1:\n    stylesheets:\n      - " + css + "\n", true},
		}

		for _, tt := range tests {
			stdout, _, err := executeScan(t, "-c", writeConfig(t, tt.config), "--no-history", "--json", "-C", server.URL+"/issue")
			if err != nil {
				t.Fatalf("%s: unexpected error: %v", tt.name, err)
			}

			var decoded report.JSONReport
			if err := json.Unmarshal([]byte(stdout), &decoded); err != nil {
				t.Fatalf("%s: stdout is not a JSON report: %v", tt.name, err)
			}
			if got := strings.Contains(decoded.Report.Content, "color: teal"); got != tt.wantStyle {
				t.Errorf("%s: style applied = %v, want %v:\n%s", tt.name, got, tt.wantStyle, decoded.Report.Content)
			}
		}
	})

	t.Run("batch scan reports every page", func(t *testing.T) {
		t.Parallel()

		stdout, stderr, err := executeScan(t, "-c", emptyConfig, "--no-history", "-b", "2",
			server.URL+"/issue", server.URL+"/issue?copy=2")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Count(stdout, "NEWSLETTERCHECK REPORT") != 2 {
			t.Errorf("expected two reports:\n%s", stdout)
		}
		if !strings.Contains(stderr, "[2/2]") {
			t.Errorf("expected batch progress, got %q", stderr)
		}
	})

	t.Run("writes report file with owner-only permissions", func(t *testing.T) {
		t.Parallel()

		outPath := filepath.Join(t.TempDir(), "reports", "issue.json")
		stdout, _, err := executeScan(t, "-c", emptyConfig, "--no-history", "-j", "-o", outPath, server.URL+"/issue")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stdout != "" {
			t.Errorf("expected nothing on stdout, got %q", stdout)
		}

		info, err := os.Stat(outPath)
		if err != nil {
			t.Fatalf("report file missing: %v", err)
		}
		if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
			t.Errorf("expected permissions 0600, got %o", info.Mode().Perm())
		}
	})
}

// TestScanCmdValidation tests argument and flag errors.
func TestScanCmdValidation(t *testing.T) {
	t.Parallel()

	emptyConfig := writeConfig(t, "defaults: {}\n")

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"no targets", []string{"-c", emptyConfig}, config.ErrNoTarget},
		{"both formats", []string{"-c", emptyConfig, "-j", "-m", "https://news.example.com/"}, config.ErrConflictingReportFormats},
		{"zero batch", []string{"-c", emptyConfig, "-b", "0", "https://news.example.com/"}, config.ErrInvalidBatchSize},
		{"invalid target", []string{"-c", emptyConfig, "--no-history", "news.example.com"}, errInvalidTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, _, err := executeScan(t, tt.args...); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	t.Run("missing explicit config file", func(t *testing.T) {
		t.Parallel()

		_, _, err := executeScan(t, "-c", filepath.Join(t.TempDir(), "missing.yaml"), "https://news.example.com/")
		if err == nil || !strings.Contains(err.Error(), "configuration file not found") {
			t.Errorf("expected missing config error, got %v", err)
		}
	})
}
