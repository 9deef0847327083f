package inliner

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// ReadHTMLFile reads a local HTML file and returns its contents as UTF-8.
//
// Files that are already valid UTF-8 are returned as they are. Anything
// else has its encoding detected and is converted; if detection fails the
// bytes are returned unconverted.
func ReadHTMLFile(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // reading a user-supplied file is the point
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return decodeHTML(data)
}

// decodeHTML converts data to UTF-8 using the best detected charset.
func decodeHTML(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}

	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || result.Charset == "" {
		return string(data), nil //nolint:nilerr // undetectable input is passed through
	}

	reader, err := charset.NewReaderLabel(result.Charset, bytes.NewReader(data))
	if err != nil {
		return string(data), nil //nolint:nilerr // unknown label, pass through
	}

	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to decode %s content: %w", result.Charset, err)
	}
	return string(decoded), nil
}
