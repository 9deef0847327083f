package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Category names one of the audit checks.
// The values double as the keys of the JSON-encoded ErrorReport.
type Category string

const (
	// CategoryTagCheck covers empty heading, paragraph and list-item elements.
	CategoryTagCheck Category = "Tag Check"

	// CategoryLinkCheck covers anchors: empty text, missing href, broken targets.
	CategoryLinkCheck Category = "Link Check"

	// CategoryImageCheck covers images: missing src, unreachable src, missing alt.
	CategoryImageCheck Category = "Image Check"
)

// DefectKind names one kind of defect within a category.
type DefectKind string

const (
	// KindTagEmpty flags a content tag with no meaningful children.
	KindTagEmpty DefectKind = "Tag is empty"

	// KindMissingHref flags an anchor without an href attribute.
	KindMissingHref DefectKind = "Missing href attribute"

	// KindBrokenLink flags an anchor whose target did not answer 200.
	KindBrokenLink DefectKind = "Link is broken"

	// KindEmptyLink flags an anchor with no meaningful children.
	KindEmptyLink DefectKind = "Link is empty"

	// KindMissingSrc flags an image without a src attribute.
	KindMissingSrc DefectKind = "Missing src attribute"

	// KindImageNotFound flags an image whose src did not answer 200.
	KindImageNotFound DefectKind = "Unable to find src image"

	// KindMissingAlt flags an image whose alt text is absent or blank.
	KindMissingAlt DefectKind = "Image has no alt text"
)

// DefectList is the ordered list of offending nodes for one defect kind.
// Nodes hold the rendered HTML of each offending element in document order.
type DefectList struct {
	Kind  DefectKind
	Nodes []string
}

// CheckResult is the outcome of one audit category.
//
// It is either NoDefects, meaning the category was evaluated and nothing was
// found, or a non-empty set of defect lists. Once a category has at least one
// defect, every kind it checks is kept, including kinds with empty lists, so
// consumers see the full shape of the check.
type CheckResult struct {
	defects []DefectList
}

// NoDefects is the result of a category that was evaluated and found clean.
var NoDefects = CheckResult{}

// NewCheckResult builds a CheckResult from the given defect lists.
// If every list is empty the result collapses to NoDefects.
func NewCheckResult(lists ...DefectList) CheckResult {
	total := 0
	for _, l := range lists {
		total += len(l.Nodes)
	}
	if total == 0 {
		return NoDefects
	}

	defects := make([]DefectList, len(lists))
	for i, l := range lists {
		nodes := l.Nodes
		if nodes == nil {
			nodes = []string{}
		}
		defects[i] = DefectList{Kind: l.Kind, Nodes: nodes}
	}
	return CheckResult{defects: defects}
}

// Clean reports whether the result is NoDefects.
func (r CheckResult) Clean() bool {
	return len(r.defects) == 0
}

// Defects returns the defect lists in check order.
// It returns nil for NoDefects.
func (r CheckResult) Defects() []DefectList {
	return r.defects
}

// Nodes returns the offending nodes recorded for kind.
func (r CheckResult) Nodes(kind DefectKind) []string {
	for _, d := range r.defects {
		if d.Kind == kind {
			return d.Nodes
		}
	}
	return nil
}

// Count returns the total number of offending nodes across all kinds.
func (r CheckResult) Count() int {
	n := 0
	for _, d := range r.defects {
		n += len(d.Nodes)
	}
	return n
}

// MarshalJSON encodes NoDefects as null and anything else as an object
// whose keys keep check order.
func (r CheckResult) MarshalJSON() ([]byte, error) {
	if r.Clean() {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, d := range r.defects {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(d.Kind))
		if err != nil {
			return nil, err
		}
		nodes, err := json.Marshal(d.Nodes)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(nodes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes null as NoDefects and an object as ordered defect lists.
func (r *CheckResult) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = NoDefects
		return nil
	}

	var lists []DefectList
	err := decodeOrderedObject(data, func(key string, raw json.RawMessage) error {
		var nodes []string
		if err := json.Unmarshal(raw, &nodes); err != nil {
			return fmt.Errorf("defect kind %q: %w", key, err)
		}
		lists = append(lists, DefectList{Kind: DefectKind(key), Nodes: nodes})
		return nil
	})
	if err != nil {
		return err
	}

	*r = NewCheckResult(lists...)
	return nil
}

// CategoryResult pairs a category with its result.
type CategoryResult struct {
	Category Category
	Result   CheckResult
}

// ErrorReport is the ordered audit result of a content fragment.
// A category that is absent from the report was not evaluated.
type ErrorReport struct {
	entries []CategoryResult
}

// NewErrorReport creates an empty ErrorReport.
func NewErrorReport() *ErrorReport {
	return &ErrorReport{}
}

// Set records the result of a category, replacing an earlier result for the
// same category in place so that order is stable.
func (r *ErrorReport) Set(category Category, result CheckResult) {
	for i := range r.entries {
		if r.entries[i].Category == category {
			r.entries[i].Result = result
			return
		}
	}
	r.entries = append(r.entries, CategoryResult{Category: category, Result: result})
}

// Get returns the result of a category and whether it was evaluated.
func (r *ErrorReport) Get(category Category) (CheckResult, bool) {
	if r == nil {
		return NoDefects, false
	}
	for _, e := range r.entries {
		if e.Category == category {
			return e.Result, true
		}
	}
	return NoDefects, false
}

// Entries returns every evaluated category in insertion order.
func (r *ErrorReport) Entries() []CategoryResult {
	if r == nil {
		return nil
	}
	return r.entries
}

// Categories returns the evaluated category names in insertion order.
func (r *ErrorReport) Categories() []Category {
	if r == nil {
		return nil
	}
	cats := make([]Category, len(r.entries))
	for i, e := range r.entries {
		cats[i] = e.Category
	}
	return cats
}

// HasDefects reports whether any evaluated category found a defect.
func (r *ErrorReport) HasDefects() bool {
	return r.DefectCount() > 0
}

// DefectCount returns the number of offending nodes across all categories.
func (r *ErrorReport) DefectCount() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, e := range r.entries {
		n += e.Result.Count()
	}
	return n
}

// MarshalJSON encodes the report as an object keyed by category name in
// evaluation order.
func (r *ErrorReport) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range r.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(e.Category))
		if err != nil {
			return nil, err
		}
		value, err := e.Result.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object produced by MarshalJSON.
func (r *ErrorReport) UnmarshalJSON(data []byte) error {
	r.entries = nil
	return decodeOrderedObject(data, func(key string, raw json.RawMessage) error {
		var result CheckResult
		if err := result.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("category %q: %w", key, err)
		}
		r.Set(Category(key), result)
		return nil
	})
}

// errNotObject is returned when an ordered object is expected but not found.
var errNotObject = errors.New("expected JSON object")

// decodeOrderedObject walks the top-level keys of a JSON object in the order
// they appear, which encoding/json maps do not preserve.
func decodeOrderedObject(data []byte, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errNotObject
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return errNotObject
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}

	_, err = dec.Token()
	return err
}
