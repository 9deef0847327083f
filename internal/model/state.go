package model

import (
	"errors"
	"fmt"
)

// ErrStateSkipped is returned when a ScrapeReport is asked to move to a
// state that is not the immediate successor of its current state.
var ErrStateSkipped = errors.New("pipeline state transition skipped a stage")

// State represents how far a scrape has progressed through the pipeline.
// States are strictly ordered; each pipeline step advances by exactly one.
//
// Design decision: We use iota-based constants rather than string constants
// so that "is the next state" is a simple integer comparison. String() and
// the text marshalers provide readable output for reports and storage.
type State int

const (
	// StatePending is the initial state before anything has been fetched.
	StatePending State = iota

	// StateFetched means the page was retrieved and parsed into a Document.
	StateFetched

	// StateZapped means every text and comment node has been normalized to ASCII.
	StateZapped

	// StateURLsResolved means src/href attributes are absolute.
	StateURLsResolved

	// StateBodyWrapped means the body children were moved into the content wrapper.
	StateBodyWrapped

	// StateInlined means stylesheets were applied as inline style attributes.
	StateInlined

	// StateReparsed means the inlined markup was parsed and the wrapper located again.
	StateReparsed

	// StateAudited means the ErrorReport has been produced.
	StateAudited

	// StateSerialized is terminal: the content string is ready.
	StateSerialized
)

var stateNames = map[State]string{
	StatePending:      "pending",
	StateFetched:      "fetched",
	StateZapped:       "zapped",
	StateURLsResolved: "urls_resolved",
	StateBodyWrapped:  "body_wrapped",
	StateInlined:      "inlined",
	StateReparsed:     "reparsed",
	StateAudited:      "audited",
	StateSerialized:   "serialized",
}

// String returns the snake_case name of the state.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Next returns the state that must follow s.
// StateSerialized has no successor and returns itself.
func (s State) Next() State {
	if s >= StateSerialized {
		return StateSerialized
	}
	return s + 1
}

// Terminal reports whether s is the final state.
func (s State) Terminal() bool {
	return s == StateSerialized
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown pipeline state %q", string(text))
}
