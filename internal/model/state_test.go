package model

import (
	"encoding/json"
	"errors"
	"testing"
)

// TestStateString tests the String method of State.
func TestStateString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		state    State
		expected string
	}{
		{StatePending, "pending"},
		{StateFetched, "fetched"},
		{StateZapped, "zapped"},
		{StateURLsResolved, "urls_resolved"},
		{StateBodyWrapped, "body_wrapped"},
		{StateInlined, "inlined"},
		{StateReparsed, "reparsed"},
		{StateAudited, "audited"},
		{StateSerialized, "serialized"},
		{State(999), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			t.Parallel()
			if tc.state.String() != tc.expected {
				t.Errorf("got %q, expected %q", tc.state.String(), tc.expected)
			}
		})
	}
}

// TestStateNext tests that states advance in pipeline order.
func TestStateNext(t *testing.T) {
	t.Parallel()

	order := []State{
		StatePending, StateFetched, StateZapped, StateURLsResolved,
		StateBodyWrapped, StateInlined, StateReparsed, StateAudited, StateSerialized,
	}

	for i := 0; i < len(order)-1; i++ {
		if got := order[i].Next(); got != order[i+1] {
			t.Errorf("%s.Next() = %s, expected %s", order[i], got, order[i+1])
		}
	}

	if got := StateSerialized.Next(); got != StateSerialized {
		t.Errorf("serialized should be terminal, got %s", got)
	}
	if !StateSerialized.Terminal() {
		t.Error("expected serialized to be terminal")
	}
	if StateAudited.Terminal() {
		t.Error("expected audited not to be terminal")
	}
}

// TestStateJSON tests that State survives a JSON round trip as text.
func TestStateJSON(t *testing.T) {
	t.Parallel()

	t.Run("encodes as name", func(t *testing.T) {
		t.Parallel()

		data, err := json.Marshal(StateBodyWrapped)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != `"body_wrapped"` {
			t.Errorf("got %s", data)
		}
	})

	t.Run("decodes known name", func(t *testing.T) {
		t.Parallel()

		var s State
		if err := json.Unmarshal([]byte(`"audited"`), &s); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s != StateAudited {
			t.Errorf("got %s, expected audited", s)
		}
	})

	t.Run("rejects unknown name", func(t *testing.T) {
		t.Parallel()

		var s State
		if err := json.Unmarshal([]byte(`"shipped"`), &s); err == nil {
			t.Error("expected error for unknown state")
		}
	})
}

// TestScrapeReportAdvance tests the state machine guard.
func TestScrapeReportAdvance(t *testing.T) {
	t.Parallel()

	t.Run("walks every state in order", func(t *testing.T) {
		t.Parallel()

		r := NewScrapeReport("https://example.com/")
		for s := StateFetched; s <= StateSerialized; s++ {
			if err := r.Advance(s); err != nil {
				t.Fatalf("advance to %s: %v", s, err)
			}
		}
		if r.State != StateSerialized {
			t.Errorf("expected serialized, got %s", r.State)
		}
	})

	t.Run("refuses to skip a state", func(t *testing.T) {
		t.Parallel()

		r := NewScrapeReport("https://example.com/")
		if err := r.Advance(StateFetched); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		err := r.Advance(StateURLsResolved)
		if !errors.Is(err, ErrStateSkipped) {
			t.Errorf("expected ErrStateSkipped, got %v", err)
		}
		if r.State != StateFetched {
			t.Errorf("state should be unchanged, got %s", r.State)
		}
	})

	t.Run("refuses to go backwards", func(t *testing.T) {
		t.Parallel()

		r := NewScrapeReport("https://example.com/")
		_ = r.Advance(StateFetched)
		_ = r.Advance(StateZapped)

		if err := r.Advance(StateFetched); !errors.Is(err, ErrStateSkipped) {
			t.Errorf("expected ErrStateSkipped, got %v", err)
		}
	})

	t.Run("refuses to leave the terminal state", func(t *testing.T) {
		t.Parallel()

		r := NewScrapeReport("https://example.com/")
		r.State = StateSerialized

		if err := r.Advance(StateSerialized); !errors.Is(err, ErrStateSkipped) {
			t.Errorf("expected ErrStateSkipped, got %v", err)
		}
	})
}
