package rrdp

import (
	"testing"
	"time"
)

func Test_State_CreatedAtFor(t *testing.T) {
	state := NewState()

	t1 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(2 * time.Hour)

	first := state.createdAtFor("digest-a", t1)
	if !first.Equal(t1) {
		t.Fatalf("expected first observation to record %v, got %v", t1, first)
	}

	// The same digest observed later keeps its original time.
	second := state.createdAtFor("digest-a", t2)
	if !second.Equal(t1) {
		t.Errorf("expected reused creation time %v, got %v", t1, second)
	}

	// A different digest gets the new time.
	other := state.createdAtFor("digest-b", t2)
	if !other.Equal(t2) {
		t.Errorf("expected new digest to record %v, got %v", t2, other)
	}
}

func Test_State_LastSnapshotURL(t *testing.T) {
	state := NewState()
	if url := state.LastSnapshotURL(); url != "" {
		t.Errorf("expected empty URL on fresh state, got %q", url)
	}
}
