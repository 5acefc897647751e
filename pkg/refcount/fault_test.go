// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

package refcount

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type discardSink struct{}

func (discardSink) EnqueueDeletionEligible(string) {}

// TestInvariantViolation corrupts the internal state the way a double
// decrement elsewhere would, and checks that Decrement refuses to clamp
// the count to zero silently.
func TestInvariantViolation(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(zaptest.NewLogger(t), discardSink{})

	// owner index points at a package whose count entry is gone
	tracker.owned["job1"] = []string{"pkg"}

	err := tracker.Decrement(ctx, "job1")
	require.Error(t, err)
	assert.True(t, ErrInvariant.Has(err))

	// the owner's entry is removed even on a partial fault
	_, ok := tracker.owned["job1"]
	assert.False(t, ok)

	// the tracker is poisoned: all further mutations refuse
	err = tracker.Increment(ctx, "job2", "pkg")
	assert.True(t, ErrInvariant.Has(err))
	err = tracker.Decrement(ctx, "job2")
	assert.True(t, ErrInvariant.Has(err))
}

// TestCountMatchesOwnerIndex checks the structural invariant: every
// package count equals the number of owner index entries naming it, and
// no count entry is ever zero or negative.
func TestCountMatchesOwnerIndex(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(zaptest.NewLogger(t), discardSink{})

	owners := []struct {
		id       string
		packages []string
	}{
		{"job1", []string{"pkg-a"}},
		{"job2", []string{"pkg-a", "pkg-b"}},
		{"actor1", []string{"pkg-b"}},
		{"actor2", []string{"pkg-c"}},
		{"actor3", nil},
	}
	for _, owner := range owners {
		for _, pkg := range owner.packages {
			require.NoError(t, tracker.Increment(ctx, owner.id, pkg))
		}
	}
	require.NoError(t, tracker.Decrement(ctx, "job2"))
	require.NoError(t, tracker.Decrement(ctx, "actor3"))

	checkConsistent(t, tracker)
	assert.EqualValues(t, 1, tracker.Count("pkg-a"))
	assert.EqualValues(t, 1, tracker.Count("pkg-b"))
	assert.EqualValues(t, 1, tracker.Count("pkg-c"))
}

func checkConsistent(t *testing.T, tracker *Tracker) {
	t.Helper()
	tracker.mu.Lock()
	defer tracker.mu.Unlock()

	expected := map[string]int64{}
	for _, packages := range tracker.owned {
		for _, pkg := range packages {
			expected[pkg]++
		}
	}
	assert.Equal(t, expected, tracker.refs)
	for pkg, count := range tracker.refs {
		assert.True(t, count > 0, "package %q has non-positive count %d", pkg, count)
	}
}
