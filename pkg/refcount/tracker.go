// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

// Package refcount tracks how many live jobs and actors reference each
// shared code bundle, and signals garbage collection once a bundle's
// reference count drops to zero.
package refcount

import (
	"context"
	"sync"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"
)

var (
	// Error is the default refcount error class.
	Error = errs.Class("refcount")

	// ErrInvariant is returned when a reference count would go negative.
	// It signals a double decrement or a missed increment somewhere in
	// the control plane; once raised, the tracker refuses all further
	// mutations, since its state can no longer be trusted.
	ErrInvariant = errs.Class("reference count invariant")

	mon = monkit.Package()
)

// DeletionSink receives package identities whose reference count
// reached zero. Enqueueing must not block; the tracker calls it while
// the caller of Decrement is waiting.
type DeletionSink interface {
	EnqueueDeletionEligible(packageID string)
}

// Tracker owns the in-memory reference accounting: a count per package
// identity and the set of packages each owner referenced at admission.
// It is the sole mutator of that state; every mutation is serialized by
// one mutex. The maps are not persisted, Recover rebuilds them from the
// durable tables at process start.
type Tracker struct {
	log  *zap.Logger
	sink DeletionSink

	mu        sync.Mutex
	refs      map[string]int64
	owned     map[string][]string
	recovered bool
	poisoned  bool
}

// NewTracker creates a Tracker handing zero-count packages to sink.
func NewTracker(log *zap.Logger, sink DeletionSink) *Tracker {
	return &Tracker{
		log:   log,
		sink:  sink,
		refs:  map[string]int64{},
		owned: map[string][]string{},
	}
}

// Increment records that owner references packageID. An empty packageID
// means the owner has no package dependency and is a no-op. The caller
// contract is at most one call per (owner, package) pair; calls are not
// deduplicated, a second call double-counts.
func (tracker *Tracker) Increment(ctx context.Context, ownerID, packageID string) (err error) {
	defer mon.Task()(&ctx)(&err)

	if packageID == "" {
		return nil
	}

	tracker.mu.Lock()
	defer tracker.mu.Unlock()

	if tracker.poisoned {
		return ErrInvariant.New("tracker refuses writes after a violation")
	}

	tracker.refs[packageID]++
	tracker.owned[ownerID] = append(tracker.owned[ownerID], packageID)

	tracker.log.Debug("package reference added",
		zap.String("owner", ownerID),
		zap.String("package", packageID),
		zap.Int64("count", tracker.refs[packageID]))
	return nil
}

// Decrement drops every package reference recorded for owner and
// removes the owner's entry. Owners the tracker never saw are a no-op.
// Each package whose count reaches zero is removed from the count map
// and handed to the deletion sink after the lock is released.
func (tracker *Tracker) Decrement(ctx context.Context, ownerID string) (err error) {
	defer mon.Task()(&ctx)(&err)

	var zeroed []string

	tracker.mu.Lock()
	if tracker.poisoned {
		tracker.mu.Unlock()
		return ErrInvariant.New("tracker refuses writes after a violation")
	}

	// The owner's entry goes away no matter what happens below: a
	// dangling partial reference is worse than under-counting once.
	packages := tracker.owned[ownerID]
	delete(tracker.owned, ownerID)

	for _, packageID := range packages {
		count, ok := tracker.refs[packageID]
		if !ok || count <= 0 {
			tracker.poisoned = true
			err = ErrInvariant.New("count for package %q would go negative (owner %q)", packageID, ownerID)
			break
		}
		if count == 1 {
			delete(tracker.refs, packageID)
			zeroed = append(zeroed, packageID)
			continue
		}
		tracker.refs[packageID] = count - 1
	}
	tracker.mu.Unlock()

	for _, packageID := range zeroed {
		tracker.log.Info("package deletion eligible", zap.String("package", packageID))
		mon.Counter("gc_eligible").Inc(1)
		tracker.sink.EnqueueDeletionEligible(packageID)
	}

	if err != nil {
		tracker.log.Error("reference count invariant violated", zap.String("owner", ownerID), zap.Error(err))
	}
	return err
}

// Count returns the current reference count of packageID, zero when
// absent. For diagnostics and tests.
func (tracker *Tracker) Count(packageID string) int64 {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	return tracker.refs[packageID]
}
