// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

package refcount

import (
	"context"

	"go.uber.org/zap"

	"github.com/stower/stower/pkg/meta"
)

// Snapshot enumerates the durable job and actor records the tracker
// rebuilds its state from after a restart.
type Snapshot interface {
	AllJobs(ctx context.Context) ([]*meta.Job, error)
	AllActors(ctx context.Context) ([]*meta.Actor, error)
}

// Recover replays a reference for every non-terminal job and actor in
// the snapshot. It must run exactly once, before any live Increment or
// Decrement traffic; a second call errors, since replaying again would
// double-count every entry. An enumeration failure is returned as-is
// and must be treated as fatal to startup: the control plane cannot
// serve with an unknown reference baseline.
func (tracker *Tracker) Recover(ctx context.Context, snapshot Snapshot) (err error) {
	defer mon.Task()(&ctx)(&err)

	tracker.mu.Lock()
	if tracker.recovered {
		tracker.mu.Unlock()
		return Error.New("already recovered")
	}
	tracker.recovered = true
	tracker.mu.Unlock()

	jobs, err := snapshot.AllJobs(ctx)
	if err != nil {
		return Error.New("enumerating jobs: %v", err)
	}
	for _, job := range jobs {
		if job.Finished {
			continue
		}
		if err := tracker.Increment(ctx, job.ID, job.RuntimeEnv.WorkingDir); err != nil {
			return err
		}
	}

	actors, err := snapshot.AllActors(ctx)
	if err != nil {
		return Error.New("enumerating actors: %v", err)
	}
	for _, actor := range actors {
		if actor.State == meta.ActorDead {
			continue
		}
		if err := tracker.Increment(ctx, actor.ID, actor.RuntimeEnv.WorkingDir); err != nil {
			return err
		}
	}

	tracker.log.Info("reference counts recovered",
		zap.Int("jobs", len(jobs)),
		zap.Int("actors", len(actors)))
	return nil
}
