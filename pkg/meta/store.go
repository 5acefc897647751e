// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

package meta

import (
	"context"

	"github.com/zeebo/errs"

	"github.com/stower/stower/storage"
)

// Store aggregates the control-plane tables. It doubles as the
// snapshot enumeration used to rebuild reference counts after a
// restart.
type Store struct {
	jobs     *Jobs
	actors   *Actors
	packages *Packages
	code     *Code

	stores []storage.KeyValueStore
}

// NewStore creates a Store over one key-value store per table.
func NewStore(jobs, actors, packages, code storage.KeyValueStore) *Store {
	return &Store{
		jobs:     NewJobs(jobs),
		actors:   NewActors(actors),
		packages: NewPackages(packages),
		code:     NewCode(code),
		stores:   []storage.KeyValueStore{jobs, actors, packages, code},
	}
}

// Jobs returns the jobs table.
func (store *Store) Jobs() *Jobs { return store.jobs }

// Actors returns the actors table.
func (store *Store) Actors() *Actors { return store.actors }

// Packages returns the packages table.
func (store *Store) Packages() *Packages { return store.packages }

// Code returns the code table.
func (store *Store) Code() *Code { return store.code }

// AllJobs enumerates every persisted job record.
func (store *Store) AllJobs(ctx context.Context) ([]*Job, error) {
	return store.jobs.All(ctx)
}

// AllActors enumerates every persisted actor record.
func (store *Store) AllActors(ctx context.Context) ([]*Actor, error) {
	return store.actors.All(ctx)
}

// Close closes the underlying key-value stores.
func (store *Store) Close() error {
	var group errs.Group
	for _, kv := range store.stores {
		group.Add(kv.Close())
	}
	return Error.Wrap(group.Err())
}
