// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

package meta

import (
	"context"

	"github.com/zeebo/errs"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"github.com/stower/stower/storage"
)

var (
	// Error is the default meta error class.
	Error = errs.Class("meta")

	mon = monkit.Package()
)

// Jobs is the table of job records.
type Jobs struct {
	store storage.KeyValueStore
}

// NewJobs creates a jobs table over store.
func NewJobs(store storage.KeyValueStore) *Jobs { return &Jobs{store: store} }

// Put stores a job record keyed by its ID.
func (jobs *Jobs) Put(ctx context.Context, job *Job) (err error) {
	defer mon.Task()(&ctx)(&err)
	if job.ID == "" {
		return Error.New("missing job id")
	}
	data, err := marshalRecord(job)
	if err != nil {
		return err
	}
	return jobs.store.Put(ctx, storage.Key(job.ID), data)
}

// Get looks up a job record by ID.
func (jobs *Jobs) Get(ctx context.Context, id string) (_ *Job, err error) {
	defer mon.Task()(&ctx)(&err)
	data, err := jobs.store.Get(ctx, storage.Key(id))
	if err != nil {
		return nil, err
	}
	var job Job
	if err := unmarshalRecord(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// All enumerates every persisted job record.
func (jobs *Jobs) All(ctx context.Context) (_ []*Job, err error) {
	defer mon.Task()(&ctx)(&err)
	var all []*Job
	err = jobs.store.Range(ctx, func(ctx context.Context, key storage.Key, value storage.Value) error {
		var job Job
		if err := unmarshalRecord(value, &job); err != nil {
			return err
		}
		all = append(all, &job)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// Actors is the table of actor records.
type Actors struct {
	store storage.KeyValueStore
}

// NewActors creates an actors table over store.
func NewActors(store storage.KeyValueStore) *Actors { return &Actors{store: store} }

// Put stores an actor record keyed by its ID.
func (actors *Actors) Put(ctx context.Context, actor *Actor) (err error) {
	defer mon.Task()(&ctx)(&err)
	if actor.ID == "" {
		return Error.New("missing actor id")
	}
	data, err := marshalRecord(actor)
	if err != nil {
		return err
	}
	return actors.store.Put(ctx, storage.Key(actor.ID), data)
}

// Get looks up an actor record by ID.
func (actors *Actors) Get(ctx context.Context, id string) (_ *Actor, err error) {
	defer mon.Task()(&ctx)(&err)
	data, err := actors.store.Get(ctx, storage.Key(id))
	if err != nil {
		return nil, err
	}
	var actor Actor
	if err := unmarshalRecord(data, &actor); err != nil {
		return nil, err
	}
	return &actor, nil
}

// All enumerates every persisted actor record.
func (actors *Actors) All(ctx context.Context) (_ []*Actor, err error) {
	defer mon.Task()(&ctx)(&err)
	var all []*Actor
	err = actors.store.Range(ctx, func(ctx context.Context, key storage.Key, value storage.Value) error {
		var actor Actor
		if err := unmarshalRecord(value, &actor); err != nil {
			return err
		}
		all = append(all, &actor)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// Packages is the table of package metadata records.
type Packages struct {
	store storage.KeyValueStore
}

// NewPackages creates a packages table over store.
func NewPackages(store storage.KeyValueStore) *Packages { return &Packages{store: store} }

// Put stores package metadata keyed by the package identity.
func (packages *Packages) Put(ctx context.Context, id string, pkg *Package) (err error) {
	defer mon.Task()(&ctx)(&err)
	if id == "" {
		return Error.New("missing package id")
	}
	data, err := marshalRecord(pkg)
	if err != nil {
		return err
	}
	return packages.store.Put(ctx, storage.Key(id), data)
}

// Get looks up package metadata by identity.
func (packages *Packages) Get(ctx context.Context, id string) (_ *Package, err error) {
	defer mon.Task()(&ctx)(&err)
	data, err := packages.store.Get(ctx, storage.Key(id))
	if err != nil {
		return nil, err
	}
	var pkg Package
	if err := unmarshalRecord(data, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// All enumerates every persisted package record keyed by identity.
func (packages *Packages) All(ctx context.Context) (_ map[string]*Package, err error) {
	defer mon.Task()(&ctx)(&err)
	all := map[string]*Package{}
	err = packages.store.Range(ctx, func(ctx context.Context, key storage.Key, value storage.Value) error {
		var pkg Package
		if err := unmarshalRecord(value, &pkg); err != nil {
			return err
		}
		all[key.String()] = &pkg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// Delete removes package metadata by identity.
func (packages *Packages) Delete(ctx context.Context, id string) (err error) {
	defer mon.Task()(&ctx)(&err)
	return packages.store.Delete(ctx, storage.Key(id))
}

// Code is the table of package code bytes.
type Code struct {
	store storage.KeyValueStore
}

// NewCode creates a code table over store.
func NewCode(store storage.KeyValueStore) *Code { return &Code{store: store} }

// Put stores code bytes keyed by the package identity.
func (code *Code) Put(ctx context.Context, id string, data []byte) (err error) {
	defer mon.Task()(&ctx)(&err)
	if id == "" {
		return Error.New("missing package id")
	}
	return code.store.Put(ctx, storage.Key(id), data)
}

// Get looks up code bytes by identity.
func (code *Code) Get(ctx context.Context, id string) (_ []byte, err error) {
	defer mon.Task()(&ctx)(&err)
	return code.store.Get(ctx, storage.Key(id))
}

// Delete removes code bytes by identity.
func (code *Code) Delete(ctx context.Context, id string) (err error) {
	defer mon.Task()(&ctx)(&err)
	return code.store.Delete(ctx, storage.Key(id))
}
