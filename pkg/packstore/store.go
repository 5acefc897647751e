// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

// Package packstore stores code bundles in the cluster tables: the
// bundle bytes in the code table, the metadata record in the packages
// table. Metadata is the commit point, a bundle without a metadata
// record does not exist.
package packstore

import (
	"context"
	"sync"
	"time"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"github.com/stower/stower/pkg/meta"
	"github.com/stower/stower/storage"
)

var (
	// Error is the default packstore error class.
	Error = errs.Class("packstore")

	mon = monkit.Package()
)

// Store reads and writes code bundles.
type Store struct {
	log      *zap.Logger
	packages *meta.Packages
	code     *meta.Code

	mu    sync.Mutex
	locks map[string]*packageLock
}

type packageLock struct {
	mu      sync.Mutex
	waiters int
}

// NewStore creates a Store over the package tables.
func NewStore(log *zap.Logger, packages *meta.Packages, code *meta.Code) *Store {
	return &Store{
		log:      log,
		packages: packages,
		code:     code,
		locks:    map[string]*packageLock{},
	}
}

// lock serializes operations on one package identity without blocking
// operations on the others. The returned function releases the lock.
func (store *Store) lock(id string) func() {
	store.mu.Lock()
	entry := store.locks[id]
	if entry == nil {
		entry = &packageLock{}
		store.locks[id] = entry
	}
	entry.waiters++
	store.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()

		store.mu.Lock()
		entry.waiters--
		if entry.waiters == 0 {
			delete(store.locks, id)
		}
		store.mu.Unlock()
	}
}

// Push stores a bundle under pkg.URI. Pushing an identity that already
// exists is a no-op, bundles are immutable, the bytes are assumed
// identical. The code bytes are written before the metadata record, so
// a crash in between leaves orphaned bytes but never a record pointing
// at missing code.
func (store *Store) Push(ctx context.Context, pkg *meta.Package, data []byte) (err error) {
	defer mon.Task()(&ctx)(&err)

	if pkg.URI == "" {
		return Error.New("missing package uri")
	}
	unlock := store.lock(pkg.URI)
	defer unlock()

	_, err = store.packages.Get(ctx, pkg.URI)
	if err == nil {
		store.log.Debug("package already stored", zap.String("package", pkg.URI))
		return nil
	}
	if !storage.ErrKeyNotFound.Has(err) {
		return Error.Wrap(err)
	}

	if pkg.CreatedAt == 0 {
		pkg.CreatedAt = time.Now().Unix()
	}
	if err := store.code.Put(ctx, pkg.URI, data); err != nil {
		return Error.Wrap(err)
	}
	if err := store.packages.Put(ctx, pkg.URI, pkg); err != nil {
		return Error.Wrap(err)
	}

	mon.Counter("packages_pushed").Inc(1)
	store.log.Info("package stored",
		zap.String("package", pkg.URI),
		zap.Int("size", len(data)))
	return nil
}

// Fetch returns the bundle bytes of a stored package.
func (store *Store) Fetch(ctx context.Context, id string) (_ []byte, err error) {
	defer mon.Task()(&ctx)(&err)

	unlock := store.lock(id)
	defer unlock()

	if _, err := store.packages.Get(ctx, id); err != nil {
		return nil, Error.Wrap(err)
	}
	data, err := store.code.Get(ctx, id)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return data, nil
}

// Info returns the metadata record of a stored package.
func (store *Store) Info(ctx context.Context, id string) (_ *meta.Package, err error) {
	defer mon.Task()(&ctx)(&err)

	pkg, err := store.packages.Get(ctx, id)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return pkg, nil
}

// All enumerates the metadata records of every stored package.
func (store *Store) All(ctx context.Context) (map[string]*meta.Package, error) {
	return store.packages.All(ctx)
}

// Delete removes a stored package. The metadata record goes first: once
// it is gone the package no longer exists, leftover code bytes from a
// crash in between are harmless. Deleting an absent package is a no-op.
func (store *Store) Delete(ctx context.Context, id string) (err error) {
	defer mon.Task()(&ctx)(&err)

	unlock := store.lock(id)
	defer unlock()

	if err := store.packages.Delete(ctx, id); err != nil {
		if storage.ErrKeyNotFound.Has(err) {
			return nil
		}
		return Error.Wrap(err)
	}
	if err := store.code.Delete(ctx, id); err != nil && !storage.ErrKeyNotFound.Has(err) {
		return Error.Wrap(err)
	}

	mon.Counter("packages_deleted").Inc(1)
	store.log.Info("package deleted", zap.String("package", id))
	return nil
}
