// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

// Package teststore implements an in-memory storage.KeyValueStore
// with call counters for tests.
package teststore

import (
	"context"
	"sort"
	"sync"

	"github.com/stower/stower/storage"
)

// Client implements an in-memory key value store.
type Client struct {
	mu sync.Mutex

	items []item

	CallCount struct {
		Put    int
		Get    int
		List   int
		Range  int
		Delete int
		Close  int
	}
}

type item struct {
	key   storage.Key
	value storage.Value
}

// New creates a new in-memory key-value store.
func New() *Client { return &Client{} }

// indexOf finds the index of key or where it could be inserted.
func (store *Client) indexOf(key storage.Key) (int, bool) {
	i := sort.Search(len(store.items), func(k int) bool {
		return string(store.items[k].key) >= string(key)
	})

	if i >= len(store.items) {
		return i, false
	}
	return i, string(store.items[i].key) == string(key)
}

// Put adds a value to the store.
func (store *Client) Put(ctx context.Context, key storage.Key, value storage.Value) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.CallCount.Put++

	if key.IsZero() {
		return storage.ErrEmptyKey.New("")
	}

	i, found := store.indexOf(key)
	if found {
		store.items[i].value = storage.CloneValue(value)
		return nil
	}

	store.items = append(store.items, item{})
	copy(store.items[i+1:], store.items[i:])
	store.items[i] = item{
		key:   storage.CloneKey(key),
		value: storage.CloneValue(value),
	}
	return nil
}

// Get looks up a single key.
func (store *Client) Get(ctx context.Context, key storage.Key) (storage.Value, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.CallCount.Get++

	if key.IsZero() {
		return nil, storage.ErrEmptyKey.New("")
	}

	i, found := store.indexOf(key)
	if !found {
		return nil, storage.ErrKeyNotFound.New("%q", key.String())
	}
	return storage.CloneValue(store.items[i].value), nil
}

// List returns up to limit keys, sorted, starting from first.
func (store *Client) List(ctx context.Context, first storage.Key, limit int) (storage.Keys, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.CallCount.List++

	if limit <= 0 || limit > storage.LookupLimit {
		limit = storage.LookupLimit
	}

	keys := storage.Keys{}
	i, _ := store.indexOf(first)
	for ; i < len(store.items) && len(keys) < limit; i++ {
		keys = append(keys, storage.CloneKey(store.items[i].key))
	}
	return keys, nil
}

// Range iterates over all items.
func (store *Client) Range(ctx context.Context, fn func(context.Context, storage.Key, storage.Value) error) error {
	store.mu.Lock()
	store.CallCount.Range++
	snapshot := make([]item, len(store.items))
	copy(snapshot, store.items)
	store.mu.Unlock()

	for _, it := range snapshot {
		if err := fn(ctx, storage.CloneKey(it.key), storage.CloneValue(it.value)); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a key and its value.
func (store *Client) Delete(ctx context.Context, key storage.Key) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.CallCount.Delete++

	if key.IsZero() {
		return storage.ErrEmptyKey.New("")
	}

	i, found := store.indexOf(key)
	if !found {
		return storage.ErrKeyNotFound.New("%q", key.String())
	}
	store.items = append(store.items[:i], store.items[i+1:]...)
	return nil
}

// Close closes the store.
func (store *Client) Close() error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.CallCount.Close++
	return nil
}
