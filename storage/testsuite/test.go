// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

// Package testsuite contains a conformance suite that every
// storage.KeyValueStore implementation must pass.
package testsuite

import (
	"context"
	"testing"

	"github.com/stower/stower/storage"
)

// RunTests runs common storage.KeyValueStore tests.
func RunTests(t *testing.T, store storage.KeyValueStore) {
	t.Run("CRUD", func(t *testing.T) { testCRUD(t, store) })
	t.Run("Constraints", func(t *testing.T) { testConstraints(t, store) })
	t.Run("List", func(t *testing.T) { testList(t, store) })
	t.Run("Range", func(t *testing.T) { testRange(t, store) })
}

func testCRUD(t *testing.T, store storage.KeyValueStore) {
	ctx := context.Background()

	items := []struct {
		key   storage.Key
		value storage.Value
	}{
		{storage.Key("a-key"), storage.Value("a-value")},
		{storage.Key("b-key"), storage.Value("b-value")},
		{storage.Key("c-key"), storage.Value("")},
	}

	for _, item := range items {
		if err := store.Put(ctx, item.key, item.value); err != nil {
			t.Fatalf("failed to put %q: %v", item.key, err)
		}
	}
	defer cleanupItems(t, store, "a-key", "b-key", "c-key")

	for _, item := range items {
		value, err := store.Get(ctx, item.key)
		if err != nil {
			t.Fatalf("failed to get %q: %v", item.key, err)
		}
		if string(value) != string(item.value) {
			t.Fatalf("invalid value for %q: got %q expected %q", item.key, value, item.value)
		}
	}

	// overwrite
	if err := store.Put(ctx, storage.Key("a-key"), storage.Value("a-new-value")); err != nil {
		t.Fatalf("failed to overwrite: %v", err)
	}
	value, err := store.Get(ctx, storage.Key("a-key"))
	if err != nil {
		t.Fatalf("failed to get after overwrite: %v", err)
	}
	if string(value) != "a-new-value" {
		t.Fatalf("invalid value after overwrite: %q", value)
	}

	if err := store.Delete(ctx, storage.Key("b-key")); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if _, err := store.Get(ctx, storage.Key("b-key")); !storage.ErrKeyNotFound.Has(err) {
		t.Fatalf("expected key not found after delete, got %v", err)
	}
}

func testConstraints(t *testing.T, store storage.KeyValueStore) {
	ctx := context.Background()

	if err := store.Put(ctx, nil, storage.Value("xyz")); !storage.ErrEmptyKey.Has(err) {
		t.Fatalf("putting empty key should fail, got %v", err)
	}
	if _, err := store.Get(ctx, nil); !storage.ErrEmptyKey.Has(err) {
		t.Fatalf("getting empty key should fail, got %v", err)
	}
	if _, err := store.Get(ctx, storage.Key("missing")); !storage.ErrKeyNotFound.Has(err) {
		t.Fatalf("getting missing key should fail, got %v", err)
	}
	if err := store.Delete(ctx, storage.Key("missing")); !storage.ErrKeyNotFound.Has(err) {
		t.Fatalf("deleting missing key should fail, got %v", err)
	}
}

func testList(t *testing.T, store storage.KeyValueStore) {
	ctx := context.Background()

	keys := []string{"list/a", "list/b", "list/c", "list/d"}
	for _, key := range keys {
		if err := store.Put(ctx, storage.Key(key), storage.Value("value")); err != nil {
			t.Fatalf("failed to put %q: %v", key, err)
		}
	}
	defer cleanupItems(t, store, keys...)

	listed, err := store.List(ctx, storage.Key("list/"), 0)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(listed) != len(keys) {
		t.Fatalf("expected %d keys, got %d", len(keys), len(listed))
	}
	for i, key := range keys {
		if listed[i].String() != key {
			t.Fatalf("expected key %d to be %q, got %q", i, key, listed[i])
		}
	}

	limited, err := store.List(ctx, storage.Key("list/b"), 2)
	if err != nil {
		t.Fatalf("failed to list with limit: %v", err)
	}
	if len(limited) != 2 || limited[0].String() != "list/b" || limited[1].String() != "list/c" {
		t.Fatalf("unexpected limited listing: %v", limited.Strings())
	}
}

func testRange(t *testing.T, store storage.KeyValueStore) {
	ctx := context.Background()

	expected := map[string]string{
		"range/a": "alpha",
		"range/b": "beta",
	}
	for key, value := range expected {
		if err := store.Put(ctx, storage.Key(key), storage.Value(value)); err != nil {
			t.Fatalf("failed to put %q: %v", key, err)
		}
	}
	defer cleanupItems(t, store, "range/a", "range/b")

	got := map[string]string{}
	err := store.Range(ctx, func(ctx context.Context, key storage.Key, value storage.Value) error {
		got[key.String()] = string(value)
		return nil
	})
	if err != nil {
		t.Fatalf("failed to range: %v", err)
	}
	for key, value := range expected {
		if got[key] != value {
			t.Fatalf("range missing %q=%q, got %q", key, value, got[key])
		}
	}
}

func cleanupItems(t *testing.T, store storage.KeyValueStore, keys ...string) {
	ctx := context.Background()
	for _, key := range keys {
		_ = store.Delete(ctx, storage.Key(key))
	}
}
