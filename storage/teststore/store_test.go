// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

package teststore

import (
	"context"
	"testing"

	"github.com/stower/stower/storage"
	"github.com/stower/stower/storage/testsuite"
)

func TestSuite(t *testing.T) {
	testsuite.RunTests(t, New())
}

func TestCallCount(t *testing.T) {
	ctx := context.Background()
	store := New()

	_ = store.Put(ctx, storage.Key("key"), storage.Value("value"))
	_, _ = store.Get(ctx, storage.Key("key"))
	_, _ = store.Get(ctx, storage.Key("missing"))

	if store.CallCount.Put != 1 {
		t.Fatalf("expected 1 put, got %d", store.CallCount.Put)
	}
	if store.CallCount.Get != 2 {
		t.Fatalf("expected 2 gets, got %d", store.CallCount.Get)
	}
}
