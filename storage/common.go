// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

// Package storage defines the key/value store abstraction the control
// plane keeps its durable tables in.
package storage

import (
	"context"

	"github.com/zeebo/errs"
)

// LookupLimit is the maximum number of keys returned by a single List call.
const LookupLimit = 1000

// ErrKeyNotFound is returned when a lookup misses.
var ErrKeyNotFound = errs.Class("key not found")

// ErrEmptyKey is returned when an operation is given a zero-length key.
var ErrEmptyKey = errs.Class("empty key restriction")

// Key is the type for the keys in a KeyValueStore.
type Key []byte

// Value is the type for the values in a KeyValueStore.
type Value []byte

// Keys is a slice of keys.
type Keys []Key

// Values is a slice of values.
type Values []Value

// KeyValueStore describes key/value stores like redis and boltdb.
type KeyValueStore interface {
	// Put adds a value to the provided key, creating or overwriting it.
	Put(ctx context.Context, key Key, value Value) error
	// Get looks up a single key.
	Get(ctx context.Context, key Key) (Value, error)
	// List returns up to limit keys, sorted, starting from first.
	// A zero limit means LookupLimit.
	List(ctx context.Context, first Key, limit int) (Keys, error)
	// Range iterates over all items in unspecified order.
	Range(ctx context.Context, fn func(context.Context, Key, Value) error) error
	// Delete removes a key and its value. Deleting a missing key is an error.
	Delete(ctx context.Context, key Key) error
	// Close closes the store.
	Close() error
}

// IsZero returns true if the key is empty.
func (k Key) IsZero() bool { return len(k) == 0 }

// IsZero returns true if the value is empty.
func (v Value) IsZero() bool { return len(v) == 0 }

// String implements the Stringer interface.
func (k Key) String() string { return string(k) }

// Strings converts keys to a slice of strings.
func (k Keys) Strings() []string {
	result := make([]string, len(k))
	for i, key := range k {
		result[i] = string(key)
	}
	return result
}

// ByteSlices converts keys to a slice of byte-slices.
func (k Keys) ByteSlices() [][]byte {
	result := make([][]byte, len(k))
	for i, key := range k {
		result[i] = []byte(key)
	}
	return result
}
