// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

package storage

// CloneKey creates a copy of key.
func CloneKey(key Key) Key { return append(key[:0:0], key...) }

// CloneValue creates a copy of value.
func CloneValue(value Value) Value { return append(value[:0:0], value...) }
