// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

// Package boltdb implements a storage.KeyValueStore on top of BoltDB.
package boltdb

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/boltdb/bolt"
	"github.com/zeebo/errs"

	"github.com/stower/stower/storage"
)

// Error is the default boltdb error class.
var Error = errs.Class("boltdb")

const (
	// fileMode sets permissions so only the owner can read and write.
	fileMode       = 0600
	defaultTimeout = 1 * time.Second
)

// Client is the storage interface for the Bolt database.
type Client struct {
	db     *bolt.DB
	Path   string
	Bucket []byte

	referenceCount *int32
}

// New instantiates a new BoltDB client given a file path and bucket name.
func New(path, bucket string) (*Client, error) {
	db, err := bolt.Open(path, fileMode, &bolt.Options{Timeout: defaultTimeout})
	if err != nil {
		return nil, Error.Wrap(err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		return nil, Error.Wrap(errs.Combine(err, db.Close()))
	}

	refCount := new(int32)
	*refCount = 1

	return &Client{
		db:             db,
		referenceCount: refCount,
		Path:           path,
		Bucket:         []byte(bucket),
	}, nil
}

// NewShared instantiates clients for multiple buckets sharing one
// database file.
func NewShared(path string, buckets ...string) (_ []*Client, err error) {
	db, err := bolt.Open(path, fileMode, &bolt.Options{Timeout: defaultTimeout})
	if err != nil {
		return nil, Error.Wrap(err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range buckets {
			_, err := tx.CreateBucketIfNotExists([]byte(bucket))
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, Error.Wrap(errs.Combine(err, db.Close()))
	}

	refCount := new(int32)
	*refCount = int32(len(buckets))

	clients := []*Client{}
	for _, bucket := range buckets {
		clients = append(clients, &Client{
			db:             db,
			referenceCount: refCount,
			Path:           path,
			Bucket:         []byte(bucket),
		})
	}
	return clients, nil
}

func (client *Client) update(fn func(*bolt.Bucket) error) error {
	return Error.Wrap(client.db.Update(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(client.Bucket))
	}))
}

func (client *Client) view(fn func(*bolt.Bucket) error) error {
	return Error.Wrap(client.db.View(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(client.Bucket))
	}))
}

// Put adds a key/value to the bucket.
func (client *Client) Put(ctx context.Context, key storage.Key, value storage.Value) error {
	if key.IsZero() {
		return storage.ErrEmptyKey.New("")
	}
	return client.update(func(bucket *bolt.Bucket) error {
		return bucket.Put(key, value)
	})
}

// Get looks up the provided key from the bucket.
func (client *Client) Get(ctx context.Context, key storage.Key) (storage.Value, error) {
	if key.IsZero() {
		return nil, storage.ErrEmptyKey.New("")
	}
	var value storage.Value
	err := client.view(func(bucket *bolt.Bucket) error {
		data := bucket.Get(key)
		if data == nil {
			return storage.ErrKeyNotFound.New("%q", string(key))
		}
		value = storage.CloneValue(data)
		return nil
	})
	return value, err
}

// List returns up to limit keys, sorted, starting from first.
func (client *Client) List(ctx context.Context, first storage.Key, limit int) (storage.Keys, error) {
	if limit <= 0 || limit > storage.LookupLimit {
		limit = storage.LookupLimit
	}
	var keys storage.Keys
	err := client.view(func(bucket *bolt.Bucket) error {
		cursor := bucket.Cursor()

		var key []byte
		if first.IsZero() {
			key, _ = cursor.First()
		} else {
			key, _ = cursor.Seek(first)
		}
		for ; key != nil && len(keys) < limit; key, _ = cursor.Next() {
			keys = append(keys, storage.CloneKey(key))
		}
		return nil
	})
	return keys, err
}

// Range iterates over all items in the bucket.
func (client *Client) Range(ctx context.Context, fn func(context.Context, storage.Key, storage.Value) error) error {
	return client.view(func(bucket *bolt.Bucket) error {
		return bucket.ForEach(func(key, value []byte) error {
			return fn(ctx, storage.CloneKey(key), storage.CloneValue(value))
		})
	})
}

// Delete deletes a key/value pair from the bucket. Deleting a missing
// key is an error.
func (client *Client) Delete(ctx context.Context, key storage.Key) error {
	if key.IsZero() {
		return storage.ErrEmptyKey.New("")
	}
	return client.update(func(bucket *bolt.Bucket) error {
		if bucket.Get(key) == nil {
			return storage.ErrKeyNotFound.New("%q", string(key))
		}
		return bucket.Delete(key)
	})
}

// Close closes the client; the shared database file is closed once the
// last client sharing it is closed.
func (client *Client) Close() error {
	if atomic.AddInt32(client.referenceCount, -1) == 0 {
		return Error.Wrap(client.db.Close())
	}
	return nil
}
