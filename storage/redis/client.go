// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

// Package redis implements a storage.KeyValueStore and the cluster
// event channel on top of Redis.
package redis

import (
	"context"
	"net/url"
	"sort"
	"strconv"

	"github.com/go-redis/redis"
	"github.com/zeebo/errs"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"github.com/stower/stower/storage"
)

var (
	// Error is the default redis error class.
	Error = errs.Class("redis")

	mon = monkit.Package()
)

// Client is the entrypoint into Redis.
type Client struct {
	db *redis.Client
}

// NewClient returns a configured Client instance, verifying a successful
// connection to redis.
func NewClient(address, password string, db int) (*Client, error) {
	client := &Client{
		db: redis.NewClient(&redis.Options{
			Addr:     address,
			Password: password,
			DB:       db,
		}),
	}

	// ping to verify we are able to connect to redis with the initialized client.
	if err := client.db.Ping().Err(); err != nil {
		return nil, Error.New("ping failed: %v", err)
	}

	return client, nil
}

// NewClientFrom returns a configured Client instance from a redis address,
// verifying a successful connection to redis.
func NewClientFrom(address string) (*Client, error) {
	addr, password, db, err := parseAddress(address)
	if err != nil {
		return nil, err
	}
	return NewClient(addr, password, db)
}

// parseAddress parses a redis:// URL of the form
// redis://host:port?db=n&password=pw.
func parseAddress(address string) (addr, password string, db int, err error) {
	redisurl, err := url.Parse(address)
	if err != nil {
		return "", "", 0, Error.Wrap(err)
	}

	if redisurl.Scheme != "redis" {
		return "", "", 0, Error.New("not a redis:// formatted address")
	}

	q := redisurl.Query()
	if dbstring := q.Get("db"); dbstring != "" {
		db, err = strconv.Atoi(dbstring)
		if err != nil {
			return "", "", 0, Error.New("invalid db: %q", dbstring)
		}
	}
	return redisurl.Host, q.Get("password"), db, nil
}

// Put adds a value to the provided key in redis.
func (client *Client) Put(ctx context.Context, key storage.Key, value storage.Value) (err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return storage.ErrEmptyKey.New("")
	}
	err = client.db.Set(key.String(), []byte(value), 0).Err()
	if err != nil {
		return Error.New("put error: %v", err)
	}
	return nil
}

// Get looks up the provided key from redis.
func (client *Client) Get(ctx context.Context, key storage.Key) (_ storage.Value, err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return nil, storage.ErrEmptyKey.New("")
	}
	value, err := client.db.Get(key.String()).Bytes()
	if err == redis.Nil {
		return nil, storage.ErrKeyNotFound.New("%q", key.String())
	}
	if err != nil {
		return nil, Error.New("get error: %v", err)
	}
	return value, nil
}

// List returns up to limit keys, sorted, starting from first.
func (client *Client) List(ctx context.Context, first storage.Key, limit int) (_ storage.Keys, err error) {
	defer mon.Task()(&ctx)(&err)
	if limit <= 0 || limit > storage.LookupLimit {
		limit = storage.LookupLimit
	}

	all, err := client.allKeys()
	if err != nil {
		return nil, err
	}
	sort.Strings(all)

	keys := storage.Keys{}
	for _, key := range all {
		if !first.IsZero() && key < first.String() {
			continue
		}
		keys = append(keys, storage.Key(key))
		if len(keys) >= limit {
			break
		}
	}
	return keys, nil
}

// Range iterates over all items in unspecified order.
func (client *Client) Range(ctx context.Context, fn func(context.Context, storage.Key, storage.Value) error) (err error) {
	defer mon.Task()(&ctx)(&err)

	all, err := client.allKeys()
	if err != nil {
		return err
	}
	for _, key := range all {
		value, err := client.db.Get(key).Bytes()
		if err == redis.Nil {
			// deleted during iteration
			continue
		}
		if err != nil {
			return Error.New("range error: %v", err)
		}
		if err := fn(ctx, storage.Key(key), storage.Value(value)); err != nil {
			return err
		}
	}
	return nil
}

func (client *Client) allKeys() (keys []string, err error) {
	it := client.db.Scan(0, "", 0).Iterator()
	for it.Next() {
		keys = append(keys, it.Val())
	}
	if err := it.Err(); err != nil {
		return nil, Error.New("scan error: %v", err)
	}
	return keys, nil
}

// Delete deletes a key/value pair from redis. Deleting a missing key is
// an error.
func (client *Client) Delete(ctx context.Context, key storage.Key) (err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return storage.ErrEmptyKey.New("")
	}
	deleted, err := client.db.Del(key.String()).Result()
	if err != nil {
		return Error.New("delete error: %v", err)
	}
	if deleted == 0 {
		return storage.ErrKeyNotFound.New("%q", key.String())
	}
	return nil
}

// FlushDB deletes all keys in the currently selected DB.
func (client *Client) FlushDB() error {
	return Error.Wrap(client.db.FlushDB().Err())
}

// Close closes the redis client.
func (client *Client) Close() error {
	return Error.Wrap(client.db.Close())
}
