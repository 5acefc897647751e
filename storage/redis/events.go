// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

package redis

import (
	"context"

	"github.com/go-redis/redis"
)

// Events is the publish side of the cluster event channel, backed by
// redis pub/sub. Delivery is best effort and unordered; subscribers
// that act destructively on an event must re-check liveness first,
// since a package identity may be referenced again after its deletion
// eligibility was announced.
type Events struct {
	db      *redis.Client
	channel string
}

// NewEvents returns an event channel publishing on the named pub/sub
// channel, verifying a successful connection to redis.
func NewEvents(address, password string, db int, channel string) (*Events, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	if err := client.Ping().Err(); err != nil {
		return nil, Error.New("ping failed: %v", err)
	}
	return &Events{db: client, channel: channel}, nil
}

// NewEventsFrom returns an event channel from a redis:// address.
func NewEventsFrom(address, channel string) (*Events, error) {
	addr, password, db, err := parseAddress(address)
	if err != nil {
		return nil, err
	}
	return NewEvents(addr, password, db, channel)
}

// Publish emits one event carrying key as the message and nothing else.
func (events *Events) Publish(ctx context.Context, key string) (err error) {
	defer mon.Task()(&ctx)(&err)
	if err := events.db.Publish(events.channel, key).Err(); err != nil {
		return Error.New("publish error: %v", err)
	}
	return nil
}

// Close closes the underlying redis client.
func (events *Events) Close() error {
	return Error.Wrap(events.db.Close())
}
