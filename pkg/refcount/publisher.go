// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

package refcount

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// EventChannel is the publish side of the cluster event bus. The key is
// the package identity; the payload is empty. Delivery is best effort.
type EventChannel interface {
	Publish(ctx context.Context, key string) error
}

// PublisherConfig configures the deletion-eligibility publisher.
type PublisherConfig struct {
	QueueSize   int           `help:"buffered deletion-eligibility events before enqueueing drops" default:"1024"`
	MaxAttempts int           `help:"publish attempts per event before it is dropped" default:"5"`
	MinBackoff  time.Duration `help:"initial retry backoff for failed publishes" default:"100ms"`
	MaxBackoff  time.Duration `help:"retry backoff ceiling" default:"5s"`
}

func (config *PublisherConfig) setDefaults() {
	if config.QueueSize <= 0 {
		config.QueueSize = 1024
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	if config.MinBackoff <= 0 {
		config.MinBackoff = 100 * time.Millisecond
	}
	if config.MaxBackoff < config.MinBackoff {
		config.MaxBackoff = 5 * time.Second
	}
}

// Publisher announces deletion-eligible packages on the event channel.
// Publishing is fire-and-forget from the tracker's point of view:
// events are buffered here and published by Run, retrying failures with
// bounded backoff. A publish that keeps failing is dropped with an
// error log, never escalated; worst case the package is reclaimed later
// by an out-of-band sweep.
type Publisher struct {
	log    *zap.Logger
	events EventChannel
	config PublisherConfig
	queue  chan string
}

// NewPublisher creates a Publisher over the given event channel.
func NewPublisher(log *zap.Logger, events EventChannel, config PublisherConfig) *Publisher {
	config.setDefaults()
	return &Publisher{
		log:    log,
		events: events,
		config: config,
		queue:  make(chan string, config.QueueSize),
	}
}

// EnqueueDeletionEligible implements DeletionSink. It never blocks:
// when the buffer is full the event is dropped and logged.
func (publisher *Publisher) EnqueueDeletionEligible(packageID string) {
	select {
	case publisher.queue <- packageID:
	default:
		mon.Counter("gc_publish_dropped").Inc(1)
		publisher.log.Error("deletion-eligibility queue full, dropping event",
			zap.String("package", packageID))
	}
}

// Run publishes queued events until ctx is canceled.
func (publisher *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case packageID := <-publisher.queue:
			publisher.publish(ctx, packageID)
		}
	}
}

func (publisher *Publisher) publish(ctx context.Context, packageID string) {
	backoff := publisher.config.MinBackoff

	for attempt := 1; ; attempt++ {
		err := publisher.events.Publish(ctx, packageID)
		if err == nil {
			mon.Counter("gc_published").Inc(1)
			publisher.log.Debug("deletion eligibility published",
				zap.String("package", packageID),
				zap.Int("attempt", attempt))
			return
		}

		if attempt >= publisher.config.MaxAttempts {
			mon.Counter("gc_publish_dropped").Inc(1)
			publisher.log.Error("dropping deletion-eligibility event",
				zap.String("package", packageID),
				zap.Int("attempts", attempt),
				zap.Error(err))
			return
		}

		publisher.log.Warn("publish failed, retrying",
			zap.String("package", packageID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > publisher.config.MaxBackoff {
			backoff = publisher.config.MaxBackoff
		}
	}
}
