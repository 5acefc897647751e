// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

package refcount_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/errs"
	"go.uber.org/zap/zaptest"

	"github.com/stower/stower/internal/testcontext"
	"github.com/stower/stower/pkg/refcount"
)

// flakyChannel fails the first failures publishes, then succeeds.
type flakyChannel struct {
	mu        sync.Mutex
	failures  int
	attempts  int
	published []string
	done      chan struct{}
}

func newFlakyChannel(failures int) *flakyChannel {
	return &flakyChannel{failures: failures, done: make(chan struct{})}
}

func (channel *flakyChannel) Publish(ctx context.Context, key string) error {
	channel.mu.Lock()
	defer channel.mu.Unlock()

	channel.attempts++
	if channel.attempts <= channel.failures {
		return errs.New("transport down")
	}
	channel.published = append(channel.published, key)
	close(channel.done)
	return nil
}

func (channel *flakyChannel) wait(t *testing.T) {
	t.Helper()
	select {
	case <-channel.done:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for publish")
	}
}

func testPublisherConfig() refcount.PublisherConfig {
	return refcount.PublisherConfig{
		QueueSize:   16,
		MaxAttempts: 5,
		MinBackoff:  time.Millisecond,
		MaxBackoff:  4 * time.Millisecond,
	}
}

func TestPublishRetries(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	channel := newFlakyChannel(2)
	publisher := refcount.NewPublisher(zaptest.NewLogger(t), channel, testPublisherConfig())

	runCtx, cancel := context.WithCancel(ctx)
	ctx.Go(func() error { return publisher.Run(runCtx) })

	publisher.EnqueueDeletionEligible("s3://bundleX")
	channel.wait(t)
	cancel()

	assert.Equal(t, 3, channel.attempts)
	assert.Equal(t, []string{"s3://bundleX"}, channel.published)
}

// stuckChannel never succeeds and signals once the attempt budget is
// spent.
type stuckChannel struct {
	mu       sync.Mutex
	attempts int
	budget   int
	done     chan struct{}
}

func (channel *stuckChannel) Publish(ctx context.Context, key string) error {
	channel.mu.Lock()
	defer channel.mu.Unlock()

	channel.attempts++
	if channel.attempts == channel.budget {
		close(channel.done)
	}
	return errs.New("transport down")
}

func TestPublishDropsAfterBudget(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	config := testPublisherConfig()
	channel := &stuckChannel{budget: config.MaxAttempts, done: make(chan struct{})}
	publisher := refcount.NewPublisher(zaptest.NewLogger(t), channel, config)

	runCtx, cancel := context.WithCancel(ctx)
	ctx.Go(func() error { return publisher.Run(runCtx) })

	publisher.EnqueueDeletionEligible("pkg")

	select {
	case <-channel.done:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for attempts")
	}
	// allow the publisher to move on to the next event
	channel2 := make(chan struct{})
	publisher.EnqueueDeletionEligible("pkg2")
	go func() {
		for {
			channel.mu.Lock()
			attempts := channel.attempts
			channel.mu.Unlock()
			if attempts > config.MaxAttempts {
				close(channel2)
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()
	select {
	case <-channel2:
	case <-time.After(10 * time.Second):
		t.Fatal("publisher stopped consuming after a dropped event")
	}
	cancel()
}

func TestEnqueueNeverBlocks(t *testing.T) {
	// no Run loop consuming: the queue fills up and overflow is dropped
	publisher := refcount.NewPublisher(zaptest.NewLogger(t), newFlakyChannel(0), refcount.PublisherConfig{
		QueueSize: 1,
	})

	finished := make(chan struct{})
	go func() {
		publisher.EnqueueDeletionEligible("pkg-1")
		publisher.EnqueueDeletionEligible("pkg-2")
		publisher.EnqueueDeletionEligible("pkg-3")
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(10 * time.Second):
		t.Fatal("enqueue blocked")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	publisher := refcount.NewPublisher(zaptest.NewLogger(t), newFlakyChannel(0), testPublisherConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, publisher.Run(ctx))
}
