// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

package jobs_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/errs"
	"go.uber.org/zap/zaptest"

	"github.com/stower/stower/internal/testcontext"
	"github.com/stower/stower/pkg/jobs"
	"github.com/stower/stower/pkg/meta"
	"github.com/stower/stower/pkg/refcount"
	"github.com/stower/stower/storage/teststore"
)

type increment struct{ owner, pkg string }

// recordingRefs records increments instead of counting them.
type recordingRefs struct {
	mu         sync.Mutex
	increments []increment
}

func (refs *recordingRefs) Increment(ctx context.Context, ownerID, packageID string) error {
	refs.mu.Lock()
	defer refs.mu.Unlock()
	refs.increments = append(refs.increments, increment{ownerID, packageID})
	return nil
}

func (refs *recordingRefs) all() []increment {
	refs.mu.Lock()
	defer refs.mu.Unlock()
	return append([]increment(nil), refs.increments...)
}

func newService(t *testing.T) (*jobs.Service, *meta.Jobs, *recordingRefs) {
	table := meta.NewJobs(teststore.New())
	refs := &recordingRefs{}
	return jobs.NewService(zaptest.NewLogger(t), table, refs), table, refs
}

func TestAdd(t *testing.T) {
	ctx := context.Background()
	service, table, refs := newService(t)

	job := &meta.Job{
		ID:         "job1",
		StartedAt:  time.Now().Unix(),
		Entrypoint: "python train.py",
		RuntimeEnv: meta.RuntimeEnv{WorkingDir: "s3://bundleX"},
	}
	require.NoError(t, service.Add(ctx, job))

	stored, err := table.Get(ctx, "job1")
	require.NoError(t, err)
	assert.Equal(t, job, stored)
	assert.Equal(t, []increment{{"job1", "s3://bundleX"}}, refs.increments)

	// admitting the same ID again must not double-count
	err = service.Add(ctx, job)
	require.Error(t, err)
	assert.Len(t, refs.increments, 1)
}

// TestConcurrentAdd races several admissions of the same job ID:
// exactly one may win, and the package reference is recorded exactly
// once.
func TestConcurrentAdd(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	service, _, refs := newService(t)

	var succeeded int32
	for i := 0; i < 8; i++ {
		ctx.Go(func() error {
			err := service.Add(ctx, &meta.Job{
				ID:         "job1",
				RuntimeEnv: meta.RuntimeEnv{WorkingDir: "s3://bundleX"},
			})
			if err == nil {
				atomic.AddInt32(&succeeded, 1)
			}
			return nil
		})
	}
	ctx.Cleanup()

	assert.EqualValues(t, 1, succeeded)
	assert.Equal(t, []increment{{"job1", "s3://bundleX"}}, refs.all())
}

func TestAddValidation(t *testing.T) {
	ctx := context.Background()
	service, _, refs := newService(t)

	require.Error(t, service.Add(ctx, &meta.Job{}))
	assert.Empty(t, refs.increments)
}

func TestMarkFinished(t *testing.T) {
	ctx := context.Background()
	service, table, _ := newService(t)

	require.NoError(t, service.Add(ctx, &meta.Job{ID: "job1"}))

	var notified []string
	service.AddFinishedListener(func(ctx context.Context, job *meta.Job) error {
		notified = append(notified, "first:"+job.ID)
		return nil
	})
	service.AddFinishedListener(func(ctx context.Context, job *meta.Job) error {
		notified = append(notified, "second:"+job.ID)
		return nil
	})

	require.NoError(t, service.MarkFinished(ctx, "job1"))

	stored, err := table.Get(ctx, "job1")
	require.NoError(t, err)
	assert.True(t, stored.Finished)
	assert.Equal(t, []string{"first:job1", "second:job1"}, notified)

	// a retried completion is a no-op and must not notify again
	require.NoError(t, service.MarkFinished(ctx, "job1"))
	assert.Len(t, notified, 2)
}

func TestMarkFinishedUnknownJob(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newService(t)

	require.Error(t, service.MarkFinished(ctx, "never-added"))
}

func TestListenerIsolation(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newService(t)

	require.NoError(t, service.Add(ctx, &meta.Job{ID: "job1"}))

	var survived bool
	service.AddFinishedListener(func(ctx context.Context, job *meta.Job) error {
		panic("listener bug")
	})
	service.AddFinishedListener(func(ctx context.Context, job *meta.Job) error {
		return errs.New("listener failure")
	})
	service.AddFinishedListener(func(ctx context.Context, job *meta.Job) error {
		survived = true
		return nil
	})

	require.NoError(t, service.MarkFinished(ctx, "job1"))
	assert.True(t, survived)
}

type recordingSink struct {
	eligible []string
}

func (sink *recordingSink) EnqueueDeletionEligible(packageID string) {
	sink.eligible = append(sink.eligible, packageID)
}

// TestSharedBundleRelease wires the service to a real tracker the way
// the peer does and walks two jobs sharing one bundle to completion.
func TestSharedBundleRelease(t *testing.T) {
	ctx := context.Background()

	sink := &recordingSink{}
	tracker := refcount.NewTracker(zaptest.NewLogger(t), sink)
	service := jobs.NewService(zaptest.NewLogger(t), meta.NewJobs(teststore.New()), tracker)
	service.AddFinishedListener(func(ctx context.Context, job *meta.Job) error {
		return tracker.Decrement(ctx, job.ID)
	})

	env := meta.RuntimeEnv{WorkingDir: "s3://bundleX"}
	require.NoError(t, service.Add(ctx, &meta.Job{ID: "job1", RuntimeEnv: env}))
	require.NoError(t, service.Add(ctx, &meta.Job{ID: "job2", RuntimeEnv: env}))

	require.NoError(t, service.MarkFinished(ctx, "job1"))
	assert.Empty(t, sink.eligible)

	require.NoError(t, service.MarkFinished(ctx, "job2"))
	assert.Equal(t, []string{"s3://bundleX"}, sink.eligible)
}
