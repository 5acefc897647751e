// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

package actors_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stower/stower/pkg/actors"
	"github.com/stower/stower/pkg/meta"
	"github.com/stower/stower/pkg/refcount"
	"github.com/stower/stower/storage/teststore"
)

type recordingSink struct {
	eligible []string
}

func (sink *recordingSink) EnqueueDeletionEligible(packageID string) {
	sink.eligible = append(sink.eligible, packageID)
}

func newService(t *testing.T) (*actors.Service, *refcount.Tracker, *recordingSink) {
	sink := &recordingSink{}
	tracker := refcount.NewTracker(zaptest.NewLogger(t), sink)
	service := actors.NewService(zaptest.NewLogger(t), meta.NewActors(teststore.New()), tracker)
	return service, tracker, sink
}

func TestActorLifecycle(t *testing.T) {
	ctx := context.Background()
	service, tracker, sink := newService(t)

	actor := &meta.Actor{
		ID:         "actor1",
		JobID:      "job1",
		State:      meta.ActorPending,
		RuntimeEnv: meta.RuntimeEnv{WorkingDir: "s3://bundleX"},
	}
	require.NoError(t, service.Add(ctx, actor))
	assert.EqualValues(t, 1, tracker.Count("s3://bundleX"))

	require.NoError(t, service.SetState(ctx, "actor1", meta.ActorAlive))
	require.NoError(t, service.SetState(ctx, "actor1", meta.ActorRestarting))
	require.NoError(t, service.SetState(ctx, "actor1", meta.ActorAlive))
	assert.EqualValues(t, 1, tracker.Count("s3://bundleX"))
	assert.Empty(t, sink.eligible)

	require.NoError(t, service.SetState(ctx, "actor1", meta.ActorDead))
	assert.EqualValues(t, 0, tracker.Count("s3://bundleX"))
	assert.Equal(t, []string{"s3://bundleX"}, sink.eligible)

	got, err := service.Get(ctx, "actor1")
	require.NoError(t, err)
	assert.Equal(t, meta.ActorDead, got.State)
}

func TestDeadIsTerminal(t *testing.T) {
	ctx := context.Background()
	service, tracker, sink := newService(t)

	require.NoError(t, service.Add(ctx, &meta.Actor{
		ID:         "actor1",
		State:      meta.ActorAlive,
		RuntimeEnv: meta.RuntimeEnv{WorkingDir: "pkg"},
	}))
	require.NoError(t, service.SetState(ctx, "actor1", meta.ActorDead))

	// repeated death reports and revival attempts are no-ops
	require.NoError(t, service.SetState(ctx, "actor1", meta.ActorDead))
	require.NoError(t, service.SetState(ctx, "actor1", meta.ActorAlive))

	got, err := service.Get(ctx, "actor1")
	require.NoError(t, err)
	assert.Equal(t, meta.ActorDead, got.State)
	assert.EqualValues(t, 0, tracker.Count("pkg"))
	assert.Len(t, sink.eligible, 1)
}

func TestAddValidation(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newService(t)

	require.Error(t, service.Add(ctx, &meta.Actor{}))
	require.Error(t, service.Add(ctx, &meta.Actor{ID: "actor1", State: meta.ActorDead}))

	require.NoError(t, service.Add(ctx, &meta.Actor{ID: "actor1"}))
	require.Error(t, service.Add(ctx, &meta.Actor{ID: "actor1"}))
}

func TestSetStateUnknownActor(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newService(t)

	require.Error(t, service.SetState(ctx, "never-added", meta.ActorAlive))
}

func TestAll(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newService(t)

	require.NoError(t, service.Add(ctx, &meta.Actor{ID: "actor1"}))
	require.NoError(t, service.Add(ctx, &meta.Actor{ID: "actor2"}))

	all, err := service.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
