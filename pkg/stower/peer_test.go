// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

package stower_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stower/stower/internal/testcontext"
	"github.com/stower/stower/pkg/meta"
	"github.com/stower/stower/pkg/stower"
)

func testConfig(ctx *testcontext.Context) stower.Config {
	return stower.Config{
		Database: "bolt://" + ctx.File("stower.db"),
	}
}

func TestPeerSurvivesRestart(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	config := testConfig(ctx)
	peer, err := stower.New(zaptest.NewLogger(t), config)
	require.NoError(t, err)

	env := meta.RuntimeEnv{WorkingDir: "s3://bundleX"}
	require.NoError(t, peer.Jobs.Add(ctx, &meta.Job{ID: "job1", RuntimeEnv: env}))
	require.NoError(t, peer.Jobs.Add(ctx, &meta.Job{ID: "job2", RuntimeEnv: env}))
	require.NoError(t, peer.Actors.Add(ctx, &meta.Actor{ID: "actor1", JobID: "job1", State: meta.ActorAlive, RuntimeEnv: env}))
	require.NoError(t, peer.Jobs.MarkFinished(ctx, "job1"))
	require.NoError(t, peer.Close())

	// a restarted peer rebuilds the counts from the tables
	peer, err = stower.New(zaptest.NewLogger(t), config)
	require.NoError(t, err)
	defer func() { require.NoError(t, peer.Close()) }()

	require.NoError(t, peer.Tracker.Recover(ctx, peer.Meta))
	assert.EqualValues(t, 2, peer.Tracker.Count("s3://bundleX"))

	require.NoError(t, peer.Jobs.MarkFinished(ctx, "job2"))
	require.NoError(t, peer.Actors.SetState(ctx, "actor1", meta.ActorDead))
	assert.EqualValues(t, 0, peer.Tracker.Count("s3://bundleX"))
}

func TestPeerRun(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	peer, err := stower.New(zaptest.NewLogger(t), testConfig(ctx))
	require.NoError(t, err)
	defer func() { require.NoError(t, peer.Close()) }()

	runCtx, cancel := context.WithCancel(ctx)
	ctx.Go(func() error { return peer.Run(runCtx) })
	cancel()
}

func TestPeerRejectsUnknownScheme(t *testing.T) {
	_, err := stower.New(zaptest.NewLogger(t), stower.Config{Database: "postgres://localhost"})
	require.Error(t, err)
}
