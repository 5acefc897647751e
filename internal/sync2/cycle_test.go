// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

package sync2_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/stower/stower/internal/sync2"
)

func TestCycle(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cycle := sync2.NewCycle(time.Hour)

	count := 0
	started := make(chan struct{})

	var group errgroup.Group
	group.Go(func() error {
		return cycle.Run(ctx, func(ctx context.Context) error {
			count++
			if count == 1 {
				close(started)
			}
			return nil
		})
	})

	<-started
	cycle.TriggerWait()
	cycle.TriggerWait()
	cycle.Stop()

	require.NoError(t, group.Wait())
	require.Equal(t, 3, count)
}

func TestCycleCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cycle := sync2.NewCycle(time.Hour)
	err := cycle.Run(ctx, func(ctx context.Context) error { return nil })
	require.Equal(t, context.Canceled, err)
}
