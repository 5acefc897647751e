// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

// Package gc sweeps stored packages for ones no live job or actor
// references anymore and re-announces their deletion eligibility. The
// sweep backstops the event path: an announcement dropped there is
// picked up again on the next cycle.
package gc

import (
	"context"
	"time"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"github.com/stower/stower/internal/sync2"
	"github.com/stower/stower/pkg/meta"
	"github.com/stower/stower/pkg/refcount"
)

var (
	// Error is the default gc error class.
	Error = errs.Class("gc")

	mon = monkit.Package()
)

// Config configures the garbage collection sweeper.
type Config struct {
	Interval time.Duration `help:"how often to sweep stored packages for unreferenced ones" default:"10m"`
	MinAge   time.Duration `help:"how long a package must exist before the sweeper may flag it" default:"1h"`
}

// Packages enumerates stored package records by identity.
type Packages interface {
	All(ctx context.Context) (map[string]*meta.Package, error)
}

// Counts reports the live reference count of a package.
type Counts interface {
	Count(packageID string) int64
}

// Sweeper periodically flags unreferenced packages for deletion.
type Sweeper struct {
	log      *zap.Logger
	packages Packages
	counts   Counts
	sink     refcount.DeletionSink
	config   Config

	Loop *sync2.Cycle
}

// NewSweeper creates a Sweeper.
func NewSweeper(log *zap.Logger, packages Packages, counts Counts, sink refcount.DeletionSink, config Config) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = 10 * time.Minute
	}
	return &Sweeper{
		log:      log,
		packages: packages,
		counts:   counts,
		sink:     sink,
		config:   config,
		Loop:     sync2.NewCycle(config.Interval),
	}
}

// Run sweeps on every cycle until ctx is canceled. An enumeration
// failure is logged and retried on the next cycle, never fatal.
func (sweeper *Sweeper) Run(ctx context.Context) error {
	return sweeper.Loop.Run(ctx, func(ctx context.Context) error {
		if err := sweeper.Sweep(ctx); err != nil {
			sweeper.log.Error("sweep failed", zap.Error(err))
		}
		return nil
	})
}

// Sweep runs a single pass over the stored packages. A package is
// flagged when it is old enough, not pinned, and has no live
// references.
func (sweeper *Sweeper) Sweep(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	all, err := sweeper.packages.All(ctx)
	if err != nil {
		return Error.Wrap(err)
	}

	cutoff := time.Now().Add(-sweeper.config.MinAge).Unix()
	flagged := 0
	for id, pkg := range all {
		if pkg.SkipGC {
			continue
		}
		if pkg.CreatedAt > cutoff {
			continue
		}
		if sweeper.counts.Count(id) > 0 {
			continue
		}
		sweeper.sink.EnqueueDeletionEligible(id)
		flagged++
	}

	mon.IntVal("gc_sweep_flagged").Observe(int64(flagged))
	sweeper.log.Debug("sweep finished",
		zap.Int("packages", len(all)),
		zap.Int("flagged", flagged))
	return nil
}
