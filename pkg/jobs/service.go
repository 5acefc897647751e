// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

// Package jobs manages the durable job records of the cluster and
// notifies interested parties when a job finishes.
package jobs

import (
	"context"
	"sync"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"github.com/stower/stower/pkg/meta"
	"github.com/stower/stower/storage"
)

var (
	// Error is the default jobs error class.
	Error = errs.Class("jobs")

	mon = monkit.Package()
)

// References records package references on behalf of admitted jobs.
type References interface {
	Increment(ctx context.Context, ownerID, packageID string) error
}

// FinishedListener is called after a job has been durably marked
// finished. Listeners run in registration order; a listener's error or
// panic is logged and never reaches the other listeners or the caller.
type FinishedListener func(ctx context.Context, job *meta.Job) error

// Service admits jobs into the cluster and drives their completion.
// One mutex serializes admission and completion, so the exists check in
// Add and the finished check in MarkFinished stay atomic with their
// writes.
type Service struct {
	log   *zap.Logger
	table *meta.Jobs
	refs  References

	mu        sync.Mutex
	listeners []FinishedListener
}

// NewService creates a job service over the given table.
func NewService(log *zap.Logger, table *meta.Jobs, refs References) *Service {
	return &Service{
		log:   log,
		table: table,
		refs:  refs,
	}
}

// Add admits a new job: the record is persisted first, then its package
// reference is recorded. A crash between the two is safe, the reference
// is rebuilt from the record at recovery. Job IDs are never reused
// while a record exists, so admitting a duplicate is an error.
func (service *Service) Add(ctx context.Context, job *meta.Job) (err error) {
	defer mon.Task()(&ctx)(&err)

	if job.ID == "" {
		return Error.New("missing job id")
	}

	service.mu.Lock()
	defer service.mu.Unlock()

	_, err = service.table.Get(ctx, job.ID)
	if err == nil {
		return Error.New("job %q already exists", job.ID)
	}
	if !storage.ErrKeyNotFound.Has(err) {
		return Error.Wrap(err)
	}

	if err := service.table.Put(ctx, job); err != nil {
		return Error.Wrap(err)
	}
	if err := service.refs.Increment(ctx, job.ID, job.RuntimeEnv.WorkingDir); err != nil {
		return Error.Wrap(err)
	}

	service.log.Info("job added",
		zap.String("job", job.ID),
		zap.String("package", job.RuntimeEnv.WorkingDir))
	return nil
}

// Get looks up a job record by ID.
func (service *Service) Get(ctx context.Context, id string) (*meta.Job, error) {
	return service.table.Get(ctx, id)
}

// All enumerates every job record.
func (service *Service) All(ctx context.Context) ([]*meta.Job, error) {
	return service.table.All(ctx)
}

// AddFinishedListener registers a listener for job completion.
// Registration order is notification order.
func (service *Service) AddFinishedListener(listener FinishedListener) {
	service.mu.Lock()
	defer service.mu.Unlock()
	service.listeners = append(service.listeners, listener)
}

// MarkFinished durably marks a job finished and then notifies the
// registered listeners. Marking an already finished job is a no-op and
// does not notify again, so retried completions stay safe. An unknown
// job is an error.
func (service *Service) MarkFinished(ctx context.Context, id string) (err error) {
	defer mon.Task()(&ctx)(&err)

	service.mu.Lock()
	defer service.mu.Unlock()

	job, err := service.table.Get(ctx, id)
	if err != nil {
		return Error.Wrap(err)
	}
	if job.Finished {
		service.log.Debug("job already finished", zap.String("job", id))
		return nil
	}

	job.Finished = true
	if err := service.table.Put(ctx, job); err != nil {
		return Error.Wrap(err)
	}

	service.log.Info("job finished", zap.String("job", id))
	for _, listener := range service.listeners {
		service.notify(ctx, listener, job)
	}
	return nil
}

func (service *Service) notify(ctx context.Context, listener FinishedListener, job *meta.Job) {
	defer func() {
		if rec := recover(); rec != nil {
			mon.Counter("job_listener_panics").Inc(1)
			service.log.Error("job finished listener panicked",
				zap.String("job", job.ID),
				zap.Any("panic", rec))
		}
	}()

	if err := listener(ctx, job); err != nil {
		service.log.Error("job finished listener failed",
			zap.String("job", job.ID),
			zap.Error(err))
	}
}
