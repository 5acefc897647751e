// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

// Package actors manages the durable actor records of the cluster and
// releases their package references when they die.
package actors

import (
	"context"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"github.com/stower/stower/pkg/meta"
	"github.com/stower/stower/storage"
)

var (
	// Error is the default actors error class.
	Error = errs.Class("actors")

	mon = monkit.Package()
)

// References records and releases package references on behalf of
// admitted actors.
type References interface {
	Increment(ctx context.Context, ownerID, packageID string) error
	Decrement(ctx context.Context, ownerID string) error
}

// Service admits actors into the cluster and tracks their lifecycle.
type Service struct {
	log   *zap.Logger
	table *meta.Actors
	refs  References
}

// NewService creates an actor service over the given table.
func NewService(log *zap.Logger, table *meta.Actors, refs References) *Service {
	return &Service{
		log:   log,
		table: table,
		refs:  refs,
	}
}

// Add admits a new actor: the record is persisted first, then its
// package reference is recorded. Actor IDs are never reused while a
// record exists, so admitting a duplicate is an error, as is admitting
// an actor already in the dead state.
func (service *Service) Add(ctx context.Context, actor *meta.Actor) (err error) {
	defer mon.Task()(&ctx)(&err)

	if actor.ID == "" {
		return Error.New("missing actor id")
	}
	if actor.State == meta.ActorDead {
		return Error.New("actor %q added in terminal state", actor.ID)
	}

	_, err = service.table.Get(ctx, actor.ID)
	if err == nil {
		return Error.New("actor %q already exists", actor.ID)
	}
	if !storage.ErrKeyNotFound.Has(err) {
		return Error.Wrap(err)
	}

	if err := service.table.Put(ctx, actor); err != nil {
		return Error.Wrap(err)
	}
	if err := service.refs.Increment(ctx, actor.ID, actor.RuntimeEnv.WorkingDir); err != nil {
		return Error.Wrap(err)
	}

	service.log.Info("actor added",
		zap.String("actor", actor.ID),
		zap.String("job", actor.JobID),
		zap.String("package", actor.RuntimeEnv.WorkingDir))
	return nil
}

// Get looks up an actor record by ID.
func (service *Service) Get(ctx context.Context, id string) (*meta.Actor, error) {
	return service.table.Get(ctx, id)
}

// All enumerates every actor record.
func (service *Service) All(ctx context.Context) ([]*meta.Actor, error) {
	return service.table.All(ctx)
}

// SetState durably transitions an actor to state. Dead is terminal:
// the transition into it releases the actor's package reference exactly
// once, and every transition attempted on an already dead actor is a
// no-op. An unknown actor is an error.
func (service *Service) SetState(ctx context.Context, id string, state meta.ActorState) (err error) {
	defer mon.Task()(&ctx)(&err)

	actor, err := service.table.Get(ctx, id)
	if err != nil {
		return Error.Wrap(err)
	}
	if actor.State == meta.ActorDead {
		service.log.Debug("actor already dead", zap.String("actor", id))
		return nil
	}
	if actor.State == state {
		return nil
	}

	actor.State = state
	if err := service.table.Put(ctx, actor); err != nil {
		return Error.Wrap(err)
	}

	service.log.Info("actor state changed",
		zap.String("actor", id),
		zap.Stringer("state", state))

	if state == meta.ActorDead {
		if err := service.refs.Decrement(ctx, id); err != nil {
			return Error.Wrap(err)
		}
	}
	return nil
}
