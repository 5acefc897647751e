// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

// Package stower assembles the package lifecycle control plane: the
// durable tables, the reference tracker, the job and actor services,
// the bundle store and the garbage collection plumbing.
package stower

import (
	"context"
	"io"
	"net"
	"net/url"
	"strconv"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	monkit "gopkg.in/spacemonkeygo/monkit.v2"

	"github.com/stower/stower/internal/errs2"
	"github.com/stower/stower/pkg/actors"
	"github.com/stower/stower/pkg/debug"
	"github.com/stower/stower/pkg/gc"
	"github.com/stower/stower/pkg/jobs"
	"github.com/stower/stower/pkg/meta"
	"github.com/stower/stower/pkg/packstore"
	"github.com/stower/stower/pkg/refcount"
	"github.com/stower/stower/storage"
	"github.com/stower/stower/storage/boltdb"
	"github.com/stower/stower/storage/redis"
	"github.com/stower/stower/storage/storelogger"
)

var (
	// Error is the default stower error class.
	Error = errs.Class("stower")

	mon = monkit.Package()
)

// metaTables are the bolt buckets and redis database offsets, in order.
var metaTables = []string{"jobs", "actors", "packages", "code"}

// EventsConfig configures the deletion announcement channel.
type EventsConfig struct {
	Addr    string `help:"redis url to announce deletion-eligible packages on, empty disables announcements" default:""`
	Channel string `help:"pub/sub channel for deletion announcements" default:"gc.packages"`
}

// Config is the configuration of a Peer.
type Config struct {
	Database string `help:"metadata storage url (bolt://path or redis://host:port)" default:"bolt://$CONFDIR/stower.db"`

	Events    EventsConfig
	Publisher refcount.PublisherConfig
	Sweeper   gc.Config
	Debug     debug.Config
}

// Peer is the package lifecycle control plane.
type Peer struct {
	Log    *zap.Logger
	Config Config

	Meta *meta.Store

	Events       refcount.EventChannel
	eventsCloser io.Closer

	Tracker   *refcount.Tracker
	Publisher *refcount.Publisher

	Jobs     *jobs.Service
	Actors   *actors.Service
	Packages *packstore.Store
	Sweeper  *gc.Sweeper

	Debug struct {
		Listener net.Listener
		Server   *debug.Server
	}
}

// New creates a Peer from config. Run starts it, Close releases its
// resources.
func New(log *zap.Logger, config Config) (peer *Peer, err error) {
	peer = &Peer{
		Log:    log,
		Config: config,
	}
	defer func() {
		if err != nil {
			err = errs.Combine(err, peer.Close())
			peer = nil
		}
	}()

	stores, err := openTables(config.Database)
	if err != nil {
		return peer, err
	}
	if log.Core().Enabled(zapcore.DebugLevel) {
		for i, store := range stores {
			stores[i] = storelogger.New(log.Named("kv:"+metaTables[i]), store)
		}
	}
	peer.Meta = meta.NewStore(stores[0], stores[1], stores[2], stores[3])

	if config.Events.Addr != "" {
		events, err := redis.NewEventsFrom(config.Events.Addr, config.Events.Channel)
		if err != nil {
			return peer, Error.Wrap(err)
		}
		peer.Events = events
		peer.eventsCloser = events
	} else {
		log.Info("no event channel configured, deletion announcements are logged only")
		peer.Events = loggedEvents{log: log.Named("events")}
	}

	peer.Publisher = refcount.NewPublisher(log.Named("publisher"), peer.Events, config.Publisher)
	peer.Tracker = refcount.NewTracker(log.Named("refcount"), peer.Publisher)

	peer.Jobs = jobs.NewService(log.Named("jobs"), peer.Meta.Jobs(), peer.Tracker)
	peer.Jobs.AddFinishedListener(func(ctx context.Context, job *meta.Job) error {
		return peer.Tracker.Decrement(ctx, job.ID)
	})
	peer.Actors = actors.NewService(log.Named("actors"), peer.Meta.Actors(), peer.Tracker)

	peer.Packages = packstore.NewStore(log.Named("packstore"), peer.Meta.Packages(), peer.Meta.Code())
	peer.Sweeper = gc.NewSweeper(log.Named("gc"), peer.Packages, peer.Tracker, peer.Publisher, config.Sweeper)

	if config.Debug.Address != "" {
		peer.Debug.Listener, err = net.Listen("tcp", config.Debug.Address)
		if err != nil {
			return peer, Error.Wrap(err)
		}
		peer.Debug.Server = debug.NewServer(log.Named("debug"), peer.Debug.Listener, monkit.Default)
	}

	return peer, nil
}

// Run recovers the reference counts from the durable tables and then
// runs the peer's workers until ctx is canceled.
func (peer *Peer) Run(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	if err := peer.Tracker.Recover(ctx, peer.Meta); err != nil {
		return Error.Wrap(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var group errs2.Group
	group.Go(func() error {
		return errs2.IgnoreCanceled(peer.Publisher.Run(ctx))
	})
	group.Go(func() error {
		return errs2.IgnoreCanceled(peer.Sweeper.Run(ctx))
	})
	if peer.Debug.Server != nil {
		group.Go(func() error {
			defer cancel()
			return errs2.IgnoreCanceled(peer.Debug.Server.Run(ctx))
		})
	}
	return Error.Wrap(errs.Combine(group.Wait()...))
}

// Close releases the peer's resources.
func (peer *Peer) Close() error {
	var group errs.Group
	if peer.Debug.Server != nil {
		group.Add(peer.Debug.Server.Close())
	} else if peer.Debug.Listener != nil {
		group.Add(peer.Debug.Listener.Close())
	}
	if peer.eventsCloser != nil {
		group.Add(peer.eventsCloser.Close())
	}
	if peer.Meta != nil {
		group.Add(peer.Meta.Close())
	}
	return Error.Wrap(group.Err())
}

// loggedEvents fills in for the event channel when none is configured.
type loggedEvents struct {
	log *zap.Logger
}

func (events loggedEvents) Publish(ctx context.Context, key string) error {
	events.log.Info("package deletion eligible", zap.String("package", key))
	return nil
}

// openTables opens one key-value store per metadata table from a
// storage url. Bolt tables share one database file; redis tables use
// consecutive database indexes starting at the url's db.
func openTables(database string) (_ []storage.KeyValueStore, err error) {
	u, err := url.Parse(database)
	if err != nil {
		return nil, Error.New("invalid database url: %v", err)
	}

	switch u.Scheme {
	case "bolt":
		path := u.Path
		if u.Host != "" {
			path = u.Host + u.Path
		}
		clients, err := boltdb.NewShared(path, metaTables...)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		stores := make([]storage.KeyValueStore, len(clients))
		for i, client := range clients {
			stores[i] = client
		}
		return stores, nil

	case "redis":
		query := u.Query()
		base := 0
		if s := query.Get("db"); s != "" {
			base, err = strconv.Atoi(s)
			if err != nil {
				return nil, Error.New("invalid database index %q: %v", s, err)
			}
		}
		stores := make([]storage.KeyValueStore, 0, len(metaTables))
		for i := range metaTables {
			query.Set("db", strconv.Itoa(base+i))
			u.RawQuery = query.Encode()
			client, err := redis.NewClientFrom(u.String())
			if err != nil {
				for _, store := range stores {
					err = errs.Combine(err, store.Close())
				}
				return nil, Error.Wrap(err)
			}
			stores = append(stores, client)
		}
		return stores, nil

	default:
		return nil, Error.New("unsupported database scheme %q", u.Scheme)
	}
}
