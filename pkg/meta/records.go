// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

// Package meta implements the durable tables holding job, actor and
// package records, on top of a storage.KeyValueStore.
package meta

// RuntimeEnv describes the runtime environment a job or actor was
// admitted with. WorkingDir names the shared code bundle it runs from;
// it is empty when the owner carries no package dependency.
type RuntimeEnv struct {
	WorkingDir string `cbor:"working_dir,omitempty"`
}

// Job is a single job record.
type Job struct {
	ID         string     `cbor:"id"`
	Finished   bool       `cbor:"finished,omitempty"`
	StartedAt  int64      `cbor:"started_at,omitempty"`
	Entrypoint string     `cbor:"entrypoint,omitempty"`
	RuntimeEnv RuntimeEnv `cbor:"runtime_env,omitempty"`
}

// ActorState is the lifecycle state of an actor.
type ActorState uint8

// Actor lifecycle states. ActorDead is terminal.
const (
	ActorPending ActorState = iota
	ActorAlive
	ActorRestarting
	ActorDead
)

// String implements the Stringer interface.
func (state ActorState) String() string {
	switch state {
	case ActorPending:
		return "pending"
	case ActorAlive:
		return "alive"
	case ActorRestarting:
		return "restarting"
	case ActorDead:
		return "dead"
	}
	return "unknown"
}

// Actor is a single actor record.
type Actor struct {
	ID         string     `cbor:"id"`
	JobID      string     `cbor:"job_id,omitempty"`
	State      ActorState `cbor:"state"`
	RuntimeEnv RuntimeEnv `cbor:"runtime_env,omitempty"`
}

// Package is the metadata record of a code bundle. The bundle bytes
// themselves live in the code table; metadata is read far more often
// than code, hence the split.
type Package struct {
	URI       string `cbor:"uri"`
	SkipGC    bool   `cbor:"skip_gc,omitempty"`
	CreatedAt int64  `cbor:"created_at,omitempty"`
}
