// Package persist is the narrow write side of spec.md §6's "persisted
// layout": the core never reads back sessions, charging profiles, or TNR
// scenarios through this package (that's the excluded storage backend's
// job) — it only ever writes deltas through a narrow persist(change)
// interface, so the storage backend is swappable without touching
// session/dispatch code.
package persist

import (
	"context"
	"time"
)

// ChangeKind classifies what a Change snapshots.
type ChangeKind string

const (
	// ChangeSession is a session-lifecycle delta written on every state
	// transition (transaction start/stop, disconnect, ...).
	ChangeSession ChangeKind = "session"
	// ChangeProfile is a charging-profile set/clear delta.
	ChangeProfile ChangeKind = "charging_profile"
)

// Change is one write-through delta. Data is whatever snapshot the
// caller considers current as of Timestamp; the writer is free to
// serialize it however its backend requires.
type Change struct {
	Kind      ChangeKind
	SessionID string
	Timestamp time.Time
	Data      interface{}
}

// Writer is the only persistence surface the core depends on. A
// concrete Writer (RedisWriter, or a test double) is injected at
// startup; nothing upstream of this interface knows what backs it.
type Writer interface {
	Write(ctx context.Context, change Change) error
	Close() error
}

// NoopWriter discards every change. It is useful for runs with
// persistence disabled and for tests that don't care about the write
// side.
type NoopWriter struct{}

func (NoopWriter) Write(ctx context.Context, change Change) error { return nil }
func (NoopWriter) Close() error                                   { return nil }
