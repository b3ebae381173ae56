// Package pending implements the per-session correlation table between an
// outbound CALL and its eventual CALLRESULT/CALLERROR, per spec.md §4.3.
package pending

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charging-platform/fleet-simulator/internal/ocpp"
)

// Default and Boot call timeouts, spec.md §4.3.
const (
	DefaultTimeout = 30 * time.Second
	BootTimeout    = 60 * time.Second
)

// Result is the outcome delivered to a registered call's Future.
type Result struct {
	Payload   interface{}
	ErrorCode string
	Err       error
}

// Future is the one-shot completion handle returned by Register. The
// registering goroutine owns it; the table never blocks waiting on it.
type Future struct {
	ch chan Result
}

// Wait blocks until the call resolves, fails, times out or is cancelled.
func (f *Future) Wait() Result {
	return <-f.ch
}

// Error sentinels surfaced through Result.Err, named per spec.md §7.
var (
	ErrDuplicateID      = fmt.Errorf("pending: duplicate uniqueId")
	ErrTimeout          = fmt.Errorf("pending: timeout")
	ErrCancelled        = fmt.Errorf("pending: cancelled")
	ErrTransportClosed  = fmt.Errorf("pending: transport closed")
)

type entry struct {
	action   ocpp.Action
	deadline time.Time
	future   *Future
}

// Table correlates outbound CALLs to their responses for one session. The
// zero value is not usable; construct with New.
type Table struct {
	mu      sync.Mutex
	entries map[string]*entry
	nextID  int64
}

// New builds an empty pending-call table.
func New() *Table {
	return &Table{entries: make(map[string]*entry)}
}

// NextUniqueID returns the next monotonically increasing decimal uniqueId
// scoped to this table, per spec.md §4.3.
func (t *Table) NextUniqueID() string {
	return strconv.FormatInt(atomic.AddInt64(&t.nextID, 1), 10)
}

// Register creates a pending entry and returns its Future. The call fails
// immediately with ErrDuplicateID if uniqueID is already pending.
func (t *Table) Register(uniqueID string, action ocpp.Action, timeout time.Duration) (*Future, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[uniqueID]; exists {
		return nil, ErrDuplicateID
	}

	future := &Future{ch: make(chan Result, 1)}
	t.entries[uniqueID] = &entry{
		action:   action,
		deadline: time.Now().Add(timeout),
		future:   future,
	}
	return future, nil
}

// Resolve completes a pending call with a CALLRESULT payload. A resolve for
// an unknown uniqueId is a no-op (late response after timeout) and the
// caller is expected to log it.
func (t *Table) Resolve(uniqueID string, payload interface{}) bool {
	e := t.take(uniqueID)
	if e == nil {
		return false
	}
	e.future.deliver(Result{Payload: payload})
	return true
}

// Fail completes a pending call with a CALLERROR. Same late-response policy
// as Resolve.
func (t *Table) Fail(uniqueID, errorCode, description string) bool {
	e := t.take(uniqueID)
	if e == nil {
		return false
	}
	e.future.deliver(Result{ErrorCode: errorCode, Err: fmt.Errorf("%s: %s", errorCode, description)})
	return true
}

// Expire fails every entry whose deadline has passed with ErrTimeout. Meant
// to run on a small tick interval per spec.md §4.7.
func (t *Table) Expire(now time.Time) int {
	t.mu.Lock()
	var expired []*entry
	for id, e := range t.entries {
		if now.After(e.deadline) {
			expired = append(expired, e)
			delete(t.entries, id)
		}
	}
	t.mu.Unlock()

	for _, e := range expired {
		e.future.deliver(Result{Err: ErrTimeout})
	}
	return len(expired)
}

// FailAll completes every pending entry with err — used on session deletion
// (ErrCancelled) and on transport close (ErrTransportClosed).
func (t *Table) FailAll(err error) int {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[string]*entry)
	t.mu.Unlock()

	for _, e := range entries {
		e.future.deliver(Result{Err: err})
	}
	return len(entries)
}

// Len reports the number of calls currently awaiting a response, exposed
// for the "pending-call backlog" metric.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Table) take(uniqueID string) *entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[uniqueID]
	if !ok {
		return nil
	}
	delete(t.entries, uniqueID)
	return e
}

func (f *Future) deliver(r Result) {
	select {
	case f.ch <- r:
	default:
		// Future already delivered or abandoned; never block the table.
	}
}
