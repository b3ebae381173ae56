package session

import (
	"errors"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/charging-platform/fleet-simulator/internal/persist"
	"github.com/charging-platform/fleet-simulator/internal/tnr"
)

// registryShardCount keeps lock contention low for a fleet in the
// thousands without per-session locks.
const registryShardCount = 32

var errUnknownSession = errors.New("session: unknown id")

type registryShard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	mailbox  map[string]*Mailbox
}

// Registry is the concurrent, sharded fleet directory of spec.md §4.11: the
// single place that knows about every Session and its Mailbox.
type Registry struct {
	shards []*registryShard

	// Recorder and Persist are assigned to every session this registry
	// creates, so a single TNR sink / persistence writer can be armed for
	// the whole fleet without threading them through Template. Default to
	// the no-op implementations so an unconfigured Registry behaves like
	// before these were introduced.
	Recorder tnr.Recorder
	Persist  persist.Writer
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	r := &Registry{
		shards:   make([]*registryShard, registryShardCount),
		Recorder: tnr.NoopRecorder{},
		Persist:  persist.NoopWriter{},
	}
	for i := range r.shards {
		r.shards[i] = &registryShard{
			sessions: make(map[string]*Session),
			mailbox:  make(map[string]*Mailbox),
		}
	}
	return r
}

func (r *Registry) shardFor(id string) *registryShard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return r.shards[h.Sum32()%uint32(len(r.shards))]
}

// Create adds a new Session built from tmpl under id, starts its mailbox,
// and returns both.
func (r *Registry) Create(id string, tmpl Template) (*Session, *Mailbox) {
	s := New(id, tmpl)
	s.Recorder = r.Recorder
	s.Persist = r.Persist
	mb := NewMailbox(s)
	mb.Start()

	shard := r.shardFor(id)
	shard.mu.Lock()
	shard.sessions[id] = s
	shard.mailbox[id] = mb
	shard.mu.Unlock()

	return s, mb
}

// Get returns the session and mailbox for id, if present.
func (r *Registry) Get(id string) (*Session, *Mailbox, bool) {
	shard := r.shardFor(id)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	s, ok := shard.sessions[id]
	if !ok {
		return nil, nil, false
	}
	return s, shard.mailbox[id], true
}

// Delete stops id's mailbox and removes it from the registry. Returns false
// if id was not present.
func (r *Registry) Delete(id string) bool {
	shard := r.shardFor(id)
	shard.mu.Lock()
	mb, ok := shard.mailbox[id]
	if !ok {
		shard.mu.Unlock()
		return false
	}
	delete(shard.sessions, id)
	delete(shard.mailbox, id)
	shard.mu.Unlock()

	mb.Stop()
	return true
}

// List returns every session id in the registry, sorted for stable output.
func (r *Registry) List() []string {
	var ids []string
	for _, shard := range r.shards {
		shard.mu.RLock()
		for id := range shard.sessions {
			ids = append(ids, id)
		}
		shard.mu.RUnlock()
	}
	sort.Strings(ids)
	return ids
}

// Snapshots returns a Snapshot of every session, sorted by id. Each
// snapshot is taken through the owning mailbox so it reflects a
// consistent, race-free view of that session's state.
func (r *Registry) Snapshots() []Snapshot {
	ids := r.List()
	out := make([]Snapshot, 0, len(ids))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, id := range ids {
		s, mb, ok := r.Get(id)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(s *Session, mb *Mailbox) {
			defer wg.Done()
			mb.PostAndWait(func(s *Session) {
				snap := s.Snapshot()
				mu.Lock()
				out = append(out, snap)
				mu.Unlock()
			})
		}(s, mb)
	}
	wg.Wait()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListByState returns the ids of every session currently in state st.
func (r *Registry) ListByState(st State) []string {
	return r.filterIDs(func(s *Session) bool { return s.State == st })
}

// ListCharging returns the ids of every session currently CHARGING.
func (r *Registry) ListCharging() []string {
	return r.ListByState(StateCharging)
}

// ListConnected returns the ids of every session not DISCONNECTED.
func (r *Registry) ListConnected() []string {
	return r.filterIDs(func(s *Session) bool { return s.State != StateDisconnected })
}

func (r *Registry) filterIDs(pred func(*Session) bool) []string {
	ids := r.List()
	matched := make([]string, 0, len(ids))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, id := range ids {
		s, mb, ok := r.Get(id)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(id string, s *Session, mb *Mailbox) {
			defer wg.Done()
			mb.PostAndWait(func(s *Session) {
				if pred(s) {
					mu.Lock()
					matched = append(matched, id)
					mu.Unlock()
				}
			})
		}(id, s, mb)
	}
	wg.Wait()
	sort.Strings(matched)
	return matched
}

// BatchResult summarises a fan-out command issued across many sessions, per
// spec.md §4.11: no single session's failure aborts the batch.
type BatchResult struct {
	Attempted int
	Succeeded int
	Failed    int
	FailedIDs []string
}

// CreateBatch creates n sessions from tmpl, assigning each a generated id
// built from idPrefix, and returns the created ids.
func (r *Registry) CreateBatch(n int, idPrefix string, nextSuffix func(i int) string, tmpl Template) []string {
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := idPrefix + nextSuffix(i)
		r.Create(id, tmpl)
		ids = append(ids, id)
	}
	return ids
}

// fanOut runs op against every session named in ids concurrently,
// collecting a BatchResult. A panic or returned error from one session's op
// is recorded as a failure and never aborts the others.
func (r *Registry) fanOut(ids []string, op func(*Session) error) BatchResult {
	result := BatchResult{Attempted: len(ids)}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, id := range ids {
		s, mb, ok := r.Get(id)
		if !ok {
			mu.Lock()
			result.Failed++
			result.FailedIDs = append(result.FailedIDs, id)
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(id string, s *Session, mb *Mailbox) {
			defer wg.Done()
			var opErr error
			// op runs on the mailbox goroutine, so the recover must be
			// installed there to catch its panic.
			mb.PostAndWait(func(s *Session) {
				defer func() {
					if rec := recover(); rec != nil {
						opErr = errUnknownSession
					}
				}()
				opErr = op(s)
			})

			mu.Lock()
			if opErr != nil {
				result.Failed++
				result.FailedIDs = append(result.FailedIDs, id)
			} else {
				result.Succeeded++
			}
			mu.Unlock()
		}(id, s, mb)
	}
	wg.Wait()

	sort.Strings(result.FailedIDs)
	return result
}

// ConnectAll issues OnSocketOpen to every registered session.
func (r *Registry) ConnectAll() BatchResult {
	return r.fanOut(r.List(), func(s *Session) error {
		s.OnSocketOpen()
		return nil
	})
}

// DisconnectAll issues OnDisconnect to every registered session.
func (r *Registry) DisconnectAll() BatchResult {
	return r.fanOut(r.List(), func(s *Session) error {
		s.OnDisconnect()
		return nil
	})
}

// BootAll accepts BootNotification (heartbeatIntervalSeconds as given) for
// every session currently BOOTING.
func (r *Registry) BootAll(heartbeatIntervalSeconds int) BatchResult {
	return r.fanOut(r.ListByState(StateBooting), func(s *Session) error {
		s.OnBootAccepted(heartbeatIntervalSeconds)
		return nil
	})
}

// StartAll starts a transaction on every session that can legally start
// one, assigning sequential transaction ids beginning at firstTransactionID.
func (r *Registry) StartAll(firstTransactionID int) BatchResult {
	ids := r.filterIDs(func(s *Session) bool { return s.CanStartTransaction() })
	txID := firstTransactionID
	var mu sync.Mutex
	return r.fanOut(ids, func(s *Session) error {
		mu.Lock()
		assigned := txID
		txID++
		mu.Unlock()
		return s.OnTransactionStarted(assigned, time.Now().UTC())
	})
}

// StopAll stops the transaction on every currently CHARGING session.
func (r *Registry) StopAll() BatchResult {
	return r.fanOut(r.ListCharging(), func(s *Session) error {
		return s.OnTransactionStopped()
	})
}

// DeleteDisconnected removes every DISCONNECTED session from the registry,
// returning the number removed.
func (r *Registry) DeleteDisconnected() int {
	ids := r.ListByState(StateDisconnected)
	removed := 0
	for _, id := range ids {
		if r.Delete(id) {
			removed++
		}
	}
	return removed
}
