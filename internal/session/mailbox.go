package session

import "sync"

// mailboxQueueDepth is the buffered channel size backing one session's
// mailbox; deep enough to absorb a burst of inbound frames and scheduler
// ticks without blocking callers.
const mailboxQueueDepth = 256

// Task is one unit of mailbox work: a closure given exclusive access to the
// session it belongs to. Tasks run strictly in FIFO order on a single
// goroutine, per spec.md §5 — this is what eliminates per-field locking.
type Task func(*Session)

// Mailbox serialises all mutation of one Session onto a single goroutine.
// Inbound frames, outbound send requests, scheduler ticks and state queries
// are all delivered as Tasks.
type Mailbox struct {
	session *Session
	tasks   chan Task
	done    chan struct{}
	once    sync.Once
}

// NewMailbox wraps session in a Mailbox. Call Start to begin draining it.
func NewMailbox(session *Session) *Mailbox {
	return &Mailbox{
		session: session,
		tasks:   make(chan Task, mailboxQueueDepth),
		done:    make(chan struct{}),
	}
}

// Start launches the mailbox's draining goroutine. Safe to call once.
func (m *Mailbox) Start() {
	go m.run()
}

func (m *Mailbox) run() {
	for {
		select {
		case task, ok := <-m.tasks:
			if !ok {
				return
			}
			task(m.session)
		case <-m.done:
			// Drain any already-queued tasks before exiting, so a Post that
			// raced the Stop call is not silently lost.
			for {
				select {
				case task := <-m.tasks:
					task(m.session)
				default:
					return
				}
			}
		}
	}
}

// Post enqueues a task. It never blocks the mailbox loop itself, but can
// block the caller if the queue is full — callers on the hot path should
// prefer PostNonBlocking.
func (m *Mailbox) Post(task Task) {
	m.tasks <- task
}

// PostNonBlocking enqueues a task if the queue has room, reporting whether
// it was accepted; it never blocks the caller.
func (m *Mailbox) PostNonBlocking(task Task) bool {
	select {
	case m.tasks <- task:
		return true
	default:
		return false
	}
}

// PostAndWait enqueues a task and blocks until it has run, for
// synchronous state queries (registry fan-out, control-surface reads).
func (m *Mailbox) PostAndWait(task Task) {
	done := make(chan struct{})
	m.Post(func(s *Session) {
		task(s)
		close(done)
	})
	<-done
}

// Stop drains and halts the mailbox goroutine. Safe to call multiple times.
func (m *Mailbox) Stop() {
	m.once.Do(func() { close(m.done) })
}
