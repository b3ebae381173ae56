package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMailbox_ProcessesTasksInOrder(t *testing.T) {
	s := newTestSession()
	mb := NewMailbox(s)
	mb.Start()
	defer mb.Stop()

	var order []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		mb.Post(func(s *Session) {
			order = append(order, i)
			if i == 4 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("mailbox did not drain in time")
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestMailbox_PostAndWaitBlocksUntilRun(t *testing.T) {
	s := newTestSession()
	mb := NewMailbox(s)
	mb.Start()
	defer mb.Stop()

	mb.PostAndWait(func(s *Session) {
		s.OnSocketOpen()
	})
	assert.Equal(t, StateBooting, s.State)
}

func TestMailbox_PostNonBlockingRejectsWhenFull(t *testing.T) {
	s := newTestSession()
	mb := NewMailbox(s)
	// deliberately never Start()'d: tasks queue but are never drained

	accepted := 0
	for i := 0; i < mailboxQueueDepth+10; i++ {
		if mb.PostNonBlocking(func(s *Session) {}) {
			accepted++
		}
	}
	assert.Equal(t, mailboxQueueDepth, accepted)
}

func TestMailbox_StopDrainsQueuedTasks(t *testing.T) {
	s := newTestSession()
	mb := NewMailbox(s)
	mb.Start()

	ran := make(chan struct{}, 1)
	mb.Post(func(s *Session) { ran <- struct{}{} })
	mb.Stop()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("queued task was dropped on Stop")
	}
}
