package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_CreateAndGet(t *testing.T) {
	r := NewRegistry()
	s, mb := r.Create("cp-1", Template{ChargePointID: "CP-1"})
	require.NotNil(t, s)
	require.NotNil(t, mb)

	got, gotMb, ok := r.Get("cp-1")
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Same(t, mb, gotMb)
}

func TestRegistry_CreatePropagatesRecorderAndPersist(t *testing.T) {
	r := NewRegistry()
	rec := &recordingRecorder{}
	wr := &recordingWriter{}
	r.Recorder = rec
	r.Persist = wr

	s, _ := r.Create("cp-1", Template{ChargePointID: "CP-1"})
	assert.Same(t, rec, s.Recorder)
	assert.Same(t, wr, s.Persist)
}

func TestRegistry_GetMissing(t *testing.T) {
	r := NewRegistry()
	_, _, ok := r.Get("nope")
	assert.False(t, ok)
}

func TestRegistry_Delete(t *testing.T) {
	r := NewRegistry()
	r.Create("cp-1", Template{ChargePointID: "CP-1"})

	assert.True(t, r.Delete("cp-1"))
	_, _, ok := r.Get("cp-1")
	assert.False(t, ok)
	assert.False(t, r.Delete("cp-1"))
}

func TestRegistry_List(t *testing.T) {
	r := NewRegistry()
	r.Create("cp-2", Template{})
	r.Create("cp-1", Template{})
	r.Create("cp-3", Template{})

	assert.Equal(t, []string{"cp-1", "cp-2", "cp-3"}, r.List())
}

func TestRegistry_CreateBatch(t *testing.T) {
	r := NewRegistry()
	ids := r.CreateBatch(5, "cp-", func(i int) string { return fmt.Sprintf("%03d", i) }, Template{})
	assert.Len(t, ids, 5)
	assert.Equal(t, 5, len(r.List()))
}

func TestRegistry_ConnectAllAndBootAll(t *testing.T) {
	r := NewRegistry()
	r.CreateBatch(10, "cp-", func(i int) string { return fmt.Sprintf("%d", i) }, Template{})

	connectResult := r.ConnectAll()
	assert.Equal(t, 10, connectResult.Attempted)
	assert.Equal(t, 10, connectResult.Succeeded)
	assert.Equal(t, 0, connectResult.Failed)
	assert.Len(t, r.ListByState(StateBooting), 10)

	bootResult := r.BootAll(45)
	assert.Equal(t, 10, bootResult.Succeeded)
	assert.Len(t, r.ListByState(StateAvailable), 10)
}

func TestRegistry_StartAllThenStopAll(t *testing.T) {
	r := NewRegistry()
	r.CreateBatch(3, "cp-", func(i int) string { return fmt.Sprintf("%d", i) }, Template{})
	r.ConnectAll()
	r.BootAll(30)

	startResult := r.StartAll(1000)
	assert.Equal(t, 3, startResult.Attempted)
	assert.Equal(t, 3, startResult.Succeeded)
	assert.Len(t, r.ListCharging(), 3)

	stopResult := r.StopAll()
	assert.Equal(t, 3, stopResult.Succeeded)
	assert.Len(t, r.ListCharging(), 0)
	assert.Len(t, r.ListByState(StateAvailable), 3)
}

func TestRegistry_FanOutNeverAbortsOnSingleFailure(t *testing.T) {
	r := NewRegistry()
	r.CreateBatch(3, "cp-", func(i int) string { return fmt.Sprintf("%d", i) }, Template{})
	// None of these are CHARGING, so StopAll must report zero attempts
	// without error, not fail the whole batch.
	result := r.StopAll()
	assert.Equal(t, 0, result.Attempted)

	// One session's op failing is recorded against that id only; the other
	// sessions in the batch still run.
	result = r.fanOut(r.List(), func(s *Session) error {
		if s.ID == "cp-1" {
			return errUnknownSession
		}
		return nil
	})
	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, []string{"cp-1"}, result.FailedIDs)
}

func TestRegistry_DeleteDisconnected(t *testing.T) {
	r := NewRegistry()
	r.CreateBatch(4, "cp-", func(i int) string { return fmt.Sprintf("%d", i) }, Template{})
	// freshly created sessions are DISCONNECTED
	removed := r.DeleteDisconnected()
	assert.Equal(t, 4, removed)
	assert.Len(t, r.List(), 0)
}

func TestRegistry_Snapshots(t *testing.T) {
	r := NewRegistry()
	r.CreateBatch(3, "cp-", func(i int) string { return fmt.Sprintf("%d", i) }, Template{})
	snaps := r.Snapshots()
	assert.Len(t, snaps, 3)
}

func TestRegistry_DisconnectAllAbortsTransactions(t *testing.T) {
	r := NewRegistry()
	r.Create("cp-1", Template{})
	s, mb, _ := r.Get("cp-1")
	mb.PostAndWait(func(s *Session) {
		s.OnSocketOpen()
		s.OnBootAccepted(30)
		_ = s.OnPlugIn()
		_ = s.OnTransactionStarted(99, s.ChargeStart)
	})
	require.NotNil(t, s.TransactionID)

	r.DisconnectAll()
	assert.Nil(t, s.TransactionID)
	assert.Equal(t, StateDisconnected, s.State)
}
