package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charging-platform/fleet-simulator/internal/persist"
	"github.com/charging-platform/fleet-simulator/internal/tnr"
)

func newTestSession() *Session {
	return New("s1", Template{ChargePointID: "CP-1"})
}

func TestLifecycle_BootToAvailable(t *testing.T) {
	s := newTestSession()
	assert.Equal(t, StateDisconnected, s.State)

	s.OnSocketOpen()
	assert.Equal(t, StateBooting, s.State)

	s.OnBootAccepted(30)
	assert.Equal(t, StateAvailable, s.State)
	assert.Equal(t, 30, s.HeartbeatIntervalSeconds)
}

func TestLifecycle_AuthorizeThenStart(t *testing.T) {
	s := newTestSession()
	s.OnSocketOpen()
	s.OnBootAccepted(30)
	require.NoError(t, s.OnPlugIn())

	require.True(t, s.CanStartTransaction())
	require.NoError(t, s.OnTransactionStarted(4242, time.Now()))

	assert.Equal(t, StateCharging, s.State)
	require.NotNil(t, s.TransactionID)
	assert.Equal(t, 4242, *s.TransactionID)
}

func TestStopTransaction_RequiresActiveTransaction(t *testing.T) {
	s := newTestSession()
	err := s.OnTransactionStopped()
	assert.Error(t, err)
}

func TestStopTransaction_ReturnsToAvailable(t *testing.T) {
	s := newTestSession()
	s.OnSocketOpen()
	s.OnBootAccepted(30)
	require.NoError(t, s.OnPlugIn())
	require.NoError(t, s.OnTransactionStarted(4242, time.Now()))

	require.NoError(t, s.OnTransactionStopped())
	assert.Equal(t, StateAvailable, s.State)
	assert.Nil(t, s.TransactionID)
}

func TestReservation_ExpiryReturnsToAvailable(t *testing.T) {
	s := newTestSession()
	s.State = StateAvailable

	require.NoError(t, s.OnReservationAccepted(7, "TAG-1", time.Now().Add(5*time.Second)))
	assert.Equal(t, StateReserved, s.State)

	require.NoError(t, s.OnReservationEnded())
	assert.Equal(t, StateAvailable, s.State)
	assert.Nil(t, s.ReservationID)
}

func TestReservation_RejectedWhenNotAvailable(t *testing.T) {
	s := newTestSession()
	s.State = StateCharging

	err := s.OnReservationAccepted(7, "TAG-1", time.Now())
	assert.Error(t, err)
}

func TestDisconnect_AbortsTransactionLocally(t *testing.T) {
	s := newTestSession()
	s.OnSocketOpen()
	s.OnBootAccepted(30)
	require.NoError(t, s.OnPlugIn())
	require.NoError(t, s.OnTransactionStarted(4242, time.Now()))

	s.OnDisconnect()

	assert.Equal(t, StateDisconnected, s.State)
	assert.Nil(t, s.TransactionID)
}

func TestSuspendedEV_RoundTripsToCharging(t *testing.T) {
	s := newTestSession()
	s.OnSocketOpen()
	s.OnBootAccepted(30)
	require.NoError(t, s.OnPlugIn())
	require.NoError(t, s.OnTransactionStarted(4242, time.Now()))

	s.OnSuspendedEV()
	assert.Equal(t, StateSuspendedEV, s.State)

	s.OnChargingResumed()
	assert.Equal(t, StateCharging, s.State)
}

func TestSuspendedEV_NoopOutsideCharging(t *testing.T) {
	s := newTestSession()
	s.OnSuspendedEV()
	assert.Equal(t, StateDisconnected, s.State)
}

func TestChargingResumed_NoopOutsideSuspendedEV(t *testing.T) {
	s := newTestSession()
	s.OnChargingResumed()
	assert.Equal(t, StateDisconnected, s.State)
}

type recordingRecorder struct {
	events []tnr.Event
}

func (r *recordingRecorder) Start() error   { return nil }
func (r *recordingRecorder) Stop() error    { return nil }
func (r *recordingRecorder) IsActive() bool { return true }
func (r *recordingRecorder) Emit(e tnr.Event) {
	r.events = append(r.events, e)
}

type recordingWriter struct {
	changes []persist.Change
}

func (w *recordingWriter) Write(_ context.Context, c persist.Change) error {
	w.changes = append(w.changes, c)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestTransition_RecordsToRecorderAndPersist(t *testing.T) {
	s := newTestSession()
	rec := &recordingRecorder{}
	wr := &recordingWriter{}
	s.Recorder = rec
	s.Persist = wr

	s.OnSocketOpen()

	require.Len(t, rec.events, 1)
	assert.Equal(t, tnr.KindTransition, rec.events[0].Kind)
	assert.Equal(t, string(StateDisconnected), rec.events[0].FromState)
	assert.Equal(t, string(StateBooting), rec.events[0].ToState)

	require.Len(t, wr.changes, 1)
	assert.Equal(t, persist.ChangeSession, wr.changes[0].Kind)
	assert.Equal(t, s.ID, wr.changes[0].SessionID)
}
