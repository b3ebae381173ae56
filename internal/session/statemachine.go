package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/charging-platform/fleet-simulator/internal/ocpp"
	"github.com/charging-platform/fleet-simulator/internal/persist"
	"github.com/charging-platform/fleet-simulator/internal/tnr"
)

// StateError reports a command inconsistent with the session's current
// state, per spec.md §7.
type StateError struct {
	From  State
	Event string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("session: %s not valid from state %s", e.Event, e.From)
}

// transition records a from->to state change to both the TNR recorder and
// the persistence writer. Recorder/Persist default to no-ops, so this is
// cheap when neither is armed. Called from within the owning mailbox task,
// so no locking is needed beyond what Session already guarantees.
func (s *Session) transition(from, to State) {
	s.Recorder.Emit(tnr.Event{
		ID:            uuid.NewString(),
		Kind:          tnr.KindTransition,
		Timestamp:     time.Now().UTC(),
		SessionID:     s.ID,
		ChargePointID: s.ChargePointID,
		FromState:     string(from),
		ToState:       string(to),
	})
	if err := s.Persist.Write(context.Background(), persist.Change{
		Kind:      persist.ChangeSession,
		SessionID: s.ID,
		Timestamp: time.Now().UTC(),
		Data:      s.Snapshot(),
	}); err != nil {
		s.Log("WARN", "persist", err.Error())
	}
}

// OnSocketOpen implements "DISCONNECTED -> BOOTING" on socket open,
// spec.md §4.4. The caller (transport) is responsible for triggering the
// BootNotification orchestration once this returns.
func (s *Session) OnSocketOpen() {
	from := s.State
	s.State = StateBooting
	s.transition(from, s.State)
}

// OnBootAccepted implements "BOOTING -> AVAILABLE", adopting the CSMS's
// heartbeat interval. A no-op outside BOOTING.
func (s *Session) OnBootAccepted(heartbeatIntervalSeconds int) {
	if s.State != StateBooting {
		return
	}
	from := s.State
	s.State = StateAvailable
	if heartbeatIntervalSeconds > 0 {
		s.HeartbeatIntervalSeconds = heartbeatIntervalSeconds
	}
	s.transition(from, s.State)
}

// OnBootRejected keeps the session in BOOTING; the caller retries the
// BootNotification after the server's interval.
func (s *Session) OnBootRejected() {
	s.State = StateBooting
}

// OnPlugIn implements "AVAILABLE -> PREPARING" for a local plug-in event.
func (s *Session) OnPlugIn() error {
	if s.State != StateAvailable {
		return &StateError{From: s.State, Event: "plug-in"}
	}
	from := s.State
	s.State = StatePreparing
	s.transition(from, s.State)
	return nil
}

// OnReservationAccepted implements "AVAILABLE -> RESERVED".
func (s *Session) OnReservationAccepted(reservationID int, idTag string, expiry time.Time) error {
	if s.State != StateAvailable {
		return &StateError{From: s.State, Event: "ReserveNow"}
	}
	from := s.State
	s.State = StateReserved
	s.ReservationID = &reservationID
	s.ReservationIdTag = idTag
	s.ReservationExpiry = expiry
	s.transition(from, s.State)
	return nil
}

// OnReservationEnded implements "RESERVED -> AVAILABLE" for either expiry
// or CancelReservation.
func (s *Session) OnReservationEnded() error {
	if s.State != StateReserved {
		return &StateError{From: s.State, Event: "reservation end"}
	}
	from := s.State
	s.State = StateAvailable
	s.ReservationID = nil
	s.ReservationIdTag = ""
	s.ReservationExpiry = time.Time{}
	s.transition(from, s.State)
	return nil
}

// CanStartTransaction reports whether StartTransaction is legal from the
// current state: AVAILABLE or PREPARING, both of which are only reached
// after an accepted BootNotification. Whether an Authorize was accepted is
// not tracked and not checked here.
func (s *Session) CanStartTransaction() bool {
	return s.State == StatePreparing || s.State == StateAvailable
}

// OnTransactionStarted implements "PREPARING -> CHARGING" (AVAILABLE is
// accepted as well, see CanStartTransaction), setting the
// server-assigned transaction id and charge-start timestamp.
func (s *Session) OnTransactionStarted(transactionID int, now time.Time) error {
	if !s.CanStartTransaction() {
		return &StateError{From: s.State, Event: "StartTransaction"}
	}
	from := s.State
	s.State = StateCharging
	s.TransactionID = &transactionID
	s.ChargeStart = now
	s.TransactionSamples = nil
	s.transition(from, s.State)
	return nil
}

// OnTransactionStopped implements "CHARGING -> FINISHING -> AVAILABLE".
// FINISHING is transient: both transitions are recorded (TNR, persist)
// within this one call, and no StatusNotification is sent for either.
func (s *Session) OnTransactionStopped() error {
	if s.TransactionID == nil {
		return &StateError{From: s.State, Event: "StopTransaction"}
	}
	from := s.State
	s.State = StateFinishing
	s.TransactionID = nil
	s.Physics.PowerW = 0
	s.TransactionSamples = nil
	s.transition(from, s.State)
	from = s.State
	s.State = StateAvailable
	s.transition(from, s.State)
	return nil
}

// OnSuspendedEV implements "CHARGING -> SUSPENDED_EV" when the vehicle
// itself stops drawing current (the scheduler's physics step calls it when
// effective power drops to zero below 100% SoC).
func (s *Session) OnSuspendedEV() {
	if s.State != StateCharging {
		return
	}
	from := s.State
	s.State = StateSuspendedEV
	s.transition(from, s.State)
}

// OnChargingResumed implements "SUSPENDED_EV -> CHARGING" once the vehicle
// resumes drawing current.
func (s *Session) OnChargingResumed() {
	if s.State != StateSuspendedEV {
		return
	}
	from := s.State
	s.State = StateCharging
	s.transition(from, s.State)
}

// OnFault implements "any -> FAULTED".
func (s *Session) OnFault(errorCode ocpp.ChargePointErrorCode) {
	from := s.State
	s.State = StateFaulted
	s.LastErrorCode = errorCode
	s.transition(from, s.State)
}

// OnDisconnect implements the transport-driven "any -> DISCONNECTED" path.
// Per the SPEC_FULL.md Open Question decision, a transaction in progress is
// aborted locally rather than resumed: the transaction id is cleared, but
// the energy/SoC counters are preserved in memory.
func (s *Session) OnDisconnect() {
	from := s.State
	s.State = StateDisconnected
	s.TransactionID = nil
	s.transition(from, s.State)
}

// OnResetRequested implements the UNAVAILABLE leg of "any -> UNAVAILABLE ->
// DISCONNECTED -> BOOTING" (spec.md §4.4). The caller (dispatch.handleReset)
// stops any in-flight transaction first, then calls this, then tears down
// the transport; the ordinary onDisconnected/reconnect path carries the
// session the rest of the way to DISCONNECTED and back to BOOTING.
func (s *Session) OnResetRequested() {
	from := s.State
	s.State = StateUnavailable
	s.TransactionID = nil
	s.transition(from, s.State)
}

