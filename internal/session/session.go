// Package session implements the per-station state machine (C4), its
// serialised mailbox, and the concurrent registry (C11) described in
// spec.md §3, §4.4, §4.11 and §5.
package session

import (
	"sync"
	"time"

	"github.com/charging-platform/fleet-simulator/internal/ocpp"
	"github.com/charging-platform/fleet-simulator/internal/persist"
	"github.com/charging-platform/fleet-simulator/internal/physics"
	"github.com/charging-platform/fleet-simulator/internal/tnr"
	"github.com/charging-platform/fleet-simulator/internal/vehicle"
)

// State is one of the session lifecycle states of spec.md §4.4.
type State string

const (
	StateDisconnected  State = "DISCONNECTED"
	StateBooting       State = "BOOTING"
	StateAvailable     State = "AVAILABLE"
	StatePreparing     State = "PREPARING"
	StateReserved      State = "RESERVED"
	StateCharging      State = "CHARGING"
	StateSuspendedEV   State = "SUSPENDED_EV"
	StateSuspendedEVSE State = "SUSPENDED_EVSE"
	StateFinishing     State = "FINISHING"
	StateFaulted       State = "FAULTED"
	StateUnavailable   State = "UNAVAILABLE"
)

// ocppStatus maps a session State to the connector status vocabulary
// emitted in StatusNotification, per spec.md §4.4's transition table.
func (s State) ocppStatus() ocpp.ChargePointStatus {
	switch s {
	case StateAvailable:
		return ocpp.StatusAvailable
	case StatePreparing:
		return ocpp.StatusPreparing
	case StateReserved:
		return ocpp.StatusReserved
	case StateCharging:
		return ocpp.StatusCharging
	case StateSuspendedEV:
		return ocpp.StatusSuspendedEV
	case StateSuspendedEVSE:
		return ocpp.StatusSuspendedEVSE
	case StateFinishing:
		return ocpp.StatusFinishing
	case StateFaulted:
		return ocpp.StatusFaulted
	case StateUnavailable:
		return ocpp.StatusUnavailable
	default:
		return ocpp.StatusUnavailable
	}
}

// LogEntry is one ring-buffered log line, spec.md §3.
type LogEntry struct {
	Timestamp time.Time
	Level     string
	Source    string
	Message   string
}

// Direction distinguishes inbound from outbound OCPP message records.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// MessageRecord is one ring-buffered OCPP message record, spec.md §3.
type MessageRecord struct {
	Timestamp time.Time
	Direction Direction
	Type      ocpp.MessageType
	Action    ocpp.Action
	UniqueID  string
	Payload   interface{}
}

const ringBufferCapacity = 500

// ring is a fixed-capacity circular buffer, replacing the teacher's
// repeated list-slicing truncation per spec.md §9's redesign note.
type ring[T any] struct {
	buf   []T
	start int
	count int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{buf: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	idx := (r.start + r.count) % len(r.buf)
	r.buf[idx] = v
	if r.count < len(r.buf) {
		r.count++
	} else {
		r.start = (r.start + 1) % len(r.buf)
	}
}

func (r *ring[T]) items() []T {
	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Template is the creation-time configuration for a new Session, mirroring
// the "create" control-surface operation of spec.md §6.
type Template struct {
	ChargePointID    string
	CSMSURL          string
	BearerToken      string
	ConnectorID      int
	VendorID         string
	Model            string
	FirmwareVersion  string
	HeartbeatSeconds int
	MeterValueSeconds int
	ClockAlignedSeconds int
	VehicleProfile   vehicle.Profile
	ChargerType      vehicle.ChargerType
	IdTag            string
	InitialSoC       float64
	TargetSoC        float64
}

// Session is the per-station runtime state of spec.md §3. Every field here
// is mutated only by the owning mailbox goroutine (spec.md §5); external
// callers only ever reach it through a Task delivered to the mailbox.
type Session struct {
	ID            string
	ChargePointID string
	CSMSURL       string
	Subprotocol   string
	BearerToken   string

	ConnectorID     int
	VendorID        string
	Model           string
	FirmwareVersion string

	HeartbeatIntervalSeconds    int
	MeterValueIntervalSeconds   int
	ClockAlignedIntervalSeconds int
	ConnectionTimeoutSeconds    int
	MeterValuesSampledData     []ocpp.Measurand

	State State

	TransactionID *int
	IdTag         string

	ReservationID     *int
	ReservationIdTag  string
	ReservationExpiry time.Time

	TargetSoC float64

	VehicleProfile vehicle.Profile
	ChargerType    vehicle.ChargerType
	Physics        physics.State

	ChargeStart time.Time

	// TransactionSamples accumulates every MeterValue sent while this
	// transaction is CHARGING, so StopTransaction can report
	// transactionData (spec.md §4.6). Cleared on StartTransaction and on
	// StopTransaction.
	TransactionSamples []ocpp.MeterValue

	Profiles []ocpp.ChargingProfile

	LastErrorCode ocpp.ChargePointErrorCode

	// Recorder is the TNR hook of spec.md §4.10: every state transition is
	// forwarded to it. Defaults to tnr.NoopRecorder so recording is opt-in.
	Recorder tnr.Recorder
	// Persist is the narrow write-through of spec.md §6. Defaults to
	// persist.NoopWriter so persistence is opt-in.
	Persist persist.Writer

	logs     *ring[LogEntry]
	messages *ring[MessageRecord]

	mu sync.RWMutex // guards only the ring buffers, which are read by observers outside the mailbox
}

// New builds a freshly created, DISCONNECTED Session from a Template. The
// registry is the only expected caller (spec.md §4.11 create).
func New(id string, tmpl Template) *Session {
	connectorID := tmpl.ConnectorID
	if connectorID == 0 {
		connectorID = 1
	}
	heartbeat := tmpl.HeartbeatSeconds
	if heartbeat == 0 {
		heartbeat = 300
	}
	meterInterval := tmpl.MeterValueSeconds
	if meterInterval == 0 {
		meterInterval = 60
	}
	targetSoC := tmpl.TargetSoC
	if targetSoC <= 0 {
		targetSoC = 100
	}

	s := &Session{
		ID:                          id,
		ChargePointID:               tmpl.ChargePointID,
		CSMSURL:                     tmpl.CSMSURL,
		Subprotocol:                 "ocpp1.6",
		BearerToken:                 tmpl.BearerToken,
		ConnectorID:                 connectorID,
		VendorID:                    tmpl.VendorID,
		Model:                       tmpl.Model,
		FirmwareVersion:             tmpl.FirmwareVersion,
		HeartbeatIntervalSeconds:    heartbeat,
		MeterValueIntervalSeconds:   meterInterval,
		ClockAlignedIntervalSeconds: tmpl.ClockAlignedSeconds,
		ConnectionTimeoutSeconds:    60,
		State:                       StateDisconnected,
		IdTag:                       tmpl.IdTag,
		TargetSoC:                   targetSoC,
		VehicleProfile:              tmpl.VehicleProfile,
		ChargerType:                 tmpl.ChargerType,
		Physics:                     physics.State{SoCPercent: tmpl.InitialSoC},
		Recorder:                    tnr.NoopRecorder{},
		Persist:                     persist.NoopWriter{},
		logs:                        newRing[LogEntry](ringBufferCapacity),
		messages:                    newRing[MessageRecord](ringBufferCapacity),
	}
	return s
}

// Log appends a ring-buffered log entry. Safe to call concurrently with
// observers (ReadLogs); mailbox-internal mutation only, per spec.md §5.
func (s *Session) Log(level, source, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs.push(LogEntry{Timestamp: time.Now().UTC(), Level: level, Source: source, Message: message})
}

// ReadLogs returns a snapshot of the log ring buffer, oldest first.
func (s *Session) ReadLogs() []LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logs.items()
}

// RecordMessage appends a ring-buffered OCPP message record.
func (s *Session) RecordMessage(rec MessageRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages.push(rec)
}

// ReadMessages returns a snapshot of the message ring buffer, oldest first.
func (s *Session) ReadMessages() []MessageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messages.items()
}

// Snapshot is the read-only view pushed to the observable-stream layer of
// spec.md §6 ("Session update").
type Snapshot struct {
	ID            string
	ChargePointID string
	State         State
	SoCPercent    float64
	PowerW        float64
	EnergyWh      float64
	VoltageV      float64
	CurrentA      float64
	TransactionID *int
	ErrorCode     ocpp.ChargePointErrorCode
}

// Snapshot captures the observable fields of the session at this instant.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ID:            s.ID,
		ChargePointID: s.ChargePointID,
		State:         s.State,
		SoCPercent:    s.Physics.SoCPercent,
		PowerW:        s.Physics.PowerW,
		EnergyWh:      s.Physics.EnergyWh,
		VoltageV:      s.Physics.VoltageV,
		CurrentA:      s.Physics.CurrentA,
		TransactionID: s.TransactionID,
		ErrorCode:     s.LastErrorCode,
	}
}

// CurrentOCPPStatus is the StatusNotification status for the session's
// current state.
func (s *Session) CurrentOCPPStatus() ocpp.ChargePointStatus {
	return s.State.ocppStatus()
}
