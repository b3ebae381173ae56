// Package scheduler implements the per-session periodic task runner (C7)
// of spec.md §4.7: heartbeat, meter-values, clock-aligned sampling,
// reservation expiry, the pending-call sweep and the physics step, all
// driven off a single 1-second base tick per session.
package scheduler

import (
	"context"
	"math/rand"
	"time"

	"github.com/charging-platform/fleet-simulator/internal/ocpp"
	"github.com/charging-platform/fleet-simulator/internal/pending"
	"github.com/charging-platform/fleet-simulator/internal/physics"
	"github.com/charging-platform/fleet-simulator/internal/session"
)

// tickPeriod is the scheduler's base resolution; every logical task in
// spec.md §4.7's table is a multiple of it.
const tickPeriod = time.Second

// Hooks is the narrow send/physics surface the scheduler needs from the
// transport and orchestration layers, kept as an interface so this package
// never imports either directly.
type Hooks interface {
	SendHeartbeat(s *session.Session)
	SendMeterValues(s *session.Session, aligned bool)
	SendStatusNotification(s *session.Session)
	ExpireReservation(s *session.Session)
	SendStopTransaction(s *session.Session, reason ocpp.Reason)
}

// Scheduler drives one session's periodic tasks. It owns no state that
// outlives a restart beyond what is already in the Session.
type Scheduler struct {
	session *session.Session
	mailbox *session.Mailbox
	pending *pending.Table
	hooks   Hooks
	rng     *rand.Rand

	heartbeatInFlight bool
}

// New builds a Scheduler for session s, ticking through its mailbox.
func New(s *session.Session, mb *session.Mailbox, pendingTable *pending.Table, hooks Hooks, rng *rand.Rand) *Scheduler {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Scheduler{session: s, mailbox: mb, pending: pendingTable, hooks: hooks, rng: rng}
}

// Run blocks, ticking every tickPeriod until ctx is cancelled. Callers
// launch it in its own goroutine per session.
func (sch *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			sch.tick(now.UTC())
		case <-ctx.Done():
			return
		}
	}
}

// tick runs every scheduler-relevant check for one base tick, posted as a
// single mailbox task so the session's fields are read and written
// consistently with every other mutation.
func (sch *Scheduler) tick(now time.Time) {
	sch.mailbox.PostAndWait(func(s *session.Session) {
		sch.sweepPendingExpiry(now)
		sch.maybeFireHeartbeat(s, now)
		sch.maybeFireMeterValues(s, now)
		sch.maybeFireClockAligned(s, now)
		sch.maybeExpireReservation(s, now)
		sch.maybePhysicsStep(s, now)
	})
}

func (sch *Scheduler) sweepPendingExpiry(now time.Time) {
	sch.pending.Expire(now)
}

// maybeFireHeartbeat coalesces: never more than one Heartbeat outstanding.
func (sch *Scheduler) maybeFireHeartbeat(s *session.Session, now time.Time) {
	if sch.heartbeatInFlight {
		return
	}
	if s.HeartbeatIntervalSeconds <= 0 {
		return
	}
	if !DueEvery(now, s.HeartbeatIntervalSeconds) {
		return
	}
	sch.heartbeatInFlight = true
	sch.hooks.SendHeartbeat(s)
}

// HeartbeatAcked clears the in-flight flag; call this when the
// Heartbeat.conf (or a timeout/failure) resolves.
func (sch *Scheduler) HeartbeatAcked() {
	sch.mailbox.Post(func(*session.Session) { sch.heartbeatInFlight = false })
}

func (sch *Scheduler) maybeFireMeterValues(s *session.Session, now time.Time) {
	if s.State != session.StateCharging {
		return
	}
	if s.MeterValueIntervalSeconds <= 0 {
		return
	}
	if !DueEvery(now, s.MeterValueIntervalSeconds) {
		return
	}
	sch.hooks.SendMeterValues(s, false)
}

func (sch *Scheduler) maybeFireClockAligned(s *session.Session, now time.Time) {
	if s.ClockAlignedIntervalSeconds <= 0 {
		return
	}
	if !WallClockAligned(now, s.ClockAlignedIntervalSeconds) {
		return
	}
	sch.hooks.SendMeterValues(s, true)
}

func (sch *Scheduler) maybeExpireReservation(s *session.Session, now time.Time) {
	if s.State != session.StateReserved || s.ReservationID == nil {
		return
	}
	if now.Before(s.ReservationExpiry) {
		return
	}
	sch.hooks.ExpireReservation(s)
	_ = s.OnReservationEnded()
}

func (sch *Scheduler) maybePhysicsStep(s *session.Session, now time.Time) {
	if s.State != session.StateCharging && s.State != session.StateSuspendedEV {
		return
	}
	conn := smartchargeConnector(s, now)
	in := physics.Input{
		Vehicle:      s.VehicleProfile,
		Charger:      s.ChargerType,
		SmartLimitW:  conn.limitW,
		DeltaSeconds: tickPeriod.Seconds(),
		PhaseVoltage: conn.nominalVoltage,
	}
	offered, effective := physics.Tick(&s.Physics, in, sch.rng)
	_ = offered

	if s.Physics.SoCPercent >= s.TargetSoC {
		sch.hooks.SendStopTransaction(s, ocpp.ReasonLocal)
		return
	}

	if effective < 1e-6 && s.Physics.SoCPercent < 100 {
		if s.State != session.StateSuspendedEV {
			s.OnSuspendedEV()
			sch.hooks.SendStatusNotification(s)
		}
	} else if s.State == session.StateSuspendedEV && effective > 1e-6 {
		s.OnChargingResumed()
		sch.hooks.SendStatusNotification(s)
	}
}

// DueEvery reports whether a task with period intervalSeconds should fire
// at instant now: it fires whenever the epoch second is a multiple of
// intervalSeconds, so every session sharing an interval fires on the same
// wall-clock seconds.
func DueEvery(now time.Time, intervalSeconds int) bool {
	if intervalSeconds <= 0 {
		return false
	}
	return now.Unix()%int64(intervalSeconds) == 0
}

// WallClockAligned implements spec.md §4.7's clock-aligned rule: fire at
// the next UTC instant where epochSeconds % I == 0, then every I
// thereafter.
func WallClockAligned(now time.Time, intervalSeconds int) bool {
	if intervalSeconds <= 0 {
		return false
	}
	return now.Unix()%int64(intervalSeconds) == 0
}

type connectorView struct {
	limitW         float64
	nominalVoltage float64
}

func smartchargeConnector(s *session.Session, now time.Time) connectorView {
	voltage := 230.0
	if s.ChargerType.NominalVoltage > 0 {
		voltage = s.ChargerType.NominalVoltage
	}
	return connectorView{limitW: resolveSmartLimit(s, now), nominalVoltage: voltage}
}
