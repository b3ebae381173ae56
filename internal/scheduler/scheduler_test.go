package scheduler

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charging-platform/fleet-simulator/internal/ocpp"
	"github.com/charging-platform/fleet-simulator/internal/pending"
	"github.com/charging-platform/fleet-simulator/internal/session"
	"github.com/charging-platform/fleet-simulator/internal/vehicle"
)

type fakeHooks struct {
	heartbeats          int
	meterValues         int
	clockAlignedMeters  int
	statusNotifications int
	expiredReservations int
	stoppedReason       ocpp.Reason
	stopCalls           int
}

func (f *fakeHooks) SendHeartbeat(s *session.Session) { f.heartbeats++ }
func (f *fakeHooks) SendMeterValues(s *session.Session, aligned bool) {
	if aligned {
		f.clockAlignedMeters++
	} else {
		f.meterValues++
	}
}
func (f *fakeHooks) SendStatusNotification(s *session.Session) { f.statusNotifications++ }
func (f *fakeHooks) ExpireReservation(s *session.Session)      { f.expiredReservations++ }
func (f *fakeHooks) SendStopTransaction(s *session.Session, reason ocpp.Reason) {
	f.stopCalls++
	f.stoppedReason = reason
}

func TestDueEvery(t *testing.T) {
	at := time.Unix(60, 0).UTC()
	assert.True(t, DueEvery(at, 30))
	assert.True(t, DueEvery(at, 60))
	assert.False(t, DueEvery(at.Add(time.Second), 30))
}

func TestWallClockAligned(t *testing.T) {
	at := time.Unix(900, 0).UTC()
	assert.True(t, WallClockAligned(at, 300))
	assert.False(t, WallClockAligned(at.Add(1*time.Second), 300))
}

func newTestSession() (*session.Session, *session.Mailbox) {
	s := session.New("s1", session.Template{ChargePointID: "CP-1", HeartbeatSeconds: 30, MeterValueSeconds: 60})
	mb := session.NewMailbox(s)
	mb.Start()
	return s, mb
}

func TestScheduler_HeartbeatCoalesces(t *testing.T) {
	s, mb := newTestSession()
	defer mb.Stop()
	hooks := &fakeHooks{}
	sch := New(s, mb, pending.New(), hooks, rand.New(rand.NewSource(1)))

	at := time.Unix(0, 0).UTC().Truncate(time.Second)
	at = time.Unix((at.Unix()/30)*30, 0).UTC()

	sch.tick(at)
	assert.Equal(t, 1, hooks.heartbeats)

	// still in flight: a second due tick must not fire again
	sch.tick(at.Add(30 * time.Second))
	assert.Equal(t, 1, hooks.heartbeats)

	sch.HeartbeatAcked()
	mb.PostAndWait(func(*session.Session) {})
	sch.tick(at.Add(30 * time.Second))
	assert.Equal(t, 2, hooks.heartbeats)
}

func TestScheduler_MeterValuesOnlyWhileCharging(t *testing.T) {
	s, mb := newTestSession()
	defer mb.Stop()
	hooks := &fakeHooks{}
	sch := New(s, mb, pending.New(), hooks, nil)

	at := time.Unix(60, 0).UTC()
	sch.tick(at)
	assert.Equal(t, 0, hooks.meterValues)

	s.State = session.StateCharging
	sch.tick(at)
	assert.Equal(t, 1, hooks.meterValues)
}

func TestScheduler_ReservationExpires(t *testing.T) {
	s, mb := newTestSession()
	defer mb.Stop()
	hooks := &fakeHooks{}
	sch := New(s, mb, pending.New(), hooks, nil)

	s.State = session.StateAvailable
	require.NoError(t, s.OnReservationAccepted(1, "TAG-1", time.Unix(100, 0).UTC()))

	sch.tick(time.Unix(99, 0).UTC())
	assert.Equal(t, session.StateReserved, s.State)

	sch.tick(time.Unix(101, 0).UTC())
	assert.Equal(t, session.StateAvailable, s.State)
	assert.Equal(t, 1, hooks.expiredReservations)
}

func TestScheduler_PhysicsStepAdvancesEnergyWhileCharging(t *testing.T) {
	s, mb := newTestSession()
	defer mb.Stop()
	hooks := &fakeHooks{}
	sch := New(s, mb, pending.New(), hooks, rand.New(rand.NewSource(1)))

	s.State = session.StateCharging
	s.VehicleProfile = vehicle.Default()
	s.ChargerType = vehicle.ChargerTypes[vehicle.ChargerDC150]

	before := s.Physics.EnergyWh
	sch.tick(time.Unix(1, 0).UTC())
	assert.GreaterOrEqual(t, s.Physics.EnergyWh, before)
}

func TestScheduler_TargetSoCReachedTriggersStopTransaction(t *testing.T) {
	s, mb := newTestSession()
	defer mb.Stop()
	hooks := &fakeHooks{}
	sch := New(s, mb, pending.New(), hooks, rand.New(rand.NewSource(1)))

	s.State = session.StateCharging
	s.TargetSoC = 50
	s.Physics.SoCPercent = 50
	s.VehicleProfile = vehicle.Default()
	s.ChargerType = vehicle.ChargerTypes[vehicle.ChargerDC150]

	sch.tick(time.Unix(1, 0).UTC())

	assert.Equal(t, 1, hooks.stopCalls)
	assert.Equal(t, ocpp.ReasonLocal, hooks.stoppedReason)
}

func TestScheduler_BelowTargetSoCDoesNotTriggerStop(t *testing.T) {
	s, mb := newTestSession()
	defer mb.Stop()
	hooks := &fakeHooks{}
	sch := New(s, mb, pending.New(), hooks, rand.New(rand.NewSource(1)))

	s.State = session.StateCharging
	s.TargetSoC = 80
	s.Physics.SoCPercent = 10
	s.VehicleProfile = vehicle.Default()
	s.ChargerType = vehicle.ChargerTypes[vehicle.ChargerDC150]

	sch.tick(time.Unix(1, 0).UTC())

	assert.Equal(t, 0, hooks.stopCalls)
}
