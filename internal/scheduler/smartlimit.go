package scheduler

import (
	"math"
	"time"

	"github.com/charging-platform/fleet-simulator/internal/session"
	"github.com/charging-platform/fleet-simulator/internal/smartcharge"
)

// resolveSmartLimit resolves the active charging-profile stack into a
// single power ceiling in watts, per spec.md §4.9 / internal/smartcharge.
func resolveSmartLimit(s *session.Session, now time.Time) float64 {
	if len(s.Profiles) == 0 {
		return math.Inf(1)
	}
	conn := smartcharge.Connector{
		Phases:         acPhases(s),
		NominalVoltage: nominalVoltage(s),
		ChargeStart:    s.ChargeStart,
	}
	return smartcharge.Resolve(s.Profiles, now, s.TransactionID, conn)
}

func acPhases(s *session.Session) int {
	if s.ChargerType.Phases > 0 {
		return s.ChargerType.Phases
	}
	return 3
}

func nominalVoltage(s *session.Session) float64 {
	if s.ChargerType.NominalVoltage > 0 {
		return s.ChargerType.NominalVoltage
	}
	return 230
}
