// Package smartcharge resolves the effective power limit imposed by the
// active set of charging profiles, per spec.md §4.9 and the "extract a pure
// function" redesign note of spec.md §9.
package smartcharge

import (
	"math"
	"sort"
	"time"

	"github.com/charging-platform/fleet-simulator/internal/ocpp"
)

// Connector describes the query-time context the resolver needs beyond the
// profile set itself.
type Connector struct {
	Phases         int
	NominalVoltage float64
	// ChargeStart is when the active transaction began, used as the elapsed
	// baseline for Relative profiles. Zero if no transaction is active.
	ChargeStart time.Time
}

// Resolve computes the effective limit in watts for the given profile set
// at instant now, for the transaction (if any) and connector described.
// Returns +Inf if no profile applies — spec.md §4.9 step 5.
func Resolve(profiles []ocpp.ChargingProfile, now time.Time, activeTransactionID *int, conn Connector) float64 {
	applicable := selectApplicable(profiles, now)

	limit := math.Inf(1)
	applied := false

	if p, ok := winner(applicable, ocpp.TxProfile, activeTransactionID); ok {
		if w, ok := periodLimitWatts(p, now, conn); ok {
			limit = math.Min(limit, w)
			applied = true
		}
	}
	if p, ok := winner(applicable, ocpp.TxDefaultProfile, nil); ok {
		if w, ok := periodLimitWatts(p, now, conn); ok {
			limit = math.Min(limit, w)
			applied = true
		}
	}
	if p, ok := winner(applicable, ocpp.ChargePointMaxProfile, nil); ok {
		if w, ok := periodLimitWatts(p, now, conn); ok {
			limit = math.Min(limit, w)
			applied = true
		}
	}

	if !applied {
		return math.Inf(1)
	}
	return limit
}

// selectApplicable filters profiles by their validFrom/validTo window at now
// (spec.md §4.9 step 1). Recurring schedules are projected onto now's
// day/week later, in elapsedSeconds.
func selectApplicable(profiles []ocpp.ChargingProfile, now time.Time) []ocpp.ChargingProfile {
	var out []ocpp.ChargingProfile
	for _, p := range profiles {
		if p.ValidFrom != nil && now.Before(p.ValidFrom.Time) {
			continue
		}
		if p.ValidTo != nil && now.After(p.ValidTo.Time) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// winner picks the highest-stackLevel profile of the given purpose (ties
// broken by later insertion order — callers append in insertion order, and
// this scan keeps the last match on a tie), per spec.md §4.9 step 2. When
// purpose is TxProfile, the profile's transactionId must match
// activeTransactionID.
func winner(profiles []ocpp.ChargingProfile, purpose ocpp.ChargingProfilePurposeType, activeTransactionID *int) (ocpp.ChargingProfile, bool) {
	var best ocpp.ChargingProfile
	found := false
	for _, p := range profiles {
		if p.ChargingProfilePurpose != purpose {
			continue
		}
		if purpose == ocpp.TxProfile {
			if activeTransactionID == nil || p.TransactionId == nil || *p.TransactionId != *activeTransactionID {
				continue
			}
		}
		if !found || p.StackLevel >= best.StackLevel {
			best = p
			found = true
		}
	}
	return best, found
}

// periodLimitWatts finds the active period within p's schedule and converts
// its limit to watts, per spec.md §4.9 steps 3-4.
func periodLimitWatts(p ocpp.ChargingProfile, now time.Time, conn Connector) (float64, bool) {
	elapsed := elapsedSeconds(p, now, conn)
	if elapsed < 0 {
		return 0, false
	}

	periods := p.ChargingSchedule.ChargingSchedulePeriod
	if len(periods) == 0 {
		return 0, false
	}
	sorted := make([]ocpp.ChargingSchedulePeriod, len(periods))
	copy(sorted, periods)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartPeriod < sorted[j].StartPeriod })

	var active *ocpp.ChargingSchedulePeriod
	for i := range sorted {
		if sorted[i].StartPeriod <= int(elapsed) {
			active = &sorted[i]
		} else {
			break
		}
	}
	if active == nil {
		return 0, false
	}

	if p.ChargingSchedule.Duration != nil && int(elapsed) >= *p.ChargingSchedule.Duration {
		return 0, false
	}

	return toWatts(active.Limit, p.ChargingSchedule.ChargingRateUnit, active.NumberPhases, conn), true
}

func elapsedSeconds(p ocpp.ChargingProfile, now time.Time, conn Connector) float64 {
	switch p.ChargingProfileKind {
	case ocpp.ChargingProfileRelative:
		if conn.ChargeStart.IsZero() {
			return -1
		}
		return now.Sub(conn.ChargeStart).Seconds()
	case ocpp.ChargingProfileAbsolute:
		if p.ChargingSchedule.StartSchedule == nil {
			return 0
		}
		return now.Sub(p.ChargingSchedule.StartSchedule.Time).Seconds()
	case ocpp.ChargingProfileRecurring:
		if p.ChargingSchedule.StartSchedule == nil {
			return 0
		}
		start := p.ChargingSchedule.StartSchedule.Time
		var period time.Duration
		kind := ocpp.RecurrencyDaily
		if p.RecurrencyKind != nil {
			kind = *p.RecurrencyKind
		}
		if kind == ocpp.RecurrencyWeekly {
			period = 7 * 24 * time.Hour
		} else {
			period = 24 * time.Hour
		}
		offset := now.Sub(start)
		if offset < 0 {
			return 0
		}
		return math.Mod(offset.Seconds(), period.Seconds())
	default:
		return 0
	}
}

func toWatts(limit float64, unit ocpp.ChargingRateUnit, numberPhases *int, conn Connector) float64 {
	if unit == ocpp.ChargingRateUnitW {
		return limit
	}
	phases := conn.Phases
	if numberPhases != nil {
		phases = *numberPhases
	}
	if phases <= 0 {
		phases = 1
	}
	voltage := conn.NominalVoltage
	if voltage <= 0 {
		voltage = 230
	}
	return limit * voltage * float64(phases)
}
