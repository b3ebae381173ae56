// Package physics implements the per-tick charging simulation of spec.md
// §4.8: SoC evolution, power-curve evaluation, and EVSE/vehicle
// reconciliation.
package physics

import (
	"math"
	"math/rand"

	"github.com/charging-platform/fleet-simulator/internal/vehicle"
)

// RiseRateWPerSec is the maximum change in effective power per second,
// spec.md §4.8 step 5.
const RiseRateWPerSec = 5000.0 / 3.0

// NoiseFraction is the symmetric noise amplitude applied to effective
// power, spec.md §4.8 step 6.
const NoiseFraction = 0.03

// DefaultEfficiency is the charging efficiency applied on every tick,
// spec.md §4.8 step 7; vehicle.Profile has no efficiency field to
// override it.
const DefaultEfficiency = 0.92

// State is the mutable physics state carried by a session between ticks.
type State struct {
	SoCPercent   float64
	EnergyWh     float64
	PowerW       float64 // effective power from the previous tick
	CurrentA     float64
	VoltageV     float64
}

// Input bundles the per-tick environment a session supplies.
type Input struct {
	Vehicle       vehicle.Profile
	Charger       vehicle.ChargerType
	SmartLimitW   float64 // from internal/smartcharge; +Inf if uncapped
	DeltaSeconds  float64
	PhaseVoltage  float64 // nominal, defaults to charger's if zero
}

// Tick advances State by one step of the spec.md §4.8 algorithm and
// reports the resulting offered/effective power.
func Tick(state *State, in Input, rng *rand.Rand) (offeredW, effectiveW float64) {
	pVehicle := vehicleCeiling(in.Vehicle, in.Charger.IsDC, state.SoCPercent)
	pEvse := evseCeiling(in.Vehicle, in.Charger)

	offeredW = math.Min(pVehicle, pEvse)
	effectiveW = math.Min(offeredW, in.SmartLimitW)

	effectiveW = rampLimit(state.PowerW, effectiveW, in.DeltaSeconds)
	effectiveW = applyNoise(effectiveW, rng)
	if effectiveW < 0 {
		effectiveW = 0
	}

	efficiency := DefaultEfficiency

	deltaWh := effectiveW * in.DeltaSeconds / 3600
	state.EnergyWh += deltaWh
	if in.Vehicle.CapacityWh > 0 {
		state.SoCPercent += deltaWh * 100 / in.Vehicle.CapacityWh * efficiency
		if state.SoCPercent > 100 {
			state.SoCPercent = 100
		}
	}

	state.PowerW = effectiveW
	voltage := in.PhaseVoltage
	if voltage <= 0 {
		voltage = in.Charger.NominalVoltage
	}
	state.VoltageV = voltage
	if voltage > 0 {
		state.CurrentA = effectiveW / voltage
	}

	return offeredW, effectiveW
}

// vehicleCeiling is step 1: piecewise-linear interpolation over the
// vehicle's charging curve, or the default SoC-banded envelope.
func vehicleCeiling(v vehicle.Profile, isDC bool, soc float64) float64 {
	curve := v.ACCurve
	maxKW := v.MaxACPowerKW
	if isDC {
		curve = v.DCCurve
		maxKW = v.MaxDCPowerKW
	}
	if len(curve) > 0 {
		return interpolate(curve, soc)
	}
	return defaultEnvelope(soc, maxKW*1000)
}

func interpolate(curve []vehicle.CurvePoint, soc float64) float64 {
	if soc <= curve[0].SoCPercent {
		return curve[0].Watts
	}
	last := curve[len(curve)-1]
	if soc >= last.SoCPercent {
		return last.Watts
	}
	for i := 1; i < len(curve); i++ {
		if soc <= curve[i].SoCPercent {
			a, b := curve[i-1], curve[i]
			span := b.SoCPercent - a.SoCPercent
			if span <= 0 {
				return a.Watts
			}
			frac := (soc - a.SoCPercent) / span
			return a.Watts + frac*(b.Watts-a.Watts)
		}
	}
	return last.Watts
}

// defaultEnvelope is spec.md §4.8 step 1's fallback bands, floored at 3kW.
func defaultEnvelope(soc, pMax float64) float64 {
	const floor = 3000.0
	var fraction float64
	switch {
	case soc < 10:
		fraction = 0.80
	case soc < 20:
		fraction = 0.95
	case soc < 50:
		fraction = 1.00
	case soc < 60:
		fraction = 0.90
	case soc < 70:
		fraction = 0.75
	case soc < 80:
		fraction = 0.55
	case soc < 90:
		fraction = 0.30
	default:
		fraction = 0.15
	}
	w := pMax * fraction
	if w < floor {
		return floor
	}
	return w
}

// evseCeiling is step 2: P = V*I*k for AC (k=1/2/√3 by phase count), P = V*I
// for DC, reconciled against the vehicle's AC phase/current limits.
func evseCeiling(v vehicle.Profile, charger vehicle.ChargerType) float64 {
	if charger.IsDC {
		return charger.NominalVoltage * charger.MaxCurrentA
	}

	phases := charger.Phases
	if v.ACPhases > 0 && v.ACPhases < phases {
		phases = v.ACPhases
	}
	amps := charger.MaxCurrentA
	if v.ACMaxA > 0 && v.ACMaxA < amps {
		amps = v.ACMaxA
	}

	k := phaseFactor(phases)
	return charger.NominalVoltage * amps * k
}

func phaseFactor(phases int) float64 {
	switch phases {
	case 1:
		return 1
	case 2:
		return 2
	case 3:
		return math.Sqrt(3)
	default:
		return 1
	}
}

func rampLimit(previous, target, deltaSeconds float64) float64 {
	maxDelta := RiseRateWPerSec * deltaSeconds
	if target > previous+maxDelta {
		return previous + maxDelta
	}
	if target < previous-maxDelta {
		return previous - maxDelta
	}
	return target
}

func applyNoise(w float64, rng *rand.Rand) float64 {
	if rng == nil || w == 0 {
		return w
	}
	noise := (rng.Float64()*2 - 1) * NoiseFraction
	return w * (1 + noise)
}
