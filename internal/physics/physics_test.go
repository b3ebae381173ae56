package physics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/charging-platform/fleet-simulator/internal/vehicle"
)

func TestTick_EnergyNeverDecreases(t *testing.T) {
	state := &State{SoCPercent: 20}
	in := Input{
		Vehicle:      vehicle.Default(),
		Charger:      vehicle.ChargerTypes[vehicle.ChargerDC150],
		SmartLimitW:  math.Inf(1),
		DeltaSeconds: 1,
	}

	prev := state.EnergyWh
	for i := 0; i < 10; i++ {
		Tick(state, in, nil)
		assert.GreaterOrEqual(t, state.EnergyWh, prev)
		prev = state.EnergyWh
	}
}

func TestTick_EffectivePowerBoundedBySmartLimit(t *testing.T) {
	state := &State{SoCPercent: 30}
	in := Input{
		Vehicle:      vehicle.Default(),
		Charger:      vehicle.ChargerTypes[vehicle.ChargerDC150],
		SmartLimitW:  5000,
		DeltaSeconds: 1,
	}

	_, effective := Tick(state, in, nil)
	assert.LessOrEqual(t, effective, 5000.0*(1+NoiseFraction)+1e-6)
}

func TestTick_RampIsRateLimited(t *testing.T) {
	state := &State{SoCPercent: 30, PowerW: 0}
	in := Input{
		Vehicle:      vehicle.Default(),
		Charger:      vehicle.ChargerTypes[vehicle.ChargerDC350],
		SmartLimitW:  math.Inf(1),
		DeltaSeconds: 1,
	}

	_, effective := Tick(state, in, nil)
	assert.LessOrEqual(t, effective, RiseRateWPerSec*(1+NoiseFraction)+1e-6)
}

func TestVehicleCeiling_UsesDefaultEnvelopeBands(t *testing.T) {
	v := vehicle.Profile{MaxDCPowerKW: 100}
	low := vehicleCeiling(v, true, 5)
	mid := vehicleCeiling(v, true, 30)
	high := vehicleCeiling(v, true, 95)

	assert.InDelta(t, 80000, low, 1e-6)
	assert.InDelta(t, 100000, mid, 1e-6)
	assert.InDelta(t, 15000, high, 1e-6)
}

func TestEvseCeiling_ACReconcilesWithVehicleLimits(t *testing.T) {
	charger := vehicle.ChargerTypes[vehicle.ChargerACTri]
	v := vehicle.Profile{ACPhases: 1, ACMaxA: 16}

	ceiling := evseCeiling(v, charger)

	assert.InDelta(t, charger.NominalVoltage*16*1, ceiling, 1e-6)
}

func TestInterpolate_PiecewiseLinear(t *testing.T) {
	curve := []vehicle.CurvePoint{{SoCPercent: 0, Watts: 0}, {SoCPercent: 100, Watts: 100}}
	assert.InDelta(t, 50, interpolate(curve, 50), 1e-6)
}
