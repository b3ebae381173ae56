package smartcharge

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/charging-platform/fleet-simulator/internal/ocpp"
)

func schedule(unit ocpp.ChargingRateUnit, limit float64) ocpp.ChargingSchedule {
	return ocpp.ChargingSchedule{
		ChargingRateUnit: unit,
		ChargingSchedulePeriod: []ocpp.ChargingSchedulePeriod{
			{StartPeriod: 0, Limit: limit},
		},
	}
}

func TestResolve_NoProfilesReturnsInfinity(t *testing.T) {
	limit := Resolve(nil, time.Now(), nil, Connector{Phases: 3, NominalVoltage: 230})
	assert.True(t, math.IsInf(limit, 1))
}

func TestResolve_TxProfileBeatsChargePointMax(t *testing.T) {
	now := time.Now()
	txID := 4242
	profiles := []ocpp.ChargingProfile{
		{
			ChargingProfileId:      1,
			ChargingProfilePurpose: ocpp.ChargePointMaxProfile,
			ChargingProfileKind:    ocpp.ChargingProfileAbsolute,
			ChargingSchedule:       schedule(ocpp.ChargingRateUnitW, 11000),
		},
		{
			ChargingProfileId:      2,
			TransactionId:          &txID,
			ChargingProfilePurpose: ocpp.TxProfile,
			ChargingProfileKind:    ocpp.ChargingProfileAbsolute,
			ChargingSchedule:       schedule(ocpp.ChargingRateUnitW, 7400),
		},
	}

	limit := Resolve(profiles, now, &txID, Connector{Phases: 3, NominalVoltage: 230})
	assert.Equal(t, 7400.0, limit)
}

func TestResolve_ClearingTxProfileRevealsChargePointMax(t *testing.T) {
	now := time.Now()
	profiles := []ocpp.ChargingProfile{
		{
			ChargingProfileId:      1,
			ChargingProfilePurpose: ocpp.ChargePointMaxProfile,
			ChargingProfileKind:    ocpp.ChargingProfileAbsolute,
			ChargingSchedule:       schedule(ocpp.ChargingRateUnitW, 11000),
		},
	}

	limit := Resolve(profiles, now, nil, Connector{Phases: 3, NominalVoltage: 230})
	assert.Equal(t, 11000.0, limit)
}

func TestResolve_HigherStackLevelWins(t *testing.T) {
	now := time.Now()
	profiles := []ocpp.ChargingProfile{
		{ChargingProfileId: 1, StackLevel: 0, ChargingProfilePurpose: ocpp.TxDefaultProfile, ChargingProfileKind: ocpp.ChargingProfileAbsolute, ChargingSchedule: schedule(ocpp.ChargingRateUnitW, 5000)},
		{ChargingProfileId: 2, StackLevel: 5, ChargingProfilePurpose: ocpp.TxDefaultProfile, ChargingProfileKind: ocpp.ChargingProfileAbsolute, ChargingSchedule: schedule(ocpp.ChargingRateUnitW, 8000)},
	}

	limit := Resolve(profiles, now, nil, Connector{Phases: 3, NominalVoltage: 230})
	assert.Equal(t, 8000.0, limit)
}

func TestResolve_AmpsConvertedToWatts(t *testing.T) {
	now := time.Now()
	profiles := []ocpp.ChargingProfile{
		{ChargingProfileId: 1, ChargingProfilePurpose: ocpp.ChargePointMaxProfile, ChargingProfileKind: ocpp.ChargingProfileAbsolute, ChargingSchedule: schedule(ocpp.ChargingRateUnitA, 16)},
	}

	limit := Resolve(profiles, now, nil, Connector{Phases: 3, NominalVoltage: 230})
	assert.Equal(t, 16*230*3.0, limit)
}

func TestResolve_ExpiredProfileIgnored(t *testing.T) {
	now := time.Now()
	past := ocpp.NewDateTime(now.Add(-time.Hour))
	profiles := []ocpp.ChargingProfile{
		{ChargingProfileId: 1, ChargingProfilePurpose: ocpp.ChargePointMaxProfile, ChargingProfileKind: ocpp.ChargingProfileAbsolute, ValidTo: &past, ChargingSchedule: schedule(ocpp.ChargingRateUnitW, 5000)},
	}

	limit := Resolve(profiles, now, nil, Connector{Phases: 3, NominalVoltage: 230})
	assert.True(t, math.IsInf(limit, 1))
}
