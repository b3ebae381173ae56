package orchestrate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charging-platform/fleet-simulator/internal/ocpp"
	"github.com/charging-platform/fleet-simulator/internal/session"
)

func newTestSession() *session.Session {
	return session.New("s1", session.Template{
		ChargePointID: "CP-1", VendorID: "Acme", Model: "X1", FirmwareVersion: "1.0", IdTag: "TAG-1",
	})
}

func TestBootNotification_CarriesIdentity(t *testing.T) {
	s := newTestSession()
	req := BootNotification(s)
	assert.Equal(t, "Acme", req.ChargePointVendor)
	assert.Equal(t, "X1", req.ChargePointModel)
	require.NotNil(t, req.FirmwareVersion)
	assert.Equal(t, "1.0", *req.FirmwareVersion)
}

func TestStartTransaction_UsesCurrentEnergyAsMeterStart(t *testing.T) {
	s := newTestSession()
	s.Physics.EnergyWh = 1234
	req := StartTransaction(s, time.Now())
	assert.Equal(t, 1234, req.MeterStart)
	assert.Equal(t, "TAG-1", req.IdTag)
}

func TestStopTransaction_DefaultsReasonToLocal(t *testing.T) {
	s := newTestSession()
	txID := 99
	s.TransactionID = &txID
	req := StopTransaction(s, time.Now(), "", nil)
	require.NotNil(t, req.Reason)
	assert.Equal(t, ocpp.ReasonLocal, *req.Reason)
	assert.Equal(t, 99, req.TransactionId)
}

func TestMeterValues_DefaultMeasurandSet(t *testing.T) {
	s := newTestSession()
	req := MeterValues(s, time.Now())
	require.Len(t, req.MeterValue, 1)
	assert.Len(t, req.MeterValue[0].SampledValue, len(defaultSampledMeasurands))
	for _, sv := range req.MeterValue[0].SampledValue {
		require.NotNil(t, sv.Context)
		assert.Equal(t, ocpp.ContextSamplePeriodic, *sv.Context)
	}
}

func TestMeterValues_HonoursConfiguredMeasurands(t *testing.T) {
	s := newTestSession()
	s.MeterValuesSampledData = []ocpp.Measurand{ocpp.MeasurandSoC}
	req := MeterValues(s, time.Now())
	require.Len(t, req.MeterValue[0].SampledValue, 1)
	assert.Equal(t, ocpp.MeasurandSoC, *req.MeterValue[0].SampledValue[0].Measurand)
}

func TestClockAlignedMeterValues_TagsSampleClockContext(t *testing.T) {
	s := newTestSession()
	req := ClockAlignedMeterValues(s, time.Now())
	for _, sv := range req.MeterValue[0].SampledValue {
		require.NotNil(t, sv.Context)
		assert.Equal(t, ocpp.ContextSampleClock, *sv.Context)
	}
}

func TestStatusNotification_DefaultsNoError(t *testing.T) {
	s := newTestSession()
	req := StatusNotification(s, time.Now())
	assert.Equal(t, ocpp.ErrorCodeNoError, req.ErrorCode)
}
