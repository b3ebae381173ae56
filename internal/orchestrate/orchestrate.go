// Package orchestrate builds the outbound CALL payloads of spec.md §4.6 as
// pure functions of a session snapshot: no I/O, no side effects, so they
// stay trivial to unit test and are safe to call from within a session's
// mailbox goroutine.
package orchestrate

import (
	"strconv"
	"time"

	"github.com/charging-platform/fleet-simulator/internal/ocpp"
	"github.com/charging-platform/fleet-simulator/internal/session"
)

// BootNotification builds the BootNotification.req sent on connect and on
// Reset.
func BootNotification(s *session.Session) ocpp.BootNotificationRequest {
	return ocpp.BootNotificationRequest{
		ChargePointVendor: s.VendorID,
		ChargePointModel:  s.Model,
		FirmwareVersion:   strPtrIfSet(s.FirmwareVersion),
	}
}

// Heartbeat builds the (empty) Heartbeat.req.
func Heartbeat() ocpp.HeartbeatRequest {
	return ocpp.HeartbeatRequest{}
}

// Authorize builds Authorize.req for the session's configured idTag.
func Authorize(s *session.Session) ocpp.AuthorizeRequest {
	return ocpp.AuthorizeRequest{IdTag: s.IdTag}
}

// StartTransaction builds StartTransaction.req; meterStart is the current
// Wh counter at the moment of plug-in.
func StartTransaction(s *session.Session, now time.Time) ocpp.StartTransactionRequest {
	return ocpp.StartTransactionRequest{
		ConnectorId: s.ConnectorID,
		IdTag:       s.IdTag,
		MeterStart:  int(s.Physics.EnergyWh),
		Timestamp:   ocpp.NewDateTime(now),
	}
}

// StopTransaction builds StopTransaction.req. reason defaults to Local per
// spec.md §4.6 when the caller passes the zero Reason.
func StopTransaction(s *session.Session, now time.Time, reason ocpp.Reason, transactionData []ocpp.MeterValue) ocpp.StopTransactionRequest {
	if reason == "" {
		reason = ocpp.ReasonLocal
	}
	var txID int
	if s.TransactionID != nil {
		txID = *s.TransactionID
	}
	return ocpp.StopTransactionRequest{
		TransactionId:   txID,
		IdTag:           strPtrIfSet(s.IdTag),
		MeterStop:       int(s.Physics.EnergyWh),
		Timestamp:       ocpp.NewDateTime(now),
		Reason:          &reason,
		TransactionData: transactionData,
	}
}

// StatusNotification builds StatusNotification.req for the session's
// current state, emitted on every transition and on demand.
func StatusNotification(s *session.Session, now time.Time) ocpp.StatusNotificationRequest {
	errorCode := s.LastErrorCode
	if errorCode == "" {
		errorCode = ocpp.ErrorCodeNoError
	}
	return ocpp.StatusNotificationRequest{
		ConnectorId: s.ConnectorID,
		ErrorCode:   errorCode,
		Status:      s.CurrentOCPPStatus(),
		Timestamp:   dateTimePtr(now),
	}
}

// defaultSampledMeasurands is used when the session has no
// MeterValuesSampledData configured, mirroring spec.md §4.6's default set.
var defaultSampledMeasurands = []ocpp.Measurand{
	ocpp.MeasurandEnergyActiveImportRegister,
	ocpp.MeasurandPowerActiveImport,
	ocpp.MeasurandSoC,
	ocpp.MeasurandCurrentImport,
	ocpp.MeasurandVoltage,
}

// sampledMeasurands is the Open-Question decision of SPEC_FULL.md: when
// MeterValuesSampledData has been configured via ChangeConfiguration, only
// those measurands are emitted. A configured list holding any measurand
// outside defaultSampledMeasurands is ignored and the default set is used.
func sampledMeasurands(s *session.Session) []ocpp.Measurand {
	if len(s.MeterValuesSampledData) == 0 {
		return defaultSampledMeasurands
	}
	for _, m := range s.MeterValuesSampledData {
		known := false
		for _, d := range defaultSampledMeasurands {
			if m == d {
				known = true
				break
			}
		}
		if !known {
			return defaultSampledMeasurands
		}
	}
	return s.MeterValuesSampledData
}

func sampledValue(measurand ocpp.Measurand, s *session.Session, context ocpp.ReadingContext) ocpp.SampledValue {
	m := measurand
	sv := ocpp.SampledValue{Measurand: &m, Context: &context}
	outlet := ocpp.LocationOutlet
	switch measurand {
	case ocpp.MeasurandEnergyActiveImportRegister:
		sv.Value = formatFloat(s.Physics.EnergyWh)
		sv.Unit = unitPtr(ocpp.UnitWh)
		sv.Location = &outlet
	case ocpp.MeasurandPowerActiveImport:
		sv.Value = formatFloat(s.Physics.PowerW)
		sv.Unit = unitPtr(ocpp.UnitW)
		sv.Location = &outlet
	case ocpp.MeasurandSoC:
		sv.Value = formatFloat(s.Physics.SoCPercent)
		sv.Unit = unitPtr(ocpp.UnitPercent)
	case ocpp.MeasurandCurrentImport:
		sv.Value = formatFloat(s.Physics.CurrentA)
		sv.Unit = unitPtr(ocpp.UnitA)
		sv.Location = &outlet
	case ocpp.MeasurandVoltage:
		sv.Value = formatFloat(s.Physics.VoltageV)
		sv.Unit = unitPtr(ocpp.UnitV)
		sv.Location = &outlet
	}
	return sv
}

func unitPtr(u ocpp.UnitOfMeasure) *ocpp.UnitOfMeasure { return &u }

// MeterValues builds MeterValues.req for a regular (non-clock-aligned)
// sample.
func MeterValues(s *session.Session, now time.Time) ocpp.MeterValuesRequest {
	return meterValuesWithContext(s, now, ocpp.ContextSamplePeriodic)
}

// ClockAlignedMeterValues builds MeterValues.req for a clock-aligned
// sample, tagging every value with Sample.Clock context.
func ClockAlignedMeterValues(s *session.Session, now time.Time) ocpp.MeterValuesRequest {
	return meterValuesWithContext(s, now, ocpp.ContextSampleClock)
}

func meterValuesWithContext(s *session.Session, now time.Time, context ocpp.ReadingContext) ocpp.MeterValuesRequest {
	measurands := sampledMeasurands(s)
	values := make([]ocpp.SampledValue, 0, len(measurands))
	for _, m := range measurands {
		values = append(values, sampledValue(m, s, context))
	}

	var txID *int
	if s.TransactionID != nil {
		txID = s.TransactionID
	}

	return ocpp.MeterValuesRequest{
		ConnectorId:   s.ConnectorID,
		TransactionId: txID,
		MeterValue: []ocpp.MeterValue{
			{Timestamp: ocpp.NewDateTime(now), SampledValue: values},
		},
	}
}

func strPtrIfSet(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func dateTimePtr(t time.Time) *ocpp.DateTime {
	dt := ocpp.NewDateTime(t)
	return &dt
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
