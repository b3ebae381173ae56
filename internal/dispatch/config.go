// Package dispatch implements the inbound CALL dispatcher (C5) of
// spec.md §4.5: a closed table from ocpp.Action to a handler, validated
// before it runs and replying CALLRESULT or CALLERROR.
package dispatch

import (
	"strconv"
	"strings"

	"github.com/charging-platform/fleet-simulator/internal/ocpp"
	"github.com/charging-platform/fleet-simulator/internal/session"
)

// supportedFeatureProfiles is reported verbatim for the read-only
// SupportedFeatureProfiles configuration key.
const supportedFeatureProfiles = "Core,SmartCharging,RemoteTrigger,Reservation"

// configKey binds one OCPP configuration key name to a session-backed
// getter and, for writable keys, a setter.
type configKey struct {
	name     string
	readOnly bool
	get      func(s *session.Session) string
	set      func(s *session.Session, value string) error
}

func parseIntSetting(value string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(value))
}

var configKeys = []configKey{
	{
		name: "HeartbeatInterval",
		get:  func(s *session.Session) string { return strconv.Itoa(s.HeartbeatIntervalSeconds) },
		set: func(s *session.Session, value string) error {
			n, err := parseIntSetting(value)
			if err != nil {
				return err
			}
			s.HeartbeatIntervalSeconds = n
			return nil
		},
	},
	{
		name: "MeterValueSampleInterval",
		get:  func(s *session.Session) string { return strconv.Itoa(s.MeterValueIntervalSeconds) },
		set: func(s *session.Session, value string) error {
			n, err := parseIntSetting(value)
			if err != nil {
				return err
			}
			s.MeterValueIntervalSeconds = n
			return nil
		},
	},
	{
		name: "MeterValuesSampledData",
		get: func(s *session.Session) string {
			parts := make([]string, len(s.MeterValuesSampledData))
			for i, m := range s.MeterValuesSampledData {
				parts[i] = string(m)
			}
			return strings.Join(parts, ",")
		},
		set: func(s *session.Session, value string) error {
			var measurands []ocpp.Measurand
			for _, part := range strings.Split(value, ",") {
				part = strings.TrimSpace(part)
				if part != "" {
					measurands = append(measurands, ocpp.Measurand(part))
				}
			}
			s.MeterValuesSampledData = measurands
			return nil
		},
	},
	{
		name: "ConnectionTimeOut",
		get:  func(s *session.Session) string { return strconv.Itoa(s.ConnectionTimeoutSeconds) },
		set: func(s *session.Session, value string) error {
			n, err := parseIntSetting(value)
			if err != nil {
				return err
			}
			s.ConnectionTimeoutSeconds = n
			return nil
		},
	},
	{
		name: "ClockAlignedDataInterval",
		get:  func(s *session.Session) string { return strconv.Itoa(s.ClockAlignedIntervalSeconds) },
		set: func(s *session.Session, value string) error {
			n, err := parseIntSetting(value)
			if err != nil {
				return err
			}
			s.ClockAlignedIntervalSeconds = n
			return nil
		},
	},
	{
		name:     "NumberOfConnectors",
		readOnly: true,
		get:      func(s *session.Session) string { return "1" },
	},
	{
		name:     "ChargePointVendor",
		readOnly: true,
		get:      func(s *session.Session) string { return s.VendorID },
	},
	{
		name:     "ChargePointModel",
		readOnly: true,
		get:      func(s *session.Session) string { return s.Model },
	},
	{
		name:     "ChargePointSerialNumber",
		readOnly: true,
		get:      func(s *session.Session) string { return s.ChargePointID },
	},
	{
		name:     "FirmwareVersion",
		readOnly: true,
		get:      func(s *session.Session) string { return s.FirmwareVersion },
	},
	{
		name:     "SupportedFeatureProfiles",
		readOnly: true,
		get:      func(s *session.Session) string { return supportedFeatureProfiles },
	},
}

func findConfigKey(name string) (configKey, bool) {
	for _, k := range configKeys {
		if k.name == name {
			return k, true
		}
	}
	return configKey{}, false
}
