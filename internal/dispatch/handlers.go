package dispatch

import (
	"encoding/json"
	"time"

	"github.com/charging-platform/fleet-simulator/internal/ocpp"
	"github.com/charging-platform/fleet-simulator/internal/session"
	"github.com/charging-platform/fleet-simulator/internal/validation"
)

// HandlerError is returned by a Handler to signal a CALLERROR reply.
type HandlerError struct {
	Code        string
	Description string
}

func (e *HandlerError) Error() string { return e.Code + ": " + e.Description }

func errFormation(desc string) *HandlerError {
	return &HandlerError{Code: ocpp.ErrFormationViolation, Description: desc}
}

func errProperty(desc string) *HandlerError {
	return &HandlerError{Code: ocpp.ErrPropertyConstraintViolation, Description: desc}
}

// Triggers is the narrow surface dispatch needs from the scheduler/
// orchestration layer to carry out a command asynchronously without taking
// a hard dependency on either package (C5 stays decoupled from C6/C7, per
// spec.md §4.5's "trigger ... asynchronously").
type Triggers interface {
	AuthorizeAndStart(idTag string, connectorID int)
	StopTransaction(reason ocpp.Reason)
	EnqueuePriority(action ocpp.Action)
	ArmReservationExpiry(reservationID int, expiry time.Time)
	DisarmReservationExpiry()
	Close()
}

// Handler processes one decoded CALL body for a single session, already
// serialised onto that session's mailbox goroutine.
type Handler func(s *session.Session, t Triggers, raw json.RawMessage) (interface{}, *HandlerError)

// Table is the closed action -> Handler map of spec.md §4.5.
var Table = map[ocpp.Action]Handler{
	ocpp.ActionChangeConfiguration:  handleChangeConfiguration,
	ocpp.ActionGetConfiguration:     handleGetConfiguration,
	ocpp.ActionClearCache:           handleClearCache,
	ocpp.ActionReset:                handleReset,
	ocpp.ActionRemoteStartTransaction: handleRemoteStartTransaction,
	ocpp.ActionRemoteStopTransaction:  handleRemoteStopTransaction,
	ocpp.ActionUnlockConnector:      handleUnlockConnector,
	ocpp.ActionChangeAvailability:   handleChangeAvailability,
	ocpp.ActionDataTransfer:         handleDataTransfer,
	ocpp.ActionTriggerMessage:       handleTriggerMessage,
	ocpp.ActionReserveNow:           handleReserveNow,
	ocpp.ActionCancelReservation:    handleCancelReservation,
	ocpp.ActionSetChargingProfile:   handleSetChargingProfile,
	ocpp.ActionClearChargingProfile: handleClearChargingProfile,
	ocpp.ActionGetCompositeSchedule: handleGetCompositeSchedule,
	ocpp.ActionSendLocalList:        handleSendLocalList,
	ocpp.ActionGetLocalListVersion:  handleGetLocalListVersion,
	ocpp.ActionUpdateFirmware:       handleUpdateFirmware,
	ocpp.ActionGetDiagnostics:       handleGetDiagnostics,
}

// Dispatch looks up action, decodes+validates raw into its request type,
// runs the handler and returns its response or a CALLERROR. Unknown
// actions answer NotImplemented; decode failures answer FormationViolation;
// struct-tag validation failures answer PropertyConstraintViolation;
// handler-level errors carry whatever code the handler chose.
func Dispatch(s *session.Session, t Triggers, v *validation.Validator, action ocpp.Action, raw json.RawMessage) (interface{}, *HandlerError) {
	handler, ok := Table[action]
	if !ok {
		return nil, &HandlerError{Code: ocpp.ErrNotImplemented, Description: "action not implemented: " + string(action)}
	}

	req := ocpp.NewRequestPayload(action)
	if req != nil {
		if err := json.Unmarshal(raw, req); err != nil {
			return nil, errFormation(err.Error())
		}
		if err := v.ValidateStruct(req); err != nil {
			return nil, errProperty(err.Error())
		}
		encoded, err := json.Marshal(req)
		if err != nil {
			return nil, errFormation(err.Error())
		}
		raw = encoded
	}

	return handler(s, t, raw)
}

func decode(raw json.RawMessage, target interface{}) *HandlerError {
	if err := json.Unmarshal(raw, target); err != nil {
		return errFormation(err.Error())
	}
	return nil
}

func handleChangeConfiguration(s *session.Session, t Triggers, raw json.RawMessage) (interface{}, *HandlerError) {
	var req ocpp.ChangeConfigurationRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	key, found := findConfigKey(req.Key)
	if !found {
		return ocpp.ChangeConfigurationResponse{Status: ocpp.ConfigurationNotSupported}, nil
	}
	if key.readOnly {
		return ocpp.ChangeConfigurationResponse{Status: ocpp.ConfigurationRejected}, nil
	}
	if err := key.set(s, req.Value); err != nil {
		return ocpp.ChangeConfigurationResponse{Status: ocpp.ConfigurationRejected}, nil
	}
	return ocpp.ChangeConfigurationResponse{Status: ocpp.ConfigurationAccepted}, nil
}

func handleGetConfiguration(s *session.Session, t Triggers, raw json.RawMessage) (interface{}, *HandlerError) {
	var req ocpp.GetConfigurationRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}

	resp := ocpp.GetConfigurationResponse{}
	if len(req.Key) == 0 {
		for _, k := range configKeys {
			resp.ConfigurationKey = append(resp.ConfigurationKey, ocpp.KeyValue{
				Key:      k.name,
				Readonly: k.readOnly,
				Value:    strPtr(k.get(s)),
			})
		}
		return resp, nil
	}

	for _, name := range req.Key {
		k, found := findConfigKey(name)
		if !found {
			resp.UnknownKey = append(resp.UnknownKey, name)
			continue
		}
		resp.ConfigurationKey = append(resp.ConfigurationKey, ocpp.KeyValue{
			Key:      k.name,
			Readonly: k.readOnly,
			Value:    strPtr(k.get(s)),
		})
	}
	return resp, nil
}

func strPtr(s string) *string { return &s }

func handleClearCache(s *session.Session, t Triggers, raw json.RawMessage) (interface{}, *HandlerError) {
	return ocpp.ClearCacheResponse{Status: ocpp.ClearCacheAccepted}, nil
}

// handleReset implements spec.md §4.4's "any -> UNAVAILABLE -> DISCONNECTED
// -> BOOTING": the in-flight transaction (if any) is stopped, the session
// moves to UNAVAILABLE, and the transport is torn down. The existing
// disconnect/backoff/reconnect path (transport.Client.onDisconnected ->
// Run's redial loop -> onConnected) fails any still-pending calls with
// pending.ErrTransportClosed and re-sends BootNotification once reconnected,
// so Reset does not need its own bespoke reconnect or cancellation logic.
func handleReset(s *session.Session, t Triggers, raw json.RawMessage) (interface{}, *HandlerError) {
	var req ocpp.ResetRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}

	reason := ocpp.ReasonSoftReset
	if req.Type == ocpp.ResetHard {
		reason = ocpp.ReasonHardReset
	}
	if s.TransactionID != nil {
		t.StopTransaction(reason)
	}
	s.OnResetRequested()
	t.Close()
	return ocpp.ResetResponse{Status: ocpp.ResetStatusAccepted}, nil
}

func handleRemoteStartTransaction(s *session.Session, t Triggers, raw json.RawMessage) (interface{}, *HandlerError) {
	var req ocpp.RemoteStartTransactionRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}

	if !s.CanStartTransaction() || s.TransactionID != nil {
		return ocpp.RemoteStartTransactionResponse{Status: ocpp.RemoteRejected}, nil
	}
	connectorID := s.ConnectorID
	if req.ConnectorId != nil {
		connectorID = *req.ConnectorId
	}
	t.AuthorizeAndStart(req.IdTag, connectorID)
	return ocpp.RemoteStartTransactionResponse{Status: ocpp.RemoteAccepted}, nil
}

func handleRemoteStopTransaction(s *session.Session, t Triggers, raw json.RawMessage) (interface{}, *HandlerError) {
	var req ocpp.RemoteStopTransactionRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}

	if s.TransactionID == nil || *s.TransactionID != req.TransactionId {
		return ocpp.RemoteStopTransactionResponse{Status: ocpp.RemoteRejected}, nil
	}
	t.StopTransaction(ocpp.ReasonRemote)
	return ocpp.RemoteStopTransactionResponse{Status: ocpp.RemoteAccepted}, nil
}

func handleUnlockConnector(s *session.Session, t Triggers, raw json.RawMessage) (interface{}, *HandlerError) {
	var req ocpp.UnlockConnectorRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	if req.ConnectorId != s.ConnectorID {
		return ocpp.UnlockConnectorResponse{Status: ocpp.UnlockNotSupported}, nil
	}
	if s.TransactionID != nil {
		return ocpp.UnlockConnectorResponse{Status: ocpp.UnlockOngoingAuthorizedTransaction}, nil
	}
	return ocpp.UnlockConnectorResponse{Status: ocpp.UnlockUnlocked}, nil
}

func handleChangeAvailability(s *session.Session, t Triggers, raw json.RawMessage) (interface{}, *HandlerError) {
	var req ocpp.ChangeAvailabilityRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	if req.Type == ocpp.AvailabilityInoperative && s.TransactionID != nil {
		return ocpp.ChangeAvailabilityResponse{Status: ocpp.AvailabilityStatusScheduled}, nil
	}
	if req.Type == ocpp.AvailabilityInoperative {
		s.State = session.StateUnavailable
	} else if s.State == session.StateUnavailable {
		s.State = session.StateAvailable
	}
	return ocpp.ChangeAvailabilityResponse{Status: ocpp.AvailabilityStatusAccepted}, nil
}

func handleDataTransfer(s *session.Session, t Triggers, raw json.RawMessage) (interface{}, *HandlerError) {
	var req ocpp.DataTransferRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	return ocpp.DataTransferResponse{Status: ocpp.DataTransferUnknownVendorId}, nil
}

func handleTriggerMessage(s *session.Session, t Triggers, raw json.RawMessage) (interface{}, *HandlerError) {
	var req ocpp.TriggerMessageRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}

	switch req.RequestedMessage {
	case ocpp.TriggerBootNotification, ocpp.TriggerHeartbeat, ocpp.TriggerMeterValues,
		ocpp.TriggerStatusNotification, ocpp.TriggerDiagnosticsStatusNotification,
		ocpp.TriggerFirmwareStatusNotification:
		t.EnqueuePriority(ocpp.Action(req.RequestedMessage))
		return ocpp.TriggerMessageResponse{Status: ocpp.TriggerAccepted}, nil
	default:
		return ocpp.TriggerMessageResponse{Status: ocpp.TriggerNotImplemented}, nil
	}
}

func handleReserveNow(s *session.Session, t Triggers, raw json.RawMessage) (interface{}, *HandlerError) {
	var req ocpp.ReserveNowRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}

	if s.State == session.StateCharging {
		return ocpp.ReserveNowResponse{Status: ocpp.ReservationOccupied}, nil
	}
	if s.State == session.StateReserved && (s.ReservationID == nil || *s.ReservationID != req.ReservationId) {
		return ocpp.ReserveNowResponse{Status: ocpp.ReservationRejected}, nil
	}

	expiry := req.ExpiryDate.Time
	if err := s.OnReservationAccepted(req.ReservationId, req.IdTag, expiry); err != nil {
		return ocpp.ReserveNowResponse{Status: ocpp.ReservationRejected}, nil
	}
	t.ArmReservationExpiry(req.ReservationId, expiry)
	return ocpp.ReserveNowResponse{Status: ocpp.ReservationAccepted}, nil
}

func handleCancelReservation(s *session.Session, t Triggers, raw json.RawMessage) (interface{}, *HandlerError) {
	var req ocpp.CancelReservationRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	if s.ReservationID == nil || *s.ReservationID != req.ReservationId {
		return ocpp.CancelReservationResponse{Status: ocpp.CancelReservationRejected}, nil
	}
	t.DisarmReservationExpiry()
	_ = s.OnReservationEnded()
	return ocpp.CancelReservationResponse{Status: ocpp.CancelReservationAccepted}, nil
}

func handleSetChargingProfile(s *session.Session, t Triggers, raw json.RawMessage) (interface{}, *HandlerError) {
	var req ocpp.SetChargingProfileRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}

	for _, period := range req.ChargingProfile.ChargingSchedule.ChargingSchedulePeriod {
		if period.StartPeriod < 0 {
			return ocpp.SetChargingProfileResponse{Status: ocpp.ChargingProfileRejected}, nil
		}
	}

	replaced := false
	for i, p := range s.Profiles {
		if p.ChargingProfilePurpose == req.ChargingProfile.ChargingProfilePurpose && p.StackLevel == req.ChargingProfile.StackLevel {
			s.Profiles[i] = req.ChargingProfile
			replaced = true
			break
		}
	}
	if !replaced {
		s.Profiles = append(s.Profiles, req.ChargingProfile)
	}
	return ocpp.SetChargingProfileResponse{Status: ocpp.ChargingProfileAccepted}, nil
}

func handleClearChargingProfile(s *session.Session, t Triggers, raw json.RawMessage) (interface{}, *HandlerError) {
	var req ocpp.ClearChargingProfileRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}

	matched := false
	kept := s.Profiles[:0]
	for _, p := range s.Profiles {
		if profileMatches(p, req) {
			matched = true
			continue
		}
		kept = append(kept, p)
	}
	s.Profiles = kept

	if !matched {
		return ocpp.ClearChargingProfileResponse{Status: ocpp.ClearChargingProfileUnknown}, nil
	}
	return ocpp.ClearChargingProfileResponse{Status: ocpp.ClearChargingProfileAccepted}, nil
}

func profileMatches(p ocpp.ChargingProfile, req ocpp.ClearChargingProfileRequest) bool {
	if req.Id != nil && p.ChargingProfileId != *req.Id {
		return false
	}
	if req.ChargingProfilePurpose != nil && p.ChargingProfilePurpose != *req.ChargingProfilePurpose {
		return false
	}
	if req.StackLevel != nil && p.StackLevel != *req.StackLevel {
		return false
	}
	return true
}

func handleGetCompositeSchedule(s *session.Session, t Triggers, raw json.RawMessage) (interface{}, *HandlerError) {
	var req ocpp.GetCompositeScheduleRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	if len(s.Profiles) == 0 {
		return ocpp.GetCompositeScheduleResponse{Status: ocpp.GetCompositeScheduleRejected}, nil
	}
	connID := req.ConnectorId
	return ocpp.GetCompositeScheduleResponse{
		Status:      ocpp.GetCompositeScheduleAccepted,
		ConnectorId: &connID,
	}, nil
}

func handleSendLocalList(s *session.Session, t Triggers, raw json.RawMessage) (interface{}, *HandlerError) {
	var req ocpp.SendLocalListRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	return ocpp.SendLocalListResponse{Status: ocpp.SendLocalListAccepted}, nil
}

func handleGetLocalListVersion(s *session.Session, t Triggers, raw json.RawMessage) (interface{}, *HandlerError) {
	return ocpp.GetLocalListVersionResponse{ListVersion: 0}, nil
}

func handleUpdateFirmware(s *session.Session, t Triggers, raw json.RawMessage) (interface{}, *HandlerError) {
	var req ocpp.UpdateFirmwareRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	t.EnqueuePriority(ocpp.ActionFirmwareStatusNotification)
	return ocpp.UpdateFirmwareResponse{}, nil
}

func handleGetDiagnostics(s *session.Session, t Triggers, raw json.RawMessage) (interface{}, *HandlerError) {
	var req ocpp.GetDiagnosticsRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}
	t.EnqueuePriority(ocpp.ActionDiagnosticsStatusNotification)
	name := s.ChargePointID + "-diagnostics.log"
	return ocpp.GetDiagnosticsResponse{FileName: &name}, nil
}
