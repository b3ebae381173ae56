package ocpp

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// DecodeErrorKind classifies why a frame failed to decode, per spec.md §4.1.
type DecodeErrorKind string

const (
	MalformedFrame DecodeErrorKind = "MalformedFrame"
	UnknownAction  DecodeErrorKind = "UnknownAction"
)

// DecodeError is returned by Decode when a frame cannot be turned into a
// usable Frame.
type DecodeError struct {
	Kind    DecodeErrorKind
	Message string
	Cause   error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

func malformed(msg string, cause error) *DecodeError {
	return &DecodeError{Kind: MalformedFrame, Message: msg, Cause: cause}
}

// Frame is a decoded OCPP-J message in its generic, not-yet-typed form.
type Frame struct {
	Type             MessageType
	UniqueID         string
	Action           Action          // set only for Call
	Payload          json.RawMessage // Call/CallResult payload, raw
	ErrorCode        string          // set only for CallError
	ErrorDescription string
	ErrorDetails     json.RawMessage
}

// MaxUniqueIDLen is the wire limit on uniqueId per spec.md §4.1.
const MaxUniqueIDLen = 36

// requestTypes/responseTypes register the Go struct behind each known
// action, used by Decode to validate recognised actions and by callers to
// materialise a concrete payload via NewRequestPayload/NewResponsePayload.
var requestTypes = map[Action]reflect.Type{
	ActionBootNotification:   reflect.TypeOf(BootNotificationRequest{}),
	ActionHeartbeat:          reflect.TypeOf(HeartbeatRequest{}),
	ActionStatusNotification: reflect.TypeOf(StatusNotificationRequest{}),
	ActionAuthorize:          reflect.TypeOf(AuthorizeRequest{}),
	ActionStartTransaction:   reflect.TypeOf(StartTransactionRequest{}),
	ActionStopTransaction:    reflect.TypeOf(StopTransactionRequest{}),
	ActionMeterValues:        reflect.TypeOf(MeterValuesRequest{}),
	ActionDataTransfer:       reflect.TypeOf(DataTransferRequest{}),
	ActionDiagnosticsStatusNotification: reflect.TypeOf(DiagnosticsStatusNotificationRequest{}),
	ActionFirmwareStatusNotification:    reflect.TypeOf(FirmwareStatusNotificationRequest{}),

	ActionChangeConfiguration:    reflect.TypeOf(ChangeConfigurationRequest{}),
	ActionGetConfiguration:       reflect.TypeOf(GetConfigurationRequest{}),
	ActionClearCache:             reflect.TypeOf(ClearCacheRequest{}),
	ActionReset:                  reflect.TypeOf(ResetRequest{}),
	ActionRemoteStartTransaction: reflect.TypeOf(RemoteStartTransactionRequest{}),
	ActionRemoteStopTransaction:  reflect.TypeOf(RemoteStopTransactionRequest{}),
	ActionUnlockConnector:        reflect.TypeOf(UnlockConnectorRequest{}),
	ActionChangeAvailability:     reflect.TypeOf(ChangeAvailabilityRequest{}),
	ActionTriggerMessage:         reflect.TypeOf(TriggerMessageRequest{}),
	ActionReserveNow:             reflect.TypeOf(ReserveNowRequest{}),
	ActionCancelReservation:      reflect.TypeOf(CancelReservationRequest{}),
	ActionSetChargingProfile:     reflect.TypeOf(SetChargingProfileRequest{}),
	ActionClearChargingProfile:   reflect.TypeOf(ClearChargingProfileRequest{}),
	ActionGetCompositeSchedule:   reflect.TypeOf(GetCompositeScheduleRequest{}),
	ActionSendLocalList:          reflect.TypeOf(SendLocalListRequest{}),
	ActionGetLocalListVersion:    reflect.TypeOf(GetLocalListVersionRequest{}),
	ActionUpdateFirmware:         reflect.TypeOf(UpdateFirmwareRequest{}),
	ActionGetDiagnostics:         reflect.TypeOf(GetDiagnosticsRequest{}),
}

var responseTypes = map[Action]reflect.Type{
	ActionBootNotification:   reflect.TypeOf(BootNotificationResponse{}),
	ActionHeartbeat:          reflect.TypeOf(HeartbeatResponse{}),
	ActionStatusNotification: reflect.TypeOf(StatusNotificationResponse{}),
	ActionAuthorize:          reflect.TypeOf(AuthorizeResponse{}),
	ActionStartTransaction:   reflect.TypeOf(StartTransactionResponse{}),
	ActionStopTransaction:    reflect.TypeOf(StopTransactionResponse{}),
	ActionMeterValues:        reflect.TypeOf(MeterValuesResponse{}),
	ActionDataTransfer:       reflect.TypeOf(DataTransferResponse{}),

	ActionChangeConfiguration:    reflect.TypeOf(ChangeConfigurationResponse{}),
	ActionGetConfiguration:       reflect.TypeOf(GetConfigurationResponse{}),
	ActionClearCache:             reflect.TypeOf(ClearCacheResponse{}),
	ActionReset:                  reflect.TypeOf(ResetResponse{}),
	ActionRemoteStartTransaction: reflect.TypeOf(RemoteStartTransactionResponse{}),
	ActionRemoteStopTransaction:  reflect.TypeOf(RemoteStopTransactionResponse{}),
	ActionUnlockConnector:        reflect.TypeOf(UnlockConnectorResponse{}),
	ActionChangeAvailability:     reflect.TypeOf(ChangeAvailabilityResponse{}),
	ActionTriggerMessage:         reflect.TypeOf(TriggerMessageResponse{}),
	ActionReserveNow:             reflect.TypeOf(ReserveNowResponse{}),
	ActionCancelReservation:      reflect.TypeOf(CancelReservationResponse{}),
	ActionSetChargingProfile:     reflect.TypeOf(SetChargingProfileResponse{}),
	ActionClearChargingProfile:   reflect.TypeOf(ClearChargingProfileResponse{}),
	ActionGetCompositeSchedule:   reflect.TypeOf(GetCompositeScheduleResponse{}),
	ActionSendLocalList:          reflect.TypeOf(SendLocalListResponse{}),
	ActionGetLocalListVersion:    reflect.TypeOf(GetLocalListVersionResponse{}),
	ActionUpdateFirmware:         reflect.TypeOf(UpdateFirmwareResponse{}),
	ActionGetDiagnostics:         reflect.TypeOf(GetDiagnosticsResponse{}),
}

// IsKnownAction reports whether action has a registered request payload.
func IsKnownAction(action Action) bool {
	_, ok := requestTypes[action]
	return ok
}

// NewRequestPayload materialises a zero-valued pointer to action's request
// struct, or nil if the action is not registered.
func NewRequestPayload(action Action) interface{} {
	t, ok := requestTypes[action]
	if !ok {
		return nil
	}
	return reflect.New(t).Interface()
}

// NewResponsePayload materialises a zero-valued pointer to action's
// response struct, or nil if the action is not registered.
func NewResponsePayload(action Action) interface{} {
	t, ok := responseTypes[action]
	if !ok {
		return nil
	}
	return reflect.New(t).Interface()
}

// EncodeCall renders a CALL frame: [2, uniqueId, action, payload].
func EncodeCall(uniqueID string, action Action, payload interface{}) ([]byte, error) {
	return json.Marshal([]interface{}{MessageTypeCall, uniqueID, action, payload})
}

// EncodeCallResult renders a CALLRESULT frame: [3, uniqueId, payload].
func EncodeCallResult(uniqueID string, payload interface{}) ([]byte, error) {
	return json.Marshal([]interface{}{MessageTypeCallResult, uniqueID, payload})
}

// EncodeCallError renders a CALLERROR frame:
// [4, uniqueId, errorCode, errorDescription, errorDetails].
func EncodeCallError(uniqueID, errorCode, description string, details interface{}) ([]byte, error) {
	if details == nil {
		details = struct{}{}
	}
	return json.Marshal([]interface{}{MessageTypeCallError, uniqueID, errorCode, description, details})
}

// Decode parses raw wire bytes into a Frame, classifying malformed input
// and unrecognised CALL actions per spec.md §4.1.
func Decode(data []byte) (*Frame, *DecodeError) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, malformed("not a JSON array", err)
	}
	if len(raw) < 3 {
		return nil, malformed("array too short", nil)
	}

	var msgType int
	if err := json.Unmarshal(raw[0], &msgType); err != nil {
		return nil, malformed("message type is not an integer", err)
	}

	var uniqueID string
	if err := json.Unmarshal(raw[1], &uniqueID); err != nil {
		return nil, malformed("uniqueId is not a string", err)
	}
	if len(uniqueID) > MaxUniqueIDLen {
		return nil, malformed(fmt.Sprintf("uniqueId exceeds %d characters", MaxUniqueIDLen), nil)
	}

	switch MessageType(msgType) {
	case MessageTypeCall:
		if len(raw) != 4 {
			return nil, malformed("CALL must have exactly 4 elements", nil)
		}
		var action string
		if err := json.Unmarshal(raw[2], &action); err != nil {
			return nil, malformed("action is not a string", err)
		}
		if !IsKnownAction(Action(action)) {
			return nil, &DecodeError{Kind: UnknownAction, Message: action}
		}
		return &Frame{Type: MessageTypeCall, UniqueID: uniqueID, Action: Action(action), Payload: raw[3]}, nil

	case MessageTypeCallResult:
		if len(raw) != 3 {
			return nil, malformed("CALLRESULT must have exactly 3 elements", nil)
		}
		return &Frame{Type: MessageTypeCallResult, UniqueID: uniqueID, Payload: raw[2]}, nil

	case MessageTypeCallError:
		if len(raw) != 4 && len(raw) != 5 {
			return nil, malformed("CALLERROR must have 4 or 5 elements", nil)
		}
		var errorCode, description string
		if err := json.Unmarshal(raw[2], &errorCode); err != nil {
			return nil, malformed("errorCode is not a string", err)
		}
		if err := json.Unmarshal(raw[3], &description); err != nil {
			return nil, malformed("errorDescription is not a string", err)
		}
		frame := &Frame{
			Type:             MessageTypeCallError,
			UniqueID:         uniqueID,
			ErrorCode:        errorCode,
			ErrorDescription: description,
		}
		if len(raw) == 5 {
			frame.ErrorDetails = raw[4]
		}
		return frame, nil

	default:
		return nil, malformed(fmt.Sprintf("unknown message type %d", msgType), nil)
	}
}

// DecodePayload unmarshals a Frame's raw payload into target.
func DecodePayload(raw json.RawMessage, target interface{}) error {
	return json.Unmarshal(raw, target)
}
