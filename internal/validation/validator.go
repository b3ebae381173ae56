// Package validation wraps go-playground/validator/v10 with the struct-tag
// validation used by the inbound dispatcher (internal/dispatch) before a
// CALL payload reaches its handler.
package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator validates decoded OCPP payloads and frame envelopes.
type Validator struct {
	validate *validator.Validate
}

// ValidationError is one field-level validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Message
}

// ValidationErrors collects every failure from one ValidateStruct call.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	messages := make([]string, 0, len(e))
	for _, err := range e {
		messages = append(messages, err.Message)
	}
	return strings.Join(messages, "; ")
}

// NewValidator builds a Validator with the OCPP-specific tags registered.
func NewValidator() *Validator {
	validate := validator.New()
	registerCustomValidations(validate)
	return &Validator{validate: validate}
}

// ValidateStruct runs struct-tag validation and translates failures into
// ValidationErrors.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors ValidationErrors
	if validatorErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range validatorErrors {
			validationErrors = append(validationErrors, ValidationError{
				Field:   fe.Field(),
				Tag:     fe.Tag(),
				Value:   fmt.Sprintf("%v", fe.Value()),
				Message: errorMessage(fe),
			})
		}
	}
	return validationErrors
}

// ValidateJSON checks that data is well-formed JSON.
func (v *Validator) ValidateJSON(data []byte) error {
	var temp interface{}
	return json.Unmarshal(data, &temp)
}

// ValidateOCPPMessage validates a decoded frame's envelope fields (message
// type, uniqueId, action for CALL) ahead of payload-level validation.
func (v *Validator) ValidateOCPPMessage(messageType int, messageID string, action string, payload interface{}) error {
	if messageType < 2 || messageType > 4 {
		return ValidationError{
			Field:   "messageType",
			Tag:     "range",
			Value:   strconv.Itoa(messageType),
			Message: "message type must be 2 (Call), 3 (CallResult), or 4 (CallError)",
		}
	}

	if messageID == "" {
		return ValidationError{Field: "messageId", Tag: "required", Message: "message id is required"}
	}
	if len(messageID) > 36 {
		return ValidationError{Field: "messageId", Tag: "max", Value: messageID, Message: "message id must not exceed 36 characters"}
	}

	if messageType == 2 {
		if action == "" {
			return ValidationError{Field: "action", Tag: "required", Message: "action is required for Call messages"}
		}
		if !isValidAction(action) {
			return ValidationError{Field: "action", Tag: "invalid", Value: action, Message: "unrecognised OCPP action"}
		}
	}

	if payload != nil {
		return v.ValidateStruct(payload)
	}
	return nil
}

// ValidateMessageSize rejects frames larger than maxSize bytes.
func (v *Validator) ValidateMessageSize(data []byte, maxSize int) error {
	if len(data) > maxSize {
		return ValidationError{
			Field:   "message",
			Tag:     "max_size",
			Value:   fmt.Sprintf("%d bytes", len(data)),
			Message: fmt.Sprintf("message size %d bytes exceeds maximum allowed size %d bytes", len(data), maxSize),
		}
	}
	return nil
}

// ValidateChargePointID enforces the path-segment shape used in the
// transport's dial URL.
func (v *Validator) ValidateChargePointID(chargePointID string) error {
	if chargePointID == "" {
		return ValidationError{Field: "chargePointId", Tag: "required", Message: "charge point id is required"}
	}
	if len(chargePointID) > 25 {
		return ValidationError{Field: "chargePointId", Tag: "max", Value: chargePointID, Message: "charge point id must not exceed 25 characters"}
	}
	if matched, _ := regexp.MatchString(`^[a-zA-Z0-9\-_]+$`, chargePointID); !matched {
		return ValidationError{Field: "chargePointId", Tag: "format", Value: chargePointID, Message: "charge point id may only contain alphanumeric characters, hyphens and underscores"}
	}
	return nil
}

func registerCustomValidations(validate *validator.Validate) {
	validate.RegisterValidation("ocpp_id_token", validateOCPPIdToken)
	validate.RegisterValidation("ocpp_connector_id", validateOCPPConnectorID)
}

func validateOCPPIdToken(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	if len(value) > 20 {
		return false
	}
	matched, _ := regexp.MatchString(`^[a-zA-Z0-9*\-_.]+$`, value)
	return matched
}

func validateOCPPConnectorID(fl validator.FieldLevel) bool {
	return fl.Field().Int() >= 0
}

// isValidAction reports whether action is part of the OCPP 1.6 vocabulary
// this implementation supports, in either direction.
func isValidAction(action string) bool {
	return validActions[action]
}

var validActions = map[string]bool{
	"Authorize":              true,
	"BootNotification":       true,
	"ChangeAvailability":     true,
	"ChangeConfiguration":    true,
	"ClearCache":             true,
	"DataTransfer":           true,
	"GetConfiguration":       true,
	"Heartbeat":              true,
	"MeterValues":            true,
	"RemoteStartTransaction": true,
	"RemoteStopTransaction":  true,
	"Reset":                  true,
	"StartTransaction":       true,
	"StatusNotification":     true,
	"StopTransaction":        true,
	"UnlockConnector":        true,

	"GetDiagnostics":                true,
	"DiagnosticsStatusNotification": true,
	"FirmwareStatusNotification":    true,
	"UpdateFirmware":                true,

	"GetLocalListVersion": true,
	"SendLocalList":       true,

	"CancelReservation": true,
	"ReserveNow":        true,

	"ClearChargingProfile": true,
	"GetCompositeSchedule": true,
	"SetChargingProfile":   true,

	"TriggerMessage": true,
}

func errorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("field '%s' is required", fe.Field())
	case "min":
		return fmt.Sprintf("field '%s' must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("field '%s' must not exceed %s", fe.Field(), fe.Param())
	case "ocpp_id_token":
		return fmt.Sprintf("field '%s' must be a valid id token (max 20 characters)", fe.Field())
	case "ocpp_connector_id":
		return fmt.Sprintf("field '%s' must be a valid connector id (>= 0)", fe.Field())
	default:
		return fmt.Sprintf("field '%s' failed validation for tag '%s'", fe.Field(), fe.Tag())
	}
}
