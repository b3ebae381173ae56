package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charging-platform/fleet-simulator/internal/ocpp"
)

func TestValidateStruct_RejectsMissingRequiredField(t *testing.T) {
	v := NewValidator()

	err := v.ValidateStruct(ocpp.BootNotificationRequest{})

	require.Error(t, err)
	validationErrs, ok := err.(ValidationErrors)
	require.True(t, ok)
	assert.NotEmpty(t, validationErrs)
}

func TestValidateStruct_AcceptsValidPayload(t *testing.T) {
	v := NewValidator()

	err := v.ValidateStruct(ocpp.BootNotificationRequest{
		ChargePointVendor: "Acme",
		ChargePointModel:  "X1",
	})

	assert.NoError(t, err)
}

func TestValidateOCPPMessage_RejectsUnknownAction(t *testing.T) {
	v := NewValidator()

	err := v.ValidateOCPPMessage(2, "1", "NoSuchAction", nil)

	require.Error(t, err)
	assert.Equal(t, "action", err.(ValidationError).Field)
}

func TestValidateOCPPMessage_RejectsLongMessageID(t *testing.T) {
	v := NewValidator()

	long := make([]byte, 37)
	for i := range long {
		long[i] = 'a'
	}

	err := v.ValidateOCPPMessage(2, string(long), "Heartbeat", nil)

	require.Error(t, err)
	assert.Equal(t, "messageId", err.(ValidationError).Field)
}

func TestValidateChargePointID(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateChargePointID("CP-001"))
	assert.Error(t, v.ValidateChargePointID(""))
	assert.Error(t, v.ValidateChargePointID("bad id with spaces"))
}

func TestValidateMessageSize(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateMessageSize([]byte("short"), 10))
	assert.Error(t, v.ValidateMessageSize([]byte("this is far too long"), 10))
}
