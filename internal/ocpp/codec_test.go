package ocpp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseRFC3339(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse(dateTimeLayout, s)
	require.NoError(t, err)
	return parsed
}

func TestDecode_Call(t *testing.T) {
	data := []byte(`[2,"123","Heartbeat",{}]`)

	frame, decErr := Decode(data)

	require.Nil(t, decErr)
	assert.Equal(t, MessageTypeCall, frame.Type)
	assert.Equal(t, "123", frame.UniqueID)
	assert.Equal(t, ActionHeartbeat, frame.Action)
}

func TestDecode_CallResult(t *testing.T) {
	data := []byte(`[3,"123",{"currentTime":"2026-01-01T00:00:00.000Z"}]`)

	frame, decErr := Decode(data)

	require.Nil(t, decErr)
	assert.Equal(t, MessageTypeCallResult, frame.Type)
	assert.Equal(t, "123", frame.UniqueID)
}

func TestDecode_CallError(t *testing.T) {
	data := []byte(`[4,"123","InternalError","boom",{"detail":"x"}]`)

	frame, decErr := Decode(data)

	require.Nil(t, decErr)
	assert.Equal(t, MessageTypeCallError, frame.Type)
	assert.Equal(t, "InternalError", frame.ErrorCode)
	assert.Equal(t, "boom", frame.ErrorDescription)
}

func TestDecode_MalformedFrame(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not an array", `{"a":1}`},
		{"too short", `[2,"1"]`},
		{"wrong call arity", `[2,"1","Heartbeat"]`},
		{"bad message type", `["x","1","Heartbeat",{}]`},
		{"unique id too long", `[2,"0123456789012345678901234567890123456789","Heartbeat",{}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, decErr := Decode([]byte(tt.data))
			require.NotNil(t, decErr)
			assert.Equal(t, MalformedFrame, decErr.Kind)
		})
	}
}

func TestDecode_UnknownAction(t *testing.T) {
	_, decErr := Decode([]byte(`[2,"1","NoSuchAction",{}]`))

	require.NotNil(t, decErr)
	assert.Equal(t, UnknownAction, decErr.Kind)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	payload := HeartbeatRequest{}
	data, err := EncodeCall("7", ActionHeartbeat, payload)
	require.NoError(t, err)

	frame, decErr := Decode(data)
	require.Nil(t, decErr)
	assert.Equal(t, "7", frame.UniqueID)
	assert.Equal(t, ActionHeartbeat, frame.Action)

	var decoded HeartbeatRequest
	require.NoError(t, DecodePayload(frame.Payload, &decoded))
	assert.Equal(t, payload, decoded)
}

func TestEncodeCallError_DefaultsEmptyDetails(t *testing.T) {
	data, err := EncodeCallError("7", ErrInternalError, "boom", nil)
	require.NoError(t, err)

	frame, decErr := Decode(data)
	require.Nil(t, decErr)
	assert.JSONEq(t, `{}`, string(frame.ErrorDetails))
}

func TestDateTime_MarshalUnmarshal(t *testing.T) {
	dt := NewDateTime(mustParseRFC3339(t, "2026-03-04T05:06:07.891Z"))

	data, err := dt.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2026-03-04T05:06:07.891Z"`, string(data))

	var roundTripped DateTime
	require.NoError(t, roundTripped.UnmarshalJSON(data))
	assert.True(t, dt.Time.Equal(roundTripped.Time))
}
