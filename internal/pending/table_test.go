package pending

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charging-platform/fleet-simulator/internal/ocpp"
)

func TestRegister_DuplicateIDFails(t *testing.T) {
	table := New()

	_, err := table.Register("1", ocpp.ActionHeartbeat, DefaultTimeout)
	require.NoError(t, err)

	_, err = table.Register("1", ocpp.ActionHeartbeat, DefaultTimeout)
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestResolve_DeliversPayload(t *testing.T) {
	table := New()
	future, err := table.Register("1", ocpp.ActionHeartbeat, DefaultTimeout)
	require.NoError(t, err)

	ok := table.Resolve("1", ocpp.HeartbeatResponse{})
	require.True(t, ok)

	result := future.Wait()
	assert.NoError(t, result.Err)
	assert.Equal(t, 0, table.Len())
}

func TestResolve_UnknownIDIsNoop(t *testing.T) {
	table := New()
	assert.False(t, table.Resolve("unknown", nil))
}

func TestFail_DeliversError(t *testing.T) {
	table := New()
	future, err := table.Register("1", ocpp.ActionStartTransaction, DefaultTimeout)
	require.NoError(t, err)

	table.Fail("1", "InternalError", "boom")

	result := future.Wait()
	assert.Error(t, result.Err)
	assert.Equal(t, "InternalError", result.ErrorCode)
}

func TestExpire_TimesOutPastDeadline(t *testing.T) {
	table := New()
	future, err := table.Register("1", ocpp.ActionHeartbeat, time.Millisecond)
	require.NoError(t, err)

	n := table.Expire(time.Now().Add(time.Second))
	assert.Equal(t, 1, n)

	result := future.Wait()
	assert.ErrorIs(t, result.Err, ErrTimeout)
}

func TestExpire_LeavesUnexpiredEntries(t *testing.T) {
	table := New()
	_, err := table.Register("1", ocpp.ActionHeartbeat, time.Hour)
	require.NoError(t, err)

	n := table.Expire(time.Now())
	assert.Equal(t, 0, n)
	assert.Equal(t, 1, table.Len())
}

func TestFailAll_CancelsEveryPendingCall(t *testing.T) {
	table := New()
	f1, _ := table.Register("1", ocpp.ActionHeartbeat, DefaultTimeout)
	f2, _ := table.Register("2", ocpp.ActionMeterValues, DefaultTimeout)

	n := table.FailAll(ErrCancelled)
	assert.Equal(t, 2, n)

	assert.ErrorIs(t, f1.Wait().Err, ErrCancelled)
	assert.ErrorIs(t, f2.Wait().Err, ErrCancelled)
	assert.Equal(t, 0, table.Len())
}

func TestNextUniqueID_Monotonic(t *testing.T) {
	table := New()
	a := table.NextUniqueID()
	b := table.NextUniqueID()
	assert.NotEqual(t, a, b)
}
