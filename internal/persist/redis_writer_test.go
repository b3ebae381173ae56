package persist_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charging-platform/fleet-simulator/internal/persist"
)

func TestRedisWriter_Write(t *testing.T) {
	db, mock := redismock.NewClientMock()
	w := &persist.RedisWriter{Client: db, Prefix: "fleetsim:"}
	ctx := context.Background()

	change := persist.Change{
		Kind:      persist.ChangeSession,
		SessionID: "CP001",
		Timestamp: time.Unix(0, 0).UTC(),
		Data:      map[string]string{"state": "CHARGING"},
	}

	mock.Regexp().ExpectSet("fleetsim:session:CP001", `.*`, 0).SetVal("OK")
	err := w.Write(ctx, change)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisWriter_Write_Error(t *testing.T) {
	db, mock := redismock.NewClientMock()
	w := &persist.RedisWriter{Client: db, Prefix: "fleetsim:"}
	ctx := context.Background()

	change := persist.Change{Kind: persist.ChangeProfile, SessionID: "CP002"}

	expectedErr := errors.New("redis set error")
	mock.Regexp().ExpectSet("fleetsim:charging_profile:CP002", `.*`, 0).SetErr(expectedErr)
	err := w.Write(ctx, change)
	assert.ErrorIs(t, err, expectedErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisWriter_Close(t *testing.T) {
	db, mock := redismock.NewClientMock()
	w := &persist.RedisWriter{Client: db, Prefix: "fleetsim:"}

	err := w.Close()
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoopWriter(t *testing.T) {
	var w persist.Writer = persist.NoopWriter{}
	err := w.Write(context.Background(), persist.Change{Kind: persist.ChangeSession, SessionID: "CP003"})
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
}
