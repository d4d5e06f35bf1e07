package mapping

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTTL_IsThirtyDays(t *testing.T) {
	assert.Equal(t, 30*24*time.Hour, DefaultTTL)
	assert.EqualValues(t, 2592000, DefaultTTL.Seconds())
}

func TestRedisStore_GetFound(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewRedisStore(db, "voiceauth:")

	mock.ExpectGet("voiceauth:caller:+15551234567").SetVal("usr_1")
	id, found, err := s.Get(context.Background(), "+15551234567")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "usr_1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_GetMissingIsNotAnError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewRedisStore(db, "voiceauth:")

	mock.ExpectGet("voiceauth:caller:+1").RedisNil()
	_, found, err := s.Get(context.Background(), "+1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStore_GetFailure(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewRedisStore(db, "voiceauth:")

	boom := errors.New("connection refused")
	mock.ExpectGet("voiceauth:caller:+1").SetErr(boom)
	_, found, err := s.Get(context.Background(), "+1")
	assert.ErrorIs(t, err, boom)
	assert.False(t, found)
}

func TestRedisStore_PutUsesTTL(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewRedisStore(db, "voiceauth:")

	mock.ExpectSet("voiceauth:caller:+1", "usr_2", DefaultTTL).SetVal("OK")
	require.NoError(t, s.Put(context.Background(), "+1", "usr_2", DefaultTTL))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_PutValidates(t *testing.T) {
	db, _ := redismock.NewClientMock()
	s := NewRedisStore(db, "")
	assert.ErrorIs(t, s.Put(context.Background(), "", "u", time.Hour), ErrInvalidArgument)
	assert.ErrorIs(t, s.Put(context.Background(), "+1", "u", 0), ErrInvalidArgument)
}

func TestRedisStore_ImplementsStore(t *testing.T) {
	var _ Store = (*RedisStore)(nil)
	var _ redis.Cmdable = (*redis.Client)(nil)
}

func TestMemoryStore_ExpiresEntries(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := NewMemoryStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "+1", "usr_1", time.Hour))
	id, found, err := s.Get(ctx, "+1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "usr_1", id)

	now = now.Add(time.Hour)
	_, found, err = s.Get(ctx, "+1")
	require.NoError(t, err)
	assert.False(t, found)
}
