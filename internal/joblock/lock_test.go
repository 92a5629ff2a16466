package joblock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocker(client), mr
}

func TestTryLockIsExclusiveUntilReleased(t *testing.T) {
	locker, _ := newLocker(t)
	ctx := context.Background()

	token, ok, err := locker.TryLock(ctx, "ecert-fulltime", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, token)

	_, ok, err = locker.TryLock(ctx, "ECERT-FULLTIME", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locker.Release(ctx, "ecert-fulltime", token))
	_, ok, err = locker.TryLock(ctx, "ecert-fulltime", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseIgnoresForeignToken(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	token, ok, err := locker.TryLock(ctx, "cra-request", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, locker.Release(ctx, "cra-request", "someone-else"))
	got, err := mr.Get(Key("cra-request"))
	require.NoError(t, err)
	assert.Equal(t, token, got)
}

func TestLockExpires(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	_, ok, err := locker.TryLock(ctx, "loan-balances", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, err = locker.TryLock(ctx, "loan-balances", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTryLockValidatesInput(t *testing.T) {
	locker, _ := newLocker(t)
	ctx := context.Background()

	_, _, err := locker.TryLock(ctx, " ", time.Minute)
	assert.ErrorIs(t, err, ErrEmptyJob)
	_, _, err = locker.TryLock(ctx, "cra-request", 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)

	var missing *Locker
	_, _, err = missing.TryLock(ctx, "cra-request", time.Minute)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.NoError(t, missing.Release(ctx, "cra-request", "token"))
}
