package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"schoolbills/internal/infrastructure/lock"
	"schoolbills/internal/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockOwnerCarriesRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestIDFrom(ctx))

	a, b := lockOwner(ctx), lockOwner(ctx)
	assert.True(t, strings.HasPrefix(a, "req-1:"))
	assert.NotEqual(t, a, b)

	assert.Equal(t, "", RequestIDFrom(context.Background()))
	assert.NotEmpty(t, lockOwner(context.Background()))
	assert.Equal(t, context.Background(), WithRequestID(context.Background(), ""))
}

func TestRedisBatchLockerHoldsLockForRequest(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	locker := RedisBatchLocker(client, 200*time.Millisecond, logger.Discard())

	release, err := locker(WithRequestID(context.Background(), "req-7"))
	require.NoError(t, err)

	owner, err := mr.Get(lock.BatchSaveLockKey)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(owner, "req-7:"), owner)

	// 锁被占用时第二个批次等到重试次数用完
	_, err = locker(context.Background())
	assert.ErrorIs(t, err, lock.ErrLockFailed)

	release()
	assert.False(t, mr.Exists(lock.BatchSaveLockKey))

	release, err = locker(context.Background())
	require.NoError(t, err)
	release()
}
