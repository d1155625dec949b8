package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = Close() })
	return mr
}

type counts struct {
	Company int `json:"company"`
}

func TestAside_CachesLoadedValue(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()

	calls := 0
	load := func(dest *counts) func() error {
		return func() error {
			calls++
			dest.Company = 3
			return nil
		}
	}

	key := PendingCountsKey(PendingCountsGeneration(ctx))
	var first counts
	require.NoError(t, Aside(ctx, key, &first, time.Minute, load(&first)))
	var second counts
	require.NoError(t, Aside(ctx, key, &second, time.Minute, load(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, 3, second.Company)
	assert.True(t, mr.Exists(key))

	InvalidatePendingCounts(ctx)
	assert.False(t, mr.Exists(key))
}

func TestPendingCounts_LoadRacingInvalidationIsOrphaned(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()

	// The load reads the queue, then a decision commits and invalidates
	// before the stale result is written back.
	before := PendingCountsKey(PendingCountsGeneration(ctx))
	var stale counts
	require.NoError(t, Aside(ctx, before, &stale, time.Minute, func() error {
		stale.Company = 2
		InvalidatePendingCounts(ctx)
		return nil
	}))
	assert.True(t, mr.Exists(before))

	after := PendingCountsKey(PendingCountsGeneration(ctx))
	require.NotEqual(t, before, after)

	var fresh counts
	calls := 0
	require.NoError(t, Aside(ctx, after, &fresh, time.Minute, func() error {
		calls++
		fresh.Company = 1
		return nil
	}))
	assert.Equal(t, 1, calls, "stale counts are not served")
	assert.Equal(t, 1, fresh.Company)
}

func TestAside_DoesNotCacheErrors(t *testing.T) {
	mr := withMiniredis(t)

	var dest counts
	err := Aside(context.Background(), UserKey(9), &dest, time.Minute, func() error {
		return errors.New("not found")
	})
	assert.Error(t, err)
	assert.False(t, mr.Exists(UserKey(9)))
}

func TestAside_WithoutRedisCallsLoad(t *testing.T) {
	_ = Close()
	called := false
	var dest counts
	require.NoError(t, Aside(context.Background(), "k", &dest, time.Minute, func() error {
		called = true
		return nil
	}))
	assert.True(t, called)
}

func TestDirectoryVersion_Bump(t *testing.T) {
	withMiniredis(t)
	ctx := context.Background()

	v0 := DirectoryVersion(ctx, "companies")
	BumpDirectory(ctx, "companies")
	v1 := DirectoryVersion(ctx, "companies")

	assert.Equal(t, v0+1, v1)
	assert.NotEqual(t, DirectoryKey("companies", v0, 20, 0), DirectoryKey("companies", v1, 20, 0))
}
