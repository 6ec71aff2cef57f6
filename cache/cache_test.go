// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/mrpcast/models"
)

func testSnapshot() *models.RunSnapshot {
	return &models.RunSnapshot{
		ID:          uuid.NewString(),
		Variant:     "base",
		TargetParty: "LAB",
		CreatedAt:   time.Date(2024, 7, 5, 9, 0, 0, 0, time.UTC),
		Estimate: models.AggregatedEstimate{
			Draws:    50,
			Interval: 0.9,
			National: models.Summary{Mean: 0.41, SD: 0.01, Lower: 0.39, Upper: 0.43},
		},
	}
}

func exerciseCache(t *testing.T, c RunCache) {
	t.Helper()
	ctx := context.Background()
	snap := testSnapshot()

	_, ok, err := c.Get(ctx, snap.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, snap))
	got, ok, err := c.Get(ctx, snap.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snap.ID, got.ID)
	assert.Equal(t, snap.Estimate.National, got.Estimate.National)
	assert.True(t, snap.CreatedAt.Equal(got.CreatedAt))

	require.NoError(t, c.Delete(ctx, snap.ID))
	_, ok, err = c.Get(ctx, snap.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory(t *testing.T) {
	exerciseCache(t, NewMemory())
}

func TestNoop(t *testing.T) {
	ctx := context.Background()
	var c RunCache = Noop{}
	require.NoError(t, c.Set(ctx, testSnapshot()))
	_, ok, err := c.Get(ctx, "any")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Delete(ctx, "any"))
}

// Runs against a live server when REDIS_URL is set.
func TestRedisCache(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	c, err := NewRedis(context.Background(), url, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	exerciseCache(t, c)
}

func TestNewRedisBadURL(t *testing.T) {
	_, err := NewRedis(context.Background(), "not a url", time.Minute)
	assert.Error(t, err)
}
