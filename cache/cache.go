// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/danielhkuo/mrpcast/models"
)

// RunCache caches run snapshots by run ID. Get reports a miss with
// (nil, false, nil).
type RunCache interface {
	Get(ctx context.Context, runID string) (*models.RunSnapshot, bool, error)
	Set(ctx context.Context, snap *models.RunSnapshot) error
	Delete(ctx context.Context, runID string) error
}

const keyPrefix = "mrpcast:run:"

// RedisCache stores JSON snapshots in Redis with a TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis parses url, pings the server and returns a cache.
func NewRedis(ctx context.Context, url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (c *RedisCache) Get(ctx context.Context, runID string) (*models.RunSnapshot, bool, error) {
	data, err := c.client.Get(ctx, keyPrefix+runID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var snap models.RunSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("decode cached run %s: %w", runID, err)
	}
	return &snap, true, nil
}

func (c *RedisCache) Set(ctx context.Context, snap *models.RunSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", snap.ID, err)
	}
	return c.client.Set(ctx, keyPrefix+snap.ID, data, c.ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, runID string) error {
	return c.client.Del(ctx, keyPrefix+runID).Err()
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Memory is a process-local cache without expiry.
type Memory struct {
	mu   sync.RWMutex
	runs map[string]*models.RunSnapshot
}

func NewMemory() *Memory {
	return &Memory{runs: make(map[string]*models.RunSnapshot)}
}

func (m *Memory) Get(_ context.Context, runID string) (*models.RunSnapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.runs[runID]
	return snap, ok, nil
}

func (m *Memory) Set(_ context.Context, snap *models.RunSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[snap.ID] = snap
	return nil
}

func (m *Memory) Delete(_ context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.runs, runID)
	return nil
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) (*models.RunSnapshot, bool, error) { return nil, false, nil }
func (Noop) Set(context.Context, *models.RunSnapshot) error                { return nil }
func (Noop) Delete(context.Context, string) error                          { return nil }
