// Package redis provides a Redis-backed checkpoint store for deployments
// where suspended runs should survive a process restart without falling back
// to snapshot rehydration.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/publion/publion/pkg/checkpoint"
)

const keyPrefix = "publion:checkpoint:"

// Checkpoints are kept for the same window as terminal executions.
const checkpointTTL = 30 * 24 * time.Hour

// Store keeps checkpoints as JSON values in Redis.
type Store struct {
	client goredis.UniversalClient
}

// NewStore connects to Redis and verifies the connection.
func NewStore(ctx context.Context, redisURL string) (*Store, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client}, nil
}

// Put stores or replaces the checkpoint for an execution.
func (s *Store) Put(ctx context.Context, cp *checkpoint.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint %s: %w", cp.ExecutionID, err)
	}

	if err := s.client.Set(ctx, keyPrefix+cp.ExecutionID, data, checkpointTTL).Err(); err != nil {
		return fmt.Errorf("failed to store checkpoint %s: %w", cp.ExecutionID, err)
	}

	return nil
}

// Get returns the checkpoint for an execution, or nil when none exists.
func (s *Store) Get(ctx context.Context, executionID string) (*checkpoint.Checkpoint, error) {
	data, err := s.client.Get(ctx, keyPrefix+executionID).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to load checkpoint %s: %w", executionID, err)
	}

	cp := &checkpoint.Checkpoint{}
	if err := json.Unmarshal(data, cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint %s: %w", executionID, err)
	}

	return cp, nil
}

// Delete removes the checkpoint for an execution.
func (s *Store) Delete(ctx context.Context, executionID string) error {
	if err := s.client.Del(ctx, keyPrefix+executionID).Err(); err != nil {
		return fmt.Errorf("failed to delete checkpoint %s: %w", executionID, err)
	}

	return nil
}

// Close closes the underlying Redis client.
func (s *Store) Close(_ context.Context) error {
	return s.client.Close()
}
