// Package memory provides the in-process checkpoint store. It is the default
// and matches the single-process deployment: checkpoints do not survive a
// restart, which is exactly what the rehydration path covers.
package memory

import (
	"context"
	"sync"

	"github.com/publion/publion/pkg/checkpoint"
)

// Store keeps checkpoints in a map guarded by a mutex.
type Store struct {
	mu          sync.RWMutex
	checkpoints map[string]*checkpoint.Checkpoint
}

// NewStore creates an empty in-memory checkpoint store.
func NewStore() *Store {
	return &Store{checkpoints: make(map[string]*checkpoint.Checkpoint)}
}

// Put stores or replaces the checkpoint for an execution.
func (s *Store) Put(_ context.Context, cp *checkpoint.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.checkpoints[cp.ExecutionID] = cp

	return nil
}

// Get returns the checkpoint for an execution, or nil when none exists.
func (s *Store) Get(_ context.Context, executionID string) (*checkpoint.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.checkpoints[executionID], nil
}

// Delete removes the checkpoint for an execution.
func (s *Store) Delete(_ context.Context, executionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.checkpoints, executionID)

	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close(_ context.Context) error {
	return nil
}
