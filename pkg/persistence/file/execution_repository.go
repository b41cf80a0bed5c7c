package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/publion/publion/pkg/models"
	"github.com/publion/publion/pkg/persistence"
)

const dirPerm = 0o755

// ExecutionRepository stores one JSON file per execution under
// <root>/executions.
type ExecutionRepository struct {
	root string
	mu   sync.RWMutex
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (er *ExecutionRepository) dir() string {
	return filepath.Join(er.root, "executions")
}

func (er *ExecutionRepository) path(executionID string) string {
	return filepath.Join(er.dir(), executionID+".json")
}

// Create inserts a new execution file.
func (er *ExecutionRepository) Create(_ context.Context, execution *models.Execution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	if err := os.MkdirAll(er.dir(), dirPerm); err != nil {
		return fmt.Errorf("failed to create executions directory: %w", err)
	}

	if _, err := os.Stat(er.path(execution.ID)); err == nil {
		return persistence.NewExecutionError("Create", execution.ID, persistence.ErrExecutionAlreadyExists)
	}

	return er.write(execution)
}

// GetByID returns the execution or ErrExecutionNotFound.
func (er *ExecutionRepository) GetByID(_ context.Context, executionID string) (*models.Execution, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	return er.read(executionID)
}

// Save overwrites the state snapshot and status for an existing execution.
func (er *ExecutionRepository) Save(_ context.Context, executionID string, state *models.PipelineState, status models.ExecutionStatus) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	execution, err := er.read(executionID)
	if err != nil {
		return err
	}

	execution.State = state
	execution.Status = status
	execution.UpdatedAt = time.Now().UTC()

	return er.write(execution)
}

// FindActiveByIdempotencyKey returns the newest active execution for the
// (user, key) pair, or nil when none exists.
func (er *ExecutionRepository) FindActiveByIdempotencyKey(ctx context.Context, userID, idempotencyKey string) (*models.Execution, error) {
	executions, err := er.ListByStatus(ctx, models.ActiveStatuses, userID)
	if err != nil {
		return nil, err
	}

	for _, execution := range executions {
		if execution.IdempotencyKey == idempotencyKey {
			return execution, nil
		}
	}

	return nil, nil
}

// ListByStatus returns executions in any of the given statuses, newest first.
func (er *ExecutionRepository) ListByStatus(_ context.Context, statuses []models.ExecutionStatus, userID string) ([]*models.Execution, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	executions, err := er.readAll()
	if err != nil {
		return nil, err
	}

	wanted := make(map[models.ExecutionStatus]bool, len(statuses))
	for _, status := range statuses {
		wanted[status] = true
	}

	filtered := make([]*models.Execution, 0, len(executions))

	for _, execution := range executions {
		if !wanted[execution.Status] {
			continue
		}

		if userID != "" && execution.UserID != userID {
			continue
		}

		filtered = append(filtered, execution)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].UpdatedAt.After(filtered[j].UpdatedAt)
	})

	return filtered, nil
}

// MarkStuckRunning terminates every execution still marked running.
func (er *ExecutionRepository) MarkStuckRunning(_ context.Context, reason string) (int, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	executions, err := er.readAll()
	if err != nil {
		return 0, err
	}

	count := 0

	for _, execution := range executions {
		if execution.Status != models.ExecutionStatusRunning {
			continue
		}

		if execution.State == nil {
			execution.State = &models.PipelineState{ExecutionID: execution.ID}
		}

		execution.State.Terminate(reason)
		execution.Status = models.ExecutionStatusTerminated
		execution.UpdatedAt = time.Now().UTC()

		if err := er.write(execution); err != nil {
			return count, err
		}

		count++
	}

	return count, nil
}

// DeleteTerminalBefore removes completed and terminated executions last
// updated before the cutoff.
func (er *ExecutionRepository) DeleteTerminalBefore(_ context.Context, cutoff time.Time) (int, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	executions, err := er.readAll()
	if err != nil {
		return 0, err
	}

	count := 0

	for _, execution := range executions {
		terminal := execution.Status == models.ExecutionStatusCompleted || execution.Status == models.ExecutionStatusTerminated
		if !terminal || !execution.UpdatedAt.Before(cutoff) {
			continue
		}

		if err := os.Remove(er.path(execution.ID)); err != nil {
			return count, fmt.Errorf("failed to remove execution %s: %w", execution.ID, err)
		}

		count++
	}

	return count, nil
}

func (er *ExecutionRepository) read(executionID string) (*models.Execution, error) {
	data, err := os.ReadFile(er.path(executionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewExecutionError("GetByID", executionID, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", executionID, err)
	}

	execution := &models.Execution{}
	if err := json.Unmarshal(data, execution); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution %s: %w", executionID, err)
	}

	return execution, nil
}

func (er *ExecutionRepository) readAll() ([]*models.Execution, error) {
	root := os.DirFS(er.dir())

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	executions := make([]*models.Execution, 0, len(jsonFiles))

	for _, name := range jsonFiles {
		execution, err := er.read(name[:len(name)-len(".json")])
		if err != nil {
			return nil, err
		}

		executions = append(executions, execution)
	}

	return executions, nil
}

func (er *ExecutionRepository) write(execution *models.Execution) error {
	if err := os.MkdirAll(er.dir(), dirPerm); err != nil {
		return fmt.Errorf("failed to create executions directory: %w", err)
	}

	data, err := json.MarshalIndent(execution, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", execution.ID, err)
	}

	if err := os.WriteFile(er.path(execution.ID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write execution %s: %w", execution.ID, err)
	}

	return nil
}
