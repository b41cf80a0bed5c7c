package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/publion/publion/pkg/models"
	"github.com/publion/publion/pkg/persistence"
)

// ExecutionRepository handles execution-related database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

// Create inserts a new execution row.
func (er *ExecutionRepository) Create(ctx context.Context, execution *models.Execution) error {
	stateJSON, err := json.Marshal(execution.State)
	if err != nil {
		return fmt.Errorf("failed to marshal execution state: %w", err)
	}

	query := `
		INSERT INTO executions (id, user_id, url, status, state, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = er.db.ExecContext(ctx, query,
		execution.ID,
		execution.UserID,
		execution.URL,
		execution.Status,
		stateJSON,
		execution.IdempotencyKey,
		execution.CreatedAt,
		execution.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return persistence.NewExecutionError("Create", execution.ID, persistence.ErrExecutionAlreadyExists)
		}

		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	return nil
}

// GetByID returns the execution or ErrExecutionNotFound.
func (er *ExecutionRepository) GetByID(ctx context.Context, executionID string) (*models.Execution, error) {
	query := `
		SELECT id, user_id, url, status, state, idempotency_key, created_at, updated_at
		FROM executions
		WHERE id = $1
	`

	execution, err := er.scanExecution(er.db.QueryRowContext(ctx, query, executionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetByID", executionID, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", executionID, err)
	}

	return execution, nil
}

// Save overwrites the state snapshot and status for an existing execution.
// The write is a single atomic UPDATE keyed by execution id.
func (er *ExecutionRepository) Save(ctx context.Context, executionID string, state *models.PipelineState, status models.ExecutionStatus) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal execution state: %w", err)
	}

	query := `
		UPDATE executions
		SET state = $2, status = $3, updated_at = NOW()
		WHERE id = $1
	`

	result, err := er.db.ExecContext(ctx, query, executionID, stateJSON, status)
	if err != nil {
		return persistence.NewExecutionError("Save", executionID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError("Save", executionID, err)
	}

	if affected == 0 {
		return persistence.NewExecutionError("Save", executionID, persistence.ErrExecutionNotFound)
	}

	return nil
}

// FindActiveByIdempotencyKey returns the newest active execution for the
// (user, key) pair, or nil when none exists.
func (er *ExecutionRepository) FindActiveByIdempotencyKey(ctx context.Context, userID, idempotencyKey string) (*models.Execution, error) {
	query := `
		SELECT id, user_id, url, status, state, idempotency_key, created_at, updated_at
		FROM executions
		WHERE user_id = $1 AND idempotency_key = $2 AND status = ANY($3)
		ORDER BY created_at DESC
		LIMIT 1
	`

	execution, err := er.scanExecution(er.db.QueryRowContext(ctx, query, userID, idempotencyKey, pq.Array(statusStrings(models.ActiveStatuses))))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, persistence.NewExecutionError("FindActiveByIdempotencyKey", "", err)
	}

	return execution, nil
}

// ListByStatus returns executions in any of the given statuses, newest first.
func (er *ExecutionRepository) ListByStatus(ctx context.Context, statuses []models.ExecutionStatus, userID string) ([]*models.Execution, error) {
	query := `
		SELECT id, user_id, url, status, state, idempotency_key, created_at, updated_at
		FROM executions
		WHERE status = ANY($1) AND ($2 = '' OR user_id = $2)
		ORDER BY updated_at DESC
	`

	rows, err := er.db.QueryContext(ctx, query, pq.Array(statusStrings(statuses)), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			er.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var executions []*models.Execution

	for rows.Next() {
		execution, err := er.scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

// MarkStuckRunning terminates every execution still marked running. The state
// snapshot is patched in the same statement so status and snapshot stay
// consistent.
func (er *ExecutionRepository) MarkStuckRunning(ctx context.Context, reason string) (int, error) {
	query := `
		UPDATE executions
		SET status = $1,
		    state = state || jsonb_build_object(
		        'terminated', true,
		        'terminate_reason', $2::text,
		        'updated_at', to_char(NOW() AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"')
		    ),
		    updated_at = NOW()
		WHERE status = $3
	`

	result, err := er.db.ExecContext(ctx, query, models.ExecutionStatusTerminated, reason, models.ExecutionStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stuck executions: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count stuck executions: %w", err)
	}

	return int(affected), nil
}

// DeleteTerminalBefore removes completed and terminated executions last
// updated before the cutoff.
func (er *ExecutionRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		DELETE FROM executions
		WHERE status IN ($1, $2) AND updated_at < $3
	`

	result, err := er.db.ExecContext(ctx, query, models.ExecutionStatusCompleted, models.ExecutionStatusTerminated, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete terminal executions: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted executions: %w", err)
	}

	return int(affected), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (er *ExecutionRepository) scanExecution(row rowScanner) (*models.Execution, error) {
	var (
		execution models.Execution
		stateJSON []byte
	)

	err := row.Scan(
		&execution.ID,
		&execution.UserID,
		&execution.URL,
		&execution.Status,
		&stateJSON,
		&execution.IdempotencyKey,
		&execution.CreatedAt,
		&execution.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(stateJSON) > 0 {
		state := &models.PipelineState{}
		if err := json.Unmarshal(stateJSON, state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution state: %w", err)
		}

		execution.State = state
	}

	return &execution, nil
}

func statusStrings(statuses []models.ExecutionStatus) []string {
	out := make([]string, len(statuses))
	for i, status := range statuses {
		out[i] = string(status)
	}

	return out
}
