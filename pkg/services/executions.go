package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/publion/publion/pkg/engine"
	"github.com/publion/publion/pkg/models"
	"github.com/publion/publion/pkg/persistence"
)

// DefaultRetention is how long completed and terminated executions are kept
// before the retention sweep removes them.
const DefaultRetention = 30 * 24 * time.Hour

// restartTerminationReason marks rows whose driving process died mid-run.
const restartTerminationReason = "Execution terminated: process restarted"

// Executions is the application service for pipeline runs. It owns idempotent
// creation and the durable row; the orchestrator owns everything that happens
// to a run after that.
type Executions struct {
	persistence  persistence.Persistence
	orchestrator *engine.Orchestrator
	logger       *slog.Logger
}

// NewExecutions creates the executions service.
func NewExecutions(p persistence.Persistence, orchestrator *engine.Orchestrator, logger *slog.Logger) *Executions {
	return &Executions{
		persistence:  p,
		orchestrator: orchestrator,
		logger:       logger.With("module", "executions-service"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (e *Executions) HealthCheck(ctx context.Context) (string, bool) {
	if e.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := e.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateExecutionRequest is the input for starting a run.
type CreateExecutionRequest struct {
	UserID string `json:"user_id" validate:"required"`
	URL    string `json:"url"     validate:"required,url"`
}

// Create starts a pipeline run for a (user, url) pair. Creation is
// idempotent: when an active run already exists for the pair, that run is
// returned and no new one starts. The returned bool reports whether a new
// run was created.
func (e *Executions) Create(ctx context.Context, req CreateExecutionRequest) (*models.Execution, bool, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.URL = strings.TrimSpace(req.URL)

	if req.UserID == "" {
		return nil, false, ErrUserIDRequired
	}

	if req.URL == "" {
		return nil, false, ErrURLRequired
	}

	key := models.ComputeIdempotencyKey(req.UserID, req.URL)

	existing, err := e.persistence.ExecutionRepository().FindActiveByIdempotencyKey(ctx, req.UserID, key)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check for active execution: %w", err)
	}

	if existing != nil {
		e.logger.InfoContext(ctx, "returning active execution for duplicate create",
			"execution_id", existing.ID, "user_id", req.UserID)

		return existing, false, nil
	}

	executionID := models.NewExecutionID()
	now := time.Now().UTC()

	execution := &models.Execution{
		ID:             executionID,
		UserID:         req.UserID,
		URL:            req.URL,
		Status:         models.ExecutionStatusRunning,
		State:          models.NewPipelineState(executionID, req.UserID, req.URL),
		IdempotencyKey: key,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := e.persistence.ExecutionRepository().Create(ctx, execution); err != nil {
		return nil, false, fmt.Errorf("failed to create execution: %w", err)
	}

	// The run is driven detached from the request: the row above is the
	// client's handle on it.
	runCtx := context.WithoutCancel(ctx)

	go e.orchestrator.Start(runCtx, execution.State)

	return execution, true, nil
}

// Get returns one execution. A non-empty userID restricts the lookup to that
// user's runs.
func (e *Executions) Get(ctx context.Context, executionID, userID string) (*models.Execution, error) {
	execution, err := e.persistence.ExecutionRepository().GetByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if userID != "" && execution.UserID != userID {
		return nil, persistence.NewExecutionError("Get", executionID, persistence.ErrExecutionNotFound)
	}

	return execution, nil
}

// Inbox lists the user's suspended runs, the ones waiting on a human
// decision or a reconnected account. An empty userID lists every user's.
func (e *Executions) Inbox(ctx context.Context, userID string) ([]*models.Execution, error) {
	statuses := []models.ExecutionStatus{
		models.ExecutionStatusAwaitingHuman,
		models.ExecutionStatusAwaitingAuth,
	}

	executions, err := e.persistence.ExecutionRepository().ListByStatus(ctx, statuses, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list suspended executions: %w", err)
	}

	return executions, nil
}

// Resume feeds a review decision into a suspended run and drives it until the
// next suspension or terminal state. The returned execution reflects the
// outcome of that segment.
func (e *Executions) Resume(ctx context.Context, executionID, userID string, action *models.HitlAction) (*models.Execution, error) {
	// Ownership is checked before the engine touches the run.
	if _, err := e.Get(ctx, executionID, userID); err != nil {
		return nil, err
	}

	if err := e.orchestrator.Resume(ctx, executionID, action); err != nil {
		return nil, mapEngineError(err)
	}

	return e.persistence.ExecutionRepository().GetByID(ctx, executionID)
}

// RecoverStuck terminates executions left marked running by a previous
// process. Called once on startup before the API accepts traffic.
func (e *Executions) RecoverStuck(ctx context.Context) (int, error) {
	count, err := e.persistence.ExecutionRepository().MarkStuckRunning(ctx, restartTerminationReason)
	if err != nil {
		return 0, fmt.Errorf("failed to recover stuck executions: %w", err)
	}

	if count > 0 {
		e.logger.WarnContext(ctx, "terminated executions stuck in running", "count", count)
	}

	return count, nil
}

// SweepTerminal removes completed and terminated executions older than the
// retention window.
func (e *Executions) SweepTerminal(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}

	count, err := e.persistence.ExecutionRepository().DeleteTerminalBefore(ctx, time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to sweep terminal executions: %w", err)
	}

	if count > 0 {
		e.logger.InfoContext(ctx, "swept terminal executions", "count", count)
	}

	return count, nil
}
