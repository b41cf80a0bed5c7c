// Package persistence provides the data storage abstraction for executions
// and publishing connections.
package persistence

import (
	"context"
	"time"

	"github.com/publion/publion/pkg/models"
)

// Persistence is the storage layer consumed by the engine and services.
type Persistence interface {
	ExecutionRepository() ExecutionRepository
	ConnectionRepository() ConnectionRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ExecutionRepository stores the durable record of pipeline runs. Every
// mutation is a single atomic write keyed by execution id, so distinct runs
// never contend on the same row.
type ExecutionRepository interface {
	// Create inserts a new execution row. The execution id must be unique.
	Create(ctx context.Context, execution *models.Execution) error

	// GetByID returns the execution or ErrExecutionNotFound.
	GetByID(ctx context.Context, executionID string) (*models.Execution, error)

	// Save overwrites the state snapshot and status for an existing execution.
	Save(ctx context.Context, executionID string, state *models.PipelineState, status models.ExecutionStatus) error

	// FindActiveByIdempotencyKey returns the newest execution for the
	// (user, key) pair whose status is still active, or nil when none exists.
	FindActiveByIdempotencyKey(ctx context.Context, userID, idempotencyKey string) (*models.Execution, error)

	// ListByStatus returns executions in any of the given statuses, newest
	// first. An empty userID matches every user.
	ListByStatus(ctx context.Context, statuses []models.ExecutionStatus, userID string) ([]*models.Execution, error)

	// MarkStuckRunning terminates every execution still marked running and
	// returns how many were updated. Called on process start, when any
	// in-memory orchestration state for them is presumed lost.
	MarkStuckRunning(ctx context.Context, reason string) (int, error)

	// DeleteTerminalBefore removes completed and terminated executions last
	// updated before the cutoff. Returns how many rows were removed.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// ConnectionRepository stores connected publishing accounts. The engine reads
// these to decide whether a run must suspend for re-authentication.
type ConnectionRepository interface {
	Add(ctx context.Context, connection *models.SocialConnection) error
	GetByID(ctx context.Context, connectionID string) (*models.SocialConnection, error)
	ListByUser(ctx context.Context, userID string) ([]*models.SocialConnection, error)

	// GetDefault returns the default connection for (user, provider), falling
	// back to the oldest one when no default is flagged, or
	// ErrConnectionNotFound when the user has none for that provider.
	GetDefault(ctx context.Context, userID string, provider models.Provider) (*models.SocialConnection, error)

	// UpdateTokens replaces the stored token payload after a refresh.
	UpdateTokens(ctx context.Context, connectionID, tokenJSON string, expiresAt *time.Time) error

	Delete(ctx context.Context, connectionID, userID string) error
}
