// Package checkpoint stores suspension checkpoints for in-flight executions.
// A checkpoint pins the stage a run suspended at together with the live state,
// so a resume can re-enter the graph exactly where it left off. Checkpoints
// are best-effort: when one is lost the orchestrator rehydrates from the
// durable execution snapshot instead.
package checkpoint

import (
	"context"

	"github.com/publion/publion/pkg/models"
)

// Checkpoint is the suspension record for one execution.
type Checkpoint struct {
	ExecutionID string                `json:"execution_id"`
	Stage       string                `json:"stage"`
	State       *models.PipelineState `json:"state"`
}

// Store persists checkpoints between suspension and resume.
type Store interface {
	// Put stores or replaces the checkpoint for an execution.
	Put(ctx context.Context, cp *Checkpoint) error

	// Get returns the checkpoint for an execution, or nil when none exists.
	Get(ctx context.Context, executionID string) (*Checkpoint, error)

	// Delete removes the checkpoint for an execution. Deleting a missing
	// checkpoint is not an error.
	Delete(ctx context.Context, executionID string) error

	// Close releases any underlying resources.
	Close(ctx context.Context) error
}
