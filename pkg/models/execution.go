// Package models defines the core domain models for the content-to-publication pipeline.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus is the externally visible state of one pipeline run.
type ExecutionStatus string

const (
	ExecutionStatusRunning       ExecutionStatus = "running"
	ExecutionStatusAwaitingHuman ExecutionStatus = "awaiting_human"
	ExecutionStatusAwaitingAuth  ExecutionStatus = "awaiting_auth"
	ExecutionStatusCompleted     ExecutionStatus = "completed"
	ExecutionStatusTerminated    ExecutionStatus = "terminated"
)

// ActiveStatuses are the statuses that count as an in-flight run for
// idempotent creation: a second create for the same (user, url) returns the
// existing execution instead of starting a new one.
var ActiveStatuses = []ExecutionStatus{
	ExecutionStatusRunning,
	ExecutionStatusAwaitingHuman,
	ExecutionStatusAwaitingAuth,
}

// IsActive reports whether the status still allows forward progress.
func (s ExecutionStatus) IsActive() bool {
	for _, active := range ActiveStatuses {
		if s == active {
			return true
		}
	}

	return false
}

// Execution is the durable record of one end-to-end pipeline run. The State
// snapshot is written at stage-boundary checkpoints and on every
// suspension/terminal transition; it is the source of truth for rehydration
// after a process restart.
type Execution struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	URL            string          `json:"url"`
	Status         ExecutionStatus `json:"status"`
	State          *PipelineState  `json:"state"`
	IdempotencyKey string          `json:"idempotency_key"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewExecutionID generates a globally unique execution identifier.
func NewExecutionID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// ComputeIdempotencyKey derives the duplicate-run key for a (user, url) pair.
func ComputeIdempotencyKey(userID, url string) string {
	sum := sha256.Sum256([]byte(userID + "\n" + url))

	return hex.EncodeToString(sum[:])[:32]
}
