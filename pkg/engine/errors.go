package engine

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrResumeInFlight indicates another resume is already driving this
	// execution. Concurrent resumes are rejected, not serialized.
	ErrResumeInFlight = errors.New("execution is already being resumed")

	// ErrNotSuspended indicates a resume was attempted on an execution that
	// is not waiting on a decision.
	ErrNotSuspended = errors.New("execution is not suspended")

	// ErrNotResumable indicates both the checkpoint and the durable snapshot
	// lack the identity needed to re-enter the graph.
	ErrNotResumable = errors.New("execution snapshot is not resumable")
)

var quotaMarkers = []string{
	"429",
	"quota",
	"resource_exhausted",
	"resource exhausted",
	"rate limit",
	"rate-limit",
	"too many requests",
}

// IsQuotaError reports whether an upstream failure looks like a quota or
// rate-limit rejection. Matching is by message because the signal crosses
// several client libraries with no shared error type.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}

	message := strings.ToLower(err.Error())
	for _, marker := range quotaMarkers {
		if strings.Contains(message, marker) {
			return true
		}
	}

	return false
}

// validationError marks input problems that terminate a run immediately,
// without retries.
type validationError struct {
	message string
}

func (e *validationError) Error() string {
	return e.message
}

func newValidationError(message string) error {
	return &validationError{message: message}
}

// IsValidationError reports whether the error came from input validation.
func IsValidationError(err error) bool {
	var ve *validationError

	return errors.As(err, &ve)
}

// terminationReason converts a stage failure into the user-facing reason
// recorded on the terminated run.
func terminationReason(stage string, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "Execution timed out."
	case IsQuotaError(err):
		return "Upstream quota or rate limit exhausted. Try again later."
	case IsValidationError(err):
		return err.Error()
	default:
		return stageFailureReason(stage, err)
	}
}

func stageFailureReason(stage string, err error) string {
	switch stage {
	case StageScrape:
		return "Could not scrape the article: " + err.Error()
	case StageAnalyze:
		return "Could not analyze the article: " + err.Error()
	case StageGenerate:
		return "Could not generate drafts: " + err.Error()
	default:
		return stage + " failed: " + err.Error()
	}
}
