package models

// ProjectStatus derives the externally reported execution status from the
// internal termination flag and the pending interrupt, if any. It is the
// single source of truth for status: stage code only ever sets the
// termination flag or emits an interrupt, never a status directly.
func ProjectStatus(interrupt *InterruptPayload, terminated bool) ExecutionStatus {
	switch {
	case terminated:
		return ExecutionStatusTerminated
	case interrupt != nil && interrupt.Type == InterruptReauthRequired:
		return ExecutionStatusAwaitingAuth
	case interrupt != nil:
		return ExecutionStatusAwaitingHuman
	default:
		return ExecutionStatusCompleted
	}
}
