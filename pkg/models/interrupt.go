package models

// InterruptType tags the reason a run suspended.
type InterruptType string

const (
	// InterruptHumanReview pauses the run for reviewer approval of the drafts.
	InterruptHumanReview InterruptType = "human_review"

	// InterruptReauthRequired pauses the run until missing platform
	// credentials are connected out of band.
	InterruptReauthRequired InterruptType = "reauth_required"
)

// InterruptPayload describes a suspension to whoever polls the execution. It
// is created by a stage, surfaced once, consumed by the resume call and
// discarded afterwards.
type InterruptPayload struct {
	Type        InterruptType `json:"type"`
	ExecutionID string        `json:"execution_id"`
	UserID      string        `json:"user_id"`
	Message     string        `json:"message,omitempty"`

	// human_review fields.
	URL            string          `json:"url,omitempty"`
	TwitterDraft   string          `json:"twitter_draft,omitempty"`
	LinkedInDraft  string          `json:"linkedin_draft,omitempty"`
	ImageMetadata  *ImageMetadata  `json:"image_metadata,omitempty"`
	AnalysisResult *AnalysisResult `json:"analysis_result,omitempty"`

	// reauth_required fields.
	Needs []string `json:"needs,omitempty"`
}

// NewHumanReviewInterrupt builds the payload surfaced to the review inbox.
func NewHumanReviewInterrupt(state *PipelineState) *InterruptPayload {
	return &InterruptPayload{
		Type:           InterruptHumanReview,
		ExecutionID:    state.ExecutionID,
		UserID:         state.UserID,
		URL:            state.URL,
		TwitterDraft:   state.TwitterDraft,
		LinkedInDraft:  state.LinkedInDraft,
		ImageMetadata:  state.ImageMetadata,
		AnalysisResult: state.AnalysisResult,
		Message:        "Awaiting human actions (edit/approve/reject/regenerate).",
	}
}

// NewReauthInterrupt builds the payload listing the providers that still need
// a valid connection before publishing can proceed.
func NewReauthInterrupt(state *PipelineState, needs []string) *InterruptPayload {
	return &InterruptPayload{
		Type:        InterruptReauthRequired,
		ExecutionID: state.ExecutionID,
		UserID:      state.UserID,
		Needs:       needs,
		Message:     "Authentication required before publishing. Connect the listed providers, then resume.",
	}
}
