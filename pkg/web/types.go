// Package web provides HTTP request and response types for the pipeline API.
package web

import (
	"time"

	"github.com/publion/publion/pkg/models"
)

// ErrorResponse represents a standardized API error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// CreateExecutionRequest represents the request body for starting a run.
type CreateExecutionRequest struct {
	UserID string `json:"user_id" validate:"required"`
	URL    string `json:"url"     validate:"required,url"`
}

// ActionRequest represents the request body for resuming a suspended run with
// a review decision. All fields are optional; an empty action re-surfaces the
// review prompt.
type ActionRequest struct {
	UserID string `json:"user_id" validate:"required"`

	ApproveContent     bool `json:"approve_content"`
	RejectContent      bool `json:"reject_content"`
	ApproveImage       bool `json:"approve_image"`
	RejectImage        bool `json:"reject_image"`
	RegenerateTwitter  bool `json:"regenerate_twitter"`
	RegenerateLinkedIn bool `json:"regenerate_linkedin"`

	EditedTwitter  string `json:"edited_twitter,omitempty"`
	EditedLinkedIn string `json:"edited_linkedin,omitempty"`

	TwitterConnectionID  string `json:"twitter_connection_id,omitempty"`
	LinkedInConnectionID string `json:"linkedin_connection_id,omitempty"`
}

// HitlAction converts the request into the engine's decision payload.
func (r ActionRequest) HitlAction() *models.HitlAction {
	return &models.HitlAction{
		ApproveContent:       r.ApproveContent,
		RejectContent:        r.RejectContent,
		ApproveImage:         r.ApproveImage,
		RejectImage:          r.RejectImage,
		RegenerateTwitter:    r.RegenerateTwitter,
		RegenerateLinkedIn:   r.RegenerateLinkedIn,
		EditedTwitter:        r.EditedTwitter,
		EditedLinkedIn:       r.EditedLinkedIn,
		TwitterConnectionID:  r.TwitterConnectionID,
		LinkedInConnectionID: r.LinkedInConnectionID,
	}
}

// AddConnectionRequest represents the request body for registering a
// publishing account.
type AddConnectionRequest struct {
	UserID      string     `json:"user_id"      validate:"required"`
	Provider    string     `json:"provider"     validate:"required,oneof=twitter linkedin"`
	AccountID   string     `json:"account_id"   validate:"required"`
	DisplayName string     `json:"display_name"`
	Label       string     `json:"label"`
	TokenJSON   string     `json:"token_json"   validate:"required"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	MakeDefault bool       `json:"make_default"`
}

// UpdateTokensRequest represents the request body for replacing a
// connection's token payload after a reconnect.
type UpdateTokensRequest struct {
	UserID    string     `json:"user_id"    validate:"required"`
	TokenJSON string     `json:"token_json" validate:"required"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ExecutionResponse is the API projection of an execution. The full scraped
// article stays server-side; clients get the drafts and the decision surface.
type ExecutionResponse struct {
	ID     string                 `json:"id"`
	UserID string                 `json:"user_id"`
	URL    string                 `json:"url"`
	Status models.ExecutionStatus `json:"status"`

	TwitterDraft  string `json:"twitter_draft,omitempty"`
	LinkedInDraft string `json:"linkedin_draft,omitempty"`

	ApprovedTwitterPost  string `json:"approved_twitter_post,omitempty"`
	ApprovedLinkedInPost string `json:"approved_linkedin_post,omitempty"`

	AnalysisResult *models.AnalysisResult   `json:"analysis_result,omitempty"`
	ImageMetadata  *models.ImageMetadata    `json:"image_metadata,omitempty"`
	Interrupt      *models.InterruptPayload `json:"interrupt,omitempty"`
	PublishStatus  *models.PublishStatus    `json:"publish_status,omitempty"`

	TerminateReason string `json:"terminate_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TransformExecutionResponse projects an execution into its API shape.
func TransformExecutionResponse(execution *models.Execution) ExecutionResponse {
	response := ExecutionResponse{
		ID:        execution.ID,
		UserID:    execution.UserID,
		URL:       execution.URL,
		Status:    execution.Status,
		CreatedAt: execution.CreatedAt,
		UpdatedAt: execution.UpdatedAt,
	}

	state := execution.State
	if state == nil {
		return response
	}

	response.TwitterDraft = state.TwitterDraft
	response.LinkedInDraft = state.LinkedInDraft
	response.ApprovedTwitterPost = state.ApprovedTwitterPost
	response.ApprovedLinkedInPost = state.ApprovedLinkedInPost
	response.AnalysisResult = state.AnalysisResult
	response.ImageMetadata = state.ImageMetadata
	response.Interrupt = state.Interrupt
	response.PublishStatus = state.PublishStatus
	response.TerminateReason = state.TerminateReason

	return response
}

// ConnectionResponse is the API projection of a connection. Token payloads
// never leave the server.
type ConnectionResponse struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Provider    string     `json:"provider"`
	AccountID   string     `json:"account_id"`
	DisplayName string     `json:"display_name,omitempty"`
	Label       string     `json:"label,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	IsDefault   bool       `json:"is_default"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TransformConnectionResponse projects a connection into its API shape.
func TransformConnectionResponse(connection *models.SocialConnection) ConnectionResponse {
	return ConnectionResponse{
		ID:          connection.ID,
		UserID:      connection.UserID,
		Provider:    string(connection.Provider),
		AccountID:   connection.AccountID,
		DisplayName: connection.DisplayName,
		Label:       connection.Label,
		ExpiresAt:   connection.ExpiresAt,
		IsDefault:   connection.IsDefault,
		CreatedAt:   connection.CreatedAt,
	}
}
