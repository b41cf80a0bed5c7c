package models

import "time"

// ScrapedContent holds the extracted article produced by the scrape stage.
type ScrapedContent struct {
	Title    string         `json:"title"`
	URL      string         `json:"url"`
	Text     string         `json:"text"`
	Headings []string       `json:"headings,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Images   []ScrapedImage `json:"images,omitempty"`
}

// ScrapedImage is one image extracted from the article body or metadata.
type ScrapedImage struct {
	Src     string `json:"src"`
	Alt     string `json:"alt,omitempty"`
	Caption string `json:"caption,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
}

// AnalysisResult is the output of the analyze stage.
type AnalysisResult struct {
	Topic          string   `json:"topic"`
	KeyInsights    []string `json:"key_insights,omitempty"`
	Tone           string   `json:"tone"`
	RelevanceScore float64  `json:"relevance_score"`
}

// ImageMetadata describes the image proposed for publication.
type ImageMetadata struct {
	ImageURL string `json:"image_url,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Source   string `json:"source,omitempty"`
}

// MediaIDs holds per-platform upload handles produced by the upload stage.
type MediaIDs struct {
	TwitterMediaID   string `json:"twitter_media_id,omitempty"`
	LinkedInAssetURN string `json:"linkedin_asset_urn,omitempty"`
}

// PlatformPublishState is the per-platform publish outcome.
type PlatformPublishState string

const (
	PublishNotStarted PlatformPublishState = "not_started"
	PublishSkipped    PlatformPublishState = "skipped"
	PublishPublished  PlatformPublishState = "published"
	PublishFailed     PlatformPublishState = "failed"
)

// PublishStatus records the outcome of both platform publishes. One platform
// failing never blocks the other, so both fields are tracked independently.
type PublishStatus struct {
	Twitter         PlatformPublishState `json:"twitter"`
	LinkedIn        PlatformPublishState `json:"linkedin"`
	TweetID         string               `json:"tweet_id,omitempty"`
	LinkedInPostURN string               `json:"linkedin_post_urn,omitempty"`
	LastError       string               `json:"last_error,omitempty"`
}

// AuthSummary carries a token presence/expiry summary only. Raw credentials
// never enter the pipeline state.
type AuthSummary struct {
	TwitterOK         bool       `json:"twitter_ok"`
	TwitterExpiresAt  *time.Time `json:"twitter_expires_at,omitempty"`
	LinkedInOK        bool       `json:"linkedin_ok"`
	LinkedInExpiresAt *time.Time `json:"linkedin_expires_at,omitempty"`
}

// PipelineState is the working state threaded through every stage of a run.
// The orchestrator owns the live value for the duration of one run; the
// execution store owns the durable snapshot.
type PipelineState struct {
	UserID      string `json:"user_id"`
	URL         string `json:"url"`
	ExecutionID string `json:"execution_id"`

	ScrapedContent *ScrapedContent `json:"scraped_content,omitempty"`
	AnalysisResult *AnalysisResult `json:"analysis_result,omitempty"`

	TwitterDraft  string `json:"twitter_draft,omitempty"`
	LinkedInDraft string `json:"linkedin_draft,omitempty"`

	ApprovedTwitterPost  string `json:"approved_twitter_post,omitempty"`
	ApprovedLinkedInPost string `json:"approved_linkedin_post,omitempty"`

	ImageMetadata *ImageMetadata `json:"image_metadata,omitempty"`
	MediaIDs      *MediaIDs      `json:"media_ids,omitempty"`
	AuthSummary   *AuthSummary   `json:"auth_summary,omitempty"`
	PublishStatus *PublishStatus `json:"publish_status,omitempty"`
	HitlActions   *HitlAction    `json:"hitl_actions,omitempty"`

	// Interrupt is the payload of the most recent suspension. It is surfaced
	// once through the persisted execution and cleared when the run resumes.
	Interrupt *InterruptPayload `json:"interrupt,omitempty"`

	// Connection selectors chosen by the reviewer, if any.
	TwitterConnectionID  string `json:"twitter_connection_id,omitempty"`
	LinkedInConnectionID string `json:"linkedin_connection_id,omitempty"`

	Terminated      bool   `json:"terminated"`
	TerminateReason string `json:"terminate_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPipelineState builds the initial state for a fresh run.
func NewPipelineState(executionID, userID, url string) *PipelineState {
	now := time.Now().UTC().Truncate(time.Second)

	return &PipelineState{
		UserID:      userID,
		URL:         url,
		ExecutionID: executionID,
		PublishStatus: &PublishStatus{
			Twitter:  PublishNotStarted,
			LinkedIn: PublishNotStarted,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Terminate marks the run as terminated. The first reason wins; later calls
// never overwrite it.
func (s *PipelineState) Terminate(reason string) {
	if s.Terminated {
		return
	}

	s.Terminated = true
	s.TerminateReason = reason
	s.Touch()
}

// Touch updates the modification timestamp.
func (s *PipelineState) Touch() {
	s.UpdatedAt = time.Now().UTC().Truncate(time.Second)
}

// EnsurePublishStatus initializes the publish bookkeeping when absent.
func (s *PipelineState) EnsurePublishStatus() *PublishStatus {
	if s.PublishStatus == nil {
		s.PublishStatus = &PublishStatus{
			Twitter:  PublishNotStarted,
			LinkedIn: PublishNotStarted,
		}
	}

	return s.PublishStatus
}

// Rehydratable reports whether the snapshot carries enough identity to
// re-enter the graph after the in-memory checkpoint was lost.
func (s *PipelineState) Rehydratable() bool {
	return s != nil && s.UserID != "" && s.URL != "" && s.ExecutionID != ""
}
