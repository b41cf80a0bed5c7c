package models

import (
	"strings"
	"time"
)

// HitlAction is the decision payload a reviewer submits to resume a suspended
// run. It is merged into the pipeline state and only persists as part of the
// state snapshot.
type HitlAction struct {
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

	ActedAt time.Time `json:"acted_at,omitzero"`
}

// ApplyHitlAction merges a reviewer decision into the state. Routing happens
// in the graph; this only mutates state, following the merge policy:
//
//   - an edit sets the platform's approved text, independently per platform,
//     and never the other way around
//   - an edit with neither approve nor reject set counts as approval
//   - approval defaults each approved text to its last draft, without
//     overwriting a text already set by an edit
//   - reject_content terminates the run
func ApplyHitlAction(state *PipelineState, action HitlAction) {
	action.EditedTwitter = strings.TrimSpace(action.EditedTwitter)
	action.EditedLinkedIn = strings.TrimSpace(action.EditedLinkedIn)

	if action.ActedAt.IsZero() {
		action.ActedAt = time.Now().UTC().Truncate(time.Second)
	}

	if action.EditedTwitter != "" {
		state.ApprovedTwitterPost = action.EditedTwitter
	}

	if action.EditedLinkedIn != "" {
		state.ApprovedLinkedInPost = action.EditedLinkedIn
	}

	edited := action.EditedTwitter != "" || action.EditedLinkedIn != ""
	if edited && !action.ApproveContent && !action.RejectContent {
		action.ApproveContent = true
	}

	if action.ApproveContent {
		if state.ApprovedTwitterPost == "" {
			state.ApprovedTwitterPost = state.TwitterDraft
		}

		if state.ApprovedLinkedInPost == "" {
			state.ApprovedLinkedInPost = state.LinkedInDraft
		}
	}

	if action.TwitterConnectionID != "" {
		state.TwitterConnectionID = action.TwitterConnectionID
	}

	if action.LinkedInConnectionID != "" {
		state.LinkedInConnectionID = action.LinkedInConnectionID
	}

	state.HitlActions = &action

	if action.RejectContent {
		state.Terminate("Human rejected content.")
	}

	state.Touch()
}
