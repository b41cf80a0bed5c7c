package engine

import "github.com/publion/publion/pkg/models"

// Stage names. The graph is fixed: ingest through await_human in order, then
// decision routing, then auth, media and the two publishes.
const (
	StageIngest          = "ingest"
	StageScrape          = "scrape"
	StageAnalyze         = "analyze"
	StageGenerate        = "generate"
	StageSelectImage     = "select_image"
	StageAwaitHuman      = "await_human"
	StageCheckAuth       = "check_auth"
	StageUploadImage     = "upload_image"
	StagePublishTwitter  = "publish_twitter"
	StagePublishLinkedIn = "publish_linkedin"
	StageEnd             = "end"
)

// nextStage returns the successor of a stage that finished without
// suspending. Routing out of await_human happens on resume, never here.
func nextStage(stage string, state *models.PipelineState) string {
	switch stage {
	case StageIngest:
		return StageScrape
	case StageScrape:
		return StageAnalyze
	case StageAnalyze:
		return StageGenerate
	case StageGenerate:
		// A regeneration pass goes straight back to review; image
		// selection runs once, on the initial pass.
		if state.HitlActions != nil {
			return StageAwaitHuman
		}

		return StageSelectImage
	case StageSelectImage:
		return StageAwaitHuman
	case StageCheckAuth:
		if shouldUploadImage(state) {
			return StageUploadImage
		}

		return StagePublishTwitter
	case StageUploadImage:
		return StagePublishTwitter
	case StagePublishTwitter:
		return StagePublishLinkedIn
	default:
		return StageEnd
	}
}

// routeAfterHuman decides where a run goes once a reviewer decision has been
// merged into the state. Priority order: termination, regeneration, approval,
// then back to waiting when no decision was made.
func routeAfterHuman(state *models.PipelineState) string {
	action := state.HitlActions

	switch {
	case state.Terminated:
		return StageEnd
	case action == nil:
		return StageAwaitHuman
	case action.RegenerateTwitter || action.RegenerateLinkedIn:
		return StageGenerate
	case action.ApproveContent:
		return StageCheckAuth
	default:
		return StageAwaitHuman
	}
}

// shouldUploadImage reports whether the reviewer approved an image the run
// actually carries. Without an explicit approval the publish is text-only.
func shouldUploadImage(state *models.PipelineState) bool {
	if state.ImageMetadata == nil || state.ImageMetadata.ImageURL == "" {
		return false
	}

	action := state.HitlActions

	return action != nil && action.ApproveImage && !action.RejectImage
}

// generateMode derives the generation scope from the latest reviewer action.
// The first pass, with no action yet, always generates both drafts.
func generateMode(state *models.PipelineState) GenerateMode {
	action := state.HitlActions
	if action == nil {
		return ModeBoth
	}

	switch {
	case action.RegenerateTwitter && action.RegenerateLinkedIn:
		return ModeBoth
	case action.RegenerateTwitter:
		return ModeTwitterOnly
	case action.RegenerateLinkedIn:
		return ModeLinkedInOnly
	default:
		return ModeBoth
	}
}
