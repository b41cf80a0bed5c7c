package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/publion/publion/pkg/events"
	"github.com/publion/publion/pkg/models"
)

const (
	// minArticleChars is the shortest article text worth summarizing.
	minArticleChars = 600

	// minRelevance is the analyzer score below which a run is stopped as a
	// content-policy decision rather than an error.
	minRelevance = 0.35
)

// runStage executes one stage. Stages mutate the state in place; only
// await_human and check_auth may return an interrupt. A panic inside a stage
// is contained here and surfaces as an ordinary error.
func (o *Orchestrator) runStage(ctx context.Context, stage string, state *models.PipelineState) (interrupt *models.InterruptPayload, err error) {
	defer func() {
		if r := recover(); r != nil {
			interrupt = nil
			err = fmt.Errorf("panic in stage %s: %v", stage, r)
		}
	}()

	switch stage {
	case StageIngest:
		return nil, o.stageIngest(state)
	case StageScrape:
		return nil, o.stageScrape(ctx, state)
	case StageAnalyze:
		return nil, o.stageAnalyze(ctx, state)
	case StageGenerate:
		return nil, o.stageGenerate(ctx, state)
	case StageSelectImage:
		return nil, o.stageSelectImage(state)
	case StageAwaitHuman:
		return models.NewHumanReviewInterrupt(state), nil
	case StageCheckAuth:
		return o.stageCheckAuth(ctx, state)
	case StageUploadImage:
		return nil, o.stageUploadImage(ctx, state)
	case StagePublishTwitter:
		return nil, o.stagePublish(ctx, state, models.ProviderTwitter)
	case StagePublishLinkedIn:
		return nil, o.stagePublish(ctx, state, models.ProviderLinkedIn)
	default:
		return nil, fmt.Errorf("unknown stage: %s", stage)
	}
}

func (o *Orchestrator) stageIngest(state *models.PipelineState) error {
	if state.UserID == "" {
		return newValidationError("A user id is required.")
	}

	state.URL = strings.TrimSpace(state.URL)

	parsed, err := url.Parse(state.URL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return newValidationError("The URL must be an absolute http or https address.")
	}

	return nil
}

func (o *Orchestrator) stageScrape(ctx context.Context, state *models.PipelineState) error {
	content, err := o.collaborators.Scraper.Scrape(ctx, state.URL)
	if err != nil {
		return err
	}

	state.ScrapedContent = content

	if len(strings.TrimSpace(content.Text)) < minArticleChars {
		state.Terminate("Article content is too short to summarize.")
	}

	return nil
}

func (o *Orchestrator) stageAnalyze(ctx context.Context, state *models.PipelineState) error {
	result, err := o.collaborators.Analyzer.Analyze(ctx, state.ScrapedContent)
	if err != nil {
		return err
	}

	state.AnalysisResult = result

	if result.RelevanceScore < minRelevance {
		state.Terminate("Not a suitable article for social publication.")
	}

	return nil
}

func (o *Orchestrator) stageGenerate(ctx context.Context, state *models.PipelineState) error {
	mode := generateMode(state)

	drafts, err := o.collaborators.Generator.Generate(ctx, state.ScrapedContent, state.AnalysisResult, mode)
	if err != nil {
		return err
	}

	// A regenerated draft invalidates its previous approval.
	if mode == ModeBoth || mode == ModeTwitterOnly {
		state.TwitterDraft = drafts.Twitter
		state.ApprovedTwitterPost = ""
	}

	if mode == ModeBoth || mode == ModeLinkedInOnly {
		state.LinkedInDraft = drafts.LinkedIn
		state.ApprovedLinkedInPost = ""
	}

	return nil
}

func (o *Orchestrator) stageSelectImage(state *models.PipelineState) error {
	if state.ScrapedContent == nil {
		return nil
	}

	if imageURL, ok := state.ScrapedContent.Metadata["og:image"].(string); ok && imageURL != "" {
		state.ImageMetadata = &models.ImageMetadata{ImageURL: imageURL, Source: "article_metadata"}

		return nil
	}

	for _, image := range state.ScrapedContent.Images {
		if image.Src == "" {
			continue
		}

		// Skip obvious icons and trackers when dimensions are known.
		if image.Width > 0 && image.Width < 200 {
			continue
		}

		caption := image.Caption
		if caption == "" {
			caption = image.Alt
		}

		state.ImageMetadata = &models.ImageMetadata{ImageURL: image.Src, Caption: caption, Source: "article_body"}

		return nil
	}

	return nil
}

func (o *Orchestrator) stageCheckAuth(ctx context.Context, state *models.PipelineState) (*models.InterruptPayload, error) {
	summary, err := o.collaborators.Credentials.Check(ctx, state.UserID, state.TwitterConnectionID, state.LinkedInConnectionID)
	if err != nil {
		return nil, err
	}

	state.AuthSummary = summary

	var needs []string

	if state.ApprovedTwitterPost != "" && !summary.TwitterOK {
		needs = append(needs, string(models.ProviderTwitter))
	}

	if state.ApprovedLinkedInPost != "" && !summary.LinkedInOK {
		needs = append(needs, string(models.ProviderLinkedIn))
	}

	if len(needs) > 0 {
		return models.NewReauthInterrupt(state, needs), nil
	}

	return nil, nil
}

func (o *Orchestrator) stageUploadImage(ctx context.Context, state *models.PipelineState) error {
	data, contentType, err := o.collaborators.Images.Fetch(ctx, state.ImageMetadata.ImageURL, state.URL)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// A lost image degrades the run to text-only, it never stops it.
		o.logger.WarnContext(ctx, "image fetch failed, publishing text-only",
			"execution_id", state.ExecutionID, "image_url", state.ImageMetadata.ImageURL, "error", err)

		return nil
	}

	media := &models.MediaIDs{}

	if state.ApprovedTwitterPost != "" {
		mediaID, err := o.collaborators.Publisher.UploadMedia(ctx, models.ProviderTwitter, state.UserID, state.TwitterConnectionID, data, contentType)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return err
			}

			o.logger.WarnContext(ctx, "twitter media upload failed", "execution_id", state.ExecutionID, "error", err)
		} else {
			media.TwitterMediaID = mediaID
		}
	}

	if state.ApprovedLinkedInPost != "" {
		assetURN, err := o.collaborators.Publisher.UploadMedia(ctx, models.ProviderLinkedIn, state.UserID, state.LinkedInConnectionID, data, contentType)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return err
			}

			o.logger.WarnContext(ctx, "linkedin media upload failed", "execution_id", state.ExecutionID, "error", err)
		} else {
			media.LinkedInAssetURN = assetURN
		}
	}

	state.MediaIDs = media

	return nil
}

// stagePublish publishes one platform. A failure is recorded on the publish
// status and never terminates the run, so the sibling platform still gets its
// chance.
func (o *Orchestrator) stagePublish(ctx context.Context, state *models.PipelineState, provider models.Provider) error {
	status := state.EnsurePublishStatus()

	text := state.ApprovedTwitterPost
	connectionID := state.TwitterConnectionID
	mediaID := ""

	if state.MediaIDs != nil {
		mediaID = state.MediaIDs.TwitterMediaID
	}

	if provider == models.ProviderLinkedIn {
		text = state.ApprovedLinkedInPost
		connectionID = state.LinkedInConnectionID
		mediaID = ""

		if state.MediaIDs != nil {
			mediaID = state.MediaIDs.LinkedInAssetURN
		}
	}

	if text == "" {
		o.setPublishOutcome(status, provider, models.PublishSkipped, "", "")

		return nil
	}

	postID, err := o.collaborators.Publisher.Publish(ctx, provider, state.UserID, connectionID, text, mediaID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		o.setPublishOutcome(status, provider, models.PublishFailed, "", err.Error())
		o.emit(ctx, state.ExecutionID, events.PostPublishFailed{
			BaseEvent: events.NewBaseEvent(events.PostPublishFailedEvent, state.ExecutionID),
			Provider:  provider,
			Error:     err.Error(),
		})

		return nil
	}

	o.setPublishOutcome(status, provider, models.PublishPublished, postID, "")
	o.emit(ctx, state.ExecutionID, events.PostPublished{
		BaseEvent: events.NewBaseEvent(events.PostPublishedEvent, state.ExecutionID),
		Provider:  provider,
		PostID:    postID,
	})

	return nil
}

func (o *Orchestrator) setPublishOutcome(status *models.PublishStatus, provider models.Provider, outcome models.PlatformPublishState, postID, lastError string) {
	if provider == models.ProviderTwitter {
		status.Twitter = outcome
		status.TweetID = postID
	} else {
		status.LinkedIn = outcome
		status.LinkedInPostURN = postID
	}

	if lastError != "" {
		status.LastError = lastError
	}
}
