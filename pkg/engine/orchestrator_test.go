package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/publion/publion/pkg/checkpoint/memory"
	"github.com/publion/publion/pkg/eventbus"
	"github.com/publion/publion/pkg/events"
	"github.com/publion/publion/pkg/models"
	"github.com/publion/publion/pkg/persistence"
	"github.com/publion/publion/pkg/persistence/file"
)

type fakeScraper struct {
	content *models.ScrapedContent
	err     error
	block   bool
	panics  bool
}

func (f *fakeScraper) Scrape(ctx context.Context, url string) (*models.ScrapedContent, error) {
	if f.panics {
		panic("scraper exploded")
	}

	if f.block {
		<-ctx.Done()

		return nil, ctx.Err()
	}

	if f.err != nil {
		return nil, f.err
	}

	content := *f.content
	content.URL = url

	return &content, nil
}

type fakeAnalyzer struct {
	relevance float64
	err       error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ *models.ScrapedContent) (*models.AnalysisResult, error) {
	if f.err != nil {
		return nil, f.err
	}

	return &models.AnalysisResult{
		Topic:          "distributed systems",
		KeyInsights:    []string{"first insight", "second insight"},
		Tone:           "informative",
		RelevanceScore: f.relevance,
	}, nil
}

type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	modes []GenerateMode
}

func (f *fakeGenerator) Generate(_ context.Context, _ *models.ScrapedContent, _ *models.AnalysisResult, mode GenerateMode) (Drafts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.modes = append(f.modes, mode)

	return Drafts{
		Twitter:  fmt.Sprintf("tweet draft v%d", f.calls),
		LinkedIn: fmt.Sprintf("linkedin draft v%d", f.calls),
	}, nil
}

type fakeCredentials struct {
	mu         sync.Mutex
	twitterOK  bool
	linkedinOK bool
}

func (f *fakeCredentials) Check(_ context.Context, _, _, _ string) (*models.AuthSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return &models.AuthSummary{TwitterOK: f.twitterOK, LinkedInOK: f.linkedinOK}, nil
}

func (f *fakeCredentials) set(twitterOK, linkedinOK bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.twitterOK = twitterOK
	f.linkedinOK = linkedinOK
}

type fakeImages struct {
	err error
}

func (f *fakeImages) Fetch(_ context.Context, _, _ string) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}

	return []byte("image-bytes"), "image/jpeg", nil
}

type fakePublisher struct {
	mu         sync.Mutex
	uploads    []models.Provider
	published  map[models.Provider]string
	publishErr map[models.Provider]error

	// set by the concurrency test: Publish signals entered, then parks on release.
	entered     chan struct{}
	release     chan struct{}
	enteredOnce sync.Once
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{
		published:  make(map[models.Provider]string),
		publishErr: make(map[models.Provider]error),
	}
}

func (f *fakePublisher) UploadMedia(_ context.Context, provider models.Provider, _, _ string, _ []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.uploads = append(f.uploads, provider)

	return "media-" + string(provider), nil
}

func (f *fakePublisher) Publish(ctx context.Context, provider models.Provider, _, _, text, _ string) (string, error) {
	if f.release != nil {
		f.enteredOnce.Do(func() { close(f.entered) })

		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.publishErr[provider]; err != nil {
		return "", err
	}

	postID := "post-" + string(provider)
	f.published[provider] = text

	return postID, nil
}

type recordingBus struct {
	mu     sync.Mutex
	stages []string
}

func (r *recordingBus) Publish(_ context.Context, _ string, event eventbus.Event) error {
	if finished, ok := event.(events.StageFinished); ok {
		r.mu.Lock()
		r.stages = append(r.stages, finished.Stage)
		r.mu.Unlock()
	}

	return nil
}

func (r *recordingBus) count(stage string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := 0

	for _, s := range r.stages {
		if s == stage {
			total++
		}
	}

	return total
}

type testHarness struct {
	orchestrator *Orchestrator
	executions   persistence.ExecutionRepository
	scraper      *fakeScraper
	analyzer     *fakeAnalyzer
	generator    *fakeGenerator
	credentials  *fakeCredentials
	images       *fakeImages
	publisher    *fakePublisher
}

func articleText() string {
	return strings.Repeat("substantial article content ", 40)
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	h := &testHarness{
		executions: file.NewPersistence(t.TempDir()).ExecutionRepository(),
		scraper: &fakeScraper{content: &models.ScrapedContent{
			Title: "A Good Article",
			Text:  articleText(),
			Images: []models.ScrapedImage{
				{Src: "https://example.com/small.png", Width: 64},
				{Src: "https://example.com/hero.jpg", Alt: "hero", Width: 1200},
			},
		}},
		analyzer:    &fakeAnalyzer{relevance: 0.8},
		generator:   &fakeGenerator{},
		credentials: &fakeCredentials{twitterOK: true, linkedinOK: true},
		images:      &fakeImages{},
		publisher:   newFakePublisher(),
	}

	h.orchestrator = NewOrchestrator(Config{
		Executions:  h.executions,
		Checkpoints: memory.NewStore(),
		Collaborators: Collaborators{
			Scraper:     h.scraper,
			Analyzer:    h.analyzer,
			Generator:   h.generator,
			Credentials: h.credentials,
			Images:      h.images,
			Publisher:   h.publisher,
		},
		Timeout: 30 * time.Second,
	})

	return h
}

// start creates the execution row and drives it synchronously from the top.
func (h *testHarness) start(t *testing.T, executionID string) *models.Execution {
	t.Helper()

	state := models.NewPipelineState(executionID, "user-1", "https://example.com/article")
	execution := &models.Execution{
		ID:             executionID,
		UserID:         state.UserID,
		URL:            state.URL,
		Status:         models.ExecutionStatusRunning,
		State:          state,
		IdempotencyKey: models.ComputeIdempotencyKey(state.UserID, state.URL),
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	require.NoError(t, h.executions.Create(t.Context(), execution))

	h.orchestrator.Start(t.Context(), state)

	return h.fetch(t, executionID)
}

func (h *testHarness) fetch(t *testing.T, executionID string) *models.Execution {
	t.Helper()

	execution, err := h.executions.GetByID(t.Context(), executionID)
	require.NoError(t, err)

	return execution
}

func TestOrchestrator_StartSuspendsForReview(t *testing.T) {
	h := newHarness(t)

	execution := h.start(t, "exec-review")

	assert.Equal(t, models.ExecutionStatusAwaitingHuman, execution.Status)
	require.NotNil(t, execution.State.Interrupt)
	assert.Equal(t, models.InterruptHumanReview, execution.State.Interrupt.Type)
	assert.Equal(t, "tweet draft v1", execution.State.TwitterDraft)
	assert.Equal(t, "linkedin draft v1", execution.State.LinkedInDraft)

	// Icon-sized images are passed over for the real one.
	require.NotNil(t, execution.State.ImageMetadata)
	assert.Equal(t, "https://example.com/hero.jpg", execution.State.ImageMetadata.ImageURL)
}

func TestOrchestrator_ApproveThroughPublish(t *testing.T) {
	h := newHarness(t)

	h.start(t, "exec-approve")

	err := h.orchestrator.Resume(t.Context(), "exec-approve", &models.HitlAction{ApproveContent: true})
	require.NoError(t, err)

	execution := h.fetch(t, "exec-approve")
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Nil(t, execution.State.Interrupt)

	status := execution.State.PublishStatus
	require.NotNil(t, status)
	assert.Equal(t, models.PublishPublished, status.Twitter)
	assert.Equal(t, models.PublishPublished, status.LinkedIn)
	assert.Equal(t, "post-twitter", status.TweetID)
	assert.Equal(t, "post-linkedin", status.LinkedInPostURN)

	// Approval without edits publishes the drafts verbatim.
	assert.Equal(t, "tweet draft v1", h.publisher.published[models.ProviderTwitter])
	assert.Equal(t, "linkedin draft v1", h.publisher.published[models.ProviderLinkedIn])

	// Content approval alone does not attach the image.
	assert.Empty(t, h.publisher.uploads)
}

func TestOrchestrator_ApproveImagePublishesWithMedia(t *testing.T) {
	h := newHarness(t)

	h.start(t, "exec-with-image")

	err := h.orchestrator.Resume(t.Context(), "exec-with-image", &models.HitlAction{
		ApproveContent: true,
		ApproveImage:   true,
	})
	require.NoError(t, err)

	execution := h.fetch(t, "exec-with-image")
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.ElementsMatch(t, []models.Provider{models.ProviderTwitter, models.ProviderLinkedIn}, h.publisher.uploads)
}

func TestOrchestrator_RejectImagePublishesTextOnly(t *testing.T) {
	h := newHarness(t)

	h.start(t, "exec-text-only")

	err := h.orchestrator.Resume(t.Context(), "exec-text-only", &models.HitlAction{
		ApproveContent: true,
		ApproveImage:   true,
		RejectImage:    true,
	})
	require.NoError(t, err)

	execution := h.fetch(t, "exec-text-only")
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Empty(t, h.publisher.uploads)
	assert.Equal(t, models.PublishPublished, execution.State.PublishStatus.Twitter)
}

func TestOrchestrator_EditOverridesDraft(t *testing.T) {
	h := newHarness(t)

	h.start(t, "exec-edit")

	err := h.orchestrator.Resume(t.Context(), "exec-edit", &models.HitlAction{EditedTwitter: "my own words"})
	require.NoError(t, err)

	execution := h.fetch(t, "exec-edit")
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, "my own words", h.publisher.published[models.ProviderTwitter])
	assert.Equal(t, "linkedin draft v1", h.publisher.published[models.ProviderLinkedIn])
}

func TestOrchestrator_RejectTerminates(t *testing.T) {
	h := newHarness(t)

	h.start(t, "exec-reject")

	err := h.orchestrator.Resume(t.Context(), "exec-reject", &models.HitlAction{RejectContent: true})
	require.NoError(t, err)

	execution := h.fetch(t, "exec-reject")
	assert.Equal(t, models.ExecutionStatusTerminated, execution.Status)
	assert.Equal(t, "Human rejected content.", execution.State.TerminateReason)
	assert.Empty(t, h.publisher.published)
}

func TestOrchestrator_NoDecisionReSuspends(t *testing.T) {
	h := newHarness(t)

	h.start(t, "exec-ponder")

	err := h.orchestrator.Resume(t.Context(), "exec-ponder", &models.HitlAction{})
	require.NoError(t, err)

	execution := h.fetch(t, "exec-ponder")
	assert.Equal(t, models.ExecutionStatusAwaitingHuman, execution.Status)
	require.NotNil(t, execution.State.Interrupt)
	assert.Equal(t, models.InterruptHumanReview, execution.State.Interrupt.Type)

	// A second empty decision keeps the loop stable.
	require.NoError(t, h.orchestrator.Resume(t.Context(), "exec-ponder", &models.HitlAction{}))
	assert.Equal(t, models.ExecutionStatusAwaitingHuman, h.fetch(t, "exec-ponder").Status)
}

func TestOrchestrator_RegenerateTwitterLoops(t *testing.T) {
	h := newHarness(t)

	h.start(t, "exec-regen")

	err := h.orchestrator.Resume(t.Context(), "exec-regen", &models.HitlAction{RegenerateTwitter: true})
	require.NoError(t, err)

	execution := h.fetch(t, "exec-regen")
	assert.Equal(t, models.ExecutionStatusAwaitingHuman, execution.Status)
	assert.Equal(t, "tweet draft v2", execution.State.TwitterDraft)
	assert.Equal(t, "linkedin draft v1", execution.State.LinkedInDraft)
	assert.Equal(t, []GenerateMode{ModeBoth, ModeTwitterOnly}, h.generator.modes)

	// The fresh draft still needs approval before publishing.
	assert.Empty(t, execution.State.ApprovedTwitterPost)

	require.NoError(t, h.orchestrator.Resume(t.Context(), "exec-regen", &models.HitlAction{ApproveContent: true}))
	assert.Equal(t, "tweet draft v2", h.publisher.published[models.ProviderTwitter])
}

func TestOrchestrator_EditThenRegenerateStaysPending(t *testing.T) {
	h := newHarness(t)

	h.start(t, "exec-edit-regen")

	// Edit one platform while regenerating the other; the run must come
	// back for review instead of publishing.
	err := h.orchestrator.Resume(t.Context(), "exec-edit-regen", &models.HitlAction{
		EditedTwitter:      "my edit",
		RegenerateLinkedIn: true,
	})
	require.NoError(t, err)

	execution := h.fetch(t, "exec-edit-regen")
	assert.Equal(t, models.ExecutionStatusAwaitingHuman, execution.Status)
	assert.Equal(t, "my edit", execution.State.ApprovedTwitterPost)
	assert.Equal(t, "linkedin draft v2", execution.State.LinkedInDraft)

	// An empty decision must not ride the earlier edit into publishing.
	require.NoError(t, h.orchestrator.Resume(t.Context(), "exec-edit-regen", &models.HitlAction{}))

	execution = h.fetch(t, "exec-edit-regen")
	assert.Equal(t, models.ExecutionStatusAwaitingHuman, execution.Status)
	assert.Empty(t, h.publisher.published)

	// Explicit approval publishes with the edit intact.
	require.NoError(t, h.orchestrator.Resume(t.Context(), "exec-edit-regen", &models.HitlAction{ApproveContent: true}))

	execution = h.fetch(t, "exec-edit-regen")
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, "my edit", h.publisher.published[models.ProviderTwitter])
	assert.Equal(t, "linkedin draft v2", h.publisher.published[models.ProviderLinkedIn])
}

func TestOrchestrator_RegenerateSkipsImageReselection(t *testing.T) {
	h := newHarness(t)
	bus := &recordingBus{}
	h.orchestrator.bus = bus

	h.start(t, "exec-regen-image")

	require.NoError(t, h.orchestrator.Resume(t.Context(), "exec-regen-image", &models.HitlAction{RegenerateLinkedIn: true}))
	assert.Equal(t, models.ExecutionStatusAwaitingHuman, h.fetch(t, "exec-regen-image").Status)

	// Image selection runs on the initial pass only; a regeneration loop
	// goes from generate straight back to review.
	assert.Equal(t, 1, bus.count(StageSelectImage))
	assert.Equal(t, 2, bus.count(StageGenerate))
}

func TestOrchestrator_LowRelevanceTerminates(t *testing.T) {
	h := newHarness(t)
	h.analyzer.relevance = 0.1

	execution := h.start(t, "exec-irrelevant")

	assert.Equal(t, models.ExecutionStatusTerminated, execution.Status)
	assert.Equal(t, "Not a suitable article for social publication.", execution.State.TerminateReason)

	// The relevance gate stops the run before drafting.
	assert.Empty(t, execution.State.TwitterDraft)
	assert.Empty(t, execution.State.LinkedInDraft)
	assert.Zero(t, h.generator.calls)
}

func TestOrchestrator_ShortContentTerminates(t *testing.T) {
	h := newHarness(t)
	h.scraper.content = &models.ScrapedContent{Title: "Stub", Text: "too short"}

	execution := h.start(t, "exec-short")

	assert.Equal(t, models.ExecutionStatusTerminated, execution.Status)
	assert.Equal(t, "Article content is too short to summarize.", execution.State.TerminateReason)
}

func TestOrchestrator_ScrapeErrorTerminates(t *testing.T) {
	h := newHarness(t)
	h.scraper.err = errors.New("connection refused")

	execution := h.start(t, "exec-scrape-fail")

	assert.Equal(t, models.ExecutionStatusTerminated, execution.Status)
	assert.Contains(t, execution.State.TerminateReason, "Could not scrape the article")
}

func TestOrchestrator_QuotaErrorGetsSpecificReason(t *testing.T) {
	h := newHarness(t)
	h.scraper.err = errors.New("scrape service replied 429 Too Many Requests")

	execution := h.start(t, "exec-quota")

	assert.Equal(t, models.ExecutionStatusTerminated, execution.Status)
	assert.Equal(t, "Upstream quota or rate limit exhausted. Try again later.", execution.State.TerminateReason)
}

func TestOrchestrator_PanicIsContained(t *testing.T) {
	h := newHarness(t)
	h.scraper.panics = true

	execution := h.start(t, "exec-panic")

	assert.Equal(t, models.ExecutionStatusTerminated, execution.Status)
	assert.Contains(t, execution.State.TerminateReason, "panic in stage scrape")
}

func TestOrchestrator_InvalidURLTerminates(t *testing.T) {
	h := newHarness(t)

	state := models.NewPipelineState("exec-bad-url", "user-1", "not a url")
	execution := &models.Execution{
		ID:        "exec-bad-url",
		UserID:    "user-1",
		URL:       "not a url",
		Status:    models.ExecutionStatusRunning,
		State:     state,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, h.executions.Create(t.Context(), execution))

	h.orchestrator.Start(t.Context(), state)

	stored := h.fetch(t, "exec-bad-url")
	assert.Equal(t, models.ExecutionStatusTerminated, stored.Status)
	assert.Equal(t, "The URL must be an absolute http or https address.", stored.State.TerminateReason)
}

func TestOrchestrator_MissingAuthSuspendsThenTerminates(t *testing.T) {
	h := newHarness(t)
	h.credentials.set(false, true)

	h.start(t, "exec-auth")

	require.NoError(t, h.orchestrator.Resume(t.Context(), "exec-auth", &models.HitlAction{ApproveContent: true}))

	execution := h.fetch(t, "exec-auth")
	assert.Equal(t, models.ExecutionStatusAwaitingAuth, execution.Status)
	require.NotNil(t, execution.State.Interrupt)
	assert.Equal(t, models.InterruptReauthRequired, execution.State.Interrupt.Type)
	assert.Equal(t, []string{"twitter"}, execution.State.Interrupt.Needs)

	// Resuming without connecting the account is terminal.
	require.NoError(t, h.orchestrator.Resume(t.Context(), "exec-auth", nil))

	execution = h.fetch(t, "exec-auth")
	assert.Equal(t, models.ExecutionStatusTerminated, execution.Status)
	assert.Equal(t, "Authentication not completed.", execution.State.TerminateReason)
}

func TestOrchestrator_ReauthThenPublish(t *testing.T) {
	h := newHarness(t)
	h.credentials.set(false, false)

	h.start(t, "exec-reauth")

	require.NoError(t, h.orchestrator.Resume(t.Context(), "exec-reauth", &models.HitlAction{ApproveContent: true}))
	assert.Equal(t, models.ExecutionStatusAwaitingAuth, h.fetch(t, "exec-reauth").Status)

	// The user connects both accounts out of band, then resumes.
	h.credentials.set(true, true)
	require.NoError(t, h.orchestrator.Resume(t.Context(), "exec-reauth", nil))

	execution := h.fetch(t, "exec-reauth")
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, models.PublishPublished, execution.State.PublishStatus.Twitter)
	assert.Equal(t, models.PublishPublished, execution.State.PublishStatus.LinkedIn)
}

func TestOrchestrator_PartialPublishIndependence(t *testing.T) {
	h := newHarness(t)
	h.publisher.publishErr[models.ProviderTwitter] = errors.New("Your access token has expired. Please reconnect your account.")

	h.start(t, "exec-partial")

	require.NoError(t, h.orchestrator.Resume(t.Context(), "exec-partial", &models.HitlAction{ApproveContent: true}))

	execution := h.fetch(t, "exec-partial")
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)

	status := execution.State.PublishStatus
	assert.Equal(t, models.PublishFailed, status.Twitter)
	assert.Equal(t, models.PublishPublished, status.LinkedIn)
	assert.Contains(t, status.LastError, "access token has expired")
	assert.Equal(t, "post-linkedin", status.LinkedInPostURN)
}

func TestOrchestrator_ImageFetchFailureDegradesToTextOnly(t *testing.T) {
	h := newHarness(t)
	h.images.err = errors.New("403 hotlink blocked")

	h.start(t, "exec-noimage")

	require.NoError(t, h.orchestrator.Resume(t.Context(), "exec-noimage", &models.HitlAction{
		ApproveContent: true,
		ApproveImage:   true,
	}))

	execution := h.fetch(t, "exec-noimage")
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, models.PublishPublished, execution.State.PublishStatus.Twitter)
	assert.Empty(t, h.publisher.uploads)
}

func TestOrchestrator_TimeoutTerminatesWithPartialState(t *testing.T) {
	h := newHarness(t)
	h.scraper.block = true
	h.orchestrator.timeout = 50 * time.Millisecond

	execution := h.start(t, "exec-slow")

	assert.Equal(t, models.ExecutionStatusTerminated, execution.Status)
	assert.Equal(t, "Execution timed out.", execution.State.TerminateReason)
}

func TestOrchestrator_CanceledContextTerminatesAsCanceled(t *testing.T) {
	h := newHarness(t)

	state := models.NewPipelineState("exec-canceled", "user-1", "https://example.com/article")
	execution := &models.Execution{
		ID:        "exec-canceled",
		UserID:    "user-1",
		URL:       "https://example.com/article",
		Status:    models.ExecutionStatusRunning,
		State:     state,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, h.executions.Create(t.Context(), execution))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h.orchestrator.Start(ctx, state)

	stored := h.fetch(t, "exec-canceled")
	assert.Equal(t, models.ExecutionStatusTerminated, stored.Status)
	assert.Equal(t, "Execution canceled.", stored.State.TerminateReason)
}

func TestOrchestrator_RehydratesAfterCheckpointLoss(t *testing.T) {
	h := newHarness(t)

	h.start(t, "exec-rehydrate")

	// Simulate a restart: the in-memory checkpoint store is replaced.
	h.orchestrator.checkpoints = memory.NewStore()

	require.NoError(t, h.orchestrator.Resume(t.Context(), "exec-rehydrate", &models.HitlAction{ApproveContent: true}))

	execution := h.fetch(t, "exec-rehydrate")
	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, "tweet draft v1", h.publisher.published[models.ProviderTwitter])
}

func TestOrchestrator_ResumeNonSuspendedRejected(t *testing.T) {
	h := newHarness(t)

	h.start(t, "exec-done")
	require.NoError(t, h.orchestrator.Resume(t.Context(), "exec-done", &models.HitlAction{ApproveContent: true}))

	err := h.orchestrator.Resume(t.Context(), "exec-done", &models.HitlAction{ApproveContent: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotSuspended)
}

func TestOrchestrator_ResumeUnknownExecution(t *testing.T) {
	h := newHarness(t)

	err := h.orchestrator.Resume(t.Context(), "never-created", nil)
	require.Error(t, err)
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestOrchestrator_ConcurrentResumeConflicts(t *testing.T) {
	h := newHarness(t)
	h.publisher.entered = make(chan struct{})
	h.publisher.release = make(chan struct{})

	h.start(t, "exec-race")

	firstDone := make(chan error, 1)

	go func() {
		firstDone <- h.orchestrator.Resume(context.Background(), "exec-race", &models.HitlAction{ApproveContent: true})
	}()

	// Wait until the first resume is parked inside the publisher.
	select {
	case <-h.publisher.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first resume never reached the publisher")
	}

	err := h.orchestrator.Resume(t.Context(), "exec-race", &models.HitlAction{ApproveContent: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResumeInFlight)

	close(h.publisher.release)
	require.NoError(t, <-firstDone)

	assert.Equal(t, models.ExecutionStatusCompleted, h.fetch(t, "exec-race").Status)
}
