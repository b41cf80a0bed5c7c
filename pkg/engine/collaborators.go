// Package engine drives the content-to-publication pipeline: a fixed stage
// graph with human-in-the-loop suspension, durable snapshots and resume.
package engine

import (
	"context"

	"github.com/publion/publion/pkg/models"
)

// GenerateMode restricts draft generation to one platform during a
// regeneration loop.
type GenerateMode string

const (
	ModeBoth         GenerateMode = "both"
	ModeTwitterOnly  GenerateMode = "twitter_only"
	ModeLinkedInOnly GenerateMode = "linkedin_only"
)

// Drafts is the generator output for one pass.
type Drafts struct {
	Twitter  string
	LinkedIn string
}

// Scraper extracts article content from a URL.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*models.ScrapedContent, error)
}

// Analyzer derives topic, tone and a relevance score from scraped content.
type Analyzer interface {
	Analyze(ctx context.Context, content *models.ScrapedContent) (*models.AnalysisResult, error)
}

// Generator produces platform drafts from content and analysis.
type Generator interface {
	Generate(ctx context.Context, content *models.ScrapedContent, analysis *models.AnalysisResult, mode GenerateMode) (Drafts, error)
}

// CredentialChecker summarizes token presence and expiry for the connections
// a run will publish through. Raw credentials never enter the pipeline state.
type CredentialChecker interface {
	Check(ctx context.Context, userID, twitterConnectionID, linkedinConnectionID string) (*models.AuthSummary, error)
}

// ImageFetcher downloads the bytes of the image selected for publication.
type ImageFetcher interface {
	Fetch(ctx context.Context, imageURL, articleURL string) (data []byte, contentType string, err error)
}

// Publisher uploads media and publishes posts on one platform at a time.
type Publisher interface {
	UploadMedia(ctx context.Context, provider models.Provider, userID, connectionID string, data []byte, contentType string) (string, error)
	Publish(ctx context.Context, provider models.Provider, userID, connectionID, text, mediaID string) (string, error)
}

// Collaborators bundles every external capability a run needs. The
// orchestrator is built once at process start with the full set injected.
type Collaborators struct {
	Scraper     Scraper
	Analyzer    Analyzer
	Generator   Generator
	Credentials CredentialChecker
	Images      ImageFetcher
	Publisher   Publisher
}
