// Package analyzer scores scraped articles for publication fit and extracts
// the signals the draft generator builds on.
package analyzer

import (
	"context"
	"log/slog"
	"strings"

	"github.com/publion/publion/pkg/models"
)

// Signal words that mark a page as something other than an article worth
// sharing: storefronts, auth walls, error pages, bare link lists.
var badSignals = []string{
	"404",
	"page not found",
	"access denied",
	"sign in to continue",
	"add to cart",
	"checkout",
	"cookie policy",
	"terms and conditions apply",
}

var techSignals = []string{
	"algorithm", "api", "architecture", "cloud", "code", "data",
	"deployment", "design", "engineering", "framework", "infrastructure",
	"library", "model", "performance", "protocol", "research", "security",
	"software", "system", "testing",
}

// Analyzer implements the engine's Analyzer contract with content heuristics.
type Analyzer struct {
	logger *slog.Logger
}

// New creates an analyzer.
func New(logger *slog.Logger) *Analyzer {
	return &Analyzer{logger: logger.With("module", "analyzer")}
}

// Analyze derives topic, tone, key insights and a relevance score in [0, 1].
func (a *Analyzer) Analyze(_ context.Context, content *models.ScrapedContent) (*models.AnalysisResult, error) {
	text := strings.ToLower(content.Text)

	result := &models.AnalysisResult{
		Topic:          topicOf(content),
		Tone:           toneOf(text),
		KeyInsights:    keyInsights(content),
		RelevanceScore: relevance(content, text),
	}

	return result, nil
}

func topicOf(content *models.ScrapedContent) string {
	if content.Title != "" {
		return content.Title
	}

	if len(content.Headings) > 0 {
		return content.Headings[0]
	}

	return "the linked article"
}

func toneOf(text string) string {
	switch {
	case strings.Contains(text, "we're excited") || strings.Contains(text, "announcing") || strings.Contains(text, "introducing"):
		return "enthusiastic"
	case strings.Contains(text, "benchmark") || strings.Contains(text, "measured") || strings.Contains(text, "experiment"):
		return "analytical"
	default:
		return "informative"
	}
}

// keyInsights picks up to three headings as the article's talking points,
// skipping the title repeat.
func keyInsights(content *models.ScrapedContent) []string {
	var insights []string

	for _, heading := range content.Headings {
		if heading == content.Title {
			continue
		}

		insights = append(insights, heading)
		if len(insights) == 3 {
			break
		}
	}

	return insights
}

// relevance starts from a neutral base, rewards substance and topical
// vocabulary, and penalizes non-article signals.
func relevance(content *models.ScrapedContent, text string) float64 {
	score := 0.4

	// Length bonus: real articles carry real text.
	switch {
	case len(text) > 8000:
		score += 0.25
	case len(text) > 3000:
		score += 0.2
	case len(text) > 1200:
		score += 0.1
	}

	if content.Title != "" {
		score += 0.05
	}

	if len(content.Headings) >= 2 {
		score += 0.1
	}

	matched := 0

	for _, signal := range techSignals {
		if strings.Contains(text, signal) {
			matched++
		}
	}

	if matched >= 5 {
		score += 0.15
	} else if matched >= 2 {
		score += 0.05
	}

	for _, signal := range badSignals {
		if strings.Contains(text, signal) {
			score -= 0.3

			break
		}
	}

	if score < 0 {
		return 0
	}

	if score > 1 {
		return 1
	}

	return score
}
