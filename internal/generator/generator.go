// Package generator turns analyzed articles into platform drafts using
// deterministic templates. It is intentionally self-contained: draft
// generation never depends on upstream configuration and never fails a run.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/publion/publion/pkg/engine"
	"github.com/publion/publion/pkg/models"
)

const tweetLimit = 280

var tweetOpeners = []string{"", "Worth your time: ", "New read: ", "ICYMI: "}

var linkedinOpeners = []string{"Worth a read:", "Sharing this one:", "Recommended reading:"}

// Generator implements the engine's Generator contract.
type Generator struct {
	logger *slog.Logger
	pass   atomic.Uint64
}

// New creates a generator.
func New(logger *slog.Logger) *Generator {
	return &Generator{logger: logger.With("module", "generator")}
}

// Generate produces drafts for the requested platforms. Each pass rotates the
// opener so a regeneration visibly changes the draft.
func (g *Generator) Generate(_ context.Context, content *models.ScrapedContent, analysis *models.AnalysisResult, mode engine.GenerateMode) (engine.Drafts, error) {
	pass := g.pass.Add(1) - 1
	drafts := engine.Drafts{}

	if mode == engine.ModeBoth || mode == engine.ModeTwitterOnly {
		drafts.Twitter = g.twitterDraft(content, analysis, pass)
	}

	if mode == engine.ModeBoth || mode == engine.ModeLinkedInOnly {
		drafts.LinkedIn = g.linkedinDraft(content, analysis, pass)
	}

	return drafts, nil
}

func (g *Generator) twitterDraft(content *models.ScrapedContent, analysis *models.AnalysisResult, pass uint64) string {
	topic := topicOf(content, analysis)

	insight := ""
	if analysis != nil && len(analysis.KeyInsights) > 0 {
		insight = analysis.KeyInsights[0]
	}

	var builder strings.Builder

	builder.WriteString(tweetOpeners[pass%uint64(len(tweetOpeners))])
	builder.WriteString(topic)

	if insight != "" {
		builder.WriteString(" — ")
		builder.WriteString(insight)
	}

	builder.WriteString("\n\n")
	builder.WriteString(content.URL)
	builder.WriteString("\n")
	builder.WriteString(hashtag(topic))

	return clampTweet(builder.String(), content.URL)
}

func (g *Generator) linkedinDraft(content *models.ScrapedContent, analysis *models.AnalysisResult, pass uint64) string {
	topic := topicOf(content, analysis)

	var builder strings.Builder

	fmt.Fprintf(&builder, "%s %s\n\n", linkedinOpeners[pass%uint64(len(linkedinOpeners))], topic)

	if analysis != nil && len(analysis.KeyInsights) > 0 {
		builder.WriteString("Highlights:\n")

		for _, insight := range analysis.KeyInsights {
			fmt.Fprintf(&builder, "• %s\n", insight)
		}

		builder.WriteString("\n")
	}

	fmt.Fprintf(&builder, "Full article: %s", content.URL)

	return builder.String()
}

func topicOf(content *models.ScrapedContent, analysis *models.AnalysisResult) string {
	if analysis != nil && analysis.Topic != "" {
		return analysis.Topic
	}

	if content.Title != "" {
		return content.Title
	}

	return "An article worth sharing"
}

// hashtag derives a single CamelCase tag from the first few topic words.
func hashtag(topic string) string {
	words := strings.Fields(topic)
	if len(words) > 3 {
		words = words[:3]
	}

	var builder strings.Builder

	builder.WriteString("#")

	for _, word := range words {
		cleaned := strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
				return r
			}

			return -1
		}, word)
		if cleaned == "" {
			continue
		}

		builder.WriteString(strings.ToUpper(cleaned[:1]))

		if len(cleaned) > 1 {
			builder.WriteString(strings.ToLower(cleaned[1:]))
		}
	}

	if builder.Len() == 1 {
		return "#Reading"
	}

	return builder.String()
}

// clampTweet keeps the draft inside the platform limit without ever cutting
// the URL.
func clampTweet(draft, url string) string {
	if len([]rune(draft)) <= tweetLimit {
		return draft
	}

	overhead := len([]rune(draft)) - tweetLimit

	lines := strings.SplitN(draft, "\n\n", 2)
	head := []rune(lines[0])

	if len(head) > overhead+1 {
		head = head[:len(head)-overhead-1]
		trimmed := strings.TrimRight(string(head), " —-") + "…"

		if len(lines) == 2 {
			return trimmed + "\n\n" + lines[1]
		}

		return trimmed
	}

	// Degenerate case: fall back to just the link.
	return url
}
