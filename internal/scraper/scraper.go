// Package scraper extracts article content for the pipeline. It talks to a
// hosted scrape service when one is configured and falls back to fetching and
// parsing the page directly.
package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/publion/publion/pkg/models"
	"github.com/publion/publion/pkg/retry"
)

const (
	defaultTimeout = 30 * time.Second

	// maxBodyBytes caps how much of a page is read. Articles fit well under
	// this; anything larger is not worth summarizing anyway.
	maxBodyBytes = 4 << 20

	userAgent = "publion/1.0 (+https://github.com/publion/publion)"
)

// Config holds the scrape service settings. An empty ServiceURL selects the
// direct-fetch fallback.
type Config struct {
	ServiceURL string
	APIKey     string
	Timeout    time.Duration
}

// Scraper implements the engine's Scraper contract.
type Scraper struct {
	config Config
	client *http.Client
	logger *slog.Logger
	policy retry.Policy
}

// New creates a scraper with the transient-error retry policy applied to all
// outbound requests.
func New(config Config, logger *slog.Logger) *Scraper {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	policy := retry.DefaultPolicy()
	policy.Retryable = isTransient

	return &Scraper{
		config: config,
		client: &http.Client{Timeout: timeout},
		logger: logger.With("module", "scraper"),
		policy: policy,
	}
}

// Scrape fetches article content for a URL.
func (s *Scraper) Scrape(ctx context.Context, url string) (*models.ScrapedContent, error) {
	var (
		content *models.ScrapedContent
		err     error
	)

	doScrape := func() error {
		if s.config.ServiceURL != "" {
			content, err = s.scrapeService(ctx, url)
		} else {
			content, err = s.scrapeDirect(ctx, url)
		}

		return err
	}

	if retryErr := s.policy.Do(ctx, doScrape); retryErr != nil {
		return nil, retryErr
	}

	return content, nil
}

// permanentError marks HTTP failures that retrying cannot fix.
type permanentError struct {
	message string
}

func (e *permanentError) Error() string {
	return e.message
}

func isTransient(err error) bool {
	var pe *permanentError

	return !errors.As(err, &pe)
}

// scrapeService POSTs to the hosted scrape service and maps its payload into
// ScrapedContent.
func (s *Scraper) scrapeService(ctx context.Context, url string) (*models.ScrapedContent, error) {
	payload, err := json.Marshal(map[string]any{
		"url":             url,
		"formats":         []string{"markdown"},
		"onlyMainContent": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode scrape request: %w", err)
	}

	endpoint := strings.TrimRight(s.config.ServiceURL, "/") + "/v1/scrape"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create scrape request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if s.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrape service request failed: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read scrape response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("scrape service returned %d: %s", resp.StatusCode, truncate(string(body), 200))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, &permanentError{message: err.Error()}
		}

		return nil, err
	}

	var decoded struct {
		Success bool `json:"success"`
		Data    struct {
			Markdown string         `json:"markdown"`
			Metadata map[string]any `json:"metadata"`
		} `json:"data"`
	}

	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode scrape response: %w", err)
	}

	if !decoded.Success {
		return nil, &permanentError{message: "scrape service reported failure for " + url}
	}

	content := &models.ScrapedContent{
		URL:      url,
		Text:     decoded.Data.Markdown,
		Metadata: map[string]any{},
	}

	if title, ok := decoded.Data.Metadata["title"].(string); ok {
		content.Title = title
	}

	if ogImage, ok := decoded.Data.Metadata["ogImage"].(string); ok && ogImage != "" {
		content.Metadata["og:image"] = ogImage
	}

	return content, nil
}

// scrapeDirect fetches the page and extracts the article with goquery.
func (s *Scraper) scrapeDirect(ctx context.Context, url string) (*models.ScrapedContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("fetch returned %d for %s", resp.StatusCode, url)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, &permanentError{message: err.Error()}
		}

		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read page body: %w", err)
	}

	return Extract(url, body)
}

// Extract parses an HTML document into ScrapedContent. Exported so the
// scrape stage can be exercised without a live server.
func Extract(url string, body []byte) (*models.ScrapedContent, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	content := &models.ScrapedContent{
		URL:      url,
		Title:    strings.TrimSpace(doc.Find("title").First().Text()),
		Metadata: map[string]any{},
	}

	if ogTitle, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && content.Title == "" {
		content.Title = strings.TrimSpace(ogTitle)
	}

	if ogImage, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok && ogImage != "" {
		content.Metadata["og:image"] = ogImage
	}

	if description, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && description != "" {
		content.Metadata["description"] = description
	}

	// Prefer the semantic article container, fall back to the whole body.
	container := doc.Find("main, article").First()
	if container.Length() == 0 {
		container = doc.Find("body")
	}

	var paragraphs []string

	container.Find("h1, h2, h3, p, li").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}

		if goquery.NodeName(sel) == "h1" || goquery.NodeName(sel) == "h2" || goquery.NodeName(sel) == "h3" {
			content.Headings = append(content.Headings, text)
		}

		paragraphs = append(paragraphs, text)
	})

	content.Text = strings.Join(paragraphs, "\n\n")

	container.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok || src == "" || strings.HasPrefix(src, "data:") {
			return
		}

		image := models.ScrapedImage{Src: src}

		if alt, ok := sel.Attr("alt"); ok {
			image.Alt = strings.TrimSpace(alt)
		}

		if width, ok := sel.Attr("width"); ok {
			if parsed, err := strconv.Atoi(width); err == nil {
				image.Width = parsed
			}
		}

		if height, ok := sel.Attr("height"); ok {
			if parsed, err := strconv.Atoi(height); err == nil {
				image.Height = parsed
			}
		}

		content.Images = append(content.Images, image)
	})

	return content, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}

	return s[:max]
}
