// Package publisher posts approved content to the connected platforms. It
// resolves tokens from the connection store and speaks each platform's HTTP
// API directly; errors are rewritten into messages a reviewer can act on.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/publion/publion/pkg/models"
	"github.com/publion/publion/pkg/persistence"
)

const (
	defaultTimeout = 45 * time.Second

	twitterAPIBaseURL    = "https://api.twitter.com"
	twitterUploadBaseURL = "https://upload.twitter.com"
	linkedinAPIBaseURL   = "https://api.linkedin.com"

	maxErrorBody = 200
)

// Config overrides the platform endpoints. Zero values select the real APIs.
type Config struct {
	TwitterAPIBaseURL    string
	TwitterUploadBaseURL string
	LinkedInAPIBaseURL   string
	Timeout              time.Duration
}

// Publisher implements the engine's Publisher contract for Twitter and
// LinkedIn.
type Publisher struct {
	config      Config
	connections persistence.ConnectionRepository
	client      *http.Client
	logger      *slog.Logger
}

// New creates a publisher.
func New(config Config, connections persistence.ConnectionRepository, logger *slog.Logger) *Publisher {
	if config.TwitterAPIBaseURL == "" {
		config.TwitterAPIBaseURL = twitterAPIBaseURL
	}

	if config.TwitterUploadBaseURL == "" {
		config.TwitterUploadBaseURL = twitterUploadBaseURL
	}

	if config.LinkedInAPIBaseURL == "" {
		config.LinkedInAPIBaseURL = linkedinAPIBaseURL
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Publisher{
		config:      config,
		connections: connections,
		client:      &http.Client{Timeout: timeout},
		logger:      logger.With("module", "publisher"),
	}
}

// UploadMedia uploads image bytes and returns the platform's media handle: a
// media ID for Twitter, an asset URN for LinkedIn.
func (p *Publisher) UploadMedia(ctx context.Context, provider models.Provider, userID, connectionID string, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty media payload")
	}

	connection, tokens, err := p.resolveTokens(ctx, userID, provider, connectionID)
	if err != nil {
		return "", err
	}

	switch provider {
	case models.ProviderTwitter:
		return p.uploadTwitterMedia(ctx, tokens, data, contentType)
	case models.ProviderLinkedIn:
		return p.uploadLinkedInMedia(ctx, connection, tokens, data)
	default:
		return "", fmt.Errorf("unknown platform: %s", provider)
	}
}

// Publish posts text (and optional prior-uploaded media) and returns the
// platform post ID.
func (p *Publisher) Publish(ctx context.Context, provider models.Provider, userID, connectionID, text, mediaID string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("empty post text")
	}

	connection, tokens, err := p.resolveTokens(ctx, userID, provider, connectionID)
	if err != nil {
		return "", err
	}

	switch provider {
	case models.ProviderTwitter:
		return p.publishTweet(ctx, connection, tokens, text, mediaID)
	case models.ProviderLinkedIn:
		return p.publishLinkedInShare(ctx, connection, tokens, text, mediaID)
	default:
		return "", fmt.Errorf("unknown platform: %s", provider)
	}
}

// resolveTokens loads the pinned connection, or the user's default for the
// provider when none is pinned, and decodes its token payload.
func (p *Publisher) resolveTokens(ctx context.Context, userID string, provider models.Provider, connectionID string) (*models.SocialConnection, *tokenPayload, error) {
	var (
		connection *models.SocialConnection
		err        error
	)

	if connectionID != "" {
		connection, err = p.connections.GetByID(ctx, connectionID)
		if err == nil && (connection.UserID != userID || connection.Provider != provider) {
			err = persistence.ErrConnectionNotFound
		}
	} else {
		connection, err = p.connections.GetDefault(ctx, userID, provider)
	}

	if err != nil {
		if errors.Is(err, persistence.ErrConnectionNotFound) {
			return nil, nil, notConnectedError(provider)
		}

		return nil, nil, fmt.Errorf("failed to load %s connection: %w", provider, err)
	}

	tokens, err := decodeTokens(connection.TokenJSON)
	if err != nil || tokens.AccessToken == "" {
		return nil, nil, notConnectedError(provider)
	}

	return connection, tokens, nil
}

// apiError is a platform rejection carrying the HTTP status, kept as a
// distinct type so the status survives into classification.
type apiError struct {
	provider models.Provider
	status   int
	body     string
}

func (e *apiError) Error() string {
	return friendlyError(e.provider, e.status, e.body)
}

func newAPIError(provider models.Provider, status int, body []byte) *apiError {
	return &apiError{provider: provider, status: status, body: truncate(string(body), maxErrorBody)}
}

// friendlyError rewrites platform rejections into messages the reviewer can
// act on without reading API docs.
func friendlyError(provider models.Provider, status int, body string) string {
	switch {
	case status == http.StatusPaymentRequired || strings.Contains(body, "CreditsDepleted"):
		return "Twitter API credits depleted. Add credits in your X Developer account (developer.x.com) or try again later."
	case status == http.StatusUnauthorized:
		return fmt.Sprintf("%s token expired. In Connections, disconnect and add again to get a fresh token, then try publishing again.", providerLabel(provider))
	case status == http.StatusTooManyRequests:
		return fmt.Sprintf("%s rate limit hit (429). Try again later.", providerLabel(provider))
	default:
		return fmt.Sprintf("%s publish failed: %d %s", providerLabel(provider), status, body)
	}
}

func notConnectedError(provider models.Provider) error {
	return fmt.Errorf("%s not connected. Connect your account in Settings.", providerLabel(provider))
}

func providerLabel(provider models.Provider) string {
	switch provider {
	case models.ProviderTwitter:
		return "Twitter"
	case models.ProviderLinkedIn:
		return "LinkedIn"
	default:
		return string(provider)
	}
}

func readBody(resp *http.Response) []byte {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	return body
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}

	return s[:max]
}
