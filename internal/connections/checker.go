// Package connections resolves which connected accounts a run publishes
// through and summarizes their credential health for the auth gate.
package connections

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/publion/publion/pkg/models"
	"github.com/publion/publion/pkg/persistence"
)

// Checker implements the engine's CredentialChecker contract on top of the
// connection store. A missing connection and an expired token both read as
// not OK; the engine decides whether that suspends or terminates a run.
type Checker struct {
	connections persistence.ConnectionRepository
	logger      *slog.Logger
	now         func() time.Time
}

// NewChecker creates a credential checker.
func NewChecker(connections persistence.ConnectionRepository, logger *slog.Logger) *Checker {
	return &Checker{
		connections: connections,
		logger:      logger.With("module", "connections"),
		now:         time.Now,
	}
}

// Check resolves one connection per provider and reports token health. An
// explicit connection ID pins the account; otherwise the user's default for
// that provider is used.
func (c *Checker) Check(ctx context.Context, userID, twitterConnectionID, linkedinConnectionID string) (*models.AuthSummary, error) {
	summary := &models.AuthSummary{}

	twitter, err := c.resolve(ctx, userID, models.ProviderTwitter, twitterConnectionID)
	if err != nil {
		return nil, err
	}

	if twitter != nil {
		summary.TwitterOK = c.healthy(twitter)
		summary.TwitterExpiresAt = twitter.ExpiresAt
	}

	linkedin, err := c.resolve(ctx, userID, models.ProviderLinkedIn, linkedinConnectionID)
	if err != nil {
		return nil, err
	}

	if linkedin != nil {
		summary.LinkedInOK = c.healthy(linkedin)
		summary.LinkedInExpiresAt = linkedin.ExpiresAt
	}

	return summary, nil
}

// resolve returns the pinned or default connection, or nil when the user has
// none for the provider.
func (c *Checker) resolve(ctx context.Context, userID string, provider models.Provider, connectionID string) (*models.SocialConnection, error) {
	if connectionID != "" {
		connection, err := c.connections.GetByID(ctx, connectionID)
		if err != nil {
			if errors.Is(err, persistence.ErrConnectionNotFound) {
				return nil, nil
			}

			return nil, fmt.Errorf("failed to load connection %s: %w", connectionID, err)
		}

		if connection.UserID != userID || connection.Provider != provider {
			c.logger.WarnContext(ctx, "pinned connection does not belong to user or provider",
				"connection_id", connectionID, "provider", provider)

			return nil, nil
		}

		return connection, nil
	}

	connection, err := c.connections.GetDefault(ctx, userID, provider)
	if err != nil {
		if errors.Is(err, persistence.ErrConnectionNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to load default %s connection: %w", provider, err)
	}

	return connection, nil
}

func (c *Checker) healthy(connection *models.SocialConnection) bool {
	return connection.TokenJSON != "" && !connection.Expired(c.now())
}
