package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/publion/publion/pkg/models"
	"github.com/publion/publion/pkg/persistence"
)

// Connections is the application service for connected publishing accounts.
// Token payloads pass through opaque; this layer never inspects them.
type Connections struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

// NewConnections creates the connections service.
func NewConnections(p persistence.Persistence, logger *slog.Logger) *Connections {
	return &Connections{
		persistence: p,
		logger:      logger.With("module", "connections-service"),
	}
}

// AddConnectionRequest is the input for registering a publishing account.
type AddConnectionRequest struct {
	UserID      string `json:"user_id"      validate:"required"`
	Provider    string `json:"provider"     validate:"required,oneof=twitter linkedin"`
	AccountID   string `json:"account_id"   validate:"required"`
	DisplayName string `json:"display_name"`
	Label       string `json:"label"`
	TokenJSON   string `json:"token_json"   validate:"required"`
	ExpiresAt   *time.Time
	MakeDefault bool `json:"make_default"`
}

// Add registers a connected account.
func (c *Connections) Add(ctx context.Context, req AddConnectionRequest) (*models.SocialConnection, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return nil, ErrUserIDRequired
	}

	provider := models.Provider(strings.ToLower(strings.TrimSpace(req.Provider)))
	if !slices.Contains(models.Providers, provider) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProvider, req.Provider)
	}

	if strings.TrimSpace(req.AccountID) == "" || strings.TrimSpace(req.TokenJSON) == "" {
		return nil, ErrInvalidRequest
	}

	connection := &models.SocialConnection{
		ID:          uuid.New().String(),
		UserID:      req.UserID,
		Provider:    provider,
		AccountID:   strings.TrimSpace(req.AccountID),
		DisplayName: strings.TrimSpace(req.DisplayName),
		Label:       strings.TrimSpace(req.Label),
		TokenJSON:   req.TokenJSON,
		ExpiresAt:   req.ExpiresAt,
		IsDefault:   req.MakeDefault,
		CreatedAt:   time.Now().UTC(),
	}

	if err := c.persistence.ConnectionRepository().Add(ctx, connection); err != nil {
		return nil, fmt.Errorf("failed to add connection: %w", err)
	}

	c.logger.InfoContext(ctx, "connection added",
		"connection_id", connection.ID, "provider", provider, "user_id", req.UserID)

	return connection, nil
}

// List returns the user's connections, defaults first per provider.
func (c *Connections) List(ctx context.Context, userID string) ([]*models.SocialConnection, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}

	connections, err := c.persistence.ConnectionRepository().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}

	return connections, nil
}

// UpdateTokens replaces the stored token payload after a reconnect.
func (c *Connections) UpdateTokens(ctx context.Context, connectionID, userID, tokenJSON string, expiresAt *time.Time) error {
	if strings.TrimSpace(tokenJSON) == "" {
		return ErrInvalidRequest
	}

	connection, err := c.persistence.ConnectionRepository().GetByID(ctx, connectionID)
	if err != nil {
		return err
	}

	if userID != "" && connection.UserID != userID {
		return &persistence.ConnectionError{Op: "UpdateTokens", ConnectionID: connectionID, Err: persistence.ErrConnectionNotFound}
	}

	if err := c.persistence.ConnectionRepository().UpdateTokens(ctx, connectionID, tokenJSON, expiresAt); err != nil {
		return fmt.Errorf("failed to update tokens: %w", err)
	}

	return nil
}

// Delete removes a user's connection.
func (c *Connections) Delete(ctx context.Context, connectionID, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUserIDRequired
	}

	if err := c.persistence.ConnectionRepository().Delete(ctx, connectionID, userID); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "connection deleted", "connection_id", connectionID, "user_id", userID)

	return nil
}
