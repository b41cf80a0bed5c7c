package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/publion/publion/pkg/models"
	"github.com/publion/publion/pkg/persistence"
)

// ConnectionRepository handles publishing-connection database operations.
type ConnectionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewConnectionRepository creates a new connection repository.
func NewConnectionRepository(db *sql.DB, logger *slog.Logger) *ConnectionRepository {
	return &ConnectionRepository{db: db, logger: logger}
}

// Add inserts a connection. The first connection for a (user, provider) pair
// becomes the default; an explicit default unsets the previous one.
func (cr *ConnectionRepository) Add(ctx context.Context, connection *models.SocialConnection) error {
	tx, err := cr.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	var existing int

	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM social_connections WHERE user_id = $1 AND provider = $2`,
		connection.UserID, connection.Provider,
	).Scan(&existing)
	if err != nil {
		return fmt.Errorf("failed to count existing connections: %w", err)
	}

	if existing == 0 {
		connection.IsDefault = true
	}

	if connection.IsDefault {
		_, err = tx.ExecContext(ctx,
			`UPDATE social_connections SET is_default = FALSE WHERE user_id = $1 AND provider = $2`,
			connection.UserID, connection.Provider,
		)
		if err != nil {
			return fmt.Errorf("failed to unset previous default: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO social_connections (id, user_id, provider, account_id, display_name, label, token_json, expires_at, is_default, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		connection.ID,
		connection.UserID,
		connection.Provider,
		connection.AccountID,
		connection.DisplayName,
		connection.Label,
		connection.TokenJSON,
		connection.ExpiresAt,
		connection.IsDefault,
		connection.CreatedAt,
	)
	if err != nil {
		return &persistence.ConnectionError{Op: "Add", ConnectionID: connection.ID, Err: err}
	}

	return tx.Commit()
}

// GetByID returns the connection or ErrConnectionNotFound.
func (cr *ConnectionRepository) GetByID(ctx context.Context, connectionID string) (*models.SocialConnection, error) {
	query := `
		SELECT id, user_id, provider, account_id, display_name, label, token_json, expires_at, is_default, created_at
		FROM social_connections
		WHERE id = $1
	`

	connection, err := cr.scanConnection(cr.db.QueryRowContext(ctx, query, connectionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.ConnectionError{Op: "GetByID", ConnectionID: connectionID, Err: persistence.ErrConnectionNotFound}
		}

		return nil, &persistence.ConnectionError{Op: "GetByID", ConnectionID: connectionID, Err: err}
	}

	return connection, nil
}

// ListByUser returns every connection for a user, defaults first.
func (cr *ConnectionRepository) ListByUser(ctx context.Context, userID string) ([]*models.SocialConnection, error) {
	query := `
		SELECT id, user_id, provider, account_id, display_name, label, token_json, expires_at, is_default, created_at
		FROM social_connections
		WHERE user_id = $1
		ORDER BY provider, is_default DESC, created_at
	`

	rows, err := cr.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			cr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var connections []*models.SocialConnection

	for rows.Next() {
		connection, err := cr.scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}

		connections = append(connections, connection)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating connections: %w", err)
	}

	return connections, nil
}

// GetDefault returns the default connection for (user, provider), falling
// back to the oldest connection when no default is flagged.
func (cr *ConnectionRepository) GetDefault(ctx context.Context, userID string, provider models.Provider) (*models.SocialConnection, error) {
	query := `
		SELECT id, user_id, provider, account_id, display_name, label, token_json, expires_at, is_default, created_at
		FROM social_connections
		WHERE user_id = $1 AND provider = $2
		ORDER BY is_default DESC, created_at
		LIMIT 1
	`

	connection, err := cr.scanConnection(cr.db.QueryRowContext(ctx, query, userID, provider))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.ConnectionError{Op: "GetDefault", Err: persistence.ErrConnectionNotFound}
		}

		return nil, &persistence.ConnectionError{Op: "GetDefault", Err: err}
	}

	return connection, nil
}

// UpdateTokens replaces the stored token payload after a refresh.
func (cr *ConnectionRepository) UpdateTokens(ctx context.Context, connectionID, tokenJSON string, expiresAt *time.Time) error {
	query := `
		UPDATE social_connections
		SET token_json = $2, expires_at = COALESCE($3, expires_at)
		WHERE id = $1
	`

	result, err := cr.db.ExecContext(ctx, query, connectionID, tokenJSON, expiresAt)
	if err != nil {
		return &persistence.ConnectionError{Op: "UpdateTokens", ConnectionID: connectionID, Err: err}
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return &persistence.ConnectionError{Op: "UpdateTokens", ConnectionID: connectionID, Err: err}
	}

	if affected == 0 {
		return &persistence.ConnectionError{Op: "UpdateTokens", ConnectionID: connectionID, Err: persistence.ErrConnectionNotFound}
	}

	return nil
}

// Delete removes a connection owned by the user. When the default is removed,
// the oldest remaining connection for the same provider becomes the default.
func (cr *ConnectionRepository) Delete(ctx context.Context, connectionID, userID string) error {
	tx, err := cr.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	var (
		provider   models.Provider
		wasDefault bool
	)

	err = tx.QueryRowContext(ctx,
		`DELETE FROM social_connections WHERE id = $1 AND user_id = $2 RETURNING provider, is_default`,
		connectionID, userID,
	).Scan(&provider, &wasDefault)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &persistence.ConnectionError{Op: "Delete", ConnectionID: connectionID, Err: persistence.ErrConnectionNotFound}
		}

		return &persistence.ConnectionError{Op: "Delete", ConnectionID: connectionID, Err: err}
	}

	if wasDefault {
		_, err = tx.ExecContext(ctx, `
			UPDATE social_connections SET is_default = TRUE
			WHERE id = (
				SELECT id FROM social_connections
				WHERE user_id = $1 AND provider = $2
				ORDER BY created_at LIMIT 1
			)
		`, userID, provider)
		if err != nil {
			return fmt.Errorf("failed to promote replacement default: %w", err)
		}
	}

	return tx.Commit()
}

func (cr *ConnectionRepository) scanConnection(row rowScanner) (*models.SocialConnection, error) {
	var (
		connection models.SocialConnection
		expiresAt  sql.NullTime
	)

	err := row.Scan(
		&connection.ID,
		&connection.UserID,
		&connection.Provider,
		&connection.AccountID,
		&connection.DisplayName,
		&connection.Label,
		&connection.TokenJSON,
		&expiresAt,
		&connection.IsDefault,
		&connection.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if expiresAt.Valid {
		connection.ExpiresAt = &expiresAt.Time
	}

	return &connection, nil
}
