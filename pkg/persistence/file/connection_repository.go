package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/publion/publion/pkg/models"
	"github.com/publion/publion/pkg/persistence"
)

// connectionRecord is the on-disk shape of a connection. TokenJSON is
// excluded from the model's JSON output, so it is persisted explicitly here.
type connectionRecord struct {
	models.SocialConnection
	TokenJSON string `json:"token_json"`
}

// ConnectionRepository stores one JSON file per connection under
// <root>/connections.
type ConnectionRepository struct {
	root string
	mu   sync.RWMutex
}

// NewConnectionRepository creates a new connection repository.
func NewConnectionRepository(root string) *ConnectionRepository {
	return &ConnectionRepository{root: root}
}

func (cr *ConnectionRepository) dir() string {
	return filepath.Join(cr.root, "connections")
}

func (cr *ConnectionRepository) path(connectionID string) string {
	return filepath.Join(cr.dir(), connectionID+".json")
}

// Add inserts a connection. The first connection for a (user, provider) pair
// becomes the default; an explicit default unsets the previous one.
func (cr *ConnectionRepository) Add(_ context.Context, connection *models.SocialConnection) error {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	existing, err := cr.readAll()
	if err != nil {
		return err
	}

	siblings := 0

	for _, other := range existing {
		if other.UserID == connection.UserID && other.Provider == connection.Provider {
			siblings++
		}
	}

	if siblings == 0 {
		connection.IsDefault = true
	}

	if connection.IsDefault {
		for _, other := range existing {
			if other.UserID == connection.UserID && other.Provider == connection.Provider && other.IsDefault {
				other.IsDefault = false

				if err := cr.write(other); err != nil {
					return err
				}
			}
		}
	}

	return cr.write(connection)
}

// GetByID returns the connection or ErrConnectionNotFound.
func (cr *ConnectionRepository) GetByID(_ context.Context, connectionID string) (*models.SocialConnection, error) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	return cr.read(connectionID)
}

// ListByUser returns every connection for a user, defaults first.
func (cr *ConnectionRepository) ListByUser(_ context.Context, userID string) ([]*models.SocialConnection, error) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	connections, err := cr.readAll()
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.SocialConnection, 0, len(connections))

	for _, connection := range connections {
		if connection.UserID == userID {
			filtered = append(filtered, connection)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if a.Provider != b.Provider {
			return a.Provider < b.Provider
		}

		if a.IsDefault != b.IsDefault {
			return a.IsDefault
		}

		return a.CreatedAt.Before(b.CreatedAt)
	})

	return filtered, nil
}

// GetDefault returns the default connection for (user, provider), falling
// back to the oldest connection when no default is flagged.
func (cr *ConnectionRepository) GetDefault(_ context.Context, userID string, provider models.Provider) (*models.SocialConnection, error) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	connections, err := cr.readAll()
	if err != nil {
		return nil, err
	}

	var candidates []*models.SocialConnection

	for _, connection := range connections {
		if connection.UserID == userID && connection.Provider == provider {
			candidates = append(candidates, connection)
		}
	}

	if len(candidates) == 0 {
		return nil, &persistence.ConnectionError{Op: "GetDefault", Err: persistence.ErrConnectionNotFound}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].IsDefault != candidates[j].IsDefault {
			return candidates[i].IsDefault
		}

		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	return candidates[0], nil
}

// UpdateTokens replaces the stored token payload after a refresh.
func (cr *ConnectionRepository) UpdateTokens(_ context.Context, connectionID, tokenJSON string, expiresAt *time.Time) error {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	connection, err := cr.read(connectionID)
	if err != nil {
		return err
	}

	connection.TokenJSON = tokenJSON
	if expiresAt != nil {
		connection.ExpiresAt = expiresAt
	}

	return cr.write(connection)
}

// Delete removes a connection owned by the user. When the default is removed,
// the oldest remaining connection for the same provider becomes the default.
func (cr *ConnectionRepository) Delete(_ context.Context, connectionID, userID string) error {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	connection, err := cr.read(connectionID)
	if err != nil {
		return err
	}

	if connection.UserID != userID {
		return &persistence.ConnectionError{Op: "Delete", ConnectionID: connectionID, Err: persistence.ErrConnectionNotFound}
	}

	if err := os.Remove(cr.path(connectionID)); err != nil {
		return &persistence.ConnectionError{Op: "Delete", ConnectionID: connectionID, Err: err}
	}

	if !connection.IsDefault {
		return nil
	}

	remaining, err := cr.readAll()
	if err != nil {
		return err
	}

	var oldest *models.SocialConnection

	for _, other := range remaining {
		if other.UserID != userID || other.Provider != connection.Provider {
			continue
		}

		if oldest == nil || other.CreatedAt.Before(oldest.CreatedAt) {
			oldest = other
		}
	}

	if oldest != nil {
		oldest.IsDefault = true

		return cr.write(oldest)
	}

	return nil
}

func (cr *ConnectionRepository) read(connectionID string) (*models.SocialConnection, error) {
	data, err := os.ReadFile(cr.path(connectionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &persistence.ConnectionError{Op: "GetByID", ConnectionID: connectionID, Err: persistence.ErrConnectionNotFound}
		}

		return nil, &persistence.ConnectionError{Op: "GetByID", ConnectionID: connectionID, Err: err}
	}

	record := &connectionRecord{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal connection %s: %w", connectionID, err)
	}

	connection := record.SocialConnection
	connection.TokenJSON = record.TokenJSON

	return &connection, nil
}

func (cr *ConnectionRepository) readAll() ([]*models.SocialConnection, error) {
	root := os.DirFS(cr.dir())

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list connection files: %w", err)
	}

	connections := make([]*models.SocialConnection, 0, len(jsonFiles))

	for _, name := range jsonFiles {
		connection, err := cr.read(name[:len(name)-len(".json")])
		if err != nil {
			return nil, err
		}

		connections = append(connections, connection)
	}

	return connections, nil
}

func (cr *ConnectionRepository) write(connection *models.SocialConnection) error {
	if err := os.MkdirAll(cr.dir(), dirPerm); err != nil {
		return fmt.Errorf("failed to create connections directory: %w", err)
	}

	record := connectionRecord{SocialConnection: *connection, TokenJSON: connection.TokenJSON}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal connection %s: %w", connection.ID, err)
	}

	if err := os.WriteFile(cr.path(connection.ID), data, 0o600); err != nil {
		return fmt.Errorf("failed to write connection %s: %w", connection.ID, err)
	}

	return nil
}
