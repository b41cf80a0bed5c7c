// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/publion/publion/pkg/persistence"
	"github.com/publion/publion/pkg/persistence/file"
	"github.com/publion/publion/pkg/persistence/postgresql"
)

// NewPersistence builds the storage layer from the database URL. Postgres
// URLs get the SQL implementation; anything else is treated as a directory
// for file-backed storage.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}
