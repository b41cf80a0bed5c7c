// Package file provides file-based persistence implementation for executions
// and publishing connections. It is intended for development and tests.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/publion/publion/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root           string
	executionRepo  *ExecutionRepository
	connectionRepo *ConnectionRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:           cleanRoot,
		executionRepo:  NewExecutionRepository(cleanRoot),
		connectionRepo: NewConnectionRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// ExecutionRepository returns the execution repository implementation for file persistence.
func (fp *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return fp.executionRepo
}

// ConnectionRepository returns the connection repository implementation for file persistence.
func (fp *Persistence) ConnectionRepository() persistence.ConnectionRepository {
	return fp.connectionRepo
}
