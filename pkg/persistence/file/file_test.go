package file

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/publion/publion/pkg/models"
	"github.com/publion/publion/pkg/persistence"
)

func newExecution(id, userID, url string, status models.ExecutionStatus) *models.Execution {
	now := time.Now().UTC().Truncate(time.Second)

	return &models.Execution{
		ID:             id,
		UserID:         userID,
		URL:            url,
		Status:         status,
		State:          models.NewPipelineState(id, userID, url),
		IdempotencyKey: models.ComputeIdempotencyKey(userID, url),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestNewPersistence(t *testing.T) {
	fp := NewPersistence("/tmp/test")
	assert.Equal(t, "/tmp/test", fp.root)

	fp = NewPersistence("file:///tmp/test")
	assert.Equal(t, "/tmp/test", fp.root)
}

func TestPersistence_Close(t *testing.T) {
	fp := NewPersistence(t.TempDir())
	assert.NoError(t, fp.Close(t.Context()))
}

func TestPersistence_HealthCheck(t *testing.T) {
	fp := NewPersistence(t.TempDir())
	assert.NoError(t, fp.HealthCheck(t.Context()))

	fp = NewPersistence("/nonexistent/persistence/root")
	assert.Error(t, fp.HealthCheck(t.Context()))
}

func TestExecutionRepository_CreateAndGet(t *testing.T) {
	testDir := t.TempDir()
	repo := NewPersistence(testDir).ExecutionRepository()

	execution := newExecution("exec-1", "user-1", "https://example.com/post", models.ExecutionStatusRunning)

	err := repo.Create(t.Context(), execution)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(testDir, "executions", "exec-1.json"))

	fetched, err := repo.GetByID(t.Context(), "exec-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", fetched.UserID)
	assert.Equal(t, "https://example.com/post", fetched.URL)
	assert.Equal(t, models.ExecutionStatusRunning, fetched.Status)
	require.NotNil(t, fetched.State)
	assert.Equal(t, "exec-1", fetched.State.ExecutionID)
}

func TestExecutionRepository_Create_Duplicate(t *testing.T) {
	repo := NewPersistence(t.TempDir()).ExecutionRepository()

	execution := newExecution("exec-dup", "user-1", "https://example.com", models.ExecutionStatusRunning)

	require.NoError(t, repo.Create(t.Context(), execution))

	err := repo.Create(t.Context(), execution)
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrExecutionAlreadyExists)
}

func TestExecutionRepository_GetByID_NotFound(t *testing.T) {
	repo := NewPersistence(t.TempDir()).ExecutionRepository()

	_, err := repo.GetByID(t.Context(), "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestExecutionRepository_Save(t *testing.T) {
	repo := NewPersistence(t.TempDir()).ExecutionRepository()

	execution := newExecution("exec-save", "user-1", "https://example.com", models.ExecutionStatusRunning)
	require.NoError(t, repo.Create(t.Context(), execution))

	state := execution.State
	state.TwitterDraft = "draft tweet"

	err := repo.Save(t.Context(), "exec-save", state, models.ExecutionStatusAwaitingHuman)
	require.NoError(t, err)

	fetched, err := repo.GetByID(t.Context(), "exec-save")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusAwaitingHuman, fetched.Status)
	assert.Equal(t, "draft tweet", fetched.State.TwitterDraft)
}

func TestExecutionRepository_Save_NotFound(t *testing.T) {
	repo := NewPersistence(t.TempDir()).ExecutionRepository()

	err := repo.Save(t.Context(), "missing", models.NewPipelineState("missing", "u", "https://example.com"), models.ExecutionStatusCompleted)
	require.Error(t, err)
	assert.True(t, persistence.IsExecutionNotFound(err))
}

func TestExecutionRepository_FindActiveByIdempotencyKey(t *testing.T) {
	repo := NewPersistence(t.TempDir()).ExecutionRepository()

	active := newExecution("exec-active", "user-1", "https://example.com/a", models.ExecutionStatusAwaitingHuman)
	done := newExecution("exec-done", "user-1", "https://example.com/b", models.ExecutionStatusCompleted)

	require.NoError(t, repo.Create(t.Context(), active))
	require.NoError(t, repo.Create(t.Context(), done))

	found, err := repo.FindActiveByIdempotencyKey(t.Context(), "user-1", active.IdempotencyKey)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "exec-active", found.ID)

	// Terminal executions are never returned, even with a matching key.
	found, err = repo.FindActiveByIdempotencyKey(t.Context(), "user-1", done.IdempotencyKey)
	require.NoError(t, err)
	assert.Nil(t, found)

	// Other users never see the key.
	found, err = repo.FindActiveByIdempotencyKey(t.Context(), "user-2", active.IdempotencyKey)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestExecutionRepository_ListByStatus(t *testing.T) {
	repo := NewPersistence(t.TempDir()).ExecutionRepository()

	require.NoError(t, repo.Create(t.Context(), newExecution("exec-1", "user-1", "https://example.com/1", models.ExecutionStatusRunning)))
	require.NoError(t, repo.Create(t.Context(), newExecution("exec-2", "user-1", "https://example.com/2", models.ExecutionStatusAwaitingHuman)))
	require.NoError(t, repo.Create(t.Context(), newExecution("exec-3", "user-2", "https://example.com/3", models.ExecutionStatusAwaitingHuman)))
	require.NoError(t, repo.Create(t.Context(), newExecution("exec-4", "user-1", "https://example.com/4", models.ExecutionStatusTerminated)))

	executions, err := repo.ListByStatus(t.Context(), []models.ExecutionStatus{models.ExecutionStatusAwaitingHuman}, "user-1")
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, "exec-2", executions[0].ID)

	// Empty user id means all users.
	executions, err = repo.ListByStatus(t.Context(), []models.ExecutionStatus{models.ExecutionStatusAwaitingHuman}, "")
	require.NoError(t, err)
	assert.Len(t, executions, 2)

	executions, err = repo.ListByStatus(t.Context(), models.ActiveStatuses, "user-1")
	require.NoError(t, err)
	assert.Len(t, executions, 2)
}

func TestExecutionRepository_ListByStatus_EmptyDirectory(t *testing.T) {
	repo := NewPersistence(t.TempDir()).ExecutionRepository()

	executions, err := repo.ListByStatus(t.Context(), models.ActiveStatuses, "")
	require.NoError(t, err)
	assert.Empty(t, executions)
}

func TestExecutionRepository_MarkStuckRunning(t *testing.T) {
	repo := NewPersistence(t.TempDir()).ExecutionRepository()

	require.NoError(t, repo.Create(t.Context(), newExecution("exec-running", "user-1", "https://example.com/1", models.ExecutionStatusRunning)))
	require.NoError(t, repo.Create(t.Context(), newExecution("exec-waiting", "user-1", "https://example.com/2", models.ExecutionStatusAwaitingHuman)))

	count, err := repo.MarkStuckRunning(t.Context(), "process restarted")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stuck, err := repo.GetByID(t.Context(), "exec-running")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusTerminated, stuck.Status)
	assert.True(t, stuck.State.Terminated)
	assert.Equal(t, "process restarted", stuck.State.TerminateReason)

	// Suspended executions survive recovery untouched.
	waiting, err := repo.GetByID(t.Context(), "exec-waiting")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusAwaitingHuman, waiting.Status)
}

func TestExecutionRepository_DeleteTerminalBefore(t *testing.T) {
	repo := NewPersistence(t.TempDir()).ExecutionRepository()

	old := newExecution("exec-old", "user-1", "https://example.com/1", models.ExecutionStatusCompleted)
	old.UpdatedAt = time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, repo.Create(t.Context(), old))

	fresh := newExecution("exec-fresh", "user-1", "https://example.com/2", models.ExecutionStatusTerminated)
	require.NoError(t, repo.Create(t.Context(), fresh))

	running := newExecution("exec-running", "user-1", "https://example.com/3", models.ExecutionStatusRunning)
	running.UpdatedAt = time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, repo.Create(t.Context(), running))

	count, err := repo.DeleteTerminalBefore(t.Context(), time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = repo.GetByID(t.Context(), "exec-old")
	assert.True(t, persistence.IsExecutionNotFound(err))

	_, err = repo.GetByID(t.Context(), "exec-fresh")
	assert.NoError(t, err)

	// Active executions are never swept no matter how old.
	_, err = repo.GetByID(t.Context(), "exec-running")
	assert.NoError(t, err)
}
