package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/publion/publion/pkg/checkpoint"
	"github.com/publion/publion/pkg/models"
)

func TestStore_PutGetDelete(t *testing.T) {
	store := NewStore()

	cp := &checkpoint.Checkpoint{
		ExecutionID: "exec-1",
		Stage:       "await_human",
		State:       models.NewPipelineState("exec-1", "user-1", "https://example.com"),
	}

	require.NoError(t, store.Put(t.Context(), cp))

	fetched, err := store.Get(t.Context(), "exec-1")
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, "await_human", fetched.Stage)
	assert.Equal(t, "user-1", fetched.State.UserID)

	require.NoError(t, store.Delete(t.Context(), "exec-1"))

	fetched, err = store.Get(t.Context(), "exec-1")
	require.NoError(t, err)
	assert.Nil(t, fetched)
}

func TestStore_GetMissing(t *testing.T) {
	store := NewStore()

	cp, err := store.Get(t.Context(), "never-stored")
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestStore_PutReplaces(t *testing.T) {
	store := NewStore()

	state := models.NewPipelineState("exec-1", "user-1", "https://example.com")

	require.NoError(t, store.Put(t.Context(), &checkpoint.Checkpoint{ExecutionID: "exec-1", Stage: "await_human", State: state}))
	require.NoError(t, store.Put(t.Context(), &checkpoint.Checkpoint{ExecutionID: "exec-1", Stage: "check_auth", State: state}))

	fetched, err := store.Get(t.Context(), "exec-1")
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, "check_auth", fetched.Stage)
}

func TestStore_DeleteMissingIsNoop(t *testing.T) {
	store := NewStore()
	assert.NoError(t, store.Delete(t.Context(), "never-stored"))
}
