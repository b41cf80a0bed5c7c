package file

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/publion/publion/pkg/models"
	"github.com/publion/publion/pkg/persistence"
)

func newConnection(id, userID string, provider models.Provider, createdAt time.Time) *models.SocialConnection {
	return &models.SocialConnection{
		ID:          id,
		UserID:      userID,
		Provider:    provider,
		AccountID:   "acct-" + id,
		DisplayName: "Account " + id,
		TokenJSON:   `{"access_token":"tok-` + id + `"}`,
		CreatedAt:   createdAt,
	}
}

func TestConnectionRepository_AddAndGet(t *testing.T) {
	repo := NewPersistence(t.TempDir()).ConnectionRepository()

	connection := newConnection("conn-1", "user-1", models.ProviderTwitter, time.Now().UTC())

	require.NoError(t, repo.Add(t.Context(), connection))

	// First connection for the pair is promoted to default.
	assert.True(t, connection.IsDefault)

	fetched, err := repo.GetByID(t.Context(), "conn-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", fetched.UserID)
	assert.Equal(t, models.ProviderTwitter, fetched.Provider)
	assert.True(t, fetched.IsDefault)

	// Token payload round-trips through the file store.
	assert.Contains(t, fetched.TokenJSON, "tok-conn-1")
}

func TestConnectionRepository_Add_ExplicitDefaultUnsetsPrevious(t *testing.T) {
	repo := NewPersistence(t.TempDir()).ConnectionRepository()

	first := newConnection("conn-1", "user-1", models.ProviderTwitter, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, repo.Add(t.Context(), first))

	second := newConnection("conn-2", "user-1", models.ProviderTwitter, time.Now().UTC())
	second.IsDefault = true
	require.NoError(t, repo.Add(t.Context(), second))

	previous, err := repo.GetByID(t.Context(), "conn-1")
	require.NoError(t, err)
	assert.False(t, previous.IsDefault)

	current, err := repo.GetByID(t.Context(), "conn-2")
	require.NoError(t, err)
	assert.True(t, current.IsDefault)
}

func TestConnectionRepository_GetByID_NotFound(t *testing.T) {
	repo := NewPersistence(t.TempDir()).ConnectionRepository()

	_, err := repo.GetByID(t.Context(), "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsConnectionNotFound(err))
}

func TestConnectionRepository_ListByUser(t *testing.T) {
	repo := NewPersistence(t.TempDir()).ConnectionRepository()

	require.NoError(t, repo.Add(t.Context(), newConnection("conn-tw", "user-1", models.ProviderTwitter, time.Now().UTC())))
	require.NoError(t, repo.Add(t.Context(), newConnection("conn-li", "user-1", models.ProviderLinkedIn, time.Now().UTC())))
	require.NoError(t, repo.Add(t.Context(), newConnection("conn-other", "user-2", models.ProviderTwitter, time.Now().UTC())))

	connections, err := repo.ListByUser(t.Context(), "user-1")
	require.NoError(t, err)
	require.Len(t, connections, 2)

	ids := []string{connections[0].ID, connections[1].ID}
	assert.Contains(t, ids, "conn-tw")
	assert.Contains(t, ids, "conn-li")
}

func TestConnectionRepository_GetDefault(t *testing.T) {
	repo := NewPersistence(t.TempDir()).ConnectionRepository()

	older := newConnection("conn-old", "user-1", models.ProviderTwitter, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, repo.Add(t.Context(), older))

	newer := newConnection("conn-new", "user-1", models.ProviderTwitter, time.Now().UTC())
	require.NoError(t, repo.Add(t.Context(), newer))

	byDefault, err := repo.GetDefault(t.Context(), "user-1", models.ProviderTwitter)
	require.NoError(t, err)
	assert.Equal(t, "conn-old", byDefault.ID)

	_, err = repo.GetDefault(t.Context(), "user-1", models.ProviderLinkedIn)
	require.Error(t, err)
	assert.True(t, persistence.IsConnectionNotFound(err))
}

func TestConnectionRepository_UpdateTokens(t *testing.T) {
	repo := NewPersistence(t.TempDir()).ConnectionRepository()

	connection := newConnection("conn-1", "user-1", models.ProviderLinkedIn, time.Now().UTC())
	require.NoError(t, repo.Add(t.Context(), connection))

	expiresAt := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Second)
	err := repo.UpdateTokens(t.Context(), "conn-1", `{"access_token":"refreshed"}`, &expiresAt)
	require.NoError(t, err)

	fetched, err := repo.GetByID(t.Context(), "conn-1")
	require.NoError(t, err)
	assert.Contains(t, fetched.TokenJSON, "refreshed")
	require.NotNil(t, fetched.ExpiresAt)
	assert.True(t, expiresAt.Equal(*fetched.ExpiresAt))
}

func TestConnectionRepository_UpdateTokens_KeepsExpiryWhenNil(t *testing.T) {
	repo := NewPersistence(t.TempDir()).ConnectionRepository()

	expiresAt := time.Now().UTC().Add(time.Hour).Truncate(time.Second)
	connection := newConnection("conn-1", "user-1", models.ProviderTwitter, time.Now().UTC())
	connection.ExpiresAt = &expiresAt
	require.NoError(t, repo.Add(t.Context(), connection))

	require.NoError(t, repo.UpdateTokens(t.Context(), "conn-1", `{"access_token":"new"}`, nil))

	fetched, err := repo.GetByID(t.Context(), "conn-1")
	require.NoError(t, err)
	require.NotNil(t, fetched.ExpiresAt)
	assert.True(t, expiresAt.Equal(*fetched.ExpiresAt))
}

func TestConnectionRepository_Delete_PromotesReplacementDefault(t *testing.T) {
	repo := NewPersistence(t.TempDir()).ConnectionRepository()

	first := newConnection("conn-1", "user-1", models.ProviderTwitter, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, repo.Add(t.Context(), first))

	second := newConnection("conn-2", "user-1", models.ProviderTwitter, time.Now().UTC())
	require.NoError(t, repo.Add(t.Context(), second))

	require.NoError(t, repo.Delete(t.Context(), "conn-1", "user-1"))

	_, err := repo.GetByID(t.Context(), "conn-1")
	assert.True(t, persistence.IsConnectionNotFound(err))

	promoted, err := repo.GetByID(t.Context(), "conn-2")
	require.NoError(t, err)
	assert.True(t, promoted.IsDefault)
}

func TestConnectionRepository_Delete_WrongUser(t *testing.T) {
	repo := NewPersistence(t.TempDir()).ConnectionRepository()

	connection := newConnection("conn-1", "user-1", models.ProviderTwitter, time.Now().UTC())
	require.NoError(t, repo.Add(t.Context(), connection))

	err := repo.Delete(t.Context(), "conn-1", "user-2")
	require.Error(t, err)
	assert.True(t, persistence.IsConnectionNotFound(err))

	// The connection is untouched.
	_, err = repo.GetByID(t.Context(), "conn-1")
	assert.NoError(t, err)
}
