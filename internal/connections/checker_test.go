package connections

import (
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/publion/publion/pkg/models"
	"github.com/publion/publion/pkg/persistence/file"
)

func newChecker(t *testing.T) (*Checker, *file.ConnectionRepository) {
	t.Helper()

	repo := file.NewConnectionRepository(t.TempDir())

	return NewChecker(repo, slog.New(slog.DiscardHandler)), repo
}

func addConnection(t *testing.T, repo *file.ConnectionRepository, userID string, provider models.Provider, token string, expiresAt *time.Time) *models.SocialConnection {
	t.Helper()

	connection := &models.SocialConnection{
		ID:        uuid.New().String(),
		UserID:    userID,
		Provider:  provider,
		AccountID: "acct-" + uuid.New().String(),
		TokenJSON: token,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Add(t.Context(), connection))

	return connection
}

func TestCheck_BothProvidersHealthy(t *testing.T) {
	checker, repo := newChecker(t)
	expiry := time.Now().Add(time.Hour)
	addConnection(t, repo, "user-1", models.ProviderTwitter, `{"access_token":"tw"}`, &expiry)
	addConnection(t, repo, "user-1", models.ProviderLinkedIn, `{"access_token":"li"}`, nil)

	summary, err := checker.Check(t.Context(), "user-1", "", "")
	require.NoError(t, err)

	assert.True(t, summary.TwitterOK)
	require.NotNil(t, summary.TwitterExpiresAt)
	assert.True(t, summary.LinkedInOK)
	assert.Nil(t, summary.LinkedInExpiresAt)
}

func TestCheck_NoConnectionsIsNotOK(t *testing.T) {
	checker, _ := newChecker(t)

	summary, err := checker.Check(t.Context(), "user-1", "", "")
	require.NoError(t, err)

	assert.False(t, summary.TwitterOK)
	assert.False(t, summary.LinkedInOK)
}

func TestCheck_ExpiredTokenIsNotOK(t *testing.T) {
	checker, repo := newChecker(t)
	expired := time.Now().Add(-time.Minute)
	addConnection(t, repo, "user-1", models.ProviderTwitter, `{"access_token":"tw"}`, &expired)

	summary, err := checker.Check(t.Context(), "user-1", "", "")
	require.NoError(t, err)
	assert.False(t, summary.TwitterOK)
	require.NotNil(t, summary.TwitterExpiresAt)
}

func TestCheck_EmptyTokenIsNotOK(t *testing.T) {
	checker, repo := newChecker(t)
	addConnection(t, repo, "user-1", models.ProviderLinkedIn, "", nil)

	summary, err := checker.Check(t.Context(), "user-1", "", "")
	require.NoError(t, err)
	assert.False(t, summary.LinkedInOK)
}

func TestCheck_PinnedConnectionWins(t *testing.T) {
	checker, repo := newChecker(t)
	addConnection(t, repo, "user-1", models.ProviderTwitter, "", nil)
	pinned := addConnection(t, repo, "user-1", models.ProviderTwitter, `{"access_token":"fresh"}`, nil)

	summary, err := checker.Check(t.Context(), "user-1", pinned.ID, "")
	require.NoError(t, err)
	assert.True(t, summary.TwitterOK)
}

func TestCheck_PinnedConnectionOfAnotherUserIgnored(t *testing.T) {
	checker, repo := newChecker(t)
	other := addConnection(t, repo, "user-2", models.ProviderTwitter, `{"access_token":"tw"}`, nil)

	summary, err := checker.Check(t.Context(), "user-1", other.ID, "")
	require.NoError(t, err)
	assert.False(t, summary.TwitterOK)
}

func TestCheck_UnknownPinnedConnectionIsNotOK(t *testing.T) {
	checker, _ := newChecker(t)

	summary, err := checker.Check(t.Context(), "user-1", uuid.New().String(), "")
	require.NoError(t, err)
	assert.False(t, summary.TwitterOK)
}
