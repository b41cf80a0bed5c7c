package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/publion/publion/pkg/models"
)

// tokenPayload is the opaque token JSON stored on a connection. Only the
// fields the platform calls need are decoded; the raw map is kept so writes
// back to the store do not drop fields this code does not know about.
type tokenPayload struct {
	AccessToken string
	PersonURN   string

	raw map[string]any
}

func decodeTokens(tokenJSON string) (*tokenPayload, error) {
	if tokenJSON == "" {
		return nil, errors.New("connection has no stored tokens")
	}

	raw := map[string]any{}
	if err := json.Unmarshal([]byte(tokenJSON), &raw); err != nil {
		return nil, fmt.Errorf("failed to decode stored tokens: %w", err)
	}

	tokens := &tokenPayload{raw: raw}

	if accessToken, ok := raw["access_token"].(string); ok {
		tokens.AccessToken = accessToken
	}

	if personURN, ok := raw["person_urn"].(string); ok {
		tokens.PersonURN = personURN
	}

	return tokens, nil
}

var errNoLinkedInProfile = errors.New("Could not get LinkedIn profile. Reconnect LinkedIn in Settings.")

// ensurePersonURN returns the LinkedIn member URN, fetching it from the
// userinfo endpoint and persisting it on the connection the first time.
func (p *Publisher) ensurePersonURN(ctx context.Context, connection *models.SocialConnection, tokens *tokenPayload) (string, error) {
	if tokens.PersonURN != "" {
		return tokens.PersonURN, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.LinkedInAPIBaseURL+"/v2/userinfo", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create userinfo request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("userinfo request failed: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", errNoLinkedInProfile
	}

	var userinfo struct {
		Sub string `json:"sub"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&userinfo); err != nil || userinfo.Sub == "" {
		return "", errNoLinkedInProfile
	}

	tokens.PersonURN = "urn:li:person:" + userinfo.Sub
	tokens.raw["person_urn"] = tokens.PersonURN

	updated, err := json.Marshal(tokens.raw)
	if err == nil {
		if saveErr := p.connections.UpdateTokens(ctx, connection.ID, string(updated), connection.ExpiresAt); saveErr != nil {
			p.logger.WarnContext(ctx, "failed to persist member urn", "connection_id", connection.ID, "error", saveErr)
		}
	}

	return tokens.PersonURN, nil
}
