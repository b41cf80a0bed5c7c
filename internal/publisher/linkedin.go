package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/publion/publion/pkg/models"
)

const restliProtocolVersion = "2.0.0"

// uploadLinkedInMedia registers an upload slot, PUTs the bytes to the
// returned URL, and hands back the asset URN for the share.
func (p *Publisher) uploadLinkedInMedia(ctx context.Context, connection *models.SocialConnection, tokens *tokenPayload, data []byte) (string, error) {
	owner, err := p.ensurePersonURN(ctx, connection, tokens)
	if err != nil {
		return "", err
	}

	register := map[string]any{
		"registerUploadRequest": map[string]any{
			"recipes": []string{"urn:li:digitalmediaRecipe:feedshare-image"},
			"owner":   owner,
			"serviceRelationships": []map[string]string{
				{"relationshipType": "OWNER", "identifier": "urn:li:userGeneratedContent"},
			},
		},
	}

	encoded, err := json.Marshal(register)
	if err != nil {
		return "", fmt.Errorf("failed to encode register request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.LinkedInAPIBaseURL+"/v2/assets?action=registerUpload", bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("failed to create register request: %w", err)
	}

	p.linkedinHeaders(req, tokens)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("register upload failed: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return "", newAPIError(models.ProviderLinkedIn, resp.StatusCode, readBody(resp))
	}

	var decoded struct {
		Value struct {
			Asset           string `json:"asset"`
			UploadMechanism struct {
				MediaUploadHTTPRequest struct {
					UploadURL string `json:"uploadUrl"`
				} `json:"com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"`
			} `json:"uploadMechanism"`
		} `json:"value"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode register response: %w", err)
	}

	asset := decoded.Value.Asset
	uploadURL := decoded.Value.UploadMechanism.MediaUploadHTTPRequest.UploadURL

	if asset == "" || uploadURL == "" {
		return "", fmt.Errorf("register response missing asset or upload url")
	}

	putReq, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}

	putReq.Header.Set("Authorization", "Bearer "+tokens.AccessToken)

	putResp, err := p.client.Do(putReq)
	if err != nil {
		return "", fmt.Errorf("media upload failed: %w", err)
	}

	defer func() { _ = putResp.Body.Close() }()

	if putResp.StatusCode >= 400 {
		return "", newAPIError(models.ProviderLinkedIn, putResp.StatusCode, readBody(putResp))
	}

	return asset, nil
}

// publishLinkedInShare posts a UGC share, attaching the asset when one was
// uploaded. The post ID arrives in the x-restli-id response header.
func (p *Publisher) publishLinkedInShare(ctx context.Context, connection *models.SocialConnection, tokens *tokenPayload, text, assetURN string) (string, error) {
	author, err := p.ensurePersonURN(ctx, connection, tokens)
	if err != nil {
		return "", err
	}

	shareContent := map[string]any{
		"shareCommentary":    map[string]string{"text": text},
		"shareMediaCategory": "NONE",
	}

	if assetURN != "" {
		shareContent["shareMediaCategory"] = "IMAGE"
		shareContent["media"] = []map[string]any{
			{
				"status":      "READY",
				"description": map[string]string{"text": ""},
				"media":       assetURN,
				"title":       map[string]string{"text": ""},
			},
		}
	}

	share := map[string]any{
		"author":         author,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": shareContent,
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	encoded, err := json.Marshal(share)
	if err != nil {
		return "", fmt.Errorf("failed to encode share: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.LinkedInAPIBaseURL+"/v2/ugcPosts", bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("failed to create share request: %w", err)
	}

	p.linkedinHeaders(req, tokens)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("share request failed: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return "", newAPIError(models.ProviderLinkedIn, resp.StatusCode, readBody(resp))
	}

	postID := resp.Header.Get("x-restli-id")
	if postID == "" {
		return "", fmt.Errorf("share response carried no post id")
	}

	return postID, nil
}

func (p *Publisher) linkedinHeaders(req *http.Request, tokens *tokenPayload) {
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", restliProtocolVersion)
}
