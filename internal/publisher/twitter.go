package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/publion/publion/pkg/models"
)

// uploadTwitterMedia pushes image bytes through the v1.1 media endpoint and
// returns the media ID to attach to a tweet.
func (p *Publisher) uploadTwitterMedia(ctx context.Context, tokens *tokenPayload, data []byte, contentType string) (string, error) {
	var body bytes.Buffer

	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("media", "image"+extensionFor(contentType))
	if err != nil {
		return "", fmt.Errorf("failed to build media form: %w", err)
	}

	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to build media form: %w", err)
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to build media form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TwitterUploadBaseURL+"/1.1/media/upload.json", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("media upload failed: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return "", newAPIError(models.ProviderTwitter, resp.StatusCode, readBody(resp))
	}

	var decoded struct {
		MediaIDString string `json:"media_id_string"`
		MediaID       int64  `json:"media_id"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}

	if decoded.MediaIDString != "" {
		return decoded.MediaIDString, nil
	}

	if decoded.MediaID != 0 {
		return fmt.Sprintf("%d", decoded.MediaID), nil
	}

	return "", fmt.Errorf("upload response carried no media id")
}

// publishTweet posts through the v2 tweets endpoint.
func (p *Publisher) publishTweet(ctx context.Context, _ *models.SocialConnection, tokens *tokenPayload, text, mediaID string) (string, error) {
	payload := map[string]any{"text": text}
	if mediaID != "" {
		payload["media"] = map[string]any{"media_ids": []string{mediaID}}
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode tweet: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TwitterAPIBaseURL+"/2/tweets", bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("failed to create tweet request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("tweet request failed: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return "", newAPIError(models.ProviderTwitter, resp.StatusCode, readBody(resp))
	}

	var decoded struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode tweet response: %w", err)
	}

	if decoded.Data.ID == "" {
		return "", fmt.Errorf("tweet response carried no post id")
	}

	return decoded.Data.ID, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
