// Package imaging downloads the image selected for a post. Some CDNs refuse
// hotlinked requests, so the fetcher retries with different referer
// strategies before giving up.
package imaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/publion/publion/pkg/retry"
)

const (
	defaultTimeout = 20 * time.Second

	// maxImageBytes caps downloads at the largest size both platforms accept.
	maxImageBytes = 5 << 20

	userAgent = "publion/1.0 (+https://github.com/publion/publion)"
)

var acceptedTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

// Fetcher implements the engine's ImageFetcher contract.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
	policy retry.Policy
}

// NewFetcher creates an image fetcher.
func NewFetcher(logger *slog.Logger) *Fetcher {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = 2

	return &Fetcher{
		client: &http.Client{Timeout: defaultTimeout},
		logger: logger.With("module", "imaging"),
		policy: policy,
	}
}

// Fetch downloads an image and returns its bytes and content type. The
// article URL is sent as the referer first; hosts that reject it are retried
// with the image's own origin.
func (f *Fetcher) Fetch(ctx context.Context, imageURL, articleURL string) ([]byte, string, error) {
	referers := []string{articleURL, originOf(imageURL)}

	var lastErr error

	for _, referer := range referers {
		data, contentType, err := f.fetchWith(ctx, imageURL, referer)
		if err == nil {
			return data, contentType, nil
		}

		if ctx.Err() != nil {
			return nil, "", err
		}

		lastErr = err

		f.logger.DebugContext(ctx, "image fetch attempt failed",
			"image_url", imageURL, "referer", referer, "error", err)
	}

	return nil, "", lastErr
}

func (f *Fetcher) fetchWith(ctx context.Context, imageURL, referer string) ([]byte, string, error) {
	var (
		data        []byte
		contentType string
	)

	doFetch := func() error {
		var err error

		data, contentType, err = f.download(ctx, imageURL, referer)

		return err
	}

	if err := f.policy.Do(ctx, doFetch); err != nil {
		return nil, "", err
	}

	return data, contentType, nil
}

func (f *Fetcher) download(ctx context.Context, imageURL, referer string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create image request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "image/*")

	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("image fetch failed: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image fetch returned %d for %s", resp.StatusCode, imageURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image body: %w", err)
	}

	if len(data) > maxImageBytes {
		return nil, "", errors.New("image exceeds the maximum upload size")
	}

	if len(data) == 0 {
		return nil, "", errors.New("image response was empty")
	}

	contentType := contentTypeOf(resp.Header.Get("Content-Type"), data)
	if _, ok := acceptedTypes[contentType]; !ok {
		return nil, "", fmt.Errorf("unsupported image type %q", contentType)
	}

	return data, contentType, nil
}

// contentTypeOf trusts the response header when it names an image and sniffs
// the bytes otherwise.
func contentTypeOf(header string, data []byte) string {
	if header != "" {
		mediaType := strings.TrimSpace(strings.Split(header, ";")[0])
		if strings.HasPrefix(mediaType, "image/") {
			return mediaType
		}
	}

	return http.DetectContentType(data)
}

func originOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}

	return parsed.Scheme + "://" + parsed.Host + "/"
}
