package artwork

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	_ "golang.org/x/image/webp"
)

const maxArtworkBytes = 16 << 20

var fetchClient = &http.Client{Timeout: 5 * time.Second}

// Fetch loads cover art from a file:// or http(s) URL.
func Fetch(ctx context.Context, artworkURL string) (image.Image, error) {
	if artworkURL == "" {
		return nil, errors.New("empty artwork url")
	}

	if strings.HasPrefix(artworkURL, "file://") {
		path := strings.TrimPrefix(artworkURL, "file://")
		if unescaped, err := url.PathUnescape(path); err == nil {
			path = unescaped
		}

		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open artwork file: %w", err)
		}
		defer f.Close()

		img, _, err := image.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("failed to decode artwork image: %w", err)
		}
		return img, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artworkURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := fetchClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch artwork: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("artwork fetch returned status %d", resp.StatusCode)
	}

	img, _, err := image.Decode(io.LimitReader(resp.Body, maxArtworkBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode artwork: %w", err)
	}

	return img, nil
}

// Decode reads raw image bytes as handed over by some media sessions.
func Decode(raw []byte) (image.Image, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty artwork data")
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode artwork: %w", err)
	}
	return img, nil
}

// Load prefers inline bytes over the URL.
func Load(ctx context.Context, raw []byte, artworkURL string) (image.Image, error) {
	if len(raw) > 0 {
		return Decode(raw)
	}
	return Fetch(ctx, artworkURL)
}
