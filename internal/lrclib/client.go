package lrclib

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"karolbroda.com/overlyric/internal/metrics"
	"karolbroda.com/overlyric/internal/resolver"
)

const (
	DefaultBaseURL = "https://lrclib.net/api"
	userAgent      = "overlyric/1.0 (https://karolbroda.com/overlyric)"
)

// ErrNotFound is returned by Get when the id does not exist.
var ErrNotFound = errors.New("lyrics not found")

// Record is one lrclib entry as returned by /search and /get.
type Record struct {
	ID           int64   `json:"id"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

func (r *Record) Candidate() resolver.Candidate {
	return resolver.Candidate{
		ID:           strconv.FormatInt(r.ID, 10),
		TrackName:    r.TrackName,
		ArtistName:   r.ArtistName,
		AlbumName:    r.AlbumName,
		Duration:     time.Duration(r.Duration * float64(time.Second)),
		Instrumental: r.Instrumental,
		HasSynced:    r.SyncedLyrics != "",
		SyncedLyrics: r.SyncedLyrics,
	}
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid lrclib url %q: %w", baseURL, err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     60 * time.Second,
		TLSHandshakeTimeout: 2 * time.Second,
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}, nil
}

// Search implements resolver.Catalog.
func (c *Client) Search(ctx context.Context, q resolver.Query) ([]resolver.Candidate, error) {
	if q.Title == "" {
		return nil, errors.New("search needs a track title")
	}

	params := url.Values{}
	params.Set("track_name", q.Title)
	if q.Artist != "" {
		params.Set("artist_name", q.Artist)
	}
	if q.Album != "" {
		params.Set("album_name", q.Album)
	}

	var records []Record
	if err := c.getJSON(ctx, "search", "/search?"+params.Encode(), &records); err != nil {
		return nil, err
	}

	candidates := make([]resolver.Candidate, 0, len(records))
	for i := range records {
		candidates = append(candidates, records[i].Candidate())
	}
	return candidates, nil
}

// SyncedLyrics implements resolver.Catalog.
func (c *Client) SyncedLyrics(ctx context.Context, id string) (string, error) {
	record, err := c.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return record.SyncedLyrics, nil
}

func (c *Client) Get(ctx context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, errors.New("empty lyrics id")
	}

	var record Record
	if err := c.getJSON(ctx, "get", "/get/"+url.PathEscape(id), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to build http request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.CatalogRequests.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("lrclib %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	metrics.CatalogRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("lrclib returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode lrclib json: %w", err)
	}
	return nil
}
