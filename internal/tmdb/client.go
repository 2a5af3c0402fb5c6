package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"

	"oater/internal/config"
	"oater/internal/logger"
)

// ErrNotFound signals that TMDb has no resource for the requested id.
var ErrNotFound = errors.New("tmdb resource not found")

// tmdbStatusNotFound is TMDb's application-level "resource could not be
// found" code, delivered alongside HTTP 404 (or occasionally 401).
const tmdbStatusNotFound = 34

// Client talks to the TMDb API with a fixed delay between requests.
type Client struct {
	baseURL     string
	apiKey      string
	delay       time.Duration
	httpClient  *http.Client
	logger      hclog.Logger
	lastAPICall *time.Time
}

func NewClient(cfg *config.TMDBConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		delay:   cfg.RequestDelay,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		logger: logger.Named("tmdb"),
	}
}

// CreditsResponse is the TMDb movie credits payload.
type CreditsResponse struct {
	ID   int64         `json:"id"`
	Cast []CreditEntry `json:"cast"`
	Crew []CreditEntry `json:"crew"`
}

// CreditEntry is one cast or crew credit.
type CreditEntry struct {
	Name       string `json:"name"`
	Job        string `json:"job,omitempty"`
	Department string `json:"department,omitempty"`
	Character  string `json:"character,omitempty"`
}

// statusEnvelope is TMDb's error body.
type statusEnvelope struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}

// Credits fetches the crew and cast credits for a movie.
func (c *Client) Credits(ctx context.Context, tmdbID int64) (*CreditsResponse, error) {
	url := fmt.Sprintf("%s/movie/%d/credits?api_key=%s", c.baseURL, tmdbID, c.apiKey)
	var response CreditsResponse
	if err := c.get(ctx, url, &response); err != nil {
		return nil, fmt.Errorf("failed to fetch credits for tmdb id %d: %w", tmdbID, err)
	}
	return &response, nil
}

// ExternalIDs fetches the cross-reference identifier document for a
// movie (IMDb, Wikidata, social ids).
func (c *Client) ExternalIDs(ctx context.Context, tmdbID int64) (map[string]any, error) {
	url := fmt.Sprintf("%s/movie/%d/external_ids?api_key=%s", c.baseURL, tmdbID, c.apiKey)
	ids := map[string]any{}
	if err := c.get(ctx, url, &ids); err != nil {
		return nil, fmt.Errorf("failed to fetch external ids for tmdb id %d: %w", tmdbID, err)
	}
	delete(ids, "id")
	return ids, nil
}

// get performs one API request, enforcing the inter-request delay.
func (c *Client) get(ctx context.Context, url string, result interface{}) error {
	if c.lastAPICall != nil {
		if elapsed := time.Since(*c.lastAPICall); elapsed < c.delay {
			select {
			case <-time.After(c.delay - elapsed):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	now := time.Now()
	c.lastAPICall = &now

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()
	c.logger.Debug("tmdb response", "path", req.URL.Path, "status", resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var envelope statusEnvelope
		if json.Unmarshal(body, &envelope) == nil && envelope.StatusCode == tmdbStatusNotFound {
			return ErrNotFound
		}
		if resp.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("TMDb API returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to unmarshal JSON response: %w", err)
	}
	return nil
}
