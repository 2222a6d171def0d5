package kenpom

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/courtside/midmajor/pkg/config"
	"github.com/courtside/midmajor/pkg/httputil"
	"github.com/courtside/midmajor/pkg/logger"
)

// Sentinel errors for the two fetch-stage failure modes. Both abort the
// pricing run before any store mutation.
var (
	// ErrSourceUnavailable means the ratings page could not be retrieved.
	ErrSourceUnavailable = errors.New("kenpom: source unavailable")

	// ErrFormatChanged means the page was retrieved but the ratings table
	// no longer matches the known column schema.
	ErrFormatChanged = errors.New("kenpom: ratings table format changed")
)

// Client fetches the kenpom.com ratings table.
// It performs exactly one request per fetch; retry policy belongs to the
// caller (the scheduled price-update job retries whole runs).
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	userAgent  string
}

// NewClient creates a new kenpom client.
func NewClient(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithField("module", "kenpom"),
		baseURL:    cfg.Kenpom.BaseURL,
		userAgent:  cfg.Kenpom.UserAgent,
	}
}

// FetchRatings retrieves and parses the current ratings table.
func (c *Client) FetchRatings(ctx context.Context) ([]RankingRow, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrSourceUnavailable, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code %d", ErrSourceUnavailable, resp.StatusCode)
	}

	rows, err := parseRatings(resp.Body)
	if err != nil {
		return nil, err
	}

	c.logger.WithField("count", len(rows)).Debug("Fetched kenpom ratings")
	return rows, nil
}
