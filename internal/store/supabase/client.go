// Package supabase implements the store capability against a remote
// PostgREST-style tabular data service.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/oddsgrid/betgrader/internal/logger"
	"github.com/oddsgrid/betgrader/internal/models"
	"github.com/oddsgrid/betgrader/internal/store"
)

// Config holds the remote service connection and protocol parameters.
type Config struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	MaxRetries     int
	RetryDelayBase time.Duration
	PageSize       int
	ChunkSize      int
	ChunkPause     time.Duration
}

// Client talks to the remote tabular data service over its REST API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *logger.Logger
}

// New creates a remote store client. BaseURL and APIKey must be set; this
// is verified at startup before any data is touched.
func New(cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.BaseURL == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase URL and key must be configured")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 1000
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 100
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}, nil
}

// Close implements store.Store; the HTTP client holds no resources that
// need explicit release.
func (c *Client) Close() error { return nil }

// FetchBettingRecords retrieves every row of the betting data table.
func (c *Client) FetchBettingRecords(ctx context.Context) ([]models.BettingRecord, error) {
	return fetchAll[models.BettingRecord](ctx, c, store.BettingTable, "timestamp.asc")
}

// FetchGradeRecords retrieves every row of the grades table.
func (c *Client) FetchGradeRecords(ctx context.Context) ([]models.GradeRecord, error) {
	return fetchAll[models.GradeRecord](ctx, c, store.GradesTable, "calculated_at.asc")
}

// UpsertGradeRecords writes grade records through the chunked upsert
// protocol, keyed on bet_id.
func (c *Client) UpsertGradeRecords(ctx context.Context, records []models.GradeRecord) (store.UpsertStats, error) {
	return store.UpsertChunks(ctx, c.log, records, c.cfg.ChunkSize, c.cfg.ChunkPause,
		func(ctx context.Context, chunk []models.GradeRecord) error {
			return c.upsertChunk(ctx, store.GradesTable, chunk)
		})
}

// fetchAll pages through a table with a fixed page size, advancing the
// offset until a page comes back short. Rows are ordered by a monotonic
// column so the scan is stable while data is not concurrently mutated.
func fetchAll[T any](ctx context.Context, c *Client, table, order string) ([]T, error) {
	var all []T
	offset := 0
	for {
		page, err := fetchPage[T](ctx, c, table, order, offset)
		if err != nil {
			return nil, fmt.Errorf("fetch %s at offset %d: %w", table, offset, err)
		}
		all = append(all, page...)
		c.log.Debug("Fetched %d rows from %s (offset %d)", len(page), table, offset)
		if len(page) < c.cfg.PageSize {
			return all, nil
		}
		offset += c.cfg.PageSize
	}
}

func fetchPage[T any](ctx context.Context, c *Client, table, order string, offset int) ([]T, error) {
	u, err := url.Parse(fmt.Sprintf("%s/rest/v1/%s", c.cfg.BaseURL, table))
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("select", "*")
	q.Set("order", order)
	q.Set("limit", fmt.Sprintf("%d", c.cfg.PageSize))
	q.Set("offset", fmt.Sprintf("%d", offset))
	u.RawQuery = q.Encode()

	resp, err := c.doRequest(ctx, http.MethodGet, u.String(), nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var page []T
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode page: %w", err)
	}
	return page, nil
}

// upsertChunk issues one insert-or-replace call for a chunk of records.
// Re-submitting the same chunk produces the same end state.
func (c *Client) upsertChunk(ctx context.Context, table string, chunk []models.GradeRecord) error {
	u, err := url.Parse(fmt.Sprintf("%s/rest/v1/%s", c.cfg.BaseURL, table))
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("on_conflict", store.ConflictKey)
	u.RawQuery = q.Encode()

	body, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("failed to encode chunk: %w", err)
	}

	headers := map[string]string{
		"Content-Type": "application/json",
		"Prefer":       "resolution=merge-duplicates,return=minimal",
	}
	resp, err := c.doRequest(ctx, http.MethodPost, u.String(), body, headers)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// doRequest performs an HTTP request with linear-backoff retry on network
// errors, server errors, and rate-limit rejections.
func (c *Client) doRequest(ctx context.Context, method, urlStr string, body []byte, headers map[string]string) (*http.Response, error) {
	var lastErr error
	for i := 0; i < c.cfg.MaxRetries; i++ {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, urlStr, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("apikey", c.cfg.APIKey)
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			time.Sleep(c.cfg.RetryDelayBase * time.Duration(i+1))
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			time.Sleep(c.cfg.RetryDelayBase * time.Duration(i+1))
			continue
		}
		if resp.StatusCode >= 400 {
			detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return nil, fmt.Errorf("request rejected: %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
		}

		return resp, nil
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
