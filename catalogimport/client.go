package catalogimport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/catalog_backend/utils"
)

type RemoteConfig struct {
	BaseURL       string
	APIKey        string
	APIKeyHeader  string
	RatePerMinute int
	Timeout       time.Duration
}

// RemoteCatalog talks to a catalog service over its JSON API.
type RemoteCatalog struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
	ticker    *time.Ticker
}

func NewRemoteCatalog(cfg RemoteConfig) (*RemoteCatalog, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("catalog api base url is empty")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("catalog api key is empty")
	}
	if cfg.APIKeyHeader == "" {
		cfg.APIKeyHeader = "X-API-Key"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &RemoteCatalog{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		apiKeyHdr: cfg.APIKeyHeader,
		http:      &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.RatePerMinute > 0 {
		c.ticker = time.NewTicker(time.Minute / time.Duration(cfg.RatePerMinute))
	}
	return c, nil
}

func NewRemoteCatalogFromEnv() (*RemoteCatalog, error) {
	rate := 120
	if v := strings.TrimSpace(os.Getenv("CATALOG_API_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			rate = n
		}
	}
	return NewRemoteCatalog(RemoteConfig{
		BaseURL:       os.Getenv("CATALOG_API_BASE_URL"),
		APIKey:        os.Getenv("CATALOG_API_KEY"),
		APIKeyHeader:  strings.TrimSpace(os.Getenv("CATALOG_API_KEY_HEADER")),
		RatePerMinute: rate,
	})
}

// Close stops the rate limiter.
func (c *RemoteCatalog) Close() {
	if c.ticker != nil {
		c.ticker.Stop()
	}
}

type listResponse struct {
	Data       []CatalogEntry `json:"data"`
	Items      []CatalogEntry `json:"items"`
	NextCursor string         `json:"next_cursor"`
}

type entryResponse struct {
	Data *CatalogEntry `json:"data"`
}

func (c *RemoteCatalog) ListCategories(ctx context.Context) ([]CatalogEntry, error) {
	return c.list(ctx, "/v1/catalog/areas")
}

func (c *RemoteCatalog) ListConcepts(ctx context.Context) ([]CatalogEntry, error) {
	return c.list(ctx, "/v1/catalog/concepts")
}

func (c *RemoteCatalog) CreateCategory(ctx context.Context, input NewCategory) (CatalogEntry, error) {
	return c.create(ctx, "/v1/catalog/areas", input)
}

func (c *RemoteCatalog) CreateConcept(ctx context.Context, input NewConcept) (CatalogEntry, error) {
	return c.create(ctx, "/v1/catalog/concepts", input)
}

func (c *RemoteCatalog) list(ctx context.Context, path string) ([]CatalogEntry, error) {
	var out []CatalogEntry
	cursor := ""
	for {
		params := url.Values{}
		params.Set("limit", "500")
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		body, err := c.do(ctx, http.MethodGet, path+"?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		var parsed listResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, err
		}
		entries := parsed.Data
		if len(entries) == 0 {
			entries = parsed.Items
		}
		out = append(out, entries...)
		if parsed.NextCursor == "" || len(entries) == 0 {
			return out, nil
		}
		cursor = parsed.NextCursor
	}
}

func (c *RemoteCatalog) create(ctx context.Context, path string, input any) (CatalogEntry, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return CatalogEntry{}, err
	}
	body, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return CatalogEntry{}, err
	}

	var wrapped entryResponse
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Data != nil {
		return *wrapped.Data, nil
	}
	var entry CatalogEntry
	if err := json.Unmarshal(body, &entry); err != nil {
		return CatalogEntry{}, err
	}
	if entry.ID == 0 {
		return CatalogEntry{}, fmt.Errorf("catalog api returned no id for %s", path)
	}
	return entry, nil
}

func (c *RemoteCatalog) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	if c.ticker != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.ticker.C:
		}
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if businessId, ok := utils.GetBusinessIdFromContext(ctx); ok && businessId != "" {
		req.Header.Set("X-Business-Id", businessId)
	}
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok && cid != "" {
		req.Header.Set("X-Correlation-Id", cid)
	}
	if runId, ok := utils.GetImportRunIdFromContext(ctx); ok {
		req.Header.Set("X-Import-Run-Id", strconv.FormatUint(uint64(runId), 10))
	}
	if userId, ok := utils.GetUserIdFromContext(ctx); ok && userId > 0 {
		req.Header.Set("X-User-Id", strconv.Itoa(userId))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("catalog api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
