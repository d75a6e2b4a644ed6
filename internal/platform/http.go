package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// apiClient is the shared paced HTTP client behind every adapter. The rate
// limiter is waited on before each call, so list/detail pairs observe the
// platform's call budget without the orchestrator knowing about it.
type apiClient struct {
	platform string
	baseURL  string
	client   *http.Client
	limiter  *rate.Limiter
	headers  map[string]string
	username string
	password string
}

func newAPIClient(platform, baseURL string, timeout time.Duration, callsPerSec float64) *apiClient {
	return &apiClient{
		platform: platform,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(callsPerSec), 1),
		headers:  make(map[string]string),
	}
}

func (c *apiClient) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, params, nil, out)
}

func (c *apiClient) sendJSON(ctx context.Context, method, path string, body, out interface{}) error {
	return c.do(ctx, method, path, nil, body, out)
}

func (c *apiClient) do(ctx context.Context, method, path string, params url.Values, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s %s %s: %w", c.platform, method, path, classifyTransport(err))
	}

	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s %s: marshal body: %w", c.platform, method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("%s %s %s: %w", c.platform, method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s %s: %w", c.platform, method, path, classifyTransport(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s %s %s: %w", c.platform, method, path, classifyStatus(resp.StatusCode))
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s %s: decode response: %w", c.platform, method, path, err)
	}
	return nil
}
