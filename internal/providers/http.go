package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// maxImageBytes caps downloaded image sizes.
const maxImageBytes = 32 << 20

// httpClient is the transport shared by all provider clients: a timeout,
// an outbound rate limit, and uniform error handling.
type httpClient struct {
	name    string
	client  *http.Client
	limiter *rate.Limiter // nil means unlimited
}

func newHTTPClient(name string, timeout time.Duration, rps float64) *httpClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	c := &httpClient{
		name:   name,
		client: &http.Client{Timeout: timeout},
	}
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return c
}

// do sends req after waiting for the rate limiter and returns the body.
// Non-2xx responses become *APIError.
func (c *httpClient) do(ctx context.Context, req *http.Request) ([]byte, http.Header, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, nil, fmt.Errorf("%s rate limit: %w", c.name, err)
		}
	}

	resp, err := c.client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, nil, fmt.Errorf("%s http: %w", c.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, nil, fmt.Errorf("%s read body: %w", c.name, err)
	}
	if len(body) > maxImageBytes {
		return nil, nil, fmt.Errorf("%s: response exceeds %d bytes", c.name, maxImageBytes)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, newAPIError(c.name, resp.StatusCode, body)
	}
	return body, resp.Header, nil
}

// postJSON marshals payload, posts it, and decodes the JSON response into out.
func (c *httpClient) postJSON(ctx context.Context, url string, headers map[string]string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s marshal: %w", c.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%s request: %w", c.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	body, _, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s unmarshal: %w", c.name, err)
	}
	return nil
}

// download fetches a generated image from the URL a provider returned.
func (c *httpClient) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%s download request: %w", c.name, err)
	}

	// Downloads are not rate limited; they hit the provider's CDN.
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%s download: %w", c.name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("%s download read: %w", c.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", newAPIError(c.name, resp.StatusCode, data)
	}
	if len(data) > maxImageBytes {
		return nil, "", fmt.Errorf("%s: image exceeds %d bytes", c.name, maxImageBytes)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%s: downloaded image is empty", c.name)
	}
	return data, detectImageType(resp.Header.Get("Content-Type"), data), nil
}

// ping reports whether baseURL answers at all. Any HTTP status below 500
// counts as reachable; most image APIs reject a bare GET with 404 or 405.
func (c *httpClient) ping(ctx context.Context, baseURL string, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return fmt.Errorf("%s ping request: %w", c.name, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s ping: %w", c.name, err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return newAPIError(c.name, resp.StatusCode, nil)
	}
	return nil
}

// detectImageType trusts an image/* header and otherwise sniffs the bytes.
func detectImageType(header string, data []byte) string {
	mediaType, _, _ := strings.Cut(header, ";")
	mediaType = strings.TrimSpace(mediaType)
	if strings.HasPrefix(mediaType, "image/") {
		return mediaType
	}
	return http.DetectContentType(data)
}
