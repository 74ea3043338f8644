package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"agriquest/utils"
)

// apiClient is the shared JSON transport of the authority clients.
type apiClient struct {
	baseURL  string
	adminKey string
	client   *http.Client
}

func (c *apiClient) endpoint(path string, query url.Values) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL '%s': %w", c.baseURL, err)
	}
	u := base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

// do sends in (if non-nil) as JSON and decodes a 2xx body into out (if
// non-nil). Non-2xx responses become errors carrying the server message.
// A 404 is returned as the response status with no error when allow404 is set.
func (c *apiClient) do(ctx context.Context, method, path string, query url.Values, in, out any, allow404 bool) (int, error) {
	target, err := c.endpoint(path, query)
	if err != nil {
		return 0, err
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request to %s: %w", target, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.adminKey != "" && strings.Contains(path, "/admin/") {
		req.Header.Set("X-Admin-Key", c.adminKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer utils.DrainAndClose(resp.Body)

	if allow404 && resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, utils.ResponseError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}
