package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// API is a thin JSON GET client for metadata endpoints.
type API struct {
	client  *http.Client
	baseURL string
}

// NewAPI creates an API client rooted at baseURL.
func NewAPI(baseURL string) *API {
	return &API{client: http.DefaultClient, baseURL: baseURL}
}

// Get fetches baseURL+path with the given query params and decodes the
// JSON response into v.
func (a *API) Get(ctx context.Context, path string, params url.Values, v any) error {
	if params != nil {
		path += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s%s", a.baseURL, path), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
