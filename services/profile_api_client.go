package services

import (
	"context"
	"net/http"
	"net/url"

	"agriquest/models"
)

// ProfileClient talks to the profile endpoints of the authority.
type ProfileClient struct {
	api apiClient
}

func NewProfileClient(baseURL string, client *http.Client) *ProfileClient {
	return &ProfileClient{api: apiClient{baseURL: baseURL, client: client}}
}

// Fetch returns the remote profile for id, or nil when none exists.
func (c *ProfileClient) Fetch(ctx context.Context, id string) (*models.RemoteProfile, error) {
	var p models.RemoteProfile
	status, err := c.api.do(ctx, http.MethodGet, "/api/profiles/"+url.PathEscape(id), nil, nil, &p, true)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	return &p, nil
}

// Upsert pushes a full snapshot keyed by p.ID.
func (c *ProfileClient) Upsert(ctx context.Context, p models.RemoteProfile) error {
	_, err := c.api.do(ctx, http.MethodPut, "/api/profiles/"+url.PathEscape(p.ID), nil, p, nil, false)
	return err
}
