package services

import (
	"context"
	"net/http"
	"net/url"

	"agriquest/models"
)

// ReviewClient talks to the review endpoints. adminKey is only needed for
// the admin calls.
type ReviewClient struct {
	api apiClient
}

func NewReviewClient(baseURL, adminKey string, client *http.Client) *ReviewClient {
	return &ReviewClient{api: apiClient{baseURL: baseURL, adminKey: adminKey, client: client}}
}

// Health succeeds when the authority answers its health probe.
func (c *ReviewClient) Health(ctx context.Context) error {
	_, err := c.api.do(ctx, http.MethodGet, "/api/review/health", nil, nil, nil, false)
	return err
}

// Submit sends evidence for review.
func (c *ReviewClient) Submit(ctx context.Context, sub models.EvidenceSubmission) (models.EvidenceSubmitResponse, error) {
	var out models.EvidenceSubmitResponse
	_, err := c.api.do(ctx, http.MethodPost, "/api/review/evidence/submit", nil, sub, &out, false)
	return out, err
}

// Status returns the latest evidence record per quest for profileID.
func (c *ReviewClient) Status(ctx context.Context, profileID string) (map[string]models.EvidenceSummary, error) {
	var out models.EvidenceStatusResponse
	q := url.Values{"profileId": {profileID}}
	if _, err := c.api.do(ctx, http.MethodGet, "/api/review/evidence/status", q, nil, &out, false); err != nil {
		return nil, err
	}
	if out.ByQuest == nil {
		out.ByQuest = map[string]models.EvidenceSummary{}
	}
	return out.ByQuest, nil
}

// List returns records in status ("all" for every status).
func (c *ReviewClient) List(ctx context.Context, status string) ([]models.Evidence, error) {
	var out models.EvidenceListResponse
	var q url.Values
	if status != "" {
		q = url.Values{"status": {status}}
	}
	_, err := c.api.do(ctx, http.MethodGet, "/api/review/admin/evidence", q, nil, &out, false)
	return out.Items, err
}

// Decide approves or rejects a record.
func (c *ReviewClient) Decide(ctx context.Context, id string, decision models.EvidenceStatus) error {
	_, err := c.api.do(ctx, http.MethodPost, "/api/review/admin/evidence/decision", nil,
		models.EvidenceDecision{ID: id, Decision: decision}, nil, false)
	return err
}

// Reset returns a record to pending.
func (c *ReviewClient) Reset(ctx context.Context, id string) error {
	_, err := c.api.do(ctx, http.MethodPost, "/api/review/admin/evidence/"+url.PathEscape(id)+"/reset", nil, nil, nil, false)
	return err
}

// Delete removes a record.
func (c *ReviewClient) Delete(ctx context.Context, id string) error {
	_, err := c.api.do(ctx, http.MethodDelete, "/api/review/admin/evidence/"+url.PathEscape(id), nil, nil, nil, false)
	return err
}
