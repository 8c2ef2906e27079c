package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jackzampolin/docwatch/internal/api"
)

// Client talks to the document-processing backend's REST API.
type Client struct {
	api *api.Client
}

// NewClient creates a backend client. timeout bounds each request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{api: api.NewClientWithTimeout(baseURL, timeout)}
}

// CreateJob submits documentIDs for processing and returns the new job ID.
func (c *Client) CreateJob(ctx context.Context, documentIDs []string, opts JobOptions) (string, error) {
	if len(documentIDs) == 0 {
		return "", errors.New("at least one document id is required")
	}

	var resp CreateJobResponse
	req := CreateJobRequest{DocumentIDs: documentIDs, Options: opts}
	if err := c.api.Post(ctx, "/api/jobs", req, &resp); err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("%w: create job response has no job_id", ErrInvalidPayload)
	}
	return resp.JobID, nil
}

// GetJob fetches the job's status, per-document records and cumulative logs.
func (c *Client) GetJob(ctx context.Context, jobID string) (*Job, error) {
	raw, err := c.api.GetRaw(ctx, "/api/jobs/"+url.PathEscape(jobID))
	if err != nil {
		if api.IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	return ParseJob(jobID, raw)
}

// GetProcessingResult fetches the authoritative result for one document.
// It returns ErrNotFound while the result has not been materialized.
func (c *Client) GetProcessingResult(ctx context.Context, documentID string) (*ProcessingResult, error) {
	raw, err := c.api.GetRaw(ctx, "/api/documents/"+url.PathEscape(documentID)+"/result")
	if err != nil {
		if api.IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("result for %s: %w", documentID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get result for %s: %w", documentID, err)
	}
	return ParseProcessingResult(raw)
}

// GetHealth calls the backend's health endpoint.
func (c *Client) GetHealth(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.api.Get(ctx, "/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}
