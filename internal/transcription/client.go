package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var httpClient = &http.Client{Timeout: 12 * time.Second}

// Client talks to a job-based speech-to-text API: a submit call returns a job
// id and the job is polled until it resolves.
type Client struct {
	baseURL string
	apiKey  string
}

// NewClient creates a transcription client for the given API host.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func (c *Client) Name() string { return "http" }

type submitRequest struct {
	AudioURL string `json:"audio_url"`
	Language string `json:"language,omitempty"`
}

type submitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type pollResponse struct {
	ID         string      `json:"id"`
	Status     string      `json:"status"` // queued, processing, completed, error
	Text       string      `json:"text,omitempty"`
	Utterances []Utterance `json:"utterances,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Submit uploads an audio reference and returns the provider's job id.
func (c *Client) Submit(ctx context.Context, audioRef, language string) (string, error) {
	payload := submitRequest{AudioURL: audioRef}
	if language != "" && language != "auto" {
		payload.Language = language
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &ProviderError{Op: "submit", Message: "failed to encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transcripts", bytes.NewReader(body))
	if err != nil {
		return "", &ProviderError{Op: "submit", Message: "failed to create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	var resp submitResponse
	if err := doJSON(req, &resp); err != nil {
		return "", &ProviderError{Op: "submit", Message: "request failed", Err: err}
	}
	if resp.Error != "" {
		return "", &ProviderError{Op: "submit", Message: resp.Error}
	}
	if resp.ID == "" {
		return "", &ProviderError{Op: "submit", Message: "provider returned no job id"}
	}
	return resp.ID, nil
}

// Poll queries the job status once.
func (c *Client) Poll(ctx context.Context, jobID string) (*JobResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/transcripts/"+jobID, nil)
	if err != nil {
		return nil, &ProviderError{Op: "poll", Message: "failed to create request", Err: err}
	}
	c.authorize(req)

	var resp pollResponse
	if err := doJSON(req, &resp); err != nil {
		return nil, &ProviderError{Op: "poll", Message: "request failed", Err: err}
	}

	result := &JobResult{
		JobID:      jobID,
		Text:       resp.Text,
		Utterances: resp.Utterances,
		Error:      resp.Error,
	}
	switch strings.ToLower(resp.Status) {
	case "queued", "processing":
		result.Status = JobPending
	case "completed", "success":
		result.Status = JobCompleted
	case "error", "failed":
		result.Status = JobError
		if result.Error == "" {
			result.Error = "transcription failed"
		}
	default:
		return nil, &ProviderError{Op: "poll", Message: fmt.Sprintf("unknown job status %q", resp.Status)}
	}
	return result, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}
}

// doJSON performs the request with retries on transport and 5xx errors.
func doJSON(req *http.Request, target interface{}) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 12 * time.Second

	var lastErr error
	op := func() error {
		// rewind the body for retried POSTs
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return backoff.Permanent(err)
			}
			req.Body = body
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			lastErr = err
			return err
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %s", string(body))
			return lastErr
		}
		if resp.StatusCode >= 400 {
			lastErr = fmt.Errorf("request rejected: status=%d body=%s", resp.StatusCode, string(body))
			return backoff.Permanent(lastErr)
		}
		if err := json.Unmarshal(body, target); err != nil {
			lastErr = fmt.Errorf("json decode error: %v body=%s", err, string(body))
			return lastErr
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, req.Context())); err != nil {
		return lastErr
	}
	return nil
}
