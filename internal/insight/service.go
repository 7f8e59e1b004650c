package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"callscope/internal/model"
)

// ServiceClient posts to the standalone AI service's /analyze, /feedback and
// /followup endpoints. Calls are not retried here: retry policy belongs to
// the pipeline's per-stage failure handling.
type ServiceClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewServiceClient creates a client for the AI insight service.
func NewServiceClient(baseURL, token string) *ServiceClient {
	return &ServiceClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *ServiceClient) Name() string { return "service" }

// Analyze calls POST /analyze and returns the structured analysis.
func (c *ServiceClient) Analyze(ctx context.Context, req AnalyzeRequest) (*model.Analysis, error) {
	var out struct {
		Analysis *model.Analysis `json:"analysis_json"`
	}
	if err := c.post(ctx, "/analyze", req, &out); err != nil {
		return nil, err
	}
	if out.Analysis == nil {
		return nil, &ServiceError{StatusCode: http.StatusBadGateway, Message: "analyze response missing analysis_json"}
	}
	return out.Analysis, nil
}

// Feedback calls POST /feedback and returns the feedback text.
func (c *ServiceClient) Feedback(ctx context.Context, req FeedbackRequest) (*model.Feedback, error) {
	var out struct {
		Feedback *model.Feedback `json:"feedback_json"`
	}
	if err := c.post(ctx, "/feedback", req, &out); err != nil {
		return nil, err
	}
	if out.Feedback == nil {
		return nil, &ServiceError{StatusCode: http.StatusBadGateway, Message: "feedback response missing feedback_json"}
	}
	return out.Feedback, nil
}

// Followup calls POST /followup; the response body is the followup document.
func (c *ServiceClient) Followup(ctx context.Context, req FollowupRequest) (*model.Followup, error) {
	var out model.Followup
	if err := c.post(ctx, "/followup", req, &out); err != nil {
		return nil, err
	}
	if out.Channel == "" {
		out.Channel = req.Channel
	}
	if out.Tone == "" {
		out.Tone = req.Tone
	}
	return &out, nil
}

func (c *ServiceClient) post(ctx context.Context, path string, payload, target interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &ServiceError{StatusCode: http.StatusInternalServerError, Message: fmt.Sprintf("failed to encode request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &ServiceError{StatusCode: http.StatusInternalServerError, Message: fmt.Sprintf("failed to create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("X-AI-Token", strings.TrimSpace(c.token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ServiceError{StatusCode: http.StatusBadGateway, Message: fmt.Sprintf("request to %s failed: %v", path, err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ServiceError{StatusCode: http.StatusBadGateway, Message: fmt.Sprintf("failed to read %s response: %v", path, err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(respBody))
		if msg == "" {
			msg = resp.Status
		}
		return &ServiceError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(respBody, target); err != nil {
		return &ServiceError{StatusCode: http.StatusBadGateway, Message: fmt.Sprintf("failed to parse %s response: %v", path, err)}
	}
	return nil
}
