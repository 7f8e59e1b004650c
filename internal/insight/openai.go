package insight

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"callscope/internal/model"
)

// OpenAIProvider generates insights by calling OpenAI chat completions
// directly instead of going through the AI service.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates an OpenAI-backed insight provider.
func NewOpenAIProvider(apiKey, modelName string) *OpenAIProvider {
	if modelName == "" {
		modelName = openai.GPT4oMini
	}
	return &OpenAIProvider{
		client: openai.NewClient(apiKey),
		model:  modelName,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

// Analyze runs the analysis prompt and parses the structured result.
func (p *OpenAIProvider) Analyze(ctx context.Context, req AnalyzeRequest) (*model.Analysis, error) {
	var out model.Analysis
	if err := p.complete(ctx, analysisSystemPrompt, buildAnalysisPrompt(req), 0.4, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Feedback runs the feedback prompt.
func (p *OpenAIProvider) Feedback(ctx context.Context, req FeedbackRequest) (*model.Feedback, error) {
	var out model.Feedback
	if err := p.complete(ctx, feedbackSystemPrompt, buildFeedbackPrompt(req), 0.4, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Text) == "" {
		return nil, &ServiceError{StatusCode: http.StatusBadGateway, Message: "model returned empty feedback"}
	}
	return &out, nil
}

// Followup runs the followup prompt.
func (p *OpenAIProvider) Followup(ctx context.Context, req FollowupRequest) (*model.Followup, error) {
	var out model.Followup
	if err := p.complete(ctx, followupSystemPrompt, buildFollowupPrompt(req), 0.5, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Message) == "" {
		return nil, &ServiceError{StatusCode: http.StatusBadGateway, Message: "model returned empty followup message"}
	}
	out.Channel = req.Channel
	out.Tone = req.Tone
	return &out, nil
}

func (p *OpenAIProvider) complete(ctx context.Context, systemPrompt, userPrompt string, temperature float32, target interface{}) error {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return toServiceError(err)
	}
	if len(resp.Choices) == 0 {
		return &ServiceError{StatusCode: http.StatusBadGateway, Message: "OpenAI returned no choices"}
	}

	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), target); err != nil {
		// Some models still wrap JSON in markdown code blocks
		extracted := extractJSONFromMarkdown(content)
		if err := json.Unmarshal([]byte(extracted), target); err != nil {
			return &ServiceError{StatusCode: http.StatusBadGateway, Message: fmt.Sprintf("failed to parse model response as JSON: %v", err)}
		}
	}
	return nil
}

func toServiceError(err error) *ServiceError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ServiceError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	return &ServiceError{StatusCode: http.StatusBadGateway, Message: err.Error()}
}

// extractJSONFromMarkdown extracts JSON from markdown code blocks
func extractJSONFromMarkdown(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}

	return strings.TrimSpace(content)
}
