package transcription

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// CreateProvider creates a transcription provider by name.
func CreateProvider(name, baseURL, apiKey string) (Provider, error) {
	switch name {
	case "", "http":
		if baseURL == "" {
			return nil, fmt.Errorf("TRANSCRIBE_URL is required for the http transcription provider")
		}
		return NewClient(baseURL, apiKey), nil
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported transcription provider: %s. Supported: http, mock", name)
	}
}

// MockProvider resolves every job on its second poll with a canned two
// speaker exchange. Used for local runs without a transcription backend.
type MockProvider struct {
	mu    sync.Mutex
	polls map[string]int
}

func NewMockProvider() *MockProvider {
	return &MockProvider{polls: make(map[string]int)}
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Submit(_ context.Context, _, _ string) (string, error) {
	return "mock-" + uuid.New().String(), nil
}

func (m *MockProvider) Poll(_ context.Context, jobID string) (*JobResult, error) {
	m.mu.Lock()
	m.polls[jobID]++
	n := m.polls[jobID]
	m.mu.Unlock()

	if n < 2 {
		return &JobResult{JobID: jobID, Status: JobPending}, nil
	}
	return &JobResult{
		JobID:  jobID,
		Status: JobCompleted,
		Utterances: []Utterance{
			{Speaker: "Salesperson", Text: "Thanks for taking the time today, did the trial work out for you?", Start: 0.0, End: 4.2},
			{Speaker: "Customer", Text: "Mostly, but the pricing page confused me a bit.", Start: 4.5, End: 8.1},
		},
	}, nil
}
