package insight

import "fmt"

// CreateProvider creates an insight provider by name.
func CreateProvider(name, serviceURL, serviceToken, openAIKey, openAIModel string) (Provider, error) {
	switch name {
	case "", "service":
		if serviceURL == "" {
			return nil, fmt.Errorf("AI_SERVICE_URL is required for the service insight provider")
		}
		return NewServiceClient(serviceURL, serviceToken), nil
	case "openai":
		if openAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai insight provider")
		}
		return NewOpenAIProvider(openAIKey, openAIModel), nil
	default:
		return nil, fmt.Errorf("unsupported insight provider: %s. Supported: service, openai", name)
	}
}
