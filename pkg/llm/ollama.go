package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DefaultOllamaModel is the default chat model for Ollama
const DefaultOllamaModel = "qwen2.5-coder"

// DefaultOllamaEndpoint is the default base URL for Ollama API
const DefaultOllamaEndpoint = "http://localhost:11434"

// ollamaRequest represents the request payload for the Ollama chat API
type ollamaRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Format   string         `json:"format"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

// ollamaResponse represents the response from the Ollama chat API
type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error"`
}

// OllamaProvider implements the Provider interface for Ollama API
type OllamaProvider struct {
	config     *Config
	httpClient *http.Client
}

// NewOllamaProvider creates a new Ollama chat provider
func NewOllamaProvider(cfg *Config) (*OllamaProvider, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultOllamaEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Ollama needs no key locally but accepts a bearer token for remote instances.
	return &OllamaProvider{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Name returns "ollama"
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// Config returns the provider configuration
func (p *OllamaProvider) Config() *Config {
	return p.config
}

// Complete sends the conversation to /api/chat with JSON output and no streaming
func (p *OllamaProvider) Complete(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("%w: no messages", ErrInvalidInput)
	}

	reqBody, err := json.Marshal(ollamaRequest{
		Model:    p.config.Model,
		Messages: messages,
		Format:   "json",
		Stream:   false,
		Options:  map[string]any{"temperature": p.config.Temperature},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := strings.TrimRight(p.config.Endpoint, "/") + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.config.APIKey))
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &ModelError{Provider: p.Name(), Message: "request failed", Err: fmt.Errorf("%w: %v", ErrProviderUnavailable, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &ModelError{
			Provider: p.Name(),
			Message:  strings.TrimSpace(string(body)),
			Err:      fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode),
		}
	}

	var result ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Error != "" {
		return "", &ModelError{Provider: p.Name(), Message: result.Error, Err: ErrProviderUnavailable}
	}
	if strings.TrimSpace(result.Message.Content) == "" {
		return "", &ModelError{Provider: p.Name(), Message: "empty message", Err: ErrEmptyCompletion}
	}
	return result.Message.Content, nil
}

// Ensure OllamaProvider implements Provider
var _ Provider = (*OllamaProvider)(nil)
