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

// DefaultOpenAIEndpoint is the default base URL for the OpenAI API
const DefaultOpenAIEndpoint = "https://api.openai.com/v1"

// DefaultOpenAIModel is the default chat model for OpenAI
const DefaultOpenAIModel = "gpt-4o-mini"

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// OpenAIProvider implements Provider for OpenAI-compatible chat completion APIs
type OpenAIProvider struct {
	config     *Config
	httpClient *http.Client
}

// NewOpenAIProvider creates a new OpenAI chat provider
func NewOpenAIProvider(cfg *Config) (*OpenAIProvider, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultOpenAIEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.APIKey == "" && cfg.Endpoint == DefaultOpenAIEndpoint {
		return nil, &ModelError{Provider: "openai", Message: "set PYREFINE_API_KEY or OPENAI_API_KEY", Err: ErrAPIKeyMissing}
	}

	return &OpenAIProvider{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Name returns "openai"
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Config returns the provider configuration
func (p *OpenAIProvider) Config() *Config {
	return p.config
}

// Complete sends the conversation to /chat/completions in JSON mode
func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("%w: no messages", ErrInvalidInput)
	}

	reqBody, err := json.Marshal(openAIRequest{
		Model:          p.config.Model,
		Messages:       messages,
		Temperature:    p.config.Temperature,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := strings.TrimRight(p.config.Endpoint, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &ModelError{Provider: p.Name(), Message: "request failed", Err: fmt.Errorf("%w: %v", ErrProviderUnavailable, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var result openAIResponse
	decodeErr := json.Unmarshal(body, &result)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		if decodeErr == nil && result.Error != nil {
			msg = result.Error.Message
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return "", &ModelError{Provider: p.Name(), Message: msg, Err: ErrAPIKeyMissing}
		}
		return "", &ModelError{
			Provider: p.Name(),
			Message:  msg,
			Err:      fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode),
		}
	}
	if decodeErr != nil {
		return "", fmt.Errorf("failed to parse response: %w", decodeErr)
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", &ModelError{Provider: p.Name(), Message: "no choices returned", Err: ErrEmptyCompletion}
	}
	return result.Choices[0].Message.Content, nil
}

var _ Provider = (*OpenAIProvider)(nil)
