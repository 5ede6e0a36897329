// Package llm talks to the chat completion APIs that produce refactoring
// proposals, and builds the prompt sent to them.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInput is returned when the request is invalid
var ErrInvalidInput = errors.New("invalid input")

// ErrProviderUnavailable is returned when the provider cannot be reached or
// answers with an error status
var ErrProviderUnavailable = errors.New("provider unavailable")

// ErrAPIKeyMissing is returned when the API key is missing
var ErrAPIKeyMissing = errors.New("API key missing")

// ErrEmptyCompletion is returned when the provider answers without content
var ErrEmptyCompletion = errors.New("empty completion")

// ModelError wraps provider-specific errors
type ModelError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model error (%s): %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("model error (%s): %s", e.Provider, e.Message)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// Config holds configuration for chat providers
type Config struct {
	// Endpoint is the base URL of the API
	Endpoint string

	// APIKey is the authentication token
	APIKey string

	// Model is the chat model to use
	Model string

	// Temperature is the sampling temperature
	Temperature float64

	// Timeout bounds one request; 0 means no limit beyond the context
	Timeout time.Duration
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if c.Model == "" {
		return errors.New("model is required")
	}
	return nil
}

// Role of a chat message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Provider obtains a JSON completion for a conversation.
type Provider interface {
	// Complete returns the assistant message content. Providers ask for JSON
	// output; the content is returned as sent.
	Complete(ctx context.Context, messages []Message) (string, error)

	// Name identifies the provider in logs and cache keys.
	Name() string

	// Config returns the provider configuration
	Config() *Config
}
