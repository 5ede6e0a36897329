package healthcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/pyrefine/internal/config"
)

func TestCheckWithNilConfig(t *testing.T) {
	_, err := Check(context.Background(), nil, "", Options{})
	assert.Error(t, err)
}

func TestCheckOllamaReady(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.DefaultConfig()
	cfg.Provider = config.ProviderOllama
	cfg.Model = "qwen2.5-coder"
	cfg.BaseURL = server.URL
	cfg.FormatEnabled = false
	cfg.CacheEnabled = false

	result, err := Check(context.Background(), cfg, "", Options{})
	require.NoError(t, err)

	assert.Equal(t, StatusReady, result.Provider.Status)
	assert.Equal(t, "ollama", result.Provider.Provider)
	assert.True(t, result.Healthy())
	assert.Empty(t, result.Formatters)
	assert.False(t, result.Cache.Enabled)
}

func TestCheckOpenAI(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantStatus string
	}{
		{"ready", http.StatusOK, StatusReady},
		{"bad key", http.StatusUnauthorized, StatusError},
		{"server error", http.StatusBadGateway, StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/models", r.URL.Path)
				assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			cfg := config.DefaultConfig()
			cfg.BaseURL = server.URL + "/v1/"
			cfg.APIKey = "k"

			result, err := Check(context.Background(), cfg, "", Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, result.Provider.Status)
			if tt.wantStatus == StatusError {
				assert.NotEmpty(t, result.Provider.Error)
				assert.False(t, result.Healthy())
			}
		})
	}
}

func TestCheckOpenAIWithoutKey(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.APIKey = ""

	result, err := Check(context.Background(), cfg, "", Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusError, result.Provider.Status)
	assert.Contains(t, result.Provider.Error, "API key")
}

func TestCheckUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	cfg := config.DefaultConfig()
	cfg.Provider = config.ProviderOllama
	cfg.BaseURL = url

	result, err := Check(context.Background(), cfg, "", Options{})
	require.NoError(t, err)
	assert.Equal(t, StatusError, result.Provider.Status)
	assert.Contains(t, result.Provider.Error, "cannot reach")
}

func TestCheckFormattersAndCache(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Provider = config.ProviderOllama
	cfg.BaseURL = "http://127.0.0.1:1"
	cfg.FormatCommands = [][]string{{"sh", "-c", "cat"}, {"pyrefine-no-such-formatter"}}
	cfg.CacheDir = dir
	require.NoError(t, os.WriteFile(cfg.CacheFilePath(), []byte("x"), 0644))

	result, err := Check(context.Background(), cfg, filepath.Join(dir, "config.yaml"), Options{})
	require.NoError(t, err)

	require.Len(t, result.Formatters, 2)
	assert.Equal(t, StatusReady, result.Formatters[0].Status)
	assert.Equal(t, "sh -c cat", result.Formatters[0].Command)
	assert.Equal(t, StatusMissing, result.Formatters[1].Status)

	assert.True(t, result.Cache.Exists)
	assert.Equal(t, int64(1), result.Cache.Size)
	assert.Equal(t, "project", result.ConfigScope)
}

func TestScopeFromPath(t *testing.T) {
	assert.Equal(t, "", ScopeFromPath(""))
	assert.Equal(t, "project", ScopeFromPath(config.ProjectConfigFilePath()))

	if _, err := os.UserHomeDir(); err == nil {
		assert.Equal(t, "global", ScopeFromPath(config.GlobalConfigFilePath()))
	}
}
