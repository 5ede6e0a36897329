package healthcheck

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/l3aro/pyrefine/internal/config"
)

const (
	StatusReady   = "ready"
	StatusMissing = "missing"
	StatusError   = "error"
)

// ProviderStatus represents the health of the configured model provider.
type ProviderStatus struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	URL      string `json:"url"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// ToolStatus describes one formatter stage.
type ToolStatus struct {
	Command string `json:"command"`
	Path    string `json:"path,omitempty"`
	Status  string `json:"status"`
}

// CacheStatus describes the response cache file.
type CacheStatus struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
	Exists  bool   `json:"exists"`
	Size    int64  `json:"size,omitempty"`
}

// Result contains the full health check output for display.
type Result struct {
	ConfigPath  string         `json:"config_path,omitempty"`
	ConfigScope string         `json:"config_scope,omitempty"` // "global", "project" or "" for defaults
	Provider    ProviderStatus `json:"provider"`
	Formatters  []ToolStatus   `json:"formatters,omitempty"`
	Cache       CacheStatus    `json:"cache"`
}

// Healthy reports whether the provider is reachable. Missing formatters only
// mean the output is left unformatted.
func (r *Result) Healthy() bool {
	return r.Provider.Status == StatusReady
}

// Options tune a health check.
type Options struct {
	// Timeout bounds the provider ping. Zero means 3s.
	Timeout time.Duration
	Client  *http.Client
}

// Check performs a health check against the given config. configPath is the
// config file in use and may be empty when only defaults apply.
func Check(ctx context.Context, cfg *config.Config, configPath string, opts Options) (*Result, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}

	result := &Result{
		ConfigPath:  configPath,
		ConfigScope: ScopeFromPath(configPath),
		Provider:    checkProvider(ctx, cfg, opts),
		Cache:       checkCache(cfg),
	}
	if cfg.FormatEnabled {
		for _, argv := range cfg.FormatCommands {
			result.Formatters = append(result.Formatters, checkTool(argv))
		}
	}
	return result, nil
}

// ScopeFromPath determines "global" or "project" scope from a config file path.
// Returns empty string if path is empty.
func ScopeFromPath(path string) string {
	if path == "" {
		return ""
	}

	home, err := os.UserHomeDir()
	if err == nil {
		globalDir := filepath.Join(home, config.DirName)
		if strings.HasPrefix(path, globalDir) {
			return "global"
		}
	}

	return "project"
}

func checkProvider(ctx context.Context, cfg *config.Config, opts Options) ProviderStatus {
	status := ProviderStatus{
		Provider: string(cfg.Provider),
		Model:    cfg.Model,
		URL:      cfg.BaseURL,
	}

	var probe string
	switch cfg.Provider {
	case config.ProviderOllama:
		if status.URL == "" {
			status.URL = "http://localhost:11434"
		}
		// Ollama answers GET / with 200 when running.
		probe = status.URL
	case config.ProviderOpenAI:
		if status.URL == "" {
			status.URL = "https://api.openai.com/v1"
		}
		if cfg.APIKey == "" && cfg.BaseURL == "" {
			status.Status = StatusError
			status.Error = "no API key configured (set PYREFINE_API_KEY or OPENAI_API_KEY)"
			return status
		}
		probe = strings.TrimRight(status.URL, "/") + "/models"
	default:
		status.Status = StatusError
		status.Error = fmt.Sprintf("unknown provider: %s", cfg.Provider)
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probe, nil)
	if err != nil {
		status.Status = StatusError
		status.Error = fmt.Sprintf("invalid URL: %v", err)
		return status
	}
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", cfg.APIKey))
	}

	resp, err := opts.Client.Do(req)
	if err != nil {
		status.Status = StatusError
		status.Error = fmt.Sprintf("cannot reach %s at %s: %v", cfg.Provider, status.URL, err)
		return status
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		status.Status = StatusReady
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		status.Status = StatusError
		status.Error = fmt.Sprintf("%s rejected the API key (status %d)", cfg.Provider, resp.StatusCode)
	default:
		status.Status = StatusError
		status.Error = fmt.Sprintf("%s returned status %d", cfg.Provider, resp.StatusCode)
	}
	return status
}

func checkTool(argv []string) ToolStatus {
	status := ToolStatus{Command: strings.Join(argv, " "), Status: StatusMissing}
	if len(argv) == 0 {
		return status
	}
	if path, err := exec.LookPath(argv[0]); err == nil {
		status.Path = path
		status.Status = StatusReady
	}
	return status
}

func checkCache(cfg *config.Config) CacheStatus {
	status := CacheStatus{Enabled: cfg.CacheEnabled}
	if !cfg.CacheEnabled {
		return status
	}
	status.Path = cfg.CacheFilePath()
	if info, err := os.Stat(status.Path); err == nil && !info.IsDir() {
		status.Exists = true
		status.Size = info.Size()
	}
	return status
}
