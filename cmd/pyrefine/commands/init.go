package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/pyrefine/internal/config"
	"github.com/l3aro/pyrefine/internal/healthcheck"
	"github.com/l3aro/pyrefine/pkg/llm"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file interactively",
	Long: `Guides you through choosing a model provider, model and formatter settings,
then saves them globally or for the current project and runs a health check.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{"config": "skip"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit(cmd)
	},
}

func runInit(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	// === SECTION 1: Provider ===
	var provider string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Model provider").
				Description("Which chat completion API answers refactoring requests?").
				Options(
					huh.NewOption("OpenAI (or any OpenAI-compatible API)", string(config.ProviderOpenAI)),
					huh.NewOption("Ollama", string(config.ProviderOllama)),
				).
				Value(&provider),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	model := llm.DefaultOpenAIModel
	baseURL := ""
	apiKey := ""
	if provider == string(config.ProviderOllama) {
		model = llm.DefaultOllamaModel
		baseURL = llm.DefaultOllamaEndpoint
	}

	urlTitle := "API base URL (optional, press Enter for api.openai.com)"
	keyTitle := "API key (optional, PYREFINE_API_KEY or OPENAI_API_KEY also work)"
	if provider == string(config.ProviderOllama) {
		urlTitle = "Ollama base URL"
		keyTitle = "Ollama bearer API key (optional, press Enter to skip)"
	}

	form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Model").
				Placeholder(model).
				Value(&model).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("model is required")
					}
					return nil
				}),
			huh.NewInput().
				Title(urlTitle).
				Placeholder(baseURL).
				Value(&baseURL),
			huh.NewInput().
				Title(keyTitle).
				Placeholder("optional").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 2: Formatting and cache ===
	formatEnabled := true
	cacheEnabled := true
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Reformat results with black and isort?").
				Description("Missing tools are skipped; the code is then left as rewritten.").
				Value(&formatEnabled),
			huh.NewConfirm().
				Title("Cache model responses?").
				Description("Re-running on unchanged files then skips the model.").
				Value(&cacheEnabled),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	// === SECTION 3: Config Location ===
	var saveLocationChoice string
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save Configuration").
				Description("Where to save the configuration file?").
				Options(
					huh.NewOption("Global (~/.pyrefine/config.yaml)", "global"),
					huh.NewOption("Project (./.pyrefine/config.yaml)", "project"),
				).
				Value(&saveLocationChoice),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	configPath := config.ProjectConfigFilePath()
	if saveLocationChoice == "global" {
		configPath = config.GlobalConfigFilePath()
	}

	if _, err := os.Stat(configPath); err == nil {
		var overwrite bool
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Config file exists").
					Description(fmt.Sprintf("Overwrite existing config at %s?", configPath)).
					Affirmative("Overwrite").
					Negative("Cancel").
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		if !overwrite {
			fmt.Fprintln(out, "Cancelled.")
			return nil
		}
	}

	// === Build config struct ===
	cfg := config.DefaultConfig()
	cfg.Provider = config.ProviderType(provider)
	cfg.Model = strings.TrimSpace(model)
	cfg.BaseURL = strings.TrimSpace(baseURL)
	cfg.APIKey = strings.TrimSpace(apiKey)
	cfg.FormatEnabled = formatEnabled
	cfg.CacheEnabled = cacheEnabled

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	fmt.Fprintln(out, titleStyle.Render("\n=== Configuration Preview ==="))
	fmt.Fprintf(out, "Config path: %s\n", configPath)
	fmt.Fprintf(out, "Provider: %s\n", cfg.Provider)
	fmt.Fprintf(out, "Model: %s\n", cfg.Model)
	if cfg.BaseURL != "" {
		fmt.Fprintf(out, "URL: %s\n", cfg.BaseURL)
	}
	if cfg.APIKey != "" {
		fmt.Fprintln(out, "API key: (set)")
	}
	fmt.Fprintf(out, "Formatting: %t\n", cfg.FormatEnabled)
	fmt.Fprintf(out, "Response cache: %t\n", cfg.CacheEnabled)

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	if abs, err := filepath.Abs(configPath); err == nil {
		configPath = abs
	}
	fmt.Fprintf(out, "Configuration saved to: %s\n", configPath)

	// === SECTION 4: Health Check ===
	fmt.Fprintln(out, titleStyle.Render("\n=== Running Health Check ==="))
	result, err := healthcheck.Check(cmd.Context(), cfg, configPath, healthcheck.Options{})
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	displayDoctorResult(out, result)

	fmt.Fprintln(out, "\n=== Initialization Complete ===")
	return nil
}

func init() {
	RootCmd.AddCommand(initCmd)
}
