package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/pyrefine/internal/config"
	"github.com/l3aro/pyrefine/internal/log"
	"github.com/l3aro/pyrefine/pkg/cache"
	"github.com/l3aro/pyrefine/pkg/llm"
	"github.com/l3aro/pyrefine/pkg/refactor"
)

type fileOutput struct {
	File   string           `json:"file"`
	Output *refactor.Output `json:"output,omitempty"`
	Error  string           `json:"error,omitempty"`
}

var refactorCmd = &cobra.Command{
	Use:   "refactor <file>...",
	Short: "Request proposals from the model and apply them",
	Long: `Sends each file to the configured model, asking for type annotations,
docstrings and better names, and applies the answer. Only the signatures,
names and docstrings of matched definitions change; everything else is kept
byte for byte before the optional black/isort pass.

Several files are processed concurrently (see --jobs). Responses are cached,
so running again on unchanged code does not contact the model.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o := readOutputFlags(cmd)
		noFormat, _ := cmd.Flags().GetBool("no-format")
		noCache, _ := cmd.Flags().GetBool("no-cache")
		jobs, _ := cmd.Flags().GetInt("jobs")

		cfg := *appConfig
		if v, _ := cmd.Flags().GetString("provider"); v != "" {
			cfg.Provider = config.ProviderType(v)
		}
		if v, _ := cmd.Flags().GetString("model"); v != "" {
			cfg.Model = v
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if jobs <= 0 {
			jobs = cfg.Concurrency
		}

		provider, err := llm.FromConfig(&cfg)
		if err != nil {
			return fmt.Errorf("creating %s provider: %w", cfg.Provider, err)
		}

		var responses *cache.ResponseCache
		if cfg.CacheEnabled && !noCache {
			responses = openCache(&cfg)
			defer saveCache(responses, cfg.CacheFilePath())
		}

		svc := refactor.NewService(refactor.Options{
			Provider:  provider,
			Formatter: newFormatter(noFormat),
			Cache:     responses,
			Logger:    logger,
		})

		spinner := log.NewProgressSpinnerTo(cmd.ErrOrStderr(),
			fmt.Sprintf("Refactoring %d file(s) with %s...", len(args), cfg.Model))
		spinner.Start()
		results := svc.RefactorFiles(cmd.Context(), args, jobs)
		spinner.Stop()

		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
			}
		}

		if o.json {
			outputs := make([]fileOutput, 0, len(results))
			for _, r := range results {
				fo := fileOutput{File: r.Path, Output: r.Output}
				if r.Err != nil {
					fo.Error = r.Err.Error()
				}
				outputs = append(outputs, fo)
			}
			if err := printJSON(cmd.OutOrStdout(), outputs); err != nil {
				return err
			}
		} else {
			for _, r := range results {
				if r.Err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: %v\n", errStyle.Render("✗"), r.Path, r.Err)
					continue
				}
				if err := emit(cmd, o, r.Path, r.Original, r.Output); err != nil {
					return err
				}
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(results))
		}
		return nil
	},
}

// openCache loads the persisted response cache. An unreadable cache file is
// replaced on the next save.
func openCache(cfg *config.Config) *cache.ResponseCache {
	responses := cache.New(cache.Options{MaxEntries: cfg.CacheMaxEntries})
	if err := cache.LoadFromFile(responses, cfg.CacheFilePath()); err != nil {
		logger.Warn("ignoring response cache", "path", cfg.CacheFilePath(), "error", err)
		responses.Clear()
	}
	return responses
}

func saveCache(responses *cache.ResponseCache, path string) {
	if !responses.Dirty() {
		return
	}
	if err := cache.PersistToFile(responses, path); err != nil {
		logger.Warn("failed to save response cache", "path", path, "error", err)
		return
	}
	stats := responses.Stats()
	logger.Debug("response cache saved", "path", path, "entries", stats.Entries, "hits", stats.Hits, "misses", stats.Misses)
}

func init() {
	refactorCmd.Flags().String("provider", "", "Override the provider (openai or ollama)")
	refactorCmd.Flags().StringP("model", "m", "", "Override the model")
	refactorCmd.Flags().Bool("no-cache", false, "Neither read nor write the response cache")
	refactorCmd.Flags().IntP("jobs", "J", 0, "Files processed at once (default: concurrency from config)")
	addOutputFlags(refactorCmd)
}
