package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/pyrefine/internal/config"
	"github.com/l3aro/pyrefine/internal/log"
	"github.com/l3aro/pyrefine/pkg/format"
)

var (
	configFlag  string
	verboseFlag bool
	logJSONFlag bool

	// Set by the root PersistentPreRunE for every command except init.
	appConfig     *config.Config
	appConfigPath string
	logger        log.Logger = log.Nop()
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "pyrefine",
	Short: "pyrefine - model-assisted refactoring of Python source",
	Long: `pyrefine asks a language model to add type annotations, docstrings and
better names to the functions of Python files, then applies the proposals to
the source without disturbing anything else.

Commands:
  refactor    Request proposals from the model and apply them
  apply       Apply a saved proposal file to a source file
  gaps        List functions with missing type annotations
  cache       Inspect or clear the response cache
  doctor      Check configuration, provider and formatters
  init        Create a configuration file interactively

Use "pyrefine [command] --help" for more information about a command.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations["config"] == "skip" {
			return nil
		}
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		appConfig, appConfigPath = cfg, path

		level := log.ParseLevel(cfg.LogLevel)
		if verboseFlag {
			level = log.DebugLevel
		}
		logger = log.New(log.LoggerConfig{
			Level:      level,
			JSONOutput: cfg.LogJSON || logJSONFlag,
			Output:     cmd.ErrOrStderr(),
		})
		logger.Debug("configuration loaded", "path", path, "provider", cfg.Provider, "model", cfg.Model)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

// loadConfig honours --config, then the usual search order.
func loadConfig() (*config.Config, string, error) {
	if configFlag != "" {
		cfg, err := config.LoadFromFile(configFlag)
		if err != nil {
			return nil, "", fmt.Errorf("loading config: %w", err)
		}
		return cfg, configFlag, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, config.EffectiveFilePath(), nil
}

// newFormatter builds the reformat pass from config unless disabled.
func newFormatter(disabled bool) format.Formatter {
	if disabled || !appConfig.FormatEnabled || len(appConfig.FormatCommands) == 0 {
		return format.Nop{}
	}
	return format.NewExecFormatter(appConfig.FormatCommands, appConfig.FormatTimeout, logger)
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default: ./.pyrefine/config.yaml, then ~/.pyrefine/config.yaml)")
	RootCmd.PersistentFlags().BoolVar(&verboseFlag, "verbose", false, "Enable debug logging")
	RootCmd.PersistentFlags().BoolVar(&logJSONFlag, "log-json", false, "Write logs as JSON lines")

	RootCmd.AddCommand(refactorCmd)
	RootCmd.AddCommand(applyCmd)
	RootCmd.AddCommand(gapsCmd)
	RootCmd.AddCommand(cacheCmd)
}
