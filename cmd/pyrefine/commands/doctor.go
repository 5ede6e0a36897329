package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/l3aro/pyrefine/internal/healthcheck"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, provider and formatters",
	Long: `Checks the configuration, verifies that the model provider is reachable
and reports which formatter commands are installed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		result, err := healthcheck.Check(cmd.Context(), appConfig, appConfigPath, healthcheck.Options{})
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}

		if jsonOutput {
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
		} else {
			displayDoctorResult(cmd.OutOrStdout(), result)
		}

		if !result.Healthy() {
			return fmt.Errorf("health check failed: provider %s is not accessible", result.Provider.Provider)
		}
		return nil
	},
}

func displayDoctorResult(w io.Writer, result *healthcheck.Result) {
	if result.ConfigPath == "" {
		fmt.Fprintln(w, "Using config: defaults and environment")
	} else {
		fmt.Fprintf(w, "Using config: %s (%s)\n", result.ConfigPath, result.ConfigScope)
	}

	fmt.Fprintln(w, titleStyle.Render("\nProvider:"))
	fmt.Fprintf(w, "  Provider: %s\n", result.Provider.Provider)
	fmt.Fprintf(w, "  Model: %s\n", result.Provider.Model)
	if result.Provider.URL != "" {
		fmt.Fprintf(w, "  URL: %s\n", result.Provider.URL)
	}
	printStatus(w, result.Provider.Status, result.Provider.Error)

	fmt.Fprintln(w, titleStyle.Render("\nFormatters:"))
	if len(result.Formatters) == 0 {
		fmt.Fprintln(w, "  disabled")
	}
	for _, tool := range result.Formatters {
		fmt.Fprintf(w, "  %s %s", formatStatusIcon(tool.Status), tool.Command)
		if tool.Path != "" {
			fmt.Fprintf(w, " (%s)", tool.Path)
		} else {
			fmt.Fprint(w, warnStyle.Render(" not installed, output stays unformatted"))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, titleStyle.Render("\nResponse cache:"))
	if !result.Cache.Enabled {
		fmt.Fprintln(w, "  disabled")
		return
	}
	fmt.Fprintf(w, "  Path: %s\n", result.Cache.Path)
	if result.Cache.Exists {
		fmt.Fprintf(w, "  Size: %d bytes\n", result.Cache.Size)
	} else {
		fmt.Fprintln(w, "  empty")
	}
}

func printStatus(w io.Writer, status string, errMsg string) {
	fmt.Fprintf(w, "  Status: %s %s\n", formatStatusIcon(status), status)
	if errMsg != "" && status == healthcheck.StatusError {
		fmt.Fprintf(w, "  Error: %s\n", errStyle.Render(errMsg))
	}
}

func formatStatusIcon(status string) string {
	switch status {
	case healthcheck.StatusReady:
		return okStyle.Render("✓")
	case healthcheck.StatusMissing:
		return warnStyle.Render("◐")
	case healthcheck.StatusError:
		return errStyle.Render("✗")
	default:
		return "?"
	}
}

func init() {
	doctorCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(doctorCmd)
}
