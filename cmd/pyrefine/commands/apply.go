package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/l3aro/pyrefine/pkg/proposal"
	"github.com/l3aro/pyrefine/pkg/refactor"
)

// outputFlags selects how a refactored file is emitted.
type outputFlags struct {
	json  bool
	diff  bool
	write bool
}

func readOutputFlags(cmd *cobra.Command) outputFlags {
	var o outputFlags
	o.json, _ = cmd.Flags().GetBool("json")
	o.diff, _ = cmd.Flags().GetBool("diff")
	o.write, _ = cmd.Flags().GetBool("write")
	return o
}

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false, "Output as JSON")
	cmd.Flags().BoolP("diff", "d", false, "Print a unified diff instead of the code")
	cmd.Flags().BoolP("write", "w", false, "Write the result back to the source file")
	cmd.Flags().Bool("no-format", false, "Skip the black/isort reformat pass")
}

// emit writes one result in text mode: the code, a diff or the file itself,
// followed by a report on stderr.
func emit(cmd *cobra.Command, o outputFlags, path string, original []byte, out *refactor.Output) error {
	stdout := cmd.OutOrStdout()
	switch {
	case o.write:
		if out.ReformattedCode != string(original) {
			if err := writeFile(path, []byte(out.ReformattedCode)); err != nil {
				return err
			}
			logger.Info("file updated", "file", path)
		}
	case o.diff:
		diff, err := unifiedDiff(path, original, []byte(out.ReformattedCode))
		if err != nil {
			return fmt.Errorf("computing diff: %w", err)
		}
		fmt.Fprint(stdout, diff)
	default:
		fmt.Fprint(stdout, out.ReformattedCode)
	}
	renderReport(cmd.ErrOrStderr(), path, out)
	return nil
}

var applyCmd = &cobra.Command{
	Use:   "apply <file> --proposals <file|->",
	Short: "Apply a saved proposal file to a source file",
	Long: `Applies a model response saved as JSON to a Python file without contacting
the model. Both response shapes are accepted: {"refactored_functions": [...]}
and {"functions": [...]}. Use "-" to read the proposals from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		proposalsPath, _ := cmd.Flags().GetString("proposals")
		noFormat, _ := cmd.Flags().GetBool("no-format")
		o := readOutputFlags(cmd)

		data, err := readProposals(cmd.InOrStdin(), proposalsPath)
		if err != nil {
			return err
		}
		set, err := proposal.Decode(data)
		if err != nil {
			return err
		}

		source, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		svc := refactor.NewService(refactor.Options{
			Formatter: newFormatter(noFormat),
			Logger:    logger,
		})
		out, err := svc.ApplySet(cmd.Context(), source, set)
		if err != nil {
			return err
		}

		if o.json {
			return printJSON(cmd.OutOrStdout(), out)
		}
		return emit(cmd, o, path, source, out)
	},
}

func readProposals(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading proposals from stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading proposals: %w", err)
	}
	return data, nil
}

func init() {
	applyCmd.Flags().StringP("proposals", "p", "", "Proposal JSON file, or - for stdin")
	_ = applyCmd.MarkFlagRequired("proposals")
	addOutputFlags(applyCmd)
}
