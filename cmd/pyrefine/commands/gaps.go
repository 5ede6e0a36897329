package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/l3aro/pyrefine/pkg/gaps"
	"github.com/l3aro/pyrefine/pkg/syntax"
)

type fileGaps struct {
	File  string     `json:"file"`
	Gaps  []gaps.Gap `json:"gaps"`
	Error string     `json:"error,omitempty"`
}

var gapsCmd = &cobra.Command{
	Use:   "gaps <file>...",
	Short: "List functions with missing type annotations",
	Long: `Reports every function and method whose parameters or return value lack a
type annotation. The implicit self/cls receiver of a method is never reported.
No model is contacted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		results := make([]fileGaps, 0, len(args))
		failed := 0
		for _, path := range args {
			res := fileGaps{File: path, Gaps: []gaps.Gap{}}
			found, err := collectGaps(path)
			if err != nil {
				res.Error = err.Error()
				failed++
				logger.Error("gap detection failed", "file", path, "error", err)
			} else if found != nil {
				res.Gaps = found
			}
			results = append(results, res)
		}

		if jsonOutput {
			if err := printJSON(cmd.OutOrStdout(), results); err != nil {
				return err
			}
		} else {
			for _, res := range results {
				if res.Error != "" {
					continue
				}
				renderGaps(cmd.OutOrStdout(), res.File, res.Gaps)
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d files could not be analyzed", failed, len(args))
		}
		return nil
	},
}

func collectGaps(path string) ([]gaps.Gap, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	prog, err := syntax.Parse(source)
	if err != nil {
		return nil, err
	}
	defer prog.Close()
	return gaps.Collect(prog), nil
}

func init() {
	gapsCmd.Flags().BoolP("json", "j", false, "Output as JSON")
}
