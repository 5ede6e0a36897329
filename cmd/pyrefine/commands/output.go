package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/l3aro/pyrefine/pkg/gaps"
	"github.com/l3aro/pyrefine/pkg/proposal"
	"github.com/l3aro/pyrefine/pkg/refactor"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	nameStyle  = lipgloss.NewStyle().Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// unifiedDiff renders a git-style diff of one file. It returns "" when the
// contents are equal.
func unifiedDiff(path string, before, after []byte) (string, error) {
	if string(before) == string(after) {
		return "", nil
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  3,
	})
}

// writeFile replaces path with data, keeping its permissions.
func writeFile(path string, data []byte) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// renderReport writes the human-readable summary of one refactored file.
func renderReport(w io.Writer, path string, out *refactor.Output) {
	title := path
	if out.Cached {
		title += dimStyle.Render(" (cached response)")
	}
	fmt.Fprintln(w, titleStyle.Render(title))

	if len(out.RefactoredFunctions) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  no proposals matched a definition"))
	}
	for _, p := range out.RefactoredFunctions {
		fmt.Fprintf(w, "  %s\n", describeProposal(p))
	}

	for _, d := range out.Diagnostics {
		fmt.Fprintf(w, "  %s %s\n", warnStyle.Render("!"), d.String())
	}
	for _, e := range out.Errors {
		fmt.Fprintf(w, "  %s %s\n", errStyle.Render("✗"), e)
	}

	if out.CodeFeedback != "" {
		fmt.Fprintln(w, nameStyle.Render("  Feedback:"))
		for _, line := range strings.Split(out.CodeFeedback, "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
}

func describeProposal(p proposal.Proposal) string {
	var sb strings.Builder
	sb.WriteString(okStyle.Render("✓") + " " + nameStyle.Render(p.Target))
	if p.NewName != "" {
		sb.WriteString(" → " + p.NewName)
	}

	var scores []string
	if p.ComplexityScore != nil {
		scores = append(scores, fmt.Sprintf("complexity %.2f", *p.ComplexityScore))
	}
	if p.ReadabilityScore != nil {
		scores = append(scores, fmt.Sprintf("readability %.2f", *p.ReadabilityScore))
	}
	if len(scores) > 0 {
		sb.WriteString(dimStyle.Render(" (" + strings.Join(scores, ", ") + ")"))
	}
	return sb.String()
}

// renderGaps writes the missing annotations of one file.
func renderGaps(w io.Writer, path string, found []gaps.Gap) {
	fmt.Fprintln(w, titleStyle.Render(path))
	if len(found) == 0 {
		fmt.Fprintln(w, okStyle.Render("  fully annotated"))
		return
	}
	for _, g := range found {
		var missing []string
		if len(g.MissingParams) > 0 {
			missing = append(missing, "arguments "+strings.Join(g.MissingParams, ", "))
		}
		if g.MissingReturn {
			missing = append(missing, "return type")
		}
		fmt.Fprintf(w, "  %s %s %s\n",
			dimStyle.Render(fmt.Sprintf("%4d", g.Line)),
			nameStyle.Render(g.QualifiedName),
			warnStyle.Render(strings.Join(missing, "; ")))
	}
}
