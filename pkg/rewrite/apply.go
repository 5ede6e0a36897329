package rewrite

import (
	"bytes"
	"strings"

	"github.com/l3aro/pyrefine/internal/log"
	"github.com/l3aro/pyrefine/pkg/proposal"
	"github.com/l3aro/pyrefine/pkg/syntax"
)

// Apply rewrites source with set. Proposed imports are inserted below the
// module header (shebang, encoding declaration, docstring and __future__
// imports) before the rewrite, so they take part in the same pass and come
// out as ordinary top-level statements. An import that does not parse, or
// whose line already appears in the source, is skipped.
//
// The returned error is a syntax error in source, or a failure to serialize.
// Per-definition problems are reported on the Result.
func Apply(source []byte, set *proposal.Set, logger log.Logger) (*Result, error) {
	logger = log.OrNop(logger)
	if set == nil {
		set = &proposal.Set{}
	}

	prog, err := syntax.Parse(source)
	if err != nil {
		return nil, err
	}

	imports, diags := planImports(source, set.AllImports(), logger)
	if len(imports) > 0 {
		source = insertLines(source, prog.HeaderEnd(), imports)
		prog.Close()
		if prog, err = syntax.Parse(source); err != nil {
			return nil, err
		}
	}
	defer prog.Close()

	result, err := New(set, logger).Rewrite(prog)
	if err != nil {
		return nil, err
	}
	result.Diagnostics = append(diags, result.Diagnostics...)
	return result, nil
}

// insertLines returns a copy of source with lines inserted at offset at,
// which starts a line or is the end of the source.
func insertLines(source []byte, at uint32, lines []byte) []byte {
	out := make([]byte, 0, len(source)+len(lines)+1)
	out = append(out, source[:at]...)
	if at > 0 && source[at-1] != '\n' {
		out = append(out, '\n')
	}
	out = append(out, lines...)
	return append(out, source[at:]...)
}

// planImports returns the text to insert for imports, one per line.
func planImports(source []byte, imports []string, logger log.Logger) ([]byte, []Diagnostic) {
	if len(imports) == 0 {
		return nil, nil
	}

	present := make(map[string]bool)
	for _, line := range strings.Split(string(source), "\n") {
		present[strings.TrimSpace(line)] = true
	}

	var buf bytes.Buffer
	var diags []Diagnostic
	for _, imp := range imports {
		stmt, err := syntax.ParseImport(imp)
		if err != nil {
			d := Diagnostic{Kind: KindImport, Entry: imp, Message: err.Error()}
			diags = append(diags, d)
			logger.Warn("skipping import", "import", imp, "reason", err)
			continue
		}
		if present[stmt] {
			logger.Debug("import already present", "import", stmt)
			continue
		}
		present[stmt] = true
		buf.WriteString(stmt)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), diags
}
