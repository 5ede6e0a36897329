// Package gaps reports functions and methods whose parameters or return value
// lack type annotations.
package gaps

import (
	"iter"

	"github.com/l3aro/pyrefine/pkg/syntax"
)

// Gap lists the missing annotations of one definition.
type Gap struct {
	QualifiedName string   `json:"qualified_name"`
	MissingParams []string `json:"missing_params"`
	MissingReturn bool     `json:"missing_return"`
	Line          int      `json:"line"`
}

// Detect returns a lazy sequence over the definitions of prog that have at
// least one missing annotation. The sequence can be ranged over once; later
// iterations yield nothing. prog must stay open until iteration finishes.
//
// In a class body the first parameter is the implicit receiver and is never
// reported. Bare "*" and "/" markers carry no annotation and are skipped.
func Detect(prog *syntax.Program) iter.Seq[Gap] {
	consumed := false
	return func(yield func(Gap) bool) {
		if consumed {
			return
		}
		consumed = true

		for def := range prog.Definitions() {
			gap, ok := inspect(def)
			if !ok {
				continue
			}
			if !yield(gap) {
				return
			}
		}
	}
}

// Collect drains Detect into a slice.
func Collect(prog *syntax.Program) []Gap {
	var out []Gap
	for gap := range Detect(prog) {
		out = append(out, gap)
	}
	return out
}

func inspect(def *syntax.Definition) (Gap, bool) {
	gap := Gap{
		QualifiedName: def.QualifiedName(),
		MissingReturn: def.Returns == "",
		Line:          def.Line,
	}

	params := def.Params
	if def.InClass() && len(params) > 0 {
		params = params[1:]
	}
	for _, p := range params {
		if p.IsMarker() || p.Annotation != "" {
			continue
		}
		gap.MissingParams = append(gap.MissingParams, displayName(p))
	}

	return gap, gap.MissingReturn || len(gap.MissingParams) > 0
}

func displayName(p syntax.Param) string {
	switch p.Kind {
	case syntax.VarPositional:
		return "*" + p.Name
	case syntax.VarKeyword:
		return "**" + p.Name
	}
	return p.Name
}
