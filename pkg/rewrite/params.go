package rewrite

import (
	"errors"
	"fmt"
	"strings"

	"github.com/l3aro/pyrefine/pkg/proposal"
	"github.com/l3aro/pyrefine/pkg/syntax"
)

var errSignature = errors.New("invalid parameter list")

// planParams builds the new parameter list for def. The receiver of a method
// stays at position zero. An entry that cannot be used leaves the parameter
// originally in its position. Every original parameter the proposal did not
// name follows the proposal's entries in its original order, along with the
// markers past the supplied positions. changed is false when the result
// renders exactly like the original list.
func (ps *pass) planParams(def *syntax.Definition, p *proposal.Proposal) ([]syntax.Param, bool, error) {
	var params []syntax.Param
	reserved := 0
	if recv := def.Receiver(); recv != nil {
		params = append(params, *recv)
		reserved = 1
	}

	seen := make(map[string]bool)
	for _, param := range params {
		seen[param.Name] = true
	}

	original := def.Params
	supplied := 0
	// keepOriginal fills the slot of a voided entry with the parameter
	// originally written there.
	keepOriginal := func() {
		slot := reserved + supplied
		if slot >= len(original) || original[slot].IsMarker() || seen[original[slot].Name] {
			return
		}
		seen[original[slot].Name] = true
		params = append(params, original[slot])
		supplied++
	}

	for _, spec := range p.Params {
		if spec.Err != nil {
			ps.diag(KindShape, def, spec.Raw, spec.Err.Error())
			keepOriginal()
			continue
		}
		if reserved > 0 && spec.Kind == syntax.Regular && syntax.IsReceiverName(spec.Name) {
			continue
		}

		param := syntax.Param{Kind: spec.Kind, Name: spec.Name}
		if spec.HasDefault {
			value, err := syntax.ParseExpression(spec.Default)
			if err != nil {
				return nil, false, fmt.Errorf("%w: %q in %q", ErrDefaultExpression, spec.Default, spec.Raw)
			}
			param.Default = value
			param.HasDefault = true
		}
		if spec.Annotation != "" {
			annotation, err := syntax.ParseExpression(spec.Annotation)
			if err != nil {
				ps.diag(KindAnnotation, def, spec.Raw, err.Error())
				keepOriginal()
				continue
			}
			param.Annotation = annotation
		}
		if !param.IsMarker() && seen[param.Name] {
			ps.diag(KindDuplicate, def, spec.Raw, fmt.Sprintf("parameter %q given twice", param.Name))
			continue
		}

		seen[param.Name] = true
		params = append(params, param)
		supplied++
	}

	start := reserved + supplied
	for i := reserved; i < len(original); i++ {
		param := original[i]
		if param.IsMarker() {
			if i >= start {
				params = append(params, param)
			}
			continue
		}
		if seen[param.Name] {
			continue
		}
		seen[param.Name] = true
		params = append(params, param)
	}

	if err := validateSignature(params); err != nil {
		ps.diag(KindSignature, def, "", err.Error())
		return original, false, nil
	}

	return params, render(params) != render(original), nil
}

func render(params []syntax.Param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.String()
	}
	return strings.Join(parts, ", ")
}

// validateSignature checks the ordering rules of a Python parameter list.
func validateSignature(params []syntax.Param) error {
	names := make(map[string]bool)
	slash, star := -1, -1
	sawDefault := false

	for i, p := range params {
		if !p.IsMarker() {
			if names[p.Name] {
				return fmt.Errorf("%w: duplicate parameter %q", errSignature, p.Name)
			}
			names[p.Name] = true
		}

		switch p.Kind {
		case syntax.PositionalMarker:
			if slash >= 0 {
				return fmt.Errorf("%w: more than one /", errSignature)
			}
			if i == 0 {
				return fmt.Errorf("%w: / cannot come first", errSignature)
			}
			if star >= 0 {
				return fmt.Errorf("%w: / must come before *", errSignature)
			}
			slash = i
		case syntax.KeywordMarker, syntax.VarPositional:
			if star >= 0 {
				return fmt.Errorf("%w: more than one * or *args", errSignature)
			}
			if p.Kind == syntax.KeywordMarker {
				next := i + 1
				if next >= len(params) || params[next].Kind != syntax.Regular {
					return fmt.Errorf("%w: bare * must be followed by a named parameter", errSignature)
				}
			}
			star = i
		case syntax.VarKeyword:
			if i != len(params)-1 {
				return fmt.Errorf("%w: **%s must be last", errSignature, p.Name)
			}
		case syntax.Regular:
			if star >= 0 {
				continue
			}
			if p.HasDefault {
				sawDefault = true
			} else if sawDefault {
				return fmt.Errorf("%w: %q without a default follows a parameter with one", errSignature, p.Name)
			}
		}
	}
	return nil
}
