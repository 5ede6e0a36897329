// Package rewrite applies edit proposals to the function and method
// definitions of a parsed program and serializes the result.
package rewrite

import (
	"errors"
	"fmt"
	"strings"

	"github.com/l3aro/pyrefine/internal/log"
	"github.com/l3aro/pyrefine/pkg/proposal"
	"github.com/l3aro/pyrefine/pkg/syntax"
)

// ErrDefaultExpression is returned, wrapped in a DefinitionError, when a
// proposed default value does not parse. The definition is left as written.
var ErrDefaultExpression = errors.New("default value does not parse")

// DiagnosticKind classifies a recovered problem with a proposal.
type DiagnosticKind string

const (
	KindShape      DiagnosticKind = "shape"
	KindAnnotation DiagnosticKind = "annotation"
	KindDuplicate  DiagnosticKind = "duplicate"
	KindSignature  DiagnosticKind = "signature"
	KindName       DiagnosticKind = "name"
	KindReturn     DiagnosticKind = "return"
	KindImport     DiagnosticKind = "import"
)

// Diagnostic records a proposal entry that was skipped.
type Diagnostic struct {
	Kind          DiagnosticKind `json:"kind"`
	QualifiedName string         `json:"qualified_name,omitempty"`
	Entry         string         `json:"entry,omitempty"`
	Message       string         `json:"message"`
}

func (d Diagnostic) String() string {
	if d.QualifiedName == "" {
		return fmt.Sprintf("%s: %s", d.Kind, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", d.QualifiedName, d.Kind, d.Message)
}

// DefinitionError reports a definition whose proposal was rejected as a whole.
type DefinitionError struct {
	QualifiedName string
	Line          int
	Err           error
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("%s (line %d): %v", e.QualifiedName, e.Line, e.Err)
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one rewrite pass.
type Result struct {
	// Source is the rewritten program text.
	Source []byte
	// Matched holds the proposals that named at least one real definition.
	Matched []proposal.Proposal
	// Diagnostics lists entries skipped while applying proposals.
	Diagnostics []Diagnostic
	// Errors lists definitions whose proposal was rejected entirely.
	Errors []error
}

// Err joins the definition errors, or returns nil.
func (r *Result) Err() error {
	return errors.Join(r.Errors...)
}

// Rewriter applies a proposal set to programs. It holds no per-pass state
// and can be shared.
type Rewriter struct {
	set    *proposal.Set
	index  map[string]*proposal.Proposal
	logger log.Logger
}

// New creates a Rewriter for set. A nil logger discards output.
func New(set *proposal.Set, logger log.Logger) *Rewriter {
	if set == nil {
		set = &proposal.Set{}
	}
	return &Rewriter{
		set:    set,
		index:  set.Index(),
		logger: log.OrNop(logger),
	}
}

// pass carries the state of one traversal.
type pass struct {
	r       *Rewriter
	planned []plannedEdits
	matched map[*proposal.Proposal]bool
	result  *Result
}

// plannedEdits holds the edits computed for one definition.
type plannedEdits struct {
	def   *syntax.Definition
	edits []syntax.Edit
}

// Rewrite walks every definition of prog once, applies the matching
// proposal, and serializes the edited program. Problems with a single
// definition never stop the others from being rewritten: a definition whose
// edits would leave the file unparsable is reported with ErrRoundTrip and
// left as written. The only error returned is a failure to serialize.
func (r *Rewriter) Rewrite(prog *syntax.Program) (*Result, error) {
	ps := &pass{
		r:       r,
		matched: make(map[*proposal.Proposal]bool),
		result:  &Result{},
	}

	for def := range prog.Definitions() {
		p, ok := r.index[def.QualifiedName()]
		if !ok {
			continue
		}
		ps.matched[p] = true
		edits, err := ps.plan(def, p)
		if err != nil {
			ps.reject(def, err)
			continue
		}
		if len(edits) > 0 {
			ps.planned = append(ps.planned, plannedEdits{def: def, edits: edits})
		}
	}

	source, err := ps.serialize(prog)
	if err != nil {
		return nil, fmt.Errorf("serializing rewritten source: %w", err)
	}
	ps.result.Source = source

	for i := range r.set.Proposals {
		if ps.matched[&r.set.Proposals[i]] {
			ps.result.Matched = append(ps.result.Matched, r.set.Proposals[i])
		}
	}

	r.logger.Debug("rewrite complete",
		"rewritten", len(ps.planned),
		"matched", len(ps.result.Matched),
		"diagnostics", len(ps.result.Diagnostics),
		"errors", len(ps.result.Errors))
	return ps.result, nil
}

// serialize applies the planned edits. When the combined output does not
// re-parse, each definition's edits are tried alone and the ones that break
// the file are rejected before the rest are applied.
func (ps *pass) serialize(prog *syntax.Program) ([]byte, error) {
	source, err := prog.Serialize(flatten(ps.planned))
	if err == nil || !errors.Is(err, syntax.ErrRoundTrip) {
		return source, err
	}

	var kept []plannedEdits
	for _, pe := range ps.planned {
		if _, err := prog.Serialize(pe.edits); err != nil {
			ps.reject(pe.def, err)
			continue
		}
		kept = append(kept, pe)
	}
	ps.planned = kept
	return prog.Serialize(flatten(kept))
}

func flatten(planned []plannedEdits) []syntax.Edit {
	var edits []syntax.Edit
	for _, pe := range planned {
		edits = append(edits, pe.edits...)
	}
	return edits
}

// reject records a definition whose proposal is dropped as a whole.
func (ps *pass) reject(def *syntax.Definition, err error) {
	derr := &DefinitionError{QualifiedName: def.QualifiedName(), Line: def.Line, Err: err}
	ps.r.logger.Error("proposal rejected", "function", derr.QualifiedName, "line", derr.Line, "error", err)
	ps.result.Errors = append(ps.result.Errors, derr)
}

// diag records and logs a skipped entry.
func (ps *pass) diag(kind DiagnosticKind, def *syntax.Definition, entry, msg string) {
	d := Diagnostic{Kind: kind, Entry: entry, Message: msg}
	if def != nil {
		d.QualifiedName = def.QualifiedName()
	}
	ps.result.Diagnostics = append(ps.result.Diagnostics, d)
	ps.r.logger.Warn("skipping proposal entry", "function", d.QualifiedName, "kind", string(kind), "entry", entry, "reason", msg)
}

// plan computes the edits for one definition. A returned error means the
// whole proposal is rejected and no edit for def may be applied.
func (ps *pass) plan(def *syntax.Definition, p *proposal.Proposal) ([]syntax.Edit, error) {
	var edits []syntax.Edit

	if p.HasParams {
		params, changed, err := ps.planParams(def, p)
		if err != nil {
			return nil, err
		}
		if changed {
			edits = append(edits, def.ParamsEdit(params))
		}
	}

	if p.NewName != "" && p.NewName != def.Name {
		if syntax.IsIdentifier(p.NewName) {
			edits = append(edits, def.NameEdit(p.NewName))
		} else {
			ps.diag(KindName, def, p.NewName, fmt.Sprintf("%q is not a valid identifier", p.NewName))
		}
	}

	if p.Returns != "" {
		annotation, err := syntax.ParseExpression(p.Returns)
		switch {
		case err != nil:
			ps.diag(KindReturn, def, p.Returns, err.Error())
		case annotation != def.Returns:
			edits = append(edits, def.ReturnEdit(annotation))
		}
	}

	if strings.TrimSpace(p.Docstring) != "" {
		edits = append(edits, def.DocstringEdit(p.Docstring))
	}

	return edits, nil
}
