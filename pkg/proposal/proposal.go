// Package proposal holds the normalized form of model-suggested edits and the
// adapter that decodes raw model responses into it.
package proposal

import (
	"encoding/json"
	"strings"

	"github.com/l3aro/pyrefine/pkg/syntax"
)

// ParamSpec is one proposed parameter. Err is set when the entry could not be
// understood; such entries are skipped by the rewriter.
type ParamSpec struct {
	Raw        string
	Kind       syntax.ParamKind
	Name       string
	Annotation string
	Default    string
	HasDefault bool
	Err        error
}

// MarshalJSON reports the entry as the model wrote it.
func (s ParamSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Raw)
}

// Proposal is a suggested edit for the definition named Target, which is a
// qualified name ("Class.method" or "function").
type Proposal struct {
	Target           string      `json:"original_name"`
	NewName          string      `json:"new_name,omitempty"`
	Params           []ParamSpec `json:"arguments,omitempty"`
	HasParams        bool        `json:"-"`
	Returns          string      `json:"return_type,omitempty"`
	Docstring        string      `json:"docstring,omitempty"`
	Imports          []string    `json:"imports,omitempty"`
	ComplexityScore  *float64    `json:"complexity_score,omitempty"`
	ReadabilityScore *float64    `json:"readability_score,omitempty"`
}

// Set is a decoded model response.
type Set struct {
	Proposals []Proposal `json:"refactored_functions"`
	Imports   []string   `json:"imports,omitempty"`
	Feedback  string     `json:"code_feedback,omitempty"`
}

// Index maps qualified names to proposals. A later proposal for the same
// name replaces an earlier one.
func (s *Set) Index() map[string]*Proposal {
	index := make(map[string]*Proposal, len(s.Proposals))
	for i := range s.Proposals {
		index[s.Proposals[i].Target] = &s.Proposals[i]
	}
	return index
}

// AllImports returns the response-level imports followed by per-proposal
// imports, one statement per entry, without duplicates.
func (s *Set) AllImports() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(text string) {
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || seen[line] {
				continue
			}
			seen[line] = true
			out = append(out, line)
		}
	}
	for _, imp := range s.Imports {
		add(imp)
	}
	for _, p := range s.Proposals {
		for _, imp := range p.Imports {
			add(imp)
		}
	}
	return out
}
