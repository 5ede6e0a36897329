package proposal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedResponse is returned when a model response is not valid JSON or
// lacks the keys needed to build proposals. It is fatal for the request.
var ErrMalformedResponse = errors.New("malformed model response")

// notation selects how string parameter entries are read.
type notation int

const (
	// delimited is "name:type[:default]".
	delimited notation = iota
	// signature is Python source, "name: type = default".
	signature
)

// compactItem is an entry of {"functions": [...]}.
type compactItem struct {
	Name       string          `json:"name"`
	NewName    string          `json:"new_name"`
	Args       json.RawMessage `json:"args"`
	Returns    string          `json:"returns"`
	ReturnType string          `json:"return_type"`
	Docstring  string          `json:"docstring"`
	Imports    json.RawMessage `json:"imports"`
}

// refactoredItem is an entry of {"refactored_functions": [...]}.
type refactoredItem struct {
	OriginalName     string          `json:"original_name"`
	NewName          string          `json:"new_name"`
	Arguments        json.RawMessage `json:"arguments"`
	ReturnType       string          `json:"return_type"`
	Docstring        string          `json:"docstring"`
	Imports          json.RawMessage `json:"imports"`
	ComplexityScore  *float64        `json:"complexity_score"`
	ReadabilityScore *float64        `json:"readability_score"`
}

// Decode adapts a raw model response into a Set. Three layouts are accepted:
//
//	{"functions": [{"name", "args", ...}], "imports": "..."}
//	{"refactored_functions": [{"original_name", "arguments", ...}], "code_feedback": "..."}
//	[{"original_name", "arguments", ...}, ...]
//
// Problems with individual parameter entries are recorded on the entries;
// only a response that cannot be read at all returns ErrMalformedResponse.
func Decode(data []byte) (*Set, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}

	if data[0] == '[' {
		var items []refactoredItem
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return decodeRefactored(items, &Set{})
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	set := &Set{}
	if raw, ok := top["code_feedback"]; ok {
		set.Feedback = decodeFeedback(raw)
	}
	if raw, ok := top["imports"]; ok {
		imports, err := decodeImports(raw)
		if err != nil {
			return nil, err
		}
		set.Imports = imports
	}

	if raw, ok := top["refactored_functions"]; ok {
		var items []refactoredItem
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%w: refactored_functions: %v", ErrMalformedResponse, err)
		}
		return decodeRefactored(items, set)
	}
	if raw, ok := top["functions"]; ok {
		var items []compactItem
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%w: functions: %v", ErrMalformedResponse, err)
		}
		return decodeCompact(items, set)
	}

	return nil, fmt.Errorf("%w: missing \"functions\" or \"refactored_functions\"", ErrMalformedResponse)
}

func decodeCompact(items []compactItem, set *Set) (*Set, error) {
	for i, item := range items {
		if strings.TrimSpace(item.Name) == "" {
			return nil, fmt.Errorf("%w: functions[%d] has no name", ErrMalformedResponse, i)
		}
		p := Proposal{
			Target:    strings.TrimSpace(item.Name),
			NewName:   strings.TrimSpace(item.NewName),
			Returns:   strings.TrimSpace(item.Returns),
			Docstring: item.Docstring,
		}
		if p.Returns == "" {
			p.Returns = strings.TrimSpace(item.ReturnType)
		}
		if err := decodeArgs(item.Args, delimited, &p); err != nil {
			return nil, fmt.Errorf("functions[%d]: %w", i, err)
		}
		imports, err := decodeImports(item.Imports)
		if err != nil {
			return nil, fmt.Errorf("functions[%d]: %w", i, err)
		}
		p.Imports = imports
		set.Proposals = append(set.Proposals, p)
	}
	return set, nil
}

func decodeRefactored(items []refactoredItem, set *Set) (*Set, error) {
	for i, item := range items {
		if strings.TrimSpace(item.OriginalName) == "" {
			return nil, fmt.Errorf("%w: refactored_functions[%d] has no original_name", ErrMalformedResponse, i)
		}
		p := Proposal{
			Target:           strings.TrimSpace(item.OriginalName),
			NewName:          strings.TrimSpace(item.NewName),
			Returns:          strings.TrimSpace(item.ReturnType),
			Docstring:        item.Docstring,
			ComplexityScore:  item.ComplexityScore,
			ReadabilityScore: item.ReadabilityScore,
		}
		if err := decodeArgs(item.Arguments, signature, &p); err != nil {
			return nil, fmt.Errorf("refactored_functions[%d]: %w", i, err)
		}
		imports, err := decodeImports(item.Imports)
		if err != nil {
			return nil, fmt.Errorf("refactored_functions[%d]: %w", i, err)
		}
		p.Imports = imports
		set.Proposals = append(set.Proposals, p)
	}
	return set, nil
}

// decodeArgs fills p.Params from a string, a list or a name->type object.
func decodeArgs(raw json.RawMessage, style notation, p *Proposal) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	p.HasParams = true

	switch raw[0] {
	case '"':
		var sig string
		if err := json.Unmarshal(raw, &sig); err != nil {
			return fmt.Errorf("%w: arguments: %v", ErrMalformedResponse, err)
		}
		entries, returns := SplitSignature(sig)
		if p.Returns == "" {
			p.Returns = returns
		}
		for _, entry := range entries {
			p.Params = append(p.Params, parseEntry(entry, style))
		}
		return nil
	case '[':
		var entries []json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			return fmt.Errorf("%w: arguments: %v", ErrMalformedResponse, err)
		}
		for _, entry := range entries {
			p.Params = append(p.Params, decodeListEntry(entry, style))
		}
		return nil
	case '{':
		pairs, err := orderedPairs(raw)
		if err != nil {
			return fmt.Errorf("%w: arguments: %v", ErrMalformedResponse, err)
		}
		p.Params = append(p.Params, pairs...)
		return nil
	}
	return fmt.Errorf("%w: arguments must be a string, list or object", ErrMalformedResponse)
}

// parseEntry reads one string entry. Compact entries that are clearly
// written as Python source ("a: int = 1") are read as such.
func parseEntry(entry string, style notation) ParamSpec {
	if style == delimited && (topLevelAssign(entry) < 0 || len(splitTopLevel(entry, ':')) > 2) {
		return ParseDelimited(entry)
	}
	return ParseSignatureParam(entry)
}

// decodeListEntry reads a list element: a string, or an object with
// name/type/default keys. Anything else is a shape error for that entry only.
func decodeListEntry(raw json.RawMessage, style notation) ParamSpec {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return parseEntry(text, style)
	}

	var obj struct {
		Name    string          `json:"name"`
		Type    string          `json:"type"`
		Default json.RawMessage `json:"default"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil || obj.Name == "" {
		return ParamSpec{
			Raw: string(raw),
			Err: fmt.Errorf("%w: unsupported argument entry %s", ErrSpecShape, string(raw)),
		}
	}
	spec := NamedSpec(obj.Name, obj.Type)
	if def := pythonLiteral(obj.Default); def != "" {
		spec = ParseSignatureParam(spec.Raw + " = " + def)
	}
	return spec
}

// pythonLiteral turns a JSON default into Python source. Strings are taken
// as source text; JSON literals map to their Python spelling.
func pythonLiteral(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	switch string(raw) {
	case "null":
		return ""
	case "true":
		return "True"
	case "false":
		return "False"
	}
	return string(raw)
}

// orderedPairs decodes a {"name": "type"} object keeping key order.
func orderedPairs(raw json.RawMessage) ([]ParamSpec, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	var specs []ParamSpec
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key %v", tok)
		}
		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		switch v := value.(type) {
		case nil:
			specs = append(specs, NamedSpec(name, ""))
		case string:
			specs = append(specs, NamedSpec(name, v))
		default:
			specs = append(specs, ParamSpec{
				Raw: name,
				Err: fmt.Errorf("%w: type of %q must be a string, got %T", ErrSpecShape, name, v),
			})
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return specs, nil
}

// decodeImports accepts a string of import statements or a list of them.
func decodeImports(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		return []string{text}, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%w: imports must be a string or a list of strings", ErrMalformedResponse)
	}
	return list, nil
}

// decodeFeedback accepts feedback as a string or a list of bullet strings.
func decodeFeedback(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return "- " + strings.Join(list, "\n- ")
	}
	return ""
}
