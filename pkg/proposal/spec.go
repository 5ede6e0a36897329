package proposal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/l3aro/pyrefine/pkg/syntax"
)

// ErrSpecShape marks a parameter entry that does not have the expected shape.
var ErrSpecShape = errors.New("malformed parameter spec")

// ParseDelimited parses the compact "name:type[:default]" notation. Colons
// nested in brackets or string literals are not delimiters. Any other number
// of fields is a shape error recorded on the spec.
func ParseDelimited(raw string) ParamSpec {
	spec := ParamSpec{Raw: raw}
	fields := splitTopLevel(raw, ':')
	switch len(fields) {
	case 3:
		spec.Default = strings.TrimSpace(fields[2])
		spec.HasDefault = spec.Default != ""
		fallthrough
	case 2:
		spec.Annotation = strings.TrimSpace(fields[1])
		fallthrough
	case 1:
		setName(&spec, fields[0])
	default:
		spec.Err = fmt.Errorf("%w: %q has %d fields, want name[:type[:default]]", ErrSpecShape, raw, len(fields))
	}
	return spec
}

// ParseSignatureParam parses one parameter written as Python source,
// "name[: type][ = default]", with an optional * or ** prefix.
func ParseSignatureParam(raw string) ParamSpec {
	spec := ParamSpec{Raw: raw}
	head := raw
	if i := topLevelAssign(raw); i >= 0 {
		head = raw[:i]
		spec.Default = strings.TrimSpace(raw[i+1:])
		spec.HasDefault = true
		if spec.Default == "" {
			spec.Err = fmt.Errorf("%w: %q has an empty default", ErrSpecShape, raw)
			return spec
		}
	}
	if i := indexTopLevel(head, ':'); i >= 0 {
		spec.Annotation = strings.TrimSpace(head[i+1:])
		head = head[:i]
	}
	setName(&spec, head)
	return spec
}

// NamedSpec builds a spec from a name and a type, as found in name->type mappings.
func NamedSpec(name, annotation string) ParamSpec {
	spec := ParamSpec{Raw: name, Annotation: strings.TrimSpace(annotation)}
	if spec.Annotation != "" {
		spec.Raw = name + ": " + spec.Annotation
	}
	setName(&spec, name)
	return spec
}

// SplitSignature splits a whole argument list such as
// "(a: int, b: str = 'x') -> bool" into its parameter entries and the
// return annotation, if any.
func SplitSignature(sig string) (entries []string, returns string) {
	sig = strings.TrimSpace(sig)
	if i := indexArrow(sig); i >= 0 {
		returns = strings.TrimSpace(sig[i+2:])
		sig = strings.TrimSpace(sig[:i])
	}
	if strings.HasPrefix(sig, "(") && closingParen(sig) == len(sig)-1 {
		sig = sig[1 : len(sig)-1]
	}
	for _, part := range splitTopLevel(sig, ',') {
		if part = strings.TrimSpace(part); part != "" {
			entries = append(entries, part)
		}
	}
	return entries, returns
}

// setName fills in kind and name from the leading field of a spec.
func setName(spec *ParamSpec, field string) {
	name := strings.TrimSpace(field)
	switch {
	case name == "*":
		spec.Kind = syntax.KeywordMarker
	case name == "/":
		spec.Kind = syntax.PositionalMarker
	case strings.HasPrefix(name, "**"):
		spec.Kind = syntax.VarKeyword
		name = strings.TrimSpace(name[2:])
	case strings.HasPrefix(name, "*"):
		spec.Kind = syntax.VarPositional
		name = strings.TrimSpace(name[1:])
	}

	if spec.Kind == syntax.KeywordMarker || spec.Kind == syntax.PositionalMarker {
		if spec.Annotation != "" || spec.HasDefault {
			spec.Err = fmt.Errorf("%w: separator %q cannot carry a type or default", ErrSpecShape, name)
		}
		return
	}
	if !syntax.IsIdentifier(name) {
		spec.Err = fmt.Errorf("%w: %q is not a valid parameter name", ErrSpecShape, name)
		return
	}
	if spec.Kind != syntax.Regular && spec.HasDefault {
		spec.Err = fmt.Errorf("%w: variadic parameter %q cannot have a default", ErrSpecShape, name)
		return
	}
	spec.Name = name
}

// scanTopLevel walks text tracking bracket depth and string literals, calling
// visit for every byte outside strings at depth zero.
func scanTopLevel(text string, visit func(i int) bool) {
	depth := 0
	var quote byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 && !visit(i) {
				return
			}
		}
	}
}

func splitTopLevel(text string, sep byte) []string {
	var parts []string
	start := 0
	scanTopLevel(text, func(i int) bool {
		if text[i] == sep {
			parts = append(parts, text[start:i])
			start = i + 1
		}
		return true
	})
	return append(parts, text[start:])
}

func indexTopLevel(text string, sep byte) int {
	found := -1
	scanTopLevel(text, func(i int) bool {
		if text[i] == sep {
			found = i
			return false
		}
		return true
	})
	return found
}

// topLevelAssign finds the "=" that introduces a default, ignoring
// comparison operators and the walrus operator.
func topLevelAssign(text string) int {
	found := -1
	scanTopLevel(text, func(i int) bool {
		if text[i] != '=' {
			return true
		}
		if i+1 < len(text) && text[i+1] == '=' {
			return true
		}
		if i > 0 && strings.IndexByte("=!<>:", text[i-1]) >= 0 {
			return true
		}
		found = i
		return false
	})
	return found
}

func indexArrow(text string) int {
	found := -1
	scanTopLevel(text, func(i int) bool {
		if text[i] == '-' && i+1 < len(text) && text[i+1] == '>' {
			found = i
			return false
		}
		return true
	})
	return found
}

// closingParen returns the index of the parenthesis closing text[0].
func closingParen(text string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
