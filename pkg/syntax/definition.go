package syntax

import (
	"iter"
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
)

// ParamKind distinguishes the entries of a Python parameter list.
type ParamKind int

const (
	// Regular is a named positional-or-keyword (or keyword-only) parameter.
	Regular ParamKind = iota
	// VarPositional is *args.
	VarPositional
	// VarKeyword is **kwargs.
	VarKeyword
	// KeywordMarker is the bare "*" separator.
	KeywordMarker
	// PositionalMarker is the "/" separator.
	PositionalMarker
)

// Param is one entry of a parameter list.
type Param struct {
	Kind       ParamKind
	Name       string
	Annotation string
	Default    string
	HasDefault bool

	// Text is the verbatim source of a parsed parameter. When set it is
	// emitted unchanged.
	Text string
}

// IsMarker reports whether the parameter is a bare "*" or "/" separator.
func (p Param) IsMarker() bool {
	return p.Kind == KeywordMarker || p.Kind == PositionalMarker
}

// String renders the parameter as Python source.
func (p Param) String() string {
	if p.Text != "" {
		return p.Text
	}
	switch p.Kind {
	case KeywordMarker:
		return "*"
	case PositionalMarker:
		return "/"
	}

	var sb strings.Builder
	switch p.Kind {
	case VarPositional:
		sb.WriteString("*")
	case VarKeyword:
		sb.WriteString("**")
	}
	sb.WriteString(p.Name)
	if p.Annotation != "" {
		sb.WriteString(": ")
		sb.WriteString(p.Annotation)
	}
	if p.HasDefault {
		if p.Annotation != "" {
			sb.WriteString(" = ")
		} else {
			sb.WriteString("=")
		}
		sb.WriteString(p.Default)
	}
	return sb.String()
}

// Definition is a function or method definition found in a Program.
type Definition struct {
	Name    string
	Class   string
	Params  []Param
	Returns string
	IsAsync bool
	Line    int

	node       *sitter.Node
	nameNode   *sitter.Node
	paramsNode *sitter.Node
	returnNode *sitter.Node
	bodyNode   *sitter.Node
	source     []byte
}

// QualifiedName is "Class.name" for methods and "name" otherwise.
func (d *Definition) QualifiedName() string {
	if d.Class != "" {
		return d.Class + "." + d.Name
	}
	return d.Name
}

// InClass reports whether the definition sits directly in a class body.
func (d *Definition) InClass() bool {
	return d.Class != ""
}

// Receiver returns the implicit self/cls parameter of a method, or nil.
func (d *Definition) Receiver() *Param {
	if !d.InClass() || len(d.Params) == 0 {
		return nil
	}
	first := d.Params[0]
	if first.Kind != Regular || !IsReceiverName(first.Name) {
		return nil
	}
	return &first
}

// IsReceiverName reports whether name is a conventional receiver name.
func IsReceiverName(name string) bool {
	return name == "self" || name == "cls"
}

// Definitions yields every function definition in source order, depth first.
// The class context is the innermost class body the definition sits in; a
// function body resets it, so nested functions are never attributed to the
// class of their enclosing method.
func (p *Program) Definitions() iter.Seq[*Definition] {
	return func(yield func(*Definition) bool) {
		walkDefinitions(p.Root(), p.source, "", yield)
	}
}

func walkDefinitions(node *sitter.Node, source []byte, class string, yield func(*Definition) bool) bool {
	if node == nil {
		return true
	}

	switch node.Type() {
	case "function_definition":
		def := parseDefinition(node, source, class)
		if !yield(def) {
			return false
		}
		return walkDefinitions(def.bodyNode, source, "", yield)
	case "class_definition":
		name := nodeText(node.ChildByFieldName("name"), source)
		return walkDefinitions(node.ChildByFieldName("body"), source, name, yield)
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		if !walkDefinitions(node.Child(i), source, class, yield) {
			return false
		}
	}
	return true
}

// parseDefinition extracts a Definition from a function_definition node.
func parseDefinition(node *sitter.Node, source []byte, class string) *Definition {
	def := &Definition{
		Class:      class,
		Line:       int(node.StartPoint().Row) + 1,
		node:       node,
		nameNode:   node.ChildByFieldName("name"),
		paramsNode: node.ChildByFieldName("parameters"),
		returnNode: node.ChildByFieldName("return_type"),
		bodyNode:   node.ChildByFieldName("body"),
		source:     source,
	}
	def.Name = nodeText(def.nameNode, source)
	def.Returns = strings.TrimSpace(nodeText(def.returnNode, source))
	if first := node.Child(0); first != nil && first.Type() == "async" {
		def.IsAsync = true
	}
	if def.paramsNode != nil {
		def.Params = parseParams(def.paramsNode, source)
	}
	return def
}

// parseParams extracts the entries of a parameters node.
func parseParams(node *sitter.Node, source []byte) []Param {
	var params []Param
	for _, child := range namedChildren(node) {
		p := Param{Text: nodeText(child, source)}
		switch child.Type() {
		case "identifier":
			p.Name = p.Text
		case "typed_parameter":
			if first := child.NamedChild(0); first != nil {
				p.Kind, p.Name = splatName(first, source)
			}
			p.Annotation = nodeText(child.ChildByFieldName("type"), source)
		case "default_parameter":
			p.Name = nodeText(child.ChildByFieldName("name"), source)
			p.Default = nodeText(child.ChildByFieldName("value"), source)
			p.HasDefault = true
		case "typed_default_parameter":
			p.Name = nodeText(child.ChildByFieldName("name"), source)
			p.Annotation = nodeText(child.ChildByFieldName("type"), source)
			p.Default = nodeText(child.ChildByFieldName("value"), source)
			p.HasDefault = true
		case "list_splat_pattern", "dictionary_splat_pattern":
			p.Kind, p.Name = splatName(child, source)
		case "keyword_separator":
			p.Kind = KeywordMarker
		case "positional_separator":
			p.Kind = PositionalMarker
		default:
			p.Name = p.Text
		}
		params = append(params, p)
	}
	return params
}

// splatName resolves the kind and bare name of identifier, *args or **kwargs.
func splatName(node *sitter.Node, source []byte) (ParamKind, string) {
	kind := Regular
	switch node.Type() {
	case "list_splat_pattern":
		kind = VarPositional
	case "dictionary_splat_pattern":
		kind = VarKeyword
	default:
		return kind, nodeText(node, source)
	}
	for _, c := range namedChildren(node) {
		if c.Type() == "identifier" {
			return kind, nodeText(c, source)
		}
	}
	return kind, strings.TrimLeft(nodeText(node, source), "*")
}

var pythonKeywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
}

// IsIdentifier reports whether name is a valid Python identifier that is not
// a reserved keyword.
func IsIdentifier(name string) bool {
	if name == "" || pythonKeywords[name] {
		return false
	}
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}
