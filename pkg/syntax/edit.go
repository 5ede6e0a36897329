package syntax

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// ErrOverlappingEdits is returned by Serialize when two edits touch the same bytes.
var ErrOverlappingEdits = errors.New("overlapping edits")

// Edit replaces source[Start:End] with Text. Start == End is an insertion.
type Edit struct {
	Start uint32
	End   uint32
	Text  string
}

// NameEdit renames the definition.
func (d *Definition) NameEdit(name string) Edit {
	return replaceNode(d.nameNode, name)
}

// ParamsEdit replaces the whole parenthesised parameter list.
func (d *Definition) ParamsEdit(params []Param) Edit {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.String()
	}
	return replaceNode(d.paramsNode, "("+strings.Join(parts, ", ")+")")
}

// ReturnEdit sets the return annotation, adding "-> T" when there is none.
func (d *Definition) ReturnEdit(annotation string) Edit {
	if d.returnNode != nil {
		return replaceNode(d.returnNode, annotation)
	}
	end := d.paramsNode.EndByte()
	return Edit{Start: end, End: end, Text: " -> " + annotation}
}

// DocstringEdit inserts a docstring statement as the first statement of the
// body. An existing docstring is left in place. A body written on the same
// line as the colon is moved onto its own indented line.
func (d *Definition) DocstringEdit(text string) Edit {
	var first *sitter.Node
	if d.bodyNode != nil {
		if stmts := namedChildren(d.bodyNode); len(stmts) > 0 {
			first = stmts[0]
		}
	}
	colon := d.colonNode()
	if first == nil || colon == nil {
		// Parse rejects empty bodies, so this only happens without a colon token.
		end := d.node.EndByte()
		if colon != nil {
			end = colon.EndByte()
		}
		indent := lineIndent(d.source, d.node.StartByte()) + "    "
		return Edit{Start: end, End: end, Text: "\n" + indent + DocstringLiteral(text, indent)}
	}

	if first.StartPoint().Row > colon.StartPoint().Row {
		indent := lineIndent(d.source, first.StartByte())
		start := first.StartByte()
		return Edit{Start: start, End: start, Text: DocstringLiteral(text, indent) + "\n" + indent}
	}

	indent := lineIndent(d.source, d.node.StartByte()) + "    "
	return Edit{
		Start: colon.EndByte(),
		End:   first.StartByte(),
		Text:  "\n" + indent + DocstringLiteral(text, indent) + "\n" + indent,
	}
}

// colonNode returns the ":" token that opens the body.
func (d *Definition) colonNode() *sitter.Node {
	var colon *sitter.Node
	for i := 0; i < int(d.node.ChildCount()); i++ {
		child := d.node.Child(i)
		if child == nil {
			continue
		}
		if child.Type() == ":" {
			colon = child
		}
		if d.bodyNode != nil && child.StartByte() >= d.bodyNode.StartByte() {
			break
		}
	}
	return colon
}

func replaceNode(node *sitter.Node, text string) Edit {
	return Edit{Start: node.StartByte(), End: node.EndByte(), Text: text}
}

// lineIndent returns the leading whitespace of the line containing pos.
func lineIndent(source []byte, pos uint32) string {
	if int(pos) > len(source) {
		pos = uint32(len(source))
	}
	start := bytes.LastIndexByte(source[:pos], '\n') + 1
	end := start
	for end < int(pos) && (source[end] == ' ' || source[end] == '\t') {
		end++
	}
	return string(source[start:end])
}

// DocstringLiteral renders text as a triple-quoted string literal. Lines after
// the first are indented so the literal sits inside a body at indent.
func DocstringLiteral(text, indent string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, `\`, `\\`)
	text = strings.ReplaceAll(text, `"""`, `\"\"\"`)
	if strings.HasSuffix(text, `"`) && !escaped(text, len(text)-1) {
		text = text[:len(text)-1] + `\"`
	}

	lines := strings.Split(text, "\n")
	if len(lines) == 1 {
		return `"""` + text + `"""`
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			lines[i] = ""
			continue
		}
		lines[i] = indent + strings.TrimLeft(lines[i], " \t")
	}
	return `"""` + strings.Join(lines, "\n") + "\n" + indent + `"""`
}

// escaped reports whether text[i] is preceded by an odd number of backslashes.
func escaped(text string, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && text[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}

// Serialize applies edits to the program source and returns the new text.
// The result is re-parsed; output that no longer parses is rejected with
// ErrRoundTrip so corrupted code is never returned.
func (p *Program) Serialize(edits []Edit) ([]byte, error) {
	if len(edits) == 0 {
		out := make([]byte, len(p.source))
		copy(out, p.source)
		return out, nil
	}

	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	var buf bytes.Buffer
	buf.Grow(len(p.source))
	var pos uint32
	for i, e := range sorted {
		if e.End < e.Start || int(e.End) > len(p.source) {
			return nil, fmt.Errorf("edit %d: range [%d,%d) out of bounds", i, e.Start, e.End)
		}
		if e.Start < pos {
			return nil, fmt.Errorf("%w: edit at byte %d", ErrOverlappingEdits, e.Start)
		}
		buf.Write(p.source[pos:e.Start])
		buf.WriteString(e.Text)
		pos = e.End
	}
	buf.Write(p.source[pos:])
	out := buf.Bytes()

	tree, err := parseTree(out)
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	if serr := firstError(tree.RootNode(), out); serr != nil {
		return nil, fmt.Errorf("%w: %v", ErrRoundTrip, serr)
	}
	return out, nil
}

// ParseExpression parses fragment as one isolated Python expression and
// returns the text to splice into a signature. Fragments that are only valid
// inside parentheses (bare tuples, generators, walrus) and fragments spanning
// several lines come back parenthesised. A fragment holding a comment is
// rejected, since the comment would swallow the rest of the signature line.
func ParseExpression(fragment string) (string, error) {
	expr := strings.TrimSpace(fragment)
	if expr == "" {
		return "", fmt.Errorf("%w: empty expression", ErrSyntax)
	}

	wrapped := "(" + expr + ")"
	source := []byte(wrapped)
	tree, err := parseTree(source)
	if err != nil {
		return "", err
	}
	defer tree.Close()

	root := tree.RootNode()
	if serr := firstError(root, source); serr != nil {
		return "", fmt.Errorf("%w: %q", ErrSyntax, expr)
	}
	if findNode(root, func(n *sitter.Node) bool { return n.Type() == "comment" }) != nil {
		return "", fmt.Errorf("%w: comment in expression %q", ErrSyntax, expr)
	}

	stmts := namedChildren(root)
	if len(stmts) != 1 || stmts[0].Type() != "expression_statement" {
		return "", fmt.Errorf("%w: %q is not a single expression", ErrSyntax, expr)
	}
	parts := namedChildren(stmts[0])
	if len(parts) != 1 || parts[0].StartByte() != 0 || int(parts[0].EndByte()) != len(source) {
		return "", fmt.Errorf("%w: %q is not a single expression", ErrSyntax, expr)
	}

	switch node := parts[0]; node.Type() {
	case "parenthesized_expression":
		inner := namedChildren(node)
		if len(inner) != 1 {
			return "", fmt.Errorf("%w: %q is not a single expression", ErrSyntax, expr)
		}
		switch inner[0].Type() {
		case "list_splat", "dictionary_splat":
			return "", fmt.Errorf("%w: starred expression %q", ErrSyntax, expr)
		case "named_expression", "yield":
			return wrapped, nil
		case "parenthesized_expression":
			return expr, nil
		}
		if strings.ContainsAny(expr, "\r\n") {
			return wrapped, nil
		}
		return expr, nil
	case "tuple", "generator_expression":
		return wrapped, nil
	}
	return "", fmt.Errorf("%w: %q is not a single expression", ErrSyntax, expr)
}

// ParseImport checks that text is exactly one import statement and returns
// it trimmed.
func ParseImport(text string) (string, error) {
	stmt := strings.TrimSpace(text)
	if stmt == "" {
		return "", fmt.Errorf("%w: empty import", ErrSyntax)
	}

	source := []byte(stmt)
	tree, err := parseTree(source)
	if err != nil {
		return "", err
	}
	defer tree.Close()

	root := tree.RootNode()
	if serr := firstError(root, source); serr != nil {
		return "", fmt.Errorf("%w: %q", ErrSyntax, stmt)
	}
	stmts := namedChildren(root)
	if len(stmts) != 1 {
		return "", fmt.Errorf("%w: %q is not a single import statement", ErrSyntax, stmt)
	}
	switch stmts[0].Type() {
	case "import_statement", "import_from_statement", "future_import_statement":
		return stmt, nil
	}
	return "", fmt.Errorf("%w: %q is not an import statement", ErrSyntax, stmt)
}
