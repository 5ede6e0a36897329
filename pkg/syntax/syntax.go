// Package syntax wraps the tree-sitter Python grammar into the program tree used
// by the gap detector and the rewriter. A Program owns one parsed source file;
// rewrites are expressed as byte-range edits and serialized back to text.
package syntax

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ErrSyntax is returned when source text or an expression fragment does not parse.
var ErrSyntax = errors.New("syntax error")

// ErrRoundTrip is returned when serialized output no longer parses.
var ErrRoundTrip = errors.New("serialized source does not re-parse")

// SyntaxError locates the first error node reported by the parser.
type SyntaxError struct {
	Line    int
	Column  int
	Snippet string
}

func (e *SyntaxError) Error() string {
	if e.Snippet != "" {
		return fmt.Sprintf("syntax error at line %d, column %d near %q", e.Line, e.Column, e.Snippet)
	}
	return fmt.Sprintf("syntax error at line %d, column %d", e.Line, e.Column)
}

func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

// Program is a parsed Python source file.
type Program struct {
	source []byte
	tree   *sitter.Tree
}

// NewPythonParser creates a new tree-sitter parser for Python.
func NewPythonParser() *sitter.Parser {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	return parser
}

// Parse parses source into a Program. Source containing error or missing
// nodes is rejected with a *SyntaxError.
func Parse(source []byte) (*Program, error) {
	tree, err := parseTree(source)
	if err != nil {
		return nil, err
	}
	if serr := firstError(tree.RootNode(), source); serr != nil {
		tree.Close()
		return nil, serr
	}
	return &Program{source: source, tree: tree}, nil
}

func parseTree(source []byte) (*sitter.Tree, error) {
	parser := NewPythonParser()
	defer parser.Close()

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing source: %w", err)
	}
	if tree == nil {
		return nil, fmt.Errorf("parsing source failed")
	}
	return tree, nil
}

// Source returns the text the program was parsed from.
func (p *Program) Source() []byte {
	return p.source
}

// Root returns the module node.
func (p *Program) Root() *sitter.Node {
	return p.tree.RootNode()
}

// Shape returns the S-expression of the tree, used to compare structure.
func (p *Program) Shape() string {
	return p.tree.RootNode().String()
}

var encodingDeclaration = regexp.MustCompile(`^[ \t\f]*#.*?coding[:=][ \t]*[-\w.]+`)

// HeaderEnd returns the offset of the first line after the module header: a
// shebang, an encoding declaration, the module docstring and any __future__
// imports. Statements inserted at the top of a module belong there.
func (p *Program) HeaderEnd() uint32 {
	var end uint32
	for line := 0; line < 2 && int(end) < len(p.source); line++ {
		next := lineEnd(p.source, end)
		text := p.source[end:next]
		if !(line == 0 && bytes.HasPrefix(text, []byte("#!"))) && !encodingDeclaration.Match(text) {
			break
		}
		end = next
	}

	for i, stmt := range namedChildren(p.Root()) {
		switch {
		case i == 0 && isDocstring(stmt):
		case stmt.Type() == "future_import_statement":
		default:
			return end
		}
		end = max(end, lineEnd(p.source, stmt.EndByte()))
	}
	return end
}

func isDocstring(stmt *sitter.Node) bool {
	if stmt.Type() != "expression_statement" || stmt.NamedChildCount() != 1 {
		return false
	}
	switch stmt.NamedChild(0).Type() {
	case "string", "concatenated_string":
		return true
	}
	return false
}

// lineEnd returns the offset just past the newline ending the line at pos.
func lineEnd(source []byte, pos uint32) uint32 {
	if int(pos) >= len(source) {
		return uint32(len(source))
	}
	i := bytes.IndexByte(source[pos:], '\n')
	if i < 0 {
		return uint32(len(source))
	}
	return pos + uint32(i) + 1
}

// Close releases the underlying tree.
func (p *Program) Close() {
	if p.tree != nil {
		p.tree.Close()
		p.tree = nil
	}
}

// firstError walks the tree for the first ERROR or MISSING node. The grammar
// accepts a compound statement with no body as an empty block, so an empty
// block is an error too, reported at the statement that owns it.
func firstError(root *sitter.Node, source []byte) *SyntaxError {
	if root == nil {
		return nil
	}
	var found *sitter.Node
	if root.HasError() {
		found = findNode(root, func(n *sitter.Node) bool {
			return n.Type() == "ERROR" || n.IsMissing()
		})
		if found == nil {
			found = root
		}
	} else if block := findNode(root, emptyBlock); block != nil {
		found = block
		if parent := block.Parent(); parent != nil {
			found = parent
		}
	}
	if found == nil {
		return nil
	}

	snippet := nodeText(found, source)
	if i := strings.IndexByte(snippet, '\n'); i >= 0 {
		snippet = snippet[:i]
	}
	if len(snippet) > 40 {
		snippet = snippet[:40]
	}
	return &SyntaxError{
		Line:    int(found.StartPoint().Row) + 1,
		Column:  int(found.StartPoint().Column) + 1,
		Snippet: snippet,
	}
}

// findNode returns the first node in document order that matches.
func findNode(root *sitter.Node, match func(*sitter.Node) bool) *sitter.Node {
	var found *sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil || found != nil {
			return
		}
		if match(n) {
			found = n
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return found
}

func emptyBlock(n *sitter.Node) bool {
	return n.Type() == "block" && len(namedChildren(n)) == 0
}

// nodeText extracts the text content of a node from the source.
func nodeText(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if start > uint32(len(content)) || end > uint32(len(content)) || start > end {
		return ""
	}
	return string(content[start:end])
}

// namedChildren returns all named children of a node, skipping comments.
func namedChildren(n *sitter.Node) []*sitter.Node {
	count := int(n.NamedChildCount())
	result := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		child := n.NamedChild(i)
		if child == nil || child.Type() == "comment" {
			continue
		}
		result = append(result, child)
	}
	return result
}
