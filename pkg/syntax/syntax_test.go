package syntax

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `import os


def top(a, b=1, *args, c: int, **kw) -> bool:
    def nested(x):
        return x
    return True


class Service:
    def handle(self, req: str, /, *, strict=False):
        pass

    @classmethod
    async def build(cls):
        class Inner:
            def go(self):
                pass
        return cls()
`

func TestParse_Definitions(t *testing.T) {
	prog, err := Parse([]byte(sample))
	require.NoError(t, err)
	defer prog.Close()

	var names []string
	for def := range prog.Definitions() {
		names = append(names, def.QualifiedName())
	}
	assert.Equal(t, []string{"top", "nested", "Service.handle", "Service.build", "Inner.go"}, names)
}

func TestParse_DefinitionDetails(t *testing.T) {
	prog, err := Parse([]byte(sample))
	require.NoError(t, err)
	defer prog.Close()

	defs := map[string]*Definition{}
	for def := range prog.Definitions() {
		defs[def.QualifiedName()] = def
	}

	top := defs["top"]
	require.NotNil(t, top)
	assert.Equal(t, "bool", top.Returns)
	assert.Equal(t, 4, top.Line)
	assert.False(t, top.InClass())
	assert.Nil(t, top.Receiver())

	require.Len(t, top.Params, 5)
	assert.Equal(t, Param{Kind: Regular, Name: "a", Text: "a"}, top.Params[0])
	assert.Equal(t, "b", top.Params[1].Name)
	assert.True(t, top.Params[1].HasDefault)
	assert.Equal(t, "1", top.Params[1].Default)
	assert.Equal(t, VarPositional, top.Params[2].Kind)
	assert.Equal(t, "args", top.Params[2].Name)
	assert.Equal(t, "int", top.Params[3].Annotation)
	assert.Equal(t, VarKeyword, top.Params[4].Kind)
	assert.Equal(t, "kw", top.Params[4].Name)

	handle := defs["Service.handle"]
	require.NotNil(t, handle)
	require.NotNil(t, handle.Receiver())
	assert.Equal(t, "self", handle.Receiver().Name)
	kinds := make([]ParamKind, len(handle.Params))
	for i, p := range handle.Params {
		kinds[i] = p.Kind
	}
	assert.Equal(t, []ParamKind{Regular, Regular, PositionalMarker, KeywordMarker, Regular}, kinds)
	assert.Equal(t, "str", handle.Params[1].Annotation)

	build := defs["Service.build"]
	require.NotNil(t, build)
	assert.True(t, build.IsAsync)
	assert.Equal(t, "cls", build.Receiver().Name)
}

func TestParse_RejectsErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		line   int
	}{
		{"unclosed paren", "def f(:\n    pass\n", 1},
		{"bad statement", "x = 1\ny = = 2\n", 2},
		{"missing body", "def f():\n", 1},
		{"missing class body", "x = 1\nclass A:\n", 2},
		{"missing else body", "if x:\n    pass\nelse:\n", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.source))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSyntax))

			var serr *SyntaxError
			require.True(t, errors.As(err, &serr))
			assert.GreaterOrEqual(t, serr.Line, tt.line)
		})
	}
}

func TestParseExpression(t *testing.T) {
	tests := []struct {
		fragment string
		want     string
		wantErr  bool
	}{
		{fragment: "int", want: "int"},
		{fragment: "  Dict[str, List[int]] ", want: "Dict[str, List[int]]"},
		{fragment: "int | None", want: "int | None"},
		{fragment: "'a:b'", want: "'a:b'"},
		{fragment: "(a)", want: "(a)"},
		{fragment: "lambda: 0", want: "lambda: 0"},
		{fragment: "int, str", want: "(int, str)"},
		{fragment: "x for x in y", want: "(x for x in y)"},
		{fragment: "n := 1", want: "(n := 1)"},
		{fragment: "a\n+ b", want: "(a\n+ b)"},
		{fragment: "(a\n+ b)", want: "(a\n+ b)"},
		{fragment: "Dict[\n  str, int]", want: "(Dict[\n  str, int])"},
		{fragment: "a  # note\n+ b", wantErr: true},
		{fragment: "", wantErr: true},
		{fragment: "List[", wantErr: true},
		{fragment: "a) + (b", wantErr: true},
		{fragment: "x = 1", wantErr: true},
		{fragment: "import os", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.fragment, func(t *testing.T) {
			got, err := ParseExpression(tt.fragment)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrSyntax))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHeaderEnd(t *testing.T) {
	tests := []struct {
		name   string
		source string
		rest   string
	}{
		{"empty", "", ""},
		{"no header", "import os\n", "import os\n"},
		{"shebang", "#!/usr/bin/env python\nimport os\n", "import os\n"},
		{"encoding declaration", "#!/usr/bin/env python\n# vim: set fileencoding=utf-8 :\nx = 1\n", "x = 1\n"},
		{"plain comment", "# notes\nx = 1\n", "# notes\nx = 1\n"},
		{"docstring and future imports", "'''Doc.'''\nfrom __future__ import annotations\nfrom __future__ import division\nimport os\n", "import os\n"},
		{"string after code", "x = 1\n'''text'''\n", "x = 1\n'''text'''\n"},
		{"future import at end of file", "from __future__ import annotations", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := Parse([]byte(tt.source))
			require.NoError(t, err)
			defer prog.Close()

			assert.Equal(t, tt.rest, string(prog.Source()[prog.HeaderEnd():]))
		})
	}
}

func TestParseImport(t *testing.T) {
	tests := []struct {
		text    string
		want    string
		wantErr bool
	}{
		{text: "import os", want: "import os"},
		{text: "  from typing import Any, Optional  ", want: "from typing import Any, Optional"},
		{text: "from __future__ import annotations", want: "from __future__ import annotations"},
		{text: "import os.path as p", want: "import os.path as p"},
		{text: "x = 1", wantErr: true},
		{text: "import", wantErr: true},
		{text: "import os\nimport sys", wantErr: true},
		{text: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := ParseImport(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParamString(t *testing.T) {
	tests := []struct {
		param Param
		want  string
	}{
		{Param{Name: "a"}, "a"},
		{Param{Name: "a", Annotation: "int"}, "a: int"},
		{Param{Name: "a", Default: "1", HasDefault: true}, "a=1"},
		{Param{Name: "a", Annotation: "int", Default: "1", HasDefault: true}, "a: int = 1"},
		{Param{Kind: VarPositional, Name: "args", Annotation: "str"}, "*args: str"},
		{Param{Kind: VarKeyword, Name: "kw"}, "**kw"},
		{Param{Kind: KeywordMarker}, "*"},
		{Param{Kind: PositionalMarker}, "/"},
		{Param{Name: "a", Annotation: "int", Text: "a:int"}, "a:int"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.param.String())
	}
}

func TestDocstringLiteral(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		indent string
		want   string
	}{
		{"single line", "  Hello.  ", "    ", `"""Hello."""`},
		{"embedded quotes", `Say """hi"""`, "", `"""Say \"\"\"hi\"\"\""""`},
		{"trailing quote", `Returns "x"`, "", `"""Returns "x\""""`},
		{"backslash", `a\b`, "", `"""a\\b"""`},
		{"multi line", "Top.\n  Body.", "  ", "\"\"\"Top.\n  Body.\n  \"\"\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DocstringLiteral(tt.text, tt.indent))
		})
	}
}

func TestSerialize(t *testing.T) {
	source := "def f(a):\n    return a\n"
	prog, err := Parse([]byte(source))
	require.NoError(t, err)
	defer prog.Close()

	var def *Definition
	for d := range prog.Definitions() {
		def = d
	}
	require.NotNil(t, def)

	t.Run("no edits copies source", func(t *testing.T) {
		out, err := prog.Serialize(nil)
		require.NoError(t, err)
		assert.Equal(t, source, string(out))
		out[0] = 'X'
		assert.Equal(t, source, string(prog.Source()))
	})

	t.Run("edits apply in position order", func(t *testing.T) {
		out, err := prog.Serialize([]Edit{
			def.ReturnEdit("int"),
			def.NameEdit("g"),
			def.ParamsEdit([]Param{{Name: "a", Annotation: "int"}}),
		})
		require.NoError(t, err)
		assert.Equal(t, "def g(a: int) -> int:\n    return a\n", string(out))
	})

	t.Run("overlapping edits rejected", func(t *testing.T) {
		_, err := prog.Serialize([]Edit{
			{Start: 0, End: 5, Text: "x"},
			{Start: 3, End: 6, Text: "y"},
		})
		assert.True(t, errors.Is(err, ErrOverlappingEdits))
	})

	t.Run("output that does not parse rejected", func(t *testing.T) {
		_, err := prog.Serialize([]Edit{def.NameEdit("(")})
		assert.True(t, errors.Is(err, ErrRoundTrip))
	})

	t.Run("out of range rejected", func(t *testing.T) {
		_, err := prog.Serialize([]Edit{{Start: 0, End: 1000}})
		assert.Error(t, err)
	})
}

func TestIsIdentifier(t *testing.T) {
	assert.True(t, IsIdentifier("name"))
	assert.True(t, IsIdentifier("_private2"))
	assert.True(t, IsIdentifier("données"))
	assert.False(t, IsIdentifier(""))
	assert.False(t, IsIdentifier("2x"))
	assert.False(t, IsIdentifier("a-b"))
	assert.False(t, IsIdentifier("lambda"))
	assert.False(t, IsIdentifier("None"))
}
