package proposal

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/pyrefine/pkg/syntax"
)

func TestParseDelimited(t *testing.T) {
	tests := []struct {
		raw        string
		kind       syntax.ParamKind
		name       string
		annotation string
		def        string
		wantErr    bool
	}{
		{raw: "a", name: "a"},
		{raw: "a:int", name: "a", annotation: "int"},
		{raw: " a : int ", name: "a", annotation: "int"},
		{raw: "a:int:0", name: "a", annotation: "int", def: "0"},
		{raw: "a:Dict[str, int]", name: "a", annotation: "Dict[str, int]"},
		{raw: "a:str:'x:y'", name: "a", annotation: "str", def: "'x:y'"},
		{raw: "a::3", name: "a", def: "3"},
		{raw: "*args:int", kind: syntax.VarPositional, name: "args", annotation: "int"},
		{raw: "**kw:Any", kind: syntax.VarKeyword, name: "kw", annotation: "Any"},
		{raw: "*", kind: syntax.KeywordMarker},
		{raw: "a:int:extra:segments", wantErr: true},
		{raw: "1a:int", wantErr: true},
		{raw: "*args:int:()", wantErr: true},
		{raw: "/:int", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			spec := ParseDelimited(tt.raw)
			assert.Equal(t, tt.raw, spec.Raw)
			if tt.wantErr {
				require.Error(t, spec.Err)
				assert.True(t, errors.Is(spec.Err, ErrSpecShape))
				return
			}
			require.NoError(t, spec.Err)
			assert.Equal(t, tt.kind, spec.Kind)
			assert.Equal(t, tt.name, spec.Name)
			assert.Equal(t, tt.annotation, spec.Annotation)
			assert.Equal(t, tt.def, spec.Default)
			assert.Equal(t, tt.def != "", spec.HasDefault)
		})
	}
}

func TestParseSignatureParam(t *testing.T) {
	tests := []struct {
		raw        string
		name       string
		annotation string
		def        string
		wantErr    bool
	}{
		{raw: "a", name: "a"},
		{raw: "a: int", name: "a", annotation: "int"},
		{raw: "a=1", name: "a", def: "1"},
		{raw: "a: int = 1", name: "a", annotation: "int", def: "1"},
		{raw: "a: Callable[[int], str] = f", name: "a", annotation: "Callable[[int], str]", def: "f"},
		{raw: "a: bool = x == y", name: "a", annotation: "bool", def: "x == y"},
		{raw: "a: dict = {'k': 1}", name: "a", annotation: "dict", def: "{'k': 1}"},
		{raw: "a: int =", wantErr: true},
		{raw: "a b: int", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			spec := ParseSignatureParam(tt.raw)
			if tt.wantErr {
				assert.True(t, errors.Is(spec.Err, ErrSpecShape))
				return
			}
			require.NoError(t, spec.Err)
			assert.Equal(t, tt.name, spec.Name)
			assert.Equal(t, tt.annotation, spec.Annotation)
			assert.Equal(t, tt.def, spec.Default)
		})
	}
}

func TestSplitSignature(t *testing.T) {
	tests := []struct {
		sig     string
		entries []string
		returns string
	}{
		{"a: int, b: str", []string{"a: int", "b: str"}, ""},
		{"(a: int, b: Tuple[int, int] = (1, 2)) -> bool", []string{"a: int", "b: Tuple[int, int] = (1, 2)"}, "bool"},
		{"(self, x: str)", []string{"self", "x: str"}, ""},
		{"(a) -> (b)", []string{"a"}, "(b)"},
		{"", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.sig, func(t *testing.T) {
			entries, returns := SplitSignature(tt.sig)
			assert.Equal(t, tt.entries, entries)
			assert.Equal(t, tt.returns, returns)
		})
	}
}

func TestScanTopLevel(t *testing.T) {
	tests := []struct {
		text    string
		visited string
	}{
		{`a, "x,y", f(b, c)[d,e], {k: v}`, "a, , f, "},
		{`'it\'s, x', y`, ", y"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			var got []byte
			scanTopLevel(tt.text, func(i int) bool {
				got = append(got, tt.text[i])
				return true
			})
			assert.Equal(t, tt.visited, string(got))
		})
	}

	assert.Equal(t, 6, indexTopLevel("f(a=1)=2", '='))
	assert.Equal(t, []string{`'it\'s, x'`, " y"}, splitTopLevel(`'it\'s, x', y`, ','))
}

func TestDecode_Compact(t *testing.T) {
	set, err := Decode([]byte(`{
		"functions": [
			{"name": "add", "args": ["a:int", "b:int:0"], "returns": "int", "docstring": "Add."},
			{"name": "C.get", "new_name": "fetch", "args": {"key": "str", "default": null}}
		],
		"imports": "from typing import Any"
	}`))
	require.NoError(t, err)
	require.Len(t, set.Proposals, 2)

	add := set.Proposals[0]
	assert.Equal(t, "add", add.Target)
	assert.True(t, add.HasParams)
	assert.Equal(t, "int", add.Returns)
	assert.Equal(t, "Add.", add.Docstring)
	require.Len(t, add.Params, 2)
	assert.Equal(t, "0", add.Params[1].Default)

	get := set.Proposals[1]
	assert.Equal(t, "fetch", get.NewName)
	require.Len(t, get.Params, 2)
	assert.Equal(t, "key", get.Params[0].Name)
	assert.Equal(t, "str", get.Params[0].Annotation)
	assert.Equal(t, "default", get.Params[1].Name)
	assert.Empty(t, get.Params[1].Annotation)

	assert.Equal(t, []string{"from typing import Any"}, set.Imports)
}

func TestDecode_MappingKeepsKeyOrder(t *testing.T) {
	set, err := Decode([]byte(`{"functions": [{"name": "f", "args": {"z": "int", "a": "str", "m": "bool"}}]}`))
	require.NoError(t, err)

	var names []string
	for _, p := range set.Proposals[0].Params {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"z", "a", "m"}, names)
}

func TestDecode_Refactored(t *testing.T) {
	set, err := Decode([]byte(`{
		"refactored_functions": [{
			"original_name": "calc",
			"new_name": "calculate_total",
			"arguments": "(items: list, tax: float = 0.2) -> float",
			"docstring": "Total.",
			"complexity_score": 0.4,
			"readability_score": 0.8
		}],
		"code_feedback": ["Use type hints", "Split long functions"]
	}`))
	require.NoError(t, err)
	require.Len(t, set.Proposals, 1)

	p := set.Proposals[0]
	assert.Equal(t, "calc", p.Target)
	assert.Equal(t, "calculate_total", p.NewName)
	assert.Equal(t, "float", p.Returns)
	require.Len(t, p.Params, 2)
	assert.Equal(t, "0.2", p.Params[1].Default)
	require.NotNil(t, p.ComplexityScore)
	assert.InDelta(t, 0.4, *p.ComplexityScore, 1e-9)
	require.NotNil(t, p.ReadabilityScore)
	assert.InDelta(t, 0.8, *p.ReadabilityScore, 1e-9)

	assert.Equal(t, "- Use type hints\n- Split long functions", set.Feedback)
}

func TestDecode_TopLevelArray(t *testing.T) {
	set, err := Decode([]byte(`[{"original_name": "f", "arguments": ["x: int"]}]`))
	require.NoError(t, err)
	require.Len(t, set.Proposals, 1)
	assert.Equal(t, "x", set.Proposals[0].Params[0].Name)
}

func TestDecode_EntryErrorsAreLocal(t *testing.T) {
	set, err := Decode([]byte(`{"functions": [{"name": "f", "args": ["a:int:extra:segments", 7, {"type": "int"}, "b:str"]}]}`))
	require.NoError(t, err)

	params := set.Proposals[0].Params
	require.Len(t, params, 4)
	assert.True(t, errors.Is(params[0].Err, ErrSpecShape))
	assert.True(t, errors.Is(params[1].Err, ErrSpecShape))
	assert.True(t, errors.Is(params[2].Err, ErrSpecShape))
	assert.NoError(t, params[3].Err)
}

func TestDecode_ArgumentsAbsent(t *testing.T) {
	set, err := Decode([]byte(`{"functions": [{"name": "f", "docstring": "Doc."}]}`))
	require.NoError(t, err)
	assert.False(t, set.Proposals[0].HasParams)

	set, err = Decode([]byte(`{"functions": [{"name": "f", "args": []}]}`))
	require.NoError(t, err)
	assert.True(t, set.Proposals[0].HasParams)
	assert.Empty(t, set.Proposals[0].Params)
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"not json", "here are your functions"},
		{"missing keys", `{"result": []}`},
		{"functions not a list", `{"functions": {"name": "f"}}`},
		{"missing name", `{"functions": [{"args": ["a:int"]}]}`},
		{"missing original name", `{"refactored_functions": [{"new_name": "g"}]}`},
		{"arguments wrong type", `{"functions": [{"name": "f", "args": 3}]}`},
		{"imports wrong type", `{"functions": [], "imports": 3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedResponse))
		})
	}
}

func TestSet_Index(t *testing.T) {
	set := &Set{Proposals: []Proposal{
		{Target: "f", NewName: "one"},
		{Target: "C.f", NewName: "two"},
		{Target: "f", NewName: "three"},
	}}
	index := set.Index()
	assert.Len(t, index, 2)
	assert.Equal(t, "three", index["f"].NewName)
	assert.Equal(t, "two", index["C.f"].NewName)
}

func TestSet_AllImports(t *testing.T) {
	set := &Set{
		Imports: []string{"import os\nimport sys", ""},
		Proposals: []Proposal{
			{Target: "f", Imports: []string{"import os", "from typing import Any"}},
		},
	}
	assert.Equal(t, []string{"import os", "import sys", "from typing import Any"}, set.AllImports())
}

func TestProposal_MarshalReportsRawEntries(t *testing.T) {
	p := Proposal{
		Target:    "f",
		Params:    []ParamSpec{ParseDelimited("a:int"), ParseSignatureParam("b: str = 'x'")},
		HasParams: true,
	}
	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"original_name": "f", "arguments": ["a:int", "b: str = 'x'"]}`, string(data))
}
