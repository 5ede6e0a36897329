package refactor

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/pyrefine/pkg/cache"
	"github.com/l3aro/pyrefine/pkg/llm"
	"github.com/l3aro/pyrefine/pkg/proposal"
	"github.com/l3aro/pyrefine/pkg/syntax"
)

// fakeProvider answers every request with a fixed response.
type fakeProvider struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
	last     []llm.Message
}

func (f *fakeProvider) Complete(_ context.Context, messages []llm.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = messages
	return f.response, f.err
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Config() *llm.Config {
	return &llm.Config{Endpoint: "http://fake", Model: "fake-model"}
}

// upper is a formatter that upper-cases a marker so tests can see it ran.
type upper struct{}

func (upper) Format(_ context.Context, src []byte) []byte {
	return []byte(strings.ReplaceAll(string(src), "# fmt", "# FMT"))
}

const source = `# fmt
def add(a, b):
    return a + b


class Shop:
    def total(self, items):
        return sum(items)
`

const response = "```json\n" + `{
  "refactored_functions": [
    {"original_name": "add", "arguments": ["a: int", "b: int"], "return_type": "int", "docstring": "Add two numbers.", "complexity_score": 0.1, "readability_score": 0.9},
    {"original_name": "Shop.total", "new_name": "sum_items", "arguments": "items: list[float]", "return_type": "float"},
    {"original_name": "gone", "new_name": "still_gone"}
  ],
  "code_feedback": ["Add tests"]
}` + "\n```"

func TestService_Refactor(t *testing.T) {
	provider := &fakeProvider{response: response}
	svc := NewService(Options{Provider: provider, Formatter: upper{}})

	out, err := svc.Refactor(context.Background(), []byte(source))
	require.NoError(t, err)

	assert.Contains(t, out.ReformattedCode, "# FMT")
	assert.Contains(t, out.ReformattedCode, "def add(a: int, b: int) -> int:\n    \"\"\"Add two numbers.\"\"\"\n")
	assert.Contains(t, out.ReformattedCode, "def sum_items(self, items: list[float]) -> float:")

	require.Len(t, out.RefactoredFunctions, 2)
	assert.Equal(t, "add", out.RefactoredFunctions[0].Target)
	assert.Equal(t, "Shop.total", out.RefactoredFunctions[1].Target)
	assert.Equal(t, "- Add tests", out.CodeFeedback)
	assert.Len(t, out.Gaps, 2)
	assert.False(t, out.Cached)

	// The prompt carries the source and the detected gaps.
	require.Len(t, provider.last, 2)
	assert.Contains(t, provider.last[1].Content, "def add(a, b):")
	assert.Contains(t, provider.last[1].Content, "Shop.total (line 7)")

	_, err = syntax.Parse([]byte(out.ReformattedCode))
	assert.NoError(t, err)
}

func TestService_RefactorUsesCache(t *testing.T) {
	provider := &fakeProvider{response: response}
	c := cache.New(cache.Options{MaxEntries: 10})
	svc := NewService(Options{Provider: provider, Cache: c})

	first, err := svc.Refactor(context.Background(), []byte(source))
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.Refactor(context.Background(), []byte(source))
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.ReformattedCode, second.ReformattedCode)
	assert.Equal(t, 1, provider.calls)

	_, err = svc.Refactor(context.Background(), []byte(source+"\nx = 1\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls)
}

func TestService_MalformedResponseIsFatal(t *testing.T) {
	provider := &fakeProvider{response: "Sorry, I cannot help with that."}
	c := cache.New(cache.Options{})
	svc := NewService(Options{Provider: provider, Cache: c})

	out, err := svc.Refactor(context.Background(), []byte(source))
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, proposal.ErrMalformedResponse))
	assert.Equal(t, 0, c.Len(), "unusable responses are not cached")
}

func TestService_ProviderError(t *testing.T) {
	provider := &fakeProvider{err: llm.ErrProviderUnavailable}
	svc := NewService(Options{Provider: provider})

	_, err := svc.Refactor(context.Background(), []byte(source))
	assert.True(t, errors.Is(err, llm.ErrProviderUnavailable))
}

func TestService_InvalidSource(t *testing.T) {
	provider := &fakeProvider{response: response}
	svc := NewService(Options{Provider: provider})

	_, err := svc.Refactor(context.Background(), []byte("def broken(:\n"))
	assert.True(t, errors.Is(err, syntax.ErrSyntax))
	assert.Equal(t, 0, provider.calls)
}

func TestService_NoProvider(t *testing.T) {
	_, err := NewService(Options{}).Refactor(context.Background(), []byte(source))
	assert.True(t, errors.Is(err, ErrNoProvider))
}

func TestService_ApplySetReportsDefinitionErrors(t *testing.T) {
	set, err := proposal.Decode([]byte(`{"functions": [
		{"name": "add", "args": ["a:int:(", "b:int"]},
		{"name": "Shop.total", "args": ["items:list"]}
	]}`))
	require.NoError(t, err)

	out, err := NewService(Options{}).ApplySet(context.Background(), []byte(source), set)
	require.NoError(t, err)
	assert.Contains(t, out.ReformattedCode, "def add(a, b):")
	assert.Contains(t, out.ReformattedCode, "def total(self, items: list):")
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "add")

	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"reformatted_code"`)
	assert.Contains(t, string(data), `"refactored_functions"`)
}

func TestService_RefactorFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.py")
	bad := filepath.Join(dir, "bad.py")
	require.NoError(t, os.WriteFile(good, []byte(source), 0644))
	require.NoError(t, os.WriteFile(bad, []byte("def broken(:\n"), 0644))
	missing := filepath.Join(dir, "missing.py")

	svc := NewService(Options{Provider: &fakeProvider{response: response}})
	results := svc.RefactorFiles(context.Background(), []string{good, bad, missing}, 2)

	require.Len(t, results, 3)
	assert.Equal(t, good, results[0].Path)
	require.NoError(t, results[0].Err)
	assert.Equal(t, source, string(results[0].Original))
	assert.Contains(t, results[0].Output.ReformattedCode, "def add(a: int, b: int) -> int:")

	assert.True(t, errors.Is(results[1].Err, syntax.ErrSyntax))
	assert.True(t, errors.Is(results[2].Err, os.ErrNotExist))
}

func TestService_RefactorFilesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewService(Options{Provider: &fakeProvider{response: response}})
	results := svc.RefactorFiles(ctx, []string{"a.py", "b.py"}, 0)
	for _, r := range results {
		assert.True(t, errors.Is(r.Err, context.Canceled))
	}
}
