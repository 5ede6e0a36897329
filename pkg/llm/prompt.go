package llm

import (
	"fmt"
	"strings"

	"github.com/l3aro/pyrefine/pkg/gaps"
)

// PromptVersion changes whenever the prompt text changes, so cached
// responses for an older prompt are not reused.
const PromptVersion = "2"

// SystemPrompt instructs the model to answer with refactored_functions JSON.
const SystemPrompt = `You help refactor Python code. You receive one Python file. For each function and method:
- write a docstring explaining what it does,
- add type annotations to its arguments and return value,
- suggest a better name when the current one is unclear,
- score its complexity and its readability between 0 and 1 (complexity_score, readability_score).

Name methods as ClassName.method_name and plain functions by their name. Never list self or cls in the arguments.
Write each argument as Python source, for example "count: int = 0". Keep every existing argument, in order.
List any import statements the new annotations need.

Answer with JSON only, in this format:
{"refactored_functions": [{"original_name": "function_name", "new_name": "the new name if changing", "arguments": ["name: type = default", ...], "return_type": "type", "docstring": "the docstring", "imports": ["from typing import Any"], "complexity_score": 0.5, "readability_score": 0.5}, ...],
 "code_feedback": "Some feedback about the code for its author, as a bullet list of things to improve"}`

// BuildMessages creates the conversation for one source file. When gaps are
// given, the definitions missing annotations are listed to focus the model.
func BuildMessages(source string, found []gaps.Gap) []Message {
	var sb strings.Builder
	sb.WriteString("Help refactor this code:\n```python\n")
	sb.WriteString(source)
	if !strings.HasSuffix(source, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("```\n")

	if len(found) > 0 {
		sb.WriteString("\nThese definitions are missing type annotations:\n")
		for _, gap := range found {
			var missing []string
			if len(gap.MissingParams) > 0 {
				missing = append(missing, "arguments "+strings.Join(gap.MissingParams, ", "))
			}
			if gap.MissingReturn {
				missing = append(missing, "return type")
			}
			fmt.Fprintf(&sb, "- %s (line %d): %s\n", gap.QualifiedName, gap.Line, strings.Join(missing, "; "))
		}
	}

	return []Message{
		{Role: RoleSystem, Content: SystemPrompt},
		{Role: RoleUser, Content: sb.String()},
	}
}

// ExtractJSON strips a markdown code fence or leading prose around a JSON
// document, returning the outermost object or array.
func ExtractJSON(content string) string {
	text := strings.TrimSpace(content)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			text = text[i+1:]
		}
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	closer := "}"
	if text[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(text, closer)
	if end < start {
		return text
	}
	return text[start : end+1]
}
