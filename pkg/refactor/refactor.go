// Package refactor ties the pieces together: it asks a model for proposals,
// applies them to the source and reformats the result.
package refactor

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/l3aro/pyrefine/internal/log"
	"github.com/l3aro/pyrefine/pkg/cache"
	"github.com/l3aro/pyrefine/pkg/format"
	"github.com/l3aro/pyrefine/pkg/gaps"
	"github.com/l3aro/pyrefine/pkg/llm"
	"github.com/l3aro/pyrefine/pkg/proposal"
	"github.com/l3aro/pyrefine/pkg/rewrite"
	"github.com/l3aro/pyrefine/pkg/syntax"
)

// Output is the result of refactoring one source file.
type Output struct {
	ReformattedCode     string               `json:"reformatted_code"`
	RefactoredFunctions []proposal.Proposal  `json:"refactored_functions"`
	CodeFeedback        string               `json:"code_feedback,omitempty"`
	Gaps                []gaps.Gap           `json:"gaps,omitempty"`
	Diagnostics         []rewrite.Diagnostic `json:"diagnostics,omitempty"`
	Errors              []string             `json:"errors,omitempty"`
	Cached              bool                 `json:"cached,omitempty"`
}

// Options configures a Service.
type Options struct {
	// Provider answers refactoring prompts. Only Refactor needs it.
	Provider llm.Provider

	// Formatter runs after rewriting. Nil means no formatting.
	Formatter format.Formatter

	// Cache stores model responses by request. Nil disables caching.
	Cache *cache.ResponseCache

	Logger log.Logger
}

// Service refactors Python source files.
type Service struct {
	provider  llm.Provider
	formatter format.Formatter
	cache     *cache.ResponseCache
	logger    log.Logger
}

// NewService creates a Service.
func NewService(opts Options) *Service {
	s := &Service{
		provider:  opts.Provider,
		formatter: opts.Formatter,
		cache:     opts.Cache,
		logger:    log.OrNop(opts.Logger),
	}
	if s.formatter == nil {
		s.formatter = format.Nop{}
	}
	return s
}

// ErrNoProvider is returned by Refactor when the service has no model provider.
var ErrNoProvider = errors.New("no model provider configured")

// requestKey identifies a model request for caching.
type requestKey struct {
	Provider      string
	Model         string
	Endpoint      string
	Temperature   float64
	PromptVersion string
	Source        string
}

// Refactor asks the model for proposals for source and applies them. A
// response that cannot be decoded fails the whole request; nothing is
// rewritten in that case.
func (s *Service) Refactor(ctx context.Context, source []byte) (*Output, error) {
	if s.provider == nil {
		return nil, ErrNoProvider
	}

	prog, err := syntax.Parse(source)
	if err != nil {
		return nil, err
	}
	found := gaps.Collect(prog)
	prog.Close()

	content, cached, err := s.complete(ctx, source, found)
	if err != nil {
		return nil, err
	}

	set, err := proposal.Decode([]byte(llm.ExtractJSON(content)))
	if err != nil {
		return nil, err
	}
	if s.cache != nil && !cached {
		if key, kerr := s.key(source); kerr == nil {
			s.cache.Set(key, content)
		}
	}

	out, err := s.ApplySet(ctx, source, set)
	if err != nil {
		return nil, err
	}
	out.Gaps = found
	out.Cached = cached
	return out, nil
}

// complete returns the model response for source, from the cache when possible.
func (s *Service) complete(ctx context.Context, source []byte, found []gaps.Gap) (string, bool, error) {
	key, err := s.key(source)
	if err != nil {
		s.logger.Warn("cache key unavailable", "error", err)
	}
	if s.cache != nil && key != "" {
		if content, ok := s.cache.Get(key); ok {
			s.logger.Debug("using cached response", "key", key)
			return content, true, nil
		}
	}

	s.logger.Info("requesting proposals", "provider", s.provider.Name(), "model", s.provider.Config().Model, "gaps", len(found))
	content, err := s.provider.Complete(ctx, llm.BuildMessages(string(source), found))
	if err != nil {
		return "", false, fmt.Errorf("requesting proposals: %w", err)
	}
	return content, false, nil
}

func (s *Service) key(source []byte) (string, error) {
	cfg := s.provider.Config()
	return cache.Key(requestKey{
		Provider:      s.provider.Name(),
		Model:         cfg.Model,
		Endpoint:      cfg.Endpoint,
		Temperature:   cfg.Temperature,
		PromptVersion: llm.PromptVersion,
		Source:        string(source),
	})
}

// ApplySet applies an already decoded proposal set to source and formats
// the result. Formatting never fails the request.
func (s *Service) ApplySet(ctx context.Context, source []byte, set *proposal.Set) (*Output, error) {
	result, err := rewrite.Apply(source, set, s.logger)
	if err != nil {
		return nil, err
	}

	out := &Output{
		ReformattedCode:     string(s.formatter.Format(ctx, result.Source)),
		RefactoredFunctions: result.Matched,
		Diagnostics:         result.Diagnostics,
	}
	if set != nil {
		out.CodeFeedback = set.Feedback
	}
	if out.RefactoredFunctions == nil {
		out.RefactoredFunctions = []proposal.Proposal{}
	}
	for _, e := range result.Errors {
		out.Errors = append(out.Errors, e.Error())
	}
	return out, nil
}

// FileResult is the outcome for one file of a batch.
type FileResult struct {
	Path     string
	Original []byte
	Output   *Output
	Err      error
}

// RefactorFiles refactors paths with at most jobs requests in flight.
// Results keep the order of paths; a failing file does not stop the others.
func (s *Service) RefactorFiles(ctx context.Context, paths []string, jobs int) []FileResult {
	results := make([]FileResult, len(paths))
	if jobs <= 0 {
		jobs = 1
	}

	var g errgroup.Group
	g.SetLimit(jobs)
	for i, path := range paths {
		g.Go(func() error {
			res := FileResult{Path: path}
			defer func() { results[i] = res }()

			if err := ctx.Err(); err != nil {
				res.Err = err
				return nil
			}
			source, err := os.ReadFile(path)
			if err != nil {
				res.Err = fmt.Errorf("reading %s: %w", path, err)
				return nil
			}
			res.Original = source
			res.Output, res.Err = s.Refactor(ctx, source)
			if res.Err != nil {
				s.logger.Error("refactor failed", "file", path, "error", res.Err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
