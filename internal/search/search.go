// Package search finds items by free text. Normal mode matches substrings of
// name, description and location. LLM mode hands the items and the query to
// a remote classifier and falls back to normal mode whenever the classifier
// is missing or fails.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/othings/internal/logging"
	"github.com/mesh-intelligence/othings/internal/sqlite"
	"github.com/mesh-intelligence/othings/pkg/types"
)

// ErrNoClassifier is recorded as the fallback reason when LLM mode is
// selected without a classifier.
var ErrNoClassifier = errors.New("no classifier configured")

// Match is a classifier answer: the ids of matching items, best first.
type Match struct {
	ItemIDs     []string
	Explanation string
}

// Classifier is a remote natural-language matcher.
type Classifier interface {
	Classify(ctx context.Context, query string, items []types.Item) (Match, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, query string, items []types.Item) (Match, error)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, query string, items []types.Item) (Match, error) {
	return f(ctx, query, items)
}

// Result is the outcome of a search.
type Result struct {
	Items []types.Item `json:"items"`
	// Mode is the mode that produced Items.
	Mode        string `json:"mode"`
	Explanation string `json:"explanation,omitempty"`

	// FallbackReason is set when LLM mode was requested but normal mode
	// answered.
	FallbackReason string `json:"fallbackReason,omitempty"`
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithClassifier sets the classifier used in LLM mode.
func WithClassifier(c Classifier) Option {
	return func(s *Searcher) { s.classifier = c }
}

// WithLogger sets the logger used to report fallbacks.
func WithLogger(l logging.Logger) Option {
	return func(s *Searcher) {
		if l != nil {
			s.logger = l
		}
	}
}

// Searcher runs searches against an engine.
type Searcher struct {
	engine     *sqlite.Engine
	classifier Classifier
	logger     logging.Logger
}

// New returns a Searcher over e.
func New(e *sqlite.Engine, opts ...Option) *Searcher {
	s := &Searcher{engine: e, logger: logging.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs query in the mode chosen in the stored settings.
func (s *Searcher) Search(ctx context.Context, query string) (Result, error) {
	settings, err := s.engine.Settings().Get(ctx)
	if err != nil {
		return Result{}, err
	}
	return s.SearchMode(ctx, settings.SearchMode, query)
}

// SearchMode runs query in the given mode. An empty query returns every
// item in normal mode.
func (s *Searcher) SearchMode(ctx context.Context, mode, query string) (Result, error) {
	query = strings.TrimSpace(query)
	if mode != types.SearchLLM || query == "" {
		return s.normal(ctx, query)
	}

	res, err := s.llm(ctx, query)
	if err == nil {
		return res, nil
	}
	if errors.Is(err, types.ErrClosed) {
		return Result{}, err
	}
	s.logger.WarnCtx(ctx, "classifier search failed, using normal search", "error", err)
	res, nerr := s.normal(ctx, query)
	if nerr != nil {
		return Result{}, nerr
	}
	res.FallbackReason = err.Error()
	return res, nil
}

func (s *Searcher) normal(ctx context.Context, query string) (Result, error) {
	items, err := s.engine.Items().FindAll(ctx, types.ItemFilter{Search: query})
	if err != nil {
		return Result{}, fmt.Errorf("searching items: %w", err)
	}
	return Result{Items: items, Mode: types.SearchNormal}, nil
}

func (s *Searcher) llm(ctx context.Context, query string) (Result, error) {
	if s.classifier == nil {
		return Result{}, ErrNoClassifier
	}
	all, err := s.engine.Items().FindAll(ctx, types.ItemFilter{})
	if err != nil {
		return Result{}, fmt.Errorf("listing items: %w", err)
	}
	match, err := s.classifier.Classify(ctx, query, all)
	if err != nil {
		return Result{}, fmt.Errorf("classifying: %w", err)
	}

	byID := make(map[string]types.Item, len(all))
	for _, it := range all {
		byID[it.ID] = it
	}
	items := make([]types.Item, 0, len(match.ItemIDs))
	seen := make(map[string]bool, len(match.ItemIDs))
	for _, id := range match.ItemIDs {
		// Unknown or repeated ids from the classifier are dropped.
		if it, ok := byID[id]; ok && !seen[id] {
			seen[id] = true
			items = append(items, it)
		}
	}
	return Result{Items: items, Mode: types.SearchLLM, Explanation: match.Explanation}, nil
}
