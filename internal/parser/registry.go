package parser

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"unirag-ingestor/internal/config"
	"unirag-ingestor/internal/models"
)

var (
	// ErrUnknownStrategy is returned by Resolve when no strategy is registered
	// under the requested name.
	ErrUnknownStrategy = errors.New("unknown parser strategy")

	// ErrExtractionSkip marks a malformed fragment that was dropped. Strategies
	// log it and carry on; it is never returned to the caller.
	ErrExtractionSkip = errors.New("extraction skipped")
)

// ParserConfig is what a strategy needs to know about the source.
type ParserConfig struct {
	SourceURL string
	SourceID  string
	Selectors config.Selectors
}

// NewParserConfig builds a ParserConfig from the run configuration.
func NewParserConfig(cfg *config.Config) ParserConfig {
	return ParserConfig{
		SourceURL: cfg.TargetURL,
		SourceID:  cfg.SourceID,
		Selectors: cfg.Selectors,
	}
}

func (p ParserConfig) baseMetadata() map[string]string {
	return map[string]string{
		models.MetaSourceURL: p.SourceURL,
		models.MetaSourceID:  p.SourceID,
	}
}

// Strategy transforms one HTML document into ordered semantic units.
type Strategy interface {
	Extract(html string, cfg ParserConfig) ([]models.RawRecord, error)
}

// StrategyFunc adapts a plain function to Strategy.
type StrategyFunc func(html string, cfg ParserConfig) ([]models.RawRecord, error)

func (f StrategyFunc) Extract(html string, cfg ParserConfig) ([]models.RawRecord, error) {
	return f(html, cfg)
}

// Registry maps strategy names to implementations.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// DefaultRegistry holds the built-in strategies.
var DefaultRegistry = NewRegistry()

// NewRegistry creates a registry with the built-in strategies.
func NewRegistry() *Registry {
	r := NewEmptyRegistry()

	r.Register(config.StatuteStrategy, StrategyFunc(ExtractStatutes))
	r.Register(ReadabilityStrategy, StrategyFunc(ExtractArticle))
	r.Register(MarkdownSectionsStrategy, NewMarkdownSections())

	return r
}

// NewEmptyRegistry creates a registry with nothing registered.
func NewEmptyRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register adds or replaces the strategy stored under name.
func (r *Registry) Register(name string, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[name] = s
}

// Resolve returns the strategy registered under name.
func (r *Registry) Resolve(name string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return s, nil
}

// Names returns the registered strategy names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.strategies))
	for n := range r.strategies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Parse resolves the strategy and runs it.
func (r *Registry) Parse(strategy, html string, cfg ParserConfig) ([]models.RawRecord, error) {
	s, err := r.Resolve(strategy)
	if err != nil {
		return nil, err
	}
	return s.Extract(html, cfg)
}
