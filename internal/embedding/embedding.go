package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"unirag-ingestor/internal/config"
)

// ErrEmbeddingProvider wraps any failure of the embedding provider: quota,
// auth, transport or a malformed response. A run that hits it is aborted.
var ErrEmbeddingProvider = errors.New("embedding provider error")

const defaultBatchSize = 512

// Embedder turns texts into vectors, one per text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Adapter puts a uniform contract on top of a langchaingo embedder.
type Adapter struct {
	embedder embeddings.Embedder
	provider string
	model    string
}

// NewAdapter wraps an existing langchaingo embedder.
func NewAdapter(e embeddings.Embedder, provider, model string) *Adapter {
	return &Adapter{embedder: e, provider: provider, model: model}
}

// NewFromClient builds an Adapter over any langchaingo embedder client.
func NewFromClient(client embeddings.EmbedderClient, provider, model string, batchSize int) (*Adapter, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	e, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(batchSize),
		embeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: create embedder: %v", ErrEmbeddingProvider, err)
	}
	return NewAdapter(e, provider, model), nil
}

// New selects the provider named in cfg.
func New(ctx context.Context, cfg config.EmbeddingConfig) (*Adapter, error) {
	log.Debug().
		Str("service", cfg.ServiceType).
		Str("model", cfg.Model()).
		Msg("Initializing embedder")

	var (
		client embeddings.EmbedderClient
		err    error
	)
	switch cfg.ServiceType {
	case config.ServiceOpenAI:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.OpenAIKey, "Bearer ")),
			openai.WithEmbeddingModel(cfg.ModelOpenAI),
		}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		client, err = openai.New(opts...)
	case config.ServiceGoogle:
		client, err = googleai.New(ctx,
			googleai.WithAPIKey(cfg.GoogleKey),
			googleai.WithDefaultEmbeddingModel(cfg.ModelGoogle),
		)
	case config.ServiceOllama:
		client, err = ollama.New(
			ollama.WithServerURL(cfg.OllamaBaseURL),
			ollama.WithModel(cfg.ModelOllama),
		)
	default:
		return nil, fmt.Errorf("%w: unknown embedding service %q", config.ErrConfig, cfg.ServiceType)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: init %s client: %v", ErrEmbeddingProvider, cfg.ServiceType, err)
	}

	return NewFromClient(client, cfg.ServiceType, cfg.Model(), cfg.BatchSize)
}

// Embed embeds all texts in one logical batch. The result is either complete
// and aligned with texts, or an error.
func (a *Adapter) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := a.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrEmbeddingProvider, a.provider, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: %s returned %d vectors for %d texts", ErrEmbeddingProvider, a.provider, len(vectors), len(texts))
	}

	dims := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dims {
			return nil, fmt.Errorf("%w: %s returned vector %d with %d dimensions, want %d", ErrEmbeddingProvider, a.provider, i, len(v), dims)
		}
	}

	log.Info().
		Str("provider", a.provider).
		Str("model", a.model).
		Int("texts", len(texts)).
		Int("dimensions", dims).
		Msg("Generated embeddings")
	return vectors, nil
}
