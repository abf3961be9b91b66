package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"unirag-ingestor/internal/chunker"
	"unirag-ingestor/internal/config"
	"unirag-ingestor/internal/embedding"
	"unirag-ingestor/internal/helper"
	"unirag-ingestor/internal/models"
	"unirag-ingestor/internal/parser"
)

// ErrNoRecords is returned when the strategy extracted nothing from the page.
var ErrNoRecords = errors.New("no records extracted")

// Fetcher retrieves the raw HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Store persists chunks together with their vectors as one unit.
type Store interface {
	Persist(ctx context.Context, chunks []models.Chunk, vectors [][]float32) (int, error)
}

// Result summarises one run.
type Result struct {
	RunID     string `json:"run_id"`
	Records   int    `json:"records"`
	Chunks    int    `json:"chunks"`
	Persisted int    `json:"persisted"`
}

// Pipeline runs fetch, parse, chunk, embed and persist for one source.
type Pipeline struct {
	fetcher  Fetcher
	registry *parser.Registry
	chunker  *chunker.Chunker
	embedder embedding.Embedder
	store    Store

	strategy  string
	targetURL string
	parserCfg parser.ParserConfig
	timeouts  config.Timeouts

	dryRun bool
	out    io.Writer
}

func NewPipeline(cfg *config.Config, f Fetcher, reg *parser.Registry, ch *chunker.Chunker, emb embedding.Embedder, store Store) *Pipeline {
	return &Pipeline{
		fetcher:   f,
		registry:  reg,
		chunker:   ch,
		embedder:  emb,
		store:     store,
		strategy:  cfg.ParserStrategy,
		targetURL: cfg.TargetURL,
		parserCfg: parser.NewParserConfig(cfg),
		timeouts:  cfg.Timeouts,
	}
}

// WithDryRun makes Run stop after chunking and write the chunks to w as JSON.
func (p *Pipeline) WithDryRun(w io.Writer) *Pipeline {
	p.dryRun = true
	p.out = w
	return p
}

// Run executes the stages in order. Nothing is written unless every earlier
// stage succeeded, and a canceled context is never carried into persistence.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	var res Result
	runID, err := helper.GenerateUUID()
	if err != nil {
		return res, err
	}
	res.RunID = runID
	logger := log.With().Str("run_id", runID).Str("strategy", p.strategy).Logger()

	fetchCtx, cancel := withTimeout(ctx, p.timeouts.FetchDuration())
	html, err := p.fetcher.Fetch(fetchCtx, p.targetURL)
	cancel()
	if err != nil {
		return res, err
	}
	logger.Debug().Str("url", p.targetURL).Int("bytes", len(html)).Msg("Fetched page")

	records, err := p.registry.Parse(p.strategy, html, p.parserCfg)
	if err != nil {
		return res, err
	}
	res.Records = len(records)
	if len(records) == 0 {
		return res, fmt.Errorf("%w from %s", ErrNoRecords, p.targetURL)
	}
	logger.Info().Int("records", len(records)).Msg("Parsed page")

	chunks, err := p.chunker.Chunk(records)
	if err != nil {
		return res, err
	}
	res.Chunks = len(chunks)
	logger.Info().Int("chunks", len(chunks)).Msg("Chunked records")

	if p.dryRun {
		helper.FprettyPrint(p.out, chunks)
		return res, nil
	}

	embedCtx, cancel := withTimeout(ctx, p.timeouts.EmbedDuration())
	vectors, err := p.embedder.Embed(embedCtx, models.Texts(chunks))
	cancel()
	if err != nil {
		return res, err
	}

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("run canceled before persistence: %w", err)
	}

	// once started, the batch runs to commit or rollback under its own timeout
	persistCtx, cancel := withTimeout(context.WithoutCancel(ctx), p.timeouts.PersistDuration())
	defer cancel()
	n, err := p.store.Persist(persistCtx, chunks, vectors)
	if err != nil {
		return res, err
	}
	res.Persisted = n
	logger.Info().Int("rows", n).Msg("Run complete")
	return res, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
