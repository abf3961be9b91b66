// Package chunker splits semantic units into bounded-size chunks for embedding.
package chunker

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/textsplitter"

	"unirag-ingestor/internal/config"
	"unirag-ingestor/internal/models"
)

// fallbackSeparators follow the optional primary separator, from coarse to
// fine. The empty separator splits between characters and always makes progress.
var fallbackSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Config holds chunking configuration. Sizes are measured in characters.
type Config struct {
	PrimarySeparator string
	MaxChunkSize     int
	Overlap          int
	AddChunkIndex    bool
}

// FromConfig maps the run configuration onto a chunker Config.
func FromConfig(c config.ChunkingConfig) Config {
	return Config{
		PrimarySeparator: c.SemanticSeparator,
		MaxChunkSize:     c.ChunkSize,
		Overlap:          c.ChunkOverlap,
		AddChunkIndex:    c.AddChunkIndex,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("max chunk size must be positive, got %d", c.MaxChunkSize)
	}
	if c.Overlap < 0 || c.Overlap >= c.MaxChunkSize {
		return fmt.Errorf("overlap (%d) must be in [0, %d)", c.Overlap, c.MaxChunkSize)
	}
	return nil
}

// Separators returns the separator precedence list.
func (c Config) Separators() []string {
	seps := make([]string, 0, len(fallbackSeparators)+1)
	if c.PrimarySeparator != "" {
		seps = append(seps, c.PrimarySeparator)
	}
	return append(seps, fallbackSeparators...)
}

// Chunker splits records recursively, trying separators in precedence order.
type Chunker struct {
	config   Config
	splitter textsplitter.RecursiveCharacter
}

// New creates a Chunker. Returns an error if the configuration is invalid.
func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{
		config: cfg,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithSeparators(cfg.Separators()),
			textsplitter.WithChunkSize(cfg.MaxChunkSize),
			textsplitter.WithChunkOverlap(cfg.Overlap),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
			textsplitter.WithKeepSeparator(true),
		),
	}, nil
}

// SplitText splits one text. Text at or under the size limit is returned
// unchanged as a single chunk. A separator stays at the start of the chunk
// that follows it; only whitespace at chunk edges is trimmed.
func (c *Chunker) SplitText(text string) ([]string, error) {
	if utf8.RuneCountInString(text) <= c.config.MaxChunkSize {
		return []string{text}, nil
	}
	parts, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %w", err)
	}
	return parts, nil
}

// Chunk splits every record and returns the chunks in record order. Each
// chunk gets its own copy of the record's metadata.
func (c *Chunker) Chunk(records []models.RawRecord) ([]models.Chunk, error) {
	chunks := make([]models.Chunk, 0, len(records))
	for i, rec := range records {
		parts, err := c.SplitText(rec.Content)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		for j, part := range parts {
			meta := models.CopyMetadata(rec.Metadata)
			if c.config.AddChunkIndex {
				meta[models.MetaChunkIndex] = strconv.Itoa(j)
				meta[models.MetaChunkCount] = strconv.Itoa(len(parts))
			}
			chunks = append(chunks, models.Chunk{Text: part, Metadata: meta})
		}
	}

	log.Debug().
		Int("records", len(records)).
		Int("chunks", len(chunks)).
		Int("max_chunk_size", c.config.MaxChunkSize).
		Int("overlap", c.config.Overlap).
		Msg("Chunked records")
	return chunks, nil
}
