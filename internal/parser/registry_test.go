package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unirag-ingestor/internal/config"
	"unirag-ingestor/internal/models"
)

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()

	t.Run("built-in strategies", func(t *testing.T) {
		for _, name := range []string{config.StatuteStrategy, ReadabilityStrategy, MarkdownSectionsStrategy} {
			s, err := r.Resolve(name)
			require.NoError(t, err, name)
			assert.NotNil(t, s)
		}
		assert.Equal(t, []string{MarkdownSectionsStrategy, config.StatuteStrategy, ReadabilityStrategy}, r.Names())
	})

	t.Run("unknown strategy", func(t *testing.T) {
		s, err := r.Resolve("pdf_scraper")
		assert.Nil(t, s)
		assert.ErrorIs(t, err, ErrUnknownStrategy)
		assert.Contains(t, err.Error(), "pdf_scraper")
	})

	t.Run("parse with unknown strategy", func(t *testing.T) {
		_, err := r.Parse("nope", "<html></html>", ParserConfig{})
		assert.ErrorIs(t, err, ErrUnknownStrategy)
	})
}

func TestRegistry_RegisterExtendsWithoutTouchingCallers(t *testing.T) {
	r := NewEmptyRegistry()
	_, err := r.Resolve("lines")
	require.ErrorIs(t, err, ErrUnknownStrategy)

	r.Register("lines", StrategyFunc(func(html string, cfg ParserConfig) ([]models.RawRecord, error) {
		return []models.RawRecord{{Content: html, Metadata: cfg.baseMetadata()}}, nil
	}))

	records, err := r.Parse("lines", "hello", ParserConfig{SourceURL: "u", SourceID: "id"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "hello", records[0].Content)
	assert.Equal(t, "u", records[0].Metadata[models.MetaSourceURL])
	assert.Equal(t, "id", records[0].Metadata[models.MetaSourceID])
}

func TestNewParserConfig(t *testing.T) {
	cfg := &config.Config{
		TargetURL: "https://example.com",
		SourceID:  "EX",
		Selectors: config.Selectors{ParagraphContainer: "div.a", TitleSelector: "h1", ContentSelector: "p"},
	}
	pc := NewParserConfig(cfg)
	assert.Equal(t, "https://example.com", pc.SourceURL)
	assert.Equal(t, "EX", pc.SourceID)
	assert.Equal(t, "div.a", pc.Selectors.ParagraphContainer)
}
