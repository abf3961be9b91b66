package parser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/rs/zerolog/log"

	"unirag-ingestor/internal/models"
)

const ReadabilityStrategy = "readability_article"

// ExtractArticle treats the main article of the page as a single semantic unit.
func ExtractArticle(doc string, cfg ParserConfig) ([]models.RawRecord, error) {
	pageURL, err := url.Parse(cfg.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("invalid source url %q: %w", cfg.SourceURL, err)
	}

	article, err := readability.FromReader(strings.NewReader(doc), pageURL)
	if err != nil {
		return nil, fmt.Errorf("readability: %w", err)
	}

	content := normalizeLines(article.TextContent)
	if content == "" {
		log.Warn().Str("url", cfg.SourceURL).Msg("Readability found no article text")
		return nil, nil
	}

	meta := cfg.baseMetadata()
	meta[models.MetaTitle] = ""
	if root, err := goquery.NewDocumentFromReader(strings.NewReader(doc)); err == nil {
		meta[models.MetaTitle] = documentTitle(root)
	}

	return []models.RawRecord{{Content: content, Metadata: meta}}, nil
}
