package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/rs/zerolog/log"

	"unirag-ingestor/internal/models"
)

type statuteSelectors struct {
	container, title, content cascadia.Selector
}

func compileStatuteSelectors(cfg ParserConfig) (*statuteSelectors, error) {
	var (
		s   statuteSelectors
		err error
	)
	if s.container, err = compileSelector(cfg.Selectors.ParagraphContainer); err != nil {
		return nil, fmt.Errorf("paragraph_container %q: %w", cfg.Selectors.ParagraphContainer, err)
	}
	if s.title, err = compileSelector(cfg.Selectors.TitleSelector); err != nil {
		return nil, fmt.Errorf("title_selector %q: %w", cfg.Selectors.TitleSelector, err)
	}
	if s.content, err = compileSelector(cfg.Selectors.ContentSelector); err != nil {
		return nil, fmt.Errorf("content_selector %q: %w", cfg.Selectors.ContentSelector, err)
	}
	return &s, nil
}

// ExtractStatutes yields one record per paragraph container, in document
// order. Containers without a title or content node, or whose content is
// empty, are logged and skipped.
func ExtractStatutes(doc string, cfg ParserConfig) ([]models.RawRecord, error) {
	sels, err := compileStatuteSelectors(cfg)
	if err != nil {
		return nil, err
	}

	root, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	containers := root.FindMatcher(sels.container)
	records := make([]models.RawRecord, 0, containers.Length())
	containers.Each(func(i int, s *goquery.Selection) {
		rec, err := extractParagraph(s, sels, cfg)
		if err != nil {
			log.Warn().Err(err).Int("container", i).Msg("Skipping paragraph container")
			return
		}
		records = append(records, rec)
	})

	log.Debug().
		Int("containers", containers.Length()).
		Int("records", len(records)).
		Msg("Extracted statute paragraphs")
	return records, nil
}

func extractParagraph(s *goquery.Selection, sels *statuteSelectors, cfg ParserConfig) (models.RawRecord, error) {
	title := s.FindMatcher(sels.title).First()
	if title.Length() == 0 {
		return models.RawRecord{}, fmt.Errorf("%w: no title node", ErrExtractionSkip)
	}
	content := s.FindMatcher(sels.content).First()
	if content.Length() == 0 {
		return models.RawRecord{}, fmt.Errorf("%w: no content node", ErrExtractionSkip)
	}

	text := blockText(content)
	if text == "" {
		return models.RawRecord{}, fmt.Errorf("%w: empty content", ErrExtractionSkip)
	}

	number, label := splitHeading(inlineText(title))
	meta := cfg.baseMetadata()
	meta[models.MetaParagraphNumber] = number
	meta[models.MetaParagraphTitle] = label

	return models.RawRecord{Content: text, Metadata: meta}, nil
}
