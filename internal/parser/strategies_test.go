package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unirag-ingestor/internal/models"
)

func TestMarkdownSections_Extract(t *testing.T) {
	html := `<html><body>
<p>Einleitung zum Leitfaden.</p>
<h1>Erster Abschnitt</h1>
<p>Alpha.</p>
<h2>Zweiter Abschnitt</h2>
<p>Beta.</p>
<h2>Leerer Abschnitt</h2>
<h3>Dritter Abschnitt</h3>
<p>Gamma.</p>
</body></html>`

	records, err := NewMarkdownSections().Extract(html, ParserConfig{SourceURL: "https://example.com/guide", SourceID: "GUIDE"})
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, "Einleitung zum Leitfaden.", records[0].Content)
	assert.Equal(t, "", records[0].Metadata[models.MetaSectionTitle])
	assert.Equal(t, "0", records[0].Metadata[models.MetaSectionLevel])

	assert.Equal(t, "Alpha.", records[1].Content)
	assert.Equal(t, "Erster Abschnitt", records[1].Metadata[models.MetaSectionTitle])
	assert.Equal(t, "1", records[1].Metadata[models.MetaSectionLevel])

	assert.Equal(t, "Beta.", records[2].Content)
	assert.Equal(t, "Zweiter Abschnitt", records[2].Metadata[models.MetaSectionTitle])
	assert.Equal(t, "2", records[2].Metadata[models.MetaSectionLevel])

	assert.Equal(t, "Gamma.", records[3].Content)
	assert.Equal(t, "Dritter Abschnitt", records[3].Metadata[models.MetaSectionTitle])
	assert.Equal(t, "3", records[3].Metadata[models.MetaSectionLevel])

	for _, r := range records {
		assert.Equal(t, "GUIDE", r.Metadata[models.MetaSourceID])
	}
}

func TestMarkdownSections_NoHeadings(t *testing.T) {
	records, err := NewMarkdownSections().Extract(`<p>Nur Text.</p>`, ParserConfig{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Nur Text.", records[0].Content)
}

func TestExtractArticle(t *testing.T) {
	para := "Die Datenschutz-Grundverordnung regelt die Verarbeitung personenbezogener Daten durch " +
		"private Unternehmen und öffentliche Stellen in der gesamten Europäischen Union. "
	html := `<html><head><title>DSGVO Überblick</title></head><body>
<nav><a href="/">Start</a></nav>
<article>
<h1>DSGVO Überblick</h1>
<p>` + strings.Repeat(para, 3) + `</p>
<p>` + strings.Repeat(para, 2) + `</p>
</article>
</body></html>`

	records, err := ExtractArticle(html, ParserConfig{SourceURL: "https://example.com/dsgvo", SourceID: "DSGVO"})
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Contains(t, records[0].Content, "Die Datenschutz-Grundverordnung regelt")
	assert.Equal(t, "DSGVO Überblick", records[0].Metadata[models.MetaTitle])
	assert.Equal(t, "https://example.com/dsgvo", records[0].Metadata[models.MetaSourceURL])
}

func TestExtractArticle_InvalidURL(t *testing.T) {
	_, err := ExtractArticle("<html></html>", ParserConfig{SourceURL: "://bad"})
	assert.Error(t, err)
}

func TestBlockTextAndNormalizeLines(t *testing.T) {
	assert.Equal(t, "a b\nc", normalizeLines("  a   b \n\n\t\n c  "))
	assert.Equal(t, "", normalizeLines(" \n "))
}
