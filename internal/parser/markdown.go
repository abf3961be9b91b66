package parser

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"unirag-ingestor/internal/models"
)

const MarkdownSectionsStrategy = "html_markdown_sections"

// MarkdownSections converts the page to Markdown and emits one record per
// heading section. Text before the first heading becomes its own record.
type MarkdownSections struct {
	converter *md.Converter
	markdown  goldmark.Markdown
}

func NewMarkdownSections() *MarkdownSections {
	return &MarkdownSections{
		converter: md.NewConverter("", true, nil),
		markdown:  goldmark.New(),
	}
}

func (m *MarkdownSections) Extract(doc string, cfg ParserConfig) ([]models.RawRecord, error) {
	markdown, err := m.converter.ConvertString(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert html to markdown: %w", err)
	}

	var records []models.RawRecord
	for _, s := range m.sections([]byte(markdown)) {
		if s.body == "" {
			continue
		}
		meta := cfg.baseMetadata()
		meta[models.MetaSectionTitle] = s.title
		meta[models.MetaSectionLevel] = strconv.Itoa(s.level)
		records = append(records, models.RawRecord{Content: s.body, Metadata: meta})
	}
	return records, nil
}

type section struct {
	title string
	level int
	body  string
}

type headingSpan struct {
	title      string
	level      int
	start, end int // byte offsets of the heading line
}

func (m *MarkdownSections) sections(src []byte) []section {
	root := m.markdown.Parser().Parse(text.NewReader(src))

	var headings []headingSpan
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Lines().Len() == 0 {
			continue
		}
		var title strings.Builder
		for i := 0; i < h.Lines().Len(); i++ {
			seg := h.Lines().At(i)
			title.Write(seg.Value(src))
		}
		first, last := h.Lines().At(0), h.Lines().At(h.Lines().Len()-1)
		headings = append(headings, headingSpan{
			title: collapseSpace(title.String()),
			level: h.Level,
			start: bytes.LastIndexByte(src[:first.Start], '\n') + 1,
			end:   lineEnd(src, last.Stop),
		})
	}

	out := make([]section, 0, len(headings)+1)
	preambleEnd := len(src)
	if len(headings) > 0 {
		preambleEnd = headings[0].start
	}
	out = append(out, section{body: strings.TrimSpace(string(src[:preambleEnd]))})

	for i, h := range headings {
		bodyEnd := len(src)
		if i+1 < len(headings) {
			bodyEnd = headings[i+1].start
		}
		body := ""
		if h.end < bodyEnd {
			body = strings.TrimSpace(string(src[h.end:bodyEnd]))
		}
		out = append(out, section{title: h.title, level: h.level, body: body})
	}
	return out
}

func lineEnd(src []byte, from int) int {
	if from >= len(src) {
		return len(src)
	}
	idx := bytes.IndexByte(src[from:], '\n')
	if idx < 0 {
		return len(src)
	}
	return from + idx + 1
}
