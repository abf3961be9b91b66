package parser

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// elements whose boundaries start a new line in extracted text
var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Fieldset: true, atom.Figcaption: true, atom.Figure: true, atom.Footer: true,
	atom.Form: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true, atom.Header: true,
	atom.Hr: true, atom.Li: true, atom.Main: true, atom.Nav: true,
	atom.Ol: true, atom.P: true, atom.Pre: true, atom.Section: true,
	atom.Table: true, atom.Tbody: true, atom.Td: true, atom.Tfoot: true,
	atom.Th: true, atom.Thead: true, atom.Tr: true, atom.Ul: true,
}

var skippedElements = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Template: true,
}

// blockText extracts the text below sel. Block boundaries and <br> become
// newlines, whitespace inside a line collapses to one space and empty lines
// are dropped.
func blockText(sel *goquery.Selection) string {
	var (
		lines []string
		cur   strings.Builder
	)
	flush := func() {
		if line := collapseSpace(cur.String()); line != "" {
			lines = append(lines, line)
		}
		cur.Reset()
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			cur.WriteString(n.Data)
			return
		case html.ElementNode:
			if skippedElements[n.DataAtom] {
				return
			}
			if n.DataAtom == atom.Br {
				flush()
				return
			}
		case html.CommentNode, html.DoctypeNode:
			return
		}

		block := n.Type == html.ElementNode && blockElements[n.DataAtom]
		if block {
			flush()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			flush()
		}
	}

	for _, n := range sel.Nodes {
		walk(n)
		flush()
	}
	return strings.Join(lines, "\n")
}

// inlineText returns the text of sel on a single line.
func inlineText(sel *goquery.Selection) string {
	return collapseSpace(sel.Text())
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// normalizeLines collapses whitespace per line and drops blank lines.
func normalizeLines(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = collapseSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// splitHeading splits a heading at its first whitespace run into
// identifier and label. A heading without whitespace is all identifier.
func splitHeading(heading string) (identifier, label string) {
	heading = strings.TrimSpace(heading)
	idx := strings.IndexFunc(heading, unicode.IsSpace)
	if idx < 0 {
		return heading, ""
	}
	return heading[:idx], strings.TrimSpace(heading[idx:])
}

func compileSelector(sel string) (cascadia.Selector, error) {
	return cascadia.Compile(sel)
}

// documentTitle returns the <title> of the page, if any.
func documentTitle(doc *goquery.Document) string {
	return inlineText(doc.Find("title").First())
}
