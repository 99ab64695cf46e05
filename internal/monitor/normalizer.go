package monitor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Tags removed before extraction; they carry chrome or code, not content
const strippedTags = "script, style, nav, footer, header, aside, noscript, iframe, svg"

// Content containers tried in priority order before falling back to body
var contentSelectors = []string{
	"main",
	"article",
	"div.content, div.main-content, div.page-content",
}

// Block-level elements delimit lines in the extracted text
var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "div": true, "dl": true, "dt": true,
	"fieldset": true, "figcaption": true, "figure": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"hr": true, "li": true, "main": true, "ol": true, "p": true,
	"pre": true, "section": true, "table": true, "td": true, "th": true,
	"tr": true, "ul": true,
}

// ExtractText converts raw page markup into comparable plain text:
// boilerplate tags are stripped, the most specific content container is
// chosen, block elements become lines, each line is trimmed and blank
// lines are dropped. The walk is over the parsed node tree, so
// attribute order and markup formatting noise cannot affect the output.
// Any parse failure returns "", which callers treat as unknown content
// rather than an observed empty page.
func ExtractText(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}

	doc.Find(strippedTags).Remove()

	root := doc.Find("body").First()
	for _, selector := range contentSelectors {
		if sel := doc.Find(selector); sel.Length() > 0 {
			root = sel.First()
			break
		}
	}

	var sb strings.Builder
	for _, node := range root.Nodes {
		writeBlockText(&sb, node)
	}
	return collapseLines(sb.String())
}

func writeBlockText(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
	case html.ElementNode:
		block := blockTags[n.Data]
		if block {
			sb.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeBlockText(sb, c)
		}
		if block {
			sb.WriteByte('\n')
		}
	}
}

func collapseLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
