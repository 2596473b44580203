package ingest

import (
	"strings"

	"golang.org/x/net/html"
)

// skippedElements never contribute visible page text.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"nav":      true,
	"footer":   true,
	"header":   true,
	"noscript": true,
}

// Sanitize extracts the visible text from an HTML document, dropping
// boilerplate elements and collapsing whitespace to single spaces. Input
// that is not HTML passes through as whitespace-normalized plain text.
func Sanitize(raw string) string {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return normalize(raw)
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return normalize(sb.String())
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
