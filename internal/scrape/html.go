package scrape

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Elements that carry page chrome rather than content.
const boilerplateSelector = "script, style, header, footer, nav, form, noscript, iframe, svg"

// Elements after which a line break is inserted so adjacent blocks do not
// run together.
const blockSelector = "p, div, br, li, tr, h1, h2, h3, h4, h5, h6, pre, blockquote, section, article, table"

// extractHTML returns the page title and visible body text.
func extractHTML(body []byte) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("%w: parsing HTML: %v", ErrExtractionFailed, err)
	}

	title := strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")

	doc.Find(boilerplateSelector).Remove()
	doc.Find(blockSelector).AppendHtml("\n")

	return title, collapseWhitespace(doc.Find("body").Text()), nil
}
