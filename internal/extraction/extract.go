package extraction

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// BrandContext is the structured output of the context extraction
// stage. Text is what downstream LLM stages consume.
type BrandContext struct {
	Title       string
	Description string
	Headings    []string
	Text        string
}

// Extract builds a brand context for a domain: normalize the URL,
// fetch the homepage, and distill its descriptive text. When static
// HTML yields too little content the page is re-rendered in a
// headless browser before giving up.
func Extract(ctx context.Context, domainURL string) (*BrandContext, error) {
	normalized, err := NormalizeURL(domainURL)
	if err != nil {
		return nil, err
	}

	html, err := FetchHTML(ctx, normalized)
	if err != nil {
		return nil, err
	}

	bc, err := FromHTML(html)
	if err != nil {
		return nil, err
	}

	if ShouldUseBrowser(bc.Text) {
		rendered, berr := RenderWithBrowser(ctx, normalized, DefaultTimeout)
		if berr == nil {
			if rbc, perr := FromHTML(rendered); perr == nil && len(rbc.Text) > len(bc.Text) {
				bc = rbc
			}
		}
		// Browser failures are not fatal; the static extraction stands.
	}

	if bc.Text == "" {
		return nil, &FetchError{URL: normalized, Message: "no extractable content"}
	}
	return bc, nil
}

// FromHTML distills the descriptive parts of a homepage: title, meta
// description, headings and leading paragraph text.
func FromHTML(html string) (*BrandContext, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	bc := &BrandContext{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		bc.Description = strings.TrimSpace(desc)
	}
	if bc.Description == "" {
		if desc, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
			bc.Description = strings.TrimSpace(desc)
		}
	}

	doc.Find("h1, h2").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" && len(bc.Headings) < 10 {
			bc.Headings = append(bc.Headings, text)
		}
	})

	var paragraphs []string
	doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if len(text) > 40 {
			paragraphs = append(paragraphs, text)
		}
		return len(paragraphs) < 12
	})

	var sb strings.Builder
	if bc.Title != "" {
		sb.WriteString(bc.Title)
		sb.WriteString("\n")
	}
	if bc.Description != "" {
		sb.WriteString(bc.Description)
		sb.WriteString("\n")
	}
	if len(bc.Headings) > 0 {
		sb.WriteString(strings.Join(bc.Headings, " | "))
		sb.WriteString("\n")
	}
	sb.WriteString(strings.Join(paragraphs, "\n"))
	bc.Text = strings.TrimSpace(sb.String())

	return bc, nil
}
