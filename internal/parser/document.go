// Package parser turns fetched catalog pages into categories, item links
// and records.
package parser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document is a parsed page together with the URL it was fetched from.
type Document struct {
	URL  string
	base *url.URL
	doc  *goquery.Document
}

// Parse builds a Document from fetched content.
func Parse(pageURL, content string) (*Document, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url %q: %w", pageURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}
	return &Document{URL: pageURL, base: base, doc: doc}, nil
}

// Find runs a CSS selector against the whole document.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// Resolve makes href absolute against the document URL and drops tracking
// parameters. It returns "" for links that cannot be crawled.
func (d *Document) Resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := d.base.ResolveReference(u)
	resolved.Fragment = ""

	if resolved.RawQuery != "" {
		q := resolved.Query()
		for _, p := range trackingParams {
			q.Del(p)
		}
		resolved.RawQuery = q.Encode()
	}
	return resolved.String()
}

var trackingParams = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"yclid", "gclid", "fbclid", "_openstat",
}

func text(s *goquery.Selection) string {
	return strings.TrimSpace(s.Text())
}

// afterColon returns the trimmed text after the last ':' (or all of it).
func afterColon(s string) string {
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
