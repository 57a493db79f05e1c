// Package content implements the article content extractor:
// readability-style body extraction plus outbound-link collection.
package content

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	fetchTimeout  = 20 * time.Second
	maxBodyBytes  = 500 * 1024
	maxCleanChars = 15000
	maxLinks      = 50
)

// Result is the outcome of extracting one article's page.
type Result struct {
	CleanText     string
	ExternalLinks []string
}

// Extractor fetches and extracts article bodies.
type Extractor struct {
	client *http.Client
}

// New builds an Extractor with a 20s fetch timeout.
func New() *Extractor {
	return &Extractor{client: &http.Client{Timeout: fetchTimeout}}
}

// Extract fetches articleURL and produces cleanText plus outbound
// links whose host differs from the source host. Any failure is
// returned to the caller, who is expected to log-and-skip so the
// pipeline continues with the RSS snippet.
func (e *Extractor) Extract(ctx context.Context, articleURL, sourceHost string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return Result{}, err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Result{}, fmt.Errorf("content: %s returned status %d", articleURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Result{}, err
	}

	base, err := url.Parse(articleURL)
	if err != nil {
		return Result{}, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return Result{}, fmt.Errorf("content: parsing %s: %w", articleURL, err)
	}

	cleanText := extractCleanText(doc)
	links := extractExternalLinks(doc, base, sourceHost)

	return Result{CleanText: cleanText, ExternalLinks: links}, nil
}

// extractCleanText is a readability-style pass: drop script/style/nav/
// footer chrome, prefer an <article> body if present, collapse
// whitespace, cap length.
func extractCleanText(doc *goquery.Document) string {
	doc.Find("script, style, nav, footer, header, aside").Remove()

	body := doc.Find("article")
	if body.Length() == 0 {
		body = doc.Find("body")
	}

	text := strings.Join(strings.Fields(body.Text()), " ")
	if len(text) > maxCleanChars {
		text = text[:maxCleanChars]
	}
	return text
}

type linkEntry struct {
	href       string
	anchorText string
}

// extractExternalLinks parses every <a href>, resolves it against
// base, and keeps only http(s) links whose host differs from
// sourceHost, deduplicated and capped at maxLinks. anchorText is kept
// internally but never leaves this function:
// only href survives into Article.ExternalLinks.
func extractExternalLinks(doc *goquery.Document, base *url.URL, sourceHost string) []string {
	seen := make(map[string]bool)
	var entries []linkEntry

	doc.Find("a[href]").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if len(entries) >= maxLinks {
			return false
		}
		href, _ := sel.Attr("href")
		resolved, ok := resolveExternalLink(base, href, sourceHost)
		if !ok || seen[resolved] {
			return true
		}
		seen[resolved] = true
		entries = append(entries, linkEntry{href: resolved, anchorText: strings.TrimSpace(sel.Text())})
		return true
	})

	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.href
	}
	return out
}

func resolveExternalLink(base *url.URL, href, sourceHost string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil || href == "" {
		return "", false
	}
	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	if resolved.Hostname() == sourceHost {
		return "", false
	}
	return resolved.String(), true
}
