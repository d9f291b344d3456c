package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

var (
	ErrUnsupportedURL = errors.New("browser: unsupported url")
	ErrFetchFailed    = errors.New("browser: fetch failed")
)

// Page is the extracted content of a fetched document.
type Page struct {
	URL       string
	Origin    string
	Title     string
	InnerText string
}

// Fetcher loads pages over HTTP.
type Fetcher struct {
	client       *resty.Client
	maxTextBytes int
}

func NewFetcher(timeout time.Duration, userAgent string, maxTextBytes int) *Fetcher {
	client := resty.New().
		SetTimeout(timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)).
		SetHeader("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	if userAgent != "" {
		client.SetHeader("User-Agent", userAgent)
	}
	return &Fetcher{client: client, maxTextBytes: maxTextBytes}
}

// Fetch downloads rawURL and extracts its title and visible text.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	origin, err := OriginOf(rawURL)
	if err != nil {
		return Page{}, err
	}
	resp, err := f.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %s: %v", ErrFetchFailed, rawURL, err)
	}
	if resp.IsError() {
		return Page{}, fmt.Errorf("%w: %s: HTTP %d", ErrFetchFailed, rawURL, resp.StatusCode())
	}

	page := Page{URL: rawURL, Origin: origin}
	contentType := resp.Header().Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "html") {
		page.InnerText = truncate(collapseSpace(string(resp.Body())), f.maxTextBytes)
		return page, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return Page{}, fmt.Errorf("%w: %s: %v", ErrFetchFailed, rawURL, err)
	}
	page.Title = collapseSpace(doc.Find("title").First().Text())
	page.InnerText = truncate(ExtractInnerText(doc), f.maxTextBytes)
	return page, nil
}

// ExtractInnerText approximates the rendered text of the document body.
func ExtractInnerText(doc *goquery.Document) string {
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	body = body.Clone()
	body.Find("script, style, noscript, template, head").Remove()

	var parts []string
	body.Find("h1, h2, h3, h4, h5, h6, p, li, td, th, pre, blockquote, figcaption").Each(func(_ int, s *goquery.Selection) {
		if s.Find("p, li, pre, blockquote").Length() > 0 {
			return
		}
		if text := collapseSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		return collapseSpace(body.Text())
	}
	return strings.Join(parts, "\n")
}

// OriginOf returns scheme://host[:port] for http and https URLs.
func OriginOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedURL, rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
