package types

import (
	"bytes"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Page is the rendered or fetched content of a single URL.
type Page struct {
	// URL is the URL that was requested.
	URL string

	// FinalURL is the URL after any redirects or client-side navigation.
	FinalURL string

	// StatusCode is the HTTP status code, when known.
	StatusCode int

	// Headers are the response HTTP headers (empty for browser pages).
	Headers http.Header

	// Body is the raw HTML.
	Body []byte

	// ContentType is the MIME type of the content.
	ContentType string

	// FetchDuration is how long the fetch took.
	FetchDuration time.Duration

	// FetchedAt is when the content was captured.
	FetchedAt time.Time

	doc *goquery.Document
}

// NewHTTPPage creates a Page from an http.Response and its already-read body.
func NewHTTPPage(requestURL string, httpResp *http.Response, body []byte, duration time.Duration) *Page {
	finalURL := requestURL
	if httpResp.Request != nil && httpResp.Request.URL != nil {
		finalURL = httpResp.Request.URL.String()
	}
	return &Page{
		URL:           requestURL,
		FinalURL:      finalURL,
		StatusCode:    httpResp.StatusCode,
		Headers:       httpResp.Header,
		Body:          body,
		ContentType:   httpResp.Header.Get("Content-Type"),
		FetchDuration: duration,
		FetchedAt:     time.Now(),
	}
}

// NewBrowserPage creates a Page from headless browser output.
func NewBrowserPage(requestURL, finalURL string, html []byte, duration time.Duration) *Page {
	if finalURL == "" {
		finalURL = requestURL
	}
	return &Page{
		URL:           requestURL,
		FinalURL:      finalURL,
		StatusCode:    http.StatusOK,
		Headers:       make(http.Header),
		Body:          html,
		ContentType:   "text/html",
		FetchDuration: duration,
		FetchedAt:     time.Now(),
	}
}

// Document returns a parsed goquery document, lazily initializing it.
func (p *Page) Document() (*goquery.Document, error) {
	if p.doc != nil {
		return p.doc, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
	if err != nil {
		return nil, err
	}
	p.doc = doc
	return doc, nil
}

// ResolveURL resolves a possibly relative reference against the page URL.
func (p *Page) ResolveURL(ref string) string {
	base, err := url.Parse(p.FinalURL)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}

// IsSuccess returns true if the status is 2xx.
func (p *Page) IsSuccess() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}
