// Package fetch turns a job page URL into readable text for enrichment.
package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/job-harvester/internal/httpx"
	"github.com/spigell/job-harvester/internal/logger"
)

const (
	DefaultTimeout = 10 * time.Second
	// MinContentLength is the text length under which a page is considered
	// rendered client-side and handed to the browser.
	MinContentLength = 500
)

// Page is what a fetch produces. Links are absolute http(s) URLs in document order.
type Page struct {
	URL      string   `json:"url"`
	Text     string   `json:"text"`
	Links    []string `json:"links,omitempty"`
	Emails   []string `json:"emails,omitempty"`
	Rendered bool     `json:"rendered,omitempty"`
}

// Fetcher is the content-fetch service. Text never fails: an unreachable page
// yields an empty string.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Page, error)
	Text(ctx context.Context, rawURL string) string
}

// Renderer produces the HTML of a page after its scripts ran.
type Renderer interface {
	Render(ctx context.Context, rawURL string) (string, error)
}

// Error represents an error during URL fetching.
type Error struct {
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

type HTTP struct {
	client    *httpx.Client
	renderer  Renderer
	logger    *zap.Logger
	minLength int
}

type Option func(*HTTP)

func WithLogger(l *zap.Logger) Option {
	return func(h *HTTP) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithRenderer enables the browser fallback for short or blocked pages.
func WithRenderer(r Renderer) Option {
	return func(h *HTTP) {
		h.renderer = r
	}
}

func WithClient(c *httpx.Client) Option {
	return func(h *HTTP) {
		h.client = c
	}
}

// NewHTTP builds a fetcher that makes a single attempt per page.
func NewHTTP(timeout time.Duration, opts ...Option) *HTTP {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	h := &HTTP{logger: zap.NewNop(), minLength: MinContentLength}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = logger.ForStage(h.logger, "fetch")
	if h.client == nil {
		h.client = httpx.New(timeout, h.logger)
		h.client.Retry.MaxAttempts = 1
	}

	return h
}

func (h *HTTP) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	base, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, &Error{URL: rawURL, Message: "invalid url", Cause: err}
	}

	html, httpErr := h.client.GetHTML(ctx, base.String(), nil, nil)
	if httpErr != nil && h.renderer == nil {
		return nil, &Error{URL: rawURL, Message: "http request failed", Cause: httpErr}
	}

	page := &Page{URL: base.String()}
	if httpErr == nil {
		page, err = parse(base, html)
		if err != nil {
			return nil, &Error{URL: rawURL, Message: "parse html", Cause: err}
		}
	}

	if h.renderer != nil && utf8.RuneCountInString(page.Text) < h.minLength {
		if rendered := h.render(ctx, base); rendered != nil && len(rendered.Text) > len(page.Text) {
			page = rendered
		}
	}

	if page.Text == "" {
		if httpErr != nil {
			return nil, &Error{URL: rawURL, Message: "http request failed", Cause: httpErr}
		}
		return nil, &Error{URL: rawURL, Message: "empty page"}
	}

	return page, nil
}

func (h *HTTP) render(ctx context.Context, base *url.URL) *Page {
	html, err := h.renderer.Render(ctx, base.String())
	if err != nil {
		h.logger.Debug("browser rendering failed", zap.String(logger.FieldURL, base.String()), zap.Error(err))
		return nil
	}

	page, err := parse(base, html)
	if err != nil {
		h.logger.Debug("rendered page unreadable", zap.String(logger.FieldURL, base.String()), zap.Error(err))
		return nil
	}
	page.Rendered = true
	return page
}

func (h *HTTP) Text(ctx context.Context, rawURL string) string {
	return textOf(ctx, h, h.logger, rawURL)
}

func textOf(ctx context.Context, f Fetcher, log *zap.Logger, rawURL string) string {
	page, err := f.Fetch(ctx, rawURL)
	if err != nil {
		log.Debug("page not fetched", zap.String(logger.FieldURL, rawURL), zap.Error(err))
		return ""
	}
	return page.Text
}
