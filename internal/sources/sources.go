// Package sources holds the connectors for the public job boards and job search APIs.
package sources

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/spigell/job-harvester/internal/connector"
	"github.com/spigell/job-harvester/internal/httpx"
	"github.com/spigell/job-harvester/internal/jsonx"
)

// Config is the per-source section of the configuration file.
type Config struct {
	Enabled bool `mapstructure:"enabled"`

	// Keys holds the primary credential and an optional backup one.
	Keys    []string `mapstructure:"keys"`
	AppID   string   `mapstructure:"app_id"`
	Country string   `mapstructure:"country"`
	Host    string   `mapstructure:"host"`
	CX      string   `mapstructure:"cx"`
	BaseURL string   `mapstructure:"base_url"`

	connector.Options `mapstructure:",squash"`
}

// PrimaryKey returns the first configured credential.
func (c Config) PrimaryKey() string {
	for _, key := range c.Keys {
		if key = strings.TrimSpace(key); key != "" {
			return key
		}
	}
	return ""
}

type base struct {
	name    string
	cfg     Config
	client  *httpx.Client
	logger  *zap.Logger
	baseURL string
}

func newBase(name string, cfg Config, client *httpx.Client, logger *zap.Logger, defaultURL string) base {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = httpx.New(cfg.Options.Timeout, logger)
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultURL
	}
	return base{
		name:    name,
		cfg:     cfg,
		client:  client,
		logger:  logger.With(zap.String("source", name)),
		baseURL: baseURL,
	}
}

func (b base) Name() string {
	return b.name
}

// plainText strips markup that some APIs leave in their snippets.
func plainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// absoluteURL resolves href against base. Unparseable links are returned unchanged.
func absoluteURL(baseURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	b, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

// salaryRange formats a min/max pair, skipping missing bounds.
func salaryRange(low, high float64, unit string) string {
	switch {
	case low > 0 && high > 0 && low != high:
		return strings.TrimSpace(fmt.Sprintf("%.0f-%.0f %s", low, high, unit))
	case low > 0:
		return strings.TrimSpace(fmt.Sprintf("%.0f %s", low, unit))
	case high > 0:
		return strings.TrimSpace(fmt.Sprintf("%.0f %s", high, unit))
	default:
		return ""
	}
}

func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

// prefixedID keeps ids unique across sources. An empty id stays empty so that
// Normalize assigns a generated one.
func prefixedID(source, id string) string {
	if id == "" {
		return ""
	}
	return source + "-" + id
}

func idString(v any) string {
	if v == nil {
		return ""
	}
	return jsonx.String(v)
}
