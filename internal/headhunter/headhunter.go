// Package headhunter is the hh.ru connector.
package headhunter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/job-harvester/internal/connector"
	"github.com/spigell/job-harvester/internal/httpx"
	"github.com/spigell/job-harvester/internal/listing"
)

const (
	Name      = "headhunter"
	apiURL    = "https://api.hh.ru"
	userAgent = "spigell/job-harvester (spigelly@gmail.com)"
	// Max value for search per page.
	perPage = "100"
)

// Config is the headhunter section of the sources configuration.
type Config struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	APIURL  string `mapstructure:"api_url"`
	Period  uint   `mapstructure:"period"`
	OrderBy string `mapstructure:"order_by"`

	connector.Options `mapstructure:",squash"`
}

type Client struct {
	token     string
	logger    *zap.Logger
	http      *httpx.Client
	cfg       Config
	UserAgent string
	APIURL    string
}

func New(cfg Config, client *httpx.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = httpx.New(cfg.Timeout, logger)
	}
	url := cfg.APIURL
	if url == "" {
		url = apiURL
	}

	return &Client{
		token:     cfg.Token,
		logger:    logger.With(zap.String("source", Name)),
		http:      client,
		cfg:       cfg,
		UserAgent: userAgent,
		APIURL:    url,
	}
}

func (c *Client) Name() string {
	return Name
}

// Search runs one vacancy search per query and converts vacancies into listings.
func (c *Client) Search(ctx context.Context, criteria listing.SearchCriteria) ([]*listing.JobListing, error) {
	return connector.Run(ctx, Name, c.cfg.Options, criteria, func(ctx context.Context, query string, max int) ([]*listing.JobListing, error) {
		params := &SearchParams{
			Text:    query,
			Areas:   areasFor(criteria.Location),
			OrderBy: c.cfg.OrderBy,
			Period:  c.cfg.Period,
		}
		if criteria.JobType.EntryLevel() {
			params.Experience = experienceNone
		}

		vacancies, err := c.search(ctx, params, max)
		if err != nil {
			return nil, fmt.Errorf("search vacancies: %w", err)
		}

		c.logger.Debug("vacancies found", zap.String("query", query), zap.Int("count", vacancies.Len()))

		return vacancies.ToListings(), nil
	})
}
