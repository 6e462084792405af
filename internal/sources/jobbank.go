package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/spigell/job-harvester/internal/connector"
	"github.com/spigell/job-harvester/internal/httpx"
	"github.com/spigell/job-harvester/internal/listing"
)

const (
	JobBankName = "jobbank"
	jobBankURL  = "https://www.jobbank.gc.ca"
	// JobBankHost serves full descriptions on the listing page itself.
	JobBankHost = "jobbank.gc.ca"
)

// JobBank scrapes the public result page of the Canadian Job Bank.
type JobBank struct {
	base
}

func NewJobBank(cfg Config, client *httpx.Client, logger *zap.Logger) *JobBank {
	return &JobBank{base: newBase(JobBankName, cfg, client, logger, jobBankURL)}
}

func (j *JobBank) Search(ctx context.Context, c listing.SearchCriteria) ([]*listing.JobListing, error) {
	return connector.Run(ctx, j.name, j.cfg.Options, c, func(ctx context.Context, query string, max int) ([]*listing.JobListing, error) {
		q := url.Values{}
		q.Set("searchstring", query)
		q.Set("locationstring", c.Location)
		q.Set("sort", "M")

		page, err := j.client.GetHTML(ctx, j.baseURL+"/jobsearch/jobsearch", q, map[string]string{
			"Accept-Language": "fr-CA,fr;q=0.9,en;q=0.8",
		})
		if err != nil {
			return nil, err
		}

		return parseJobBank(page, j.baseURL, c.Location, max)
	})
}

func parseJobBank(page, baseURL, fallbackLocation string, max int) ([]*listing.JobListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w: %w", connector.ErrParse, err)
	}

	result := make([]*listing.JobListing, 0)
	doc.Find("article").EachWithBreak(func(_ int, art *goquery.Selection) bool {
		if len(result) >= max {
			return false
		}

		link := art.Find("a.resultJobItem").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}

		location := text(art.Find(".location").First())
		location = strings.TrimSpace(strings.TrimPrefix(location, "Location"))
		if location == "" {
			location = fallbackLocation
		}

		id, _ := art.Attr("id")
		id = strings.TrimPrefix(id, "article-")

		result = append(result, &listing.JobListing{
			ID:       prefixedID(JobBankName, id),
			Title:    text(art.Find(".noctitle").First()),
			Company:  text(art.Find(".business").First()),
			Location: location,
			URL:      absoluteURL(baseURL, strings.Split(href, ";")[0]),
			Salary:   text(art.Find(".salary").First()),
			PostedAt: text(art.Find(".date").First()),
		})
		return true
	})

	return result, nil
}
