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
	IndeedName   = "indeed"
	indeedCanada = "https://ca.indeed.com"
	indeedUS     = "https://www.indeed.com"
	indeedFrance = "https://fr.indeed.com"
)

// Indeed scrapes Indeed job cards. The site is picked from the search location
// unless a base url is configured.
type Indeed struct {
	base
}

func NewIndeed(cfg Config, client *httpx.Client, logger *zap.Logger) *Indeed {
	return &Indeed{base: newBase(IndeedName, cfg, client, logger, "")}
}

func (i *Indeed) Search(ctx context.Context, c listing.SearchCriteria) ([]*listing.JobListing, error) {
	site := i.baseURL
	if site == "" {
		site = i.site(c.Location)
	}

	return connector.Run(ctx, i.name, i.cfg.Options, c, func(ctx context.Context, query string, max int) ([]*listing.JobListing, error) {
		q := url.Values{}
		q.Set("q", strings.ReplaceAll(query, `"`, ""))
		q.Set("l", c.Location)
		q.Set("sort", "date")

		page, err := i.client.GetHTML(ctx, site+"/jobs", q, nil)
		if err != nil {
			return nil, err
		}

		return parseIndeed(page, site, max)
	})
}

func (i *Indeed) site(location string) string {
	switch {
	case isCanadian(location):
		return indeedCanada
	case connector.DetectRegion(location) == connector.RegionAmericas:
		return indeedUS
	default:
		return indeedFrance
	}
}

func isCanadian(location string) bool {
	for _, marker := range []string{"canada", "quebec", "qc", "montreal", "toronto", "vancouver", "ottawa"} {
		if listing.ContainsWord(location, marker) {
			return true
		}
	}
	return false
}

func parseIndeed(page, site string, max int) ([]*listing.JobListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w: %w", connector.ErrParse, err)
	}

	cards := doc.Find("div.job_seen_beacon")
	if cards.Length() == 0 {
		cards = doc.Find("div.resultContent")
	}

	result := make([]*listing.JobListing, 0)
	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if len(result) >= max {
			return false
		}

		title := text(card.Find("h2.jobTitle").First())
		if title == "" {
			title = text(card.Find("h2").First())
		}
		if title == "" {
			return true
		}

		company := text(card.Find(`[data-testid="company-name"], .companyName`).First())
		location := text(card.Find(`[data-testid="text-location"], .companyLocation`).First())

		link := card.Find("h2 a[href]").First()
		if link.Length() == 0 {
			link = card.Find("a[href]").First()
		}
		href, _ := link.Attr("href")
		id, _ := link.Attr("data-jk")

		result = append(result, &listing.JobListing{
			ID:          prefixedID(IndeedName, id),
			Title:       title,
			Company:     company,
			Location:    location,
			Description: text(card.Find(".job-snippet").First()),
			URL:         absoluteURL(site, href),
			Salary:      text(card.Find(`[data-testid="attribute_snippet_testid"], .salary-snippet-container`).First()),
		})
		return true
	})

	return result, nil
}
