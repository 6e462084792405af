package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/job-harvester/internal/connector"
	"github.com/spigell/job-harvester/internal/httpx"
	"github.com/spigell/job-harvester/internal/listing"
)

const (
	AdzunaName     = "adzuna"
	adzunaURL      = "https://api.adzuna.com/v1/api/jobs"
	adzunaPageSize = 50
	adzunaMaxPages = 3
)

var adzunaCountries = []struct {
	marker  string
	country string
}{
	{"canada", "ca"}, {"montreal", "ca"}, {"quebec", "ca"}, {"toronto", "ca"}, {"vancouver", "ca"},
	{"france", "fr"}, {"paris", "fr"}, {"lyon", "fr"},
	{"uk", "gb"}, {"united kingdom", "gb"}, {"london", "gb"},
	{"germany", "de"}, {"allemagne", "de"}, {"berlin", "de"},
	{"usa", "us"}, {"united states", "us"}, {"new york", "us"}, {"california", "us"},
	{"belgique", "be"}, {"belgium", "be"}, {"suisse", "ch"}, {"switzerland", "ch"},
	{"spain", "es"}, {"espagne", "es"}, {"italy", "it"}, {"italie", "it"}, {"netherlands", "nl"},
}

type adzunaResponse struct {
	Count   int            `json:"count"`
	Results []adzunaResult `json:"results"`
}

type adzunaResult struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	RedirectURL string  `json:"redirect_url"`
	Created     string  `json:"created"`
	SalaryMin   float64 `json:"salary_min"`
	SalaryMax   float64 `json:"salary_max"`
	Contract    string  `json:"contract_type"`
	Company     struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string `json:"display_name"`
	} `json:"location"`
}

// Adzuna queries the Adzuna public search API. Without credentials it returns nothing.
type Adzuna struct {
	base
}

func NewAdzuna(cfg Config, client *httpx.Client, logger *zap.Logger) *Adzuna {
	return &Adzuna{base: newBase(AdzunaName, cfg, client, logger, adzunaURL)}
}

func (a *Adzuna) Search(ctx context.Context, c listing.SearchCriteria) ([]*listing.JobListing, error) {
	key := a.cfg.PrimaryKey()
	if a.cfg.AppID == "" || key == "" {
		a.logger.Warn("adzuna credentials are not set, skipping")
		return []*listing.JobListing{}, nil
	}

	country := a.country(c.Location)

	return connector.Run(ctx, a.name, a.cfg.Options, c, func(ctx context.Context, query string, max int) ([]*listing.JobListing, error) {
		var result []*listing.JobListing
		for page := 1; page <= adzunaMaxPages && len(result) < max; page++ {
			batch, err := a.fetchPage(ctx, country, query, c.Location, key, page)
			if err != nil {
				if len(result) > 0 {
					a.logger.Debug("stop paging", zap.Int("page", page), zap.Error(err))
					break
				}
				return nil, fmt.Errorf("page %d: %w", page, err)
			}
			result = append(result, batch...)
			if len(batch) < adzunaPageSize {
				break
			}
		}
		return result, nil
	})
}

func (a *Adzuna) fetchPage(ctx context.Context, country, query, location, key string, page int) ([]*listing.JobListing, error) {
	q := url.Values{}
	q.Set("app_id", a.cfg.AppID)
	q.Set("app_key", key)
	q.Set("results_per_page", strconv.Itoa(adzunaPageSize))
	q.Set("what", query)
	if location != "" {
		q.Set("where", location)
	}
	q.Set("sort_by", "date")

	var resp adzunaResponse
	endpoint := fmt.Sprintf("%s/%s/search/%d", a.baseURL, country, page)
	if err := a.client.GetJSON(ctx, endpoint, q, nil, &resp); err != nil {
		return nil, err
	}

	result := make([]*listing.JobListing, 0, len(resp.Results))
	for _, r := range resp.Results {
		result = append(result, &listing.JobListing{
			ID:           prefixedID(AdzunaName, r.ID),
			Title:        r.Title,
			Company:      r.Company.DisplayName,
			Location:     r.Location.DisplayName,
			Description:  plainText(r.Description),
			URL:          r.RedirectURL,
			Salary:       salaryRange(r.SalaryMin, r.SalaryMax, ""),
			PostedAt:     r.Created,
			ContractType: r.Contract,
		})
	}
	return result, nil
}

func (a *Adzuna) country(location string) string {
	for _, entry := range adzunaCountries {
		if listing.ContainsWord(location, entry.marker) {
			return entry.country
		}
	}
	if a.cfg.Country != "" {
		return a.cfg.Country
	}
	return "ca"
}
