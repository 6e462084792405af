package sources

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/spigell/job-harvester/internal/connector"
	"github.com/spigell/job-harvester/internal/httpx"
	"github.com/spigell/job-harvester/internal/listing"
)

const (
	FindWorkName = "findwork"
	findWorkURL  = "https://findwork.dev/api/jobs"
)

type findWorkResponse struct {
	Count   int `json:"count"`
	Results []struct {
		ID             any      `json:"id"`
		Role           string   `json:"role"`
		CompanyName    string   `json:"company_name"`
		Location       string   `json:"location"`
		URL            string   `json:"url"`
		Text           string   `json:"text"`
		EmploymentType string   `json:"employment_type"`
		DatePosted     string   `json:"date_posted"`
		Remote         bool     `json:"remote"`
		Keywords       []string `json:"keywords"`
	} `json:"results"`
}

// FindWork queries findwork.dev with token authentication.
type FindWork struct {
	base
}

func NewFindWork(cfg Config, client *httpx.Client, logger *zap.Logger) *FindWork {
	return &FindWork{base: newBase(FindWorkName, cfg, client, logger, findWorkURL)}
}

func (f *FindWork) Search(ctx context.Context, c listing.SearchCriteria) ([]*listing.JobListing, error) {
	key := f.cfg.PrimaryKey()
	if key == "" {
		f.logger.Warn("findwork api key is not set, skipping")
		return []*listing.JobListing{}, nil
	}

	return connector.Run(ctx, f.name, f.cfg.Options, c, func(ctx context.Context, query string, max int) ([]*listing.JobListing, error) {
		q := url.Values{}
		q.Set("search", query)
		if c.Location != "" {
			q.Set("location", c.Location)
		}
		q.Set("sort_by", "relevance")

		var resp findWorkResponse
		headers := map[string]string{"Authorization": fmt.Sprintf("Token %s", key)}
		if err := f.client.GetJSON(ctx, f.baseURL+"/", q, headers, &resp); err != nil {
			return nil, err
		}

		result := make([]*listing.JobListing, 0, len(resp.Results))
		for _, item := range resp.Results {
			if len(result) >= max {
				break
			}

			location := item.Location
			if location == "" && item.Remote {
				location = "Remote"
			}

			result = append(result, &listing.JobListing{
				ID:             prefixedID(FindWorkName, idString(item.ID)),
				Title:          item.Role,
				Company:        item.CompanyName,
				Location:       location,
				Description:    plainText(item.Text),
				URL:            item.URL,
				RequiredSkills: listing.NewSkillSet(item.Keywords...),
				PostedAt:       item.DatePosted,
				ContractType:   item.EmploymentType,
			})
		}
		return result, nil
	})
}
