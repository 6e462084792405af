package sources

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/job-harvester/internal/connector"
	"github.com/spigell/job-harvester/internal/httpx"
	"github.com/spigell/job-harvester/internal/listing"
)

const (
	JoobleName = "jooble"
	joobleURL  = "https://jooble.org/api"
	joobleMax  = 100
)

type joobleRequest struct {
	Keywords     string `json:"keywords"`
	Location     string `json:"location,omitempty"`
	Page         int    `json:"page"`
	ResultOnPage int    `json:"ResultOnPage"`
}

type joobleResponse struct {
	TotalCount int `json:"totalCount"`
	Jobs       []struct {
		ID       any    `json:"id"`
		Title    string `json:"title"`
		Location string `json:"location"`
		Snippet  string `json:"snippet"`
		Salary   string `json:"salary"`
		Type     string `json:"type"`
		Link     string `json:"link"`
		Company  string `json:"company"`
		Updated  string `json:"updated"`
	} `json:"jobs"`
}

// Jooble posts to the Jooble REST API. The key is part of the path, a backup key is
// used when the primary one is rejected or throttled.
type Jooble struct {
	base
}

func NewJooble(cfg Config, client *httpx.Client, logger *zap.Logger) *Jooble {
	return &Jooble{base: newBase(JoobleName, cfg, client, logger, joobleURL)}
}

func (j *Jooble) Search(ctx context.Context, c listing.SearchCriteria) ([]*listing.JobListing, error) {
	return connector.Run(ctx, j.name, j.cfg.Options, c, func(ctx context.Context, query string, max int) ([]*listing.JobListing, error) {
		payload := joobleRequest{
			Keywords:     query,
			Location:     c.Location,
			Page:         1,
			ResultOnPage: min(max, joobleMax),
		}

		resp, err := connector.WithBackupKey(ctx, j.cfg.Keys, func(ctx context.Context, key string) (*joobleResponse, error) {
			var resp joobleResponse
			if err := j.client.PostJSON(ctx, fmt.Sprintf("%s/%s", j.baseURL, key), payload, nil, &resp); err != nil {
				return nil, err
			}
			return &resp, nil
		})
		if err != nil {
			return nil, err
		}

		result := make([]*listing.JobListing, 0, len(resp.Jobs))
		for _, job := range resp.Jobs {
			result = append(result, &listing.JobListing{
				ID:           prefixedID(JoobleName, idString(job.ID)),
				Title:        job.Title,
				Company:      job.Company,
				Location:     job.Location,
				Description:  plainText(job.Snippet),
				URL:          job.Link,
				Salary:       job.Salary,
				PostedAt:     job.Updated,
				ContractType: job.Type,
			})
		}
		return result, nil
	})
}
