package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/job-harvester/internal/connector"
	"github.com/spigell/job-harvester/internal/httpx"
	"github.com/spigell/job-harvester/internal/listing"
)

const (
	JSearchName = "jsearch"
	jsearchURL  = "https://jsearch.p.rapidapi.com"
	jsearchHost = "jsearch.p.rapidapi.com"
)

type jsearchResponse struct {
	Status string       `json:"status"`
	Data   []jsearchJob `json:"data"`
}

type jsearchJob struct {
	ID             string  `json:"job_id"`
	Title          string  `json:"job_title"`
	Employer       string  `json:"employer_name"`
	Website        string  `json:"employer_website"`
	City           string  `json:"job_city"`
	Country        string  `json:"job_country"`
	Description    string  `json:"job_description"`
	ApplyLink      string  `json:"job_apply_link"`
	GoogleLink     string  `json:"job_google_link"`
	PostedAt       string  `json:"job_posted_at_datetime_utc"`
	EmploymentType string  `json:"job_employment_type"`
	MinSalary      float64 `json:"job_min_salary"`
	MaxSalary      float64 `json:"job_max_salary"`
	Currency       string  `json:"job_salary_currency"`
	Period         string  `json:"job_salary_period"`
	Highlights     struct {
		Qualifications []string `json:"Qualifications"`
	} `json:"job_highlights"`
	RequiredExperience struct {
		Months *float64 `json:"required_experience_in_months"`
	} `json:"job_required_experience"`
}

// JSearch queries the RapidAPI JSearch aggregator. Its results carry full descriptions.
type JSearch struct {
	base
}

func NewJSearch(cfg Config, client *httpx.Client, logger *zap.Logger) *JSearch {
	return &JSearch{base: newBase(JSearchName, cfg, client, logger, jsearchURL)}
}

func (j *JSearch) Search(ctx context.Context, c listing.SearchCriteria) ([]*listing.JobListing, error) {
	host := j.cfg.Host
	if host == "" {
		host = jsearchHost
	}

	return connector.Run(ctx, j.name, j.cfg.Options, c, func(ctx context.Context, query string, _ int) ([]*listing.JobListing, error) {
		q := url.Values{}
		if c.Location != "" {
			query = fmt.Sprintf("%s in %s", query, c.Location)
		}
		q.Set("query", query)
		q.Set("page", "1")
		q.Set("num_pages", "1")
		q.Set("date_posted", "month")

		resp, err := connector.WithBackupKey(ctx, j.cfg.Keys, func(ctx context.Context, key string) (*jsearchResponse, error) {
			var resp jsearchResponse
			headers := map[string]string{
				"X-RapidAPI-Key":  key,
				"X-RapidAPI-Host": host,
			}
			if err := j.client.GetJSON(ctx, j.baseURL+"/search", q, headers, &resp); err != nil {
				return nil, err
			}
			return &resp, nil
		})
		if err != nil {
			return nil, err
		}

		result := make([]*listing.JobListing, 0, len(resp.Data))
		for _, job := range resp.Data {
			result = append(result, job.toListing())
		}
		return result, nil
	})
}

func (job jsearchJob) toListing() *listing.JobListing {
	link := job.ApplyLink
	if link == "" {
		link = job.GoogleLink
	}

	location := strings.Trim(strings.TrimSpace(job.City+", "+job.Country), ", ")

	skills := listing.ExtractSkills(strings.Join(job.Highlights.Qualifications, "\n"))

	var years int
	if job.RequiredExperience.Months != nil {
		years = int(*job.RequiredExperience.Months / 12)
	}

	unit := strings.TrimSpace(job.Currency)
	if job.Period != "" {
		unit = strings.TrimSpace(unit + "/" + strings.ToLower(job.Period))
	}

	return &listing.JobListing{
		ID:                 prefixedID(JSearchName, job.ID),
		Title:              job.Title,
		Company:            job.Employer,
		Location:           location,
		Description:        job.Description,
		URL:                link,
		RequiredSkills:     skills,
		RequiredExperience: years,
		Salary:             salaryRange(job.MinSalary, job.MaxSalary, unit),
		PostedAt:           job.PostedAt,
		ContractType:       job.EmploymentType,
	}
}
