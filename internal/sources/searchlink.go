package sources

import (
	"context"
	"fmt"
	"net/url"

	"github.com/spigell/job-harvester/internal/listing"
)

const SearchLinkName = "searchlink"

type searchSite struct {
	name    string
	company string
	build   func(query, location string) string
}

var searchSites = []searchSite{
	{
		name:    "Job Bank",
		company: "Government of Canada",
		build: func(query, location string) string {
			q := url.Values{"searchstring": {query}, "locationstring": {location}}
			return "https://www.jobbank.gc.ca/jobsearch/jobsearch?" + q.Encode()
		},
	},
	{
		name:    "Google Jobs",
		company: "Google Jobs",
		build: func(query, location string) string {
			q := url.Values{"q": {query + " " + location}, "ibp": {"htl;jobs"}}
			return "https://www.google.com/search?" + q.Encode()
		},
	},
	{
		name:    "LinkedIn",
		company: "LinkedIn",
		build: func(query, location string) string {
			q := url.Values{"keywords": {query}, "location": {location}}
			return "https://www.linkedin.com/jobs/search/?" + q.Encode()
		},
	},
}

// SearchLink produces "see all results" placeholders pointing at public search pages.
// It never fails and is used when every other source came back empty.
type SearchLink struct{}

func NewSearchLink() *SearchLink {
	return &SearchLink{}
}

func (s *SearchLink) Name() string {
	return SearchLinkName
}

func (s *SearchLink) Search(ctx context.Context, c listing.SearchCriteria) ([]*listing.JobListing, error) {
	if err := ctx.Err(); err != nil {
		return []*listing.JobListing{}, nil
	}

	query := c.Query()
	result := make([]*listing.JobListing, 0, len(searchSites))
	for i, site := range searchSites {
		if i >= c.ResultLimit {
			break
		}
		l := &listing.JobListing{
			ID:          fmt.Sprintf("%s-%d", SearchLinkName, i),
			Title:       fmt.Sprintf("See all %q jobs on %s", query, site.name),
			Company:     site.company,
			Location:    c.Location,
			Description: fmt.Sprintf("Open the %s search page for every matching offer.", site.name),
			URL:         site.build(query, c.Location),
		}
		l.Normalize(SearchLinkName)
		result = append(result, l)
	}
	return result, nil
}
