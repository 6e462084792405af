package dedup

import (
	"testing"

	"github.com/spigell/job-harvester/internal/listing"
)

func TestDeduplicateSameURL(t *testing.T) {
	t.Parallel()

	items := []*listing.JobListing{
		{ID: "a", Title: "Go Developer", URL: "https://Jobs.example.com/42/", Source: "jooble"},
		{ID: "b", Title: "Golang Engineer (m/f)", URL: "https://jobs.example.com/42#apply", Source: "adzuna"},
	}

	result, stats := DeduplicateWithStats(items)

	if len(result) != 1 || result[0].ID != "a" {
		t.Fatalf("expected the first listing to win, got %+v", result)
	}
	if stats.Dropped["adzuna"] != 1 || stats.Kept != 1 || stats.Input != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestDeduplicateFallsBackToTitleAndCompany(t *testing.T) {
	t.Parallel()

	items := []*listing.JobListing{
		{ID: "1", Title: "Data Analyst", Company: "Acme"},
		{ID: "2", Title: "data analyst", Company: "ACME", URL: "/relative/path"},
		{ID: "3", Title: "Data Analyst", Company: "Globex"},
		nil,
	}

	result := Deduplicate(items)

	if len(result) != 2 || result[0].ID != "1" || result[1].ID != "3" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestDeduplicateIsIdempotent(t *testing.T) {
	t.Parallel()

	items := []*listing.JobListing{
		{ID: "1", URL: "https://a.example/1"},
		{ID: "2", URL: "https://a.example/2"},
		{ID: "3", URL: "https://a.example/1"},
		{ID: "4", Title: "Intern", Company: "Acme"},
		{ID: "5", Title: "intern", Company: "acme"},
	}

	once := Deduplicate(items)
	twice := Deduplicate(once)

	if len(once) != 3 || len(twice) != len(once) {
		t.Fatalf("expected 3 stable listings, got %d then %d", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("order changed at %d", i)
		}
	}
}
