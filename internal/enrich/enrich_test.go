package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spigell/job-harvester/internal/contacts"
	"github.com/spigell/job-harvester/internal/fetch"
	"github.com/spigell/job-harvester/internal/listing"
	"github.com/spigell/job-harvester/internal/sources"
)

var fullText = "Nous recherchons un développeur Python avec Django et PostgreSQL. " +
	"Vous avez 3+ years of experience avec Docker. " + strings.Repeat("Équipe agile, télétravail possible. ", 6)

type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]*fetch.Page
	delay   time.Duration
	fetched []string

	running atomic.Int32
	peak    atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (*fetch.Page, error) {
	now := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		peak := f.peak.Load()
		if now <= peak || f.peak.CompareAndSwap(peak, now) {
			break
		}
	}

	f.mu.Lock()
	f.fetched = append(f.fetched, rawURL)
	page, ok := f.pages[rawURL]
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, errors.New("not found")
	}
	return page, nil
}

func (f *fakeFetcher) Text(ctx context.Context, rawURL string) string {
	page, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return ""
	}
	return page.Text
}

type recordingSink struct {
	mu     sync.Mutex
	offers []contacts.Contact
}

func (r *recordingSink) Offer(c contacts.Contact) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offers = append(r.offers, c)
	return true
}

func job(id string, score int) *listing.JobListing {
	return &listing.JobListing{
		ID:             id,
		Title:          "Développeur " + id,
		Company:        "Acme Solutions",
		Description:    "snippet",
		URL:            "https://jobs.example.com/" + id,
		Source:         sources.AdzunaName,
		MatchScore:     score,
		RequiredSkills: listing.NewSkillSet(),
	}
}

func TestEnrichUpdatesListings(t *testing.T) {
	t.Parallel()

	l := job("a", 50)
	fetcher := &fakeFetcher{pages: map[string]*fetch.Page{l.URL: {Text: fullText}}}

	stats := New(fetcher, nil, Options{}, nil).Enrich(context.Background(), []*listing.JobListing{l}, 10)

	if stats.Enriched != 1 {
		t.Fatalf("expected one enriched listing, got %+v", stats)
	}
	if !l.Enriched || l.Description != fullText {
		t.Fatalf("listing not updated: %+v", l)
	}
	for _, skill := range []string{"python", "django", "postgresql", "docker"} {
		if !l.RequiredSkills.Has(skill) {
			t.Fatalf("expected skill %s in %v", skill, l.RequiredSkills.Sorted())
		}
	}
	if l.RequiredExperience != 3 {
		t.Fatalf("expected 3 years, got %d", l.RequiredExperience)
	}
}

func TestEnrichLeavesFailuresUntouched(t *testing.T) {
	t.Parallel()

	short, missing := job("short", 20), job("missing", 10)
	fetcher := &fakeFetcher{pages: map[string]*fetch.Page{short.URL: {Text: "Apply now"}}}

	stats := New(fetcher, nil, Options{}, nil).Enrich(context.Background(), []*listing.JobListing{short, missing}, 10)

	if stats.Failed != 2 || stats.Enriched != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	for _, l := range []*listing.JobListing{short, missing} {
		if l.Enriched || l.Description != "snippet" {
			t.Fatalf("listing %s should be untouched: %+v", l.ID, l)
		}
	}
	if len(fetcher.fetched) != 2 {
		t.Fatalf("expected a single attempt per listing, got %v", fetcher.fetched)
	}
}

func TestEnrichOnlyTopCandidates(t *testing.T) {
	t.Parallel()

	var items []*listing.JobListing
	pages := make(map[string]*fetch.Page)
	for i := 0; i < 10; i++ {
		l := job(fmt.Sprintf("job-%d", i), i*10)
		items = append(items, l)
		pages[l.URL] = &fetch.Page{Text: fullText}
	}
	fetcher := &fakeFetcher{pages: pages}

	stats := New(fetcher, nil, Options{Margin: 1}, nil).Enrich(context.Background(), items, 2)

	if stats.Candidates != 3 || stats.Enriched != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	for i, l := range items {
		if want := i >= 7; l.Enriched != want {
			t.Fatalf("listing %d: expected enriched=%v", i, want)
		}
	}
}

func TestTopKeepsInputOrderOnTies(t *testing.T) {
	t.Parallel()

	a, b, c := job("a", 40), job("b", 40), job("c", 90)
	noURL := job("d", 100)
	noURL.URL = ""

	got := top([]*listing.JobListing{a, nil, b, noURL, c}, 2)

	if len(got) != 2 || got[0] != c || got[1] != a {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestEnrichSkipsRichSources(t *testing.T) {
	t.Parallel()

	bank := job("bank", 90)
	bank.URL = "https://www.jobbank.gc.ca/jobsearch/jobposting/123"
	jsearch := job("jsearch", 80)
	jsearch.Source = sources.JSearchName
	fetcher := &fakeFetcher{}

	stats := New(fetcher, nil, Options{}, nil).Enrich(context.Background(), []*listing.JobListing{bank, jsearch}, 5)

	if stats.Skipped != 2 || len(fetcher.fetched) != 0 {
		t.Fatalf("expected both skipped without fetching, got %+v and %v", stats, fetcher.fetched)
	}
}

func TestEnrichOffersContacts(t *testing.T) {
	t.Parallel()

	l := job("a", 50)
	anonymous := job("b", 40)
	anonymous.Company = "Confidentiel"
	page := &fetch.Page{
		Text:   fullText,
		Links:  []string{"https://www.linkedin.com/company/acme", "https://acmesolutions.ca/careers"},
		Emails: []string{"rh@acmesolutions.ca", "info@acmesolutions.ca"},
	}
	fetcher := &fakeFetcher{pages: map[string]*fetch.Page{l.URL: page, anonymous.URL: page}}
	sink := &recordingSink{}

	New(fetcher, sink, Options{}, nil).Enrich(context.Background(), []*listing.JobListing{l, anonymous}, 5)

	if len(sink.offers) != 1 {
		t.Fatalf("expected one offer, got %+v", sink.offers)
	}
	offer := sink.offers[0]
	if offer.Company != "Acme Solutions" || offer.Website != "https://acmesolutions.ca" || len(offer.Emails) != 2 {
		t.Fatalf("unexpected contact: %+v", offer)
	}
	if l.ApplyEmail != "rh@acmesolutions.ca" || anonymous.ApplyEmail != "rh@acmesolutions.ca" {
		t.Fatalf("expected apply e-mails, got %q and %q", l.ApplyEmail, anonymous.ApplyEmail)
	}
}

func TestEnrichBoundsConcurrencyAndTime(t *testing.T) {
	t.Parallel()

	var items []*listing.JobListing
	for i := 0; i < 6; i++ {
		items = append(items, job(fmt.Sprintf("slow-%d", i), 50))
	}
	fetcher := &fakeFetcher{delay: time.Second}

	started := time.Now()
	stats := New(fetcher, nil, Options{Workers: 2, Timeout: 20 * time.Millisecond}, nil).Enrich(context.Background(), items, 10)

	if stats.Failed != 6 {
		t.Fatalf("expected every fetch to time out, got %+v", stats)
	}
	if peak := fetcher.peak.Load(); peak > 2 {
		t.Fatalf("expected at most 2 concurrent fetches, got %d", peak)
	}
	if elapsed := time.Since(started); elapsed > 500*time.Millisecond {
		t.Fatalf("per-listing timeout not applied, took %s", elapsed)
	}
}
