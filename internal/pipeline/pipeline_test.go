package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/job-harvester/internal/connector"
	"github.com/spigell/job-harvester/internal/criteria"
	"github.com/spigell/job-harvester/internal/enrich"
	"github.com/spigell/job-harvester/internal/listing"
	"github.com/spigell/job-harvester/internal/sources"
)

type fakeConnector struct {
	name     string
	listings []*listing.JobListing
	err      error
}

func (f *fakeConnector) Name() string { return f.name }

func (f *fakeConnector) Search(context.Context, listing.SearchCriteria) ([]*listing.JobListing, error) {
	return f.listings, f.err
}

type fakeExtractor struct {
	jobType listing.JobType
}

func (f fakeExtractor) Extract(_ context.Context, _, _ string, limit int) (criteria.Result, error) {
	if limit <= 0 {
		limit = criteria.DefaultLimit
	}
	c, err := listing.NewCriteria([]string{"python developer"}, "Montreal, QC, Canada", f.jobType, limit)
	if err != nil {
		return criteria.Result{}, err
	}
	return criteria.Result{
		Criteria: c,
		Profile: listing.CandidateProfile{
			Skills:      listing.NewSkillSet("python", "sql"),
			TargetRoles: []string{"python developer"},
		},
	}, nil
}

type recordingEnricher struct {
	limit int
	seen  int
}

func (r *recordingEnricher) Enrich(_ context.Context, listings []*listing.JobListing, limit int) enrich.Stats {
	r.limit = limit
	r.seen = len(listings)
	return enrich.Stats{Candidates: len(listings)}
}

func jobs(source string, titles ...string) []*listing.JobListing {
	result := make([]*listing.JobListing, 0, len(titles))
	for i, title := range titles {
		l := &listing.JobListing{
			ID:             fmt.Sprintf("%s-%d", source, i),
			Title:          title,
			Company:        "Acme",
			URL:            fmt.Sprintf("https://%s.example/jobs/%d", source, i),
			RequiredSkills: listing.NewSkillSet("python"),
		}
		l.Normalize(source)
		result = append(result, l)
	}
	return result
}

func newPipeline(t *testing.T, jobType listing.JobType, cfg Config, connectors ...connector.Connector) *Pipeline {
	t.Helper()
	registry := connector.NewRegistry()
	for _, c := range connectors {
		registry.Register(c)
	}
	p, err := New(Deps{Registry: registry, Extractor: fakeExtractor{jobType: jobType}}, cfg)
	require.NoError(t, err)
	return p
}

func assertContract(t *testing.T, result []*listing.JobListing, limit int) {
	t.Helper()
	assert.LessOrEqual(t, len(result), limit)
	keys := make(map[string]struct{})
	for i, l := range result {
		assert.GreaterOrEqual(t, l.MatchScore, 0)
		assert.LessOrEqual(t, l.MatchScore, 100)
		if i > 0 {
			assert.GreaterOrEqual(t, result[i-1].MatchScore, l.MatchScore)
		}
		_, dup := keys[l.IdentityKey()]
		assert.False(t, dup, "duplicate %s", l.IdentityKey())
		keys[l.IdentityKey()] = struct{}{}
	}
}

func TestSearchIsolatesFailingConnector(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, listing.JobTypeStandard, Config{},
		&fakeConnector{name: "broken", err: errors.New("connection refused")},
		&fakeConnector{name: "good", listings: jobs("good", "Python Developer", "Backend Developer", "Data Engineer")},
	)

	result, err := p.Search(context.Background(), "python developer", "", 10)
	require.NoError(t, err)
	assert.Len(t, result, 3)
	assertContract(t, result, 10)
	assert.Equal(t, "good-0", result[0].ID)
	for _, l := range result {
		assert.Positive(t, l.MatchScore)
	}
}

func TestSearchRespectsLimit(t *testing.T) {
	t.Parallel()

	var titles []string
	for i := 0; i < 30; i++ {
		titles = append(titles, fmt.Sprintf("Python Developer %d", i))
	}
	enricher := &recordingEnricher{}
	registry := connector.NewRegistry()
	registry.Register(&fakeConnector{name: "many", listings: jobs("many", titles...)})

	p, err := New(Deps{Registry: registry, Extractor: fakeExtractor{}, Enricher: enricher}, Config{})
	require.NoError(t, err)

	result, err := p.Search(context.Background(), "python", "", 5)
	require.NoError(t, err)
	assert.Len(t, result, 5)
	assertContract(t, result, 5)
	assert.Equal(t, 5, enricher.limit)
	assert.Equal(t, 30, enricher.seen)
}

func TestSearchDeduplicatesAcrossConnectors(t *testing.T) {
	t.Parallel()

	first := jobs("first", "Python Developer")
	second := jobs("second", "Développeur Python (H/F)")
	second[0].URL = "HTTPS://FIRST.example/jobs/0/"

	p := newPipeline(t, listing.JobTypeStandard, Config{},
		&fakeConnector{name: "first", listings: first},
		&fakeConnector{name: "second", listings: second},
	)

	result, err := p.Search(context.Background(), "python", "", 10)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "Python Developer", result[0].Title)
}

func TestSearchDropsSeniorListingsForInternships(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, listing.JobTypeInternship, Config{},
		&fakeConnector{name: "board", listings: jobs("board", "Senior Backend Engineer", "Python Developer Intern")},
	)

	result, err := p.Search(context.Background(), "stage python", "", 10)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "Python Developer Intern", result[0].Title)
}

func TestSearchReturnsSearchLinksWhenNothingFound(t *testing.T) {
	t.Parallel()

	empty := &fakeConnector{name: "empty"}

	result, err := newPipeline(t, listing.JobTypeStandard, Config{}, empty).Search(context.Background(), "python", "", 3)
	require.NoError(t, err)
	assert.Empty(t, result)

	result, err = newPipeline(t, listing.JobTypeStandard, Config{SearchLinks: true}, empty).Search(context.Background(), "python", "", 3)
	require.NoError(t, err)
	require.NotEmpty(t, result)
	assertContract(t, result, 3)
	for _, l := range result {
		assert.Equal(t, sources.SearchLinkName, l.Source)
	}
}

func TestRunReportsStages(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, listing.JobTypeStandard, Config{Disabled: []string{"rescore"}},
		&fakeConnector{name: "a", listings: jobs("a", "Python Developer", "Python Developer")},
		&fakeConnector{name: "b", err: errors.New("forbidden")},
	)

	result, err := p.Run(context.Background(), "python", "", 10)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Report.Total)
	assert.Len(t, result.Report.Failed(), 1)
	assert.Equal(t, 2, result.Dedup.Kept)
	require.NotEmpty(t, result.Filters)
	assert.Equal(t, "rescore", result.Filters[0].Name)
	assert.False(t, result.Filters[0].Enabled)
}

func TestNewRequiresConnectors(t *testing.T) {
	t.Parallel()

	_, err := New(Deps{}, Config{})
	assert.ErrorIs(t, err, connector.ErrNoConnectors)

	_, err = New(Deps{Registry: connector.NewRegistry()}, Config{})
	assert.ErrorIs(t, err, connector.ErrNoConnectors)
}

func TestSearchStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	p := newPipeline(t, listing.JobTypeStandard, Config{}, &fakeConnector{name: "a", listings: jobs("a", "Python Developer")})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Search(ctx, "python", "", 10)
	assert.ErrorIs(t, err, context.Canceled)
}
