package recruiters

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/job-harvester/internal/dispatch"
	"github.com/spigell/job-harvester/internal/sources"
)

type fakeGenerator struct {
	answer string
	err    error
	prompt string
}

func (f *fakeGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.answer, f.err
}

type fakeSearcher struct {
	results []sources.SearchResult
	err     error
	delay   time.Duration
	query   string
}

func (f *fakeSearcher) Search(ctx context.Context, query string, _ int) ([]sources.SearchResult, error) {
	f.query = query
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.results, f.err
}

var shortRace = Options{Race: dispatch.Options{FirstWindow: time.Second, SecondWindow: 100 * time.Millisecond}}

func TestFindUsesModelAnswer(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{answer: "```json\n[" +
		`{"name": "Jane Doe", "role": "Talent Acquisition", "linkedin_url": "https://ca.linkedin.com/in/janedoe"},` +
		`{"name": "Ghost", "role": "CEO", "linkedin_url": "https://example.com/ghost"}` +
		"]\n```"}
	search := &fakeSearcher{delay: 500 * time.Millisecond}

	people := New(gen, search, shortRace, nil).Find(context.Background(), "  Acme   Corp ")

	require.Len(t, people, 1)
	assert.Equal(t, Person{Name: "Jane Doe", Role: "Talent Acquisition", LinkedInURL: "https://ca.linkedin.com/in/janedoe"}, people[0])
	assert.Contains(t, gen.prompt, "Acme Corp")
}

func TestFindFallsBackToSearch(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{err: errors.New("quota exceeded")}
	search := &fakeSearcher{results: []sources.SearchResult{
		{Title: "Marie Tremblay - Conseillère RH - Acme | LinkedIn", Link: "https://ca.linkedin.com/in/marie-tremblay"},
		{Title: "Acme careers", Link: "https://acme.example/careers"},
		{Title: "John Smith – Recruiter", Link: "https://www.linkedin.com/in/jsmith"},
		{Title: "John Smith – Recruiter", Link: "https://www.linkedin.com/in/jsmith/"},
	}}

	people := New(gen, search, shortRace, nil).Find(context.Background(), "Acme")

	require.Len(t, people, 2)
	assert.Equal(t, "Marie Tremblay", people[0].Name)
	assert.Equal(t, "Conseillère RH", people[0].Role)
	assert.Equal(t, "Recruiter", people[1].Role)
	assert.True(t, strings.HasPrefix(search.query, `site:linkedin.com/in "Acme"`))
}

func TestFindWithoutAnswers(t *testing.T) {
	t.Parallel()

	assert.Nil(t, New(nil, nil, shortRace, nil).Find(context.Background(), "Acme"))
	assert.Nil(t, New(&fakeGenerator{answer: "[]"}, nil, shortRace, nil).Find(context.Background(), " "))
	assert.Empty(t, New(&fakeGenerator{answer: "nobody found"}, &fakeSearcher{}, shortRace, nil).Find(context.Background(), "Acme"))
}

func TestFindRespectsLimit(t *testing.T) {
	t.Parallel()

	var results []sources.SearchResult
	for _, name := range []string{"a", "b", "c", "d"} {
		results = append(results, sources.SearchResult{Title: name + " - HR", Link: "https://linkedin.com/in/" + name})
	}

	people := New(nil, &fakeSearcher{results: results}, Options{Limit: 2, Race: shortRace.Race}, nil).Find(context.Background(), "Acme")
	assert.Len(t, people, 2)
}

func TestParseModelAnswerSalvagesObjects(t *testing.T) {
	t.Parallel()

	raw := `Here they are: [{"name": "A B", "role": "HR", "linkedin_url": "https://linkedin.com/in/ab"},
{"name": "C D", "linkedin_url": "https://linkedin.com/in/cd",} oops`

	people := ParseModelAnswer(raw)
	require.Len(t, people, 2)
	assert.Equal(t, "C D", people[1].Name)
	assert.Empty(t, people[1].Role)
}
