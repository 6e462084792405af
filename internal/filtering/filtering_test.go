package filtering

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spigell/job-harvester/internal/ai"
	"github.com/spigell/job-harvester/internal/listing"
)

func item(id, title string, score int) *listing.JobListing {
	return &listing.JobListing{
		ID:             id,
		Title:          title,
		Company:        "Acme",
		URL:            "https://jobs.example.com/" + id,
		MatchScore:     score,
		RequiredSkills: listing.NewSkillSet(),
		MatchedSkills:  listing.NewSkillSet(),
	}
}

func ids(items []*listing.JobListing) []string {
	result := make([]string, 0, len(items))
	for _, l := range items {
		result = append(result, l.ID)
	}
	return result
}

func sameIDs(got []*listing.JobListing, want ...string) bool {
	g := ids(got)
	if len(g) != len(want) {
		return false
	}
	for i := range g {
		if g[i] != want[i] {
			return false
		}
	}
	return true
}

func criteria(t *testing.T, jobType listing.JobType, exclude ...string) listing.SearchCriteria {
	t.Helper()
	c, err := listing.NewCriteria([]string{"python"}, "Montreal", jobType, 10, exclude...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func TestRankDropsSeniorTitlesInInternshipSearch(t *testing.T) {
	t.Parallel()

	senior := item("senior", "Senior Python Developer", 0)
	senior.RequiredSkills = listing.NewSkillSet("python")
	intern := item("intern", "Stage - Développeur Python", 0)
	intern.RequiredSkills = listing.NewSkillSet("python", "sql")

	deps := Deps{
		Criteria: criteria(t, listing.JobTypeInternship),
		Profile: listing.CandidateProfile{
			Skills:      listing.NewSkillSet("python", "sql"),
			TargetRoles: []string{"développeur python"},
		},
	}

	ranked, err := Rank(context.Background(), &Config{}, deps, DefaultSteps(false), []*listing.JobListing{senior, intern}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !sameIDs(ranked, "intern") {
		t.Fatalf("expected only the internship, got %v", ids(ranked))
	}
	if ranked[0].MatchScore != 90 {
		t.Fatalf("expected rescored 90, got %d", ranked[0].MatchScore)
	}
}

func TestEntryLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		title       string
		description string
		keep        bool
	}{
		{"keyword in title", "Stagiaire développeur", "", true},
		{"keyword in description", "Développeur Python", "Stage de 6 mois au sein de l'équipe.", true},
		{"no keyword", "Développeur Python", "Poste permanent à temps plein.", false},
		{"experience required", "Développeur Python", "Stage de 6 mois. 3 ans d'expérience requis.", false},
		{"years of study", "Data Analyst", "Internship for students with 3 years of study in statistics.", true},
		{"one year", "Data Analyst", "Junior role, 1 year of experience.", true},
		{"hyphen range", "Développeur Python", "Stage de 6 mois. 0-2 ans d'expérience.", true},
		{"worded range", "Développeur Python", "Stage de 6 mois. 0 à 2 ans d'expérience.", true},
		{"english range", "Data Analyst", "Internship, 0 to 2 years of experience.", true},
		{"range above the limit", "Data Analyst", "Internship, 3 to 5 years of experience.", false},
	}

	for _, tt := range tests {
		l := item("x", tt.title, 50)
		l.Description = tt.description
		v := &listing.Listings{Items: []*listing.JobListing{l}}

		_, info, err := NewEntryLevel().Apply(context.Background(), Deps{Criteria: criteria(t, listing.JobTypeJunior)}, v)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if kept := info.Left == 1; kept != tt.keep {
			t.Fatalf("%s: expected keep=%v, got step %+v", tt.name, tt.keep, info)
		}
	}
}

func TestSeniorityOnlyForEntryLevelSearches(t *testing.T) {
	t.Parallel()

	newItems := func() *listing.Listings {
		return &listing.Listings{Items: []*listing.JobListing{
			item("a", "Sénior Data Engineer", 50),
			item("b", "Engineering Manager", 50),
			item("c", "Data Engineer", 50),
			item("d", "Leadership program intern", 50),
		}}
	}

	v, info, _ := NewSeniority().Apply(context.Background(), Deps{Criteria: criteria(t, listing.JobTypeInternship)}, newItems())
	if info.Dropped != 2 || !sameIDs(v.Items, "c", "d") {
		t.Fatalf("unexpected result: %v %+v", ids(v.Items), info)
	}

	v, info, _ = NewSeniority().Apply(context.Background(), Deps{Criteria: criteria(t, listing.JobTypeStandard)}, newItems())
	if info.Dropped != 0 || v.Len() != 4 {
		t.Fatalf("standard searches keep senior titles, got %+v", info)
	}
}

func TestRankSortsStablyAndTruncates(t *testing.T) {
	t.Parallel()

	items := []*listing.JobListing{item("a", "A", 50), item("b", "B", 80), item("c", "C", 50), item("d", "D", 80)}

	ranked, err := Rank(context.Background(), nil, Deps{}, nil, items, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sameIDs(ranked, "b", "d", "a") {
		t.Fatalf("unexpected order: %v", ids(ranked))
	}
}

func TestRankCapsResults(t *testing.T) {
	t.Parallel()

	var items []*listing.JobListing
	for i := 0; i < MaxResults+50; i++ {
		items = append(items, item(fmt.Sprintf("%d", i), "Job", 10))
	}

	for _, limit := range []int{0, 1000} {
		ranked, err := Rank(context.Background(), nil, Deps{}, nil, items, limit)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(ranked) != MaxResults {
			t.Fatalf("limit %d: expected %d results, got %d", limit, MaxResults, len(ranked))
		}
	}
}

type fakeJudge struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeJudge) Judge(_ context.Context, _ listing.CandidateProfile, batch []*listing.JobListing) ([]ai.Verdict, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	for _, l := range batch {
		if l.ID == "broken" {
			return nil, errors.New("model overloaded")
		}
	}
	return []ai.Verdict{
		{Index: 0, Score: 150, Reason: "great fit"},
		{Index: 1, Score: math.NaN()},
		{Index: len(batch), Score: 10},
	}, nil
}

func TestJudgeOverwritesScores(t *testing.T) {
	t.Parallel()

	v := &listing.Listings{Items: []*listing.JobListing{
		item("a", "A", 40), item("b", "B", 40),
		item("broken", "C", 40), item("d", "D", 40),
		item("e", "E", 40),
	}}
	judge := &fakeJudge{}
	cfg := &Config{Judge: &JudgeConfig{Enabled: true, BatchSize: 2}}

	result, err := Run(context.Background(), cfg, Deps{Judge: judge}, []Filter{NewJudge()}, v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if judge.calls != 3 {
		t.Fatalf("expected 3 batches, got %d", judge.calls)
	}
	want := map[string]int{"a": 100, "b": 40, "broken": 40, "d": 40, "e": 100}
	for _, l := range result.Items {
		if l.MatchScore != want[l.ID] {
			t.Fatalf("listing %s: expected %d, got %d", l.ID, want[l.ID], l.MatchScore)
		}
	}
	if result.Items[0].JudgeReason != "great fit" || result.Items[1].JudgeReason != "" {
		t.Fatalf("unexpected reasons: %q %q", result.Items[0].JudgeReason, result.Items[1].JudgeReason)
	}
}

func TestJudgeDisabledWithoutConfig(t *testing.T) {
	t.Parallel()

	judge := &fakeJudge{}
	steps := []Filter{NewJudge()}
	v := &listing.Listings{Items: []*listing.JobListing{item("a", "A", 40)}}

	if _, err := Run(context.Background(), &Config{}, Deps{Judge: judge}, steps, v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if judge.calls != 0 || steps[0].IsEnabled() {
		t.Fatalf("judge should be disabled, calls=%d", judge.calls)
	}
}

func TestExclusionsAndCompanies(t *testing.T) {
	t.Parallel()

	java := item("java", "Java Developer", 50)
	php := item("php", "Web Developer", 50)
	php.Description = "Symfony and PHP stack"
	other := item("other", "Python Developer", 50)
	other.Company = "Globex Corp"
	keep := item("keep", "Python Developer", 50)

	deps := Deps{Criteria: criteria(t, listing.JobTypeStandard, "java", "PHP")}
	cfg := &Config{Companies: []string{"globex corp"}}

	result, err := Run(context.Background(), cfg, deps, []Filter{NewExclusions(), NewCompanies()},
		&listing.Listings{Items: []*listing.JobListing{java, php, other, keep}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sameIDs(result.Items, "keep") {
		t.Fatalf("unexpected result: %v", ids(result.Items))
	}
}

func TestExcludeFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "seen.json")
	content := `[{"id": "old", "title": "Old", "url": "https://JOBS.example.com/a/"}]`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	result, err := Run(context.Background(), &Config{ExcludeFile: path}, Deps{}, []Filter{NewExcludeFile()},
		&listing.Listings{Items: []*listing.JobListing{item("a", "A", 50), item("b", "B", 50)}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sameIDs(result.Items, "b") {
		t.Fatalf("unexpected result: %v", ids(result.Items))
	}

	_, err = Run(context.Background(), &Config{ExcludeFile: filepath.Join(t.TempDir(), "missing.json")}, Deps{},
		[]Filter{NewExcludeFile()}, &listing.Listings{})
	if err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}

type fakeHistory struct {
	seen []string
	err  error
}

func (f fakeHistory) Seen(context.Context, []string) ([]string, error) {
	return f.seen, f.err
}

func TestSeen(t *testing.T) {
	t.Parallel()

	newItems := func() *listing.Listings {
		return &listing.Listings{Items: []*listing.JobListing{item("a", "A", 50), item("b", "B", 50)}}
	}
	history := fakeHistory{seen: []string{"https://jobs.example.com/a"}}

	v, _, _ := NewSeen(false).Apply(context.Background(), Deps{History: history}, newItems())
	if !sameIDs(v.Items, "b") {
		t.Fatalf("expected seen listing dropped, got %v", ids(v.Items))
	}

	v, _, _ = NewSeen(true).Apply(context.Background(), Deps{History: history}, newItems())
	if v.Len() != 2 {
		t.Fatalf("include-seen keeps everything, got %v", ids(v.Items))
	}

	v, _, err := NewSeen(false).Apply(context.Background(), Deps{History: fakeHistory{err: errors.New("redis down")}}, newItems())
	if err != nil || v.Len() != 2 {
		t.Fatalf("history failures are not fatal, got %v %v", ids(v.Items), err)
	}
}

func TestReachableAndMinScore(t *testing.T) {
	t.Parallel()

	noURL := item("no-url", "A", 90)
	noURL.URL = ""
	mail := item("mail", "B", 90)
	mail.URL = ""
	mail.ApplyEmail = "rh@acme.ca"
	low := item("low", "C", 30)
	zero := item("zero", "D", 0)
	good := item("good", "E", 45)

	result, err := Run(context.Background(), &Config{MinScore: 40}, Deps{}, []Filter{NewReachable(), NewMinScore()},
		&listing.Listings{Items: []*listing.JobListing{noURL, mail, low, zero, good}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sameIDs(result.Items, "mail", "good") {
		t.Fatalf("unexpected result: %v", ids(result.Items))
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		cfg   *Config
		steps []Filter
	}{
		{"score above 100", &Config{MinScore: 101}, []Filter{NewMinScore()}},
		{"negative batch", &Config{Judge: &JudgeConfig{Enabled: true, BatchSize: -1}}, []Filter{NewJudge()}},
	}

	for _, tt := range tests {
		if _, err := Run(context.Background(), tt.cfg, Deps{}, tt.steps, &listing.Listings{}); err == nil {
			t.Fatalf("%s: expected an error", tt.name)
		}
	}
}

func TestDisableByNameAndDescribe(t *testing.T) {
	t.Parallel()

	steps := DefaultSteps(true)
	DisableByName(steps, "rescore", "scores come from elsewhere")

	statuses := Describe(steps)
	if len(statuses) != len(steps) {
		t.Fatalf("expected %d statuses, got %d", len(steps), len(statuses))
	}
	if statuses[0].Name != "rescore" || statuses[0].Enabled {
		t.Fatalf("expected rescore disabled, got %+v", statuses[0])
	}
	for _, status := range statuses {
		if status.Name == "seen" && status.Reason != "skip requested via flag" {
			t.Fatalf("unexpected seen status: %+v", status)
		}
	}
}
