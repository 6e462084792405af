package schedule

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/job-harvester/internal/listing"
)

type fakeSetStore struct {
	mu      sync.Mutex
	sets    map[string]map[string]struct{}
	expires map[string]time.Duration
	err     error
}

func newFakeSetStore() *fakeSetStore {
	return &fakeSetStore{sets: map[string]map[string]struct{}{}, expires: map[string]time.Duration{}}
}

func (f *fakeSetStore) SMIsMember(_ context.Context, key string, members ...any) *redis.BoolSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewBoolSliceResult(nil, f.err)
	}
	result := make([]bool, len(members))
	for i, m := range members {
		_, result[i] = f.sets[key][m.(string)]
	}
	return redis.NewBoolSliceResult(result, nil)
}

func (f *fakeSetStore) SAdd(_ context.Context, key string, members ...any) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	if f.sets[key] == nil {
		f.sets[key] = map[string]struct{}{}
	}
	for _, m := range members {
		f.sets[key][m.(string)] = struct{}{}
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (f *fakeSetStore) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expires[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func TestRedisSeen(t *testing.T) {
	t.Parallel()

	store := newFakeSetStore()
	seen := NewRedisSeen(store, "alice", 0)
	ctx := context.Background()

	require.NoError(t, seen.Mark(ctx, []string{"https://a.example/1", "https://a.example/2"}))
	got, err := seen.Seen(ctx, []string{"https://a.example/2", "https://a.example/3"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/2"}, got)
	assert.Equal(t, DefaultSeenTTL, store.expires["job-harvester:seen:alice"])

	other := NewRedisSeen(store, "bob", time.Hour)
	got, err = other.Seen(ctx, []string{"https://a.example/1"})
	require.NoError(t, err)
	assert.Empty(t, got)

	store.err = errors.New("connection reset")
	_, err = seen.Seen(ctx, []string{"https://a.example/1"})
	assert.Error(t, err)
	assert.Error(t, seen.Mark(ctx, []string{"x"}))
}

func TestMemorySeen(t *testing.T) {
	t.Parallel()

	seen := NewMemorySeen()
	require.NoError(t, seen.Mark(context.Background(), []string{"a", "b"}))

	got, err := seen.Seen(context.Background(), []string{"b", "c", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, got)
}

type fakeSearcher struct {
	mu      sync.Mutex
	queries []string
	resumes []string
	result  []*listing.JobListing
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, query, resume string, _ int) ([]*listing.JobListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	f.resumes = append(f.resumes, resume)
	return f.result, f.err
}

func TestRunOnceMarksReportedListings(t *testing.T) {
	t.Parallel()

	resume := filepath.Join(t.TempDir(), "resume.txt")
	require.NoError(t, os.WriteFile(resume, []byte("Python, SQL"), 0o600))

	searcher := &fakeSearcher{result: []*listing.JobListing{
		{ID: "1", Title: "Python Developer", URL: "https://jobs.example/1/"},
		{ID: "2", Title: "Data Analyst", Company: "Acme"},
	}}
	seen := NewMemorySeen()
	var reported []Run

	s, err := New(searcher, seen, nil, nil, WithReport(func(_ context.Context, run Run) { reported = append(reported, run) }))
	require.NoError(t, err)

	run := s.RunOnce(context.Background(), SavedSearch{Name: "daily", Cron: "@daily", Query: "python", ResumeFile: resume})
	require.NoError(t, run.Err)
	assert.Len(t, run.Listings, 2)
	assert.Equal(t, []string{"Python, SQL"}, searcher.resumes)

	got, _ := seen.Seen(context.Background(), []string{"https://jobs.example/1", "data analyst-acme"})
	assert.Len(t, got, 2)

	require.Len(t, reported, 1)
	assert.Equal(t, "daily", reported[0].Search.Name)
	assert.False(t, reported[0].Started.IsZero())
}

func TestRunOnceFailures(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{err: errors.New("no connectors configured")}
	seen := NewMemorySeen()
	s, err := New(searcher, seen, nil, nil)
	require.NoError(t, err)

	run := s.RunOnce(context.Background(), SavedSearch{Name: "broken", Cron: "@daily", Query: "python"})
	assert.Error(t, run.Err)

	run = s.RunOnce(context.Background(), SavedSearch{Name: "missing", Cron: "@daily", ResumeFile: "/does/not/exist"})
	assert.Error(t, run.Err)
	assert.Len(t, searcher.queries, 1)
}

func TestNewValidatesSearches(t *testing.T) {
	t.Parallel()

	_, err := New(nil, nil, nil, nil)
	assert.Error(t, err)

	_, err = New(&fakeSearcher{}, nil, []SavedSearch{{Name: "x", Cron: "@daily"}}, nil)
	assert.Error(t, err, "query or resume is required")

	_, err = New(&fakeSearcher{}, nil, []SavedSearch{{Cron: "@daily", Query: "go"}}, nil)
	assert.Error(t, err, "name is required")
}

func TestStartRegistersSearches(t *testing.T) {
	t.Parallel()

	searches := []SavedSearch{
		{Name: "morning", Cron: "0 8 * * *", Query: "python"},
		{Name: "weekly", Cron: "@weekly", Query: "go"},
	}
	s, err := New(&fakeSearcher{}, nil, searches, nil)
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.Equal(t, 2, s.Entries())

	bad, err := New(&fakeSearcher{}, nil, []SavedSearch{{Name: "bad", Cron: "every day", Query: "go"}}, nil)
	require.NoError(t, err)
	assert.Error(t, bad.Start(context.Background()))

	empty, err := New(&fakeSearcher{}, nil, nil, nil)
	require.NoError(t, err)
	assert.Error(t, empty.Start(context.Background()))
}
