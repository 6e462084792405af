package connector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/job-harvester/internal/httpx"
	"github.com/spigell/job-harvester/internal/listing"
)

func criteria(t *testing.T, jobType listing.JobType, limit int, keywords ...string) listing.SearchCriteria {
	t.Helper()
	c, err := listing.NewCriteria(keywords, "Montreal", jobType, limit)
	require.NoError(t, err)
	return c
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		expect Kind
	}{
		{name: "unauthorized", err: &httpx.HTTPError{StatusCode: http.StatusUnauthorized}, expect: KindAuth},
		{name: "forbidden wrapped", err: fmt.Errorf("call: %w", &httpx.HTTPError{StatusCode: http.StatusForbidden}), expect: KindAuth},
		{name: "rate limited", err: &httpx.HTTPError{StatusCode: http.StatusTooManyRequests}, expect: KindRateLimited},
		{name: "parse", err: fmt.Errorf("decode: %w", ErrParse), expect: KindParse},
		{name: "server error", err: &httpx.HTTPError{StatusCode: http.StatusBadGateway}, expect: KindUnavailable},
		{name: "timeout", err: context.DeadlineExceeded, expect: KindUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expect, Classify(tt.err))
		})
	}
}

func TestSourceErrorUnwraps(t *testing.T) {
	err := NewSourceError("adzuna", fmt.Errorf("page 1: %w", ErrParse))

	var serr *SourceError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "adzuna", serr.Source)
	assert.Equal(t, KindParse, serr.Kind)
	assert.ErrorIs(t, err, ErrParse)

	kind, ok := KindOf(fmt.Errorf("dispatch: %w", err))
	assert.True(t, ok)
	assert.Equal(t, KindParse, kind)
}

func TestQueriesAddsJobTypeHint(t *testing.T) {
	c := criteria(t, listing.JobTypeInternship, 10, "python", "data internship", "sql", "go")

	queries := Queries(c, 3)

	assert.Equal(t, []string{"python", "python internship", "data internship", "sql", "sql internship"}, queries)
}

func TestCap(t *testing.T) {
	assert.Equal(t, 200, DefaultOptions().Cap(5))
	assert.Equal(t, 400, DefaultOptions().Cap(20))
	assert.Equal(t, 30, Options{PerSourceFactor: 3, MinCap: 1}.Cap(10))
}

func TestRunNormalizesAndCaps(t *testing.T) {
	c := criteria(t, listing.JobTypeStandard, 1, "go", "rust")
	opts := Options{PerSourceFactor: 3, MinCap: 1}

	var calls []string
	result, err := Run(context.Background(), "fake", opts, c, func(_ context.Context, query string, max int) ([]*listing.JobListing, error) {
		calls = append(calls, query)
		items := make([]*listing.JobListing, 0, 2)
		for i := 0; i < 2 && i < max; i++ {
			items = append(items, &listing.JobListing{Title: fmt.Sprintf("%s dev %d", query, i), Source: "other"})
		}
		items = append(items, &listing.JobListing{Title: "   "})
		return items, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"go", "rust"}, calls)
	require.Len(t, result, 3)
	for _, l := range result {
		assert.Equal(t, "fake", l.Source)
		assert.NotEmpty(t, l.ID)
		assert.NotNil(t, l.RequiredSkills)
	}
}

func TestRunReturnsSourceError(t *testing.T) {
	c := criteria(t, listing.JobTypeStandard, 10, "go")

	_, err := Run(context.Background(), "fake", DefaultOptions(), c, func(context.Context, string, int) ([]*listing.JobListing, error) {
		return nil, &httpx.HTTPError{StatusCode: http.StatusTooManyRequests}
	})

	var serr *SourceError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "fake", serr.Source)
	assert.Equal(t, KindRateLimited, serr.Kind)
}

func TestRunKeepsPartialResults(t *testing.T) {
	c := criteria(t, listing.JobTypeStandard, 10, "go", "rust")

	result, err := Run(context.Background(), "fake", DefaultOptions(), c, func(_ context.Context, query string, _ int) ([]*listing.JobListing, error) {
		if query == "rust" {
			return nil, errors.New("boom")
		}
		return []*listing.JobListing{{Title: "Go dev"}}, nil
	})

	require.NoError(t, err)
	assert.Len(t, result, 1)
}

func TestRunHonoursTimeout(t *testing.T) {
	c := criteria(t, listing.JobTypeStandard, 10, "go")

	start := time.Now()
	_, err := Run(context.Background(), "slow", Options{Timeout: 20 * time.Millisecond}, c, func(ctx context.Context, _ string, _ int) ([]*listing.JobListing, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	kind, _ := KindOf(err)
	assert.Equal(t, KindUnavailable, kind)
}

func TestWithBackupKey(t *testing.T) {
	t.Run("switches on rate limit", func(t *testing.T) {
		var used []string
		result, err := WithBackupKey(context.Background(), []string{"primary", "backup"}, func(_ context.Context, key string) (string, error) {
			used = append(used, key)
			if key == "primary" {
				return "", &httpx.HTTPError{StatusCode: http.StatusTooManyRequests}
			}
			return "ok", nil
		})

		require.NoError(t, err)
		assert.Equal(t, "ok", result)
		assert.Equal(t, []string{"primary", "backup"}, used)
	})

	t.Run("does not switch on server error", func(t *testing.T) {
		var used []string
		_, err := WithBackupKey(context.Background(), []string{"primary", "backup"}, func(_ context.Context, key string) (int, error) {
			used = append(used, key)
			return 0, &httpx.HTTPError{StatusCode: http.StatusInternalServerError}
		})

		require.Error(t, err)
		assert.Equal(t, []string{"primary"}, used)
	})

	t.Run("at most one retry", func(t *testing.T) {
		calls := 0
		_, err := WithBackupKey(context.Background(), []string{"a", "b", "c"}, func(context.Context, string) (int, error) {
			calls++
			return 0, &httpx.HTTPError{StatusCode: http.StatusForbidden}
		})

		require.Error(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("no keys", func(t *testing.T) {
		called := false
		_, err := WithBackupKey(context.Background(), []string{" "}, func(context.Context, string) (int, error) {
			called = true
			return 0, nil
		})

		assert.False(t, called)

		kind, ok := KindOf(err)
		require.True(t, ok)
		assert.Equal(t, KindAuth, kind)
	})
}
