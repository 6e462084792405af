package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/spigell/job-harvester/internal/connector"
	"github.com/spigell/job-harvester/internal/httpx"
	"github.com/spigell/job-harvester/internal/listing"
)

const (
	GoogleName        = "google"
	googlePageSize    = 10
	googleMaxPages    = 3
	googleJobBoardSet = "(site:linkedin.com/jobs/view OR site:jobs.lever.co OR site:boards.greenhouse.io OR site:welcometothejungle.com OR site:jobs.ashbyhq.com)"
)

var titleSeparators = regexp.MustCompile(`\s+(?:-|–|\||chez|at|hiring)\s+`)

// SearchResult is a single web search hit.
type SearchResult struct {
	Title   string
	Link    string
	Snippet string
	Host    string
}

// WebSearch wraps the Custom Search JSON API.
type WebSearch struct {
	svc *customsearch.Service
	cx  string
}

// NewWebSearch creates the Custom Search client. Extra options are used by tests to
// point the client at a local server.
func NewWebSearch(ctx context.Context, apiKey, cx string, opts ...option.ClientOption) (*WebSearch, error) {
	if apiKey == "" || cx == "" {
		return nil, errors.New("custom search requires an api key and a search engine id")
	}

	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create customsearch service: %w", err)
	}

	return &WebSearch{svc: svc, cx: cx}, nil
}

// Search returns at most n results for query, paging by ten.
func (w *WebSearch) Search(ctx context.Context, query string, n int) ([]SearchResult, error) {
	var result []SearchResult

	for page := 0; page < googleMaxPages && len(result) < n; page++ {
		num := min(googlePageSize, n-len(result))
		resp, err := w.svc.Cse.List().Cx(w.cx).Q(query).Num(int64(num)).Start(int64(page*googlePageSize + 1)).Context(ctx).Do()
		if err != nil {
			if len(result) > 0 {
				break
			}
			return nil, searchError(err)
		}

		for _, item := range resp.Items {
			result = append(result, SearchResult{
				Title:   item.Title,
				Link:    item.Link,
				Snippet: item.Snippet,
				Host:    item.DisplayLink,
			})
		}
		if len(resp.Items) < num {
			break
		}
	}

	return result, nil
}

// searchError converts API errors into httpx errors so connector.Classify can read the status.
func searchError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &httpx.HTTPError{
			Method:     http.MethodGet,
			URL:        "customsearch/v1",
			StatusCode: gerr.Code,
			Body:       []byte(gerr.Message),
		}
	}
	return err
}

// Google turns web search hits on known job boards into listings.
type Google struct {
	name   string
	cfg    Config
	search *WebSearch
	logger *zap.Logger
}

func NewGoogle(search *WebSearch, cfg Config, logger *zap.Logger) *Google {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Google{name: GoogleName, cfg: cfg, search: search, logger: logger.With(zap.String("source", GoogleName))}
}

func (g *Google) Name() string {
	return g.name
}

func (g *Google) Search(ctx context.Context, c listing.SearchCriteria) ([]*listing.JobListing, error) {
	return connector.Run(ctx, g.name, g.cfg.Options, c, func(ctx context.Context, query string, max int) ([]*listing.JobListing, error) {
		q := fmt.Sprintf("%q", query)
		if c.Location != "" {
			q += fmt.Sprintf(" %q", c.Location)
		}
		q += " " + googleJobBoardSet

		hits, err := g.search.Search(ctx, q, min(max, googlePageSize*googleMaxPages))
		if err != nil {
			return nil, err
		}

		result := make([]*listing.JobListing, 0, len(hits))
		for _, hit := range hits {
			title, company := splitTitle(hit.Title)
			if company == "" {
				company = strings.TrimPrefix(hit.Host, "www.")
			}
			result = append(result, &listing.JobListing{
				Title:       title,
				Company:     company,
				Location:    c.Location,
				Description: hit.Snippet,
				URL:         hit.Link,
			})
		}
		return result, nil
	})
}

// splitTitle reads "Role - Company - Board" and "Company hiring Role" style titles.
func splitTitle(raw string) (string, string) {
	raw = strings.TrimSpace(raw)
	if idx := strings.Index(raw, " hiring "); idx > 0 {
		company := strings.TrimSpace(raw[:idx])
		role := titleSeparators.Split(strings.TrimSpace(raw[idx+len(" hiring "):]), 2)[0]
		return strings.TrimSpace(role), company
	}

	parts := titleSeparators.Split(raw, -1)
	if len(parts) == 1 {
		return raw, ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}
