package headhunter

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"
)

type ItemResponse struct {
	Items   []Item
	Found   int
	Pages   int
	Page    int
	PerPage int `json:"per_page"`
}

type Item interface{}

// GetItems makes GET request to HeadHunter API and returns items from all pages until max items are collected.
func (c *Client) GetItems(ctx context.Context, url string, q url.Values, max int) ([]Item, error) {
	var items []Item

	response, err := c.getPage(ctx, url, q)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("got response from HH.ru", zap.Int("pages", response.Pages), zap.Int("max items per page", response.PerPage))

	items = append(items, response.Items...)

	for response.Page < (response.Pages-1) && len(items) < max {
		c.logger.Debug("additional request needed", zap.String("reason", fmt.Sprintf(
			"current page (%d) < all page count (%d)", response.Page+1, response.Pages),
		))

		next := cloneValues(q)
		next.Set("page", strconv.Itoa(response.Page+1))

		response, err = c.getPage(ctx, url, next)
		if err != nil {
			// keep what was already collected
			c.logger.Debug("stop paging", zap.Error(err))
			break
		}

		items = append(items, response.Items...)
	}

	if len(items) > max {
		items = items[:max]
	}

	return items, nil
}

func (c *Client) getPage(ctx context.Context, url string, q url.Values) (*ItemResponse, error) {
	var response ItemResponse
	if err := c.http.GetJSON(ctx, url, q, c.headers(), &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (c *Client) headers() map[string]string {
	headers := map[string]string{
		"User-Agent":   c.UserAgent,
		"Content-Type": "application/json",
	}
	if c.token != "" {
		headers["Authorization"] = fmt.Sprintf("Bearer %s", c.token)
	}
	return headers
}

func cloneValues(q url.Values) url.Values {
	clone := make(url.Values, len(q))
	for key, values := range q {
		clone[key] = append([]string(nil), values...)
	}
	return clone
}
