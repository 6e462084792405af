package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/spigell/job-harvester/internal/httpx"
	"github.com/spigell/job-harvester/internal/logger"
)

const (
	defaultRenderTimeout = 20 * time.Second
	settleDelay          = 2 * time.Second
)

// Browser renders pages in a headless Chrome. It requires Chrome or Chromium
// on the host; every Render starts and stops its own browser.
type Browser struct {
	timeout time.Duration
	logger  *zap.Logger
}

func NewBrowser(timeout time.Duration, log *zap.Logger) *Browser {
	if timeout <= 0 {
		timeout = defaultRenderTimeout
	}
	return &Browser{timeout: timeout, logger: logger.ForStage(log, "browser")}
}

func (b *Browser) Render(ctx context.Context, rawURL string) (string, error) {
	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(httpx.DefaultUserAgent),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, b.timeout)
	defer cancel()

	started := time.Now()
	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(settleDelay),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", rawURL, err)
	}

	b.logger.Debug("page rendered",
		zap.String(logger.FieldURL, rawURL),
		zap.Int("bytes", len(html)),
		zap.Duration("duration", time.Since(started)),
	)
	return html, nil
}
