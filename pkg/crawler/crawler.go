// Package crawler drives the sequential page-by-page timeline crawl.
// Pagination cannot be parallelized: each page request depends on the
// cursor returned by the previous one.
package crawler

import (
	"context"

	"mediagrab/pkg/extractor"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/models"
	"mediagrab/pkg/ratelimit"
	"mediagrab/pkg/retry"
	"mediagrab/pkg/state"
)

// Crawler fetches timeline pages through a protocol driver and merges them
// into the persisted crawl state after every page, so a crash loses at most
// the page in flight.
type Crawler struct {
	driver  extractor.Driver
	store   *state.Store
	limiter ratelimit.Limiter
	retry   *retry.Config
	logger  logger.Logger
}

// New creates a crawler. The retry config bounds each single page request;
// exhausting it aborts the invocation but leaves persisted state valid for
// the next resume.
func New(driver extractor.Driver, store *state.Store, limiter ratelimit.Limiter, retryCfg *retry.Config) *Crawler {
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	return &Crawler{
		driver:  driver,
		store:   store,
		limiter: limiter,
		retry:   retryCfg,
		logger:  logger.GetLogger().WithField("component", "crawler"),
	}
}

// Run resolves the target user and crawls the timeline to completion,
// resuming from the persisted cursor. Terminal conditions are an empty
// next cursor or an empty batch; cancellation is checked between pages.
func (c *Crawler) Run(ctx context.Context, handle string) (*state.CrawlState, models.User, error) {
	crawlState := c.store.Load()

	retryCfg := *c.retry
	retryCfg.Context = ctx

	user, err := retry.DoWithResult(func() (models.User, error) {
		return c.driver.ResolveUser(ctx, handle)
	}, &retryCfg)
	if err != nil {
		return crawlState, models.User{}, err
	}

	// Refresh the profile snapshot even when the crawl below turns out to
	// be a no-op resume.
	crawlState.Merge(state.Page{Users: map[string]models.User{user.ID: user}})
	if err := c.store.Save(crawlState); err != nil {
		return crawlState, user, err
	}

	pageNum := 0
	for {
		if err := ctx.Err(); err != nil {
			return crawlState, user, err
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return crawlState, user, err
			}
		}

		cursor := crawlState.Cursor
		page, err := retry.DoWithResult(func() (state.Page, error) {
			return c.driver.FetchPage(ctx, user, cursor)
		}, &retryCfg)
		if err != nil {
			return crawlState, user, err
		}

		pageNum++
		crawlState.Merge(page)
		if err := c.store.Save(crawlState); err != nil {
			return crawlState, user, err
		}

		c.logger.InfoWithFields("page merged", map[string]interface{}{
			"page":        pageNum,
			"page_posts":  len(page.Posts),
			"total_posts": crawlState.PostCount(),
			"cursor":      page.Cursor,
		})

		if len(page.Posts) == 0 || page.Cursor == "" {
			break
		}
	}

	c.logger.InfoWithFields("crawl complete", map[string]interface{}{
		"handle": handle,
		"posts":  crawlState.PostCount(),
		"media":  crawlState.MediaCount(),
	})

	return crawlState, user, nil
}
