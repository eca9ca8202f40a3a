// Package scraper wires the crawl, unlock, filter, resolve and download
// stages into one run.
package scraper

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"mediagrab/internal/downloader"
	"mediagrab/pkg/config"
	"mediagrab/pkg/crawler"
	"mediagrab/pkg/extractor"
	"mediagrab/pkg/filter"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/models"
	"mediagrab/pkg/ratelimit"
	"mediagrab/pkg/resolve"
	"mediagrab/pkg/retry"
	"mediagrab/pkg/state"
	"mediagrab/pkg/template"
)

// defaultTemplates map each platform to its path template when the user
// configures none.
var defaultTemplates = map[string]string{
	"x":           "{Username}/{TweetId} {TweetTime} {MediaIndex}{MediaExtension}",
	"justforfans": "{Username}/{TweetId} {TweetTime} {MediaIndex}{MediaExtension}",
}

// Scraper runs the full pipeline for one target handle.
type Scraper struct {
	cfg    *config.Config
	driver extractor.Driver
	filter *filter.Filter
	types  models.TypeSet
	logger logger.Logger
}

// New builds a scraper from configuration: platform driver, content filter
// and media-type selection.
func New(cfg *config.Config) (*Scraper, error) {
	driver, err := extractor.New(cfg)
	if err != nil {
		return nil, err
	}

	contentFilter, err := filter.New(&cfg.Filter)
	if err != nil {
		return nil, err
	}

	var selected []models.MediaType
	for _, name := range cfg.Download.MediaTypes {
		t, ok := models.ParseMediaType(name)
		if !ok {
			return nil, fmt.Errorf("unknown media type: %q", name)
		}
		selected = append(selected, t)
	}

	return &Scraper{
		cfg:    cfg,
		driver: driver,
		filter: contentFilter,
		types:  models.NewTypeSet(selected...),
		logger: logger.GetLogger().WithField("component", "scraper"),
	}, nil
}

// Run crawls the handle's timeline, finalizes media URLs, and downloads
// everything that passes the filters. The returned summary is valid even
// when the run ends early; the error reports what cut it short.
func (s *Scraper) Run(ctx context.Context, handle string) (*models.DownloadSummary, error) {
	summary := &models.DownloadSummary{}

	store, err := state.NewStore(s.cfg.State.Directory, s.driver.Platform(), handle)
	if err != nil {
		return summary, err
	}

	limiter := s.newLimiter()
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = s.cfg.Download.RetryAttempts

	crawlState, user, err := crawler.New(s.driver, store, limiter, retryCfg).Run(ctx, handle)
	if err != nil {
		return summary, err
	}

	// Platform-specific completion, e.g. the unlock pass that reveals
	// direct video URLs. Resolved URLs are part of the snapshot.
	if err := s.driver.Finalize(ctx, crawlState); err != nil {
		return summary, err
	}
	if err := store.Save(crawlState); err != nil {
		return summary, err
	}

	jobs := s.buildJobs(crawlState, user, summary)
	if len(jobs) == 0 {
		s.logger.Info("nothing to download")
		return summary, ctx.Err()
	}

	s.download(ctx, jobs, limiter, retryCfg, summary)

	s.logger.InfoWithFields("run complete", summary.Fields())
	return summary, ctx.Err()
}

func (s *Scraper) newLimiter() ratelimit.Limiter {
	rpm := s.cfg.RateLimit.RequestsPerMinute
	burst := s.cfg.RateLimit.BurstSize
	if rpm <= 0 || burst <= 0 {
		return nil
	}
	refill := time.Duration(burst) * time.Minute / time.Duration(rpm)
	return ratelimit.NewTokenBucket(burst, refill)
}

// buildJobs turns the crawl snapshot into download jobs: filter posts,
// resolve each media entry and render the deterministic target path.
// Resolution failures are scoped to the single entry.
func (s *Scraper) buildJobs(crawlState *state.CrawlState, user models.User, summary *models.DownloadSummary) []downloader.Job {
	tmpl := s.cfg.Output.PathTemplate
	if tmpl == "" {
		tmpl = defaultTemplates[s.driver.Platform()]
	}
	mode := template.ParseMode(s.cfg.Output.Sanitize)

	var jobs []downloader.Job
	for _, post := range crawlState.SortedPosts() {
		if allowed, reason := s.filter.Allow(post); !allowed {
			s.logger.InfoWithFields("post excluded by filter", map[string]interface{}{
				"post_id": post.ID,
				"reason":  reason,
			})
			for range post.Media {
				summary.RecordSkippedFiltered()
			}
			continue
		}

		author := crawlState.Users[post.UserID]
		if author.ID == "" {
			author = user
		}

		for i, media := range post.Media {
			items, err := resolve.Media(media, s.types)
			if err != nil {
				summary.RecordFailed()
				s.logger.WarnWithFields("skipping unresolvable media entry", map[string]interface{}{
					"post_id": post.ID,
					"index":   i + 1,
					"error":   err.Error(),
				})
				continue
			}

			for _, item := range items {
				fields := template.Fields{
					UserID:          author.ID,
					Username:        author.Handle,
					Nickname:        author.Nickname,
					UserDescription: author.Description,
					UserCreatedAt:   author.CreatedAt,
					UserMediaCount:  author.MediaCount,
					PostID:          post.ID,
					PostTime:        post.CreatedAt,
					PostText:        post.Text,
					PostHashtags:    post.Hashtags,
					MediaIndex:      i + 1,
					MediaType:       media.Type,
					MediaExtension:  item.Extension,
					MediaBitrate:    item.Bitrate,
				}

				relative, err := template.Render(tmpl, fields, mode)
				if err != nil {
					summary.RecordFailed()
					s.logger.WarnWithFields("skipping media with unrenderable path", map[string]interface{}{
						"post_id": post.ID,
						"error":   err.Error(),
					})
					continue
				}

				jobs = append(jobs, downloader.Job{
					URL:    item.URL,
					Path:   filepath.Join(s.cfg.Output.Directory, filepath.FromSlash(relative)),
					PostID: post.ID,
				})
			}
		}
	}
	return jobs
}

func (s *Scraper) download(ctx context.Context, jobs []downloader.Job, limiter ratelimit.Limiter, retryCfg *retry.Config, summary *models.DownloadSummary) {
	fetcher := downloader.NewHTTPFetcher(s.cfg.Download.DownloadTimeout, s.fetchHeaders())
	pool := downloader.NewWorkerPool(s.cfg.Download.Concurrency, fetcher, limiter, retryCfg, summary, s.logger)

	pool.Start(ctx)
	go func() {
		for _, job := range jobs {
			if !pool.Submit(ctx, job) {
				break
			}
		}
		pool.Stop()
	}()

	done := 0
	for range pool.Results() {
		done++
		if done%25 == 0 || done == len(jobs) {
			s.logger.InfoWithFields("download progress", map[string]interface{}{
				"done":  done,
				"total": len(jobs),
			})
		}
	}
}

// fetchHeaders builds the per-request headers for media fetches. Media on
// the session-gated platform needs the account cookie; public CDNs only
// get the user agent.
func (s *Scraper) fetchHeaders() map[string]string {
	headers := map[string]string{
		"User-Agent": s.cfg.Platform.UserAgent,
	}
	if s.driver.Platform() == "justforfans" {
		if cookie, err := s.cfg.CookieHeader(); err == nil {
			headers["Cookie"] = cookie
		}
	}
	return headers
}
