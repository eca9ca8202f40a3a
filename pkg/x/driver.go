package x

import (
	"context"
	"strings"
	"time"

	"mediagrab/pkg/config"
	errs "mediagrab/pkg/errors"
	"mediagrab/pkg/extractor"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/models"
	"mediagrab/pkg/state"
)

func init() {
	extractor.Register("x", func(cfg *config.Config) (extractor.Driver, error) {
		return NewDriver(cfg)
	})
}

// Driver is the stateless-credential protocol driver for X.
type Driver struct {
	client *Client
	logger logger.Logger
}

// NewDriver builds the driver from configuration.
func NewDriver(cfg *config.Config) (*Driver, error) {
	cookie, err := cfg.CookieHeader()
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeAuth, "failed to load credentials", err)
	}

	log := logger.GetLogger().WithField("platform", "x")
	client, err := NewClient(cookie, cfg.Platform.UserAgent, cfg.Download.DownloadTimeout, log)
	if err != nil {
		return nil, err
	}

	return &Driver{client: client, logger: log}, nil
}

// Platform returns the registered platform name.
func (d *Driver) Platform() string {
	return "x"
}

// ResolveUser fetches the creator profile for a handle.
func (d *Driver) ResolveUser(ctx context.Context, handle string) (models.User, error) {
	var envelope graphQLEnvelope[userByScreenNameData]
	if err := d.client.GetJSON(ctx, d.client.userByScreenNameURL(handle), &envelope); err != nil {
		return models.User{}, err
	}
	if envelope.Data == nil {
		return models.User{}, errs.Newf(errs.ErrorTypeParsing, "empty profile response for %q", handle)
	}

	result := envelope.Data.User.Result
	if result.RestID == "" {
		return models.User{}, errs.Newf(errs.ErrorTypeNotFound, "user %q not found", handle)
	}

	createdAt, err := time.Parse(timeFormat, result.Legacy.CreatedAt)
	if err != nil {
		return models.User{}, errs.Wrap(errs.ErrorTypeParsing, "unparseable profile creation time", err)
	}

	user := models.User{
		ID:          result.RestID,
		Handle:      result.Legacy.ScreenName,
		Nickname:    result.Legacy.Name,
		Description: result.Legacy.Description,
		CreatedAt:   createdAt,
		MediaCount:  result.Legacy.MediaCount,
	}

	d.logger.InfoWithFields("resolved user", map[string]interface{}{
		"handle":      user.Handle,
		"user_id":     user.ID,
		"media_count": user.MediaCount,
	})

	return user, nil
}

// FetchPage fetches one media timeline page. Each instruction is classified
// into content entries, cursor markers and module batches; entries with an
// unexpected shape are skipped with a warning since timelines interleave
// ads and recommendations the media tab does not model.
func (d *Driver) FetchPage(ctx context.Context, user models.User, cursor string) (state.Page, error) {
	var envelope graphQLEnvelope[userMediaData]
	if err := d.client.GetJSON(ctx, d.client.userMediaURL(user.ID, cursor), &envelope); err != nil {
		return state.Page{}, err
	}
	if envelope.Data == nil {
		return state.Page{}, errs.New(errs.ErrorTypeParsing, "empty timeline response")
	}

	page := state.Page{Users: map[string]models.User{user.ID: user}}

	for _, instruction := range envelope.Data.User.Result.TimelineV2.Timeline.Instructions {
		switch instruction.Type {
		case "TimelineAddEntries":
			for _, entry := range instruction.Entries {
				switch {
				case strings.HasPrefix(entry.EntryID, "profile-"):
					page.Posts = append(page.Posts, d.mapItems(entry.Content.Items, user)...)
				case strings.HasPrefix(entry.EntryID, "cursor-bottom-"):
					page.Cursor = entry.Content.Value
				}
			}
		case "TimelineAddToModule":
			for _, item := range instruction.ModuleItems {
				if !strings.HasPrefix(item.EntryID, "profile-") {
					continue
				}
				page.Posts = append(page.Posts, d.mapItems([]moduleItem{item}, user)...)
			}
		}
	}

	return page, nil
}

// Finalize is a no-op; listings already carry direct media URLs.
func (d *Driver) Finalize(ctx context.Context, st *state.CrawlState) error {
	return nil
}

// mapItems converts wire module items into normalized posts, dropping
// malformed or tombstoned entries.
func (d *Driver) mapItems(items []moduleItem, user models.User) []models.Post {
	posts := make([]models.Post, 0, len(items))
	for _, item := range items {
		post, err := mapTweet(item.Item.ItemContent.TweetResults.Result)
		if err != nil {
			d.logger.WarnWithFields("skipping malformed timeline entry", map[string]interface{}{
				"entry_id": item.EntryID,
				"error":    err.Error(),
			})
			continue
		}
		if post == nil {
			continue // tombstone
		}
		posts = append(posts, *post)
	}
	return posts
}

// mapTweet is the boundary mapping from the wire tweet to the normalized
// Post. Visibility wrappers nest the real tweet one level down.
func mapTweet(result *tweetResult) (*models.Post, error) {
	if result == nil {
		return nil, errs.New(errs.ErrorTypeParsing, "missing tweet result")
	}
	if result.Tombstone != nil {
		return nil, nil
	}

	data := result
	if result.Tweet != nil {
		data = result.Tweet
	}
	if data.Core == nil || data.Legacy == nil {
		return nil, errs.New(errs.ErrorTypeParsing, "tweet result is missing core or legacy fields")
	}

	userID := data.Core.UserResults.Result.RestID
	if userID == "" {
		return nil, errs.New(errs.ErrorTypeParsing, "tweet result is missing the author ID")
	}

	createdAt, err := time.Parse(timeFormat, data.Legacy.CreatedAt)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, "unparseable tweet creation time", err)
	}

	wires := data.Legacy.Entities.Media
	if data.Legacy.ExtendedEntities != nil {
		wires = data.Legacy.ExtendedEntities.Media
	}

	media := make([]models.Media, 0, len(wires))
	for _, w := range wires {
		m, err := mapMedia(w)
		if err != nil {
			return nil, err
		}
		media = append(media, m)
	}

	hashtags := make([]string, 0, len(data.Legacy.Entities.Hashtags))
	for _, tag := range data.Legacy.Entities.Hashtags {
		hashtags = append(hashtags, tag.Text)
	}

	return &models.Post{
		ID:        data.RestID,
		UserID:    userID,
		CreatedAt: createdAt,
		Text:      data.Legacy.FullText,
		Hashtags:  hashtags,
		Media:     media,
	}, nil
}

func mapMedia(w wireMedia) (models.Media, error) {
	var mediaType models.MediaType
	switch w.Type {
	case "photo":
		mediaType = models.MediaTypeImage
	case "video":
		mediaType = models.MediaTypeVideo
	case "animated_gif":
		mediaType = models.MediaTypeGif
	default:
		return models.Media{}, errs.Newf(errs.ErrorTypeParsing, "unknown media type %q", w.Type)
	}

	media := models.Media{
		Type: mediaType,
		URL:  w.MediaURLHTTPS,
	}
	if w.VideoInfo != nil {
		for _, v := range w.VideoInfo.Variants {
			media.Variants = append(media.Variants, models.VideoVariant{
				URL:     v.URL,
				Bitrate: v.Bitrate,
			})
		}
	}
	return media, nil
}
