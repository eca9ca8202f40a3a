package fans

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"mediagrab/pkg/config"
	errs "mediagrab/pkg/errors"
	"mediagrab/pkg/extractor"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/models"
	"mediagrab/pkg/state"
)

func init() {
	extractor.Register("justforfans", func(cfg *config.Config) (extractor.Driver, error) {
		return NewDriver(cfg)
	})
}

const (
	// pageStep is the offset increment between feed pages.
	pageStep = 10

	// feedEndMarker is the literal the feed endpoint embeds past the last
	// post.
	feedEndMarker = "That's all! We're as sad as you are."

	// addedConfirmation is the exact body a successful add call returns.
	addedConfirmation = "Movie added to Playlist"

	// collectionTitlePrefix marks collections created by the unlock pass so
	// leftovers from crashed runs are recognizable.
	collectionTitlePrefix = "mediagrab extract "
)

var (
	pageHashPattern = regexp.MustCompile(`var\s+Hash\s*=\s*'([0-9a-fA-F]+)'`)
	posterIDPattern = regexp.MustCompile(`window\.jffUserID\s*=\s*'(\d+)'`)
)

// creatorCounts is the asset-count response; every field arrives as a
// string.
type creatorCounts struct {
	UserID string `json:"UserID"`
	Photos string `json:"Photos"`
	Videos string `json:"Videos"`
	Posts  string `json:"Posts"`
}

// Driver crawls a creator feed and runs the collection-based unlock
// protocol that reveals direct video URLs. ResolveUser captures per-session
// tokens scraped from the profile page; FetchPage and Finalize depend on
// them.
type Driver struct {
	client *Client
	logger logger.Logger

	pageHash  string
	posterID  string
	creatorID string
}

// NewDriver builds the driver from configuration.
func NewDriver(cfg *config.Config) (*Driver, error) {
	cookie, err := cfg.CookieHeader()
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeAuth, "failed to load credentials", err)
	}

	log := logger.GetLogger().WithField("platform", "justforfans")
	client, err := NewClient(cookie, cfg.Platform.UserAgent, cfg.Download.DownloadTimeout, log)
	if err != nil {
		return nil, err
	}

	return &Driver{client: client, logger: log}, nil
}

// Platform returns the registered platform name.
func (d *Driver) Platform() string {
	return "justforfans"
}

// ResolveUser loads the creator profile page, scrapes the session tokens
// embedded in it and fetches the creator's asset counts.
func (d *Driver) ResolveUser(ctx context.Context, handle string) (models.User, error) {
	page, err := d.client.GetText(ctx, fmt.Sprintf("%s/%s", d.client.baseURL, url.PathEscape(handle)))
	if err != nil {
		return models.User{}, err
	}

	// Missing session tokens mean the page was served logged-out: an auth
	// failure, not a parsing one.
	hashMatch := pageHashPattern.FindStringSubmatch(page)
	if hashMatch == nil {
		return models.User{}, errs.Newf(errs.ErrorTypeAuth, "profile page for %q carries no session hash; cookies may be expired", handle)
	}
	posterMatch := posterIDPattern.FindStringSubmatch(page)
	if posterMatch == nil {
		return models.User{}, errs.Newf(errs.ErrorTypeAuth, "profile page for %q carries no poster ID; cookies may be expired", handle)
	}
	d.pageHash = hashMatch[1]
	d.posterID = posterMatch[1]

	countsURL := fmt.Sprintf("%s/ajax/getAssetCount.php?User=%s&Ver=%s",
		d.client.baseURL, url.QueryEscape(handle), d.pageHash)
	body, err := d.client.GetText(ctx, countsURL)
	if err != nil {
		return models.User{}, err
	}

	var counts creatorCounts
	if err := unmarshalCounts(body, &counts); err != nil {
		return models.User{}, err
	}
	d.creatorID = counts.UserID

	user := models.User{
		ID:         counts.UserID,
		Handle:     handle,
		Nickname:   handle,
		MediaCount: atoiOrZero(counts.Photos) + atoiOrZero(counts.Videos),
	}

	d.logger.InfoWithFields("resolved user", map[string]interface{}{
		"handle":      user.Handle,
		"user_id":     user.ID,
		"media_count": user.MediaCount,
	})

	return user, nil
}

// FetchPage fetches one feed fragment. The cursor is the numeric feed
// offset; an empty cursor starts from the top. The end-of-feed marker
// yields an empty page with no cursor, which ends the crawl.
func (d *Driver) FetchPage(ctx context.Context, user models.User, cursor string) (state.Page, error) {
	startAt := 0
	if cursor != "" {
		parsed, err := strconv.Atoi(cursor)
		if err != nil {
			return state.Page{}, errs.Newf(errs.ErrorTypeParsing, "invalid feed offset cursor %q", cursor)
		}
		startAt = parsed
	}

	feedURL := fmt.Sprintf(
		"%s/ajax/getPosts.php?UserID=%s&PosterID=%s&Type=One&StartAt=%d&Page=Profile&UserHash4=%s&UniquePageInstance=0&Country=&IsMobile=0",
		d.client.baseURL, d.posterID, d.creatorID, startAt, d.client.UserHash())

	body, err := d.client.GetText(ctx, feedURL)
	if err != nil {
		return state.Page{}, err
	}

	if strings.Contains(body, feedEndMarker) {
		return state.Page{Users: map[string]models.User{user.ID: user}}, nil
	}

	posts, err := parsePostCards(body, user.ID, d.logger)
	if err != nil {
		return state.Page{}, err
	}

	return state.Page{
		Users:  map[string]models.User{user.ID: user},
		Posts:  posts,
		Cursor: strconv.Itoa(startAt + pageStep),
	}, nil
}

// Finalize runs the unlock protocol for every video post that still lacks
// a direct URL: create a working collection, add each post to it, read the
// revealed URLs back from the collection tray and patch them into the
// crawl state. The collection is deleted exactly once on the way out, even
// when populating fails partway or the context is already cancelled.
func (d *Driver) Finalize(ctx context.Context, st *state.CrawlState) (err error) {
	pending := pendingVideoPosts(st)
	if len(pending) == 0 {
		return nil
	}

	d.logger.InfoWithFields("unlocking video URLs", map[string]interface{}{
		"posts": len(pending),
	})

	title := collectionTitlePrefix + uuid.NewString()
	if err := d.createCollection(ctx, title); err != nil {
		return err
	}

	collectionID, err := d.findCollection(ctx, title)
	if err != nil {
		return err
	}

	defer func() {
		// Cleanup must run even when the surrounding context was cancelled;
		// leaving the collection behind mutates the account for good.
		cleanupErr := d.deleteCollection(context.WithoutCancel(ctx), collectionID)
		if cleanupErr != nil {
			d.logger.ErrorWithFields("failed to delete working collection", map[string]interface{}{
				"collection_id": collectionID,
				"error":         cleanupErr.Error(),
			})
			if err == nil {
				err = cleanupErr
			}
		}
	}()

	for _, id := range pending {
		if err := d.addToCollection(ctx, collectionID, id); err != nil {
			return err
		}
	}

	videos, err := d.trayVideos(ctx, collectionID)
	if err != nil {
		return err
	}

	for postID, videoURL := range videos {
		if !st.SetResolvedURL(postID, videoURL) {
			d.logger.WarnWithFields("tray revealed a URL for an unknown post", map[string]interface{}{
				"post_id": postID,
			})
		}
	}
	return nil
}

// pendingVideoPosts lists the IDs of video posts whose direct URL has not
// been revealed yet, in stable feed order.
func pendingVideoPosts(st *state.CrawlState) []string {
	var pending []string
	for _, post := range st.SortedPosts() {
		for _, m := range post.Media {
			if m.Type != models.MediaTypeImage && m.ResolvedURL == "" {
				pending = append(pending, post.ID)
				break
			}
		}
	}
	return pending
}

func (d *Driver) createCollection(ctx context.Context, title string) error {
	form := url.Values{}
	form.Set("Action", "AddPlaylist")
	form.Set("UserHash", d.client.UserHash())
	form.Set("Title", title)

	response, err := d.client.PostForm(ctx, d.client.baseURL+"/ajax/playlists.php", form)
	if err != nil {
		return err
	}
	if !response.Ok {
		return errs.Newf(errs.ErrorTypeResourceState,
			"failed to create collection: %d %s", response.Status, response.Text)
	}

	d.logger.DebugWithFields("created working collection", map[string]interface{}{
		"title": title,
	})
	return nil
}

// findCollection resolves the freshly created collection's ID from the
// picker. Stale collections left behind by interrupted runs are reported
// so the account owner can remove them.
func (d *Driver) findCollection(ctx context.Context, title string) (string, error) {
	body, err := d.client.GetText(ctx, d.pickerURL(""))
	if err != nil {
		return "", err
	}

	if titles, err := parseCollectionTitles(body); err == nil {
		for _, existing := range titles {
			if existing != title && strings.HasPrefix(existing, collectionTitlePrefix) {
				d.logger.WarnWithFields("found a stale working collection from an earlier run", map[string]interface{}{
					"title": existing,
				})
			}
		}
	}

	return parseCollectionID(body, title)
}

func (d *Driver) addToCollection(ctx context.Context, collectionID, postID string) error {
	body, err := d.client.GetText(ctx, d.pickerURL(postID))
	if err != nil {
		return err
	}
	verify, err := parseVerify(body, collectionID)
	if err != nil {
		return err
	}

	addURL := fmt.Sprintf("%s/ajax/playlists.php?Action=AddToPlaylist&UserHash=%s&MovieHash=%s&PlaylistID=%s&Verify=%s",
		d.client.baseURL, d.client.UserHash(), postID, collectionID, url.QueryEscape(verify))

	response, err := d.client.GetText(ctx, addURL)
	if err != nil {
		return err
	}
	if response != addedConfirmation {
		return errs.Newf(errs.ErrorTypeResourceState,
			"failed to add post %s to collection: %s", postID, response)
	}

	d.logger.DebugWithFields("added post to working collection", map[string]interface{}{
		"post_id": postID,
	})
	return nil
}

func (d *Driver) trayVideos(ctx context.Context, collectionID string) (map[string]string, error) {
	body, err := d.client.GetText(ctx,
		fmt.Sprintf("%s/ajax/getPlaylistForTray.php?PlaylistID=%s", d.client.baseURL, collectionID))
	if err != nil {
		return nil, err
	}
	return parseTrayVideos(body)
}

func (d *Driver) deleteCollection(ctx context.Context, collectionID string) error {
	_, err := d.client.GetText(ctx,
		fmt.Sprintf("%s/ajax/playlists.php?Action=DeletePlaylist&UserHash=%s&PlaylistID=%s",
			d.client.baseURL, d.client.UserHash(), collectionID))
	if err == nil {
		d.logger.DebugWithFields("deleted working collection", map[string]interface{}{
			"collection_id": collectionID,
		})
	}
	return err
}

// pickerURL builds the collection picker URL; with a post hash it also
// carries per-post verification tokens.
func (d *Driver) pickerURL(postID string) string {
	return fmt.Sprintf("%s/ajax/playlists.php?Action=loadformovie&UserHash=%s&Hash=%s",
		d.client.baseURL, d.client.UserHash(), postID)
}

func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func unmarshalCounts(body string, counts *creatorCounts) error {
	if err := json.Unmarshal([]byte(body), counts); err != nil {
		return errs.Wrap(errs.ErrorTypeParsing, "failed to parse asset counts", err)
	}
	if counts.UserID == "" {
		return errs.New(errs.ErrorTypeParsing, "asset counts carry no creator ID")
	}
	return nil
}
