package fans

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	errs "mediagrab/pkg/errors"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/models"
)

// postTimeFormat is the server-side timestamp attached to each post card.
const postTimeFormat = "2006-01-02 15:04:05"

var whitespace = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ")

func parseDocument(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, "failed to parse HTML fragment", err)
	}
	return doc, nil
}

// parsePostCards extracts normalized posts from one feed fragment. Only
// photo and video cards are modeled; promo and text-only cards are left
// alone, and a card with an unexpected shape is skipped with a warning so
// one broken entry cannot wedge the page.
func parsePostCards(html, userID string, log logger.Logger) ([]models.Post, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return nil, err
	}

	var posts []models.Post

	doc.Find("div.mbsc-card.jffPostClass").Each(func(_ int, card *goquery.Selection) {
		isVideo := card.HasClass("video")
		if !isVideo && !card.HasClass("photo") {
			return
		}

		post, err := parseCard(card, userID, isVideo)
		if err != nil {
			log.WarnWithFields("skipping malformed post card", map[string]interface{}{
				"error": err.Error(),
			})
			return
		}
		posts = append(posts, post)
	})

	return posts, nil
}

func parseCard(card *goquery.Selection, userID string, isVideo bool) (models.Post, error) {
	menuID, ok := card.Find("ul.postMenu").Attr("id")
	if !ok {
		return models.Post{}, errs.New(errs.ErrorTypeParsing, "post card has no menu ID")
	}
	id := strings.TrimPrefix(menuID, "postMenu")
	if id == "" {
		return models.Post{}, errs.New(errs.ErrorTypeParsing, "post card has an empty ID")
	}

	timeText, ok := card.Find("div.mbsc-card-subtitle").Attr("data-server-time")
	if !ok {
		return models.Post{}, errs.Newf(errs.ErrorTypeParsing, "post %s has no server time", id)
	}
	createdAt, err := time.Parse(postTimeFormat, timeText)
	if err != nil {
		return models.Post{}, errs.Wrap(errs.ErrorTypeParsing, fmt.Sprintf("unparseable post time %q", timeText), err)
	}

	text, hashtags := parseCaption(card.Find("div.fr-view").First())

	var media []models.Media
	if isVideo {
		// The direct URL is revealed later by the unlock pass.
		media = append(media, models.Media{Type: models.MediaTypeVideo})
	} else {
		card.Find("div.imageGallery.galleryLarge img[data-lazy]").Each(func(_ int, img *goquery.Selection) {
			src, _ := img.Attr("data-lazy")
			if src != "" {
				media = append(media, models.Media{Type: models.MediaTypeImage, ResolvedURL: src})
			}
		})
	}

	return models.Post{
		ID:        id,
		UserID:    userID,
		CreatedAt: createdAt,
		Text:      text,
		Hashtags:  hashtags,
		Media:     media,
	}, nil
}

// parseCaption splits a caption node into plain text and hashtag links.
// Tag anchors are removed before flattening so the text matches what a
// reader sees around them.
func parseCaption(caption *goquery.Selection) (string, []string) {
	if caption.Length() == 0 {
		return "", nil
	}

	var hashtags []string
	caption.Find("a").Each(func(_ int, link *goquery.Selection) {
		tag := strings.TrimSpace(link.Text())
		if strings.HasPrefix(tag, "#") {
			hashtags = append(hashtags, tag)
			link.Remove()
		}
	})

	text := strings.Join(strings.Fields(whitespace.Replace(caption.Text())), " ")
	return text, hashtags
}

// parseCollectionID finds the collection created under the given title in
// the picker fragment and returns its ID.
func parseCollectionID(html, title string) (string, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return "", err
	}

	id := ""
	doc.Find("li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		if strings.TrimSpace(li.Text()) != title {
			return true
		}
		id, _ = li.Attr("data-id")
		return false
	})

	if id == "" {
		return "", errs.Newf(errs.ErrorTypeResourceState, "collection %q not found in picker", title)
	}
	return id, nil
}

// parseCollectionTitles lists every collection title in the picker
// fragment.
func parseCollectionTitles(html string) ([]string, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return nil, err
	}

	var titles []string
	doc.Find("li").Each(func(_ int, li *goquery.Selection) {
		if title := strings.TrimSpace(li.Text()); title != "" {
			titles = append(titles, title)
		}
	})
	return titles, nil
}

// parseVerify returns the per-post verification token the add call must
// echo for the given collection.
func parseVerify(html, collectionID string) (string, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return "", err
	}

	verify, ok := doc.Find(fmt.Sprintf("li[data-id=%q]", collectionID)).Attr("data-verify")
	if !ok || verify == "" {
		return "", errs.Newf(errs.ErrorTypeResourceState, "no verification token for collection %s", collectionID)
	}
	return verify, nil
}

// videoSource is one rendition in a tray item's data-sources attribute.
type videoSource struct {
	Res string `json:"res"`
	Src string `json:"src"`
}

// parseTrayVideos reads the populated collection tray and pairs each post
// ID with the URL of its highest-resolution rendition. The ID list and the
// video list are parallel by position.
func parseTrayVideos(html string) (map[string]string, error) {
	doc, err := parseDocument(html)
	if err != nil {
		return nil, err
	}

	var ids []string
	doc.Find("div.playlist-remove-video-item").Each(func(_ int, item *goquery.Selection) {
		raw, _ := item.Attr("id")
		id := strings.TrimPrefix(raw, "remove-video-")
		if idx := strings.Index(id, "-"); idx != -1 {
			id = id[:idx]
		}
		ids = append(ids, id)
	})
	if len(ids) == 0 {
		return nil, errs.New(errs.ErrorTypeResourceState, "collection tray lists no post IDs")
	}

	var urls []string
	var parseErr error
	doc.Find("div.playlist-tray-video-item").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		raw, _ := item.Attr("data-sources")

		var sources []videoSource
		if err := json.Unmarshal([]byte(raw), &sources); err != nil {
			parseErr = errs.Wrap(errs.ErrorTypeParsing, "failed to parse tray video sources", err)
			return false
		}

		best, err := bestSource(sources)
		if err != nil {
			parseErr = err
			return false
		}
		urls = append(urls, best)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	if len(urls) != len(ids) {
		return nil, errs.Newf(errs.ErrorTypeResourceState,
			"collection tray is inconsistent: %d IDs but %d videos", len(ids), len(urls))
	}

	videos := make(map[string]string, len(ids))
	for i, id := range ids {
		videos[id] = urls[i]
	}
	return videos, nil
}

func bestSource(sources []videoSource) (string, error) {
	best := ""
	bestRes := -1
	for _, source := range sources {
		res, err := strconv.Atoi(source.Res)
		if err != nil {
			return "", errs.Newf(errs.ErrorTypeParsing, "unparseable video resolution %q", source.Res)
		}
		if res > bestRes {
			best = source.Src
			bestRes = res
		}
	}
	if best == "" {
		return "", errs.New(errs.ErrorTypeResourceState, "tray video has no sources")
	}
	return best, nil
}
