// Package resolve derives final downloadable URLs and file extensions from
// listed media entries.
package resolve

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	errs "mediagrab/pkg/errors"
	"mediagrab/pkg/models"
)

// Item is one downloadable file derived from a media entry.
type Item struct {
	URL       string
	Extension string // includes the leading dot
	Bitrate   int    // 0 when the source reports none
}

// OriginalImageURL rewrites a thumbnail URL to request the original
// size and format in place: "…/img123.jpg" becomes
// "…/img123?format=jpg&name=orig". A URL without an extension cannot be
// rewritten and is a parse error scoped to this one item.
func OriginalImageURL(thumbURL string) (Item, error) {
	idx := strings.LastIndex(thumbURL, ".")
	slash := strings.LastIndex(thumbURL, "/")
	if idx == -1 || idx < slash {
		return Item{}, errs.Newf(errs.ErrorTypeParsing, "thumbnail URL has no extension: %s", thumbURL)
	}

	format := thumbURL[idx+1:]
	return Item{
		URL:       fmt.Sprintf("%s?format=%s&name=orig", thumbURL[:idx], format),
		Extension: "." + format,
	}, nil
}

// BestVariant selects the variant with the highest defined bitrate.
// Variants without a bitrate (adaptive manifests) are excluded from the
// comparison; ties keep the first-encountered variant.
func BestVariant(variants []models.VideoVariant) (models.VideoVariant, bool) {
	var best models.VideoVariant
	found := false
	for _, v := range variants {
		if v.Bitrate == nil {
			continue
		}
		if !found || *v.Bitrate > *best.Bitrate {
			best = v
			found = true
		}
	}
	return best, found
}

// urlExtension takes the extension from the final path segment of a URL,
// ignoring any query string.
func urlExtension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return path.Ext(rawURL)
	}
	return path.Ext(path.Base(u.Path))
}

// Media resolves one listed media entry into its downloadable items. Entries
// whose type is outside the selected set resolve to nothing. Selected videos
// and gifs yield their cover image (when the listing carries one) alongside
// the best rendition; an already-resolved direct URL wins over variant
// selection.
func Media(m models.Media, types models.TypeSet) ([]Item, error) {
	if !types.Contains(m.Type) {
		return nil, nil
	}

	var items []Item

	if m.Type == models.MediaTypeImage {
		switch {
		case m.ResolvedURL != "":
			// Direct image URL; no rewrite needed.
			items = append(items, Item{URL: m.ResolvedURL, Extension: urlExtension(m.ResolvedURL)})
		case m.URL != "":
			image, err := OriginalImageURL(m.URL)
			if err != nil {
				return nil, err
			}
			items = append(items, image)
		default:
			return nil, errs.New(errs.ErrorTypeParsing, "image entry has no source URL")
		}
		return items, nil
	}

	// Video and gif: cover image first, when the listing carries one.
	if m.URL != "" {
		cover, err := OriginalImageURL(m.URL)
		if err != nil {
			return nil, err
		}
		items = append(items, cover)
	}

	if m.ResolvedURL != "" {
		// Direct URL revealed by the unlock protocol.
		items = append(items, Item{URL: m.ResolvedURL, Extension: urlExtension(m.ResolvedURL)})
		return items, nil
	}

	best, ok := BestVariant(m.Variants)
	if !ok {
		return nil, errs.Newf(errs.ErrorTypeParsing, "no variant with a defined bitrate for post media %q", m.URL)
	}

	items = append(items, Item{
		URL:       best.URL,
		Extension: urlExtension(best.URL),
		Bitrate:   derefBitrate(best.Bitrate),
	})
	return items, nil
}

func derefBitrate(b *int) int {
	if b == nil {
		return 0
	}
	return *b
}
