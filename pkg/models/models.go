package models

import (
	"sync/atomic"
	"time"
)

// MediaType identifies the kind of media attached to a post.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
	MediaTypeGif   MediaType = "gif"
)

// ParseMediaType converts a config/CLI string into a MediaType.
func ParseMediaType(s string) (MediaType, bool) {
	switch MediaType(s) {
	case MediaTypeImage, MediaTypeVideo, MediaTypeGif:
		return MediaType(s), true
	}
	return "", false
}

// TypeSet is the set of media types selected for download.
type TypeSet map[MediaType]bool

// NewTypeSet builds a TypeSet from parsed media types.
// An empty argument list selects every type.
func NewTypeSet(types ...MediaType) TypeSet {
	set := make(TypeSet)
	if len(types) == 0 {
		set[MediaTypeImage] = true
		set[MediaTypeVideo] = true
		set[MediaTypeGif] = true
		return set
	}
	for _, t := range types {
		set[t] = true
	}
	return set
}

// Contains reports whether the set selects the given type.
func (s TypeSet) Contains(t MediaType) bool {
	return s[t]
}

// VideoVariant is one downloadable rendition of a video or gif.
// Bitrate is nil for adaptive manifests that do not report one.
type VideoVariant struct {
	URL     string `json:"url"`
	Bitrate *int   `json:"bitrate,omitempty"`
}

// Media is a single media entry of a post.
// URL is the listing thumbnail for every type; Variants carry the video
// renditions. ResolvedURL is patched in later by the unlock protocol on
// platforms that hide direct video URLs from the listing payload.
type Media struct {
	Type        MediaType      `json:"type"`
	URL         string         `json:"url"`
	Variants    []VideoVariant `json:"variants,omitempty"`
	ResolvedURL string         `json:"resolved_url,omitempty"`
}

// User is a normalized creator profile. Keyed by the platform-assigned ID;
// the remaining fields are refreshed whenever the user is re-observed.
type User struct {
	ID          string    `json:"id"`
	Handle      string    `json:"handle"`
	Nickname    string    `json:"nickname"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	MediaCount  int       `json:"media_count"`
}

// Post is a normalized content entry. Immutable once captured, except that
// a media entry's ResolvedURL may be filled in by the unlock protocol.
type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	Text      string    `json:"text"`
	Hashtags  []string  `json:"hashtags,omitempty"`
	Media     []Media   `json:"media"`
}

// CompareIDs orders post IDs. Platform post IDs increase monotonically, so
// numeric IDs of different magnitudes must not fall back to plain string
// comparison; shorter numeric strings sort before longer ones.
func CompareIDs(a, b string) int {
	if isNumeric(a) && isNumeric(b) && len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// DownloadSummary accumulates per-item outcomes across the worker pool.
// Every counter is write-once per item and safe for concurrent use.
type DownloadSummary struct {
	downloaded      atomic.Int64
	skippedExisting atomic.Int64
	skippedFiltered atomic.Int64
	failed          atomic.Int64
}

func (s *DownloadSummary) RecordDownloaded()      { s.downloaded.Add(1) }
func (s *DownloadSummary) RecordSkippedExisting() { s.skippedExisting.Add(1) }
func (s *DownloadSummary) RecordSkippedFiltered() { s.skippedFiltered.Add(1) }
func (s *DownloadSummary) RecordFailed()          { s.failed.Add(1) }

func (s *DownloadSummary) Downloaded() int64      { return s.downloaded.Load() }
func (s *DownloadSummary) SkippedExisting() int64 { return s.skippedExisting.Load() }
func (s *DownloadSummary) SkippedFiltered() int64 { return s.skippedFiltered.Load() }
func (s *DownloadSummary) Failed() int64          { return s.failed.Load() }

// Fields returns the summary as logger fields.
func (s *DownloadSummary) Fields() map[string]interface{} {
	return map[string]interface{}{
		"downloaded":       s.Downloaded(),
		"skipped_existing": s.SkippedExisting(),
		"skipped_filtered": s.SkippedFiltered(),
		"failed":           s.Failed(),
	}
}
