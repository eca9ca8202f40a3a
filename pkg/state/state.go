package state

import (
	"sort"
	"time"

	"mediagrab/pkg/models"
)

// CrawlState is the persisted, mergeable snapshot of a crawl: the users and
// posts observed so far plus the pagination cursor to resume from. An empty
// cursor means the crawl has not started (or finished from the beginning).
type CrawlState struct {
	Cursor    string                 `json:"cursor,omitempty"`
	Users     map[string]models.User `json:"users"`
	Posts     map[string]models.Post `json:"posts"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// New returns an empty crawl state.
func New() *CrawlState {
	return &CrawlState{
		Users: make(map[string]models.User),
		Posts: make(map[string]models.Post),
	}
}

// Page is one fetched batch to merge into the state.
type Page struct {
	Users  map[string]models.User
	Posts  []models.Post
	Cursor string
}

// Merge unions a page into the state. User profile fields are refreshed
// (last write wins); post content is immutable once captured (first write
// wins). Merging the same page twice yields the same state as merging it
// once.
func (s *CrawlState) Merge(page Page) {
	for id, user := range page.Users {
		s.Users[id] = user
	}
	for _, post := range page.Posts {
		if _, exists := s.Posts[post.ID]; exists {
			continue
		}
		s.Posts[post.ID] = post
	}
	if page.Cursor != "" {
		s.Cursor = page.Cursor
	}
}

// SetResolvedURL patches the resolved video URL of a persisted post. Used by
// the unlock protocol, which reveals direct URLs only after the listing has
// been captured.
func (s *CrawlState) SetResolvedURL(postID, url string) bool {
	post, ok := s.Posts[postID]
	if !ok {
		return false
	}
	for i := range post.Media {
		if post.Media[i].Type != models.MediaTypeImage {
			post.Media[i].ResolvedURL = url
			s.Posts[postID] = post
			return true
		}
	}
	return false
}

// SortedPosts returns all posts in descending-ID order, the natural
// newest-first ordering of monotonically increasing post IDs.
func (s *CrawlState) SortedPosts() []models.Post {
	posts := make([]models.Post, 0, len(s.Posts))
	for _, post := range s.Posts {
		posts = append(posts, post)
	}
	sort.Slice(posts, func(i, j int) bool {
		return models.CompareIDs(posts[i].ID, posts[j].ID) > 0
	})
	return posts
}

// PostCount returns the number of captured posts.
func (s *CrawlState) PostCount() int {
	return len(s.Posts)
}

// MediaCount returns the number of captured media entries.
func (s *CrawlState) MediaCount() int {
	count := 0
	for _, post := range s.Posts {
		count += len(post.Media)
	}
	return count
}
