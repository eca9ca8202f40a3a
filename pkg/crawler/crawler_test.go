package crawler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediagrab/pkg/models"
	"mediagrab/pkg/retry"
	"mediagrab/pkg/state"
)

// mockDriver serves a fixed cursor-to-page feed.
type mockDriver struct {
	user       models.User
	pages      map[string]state.Page
	fetchCalls int
}

func (d *mockDriver) Platform() string { return "mock" }

func (d *mockDriver) ResolveUser(ctx context.Context, handle string) (models.User, error) {
	return d.user, nil
}

func (d *mockDriver) FetchPage(ctx context.Context, user models.User, cursor string) (state.Page, error) {
	d.fetchCalls++
	page, ok := d.pages[cursor]
	if !ok {
		return state.Page{}, nil
	}
	return page, nil
}

func (d *mockDriver) Finalize(ctx context.Context, st *state.CrawlState) error { return nil }

func newThreePageDriver() *mockDriver {
	user := models.User{ID: "100", Handle: "alice"}
	users := map[string]models.User{"100": user}
	return &mockDriver{
		user: user,
		pages: map[string]state.Page{
			"": {Users: users, Cursor: "c1", Posts: []models.Post{
				{ID: "6", UserID: "100"}, {ID: "5", UserID: "100"},
			}},
			"c1": {Users: users, Cursor: "c2", Posts: []models.Post{
				{ID: "4", UserID: "100"}, {ID: "3", UserID: "100"},
			}},
			"c2": {Users: users, Cursor: "c3", Posts: []models.Post{
				{ID: "2", UserID: "100"}, {ID: "1", UserID: "100"},
			}},
			// Page past the end: no posts, no cursor.
			"c3": {Users: users},
		},
	}
}

func newTestCrawler(t *testing.T, driver *mockDriver, dir string) (*Crawler, *state.Store) {
	t.Helper()
	store, err := state.NewStore(dir, driver.Platform(), "alice")
	require.NoError(t, err)

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = 1

	return New(driver, store, nil, retryCfg), store
}

func TestCrawlThreePageFeed(t *testing.T) {
	driver := newThreePageDriver()
	c, store := newTestCrawler(t, driver, t.TempDir())

	crawlState, user, err := c.Run(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, "100", user.ID)
	assert.Equal(t, 6, crawlState.PostCount())
	assert.Equal(t, "c3", crawlState.Cursor)

	// Every page was persisted; the snapshot on disk matches.
	persisted := store.Load()
	assert.Equal(t, 6, persisted.PostCount())
	assert.Equal(t, "c3", persisted.Cursor)
}

func TestCrawlResumeYieldsNoNewPosts(t *testing.T) {
	dir := t.TempDir()

	driver := newThreePageDriver()
	c, _ := newTestCrawler(t, driver, dir)
	first, _, err := c.Run(context.Background(), "alice")
	require.NoError(t, err)

	// Second run: the source answers "no more" for every cursor.
	exhausted := &mockDriver{
		user:  driver.user,
		pages: map[string]state.Page{},
	}
	c2, _ := newTestCrawler(t, exhausted, dir)

	second, _, err := c2.Run(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, 1, exhausted.fetchCalls)
	assert.Equal(t, first.PostCount(), second.PostCount())
	assert.Equal(t, first.Cursor, second.Cursor)
	assert.Equal(t, first.Posts, second.Posts)
}

func TestCrawlCancelledBetweenPages(t *testing.T) {
	driver := newThreePageDriver()
	c, store := newTestCrawler(t, driver, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := c.Run(ctx, "alice")
	assert.ErrorIs(t, err, context.Canceled)

	// The profile merge before the first page was still persisted.
	persisted := store.Load()
	assert.Equal(t, "alice", persisted.Users["100"].Handle)
	assert.Equal(t, 0, persisted.PostCount())
}
