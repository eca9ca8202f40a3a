package x

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "mediagrab/pkg/errors"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/models"
)

func newTestDriver(t *testing.T, serverURL string) *Driver {
	t.Helper()

	log := logger.NewTestLogger()
	client, err := NewClient("auth_token=tok; ct0=csrf123", "test-agent", 10*time.Second, log)
	require.NoError(t, err)
	client.baseURL = serverURL

	return &Driver{client: client, logger: log}
}

func tweetJSON(id, userID, createdAt, text, media string) string {
	return fmt.Sprintf(`{
		"entryId": "profile-grid-item-%s",
		"item": {"itemContent": {"tweet_results": {"result": {
			"rest_id": %q,
			"core": {"user_results": {"result": {"rest_id": %q}}},
			"legacy": {
				"created_at": %q,
				"full_text": %q,
				"entities": {"hashtags": [{"text": "cats"}], "media": []},
				"extended_entities": {"media": [%s]}
			}
		}}}}}`, id, id, userID, createdAt, text, media)
}

const photoMedia = `{"type": "photo", "media_url_https": "https://pbs.example.com/media/img1.jpg"}`

const videoMedia = `{
	"type": "video",
	"media_url_https": "https://pbs.example.com/media/thumb1.jpg",
	"video_info": {"variants": [
		{"url": "https://video.example.com/pl/manifest.m3u8"},
		{"bitrate": 832000, "url": "https://video.example.com/mid.mp4"},
		{"bitrate": 2176000, "url": "https://video.example.com/high.mp4"}
	]}
}`

func TestResolveUser(t *testing.T) {
	var gotAuth, gotCSRF string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotCSRF = r.Header.Get("X-Csrf-Token")
		assert.Contains(t, r.URL.Path, "UserByScreenName")
		assert.Contains(t, r.URL.Query().Get("variables"), `"screen_name":"alice"`)
		fmt.Fprint(w, `{"data": {"user": {"result": {
			"rest_id": "12345",
			"legacy": {
				"screen_name": "alice",
				"name": "Alice",
				"description": "photos",
				"created_at": "Mon Jan 08 10:00:00 +0000 2018",
				"media_count": 321
			}
		}}}}`)
	}))
	defer server.Close()

	d := newTestDriver(t, server.URL)

	user, err := d.ResolveUser(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, "12345", user.ID)
	assert.Equal(t, "alice", user.Handle)
	assert.Equal(t, "Alice", user.Nickname)
	assert.Equal(t, 321, user.MediaCount)
	assert.Equal(t, time.Date(2018, 1, 8, 10, 0, 0, 0, time.UTC), user.CreatedAt.UTC())

	assert.Equal(t, "Bearer "+bearerToken, gotAuth)
	assert.Equal(t, "csrf123", gotCSRF)
}

func TestResolveUserNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": {"user": {"result": {}}}}`)
	}))
	defer server.Close()

	d := newTestDriver(t, server.URL)

	_, err := d.ResolveUser(context.Background(), "ghost")
	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.ErrorTypeNotFound, apiErr.Type)
}

func TestFetchPageParsesTimeline(t *testing.T) {
	createdAt := "Wed Apr 10 12:00:00 +0000 2024"
	response := fmt.Sprintf(`{"data": {"user": {"result": {"timeline_v2": {"timeline": {"instructions": [
		{
			"type": "TimelineAddEntries",
			"entries": [
				{"entryId": "profile-grid-0", "content": {"items": [
					%s,
					%s,
					{"entryId": "profile-grid-item-gone", "item": {"itemContent": {"tweet_results": {"result": {"tombstone": {}}}}}}
				]}},
				{"entryId": "who-to-follow-1", "content": {}},
				{"entryId": "cursor-top-1", "content": {"value": "UP"}},
				{"entryId": "cursor-bottom-1", "content": {"value": "NEXT_PAGE"}}
			]
		},
		{
			"type": "TimelineAddToModule",
			"moduleItems": [%s]
		}
	]}}}}}}`,
		tweetJSON("100", "12345", createdAt, "a photo #cats", photoMedia),
		tweetJSON("101", "12345", createdAt, "a video", videoMedia),
		tweetJSON("102", "12345", createdAt, "more", photoMedia))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "UserMedia")
		assert.Contains(t, r.URL.Query().Get("variables"), `"cursor":"PAGE_TWO"`)
		fmt.Fprint(w, response)
	}))
	defer server.Close()

	d := newTestDriver(t, server.URL)
	user := models.User{ID: "12345", Handle: "alice"}

	page, err := d.FetchPage(context.Background(), user, "PAGE_TWO")
	require.NoError(t, err)

	assert.Equal(t, "NEXT_PAGE", page.Cursor)
	require.Len(t, page.Posts, 3)

	photo := page.Posts[0]
	assert.Equal(t, "100", photo.ID)
	assert.Equal(t, "12345", photo.UserID)
	assert.Equal(t, "a photo #cats", photo.Text)
	assert.Equal(t, []string{"cats"}, photo.Hashtags)
	require.Len(t, photo.Media, 1)
	assert.Equal(t, models.MediaTypeImage, photo.Media[0].Type)
	assert.Equal(t, "https://pbs.example.com/media/img1.jpg", photo.Media[0].URL)

	video := page.Posts[1]
	require.Len(t, video.Media, 1)
	assert.Equal(t, models.MediaTypeVideo, video.Media[0].Type)
	require.Len(t, video.Media[0].Variants, 3)
	assert.Nil(t, video.Media[0].Variants[0].Bitrate)
	assert.Equal(t, 2176000, *video.Media[0].Variants[2].Bitrate)

	assert.Equal(t, "102", page.Posts[2].ID)
}

func TestFetchPageUnwrapsVisibilityResults(t *testing.T) {
	response := `{"data": {"user": {"result": {"timeline_v2": {"timeline": {"instructions": [
		{"type": "TimelineAddEntries", "entries": [
			{"entryId": "profile-grid-0", "content": {"items": [
				{"entryId": "profile-grid-item-200", "item": {"itemContent": {"tweet_results": {"result": {
					"tweet": {
						"rest_id": "200",
						"core": {"user_results": {"result": {"rest_id": "12345"}}},
						"legacy": {
							"created_at": "Wed Apr 10 12:00:00 +0000 2024",
							"full_text": "limited",
							"entities": {"hashtags": [], "media": [{"type": "photo", "media_url_https": "https://pbs.example.com/media/img9.jpg"}]}
						}
					}
				}}}}}
			]}}
		]}
	]}}}}}}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, response)
	}))
	defer server.Close()

	d := newTestDriver(t, server.URL)

	page, err := d.FetchPage(context.Background(), models.User{ID: "12345"}, "")
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "200", page.Posts[0].ID)
	assert.Equal(t, "limited", page.Posts[0].Text)
	assert.Empty(t, page.Cursor)
}

func TestFetchPageSkipsMalformedEntries(t *testing.T) {
	response := fmt.Sprintf(`{"data": {"user": {"result": {"timeline_v2": {"timeline": {"instructions": [
		{"type": "TimelineAddEntries", "entries": [
			{"entryId": "profile-grid-0", "content": {"items": [
				{"entryId": "profile-grid-item-broken", "item": {"itemContent": {"tweet_results": {}}}},
				%s
			]}}
		]}
	]}}}}}}`, tweetJSON("300", "12345", "Wed Apr 10 12:00:00 +0000 2024", "fine", photoMedia))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, response)
	}))
	defer server.Close()

	log := logger.NewTestLogger()
	d := newTestDriver(t, server.URL)
	d.logger = log

	page, err := d.FetchPage(context.Background(), models.User{ID: "12345"}, "")
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "300", page.Posts[0].ID)
	assert.True(t, log.HasMessage("skipping malformed timeline entry"))
}

func TestChallengePageIsAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<!DOCTYPE html><html><body>JavaScript is disabled in this browser</body></html>`)
	}))
	defer server.Close()

	d := newTestDriver(t, server.URL)

	_, err := d.ResolveUser(context.Background(), "alice")
	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.ErrorTypeAuth, apiErr.Type)
	assert.False(t, errs.IsRetryable(apiErr.Type))
}

func TestRateLimitedResponseIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	d := newTestDriver(t, server.URL)

	_, err := d.ResolveUser(context.Background(), "alice")
	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.ErrorTypeRateLimit, apiErr.Type)
	assert.True(t, errs.IsRetryable(apiErr.Type))
}

func TestNewClientRequiresCSRFToken(t *testing.T) {
	_, err := NewClient("auth_token=tok", "agent", time.Second, logger.NewTestLogger())
	assert.Error(t, err)
}
