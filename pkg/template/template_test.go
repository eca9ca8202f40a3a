package template

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediagrab/pkg/models"
)

func TestRenderBasic(t *testing.T) {
	got, err := Render("{Username}/{TweetId}-{MediaIndex}{MediaExtension}", Fields{
		Username:       "abc",
		PostID:         "42",
		MediaIndex:     1,
		MediaExtension: ".jpg",
	}, ModeSafe)
	require.NoError(t, err)
	assert.Equal(t, "abc/42-1.jpg", got)
}

func TestRenderTimeFormats(t *testing.T) {
	postTime := time.Date(2024, 4, 10, 12, 30, 0, 0, time.UTC)

	t.Run("default format", func(t *testing.T) {
		got, err := Render("{TweetTime}", Fields{PostTime: postTime}, ModeSafe)
		require.NoError(t, err)
		assert.Equal(t, "2024-04-10_12-30-00", got)
	})

	t.Run("custom format", func(t *testing.T) {
		got, err := Render("{TweetTime:2006/01}", Fields{PostTime: postTime}, ModeSafe)
		require.NoError(t, err)
		assert.Equal(t, "2024/04", got)
	})
}

func TestRenderMissingFieldsAreEmpty(t *testing.T) {
	got, err := Render("{Nickname}{TweetText}{MediaBitrate}", Fields{}, ModeSafe)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestRenderUnknownPlaceholderLeftVerbatim(t *testing.T) {
	got, err := Render("{Username}/{Nope}", Fields{Username: "abc"}, ModeOff)
	require.NoError(t, err)
	assert.Equal(t, "abc/{Nope}", got)
}

func TestRenderHashtags(t *testing.T) {
	got, err := Render("{TweetHashtags}", Fields{PostHashtags: []string{"#cats", "#dogs"}}, ModeSafe)
	require.NoError(t, err)
	assert.Equal(t, "#cats #dogs", got)
}

func TestSanitizeModes(t *testing.T) {
	fields := Fields{Username: "a:b", PostID: "1"}

	t.Run("safe replaces hostile characters", func(t *testing.T) {
		got, err := Render("{Username}/{TweetId}", fields, ModeSafe)
		require.NoError(t, err)
		assert.Equal(t, "a_b/1", got)
	})

	t.Run("strict rejects hostile characters", func(t *testing.T) {
		_, err := Render("{Username}/{TweetId}", fields, ModeStrict)
		assert.Error(t, err)
	})

	t.Run("off renders verbatim", func(t *testing.T) {
		got, err := Render("{Username}/{TweetId}", fields, ModeOff)
		require.NoError(t, err)
		assert.Equal(t, "a:b/1", got)
	})
}

func TestSanitizeKeepsSeparators(t *testing.T) {
	got, err := Render("{Username}/{TweetTime:2006/01}/{TweetId}", Fields{
		Username: "abc",
		PostID:   "42",
		PostTime: time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC),
	}, ModeSafe)
	require.NoError(t, err)
	assert.Equal(t, "abc/2024/04/42", got)
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeSafe, ParseMode(""))
	assert.Equal(t, ModeSafe, ParseMode("safe"))
	assert.Equal(t, ModeStrict, ParseMode("STRICT"))
	assert.Equal(t, ModeOff, ParseMode("off"))
}

func TestRenderMediaFields(t *testing.T) {
	got, err := Render("{MediaType}-{MediaBitrate}{MediaExtension}", Fields{
		MediaType:      models.MediaTypeVideo,
		MediaBitrate:   832000,
		MediaExtension: ".mp4",
	}, ModeSafe)
	require.NoError(t, err)
	assert.Equal(t, "video-832000.mp4", got)
}
