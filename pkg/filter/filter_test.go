package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediagrab/pkg/config"
	"mediagrab/pkg/models"
)

func TestFilterDisabledAcceptsAll(t *testing.T) {
	f, err := New(&config.FilterConfig{})
	require.NoError(t, err)

	allowed, reason := f.Allow(models.Post{Text: "anything", CreatedAt: time.Now()})
	assert.True(t, allowed)
	assert.Empty(t, reason)
}

func TestFilterBlockedWords(t *testing.T) {
	f, err := New(&config.FilterConfig{BlockedWords: []string{"blocked"}})
	require.NoError(t, err)

	allowed, reason := f.Allow(models.Post{Text: "I love cats #blocked"})
	assert.False(t, allowed)
	assert.Contains(t, reason, "blocked")

	allowed, _ = f.Allow(models.Post{Text: "I love cats"})
	assert.True(t, allowed)
}

func TestFilterBlockedWordsCaseInsensitive(t *testing.T) {
	f, err := New(&config.FilterConfig{BlockedWords: []string{"SpOiLeR"}})
	require.NoError(t, err)

	allowed, _ := f.Allow(models.Post{Text: "huge spoiler ahead"})
	assert.False(t, allowed)
}

func TestFilterDateRange(t *testing.T) {
	f, err := New(&config.FilterConfig{
		StartDate: "2024-01-01",
		EndDate:   "2024-12-31",
	})
	require.NoError(t, err)

	t.Run("inside range", func(t *testing.T) {
		allowed, _ := f.Allow(models.Post{CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)})
		assert.True(t, allowed)
	})

	t.Run("before start", func(t *testing.T) {
		allowed, reason := f.Allow(models.Post{CreatedAt: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)})
		assert.False(t, allowed)
		assert.Contains(t, reason, "before start bound")
	})

	t.Run("after end", func(t *testing.T) {
		allowed, reason := f.Allow(models.Post{CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})
		assert.False(t, allowed)
		assert.Contains(t, reason, "after end bound")
	})
}

func TestFilterOpenEndedBounds(t *testing.T) {
	f, err := New(&config.FilterConfig{StartDate: "2024-01-01"})
	require.NoError(t, err)

	allowed, _ := f.Allow(models.Post{CreatedAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)})
	assert.True(t, allowed)
}

func TestFilterInvalidDate(t *testing.T) {
	_, err := New(&config.FilterConfig{StartDate: "not-a-date"})
	assert.Error(t, err)
}
