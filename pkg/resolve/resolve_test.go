package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediagrab/pkg/models"
)

func intPtr(v int) *int { return &v }

func TestOriginalImageURL(t *testing.T) {
	item, err := OriginalImageURL("https://pbs.example.com/media/img123.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://pbs.example.com/media/img123?format=jpg&name=orig", item.URL)
	assert.Equal(t, ".jpg", item.Extension)
}

func TestOriginalImageURLNoExtension(t *testing.T) {
	_, err := OriginalImageURL("https://pbs.example.com/media/img123")
	assert.Error(t, err)

	// A dot earlier in the path does not count as an extension.
	_, err = OriginalImageURL("https://pbs.example.com/v2.1/img123")
	assert.Error(t, err)
}

func TestBestVariant(t *testing.T) {
	variants := []models.VideoVariant{
		{URL: "low.mp4", Bitrate: intPtr(320000)},
		{URL: "high.mp4", Bitrate: intPtr(1280000)},
		{URL: "mid.mp4", Bitrate: intPtr(640000)},
	}

	best, ok := BestVariant(variants)
	require.True(t, ok)
	assert.Equal(t, "high.mp4", best.URL)
}

func TestBestVariantExcludesUndefinedBitrates(t *testing.T) {
	variants := []models.VideoVariant{
		{URL: "manifest.m3u8"},
		{URL: "only.mp4", Bitrate: intPtr(832000)},
	}

	best, ok := BestVariant(variants)
	require.True(t, ok)
	assert.Equal(t, "only.mp4", best.URL)

	_, ok = BestVariant([]models.VideoVariant{{URL: "manifest.m3u8"}})
	assert.False(t, ok)
}

func TestBestVariantTiesKeepFirst(t *testing.T) {
	variants := []models.VideoVariant{
		{URL: "first.mp4", Bitrate: intPtr(640000)},
		{URL: "second.mp4", Bitrate: intPtr(640000)},
	}

	best, ok := BestVariant(variants)
	require.True(t, ok)
	assert.Equal(t, "first.mp4", best.URL)
}

func TestMediaImage(t *testing.T) {
	items, err := Media(models.Media{
		Type: models.MediaTypeImage,
		URL:  "https://pbs.example.com/media/img123.jpg",
	}, models.NewTypeSet())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "https://pbs.example.com/media/img123?format=jpg&name=orig", items[0].URL)
}

func TestMediaVideoWithCover(t *testing.T) {
	items, err := Media(models.Media{
		Type: models.MediaTypeVideo,
		URL:  "https://pbs.example.com/media/thumb.jpg",
		Variants: []models.VideoVariant{
			{URL: "https://video.example.com/a/clip.mp4?tag=12", Bitrate: intPtr(832000)},
		},
	}, models.NewTypeSet())
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, ".jpg", items[0].Extension)
	assert.Equal(t, "https://video.example.com/a/clip.mp4?tag=12", items[1].URL)
	assert.Equal(t, ".mp4", items[1].Extension)
	assert.Equal(t, 832000, items[1].Bitrate)
}

func TestMediaResolvedURLWinsOverVariants(t *testing.T) {
	items, err := Media(models.Media{
		Type:        models.MediaTypeVideo,
		ResolvedURL: "https://cdn.example.com/direct/clip.mp4",
		Variants: []models.VideoVariant{
			{URL: "https://video.example.com/ignored.mp4", Bitrate: intPtr(1000)},
		},
	}, models.NewTypeSet())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "https://cdn.example.com/direct/clip.mp4", items[0].URL)
	assert.Equal(t, ".mp4", items[0].Extension)
}

func TestMediaTypeNotSelected(t *testing.T) {
	items, err := Media(models.Media{
		Type: models.MediaTypeVideo,
		URL:  "https://pbs.example.com/media/thumb.jpg",
	}, models.NewTypeSet(models.MediaTypeImage))
	require.NoError(t, err)
	assert.Nil(t, items)
}

func TestMediaVideoWithoutDefinedBitrate(t *testing.T) {
	_, err := Media(models.Media{
		Type:     models.MediaTypeVideo,
		Variants: []models.VideoVariant{{URL: "manifest.m3u8"}},
	}, models.NewTypeSet())
	assert.Error(t, err)
}

func TestMediaDirectImage(t *testing.T) {
	items, err := Media(models.Media{
		Type:        models.MediaTypeImage,
		ResolvedURL: "https://cdn.example.com/gallery/photo.jpg",
	}, models.NewTypeSet())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "https://cdn.example.com/gallery/photo.jpg", items[0].URL)
	assert.Equal(t, ".jpg", items[0].Extension)
}
