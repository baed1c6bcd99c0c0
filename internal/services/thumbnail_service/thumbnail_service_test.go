package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"image_gallery/internal/lib/logger/handlers/slogdiscard"
	"image_gallery/internal/repository"
	"image_gallery/internal/storage"
	"image_gallery/internal/storage/filestorage"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	return img
}

func TestResize(t *testing.T) {
	tests := []struct {
		name  string
		srcW  int
		srcH  int
		keep  bool
		crop  bool
		wantW int
		wantH int
	}{
		{name: "fit wide image", srcW: 400, srcH: 200, keep: true, wantW: 100, wantH: 50},
		{name: "fit tall image", srcW: 200, srcH: 400, keep: true, wantW: 50, wantH: 100},
		{name: "fit does not upscale", srcW: 50, srcH: 20, keep: true, wantW: 50, wantH: 20},
		{name: "crop fills the box", srcW: 400, srcH: 200, crop: true, wantW: 100, wantH: 100},
		{name: "crop with aspect flag still fills", srcW: 300, srcH: 700, keep: true, crop: true, wantW: 100, wantH: 100},
		{name: "exact stretches", srcW: 400, srcH: 200, wantW: 100, wantH: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Resize(testImage(tt.srcW, tt.srcH), 100, 100, tt.keep, tt.crop)
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, out.Bounds().Dx())
			assert.Equal(t, tt.wantH, out.Bounds().Dy())
		})
	}

	t.Run("invalid target", func(t *testing.T) {
		_, err := Resize(testImage(10, 10), 0, 10, true, false)
		assert.ErrorIs(t, err, ErrInvalidSize)
	})

	t.Run("empty source", func(t *testing.T) {
		_, err := Resize(image.NewRGBA(image.Rect(0, 0, 0, 0)), 10, 10, true, false)
		assert.Error(t, err)
	})
}

type thumbEnv struct {
	service  *ThumbnailService
	media    *filestorage.LocalFileStorage
	mediaDir string
}

func setupThumbnails(t *testing.T, cache repository.ThumbnailCache) *thumbEnv {
	t.Helper()

	mediaDir := t.TempDir()
	media, err := filestorage.NewLocalFileStorage(mediaDir, "http://test.local/media")
	require.NoError(t, err)

	if cache == nil {
		cache = repository.NewMemoryThumbnailCache(time.Hour)
	}

	return &thumbEnv{
		service:  NewThumbnailService(slogdiscard.NewDiscardLogger(), media, cache, Options{Quality: 80}),
		media:    media,
		mediaDir: mediaDir,
	}
}

func (e *thumbEnv) putPNG(t *testing.T, rel string, w, h int) {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(w, h)))

	full := filepath.Join(e.mediaDir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, buf.Bytes(), 0644))
}

func TestThumbnailService_GetThumbnail(t *testing.T) {
	ctx := context.Background()
	env := setupThumbnails(t, nil)
	env.putPNG(t, "ImageGalleries/g/pic.png", 400, 200)

	thumbPath := filepath.Join(env.mediaDir, "_thumbnails", "100x80-a", "ImageGalleries", "g", "pic.png.jpg")

	url, err := env.service.GetThumbnail(ctx, "ImageGalleries/g/pic.png", 100, 80, true, false)
	require.NoError(t, err)
	assert.Equal(t, "http://test.local/media/_thumbnails/100x80-a/ImageGalleries/g/pic.png.jpg", url)

	img, err := imgio.Open(thumbPath)
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())

	t.Run("cache hit skips the store", func(t *testing.T) {
		require.NoError(t, os.Remove(thumbPath))

		again, err := env.service.GetThumbnail(ctx, "ImageGalleries/g/pic.png", 100, 80, true, false)
		require.NoError(t, err)
		assert.Equal(t, url, again)
		assert.NoFileExists(t, thumbPath)
	})

	t.Run("variants are stored separately", func(t *testing.T) {
		cropped, err := env.service.GetThumbnail(ctx, "ImageGalleries/g/pic.png", 60, 60, false, true)
		require.NoError(t, err)
		assert.Contains(t, cropped, "/_thumbnails/60x60-c/")

		img, err := imgio.Open(filepath.Join(env.mediaDir, "_thumbnails", "60x60-c", "ImageGalleries", "g", "pic.png.jpg"))
		require.NoError(t, err)
		assert.Equal(t, 60, img.Bounds().Dx())
		assert.Equal(t, 60, img.Bounds().Dy())
	})
}

func TestThumbnailService_ReusesFreshThumbnail(t *testing.T) {
	ctx := context.Background()
	env := setupThumbnails(t, nil)
	env.putPNG(t, "g/photo.jpg", 40, 40)

	_, err := env.service.GetThumbnail(ctx, "g/photo.jpg", 20, 20, true, false)
	require.NoError(t, err)

	thumbPath := filepath.Join(env.mediaDir, "_thumbnails", "20x20-a", "g", "photo.jpg.jpg")
	require.NoError(t, os.WriteFile(thumbPath, []byte("marker"), 0644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(thumbPath, future, future))

	// Новый сервис с пустым кэшем, миниатюра на диске новее оригинала
	fresh := NewThumbnailService(slogdiscard.NewDiscardLogger(), env.media, repository.NewMemoryThumbnailCache(time.Hour), Options{})
	url, err := fresh.GetThumbnail(ctx, "g/photo.jpg", 20, 20, true, false)
	require.NoError(t, err)
	assert.Equal(t, "http://test.local/media/_thumbnails/20x20-a/g/photo.jpg.jpg", url)

	data, err := os.ReadFile(thumbPath)
	require.NoError(t, err)
	assert.Equal(t, "marker", string(data))
}

func TestThumbnailService_Errors(t *testing.T) {
	ctx := context.Background()
	env := setupThumbnails(t, nil)

	t.Run("missing source", func(t *testing.T) {
		_, err := env.service.GetThumbnail(ctx, "g/none.jpg", 10, 10, true, false)
		assert.ErrorIs(t, err, storage.ErrFileNotFound)
	})

	t.Run("not an image", func(t *testing.T) {
		require.NoError(t, os.MkdirAll(filepath.Join(env.mediaDir, "g"), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(env.mediaDir, "g", "notes.jpg"), []byte("plain text"), 0644))

		_, err := env.service.GetThumbnail(ctx, "g/notes.jpg", 10, 10, true, false)
		assert.ErrorContains(t, err, "decode")
	})

	t.Run("invalid size", func(t *testing.T) {
		_, err := env.service.GetThumbnail(ctx, "g/notes.jpg", 0, 10, true, false)
		assert.ErrorIs(t, err, ErrInvalidSize)
	})
}

func solidPNG(t *testing.T, c color.RGBA) *bytes.Buffer {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for x := 0; x < 20; x++ {
		for y := 0; y < 20; y++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	return &buf
}

func TestThumbnailService_DeleteThumbnails(t *testing.T) {
	ctx := context.Background()
	env := setupThumbnails(t, nil)

	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}

	_, err := env.media.UploadMediaFile(ctx, "g", "a.png", solidPNG(t, red))
	require.NoError(t, err)

	_, err = env.service.GetThumbnail(ctx, "g/a.png", 10, 10, false, false)
	require.NoError(t, err)
	_, err = env.service.GetThumbnail(ctx, "g/a.png", 5, 5, true, false)
	require.NoError(t, err)

	// Изображение заменено под тем же именем
	_, err = env.media.UploadMediaFile(ctx, "g", "a.png", solidPNG(t, blue))
	require.NoError(t, err)
	require.NoError(t, env.service.DeleteThumbnails(ctx, "g/a.png"))

	assert.NoFileExists(t, filepath.Join(env.mediaDir, "_thumbnails", "10x10", "g", "a.png.jpg"))
	assert.NoFileExists(t, filepath.Join(env.mediaDir, "_thumbnails", "5x5-a", "g", "a.png.jpg"))

	_, err = env.service.GetThumbnail(ctx, "g/a.png", 10, 10, false, false)
	require.NoError(t, err)

	img, err := imgio.Open(filepath.Join(env.mediaDir, "_thumbnails", "10x10", "g", "a.png.jpg"))
	require.NoError(t, err)
	r, _, b, _ := img.At(5, 5).RGBA()
	assert.Less(t, r>>8, uint32(50))
	assert.Greater(t, b>>8, uint32(200))

	t.Run("no thumbnails yet", func(t *testing.T) {
		empty := setupThumbnails(t, nil)
		assert.NoError(t, empty.service.DeleteThumbnails(ctx, "g/a.png"))
	})
}

func TestThumbnailService_DeleteFolderThumbnails(t *testing.T) {
	ctx := context.Background()
	env := setupThumbnails(t, nil)
	env.putPNG(t, "ImageGalleries/g/a.png", 30, 30)
	env.putPNG(t, "ImageGalleries/h/a.png", 30, 30)

	for _, source := range []string{"ImageGalleries/g/a.png", "ImageGalleries/h/a.png"} {
		_, err := env.service.GetThumbnail(ctx, source, 10, 10, true, false)
		require.NoError(t, err)
	}

	require.NoError(t, env.service.DeleteFolderThumbnails(ctx, "ImageGalleries/g"))

	assert.NoDirExists(t, filepath.Join(env.mediaDir, "_thumbnails", "10x10-a", "ImageGalleries", "g"))
	assert.FileExists(t, filepath.Join(env.mediaDir, "_thumbnails", "10x10-a", "ImageGalleries", "h", "a.png.jpg"))

	t.Run("thumbnail root is rejected", func(t *testing.T) {
		assert.ErrorIs(t, env.service.DeleteFolderThumbnails(ctx, "/"), storage.ErrInvalidPath)
	})
}

func TestThumbnailService_DistinctNames(t *testing.T) {
	ctx := context.Background()
	env := setupThumbnails(t, nil)
	env.putPNG(t, "g/a.png", 20, 20)
	env.putPNG(t, "g/a.png.jpg", 30, 30)

	fromPNG, err := env.service.GetThumbnail(ctx, "g/a.png", 10, 10, false, false)
	require.NoError(t, err)
	fromJPG, err := env.service.GetThumbnail(ctx, "g/a.png.jpg", 10, 10, false, false)
	require.NoError(t, err)

	assert.Equal(t, "http://test.local/media/_thumbnails/10x10/g/a.png.jpg", fromPNG)
	assert.Equal(t, "http://test.local/media/_thumbnails/10x10/g/a.png.jpg.jpg", fromJPG)
}
