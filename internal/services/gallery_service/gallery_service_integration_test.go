package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"image_gallery/internal/lib/logger/handlers/slogdiscard"
	"image_gallery/internal/repository"
	"image_gallery/internal/storage"
	"image_gallery/internal/storage/filestorage"
	"image_gallery/internal/storage/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubThumbnails возвращает предсказуемый URL и запоминает запросы
type stubThumbnails struct {
	calls   []string
	deleted []string
}

func (s *stubThumbnails) DeleteThumbnails(_ context.Context, sourcePath string) error {
	s.deleted = append(s.deleted, sourcePath)
	return nil
}

func (s *stubThumbnails) DeleteFolderThumbnails(_ context.Context, folderPath string) error {
	s.deleted = append(s.deleted, folderPath+"/")
	return nil
}

func (s *stubThumbnails) GetThumbnail(_ context.Context, sourcePath string, width, height int, keepAspectRatio, cropToFit bool) (string, error) {
	s.calls = append(s.calls, sourcePath)
	return fmt.Sprintf("thumb/%s?w=%d&h=%d&a=%t&c=%t", sourcePath, width, height, keepAspectRatio, cropToFit), nil
}

type integrationEnv struct {
	service  *GalleryService
	settings *repository.GormSettingsRepo
	thumbs   *stubThumbnails
	mediaDir string
}

func setupIntegration(t *testing.T, opts Options) *integrationEnv {
	t.Helper()

	db, err := sqlite.New(filepath.Join(t.TempDir(), "gallery.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close(db) })

	settings := repository.NewGormSettingsRepo(db)
	require.NoError(t, settings.Migrate())

	mediaDir := t.TempDir()
	media, err := filestorage.NewLocalFileStorage(mediaDir, "http://test.local/media")
	require.NoError(t, err)

	thumbs := &stubThumbnails{}
	service := NewGalleryService(slogdiscard.NewDiscardLogger(), media, settings, thumbs, opts)
	require.NoError(t, service.Init(context.Background()))

	return &integrationEnv{
		service:  service,
		settings: settings,
		thumbs:   thumbs,
		mediaDir: mediaDir,
	}
}

func (e *integrationEnv) putFile(t *testing.T, gallery, name string) {
	t.Helper()

	dir := filepath.Join(e.mediaDir, "ImageGalleries", gallery)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0644))
}

func imageNames(t *testing.T, s *GalleryService, gallery string) []string {
	t.Helper()

	g, err := s.GetImageGallery(context.Background(), gallery)
	require.NoError(t, err)

	names := make([]string, 0, len(g.Images))
	for _, image := range g.Images {
		names = append(names, image.Name)
	}

	return names
}

func TestIntegration_VacationScenario(t *testing.T) {
	ctx := context.Background()
	env := setupIntegration(t, Options{})

	require.NoError(t, env.service.CreateImageGallery(ctx, "vacation"))
	env.putFile(t, "vacation", "hill.jpg")
	env.putFile(t, "vacation", "beach.jpg")

	gallery, err := env.service.GetImageGallery(ctx, "vacation")
	require.NoError(t, err)
	assert.Equal(t, "vacation", gallery.Name)
	assert.Equal(t, 100, gallery.ThumbnailWidth)
	assert.Equal(t, 100, gallery.ThumbnailHeight)
	assert.True(t, gallery.KeepAspectRatio)
	assert.False(t, gallery.CropToFit)
	require.Len(t, gallery.Images, 2)
	assert.Equal(t, "beach.jpg", gallery.Images[0].Name)
	assert.Equal(t, "hill.jpg", gallery.Images[1].Name)
	assert.Equal(t, "http://test.local/media/ImageGalleries/vacation/beach.jpg", gallery.Images[0].PublicURL)
	assert.Equal(t, []string{"ImageGalleries/vacation/beach.jpg", "ImageGalleries/vacation/hill.jpg"}, env.thumbs.calls)

	// Строка настроек не создается, пока свойства не сохранены
	_, err = env.settings.GetGallerySettings(ctx, "vacation")
	assert.ErrorIs(t, err, storage.ErrSettingsNotFound)

	require.NoError(t, env.service.UpdateImageGalleryProperties(ctx, "vacation", 100, 80, true, false))

	row, err := env.settings.GetGallerySettings(ctx, "vacation")
	require.NoError(t, err)
	assert.Equal(t, 100, row.ThumbnailWidth)
	assert.Equal(t, 80, row.ThumbnailHeight)
	assert.True(t, row.KeepAspectRatio)

	gallery, err = env.service.GetImageGallery(ctx, "vacation")
	require.NoError(t, err)
	assert.Equal(t, 80, gallery.ThumbnailHeight)
	assert.True(t, strings.HasSuffix(gallery.Images[0].ThumbnailURL, "w=100&h=80&a=true&c=false"))
}

func TestIntegration_PropertiesUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env := setupIntegration(t, Options{})

	require.NoError(t, env.service.CreateImageGallery(ctx, "alps"))

	props, err := env.service.GetImageGalleryProperties(ctx, "alps")
	require.NoError(t, err)
	assert.False(t, props.Persisted)

	require.NoError(t, env.service.UpdateImageGalleryProperties(ctx, "alps", 320, 240, false, true))
	first, err := env.settings.GetGallerySettings(ctx, "alps")
	require.NoError(t, err)

	require.NoError(t, env.service.UpdateImageGalleryProperties(ctx, "alps", 320, 240, false, true))
	second, err := env.settings.GetGallerySettings(ctx, "alps")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 320, second.ThumbnailWidth)
	assert.Equal(t, 240, second.ThumbnailHeight)
	assert.False(t, second.KeepAspectRatio)
	assert.True(t, second.CropToFit)

	props, err = env.service.GetImageGalleryProperties(ctx, "alps")
	require.NoError(t, err)
	assert.True(t, props.Persisted)
}

func TestIntegration_Reorder(t *testing.T) {
	ctx := context.Background()
	env := setupIntegration(t, Options{})

	require.NoError(t, env.service.CreateImageGallery(ctx, "g"))
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg"} {
		env.putFile(t, "g", name)
	}

	require.NoError(t, env.service.ReorderImages(ctx, "g", []string{"c.jpg", "b.jpg", "a.jpg"}))
	assert.Equal(t, []string{"c.jpg", "b.jpg", "a.jpg", "d.jpg"}, imageNames(t, env.service, "g"))

	// Повторная сортировка не зависит от предыдущей
	require.NoError(t, env.service.ReorderImages(ctx, "g", []string{"a.jpg", "b.jpg", "c.jpg"}))
	assert.Equal(t, []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg"}, imageNames(t, env.service, "g"))

	// Не упомянутые изображения сохраняют прежние позиции, при равенстве
	// позиций порядок определяется списком файлов
	require.NoError(t, env.service.ReorderImages(ctx, "g", []string{"d.jpg"}))
	assert.Equal(t, []string{"a.jpg", "d.jpg", "b.jpg", "c.jpg"}, imageNames(t, env.service, "g"))

	require.NoError(t, env.service.UpdateImageProperties(ctx, "g", "a.jpg", "Title A", "Caption A"))
	image, err := env.service.GetImage(ctx, "g", "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "Title A", image.Title)
	assert.Equal(t, 0, image.SortOrder)
}

func TestIntegration_DeleteImageThenGet(t *testing.T) {
	ctx := context.Background()
	env := setupIntegration(t, Options{})

	require.NoError(t, env.service.CreateImageGallery(ctx, "g"))
	env.putFile(t, "g", "a.jpg")
	env.putFile(t, "g", "b.jpg")
	require.NoError(t, env.service.UpdateImageProperties(ctx, "g", "a.jpg", "A", ""))

	require.NoError(t, env.service.DeleteImage(ctx, "g", "a.jpg"))

	_, err := env.service.GetImage(ctx, "g", "a.jpg")
	assert.ErrorIs(t, err, ErrImageNotFound)

	row, err := env.settings.GetGallerySettings(ctx, "g")
	require.NoError(t, err)
	assert.Nil(t, row.FindImageSettings("a.jpg"))

	err = env.service.DeleteImage(ctx, "g", "a.jpg")
	assert.ErrorIs(t, err, ErrImageNotFound)
}

func TestIntegration_AddImage(t *testing.T) {
	ctx := context.Background()
	env := setupIntegration(t, Options{})

	require.NoError(t, env.service.CreateImageGallery(ctx, "g"))

	require.NoError(t, env.service.AddImage(ctx, "g", newFileHeader(t, "photo.png", "png-bytes")))
	data, err := os.ReadFile(filepath.Join(env.mediaDir, "ImageGalleries", "g", "photo.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	err = env.service.AddImage(ctx, "g", newFileHeader(t, "virus.exe", "MZ"))
	assert.ErrorIs(t, err, ErrFileNotAllowed)
	assert.NoFileExists(t, filepath.Join(env.mediaDir, "ImageGalleries", "g", "virus.exe"))
}

func TestIntegration_ThumbnailsDroppedOnChange(t *testing.T) {
	ctx := context.Background()
	env := setupIntegration(t, Options{})

	require.NoError(t, env.service.CreateImageGallery(ctx, "g"))
	require.NoError(t, env.service.AddImage(ctx, "g", newFileHeader(t, "a.png", "v1")))
	require.NoError(t, env.service.AddImage(ctx, "g", newFileHeader(t, "a.png", "v2")))
	require.NoError(t, env.service.DeleteImage(ctx, "g", "a.png"))
	require.NoError(t, env.service.RenameImageGallery(ctx, "g", "h"))
	require.NoError(t, env.service.DeleteImageGallery(ctx, "h"))

	assert.Equal(t, []string{
		"ImageGalleries/g/a.png",
		"ImageGalleries/g/a.png",
		"ImageGalleries/g/a.png",
		"ImageGalleries/g/",
		"ImageGalleries/h/",
	}, env.thumbs.deleted)
}

func TestIntegration_GalleryLifecycle(t *testing.T) {
	ctx := context.Background()
	env := setupIntegration(t, Options{})

	require.NoError(t, env.service.CreateImageGallery(ctx, "old"))
	env.putFile(t, "old", "a.jpg")
	require.NoError(t, env.service.UpdateImageGalleryProperties(ctx, "old", 50, 60, true, true))
	require.NoError(t, env.service.UpdateImageProperties(ctx, "old", "a.jpg", "A", ""))

	err := env.service.CreateImageGallery(ctx, "old")
	assert.ErrorIs(t, err, ErrGalleryExists)

	require.NoError(t, env.service.RenameImageGallery(ctx, "old", "new"))

	gallery, err := env.service.GetImageGallery(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, 50, gallery.ThumbnailWidth)
	require.Len(t, gallery.Images, 1)
	assert.Equal(t, "A", gallery.Images[0].Title)

	_, err = env.service.GetImageGallery(ctx, "old")
	assert.ErrorIs(t, err, ErrGalleryNotFound)

	galleries, err := env.service.GetImageGalleries(ctx)
	require.NoError(t, err)
	require.Len(t, galleries, 1)
	assert.Equal(t, "new", galleries[0].Name)

	require.NoError(t, env.service.DeleteImageGallery(ctx, "new"))
	assert.NoDirExists(t, filepath.Join(env.mediaDir, "ImageGalleries", "new"))

	_, err = env.settings.GetGallerySettings(ctx, "new")
	assert.ErrorIs(t, err, storage.ErrSettingsNotFound)
}

func TestIntegration_RenameKeepPolicy(t *testing.T) {
	ctx := context.Background()
	env := setupIntegration(t, Options{RenamePolicy: RenamePolicyKeep})

	require.NoError(t, env.service.CreateImageGallery(ctx, "old"))
	require.NoError(t, env.service.UpdateImageGalleryProperties(ctx, "old", 50, 60, true, true))

	require.NoError(t, env.service.RenameImageGallery(ctx, "old", "new"))

	props, err := env.service.GetImageGalleryProperties(ctx, "new")
	require.NoError(t, err)
	assert.False(t, props.Persisted)
	assert.Equal(t, 100, props.ThumbnailWidth)

	_, err = env.settings.GetGallerySettings(ctx, "old")
	assert.NoError(t, err)
}

func TestIntegration_PruneImageSettings(t *testing.T) {
	ctx := context.Background()
	env := setupIntegration(t, Options{})

	require.NoError(t, env.service.CreateImageGallery(ctx, "g"))
	env.putFile(t, "g", "a.jpg")
	env.putFile(t, "g", "b.jpg")
	require.NoError(t, env.service.ReorderImages(ctx, "g", []string{"b.jpg", "a.jpg"}))

	// Файл удален в обход сервиса
	require.NoError(t, os.Remove(filepath.Join(env.mediaDir, "ImageGalleries", "g", "b.jpg")))

	removed, err := env.service.PruneImageSettings(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	row, err := env.settings.GetGallerySettings(ctx, "g")
	require.NoError(t, err)
	require.Len(t, row.ImageSettings, 1)
	assert.Equal(t, "a.jpg", row.ImageSettings[0].Name)
}
