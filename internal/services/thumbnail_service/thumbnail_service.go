package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"math"
	"strings"
	"time"

	"image_gallery/internal/domain/models"
	"image_gallery/internal/lib/logger/sl"
	"image_gallery/internal/metrics"
	"image_gallery/internal/repository"
	"image_gallery/internal/storage"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	DefaultFolder  = "_thumbnails"
	DefaultQuality = 85
)

var ErrInvalidSize = errors.New("thumbnail width and height must be positive")

type Options struct {
	Folder   string        // Папка миниатюр в корне медиахранилища
	Quality  int           // Качество JPEG, 1..100
	CacheTTL time.Duration // Время жизни URL в кэше
}

// ThumbnailService создает миниатюры и хранит их в медиахранилище рядом с оригиналами
type ThumbnailService struct {
	log   *slog.Logger
	media storage.MediaStore
	cache repository.ThumbnailCache
	opts  Options
}

func NewThumbnailService(log *slog.Logger, media storage.MediaStore, cache repository.ThumbnailCache, opts Options) *ThumbnailService {
	if opts.Folder == "" {
		opts.Folder = DefaultFolder
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}

	return &ThumbnailService{
		log:   log,
		media: media,
		cache: cache,
		opts:  opts,
	}
}

// GetThumbnail возвращает публичный URL миниатюры, создавая ее при необходимости
func (s *ThumbnailService) GetThumbnail(ctx context.Context, sourcePath string, width, height int, keepAspectRatio, cropToFit bool) (string, error) {
	const op = "service.ThumbnailService.GetThumbnail"
	log := s.log.With(
		slog.String("op", op),
		slog.String("source", sourcePath),
		slog.Int("width", width),
		slog.Int("height", height),
	)

	if width <= 0 || height <= 0 {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidSize)
	}

	key := cacheKey(sourcePath, width, height, keepAspectRatio, cropToFit)

	url, err := s.cache.GetThumbnail(ctx, key)
	if err == nil {
		metrics.ThumbnailCacheHits.Inc()
		return url, nil
	}
	if !errors.Is(err, storage.ErrorNoSuchKey) {
		// Недоступный кэш не мешает отдать миниатюру
		log.Warn("thumbnail cache lookup failed", sl.Err(err))
	}
	metrics.ThumbnailCacheMisses.Inc()

	thumbDir, thumbName := s.location(sourcePath, width, height, keepAspectRatio, cropToFit)

	fresh, err := s.isFresh(ctx, sourcePath, thumbDir, thumbName)
	if err != nil {
		log.Warn("failed to check stored thumbnail", sl.Err(err))
	}

	if !fresh {
		if err := s.generate(ctx, sourcePath, thumbDir, thumbName, width, height, keepAspectRatio, cropToFit); err != nil {
			log.Error("failed to generate thumbnail", sl.Err(err))
			return "", fmt.Errorf("%s: %w", op, err)
		}

		metrics.ThumbnailsGenerated.Inc()
		log.Debug("thumbnail generated", slog.String("thumbnail", s.media.Combine(thumbDir, thumbName)))
	}

	url = s.media.GetMediaPublicUrl(thumbDir, thumbName)

	if err := s.cache.SaveThumbnail(ctx, key, url, s.opts.CacheTTL); err != nil {
		log.Warn("failed to cache thumbnail url", sl.Err(err))
	}

	return url, nil
}

func (s *ThumbnailService) generate(ctx context.Context, sourcePath, thumbDir, thumbName string, width, height int, keepAspectRatio, cropToFit bool) error {
	src, err := s.media.OpenMediaFile(ctx, sourcePath)
	if err != nil {
		metrics.ThumbnailErrors.WithLabelValues("open").Inc()
		return err
	}
	defer src.Close()

	img, _, err := image.Decode(src)
	if err != nil {
		metrics.ThumbnailErrors.WithLabelValues("decode").Inc()
		return fmt.Errorf("decode %s: %w", sourcePath, err)
	}

	thumb, err := Resize(img, width, height, keepAspectRatio, cropToFit)
	if err != nil {
		metrics.ThumbnailErrors.WithLabelValues("resize").Inc()
		return err
	}

	var buf bytes.Buffer
	if err := imgio.JPEGEncoder(s.opts.Quality)(&buf, thumb); err != nil {
		metrics.ThumbnailErrors.WithLabelValues("encode").Inc()
		return fmt.Errorf("encode: %w", err)
	}

	if _, err := s.media.UploadMediaFile(ctx, thumbDir, thumbName, &buf); err != nil {
		metrics.ThumbnailErrors.WithLabelValues("store").Inc()
		return err
	}

	return nil
}

// isFresh проверяет, что сохраненная миниатюра не старше оригинала
func (s *ThumbnailService) isFresh(ctx context.Context, sourcePath, thumbDir, thumbName string) (bool, error) {
	thumb, err := s.findFile(ctx, thumbDir, thumbName)
	if err != nil || thumb == nil {
		return false, err
	}

	sourceDir, sourceName := splitPath(sourcePath)
	source, err := s.findFile(ctx, sourceDir, sourceName)
	if err != nil || source == nil {
		return false, err
	}

	return !source.LastUpdated.After(thumb.LastUpdated), nil
}

func (s *ThumbnailService) findFile(ctx context.Context, folderPath, name string) (*models.File, error) {
	files, err := s.media.GetMediaFiles(ctx, folderPath)
	if err != nil {
		if errors.Is(err, storage.ErrFolderNotFound) {
			return nil, nil
		}

		return nil, err
	}

	for i := range files {
		if files[i].Name == name {
			return &files[i], nil
		}
	}

	return nil, nil
}

// location возвращает папку и имя файла миниатюры:
// <folder>/<w>x<h>[-a][-c]/<папка оригинала>/<имя>.jpg
func (s *ThumbnailService) location(sourcePath string, width, height int, keepAspectRatio, cropToFit bool) (string, string) {
	variant := fmt.Sprintf("%dx%d", width, height)
	if keepAspectRatio {
		variant += "-a"
	}
	if cropToFit {
		variant += "-c"
	}

	sourceDir, sourceName := splitPath(sourcePath)

	return s.variantDir(s.media.Combine(s.opts.Folder, variant), sourceDir), thumbnailName(sourceName)
}

func (s *ThumbnailService) variantDir(variantPath, sourceDir string) string {
	if sourceDir == "" {
		return variantPath
	}

	return s.media.Combine(variantPath, sourceDir)
}

// DeleteThumbnails удаляет миниатюры всех размеров для исходного файла и их записи в кэше
func (s *ThumbnailService) DeleteThumbnails(ctx context.Context, sourcePath string) error {
	const op = "service.ThumbnailService.DeleteThumbnails"

	if err := s.cache.DeleteThumbnails(ctx, sourcePath+":"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	variants, err := s.variants(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	sourceDir, sourceName := splitPath(sourcePath)
	for _, variant := range variants {
		err := s.media.DeleteFile(ctx, s.variantDir(variant.MediaPath, sourceDir), thumbnailName(sourceName))
		if err != nil && !errors.Is(err, storage.ErrFileNotFound) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return nil
}

// DeleteFolderThumbnails удаляет миниатюры всех файлов папки folderPath
func (s *ThumbnailService) DeleteFolderThumbnails(ctx context.Context, folderPath string) error {
	const op = "service.ThumbnailService.DeleteFolderThumbnails"

	folderPath = strings.Trim(folderPath, "/")
	if folderPath == "" {
		return fmt.Errorf("%s: %w", op, storage.ErrInvalidPath)
	}

	if err := s.cache.DeleteThumbnails(ctx, folderPath+"/"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	variants, err := s.variants(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, variant := range variants {
		err := s.media.DeleteFolder(ctx, s.variantDir(variant.MediaPath, folderPath))
		if err != nil && !errors.Is(err, storage.ErrFolderNotFound) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return nil
}

// variants возвращает папки размеров внутри папки миниатюр
func (s *ThumbnailService) variants(ctx context.Context) ([]models.Folder, error) {
	folders, err := s.media.GetMediaFolders(ctx, s.opts.Folder)
	if errors.Is(err, storage.ErrFolderNotFound) {
		return nil, nil
	}

	return folders, err
}

// Resize масштабирует изображение в рамку width x height.
// cropToFit: заполнить рамку и обрезать по центру.
// keepAspectRatio: вписать в рамку с сохранением пропорций, без увеличения.
// Иначе изображение растягивается ровно до width x height.
func Resize(img image.Image, width, height int, keepAspectRatio, cropToFit bool) (image.Image, error) {
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()

	if srcW == 0 || srcH == 0 {
		return nil, fmt.Errorf("empty image %dx%d", srcW, srcH)
	}
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidSize
	}

	switch {
	case cropToFit:
		scale := math.Max(float64(width)/float64(srcW), float64(height)/float64(srcH))
		rw := max(width, int(math.Ceil(float64(srcW)*scale)))
		rh := max(height, int(math.Ceil(float64(srcH)*scale)))

		resized := transform.Resize(img, rw, rh, transform.Lanczos)
		x0 := (rw - width) / 2
		y0 := (rh - height) / 2

		return transform.Crop(resized, image.Rect(x0, y0, x0+width, y0+height)), nil

	case keepAspectRatio:
		scale := math.Min(float64(width)/float64(srcW), float64(height)/float64(srcH))
		if scale > 1 {
			scale = 1
		}
		rw := max(1, int(math.Round(float64(srcW)*scale)))
		rh := max(1, int(math.Round(float64(srcH)*scale)))

		return transform.Resize(img, rw, rh, transform.Lanczos), nil

	default:
		return transform.Resize(img, width, height, transform.Lanczos), nil
	}
}

// thumbnailName a.png -> a.png.jpg, a.jpg -> a.jpg.jpg
func thumbnailName(sourceName string) string {
	return sourceName + ".jpg"
}

func cacheKey(sourcePath string, width, height int, keepAspectRatio, cropToFit bool) string {
	return fmt.Sprintf("%s:%dx%d:%t:%t", sourcePath, width, height, keepAspectRatio, cropToFit)
}

func splitPath(p string) (string, string) {
	p = strings.ReplaceAll(p, `\`, "/")

	i := strings.LastIndex(p, "/")
	if i < 0 {
		return "", p
	}

	return p[:i], p[i+1:]
}
