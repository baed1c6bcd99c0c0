package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"path"
	"sort"
	"strings"

	"image_gallery/internal/domain/models"
	"image_gallery/internal/lib/logger/sl"
	"image_gallery/internal/repository"
	"image_gallery/internal/storage"
)

// RenamePolicy определяет судьбу строки настроек при переименовании галереи
type RenamePolicy string

const (
	// RenamePolicyMigrate переносит настройки на новое имя
	RenamePolicyMigrate RenamePolicy = "migrate"
	// RenamePolicyKeep оставляет строку под старым именем, новая галерея получает значения по умолчанию
	RenamePolicyKeep RenamePolicy = "keep"
)

const DefaultRootFolder = "ImageGalleries"

var DefaultAllowedExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"}

// ThumbnailGenerator возвращает URL миниатюры для исходного файла
type ThumbnailGenerator interface {
	GetThumbnail(ctx context.Context, sourcePath string, width, height int, keepAspectRatio, cropToFit bool) (string, error)
	DeleteThumbnails(ctx context.Context, sourcePath string) error
	DeleteFolderThumbnails(ctx context.Context, folderPath string) error
}

type Options struct {
	RootFolder             string
	AllowedExtensions      []string
	DefaultThumbnailWidth  int
	DefaultThumbnailHeight int
	RenamePolicy           RenamePolicy
}

// GalleryService сводит список файлов медиахранилища с метаданными из репозитория настроек
type GalleryService struct {
	log        *slog.Logger
	media      storage.MediaStore
	settings   repository.SettingsRepository
	thumbnails ThumbnailGenerator
	opts       Options
	allowed    map[string]struct{}
}

func NewGalleryService(
	log *slog.Logger,
	media storage.MediaStore,
	settings repository.SettingsRepository,
	thumbnails ThumbnailGenerator,
	opts Options,
) *GalleryService {
	if opts.RootFolder == "" {
		opts.RootFolder = DefaultRootFolder
	}
	if opts.DefaultThumbnailWidth <= 0 {
		opts.DefaultThumbnailWidth = models.DefaultThumbnailWidth
	}
	if opts.DefaultThumbnailHeight <= 0 {
		opts.DefaultThumbnailHeight = models.DefaultThumbnailHeight
	}
	if len(opts.AllowedExtensions) == 0 {
		opts.AllowedExtensions = DefaultAllowedExtensions
	}
	if opts.RenamePolicy == "" {
		opts.RenamePolicy = RenamePolicyMigrate
	}

	allowed := make(map[string]struct{}, len(opts.AllowedExtensions))
	for _, ext := range opts.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}

	return &GalleryService{
		log:        log,
		media:      media,
		settings:   settings,
		thumbnails: thumbnails,
		opts:       opts,
		allowed:    allowed,
	}
}

// Init создает корневую папку галерей, если ее еще нет
func (s *GalleryService) Init(ctx context.Context) error {
	const op = "service.GalleryService.Init"
	log := s.log.With(slog.String("op", op), slog.String("root", s.opts.RootFolder))

	err := s.media.CreateFolder(ctx, "", s.opts.RootFolder)
	if err != nil && !errors.Is(err, storage.ErrFolderExists) {
		log.Error("failed to create root folder", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// GetImageGalleries возвращает галереи без изображений
func (s *GalleryService) GetImageGalleries(ctx context.Context) ([]models.Gallery, error) {
	const op = "service.GalleryService.GetImageGalleries"

	folders, err := s.media.GetMediaFolders(ctx, s.opts.RootFolder)
	if err != nil {
		if errors.Is(err, storage.ErrFolderNotFound) {
			return []models.Gallery{}, nil
		}

		s.log.Error("failed to list galleries", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	galleries := make([]models.Gallery, 0, len(folders))
	for _, folder := range folders {
		galleries = append(galleries, models.Gallery{
			Name:      folder.Name,
			MediaPath: folder.MediaPath,
		})
	}

	return galleries, nil
}

// GetImageGallery возвращает галерею со всеми изображениями и миниатюрами
func (s *GalleryService) GetImageGallery(ctx context.Context, name string) (*models.Gallery, error) {
	const op = "service.GalleryService.GetImageGallery"
	log := s.log.With(slog.String("op", op), slog.String("gallery", name))

	if !validGalleryName(name) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidGalleryName)
	}

	galleryPath := s.galleryPath(name)

	files, err := s.listFiles(ctx, galleryPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	settings, err := s.loadSettings(ctx, name)
	if err != nil {
		log.Error("failed to load gallery settings", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	props := s.properties(settings)

	images := s.mergeImages(files, settings)
	for i := range images {
		url, err := s.thumbnails.GetThumbnail(ctx, images[i].Path,
			props.ThumbnailWidth, props.ThumbnailHeight, props.KeepAspectRatio, props.CropToFit)
		if err != nil {
			log.Error("failed to get thumbnail", slog.String("image", images[i].Name), sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		images[i].ThumbnailURL = url
	}

	return &models.Gallery{
		Name:            name,
		MediaPath:       galleryPath,
		ThumbnailWidth:  props.ThumbnailWidth,
		ThumbnailHeight: props.ThumbnailHeight,
		KeepAspectRatio: props.KeepAspectRatio,
		CropToFit:       props.CropToFit,
		Images:          images,
	}, nil
}

// CreateImageGallery создает папку галереи; строка настроек не создается
func (s *GalleryService) CreateImageGallery(ctx context.Context, name string) error {
	const op = "service.GalleryService.CreateImageGallery"
	log := s.log.With(slog.String("op", op), slog.String("gallery", name))

	if !validGalleryName(name) {
		return fmt.Errorf("%s: %w", op, ErrInvalidGalleryName)
	}

	log.Info("creating gallery")

	if err := s.media.CreateFolder(ctx, s.opts.RootFolder, name); err != nil {
		if errors.Is(err, storage.ErrFolderExists) {
			return fmt.Errorf("%s: %w", op, ErrGalleryExists)
		}

		log.Error("failed to create gallery folder", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("gallery created")

	return nil
}

// DeleteImageGallery удаляет папку галереи, затем строку настроек
func (s *GalleryService) DeleteImageGallery(ctx context.Context, name string) error {
	const op = "service.GalleryService.DeleteImageGallery"
	log := s.log.With(slog.String("op", op), slog.String("gallery", name))

	if !validGalleryName(name) {
		return fmt.Errorf("%s: %w", op, ErrInvalidGalleryName)
	}

	log.Info("deleting gallery")

	if err := s.media.DeleteFolder(ctx, s.galleryPath(name)); err != nil {
		if errors.Is(err, storage.ErrFolderNotFound) {
			return fmt.Errorf("%s: %w", op, ErrGalleryNotFound)
		}

		log.Error("failed to delete gallery folder", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	settings, err := s.loadSettings(ctx, name)
	if err == nil && settings != nil {
		err = s.settings.DeleteGallerySettings(ctx, settings.ID)
	}
	if err != nil {
		log.Error("gallery folder deleted but settings were not", sl.Err(err))
		return &PartialFailureError{Op: op, Err: err}
	}

	if err := s.thumbnails.DeleteFolderThumbnails(ctx, s.galleryPath(name)); err != nil {
		log.Warn("failed to delete gallery thumbnails", sl.Err(err))
	}

	log.Info("gallery deleted")

	return nil
}

// RenameImageGallery переименовывает папку и, в зависимости от политики, переносит настройки
func (s *GalleryService) RenameImageGallery(ctx context.Context, oldName, newName string) error {
	const op = "service.GalleryService.RenameImageGallery"
	log := s.log.With(
		slog.String("op", op),
		slog.String("old_name", oldName),
		slog.String("new_name", newName),
		slog.String("policy", string(s.opts.RenamePolicy)),
	)

	if !validGalleryName(oldName) || !validGalleryName(newName) {
		return fmt.Errorf("%s: %w", op, ErrInvalidGalleryName)
	}

	if oldName == newName {
		return nil
	}

	log.Info("renaming gallery")

	if err := s.media.RenameFolder(ctx, s.galleryPath(oldName), newName); err != nil {
		switch {
		case errors.Is(err, storage.ErrFolderNotFound):
			return fmt.Errorf("%s: %w", op, ErrGalleryNotFound)
		case errors.Is(err, storage.ErrFolderExists):
			return fmt.Errorf("%s: %w", op, ErrGalleryExists)
		}

		log.Error("failed to rename gallery folder", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	// Миниатюры лежат по старому пути и будут созданы заново
	if err := s.thumbnails.DeleteFolderThumbnails(ctx, s.galleryPath(oldName)); err != nil {
		log.Warn("failed to delete thumbnails of old gallery path", sl.Err(err))
	}

	if s.opts.RenamePolicy == RenamePolicyKeep {
		return nil
	}

	if err := s.migrateSettings(ctx, oldName, newName); err != nil {
		log.Error("gallery folder renamed but settings were not migrated", sl.Err(err))
		return &PartialFailureError{Op: op, Err: err}
	}

	log.Info("gallery renamed")

	return nil
}

func (s *GalleryService) migrateSettings(ctx context.Context, oldName, newName string) error {
	settings, err := s.loadSettings(ctx, oldName)
	if err != nil || settings == nil {
		return err
	}

	// Строка под новым именем могла остаться от ранее удаленной галереи
	orphan, err := s.loadSettings(ctx, newName)
	if err != nil {
		return err
	}
	if orphan != nil {
		if err := s.settings.DeleteGallerySettings(ctx, orphan.ID); err != nil {
			return err
		}
	}

	settings.GalleryName = newName

	return s.settings.UpdateGallerySettings(ctx, settings)
}

// UpdateImageGalleryProperties создает или обновляет строку настроек галереи
func (s *GalleryService) UpdateImageGalleryProperties(ctx context.Context, name string, width, height int, keepAspectRatio, cropToFit bool) error {
	const op = "service.GalleryService.UpdateImageGalleryProperties"
	log := s.log.With(slog.String("op", op), slog.String("gallery", name))

	if !validGalleryName(name) {
		return fmt.Errorf("%s: %w", op, ErrInvalidGalleryName)
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%s: %w", op, ErrInvalidThumbnailSize)
	}

	if err := s.ensureGalleryExists(ctx, name); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	settings, err := s.loadSettings(ctx, name)
	if err != nil {
		log.Error("failed to load gallery settings", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if settings == nil {
		settings = models.NewGallerySettings(name, width, height, keepAspectRatio, cropToFit)
		if err := s.settings.CreateGallerySettings(ctx, settings); err != nil {
			log.Error("failed to create gallery settings", sl.Err(err))
			return fmt.Errorf("%s: %w", op, err)
		}

		return nil
	}

	settings.ThumbnailWidth = width
	settings.ThumbnailHeight = height
	settings.KeepAspectRatio = keepAspectRatio
	settings.CropToFit = cropToFit

	if err := s.settings.UpdateGallerySettings(ctx, settings); err != nil {
		log.Error("failed to update gallery settings", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// GetImageGalleryProperties возвращает настройки галереи или значения по умолчанию
func (s *GalleryService) GetImageGalleryProperties(ctx context.Context, name string) (*models.GalleryProperties, error) {
	const op = "service.GalleryService.GetImageGalleryProperties"

	if !validGalleryName(name) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidGalleryName)
	}

	if err := s.ensureGalleryExists(ctx, name); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	settings, err := s.loadSettings(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	props := s.properties(settings)

	return &props, nil
}

// AddImage загружает файл в папку галереи под исходным именем
func (s *GalleryService) AddImage(ctx context.Context, galleryName string, file *multipart.FileHeader) error {
	const op = "service.GalleryService.AddImage"
	log := s.log.With(slog.String("op", op), slog.String("gallery", galleryName))

	// Проверка типа выполняется до любых обращений к хранилищу
	if !s.IsFileAllowed(file) {
		fileName := ""
		if file != nil {
			fileName = file.Filename
		}
		log.Warn("rejected file", slog.String("file", fileName))
		return fmt.Errorf("%s: %w", op, ErrFileNotAllowed)
	}

	if !validGalleryName(galleryName) {
		return fmt.Errorf("%s: %w", op, ErrInvalidGalleryName)
	}

	if err := s.ensureGalleryExists(ctx, galleryName); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("%s: failed to open uploaded file: %w", op, err)
	}
	defer src.Close()

	size, err := s.media.UploadMediaFile(ctx, s.galleryPath(galleryName), file.Filename, src)
	if err != nil {
		log.Error("failed to upload image", slog.String("file", file.Filename), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	// Файл мог заменить существующее изображение с тем же именем
	if err := s.thumbnails.DeleteThumbnails(ctx, s.media.Combine(s.galleryPath(galleryName), file.Filename)); err != nil {
		log.Warn("failed to delete stale thumbnails", slog.String("file", file.Filename), sl.Err(err))
	}

	log.Info("image uploaded", slog.String("file", file.Filename), slog.Int64("size", size))

	return nil
}

// GetImage возвращает изображение галереи вместе с его метаданными
func (s *GalleryService) GetImage(ctx context.Context, galleryName, imageName string) (*models.Image, error) {
	const op = "service.GalleryService.GetImage"

	if !validGalleryName(galleryName) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidGalleryName)
	}

	files, err := s.listFiles(ctx, s.galleryPath(galleryName))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	settings, err := s.loadSettings(ctx, galleryName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, image := range s.mergeImages(files, settings) {
		if image.Name != imageName {
			continue
		}

		props := s.properties(settings)
		url, err := s.thumbnails.GetThumbnail(ctx, image.Path,
			props.ThumbnailWidth, props.ThumbnailHeight, props.KeepAspectRatio, props.CropToFit)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		image.ThumbnailURL = url

		return &image, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrImageNotFound)
}

// UpdateImageProperties создает или обновляет заголовок и подпись изображения
func (s *GalleryService) UpdateImageProperties(ctx context.Context, galleryName, imageName, title, caption string) error {
	const op = "service.GalleryService.UpdateImageProperties"
	log := s.log.With(
		slog.String("op", op),
		slog.String("gallery", galleryName),
		slog.String("image", imageName),
	)

	if !validGalleryName(galleryName) {
		return fmt.Errorf("%s: %w", op, ErrInvalidGalleryName)
	}

	files, err := s.listFiles(ctx, s.galleryPath(galleryName))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if !containsFile(files, imageName) {
		return fmt.Errorf("%s: %w", op, ErrImageNotFound)
	}

	settings, err := s.ensureSettings(ctx, galleryName)
	if err != nil {
		log.Error("failed to prepare gallery settings", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	row := settings.FindImageSettings(imageName)
	if row == nil {
		row = &models.ImageSettingsRecord{
			GallerySettingsID: settings.ID,
			Name:              imageName,
			Title:             title,
			Caption:           caption,
		}
		if err := s.settings.CreateImageSettings(ctx, row); err != nil {
			log.Error("failed to create image settings", sl.Err(err))
			return fmt.Errorf("%s: %w", op, err)
		}

		return nil
	}

	row.Title = title
	row.Caption = caption

	if err := s.settings.UpdateImageSettings(ctx, row); err != nil {
		log.Error("failed to update image settings", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteImage удаляет файл изображения, затем его строку настроек, если она есть
func (s *GalleryService) DeleteImage(ctx context.Context, galleryName, imageName string) error {
	const op = "service.GalleryService.DeleteImage"
	log := s.log.With(
		slog.String("op", op),
		slog.String("gallery", galleryName),
		slog.String("image", imageName),
	)

	if !validGalleryName(galleryName) {
		return fmt.Errorf("%s: %w", op, ErrInvalidGalleryName)
	}

	if err := s.media.DeleteFile(ctx, s.galleryPath(galleryName), imageName); err != nil {
		if errors.Is(err, storage.ErrFileNotFound) || errors.Is(err, storage.ErrInvalidPath) {
			return fmt.Errorf("%s: %w", op, ErrImageNotFound)
		}

		log.Error("failed to delete image file", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	settings, err := s.loadSettings(ctx, galleryName)
	if err == nil {
		if row := settings.FindImageSettings(imageName); row != nil {
			err = s.settings.DeleteImageSettings(ctx, row.ID)
		}
	}
	if err != nil {
		log.Error("image file deleted but settings were not", sl.Err(err))
		return &PartialFailureError{Op: op, Err: err}
	}

	if err := s.thumbnails.DeleteThumbnails(ctx, s.media.Combine(s.galleryPath(galleryName), imageName)); err != nil {
		log.Warn("failed to delete image thumbnails", sl.Err(err))
	}

	log.Info("image deleted")

	return nil
}

// ReorderImages назначает позиции 0..n-1 перечисленным изображениям.
// Не упомянутые изображения сохраняют прежние позиции.
func (s *GalleryService) ReorderImages(ctx context.Context, galleryName string, names []string) error {
	const op = "service.GalleryService.ReorderImages"
	log := s.log.With(slog.String("op", op), slog.String("gallery", galleryName))

	if !validGalleryName(galleryName) {
		return fmt.Errorf("%s: %w", op, ErrInvalidGalleryName)
	}

	files, err := s.listFiles(ctx, s.galleryPath(galleryName))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%s: %s: %w", op, name, ErrInvalidImageOrder)
		}
		seen[name] = struct{}{}

		if !containsFile(files, name) {
			return fmt.Errorf("%s: %s: %w", op, name, ErrImageNotFound)
		}
	}

	if len(names) == 0 {
		return nil
	}

	settings, err := s.ensureSettings(ctx, galleryName)
	if err != nil {
		log.Error("failed to prepare gallery settings", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	for i, name := range names {
		position := i

		row := settings.FindImageSettings(name)
		if row == nil {
			row = &models.ImageSettingsRecord{
				GallerySettingsID: settings.ID,
				Name:              name,
				Position:          &position,
			}
			err = s.settings.CreateImageSettings(ctx, row)
		} else {
			row.Position = &position
			err = s.settings.UpdateImageSettings(ctx, row)
		}
		if err != nil {
			log.Error("failed to save image position", slog.String("image", name), sl.Err(err))
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	log.Info("images reordered", slog.Int("count", len(names)))

	return nil
}

// PruneImageSettings удаляет строки изображений, файлов которых больше нет
func (s *GalleryService) PruneImageSettings(ctx context.Context, galleryName string) (int64, error) {
	const op = "service.GalleryService.PruneImageSettings"
	log := s.log.With(slog.String("op", op), slog.String("gallery", galleryName))

	if !validGalleryName(galleryName) {
		return 0, fmt.Errorf("%s: %w", op, ErrInvalidGalleryName)
	}

	files, err := s.listFiles(ctx, s.galleryPath(galleryName))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	settings, err := s.loadSettings(ctx, galleryName)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if settings == nil {
		return 0, nil
	}

	keep := make([]string, 0, len(files))
	for _, file := range files {
		keep = append(keep, file.Name)
	}

	removed, err := s.settings.DeleteImageSettingsExcept(ctx, settings.ID, keep)
	if err != nil {
		log.Error("failed to prune image settings", sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if removed > 0 {
		log.Info("pruned orphaned image settings", slog.Int64("removed", removed))
	}

	return removed, nil
}

// GetPublicUrl разбивает путь на папку и имя файла и возвращает публичный URL.
// Все, что стоит перед сегментом корневой папки галерей, отбрасывается.
func (s *GalleryService) GetPublicUrl(filePath string) string {
	rel := filePath
	if i := rootSegmentIndex(filePath, s.opts.RootFolder); i >= 0 {
		rel = strings.ReplaceAll(filePath[i:], `\`, "/")
	}

	sep := strings.LastIndexAny(rel, `/\`)
	if sep < 0 {
		return s.media.GetMediaPublicUrl("", rel)
	}

	return s.media.GetMediaPublicUrl(rel[:sep], rel[sep+1:])
}

// IsFileAllowed проверяет имя загружаемого файла по списку разрешенных расширений
func (s *GalleryService) IsFileAllowed(file *multipart.FileHeader) bool {
	if file == nil {
		return false
	}

	return s.IsFileNameAllowed(file.Filename)
}

func (s *GalleryService) IsFileNameAllowed(name string) bool {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return false
	}

	_, ok := s.allowed[strings.ToLower(path.Ext(name))]

	return ok
}

// AllowedExtensions возвращает список разрешенных расширений
func (s *GalleryService) AllowedExtensions() []string {
	exts := make([]string, 0, len(s.allowed))
	for ext := range s.allowed {
		exts = append(exts, ext)
	}
	sort.Strings(exts)

	return exts
}

func (s *GalleryService) galleryPath(name string) string {
	return s.media.Combine(s.opts.RootFolder, name)
}

func (s *GalleryService) listFiles(ctx context.Context, galleryPath string) ([]models.File, error) {
	files, err := s.media.GetMediaFiles(ctx, galleryPath)
	if err != nil {
		if errors.Is(err, storage.ErrFolderNotFound) {
			return nil, ErrGalleryNotFound
		}

		return nil, err
	}

	return files, nil
}

func (s *GalleryService) ensureGalleryExists(ctx context.Context, name string) error {
	folders, err := s.media.GetMediaFolders(ctx, s.opts.RootFolder)
	if err != nil {
		if errors.Is(err, storage.ErrFolderNotFound) {
			return ErrGalleryNotFound
		}

		return err
	}

	for _, folder := range folders {
		if folder.Name == name {
			return nil
		}
	}

	return ErrGalleryNotFound
}

// loadSettings возвращает nil без ошибки, если строки настроек нет
func (s *GalleryService) loadSettings(ctx context.Context, name string) (*models.GallerySettingsRecord, error) {
	settings, err := s.settings.GetGallerySettings(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrSettingsNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return settings, nil
}

// ensureSettings возвращает строку настроек, создавая ее со значениями по умолчанию
func (s *GalleryService) ensureSettings(ctx context.Context, name string) (*models.GallerySettingsRecord, error) {
	settings, err := s.loadSettings(ctx, name)
	if err != nil {
		return nil, err
	}
	if settings != nil {
		return settings, nil
	}

	props := s.properties(nil)
	settings = models.NewGallerySettings(name, props.ThumbnailWidth, props.ThumbnailHeight, props.KeepAspectRatio, props.CropToFit)
	if err := s.settings.CreateGallerySettings(ctx, settings); err != nil {
		return nil, err
	}

	return settings, nil
}

func (s *GalleryService) properties(settings *models.GallerySettingsRecord) models.GalleryProperties {
	if settings != nil {
		return settings.Properties()
	}

	return models.GalleryProperties{
		ThumbnailWidth:  s.opts.DefaultThumbnailWidth,
		ThumbnailHeight: s.opts.DefaultThumbnailHeight,
		KeepAspectRatio: true,
		CropToFit:       false,
	}
}

// mergeImages накладывает строки настроек на список файлов.
// Порядок: позиция из строки, иначе индекс в списке файлов; сортировка устойчивая.
func (s *GalleryService) mergeImages(files []models.File, settings *models.GallerySettingsRecord) []models.Image {
	images := make([]models.Image, 0, len(files))

	for i, file := range files {
		image := models.Image{
			Name:        file.Name,
			Path:        s.media.Combine(file.FolderName, file.Name),
			SortOrder:   i,
			Size:        file.Size,
			LastUpdated: file.LastUpdated,
			PublicURL:   s.media.GetMediaPublicUrl(file.FolderName, file.Name),
		}

		if row := settings.FindImageSettings(file.Name); row != nil {
			image.Title = row.Title
			image.Caption = row.Caption
			if row.Position != nil {
				image.SortOrder = *row.Position
			}
		}

		images = append(images, image)
	}

	sort.SliceStable(images, func(i, j int) bool {
		return images[i].SortOrder < images[j].SortOrder
	})

	return images
}

func containsFile(files []models.File, name string) bool {
	for _, file := range files {
		if file.Name == name {
			return true
		}
	}

	return false
}

func validGalleryName(name string) bool {
	if strings.TrimSpace(name) == "" || name == "." || name == ".." {
		return false
	}

	return !strings.ContainsAny(name, `/\`)
}

func rootSegmentIndex(p, root string) int {
	norm := strings.ReplaceAll(p, `\`, "/")

	if strings.HasPrefix(norm, root+"/") {
		return 0
	}

	if i := strings.Index(norm, "/"+root+"/"); i >= 0 {
		return i + 1
	}

	return -1
}
