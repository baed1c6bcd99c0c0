package repository

import (
	"context"
	"time"

	"image_gallery/internal/domain/models"

	"github.com/google/uuid"
)

// SettingsRepository хранилище настроек галерей и метаданных изображений.
// Строка галереи ищется по имени, строки изображений принадлежат галерее.
type SettingsRepository interface {
	// GetGallerySettings возвращает строку галереи вместе со строками изображений.
	// Если строки нет, возвращает storage.ErrSettingsNotFound.
	GetGallerySettings(ctx context.Context, galleryName string) (*models.GallerySettingsRecord, error)
	CreateGallerySettings(ctx context.Context, settings *models.GallerySettingsRecord) error
	UpdateGallerySettings(ctx context.Context, settings *models.GallerySettingsRecord) error
	DeleteGallerySettings(ctx context.Context, id uuid.UUID) error

	CreateImageSettings(ctx context.Context, image *models.ImageSettingsRecord) error
	UpdateImageSettings(ctx context.Context, image *models.ImageSettingsRecord) error
	DeleteImageSettings(ctx context.Context, id uuid.UUID) error
	// DeleteImageSettingsExcept удаляет строки изображений галереи, чьих имен нет в keep
	DeleteImageSettingsExcept(ctx context.Context, gallerySettingsID uuid.UUID, keep []string) (int64, error)
}

// ThumbnailCache кэш URL сгенерированных миниатюр
type ThumbnailCache interface {
	// GetThumbnail возвращает storage.ErrorNoSuchKey при промахе
	GetThumbnail(ctx context.Context, key string) (string, error)
	SaveThumbnail(ctx context.Context, key, url string, ttl time.Duration) error
	// DeleteThumbnails удаляет все записи, ключ которых начинается с prefix
	DeleteThumbnails(ctx context.Context, prefix string) error
}
