package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultThumbnailWidth  = 100
	DefaultThumbnailHeight = 100
)

// Gallery представляет галерею изображений, привязанную к папке в медиахранилище
type Gallery struct {
	Name            string  `json:"name"`                       // Имя галереи, совпадает с именем папки
	MediaPath       string  `json:"media_path"`                 // Путь к папке в медиахранилище
	ThumbnailWidth  int     `json:"thumbnail_width,omitempty"`  // Ширина миниатюр
	ThumbnailHeight int     `json:"thumbnail_height,omitempty"` // Высота миниатюр
	KeepAspectRatio bool    `json:"keep_aspect_ratio"`          // Сохранять пропорции
	CropToFit       bool    `json:"crop_to_fit"`                // Обрезать под размер
	Images          []Image `json:"images,omitempty"`           // Изображения в порядке сортировки
}

// Image представляет файл галереи вместе с его метаданными
type Image struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Title        string    `json:"title,omitempty"`
	Caption      string    `json:"caption,omitempty"`
	SortOrder    int       `json:"sort_order"`
	Size         int64     `json:"size,omitempty"`
	LastUpdated  time.Time `json:"last_updated,omitempty"`
	PublicURL    string    `json:"public_url,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
}

// GalleryProperties настройки отображения галереи
type GalleryProperties struct {
	ThumbnailWidth  int  `json:"thumbnail_width"`
	ThumbnailHeight int  `json:"thumbnail_height"`
	KeepAspectRatio bool `json:"keep_aspect_ratio"`
	CropToFit       bool `json:"crop_to_fit"`
	Persisted       bool `json:"persisted"` // false, если строки настроек еще нет и применены значения по умолчанию
}

// GallerySettingsRecord строка настроек галереи, ключ - имя галереи
type GallerySettingsRecord struct {
	ID              uuid.UUID             `json:"id" db:"id"`
	GalleryName     string                `json:"gallery_name" db:"gallery_name"`
	ThumbnailWidth  int                   `json:"thumbnail_width" db:"thumbnail_width"`
	ThumbnailHeight int                   `json:"thumbnail_height" db:"thumbnail_height"`
	KeepAspectRatio bool                  `json:"keep_aspect_ratio" db:"keep_aspect_ratio"`
	CropToFit       bool                  `json:"crop_to_fit" db:"crop_to_fit"`
	CreatedAt       time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at" db:"updated_at"`
	ImageSettings   []ImageSettingsRecord `json:"image_settings,omitempty"`
}

// ImageSettingsRecord строка метаданных изображения внутри галереи
type ImageSettingsRecord struct {
	ID                uuid.UUID `json:"id" db:"id"`
	GallerySettingsID uuid.UUID `json:"gallery_settings_id" db:"gallery_settings_id"`
	Name              string    `json:"name" db:"name"`
	Title             string    `json:"title" db:"title"`
	Caption           string    `json:"caption" db:"caption"`
	Position          *int      `json:"position,omitempty" db:"position"`
}

// NewGallerySettings создает строку настроек с новым ID
func NewGallerySettings(galleryName string, width, height int, keepAspectRatio, cropToFit bool) *GallerySettingsRecord {
	now := time.Now().UTC()

	return &GallerySettingsRecord{
		ID:              uuid.New(),
		GalleryName:     galleryName,
		ThumbnailWidth:  width,
		ThumbnailHeight: height,
		KeepAspectRatio: keepAspectRatio,
		CropToFit:       cropToFit,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// FindImageSettings ищет строку изображения по имени файла
func (r *GallerySettingsRecord) FindImageSettings(name string) *ImageSettingsRecord {
	if r == nil {
		return nil
	}

	for i := range r.ImageSettings {
		if r.ImageSettings[i].Name == name {
			return &r.ImageSettings[i]
		}
	}

	return nil
}

// Properties возвращает настройки отображения из строки
func (r *GallerySettingsRecord) Properties() GalleryProperties {
	return GalleryProperties{
		ThumbnailWidth:  r.ThumbnailWidth,
		ThumbnailHeight: r.ThumbnailHeight,
		KeepAspectRatio: r.KeepAspectRatio,
		CropToFit:       r.CropToFit,
		Persisted:       true,
	}
}
