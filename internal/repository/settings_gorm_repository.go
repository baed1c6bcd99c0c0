package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"image_gallery/internal/domain/models"
	"image_gallery/internal/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// gallerySettingsRow строка таблицы gallery_settings для gorm
type gallerySettingsRow struct {
	ID              string             `gorm:"primaryKey;size:36"`
	GalleryName     string             `gorm:"not null;uniqueIndex"`
	ThumbnailWidth  int                `gorm:"not null"`
	ThumbnailHeight int                `gorm:"not null"`
	KeepAspectRatio bool               `gorm:"not null"`
	CropToFit       bool               `gorm:"not null"`
	CreatedAt       time.Time          `gorm:"not null"`
	UpdatedAt       time.Time          `gorm:"not null"`
	ImageSettings   []imageSettingsRow `gorm:"foreignKey:GallerySettingsID;constraint:OnDelete:CASCADE"`
}

func (gallerySettingsRow) TableName() string {
	return gallerySettingsTable
}

// imageSettingsRow строка таблицы gallery_image_settings для gorm
type imageSettingsRow struct {
	ID                string `gorm:"primaryKey;size:36"`
	GallerySettingsID string `gorm:"not null;size:36;uniqueIndex:idx_gallery_image_name"`
	Name              string `gorm:"not null;uniqueIndex:idx_gallery_image_name"`
	Title             string
	Caption           string
	Position          *int
}

func (imageSettingsRow) TableName() string {
	return imageSettingsTable
}

// GormSettingsRepo реализация SettingsRepository на gorm (SQLite по умолчанию)
type GormSettingsRepo struct {
	db *gorm.DB
}

func NewGormSettingsRepo(db *gorm.DB) *GormSettingsRepo {
	return &GormSettingsRepo{db: db}
}

// Migrate создает таблицы настроек
func (r *GormSettingsRepo) Migrate() error {
	const op = "repository.GormSettingsRepo.Migrate"

	if err := r.db.AutoMigrate(&gallerySettingsRow{}, &imageSettingsRow{}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *GormSettingsRepo) GetGallerySettings(ctx context.Context, galleryName string) (*models.GallerySettingsRecord, error) {
	const op = "repository.GormSettingsRepo.GetGallerySettings"

	var row gallerySettingsRow
	err := r.db.WithContext(ctx).
		Preload("ImageSettings", func(db *gorm.DB) *gorm.DB {
			return db.Order("name")
		}).
		Where("gallery_name = ?", galleryName).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrSettingsNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	settings, err := row.toModel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return settings, nil
}

func (r *GormSettingsRepo) CreateGallerySettings(ctx context.Context, settings *models.GallerySettingsRecord) error {
	const op = "repository.GormSettingsRepo.CreateGallerySettings"

	if settings.ID == uuid.Nil {
		settings.ID = uuid.New()
	}

	now := time.Now().UTC()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now

	row := gallerySettingsRow{
		ID:              settings.ID.String(),
		GalleryName:     settings.GalleryName,
		ThumbnailWidth:  settings.ThumbnailWidth,
		ThumbnailHeight: settings.ThumbnailHeight,
		KeepAspectRatio: settings.KeepAspectRatio,
		CropToFit:       settings.CropToFit,
		CreatedAt:       settings.CreatedAt,
		UpdatedAt:       settings.UpdatedAt,
	}

	// Строки изображений создаются отдельно через CreateImageSettings
	if err := r.db.WithContext(ctx).Omit("ImageSettings").Create(&row).Error; err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *GormSettingsRepo) UpdateGallerySettings(ctx context.Context, settings *models.GallerySettingsRecord) error {
	const op = "repository.GormSettingsRepo.UpdateGallerySettings"

	settings.UpdatedAt = time.Now().UTC()

	res := r.db.WithContext(ctx).
		Model(&gallerySettingsRow{}).
		Where("id = ?", settings.ID.String()).
		Updates(map[string]interface{}{
			"gallery_name":      settings.GalleryName,
			"thumbnail_width":   settings.ThumbnailWidth,
			"thumbnail_height":  settings.ThumbnailHeight,
			"keep_aspect_ratio": settings.KeepAspectRatio,
			"crop_to_fit":       settings.CropToFit,
			"updated_at":        settings.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("%s: %w", op, res.Error)
	}

	if res.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrSettingsNotFound)
	}

	return nil
}

// DeleteGallerySettings удаляет строку галереи и ее строки изображений в одной транзакции
func (r *GormSettingsRepo) DeleteGallerySettings(ctx context.Context, id uuid.UUID) error {
	const op = "repository.GormSettingsRepo.DeleteGallerySettings"

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("gallery_settings_id = ?", id.String()).Delete(&imageSettingsRow{}).Error; err != nil {
			return err
		}

		return tx.Where("id = ?", id.String()).Delete(&gallerySettingsRow{}).Error
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *GormSettingsRepo) CreateImageSettings(ctx context.Context, image *models.ImageSettingsRecord) error {
	const op = "repository.GormSettingsRepo.CreateImageSettings"

	if image.ID == uuid.Nil {
		image.ID = uuid.New()
	}

	row := imageSettingsRow{
		ID:                image.ID.String(),
		GallerySettingsID: image.GallerySettingsID.String(),
		Name:              image.Name,
		Title:             image.Title,
		Caption:           image.Caption,
		Position:          image.Position,
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *GormSettingsRepo) UpdateImageSettings(ctx context.Context, image *models.ImageSettingsRecord) error {
	const op = "repository.GormSettingsRepo.UpdateImageSettings"

	res := r.db.WithContext(ctx).
		Model(&imageSettingsRow{}).
		Where("id = ?", image.ID.String()).
		Updates(map[string]interface{}{
			"name":     image.Name,
			"title":    image.Title,
			"caption":  image.Caption,
			"position": image.Position,
		})
	if res.Error != nil {
		return fmt.Errorf("%s: %w", op, res.Error)
	}

	if res.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrSettingsNotFound)
	}

	return nil
}

func (r *GormSettingsRepo) DeleteImageSettings(ctx context.Context, id uuid.UUID) error {
	const op = "repository.GormSettingsRepo.DeleteImageSettings"

	if err := r.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&imageSettingsRow{}).Error; err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *GormSettingsRepo) DeleteImageSettingsExcept(ctx context.Context, gallerySettingsID uuid.UUID, keep []string) (int64, error) {
	const op = "repository.GormSettingsRepo.DeleteImageSettingsExcept"

	q := r.db.WithContext(ctx).Where("gallery_settings_id = ?", gallerySettingsID.String())
	if len(keep) > 0 {
		q = q.Where("name NOT IN ?", keep)
	}

	res := q.Delete(&imageSettingsRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("%s: %w", op, res.Error)
	}

	return res.RowsAffected, nil
}

func (row gallerySettingsRow) toModel() (*models.GallerySettingsRecord, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, err
	}

	settings := &models.GallerySettingsRecord{
		ID:              id,
		GalleryName:     row.GalleryName,
		ThumbnailWidth:  row.ThumbnailWidth,
		ThumbnailHeight: row.ThumbnailHeight,
		KeepAspectRatio: row.KeepAspectRatio,
		CropToFit:       row.CropToFit,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}

	for _, img := range row.ImageSettings {
		imageID, err := uuid.Parse(img.ID)
		if err != nil {
			return nil, err
		}

		settings.ImageSettings = append(settings.ImageSettings, models.ImageSettingsRecord{
			ID:                imageID,
			GallerySettingsID: id,
			Name:              img.Name,
			Title:             img.Title,
			Caption:           img.Caption,
			Position:          img.Position,
		})
	}

	return settings, nil
}
