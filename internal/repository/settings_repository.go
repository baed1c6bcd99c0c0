package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"image_gallery/internal/domain/models"
	"image_gallery/internal/storage"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/lib/pq"
)

const (
	gallerySettingsTable = "gallery_settings"
	imageSettingsTable   = "gallery_image_settings"
)

// SettingsRepo реализация SettingsRepository на PostgreSQL
type SettingsRepo struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

func NewSettingsRepo(db *pgxpool.Pool) *SettingsRepo {
	return &SettingsRepo{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetGallerySettings возвращает настройки галереи по имени
func (r *SettingsRepo) GetGallerySettings(ctx context.Context, galleryName string) (*models.GallerySettingsRecord, error) {
	const op = "repository.SettingsRepo.GetGallerySettings"

	query, args, err := r.sb.Select(
		"id",
		"gallery_name",
		"thumbnail_width",
		"thumbnail_height",
		"keep_aspect_ratio",
		"crop_to_fit",
		"created_at",
		"updated_at",
	).
		From(gallerySettingsTable).
		Where(squirrel.Eq{"gallery_name": galleryName}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var settings models.GallerySettingsRecord
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&settings.ID,
		&settings.GalleryName,
		&settings.ThumbnailWidth,
		&settings.ThumbnailHeight,
		&settings.KeepAspectRatio,
		&settings.CropToFit,
		&settings.CreatedAt,
		&settings.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrSettingsNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	images, err := r.imageSettings(ctx, settings.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	settings.ImageSettings = images

	return &settings, nil
}

// CreateGallerySettings создает строку галереи; ID генерируется, если не задан
func (r *SettingsRepo) CreateGallerySettings(ctx context.Context, settings *models.GallerySettingsRecord) error {
	const op = "repository.SettingsRepo.CreateGallerySettings"

	if settings.ID == uuid.Nil {
		settings.ID = uuid.New()
	}

	now := time.Now().UTC()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = now
	}
	settings.UpdatedAt = now

	query, args, err := r.sb.Insert(gallerySettingsTable).
		Columns(
			"id",
			"gallery_name",
			"thumbnail_width",
			"thumbnail_height",
			"keep_aspect_ratio",
			"crop_to_fit",
			"created_at",
			"updated_at",
		).
		Values(
			settings.ID,
			settings.GalleryName,
			settings.ThumbnailWidth,
			settings.ThumbnailHeight,
			settings.KeepAspectRatio,
			settings.CropToFit,
			settings.CreatedAt,
			settings.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// UpdateGallerySettings обновляет имя и параметры миниатюр
func (r *SettingsRepo) UpdateGallerySettings(ctx context.Context, settings *models.GallerySettingsRecord) error {
	const op = "repository.SettingsRepo.UpdateGallerySettings"

	settings.UpdatedAt = time.Now().UTC()

	query, args, err := r.sb.Update(gallerySettingsTable).
		Set("gallery_name", settings.GalleryName).
		Set("thumbnail_width", settings.ThumbnailWidth).
		Set("thumbnail_height", settings.ThumbnailHeight).
		Set("keep_aspect_ratio", settings.KeepAspectRatio).
		Set("crop_to_fit", settings.CropToFit).
		Set("updated_at", settings.UpdatedAt).
		Where(squirrel.Eq{"id": settings.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrSettingsNotFound)
	}

	return nil
}

// DeleteGallerySettings удаляет строку галереи, строки изображений удаляются каскадно
func (r *SettingsRepo) DeleteGallerySettings(ctx context.Context, id uuid.UUID) error {
	const op = "repository.SettingsRepo.DeleteGallerySettings"

	query, args, err := r.sb.Delete(gallerySettingsTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *SettingsRepo) CreateImageSettings(ctx context.Context, image *models.ImageSettingsRecord) error {
	const op = "repository.SettingsRepo.CreateImageSettings"

	if image.ID == uuid.Nil {
		image.ID = uuid.New()
	}

	query, args, err := r.sb.Insert(imageSettingsTable).
		Columns("id", "gallery_settings_id", "name", "title", "caption", "position").
		Values(image.ID, image.GallerySettingsID, image.Name, image.Title, image.Caption, image.Position).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *SettingsRepo) UpdateImageSettings(ctx context.Context, image *models.ImageSettingsRecord) error {
	const op = "repository.SettingsRepo.UpdateImageSettings"

	query, args, err := r.sb.Update(imageSettingsTable).
		Set("name", image.Name).
		Set("title", image.Title).
		Set("caption", image.Caption).
		Set("position", image.Position).
		Where(squirrel.Eq{"id": image.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrSettingsNotFound)
	}

	return nil
}

func (r *SettingsRepo) DeleteImageSettings(ctx context.Context, id uuid.UUID) error {
	const op = "repository.SettingsRepo.DeleteImageSettings"

	query, args, err := r.sb.Delete(imageSettingsTable).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteImageSettingsExcept удаляет строки изображений, имена которых не входят в keep
func (r *SettingsRepo) DeleteImageSettingsExcept(ctx context.Context, gallerySettingsID uuid.UUID, keep []string) (int64, error) {
	const op = "repository.SettingsRepo.DeleteImageSettingsExcept"

	if keep == nil {
		keep = []string{}
	}

	query, args, err := r.sb.Delete(imageSettingsTable).
		Where(squirrel.Eq{"gallery_settings_id": gallerySettingsID}).
		Where(squirrel.Expr("NOT (name = ANY(?))", pq.Array(keep))).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

func (r *SettingsRepo) imageSettings(ctx context.Context, gallerySettingsID uuid.UUID) ([]models.ImageSettingsRecord, error) {
	query, args, err := r.sb.Select("id", "gallery_settings_id", "name", "title", "caption", "position").
		From(imageSettingsTable).
		Where(squirrel.Eq{"gallery_settings_id": gallerySettingsID}).
		OrderBy("name").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []models.ImageSettingsRecord
	for rows.Next() {
		var image models.ImageSettingsRecord
		if err := rows.Scan(
			&image.ID,
			&image.GallerySettingsID,
			&image.Name,
			&image.Title,
			&image.Caption,
			&image.Position,
		); err != nil {
			return nil, err
		}

		images = append(images, image)
	}

	return images, rows.Err()
}
