package postgresql

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
)

type Storage struct {
	db *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS gallery_settings (
	id UUID PRIMARY KEY,
	gallery_name TEXT NOT NULL UNIQUE,
	thumbnail_width INT NOT NULL,
	thumbnail_height INT NOT NULL,
	keep_aspect_ratio BOOLEAN NOT NULL DEFAULT true,
	crop_to_fit BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS gallery_image_settings (
	id UUID PRIMARY KEY,
	gallery_settings_id UUID NOT NULL REFERENCES gallery_settings(id) ON DELETE CASCADE,
	name TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	caption TEXT NOT NULL DEFAULT '',
	position INT,
	UNIQUE (gallery_settings_id, name)
);
`

func New(ctx context.Context, storagePath string) (*Storage, error) {
	const op = "storage.postgresql.New"

	db, err := pgxpool.Connect(ctx, storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

// Migrate создает таблицы настроек галерей, если их еще нет
func (s *Storage) Migrate(ctx context.Context) error {
	const op = "storage.postgresql.Migrate"

	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) Pool() *pgxpool.Pool {
	return s.db
}

func (s *Storage) Stop() {
	s.db.Close()
}
