package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultPath = "gallery.db"

// New открывает базу SQLite; пустой путь заменяется на gallery.db
func New(databasePath string) (*gorm.DB, error) {
	const op = "storage.sqlite.New"

	path := strings.TrimSpace(databasePath)
	if path == "" {
		path = defaultPath
	}

	if err := ensureParentDir(path); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return db, nil
}

// Close закрывает соединение с базой
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}

	return os.MkdirAll(dir, 0755)
}
