package storage

import (
	"context"
	"errors"
	"io"

	"image_gallery/internal/domain/models"
)

var (
	ErrSettingsNotFound = errors.New("settings not found")
	ErrorNoSuchKey      = errors.New("no such key")
)

var (
	ErrFolderExists    = errors.New("folder already exists")
	ErrFolderNotFound  = errors.New("folder not found")
	ErrFileNotFound    = errors.New("file not found")
	ErrInvalidPath     = errors.New("invalid media path")
	ErrInvalidFileType = errors.New("invalid file type")
)

// MediaStore интерфейс для работы с папками и файлами медиахранилища.
// Пути логические, разделитель "/", корень хранилища - пустая строка.
type MediaStore interface {
	CreateFolder(ctx context.Context, parentPath, name string) error
	DeleteFolder(ctx context.Context, folderPath string) error
	RenameFolder(ctx context.Context, folderPath, newName string) error
	GetMediaFolders(ctx context.Context, folderPath string) ([]models.Folder, error)
	GetMediaFiles(ctx context.Context, folderPath string) ([]models.File, error)
	UploadMediaFile(ctx context.Context, folderPath, fileName string, content io.Reader) (int64, error)
	OpenMediaFile(ctx context.Context, filePath string) (io.ReadCloser, error)
	DeleteFile(ctx context.Context, folderPath, fileName string) error
	GetMediaPublicUrl(folderPath, fileName string) string
	Combine(pathA, pathB string) string
}
