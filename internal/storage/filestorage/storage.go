package filestorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"image_gallery/internal/domain/models"
	"image_gallery/internal/storage"

	"github.com/karrick/godirwalk"
)

// LocalFileStorage реализация медиахранилища на локальной файловой системе
// tempPrefix незавершенные загрузки, не попадают в листинг
const tempPrefix = ".upload-"

type LocalFileStorage struct {
	baseDir string // Базовый каталог для хранения (например: "./media")
	baseURL string // Базовый URL для доступа к файлам (например: "http://localhost:8080/media")
}

func NewLocalFileStorage(baseDir, baseURL string) (*LocalFileStorage, error) {
	// Создаем директорию, если она не существует
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	return &LocalFileStorage{
		baseDir: baseDir,
		baseURL: baseURL,
	}, nil
}

// CreateFolder создает папку name внутри parentPath
func (s *LocalFileStorage) CreateFolder(ctx context.Context, parentPath, name string) error {
	const op = "storage.filestorage.CreateFolder"

	if err := ctx.Err(); err != nil {
		return err
	}

	if !validName(name) {
		return fmt.Errorf("%s: %w", op, storage.ErrInvalidPath)
	}

	parentDir, err := s.resolve(parentPath)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if !isDir(parentDir) {
		return fmt.Errorf("%s: %w", op, storage.ErrFolderNotFound)
	}

	if err := os.Mkdir(filepath.Join(parentDir, name), 0755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s: %w", op, storage.ErrFolderExists)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteFolder удаляет папку вместе с содержимым
func (s *LocalFileStorage) DeleteFolder(ctx context.Context, folderPath string) error {
	const op = "storage.filestorage.DeleteFolder"

	if err := ctx.Err(); err != nil {
		return err
	}

	dir, err := s.resolve(folderPath)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	// Корень хранилища удалять нельзя
	if filepath.Clean(dir) == filepath.Clean(s.baseDir) {
		return fmt.Errorf("%s: %w", op, storage.ErrInvalidPath)
	}

	if !isDir(dir) {
		return fmt.Errorf("%s: %w", op, storage.ErrFolderNotFound)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RenameFolder переименовывает папку, оставляя ее в том же родителе
func (s *LocalFileStorage) RenameFolder(ctx context.Context, folderPath, newName string) error {
	const op = "storage.filestorage.RenameFolder"

	if err := ctx.Err(); err != nil {
		return err
	}

	if !validName(newName) {
		return fmt.Errorf("%s: %w", op, storage.ErrInvalidPath)
	}

	src, err := s.resolve(folderPath)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if filepath.Clean(src) == filepath.Clean(s.baseDir) || !isDir(src) {
		return fmt.Errorf("%s: %w", op, storage.ErrFolderNotFound)
	}

	dst := filepath.Join(filepath.Dir(src), newName)
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("%s: %w", op, storage.ErrFolderExists)
	}

	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// GetMediaFolders возвращает вложенные папки в алфавитном порядке
func (s *LocalFileStorage) GetMediaFolders(ctx context.Context, folderPath string) ([]models.Folder, error) {
	const op = "storage.filestorage.GetMediaFolders"

	dirents, err := s.readDir(ctx, folderPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	folders := make([]models.Folder, 0, len(dirents))
	for _, de := range dirents {
		if !de.IsDir() {
			continue
		}

		folders = append(folders, models.Folder{
			Name:      de.Name(),
			MediaPath: s.Combine(folderPath, de.Name()),
		})
	}

	return folders, nil
}

// GetMediaFiles возвращает файлы папки в алфавитном порядке
func (s *LocalFileStorage) GetMediaFiles(ctx context.Context, folderPath string) ([]models.File, error) {
	const op = "storage.filestorage.GetMediaFiles"

	dirents, err := s.readDir(ctx, folderPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	dir, _ := s.resolve(folderPath)

	files := make([]models.File, 0, len(dirents))
	for _, de := range dirents {
		if !de.IsRegular() || strings.HasPrefix(de.Name(), tempPrefix) {
			continue
		}

		info, err := os.Stat(filepath.Join(dir, de.Name()))
		if err != nil {
			// Файл мог быть удален между чтением каталога и stat
			continue
		}

		files = append(files, models.File{
			Name:        de.Name(),
			FolderName:  folderPath,
			Size:        info.Size(),
			LastUpdated: info.ModTime().UTC(),
		})
	}

	return files, nil
}

// UploadMediaFile сохраняет содержимое в файл fileName внутри folderPath
func (s *LocalFileStorage) UploadMediaFile(ctx context.Context, folderPath, fileName string, content io.Reader) (int64, error) {
	const op = "storage.filestorage.UploadMediaFile"

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if !validName(fileName) {
		return 0, fmt.Errorf("%s: %w", op, storage.ErrInvalidPath)
	}

	dir, err := s.resolve(folderPath)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	filePath := filepath.Join(dir, fileName)

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
		if err := os.MkdirAll(dir, 0755); err != nil {
			return 0, fmt.Errorf("%s: failed to create directories: %w", op, err)
		}
	}

	// Существующий файл заменяется только после успешного копирования
	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("%s: failed to create temp file: %w", op, err)
	}
	tmpPath := tmp.Name()

	done := make(chan struct{})
	var size int64
	var copyErr error

	go func() {
		defer close(done)
		size, copyErr = io.Copy(tmp, content)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// content нельзя отдавать вызывающему, пока идет копирование
		<-done
		copyErr = ctx.Err()
	}

	if err := tmp.Close(); err != nil && copyErr == nil {
		copyErr = err
	}

	if copyErr != nil {
		_ = os.Remove(tmpPath)
		if errors.Is(copyErr, context.Canceled) || errors.Is(copyErr, context.DeadlineExceeded) {
			return 0, copyErr
		}

		return 0, fmt.Errorf("%s: failed to copy file: %w", op, copyErr)
	}

	if err := os.Chmod(tmpPath, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := os.Rename(tmpPath, filePath); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("%s: failed to replace file: %w", op, err)
	}

	return size, nil
}

// OpenMediaFile открывает файл на чтение
func (s *LocalFileStorage) OpenMediaFile(ctx context.Context, filePath string) (io.ReadCloser, error) {
	const op = "storage.filestorage.OpenMediaFile"

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullPath, err := s.resolve(filePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrFileNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return f, nil
}

// DeleteFile удаляет файл из хранилища
func (s *LocalFileStorage) DeleteFile(ctx context.Context, folderPath, fileName string) error {
	const op = "storage.filestorage.DeleteFile"

	if err := ctx.Err(); err != nil {
		return err
	}

	if !validName(fileName) {
		return fmt.Errorf("%s: %w", op, storage.ErrInvalidPath)
	}

	fullPath, err := s.resolve(s.Combine(folderPath, fileName))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%s: %w", op, storage.ErrFileNotFound)
	}

	if err := os.Remove(fullPath); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// GetMediaPublicUrl возвращает публичный URL файла
func (s *LocalFileStorage) GetMediaPublicUrl(folderPath, fileName string) string {
	return strings.TrimRight(s.baseURL, "/") + "/" + escapePath(s.Combine(folderPath, fileName))
}

// Combine объединяет два логических пути
func (s *LocalFileStorage) Combine(pathA, pathB string) string {
	return combine(pathA, pathB)
}

// BaseURL возвращает базовый URL для доступа к файлам
func (s *LocalFileStorage) BaseURL() string {
	return s.baseURL
}

func (s *LocalFileStorage) GetBaseDir() string {
	return s.baseDir
}

func (s *LocalFileStorage) readDir(ctx context.Context, folderPath string) (godirwalk.Dirents, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := s.resolve(folderPath)
	if err != nil {
		return nil, err
	}

	if !isDir(dir) {
		return nil, storage.ErrFolderNotFound
	}

	dirents, err := godirwalk.ReadDirents(dir, nil)
	if err != nil {
		return nil, err
	}

	sort.Slice(dirents, func(i, j int) bool {
		return dirents[i].Name() < dirents[j].Name()
	})

	return dirents, nil
}

// resolve переводит логический путь в путь на диске внутри baseDir
func (s *LocalFileStorage) resolve(mediaPath string) (string, error) {
	p := strings.ReplaceAll(mediaPath, `\`, "/")

	for _, segment := range strings.Split(p, "/") {
		if segment == ".." {
			return "", storage.ErrInvalidPath
		}
	}

	return filepath.Join(s.baseDir, filepath.FromSlash(path.Clean("/"+p))), nil
}

func combine(pathA, pathB string) string {
	if pathA == "" {
		return pathB
	}
	if pathB == "" {
		return pathA
	}

	return strings.TrimRight(pathA, "/") + "/" + strings.TrimLeft(pathB, "/")
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}

	return strings.Join(segments, "/")
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}

	return !strings.ContainsAny(name, `/\`)
}

func isDir(p string) bool {
	info, err := os.Stat(p)

	return err == nil && info.IsDir()
}
