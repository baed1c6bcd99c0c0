package services

import (
	"errors"
	"fmt"
)

var (
	ErrGalleryNotFound = errors.New("gallery not found")
	ErrImageNotFound   = errors.New("image not found")
	ErrGalleryExists   = errors.New("gallery already exists")
)

var (
	ErrFileNotAllowed       = errors.New("file type is not allowed")
	ErrInvalidGalleryName   = errors.New("invalid gallery name")
	ErrInvalidThumbnailSize = errors.New("thumbnail width and height must be positive")
	ErrInvalidImageOrder    = errors.New("image order contains duplicates")
)

// PartialFailureError первый шаг операции (медиахранилище) выполнен,
// а изменение настроек не удалось. Состояние не откатывается.
type PartialFailureError struct {
	Op  string
	Err error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s: partial failure: %v", e.Op, e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}

// IsNotFound проверяет, что ошибка означает отсутствие галереи или изображения
func IsNotFound(err error) bool {
	return errors.Is(err, ErrGalleryNotFound) || errors.Is(err, ErrImageNotFound)
}

// IsValidation проверяет, что ошибка вызвана некорректными входными данными
func IsValidation(err error) bool {
	return errors.Is(err, ErrFileNotAllowed) ||
		errors.Is(err, ErrInvalidGalleryName) ||
		errors.Is(err, ErrInvalidThumbnailSize) ||
		errors.Is(err, ErrInvalidImageOrder)
}

// IsPartialFailure проверяет, что хранилища остались в несогласованном состоянии
func IsPartialFailure(err error) bool {
	var pf *PartialFailureError
	return errors.As(err, &pf)
}
