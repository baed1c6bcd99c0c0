package http

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"image_gallery/internal/domain/models"
	"image_gallery/internal/lib/logger/sl"
	services "image_gallery/internal/services/gallery_service"
	"image_gallery/internal/storage"
	"image_gallery/internal/transport/http/dto"
	"image_gallery/internal/transport/http/dto/request"
	"image_gallery/internal/transport/http/dto/response"

	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"

	_ "image_gallery/docs"
)

const (
	SessionName     = "session"
	SessionAdminKey = "admin"
)

type GalleryService interface {
	GetImageGalleries(ctx context.Context) ([]models.Gallery, error)
	GetImageGallery(ctx context.Context, name string) (*models.Gallery, error)
	CreateImageGallery(ctx context.Context, name string) error
	DeleteImageGallery(ctx context.Context, name string) error
	RenameImageGallery(ctx context.Context, oldName, newName string) error
	UpdateImageGalleryProperties(ctx context.Context, name string, width, height int, keepAspectRatio, cropToFit bool) error
	GetImageGalleryProperties(ctx context.Context, name string) (*models.GalleryProperties, error)
	AddImage(ctx context.Context, galleryName string, file *multipart.FileHeader) error
	GetImage(ctx context.Context, galleryName, imageName string) (*models.Image, error)
	UpdateImageProperties(ctx context.Context, galleryName, imageName, title, caption string) error
	DeleteImage(ctx context.Context, galleryName, imageName string) error
	ReorderImages(ctx context.Context, galleryName string, names []string) error
	PruneImageSettings(ctx context.Context, galleryName string) (int64, error)
	GetPublicUrl(filePath string) string
	IsFileAllowed(file *multipart.FileHeader) bool
}

type AuthService interface {
	Login(ctx context.Context, login, password string) (string, error)
	Authorize(ctx context.Context, token string) (string, error)
	IsAdmin(login string) bool
}

type Routers struct {
	log            *slog.Logger
	GalleryService GalleryService
	AuthService    AuthService
}

func NewRouter(log *slog.Logger, galleryService GalleryService, authService AuthService) *Routers {
	return &Routers{
		log:            log,
		GalleryService: galleryService,
		AuthService:    authService,
	}
}

// Login godoc
// @Summary Вход администратора
// @Description Проверяет логин и пароль, возвращает JWT с правом manage_image_gallery и открывает сессию
// @Tags auth
// @Accept json
// @Produce json
// @Param request body request.LoginRequest true "Данные для входа"
// @Success 200 {object} response.Response{data=map[string]string} "Успешный вход (токен)"
// @Failure 400 {object} response.ErrorResponse "Неверный формат запроса"
// @Failure 401 {object} response.ErrorResponse "Ошибка аутентификации"
// @Router /api/v1/login [post]
func (r *Routers) Login(c echo.Context) error {
	const op = "http.routers.Login"

	log := r.log.With(
		slog.String("op", op),
	)

	var req request.LoginRequest

	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat)
	}

	if err := c.Validate(req); err != nil {
		log.Warn("invalid format request", slog.String("login", req.Login))
		return c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails(response.CodeInvalidRequest, err.Error()))
	}

	token, err := r.AuthService.Login(c.Request().Context(), req.Login, req.Password)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, response.ErrAuthenticationFailed)
	}

	if sess, err := session.Get(SessionName, c); err == nil {
		sess.Values[SessionAdminKey] = req.Login
		if err := sess.Save(c.Request(), c.Response()); err != nil {
			log.Warn("failed to save session", sl.Err(err))
		}
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(map[string]string{"access_token": token}))
}

// Logout godoc
// @Summary Выход администратора
// @Tags auth
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/logout [post]
func (r *Routers) Logout(c echo.Context) error {
	const op = "http.routers.Logout"

	if sess, err := session.Get(SessionName, c); err == nil {
		delete(sess.Values, SessionAdminKey)
		sess.Options.MaxAge = -1
		if err := sess.Save(c.Request(), c.Response()); err != nil {
			r.log.Warn("failed to clear session", slog.String("op", op), sl.Err(err))
		}
	}

	return c.JSON(http.StatusOK, response.MessageResponse("logged out"))
}

// ListGalleries godoc
// @Summary Список галерей
// @Description Возвращает галереи без изображений
// @Tags galleries
// @Produce json
// @Success 200 {object} response.Response{data=[]dto.GalleryListItem}
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/galleries [get]
func (r *Routers) ListGalleries(c echo.Context) error {
	const op = "http.routers.ListGalleries"

	log := r.log.With(slog.String("op", op))

	galleries, err := r.GalleryService.GetImageGalleries(c.Request().Context())
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(dto.NewGalleryListItems(galleries)))
}

// ShowGallery godoc
// @Summary Публичная страница галереи
// @Description Изображения в порядке сортировки с URL оригиналов и миниатюр
// @Tags galleries
// @Produce json
// @Param name path string true "Имя галереи"
// @Success 200 {object} response.Response{data=dto.GalleryResponse}
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/galleries/{name} [get]
func (r *Routers) ShowGallery(c echo.Context) error {
	const op = "http.routers.ShowGallery"

	log := r.log.With(slog.String("op", op), slog.String("gallery", c.Param("name")))

	gallery, err := r.GalleryService.GetImageGallery(c.Request().Context(), c.Param("name"))
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(dto.NewGalleryResponse(gallery)))
}

// GetGallery godoc
// @Summary Галерея для администратора
// @Tags admin
// @Produce json
// @Param name path string true "Имя галереи"
// @Success 200 {object} response.Response{data=models.Gallery}
// @Failure 404 {object} response.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/v1/admin/galleries/{name} [get]
func (r *Routers) GetGallery(c echo.Context) error {
	const op = "http.routers.GetGallery"

	log := r.log.With(slog.String("op", op), slog.String("gallery", c.Param("name")))

	gallery, err := r.GalleryService.GetImageGallery(c.Request().Context(), c.Param("name"))
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(gallery))
}

// CreateGallery godoc
// @Summary Создание галереи
// @Tags admin
// @Accept json
// @Produce json
// @Param request body request.CreateGalleryRequest true "Имя новой галереи"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Галерея уже существует"
// @Security ApiKeyAuth
// @Router /api/v1/admin/galleries [post]
func (r *Routers) CreateGallery(c echo.Context) error {
	const op = "http.routers.CreateGallery"

	log := r.log.With(slog.String("op", op))

	var req request.CreateGalleryRequest
	if ok, err := r.bindAndValidate(c, &req); !ok {
		return err
	}

	if err := r.GalleryService.CreateImageGallery(c.Request().Context(), req.Name); err != nil {
		return r.fail(c, log, err)
	}

	log.Info("gallery created", slog.String("gallery", req.Name))

	return c.JSON(http.StatusCreated, response.SuccessResponse(map[string]string{"name": req.Name}))
}

// DeleteGallery godoc
// @Summary Удаление галереи вместе с настройками
// @Tags admin
// @Produce json
// @Param name path string true "Имя галереи"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse "partial_failure: папка удалена, настройки нет"
// @Security ApiKeyAuth
// @Router /api/v1/admin/galleries/{name} [delete]
func (r *Routers) DeleteGallery(c echo.Context) error {
	const op = "http.routers.DeleteGallery"

	log := r.log.With(slog.String("op", op), slog.String("gallery", c.Param("name")))

	if err := r.GalleryService.DeleteImageGallery(c.Request().Context(), c.Param("name")); err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.MessageResponse("gallery deleted"))
}

// RenameGallery godoc
// @Summary Переименование галереи
// @Tags admin
// @Accept json
// @Produce json
// @Param name path string true "Текущее имя галереи"
// @Param request body request.RenameGalleryRequest true "Новое имя"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/v1/admin/galleries/{name} [patch]
func (r *Routers) RenameGallery(c echo.Context) error {
	const op = "http.routers.RenameGallery"

	log := r.log.With(slog.String("op", op), slog.String("gallery", c.Param("name")))

	var req request.RenameGalleryRequest
	if ok, err := r.bindAndValidate(c, &req); !ok {
		return err
	}

	if err := r.GalleryService.RenameImageGallery(c.Request().Context(), c.Param("name"), req.Name); err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(map[string]string{"name": req.Name}))
}

// GetGalleryProperties godoc
// @Summary Настройки миниатюр галереи
// @Description Значения по умолчанию, если настройки еще не сохранялись (persisted=false)
// @Tags admin
// @Produce json
// @Param name path string true "Имя галереи"
// @Success 200 {object} response.Response{data=models.GalleryProperties}
// @Failure 404 {object} response.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/v1/admin/galleries/{name}/properties [get]
func (r *Routers) GetGalleryProperties(c echo.Context) error {
	const op = "http.routers.GetGalleryProperties"

	log := r.log.With(slog.String("op", op), slog.String("gallery", c.Param("name")))

	props, err := r.GalleryService.GetImageGalleryProperties(c.Request().Context(), c.Param("name"))
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(props))
}

// UpdateGalleryProperties godoc
// @Summary Сохранение настроек миниатюр
// @Tags admin
// @Accept json
// @Produce json
// @Param name path string true "Имя галереи"
// @Param request body request.GalleryPropertiesRequest true "Размеры и режим миниатюр"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/v1/admin/galleries/{name}/properties [put]
func (r *Routers) UpdateGalleryProperties(c echo.Context) error {
	const op = "http.routers.UpdateGalleryProperties"

	log := r.log.With(slog.String("op", op), slog.String("gallery", c.Param("name")))

	var req request.GalleryPropertiesRequest
	if ok, err := r.bindAndValidate(c, &req); !ok {
		return err
	}

	err := r.GalleryService.UpdateImageGalleryProperties(c.Request().Context(), c.Param("name"),
		req.ThumbnailWidth, req.ThumbnailHeight, req.KeepAspectRatio, req.CropToFit)
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.MessageResponse("properties saved"))
}

// UploadImages godoc
// @Summary Загрузка изображений
// @Description Принимает несколько файлов в поле files. Файлы с недопустимым расширением не загружаются и попадают в rejected.
// @Tags admin
// @Accept multipart/form-data
// @Produce json
// @Param name path string true "Имя галереи"
// @Param files formData file true "Изображения"
// @Success 200 {object} response.Response{data=dto.UploadResult}
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/v1/admin/galleries/{name}/images [post]
func (r *Routers) UploadImages(c echo.Context) error {
	const op = "http.routers.UploadImages"

	galleryName := c.Param("name")
	log := r.log.With(slog.String("op", op), slog.String("gallery", galleryName))

	startTime := time.Now()
	defer func() {
		log.Info("Request completed", "duration", time.Since(startTime))
	}()

	form, err := c.MultipartForm()
	if err != nil {
		log.Warn("invalid multipart form", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat)
	}

	files := form.File["files"]
	if len(files) == 0 {
		return c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails(response.CodeInvalidRequest, "at least one file is required"))
	}

	result := dto.UploadResult{
		Uploaded: make([]string, 0, len(files)),
		Rejected: []dto.RejectedFile{},
	}

	for _, file := range files {
		if !r.GalleryService.IsFileAllowed(file) {
			log.Warn("file type is not allowed", slog.String("file", file.Filename))
			result.Rejected = append(result.Rejected, dto.RejectedFile{Name: file.Filename, Reason: services.ErrFileNotAllowed.Error()})
			continue
		}

		if err := r.GalleryService.AddImage(c.Request().Context(), galleryName, file); err != nil {
			if services.IsValidation(err) || errors.Is(err, storage.ErrInvalidPath) {
				result.Rejected = append(result.Rejected, dto.RejectedFile{Name: file.Filename, Reason: err.Error()})
				continue
			}

			return r.fail(c, log, err)
		}

		result.Uploaded = append(result.Uploaded, file.Filename)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(result))
}

// ReorderImages godoc
// @Summary Порядок изображений
// @Description Назначает позиции 0..n-1 по списку имен. Изображения вне списка сохраняют прежние позиции.
// @Tags admin
// @Accept json
// @Produce json
// @Param name path string true "Имя галереи"
// @Param request body request.ImageOrderRequest true "Имена файлов по порядку"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/v1/admin/galleries/{name}/images/order [put]
func (r *Routers) ReorderImages(c echo.Context) error {
	const op = "http.routers.ReorderImages"

	log := r.log.With(slog.String("op", op), slog.String("gallery", c.Param("name")))

	var req request.ImageOrderRequest
	if ok, err := r.bindAndValidate(c, &req); !ok {
		return err
	}

	if err := r.GalleryService.ReorderImages(c.Request().Context(), c.Param("name"), req.Names); err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.MessageResponse("order saved"))
}

// GetImage godoc
// @Summary Изображение с метаданными
// @Tags admin
// @Produce json
// @Param name path string true "Имя галереи"
// @Param image path string true "Имя файла"
// @Success 200 {object} response.Response{data=models.Image}
// @Failure 404 {object} response.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/v1/admin/galleries/{name}/images/{image} [get]
func (r *Routers) GetImage(c echo.Context) error {
	const op = "http.routers.GetImage"

	log := r.log.With(slog.String("op", op), slog.String("gallery", c.Param("name")), slog.String("image", c.Param("image")))

	image, err := r.GalleryService.GetImage(c.Request().Context(), c.Param("name"), c.Param("image"))
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(image))
}

// UpdateImage godoc
// @Summary Заголовок и подпись изображения
// @Tags admin
// @Accept json
// @Produce json
// @Param name path string true "Имя галереи"
// @Param image path string true "Имя файла"
// @Param request body request.ImagePropertiesRequest true "Заголовок и подпись"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/v1/admin/galleries/{name}/images/{image} [put]
func (r *Routers) UpdateImage(c echo.Context) error {
	const op = "http.routers.UpdateImage"

	log := r.log.With(slog.String("op", op), slog.String("gallery", c.Param("name")), slog.String("image", c.Param("image")))

	var req request.ImagePropertiesRequest
	if ok, err := r.bindAndValidate(c, &req); !ok {
		return err
	}

	err := r.GalleryService.UpdateImageProperties(c.Request().Context(), c.Param("name"), c.Param("image"), req.Title, req.Caption)
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.MessageResponse("image saved"))
}

// DeleteImage godoc
// @Summary Удаление изображения
// @Tags admin
// @Produce json
// @Param name path string true "Имя галереи"
// @Param image path string true "Имя файла"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/v1/admin/galleries/{name}/images/{image} [delete]
func (r *Routers) DeleteImage(c echo.Context) error {
	const op = "http.routers.DeleteImage"

	log := r.log.With(slog.String("op", op), slog.String("gallery", c.Param("name")), slog.String("image", c.Param("image")))

	if err := r.GalleryService.DeleteImage(c.Request().Context(), c.Param("name"), c.Param("image")); err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.MessageResponse("image deleted"))
}

// PruneImageSettings godoc
// @Summary Очистка метаданных удаленных файлов
// @Tags admin
// @Produce json
// @Param name path string true "Имя галереи"
// @Success 200 {object} response.Response{data=dto.PruneResult}
// @Failure 404 {object} response.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/v1/admin/galleries/{name}/prune [post]
func (r *Routers) PruneImageSettings(c echo.Context) error {
	const op = "http.routers.PruneImageSettings"

	log := r.log.With(slog.String("op", op), slog.String("gallery", c.Param("name")))

	deleted, err := r.GalleryService.PruneImageSettings(c.Request().Context(), c.Param("name"))
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(dto.PruneResult{Deleted: deleted}))
}

// PublicURL godoc
// @Summary Публичный URL файла по пути в медиахранилище
// @Tags admin
// @Produce json
// @Param path query string true "Путь к файлу"
// @Success 200 {object} response.Response{data=map[string]string}
// @Failure 400 {object} response.ErrorResponse
// @Security ApiKeyAuth
// @Router /api/v1/admin/media/url [get]
func (r *Routers) PublicURL(c echo.Context) error {
	path := c.QueryParam("path")
	if path == "" {
		return c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails(response.CodeInvalidRequest, "path is required"))
	}

	return c.JSON(http.StatusOK, response.SuccessResponse(map[string]string{"url": r.GalleryService.GetPublicUrl(path)}))
}

// bindAndValidate при ok=false ответ 400 уже записан
func (r *Routers) bindAndValidate(c echo.Context, req interface{}) (bool, error) {
	if err := c.Bind(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, response.ErrInvalidRequestFormat)
	}

	if err := c.Validate(req); err != nil {
		return false, c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails(response.CodeValidation, err.Error()))
	}

	return true, nil
}

// fail переводит ошибку сервиса галерей в HTTP-ответ
func (r *Routers) fail(c echo.Context, log *slog.Logger, err error) error {
	switch {
	case services.IsNotFound(err):
		log.Warn("not found", sl.Err(err))
		return c.JSON(http.StatusNotFound, response.ErrorResponseWithDetails(response.CodeNotFound, rootCause(err).Error()))

	case services.IsValidation(err) || errors.Is(err, storage.ErrInvalidPath):
		log.Warn("validation failed", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.ErrorResponseWithDetails(response.CodeValidation, rootCause(err).Error()))

	case errors.Is(err, services.ErrGalleryExists):
		log.Warn("conflict", sl.Err(err))
		return c.JSON(http.StatusConflict, response.ErrorResponseWithDetails(response.CodeConflict, services.ErrGalleryExists.Error()))

	case services.IsPartialFailure(err):
		log.Error("stores are out of sync", sl.Err(err))
		return c.JSON(http.StatusInternalServerError, response.ErrorResponseWithDetails(response.CodePartialFailure, err.Error()))
	}

	log.Error("request failed", sl.Err(err))

	return c.JSON(http.StatusInternalServerError, response.ErrInternal)
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
