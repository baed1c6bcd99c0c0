package httpapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"image_gallery/internal/lib/jwt"
	"image_gallery/internal/lib/logger/handlers/slogdiscard"
	"image_gallery/internal/repository"
	"image_gallery/internal/services/auth"
	services "image_gallery/internal/services/gallery_service"
	thumbnails "image_gallery/internal/services/thumbnail_service"
	"image_gallery/internal/storage/filestorage"
	"image_gallery/internal/storage/sqlite"
	httprouters "image_gallery/internal/transport/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testPassword = "s3cret-pass"
	testSecret   = "token-secret"
)

func setupServer(t *testing.T, healthCheck func(ctx context.Context) error) *Server {
	t.Helper()

	log := slogdiscard.NewDiscardLogger()

	db, err := sqlite.New(filepath.Join(t.TempDir(), "gallery.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close(db) })

	settings := repository.NewGormSettingsRepo(db)
	require.NoError(t, settings.Migrate())

	mediaDir := t.TempDir()
	media, err := filestorage.NewLocalFileStorage(mediaDir, "/media")
	require.NoError(t, err)

	thumbs := thumbnails.NewThumbnailService(log, media, repository.NewMemoryThumbnailCache(time.Hour), thumbnails.Options{})
	gallery := services.NewGalleryService(log, media, settings, thumbs, services.Options{})
	require.NoError(t, gallery.Init(context.Background()))

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	authService := auth.New(log, "admin", string(hash), testSecret, time.Hour)

	server := New(log, Options{
		SessionSecret: "session-secret",
		MediaDir:      mediaDir,
		HealthCheck:   healthCheck,
	}, httprouters.NewRouter(log, gallery, authService))
	server.BuildRouters()

	return server
}

func do(s *Server, method, target, body, token string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	return rec
}

func login(t *testing.T, s *Server) (string, []*http.Cookie) {
	t.Helper()

	rec := do(s, http.MethodPost, "/api/v1/login", `{"login":"admin","password":"`+testPassword+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	return resp.Data["access_token"], rec.Result().Cookies()
}

func TestServer_Health(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		s := setupServer(t, nil)

		rec := do(s, http.MethodGet, "/health", "", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("dependency down", func(t *testing.T) {
		s := setupServer(t, func(ctx context.Context) error { return errors.New("redis unreachable") })

		rec := do(s, http.MethodGet, "/health", "", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestServer_Metrics(t *testing.T) {
	s := setupServer(t, nil)

	do(s, http.MethodGet, "/api/v1/galleries", "", "")

	rec := do(s, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "image_gallery_http_requests_total")
}

func TestServer_AdminAccess(t *testing.T) {
	s := setupServer(t, nil)

	t.Run("anonymous", func(t *testing.T) {
		rec := do(s, http.MethodGet, "/api/v1/admin/galleries", "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/galleries", nil)
		req.Header.Set("Authorization", "Basic YWRtaW46YWRtaW4=")
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token without permission", func(t *testing.T) {
		token, err := jwt.NewToken("admin", nil, testSecret, time.Hour)
		require.NoError(t, err)

		rec := do(s, http.MethodGet, "/api/v1/admin/galleries", "", token)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("bearer token", func(t *testing.T) {
		token, _ := login(t, s)

		rec := do(s, http.MethodGet, "/api/v1/admin/galleries", "", token)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("session cookie", func(t *testing.T) {
		_, cookies := login(t, s)
		require.NotEmpty(t, cookies)

		rec := do(s, http.MethodGet, "/api/v1/admin/galleries", "", "", cookies...)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := do(s, http.MethodPost, "/api/v1/login", `{"login":"admin","password":"not-the-password"}`, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: uint8(y), B: uint8(x), A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	return buf.Bytes()
}

func TestServer_GalleryLifecycle(t *testing.T) {
	s := setupServer(t, nil)
	token, _ := login(t, s)

	rec := do(s, http.MethodPost, "/api/v1/admin/galleries", `{"name":"vacation"}`, token)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(s, http.MethodPost, "/api/v1/admin/galleries", `{"name":"vacation"}`, token)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Загрузка: одно изображение принимается, исполняемый файл отклоняется
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("files", "beach.png")
	require.NoError(t, err)
	_, err = part.Write(pngBytes(t, 300, 200))
	require.NoError(t, err)
	part, err = w.CreateFormFile("files", "virus.exe")
	require.NoError(t, err)
	_, err = part.Write([]byte("MZ"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/galleries/vacation/images", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"uploaded":["beach.png"]`)
	assert.Contains(t, rec.Body.String(), `"name":"virus.exe"`)

	rec = do(s, http.MethodPut, "/api/v1/admin/galleries/vacation/properties",
		`{"thumbnail_width":100,"thumbnail_height":80,"keep_aspect_ratio":true,"crop_to_fit":false}`, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodPut, "/api/v1/admin/galleries/vacation/images/beach.png",
		`{"title":"Beach","caption":"Morning"}`, token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodGet, "/api/v1/galleries/vacation", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var gallery struct {
		Data struct {
			Name            string `json:"name"`
			ThumbnailWidth  int    `json:"thumbnail_width"`
			ThumbnailHeight int    `json:"thumbnail_height"`
			Images          []struct {
				Name         string `json:"name"`
				Title        string `json:"title"`
				URL          string `json:"url"`
				ThumbnailURL string `json:"thumbnail_url"`
			} `json:"images"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gallery))
	assert.Equal(t, "vacation", gallery.Data.Name)
	assert.Equal(t, 100, gallery.Data.ThumbnailWidth)
	assert.Equal(t, 80, gallery.Data.ThumbnailHeight)
	require.Len(t, gallery.Data.Images, 1)
	assert.Equal(t, "Beach", gallery.Data.Images[0].Title)
	assert.Equal(t, "/media/ImageGalleries/vacation/beach.png", gallery.Data.Images[0].URL)
	assert.Equal(t, "/media/_thumbnails/100x80-a/ImageGalleries/vacation/beach.png.jpg", gallery.Data.Images[0].ThumbnailURL)

	// Миниатюра раздается статикой локального хранилища
	rec = do(s, http.MethodGet, gallery.Data.Images[0].ThumbnailURL, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodDelete, "/api/v1/admin/galleries/vacation/images/beach.png", "", token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodGet, "/api/v1/admin/galleries/vacation/images/beach.png", "", token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(s, http.MethodDelete, "/api/v1/admin/galleries/vacation", "", token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodGet, "/api/v1/galleries/vacation", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func solidPNG(t *testing.T, c color.RGBA) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for x := 0; x < 40; x++ {
		for y := 0; y < 40; y++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	return buf.Bytes()
}

func upload(t *testing.T, s *Server, token, gallery, name string, data []byte) {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("files", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/galleries/"+gallery+"/images", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"uploaded":["`+name+`"]`)
}

func thumbnailPixel(t *testing.T, s *Server, gallery string) color.Color {
	t.Helper()

	rec := do(s, http.MethodGet, "/api/v1/galleries/"+gallery, "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Images []struct {
				ThumbnailURL string `json:"thumbnail_url"`
			} `json:"images"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Images, 1)

	rec = do(s, http.MethodGet, resp.Data.Images[0].ThumbnailURL, "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	img, err := jpeg.Decode(rec.Body)
	require.NoError(t, err)

	return img.At(img.Bounds().Dx()/2, img.Bounds().Dy()/2)
}

func TestServer_ReuploadRefreshesThumbnail(t *testing.T) {
	s := setupServer(t, nil)
	token, _ := login(t, s)

	rec := do(s, http.MethodPost, "/api/v1/admin/galleries", `{"name":"colors"}`, token)
	require.Equal(t, http.StatusCreated, rec.Code)

	upload(t, s, token, "colors", "a.png", solidPNG(t, color.RGBA{R: 255, A: 255}))
	r, _, b, _ := thumbnailPixel(t, s, "colors").RGBA()
	require.Greater(t, r>>8, uint32(200))
	require.Less(t, b>>8, uint32(50))

	upload(t, s, token, "colors", "a.png", solidPNG(t, color.RGBA{B: 255, A: 255}))
	r, _, b, _ = thumbnailPixel(t, s, "colors").RGBA()
	assert.Less(t, r>>8, uint32(50))
	assert.Greater(t, b>>8, uint32(200))
}
