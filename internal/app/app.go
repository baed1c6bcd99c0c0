package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	httpapp "image_gallery/internal/app/http"
	"image_gallery/internal/config"
	"image_gallery/internal/lib/logger/sl"
	"image_gallery/internal/repository"
	"image_gallery/internal/services/auth"
	services "image_gallery/internal/services/gallery_service"
	thumbnails "image_gallery/internal/services/thumbnail_service"
	"image_gallery/internal/storage"
	"image_gallery/internal/storage/filestorage"
	"image_gallery/internal/storage/postgresql"
	redisapp "image_gallery/internal/storage/redis"
	"image_gallery/internal/storage/s3storage"
	"image_gallery/internal/storage/sqlite"
	httprouters "image_gallery/internal/transport/http"
)

type App struct {
	log            *slog.Logger
	HTTPServer     *httpapp.Server
	GalleryService *services.GalleryService

	closers []func() error
}

// New собирает зависимости по драйверам из конфигурации
func New(ctx context.Context, log *slog.Logger, cfg *config.Config) (*App, error) {
	const op = "app.New"

	a := &App{log: log}

	var checks []func(ctx context.Context) error

	media, mediaDir, err := newMediaStore(ctx, cfg.MediaStore)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var settings repository.SettingsRepository
	switch cfg.Settings.Driver {
	case "postgres":
		pg, err := postgresql.New(ctx, cfg.Settings.DSN)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.closers = append(a.closers, func() error { pg.Stop(); return nil })

		if err := pg.Migrate(ctx); err != nil {
			a.Stop()
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		settings = repository.NewSettingsRepo(pg.Pool())
		checks = append(checks, func(ctx context.Context) error { return pg.Pool().Ping(ctx) })

	case "sqlite", "":
		db, err := sqlite.New(cfg.Settings.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.closers = append(a.closers, func() error { return sqlite.Close(db) })

		repo := repository.NewGormSettingsRepo(db)
		if err := repo.Migrate(); err != nil {
			a.Stop()
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		settings = repo

	default:
		return nil, fmt.Errorf("%s: unknown settings driver %q", op, cfg.Settings.Driver)
	}

	var cache repository.ThumbnailCache
	switch cfg.Thumbnails.Cache {
	case "redis":
		client, err := redisapp.Connect(ctx, cfg.Redis.RedisAddr, cfg.Redis.RedisPassword, cfg.Redis.RedisDB)
		if err != nil {
			a.Stop()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.closers = append(a.closers, client.Close)

		cache = repository.NewRedisThumbnailCache(client)
		checks = append(checks, client.HealthCheck)

	case "memory", "":
		cache = repository.NewMemoryThumbnailCache(cfg.Thumbnails.CacheTTL)

	default:
		a.Stop()
		return nil, fmt.Errorf("%s: unknown thumbnail cache %q", op, cfg.Thumbnails.Cache)
	}

	thumbnailService := thumbnails.NewThumbnailService(log, media, cache, thumbnails.Options{
		Folder:   cfg.Thumbnails.Folder,
		Quality:  cfg.Thumbnails.Quality,
		CacheTTL: cfg.Thumbnails.CacheTTL,
	})

	galleryService := services.NewGalleryService(log, media, settings, thumbnailService, services.Options{
		RootFolder:             cfg.Gallery.RootFolder,
		AllowedExtensions:      cfg.Gallery.AllowedExtensions,
		DefaultThumbnailWidth:  cfg.Gallery.DefaultThumbnailWidth,
		DefaultThumbnailHeight: cfg.Gallery.DefaultThumbnailHeight,
		RenamePolicy:           services.RenamePolicy(cfg.Gallery.RenamePolicy),
	})

	if err := galleryService.Init(ctx); err != nil {
		a.Stop()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	authService := auth.New(log, cfg.Auth.AdminLogin, cfg.Auth.AdminPasswordHash, cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)

	routers := httprouters.NewRouter(log, galleryService, authService)

	a.GalleryService = galleryService
	a.HTTPServer = httpapp.New(log, httpapp.Options{
		Host:          cfg.HTTP.Host,
		Port:          cfg.HTTP.Port,
		Timeout:       cfg.HTTP.Timeout,
		SessionSecret: cfg.HTTP.SessionSecret,
		MaxUploadSize: cfg.HTTP.MaxUploadSize,
		MediaDir:      mediaDir,
		MediaPrefix:   mediaPrefix(cfg.MediaStore.BaseURL),
		HealthCheck:   joinChecks(checks),
	}, routers)

	return a, nil
}

// Stop закрывает соединения в обратном порядке
func (a *App) Stop() {
	const op = "app.Stop"

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Error("failed to close dependency", slog.String("op", op), sl.Err(err))
		}
	}
	a.closers = nil
}

// newMediaStore возвращает хранилище и каталог для раздачи статики (только для local)
func newMediaStore(ctx context.Context, cfg config.MediaStoreConfig) (storage.MediaStore, string, error) {
	switch cfg.Driver {
	case "s3":
		client, err := s3storage.NewClient(ctx, cfg.S3.Endpoint, cfg.S3.Region, cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey)
		if err != nil {
			return nil, "", err
		}

		return s3storage.New(client, cfg.S3.Bucket, cfg.S3.Prefix, cfg.S3.PublicURL), "", nil

	case "local", "":
		dir, err := filepath.Abs(cfg.BaseDir)
		if err != nil {
			return nil, "", err
		}

		media, err := filestorage.NewLocalFileStorage(dir, cfg.BaseURL)
		if err != nil {
			return nil, "", err
		}

		return media, media.GetBaseDir(), nil
	}

	return nil, "", fmt.Errorf("unknown media store driver %q", cfg.Driver)
}

// mediaPrefix путь статики из base_url: "http://host/media" -> "/media"
func mediaPrefix(baseURL string) string {
	p := baseURL
	if i := strings.Index(p, "://"); i >= 0 {
		p = p[i+3:]
		if j := strings.Index(p, "/"); j >= 0 {
			p = p[j:]
		} else {
			p = ""
		}
	}

	p = "/" + strings.Trim(p, "/")
	if p == "/" {
		return "/media"
	}

	return p
}

func joinChecks(checks []func(ctx context.Context) error) func(ctx context.Context) error {
	if len(checks) == 0 {
		return nil
	}

	return func(ctx context.Context) error {
		var errs []error
		for _, check := range checks {
			if err := check(ctx); err != nil {
				errs = append(errs, err)
			}
		}

		return errors.Join(errs...)
	}
}
