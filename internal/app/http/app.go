package httpapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"image_gallery/internal/lib/logger/sl"
	appmiddleware "image_gallery/internal/middleware"
	"image_gallery/internal/services/auth"
	httprouters "image_gallery/internal/transport/http"
	"image_gallery/internal/transport/http/dto/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

type Options struct {
	Host          string
	Port          string
	Timeout       time.Duration
	SessionSecret string
	MaxUploadSize string
	// MediaDir корень локального медиахранилища, раздается по MediaPrefix
	MediaDir    string
	MediaPrefix string
	HealthCheck func(ctx context.Context) error
}

type Server struct {
	log     *slog.Logger
	e       *echo.Echo
	routers *httprouters.Routers
	opts    Options
}

func New(log *slog.Logger, opts Options, routers *httprouters.Routers) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	if opts.Timeout > 0 {
		e.Server.ReadTimeout = opts.Timeout
		e.Server.WriteTimeout = opts.Timeout
	}
	if opts.MediaPrefix == "" {
		opts.MediaPrefix = "/media"
	}
	if opts.MaxUploadSize == "" {
		opts.MaxUploadSize = "20M"
	}

	validate := validator.New()
	e.Validator = &CustomValidator{validator: validate}

	store := sessions.NewCookieStore([]byte(opts.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	e.Use(session.Middleware(store))

	e.Use(middleware.CORS())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(opts.MaxUploadSize))
	e.Use(appmiddleware.PrometheusMetrics)

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				slog.String("method", v.Method),
				slog.String("URI", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote ip", v.RemoteIP),
			)

			return nil
		},
	}))

	return &Server{
		log:     log,
		e:       e,
		routers: routers,
		opts:    opts,
	}
}

func (s *Server) MustRun() {
	const op = "http.Server.MustRun"

	s.log.Info(op, slog.String("Start", "server"), slog.String("port", s.opts.Port))

	if err := s.Start(); err != nil {
		panic(err)
	}
}

func (s *Server) Start() error {
	const op = "http.Server.Start"

	if err := s.e.Start(fmt.Sprintf("%s:%s", s.opts.Host, s.opts.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server stopped: %w", op, err)
	}

	return nil
}

func (s *Server) Stop() error {
	const op = "http.Server.Stop"

	optCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	s.log.Info("stopping", slog.String("op", op))

	if err := s.e.Shutdown(optCtx); err != nil {
		return fmt.Errorf("%s could not shutdown server gracefuly: %w", op, err)
	}

	return nil
}

// ServeHTTP позволяет обращаться к серверу без открытия порта
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.e.ServeHTTP(w, r)
}

// adminOnlyMiddleware пропускает запросы с Bearer-токеном, у которого есть право
// manage_image_gallery, либо с сессией администратора
func (s *Server) adminOnlyMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		const op = "http.Server.adminOnlyMiddleware"

		if header := c.Request().Header.Get(echo.HeaderAuthorization); header != "" {
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				return c.JSON(http.StatusUnauthorized, response.ErrAuthenticationRequired)
			}

			subject, err := s.routers.AuthService.Authorize(c.Request().Context(), token)
			if err != nil {
				if errors.Is(err, auth.ErrForbidden) {
					return c.JSON(http.StatusForbidden, response.ErrPermissionDenied)
				}

				s.log.Warn("rejected token", slog.String("op", op), sl.Err(err))
				return c.JSON(http.StatusUnauthorized, response.ErrAuthenticationRequired)
			}

			c.Set("admin", subject)

			return next(c)
		}

		sess, err := session.Get(httprouters.SessionName, c)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, response.ErrAuthenticationRequired)
		}

		login, ok := sess.Values[httprouters.SessionAdminKey].(string)
		if !ok || login == "" {
			return c.JSON(http.StatusUnauthorized, response.ErrAuthenticationRequired)
		}

		if !s.routers.AuthService.IsAdmin(login) {
			return c.JSON(http.StatusForbidden, response.ErrPermissionDenied)
		}

		c.Set("admin", login)

		return next(c)
	}
}

func (s *Server) health(c echo.Context) error {
	if s.opts.HealthCheck != nil {
		if err := s.opts.HealthCheck(c.Request().Context()); err != nil {
			s.log.Error("health check failed", sl.Err(err))
			return c.JSON(http.StatusServiceUnavailable, response.ErrorResponseWithDetails("unavailable", err.Error()))
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) BuildRouters() {
	s.e.GET("/health", s.health)
	s.e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.e.GET("/swagger/*", echoSwagger.WrapHandler)

	if s.opts.MediaDir != "" {
		s.e.Static(s.opts.MediaPrefix, s.opts.MediaDir)
	}

	api := s.e.Group("/api/v1")
	{
		api.POST("/login", s.routers.Login)
		api.POST("/logout", s.routers.Logout)

		api.GET("/galleries", s.routers.ListGalleries)
		api.GET("/galleries/:name", s.routers.ShowGallery)

		admin := api.Group("/admin", s.adminOnlyMiddleware)
		{
			admin.GET("/galleries", s.routers.ListGalleries)
			admin.POST("/galleries", s.routers.CreateGallery)
			admin.GET("/galleries/:name", s.routers.GetGallery)
			admin.PATCH("/galleries/:name", s.routers.RenameGallery)
			admin.DELETE("/galleries/:name", s.routers.DeleteGallery)

			admin.GET("/galleries/:name/properties", s.routers.GetGalleryProperties)
			admin.PUT("/galleries/:name/properties", s.routers.UpdateGalleryProperties)

			admin.POST("/galleries/:name/images", s.routers.UploadImages)
			admin.PUT("/galleries/:name/images/order", s.routers.ReorderImages)
			admin.GET("/galleries/:name/images/:image", s.routers.GetImage)
			admin.PUT("/galleries/:name/images/:image", s.routers.UpdateImage)
			admin.DELETE("/galleries/:name/images/:image", s.routers.DeleteImage)

			admin.POST("/galleries/:name/prune", s.routers.PruneImageSettings)

			admin.GET("/media/url", s.routers.PublicURL)
		}
	}
}
