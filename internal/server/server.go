// Пакет server — HTTP-сервер каталога моделей с TLS и graceful shutdown.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apierrors "github.com/bigkaa/goartstore/model-catalog/internal/api/errors"
	"github.com/bigkaa/goartstore/model-catalog/internal/api/handlers"
	"github.com/bigkaa/goartstore/model-catalog/internal/api/middleware"
	"github.com/bigkaa/goartstore/model-catalog/internal/config"
)

// Handlers — набор обработчиков, монтируемых в роутер.
type Handlers struct {
	Models      *handlers.ModelsHandler
	Health      *handlers.HealthHandler
	Maintenance *handlers.MaintenanceHandler
}

// Server — HTTP-сервер каталога моделей.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными маршрутами и middleware.
func New(cfg *config.Config, logger *slog.Logger, doc *openapi3.T, h Handlers) (*Server, error) {
	router, err := NewRouter(cfg, logger, doc, h)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Загрузка до MC_MAX_FILE_SIZE на медленном канале
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	if cfg.TLSEnabled() {
		srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}, nil
}

// NewRouter собирает chi-роутер со всеми маршрутами.
func NewRouter(cfg *config.Config, logger *slog.Logger, doc *openapi3.T, h Handlers) (http.Handler, error) {
	validator, err := middleware.OpenAPIValidator(doc, func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Debug("Запрос не прошёл проверку контракта",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.ValidationError(w, "Некорректные параметры запроса")
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания валидатора OpenAPI: %w", err)
	}

	router := chi.NewRouter()

	router.Use(chimw.RequestID)
	router.Use(middleware.RequestLogger(logger))
	router.Use(chimw.Recoverer)
	router.Use(chimw.SetHeader("X-Content-Type-Options", "nosniff"))
	router.Use(chimw.SetHeader("X-Frame-Options", "DENY"))
	router.Use(chimw.SetHeader("Referrer-Policy", "no-referrer"))
	router.Use(middleware.MetricsMiddleware())
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.ClientURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Length", "Content-Range", "Accept-Ranges", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           600,
	}))

	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.NotFound(w, "Route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.MethodNotAllowed(w, "Method not allowed")
	})

	router.Group(func(r chi.Router) {
		r.Use(validator)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Compress(5, "application/json"))

			r.Post("/api/upload/model", h.Models.UploadModel)
			r.Get("/api/upload/formats", h.Models.GetSupportedFormats)
			r.Get("/api/models", h.Models.ListModels)
			r.Get("/api/models/{id}", h.Models.GetModel)
			r.Delete("/api/models/{id}", h.Models.DeleteModel)
			r.Post("/api/maintenance/reconcile", h.Maintenance.Reconcile)
			r.Get("/api/health", h.Health.Health)
		})

		// Бинарное содержимое без сжатия: Range-запросы по исходным байтам
		r.Get("/uploads/models/{filename}", h.Models.DownloadModel)
	})

	router.Handle("/metrics", promhttp.Handler())

	return router, nil
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM)
// или отмены ctx. Затем выполняется graceful shutdown с MC_SHUTDOWN_TIMEOUT.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
			slog.Bool("tls", s.cfg.TLSEnabled()),
		)

		var err error
		if s.cfg.TLSEnabled() {
			err = s.httpServer.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			err = s.httpServer.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case <-ctx.Done():
		s.logger.Info("Контекст сервера отменён")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
