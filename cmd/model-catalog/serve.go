package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bigkaa/goartstore/model-catalog/internal/api/handlers"
	"github.com/bigkaa/goartstore/model-catalog/internal/api/openapi"
	"github.com/bigkaa/goartstore/model-catalog/internal/config"
	"github.com/bigkaa/goartstore/model-catalog/internal/server"
	"github.com/bigkaa/goartstore/model-catalog/internal/service"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP-сервер каталога",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := config.SetupLogger(cfg)
	logger.Info("Каталог моделей запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("uploads_dir", cfg.UploadsDir),
		slog.Int64("max_file_size", cfg.MaxFileSize),
		slog.Int("max_files", cfg.MaxFiles),
	)

	// 1. Хранилища
	files, meta, err := openStores(cfg, logger)
	if err != nil {
		return err
	}

	// 2. Сервисы
	catalog := service.NewCatalog(files, meta, cfg.Limits(), logger)
	reconciler := service.NewReconcileService(files, meta, cfg.ReconcileInterval, logger)

	// 3. Фоновые процессы
	bgCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	reconciler.Start(bgCtx)
	defer reconciler.Stop()

	// 3.1 topologymetrics — мониторинг upstream API (если задан)
	var deps handlers.DependencyHealth
	if cfg.UpstreamURL != "" {
		dephealthSvc, dhErr := service.NewDephealthService(
			cfg.ServiceID,
			cfg.DephealthGroup,
			cfg.UpstreamURL,
			cfg.DephealthCheckInterval,
			logger,
		)
		if dhErr != nil {
			logger.Warn("Мониторинг upstream API отключён",
				slog.String("error", dhErr.Error()),
			)
		} else if startErr := dephealthSvc.Start(bgCtx); startErr != nil {
			logger.Warn("Ошибка запуска мониторинга upstream API",
				slog.String("error", startErr.Error()),
			)
		} else {
			defer dephealthSvc.Stop()
			deps = dephealthSvc
		}
	}

	// 4. HTTP
	doc, err := openapi.Load(ctx)
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI-контракта", slog.String("error", err.Error()))
		return err
	}

	srv, err := server.New(cfg, logger, doc, server.Handlers{
		Models:      handlers.NewModelsHandler(catalog, files, logger),
		Health:      handlers.NewHealthHandler(config.Version, cfg.ContentDir(), cfg.MetadataDir(), deps),
		Maintenance: handlers.NewMaintenanceHandler(reconciler),
	})
	if err != nil {
		logger.Error("Ошибка создания HTTP-сервера", slog.String("error", err.Error()))
		return err
	}

	if err := srv.Run(ctx); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Каталог моделей остановлен")
	return nil
}
