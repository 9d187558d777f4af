package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bigkaa/goartstore/model-catalog/internal/config"
	"github.com/bigkaa/goartstore/model-catalog/internal/service"
	"github.com/bigkaa/goartstore/model-catalog/internal/storage/filestore"
	"github.com/bigkaa/goartstore/model-catalog/internal/storage/metastore"
)

// newRootCommand собирает дерево команд. Без подкоманды запускается serve.
func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "model-catalog",
		Short:        "Каталог BIM/CAD/3D моделей",
		Long:         "HTTP-сервис загрузки, перечисления и удаления моделей с хранением на локальной файловой системе.",
		Version:      config.Version,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(
		newServeCommand(),
		newReconcileCommand(),
		newFormatsCommand(),
	)
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("ошибка конфигурации: %w", err)
	}
	return cfg, nil
}

// openStores создаёт хранилища бинарных файлов и метаданных.
func openStores(cfg *config.Config, logger *slog.Logger) (*filestore.FileStore, *metastore.Store, error) {
	files, err := filestore.New(cfg.ContentDir())
	if err != nil {
		logger.Error("Ошибка инициализации FileStore", slog.String("error", err.Error()))
		return nil, nil, err
	}
	meta, err := metastore.New(cfg.MetadataDir())
	if err != nil {
		logger.Error("Ошибка инициализации хранилища метаданных", slog.String("error", err.Error()))
		return nil, nil, err
	}
	return files, meta, nil
}

// newReconciler — сервис сверки поверх хранилищ конфигурации.
func newReconciler(cfg *config.Config, logger *slog.Logger) (*service.ReconcileService, error) {
	files, meta, err := openStores(cfg, logger)
	if err != nil {
		return nil, err
	}
	return service.NewReconcileService(files, meta, cfg.ReconcileInterval, logger), nil
}
