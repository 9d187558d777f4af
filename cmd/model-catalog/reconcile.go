package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bigkaa/goartstore/model-catalog/internal/config"
)

// errIssuesFound — сверка нашла проблемы при --strict.
var errIssuesFound = errors.New("сверка обнаружила проблемы")

func newReconcileCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Однократная сверка бинарных файлов и метаданных (только отчёт)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := config.SetupLoggerTo(cfg, os.Stderr)

			rs, err := newReconciler(cfg, logger)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			report, _ := rs.RunOnce(ctx)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("ошибка вывода отчёта: %w", err)
			}

			if strict && len(report.Issues) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "Обнаружено проблем: %d\n", len(report.Issues))
				return errIssuesFound
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "завершиться с кодом 1, если обнаружены проблемы")
	return cmd
}
