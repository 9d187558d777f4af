// dephealth.go — мониторинг внешнего API хостинга BIM-моделей
// через topologymetrics SDK.
//
// Метрики публикуются на /metrics вместе с остальными:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
//   - app_dependency_status — категория статуса
//   - app_dependency_status_detail — детальный статус
//
// Зависимость некритичная: каталог моделей работает без неё.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/prometheus/client_golang/prometheus"
)

// UpstreamDependencyName — имя зависимости в метриках и в /api/health.
const UpstreamDependencyName = "bim-upstream"

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга upstream API.
// Метрики регистрируются в глобальном Prometheus registry.
//
// Параметры:
//   - serviceID — имя вершины графа текущего приложения (MC_SERVICE_ID)
//   - group — имя группы в метриках (MC_DEPHEALTH_GROUP)
//   - upstreamURL — URL upstream API (MC_UPSTREAM_URL)
//   - checkInterval — интервал проверки (MC_DEPHEALTH_CHECK_INTERVAL)
func NewDephealthService(
	serviceID string,
	group string,
	upstreamURL string,
	checkInterval time.Duration,
	logger *slog.Logger,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, upstreamURL, checkInterval, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	serviceID string,
	group string,
	upstreamURL string,
	checkInterval time.Duration,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, upstreamURL, checkInterval,
		logger, dephealth.WithRegisterer(registerer))
}

func newDephealthService(
	serviceID string,
	group string,
	upstreamURL string,
	checkInterval time.Duration,
	logger *slog.Logger,
	extraOpts ...dephealth.Option,
) (*DephealthService, error) {
	parsed, err := url.Parse(upstreamURL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("некорректный URL upstream API %q", upstreamURL)
	}

	depOpts := []dephealth.DependencyOption{
		dephealth.FromURL(upstreamURL),
		dephealth.CheckInterval(checkInterval),
		dephealth.Critical(false),
	}
	if parsed.Scheme == "https" {
		depOpts = append(depOpts, dephealth.WithHTTPTLSSkipVerify(false))
	}

	opts := make([]dephealth.Option, 0, 2+len(extraOpts))
	opts = append(opts,
		dephealth.WithLogger(logger),
		dephealth.HTTP(UpstreamDependencyName, depOpts...),
	)
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(serviceID, group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг upstream API запущен")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг upstream API остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
