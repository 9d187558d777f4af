// reconcile.go — сверка бинарных файлов и sidecar-метаданных.
//
// Сверка только формирует отчёт и ничего не исправляет:
//   - orphaned_binary: бинарный файл, которому не соответствует ни одна запись
//   - orphaned_metadata: запись метаданных без бинарного файла
//   - corrupt_metadata: файл метаданных не удалось разобрать
//   - size_mismatch: размер на диске не совпадает с записью
//   - checksum_mismatch: SHA-256 на диске не совпадает с записью
//
// Периодический запуск включается MC_RECONCILE_INTERVAL.
package service

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/model-catalog/internal/domain/ident"
	"github.com/bigkaa/goartstore/model-catalog/internal/domain/model"
	"github.com/bigkaa/goartstore/model-catalog/internal/storage/filestore"
	"github.com/bigkaa/goartstore/model-catalog/internal/storage/metastore"
)

// Prometheus метрики сверки
var (
	reconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mc_reconcile_runs_total",
		Help: "Общее количество запусков сверки",
	})

	reconcileIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mc_reconcile_issues_total",
		Help: "Общее количество проблем, обнаруженных сверкой",
	}, []string{"type"})

	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mc_reconcile_duration_seconds",
		Help:    "Длительность сверки в секундах",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// IssueType — тип проблемы, обнаруженной сверкой.
type IssueType string

const (
	IssueOrphanedBinary   IssueType = "orphaned_binary"
	IssueOrphanedMetadata IssueType = "orphaned_metadata"
	IssueCorruptMetadata  IssueType = "corrupt_metadata"
	IssueSizeMismatch     IssueType = "size_mismatch"
	IssueChecksumMismatch IssueType = "checksum_mismatch"
)

// Issue — одна обнаруженная проблема.
type Issue struct {
	Type        IssueType `json:"type"`
	ModelID     string    `json:"modelId,omitempty"`
	Path        string    `json:"path"`
	Description string    `json:"description"`
}

// Summary — количество проблем по типам.
type Summary struct {
	OK                 int `json:"ok"`
	OrphanedBinaries   int `json:"orphanedBinaries"`
	OrphanedMetadata   int `json:"orphanedMetadata"`
	CorruptMetadata    int `json:"corruptMetadata"`
	SizeMismatches     int `json:"sizeMismatches"`
	ChecksumMismatches int `json:"checksumMismatches"`
}

// Report — результат одного цикла сверки.
type Report struct {
	StartedAt       time.Time `json:"startedAt"`
	CompletedAt     time.Time `json:"completedAt"`
	BinariesChecked int       `json:"binariesChecked"`
	RecordsChecked  int       `json:"recordsChecked"`
	Issues          []Issue   `json:"issues"`
	Summary         Summary   `json:"summary"`
}

// ReconcileService — сервис сверки хранилищ.
type ReconcileService struct {
	binaries *filestore.FileStore
	meta     *metastore.Store
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex // защита от параллельного запуска
	inProcess bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewReconcileService создаёт сервис сверки.
func NewReconcileService(
	binaries *filestore.FileStore,
	meta *metastore.Store,
	interval time.Duration,
	logger *slog.Logger,
) *ReconcileService {
	return &ReconcileService{
		binaries: binaries,
		meta:     meta,
		interval: interval,
		logger:   logger.With(slog.String("component", "reconcile")),
	}
}

// Start запускает периодическую сверку. При interval <= 0 ничего не делает.
func (rs *ReconcileService) Start(ctx context.Context) {
	if rs.interval <= 0 {
		return
	}

	rsCtx, cancel := context.WithCancel(ctx)
	rs.cancel = cancel
	rs.done = make(chan struct{})

	go rs.run(rsCtx)

	rs.logger.Info("Периодическая сверка запущена",
		slog.String("interval", rs.interval.String()),
	)
}

// Stop останавливает периодическую сверку и дожидается завершения горутины.
func (rs *ReconcileService) Stop() {
	if rs.cancel == nil {
		return
	}
	rs.cancel()
	<-rs.done
	rs.logger.Info("Периодическая сверка остановлена")
}

// IsInProgress возвращает true, если сверка выполняется.
func (rs *ReconcileService) IsInProgress() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.inProcess
}

func (rs *ReconcileService) run(ctx context.Context) {
	defer close(rs.done)

	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rs.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один цикл сверки.
// Если сверка уже выполняется, возвращает nil, true.
func (rs *ReconcileService) RunOnce(ctx context.Context) (*Report, bool) {
	rs.mu.Lock()
	if rs.inProcess {
		rs.mu.Unlock()
		rs.logger.Warn("Сверка уже выполняется, пропуск")
		return nil, true
	}
	rs.inProcess = true
	rs.mu.Unlock()

	defer func() {
		rs.mu.Lock()
		rs.inProcess = false
		rs.mu.Unlock()
	}()

	report := &Report{StartedAt: time.Now().UTC()}
	rs.logger.Info("Сверка начата")

	rs.reconcile(ctx, report)

	report.CompletedAt = time.Now().UTC()
	duration := report.CompletedAt.Sub(report.StartedAt)

	for _, issue := range report.Issues {
		switch issue.Type {
		case IssueOrphanedBinary:
			report.Summary.OrphanedBinaries++
		case IssueOrphanedMetadata:
			report.Summary.OrphanedMetadata++
		case IssueCorruptMetadata:
			report.Summary.CorruptMetadata++
		case IssueSizeMismatch:
			report.Summary.SizeMismatches++
		case IssueChecksumMismatch:
			report.Summary.ChecksumMismatches++
		}
		reconcileIssuesTotal.WithLabelValues(string(issue.Type)).Inc()
	}
	report.Summary.OK = max(report.RecordsChecked-
		report.Summary.OrphanedMetadata-
		report.Summary.SizeMismatches-
		report.Summary.ChecksumMismatches, 0)

	reconcileRunsTotal.Inc()
	reconcileDurationSeconds.Observe(duration.Seconds())

	rs.logger.Info("Сверка завершена",
		slog.Int("binaries_checked", report.BinariesChecked),
		slog.Int("records_checked", report.RecordsChecked),
		slog.Int("issues", len(report.Issues)),
		slog.Duration("duration", duration),
	)

	return report, false
}

// reconcile заполняет отчёт. Ошибки чтения директорий логируются,
// сверка продолжается по доступным данным.
func (rs *ReconcileService) reconcile(ctx context.Context, report *Report) {
	report.Issues = []Issue{}

	records, corrupt, err := rs.meta.LoadAll()
	if err != nil {
		rs.logger.Error("Ошибка чтения директории метаданных",
			slog.String("error", err.Error()),
		)
	}

	binaries, err := rs.binaries.List()
	if err != nil {
		rs.logger.Error("Ошибка чтения директории контента",
			slog.String("error", err.Error()),
		)
	}

	report.RecordsChecked = len(records)
	report.BinariesChecked = len(binaries)

	byID := make(map[string]*model.ModelRecord, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}

	// Идентификаторы с повреждёнными метаданными: их бинарные файлы
	// не считаются orphan, проблема уже учтена как corrupt_metadata.
	corruptIDs := make(map[string]bool, len(corrupt))
	for _, ce := range corrupt {
		id := strings.TrimSuffix(filepath.Base(ce.Path), metastore.Suffix)
		corruptIDs[id] = true
		report.Issues = append(report.Issues, Issue{
			Type:        IssueCorruptMetadata,
			ModelID:     id,
			Path:        ce.Path,
			Description: "Файл метаданных не удалось разобрать: " + ce.Err.Error(),
		})
	}

	// 1. Бинарные файлы без записи
	present := make(map[string]bool, len(binaries))
	for _, name := range binaries {
		present[name] = true

		id, ok := ident.OwnerID(name)
		if ok && corruptIDs[id] {
			continue
		}
		if rec, found := byID[id]; ok && found && rec.Filename == name {
			continue
		}
		report.Issues = append(report.Issues, Issue{
			Type:        IssueOrphanedBinary,
			ModelID:     id,
			Path:        rs.binaries.PathFor(name),
			Description: "Бинарный файл без записи метаданных",
		})
	}

	// 2. Записи: наличие, размер и checksum бинарного файла
	for _, rec := range records {
		if ctx.Err() != nil {
			rs.logger.Warn("Сверка прервана", slog.String("error", ctx.Err().Error()))
			break
		}

		path := rs.binaries.PathFor(rec.Filename)
		if !present[rec.Filename] {
			report.Issues = append(report.Issues, Issue{
				Type:        IssueOrphanedMetadata,
				ModelID:     rec.ID,
				Path:        path,
				Description: "Запись метаданных без бинарного файла",
			})
			continue
		}

		size, err := rs.binaries.Size(path)
		if err != nil {
			rs.logger.Warn("Ошибка получения размера файла",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		if size != rec.Size {
			report.Issues = append(report.Issues, Issue{
				Type:        IssueSizeMismatch,
				ModelID:     rec.ID,
				Path:        path,
				Description: "Размер файла на диске не совпадает с записью метаданных",
			})
			continue
		}

		// Записи без checksum проверяются только по размеру
		if rec.Checksum == "" {
			continue
		}
		sum, err := rs.binaries.Checksum(path)
		if err != nil {
			rs.logger.Warn("Ошибка вычисления checksum",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		if sum != rec.Checksum {
			report.Issues = append(report.Issues, Issue{
				Type:        IssueChecksumMismatch,
				ModelID:     rec.ID,
				Path:        path,
				Description: "Checksum файла на диске не совпадает с записью метаданных",
			})
		}
	}

	sort.SliceStable(report.Issues, func(i, j int) bool {
		if report.Issues[i].Type != report.Issues[j].Type {
			return report.Issues[i].Type < report.Issues[j].Type
		}
		return report.Issues[i].Path < report.Issues[j].Path
	})
}
