// health.go — обработчик GET /api/health.
package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const (
	statusOK       = "ok"
	statusFail     = "fail"
	statusDegraded = "degraded"
)

// DependencyHealth — источник состояния внешних зависимостей.
// Ключ — имя зависимости, значение — true если ok.
type DependencyHealth interface {
	Health() map[string]bool
}

// HealthHandler реализует /api/health.
type HealthHandler struct {
	version   string
	startedAt time.Time
	// contentDir и metadataDir проверяются на доступность записи
	contentDir  string
	metadataDir string
	// deps — мониторинг upstream API (nil, если не настроен)
	deps DependencyHealth
}

// NewHealthHandler создаёт обработчик health endpoint.
func NewHealthHandler(version, contentDir, metadataDir string, deps DependencyHealth) *HealthHandler {
	return &HealthHandler{
		version:     version,
		startedAt:   time.Now(),
		contentDir:  contentDir,
		metadataDir: metadataDir,
		deps:        deps,
	}
}

// Health обрабатывает GET /api/health.
// Недоступность хранилища — 503 fail; недоступность upstream — 200 degraded.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	status := statusOK
	httpStatus := http.StatusOK

	checks := map[string]any{
		"content":  checkDir(h.contentDir),
		"metadata": checkDir(h.metadataDir),
	}
	for _, name := range []string{"content", "metadata"} {
		if checks[name].(map[string]any)["status"] != statusOK {
			status = statusFail
			httpStatus = http.StatusServiceUnavailable
		}
	}

	// Ёмкость диска информативна и не влияет на статус
	if h.contentDir != "" {
		if usage, err := getDiskUsage(h.contentDir); err == nil {
			checks["disk"] = usage
		}
	}

	if h.deps != nil {
		deps := h.deps.Health()
		upstream := make(map[string]any, len(deps))
		for key, ok := range deps {
			if ok {
				upstream[key] = statusOK
				continue
			}
			upstream[key] = statusFail
			if status == statusOK {
				status = statusDegraded
			}
		}
		checks["upstream"] = upstream
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.startedAt).Seconds(),
		"version":   h.version,
		"checks":    checks,
	})
}

// checkDir проверяет директорию хранилища. Отсутствующая директория
// допустима: она создаётся при первой записи.
func checkDir(dir string) map[string]any {
	if dir == "" {
		return map[string]any{"status": statusOK, "message": "Проверка не настроена"}
	}

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return map[string]any{"status": statusOK, "message": "Директория будет создана при первой записи"}
	}
	if err != nil {
		return map[string]any{"status": statusFail, "message": "Директория недоступна: " + err.Error()}
	}
	if !info.IsDir() {
		return map[string]any{"status": statusFail, "message": "Путь не является директорией"}
	}

	probe := filepath.Join(dir, ".health_check")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return map[string]any{"status": statusFail, "message": "Директория недоступна для записи: " + err.Error()}
	}
	_ = os.Remove(probe)

	return map[string]any{"status": statusOK}
}
