// Пакет config — загрузка и валидация конфигурации каталога моделей
// из переменных окружения (и необязательного файла .env).
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/bigkaa/goartstore/model-catalog/internal/domain/ingest"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Верхние границы лимитов загрузки.
const (
	maxFileSizeLimit int64 = 64 << 30 // 64 GiB
	maxFilesLimit          = 100
)

// Имена поддиректорий внутри MC_UPLOADS_DIR.
const (
	contentSubdir  = "models"
	metadataSubdir = "metadata"
)

// Config содержит все параметры конфигурации каталога моделей.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Корневая директория загрузок (models/ и metadata/ внутри)
	UploadsDir string
	// Максимальный размер файла в байтах
	MaxFileSize int64
	// Максимальное количество файлов в одном запросе
	MaxFiles int
	// Origin клиента просмотрщика для CORS
	ClientURL string
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Интервал периодической сверки (0 — отключена)
	ReconcileInterval time.Duration
	// URL внешнего API хостинга моделей (опционально)
	UpstreamURL string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя сервиса в метриках topologymetrics
	ServiceID string
	// Имя группы в метриках topologymetrics
	DephealthGroup string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
	// Пути к TLS сертификату и ключу (оба или ни одного)
	TLSCert string
	TLSKey  string
}

// Load загружает конфигурацию из переменных окружения, валидирует
// значения и возвращает Config или ошибку.
// Файл .env в текущей директории загружается, если существует;
// уже заданные переменные окружения он не перекрывает.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf(".env: %w", err)
	}

	cfg := &Config{}

	// MC_PORT — порт HTTP-сервера (по умолчанию 5000)
	port, err := getEnvInt("MC_PORT", 5000)
	if err != nil {
		return nil, fmt.Errorf("MC_PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("MC_PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	// MC_UPLOADS_DIR — корневая директория загрузок (по умолчанию ./uploads)
	cfg.UploadsDir = getEnvDefault("MC_UPLOADS_DIR", "./uploads")

	// MC_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 100 MiB)
	cfg.MaxFileSize, err = getEnvInt64("MC_MAX_FILE_SIZE", ingest.DefaultMaxFileSize)
	if err != nil {
		return nil, fmt.Errorf("MC_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("MC_MAX_FILE_SIZE: значение должно быть положительным")
	}
	if cfg.MaxFileSize > maxFileSizeLimit {
		return nil, fmt.Errorf("MC_MAX_FILE_SIZE: значение %d превышает допустимый максимум %d", cfg.MaxFileSize, maxFileSizeLimit)
	}

	// MC_MAX_FILES — максимальное количество файлов в запросе (по умолчанию 5)
	cfg.MaxFiles, err = getEnvInt("MC_MAX_FILES", ingest.DefaultMaxFiles)
	if err != nil {
		return nil, fmt.Errorf("MC_MAX_FILES: %w", err)
	}
	if cfg.MaxFiles <= 0 {
		return nil, fmt.Errorf("MC_MAX_FILES: значение должно быть положительным")
	}
	if cfg.MaxFiles > maxFilesLimit {
		return nil, fmt.Errorf("MC_MAX_FILES: значение %d превышает допустимый максимум %d", cfg.MaxFiles, maxFilesLimit)
	}

	// MC_CLIENT_URL — origin клиента (по умолчанию http://localhost:3000)
	cfg.ClientURL = getEnvDefault("MC_CLIENT_URL", "http://localhost:3000")

	// MC_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("MC_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("MC_LOG_LEVEL: %w", err)
	}

	// MC_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("MC_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("MC_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// MC_RECONCILE_INTERVAL — интервал сверки (по умолчанию отключена)
	cfg.ReconcileInterval, err = getEnvDuration("MC_RECONCILE_INTERVAL", 0)
	if err != nil {
		return nil, fmt.Errorf("MC_RECONCILE_INTERVAL: %w", err)
	}
	if cfg.ReconcileInterval < 0 {
		return nil, fmt.Errorf("MC_RECONCILE_INTERVAL: значение не может быть отрицательным")
	}

	// MC_UPSTREAM_URL — URL внешнего API (опционально)
	cfg.UpstreamURL = getEnvDefault("MC_UPSTREAM_URL", "")
	if cfg.UpstreamURL != "" {
		u, parseErr := url.Parse(cfg.UpstreamURL)
		if parseErr != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("MC_UPSTREAM_URL: некорректный URL %q", cfg.UpstreamURL)
		}
	}

	// MC_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("MC_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MC_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// MC_SERVICE_ID — имя сервиса в метриках topologymetrics.
	// Если не задано, выводится из POD_NAME (Kubernetes), иначе model-catalog.
	cfg.ServiceID = os.Getenv("MC_SERVICE_ID")
	if cfg.ServiceID == "" {
		cfg.ServiceID = "model-catalog"
		if pod := os.Getenv("POD_NAME"); pod != "" {
			cfg.ServiceID = parseOwnerName(pod)
		}
	}
	cfg.DephealthGroup = getEnvDefault("MC_DEPHEALTH_GROUP", "bim-viewer")

	// MC_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 10s)
	cfg.ShutdownTimeout, err = getEnvDuration("MC_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MC_SHUTDOWN_TIMEOUT: %w", err)
	}

	// MC_TLS_CERT / MC_TLS_KEY — задаются парой
	cfg.TLSCert = getEnvDefault("MC_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("MC_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("MC_TLS_CERT и MC_TLS_KEY должны быть заданы вместе")
	}

	return cfg, nil
}

// ContentDir возвращает директорию бинарных файлов моделей.
func (c *Config) ContentDir() string {
	return filepath.Join(c.UploadsDir, contentSubdir)
}

// MetadataDir возвращает директорию sidecar-метаданных.
func (c *Config) MetadataDir() string {
	return filepath.Join(c.UploadsDir, metadataSubdir)
}

// Limits возвращает лимиты приёма файлов.
func (c *Config) Limits() ingest.Limits {
	return ingest.Limits{MaxFileSize: c.MaxFileSize, MaxFiles: c.MaxFiles}
}

// TLSEnabled — заданы ли сертификат и ключ.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	return SetupLoggerTo(cfg, os.Stdout)
}

// SetupLoggerTo — как SetupLogger, но с записью в w.
// CLI-команды пишут логи в stderr, чтобы не смешивать их с выводом.
func SetupLoggerTo(cfg *Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
}

// parseOwnerName извлекает имя владельца пода (Deployment или StatefulSet)
// из имени пода. Deployment: <name>-<replicaset-hash>-<pod-hash>,
// StatefulSet: <name>-<ordinal>. Иначе имя возвращается без изменений.
func parseOwnerName(podName string) string {
	parts := strings.Split(podName, "-")
	n := len(parts)

	if n >= 3 && isPodHash(parts[n-1], 5) && isPodHash(parts[n-2], 0) {
		return strings.Join(parts[:n-2], "-")
	}
	if n >= 2 {
		if _, err := strconv.Atoi(parts[n-1]); err == nil {
			return strings.Join(parts[:n-1], "-")
		}
	}
	return podName
}

// isPodHash — суффикс, сгенерированный Kubernetes: строчные буквы и цифры.
// length == 0 — длина от 6 до 10 символов (хеш ReplicaSet).
func isPodHash(s string, length int) bool {
	if length > 0 && len(s) != length {
		return false
	}
	if length == 0 && (len(s) < 6 || len(s) > 10) {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
