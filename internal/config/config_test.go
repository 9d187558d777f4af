package config

import (
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// allKeys — все переменные окружения каталога моделей.
var allKeys = []string{
	"MC_PORT", "MC_UPLOADS_DIR", "MC_MAX_FILE_SIZE", "MC_MAX_FILES",
	"MC_CLIENT_URL", "MC_LOG_LEVEL", "MC_LOG_FORMAT", "MC_RECONCILE_INTERVAL",
	"MC_UPSTREAM_URL", "MC_DEPHEALTH_CHECK_INTERVAL", "MC_SERVICE_ID",
	"MC_DEPHEALTH_GROUP", "MC_SHUTDOWN_TIMEOUT", "MC_TLS_CERT", "MC_TLS_KEY",
	"POD_NAME",
}

// clearEnv сбрасывает все MC_* переменные на время теста.
// Пустое значение трактуется как «не задано».
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 5000 {
		t.Errorf("Port: ожидалось 5000, получено %d", cfg.Port)
	}
	if cfg.UploadsDir != "./uploads" {
		t.Errorf("UploadsDir: ожидалось ./uploads, получено %s", cfg.UploadsDir)
	}
	if cfg.MaxFileSize != 104857600 {
		t.Errorf("MaxFileSize: ожидалось 104857600, получено %d", cfg.MaxFileSize)
	}
	if cfg.MaxFiles != 5 {
		t.Errorf("MaxFiles: ожидалось 5, получено %d", cfg.MaxFiles)
	}
	if cfg.ClientURL != "http://localhost:3000" {
		t.Errorf("ClientURL: получено %s", cfg.ClientURL)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel: ожидалось INFO, получено %v", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat: ожидалось json, получено %s", cfg.LogFormat)
	}
	if cfg.ReconcileInterval != 0 {
		t.Errorf("ReconcileInterval: ожидалось 0, получено %v", cfg.ReconcileInterval)
	}
	if cfg.DephealthCheckInterval != 15*time.Second {
		t.Errorf("DephealthCheckInterval: ожидалось 15s, получено %v", cfg.DephealthCheckInterval)
	}
	if cfg.ServiceID != "model-catalog" || cfg.DephealthGroup != "bim-viewer" {
		t.Errorf("ServiceID/DephealthGroup: получено %s/%s", cfg.ServiceID, cfg.DephealthGroup)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout: ожидалось 10s, получено %v", cfg.ShutdownTimeout)
	}
	if cfg.TLSEnabled() {
		t.Error("TLS не должен быть включён по умолчанию")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("MC_PORT", "8080")
	t.Setenv("MC_UPLOADS_DIR", "/data/uploads")
	t.Setenv("MC_MAX_FILE_SIZE", "1024")
	t.Setenv("MC_MAX_FILES", "2")
	t.Setenv("MC_LOG_LEVEL", "debug")
	t.Setenv("MC_LOG_FORMAT", "text")
	t.Setenv("MC_RECONCILE_INTERVAL", "1h")
	t.Setenv("MC_UPSTREAM_URL", "https://bim.example.com/api")
	t.Setenv("MC_TLS_CERT", "/tls/cert.pem")
	t.Setenv("MC_TLS_KEY", "/tls/key.pem")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port: ожидалось 8080, получено %d", cfg.Port)
	}
	if cfg.ContentDir() != filepath.Join("/data/uploads", "models") {
		t.Errorf("ContentDir: получено %s", cfg.ContentDir())
	}
	if cfg.MetadataDir() != filepath.Join("/data/uploads", "metadata") {
		t.Errorf("MetadataDir: получено %s", cfg.MetadataDir())
	}
	limits := cfg.Limits()
	if limits.MaxFileSize != 1024 || limits.MaxFiles != 2 {
		t.Errorf("Limits: получено %+v", limits)
	}
	if cfg.LogLevel != slog.LevelDebug || cfg.LogFormat != "text" {
		t.Errorf("LogLevel/LogFormat: получено %v/%s", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.ReconcileInterval != time.Hour {
		t.Errorf("ReconcileInterval: ожидалось 1h, получено %v", cfg.ReconcileInterval)
	}
	if cfg.UpstreamURL != "https://bim.example.com/api" {
		t.Errorf("UpstreamURL: получено %s", cfg.UpstreamURL)
	}
	if !cfg.TLSEnabled() {
		t.Error("TLS должен быть включён")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"порт не число", "MC_PORT", "abc", "MC_PORT"},
		{"порт вне диапазона", "MC_PORT", "70000", "MC_PORT"},
		{"нулевой размер файла", "MC_MAX_FILE_SIZE", "0", "MC_MAX_FILE_SIZE"},
		{"отрицательное число файлов", "MC_MAX_FILES", "-1", "MC_MAX_FILES"},
		{"размер файла выше максимума", "MC_MAX_FILE_SIZE", "9223372036854775807", "MC_MAX_FILE_SIZE"},
		{"число файлов выше максимума", "MC_MAX_FILES", "101", "MC_MAX_FILES"},
		{"неизвестный уровень логов", "MC_LOG_LEVEL", "verbose", "MC_LOG_LEVEL"},
		{"неизвестный формат логов", "MC_LOG_FORMAT", "xml", "MC_LOG_FORMAT"},
		{"некорректный интервал", "MC_RECONCILE_INTERVAL", "often", "MC_RECONCILE_INTERVAL"},
		{"отрицательный интервал", "MC_RECONCILE_INTERVAL", "-1m", "MC_RECONCILE_INTERVAL"},
		{"upstream без схемы", "MC_UPSTREAM_URL", "bim.example.com", "MC_UPSTREAM_URL"},
		{"сертификат без ключа", "MC_TLS_CERT", "/tls/cert.pem", "MC_TLS_CERT"},
		{"некорректный таймаут", "MC_SHUTDOWN_TIMEOUT", "10", "MC_SHUTDOWN_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			if err == nil {
				t.Fatalf("ожидалась ошибка для %s=%q", tt.key, tt.value)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ошибка должна упоминать %s: %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := parseLogLevel(tt.input)
		if err != nil {
			t.Errorf("parseLogLevel(%q): ошибка %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, ожидалось %v", tt.input, got, tt.want)
		}
	}
}

func TestLoad_ServiceIDFromPodName(t *testing.T) {
	clearEnv(t)
	t.Setenv("POD_NAME", "model-catalog-blue-7d8f9b6c4f-x2k9z")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.ServiceID != "model-catalog-blue" {
		t.Errorf("ServiceID: ожидалось model-catalog-blue, получено %s", cfg.ServiceID)
	}

	// Явное значение имеет приоритет
	t.Setenv("MC_SERVICE_ID", "catalog-1")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.ServiceID != "catalog-1" {
		t.Errorf("ServiceID: ожидалось catalog-1, получено %s", cfg.ServiceID)
	}
}

func TestParseOwnerName(t *testing.T) {
	tests := []struct {
		name    string
		podName string
		want    string
	}{
		{"Deployment", "model-catalog-7d8f9b6c4f-x2k9z", "model-catalog"},
		{"Deployment с длинным именем", "model-catalog-eu-01-5fbcd8d7b9-k4m2j", "model-catalog-eu-01"},
		{"StatefulSet, ordinal 0", "catalog-sts-0", "catalog-sts"},
		{"StatefulSet, ordinal 42", "catalog-sts-42", "catalog-sts"},
		{"Простое имя", "model-catalog", "model-catalog"},
		{"localhost", "localhost", "localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseOwnerName(tt.podName); got != tt.want {
				t.Errorf("parseOwnerName(%q) = %q, ожидалось %q", tt.podName, got, tt.want)
			}
		})
	}
}
