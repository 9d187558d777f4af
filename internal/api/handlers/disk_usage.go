// disk_usage.go — ёмкость диска под хранилищем моделей.
// Платформозависимый код для Unix-подобных систем.
package handlers

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// diskUsage — ёмкость файловой системы в байтах.
type diskUsage struct {
	Total     int64 `json:"total"`
	Used      int64 `json:"used"`
	Available int64 `json:"available"`
}

// getDiskUsage возвращает ёмкость файловой системы, на которой лежит path.
// Если path ещё не создан, используется ближайший существующий родитель.
func getDiskUsage(path string) (*diskUsage, error) {
	dir := path
	for {
		if _, err := os.Stat(dir); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		return nil, fmt.Errorf("ошибка statfs %s: %w", dir, err)
	}

	total := int64(stat.Blocks) * int64(stat.Bsize)
	available := int64(stat.Bavail) * int64(stat.Bsize)
	return &diskUsage{
		Total:     total,
		Used:      total - available,
		Available: available,
	}, nil
}
