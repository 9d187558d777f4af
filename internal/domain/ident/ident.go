// Пакет ident — выдача идентификаторов моделей и построение имён файлов
// для хранения на диске.
// Формат имени: {id}_{sanitized_name}{.ext}
// Пример: 3f0c...-9a1b_Tower_A.ifc
package ident

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// defaultBaseName — имя, если после очистки от исходного ничего не осталось.
const defaultBaseName = "model"

// maxBaseNameLen — ограничение длины очищенного имени для предотвращения проблем с FS.
const maxBaseNameLen = 100

// Allocator выдаёт глобально уникальные идентификаторы без обращения к хранилищу.
type Allocator interface {
	Allocate() string
}

// UUIDAllocator — выдача идентификаторов UUID v4.
type UUIDAllocator struct{}

// Allocate возвращает новый UUID v4 в каноническом виде.
func (UUIDAllocator) Allocate() string {
	return uuid.New().String()
}

// ValidID проверяет, что идентификатор имеет формат UUID.
// Идентификатор входит в имена файлов, поэтому любые другие строки
// (с разделителями пути, "..") отвергаются до обращения к диску.
func ValidID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// DeriveStoredName строит имя файла для хранения из идентификатора
// и оригинального имени. Определена для любой входной строки.
func DeriveStoredName(id, originalName string) string {
	ext := filepath.Ext(originalName)
	base := strings.TrimSuffix(originalName, ext)

	ext = sanitizeExt(ext)
	base = sanitize(base)

	return id + "_" + base + ext
}

// OwnerID извлекает идентификатор владельца из имени файла на диске:
// префикс до первого подчёркивания.
func OwnerID(storedName string) (string, bool) {
	id, _, ok := strings.Cut(storedName, "_")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// sanitize удаляет все символы, кроме латинских букв, цифр, дефиса и подчёркивания.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
		if b.Len() >= maxBaseNameLen {
			break
		}
	}
	if b.Len() == 0 {
		return defaultBaseName
	}
	return b.String()
}

// sanitizeExt приводит расширение к нижнему регистру и оставляет только [a-z0-9].
// Возвращает пустую строку, если после очистки ничего не осталось.
func sanitizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	var b strings.Builder
	for _, r := range ext {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "." + b.String()
}
