// Пакет ingest — политика приёма загружаемых моделей.
// Белый список форматов (расширение → канонический MIME-тип) и лимиты
// на размер файла и количество файлов в одном запросе.
// Все функции чистые: без побочных эффектов и без обращения к диску.
package ingest

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// DefaultMaxFileSize — максимальный размер одного файла (100 MiB).
	DefaultMaxFileSize int64 = 100 * 1024 * 1024
	// DefaultMaxFiles — максимальное количество файлов в одном запросе.
	DefaultMaxFiles = 5
)

// formats — белый список форматов BIM/CAD/3D.
// Изменять только вместе с OpenAPI-контрактом (/api/upload/formats).
var formats = map[string]string{
	".ifc":  "model/ifc",
	".obj":  "model/obj",
	".fbx":  "model/fbx",
	".dae":  "model/dae",
	".3dm":  "model/3dm",
	".rvt":  "application/revit",
	".dwg":  "application/dwg",
	".dxf":  "application/dxf",
	".step": "model/step",
	".stp":  "model/step",
	".iges": "model/iges",
	".igs":  "model/iges",
	".gltf": "model/gltf+json",
	".glb":  "model/gltf-binary",
}

// Reason — машиночитаемая причина отказа в приёме файла.
type Reason string

const (
	ReasonMissingFile       Reason = "missing_file"
	ReasonUnsupportedFormat Reason = "unsupported_format"
	ReasonFileTooLarge      Reason = "file_too_large"
	ReasonTooManyFiles      Reason = "too_many_files"
)

// Rejection — отказ в приёме файла.
type Rejection struct {
	Reason  Reason
	Message string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Reason, r.Message)
}

// Limits — лимиты на один запрос загрузки.
type Limits struct {
	// MaxFileSize — максимальный размер файла в байтах
	MaxFileSize int64
	// MaxFiles — максимальное количество файлов в запросе
	MaxFiles int
}

// DefaultLimits возвращает лимиты по умолчанию (100 MiB, 5 файлов).
func DefaultLimits() Limits {
	return Limits{MaxFileSize: DefaultMaxFileSize, MaxFiles: DefaultMaxFiles}
}

// Formats возвращает копию белого списка: расширение → MIME-тип.
func Formats() map[string]string {
	out := make(map[string]string, len(formats))
	for ext, mime := range formats {
		out[ext] = mime
	}
	return out
}

// Extensions возвращает отсортированный список поддерживаемых расширений.
func Extensions() []string {
	exts := make([]string, 0, len(formats))
	for ext := range formats {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// FormatOf возвращает расширение файла в нижнем регистре с ведущей точкой.
// Для имени без расширения возвращает пустую строку.
func FormatOf(fileName string) string {
	return strings.ToLower(filepath.Ext(fileName))
}

// MIMEType возвращает канонический MIME-тип для расширения из белого списка.
func MIMEType(ext string) (string, bool) {
	mime, ok := formats[strings.ToLower(ext)]
	return mime, ok
}

// Validate проверяет имя файла, заявленный размер и количество файлов
// в запросе. Возвращает *Rejection или nil.
//
// Порядок проверок: наличие файла, количество, формат, размер.
func (l Limits) Validate(fileName string, sizeBytes int64, fileCount int) error {
	if fileCount < 1 || strings.TrimSpace(fileName) == "" {
		return &Rejection{Reason: ReasonMissingFile, Message: "файл не передан"}
	}

	if fileCount > l.MaxFiles {
		return &Rejection{
			Reason:  ReasonTooManyFiles,
			Message: fmt.Sprintf("передано %d файлов, максимум %d", fileCount, l.MaxFiles),
		}
	}

	ext := FormatOf(fileName)
	if _, ok := formats[ext]; !ok {
		return &Rejection{
			Reason: ReasonUnsupportedFormat,
			Message: fmt.Sprintf("неподдерживаемый формат %q, допустимые: %s",
				ext, strings.Join(Extensions(), ", ")),
		}
	}

	if sizeBytes > l.MaxFileSize {
		return &Rejection{
			Reason:  ReasonFileTooLarge,
			Message: fmt.Sprintf("размер файла %d байт превышает максимум %d байт", sizeBytes, l.MaxFileSize),
		}
	}

	return nil
}
