// Пакет model — доменные модели каталога 3D-моделей.
// ModelRecord — единая структура записи каталога, используется
// как in-memory представление, как формат sidecar-файла метаданных
// на диске и как тело API-ответа.
package model

import (
	"time"
)

// ModelRecord — запись каталога о загруженной модели.
// Запись неизменяема после создания: допускаются только полное
// создание и полное удаление.
type ModelRecord struct {
	// ID — уникальный идентификатор модели (UUID v4), не переиспользуется
	ID string `json:"id"`

	// OriginalName — имя файла при загрузке, хранится без изменений
	OriginalName string `json:"originalName"`

	// Filename — имя файла на диске: {id}_{sanitized}{.ext}
	Filename string `json:"filename"`

	// MIMEType — MIME-тип из белого списка форматов
	MIMEType string `json:"mimetype"`

	// Size — размер сохранённого файла в байтах
	Size int64 `json:"size"`

	// Format — расширение в нижнем регистре с ведущей точкой
	Format string `json:"format"`

	// UploadDate — время создания записи (UTC)
	UploadDate time.Time `json:"uploadDate"`

	// Path — абсолютный путь файла на сервере
	Path string `json:"path"`

	// URL — относительный путь для клиента
	URL string `json:"url"`

	// Checksum — SHA-256 содержимого файла
	Checksum string `json:"checksum,omitempty"`
}

// PublicURLPrefix — префикс клиентских URL бинарных файлов.
const PublicURLPrefix = "/uploads/models/"

// PublicURL возвращает клиентский путь для имени файла на диске.
func PublicURL(filename string) string {
	return PublicURLPrefix + filename
}
