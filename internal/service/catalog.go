// Пакет service — бизнес-логика каталога моделей.
// catalog.go — оркестрация загрузки, перечисления и удаления моделей
// поверх двух независимых хранилищ: бинарных файлов и sidecar-метаданных.
//
// Центрального журнала транзакций нет. Каждая операция заново читает
// состояние с диска; записи без бинарного файла (orphan) не показываются.
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/model-catalog/internal/api/middleware"
	"github.com/bigkaa/goartstore/model-catalog/internal/domain/ident"
	"github.com/bigkaa/goartstore/model-catalog/internal/domain/ingest"
	"github.com/bigkaa/goartstore/model-catalog/internal/domain/model"
	"github.com/bigkaa/goartstore/model-catalog/internal/storage/filestore"
	"github.com/bigkaa/goartstore/model-catalog/internal/storage/metastore"
)

// BinaryStore — хранилище бинарных файлов моделей.
type BinaryStore interface {
	Save(id, storedFilename string, r io.Reader) (*filestore.SaveResult, error)
	PathFor(storedFilename string) string
	Exists(path string) bool
	Remove(path string) error
}

// MetadataStore — хранилище sidecar-метаданных моделей.
type MetadataStore interface {
	Save(rec *model.ModelRecord) error
	Load(id string) (*model.ModelRecord, error)
	LoadAll() ([]*model.ModelRecord, []*metastore.CorruptError, error)
	Remove(id string) error
}

// UploadParams — параметры загрузки модели.
type UploadParams struct {
	// Reader — поток данных файла
	Reader io.Reader
	// OriginalName — оригинальное имя файла
	OriginalName string
	// Size — заявленный размер файла (из multipart part)
	Size int64
	// FileCount — количество файлов в запросе
	FileCount int
}

// Catalog — каталог моделей.
type Catalog struct {
	binaries BinaryStore
	meta     MetadataStore
	alloc    ident.Allocator
	limits   ingest.Limits
	now      func() time.Time
	logger   *slog.Logger
}

// NewCatalog создаёт каталог моделей.
func NewCatalog(
	binaries BinaryStore,
	meta MetadataStore,
	limits ingest.Limits,
	logger *slog.Logger,
) *Catalog {
	return &Catalog{
		binaries: binaries,
		meta:     meta,
		alloc:    ident.UUIDAllocator{},
		limits:   limits,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "catalog")),
	}
}

// Limits возвращает лимиты приёма файлов.
func (c *Catalog) Limits() ingest.Limits {
	return c.limits
}

// CreateModel загружает модель в каталог.
//
// Поток:
//  1. Проверка формата, размера и количества файлов
//  2. Выдача id и имени файла на диске
//  3. Запись бинарного файла
//  4. Запись метаданных
//
// Ошибка на шаге 3 не оставляет метаданных. Ошибка на шаге 4 оставляет
// бинарный файл без записи каталога: он не виден в списке и попадает
// в отчёт сверки как orphaned_binary.
func (c *Catalog) CreateModel(ctx context.Context, params UploadParams) (*model.ModelRecord, error) {
	const op = "create"

	// 1. Валидация до любой записи на диск
	if err := c.limits.Validate(params.OriginalName, params.Size, params.FileCount); err != nil {
		reason := string(ingest.ReasonMissingFile)
		var rej *ingest.Rejection
		if errors.As(err, &rej) {
			reason = string(rej.Reason)
		}
		middleware.OperationsTotal.WithLabelValues(op, "rejected").Inc()
		return nil, validationError(op, reason, err)
	}
	if params.Reader == nil {
		middleware.OperationsTotal.WithLabelValues(op, "rejected").Inc()
		return nil, validationError(op, string(ingest.ReasonMissingFile),
			&ingest.Rejection{Reason: ingest.ReasonMissingFile, Message: "файл не передан"})
	}
	if err := ctx.Err(); err != nil {
		return nil, storageError(op, "", err)
	}

	format := ingest.FormatOf(params.OriginalName)
	mimeType, _ := ingest.MIMEType(format)

	// 2. Идентификатор и имя файла
	id := c.alloc.Allocate()
	storedName := ident.DeriveStoredName(id, params.OriginalName)

	// 3. Бинарный файл. Поток ограничен лимитом +1 байт, чтобы обнаружить
	// превышение, если заявленный размер не соответствует данным.
	limited := &io.LimitedReader{R: contextReader{ctx: ctx, r: params.Reader}, N: c.limits.MaxFileSize + 1}
	saved, err := c.binaries.Save(id, storedName, limited)
	if err != nil {
		c.logger.Error("Ошибка сохранения бинарного файла",
			slog.String("model_id", id),
			slog.String("filename", storedName),
			slog.String("error", err.Error()),
		)
		middleware.OperationsTotal.WithLabelValues(op, "error").Inc()
		return nil, storageError(op, id, err)
	}

	if saved.Size > c.limits.MaxFileSize {
		if rmErr := c.binaries.Remove(saved.FullPath); rmErr != nil {
			c.logger.Error("Ошибка удаления файла, превысившего лимит",
				slog.String("model_id", id),
				slog.String("path", saved.FullPath),
				slog.String("error", rmErr.Error()),
			)
		}
		middleware.OperationsTotal.WithLabelValues(op, "rejected").Inc()
		return nil, validationError(op, string(ingest.ReasonFileTooLarge), &ingest.Rejection{
			Reason:  ingest.ReasonFileTooLarge,
			Message: "размер файла превышает максимально допустимый",
		})
	}

	// 4. Метаданные
	rec := &model.ModelRecord{
		ID:           id,
		OriginalName: params.OriginalName,
		Filename:     saved.Filename,
		MIMEType:     mimeType,
		Size:         saved.Size,
		Format:       format,
		UploadDate:   c.now().UTC(),
		Path:         saved.FullPath,
		URL:          model.PublicURL(saved.Filename),
		Checksum:     saved.Checksum,
	}

	if err := c.meta.Save(rec); err != nil {
		// Компенсирующего удаления нет: бинарный файл остаётся orphan
		c.logger.Error("Ошибка записи метаданных, бинарный файл остался без записи каталога",
			slog.String("model_id", id),
			slog.String("path", saved.FullPath),
			slog.String("error", err.Error()),
		)
		middleware.OperationsTotal.WithLabelValues(op, "error").Inc()
		return nil, storageError(op, id, err)
	}

	middleware.OperationsTotal.WithLabelValues(op, "success").Inc()

	c.logger.Info("Модель загружена",
		slog.String("model_id", id),
		slog.String("original_name", params.OriginalName),
		slog.String("filename", rec.Filename),
		slog.String("format", format),
		slog.Int64("size", rec.Size),
	)

	return rec, nil
}

// ListModels возвращает активные модели, отсортированные по дате загрузки
// (сначала новые). Повреждённые метаданные и записи без бинарного файла
// пропускаются.
func (c *Catalog) ListModels(ctx context.Context) ([]*model.ModelRecord, error) {
	const op = "list"

	if err := ctx.Err(); err != nil {
		return nil, storageError(op, "", err)
	}

	records, corrupt, err := c.meta.LoadAll()
	if err != nil {
		c.logger.Error("Ошибка чтения метаданных", slog.String("error", err.Error()))
		middleware.OperationsTotal.WithLabelValues(op, "error").Inc()
		return nil, storageError(op, "", err)
	}

	for _, ce := range corrupt {
		c.logger.Warn("Пропущен повреждённый файл метаданных",
			slog.String("path", ce.Path),
			slog.String("error", ce.Err.Error()),
		)
		middleware.CorruptMetadataTotal.Inc()
	}

	active := make([]*model.ModelRecord, 0, len(records))
	for _, rec := range records {
		if !c.isActive(rec) {
			middleware.OrphansFilteredTotal.Inc()
			c.logger.Debug("Запись без бинарного файла скрыта",
				slog.String("model_id", rec.ID),
				slog.String("filename", rec.Filename),
			)
			continue
		}
		active = append(active, rec)
	}

	slices.SortStableFunc(active, func(a, b *model.ModelRecord) int {
		if cmp := b.UploadDate.Compare(a.UploadDate); cmp != 0 {
			return cmp
		}
		return strings.Compare(a.ID, b.ID)
	})

	middleware.OperationsTotal.WithLabelValues(op, "success").Inc()
	return active, nil
}

// GetModel возвращает активную модель по идентификатору.
func (c *Catalog) GetModel(ctx context.Context, id string) (*model.ModelRecord, error) {
	const op = "get"

	if err := ctx.Err(); err != nil {
		return nil, storageError(op, id, err)
	}

	rec, err := c.load(op, id)
	if err != nil {
		return nil, err
	}

	if !c.isActive(rec) {
		return nil, notFoundError(op, id)
	}
	return rec, nil
}

// DeleteModel удаляет модель: сначала бинарный файл, затем метаданные.
// Если метаданных нет — KindNotFound, бинарное хранилище не затрагивается.
func (c *Catalog) DeleteModel(ctx context.Context, id string) error {
	const op = "delete"

	if err := ctx.Err(); err != nil {
		return storageError(op, id, err)
	}

	rec, err := c.load(op, id)
	if err != nil {
		if IsKind(err, KindNotFound) {
			middleware.OperationsTotal.WithLabelValues(op, "not_found").Inc()
		}
		return err
	}

	if path, ok := c.binaryPath(rec); ok {
		if err := c.binaries.Remove(path); err != nil {
			c.logger.Error("Ошибка удаления бинарного файла",
				slog.String("model_id", id),
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			middleware.OperationsTotal.WithLabelValues(op, "error").Inc()
			return storageError(op, id, err)
		}
	} else {
		c.logger.Warn("Недопустимое имя файла в метаданных, удаляются только метаданные",
			slog.String("model_id", id),
			slog.String("filename", rec.Filename),
		)
	}

	if err := c.meta.Remove(id); err != nil {
		c.logger.Error("Ошибка удаления метаданных (бинарный файл уже удалён)",
			slog.String("model_id", id),
			slog.String("error", err.Error()),
		)
		middleware.OperationsTotal.WithLabelValues(op, "error").Inc()
		return storageError(op, id, err)
	}

	middleware.OperationsTotal.WithLabelValues(op, "success").Inc()
	c.logger.Info("Модель удалена",
		slog.String("model_id", id),
		slog.String("filename", rec.Filename),
	)
	return nil
}

// load читает метаданные и переводит ошибки хранилища в ошибки каталога.
func (c *Catalog) load(op, id string) (*model.ModelRecord, error) {
	rec, err := c.meta.Load(id)
	if err == nil {
		return rec, nil
	}

	if errors.Is(err, metastore.ErrNotFound) {
		return nil, notFoundError(op, id)
	}

	var ce *metastore.CorruptError
	if errors.As(err, &ce) {
		c.logger.Warn("Повреждённый файл метаданных",
			slog.String("model_id", id),
			slog.String("path", ce.Path),
			slog.String("error", ce.Err.Error()),
		)
		middleware.CorruptMetadataTotal.Inc()
		return nil, &Error{Kind: KindCorruptMetadata, Op: op, ID: id, Err: err}
	}

	middleware.OperationsTotal.WithLabelValues(op, "error").Inc()
	return nil, storageError(op, id, err)
}

// isActive проверяет наличие бинарного файла записи.
func (c *Catalog) isActive(rec *model.ModelRecord) bool {
	path, ok := c.binaryPath(rec)
	return ok && c.binaries.Exists(path)
}

// binaryPath вычисляет путь бинарного файла по имени из записи.
// Поле Path не используется: имя файла — единственная привязка к директории контента.
func (c *Catalog) binaryPath(rec *model.ModelRecord) (string, bool) {
	name := rec.Filename
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return "", false
	}
	return c.binaries.PathFor(name), true
}

// contextReader прерывает чтение при отмене контекста запроса.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
