// models.go — HTTP handlers каталога моделей.
// Загрузка, список форматов, список моделей, получение, удаление
// и выдача бинарного содержимого.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/bigkaa/goartstore/model-catalog/internal/api/errors"
	"github.com/bigkaa/goartstore/model-catalog/internal/domain/ingest"
	"github.com/bigkaa/goartstore/model-catalog/internal/domain/model"
	"github.com/bigkaa/goartstore/model-catalog/internal/service"
)

// UploadField — имя multipart-поля с файлом модели.
const UploadField = "model"

// multipartMemory — объём multipart-данных, удерживаемый в памяти;
// остальное net/http сбрасывает во временные файлы.
const multipartMemory = 32 << 20

// multipartOverhead — запас на заголовки частей multipart сверх лимита файлов.
const multipartOverhead = 1 << 20

// ModelCatalog — операции каталога, используемые HTTP-слоем.
type ModelCatalog interface {
	CreateModel(ctx context.Context, params service.UploadParams) (*model.ModelRecord, error)
	ListModels(ctx context.Context) ([]*model.ModelRecord, error)
	GetModel(ctx context.Context, id string) (*model.ModelRecord, error)
	DeleteModel(ctx context.Context, id string) error
	Limits() ingest.Limits
}

// FileOpener открывает бинарный файл модели по имени на диске.
type FileOpener interface {
	Open(storedFilename string) (*os.File, error)
}

// ModelsHandler — обработчик endpoints каталога моделей.
type ModelsHandler struct {
	catalog ModelCatalog
	files   FileOpener
	logger  *slog.Logger
}

// NewModelsHandler создаёт обработчик endpoints каталога моделей.
func NewModelsHandler(catalog ModelCatalog, files FileOpener, logger *slog.Logger) *ModelsHandler {
	return &ModelsHandler{
		catalog: catalog,
		files:   files,
		logger:  logger.With(slog.String("component", "models_handler")),
	}
}

type uploadResponse struct {
	Message string             `json:"message"`
	File    *model.ModelRecord `json:"file"`
}

type listResponse struct {
	Models []*model.ModelRecord `json:"models"`
}

type formatsResponse struct {
	SupportedFormats map[string]string `json:"supportedFormats"`
	Extensions       []string          `json:"extensions"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// UploadModel обрабатывает POST /api/upload/model.
// Multipart form: model (обязательно). Количество файловых частей во всём
// запросе учитывается при проверке лимита файлов.
func (h *ModelsHandler) UploadModel(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, requestBodyLimit(h.catalog.Limits()))

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.WriteError(w, http.StatusRequestEntityTooLarge, apierrors.CodeFileTooLarge,
				"размер запроса превышает максимально допустимый")
			return
		}
		apierrors.WriteError(w, http.StatusBadRequest, apierrors.CodeMissingFile, "No file uploaded")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	fileCount := 0
	for _, parts := range r.MultipartForm.File {
		fileCount += len(parts)
	}

	params := service.UploadParams{FileCount: fileCount}

	parts := r.MultipartForm.File[UploadField]
	if len(parts) > 1 {
		// Поле model принимает ровно один файл
		apierrors.WriteError(w, http.StatusBadRequest, apierrors.CodeTooManyFiles,
			"поле "+UploadField+" принимает только один файл")
		return
	}
	if len(parts) == 1 {
		header := parts[0]
		file, err := header.Open()
		if err != nil {
			h.logger.Error("Ошибка открытия multipart-части",
				slog.String("filename", header.Filename),
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w, "Ошибка чтения загруженного файла")
			return
		}
		defer file.Close()

		params.Reader = file
		params.OriginalName = header.Filename
		params.Size = header.Size
	}

	rec, err := h.catalog.CreateModel(r.Context(), params)
	if err != nil {
		apierrors.WriteCatalogError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Message: "File uploaded successfully",
		File:    rec,
	})
}

// requestBodyLimit — предельный размер тела запроса загрузки:
// MaxFiles файлов по MaxFileSize плюс заголовки частей.
// При переполнении int64 возвращается math.MaxInt64.
func requestBodyLimit(limits ingest.Limits) int64 {
	files := int64(max(limits.MaxFiles, 1))
	if limits.MaxFileSize <= 0 {
		return multipartOverhead
	}
	if limits.MaxFileSize > (math.MaxInt64-multipartOverhead)/files {
		return math.MaxInt64
	}
	return limits.MaxFileSize*files + multipartOverhead
}

// GetSupportedFormats обрабатывает GET /api/upload/formats.
func (h *ModelsHandler) GetSupportedFormats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, formatsResponse{
		SupportedFormats: ingest.Formats(),
		Extensions:       ingest.Extensions(),
	})
}

// ListModels обрабатывает GET /api/models.
func (h *ModelsHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.catalog.ListModels(r.Context())
	if err != nil {
		apierrors.WriteCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Models: models})
}

// GetModel обрабатывает GET /api/models/{id}.
func (h *ModelsHandler) GetModel(w http.ResponseWriter, r *http.Request) {
	id, ok := bindModelID(w, r)
	if !ok {
		return
	}

	rec, err := h.catalog.GetModel(r.Context(), id)
	if err != nil {
		apierrors.WriteCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteModel обрабатывает DELETE /api/models/{id}.
func (h *ModelsHandler) DeleteModel(w http.ResponseWriter, r *http.Request) {
	id, ok := bindModelID(w, r)
	if !ok {
		return
	}

	if err := h.catalog.DeleteModel(r.Context(), id); err != nil {
		apierrors.WriteCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Model deleted successfully"})
}

// DownloadModel обрабатывает GET /uploads/models/{filename}.
// Поддерживает Range requests и условные запросы через http.ServeContent.
func (h *ModelsHandler) DownloadModel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if name == "" || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
		apierrors.NotFound(w, "File not found")
		return
	}

	f, err := h.files.Open(name)
	if err != nil {
		apierrors.NotFound(w, "File not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		apierrors.NotFound(w, "File not found")
		return
	}

	if mimeType, ok := ingest.MIMEType(ingest.FormatOf(name)); ok {
		w.Header().Set("Content-Type", mimeType)
	}
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// bindModelID извлекает и проверяет path-параметр id.
// При ошибке записывает ответ 400 и возвращает false.
func bindModelID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		apierrors.ValidationError(w, "Некорректный идентификатор модели")
		return "", false
	}
	return id.String(), true
}
