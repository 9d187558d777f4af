// Пакет errors — ответы с ошибками каталога моделей.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
package errors //nolint:revive // совпадает с именем stdlib, импортируется как apierrors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/bigkaa/goartstore/model-catalog/internal/domain/ingest"
	"github.com/bigkaa/goartstore/model-catalog/internal/service"
)

// Коды ошибок, определённые в OpenAPI контракте.
const (
	CodeValidationError     = "VALIDATION_ERROR"
	CodeMissingFile         = "MISSING_FILE"
	CodeUnsupportedFormat   = "UNSUPPORTED_FORMAT"
	CodeFileTooLarge        = "FILE_TOO_LARGE"
	CodeTooManyFiles        = "TOO_MANY_FILES"
	CodeNotFound            = "NOT_FOUND"
	CodeCorruptMetadata     = "CORRUPT_METADATA"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	CodeReconcileInProgress = "RECONCILE_IN_PROGRESS"
	CodeInternalError       = "INTERNAL_ERROR"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// MethodNotAllowed — 405 метод не поддерживается маршрутом.
func MethodNotAllowed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, message)
}

// ReconcileInProgress — 409 сверка уже выполняется.
func ReconcileInProgress(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeReconcileInProgress, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}

// rejectionCodes — код и статус для каждой причины отказа при загрузке.
var rejectionCodes = map[ingest.Reason]struct {
	code   string
	status int
}{
	ingest.ReasonMissingFile:       {CodeMissingFile, http.StatusBadRequest},
	ingest.ReasonUnsupportedFormat: {CodeUnsupportedFormat, http.StatusBadRequest},
	ingest.ReasonFileTooLarge:      {CodeFileTooLarge, http.StatusRequestEntityTooLarge},
	ingest.ReasonTooManyFiles:      {CodeTooManyFiles, http.StatusBadRequest},
}

// WriteCatalogError преобразует ошибку сервиса каталога в HTTP-ответ.
// Внутренние подробности (пути, ошибки ФС) клиенту не раскрываются.
func WriteCatalogError(w http.ResponseWriter, err error) {
	switch service.KindOf(err) {
	case service.KindValidation:
		var rej *ingest.Rejection
		if stderrors.As(err, &rej) {
			if rc, ok := rejectionCodes[rej.Reason]; ok {
				WriteError(w, rc.status, rc.code, rej.Message)
				return
			}
		}
		ValidationError(w, "Некорректный запрос")
	case service.KindNotFound:
		NotFound(w, "Model not found")
	case service.KindCorruptMetadata:
		WriteError(w, http.StatusInternalServerError, CodeCorruptMetadata, "Метаданные модели повреждены")
	default:
		InternalError(w, "Внутренняя ошибка хранилища")
	}
}
