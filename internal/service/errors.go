// errors.go — ошибки бизнес-логики каталога.
// Закрытый набор видов ошибок: вызывающий код ветвится по Kind,
// а не по тексту сообщения.
package service

import (
	"errors"
	"fmt"
)

// Kind — вид ошибки каталога.
type Kind string

const (
	// KindValidation — входные данные отклонены до любой записи на диск.
	KindValidation Kind = "validation"
	// KindNotFound — запись с указанным идентификатором отсутствует.
	KindNotFound Kind = "not_found"
	// KindStorage — ошибка ввода-вывода при записи или удалении артефакта.
	KindStorage Kind = "storage"
	// KindCorruptMetadata — файл метаданных не удалось разобрать.
	KindCorruptMetadata Kind = "corrupt_metadata"
)

// Error — ошибка операции каталога со структурированным контекстом.
type Error struct {
	// Kind — вид ошибки
	Kind Kind
	// Op — операция каталога (create, list, get, delete)
	Op string
	// ID — идентификатор модели, если известен
	ID string
	// Reason — машиночитаемая причина (для KindValidation)
	Reason string
	// Err — исходная ошибка
	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.ID != "" {
		msg += fmt.Sprintf(" (модель %s)", e.ID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf возвращает вид ошибки каталога или пустую строку,
// если err не является *Error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsKind проверяет, что err — ошибка каталога указанного вида.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func validationError(op, reason string, err error) *Error {
	return &Error{Kind: KindValidation, Op: op, Reason: reason, Err: err}
}

func notFoundError(op, id string) *Error {
	return &Error{Kind: KindNotFound, Op: op, ID: id, Err: fmt.Errorf("модель %s не найдена", id)}
}

func storageError(op, id string, err error) *Error {
	return &Error{Kind: KindStorage, Op: op, ID: id, Err: err}
}
