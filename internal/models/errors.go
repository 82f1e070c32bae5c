package models

import "errors"

// Ошибки уровня предметной области. Хранилища и сервисы оборачивают их через
// fmt.Errorf("...: %w", ...) либо через RequestError; обработчики HTTP
// распознают их errors.Is и превращают в коды 400/404/500.
var (
	// ErrNotFound - запись или файл с указанным идентификатором не существует.
	ErrNotFound = errors.New("запись не найдена")
	// ErrDuplicate - попытка вставить запись с уже занятым id или fileName.
	ErrDuplicate = errors.New("запись с таким ключом уже существует")
	// ErrValidation - некорректные входные данные; отклоняются до любых побочных эффектов.
	ErrValidation = errors.New("некорректные входные данные")
	// ErrStorage - сбой файловой системы или хранилища метаданных.
	ErrStorage = errors.New("ошибка хранилища")
)

// RequestError - ошибка с текстом, пригодным для показа клиенту.
// Message попадает в JSON-ответ {"error": ...} как есть (без стек-трейсов),
// Kind определяет HTTP-статус через errors.Is.
type RequestError struct {
	Message string
	Kind    error
}

func (e *RequestError) Error() string { return e.Message }

func (e *RequestError) Unwrap() error { return e.Kind }

// NewValidationError - ошибка 400 с клиентским сообщением.
func NewValidationError(message string) error {
	return &RequestError{Message: message, Kind: ErrValidation}
}

// NewNotFoundError - ошибка 404 с клиентским сообщением.
func NewNotFoundError(message string) error {
	return &RequestError{Message: message, Kind: ErrNotFound}
}

// NewStorageError - ошибка 500 с клиентским сообщением.
func NewStorageError(message string) error {
	return &RequestError{Message: message, Kind: ErrStorage}
}
