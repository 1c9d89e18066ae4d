package errors

import (
	"errors"
	"fmt"
)

// Коды ошибок устройства kfetch
const (
	CodeBusy            = "BUSY"
	CodeNotOpen         = "NOT_OPEN"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeBufferTooSmall  = "BUFFER_TOO_SMALL"
	CodeUnavailable     = "UNAVAILABLE"
)

// Error - структурированная ошибка с кодом, сообщением и необязательной причиной.
// Две ошибки с одинаковым кодом считаются равными для errors.Is.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Базовые ошибки для сравнения через errors.Is
var (
	ErrBusy            = New(CodeBusy, "device is busy")
	ErrNotOpen         = New(CodeNotOpen, "device is not open")
	ErrInvalidArgument = New(CodeInvalidArgument, "invalid argument")
	ErrBufferTooSmall  = New(CodeBufferTooSmall, "buffer too small")
	ErrUnavailable     = New(CodeUnavailable, "metric unavailable")
)

// New создает новую ошибку с кодом и сообщением
func New(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap оборачивает существующую ошибку с кодом и сообщением
func Wrap(err error, code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf - как Wrap, но с форматированием сообщения
func Wrapf(err error, code, format string, args ...interface{}) *Error {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap возвращает причину для errors.Is/errors.As
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// IsCode проверяет, является ли ошибка структурированной ошибкой с указанным кодом
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

// CodeOf возвращает код ошибки или пустую строку для неструктурированных ошибок
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var kErr *Error
	if errors.As(err, &kErr) {
		return kErr.Code
	}
	return ""
}
