package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput некорректные аргументы доменной операции
	ErrInvalidInput = errors.New("invalid input")
	// ErrInsufficientData нет ни одного успешного наблюдения
	ErrInsufficientData = errors.New("insufficient data")
	// ErrProbeFailure вызов пробы завершился ошибкой
	ErrProbeFailure = errors.New("probe failure")
	// ErrCheckFailure проверка не смогла сформировать результат
	ErrCheckFailure = errors.New("check failure")
	// ErrAccessDenied источник отказал в доступе, повторные тики бессмысленны
	ErrAccessDenied = errors.New("access denied by probe source")

	ErrNoChecks         = errors.New("no checks registered")
	ErrUnknownCheck     = errors.New("unknown check")
	ErrUnknownMode      = errors.New("unknown monitoring mode")
	ErrMissingParameter = errors.New("missing required parameter")
)

// OrchestrationError фатальная ошибка конфигурации набора проверок.
// Прогон прерывается, CLI завершается с ненулевым кодом.
type OrchestrationError struct {
	Kind   error
	Detail string
}

func (e *OrchestrationError) Error() string {
	if e.Detail == "" {
		return "orchestration failure: " + e.Kind.Error()
	}
	return fmt.Sprintf("orchestration failure: %s: %s", e.Kind.Error(), e.Detail)
}

func (e *OrchestrationError) Unwrap() error {
	return e.Kind
}

// NewOrchestrationError создает ошибку оркестрации заданного вида
func NewOrchestrationError(kind error, format string, args ...interface{}) *OrchestrationError {
	return &OrchestrationError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// IsOrchestrationFailure проверяет, является ли ошибка фатальной для прогона
func IsOrchestrationFailure(err error) bool {
	var oe *OrchestrationError
	return errors.As(err, &oe)
}
