package domain

import (
	"errors"
	"fmt"
)

// Таксономия ошибок движка. Ключевое разделение: политический отказ (DENIED,
// in-band вердикт) и системная ошибка хранилища (UpstreamError) — оператор
// никогда не должен перепутать заблокированное ТС и упавшую базу.
var (
	// ErrValidation — отсутствует обязательный входной параметр.
	// Отклоняется до запуска цепочки и не логируется как решение.
	ErrValidation = errors.New("validation error")

	// ErrNotFound — запись не найдена в хранилище. Для цепочки это не
	// системный сбой, а штатный FAIL соответствующего шага.
	ErrNotFound = errors.New("not found")
)

// UpstreamError — хранилище недоступно или вернуло ошибку.
// Наружу отдается как 500, отдельно от любого DENIED.
type UpstreamError struct {
	Op    string // какая операция: "vehicle lookup", "audit write"...
	Cause error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream: %s failed: %v", e.Op, e.Cause)
}

func (e *UpstreamError) Unwrap() error { return e.Cause }

// Upstream оборачивает ошибку хранилища, сохраняя имя операции для логов.
func Upstream(op string, cause error) error {
	return &UpstreamError{Op: op, Cause: cause}
}

// IsUpstream — проверка для хендлеров при выборе HTTP-статуса.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
