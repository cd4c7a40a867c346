package domain

import (
	"errors"
	"fmt"
)

// Классификация отказов. Каждая сетевая ошибка внешнего API приводится
// к одному из этих классов — выше по стеку никто не разбирает HTTP-коды.
var (
	// ErrInvalidTransition — действие не разрешено таблицей переходов
	// для текущего статуса заявки (локальная проверка или отказ сервера).
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrAuth — неверные учетные данные при логине. Не ретраится.
	ErrAuth = errors.New("invalid credentials")

	// ErrSessionExpired — и access, и refresh токены мертвы.
	// Единственный класс с cross-cutting эффектом: гасит все поллеры.
	ErrSessionExpired = errors.New("session expired")

	// ErrPermissionDenied — актор аутентифицирован, но не уполномочен
	// на конкретный переход. Сессия и поллеры остаются живыми.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotAuthenticated — операция требует сессии, а ее нет.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// NetworkError — транзиентный сбой ввода-вывода. Тихий поллинг такие
// ошибки только логирует, ручное обновление и диспетчеризация — отдают
// вызывающему.
type NetworkError struct {
	Op    string
	Cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure during %s: %v", e.Op, e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// IsTransient сообщает, можно ли ошибку молча переварить в фоновом цикле.
func IsTransient(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
