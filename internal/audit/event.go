package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/xela07ax/prabandh-gateway/internal/domain"
)

// Возможные исходы диспетчеризации действия.
const (
	OutcomeApplied       = "APPLIED"        // сервер принял переход
	OutcomeGateRejected  = "GATE_REJECTED"  // срезано локальной проверкой, сеть не трогали
	OutcomeUpstreamError = "UPSTREAM_ERROR" // сервер отказал или не ответил
)

// Decision — одна запись журнала решений: кто, над какой заявкой, какое
// действие и чем закончилось. Снимок from-статуса фиксируется на момент
// нажатия — к приходу ответа сервера статус мог уже уехать.
type Decision struct {
	ID         string        `json:"id"`       // UUID записи
	ActorID    string        `json:"actor_id"` // Кто решал
	Role       domain.Role   `json:"role"`
	View       string        `json:"view"`       // "leave" или "event"
	RequestID  int64         `json:"request_id"` // ID заявки у внешней системы
	Action     string        `json:"action"`
	FromStatus domain.Status `json:"from_status"`
	ToStatus   domain.Status `json:"to_status,omitempty"` // пусто, если переход не состоялся
	Remarks    string        `json:"remarks,omitempty"`
	Outcome    string        `json:"outcome"`
	Error      string        `json:"error,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
	DurationMs int64         `json:"duration_ms"`
}

// NewDecision заводит запись с проставленным ID и таймстемпом.
func NewDecision(actor domain.Identity, view string, requestID int64) Decision {
	return Decision{
		ID:        uuid.NewString(),
		ActorID:   actor.ActorID,
		Role:      actor.Role,
		View:      view,
		RequestID: requestID,
		Timestamp: time.Now(),
	}
}
