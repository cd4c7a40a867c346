package workflow

import (
	"github.com/xela07ax/prabandh-gateway/internal/domain"
)

// AllowedActions — авторизационный шлюз: какие действия доступны роли
// для заявки в данном статусе. Чистая функция без побочных эффектов,
// читает ту же таблицу transitions, что и Apply.
//
// Используется в двух местах: чтобы решить, какие кнопки рендерить,
// и чтобы срезать запрещенное действие до похода в сеть. Рендер кнопки
// не гарантирует успех — сервер остается финальным арбитром.
func AllowedActions(status domain.Status, role domain.Role) []domain.Action {
	if status.IsTerminal() {
		return nil
	}

	var actions []domain.Action
	for key, e := range transitions {
		if key.From == status && e.Role == role {
			actions = append(actions, key.Action)
		}
	}
	return actions
}

// Allowed — точечная проверка одного действия.
func Allowed(status domain.Status, action domain.Action, role domain.Role) bool {
	_, err := Apply(status, action, role)
	return err == nil
}

// EventActions — доступные решения по мероприятию.
func EventActions(status domain.EventStatus, role domain.Role) []domain.EventStatus {
	if role != domain.RoleVC {
		return nil
	}
	if domain.NormalizeEventStatus(status) != domain.EventPending {
		return nil
	}
	return []domain.EventStatus{domain.EventApproved, domain.EventRejected}
}
