package workflow

/*
Пакет workflow — конечный автомат согласования заявок.

Единственный источник правды о том, какая роль каким действием может
перевести заявку из какого статуса в какой, — таблица transitions ниже.
И Apply (валидация перехода), и Gate (какие кнопки показать) — это две
проекции одной таблицы, поэтому разъехаться они не могут.
*/

import (
	"github.com/xela07ax/prabandh-gateway/internal/domain"
)

type edgeKey struct {
	From   domain.Status
	Action domain.Action
}

type edge struct {
	To   domain.Status
	Role domain.Role
}

// transitions — полная таблица ребер автомата.
//
// Одно и то же действие из разных статусов дает разные целевые статусы:
// hr_approve из pending завершает заявку как approved, а из
// forwarded_to_hr — как approved_by_hr. Так ведет себя и сервер.
var transitions = map[edgeKey]edge{
	// Стадия HR (заявка пришла напрямую в HR)
	{domain.StatusPending, domain.ActionHRApprove}:     {domain.StatusApproved, domain.RoleHR},
	{domain.StatusPending, domain.ActionHRReject}:      {domain.StatusRejected, domain.RoleHR},
	{domain.StatusPending, domain.ActionForwardToDean}: {domain.StatusForwardedToDean, domain.RoleHR},

	// Заявитель может отозвать необработанную заявку
	{domain.StatusPending, domain.ActionCancel}: {domain.StatusCancelled, domain.RoleFaculty},

	// Стадия HOD: решает сам либо рекомендует выше
	{domain.StatusPending, domain.ActionHODApprove}:       {domain.StatusApprovedByHOD, domain.RoleHOD},
	{domain.StatusPending, domain.ActionHODReject}:        {domain.StatusRejectedByHOD, domain.RoleHOD},
	{domain.StatusPending, domain.ActionHODRecommendDean}: {domain.StatusForwardedToDean, domain.RoleHOD},
	{domain.StatusPending, domain.ActionHODRecommendVC}:   {domain.StatusForwardedToVC, domain.RoleHOD},
	{domain.StatusPending, domain.ActionForwardToHR}:      {domain.StatusForwardedToHR, domain.RoleHOD},

	{domain.StatusForwardedToHOD, domain.ActionHODApprove}:       {domain.StatusApprovedByHOD, domain.RoleHOD},
	{domain.StatusForwardedToHOD, domain.ActionHODReject}:        {domain.StatusRejectedByHOD, domain.RoleHOD},
	{domain.StatusForwardedToHOD, domain.ActionHODRecommendDean}: {domain.StatusForwardedToDean, domain.RoleHOD},
	{domain.StatusForwardedToHOD, domain.ActionHODRecommendVC}:   {domain.StatusForwardedToVC, domain.RoleHOD},

	// Стадия Dean
	{domain.StatusForwardedToDean, domain.ActionDeanApprove}:     {domain.StatusApproved, domain.RoleDean},
	{domain.StatusForwardedToDean, domain.ActionDeanReject}:      {domain.StatusRejectedByDean, domain.RoleDean},
	{domain.StatusForwardedToDean, domain.ActionDeanRecommendVC}: {domain.StatusForwardedToVC, domain.RoleDean},

	// Стадия VC
	{domain.StatusForwardedToVC, domain.ActionVCApprove}: {domain.StatusApproved, domain.RoleVC},
	{domain.StatusForwardedToVC, domain.ActionVCReject}:  {domain.StatusRejectedByVC, domain.RoleVC},

	// Стадия HR после пересылки от HOD
	{domain.StatusForwardedToHR, domain.ActionHRApprove}: {domain.StatusApprovedByHR, domain.RoleHR},
	{domain.StatusForwardedToHR, domain.ActionHRReject}:  {domain.StatusRejectedByHR, domain.RoleHR},
}

// Apply проверяет легальность перехода и возвращает целевой статус.
//
// Проверка строго локальная и синхронная: ни одного сетевого вызова не
// должно уйти для заведомо нелегального перехода. При гонке двух акторов
// арбитром остается внешний API — второй актор, чей snapshot устарел,
// получит ErrInvalidTransition уже от сервера.
func Apply(status domain.Status, action domain.Action, role domain.Role) (domain.Status, error) {
	e, ok := transitions[edgeKey{From: status, Action: action}]
	if !ok || e.Role != role {
		return status, domain.ErrInvalidTransition
	}
	return e.To, nil
}

// EventApply — однокаскадная специализация для мероприятий:
// Pending -> Approved/Rejected, решает только VC. Отсутствующий статус
// считается Pending.
func EventApply(status domain.EventStatus, decision domain.EventStatus, role domain.Role) (domain.EventStatus, error) {
	if role != domain.RoleVC {
		return status, domain.ErrInvalidTransition
	}
	if domain.NormalizeEventStatus(status) != domain.EventPending {
		return status, domain.ErrInvalidTransition
	}
	if decision != domain.EventApproved && decision != domain.EventRejected {
		return status, domain.ErrInvalidTransition
	}
	return decision, nil
}
