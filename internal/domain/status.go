package domain

// Статусы State Machine заявок на отпуск.
// Набор повторяет STATUS_CHOICES серверной модели — локальный автомат
// не имеет права придумывать собственные значения.
type Status string

const (
	StatusPending        Status = "pending"
	StatusApproved       Status = "approved"
	StatusRejected       Status = "rejected"
	StatusCancelled      Status = "cancelled"
	StatusForwardedToHR  Status = "forwarded_to_hr"
	StatusApprovedByHR   Status = "approved_by_hr"
	StatusRejectedByHR   Status = "rejected_by_hr"
	StatusForwardedToHOD Status = "forwarded_to_hod"
	StatusApprovedByHOD  Status = "approved_by_hod"
	StatusRejectedByHOD  Status = "rejected_by_hod"
	StatusForwardedToDean Status = "forwarded_to_dean"
	StatusApprovedByDean  Status = "approved_by_dean"
	StatusRejectedByDean  Status = "rejected_by_dean"
	StatusForwardedToVC   Status = "forwarded_to_vc"
	StatusApprovedByVC    Status = "approved_by_vc"
	StatusRejectedByVC    Status = "rejected_by_vc"
)

// Role — закрытый перечень ролей портала.
// Вместо разбросанных строковых сравнений все проверки прав идут через него.
type Role string

const (
	RoleFaculty         Role = "faculty"
	RoleHOD             Role = "hod"
	RoleDean            Role = "dean"
	RoleHR              Role = "hr"
	RoleVC              Role = "vc"
	RoleVCOffice        Role = "vc_office"
	RoleDeputyRegistrar Role = "deputy_registrar"
	RoleRegistrar       Role = "registrar"
)

// Action — имя перехода. Значение совпадает с суффиксом endpoint'а
// внешнего API: POST /leave/applications/{id}/{action}/
type Action string

const (
	ActionHRApprove         Action = "hr_approve"
	ActionHRReject          Action = "hr_reject"
	ActionForwardToDean     Action = "forward_to_dean"
	ActionForwardToHR       Action = "forward_to_hr"
	ActionCancel            Action = "cancel"
	ActionHODApprove        Action = "hod_approve"
	ActionHODReject         Action = "hod_reject"
	ActionHODRecommendDean  Action = "hod_recommend_to_dean"
	ActionHODRecommendVC    Action = "hod_recommend_to_vc"
	ActionDeanApprove       Action = "dean_approve"
	ActionDeanReject        Action = "dean_reject"
	ActionDeanRecommendVC   Action = "dean_recommend_to_vc"
	ActionVCApprove         Action = "vc_approve"
	ActionVCReject          Action = "vc_reject"
)

// terminalStatuses — статусы без исходящих ребер.
// Достигнув любого из них, заявка становится логически неизменяемой.
var terminalStatuses = map[Status]struct{}{
	StatusApproved:       {},
	StatusRejected:       {},
	StatusCancelled:      {},
	StatusApprovedByHR:   {},
	StatusRejectedByHR:   {},
	StatusApprovedByHOD:  {},
	StatusRejectedByHOD:  {},
	StatusApprovedByDean: {},
	StatusRejectedByDean: {},
	StatusApprovedByVC:   {},
	StatusRejectedByVC:   {},
}

// IsTerminal сообщает, завершен ли жизненный цикл заявки.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// Статусы событий (однокаскадный поток VC).
// Сервер может прислать пустое значение для свежесозданной записи —
// это нормализуется в Pending, а не считается ошибкой.
type EventStatus string

const (
	EventPending  EventStatus = "Pending"
	EventApproved EventStatus = "Approved"
	EventRejected EventStatus = "Rejected"
)

// NormalizeEventStatus приводит отсутствующий статус к Pending.
func NormalizeEventStatus(s EventStatus) EventStatus {
	if s == "" {
		return EventPending
	}
	return s
}

// ParseRole сопоставляет emptype из ответа внешнего API с ролью.
// Неизвестное значение остается как есть: авторизационный шлюз просто
// не найдет для него ни одного разрешенного действия.
func ParseRole(emptype string) Role {
	switch emptype {
	case "hod", "HOD":
		return RoleHOD
	case "dean", "Dean":
		return RoleDean
	case "hr", "HR":
		return RoleHR
	case "vc", "VC":
		return RoleVC
	case "vc_office", "vcoffice":
		return RoleVCOffice
	case "deputy_registrar":
		return RoleDeputyRegistrar
	case "registrar":
		return RoleRegistrar
	default:
		return RoleFaculty
	}
}
