package domain

import (
	"encoding/json"
	"time"
)

// FacultyDetails — владелец заявки (подмножество карточки сотрудника).
type FacultyDetails struct {
	Name           string `json:"name"`
	Department     string `json:"department"`
	RegistrationNo string `json:"registration_no"`
	Email          string `json:"email,omitempty"`
}

// LeaveApplication — заявка на отпуск, как ее отдает внешний API.
//
// Workflow-движок смотрит только на ID и Status. Payload с предметными
// полями (даты, причина, контакты) хранится непрозрачным куском JSON:
// логика переходов не имеет права заглядывать внутрь.
type LeaveApplication struct {
	ID             int64           `json:"id"`
	FacultyDetails FacultyDetails  `json:"faculty_details"`
	Status         Status          `json:"status"`
	Remarks        string          `json:"remarks,omitempty"`
	ProcessedBy    *string         `json:"processed_by,omitempty"`
	ProcessedOn    *time.Time      `json:"processed_on,omitempty"`
	AppliedOn      time.Time       `json:"applied_on"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// Event — регистрация мероприятия, однокаскадный поток утверждения VC.
type Event struct {
	ID               int64           `json:"id"`
	Title            string          `json:"title"`
	Organizer        string          `json:"organizer"`
	ApprovalStatus   EventStatus     `json:"vcapproval_status"`
	Remarks          string          `json:"remarks,omitempty"`
	Payload          json.RawMessage `json:"payload,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// EffectiveStatus возвращает статус с учетом нормализации пустого значения.
func (e *Event) EffectiveStatus() EventStatus {
	return NormalizeEventStatus(e.ApprovalStatus)
}
