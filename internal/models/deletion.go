package models

import (
	"fmt"
	"time"
)

// WarningStage этап предупреждения об удалении.
type WarningStage string

const (
	WarningFirst  WarningStage = "first"
	WarningSecond WarningStage = "second"
	WarningFinal  WarningStage = "final"
)

// WarningStagesByUrgency перечисляет этапы от самого срочного к наименее срочному.
var WarningStagesByUrgency = []WarningStage{WarningFinal, WarningSecond, WarningFirst}

// ParseWarningStage преобразует строку в WarningStage.
func ParseWarningStage(raw string) (WarningStage, error) {
	s := WarningStage(raw)
	switch s {
	case WarningFirst, WarningSecond, WarningFinal:
		return s, nil
	}
	return "", fmt.Errorf("unknown warning stage %q", raw)
}

// DeletionScheduleEntry запись о запланированном удалении учётной записи.
type DeletionScheduleEntry struct {
	AccountID           string     `json:"account_id"`
	Email               string     `json:"email"`
	FirstName           string     `json:"first_name"`
	ScheduledDeletionAt time.Time  `json:"scheduled_deletion_at"`
	CreatedAt           time.Time  `json:"created_at"`
	FirstWarningSentAt  *time.Time `json:"first_warning_sent_at,omitempty"`
	SecondWarningSentAt *time.Time `json:"second_warning_sent_at,omitempty"`
	FinalWarningSentAt  *time.Time `json:"final_warning_sent_at,omitempty"`
}

// SentAt возвращает время отправки предупреждения этапа или nil.
func (e *DeletionScheduleEntry) SentAt(stage WarningStage) *time.Time {
	switch stage {
	case WarningFirst:
		return e.FirstWarningSentAt
	case WarningSecond:
		return e.SecondWarningSentAt
	case WarningFinal:
		return e.FinalWarningSentAt
	}
	return nil
}

// DeletionStatus представление расписания удаления для клиента.
type DeletionStatus struct {
	Scheduled           bool                  `json:"scheduled"`
	ScheduledDeletionAt *time.Time            `json:"scheduled_deletion_at,omitempty"`
	DaysUntilDeletion   int                   `json:"days_until_deletion"`
	WarningsSent        map[WarningStage]bool `json:"warnings_sent"`
	CanCancel           bool                  `json:"can_cancel"`
}
