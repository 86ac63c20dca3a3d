package models

import "time"

// WarningCounts количество отправленных предупреждений по этапам.
type WarningCounts struct {
	First  int `json:"first"`
	Second int `json:"second"`
	Final  int `json:"final"`
}

// Add увеличивает счётчик этапа.
func (w *WarningCounts) Add(stage WarningStage) {
	switch stage {
	case WarningFirst:
		w.First++
	case WarningSecond:
		w.Second++
	case WarningFinal:
		w.Final++
	}
}

// Total возвращает общее число отправленных предупреждений.
func (w WarningCounts) Total() int {
	return w.First + w.Second + w.Final
}

// RunFailure описывает ошибку обработки одной учётной записи.
type RunFailure struct {
	AccountID string `json:"account_id"`
	Step      string `json:"step"`
	Error     string `json:"error"`
}

// RunSummary итог одного запуска процесса удаления данных.
type RunSummary struct {
	Scheduled    int           `json:"scheduled"`
	WarningsSent WarningCounts `json:"warningsSent"`
	Deleted      int           `json:"deleted"`
	Failures     []RunFailure  `json:"failures"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
}

// PasswordResetMessage сообщение для сервиса рассылки со ссылкой сброса пароля.
type PasswordResetMessage struct {
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Recipient адресат письма.
type Recipient struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
}
