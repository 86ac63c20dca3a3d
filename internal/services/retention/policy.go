package retention

import (
	"time"

	"github.com/magabrotheeeer/memorysphere/internal/config"
	"github.com/magabrotheeeer/memorysphere/internal/models"
)

// Policy параметры политики хранения данных.
type Policy struct {
	// InactivityMonths сколько месяцев после окончания пробного периода
	// учётная запись без подписки хранится до постановки в расписание.
	InactivityMonths int
	// NoticePeriod срок от постановки в расписание до удаления.
	NoticePeriod time.Duration
	// WarningDays порог в днях до удаления для каждого этапа предупреждения.
	WarningDays map[models.WarningStage]int
	Workers     int
	LockTTL     time.Duration
}

// DefaultPolicy возвращает политику продукта: 3 месяца, 30 дней, предупреждения за 30/14/3 дня.
func DefaultPolicy() Policy {
	return Policy{
		InactivityMonths: 3,
		NoticePeriod:     30 * 24 * time.Hour,
		WarningDays: map[models.WarningStage]int{
			models.WarningFirst:  30,
			models.WarningSecond: 14,
			models.WarningFinal:  3,
		},
		Workers: 4,
		LockTTL: 30 * time.Minute,
	}
}

// PolicyFromConfig строит политику из секции конфига retention.
func PolicyFromConfig(cfg config.Retention) Policy {
	return Policy{
		InactivityMonths: cfg.InactivityMonths,
		NoticePeriod:     cfg.NoticePeriod,
		WarningDays: map[models.WarningStage]int{
			models.WarningFirst:  cfg.FirstWarning,
			models.WarningSecond: cfg.SecondWarning,
			models.WarningFinal:  cfg.FinalWarning,
		},
		Workers: cfg.Workers,
		LockTTL: cfg.LockTTL,
	}
}

// DueStage возвращает самый срочный этап, порог которого пройден при daysUntil днях до удаления.
func (p Policy) DueStage(daysUntil int) (models.WarningStage, bool) {
	for _, stage := range models.WarningStagesByUrgency {
		if daysUntil <= p.WarningDays[stage] {
			return stage, true
		}
	}
	return "", false
}
