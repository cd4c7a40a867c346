package service

/*
Витрины (views) — то, что дашборды видят как «список заявок».

Каждая витрина связывает поллер с внешним API и держит последний
удачный снимок. Тихий сбой fetch'а снимок не трогает: оператору лучше
видеть данные двухминутной давности с пометкой, чем пустой экран.
*/

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/prabandh-gateway/internal/domain"
	"github.com/xela07ax/prabandh-gateway/internal/upstream"
)

// Lister — читающие endpoint'ы внешнего API, как их видят витрины.
type Lister interface {
	ListApplications(ctx context.Context, q upstream.ListQuery) ([]domain.LeaveApplication, error)
	ListEvents(ctx context.Context) ([]domain.Event, error)
}

// RoleSource отдает роль текущей сессии.
type RoleSource interface {
	Role() domain.Role
}

// LeaveSnapshot — снимок витрины заявок с метаданными свежести.
type LeaveSnapshot struct {
	Applications []domain.LeaveApplication `json:"applications"`
	SyncedAt     time.Time                 `json:"synced_at"`
	Stale        bool                      `json:"stale"`
}

// EventSnapshot — снимок витрины мероприятий.
type EventSnapshot struct {
	Events   []domain.Event `json:"events"`
	SyncedAt time.Time      `json:"synced_at"`
	Stale    bool           `json:"stale"`
}

// Views держит оба снимка и их fetch-функции для поллеров.
type Views struct {
	api    Lister
	roles  RoleSource
	logger *zap.Logger

	mu           sync.RWMutex
	apps         []domain.LeaveApplication
	appsSyncedAt time.Time
	appsStale    bool

	events         []domain.Event
	eventsSyncedAt time.Time
	eventsStale    bool
}

func NewViews(api Lister, roles RoleSource, logger *zap.Logger) *Views {
	return &Views{
		api:    api,
		roles:  roles,
		logger: logger.Named("views"),
	}
}

// queueFor сводит роль к фильтру списка: каждая роль видит свою очередь.
func queueFor(role domain.Role) upstream.ListQuery {
	switch role {
	case domain.RoleHR:
		return upstream.ListQuery{Status: string(domain.StatusPending) + "," + string(domain.StatusForwardedToHR)}
	case domain.RoleHOD:
		return upstream.ListQuery{Status: string(domain.StatusForwardedToHOD)}
	case domain.RoleDean:
		return upstream.ListQuery{DeanApprovals: true}
	case domain.RoleVC, domain.RoleVCOffice:
		return upstream.ListQuery{Status: string(domain.StatusForwardedToVC)}
	default:
		// Рядовой сотрудник и прочие роли видят всё своё без фильтра
		return upstream.ListQuery{}
	}
}

// FetchLeave — fetch-функция витрины заявок. Сигнатура совпадает с
// sync.FetchFunc; результат применяется только если контекст еще жив.
func (v *Views) FetchLeave(ctx context.Context, silent bool) error {
	apps, err := v.api.ListApplications(ctx, queueFor(v.roles.Role()))
	if err != nil {
		v.mu.Lock()
		v.appsStale = true
		v.mu.Unlock()
		if silent {
			v.logger.Debug("silent leave fetch failed, keeping stale snapshot", zap.Error(err))
		}
		return err
	}
	if ctx.Err() != nil {
		// Поллер остановлен, пока мы ходили по сети — результат в мусор
		return ctx.Err()
	}

	v.mu.Lock()
	v.apps = apps
	v.appsSyncedAt = time.Now()
	v.appsStale = false
	v.mu.Unlock()
	return nil
}

// FetchEvents — fetch-функция витрины мероприятий.
func (v *Views) FetchEvents(ctx context.Context, silent bool) error {
	events, err := v.api.ListEvents(ctx)
	if err != nil {
		v.mu.Lock()
		v.eventsStale = true
		v.mu.Unlock()
		if silent {
			v.logger.Debug("silent event fetch failed, keeping stale snapshot", zap.Error(err))
		}
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	v.mu.Lock()
	v.events = events
	v.eventsSyncedAt = time.Now()
	v.eventsStale = false
	v.mu.Unlock()
	return nil
}

func (v *Views) Leave() LeaveSnapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	apps := make([]domain.LeaveApplication, len(v.apps))
	copy(apps, v.apps)
	return LeaveSnapshot{Applications: apps, SyncedAt: v.appsSyncedAt, Stale: v.appsStale}
}

func (v *Views) Events() EventSnapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	events := make([]domain.Event, len(v.events))
	copy(events, v.events)
	return EventSnapshot{Events: events, SyncedAt: v.eventsSyncedAt, Stale: v.eventsStale}
}

// FindApplication ищет заявку в текущем снимке.
func (v *Views) FindApplication(id int64) (domain.LeaveApplication, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, app := range v.apps {
		if app.ID == id {
			return app, true
		}
	}
	return domain.LeaveApplication{}, false
}

// FindEvent ищет мероприятие в текущем снимке.
func (v *Views) FindEvent(id int64) (domain.Event, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, ev := range v.events {
		if ev.ID == id {
			return ev, true
		}
	}
	return domain.Event{}, false
}

// Reset сбрасывает снимки. Зовется при логауте: следующий вход не
// должен на мгновение показать чужую очередь.
func (v *Views) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.apps = nil
	v.events = nil
	v.appsSyncedAt = time.Time{}
	v.eventsSyncedAt = time.Time{}
	v.appsStale = false
	v.eventsStale = false
}
