package dispatch

/*
Пакет dispatch — единственная точка, через которую действия операторов
уходят на внешний API.

Два правила, на которых всё держится:
 1. Перед сетью — локальная проверка по таблице переходов. Заведомо
    нелегальное действие срезается мгновенно и без трафика.
 2. Никаких оптимистичных обновлений. Снимок заявок меняется только
    данными, которые вернул сервер: после успешного действия диспетчер
    дергает громкий refresh нужной витрины, и уже он приносит правду.
*/

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/prabandh-gateway/internal/audit"
	"github.com/xela07ax/prabandh-gateway/internal/domain"
	"github.com/xela07ax/prabandh-gateway/internal/infra"
	"github.com/xela07ax/prabandh-gateway/internal/workflow"
)

// Имена витрин для refresh-хука и журнала.
const (
	ViewLeave = "leave"
	ViewEvent = "event"
)

// API — мутационные endpoint'ы внешней системы.
type API interface {
	Transition(ctx context.Context, id int64, action domain.Action, remarks string) error
	DecideEvent(ctx context.Context, id int64, decision domain.EventStatus) error
}

// IdentitySource отдает личность текущей сессии.
type IdentitySource interface {
	Identity() (domain.Identity, bool)
}

// Dispatcher проводит действия оператора через gate, внешний API и журнал.
type Dispatcher struct {
	api      API
	identity IdentitySource
	trail    audit.Recorder
	metrics  *infra.Metrics
	logger   *zap.Logger

	// Refresh зовется после каждого принятого сервером действия.
	// Композиционный корень вешает сюда громкий ManualRefresh витрины.
	Refresh func(view string)

	// OnAuthFailure зовется при 401 от мутационного запроса.
	OnAuthFailure func(ctx context.Context)
}

func NewDispatcher(api API, identity IdentitySource, trail audit.Recorder, metrics *infra.Metrics, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		api:      api,
		identity: identity,
		trail:    trail,
		metrics:  metrics,
		logger:   logger.Named("dispatch"),
	}
}

// ApplyLeaveAction применяет действие к заявке на отпуск.
//
// Статус берется из переданного снимка заявки — того, что оператор
// видел на экране. Если снимок устарел и сервер уже в другом статусе,
// последнее слово за сервером: он ответит 400, мы вернем ошибку, а
// громкого обновления не будет.
func (d *Dispatcher) ApplyLeaveAction(ctx context.Context, app domain.LeaveApplication, action domain.Action, remarks string) error {
	actor, ok := d.identity.Identity()
	if !ok {
		return domain.ErrNotAuthenticated
	}

	dec := audit.NewDecision(actor, ViewLeave, app.ID)
	dec.Action = string(action)
	dec.FromStatus = app.Status
	dec.Remarks = remarks
	started := time.Now()

	target, err := workflow.Apply(app.Status, action, actor.Role)
	if err != nil {
		// Срезано локально: сеть не трогали, снимок не трогаем
		d.finish(&dec, started, audit.OutcomeGateRejected, err)
		d.logger.Warn("action rejected by transition table",
			zap.Int64("id", app.ID),
			zap.String("status", string(app.Status)),
			zap.String("action", string(action)),
			zap.String("role", string(actor.Role)))
		return err
	}

	if err := d.api.Transition(ctx, app.ID, action, remarks); err != nil {
		d.finish(&dec, started, audit.OutcomeUpstreamError, err)
		d.handleUpstreamError(ctx, err)
		return err
	}

	dec.ToStatus = target
	d.finish(&dec, started, audit.OutcomeApplied, nil)
	d.logger.Info("action applied",
		zap.Int64("id", app.ID),
		zap.String("action", string(action)),
		zap.String("to", string(target)))

	if d.Refresh != nil {
		d.Refresh(ViewLeave)
	}
	return nil
}

// ApplyEventDecision решает судьбу мероприятия (одностадийный workflow).
func (d *Dispatcher) ApplyEventDecision(ctx context.Context, ev domain.Event, decision domain.EventStatus) error {
	actor, ok := d.identity.Identity()
	if !ok {
		return domain.ErrNotAuthenticated
	}

	dec := audit.NewDecision(actor, ViewEvent, ev.ID)
	dec.Action = string(decision)
	dec.FromStatus = domain.Status(ev.EffectiveStatus())
	started := time.Now()

	target, err := workflow.EventApply(ev.EffectiveStatus(), decision, actor.Role)
	if err != nil {
		d.finish(&dec, started, audit.OutcomeGateRejected, err)
		return err
	}

	if err := d.api.DecideEvent(ctx, ev.ID, decision); err != nil {
		d.finish(&dec, started, audit.OutcomeUpstreamError, err)
		d.handleUpstreamError(ctx, err)
		return err
	}

	dec.ToStatus = domain.Status(target)
	d.finish(&dec, started, audit.OutcomeApplied, nil)
	d.logger.Info("event decision applied",
		zap.Int64("id", ev.ID),
		zap.String("decision", string(decision)))

	if d.Refresh != nil {
		d.Refresh(ViewEvent)
	}
	return nil
}

func (d *Dispatcher) finish(dec *audit.Decision, started time.Time, outcome string, err error) {
	dec.Outcome = outcome
	dec.DurationMs = time.Since(started).Milliseconds()
	if err != nil {
		dec.Error = err.Error()
	}
	d.trail.Record(*dec)
	d.metrics.DispatchTotal.WithLabelValues(dec.Action, outcome).Inc()
}

func (d *Dispatcher) handleUpstreamError(ctx context.Context, err error) {
	if errors.Is(err, domain.ErrSessionExpired) && d.OnAuthFailure != nil {
		d.OnAuthFailure(ctx)
	}
}
