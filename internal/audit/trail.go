package audit

/*
Файл trail.go реализует журнал решений (Decision Trail).

Ключевые особенности архитектуры:
- Non-blocking Logging: неблокирующий канал между диспетчером и воркером.
  Задержки записи в БД не влияют на время отклика действия.
- Batching: накопление записей в памяти и пакетная вставка в PostgreSQL
  по таймеру или при достижении лимита партии.
- Drain Pattern & Graceful Shutdown: при остановке канал закрывается,
  воркер вычитывает остатки и делает финальный flush — решения не
  теряются при перезагрузке.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/prabandh-gateway/internal/infra"
)

// StorageInterface определяет, куда физически уходят записи журнала.
type StorageInterface interface {
	// WriteBatch сохраняет пачку записей за один раз
	WriteBatch(ctx context.Context, decisions []Decision) error
}

type Recorder interface {
	Record(d Decision)
}

type Trail struct {
	ch      chan Decision
	repo    StorageInterface
	logger  *zap.Logger
	metrics *infra.Metrics
	wg      sync.WaitGroup

	batchSize     int
	flushInterval time.Duration

	// Защита от Record после остановки (0 - открыт, 1 - закрыт)
	isClosed int32
}

func NewTrail(repo StorageInterface, cfg infra.AuditConfig, metrics *infra.Metrics, logger *zap.Logger) *Trail {
	return &Trail{
		ch:            make(chan Decision, cfg.BufferSize),
		repo:          repo,
		logger:        logger.With(zap.String("mod", "audit-trail")),
		metrics:       metrics,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
	}
}

func (t *Trail) Start() {
	t.wg.Add(1)
	go t.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (t *Trail) Stop() {
	atomic.StoreInt32(&t.isClosed, 1)

	// Даем крошечную паузу, чтобы текущие Record успели проскочить
	time.Sleep(10 * time.Millisecond)

	t.logger.Info("stopping decision trail: closing channel and flushing buffer...")
	close(t.ch)
	t.wg.Wait()
	t.logger.Info("decision trail stopped gracefully")
}

func (t *Trail) Record(d Decision) {
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now()
	}

	if atomic.LoadInt32(&t.isClosed) == 1 {
		t.logger.Warn("decision dropped: trail is stopping", zap.String("id", d.ID))
		return
	}

	// Load Shedding: переполненный буфер сбрасываем в обычный лог,
	// чтобы решение не пропало бесследно
	select {
	case t.ch <- d:
		t.metrics.AuditBufferFill.Set(float64(len(t.ch)))
	default:
		t.logger.Error("audit_buffer_overflow",
			zap.String("actor", d.ActorID),
			zap.Int64("request_id", d.RequestID),
			zap.String("action", d.Action),
			zap.String("outcome", d.Outcome),
		)
	}
}

func (t *Trail) worker() {
	defer t.wg.Done()

	batch := make([]Decision, 0, t.batchSize)
	ticker := time.NewTicker(t.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) > 0 {
			// Background: основной контекст к этому моменту может быть закрыт
			if err := t.repo.WriteBatch(context.Background(), batch); err != nil {
				t.logger.Error("decision flush failed", zap.Error(err))
			}
			batch = batch[:0]
		}
	}

	for {
		select {
		case d, ok := <-t.ch:
			if !ok {
				// Канал закрыт в Stop(): воркер сначала вычитал остатки
				// очереди и только потом получил ok == false.
				flush()
				t.logger.Info("decision trail worker finished")
				return
			}
			batch = append(batch, d)
			t.metrics.AuditBufferFill.Set(float64(len(t.ch)))
			if len(batch) >= t.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// NopRecorder — заглушка для запуска без журнала и для тестов.
type NopRecorder struct{}

func (NopRecorder) Record(Decision) {}
