package sync

/*
Пакет sync — единый примитив фоновой синхронизации списков.

Каждое представление (заявки HR, согласования декана, мероприятия VC)
держит свой снимок серверного состояния актуальным через Poller, а не
через разбросанные по коду таймеры. Инварианты single-flight, отмены и
сброса устаревших результатов обеспечиваются здесь один раз и для всех.
*/

import (
	"context"
	stdsync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/prabandh-gateway/internal/infra"
)

// FetchFunc — callback обновления снимка. silent=true означает фоновый
// цикл: никакой видимый пользователю индикатор загрузки не трогается,
// наблюдаемо только само замещение данных.
//
// Реализация обязана проверять ctx перед применением результата:
// после Stop() контекст отменен, и долетевший поздний ответ сети
// должен быть выброшен, а не применен.
type FetchFunc func(ctx context.Context, silent bool) error

// Options параметризует Poller.
type Options struct {
	Name           string
	Interval       time.Duration
	InitialEnabled bool
	Fetch          FetchFunc
	OnError        func(error) // сюда летят все ошибки fetch'а, тихие и ручные
}

// Poller — таймерный цикл обновления с одним живым таймером на экземпляр.
//
// Poller ничего не знает про авторизацию: получив 401-класс в OnError,
// владелец сам обязан вызвать SetEnabled(false) — иначе цикл продолжит
// долбить сервер заведомо обреченными запросами.
type Poller struct {
	mu       stdsync.Mutex
	name     string
	interval time.Duration
	enabled  bool
	stopped  bool
	inFlight bool
	gen      uint64 // поколение таймера: рестарт инвалидирует старый цикл

	fetch   FetchFunc
	onError func(error)

	ctx    context.Context
	cancel context.CancelFunc

	logger  *zap.Logger
	metrics *infra.Metrics
}

func NewPoller(opts Options, logger *zap.Logger, metrics *infra.Metrics) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	if metrics == nil {
		metrics = infra.NewMetrics(nil)
	}
	return &Poller{
		name:     opts.Name,
		interval: opts.Interval,
		enabled:  opts.InitialEnabled,
		fetch:    opts.Fetch,
		onError:  opts.OnError,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.Named("poller").With(zap.String("view", opts.Name)),
		metrics:  metrics,
	}
}

// Start выполняет немедленный громкий fetch (первый рендер не ждет
// полного интервала) и, если поллер включен, запускает таймерный цикл.
func (p *Poller) Start() {
	p.runFetch(false)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enabled && !p.stopped {
		p.metrics.PollersEnabled.Inc()
		p.gen++
		go p.loop(p.gen, p.interval)
	}
}

// loop — один таймерный цикл. Живет, пока его поколение актуально.
func (p *Poller) loop(gen uint64, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.mu.Lock()
			stale := p.gen != gen || !p.enabled || p.stopped
			p.mu.Unlock()
			if stale {
				return
			}
			p.runFetch(true)
		}
	}
}

// runFetch — единственная точка вызова callback'а. Гарантирует
// single-flight: пока предыдущий fetch (тихий или ручной) в полете,
// новый не стартует, даже если сеть тормозит дольше интервала.
func (p *Poller) runFetch(silent bool) error {
	p.mu.Lock()
	if p.stopped || p.inFlight {
		p.mu.Unlock()
		return nil
	}
	p.inFlight = true
	p.mu.Unlock()

	mode := "manual"
	if silent {
		mode = "silent"
	}
	p.metrics.FetchTotal.WithLabelValues(p.name, mode).Inc()

	start := time.Now()
	err := p.fetch(p.ctx, silent)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.metrics.FetchDuration.WithLabelValues(p.name, mode, outcome).Observe(time.Since(start).Seconds())

	p.mu.Lock()
	p.inFlight = false
	discarded := p.stopped
	p.mu.Unlock()

	// Результат, долетевший после Stop(), не существует:
	// ни данных, ни ошибок наружу.
	if discarded {
		return nil
	}

	if err != nil {
		p.logger.Warn("fetch failed", zap.String("mode", mode), zap.Error(err))
		if p.onError != nil {
			p.onError(err)
		}
	}
	return err
}

// ManualRefresh — громкое обновление вне таймера. Фазу таймера не
// сбрасывает. Если fetch уже в полете, нового не порождаем: свежие
// данные и так вот-вот приедут.
func (p *Poller) ManualRefresh() error {
	return p.runFetch(false)
}

// SetEnabled включает/выключает цикл. Смена состояния пересоздает
// таймер: старый цикл умирает по смене поколения, живым остается
// максимум один.
func (p *Poller) SetEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || p.enabled == enabled {
		return
	}
	p.enabled = enabled
	p.gen++
	if enabled {
		p.metrics.PollersEnabled.Inc()
		go p.loop(p.gen, p.interval)
	} else {
		p.metrics.PollersEnabled.Dec()
	}
	p.logger.Info("polling toggled", zap.Bool("enabled", enabled))
}

// SetInterval меняет период и перезапускает таймер.
func (p *Poller) SetInterval(interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || interval <= 0 {
		return
	}
	p.interval = interval
	p.gen++
	if p.enabled {
		go p.loop(p.gen, interval)
	}
}

// Enabled сообщает текущее состояние цикла.
func (p *Poller) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled && !p.stopped
}

// Stop гасит поллер навсегда. Идемпотентен. После возврата ни один
// результат fetch'а применен не будет: контекст отменен, а поздние
// ответы отбрасываются флагом stopped.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	if p.enabled {
		p.metrics.PollersEnabled.Dec()
		p.enabled = false
	}
	p.gen++
	p.mu.Unlock()

	p.cancel()
	p.logger.Info("poller stopped")
}
