package sync

import (
	stdsync "sync"

	"go.uber.org/zap"
)

// Registry отслеживает все живые поллеры процесса.
//
// Нужен ровно для одного cross-cutting правила: истекшая сессия гасит
// каждый поллер, деливший ее учетные данные. Все остальные классы
// ошибок остаются локальными для своего представления.
type Registry struct {
	mu      stdsync.Mutex
	pollers map[string]*Poller
	logger  *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		pollers: make(map[string]*Poller),
		logger:  logger.Named("poll-registry"),
	}
}

func (r *Registry) Add(name string, p *Poller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pollers[name] = p
}

// Get возвращает поллер витрины по имени.
func (r *Registry) Get(name string) (*Poller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pollers[name]
	return p, ok
}

// DisableAll выключает все зарегистрированные поллеры. Вызывается при
// сигнале об истечении сессии — локальном или прилетевшем по Redis.
func (r *Registry) DisableAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, p := range r.pollers {
		p.SetEnabled(false)
		r.logger.Info("poller disabled by session shutdown", zap.String("view", name))
	}
}

// EnableAll включает поллеры обратно — после успешного re-login.
func (r *Registry) EnableAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pollers {
		p.SetEnabled(true)
	}
}

// RefreshAll — громкое обновление всех витрин, не дожидаясь таймеров.
// Вызывается после re-login: оператор должен увидеть данные сразу.
func (r *Registry) RefreshAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pollers {
		go func(p *Poller) { _ = p.ManualRefresh() }(p)
	}
}

// StopAll — терминальная остановка при завершении процесса.
func (r *Registry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pollers {
		p.Stop()
	}
}
