package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xela07ax/prabandh-gateway/internal/console/handler"
	"github.com/xela07ax/prabandh-gateway/internal/infra"
)

// SessionCheck — минимум, который нужен охране периметра: есть сессия
// или нет. Консоль не ведет собственных аккаунтов, она делит сессию
// процесса с поллерами и диспетчером.
type SessionCheck interface {
	IsAuthenticated() bool
}

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger
	cfg    *infra.Config

	session SessionCheck

	// Обработчики бизнес-доменов
	authHandler    *handler.AuthHandler    // /auth/login, /v1/session
	leaveHandler   *handler.LeaveHandler   // /v1/leave/applications
	eventHandler   *handler.EventHandler   // /v1/events
	actionsHandler *handler.ActionsHandler // /v1/actions
	pollHandler    *handler.PollHandler    // /v1/poll
	auditHandler   *handler.AuditHandler   // /v1/audit

	metricsHandler http.Handler // /metrics (Prometheus)
}

// NewConsoleServer инициализирует сервер портала со всеми зависимостями
func NewConsoleServer(
	cfg *infra.Config,
	logger *zap.Logger,
	session SessionCheck,
	authH *handler.AuthHandler,
	leaveH *handler.LeaveHandler,
	eventH *handler.EventHandler,
	actionsH *handler.ActionsHandler,
	pollH *handler.PollHandler,
	auditH *handler.AuditHandler,
	metricsH http.Handler,
) *ConsoleServer {
	s := &ConsoleServer{
		router:         chi.NewRouter(),
		logger:         logger.Named("console-api"),
		cfg:            cfg,
		session:        session,
		authHandler:    authH,
		leaveHandler:   leaveH,
		eventHandler:   eventH,
		actionsHandler: actionsH,
		pollHandler:    pollH,
		auditHandler:   auditH,
		metricsHandler: metricsH,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ (Открыты для всех) ---
	r.Group(func(r chi.Router) {
		// Логин должен быть доступен без сессии
		r.Post("/auth/login", s.authHandler.Login)

		// Healthcheck для мониторинга
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		if s.metricsHandler != nil {
			r.Handle("/metrics", s.metricsHandler)
		}
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требует живой сессии) ---
	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)

		r.Get("/v1/session", s.authHandler.Session)
		r.Post("/v1/auth/logout", s.authHandler.Logout)

		// Заявки на отпуск (витрина + действия workflow)
		r.Route("/v1/leave/applications", func(r chi.Router) {
			r.Get("/", s.leaveHandler.List) // Снимок очереди текущей роли
			r.Post("/{id}/{action}", s.leaveHandler.Act)
		})

		// Мероприятия (одностадийное решение VC)
		r.Route("/v1/events", func(r chi.Router) {
			r.Get("/", s.eventHandler.List)
			r.Patch("/{id}/approve", s.eventHandler.Decide)
		})

		// Проекция таблицы переходов для рендера кнопок
		r.Get("/v1/actions", s.actionsHandler.List)

		// Управление опросом
		r.Route("/v1/poll", func(r chi.Router) {
			r.Post("/refresh", s.pollHandler.Refresh)
			r.Post("/enabled", s.pollHandler.SetEnabled)
		})

		// Журнал решений (Observability)
		r.Get("/v1/audit", s.auditHandler.GetDecisions)
	})
}

// requireSession отвечает 401, пока процесс не залогинен во внешнюю
// систему. Никакого собственного токена у консоли нет.
func (s *ConsoleServer) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.session.IsAuthenticated() {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
