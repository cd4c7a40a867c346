package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/prabandh-gateway/internal/audit"
	"github.com/xela07ax/prabandh-gateway/internal/console/handler"
	consoleserver "github.com/xela07ax/prabandh-gateway/internal/console/server"
	"github.com/xela07ax/prabandh-gateway/internal/console/service"
	"github.com/xela07ax/prabandh-gateway/internal/dispatch"
	"github.com/xela07ax/prabandh-gateway/internal/domain"
	"github.com/xela07ax/prabandh-gateway/internal/infra"
	"github.com/xela07ax/prabandh-gateway/internal/repository/postgres"
	"github.com/xela07ax/prabandh-gateway/internal/session"
	syncer "github.com/xela07ax/prabandh-gateway/internal/sync"
	"github.com/xela07ax/prabandh-gateway/internal/upstream"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	// Контекст жизненного цикла фоновых горутин
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Инфраструктура и ресурсы
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if cfg.Database.URL == "" {
		logger.Fatal("database.url is required (decision journal)")
	}
	decisionRepo, err := postgres.NewDecisionRepo(cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to open postgres", zap.Error(err))
	}
	defer decisionRepo.Close()
	if err := decisionRepo.Ping(appCtx); err != nil {
		logger.Fatal("postgres is unreachable", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	metrics := infra.NewMetrics(reg)

	// Журнал решений: данные летят в базу пачками
	trail := audit.NewTrail(decisionRepo, cfg.Audit, metrics, logger)
	trail.Start()

	// 3. Сессия и внешний API
	store := session.NewStore()
	keeper := session.NewRedisKeeper(rdb)
	client := upstream.NewClient(cfg.Upstream, store, logger)
	manager := session.NewManager(store, keeper, client, logger)
	broadcast := session.NewExpiryBroadcast(rdb, logger)

	// 4. Витрины и поллеры
	views := service.NewViews(client, store, logger)
	registry := syncer.NewRegistry(logger)

	// Истекшая сессия гасит весь опрос и оповещает соседние процессы
	manager.OnExpired = func() {
		registry.DisableAll()
		host, _ := os.Hostname()
		broadcast.Publish(appCtx, host)
	}
	onFetchError := func(view string) func(error) {
		return func(err error) {
			metrics.FetchErrors.WithLabelValues(view, classifyFetchError(err)).Inc()
			if errors.Is(err, domain.ErrSessionExpired) {
				manager.HandleAuthFailure(appCtx)
			}
		}
	}

	leavePoller := syncer.NewPoller(syncer.Options{
		Name:           dispatch.ViewLeave,
		Interval:       cfg.Poll.ListInterval,
		InitialEnabled: true,
		Fetch:          views.FetchLeave,
		OnError:        onFetchError(dispatch.ViewLeave),
	}, logger, metrics)
	eventPoller := syncer.NewPoller(syncer.Options{
		Name:           dispatch.ViewEvent,
		Interval:       cfg.Poll.EventInterval,
		InitialEnabled: true,
		Fetch:          views.FetchEvents,
		OnError:        onFetchError(dispatch.ViewEvent),
	}, logger, metrics)
	registry.Add(dispatch.ViewLeave, leavePoller)
	registry.Add(dispatch.ViewEvent, eventPoller)

	// Сигнал об истечении от соседнего процесса гасит наши поллеры
	go broadcast.Listen(appCtx, func(origin string) {
		logger.Warn("session expired elsewhere, disabling polling", zap.String("origin", origin))
		registry.DisableAll()
	})

	// 5. Восстановление сессии: к возврату Initialize стор либо
	// аутентифицирован, либо чист — опрос стартует только в первом случае
	if err := manager.Initialize(appCtx); err != nil {
		logger.Fatal("session initialization failed", zap.Error(err))
	}
	if store.IsAuthenticated() {
		leavePoller.Start()
		eventPoller.Start()
	} else {
		registry.DisableAll()
		logger.Info("no session: waiting for login before polling starts")
	}

	// 6. Диспетчер действий
	dispatcher := dispatch.NewDispatcher(client, store, trail, metrics, logger)
	dispatcher.OnAuthFailure = manager.HandleAuthFailure
	dispatcher.Refresh = func(view string) {
		if p, ok := registry.Get(view); ok {
			go func() { _ = p.ManualRefresh() }()
		}
	}

	// 7. Console API
	authService := service.NewAuthService(manager, registry, views, logger)
	auditService := service.NewAuditService(decisionRepo)

	srv := consoleserver.NewConsoleServer(
		cfg,
		logger,
		store,
		handler.NewAuthHandler(authService),
		handler.NewLeaveHandler(views, dispatcher),
		handler.NewEventHandler(views, dispatcher),
		handler.NewActionsHandler(store),
		handler.NewPollHandler(registry),
		handler.NewAuditHandler(auditService),
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	)

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 8. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("portal gateway started", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-stop
	logger.Info("portal gateway stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	// Порядок важен: сначала гасим опрос, потом доливаем журнал
	registry.StopAll()
	cancel()
	trail.Stop()
	logger.Info("portal gateway exited properly")
}

func classifyFetchError(err error) string {
	switch {
	case errors.Is(err, domain.ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, domain.ErrPermissionDenied):
		return "permission_denied"
	default:
		return "network"
	}
}
