package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: сколько времени занял fetch снимка у внешнего API
	FetchDuration *prometheus.HistogramVec

	// Traffic: фоновые и ручные обновления по каждому списку
	FetchTotal *prometheus.CounterVec

	// Errors: классификация отказов синхронизации
	FetchErrors *prometheus.CounterVec

	// Диспетчеризация переходов (approve/reject/forward)
	DispatchTotal *prometheus.CounterVec

	// Saturation: сколько поллеров сейчас живо и включено
	PollersEnabled prometheus.Gauge

	// Audit: заполненность буфера журнала решений (backpressure)
	AuditBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern — если рег не передан, используем локальный,
	// который никуда не подключен (удобно в тестах)
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		FetchDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_fetch_duration_seconds",
			Help:    "Histogram of snapshot fetch latencies.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"view", "mode", "outcome"}),

		FetchTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "portal_fetch_total",
			Help: "Total number of snapshot fetches.",
		}, []string{"view", "mode"}), // mode: silent / manual

		FetchErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "portal_fetch_errors_total",
			Help: "Total number of fetch errors by class.",
		}, []string{"view", "class"}), // классы: network, session_expired, permission_denied

		DispatchTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "portal_dispatch_total",
			Help: "Total number of dispatched workflow transitions.",
		}, []string{"action", "outcome"}),

		PollersEnabled: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "portal_pollers_enabled",
			Help: "Number of pollers currently enabled.",
		}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "portal_audit_buffer_utilization",
			Help: "Current number of records in the decision journal buffer.",
		}),
	}
}
