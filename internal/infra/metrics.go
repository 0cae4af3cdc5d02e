package infra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — счетчики движка решений для Prometheus.
// Регистрируются через promauto на явном Registry, чтобы тесты могли
// поднимать изолированные экземпляры без глобального состояния.
type Metrics struct {
	// Вердикты по цепочкам: chain = dispatch | identity, verdict = AUTHORIZED | DENIED
	Decisions *prometheus.CounterVec

	// Упавшие шаги полной цепочки (по имени шага)
	StepFailures *prometheus.CounterVec

	// Латентность прогона цепочки
	DecisionDuration *prometheus.HistogramVec

	// Текущее заполнение буфера журнала аудита (backpressure)
	AuditBufferDepth prometheus.Gauge

	// Срабатывания деградационного пути генератора кодов
	SequenceFallbacks prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trufleet",
			Subsystem: "authz",
			Name:      "decisions_total",
			Help:      "Authorization verdicts issued, by chain and verdict.",
		}, []string{"chain", "verdict"}),

		StepFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trufleet",
			Subsystem: "authz",
			Name:      "step_failures_total",
			Help:      "Verification chain steps that resolved to FAIL, by step name.",
		}, []string{"step"}),

		DecisionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "trufleet",
			Subsystem: "authz",
			Name:      "decision_duration_seconds",
			Help:      "Verification chain evaluation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"chain"}),

		AuditBufferDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "trufleet",
			Subsystem: "authz",
			Name:      "audit_buffer_depth",
			Help:      "Entries currently queued in the audit trail buffer.",
		}),

		SequenceFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: "trufleet",
			Subsystem: "authz",
			Name:      "sequence_fallbacks_total",
			Help:      "Sequence codes issued via the audit-count fallback path.",
		}),
	}
}
