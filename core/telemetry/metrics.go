package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsReporter 把事件转成 Prometheus 指标
type MetricsReporter struct {
	ResolveTotal    *prometheus.CounterVec
	ResolveDuration *prometheus.HistogramVec
	AttemptsTotal   *prometheus.CounterVec
	AttemptDuration *prometheus.HistogramVec
	SharedTotal     prometheus.Counter
}

// NewMetricsReporter 创建并注册指标；reg 为 nil 时使用默认注册表
func NewMetricsReporter(reg prometheus.Registerer) (*MetricsReporter, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &MetricsReporter{
		ResolveTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qfm_resolve_total",
				Help: "Total number of URL resolutions by origin and outcome",
			},
			[]string{"origin", "outcome"},
		),
		ResolveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qfm_resolve_duration_seconds",
				Help:    "Time spent resolving a playback URL",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"origin"},
		),
		AttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "qfm_source_attempts_total",
				Help: "Total number of upstream source fetches",
			},
			[]string{"source", "result"},
		),
		AttemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "qfm_source_duration_seconds",
				Help:    "Latency of upstream source fetches",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		SharedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "qfm_resolve_shared_total",
				Help: "Resolutions served by joining another caller's in-flight fetch",
			},
		),
	}

	for _, c := range []prometheus.Collector{
		m.ResolveTotal,
		m.ResolveDuration,
		m.AttemptsTotal,
		m.AttemptDuration,
		m.SharedTotal,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *MetricsReporter) Report(_ context.Context, e Event) {
	switch e.Kind {
	case EventAttempt:
		result := e.Result
		if e.ErrorKind != "" {
			result = e.ErrorKind
		}
		m.AttemptsTotal.WithLabelValues(e.Source.Lower(), result).Inc()
		m.AttemptDuration.WithLabelValues(e.Source.Lower()).Observe(e.Latency.Seconds())
	case EventHit, EventDegraded, EventFailed:
		origin := e.Origin
		if origin == "" {
			origin = "none"
		}
		outcome := "hit"
		switch e.Kind {
		case EventDegraded:
			outcome = "degraded"
		case EventFailed:
			outcome = "failed"
		}
		m.ResolveTotal.WithLabelValues(origin, outcome).Inc()
		m.ResolveDuration.WithLabelValues(origin).Observe(e.Latency.Seconds())
		if e.Shared {
			m.SharedTotal.Inc()
		}
	}
}
