package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 自定义业务指标。
// 所有记录方法对 nil 接收者安全，组件可在未启用指标时传 nil。
type AppMetrics struct {
	IngestTotal     *prometheus.CounterVec   // labels: transport, result
	IngestDuration  *prometheus.HistogramVec // labels: transport
	AlertsCreated   *prometheus.CounterVec   // labels: type, severity
	AlertTransition *prometheus.CounterVec   // labels: op

	EscalationsTotal      *prometheus.CounterVec // labels: severity
	EscalationSweepTime   prometheus.Histogram
	EscalationSweepSkip   prometheus.Counter
	EscalationSweepErrors prometheus.Counter

	NotifyEnqueued *prometheus.CounterVec // labels: backend
	NotifyDropped  *prometheus.CounterVec // labels: reason
	NotifySent     *prometheus.CounterVec // labels: channel, result

	WSClients        prometheus.Gauge
	WSDroppedClients prometheus.Counter

	EventsExported *prometheus.CounterVec // labels: result
	MQTTConnected  prometheus.Gauge
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg prometheus.Registerer) *AppMetrics {
	m := &AppMetrics{
		IngestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_total",
			Help: "Telemetry samples received, by transport and result.",
		}, []string{"transport", "result"}),
		IngestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ingest_duration_seconds",
			Help:    "End-to-end ingestion latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"transport"}),
		AlertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alerts_created_total",
			Help: "Alerts created by type and severity.",
		}, []string{"type", "severity"}),
		AlertTransition: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alert_transitions_total",
			Help: "Alert lifecycle operations applied.",
		}, []string{"op"}),
		EscalationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "escalations_total",
			Help: "Alerts escalated by severity.",
		}, []string{"severity"}),
		EscalationSweepTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "escalation_sweep_duration_seconds",
			Help:    "Duration of one escalation sweep.",
			Buckets: prometheus.DefBuckets,
		}),
		EscalationSweepSkip: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escalation_sweep_skipped_total",
			Help: "Sweeps skipped because a previous sweep was still running.",
		}),
		EscalationSweepErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "escalation_sweep_errors_total",
			Help: "Sweeps that failed to list candidates.",
		}),
		NotifyEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_enqueued_total",
			Help: "Outbound notification jobs enqueued.",
		}, []string{"backend"}),
		NotifyDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_dropped_total",
			Help: "Outbound notification jobs dropped.",
		}, []string{"reason"}),
		NotifySent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_sent_total",
			Help: "Outbound notification deliveries by channel and result.",
		}, []string{"channel", "result"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ws_clients",
			Help: "Currently connected live subscribers.",
		}),
		WSDroppedClients: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ws_dropped_clients_total",
			Help: "Live subscribers disconnected for being too slow.",
		}),
		EventsExported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "events_exported_total",
			Help: "Lifecycle events written to Kafka.",
		}, []string{"result"}),
		MQTTConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mqtt_connected",
			Help: "1 when the MQTT binding is connected.",
		}),
	}
	reg.MustRegister(
		m.IngestTotal, m.IngestDuration, m.AlertsCreated, m.AlertTransition,
		m.EscalationsTotal, m.EscalationSweepTime, m.EscalationSweepSkip, m.EscalationSweepErrors,
		m.NotifyEnqueued, m.NotifyDropped, m.NotifySent,
		m.WSClients, m.WSDroppedClients,
		m.EventsExported, m.MQTTConnected,
	)
	return m
}

func (m *AppMetrics) ObserveIngest(transport, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.IngestTotal.WithLabelValues(transport, result).Inc()
	m.IngestDuration.WithLabelValues(transport).Observe(d.Seconds())
}

func (m *AppMetrics) AlertCreated(typ, severity string) {
	if m == nil {
		return
	}
	m.AlertsCreated.WithLabelValues(typ, severity).Inc()
}

func (m *AppMetrics) Transition(op string) {
	if m == nil {
		return
	}
	m.AlertTransition.WithLabelValues(op).Inc()
}

func (m *AppMetrics) Escalated(severity string) {
	if m == nil {
		return
	}
	m.EscalationsTotal.WithLabelValues(severity).Inc()
}

func (m *AppMetrics) SweepDone(d time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.EscalationSweepTime.Observe(d.Seconds())
	if failed {
		m.EscalationSweepErrors.Inc()
	}
}

func (m *AppMetrics) SweepSkipped() {
	if m == nil {
		return
	}
	m.EscalationSweepSkip.Inc()
}

func (m *AppMetrics) NotifyQueued(backend string) {
	if m == nil {
		return
	}
	m.NotifyEnqueued.WithLabelValues(backend).Inc()
}

func (m *AppMetrics) NotifyDrop(reason string) {
	if m == nil {
		return
	}
	m.NotifyDropped.WithLabelValues(reason).Inc()
}

func (m *AppMetrics) NotifyResult(channel string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.NotifySent.WithLabelValues(channel, result).Inc()
}

func (m *AppMetrics) SetWSClients(n int) {
	if m == nil {
		return
	}
	m.WSClients.Set(float64(n))
}

func (m *AppMetrics) WSDropped() {
	if m == nil {
		return
	}
	m.WSDroppedClients.Inc()
}

func (m *AppMetrics) Exported(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.EventsExported.WithLabelValues("error").Inc()
		return
	}
	m.EventsExported.WithLabelValues("ok").Inc()
}

func (m *AppMetrics) SetMQTTConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.MQTTConnected.Set(1)
		return
	}
	m.MQTTConnected.Set(0)
}
