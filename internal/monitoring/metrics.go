package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 采集流水线指标
	IngestRuns        *prometheus.CounterVec
	IngestRunDuration prometheus.Histogram
	EmailsFetched     prometheus.Counter
	EmailsIngested    prometheus.Counter
	EmailsSkipped     *prometheus.CounterVec

	// 分类指标
	Classifications        *prometheus.CounterVec
	ClassificationDuration prometheus.Histogram

	// 用户指标
	UsersRegistered prometheus.Counter

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "supportdesk_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "supportdesk_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		IngestRuns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "supportdesk_ingest_runs_total",
				Help: "Total number of ingestion runs",
			},
			[]string{"status"},
		),

		IngestRunDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "supportdesk_ingest_run_duration_seconds",
				Help:    "Ingestion run duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),

		EmailsFetched: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "supportdesk_emails_fetched_total",
				Help: "Total number of raw messages fetched from mailboxes",
			},
		),

		EmailsIngested: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "supportdesk_emails_ingested_total",
				Help: "Total number of emails stored",
			},
		),

		EmailsSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "supportdesk_emails_skipped_total",
				Help: "Total number of fetched messages skipped",
			},
			[]string{"reason"},
		),

		Classifications: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "supportdesk_classifications_total",
				Help: "Total number of classification attempts",
			},
			[]string{"provider", "outcome"},
		),

		ClassificationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "supportdesk_classification_duration_seconds",
				Help:    "Classification call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		UsersRegistered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "supportdesk_users_registered_total",
				Help: "Total number of users registered",
			},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "supportdesk_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "supportdesk_panics_total",
				Help: "Total number of panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordIngestRun 记录一次采集运行
func (m *Metrics) RecordIngestRun(status string, duration time.Duration) {
	m.IngestRuns.WithLabelValues(status).Inc()
	m.IngestRunDuration.Observe(duration.Seconds())
}

// RecordEmailsFetched 记录抓取到的原始邮件数
func (m *Metrics) RecordEmailsFetched(count int) {
	m.EmailsFetched.Add(float64(count))
}

// RecordEmailIngested 记录入库的邮件
func (m *Metrics) RecordEmailIngested() {
	m.EmailsIngested.Inc()
}

// RecordEmailSkipped 记录跳过的邮件
func (m *Metrics) RecordEmailSkipped(reason string) {
	m.EmailsSkipped.WithLabelValues(reason).Inc()
}

// RecordClassification 记录分类结果
func (m *Metrics) RecordClassification(provider, outcome string, duration time.Duration) {
	m.Classifications.WithLabelValues(provider, outcome).Inc()
	m.ClassificationDuration.Observe(duration.Seconds())
}

// RecordUserRegistered 记录用户注册
func (m *Metrics) RecordUserRegistered() {
	m.UsersRegistered.Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
