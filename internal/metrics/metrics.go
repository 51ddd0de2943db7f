package metrics

import (
	"database/sql"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const namespace = "crm_pipeline"

var (
	httpBuckets     = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	queryBuckets    = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}
	externalBuckets = []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
)

// Metrics holds every collector the service exports. All recording methods
// recover from panics so instrumentation can never fail a request.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	DBConnectionsOpen        prometheus.Gauge
	DBConnectionsInUse       prometheus.Gauge
	DBConnectionsIdle        prometheus.Gauge
	DBConnectionsMax         prometheus.Gauge
	DBConnectionWaitTotal    prometheus.Counter
	DBConnectionWaitDuration prometheus.Counter
	DBQueryDuration          *prometheus.HistogramVec
	DBQueryErrors            *prometheus.CounterVec

	ExternalAPIRequestDuration *prometheus.HistogramVec
	ExternalAPIRequestsTotal   *prometheus.CounterVec
	ExternalAPIErrors          *prometheus.CounterVec

	DealsTotal               *prometheus.GaugeVec
	ActivePipelineValue      prometheus.Gauge
	WeightedPipelineValue    prometheus.Gauge
	DealCreatedTotal         prometheus.Counter
	StageTransitionsTotal    *prometheus.CounterVec
	DealClosedTotal          *prometheus.CounterVec
	FileUploadedTotal        prometheus.Counter
	ScheduleInstancesCreated prometheus.Counter
	BoardCacheRequestsTotal  *prometheus.CounterVec

	poolMu   sync.Mutex
	lastPool sql.DBStats

	logger *zap.Logger
}

// New registers on the default registry, which is what /metrics serves
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer, nil)
}

func NewWithLogger(logger *zap.Logger) *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer, logger)
}

// NewWithRegistry registers on registerer. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration panics.
func NewWithRegistry(registerer prometheus.Registerer, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	f := builder{promauto.With(registerer)}

	return &Metrics{
		HTTPRequestsTotal: f.counterVec("http_requests_total",
			"Total number of HTTP requests", "method", "endpoint", "status"),
		HTTPRequestDuration: f.histogramVec("http_request_duration_seconds",
			"HTTP request duration in seconds", httpBuckets, "method", "endpoint"),

		DBConnectionsOpen:  f.gauge("db_connections_open", "Current number of open database connections"),
		DBConnectionsInUse: f.gauge("db_connections_in_use", "Current number of in-use database connections"),
		DBConnectionsIdle:  f.gauge("db_connections_idle", "Current number of idle database connections"),
		DBConnectionsMax:   f.gauge("db_connections_max", "Maximum number of open database connections configured"),
		DBConnectionWaitTotal: f.counter("db_connection_wait_total",
			"Total number of times waited for a database connection"),
		DBConnectionWaitDuration: f.counter("db_connection_wait_duration_seconds_total",
			"Total duration waited for database connections in seconds"),
		DBQueryDuration: f.histogramVec("db_query_duration_seconds",
			"Database query duration in seconds", queryBuckets, "operation", "table"),
		DBQueryErrors: f.counterVec("db_query_errors_total",
			"Total number of database query errors", "operation", "table"),

		ExternalAPIRequestDuration: f.histogramVec("external_api_request_duration_seconds",
			"External API request duration in seconds", externalBuckets, "endpoint", "status"),
		ExternalAPIRequestsTotal: f.counterVec("external_api_requests_total",
			"Total number of external API requests", "endpoint", "method", "status"),
		ExternalAPIErrors: f.counterVec("external_api_errors_total",
			"Total number of external API errors", "endpoint", "error_type"),

		DealsTotal: f.gaugeVec("deals_total", "Current number of deals per pipeline stage", "stage"),
		ActivePipelineValue: f.gauge("active_pipeline_value",
			"Sum of estimated values of deals in active stages"),
		WeightedPipelineValue: f.gauge("weighted_pipeline_value",
			"Sum of probability-weighted estimated values of deals in active stages"),
		DealCreatedTotal: f.counter("deal_created_total", "Total number of deal creation events"),
		StageTransitionsTotal: f.counterVec("stage_transitions_total",
			"Total number of deal stage changes", "from", "to"),
		DealClosedTotal: f.counterVec("deal_closed_total",
			"Total number of deals entering a closed stage", "outcome"),
		FileUploadedTotal: f.counter("file_uploaded_total", "Total number of deal file uploads"),
		ScheduleInstancesCreated: f.counter("schedule_instances_created_total",
			"Total number of schedule instances generated from recurring schedules"),
		BoardCacheRequestsTotal: f.counterVec("board_cache_requests_total",
			"Board cache lookups by result", "result"),

		logger: logger,
	}
}

// builder applies the service namespace to every collector
type builder struct {
	factory promauto.Factory
}

func (b builder) counter(name, help string) prometheus.Counter {
	return b.factory.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
}

func (b builder) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return b.factory.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
}

func (b builder) gauge(name, help string) prometheus.Gauge {
	return b.factory.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
}

func (b builder) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return b.factory.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help}, labels)
}

func (b builder) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return b.factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
}

func (m *Metrics) safeExecute(operation string, fn func()) {
	defer func() {
		if r := recover(); r != nil && m.logger != nil {
			m.logger.Error("Panic in metrics operation",
				zap.String("operation", operation),
				zap.Any("panic", r))
		}
	}()
	fn()
}
