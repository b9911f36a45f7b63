package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	AuthzDecisionsTotal *prometheus.CounterVec

	// Claims sync metrics
	ClaimsSyncTotal    *prometheus.CounterVec
	ClaimsSyncDuration *prometheus.HistogramVec
	StaleClaimsTotal   prometheus.Counter

	// Tenancy metrics
	TenancyChecksTotal *prometheus.CounterVec

	// Migration metrics
	MigrationEntitiesTotal *prometheus.CounterVec
	MigrationRunDuration   *prometheus.HistogramVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasknest_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tasknest_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasknest_authz_decisions_total",
				Help: "Total number of authorization decisions",
			},
			[]string{"operation", "decision"},
		),
		ClaimsSyncTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasknest_claims_sync_total",
				Help: "Total number of claims synchronization writes",
			},
			[]string{"operation", "status"},
		),
		ClaimsSyncDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tasknest_claims_sync_duration_seconds",
				Help:    "Claims synchronization write duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation"},
		),
		StaleClaimsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tasknest_stale_claims_total",
				Help: "Total number of stale claims snapshots detected",
			},
		),
		TenancyChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasknest_tenancy_checks_total",
				Help: "Total number of tenancy guard checks",
			},
			[]string{"check", "status"},
		),
		MigrationEntitiesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasknest_migration_entities_total",
				Help: "Total number of entities processed by role migration",
			},
			[]string{"entity_type", "status"},
		),
		MigrationRunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tasknest_migration_run_duration_seconds",
				Help:    "Migration run duration in seconds",
				Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"operation"},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tasknest_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tasknest_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthzDecisionsTotal,
		m.ClaimsSyncTotal,
		m.ClaimsSyncDuration,
		m.StaleClaimsTotal,
		m.TenancyChecksTotal,
		m.MigrationEntitiesTotal,
		m.MigrationRunDuration,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// RecordHTTPRequest records an HTTP request observation.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordDecision records an allow/deny authorization decision.
func (m *Metrics) RecordDecision(operation string, allowed bool) {
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	m.AuthzDecisionsTotal.WithLabelValues(operation, decision).Inc()
}

// RecordClaimsSync records a claims synchronization write.
func (m *Metrics) RecordClaimsSync(operation string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.ClaimsSyncTotal.WithLabelValues(operation, status).Inc()
	m.ClaimsSyncDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordTenancyCheck records a tenancy guard check outcome.
func (m *Metrics) RecordTenancyCheck(check string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.TenancyChecksTotal.WithLabelValues(check, status).Inc()
}

// RecordMigrationEntity records one migrated entity outcome.
func (m *Metrics) RecordMigrationEntity(entityType, status string) {
	m.MigrationEntitiesTotal.WithLabelValues(entityType, status).Inc()
}

// Handler returns the HTTP handler exposing the registry.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
