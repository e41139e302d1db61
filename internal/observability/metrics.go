package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// RPC transport metrics
	RPCRequestsTotal   *prometheus.CounterVec
	RPCRequestDuration *prometheus.HistogramVec
	RPCActiveConns     prometheus.Gauge
	RPCAuthFailures    *prometheus.CounterVec

	// Credential Engine metrics
	HandshakesTotal     *prometheus.CounterVec
	CertGenerations     *prometheus.CounterVec
	CredentialAsyncJobs *prometheus.GaugeVec

	// Peer Session metrics
	SessionsActive        prometheus.Gauge
	SessionStateTransitions *prometheus.CounterVec
	SequenceErrors        *prometheus.CounterVec

	// Pipeline Bridge metrics
	InvokesTotal      *prometheus.CounterVec
	InvokeLatency     *prometheus.HistogramVec
	InferenceErrors   *prometheus.CounterVec
	PipelineQueueDrop *prometheus.CounterVec

	// Model upload metrics
	ModelUploadsTotal *prometheus.CounterVec
	ModelUploadBytes  *prometheus.CounterVec

	// Audit log metrics (Postgres)
	AuditEventsTotal *prometheus.CounterVec
	AuditWriteErrors *prometheus.CounterVec

	// Distributed session mirror metrics (Redis)
	SessionMirrorWrites *prometheus.CounterVec
	SessionMirrorErrors *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBConnections   *prometheus.GaugeVec
	DBErrors        *prometheus.CounterVec

	// Ops HTTP surface metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
// All metrics follow naming conventions: beyond_<subsystem>_<metric>_<unit>
// Complexity: O(1)
func NewMetrics() *Metrics {
	m := &Metrics{
		// RPC transport metrics
		RPCRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beyond_rpc_requests_total",
				Help: "Total number of RPC requests handled by the transport server",
			},
			[]string{"method", "status"}, // status: ok, error
		),

		RPCRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "beyond_rpc_request_duration_milliseconds",
				Help:    "RPC request handling duration in milliseconds",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
			[]string{"method"},
		),

		RPCActiveConns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "beyond_rpc_active_connections",
				Help: "Number of currently open Device connections",
			},
		),

		RPCAuthFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beyond_rpc_auth_failures_total",
				Help: "Total number of nonce/peer_id authentication failures",
			},
			[]string{"method"},
		),

		// Credential Engine metrics
		HandshakesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beyond_handshakes_total",
				Help: "Total number of ExchangeKey attempts",
			},
			[]string{"status"}, // ok, error
		),

		CertGenerations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beyond_cert_generations_total",
				Help: "Total number of self-signed certificates generated during Prepare",
			},
			[]string{"status"},
		),

		CredentialAsyncJobs: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "beyond_credential_async_jobs",
				Help: "Number of pending async Credential Engine jobs",
			},
			[]string{"kind"}, // generate_keypair, generate_cert, generate_symmetric_key
		),

		// Peer Session metrics
		SessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "beyond_sessions_active",
				Help: "Number of live Peer Sessions across all connected Devices",
			},
		),

		SessionStateTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beyond_session_state_transitions_total",
				Help: "Total number of Peer Session state transitions",
			},
			[]string{"from", "to"},
		),

		SequenceErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beyond_sequence_errors_total",
				Help: "Total number of illegal Peer Session state transitions rejected",
			},
			[]string{"from", "attempted"},
		),

		// Pipeline Bridge metrics
		InvokesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beyond_invokes_total",
				Help: "Total number of Invoke calls accepted by a Pipeline Bridge",
			},
			[]string{"status"}, // accepted, dropped_full
		),

		InvokeLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "beyond_invoke_latency_milliseconds",
				Help:    "Time from Invoke to the matching OutputEvent in milliseconds",
				Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
			},
			[]string{"transport"}, // tcp, srtp
		),

		InferenceErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beyond_inference_errors_total",
				Help: "Total number of INFERENCE_ERROR events published by a Pipeline Bridge",
			},
			[]string{"transport"},
		),

		PipelineQueueDrop: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beyond_pipeline_queue_drops_total",
				Help: "Total number of outputs dropped because the Bridge's output queue was full",
			},
			[]string{"reason"},
		),

		// Model upload metrics
		ModelUploadsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beyond_model_uploads_total",
				Help: "Total number of UploadModel streams completed",
			},
			[]string{"status"},
		),

		ModelUploadBytes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beyond_model_upload_bytes_total",
				Help: "Total bytes received via UploadModel",
			},
			[]string{"edge_uuid"},
		),

		// Audit log metrics
		AuditEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beyond_audit_events_total",
				Help: "Total number of audit events recorded",
			},
			[]string{"event_type"},
		),

		AuditWriteErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beyond_audit_write_errors_total",
				Help: "Total number of failed audit event writes",
			},
			[]string{"event_type"},
		),

		// Distributed session mirror metrics
		SessionMirrorWrites: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beyond_session_mirror_writes_total",
				Help: "Total number of SessionContext snapshots written to Redis",
			},
			[]string{"status"},
		),

		SessionMirrorErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beyond_session_mirror_errors_total",
				Help: "Total number of failed Redis session mirror writes",
			},
			[]string{"op"}, // set, delete
		),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "beyond_db_query_duration_milliseconds",
				Help:    "Database query duration in milliseconds",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
			},
			[]string{"operation", "table"},
		),

		DBConnections: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "beyond_db_connections",
				Help: "Number of database connections",
			},
			[]string{"state"}, // idle, in_use, open
		),

		DBErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beyond_db_errors_total",
				Help: "Total number of database errors",
			},
			[]string{"operation", "error_type"},
		),

		// Ops HTTP surface metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beyond_http_requests_total",
				Help: "Total number of ops HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "beyond_http_request_duration_milliseconds",
				Help:    "Ops HTTP request duration in milliseconds",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
			},
			[]string{"method", "path"},
		),
	}

	return m
}
