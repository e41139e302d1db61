package observability

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	testMetrics     *Metrics
	testMetricsOnce sync.Once
)

// getTestMetrics returns a singleton metrics instance for all tests
// This prevents duplicate Prometheus registration errors since metrics
// are registered globally
func getTestMetrics() *Metrics {
	testMetricsOnce.Do(func() {
		testMetrics = NewMetrics()
	})
	return testMetrics
}

func TestNewMetrics(t *testing.T) {
	metrics := getTestMetrics()
	assert.NotNil(t, metrics)
	assert.NotNil(t, metrics.RPCRequestsTotal)
	assert.NotNil(t, metrics.RPCRequestDuration)
	assert.NotNil(t, metrics.HandshakesTotal)
	assert.NotNil(t, metrics.SessionsActive)
	assert.NotNil(t, metrics.InvokesTotal)
	assert.NotNil(t, metrics.InferenceErrors)
	assert.NotNil(t, metrics.AuditEventsTotal)
	assert.NotNil(t, metrics.SessionMirrorWrites)
	assert.NotNil(t, metrics.HTTPRequestsTotal)
}

func TestMetrics_RecordRPCRequest(t *testing.T) {
	metrics := getTestMetrics()

	metrics.RPCRequestsTotal.WithLabelValues("configure", "ok").Inc()
	metrics.RPCRequestsTotal.WithLabelValues("load_model", "error").Inc()
	metrics.RPCRequestDuration.WithLabelValues("configure").Observe(5.0)
}

func TestMetrics_RecordHandshake(t *testing.T) {
	metrics := getTestMetrics()

	metrics.HandshakesTotal.WithLabelValues("ok").Inc()
	metrics.HandshakesTotal.WithLabelValues("error").Inc()
}

func TestMetrics_SessionStateTransitions(t *testing.T) {
	metrics := getTestMetrics()

	metrics.SessionStateTransitions.WithLabelValues("configured", "activated").Inc()
	metrics.SequenceErrors.WithLabelValues("idle", "streaming").Inc()
	metrics.SessionsActive.Set(3)
}

func TestMetrics_PipelineInvokes(t *testing.T) {
	metrics := getTestMetrics()

	metrics.InvokesTotal.WithLabelValues("accepted").Inc()
	metrics.InvokesTotal.WithLabelValues("dropped_full").Inc()
	metrics.InvokeLatency.WithLabelValues("tcp").Observe(12.5)
	metrics.InferenceErrors.WithLabelValues("srtp").Inc()
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	metrics := getTestMetrics()

	metrics.HTTPRequestsTotal.WithLabelValues("GET", "/healthz", "200").Inc()
	metrics.HTTPRequestDuration.WithLabelValues("GET", "/healthz").Observe(2.0)
}
