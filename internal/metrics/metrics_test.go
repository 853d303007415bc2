package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/phrazzld/docgen/internal/breaker"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	t.Parallel()
	p := NewPrometheus()

	p.TaskStarted()
	p.TaskStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(p.tasksActive))

	p.TaskFinished("success", 2*time.Second, 3)
	p.TaskFinished("failure", time.Second, 1)
	assert.Equal(t, 0.0, testutil.ToFloat64(p.tasksActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.generationTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.generationTotal.WithLabelValues("failure")))
	assert.Equal(t, 1, testutil.CollectAndCount(p.attempts), "one attempts series")

	p.CircuitStateChanged("authoring", breaker.StateOpen)
	assert.Equal(t, 2.0, testutil.ToFloat64(p.circuitState.WithLabelValues("authoring")))
	p.CircuitStateChanged("authoring", breaker.StateClosed)
	assert.Equal(t, 0.0, testutil.ToFloat64(p.circuitState.WithLabelValues("authoring")))
}

func TestPrometheusInstancesAreIndependent(t *testing.T) {
	t.Parallel()
	a, b := NewPrometheus(), NewPrometheus()
	a.TaskStarted()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.tasksActive))
}

func TestPrometheusHandler(t *testing.T) {
	t.Parallel()
	p := NewPrometheus()
	p.TaskStarted()
	p.TaskFinished("success", time.Second, 1)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `generation_total{outcome="success"} 1`))
	assert.Contains(t, body, "generation_duration_seconds_bucket")
}

func TestPrometheusMetricNames(t *testing.T) {
	t.Parallel()
	p := NewPrometheus()
	p.TaskStarted()
	p.TaskFinished("success", time.Second, 1)
	p.CircuitStateChanged("authoring", breaker.StateClosed)

	families, err := p.Registry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}

	for _, name := range []string{
		"generation_total",
		"generation_duration_seconds",
		"generation_tasks_active",
		"docgen_generation_attempts",
		"docgen_authoring_circuit_state",
	} {
		assert.True(t, names[name], "missing metric %s", name)
	}
	assert.False(t, names["docgen_generation_total"])
}

func TestNop(t *testing.T) {
	t.Parallel()
	var r Recorder = Nop{}
	r.TaskStarted()
	r.TaskFinished("success", time.Second, 1)
	r.CircuitStateChanged("authoring", breaker.StateHalfOpen)
}
