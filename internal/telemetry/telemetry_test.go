package telemetry

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInit_NoneInstallsNothing(t *testing.T) {
	tel, err := Init(context.Background(), Config{Traces: "none", Metrics: "none"})
	require.NoError(t, err)
	assert.Nil(t, tel.MetricsHandler())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestInit_UnknownExporter(t *testing.T) {
	_, err := Init(context.Background(), Config{Traces: "zipkin"})
	assert.ErrorIs(t, err, ErrUnknownExporter)

	_, err = Init(context.Background(), Config{Metrics: "statsd"})
	assert.ErrorIs(t, err, ErrUnknownExporter)
}

func TestInit_StdoutTraces(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	tel, err := Init(ctx, Config{Traces: "stdout", Writer: &buf})
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(ctx, "get-context")
	span.End()
	require.NoError(t, tel.Shutdown(ctx))

	assert.Contains(t, buf.String(), "get-context")
}

func TestInit_PrometheusMetrics(t *testing.T) {
	ctx := context.Background()
	tel, err := Init(ctx, Config{Metrics: "prometheus"})
	require.NoError(t, err)
	defer tel.Shutdown(ctx)
	require.NotNil(t, tel.MetricsHandler())

	counter, err := otel.Meter("test").Int64Counter("rootpath_test_requests")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	rec := httptest.NewRecorder()
	tel.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rootpath_test_requests")
}
