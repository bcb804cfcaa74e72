package perfsink

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestOtelPerfHook_RecordsRequestsAndLatency(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prevProvider := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	defer otel.SetMeterProvider(prevProvider)

	hook := NewOtelPerfHook()
	start := time.Now()
	hook.OnRequest("getUser", start, start.Add(25*time.Millisecond), 200, true, "")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.NotEmpty(t, rm.ScopeMetrics)

	var sawCounter, sawHistogram bool
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case "wingman.http.requests":
				sawCounter = true
			case "wingman.http.latency_ms":
				sawHistogram = true
			}
		}
	}
	require.True(t, sawCounter)
	require.True(t, sawHistogram)
}
