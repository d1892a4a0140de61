package observability

import (
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ecowitt2mqtt/internal/config"
)

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.PayloadsReceived.Inc()
	a.ReadingsPublished.WithLabelValues("mqtt").Inc()

	assert.InDelta(t, 1, testutil.ToFloat64(a.PayloadsReceived), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.PayloadsReceived), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(a.ReadingsPublished.WithLabelValues("mqtt")), 0)
}

func TestMetrics_Register(t *testing.T) {
	m := NewMetricsForTesting()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(m.PayloadsReceived))
	require.NoError(t, reg.Register(m.PublishErrors))

	m.PublishErrors.WithLabelValues("kafka").Add(2)
	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 2)
	assert.Equal(t, 1, testutil.CollectAndCount(m.PublishErrors))
}

func TestNewLogger_Level(t *testing.T) {
	ctx := t.Context()

	quiet := NewLogger(&config.Config{LogFormat: "text"})
	assert.False(t, quiet.Enabled(ctx, slog.LevelDebug))

	verbose := NewLogger(&config.Config{LogFormat: "json", Verbose: true})
	assert.True(t, verbose.Enabled(ctx, slog.LevelDebug))
}
