package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ecowitt2mqtt/internal/calculator"
	"github.com/couchcryptid/ecowitt2mqtt/internal/config"
	"github.com/couchcryptid/ecowitt2mqtt/internal/domain"
	"github.com/couchcryptid/ecowitt2mqtt/internal/observability"
	"github.com/couchcryptid/ecowitt2mqtt/internal/pipeline"
)

// --- mocks ---

type mockPublisher struct {
	name     string
	failures int // number of leading Publish calls that fail
	err      error
	readyErr error

	mu        sync.Mutex
	calls     int
	published []domain.Reading
}

func (m *mockPublisher) Name() string { return m.name }

func (m *mockPublisher) Publish(_ context.Context, r domain.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil && (m.failures == 0 || m.calls <= m.failures) {
		return m.err
	}
	m.published = append(m.published, r)
	return nil
}

func (m *mockPublisher) CheckReadiness(_ context.Context) error { return m.readyErr }

// plainPublisher cannot report readiness.
type plainPublisher struct{ mockPublisher }

func (p *plainPublisher) CheckReadiness() {}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func newStore(t *testing.T, settings config.MapLayer) *config.Store {
	t.Helper()
	if settings == nil {
		settings = config.MapLayer{}
	}
	settings[config.KeyMQTTBroker] = "localhost"
	cfg, err := config.Build(settings, config.MapEnv{}, nil)
	require.NoError(t, err)
	return config.NewStore(cfg)
}

func newPipeline(store *config.Store, pubs ...pipeline.Publisher) (*pipeline.Pipeline, *observability.Metrics) {
	metrics := newTestMetrics()
	tfm := pipeline.NewTransformer(calculator.NewRegistry(store, nil), store)
	return pipeline.New(tfm, pubs, slog.Default(), metrics, pipeline.WithRetry(3, 0)), metrics
}

func freezeClock(t *testing.T) clockwork.Clock {
	t.Helper()
	fakeClock := clockwork.NewFakeClockAt(time.Date(2024, time.April, 26, 15, 10, 30, 0, time.UTC))
	domain.SetClock(fakeClock)
	t.Cleanup(func() {
		domain.SetClock(nil)
	})
	return fakeClock
}

func float(v float64) *float64 { return &v }

// --- tests ---

func TestPipeline_Process_HappyPath(t *testing.T) {
	clock := freezeClock(t)
	store := newStore(t, config.MapLayer{config.KeyOutputUnitSystem: "metric"})
	pub := &mockPublisher{name: "mqtt"}
	p, metrics := newPipeline(store, pub)

	payload := domain.ParsePayload(url.Values{
		"PASSKEY":       {"ABC123"},
		"stationtype":   {"GW1000B_V1.7.3"},
		"model":         {"GW1000_Pro"},
		"dateutc":       {"now"},
		"tempf":         {"212"},
		"lightning":     {"1000"},
		"lightning_num": {"5"},
		"wh65batt":      {"0"},
		"mystery":       {"abc"},
	})

	reading, err := p.Process(context.Background(), payload)
	require.NoError(t, err)

	want := domain.Reading{
		Station:   "ABC123",
		Model:     "GW1000_Pro",
		Timestamp: clock.Now(),
		Data: map[string]domain.CalculatedDataPoint{
			"tempf":         {Value: float(100), Unit: "°C"},
			"lightning":     {Value: float(1000), Unit: "km"},
			"lightning_num": {Value: float(5), Unit: "strikes"},
			"wh65batt":      {Value: float(0)},
			"mystery":       {},
		},
	}
	if diff := cmp.Diff(want, reading); diff != "" {
		t.Fatalf("reading mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, pub.published, 1)
	assert.Equal(t, reading, pub.published[0])
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.PayloadsReceived), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(metrics.DataPoints.WithLabelValues("calculated")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.DataPoints.WithLabelValues("empty")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ReadingsPublished.WithLabelValues("mqtt")), 0)
}

func TestPipeline_Process_UsesGatewayTimestamp(t *testing.T) {
	freezeClock(t)
	store := newStore(t, nil)
	p, _ := newPipeline(store, &mockPublisher{name: "mqtt"})

	payload := domain.ParsePayload(url.Values{
		"PASSKEY": {"ABC123"},
		"dateutc": {"2024-04-26 14:00:00"},
	})
	reading, err := p.Process(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.April, 26, 14, 0, 0, 0, time.UTC), reading.Timestamp)
}

func TestPipeline_Process_RawData(t *testing.T) {
	freezeClock(t)
	store := newStore(t, config.MapLayer{config.KeyRawData: true})
	pub := &mockPublisher{name: "mqtt"}
	p, metrics := newPipeline(store, pub)

	payload := domain.ParsePayload(url.Values{
		"PASSKEY": {"ABC123"},
		"tempf":   {"68.9"},
		"freq":    {"915M"},
		"leak":    {"wet"},
	})

	reading, err := p.Process(context.Background(), payload)
	require.NoError(t, err)
	assert.Nil(t, reading.Data)
	assert.Equal(t, map[string]string{"tempf": "68.9", "leak": "wet"}, reading.Raw)
	assert.Equal(t, map[string]any{"tempf": 68.9, "leak": "wet"}, domain.FlattenReading(reading))
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.DataPoints.WithLabelValues("raw")), 0)
}

func TestPipeline_Process_Precision(t *testing.T) {
	freezeClock(t)
	store := newStore(t, config.MapLayer{
		config.KeyOutputUnitSystem: "metric",
		config.KeyPrecision:        1,
	})
	p, _ := newPipeline(store, &mockPublisher{name: "mqtt"})

	payload := domain.ParsePayload(url.Values{
		"PASSKEY":   {"ABC123"},
		"tempf":     {"70"},
		"lightning": {"1000"},
	})

	reading, err := p.Process(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, 21.1, *reading.Data["tempf"].Value)
	assert.Equal(t, 1000.0, *reading.Data["lightning"].Value)
}

func TestPipeline_Process_FollowsStoreReload(t *testing.T) {
	freezeClock(t)
	store := newStore(t, nil)
	p, _ := newPipeline(store, &mockPublisher{name: "mqtt"})
	payload := domain.ParsePayload(url.Values{"PASSKEY": {"ABC123"}, "lightning": {"1000"}})

	reading, err := p.Process(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "mi", reading.Data["lightning"].Unit)

	_, err = store.Reload(func() (*config.Config, error) {
		return config.Build(config.MapLayer{
			config.KeyMQTTBroker:       "localhost",
			config.KeyOutputUnitSystem: "metric",
		}, config.MapEnv{}, nil)
	})
	require.NoError(t, err)

	reading, err = p.Process(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, "km", reading.Data["lightning"].Unit)
}

func TestPipeline_Process_MissingStation(t *testing.T) {
	store := newStore(t, nil)
	pub := &mockPublisher{name: "mqtt"}
	p, metrics := newPipeline(store, pub)

	_, err := p.Process(context.Background(), domain.ParsePayload(url.Values{"tempf": {"70"}}))
	require.ErrorIs(t, err, pipeline.ErrMissingStation)
	assert.Empty(t, pub.published)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.PayloadsRejected), 0)
}

func TestPipeline_Process_RetriesPublish(t *testing.T) {
	store := newStore(t, nil)
	pub := &mockPublisher{name: "mqtt", err: errors.New("broker busy"), failures: 2}
	p, metrics := newPipeline(store, pub)

	_, err := p.Process(context.Background(), domain.ParsePayload(url.Values{"PASSKEY": {"ABC123"}}))
	require.NoError(t, err)
	assert.Equal(t, 3, pub.calls)
	assert.Len(t, pub.published, 1)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.PublishErrors.WithLabelValues("mqtt")), 0)
}

func TestPipeline_Process_PublishFailureDoesNotStopOtherSinks(t *testing.T) {
	store := newStore(t, nil)
	broken := &mockPublisher{name: "kafka", err: errors.New("no brokers")}
	healthy := &mockPublisher{name: "mqtt"}
	p, metrics := newPipeline(store, broken, healthy)

	_, err := p.Process(context.Background(), domain.ParsePayload(url.Values{"PASSKEY": {"ABC123"}}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka: no brokers")
	assert.Equal(t, 3, broken.calls)
	assert.Len(t, healthy.published, 1)
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.PublishErrors.WithLabelValues("kafka")), 0)
}

func TestPipeline_Process_UnencodableReadingIsNotRetried(t *testing.T) {
	store := newStore(t, nil)
	pub := &mockPublisher{name: "mqtt", err: fmt.Errorf("encode reading: %w", domain.ErrUnencodable)}
	p, metrics := newPipeline(store, pub)

	_, err := p.Process(context.Background(), domain.ParsePayload(url.Values{"PASSKEY": {"ABC123"}}))
	require.ErrorIs(t, err, domain.ErrUnencodable)
	assert.Equal(t, 1, pub.calls)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.PublishErrors.WithLabelValues("mqtt")), 0)
}

func TestPipeline_Process_NonFiniteRawValuesPublish(t *testing.T) {
	store := newStore(t, config.MapLayer{config.KeyRawData: true})
	pub := &mockPublisher{name: "mqtt"}
	p, _ := newPipeline(store, pub)

	payload := domain.ParsePayload(url.Values{
		"PASSKEY":       {"A"},
		"tempf":         {"70"},
		"soilmoisture1": {"NaN"},
	})
	reading, err := p.Process(context.Background(), payload)
	require.NoError(t, err)

	_, err = json.Marshal(domain.FlattenReading(reading))
	require.NoError(t, err)
	_, err = domain.SerializeReading(reading)
	require.NoError(t, err)
}

// snapshotCalculator records the settings each reading was calculated with.
type snapshotCalculator struct {
	settings []calculator.Settings
}

func (c *snapshotCalculator) CalculateAllWith(s calculator.Settings, fields []domain.Field) map[string]domain.CalculatedDataPoint {
	c.settings = append(c.settings, s)
	return map[string]domain.CalculatedDataPoint{}
}

func TestReadingTransformer_UsesOneSnapshotPerReading(t *testing.T) {
	store := newStore(t, nil)
	calc := &snapshotCalculator{}
	tfm := pipeline.NewTransformer(calc, store)

	_, err := tfm.Transform(domain.ParsePayload(url.Values{"PASSKEY": {"A"}, "tempf": {"70"}}))
	require.NoError(t, err)

	require.Len(t, calc.settings, 1)
	assert.Same(t, store.Load(), calc.settings[0])
}

func TestPipeline_Process_CancelledContextStopsRetry(t *testing.T) {
	store := newStore(t, nil)
	pub := &mockPublisher{name: "mqtt", err: errors.New("down")}
	tfm := pipeline.NewTransformer(calculator.NewRegistry(store, nil), store)
	p := pipeline.New(tfm, []pipeline.Publisher{pub}, slog.Default(), newTestMetrics(), pipeline.WithRetry(5, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Process(ctx, domain.ParsePayload(url.Values{"PASSKEY": {"ABC123"}}))
	require.Error(t, err)
	assert.Equal(t, 1, pub.calls)
}

func TestPipeline_CheckReadiness(t *testing.T) {
	store := newStore(t, nil)

	t.Run("no publishers", func(t *testing.T) {
		p, _ := newPipeline(store)
		assert.Error(t, p.CheckReadiness(context.Background()))
	})

	t.Run("all ready", func(t *testing.T) {
		p, metrics := newPipeline(store, &mockPublisher{name: "mqtt"}, &plainPublisher{mockPublisher{name: "other"}})
		require.NoError(t, p.CheckReadiness(context.Background()))
		assert.InDelta(t, 1, testutil.ToFloat64(metrics.PublishersReady), 0)
	})

	t.Run("one not ready", func(t *testing.T) {
		p, metrics := newPipeline(store,
			&mockPublisher{name: "mqtt", readyErr: errors.New("not connected")},
			&mockPublisher{name: "kafka"},
		)
		err := p.CheckReadiness(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mqtt: not connected")
		assert.InDelta(t, 0, testutil.ToFloat64(metrics.PublishersReady), 0)
	})
}
