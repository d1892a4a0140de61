package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/ecowitt2mqtt/internal/domain"
	"github.com/couchcryptid/ecowitt2mqtt/internal/observability"
)

// Transformer converts a gateway payload into a reading.
type Transformer interface {
	Transform(p domain.Payload) (domain.Reading, error)
}

// Publisher delivers readings to one sink.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, r domain.Reading) error
}

const (
	defaultAttempts   = 3
	defaultBackoff    = 200 * time.Millisecond
	defaultMaxBackoff = 2 * time.Second
)

// Pipeline calculates each payload once and fans the reading out to every publisher.
type Pipeline struct {
	transformer Transformer
	publishers  []Publisher
	logger      *slog.Logger
	metrics     *observability.Metrics

	attempts   int
	backoff    time.Duration
	maxBackoff time.Duration
}

// Option adjusts a Pipeline.
type Option func(*Pipeline)

// WithRetry sets how many times a failing publish is attempted and the first
// backoff between attempts. The backoff doubles up to a cap.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(p *Pipeline) {
		p.attempts = max(attempts, 1)
		p.backoff = backoff
	}
}

// New creates a Pipeline with the given stages and observability.
func New(t Transformer, publishers []Publisher, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		transformer: t,
		publishers:  publishers,
		logger:      logger,
		metrics:     metrics,
		attempts:    defaultAttempts,
		backoff:     defaultBackoff,
		maxBackoff:  defaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process calculates one payload and publishes the reading. A transform error
// means the payload was unusable; publish errors are logged, counted and
// returned joined, after every publisher has been tried.
func (p *Pipeline) Process(ctx context.Context, payload domain.Payload) (domain.Reading, error) {
	start := time.Now()

	reading, err := p.transformer.Transform(payload)
	if err != nil {
		p.metrics.PayloadsRejected.Inc()
		return domain.Reading{}, fmt.Errorf("transform payload: %w", err)
	}
	p.metrics.PayloadsReceived.Inc()
	p.countDataPoints(reading)

	var errs []error
	for _, pub := range p.publishers {
		if err := p.publish(ctx, pub, reading); err != nil {
			p.logger.Error("publish failed",
				"sink", pub.Name(),
				"station", reading.Station,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", pub.Name(), err))
		}
	}

	p.metrics.ProcessingDuration.Observe(time.Since(start).Seconds())
	p.logger.Debug("payload processed",
		"station", reading.Station,
		"fields", len(payload.Fields),
		"publishers", len(p.publishers),
	)
	return reading, errors.Join(errs...)
}

func (p *Pipeline) countDataPoints(r domain.Reading) {
	if r.Raw != nil {
		p.metrics.DataPoints.WithLabelValues("raw").Add(float64(len(r.Raw)))
		return
	}
	for _, dp := range r.Data {
		if dp.Valid() {
			p.metrics.DataPoints.WithLabelValues("calculated").Inc()
		} else {
			p.metrics.DataPoints.WithLabelValues("empty").Inc()
		}
	}
}

// publish delivers to one publisher, retrying with exponential backoff.
func (p *Pipeline) publish(ctx context.Context, pub Publisher, r domain.Reading) error {
	backoff := p.backoff
	var err error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		start := time.Now()
		err = pub.Publish(ctx, r)
		p.metrics.PublishDuration.WithLabelValues(pub.Name()).Observe(time.Since(start).Seconds())
		if err == nil {
			p.metrics.ReadingsPublished.WithLabelValues(pub.Name()).Inc()
			return nil
		}
		p.metrics.PublishErrors.WithLabelValues(pub.Name()).Inc()

		if attempt == p.attempts || ctx.Err() != nil || errors.Is(err, domain.ErrUnencodable) {
			break
		}
		p.logger.Warn("publish attempt failed, retrying",
			"sink", pub.Name(),
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		if !retry.SleepWithContext(ctx, backoff) {
			break
		}
		backoff = retry.NextBackoff(backoff, p.maxBackoff)
	}
	return err
}

// CheckReadiness returns nil when every publisher that can report readiness
// is ready.
func (p *Pipeline) CheckReadiness(ctx context.Context) error {
	if len(p.publishers) == 0 {
		p.metrics.PublishersReady.Set(0)
		return errors.New("no publishers configured")
	}
	for _, pub := range p.publishers {
		checker, ok := pub.(sharedobs.ReadinessChecker)
		if !ok {
			continue
		}
		if err := checker.CheckReadiness(ctx); err != nil {
			p.metrics.PublishersReady.Set(0)
			return fmt.Errorf("%s: %w", pub.Name(), err)
		}
	}
	p.metrics.PublishersReady.Set(1)
	return nil
}
