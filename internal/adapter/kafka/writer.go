package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/ecowitt2mqtt/internal/config"
	"github.com/couchcryptid/ecowitt2mqtt/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type dialFunc func(ctx context.Context, network, address string) (*kafkago.Conn, error)

// Writer produces one message per reading to a Kafka topic, keyed by station.
// It implements pipeline.Publisher.
type Writer struct {
	writer  messageWriter
	brokers []string
	dial    dialFunc
	logger  *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{
		writer:  w,
		brokers: cfg.KafkaBrokers,
		dial:    kafkago.DialContext,
		logger:  logger,
	}
}

// Name identifies the sink in logs and metrics.
func (w *Writer) Name() string { return "kafka" }

// Publish serializes the reading with its units and writes it.
func (w *Writer) Publish(ctx context.Context, r domain.Reading) error {
	out, err := domain.SerializeReading(r)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, toMessage(out)); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

// CheckReadiness succeeds when any configured broker accepts a connection.
func (w *Writer) CheckReadiness(ctx context.Context) error {
	var errs []error
	for _, broker := range w.brokers {
		conn, err := w.dial(ctx, "tcp", broker)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		_ = conn.Close()
		return nil
	}
	if len(errs) == 0 {
		return errors.New("no kafka brokers configured")
	}
	return errors.Join(errs...)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// toMessage converts a serialized reading into a Kafka message. Headers are
// emitted in key order.
func toMessage(out domain.OutputMessage) kafkago.Message {
	keys := make([]string, 0, len(out.Headers))
	for k := range out.Headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	headers := make([]kafkago.Header, 0, len(keys))
	for _, k := range keys {
		headers = append(headers, kafkago.Header{Key: k, Value: []byte(out.Headers[k])})
	}
	return kafkago.Message{
		Key:     out.Key,
		Value:   out.Value,
		Headers: headers,
	}
}
