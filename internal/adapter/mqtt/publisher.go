// Package mqtt publishes calculated readings to an MQTT broker.
package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/couchcryptid/ecowitt2mqtt/internal/config"
	"github.com/couchcryptid/ecowitt2mqtt/internal/domain"
)

const (
	qos             = 1
	disconnectQuiet = 250 // milliseconds
	connectRetry    = 5 * time.Second
)

var errNotConnected = errors.New("not connected")

// Client is the subset of the paho client the publisher needs.
type Client interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload any) paho.Token
}

// Publisher writes one JSON message per reading.
type Publisher struct {
	client Client
	store  *config.Store
	logger *slog.Logger
}

// NewClientOptions translates the broker settings of cfg into paho options.
func NewClientOptions(cfg *config.Config, logger *slog.Logger) *paho.ClientOptions {
	scheme := "tcp"
	if cfg.MQTTTLS {
		scheme = "ssl"
	}
	broker := fmt.Sprintf("%s://%s:%d", scheme, cfg.MQTTBroker, cfg.MQTTPort)

	opts := paho.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(fmt.Sprintf("ecowitt2mqtt-%d", os.Getpid()))
	opts.SetUsername(cfg.MQTTUsername)
	opts.SetPassword(cfg.MQTTPassword)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(connectRetry)
	if cfg.MQTTTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost", "broker", broker, "error", err)
	})
	opts.SetOnConnectHandler(func(paho.Client) {
		logger.Info("mqtt connected", "broker", broker)
	})
	return opts
}

// NewPublisher creates a publisher backed by a paho client for cfg's broker.
// Topics are read from store on every publish so reloads apply immediately.
func NewPublisher(cfg *config.Config, store *config.Store, logger *slog.Logger) *Publisher {
	return NewPublisherWithClient(paho.NewClient(NewClientOptions(cfg, logger)), store, logger)
}

// NewPublisherWithClient wraps an existing client.
func NewPublisherWithClient(client Client, store *config.Store, logger *slog.Logger) *Publisher {
	return &Publisher{client: client, store: store, logger: logger}
}

// Connect starts the connection. The client keeps retrying in the background
// after ctx expires, so a timeout here is not fatal.
func (p *Publisher) Connect(ctx context.Context) error {
	if err := wait(ctx, p.client.Connect()); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// Name identifies the sink in logs and metrics.
func (p *Publisher) Name() string { return "mqtt" }

// Publish sends the flattened reading to the station's topic.
func (p *Publisher) Publish(ctx context.Context, r domain.Reading) error {
	payload, err := json.Marshal(domain.FlattenReading(r))
	if err != nil {
		return fmt.Errorf("encode reading: %w: %w", domain.ErrUnencodable, err)
	}

	topic := p.store.Load().MQTTTopicFor(r.Station)
	if err := wait(ctx, p.client.Publish(topic, qos, false, payload)); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	p.logger.Debug("published reading", "topic", topic, "bytes", len(payload))
	return nil
}

// CheckReadiness reports whether the broker connection is up.
func (p *Publisher) CheckReadiness(_ context.Context) error {
	if !p.client.IsConnectionOpen() {
		return errNotConnected
	}
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() error {
	p.client.Disconnect(disconnectQuiet)
	return nil
}

func wait(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
