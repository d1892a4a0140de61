// Command ecowitt2mqtt receives Ecowitt gateway pushes over HTTP and publishes
// calculated readings to MQTT and, optionally, Kafka.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	httpadapter "github.com/couchcryptid/ecowitt2mqtt/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/ecowitt2mqtt/internal/adapter/kafka"
	mqttadapter "github.com/couchcryptid/ecowitt2mqtt/internal/adapter/mqtt"
	"github.com/couchcryptid/ecowitt2mqtt/internal/calculator"
	"github.com/couchcryptid/ecowitt2mqtt/internal/config"
	"github.com/couchcryptid/ecowitt2mqtt/internal/observability"
	"github.com/couchcryptid/ecowitt2mqtt/internal/pipeline"
)

const connectTimeout = 10 * time.Second

func main() {
	args := os.Args[1:]

	cfg, err := config.Load(config.Options{Args: args, Logger: slog.Default()})
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	store := config.NewStore(cfg)
	logger.Info("configuration loaded", "config", cfg)

	registry := calculator.NewRegistry(store, logger)
	transformer := pipeline.NewTransformer(registry, store)

	mqttPub := mqttadapter.NewPublisher(cfg, store, logger)
	publishers := []pipeline.Publisher{mqttPub}

	var kafkaWriter *kafkaadapter.Writer
	if cfg.KafkaEnabled() {
		kafkaWriter = kafkaadapter.NewWriter(cfg, logger)
		publishers = append(publishers, kafkaWriter)
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	p := pipeline.New(transformer, publishers, logger, metrics)
	srv := httpadapter.NewServer(net.JoinHostPort("", strconv.Itoa(cfg.Port)), cfg.Endpoint, p, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancelConnect := context.WithTimeout(ctx, connectTimeout)
	if err := mqttPub.Connect(connectCtx); err != nil {
		logger.Warn("mqtt broker not reachable yet, retrying in background", "error", err)
	}
	cancelConnect()

	go watchReload(ctx, store, args, logger, metrics)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), store.Load().ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := mqttPub.Close(); err != nil {
		logger.Error("mqtt close error", "error", err)
	}
	if kafkaWriter != nil {
		if err := kafkaWriter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// watchReload rebuilds the configuration from the same arguments on SIGHUP.
// Unit systems, battery strategies, precision, raw mode, and the MQTT topic
// take effect on the next payload; listener and broker settings need a restart.
func watchReload(ctx context.Context, store *config.Store, args []string, logger *slog.Logger, metrics *observability.Metrics) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
		}

		cfg, err := store.Reload(func() (*config.Config, error) {
			return config.Load(config.Options{Args: args, Logger: logger})
		})
		if err != nil {
			metrics.ConfigReloads.WithLabelValues("error").Inc()
			logger.Error("config reload failed, keeping previous configuration", "error", err)
			continue
		}
		metrics.ConfigReloads.WithLabelValues("success").Inc()
		logger.Info("configuration reloaded", "config", cfg)
	}
}
