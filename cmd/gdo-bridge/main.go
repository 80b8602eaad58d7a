package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gdo-bridge/config"
	"gdo-bridge/internal/application"
	"gdo-bridge/internal/domain"
	"gdo-bridge/internal/infra"
	"gdo-bridge/internal/infra/homeassistant"
	"gdo-bridge/internal/infra/httpapi"
	"gdo-bridge/internal/infra/influxdb"
	"gdo-bridge/internal/infra/konnected"
	"gdo-bridge/internal/infra/metrics"
	"gdo-bridge/internal/infra/mqtt"
	"gdo-bridge/internal/infra/pushover"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log, cfg.Device.Name)

	if err := run(cfg, logger); err != nil {
		logger.Error("bridge error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	requestTimeout := config.Duration(cfg.Device.RequestTimeout, 10*time.Second, logger)
	httpClient := &http.Client{Timeout: requestTimeout}

	// The event stream stays open indefinitely; only the wait for its
	// response headers is bounded.
	streamTransport := http.DefaultTransport.(*http.Transport).Clone()
	streamTransport.ResponseHeaderTimeout = requestTimeout
	streamClient := &http.Client{Transport: streamTransport}

	retry := infra.DefaultRetryConfig()
	retry.MaxRetries = cfg.Device.MaxRetries

	device := konnected.NewClient(
		konnected.Identity{
			Address:  cfg.Device.Address,
			Port:     cfg.Device.Port,
			Username: cfg.Device.Username,
			Password: cfg.Device.Password,
		},
		logger.With("component", "konnected"),
		konnected.WithHTTPClient(httpClient),
		konnected.WithStreamClient(streamClient),
		konnected.WithRetryConfig(retry),
	)

	var notifier application.Notifier
	if cfg.Pushover.Enabled {
		notifier = pushover.NewClient(cfg.Pushover.Token, cfg.Pushover.UserKey, pushover.WithPriority(cfg.Pushover.Priority))
	} else {
		notifier = &application.LogNotifier{Logger: logger}
	}

	m := metrics.New()

	opts := []application.GarageOption{
		application.WithSinks(m),
		application.WithVerifier(func(ctx context.Context, address string, port int, username, password string) (domain.VerificationResult, error) {
			return konnected.VerifyConnection(ctx, address, port, username, password, konnected.WithHTTPClient(httpClient))
		}),
	}
	if len(cfg.Pushover.Alarms) > 0 {
		alarms := make([]domain.Alarm, 0, len(cfg.Pushover.Alarms))
		for _, a := range cfg.Pushover.Alarms {
			alarms = append(alarms, domain.Alarm(a))
		}
		opts = append(opts, application.WithAlarmNotifications(alarms...))
	}
	if cfg.Pushover.NotifyUnavailable {
		opts = append(opts, application.WithUnavailableNotification())
	}

	garage := application.NewGarage(cfg.Device.Name, device, notifier, logger.With("component", "garage"), opts...)

	if cfg.InfluxDB.Enabled {
		influx, err := influxdb.Connect(influxdb.Config{
			URL:           cfg.InfluxDB.URL,
			Token:         cfg.InfluxDB.Token,
			Org:           cfg.InfluxDB.Org,
			Bucket:        cfg.InfluxDB.Bucket,
			BatchSize:     cfg.InfluxDB.BatchSize,
			FlushInterval: config.Duration(cfg.InfluxDB.FlushInterval, 10*time.Second, logger),
		}, logger.With("component", "influxdb"))
		if err != nil {
			return err
		}
		defer influx.Close()
		garage.AddSink(influx.Sink(cfg.Device.Name))
	}

	if cfg.MQTT.Enabled {
		topics := mqtt.Topics{Prefix: cfg.MQTT.TopicPrefix, Device: cfg.Device.Name}
		client, err := mqtt.Connect(mqtt.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			QoS:         cfg.MQTT.QoS,
			WillTopic:   topics.Availability(),
			WillPayload: mqtt.PayloadOffline,
		}, logger.With("component", "mqtt"))
		if err != nil {
			return err
		}
		defer client.Close()

		bridge := mqtt.NewBridge(client, garage, topics, logger.With("component", "mqtt"))
		garage.AddSink(bridge)
		go func() {
			if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("mqtt bridge stopped", "error", err)
			}
		}()
	}

	if cfg.HomeAssistant.Enabled {
		ha := homeassistant.NewSink(
			homeassistant.NewClient(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token),
			cfg.Device.Name,
			logger.With("component", "homeassistant"),
		)
		garage.AddSink(ha)
		go ha.Run(ctx)
	}

	if cfg.HTTP.Enabled {
		var serverOpts []httpapi.Option
		if cfg.HTTP.Metrics {
			serverOpts = append(serverOpts, httpapi.WithMetrics(m.Handler(), m.Middleware))
		}
		server := httpapi.NewServer(httpapi.Config{
			Addr:       cfg.HTTP.Addr,
			AuthToken:  cfg.HTTP.AuthToken,
			RateLimit:  cfg.HTTP.RateLimit,
			RateWindow: config.Duration(cfg.HTTP.RateWindow, time.Minute, logger),
		}, garage, logger.With("component", "http"), serverOpts...)
		if err := server.Start(ctx); err != nil {
			return err
		}
		defer server.Stop()
	}

	logger.Info("starting garage bridge",
		"address", cfg.Device.Address,
		"port", cfg.Device.Port,
		"mqtt", cfg.MQTT.Enabled,
		"influxdb", cfg.InfluxDB.Enabled,
		"homeassistant", cfg.HomeAssistant.Enabled,
		"http", cfg.HTTP.Enabled,
	)

	// A device that cannot be reached at startup stays unavailable until
	// its settings are updated through the control API.
	if err := garage.Start(ctx); err != nil {
		logger.Error("connecting to device", "error", err)
	} else if err := garage.Refresh(ctx); err != nil {
		logger.Warn("initial refresh incomplete", "error", err)
	}
	defer garage.Stop()

	if interval := config.Duration(cfg.Device.RefreshInterval, 5*time.Minute, logger); interval > 0 {
		garage.StartPeriodicRefresh(ctx, interval)
	}

	<-ctx.Done()
	return nil
}

func setupLogger(cfg config.LogConfig, device string) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler).With("service", "gdo-bridge", "device", device)
}
