/*
 * Copyright 2025 StoreOps Labs.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/storeops/storemon/pkg/alerts"
	"github.com/storeops/storemon/pkg/config"
	"github.com/storeops/storemon/pkg/devices"
	"github.com/storeops/storemon/pkg/directory"
	"github.com/storeops/storemon/pkg/health"
	"github.com/storeops/storemon/pkg/lifecycle"
	"github.com/storeops/storemon/pkg/logger"
	"github.com/storeops/storemon/pkg/models"
	"github.com/storeops/storemon/pkg/monitor"
	"github.com/storeops/storemon/pkg/state"
	"github.com/storeops/storemon/pkg/telemetry"
)

var errFailedToLoadConfig = fmt.Errorf("failed to load config")

// natsConfig configures the optional NATS notification publisher.
type natsConfig struct {
	URL           string `json:"url"`
	SubjectPrefix string `json:"subject_prefix,omitempty"`
}

// appConfig is the top-level JSON configuration of the storemon daemon.
type appConfig struct {
	Logging       *logger.Config         `json:"logging,omitempty"`
	Directory     directory.Config       `json:"directory"`
	Health        health.Config          `json:"health,omitempty"`
	Monitor       monitor.Config         `json:"monitor,omitempty"`
	MonitorStores []string               `json:"monitor_stores,omitempty"`
	DeviceScheme  string                 `json:"device_scheme,omitempty"`
	DeviceTimeout models.Duration        `json:"device_timeout,omitempty"`
	APIToken      string                 `json:"api_token,omitempty"`
	AlertCap      int                    `json:"alert_cap,omitempty"`
	Webhooks      []alerts.WebhookConfig `json:"webhooks,omitempty"`
	NATS          *natsConfig            `json:"nats,omitempty"`
	MetricsAddr   string                 `json:"metrics_addr,omitempty"`
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/storemon/storemon.json", "Path to storemon config file")
	flag.Parse()

	ctx := context.Background()

	var cfg appConfig

	loader := &config.FileConfigLoader{}
	if err := loader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	mainLogger, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	dir, err := directory.New(&cfg.Directory)
	if err != nil {
		return fmt.Errorf("invalid store directory: %w", err)
	}

	token := cfg.APIToken
	if token == "" {
		token = os.Getenv("STOREMON_API_TOKEN")
	}

	dialer := devices.NewHTTPDialer(devices.HTTPDialerConfig{
		Scheme:  cfg.DeviceScheme,
		Timeout: time.Duration(cfg.DeviceTimeout),
	})

	cache := devices.NewCache(dir, dialer, devices.StaticTokenSource(token), mainLogger)
	reader := devices.NewReader(cache, dir, mainLogger)

	storeIDs := make([]string, 0, len(dir.Stores()))
	for _, store := range dir.Stores() {
		storeIDs = append(storeIDs, store.ID)
	}

	table := state.NewTable(storeIDs)
	alertStore := alerts.NewStore(cfg.AlertCap)

	notifier, natsConn, err := buildNotifier(&cfg, mainLogger)
	if err != nil {
		return err
	}

	scheduler := health.New(cfg.Health, dir, cache, table, nil, mainLogger)

	engine := monitor.NewEngine(cfg.Monitor, dir, reader, table, alertStore, notifier, nil, mainLogger)

	monitorStores := cfg.MonitorStores
	if len(monitorStores) == 0 {
		monitorStores = storeIDs
	}

	telemetry.InitMetrics()

	services := []lifecycle.Service{
		scheduler,
		lifecycle.ServiceFuncs{
			OnStart: func(ctx context.Context) error { return engine.Start(ctx, monitorStores) },
			OnStop:  engine.Stop,
		},
	}

	if cfg.MetricsAddr != "" {
		services = append(services, metricsService(cfg.MetricsAddr, mainLogger))
	}

	services = append(services, lifecycle.ServiceFuncs{
		OnStop: func(ctx context.Context) error {
			cache.Close()

			if natsConn != nil {
				natsConn.Close()
			}

			return logger.Shutdown(ctx)
		},
	})

	return lifecycle.Run(ctx, mainLogger, services...)
}

func buildNotifier(cfg *appConfig, log logger.Logger) (alerts.Notifier, *nats.Conn, error) {
	var (
		notifiers []alerts.Notifier
		natsConn  *nats.Conn
	)

	for _, webhook := range cfg.Webhooks {
		notifiers = append(notifiers, alerts.NewWebhookNotifier(webhook))
	}

	if cfg.NATS != nil && cfg.NATS.URL != "" {
		conn, err := nats.Connect(cfg.NATS.URL, nats.Name("storemon"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
		}

		natsConn = conn
		notifiers = append(notifiers, alerts.NewNATSNotifier(conn, cfg.NATS.SubjectPrefix))
	}

	return alerts.NewMultiNotifier(log, notifiers...), natsConn, nil
}

func metricsService(addr string, log logger.Logger) lifecycle.Service {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	return lifecycle.ServiceFuncs{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error().Err(err).Msg("Metrics server failed")
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	}
}
