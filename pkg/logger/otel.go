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

package logger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.31.0"

	"github.com/storeops/storemon/pkg/models"
)

var (
	ErrOTelLoggingDisabled  = errors.New("OTel logging is disabled")
	ErrOTelEndpointRequired = errors.New("OTel endpoint is required when enabled")
)

const (
	defaultOTelService  = "storemon"
	defaultBatchTimeout = 5 * time.Second
	maxAttributeLength  = 4096
)

// OTelConfig gates the optional OTLP log export. When enabled, every
// log line is mirrored to the configured collector alongside the
// console output.
type OTelConfig struct {
	Enabled      bool              `json:"enabled"`
	Endpoint     string            `json:"endpoint"`
	Headers      map[string]string `json:"headers,omitempty"`
	ServiceName  string            `json:"service_name,omitempty"`
	BatchTimeout models.Duration   `json:"batch_timeout,omitempty"`
	Insecure     bool              `json:"insecure,omitempty"`
}

// otelWriter bridges zerolog's JSON output into OTel log records, one
// scoped logger per component.
type otelWriter struct {
	provider *sdklog.LoggerProvider

	mu      sync.Mutex
	loggers map[string]otellog.Logger
}

func newOTelWriter(ctx context.Context, cfg OTelConfig) (*otelWriter, error) {
	if !cfg.Enabled {
		return nil, ErrOTelLoggingDisabled
	}

	if cfg.Endpoint == "" {
		return nil, ErrOTelEndpointRequired
	}

	opts := []otlploggrpc.Option{
		otlploggrpc.WithEndpoint(cfg.Endpoint),
	}

	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}

	if len(cfg.Headers) > 0 {
		opts = append(opts, otlploggrpc.WithHeaders(cfg.Headers))
	}

	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = defaultOTelService
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	batchTimeout := time.Duration(cfg.BatchTimeout)
	if batchTimeout <= 0 {
		batchTimeout = defaultBatchTimeout
	}

	processor := sdklog.NewBatchProcessor(exporter,
		sdklog.WithExportTimeout(batchTimeout),
	)

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(processor),
	)

	return &otelWriter{
		provider: provider,
		loggers:  make(map[string]otellog.Logger),
	}, nil
}

// Write parses one zerolog JSON line into an OTel record. Malformed
// lines are dropped silently; log export must never fail the logger.
func (w *otelWriter) Write(p []byte) (int, error) {
	entry := make(map[string]interface{})
	if err := json.Unmarshal(p, &entry); err != nil {
		return len(p), nil
	}

	record := otellog.Record{}

	if ts, ok := entry["time"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			record.SetTimestamp(parsed)
			delete(entry, "time")
		}
	}

	if level, ok := entry["level"].(string); ok {
		record.SetSeverity(mapZerologLevel(level))
		record.SetSeverityText(level)
		delete(entry, "level")
	}

	if message, ok := entry["message"].(string); ok {
		record.SetBody(otellog.StringValue(message))
		delete(entry, "message")
	}

	component := defaultOTelService
	if c, ok := entry["component"].(string); ok && c != "" {
		component = c

		delete(entry, "component")
	}

	w.mu.Lock()

	scoped, ok := w.loggers[component]
	if !ok {
		scoped = w.provider.Logger(component)
		w.loggers[component] = scoped
	}

	w.mu.Unlock()

	for key, value := range entry {
		record.AddAttributes(otellog.String(key, attributeValue(value)))
	}

	scoped.Emit(context.Background(), record)

	return len(p), nil
}

func (w *otelWriter) shutdown(ctx context.Context) error {
	return w.provider.Shutdown(ctx)
}

func attributeValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return truncate(v)
	case bool:
		return fmt.Sprintf("%t", v)
	case float64:
		return fmt.Sprintf("%v", v)
	default:
		if marshaled, err := json.Marshal(value); err == nil {
			return truncate(string(marshaled))
		}

		return truncate(fmt.Sprintf("%v", value))
	}
}

func truncate(value string) string {
	if len(value) <= maxAttributeLength {
		return value
	}

	return value[:maxAttributeLength-3] + "..."
}

func mapZerologLevel(level string) otellog.Severity {
	switch strings.ToLower(level) {
	case "trace":
		return otellog.SeverityTrace
	case "debug":
		return otellog.SeverityDebug
	case "info":
		return otellog.SeverityInfo
	case "warn", "warning":
		return otellog.SeverityWarn
	case "error":
		return otellog.SeverityError
	case "fatal", "panic":
		return otellog.SeverityFatal
	default:
		return otellog.SeverityInfo
	}
}
