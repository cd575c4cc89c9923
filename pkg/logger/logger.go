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

// Package logger provides JSON structured logging using zerolog.
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level      string     `json:"level"`
	Debug      bool       `json:"debug"`
	Output     string     `json:"output"`
	TimeFormat string     `json:"time_format"`
	OTel       OTelConfig `json:"otel,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Output: "stdout",
	}
}

// New creates a logger instance from the given configuration. A nil config
// uses the defaults.
func New(config *Config) (Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	var output io.Writer = os.Stdout
	if config.Output == "stderr" {
		output = os.Stderr
	}

	level := zerolog.InfoLevel

	if config.Debug {
		level = zerolog.DebugLevel
	} else if config.Level != "" {
		var err error

		level, err = zerolog.ParseLevel(config.Level)
		if err != nil {
			return nil, err
		}
	}

	if config.TimeFormat != "" {
		zerolog.TimeFieldFormat = config.TimeFormat
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	if config.OTel.Enabled {
		writer, err := newOTelWriter(context.Background(), config.OTel)
		if err != nil {
			return nil, err
		}

		setOTelWriter(writer)

		output = zerolog.MultiLevelWriter(output, writer)
	}

	zlog := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	return &loggerImpl{logger: zlog}, nil
}

// activeOTelWriter is kept for Shutdown; the exporter batches records
// and must be flushed before the process exits.
var (
	otelMu           sync.Mutex
	activeOTelWriter *otelWriter
)

func setOTelWriter(w *otelWriter) {
	otelMu.Lock()
	defer otelMu.Unlock()

	activeOTelWriter = w
}

// Shutdown flushes and stops the OTLP log exporter, if one was
// configured. Safe to call when OTel logging is disabled.
func Shutdown(ctx context.Context) error {
	otelMu.Lock()
	writer := activeOTelWriter
	activeOTelWriter = nil
	otelMu.Unlock()

	if writer == nil {
		return nil
	}

	return writer.shutdown(ctx)
}

// loggerImpl implements the Logger interface without global state.
type loggerImpl struct {
	logger zerolog.Logger
}

func (l *loggerImpl) Trace() *zerolog.Event { return l.logger.Trace() }
func (l *loggerImpl) Debug() *zerolog.Event { return l.logger.Debug() }
func (l *loggerImpl) Info() *zerolog.Event  { return l.logger.Info() }
func (l *loggerImpl) Warn() *zerolog.Event  { return l.logger.Warn() }
func (l *loggerImpl) Error() *zerolog.Event { return l.logger.Error() }
func (l *loggerImpl) Fatal() *zerolog.Event { return l.logger.Fatal() }

func (l *loggerImpl) With() zerolog.Context { return l.logger.With() }

func (l *loggerImpl) WithComponent(component string) Logger {
	return &loggerImpl{logger: l.logger.With().Str("component", component).Logger()}
}

func (l *loggerImpl) SetDebug(debug bool) {
	if debug {
		l.logger = l.logger.Level(zerolog.DebugLevel)
	} else {
		l.logger = l.logger.Level(zerolog.InfoLevel)
	}
}
