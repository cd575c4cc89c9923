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

// Package lifecycle starts and stops the application's long-running
// services and wires OS signal handling.
package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/storeops/storemon/pkg/logger"
)

const stopTimeout = 10 * time.Second

// Service is a long-running component with explicit start/stop.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ServiceFuncs adapts a pair of functions to the Service interface.
type ServiceFuncs struct {
	OnStart func(ctx context.Context) error
	OnStop  func(ctx context.Context) error
}

func (s ServiceFuncs) Start(ctx context.Context) error {
	if s.OnStart == nil {
		return nil
	}

	return s.OnStart(ctx)
}

func (s ServiceFuncs) Stop(ctx context.Context) error {
	if s.OnStop == nil {
		return nil
	}

	return s.OnStop(ctx)
}

// Run starts every service in order and blocks until the context is
// canceled or SIGINT/SIGTERM arrives, then stops them in reverse order.
func Run(ctx context.Context, log logger.Logger, services ...Service) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	started := make([]Service, 0, len(services))

	stopAll := func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
		defer stopCancel()

		for i := len(started) - 1; i >= 0; i-- {
			if err := started[i].Stop(stopCtx); err != nil {
				log.Error().Err(err).Msg("Error stopping service")
			}
		}
	}

	for _, svc := range services {
		if err := svc.Start(ctx); err != nil {
			stopAll()
			return err
		}

		started = append(started, svc)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	case <-ctx.Done():
		log.Info().Msg("Context canceled, shutting down")
	}

	stopAll()

	return nil
}
