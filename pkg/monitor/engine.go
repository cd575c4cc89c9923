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

// Package monitor runs the periodic reading polls, classifies readings
// against per-sensor thresholds, and raises deduplicated alerts.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storeops/storemon/pkg/alerts"
	"github.com/storeops/storemon/pkg/directory"
	"github.com/storeops/storemon/pkg/logger"
	"github.com/storeops/storemon/pkg/models"
	"github.com/storeops/storemon/pkg/state"
	"github.com/storeops/storemon/pkg/telemetry"
)

const (
	defaultPollInterval = 30 * time.Second
	defaultDedupWindow  = 5 * time.Minute
	notifyTimeout       = 10 * time.Second
)

// Config tunes the polling engine. Zero values fall back to the defaults.
type Config struct {
	PollInterval models.Duration `json:"poll_interval,omitempty"`
	DedupWindow  models.Duration `json:"dedup_window,omitempty"`
	Rules        *Rules          `json:"rules,omitempty"`
}

func (c Config) pollInterval() time.Duration {
	if d := time.Duration(c.PollInterval); d > 0 {
		return d
	}

	return defaultPollInterval
}

func (c Config) dedupWindow() time.Duration {
	if d := time.Duration(c.DedupWindow); d > 0 {
		return d
	}

	return defaultDedupWindow
}

func (c Config) rules() Rules {
	if c.Rules != nil {
		return *c.Rules
	}

	return DefaultRules()
}

// Engine polls the selected stores on a fixed interval. Stock and
// temperature run on independent per-store loops so a slow subsystem
// never delays the other. The engine may only ever mark a subsystem
// offline; recovery to online is the health scheduler's call.
type Engine struct {
	cfg      Config
	dir      *directory.Directory
	reader   Reader
	table    *state.Table
	alerts   *alerts.Store
	notifier alerts.Notifier
	clock    Clock
	log      logger.Logger

	mu      sync.Mutex
	started bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewEngine creates a polling engine. A nil clock uses the real time
// package.
func NewEngine(
	cfg Config,
	dir *directory.Directory,
	reader Reader,
	table *state.Table,
	alertStore *alerts.Store,
	notifier alerts.Notifier,
	clock Clock,
	log logger.Logger,
) *Engine {
	if clock == nil {
		clock = realClock{}
	}

	return &Engine{
		cfg:      cfg,
		dir:      dir,
		reader:   reader,
		table:    table,
		alerts:   alertStore,
		notifier: notifier,
		clock:    clock,
		log:      log.WithComponent("monitor"),
	}
}

// Start polls every selected store once immediately, then arms the
// per-store, per-subsystem repeating timers. Starting while running
// cancels the previous timers first and begins over with the given
// store selection.
func (e *Engine) Start(ctx context.Context, storeIDs []string) error {
	e.mu.Lock()

	if e.started {
		e.mu.Unlock()

		if err := e.Stop(ctx); err != nil {
			return err
		}

		e.mu.Lock()
	}

	e.started = true
	e.done = make(chan struct{})
	e.mu.Unlock()

	count := 0

	for _, storeID := range storeIDs {
		store, ok := e.dir.Store(storeID)
		if !ok {
			e.log.Warn().Str("store", storeID).Msg("Cannot monitor unknown store")
			continue
		}

		count++

		for _, subsystem := range []models.Subsystem{models.SubsystemStock, models.SubsystemTemperature} {
			e.wg.Add(1)

			go e.pollLoop(ctx, store, subsystem)
		}
	}

	e.log.Info().Int("stores", count).Dur("interval", e.cfg.pollInterval()).Msg("Polling engine started")

	return nil
}

// Stop cancels all per-store timers and waits for in-flight polls to
// settle.
func (e *Engine) Stop(_ context.Context) error {
	e.mu.Lock()

	if !e.started {
		e.mu.Unlock()
		return nil
	}

	e.started = false
	close(e.done)
	e.mu.Unlock()

	e.wg.Wait()

	e.log.Info().Msg("Polling engine stopped")

	return nil
}

func (e *Engine) pollLoop(ctx context.Context, store directory.Store, subsystem models.Subsystem) {
	defer e.wg.Done()

	e.poll(ctx, store, subsystem)

	ticker := e.clock.Ticker(e.cfg.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			e.poll(ctx, store, subsystem)
		}
	}
}

// poll runs one tick for one subsystem. A subsystem already recorded
// offline is skipped entirely: the scheduler owns status truth and
// recovery, and skipping avoids duplicate failure detection.
func (e *Engine) poll(ctx context.Context, store directory.Store, subsystem models.Subsystem) {
	if e.table.Status(store.ID, subsystem) == models.StatusOffline {
		e.log.Debug().Str("store", store.Name).Str("subsystem", string(subsystem)).
			Msg("Skipping poll for offline subsystem")
		telemetry.PollsTotal.WithLabelValues(string(subsystem), "skipped").Inc()

		return
	}

	if subsystem == models.SubsystemStock {
		e.pollStock(ctx, store)
	} else {
		e.pollTemperature(ctx, store)
	}
}

func (e *Engine) pollStock(ctx context.Context, store directory.Store) {
	regions, err := e.reader.StockReadings(ctx, store.StockMachineID)
	if err != nil {
		e.markOffline(store, models.SubsystemStock, err)
		return
	}

	now := e.clock.Now()

	classifyStock(regions, e.cfg.rules())
	e.table.ApplyStockReadings(store.ID, regions, now)
	telemetry.PollsTotal.WithLabelValues(string(models.SubsystemStock), "success").Inc()

	e.evaluateStockAlert(ctx, store, regions, now)
}

func (e *Engine) pollTemperature(ctx context.Context, store directory.Store) {
	sensors, err := e.reader.TemperatureReadings(ctx, store.TempMachineID)
	if err != nil {
		e.markOffline(store, models.SubsystemTemperature, err)
		return
	}

	now := e.clock.Now()

	classifyTemperature(sensors, store.TempMachineID, e.dir)
	e.table.ApplyTempReadings(store.ID, sensors, now)
	telemetry.PollsTotal.WithLabelValues(string(models.SubsystemTemperature), "success").Inc()

	e.evaluateTemperatureAlert(ctx, store, sensors, now)
}

// markOffline is the fast-path correction ahead of the next scheduler
// sweep. The engine never transitions a subsystem back to online.
func (e *Engine) markOffline(store directory.Store, subsystem models.Subsystem, cause error) {
	telemetry.PollsTotal.WithLabelValues(string(subsystem), "failure").Inc()

	if e.table.SetStatus(store.ID, subsystem, models.StatusOffline) {
		telemetry.StatusTransitions.WithLabelValues(string(subsystem), string(models.StatusOffline)).Inc()
		e.log.Warn().Str("store", store.Name).Str("subsystem", string(subsystem)).Err(cause).
			Msg("Poll failed, marking subsystem offline")
	}
}

func (e *Engine) evaluateStockAlert(ctx context.Context, store directory.Store, regions []models.StockRegion, now time.Time) {
	low := lowStockRegions(regions)
	if len(low) <= e.cfg.rules().MinLowRegions {
		return
	}

	if e.suppressed(store.ID, models.AlertStock, now) {
		return
	}

	severity := models.SeverityMedium

	regionIDs := make([]string, 0, len(low))

	for _, region := range low {
		regionIDs = append(regionIDs, region.ID)

		if region.Status == models.StockEmpty {
			severity = models.SeverityHigh
		}
	}

	alert := models.Alert{
		ID:        uuid.NewString(),
		StoreID:   store.ID,
		StoreName: store.Name,
		Category:  models.AlertStock,
		Severity:  severity,
		Title:     "Low Stock Alert",
		Message:   fmt.Sprintf("%d regions need immediate restocking at %s.", len(low), store.Name),
		Timestamp: now,
		Regions:   regionIDs,
		Images:    e.captureStockEvidence(ctx, store.StockMachineID),
	}

	e.raise(ctx, alert)
}

func (e *Engine) evaluateTemperatureAlert(ctx context.Context, store directory.Store, sensors []models.TempSensor, now time.Time) {
	issues := temperatureIssues(sensors)
	if len(issues) == 0 {
		return
	}

	if e.suppressed(store.ID, models.AlertTemperature, now) {
		return
	}

	severity := models.SeverityMedium

	sensorIDs := make([]string, 0, len(issues))

	for _, sensor := range issues {
		sensorIDs = append(sensorIDs, sensor.ID)

		if sensor.Status == models.TempCritical {
			severity = models.SeverityHigh
		}
	}

	alert := models.Alert{
		ID:        uuid.NewString(),
		StoreID:   store.ID,
		StoreName: store.Name,
		Category:  models.AlertTemperature,
		Severity:  severity,
		Title:     "Temperature Alert",
		Message:   fmt.Sprintf("Temperature issue detected in %s at %s.", issues[0].Name, store.Name),
		Timestamp: now,
		Sensors:   sensorIDs,
	}

	e.raise(ctx, alert)
}

// suppressed applies the dedup window: one alert per category per store
// per window, regardless of how many poll ticks observe the condition.
func (e *Engine) suppressed(storeID string, category models.AlertCategory, now time.Time) bool {
	if !e.alerts.RecentExists(storeID, category, e.cfg.dedupWindow(), now) {
		return false
	}

	telemetry.AlertsSuppressed.WithLabelValues(string(category)).Inc()

	return true
}

func (e *Engine) raise(ctx context.Context, alert models.Alert) {
	e.alerts.Add(alert)
	telemetry.AlertsRaised.WithLabelValues(string(alert.Category), string(alert.Severity)).Inc()

	e.log.Info().
		Str("store", alert.StoreName).
		Str("category", string(alert.Category)).
		Str("severity", string(alert.Severity)).
		Msg("Alert raised")

	e.dispatch(ctx, alert)
}

// dispatch is fire-and-forget: delivery failure never rolls back the
// alert.
func (e *Engine) dispatch(_ context.Context, alert models.Alert) {
	if e.notifier == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := e.notifier.Notify(ctx, alert); err != nil {
			e.log.Warn().Err(err).Str("store", alert.StoreID).Msg("Alert notification failed")
		}
	}()
}

// captureStockEvidence attaches camera snapshots to a stock alert, best
// effort. A failed fetch degrades to an alert without images.
func (e *Engine) captureStockEvidence(ctx context.Context, machineID string) []models.AlertImage {
	var images []models.AlertImage

	for _, capture := range []struct {
		kind    string
		overlay bool
	}{
		{kind: "camera", overlay: false},
		{kind: "overlay", overlay: true},
	} {
		data, err := e.reader.CameraImage(ctx, machineID, capture.overlay)
		if err != nil {
			e.log.Debug().Str("machine", machineID).Str("kind", capture.kind).Err(err).
				Msg("Could not capture alert evidence image")

			continue
		}

		images = append(images, models.AlertImage{
			Kind:        capture.kind,
			ContentType: "image/jpeg",
			Data:        data,
		})
	}

	return images
}
