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

// Package health runs the bounded-concurrency reachability scheduler and
// publishes per-machine status transitions with failure-threshold
// hysteresis.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/storeops/storemon/pkg/directory"
	"github.com/storeops/storemon/pkg/logger"
	"github.com/storeops/storemon/pkg/models"
	"github.com/storeops/storemon/pkg/state"
	"github.com/storeops/storemon/pkg/telemetry"
)

const (
	defaultSweepInterval    = 60 * time.Second
	defaultConcurrentChecks = 2
	defaultFailureThreshold = 3
)

// Config tunes the scheduler. Zero values fall back to the defaults.
type Config struct {
	SweepInterval    models.Duration `json:"sweep_interval,omitempty"`
	ConcurrentChecks int             `json:"concurrent_checks,omitempty"`
	FailureThreshold int             `json:"failure_threshold,omitempty"`
}

func (c Config) sweepInterval() time.Duration {
	if d := time.Duration(c.SweepInterval); d > 0 {
		return d
	}

	return defaultSweepInterval
}

func (c Config) concurrentChecks() int {
	if c.ConcurrentChecks > 0 {
		return c.ConcurrentChecks
	}

	return defaultConcurrentChecks
}

func (c Config) failureThreshold() int {
	if c.FailureThreshold > 0 {
		return c.FailureThreshold
	}

	return defaultFailureThreshold
}

// Scheduler probes every known machine on a periodic sweep, keeping at
// most a fixed number of probes in flight. Immediate check requests jump
// the queue. A machine is only reported offline after the failure
// threshold is reached; recovery is reported on the first success.
type Scheduler struct {
	cfg    Config
	dir    *directory.Directory
	prober Prober
	table  *state.Table
	clock  Clock
	log    logger.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []string
	inflight map[string]bool
	failures map[string]int
	started  bool
	stopped  bool
	done     chan struct{}
	ticker   Ticker
	wg       sync.WaitGroup
}

// New creates a scheduler. A nil clock uses the real time package.
func New(cfg Config, dir *directory.Directory, prober Prober, table *state.Table, clock Clock, log logger.Logger) *Scheduler {
	if clock == nil {
		clock = realClock{}
	}

	s := &Scheduler{
		cfg:    cfg,
		dir:    dir,
		prober: prober,
		table:  table,
		clock:  clock,
		log:    log.WithComponent("health"),
	}
	s.cond = sync.NewCond(&s.mu)

	return s
}

// Start enqueues an immediate sweep of every known machine, arms the
// periodic sweep ticker, and launches the probe workers. Starting while
// running stops the previous run first, so every Start begins from a
// clean slate: queue and failure counters cleared, every machine
// unknown again.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()

	if s.started {
		s.mu.Unlock()

		if err := s.Stop(ctx); err != nil {
			return err
		}

		s.mu.Lock()
	}

	s.started = true
	s.stopped = false
	s.done = make(chan struct{})
	s.inflight = make(map[string]bool)
	s.failures = make(map[string]int)
	s.queue = nil

	for _, machine := range s.dir.Machines() {
		s.queue = append(s.queue, machine.ID)
	}

	queued := len(s.queue)
	s.ticker = s.clock.Ticker(s.cfg.sweepInterval())
	s.mu.Unlock()

	s.wg.Add(1)

	go s.sweepLoop(ctx)

	workers := s.cfg.concurrentChecks()
	for i := 0; i < workers; i++ {
		s.wg.Add(1)

		go s.worker(ctx)
	}

	s.log.Info().
		Int("machines", queued).
		Int("concurrent_checks", workers).
		Dur("sweep_interval", s.cfg.sweepInterval()).
		Msg("Health scheduler started")

	return nil
}

// Stop cancels the sweep timer and clears all counters and queued
// entries. In-flight probes are left to settle; their results are
// discarded.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()

	if !s.started {
		s.mu.Unlock()
		return nil
	}

	s.started = false
	s.stopped = true

	if s.ticker != nil {
		s.ticker.Stop()
	}

	close(s.done)
	s.cond.Broadcast()
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.queue = nil
	s.failures = make(map[string]int)
	s.inflight = make(map[string]bool)
	s.mu.Unlock()

	s.log.Info().Msg("Health scheduler stopped")

	return nil
}

// QueueImmediate inserts the machines of the given stores at the head of
// the queue so the next free probe slots pick them up ahead of any
// pending sweep entries.
func (s *Scheduler) QueueImmediate(storeIDs []string) {
	var machines []string

	for _, storeID := range storeIDs {
		for _, machine := range s.dir.MachinesForStore(storeID) {
			machines = append(machines, machine.ID)
		}
	}

	if len(machines) == 0 {
		return
	}

	s.mu.Lock()

	if !s.started {
		s.mu.Unlock()
		return
	}

	s.queue = append(machines, s.queue...)
	s.cond.Broadcast()
	s.mu.Unlock()

	s.log.Info().Int("machines", len(machines)).Msg("Queued immediate health check")
}

func (s *Scheduler) sweepLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-s.ticker.Chan():
			s.enqueueSweep()
		}
	}
}

func (s *Scheduler) enqueueSweep() {
	machines := s.dir.Machines()

	s.mu.Lock()

	if s.stopped {
		s.mu.Unlock()
		return
	}

	for _, machine := range machines {
		s.queue = append(s.queue, machine.ID)
	}

	s.cond.Broadcast()
	s.mu.Unlock()

	s.log.Debug().Int("machines", len(machines)).Msg("Queued periodic health sweep")
}

// worker pulls queue entries and issues probes. At most one probe per
// machine is ever in flight: entries for a machine with an unsettled
// probe are skipped until it settles.
func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()

	for {
		machineID, ok := s.next()
		if !ok {
			return
		}

		err := s.prober.Probe(ctx, machineID)
		s.observeProbe(machineID, err)
		s.settle(machineID, err)
	}
}

// next blocks until a queue entry without an in-flight probe is
// available, or the scheduler is stopped.
func (s *Scheduler) next() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.stopped {
			return "", false
		}

		for i, id := range s.queue {
			if s.inflight[id] {
				continue
			}

			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			s.inflight[id] = true

			return id, true
		}

		s.cond.Wait()
	}
}

func (s *Scheduler) observeProbe(machineID string, err error) {
	_, subsystem, ok := s.dir.StoreForMachine(machineID)
	if !ok {
		return
	}

	result := "success"
	if err != nil {
		result = "failure"
	}

	telemetry.ProbesTotal.WithLabelValues(string(subsystem), result).Inc()
}

// settle applies the hysteresis rules to a probe result. Results arriving
// after Stop are discarded.
func (s *Scheduler) settle(machineID string, probeErr error) {
	s.mu.Lock()
	delete(s.inflight, machineID)

	if s.stopped {
		s.cond.Broadcast()
		s.mu.Unlock()

		return
	}

	var status models.MachineStatus

	publish := false
	failures := 0

	if probeErr == nil {
		s.failures[machineID] = 0
		publish = true
		status = models.StatusOnline
	} else {
		s.failures[machineID]++
		failures = s.failures[machineID]

		if failures < s.cfg.failureThreshold() {
			// Below the threshold: fast retry at the head of the queue,
			// no transition yet.
			s.queue = append([]string{machineID}, s.queue...)
		} else {
			publish = true
			status = models.StatusOffline
		}
	}

	s.cond.Broadcast()
	s.mu.Unlock()

	if publish {
		s.publish(machineID, status, failures)
	} else {
		s.log.Debug().
			Str("machine", machineID).
			Int("failures", failures).
			Int("threshold", s.cfg.failureThreshold()).
			Msg("Health check failed, retrying")
	}
}

// publish emits a status transition to the shared state table when the
// recorded status differs.
func (s *Scheduler) publish(machineID string, status models.MachineStatus, failures int) {
	store, subsystem, ok := s.dir.StoreForMachine(machineID)
	if !ok {
		s.log.Warn().Str("machine", machineID).Msg("Probed machine is not in the directory")
		return
	}

	if !s.table.SetStatus(store.ID, subsystem, status) {
		return
	}

	telemetry.StatusTransitions.WithLabelValues(string(subsystem), string(status)).Inc()

	if status == models.StatusOnline {
		s.log.Info().
			Str("store", store.Name).
			Str("subsystem", string(subsystem)).
			Msg("Machine status updated to online")
	} else {
		s.log.Warn().
			Str("store", store.Name).
			Str("subsystem", string(subsystem)).
			Int("failures", failures).
			Msg("Machine marked offline after consecutive failures")
	}
}
