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

package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeops/storemon/pkg/directory"
	"github.com/storeops/storemon/pkg/logger"
	"github.com/storeops/storemon/pkg/models"
	"github.com/storeops/storemon/pkg/state"
)

var errProbeFailed = errors.New("probe failed")

type fakeTicker struct {
	mu      sync.Mutex
	ch      chan time.Time
	stopped bool
}

func (f *fakeTicker) Chan() <-chan time.Time { return f.ch }

func (f *fakeTicker) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stopped = true
}

func (f *fakeTicker) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.stopped
}

type fakeClock struct {
	ticker *fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{ticker: &fakeTicker{ch: make(chan time.Time)}}
}

func (c *fakeClock) Now() time.Time { return time.Now() }

func (c *fakeClock) Ticker(time.Duration) Ticker { return c.ticker }

func (c *fakeClock) tick() {
	c.ticker.ch <- time.Now()
}

// fakeProber replays a scripted result sequence per machine and records
// every call. Machines without a script always succeed.
type fakeProber struct {
	mu      sync.Mutex
	scripts map[string][]error
	calls   map[string]int
	order   []string
	delay   time.Duration

	inflight    map[string]int
	maxInflight int
	maxPerID    int
}

func newFakeProber() *fakeProber {
	return &fakeProber{
		scripts:  make(map[string][]error),
		calls:    make(map[string]int),
		inflight: make(map[string]int),
	}
}

func (p *fakeProber) script(machineID string, results ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.scripts[machineID] = results
}

func (p *fakeProber) Probe(_ context.Context, machineID string) error {
	p.mu.Lock()
	p.calls[machineID]++
	p.order = append(p.order, machineID)

	p.inflight[machineID]++

	total := 0
	for _, n := range p.inflight {
		total += n
	}

	if total > p.maxInflight {
		p.maxInflight = total
	}

	if p.inflight[machineID] > p.maxPerID {
		p.maxPerID = p.inflight[machineID]
	}

	var err error

	if script := p.scripts[machineID]; len(script) > 0 {
		err = script[0]
		p.scripts[machineID] = script[1:]
	}

	delay := p.delay
	p.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	p.mu.Lock()
	p.inflight[machineID]--
	p.mu.Unlock()

	return err
}

func (p *fakeProber) callCount(machineID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.calls[machineID]
}

func (p *fakeProber) totalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := 0
	for _, n := range p.calls {
		total += n
	}

	return total
}

func (p *fakeProber) callOrder() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]string(nil), p.order...)
}

func schedulerFixture(t *testing.T, cfg Config, prober Prober) (*Scheduler, *state.Table, *fakeClock) {
	t.Helper()

	dir, err := directory.New(&directory.Config{
		Stores: []directory.Store{
			{ID: "store-1", Name: "Downtown", StockMachineID: "stock-1", TempMachineID: "temp-1"},
			{ID: "store-2", Name: "Airport", StockMachineID: "stock-2", TempMachineID: "temp-2"},
		},
		Addresses: map[string]string{},
	})
	require.NoError(t, err)

	table := state.NewTable([]string{"store-1", "store-2"})
	clock := newFakeClock()

	return New(cfg, dir, prober, table, clock, logger.NewTestLogger()), table, clock
}

func TestSweepReportsOnlineOnFirstSuccess(t *testing.T) {
	prober := newFakeProber()

	sched, table, _ := schedulerFixture(t, Config{ConcurrentChecks: 1}, prober)

	require.NoError(t, sched.Start(context.Background()))
	defer func() { require.NoError(t, sched.Stop(context.Background())) }()

	require.Eventually(t, func() bool {
		return table.Status("store-1", models.SubsystemStock) == models.StatusOnline &&
			table.Status("store-1", models.SubsystemTemperature) == models.StatusOnline &&
			table.Status("store-2", models.SubsystemStock) == models.StatusOnline &&
			table.Status("store-2", models.SubsystemTemperature) == models.StatusOnline
	}, 5*time.Second, 10*time.Millisecond)
}

func TestOfflineRequiresConsecutiveFailures(t *testing.T) {
	prober := newFakeProber()
	prober.script("stock-1", errProbeFailed, errProbeFailed, errProbeFailed)

	sched, table, _ := schedulerFixture(t, Config{ConcurrentChecks: 1, FailureThreshold: 3}, prober)

	require.NoError(t, sched.Start(context.Background()))
	defer func() { require.NoError(t, sched.Stop(context.Background())) }()

	require.Eventually(t, func() bool {
		return table.Status("store-1", models.SubsystemStock) == models.StatusOffline
	}, 5*time.Second, 10*time.Millisecond)

	// Failed machines retry at the head of the queue, so the third
	// failure lands before any other machine is probed twice.
	assert.Equal(t, 3, prober.callCount("stock-1"))

	// The sibling subsystem is untouched by the stock machine's failures.
	require.Eventually(t, func() bool {
		return table.Status("store-1", models.SubsystemTemperature) == models.StatusOnline
	}, 5*time.Second, 10*time.Millisecond)
}

func TestFailuresBelowThresholdKeepStatus(t *testing.T) {
	prober := newFakeProber()
	prober.script("stock-1", errProbeFailed, errProbeFailed, nil)

	sched, table, _ := schedulerFixture(t, Config{ConcurrentChecks: 1, FailureThreshold: 3}, prober)

	require.NoError(t, sched.Start(context.Background()))
	defer func() { require.NoError(t, sched.Stop(context.Background())) }()

	require.Eventually(t, func() bool {
		return table.Status("store-1", models.SubsystemStock) == models.StatusOnline
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 3, prober.callCount("stock-1"))
}

func TestRecoveryPublishesImmediately(t *testing.T) {
	prober := newFakeProber()
	prober.script("stock-1", errProbeFailed, errProbeFailed, errProbeFailed, nil)

	sched, table, clock := schedulerFixture(t, Config{ConcurrentChecks: 1, FailureThreshold: 3}, prober)

	require.NoError(t, sched.Start(context.Background()))
	defer func() { require.NoError(t, sched.Stop(context.Background())) }()

	require.Eventually(t, func() bool {
		return table.Status("store-1", models.SubsystemStock) == models.StatusOffline
	}, 5*time.Second, 10*time.Millisecond)

	// Next sweep: one successful probe flips the machine back online, no
	// hysteresis on recovery.
	clock.tick()

	require.Eventually(t, func() bool {
		return table.Status("store-1", models.SubsystemStock) == models.StatusOnline
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 4, prober.callCount("stock-1"))
}

func TestQueueImmediateJumpsQueue(t *testing.T) {
	prober := newFakeProber()

	sched, _, clock := schedulerFixture(t, Config{ConcurrentChecks: 1}, prober)

	require.NoError(t, sched.Start(context.Background()))
	defer func() { require.NoError(t, sched.Stop(context.Background())) }()

	require.Eventually(t, func() bool {
		return prober.totalCalls() == 4
	}, 5*time.Second, 10*time.Millisecond)

	sched.QueueImmediate([]string{"store-2"})
	clock.tick()

	require.Eventually(t, func() bool {
		return prober.totalCalls() >= 10
	}, 5*time.Second, 10*time.Millisecond)

	order := prober.callOrder()
	assert.Equal(t, "stock-2", order[4])
	assert.Equal(t, "temp-2", order[5])
	assert.Equal(t, "stock-1", order[6])
}

func TestConcurrencyBound(t *testing.T) {
	prober := newFakeProber()
	prober.delay = 20 * time.Millisecond

	sched, _, _ := schedulerFixture(t, Config{ConcurrentChecks: 2}, prober)

	require.NoError(t, sched.Start(context.Background()))

	// Duplicate queue entries for store-1's machines while their sweep
	// probes are still in flight.
	sched.QueueImmediate([]string{"store-1"})

	require.Eventually(t, func() bool {
		return prober.totalCalls() >= 6
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, sched.Stop(context.Background()))

	prober.mu.Lock()
	defer prober.mu.Unlock()

	assert.LessOrEqual(t, prober.maxInflight, 2)
	assert.Equal(t, 1, prober.maxPerID)
}

func TestStopDiscardsLateResults(t *testing.T) {
	prober := newFakeProber()
	prober.delay = 50 * time.Millisecond
	prober.script("stock-1", errProbeFailed)

	sched, table, _ := schedulerFixture(t, Config{ConcurrentChecks: 1, FailureThreshold: 1}, prober)

	require.NoError(t, sched.Start(context.Background()))

	// Stop while the first probe is still sleeping; its failure must not
	// publish a transition.
	require.Eventually(t, func() bool {
		return prober.totalCalls() >= 1
	}, 5*time.Second, time.Millisecond)

	require.NoError(t, sched.Stop(context.Background()))

	assert.Equal(t, models.StatusUnknown, table.Status("store-1", models.SubsystemStock))
}

func TestRestartStartsFromCleanSlate(t *testing.T) {
	prober := newFakeProber()
	prober.script("stock-1", errProbeFailed, errProbeFailed)

	sched, table, _ := schedulerFixture(t, Config{ConcurrentChecks: 1, FailureThreshold: 3}, prober)

	require.NoError(t, sched.Start(context.Background()))

	require.Eventually(t, func() bool {
		return prober.callCount("stock-1") >= 2
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, sched.Stop(context.Background()))

	// The two recorded failures are gone after a restart; the machine
	// needs three fresh consecutive failures to go offline.
	prober.script("stock-1", errProbeFailed, nil)

	require.NoError(t, sched.Start(context.Background()))
	defer func() { require.NoError(t, sched.Stop(context.Background())) }()

	require.Eventually(t, func() bool {
		return table.Status("store-1", models.SubsystemStock) == models.StatusOnline
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStartWhileRunningRestarts(t *testing.T) {
	prober := newFakeProber()

	sched, _, _ := schedulerFixture(t, Config{ConcurrentChecks: 1}, prober)

	require.NoError(t, sched.Start(context.Background()))

	require.Eventually(t, func() bool {
		return prober.totalCalls() == 4
	}, 5*time.Second, 10*time.Millisecond)

	// A second Start stops the running sweep and begins over with a
	// fresh full sweep.
	require.NoError(t, sched.Start(context.Background()))

	require.Eventually(t, func() bool {
		return prober.totalCalls() >= 8
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, sched.Stop(context.Background()))
	require.NoError(t, sched.Stop(context.Background()))
}

func TestStopStopsSweepTicker(t *testing.T) {
	prober := newFakeProber()

	sched, _, clock := schedulerFixture(t, Config{ConcurrentChecks: 1}, prober)

	require.NoError(t, sched.Start(context.Background()))
	require.NoError(t, sched.Stop(context.Background()))

	assert.True(t, clock.ticker.isStopped())
}
