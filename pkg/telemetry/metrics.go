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

// Package telemetry defines the Prometheus metrics of the monitoring core.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ProbesTotal counts health probes by subsystem and result.
	ProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storemon",
			Name:      "probes_total",
			Help:      "Total number of reachability probes issued",
		},
		[]string{"subsystem", "result"},
	)

	// StatusTransitions counts published machine status transitions.
	StatusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storemon",
			Name:      "status_transitions_total",
			Help:      "Total number of machine status transitions published",
		},
		[]string{"subsystem", "status"},
	)

	// PollsTotal counts reading polls by subsystem and result.
	PollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storemon",
			Name:      "polls_total",
			Help:      "Total number of reading polls executed",
		},
		[]string{"subsystem", "result"},
	)

	// AlertsRaised counts created alerts by category and severity.
	AlertsRaised = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storemon",
			Name:      "alerts_raised_total",
			Help:      "Total number of alerts created",
		},
		[]string{"category", "severity"},
	)

	// AlertsSuppressed counts alerts suppressed by the dedup window.
	AlertsSuppressed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storemon",
			Name:      "alerts_suppressed_total",
			Help:      "Total number of alerts suppressed by deduplication",
		},
		[]string{"category"},
	)

	// ConnectionsOpened counts successful device handshakes.
	ConnectionsOpened = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "storemon",
			Name:      "connections_opened_total",
			Help:      "Total number of device connections established",
		},
	)

	// ConnectionsEvicted counts connections dropped from the cache.
	ConnectionsEvicted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "storemon",
			Name:      "connections_evicted_total",
			Help:      "Total number of device connections evicted from the cache",
		},
	)

	once sync.Once
)

// InitMetrics registers all metrics with the default Prometheus registry.
// Safe to call more than once.
func InitMetrics() {
	once.Do(func() {
		prometheus.MustRegister(
			ProbesTotal,
			StatusTransitions,
			PollsTotal,
			AlertsRaised,
			AlertsSuppressed,
			ConnectionsOpened,
			ConnectionsEvicted,
		)
	})
}
