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

// Package state holds the shared per-store status table written by the
// health scheduler and the polling engine and read by the UI layer.
package state

import (
	"sync"
	"time"

	"github.com/storeops/storemon/pkg/models"
)

// StoreStatus is the dynamic record of one store. The two status fields
// map to physically distinct machines and move independently.
type StoreStatus struct {
	StoreID      string               `json:"store_id"`
	StockStatus  models.MachineStatus `json:"stock_status"`
	TempStatus   models.MachineStatus `json:"temp_status"`
	StockRegions []models.StockRegion `json:"stock_regions"`
	TempSensors  []models.TempSensor  `json:"temp_sensors"`
	LastUpdate   time.Time            `json:"last_update"`
}

// Table is the mutation-guarded status table. Writers update disjoint
// field sets per store; every update is a merge, never an overwrite of
// the whole record.
type Table struct {
	mu      sync.RWMutex
	entries map[string]*StoreStatus
}

// NewTable creates a table with one record per store id, both subsystems
// starting from unknown.
func NewTable(storeIDs []string) *Table {
	entries := make(map[string]*StoreStatus, len(storeIDs))

	for _, id := range storeIDs {
		entries[id] = &StoreStatus{
			StoreID:     id,
			StockStatus: models.StatusUnknown,
			TempStatus:  models.StatusUnknown,
		}
	}

	return &Table{entries: entries}
}

// SetStatus merges a status transition for one subsystem. It reports
// whether the recorded status actually changed.
func (t *Table) SetStatus(storeID string, subsystem models.Subsystem, status models.MachineStatus) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[storeID]
	if !ok {
		return false
	}

	switch subsystem {
	case models.SubsystemStock:
		if entry.StockStatus == status {
			return false
		}

		entry.StockStatus = status
	case models.SubsystemTemperature:
		if entry.TempStatus == status {
			return false
		}

		entry.TempStatus = status
	default:
		return false
	}

	return true
}

// Status returns the recorded status of one subsystem.
func (t *Table) Status(storeID string, subsystem models.Subsystem) models.MachineStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.entries[storeID]
	if !ok {
		return models.StatusUnknown
	}

	if subsystem == models.SubsystemStock {
		return entry.StockStatus
	}

	return entry.TempStatus
}

// ApplyStockReadings merges fresh stock regions and bumps the update
// timestamp, leaving both status fields untouched.
func (t *Table) ApplyStockReadings(storeID string, regions []models.StockRegion, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[storeID]
	if !ok {
		return
	}

	entry.StockRegions = append([]models.StockRegion(nil), regions...)
	entry.LastUpdate = at
}

// ApplyTempReadings merges fresh temperature sensors and bumps the
// update timestamp, leaving both status fields untouched.
func (t *Table) ApplyTempReadings(storeID string, sensors []models.TempSensor, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[storeID]
	if !ok {
		return
	}

	entry.TempSensors = append([]models.TempSensor(nil), sensors...)
	entry.LastUpdate = at
}

// Snapshot returns a copy of one store's record.
func (t *Table) Snapshot(storeID string) (StoreStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.entries[storeID]
	if !ok {
		return StoreStatus{}, false
	}

	return copyStatus(entry), true
}

// All returns a copy of every record.
func (t *Table) All() []StoreStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]StoreStatus, 0, len(t.entries))
	for _, entry := range t.entries {
		out = append(out, copyStatus(entry))
	}

	return out
}

func copyStatus(entry *StoreStatus) StoreStatus {
	snapshot := *entry
	snapshot.StockRegions = append([]models.StockRegion(nil), entry.StockRegions...)
	snapshot.TempSensors = append([]models.TempSensor(nil), entry.TempSensors...)

	return snapshot
}
