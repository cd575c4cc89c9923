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

// Package directory holds the static list of monitored stores, the
// machine address table, and the per-sensor-type threshold profiles.
// The directory is read-only configuration; nothing in the monitoring
// core mutates it after load.
package directory

import (
	"errors"
	"fmt"

	"github.com/storeops/storemon/pkg/models"
)

var (
	errDuplicateStore  = errors.New("duplicate store id in directory")
	errMissingMachine  = errors.New("store is missing a machine id")
	errUnknownSensorTy = errors.New("sensor assignment references unknown sensor type")
)

// Store is the static configuration of one monitored store.
type Store struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Address        string  `json:"address"`
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	Timezone       string  `json:"timezone"`
	StockMachineID string  `json:"stock_machine_id"`
	TempMachineID  string  `json:"temp_machine_id"`
}

// Machine is one addressable device endpoint belonging to a store.
type Machine struct {
	ID        string
	StoreID   string
	Subsystem models.Subsystem
}

// SensorProfile is the threshold pair for one sensor type. A reading
// above CriticalUpper classifies as critical; below WarningLower as
// warning.
type SensorProfile struct {
	DisplayName   string  `json:"display_name"`
	CriticalUpper float64 `json:"critical_upper"`
	WarningLower  float64 `json:"warning_lower"`
}

// SensorAssignment maps a raw sensor id on a machine to a sensor type
// and a human-readable name.
type SensorAssignment struct {
	Type        string `json:"type"`
	DisplayName string `json:"display_name"`
}

// Config is the JSON shape of the directory file.
type Config struct {
	Stores []Store `json:"stores"`
	// Addresses maps machine ids to resolvable hostnames.
	Addresses map[string]string `json:"addresses"`
	// SensorTypes overrides or extends the default profile table.
	SensorTypes map[string]SensorProfile `json:"sensor_types,omitempty"`
	// Sensors maps a temperature machine id to its sensor assignments.
	Sensors map[string]map[string]SensorAssignment `json:"sensors,omitempty"`
}

// DefaultSensorTypes returns the built-in threshold table. The values are
// product tuning carried over unchanged from the deployed configuration.
func DefaultSensorTypes() map[string]SensorProfile {
	return map[string]SensorProfile{
		"fridge":  {DisplayName: "Fridge", CriticalUpper: 5, WarningLower: 1},
		"display": {DisplayName: "Display Case", CriticalUpper: 8, WarningLower: 1},
		"freezer": {DisplayName: "Freezer", CriticalUpper: -17.8, WarningLower: -22},
		"ambient": {DisplayName: "Ambient", CriticalUpper: 30, WarningLower: 15},
	}
}

// Directory is the resolved, lookup-friendly form of a Config.
type Directory struct {
	stores      []Store
	storesByID  map[string]Store
	machines    []Machine
	machineByID map[string]Machine
	addresses   map[string]string
	sensorTypes map[string]SensorProfile
	sensors     map[string]map[string]SensorAssignment
}

// New validates cfg and builds the lookup tables.
func New(cfg *Config) (*Directory, error) {
	d := &Directory{
		stores:      make([]Store, 0, len(cfg.Stores)),
		storesByID:  make(map[string]Store, len(cfg.Stores)),
		machines:    make([]Machine, 0, 2*len(cfg.Stores)),
		machineByID: make(map[string]Machine, 2*len(cfg.Stores)),
		addresses:   make(map[string]string, len(cfg.Addresses)),
		sensorTypes: DefaultSensorTypes(),
		sensors:     cfg.Sensors,
	}

	for name, profile := range cfg.SensorTypes {
		d.sensorTypes[name] = profile
	}

	for _, store := range cfg.Stores {
		if _, ok := d.storesByID[store.ID]; ok {
			return nil, fmt.Errorf("%w: %s", errDuplicateStore, store.ID)
		}

		if store.StockMachineID == "" || store.TempMachineID == "" {
			return nil, fmt.Errorf("%w: %s", errMissingMachine, store.ID)
		}

		d.stores = append(d.stores, store)
		d.storesByID[store.ID] = store

		stock := Machine{ID: store.StockMachineID, StoreID: store.ID, Subsystem: models.SubsystemStock}
		temp := Machine{ID: store.TempMachineID, StoreID: store.ID, Subsystem: models.SubsystemTemperature}
		d.machines = append(d.machines, stock, temp)
		d.machineByID[stock.ID] = stock
		d.machineByID[temp.ID] = temp
	}

	for machineID, assignments := range cfg.Sensors {
		for sensorID, assignment := range assignments {
			if _, ok := d.sensorTypes[assignment.Type]; !ok {
				return nil, fmt.Errorf("%w: %s/%s -> %s", errUnknownSensorTy, machineID, sensorID, assignment.Type)
			}
		}
	}

	for machineID, addr := range cfg.Addresses {
		d.addresses[machineID] = addr
	}

	return d, nil
}

// Stores returns the configured stores in directory order.
func (d *Directory) Stores() []Store {
	out := make([]Store, len(d.stores))
	copy(out, d.stores)

	return out
}

// Store looks up one store by id.
func (d *Directory) Store(id string) (Store, bool) {
	s, ok := d.storesByID[id]
	return s, ok
}

// Machines returns every known machine, stock before temperature per
// store, in directory order. The health sweep uses this ordering.
func (d *Directory) Machines() []Machine {
	out := make([]Machine, len(d.machines))
	copy(out, d.machines)

	return out
}

// MachinesForStore returns the machines of one store, stock first.
func (d *Directory) MachinesForStore(storeID string) []Machine {
	store, ok := d.storesByID[storeID]
	if !ok {
		return nil
	}

	return []Machine{
		{ID: store.StockMachineID, StoreID: store.ID, Subsystem: models.SubsystemStock},
		{ID: store.TempMachineID, StoreID: store.ID, Subsystem: models.SubsystemTemperature},
	}
}

// StoreForMachine resolves a machine id back to its store and subsystem.
func (d *Directory) StoreForMachine(machineID string) (Store, models.Subsystem, bool) {
	m, ok := d.machineByID[machineID]
	if !ok {
		return Store{}, "", false
	}

	return d.storesByID[m.StoreID], m.Subsystem, true
}

// Resolve returns the network address of a machine, if one is configured.
func (d *Directory) Resolve(machineID string) (string, bool) {
	addr, ok := d.addresses[machineID]
	return addr, ok
}

// SensorProfile resolves the threshold profile for a sensor on a
// temperature machine. Unassigned sensors fall back to the ambient
// profile.
func (d *Directory) SensorProfile(machineID, sensorID string) SensorProfile {
	if assignments, ok := d.sensors[machineID]; ok {
		if assignment, ok := assignments[sensorID]; ok {
			profile := d.sensorTypes[assignment.Type]
			if assignment.DisplayName != "" {
				profile.DisplayName = assignment.DisplayName
			}

			return profile
		}
	}

	return d.sensorTypes["ambient"]
}

// SensorDisplayName returns the configured name for a sensor, or the raw
// sensor id when none is assigned.
func (d *Directory) SensorDisplayName(machineID, sensorID string) string {
	if assignments, ok := d.sensors[machineID]; ok {
		if assignment, ok := assignments[sensorID]; ok && assignment.DisplayName != "" {
			return assignment.DisplayName
		}
	}

	return sensorID
}
