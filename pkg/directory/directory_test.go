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

package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeops/storemon/pkg/models"
)

func testConfig() *Config {
	return &Config{
		Stores: []Store{
			{ID: "store-1", Name: "Downtown", StockMachineID: "stock-1", TempMachineID: "temp-1"},
			{ID: "store-2", Name: "Airport", StockMachineID: "stock-2", TempMachineID: "temp-2"},
		},
		Addresses: map[string]string{
			"stock-1": "stock-1.devices.example.com",
			"temp-1":  "temp-1.devices.example.com",
		},
		Sensors: map[string]map[string]SensorAssignment{
			"temp-1": {
				"sensor-a": {Type: "fridge", DisplayName: "Dairy Fridge"},
				"sensor-b": {Type: "freezer"},
			},
		},
	}
}

func TestNewRejectsDuplicateStore(t *testing.T) {
	cfg := testConfig()
	cfg.Stores = append(cfg.Stores, cfg.Stores[0])

	_, err := New(cfg)
	assert.ErrorIs(t, err, errDuplicateStore)
}

func TestNewRejectsMissingMachine(t *testing.T) {
	cfg := testConfig()
	cfg.Stores[1].TempMachineID = ""

	_, err := New(cfg)
	assert.ErrorIs(t, err, errMissingMachine)
}

func TestNewRejectsUnknownSensorType(t *testing.T) {
	cfg := testConfig()
	cfg.Sensors["temp-1"]["sensor-c"] = SensorAssignment{Type: "sauna"}

	_, err := New(cfg)
	assert.ErrorIs(t, err, errUnknownSensorTy)
}

func TestMachinesOrdering(t *testing.T) {
	dir, err := New(testConfig())
	require.NoError(t, err)

	machines := dir.Machines()
	require.Len(t, machines, 4)

	assert.Equal(t, "stock-1", machines[0].ID)
	assert.Equal(t, models.SubsystemStock, machines[0].Subsystem)
	assert.Equal(t, "temp-1", machines[1].ID)
	assert.Equal(t, models.SubsystemTemperature, machines[1].Subsystem)
	assert.Equal(t, "stock-2", machines[2].ID)
	assert.Equal(t, "temp-2", machines[3].ID)
}

func TestMachinesForStore(t *testing.T) {
	dir, err := New(testConfig())
	require.NoError(t, err)

	machines := dir.MachinesForStore("store-2")
	require.Len(t, machines, 2)
	assert.Equal(t, "stock-2", machines[0].ID)
	assert.Equal(t, "temp-2", machines[1].ID)

	assert.Nil(t, dir.MachinesForStore("store-9"))
}

func TestStoreForMachine(t *testing.T) {
	dir, err := New(testConfig())
	require.NoError(t, err)

	store, subsystem, ok := dir.StoreForMachine("temp-2")
	require.True(t, ok)
	assert.Equal(t, "store-2", store.ID)
	assert.Equal(t, models.SubsystemTemperature, subsystem)

	_, _, ok = dir.StoreForMachine("nope")
	assert.False(t, ok)
}

func TestResolve(t *testing.T) {
	dir, err := New(testConfig())
	require.NoError(t, err)

	addr, ok := dir.Resolve("stock-1")
	require.True(t, ok)
	assert.Equal(t, "stock-1.devices.example.com", addr)

	_, ok = dir.Resolve("stock-2")
	assert.False(t, ok)
}

func TestSensorProfileAssignment(t *testing.T) {
	dir, err := New(testConfig())
	require.NoError(t, err)

	fridge := dir.SensorProfile("temp-1", "sensor-a")
	assert.Equal(t, "Dairy Fridge", fridge.DisplayName)
	assert.InDelta(t, 5, fridge.CriticalUpper, 0.001)
	assert.InDelta(t, 1, fridge.WarningLower, 0.001)

	freezer := dir.SensorProfile("temp-1", "sensor-b")
	assert.Equal(t, "Freezer", freezer.DisplayName)
	assert.InDelta(t, -17.8, freezer.CriticalUpper, 0.001)
}

func TestSensorProfileFallsBackToAmbient(t *testing.T) {
	dir, err := New(testConfig())
	require.NoError(t, err)

	ambient := dir.SensorProfile("temp-1", "unassigned")
	assert.InDelta(t, 30, ambient.CriticalUpper, 0.001)
	assert.InDelta(t, 15, ambient.WarningLower, 0.001)
}

func TestSensorTypeOverride(t *testing.T) {
	cfg := testConfig()
	cfg.SensorTypes = map[string]SensorProfile{
		"fridge": {DisplayName: "Fridge", CriticalUpper: 6, WarningLower: 0},
	}

	dir, err := New(cfg)
	require.NoError(t, err)

	fridge := dir.SensorProfile("temp-1", "sensor-a")
	assert.InDelta(t, 6, fridge.CriticalUpper, 0.001)
}

func TestSensorDisplayName(t *testing.T) {
	dir, err := New(testConfig())
	require.NoError(t, err)

	assert.Equal(t, "Dairy Fridge", dir.SensorDisplayName("temp-1", "sensor-a"))
	assert.Equal(t, "sensor-b", dir.SensorDisplayName("temp-1", "sensor-b"))
	assert.Equal(t, "sensor-x", dir.SensorDisplayName("temp-1", "sensor-x"))
}
