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

// Package models holds the shared domain types of the monitoring core.
package models

import "time"

// MachineStatus is the connectivity status of one machine.
type MachineStatus string

const (
	StatusUnknown MachineStatus = "unknown"
	StatusOnline  MachineStatus = "online"
	StatusOffline MachineStatus = "offline"
)

// Subsystem identifies which of a store's two machines a status or
// reading belongs to.
type Subsystem string

const (
	SubsystemStock       Subsystem = "stock"
	SubsystemTemperature Subsystem = "temperature"
)

// StockLevel is the classified fill state of one stock region.
type StockLevel string

const (
	StockOK    StockLevel = "ok"
	StockLow   StockLevel = "low"
	StockEmpty StockLevel = "empty"
)

// TempState is the classified state of one temperature sensor.
type TempState string

const (
	TempNormal   TempState = "normal"
	TempWarning  TempState = "warning"
	TempCritical TempState = "critical"
)

// Severity ranks an alert for display ordering.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// AlertCategory groups alerts for deduplication. One alert per category
// per store per dedup window.
type AlertCategory string

const (
	AlertStock       AlertCategory = "stock"
	AlertTemperature AlertCategory = "temperature"
)

// StockRegion is one monitored shelf region on a stock machine.
type StockRegion struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	FillLevel int        `json:"fill_level"`
	Status    StockLevel `json:"status"`
}

// TempSensor is one temperature sensor reported by a store's sensor
// gateway. Humidity and battery voltage are optional; not every sensor
// model reports them.
type TempSensor struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	TemperatureC float64   `json:"temperature_c"`
	Humidity     *float64  `json:"humidity,omitempty"`
	BatteryV     *float64  `json:"battery_v,omitempty"`
	Status       TempState `json:"status"`
}

// AlertImage is an evidentiary still frame attached to an alert.
type AlertImage struct {
	Kind        string `json:"kind"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// Alert is one raised alert. Immutable after creation except for the
// read flag.
type Alert struct {
	ID        string        `json:"id"`
	StoreID   string        `json:"store_id"`
	StoreName string        `json:"store_name"`
	Category  AlertCategory `json:"category"`
	Severity  Severity      `json:"severity"`
	Title     string        `json:"title"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
	Read      bool          `json:"read"`
	Regions   []string      `json:"regions,omitempty"`
	Sensors   []string      `json:"sensors,omitempty"`
	Images    []AlertImage  `json:"images,omitempty"`
}
