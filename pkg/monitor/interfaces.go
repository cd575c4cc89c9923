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

package monitor

import (
	"context"
	"time"

	"github.com/storeops/storemon/pkg/models"
)

// Clock abstracts time-related operations.
type Clock interface {
	Now() time.Time
	Ticker(d time.Duration) Ticker
}

// Ticker abstracts the ticker behavior.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

// Reader fetches normalized domain readings for one machine. Implemented
// by the devices package on top of the connection cache.
type Reader interface {
	StockReadings(ctx context.Context, machineID string) ([]models.StockRegion, error)
	TemperatureReadings(ctx context.Context, machineID string) ([]models.TempSensor, error)
	CameraImage(ctx context.Context, machineID string, overlay bool) ([]byte, error)
}
