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

package devices

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/storeops/storemon/pkg/directory"
	"github.com/storeops/storemon/pkg/logger"
	"github.com/storeops/storemon/pkg/models"
)

const (
	stockSensorName   = "stock_fill"
	stockCameraName   = "camera"
	overlayCameraName = "stock_fill_view"
)

// Reader fetches and normalizes domain readings through the connection
// cache. Malformed entries in a payload are treated as missing data, not
// as errors.
type Reader struct {
	cache *Cache
	dir   *directory.Directory
	log   logger.Logger
}

func NewReader(cache *Cache, dir *directory.Directory, log logger.Logger) *Reader {
	return &Reader{
		cache: cache,
		dir:   dir,
		log:   log.WithComponent("readings"),
	}
}

// StockReadings fetches the stock-fill readings of a stock machine. The
// returned regions carry fill levels only; classification is the polling
// engine's job.
func (r *Reader) StockReadings(ctx context.Context, machineID string) ([]models.StockRegion, error) {
	var regions []models.StockRegion

	err := r.cache.WithClient(ctx, machineID, func(ctx context.Context, client Client) error {
		readings, err := client.Readings(ctx, stockSensorName)
		if err != nil {
			return err
		}

		regions = normalizeStockReadings(readings)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return regions, nil
}

func normalizeStockReadings(readings map[string]interface{}) []models.StockRegion {
	regions := make([]models.StockRegion, 0, len(readings))

	for key, value := range readings {
		// The model publishes auxiliary keys alongside the per-region
		// fill percentages; only the region keys are readings.
		if strings.HasSuffix(key, "_raw") || key == "is_occluded_by_person" {
			continue
		}

		fill, ok := asFloat(value)
		if !ok {
			continue
		}

		regions = append(regions, models.StockRegion{
			ID:        key,
			Name:      key,
			FillLevel: clampFill(fill),
		})
	}

	sort.Slice(regions, func(i, j int) bool { return regions[i].ID < regions[j].ID })

	return regions
}

// TemperatureReadings discovers the sensor gateway component on a
// temperature machine and fetches its readings. A machine without a
// gateway component yields no data rather than an error.
func (r *Reader) TemperatureReadings(ctx context.Context, machineID string) ([]models.TempSensor, error) {
	var sensors []models.TempSensor

	err := r.cache.WithClient(ctx, machineID, func(ctx context.Context, client Client) error {
		resources, err := client.ResourceNames(ctx)
		if err != nil {
			return err
		}

		gateway, ok := findTemperatureGateway(resources)
		if !ok {
			r.log.Debug().Str("machine", machineID).Msg("No temperature gateway component found")
			return nil
		}

		readings, err := client.Readings(ctx, gateway.Name)
		if err != nil {
			return err
		}

		sensors = r.normalizeTempReadings(machineID, readings)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return sensors, nil
}

// findTemperatureGateway picks the first sensor-API resource that is not
// the stock-fill model.
func findTemperatureGateway(resources []Resource) (Resource, bool) {
	for _, res := range resources {
		if strings.HasSuffix(res.API, ":sensor") && !strings.Contains(res.Model, "stock-fill") {
			return res, true
		}
	}

	return Resource{}, false
}

func (r *Reader) normalizeTempReadings(machineID string, readings map[string]interface{}) []models.TempSensor {
	sensors := make([]models.TempSensor, 0, len(readings))

	for id, value := range readings {
		payload, ok := value.(map[string]interface{})
		if !ok {
			continue
		}

		temp, ok := asFloat(payload["TempC_SHT"])
		if !ok {
			temp, ok = asFloat(payload["TempC_DS"])
		}

		if !ok {
			// No temperature field at all: skip the entry, it neither
			// updates nor degrades status.
			continue
		}

		sensor := models.TempSensor{
			ID:           id,
			Name:         r.dir.SensorDisplayName(machineID, id),
			TemperatureC: temp,
		}

		if humidity, ok := asFloat(payload["Hum_SHT"]); ok {
			sensor.Humidity = &humidity
		}

		if battery, ok := asFloat(payload["BatV"]); ok {
			sensor.BatteryV = &battery
		}

		sensors = append(sensors, sensor)
	}

	sort.Slice(sensors, func(i, j int) bool { return sensors[i].ID < sensors[j].ID })

	return sensors
}

// CameraImage fetches a still frame from a stock machine's camera, with
// or without the detection overlay.
func (r *Reader) CameraImage(ctx context.Context, machineID string, overlay bool) ([]byte, error) {
	camera := stockCameraName
	if overlay {
		camera = overlayCameraName
	}

	var image []byte

	err := r.cache.WithClient(ctx, machineID, func(ctx context.Context, client Client) error {
		var err error
		image, err = client.Image(ctx, camera)

		return err
	})
	if err != nil {
		return nil, err
	}

	return image, nil
}

func asFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}

	return 0, false
}

func clampFill(fill float64) int {
	rounded := int(math.Round(fill))

	if rounded < 0 {
		return 0
	}

	if rounded > 100 {
		return 100
	}

	return rounded
}
