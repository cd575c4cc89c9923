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
	"github.com/storeops/storemon/pkg/directory"
	"github.com/storeops/storemon/pkg/models"
)

// Rules holds the injectable classification thresholds. The defaults are
// product tuning carried over unchanged from the deployed configuration.
type Rules struct {
	// StockEmptyBelow is the fill percentage below which a region is empty.
	StockEmptyBelow int `json:"stock_empty_below,omitempty"`
	// StockLowBelow is the fill percentage below which a region is low.
	StockLowBelow int `json:"stock_low_below,omitempty"`
	// MinLowRegions is the region count that must be exceeded before a
	// store-level stock alert triggers.
	MinLowRegions int `json:"min_low_regions,omitempty"`
}

// DefaultRules returns the default classification thresholds.
func DefaultRules() Rules {
	return Rules{
		StockEmptyBelow: 20,
		StockLowBelow:   40,
		MinLowRegions:   2,
	}
}

// classifyStock assigns a stock level to every region in place.
func classifyStock(regions []models.StockRegion, rules Rules) {
	for i := range regions {
		switch {
		case regions[i].FillLevel < rules.StockEmptyBelow:
			regions[i].Status = models.StockEmpty
		case regions[i].FillLevel < rules.StockLowBelow:
			regions[i].Status = models.StockLow
		default:
			regions[i].Status = models.StockOK
		}
	}
}

// classifyTemperature assigns a state to every sensor in place, using the
// sensor's type-specific threshold profile.
func classifyTemperature(sensors []models.TempSensor, machineID string, dir *directory.Directory) {
	for i := range sensors {
		profile := dir.SensorProfile(machineID, sensors[i].ID)

		switch {
		case sensors[i].TemperatureC > profile.CriticalUpper:
			sensors[i].Status = models.TempCritical
		case sensors[i].TemperatureC < profile.WarningLower:
			sensors[i].Status = models.TempWarning
		default:
			sensors[i].Status = models.TempNormal
		}
	}
}

// lowStockRegions returns the regions classified low or empty.
func lowStockRegions(regions []models.StockRegion) []models.StockRegion {
	var low []models.StockRegion

	for _, region := range regions {
		if region.Status == models.StockLow || region.Status == models.StockEmpty {
			low = append(low, region)
		}
	}

	return low
}

// temperatureIssues returns the sensors not in the normal state.
func temperatureIssues(sensors []models.TempSensor) []models.TempSensor {
	var issues []models.TempSensor

	for _, sensor := range sensors {
		if sensor.Status != models.TempNormal {
			issues = append(issues, sensor)
		}
	}

	return issues
}
