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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storeops/storemon/pkg/directory"
	"github.com/storeops/storemon/pkg/logger"
)

func testDirectory(t *testing.T) *directory.Directory {
	t.Helper()

	dir, err := directory.New(&directory.Config{
		Stores: []directory.Store{
			{ID: "store-1", Name: "Downtown", StockMachineID: "stock-1", TempMachineID: "temp-1"},
		},
		Addresses: map[string]string{
			"stock-1": "stock-1.example.com",
			"temp-1":  "temp-1.example.com",
		},
		Sensors: map[string]map[string]directory.SensorAssignment{
			"temp-1": {
				"sensor-a": {Type: "fridge", DisplayName: "Dairy Fridge"},
			},
		},
	})
	require.NoError(t, err)

	return dir
}

func newTestReader(t *testing.T, client *fakeClient) (*Reader, *fakeDialer) {
	t.Helper()

	dir := testDirectory(t)
	dialer := &fakeDialer{client: client}
	cache := NewCache(dir, dialer, StaticTokenSource("token"), logger.NewTestLogger())

	return NewReader(cache, dir, logger.NewTestLogger()), dialer
}

func TestStockReadingsNormalization(t *testing.T) {
	client := &fakeClient{
		readings: map[string]map[string]interface{}{
			"stock_fill": {
				"B-2":                   12.7,
				"A-1":                   85.2,
				"A-1_raw":               0.852,
				"is_occluded_by_person": false,
				"C-3":                   int64(40),
				"note":                  "not a reading",
			},
		},
	}

	reader, _ := newTestReader(t, client)

	regions, err := reader.StockReadings(context.Background(), "stock-1")
	require.NoError(t, err)
	require.Len(t, regions, 3)

	assert.Equal(t, "A-1", regions[0].ID)
	assert.Equal(t, 85, regions[0].FillLevel)
	assert.Equal(t, "B-2", regions[1].ID)
	assert.Equal(t, 13, regions[1].FillLevel)
	assert.Equal(t, "C-3", regions[2].ID)
	assert.Equal(t, 40, regions[2].FillLevel)
}

func TestStockReadingsClampFill(t *testing.T) {
	client := &fakeClient{
		readings: map[string]map[string]interface{}{
			"stock_fill": {
				"under": -3.2,
				"over":  140.0,
			},
		},
	}

	reader, _ := newTestReader(t, client)

	regions, err := reader.StockReadings(context.Background(), "stock-1")
	require.NoError(t, err)
	require.Len(t, regions, 2)

	assert.Equal(t, 100, regions[0].FillLevel)
	assert.Equal(t, 0, regions[1].FillLevel)
}

func TestStockReadingsErrorInvalidatesSession(t *testing.T) {
	client := &fakeClient{opErr: errors.New("component unavailable")}

	reader, dialer := newTestReader(t, client)

	_, err := reader.StockReadings(context.Background(), "stock-1")
	require.Error(t, err)
	assert.True(t, client.isClosed())
	assert.Equal(t, 1, dialer.dialCount())
}

func TestTemperatureReadingsGatewayDiscovery(t *testing.T) {
	client := &fakeClient{
		resources: []Resource{
			{Name: "stock_fill", API: "rdk:component:sensor", Model: "acme:stock-fill:estimator"},
			{Name: "camera", API: "rdk:component:camera", Model: "rdk:builtin:webcam"},
			{Name: "gateway", API: "rdk:component:sensor", Model: "acme:sensor:lorawan"},
		},
		readings: map[string]map[string]interface{}{
			"gateway": {
				"sensor-b": map[string]interface{}{"TempC_DS": -18.5},
				"sensor-a": map[string]interface{}{"TempC_SHT": 3.4, "Hum_SHT": 55.0, "BatV": 3.1},
				"sensor-c": map[string]interface{}{"Hum_SHT": 40.0},
				"junk":     "not a payload",
			},
		},
	}

	reader, _ := newTestReader(t, client)

	sensors, err := reader.TemperatureReadings(context.Background(), "temp-1")
	require.NoError(t, err)
	require.Len(t, sensors, 2)

	assert.Equal(t, "sensor-a", sensors[0].ID)
	assert.Equal(t, "Dairy Fridge", sensors[0].Name)
	assert.InDelta(t, 3.4, sensors[0].TemperatureC, 0.001)
	require.NotNil(t, sensors[0].Humidity)
	assert.InDelta(t, 55.0, *sensors[0].Humidity, 0.001)
	require.NotNil(t, sensors[0].BatteryV)
	assert.InDelta(t, 3.1, *sensors[0].BatteryV, 0.001)

	assert.Equal(t, "sensor-b", sensors[1].ID)
	assert.Equal(t, "sensor-b", sensors[1].Name)
	assert.InDelta(t, -18.5, sensors[1].TemperatureC, 0.001)
	assert.Nil(t, sensors[1].Humidity)
}

func TestTemperatureReadingsPrefersSHTOverDS(t *testing.T) {
	client := &fakeClient{
		resources: []Resource{
			{Name: "gateway", API: "rdk:component:sensor", Model: "acme:sensor:lorawan"},
		},
		readings: map[string]map[string]interface{}{
			"gateway": {
				"sensor-a": map[string]interface{}{"TempC_SHT": 4.0, "TempC_DS": 9.9},
			},
		},
	}

	reader, _ := newTestReader(t, client)

	sensors, err := reader.TemperatureReadings(context.Background(), "temp-1")
	require.NoError(t, err)
	require.Len(t, sensors, 1)
	assert.InDelta(t, 4.0, sensors[0].TemperatureC, 0.001)
}

func TestTemperatureReadingsWithoutGateway(t *testing.T) {
	client := &fakeClient{
		resources: []Resource{
			{Name: "camera", API: "rdk:component:camera", Model: "rdk:builtin:webcam"},
		},
	}

	reader, _ := newTestReader(t, client)

	sensors, err := reader.TemperatureReadings(context.Background(), "temp-1")
	require.NoError(t, err)
	assert.Empty(t, sensors)
	assert.False(t, client.isClosed())
}

func TestCameraImageSelectsCamera(t *testing.T) {
	client := &fakeClient{
		images: map[string][]byte{
			"camera":          {0x01},
			"stock_fill_view": {0x02},
		},
	}

	reader, _ := newTestReader(t, client)

	plain, err := reader.CameraImage(context.Background(), "stock-1", false)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, plain)

	overlay, err := reader.CameraImage(context.Background(), "stock-1", true)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02}, overlay)
}
