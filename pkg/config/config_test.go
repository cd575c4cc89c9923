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

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	ListenAddr string `json:"listen_addr"`
	Workers    int    `json:"workers"`
}

type validatedConfig struct {
	testConfig
}

var errNoWorkers = errors.New("workers must be positive")

func (c *validatedConfig) Validate() error {
	if c.Workers <= 0 {
		return errNoWorkers
	}

	return nil
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	path := writeTempConfig(t, `{"listen_addr": ":8080", "workers": 4}`)

	var cfg testConfig

	loader := &FileConfigLoader{}
	require.NoError(t, loader.Load(context.Background(), path, &cfg))

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 4, cfg.Workers)
}

func TestLoadRejectsNonPointer(t *testing.T) {
	path := writeTempConfig(t, `{}`)

	var cfg testConfig

	loader := &FileConfigLoader{}
	assert.ErrorIs(t, loader.Load(context.Background(), path, cfg), errInvalidConfigPtr)
}

func TestLoadMissingFile(t *testing.T) {
	var cfg testConfig

	loader := &FileConfigLoader{}
	assert.Error(t, loader.Load(context.Background(), "/nonexistent/config.json", &cfg))
}

func TestLoadMalformedJSON(t *testing.T) {
	path := writeTempConfig(t, `{"listen_addr": `)

	var cfg testConfig

	loader := &FileConfigLoader{}
	assert.Error(t, loader.Load(context.Background(), path, &cfg))
}

func TestLoadAndValidate(t *testing.T) {
	loader := &FileConfigLoader{}

	valid := writeTempConfig(t, `{"workers": 2}`)

	var cfg validatedConfig

	require.NoError(t, loader.LoadAndValidate(context.Background(), valid, &cfg))

	invalid := writeTempConfig(t, `{"workers": 0}`)

	var bad validatedConfig

	assert.ErrorIs(t, loader.LoadAndValidate(context.Background(), invalid, &bad), errNoWorkers)
}
