// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFillsInDynamicDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeYAML(t, dir, "config.yaml", `
volta:
  source: /dev/ttyUSB0
phone:
  source: emulator-5554
`)

	cfg, err := Load(cfgPath, "", nil)
	require.NoError(t, err)

	assert.NotZero(t, cfg.Core.PID)
	assert.NotEmpty(t, cfg.Core.Cmdline)
	assert.NotEmpty(t, cfg.Core.KeyDate)
	assert.Contains(t, cfg.Core.TestID, cfg.Core.KeyDate)
	assert.NotEmpty(t, cfg.Core.Operator)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Volta.Source)
	assert.Equal(t, BoxBinary, cfg.Volta.Type)
}

func TestLoadMissingVoltaSourceFailsValidation(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeYAML(t, dir, "config.yaml", `
phone:
  source: emulator-5554
`)

	_, err := Load(cfgPath, "", nil)
	assert.Error(t, err)
}

func TestLoadDefaultsFileIsOverriddenByMainConfig(t *testing.T) {
	dir := t.TempDir()
	defaultsPath := writeYAML(t, dir, "defaults.yaml", `
volta:
  source: /dev/default
  sample_rate: 1000
`)
	cfgPath := writeYAML(t, dir, "config.yaml", `
volta:
  source: /dev/ttyUSB1
phone:
  source: emulator-5554
`)

	cfg, err := Load(cfgPath, defaultsPath, nil)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB1", cfg.Volta.Source)
	assert.Equal(t, 1000, cfg.Volta.SampleRate)
}

func TestLoadAppliesPatchesInOrder(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeYAML(t, dir, "config.yaml", `
volta:
  source: /dev/ttyUSB0
phone:
  source: emulator-5554
`)

	cfg, err := Load(cfgPath, "", []string{
		"volta:\n  sample_rate: 2000\n",
		"volta:\n  sample_rate: 5000\n",
	})
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Volta.SampleRate)
}

func TestDeepMergeOverlaysNestedMaps(t *testing.T) {
	dst := map[string]interface{}{
		"volta": map[string]interface{}{"source": "a", "sample_rate": 1000},
	}
	src := map[string]interface{}{
		"volta": map[string]interface{}{"sample_rate": 2000},
	}

	merged := deepMerge(dst, src)
	voltaMap := merged["volta"].(map[string]interface{})
	assert.Equal(t, "a", voltaMap["source"])
	assert.Equal(t, 2000, voltaMap["sample_rate"])
}

func TestApplyDynamicDefaultsDoesNotOverwriteExplicitValues(t *testing.T) {
	cfg := Defaults()
	cfg.Core.Operator = "alice"
	cfg.Core.KeyDate = "2026-01-01"
	applyDynamicDefaults(cfg)

	assert.Equal(t, "alice", cfg.Core.Operator)
	assert.Equal(t, "2026-01-01", cfg.Core.KeyDate)
	assert.Contains(t, cfg.Core.TestID, "2026-01-01")
}
