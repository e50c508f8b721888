// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package session

import (
	"os"
	"path/filepath"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yandex-load/volta-go/internal/config"
	"github.com/yandex-load/volta-go/pkg/schema"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Defaults()
	cfg.Core.ArtifactsBaseDir = t.TempDir()
	cfg.Core.TestID = "2026-07-31_abc123"
	return cfg
}

func TestOpenCreatesArtifactsDir(t *testing.T) {
	cfg := testConfig(t)
	s, err := Open(cfg)
	require.NoError(t, err)

	info, err := os.Stat(s.ArtifactsDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, filepath.Join(cfg.Core.ArtifactsBaseDir, cfg.Core.TestID), s.ArtifactsDir)
}

func TestCountEventIncrementsLabeledCounter(t *testing.T) {
	cfg := testConfig(t)
	s, err := Open(cfg)
	require.NoError(t, err)

	s.CountEvent(schema.KindSync)
	s.CountEvent(schema.KindSync)
	s.CountEvent(schema.KindEvent)

	metrics, err := s.Registry().Gather()
	require.NoError(t, err)

	var syncCount float64
	for _, mf := range metrics {
		if mf.GetName() != "volta_log_events_total" {
			continue
		}
		for _, m := range mf.Metric {
			if labelValue(m, "kind") == "sync" {
				syncCount = m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 2.0, syncCount)
}

func TestWriteConfigSnapshot(t *testing.T) {
	cfg := testConfig(t)
	s, err := Open(cfg)
	require.NoError(t, err)

	require.NoError(t, s.WriteConfigSnapshot([]byte(`{"a":1}`)))
	data, err := os.ReadFile(s.ArtifactPath("config.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.Label {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
