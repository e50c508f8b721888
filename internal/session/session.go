// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package session holds a single run's identity: its artifacts directory
// and the Prometheus counters every stage of the pipeline increments.
package session

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yandex-load/volta-go/internal/config"
	"github.com/yandex-load/volta-go/pkg/schema"
)

// Session is the per-run state shared by the orchestrator and every sink:
// where artifacts land, and the counters describing run progress.
type Session struct {
	TestID     string
	ArtifactsDir string

	registry *prometheus.Registry
	events   *prometheus.CounterVec
	samples  prometheus.Counter
}

// Open creates the artifacts directory for this run (mode 0755) and mints
// a fresh metric registry scoped to it.
func Open(cfg *config.Config) (*Session, error) {
	dir := filepath.Join(cfg.Core.ArtifactsBaseDir, cfg.Core.TestID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating artifacts dir %s: %w", dir, err)
	}

	reg := prometheus.NewRegistry()
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "volta_log_events_total",
		Help: "Number of log events routed, by kind.",
	}, []string{"kind"})
	samples := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "volta_current_samples_total",
		Help: "Number of current samples read from the box.",
	})
	reg.MustRegister(events, samples)

	return &Session{
		TestID:       cfg.Core.TestID,
		ArtifactsDir: dir,
		registry:     reg,
		events:       events,
		samples:      samples,
	}, nil
}

// Registry exposes the run's metric registry for callers to gather from.
// No /metrics endpoint serves it.
func (s *Session) Registry() *prometheus.Registry { return s.registry }

// CountEvent increments the per-kind event counter.
func (s *Session) CountEvent(kind schema.Kind) {
	s.events.WithLabelValues(string(kind)).Inc()
}

// CountSamples adds n to the current-sample counter.
func (s *Session) CountSamples(n int) {
	s.samples.Add(float64(n))
}

// ArtifactPath joins name onto this run's artifacts directory.
func (s *Session) ArtifactPath(name string) string {
	return filepath.Join(s.ArtifactsDir, name)
}

// WriteConfigSnapshot copies the merged, validated config JSON into the
// artifacts directory, so a run's exact effective configuration is
// preserved alongside its data.
func (s *Session) WriteConfigSnapshot(data []byte) error {
	return os.WriteFile(s.ArtifactPath("config.json"), data, 0644)
}
