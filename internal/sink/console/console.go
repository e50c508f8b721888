// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package console is the console sink: it prints summary statistics of
// the current-sample stream to the log every second, for operators
// watching a run interactively. Log events are not printed here; the file
// and uploader sinks are the durable record of those.
package console

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/yandex-load/volta-go/pkg/log"
	"github.com/yandex-load/volta-go/pkg/schema"
)

// stats mirrors the shape of pandas' DataFrame.describe() for a single
// numeric column, the original listener's output.
type stats struct {
	count              int
	mean, min, max, sd float64
}

func (s stats) String() string {
	if s.count == 0 {
		return "count    0"
	}
	return fmt.Sprintf("count    %d\nmean     %.6f\nstd      %.6f\nmin      %.6f\nmax      %.6f",
		s.count, s.mean, s.sd, s.min, s.max)
}

// Sink accumulates current samples and prints a describe()-style summary
// on a fixed schedule, then resets.
type Sink struct {
	mu        sync.Mutex
	values    []float64
	scheduler gocron.Scheduler
}

// Open starts the per-second reporting schedule.
func Open() (*Sink, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("console sink: creating scheduler: %w", err)
	}

	s := &Sink{scheduler: scheduler}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(1*time.Second),
		gocron.NewTask(s.report),
	); err != nil {
		return nil, fmt.Errorf("console sink: scheduling report job: %w", err)
	}
	scheduler.Start()

	return s, nil
}

// WriteFrame feeds newly chopped current samples into the running window.
func (s *Sink) WriteFrame(frame schema.SampleFrame) error {
	s.mu.Lock()
	for _, v := range frame.Values {
		if !v.IsNaN() {
			s.values = append(s.values, float64(v))
		}
	}
	s.mu.Unlock()
	return nil
}

func (s *Sink) report() {
	s.mu.Lock()
	values := s.values
	s.values = nil
	s.mu.Unlock()

	if len(values) == 0 {
		return
	}
	log.Infof("\n%s\n", describe(values))
}

func describe(values []float64) stats {
	s := stats{count: len(values), min: math.Inf(1), max: math.Inf(-1)}
	var sum float64
	for _, v := range values {
		sum += v
		if v < s.min {
			s.min = v
		}
		if v > s.max {
			s.max = v
		}
	}
	s.mean = sum / float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - s.mean
		variance += d * d
	}
	if len(values) > 1 {
		variance /= float64(len(values) - 1)
	}
	s.sd = math.Sqrt(variance)
	return s
}

// Close stops the scheduler. Any unreported samples since the last tick
// are dropped, matching the original listener's behaviour on close.
func (s *Sink) Close() error {
	return s.scheduler.Shutdown()
}
