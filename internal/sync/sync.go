// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package sync finds the time offset between the box's current-sample
// clock and the device's log clock by cross-correlating the current trace
// against a step signal built from rise/fall "sync" events a test harness
// flashes on an LED the box's sensor also sees.
package sync

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/yandex-load/volta-go/pkg/schema"
)

var (
	// ErrNoSyncEvents means no rise/fall events were observed during the
	// run; the orchestrator logs it and the run still completes. No sync
	// offsets, null or otherwise, are passed to the uploader.
	ErrNoSyncEvents = errors.New("sync: no sync events observed")
	// ErrNotEnoughCurrent means no current samples were captured, so
	// cross-correlation cannot run. A partly filled buffer is still
	// correlated.
	ErrNotEnoughCurrent = errors.New("sync: not enough current samples captured")
)

// Finder accumulates current samples and sync events up to a capacity of
// searchInterval seconds of sampling, then cross-correlates them to find
// the sample offset where the first rise event occurred.
type Finder struct {
	sampleRate int
	capacity   int

	currents         []float64
	currentsStartIdx int64

	syncEvents []schema.SyncEvent
}

// New builds a Finder. searchInterval is the number of seconds of current
// samples retained for correlation, per the `sync.search_interval` option.
func New(sampleRate, searchInterval int) *Finder {
	return &Finder{
		sampleRate: sampleRate,
		capacity:   sampleRate * searchInterval,
	}
}

// FeedCurrents appends newly chopped samples until the buffer holds
// capacity samples (search_interval seconds at sampleRate), then ignores
// anything further: the sync search only needs the opening stretch of the
// run where the harness flashes its sync pulses, not the full trace.
func (f *Finder) FeedCurrents(frame schema.SampleFrame) {
	if len(f.currents) >= f.capacity {
		return
	}
	if len(f.currents) == 0 && len(frame.TS) > 0 {
		f.currentsStartIdx = frame.TS[0] * int64(f.sampleRate) / 1_000_000
	}
	for _, v := range frame.Values {
		if len(f.currents) >= f.capacity {
			break
		}
		f.currents = append(f.currents, float64(v))
	}
}

// FeedSync records a rise/fall event.
func (f *Finder) FeedSync(ev schema.SyncEvent) {
	f.syncEvents = append(f.syncEvents, ev)
}

// tsForIndex mirrors chopper's sample-index-derived microsecond clock.
func (f *Finder) tsForIndex(idx int64) int64 {
	return idx * 1_000_000 / int64(f.sampleRate)
}

// buildReference renders the rise/fall event sequence as a step signal
// sampled at sampleRate over [startIdx, startIdx+n).
func (f *Finder) buildReference(startIdx int64, n int) []float64 {
	ref := make([]float64, n)
	state := 0.0
	events := f.syncEvents

	ei := 0
	for i := 0; i < n; i++ {
		ts := f.tsForIndex(startIdx + int64(i))
		for ei < len(events) && events[ei].SysUTS <= ts {
			if events[ei].IsRise() {
				state = 1.0
			} else {
				state = 0.0
			}
			ei++
		}
		ref[i] = state
	}
	return ref
}

// Find cross-correlates the buffered current trace against the step
// reference built from recorded sync events and returns the sample index,
// relative to the start of the run, where the first rise event's edge
// aligns best with the current trace.
func (f *Finder) Find() (schema.SyncResult, error) {
	if len(f.syncEvents) == 0 {
		return schema.SyncResult{}, ErrNoSyncEvents
	}
	if len(f.currents) == 0 {
		return schema.SyncResult{}, ErrNotEnoughCurrent
	}

	n := nextPow2(len(f.currents))
	reference := f.buildReference(f.currentsStartIdx, len(f.currents))

	a := padAndCenter(f.currents, n)
	b := padAndCenter(reference, n)

	lag := crossCorrelateArgmax(a, b)
	if lag > n/2 {
		lag -= n // circular correlation: the upper half holds negative lags
	}

	first := f.syncEvents[0]
	for _, ev := range f.syncEvents {
		if ev.IsRise() {
			first = ev
			break
		}
	}

	// The reference places the first rise at the sample its SysUTS maps to;
	// the lag shifts that sample onto the matching edge in the current trace.
	riseIdx := (first.SysUTS*int64(f.sampleRate) + 999_999) / 1_000_000
	syncSample := riseIdx + int64(lag)

	result := schema.SyncResult{
		Found:        true,
		SyncSample:   syncSample,
		SysUTSOffset: f.tsForIndex(syncSample) - first.SysUTS,
	}
	if first.LogUTS >= 0 {
		result.HasLogOffset = true
		result.LogUTSOffset = f.tsForIndex(syncSample) - first.LogUTS
	}
	return result, nil
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	return p
}

// padAndCenter zero-pads x to length n and removes its mean, the usual
// pre-conditioning for FFT cross-correlation of two real signals of
// unequal character (a noisy current trace, a clean step function).
func padAndCenter(x []float64, n int) []float64 {
	out := make([]float64, n)
	var mean float64
	for _, v := range x {
		mean += v
	}
	if len(x) > 0 {
		mean /= float64(len(x))
	}
	for i, v := range x {
		out[i] = v - mean
	}
	return out
}

// crossCorrelateArgmax returns the lag (in samples) that maximizes the
// cross-correlation of a against b, computed via FFT: corr = IFFT(FFT(a) *
// conj(FFT(b))).
func crossCorrelateArgmax(a, b []float64) int {
	n := len(a)
	fft := fourier.NewFFT(n)

	fa := fft.Coefficients(nil, a)
	fb := fft.Coefficients(nil, b)

	prod := make([]complex128, len(fa))
	for i := range prod {
		prod[i] = fa[i] * complexConj(fb[i])
	}

	corr := fft.Sequence(nil, prod)

	best := 0
	bestVal := math.Inf(-1)
	for i, v := range corr {
		if v > bestVal {
			bestVal = v
			best = i
		}
	}
	return best
}

func complexConj(c complex128) complex128 {
	return complex(real(c), -imag(c))
}
