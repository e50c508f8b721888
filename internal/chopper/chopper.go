// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package chopper accumulates raw current samples into fixed-size frames
// and stamps each sample with a microsecond timestamp derived from its
// index and the box's sample rate, never from a wall-clock read, so frame
// boundaries and timestamps are reproducible from the sample count alone.
package chopper

import "github.com/yandex-load/volta-go/pkg/schema"

// Chopper buffers incoming samples and emits them in frames of ChunkSize,
// holding any remainder until the next Feed call fills it out.
type Chopper struct {
	sampleRate int
	chunkSize  int

	pending    []float64
	sampleIdx  int64 // index of the first sample not yet stamped/emitted
}

// New builds a Chopper. chopRatio scales the sample rate into a frame
// size: a chop_ratio of 1.0 means one frame per second of sampling.
func New(sampleRate int, chopRatio float64) *Chopper {
	size := int(float64(sampleRate) * chopRatio)
	if size < 1 {
		size = 1
	}
	return &Chopper{sampleRate: sampleRate, chunkSize: size}
}

// tsForIndex converts a sample index into microseconds since the first
// sample of the run, using the configured sample rate as the clock.
func (c *Chopper) tsForIndex(idx int64) int64 {
	return idx * 1_000_000 / int64(c.sampleRate)
}

// Feed appends newly read samples and returns zero or more complete
// frames. Any remainder smaller than chunkSize is held for the next call.
func (c *Chopper) Feed(samples []float64) []schema.SampleFrame {
	c.pending = append(c.pending, samples...)

	var frames []schema.SampleFrame
	for len(c.pending) >= c.chunkSize {
		chunk := c.pending[:c.chunkSize]
		c.pending = c.pending[c.chunkSize:]
		frames = append(frames, c.makeFrame(chunk))
	}
	return frames
}

// Flush discards whatever remainder is still buffered at shutdown: a
// trailing slice smaller than one full chunk never reached chunkSize and
// is never emitted as a frame.
func (c *Chopper) Flush() {
	c.pending = nil
}

func (c *Chopper) makeFrame(chunk []float64) schema.SampleFrame {
	ts := make([]int64, len(chunk))
	values := make([]schema.Float, len(chunk))
	for i, v := range chunk {
		ts[i] = c.tsForIndex(c.sampleIdx + int64(i))
		values[i] = schema.Float(v)
	}
	c.sampleIdx += int64(len(chunk))
	return schema.SampleFrame{TS: ts, Values: values}
}
