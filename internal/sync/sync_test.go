// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yandex-load/volta-go/pkg/schema"
)

func TestFindWithNoSyncEventsErrors(t *testing.T) {
	f := New(1000, 10)
	f.FeedCurrents(schema.SampleFrame{TS: []int64{0, 1000}, Values: []schema.Float{0, 1}})

	_, err := f.Find()
	assert.ErrorIs(t, err, ErrNoSyncEvents)
}

func TestFindWithNoCurrentErrors(t *testing.T) {
	f := New(1000, 10)
	f.FeedSync(schema.SyncEvent{SysUTS: 0, Tag: "flash", Message: "rise"})

	_, err := f.Find()
	assert.ErrorIs(t, err, ErrNotEnoughCurrent)
}

func TestFindLocatesStepEdge(t *testing.T) {
	const sampleRate = 100
	f := New(sampleRate, 10)

	n := 800
	ts := make([]int64, n)
	values := make([]schema.Float, n)
	edgeSample := 300
	for i := 0; i < n; i++ {
		ts[i] = int64(i) * 1_000_000 / sampleRate
		if i >= edgeSample {
			values[i] = 1.0
		}
	}
	f.FeedCurrents(schema.SampleFrame{TS: ts, Values: values})
	f.FeedSync(schema.SyncEvent{SysUTS: ts[edgeSample], Tag: "flash", Message: "rise"})

	result, err := f.Find()
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.InDelta(t, edgeSample, result.SyncSample, 2)
}

func TestFindWithLogUTSPopulatesLogOffset(t *testing.T) {
	const sampleRate = 100
	f := New(sampleRate, 10)

	n := 400
	ts := make([]int64, n)
	values := make([]schema.Float, n)
	for i := range ts {
		ts[i] = int64(i) * 1_000_000 / sampleRate
		if i >= 100 {
			values[i] = 1.0
		}
	}
	f.FeedCurrents(schema.SampleFrame{TS: ts, Values: values})
	f.FeedSync(schema.SyncEvent{SysUTS: ts[100], LogUTS: 50, Tag: "flash", Message: "rise"})

	result, err := f.Find()
	require.NoError(t, err)
	assert.True(t, result.HasLogOffset)
}

func TestNextPow2(t *testing.T) {
	assert.Equal(t, 1, nextPow2(0))
	assert.Equal(t, 1, nextPow2(1))
	assert.Equal(t, 128, nextPow2(100))
	assert.Equal(t, 256, nextPow2(256))
}
