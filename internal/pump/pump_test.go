// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package pump

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPumpCallsHandleRepeatedly(t *testing.T) {
	var calls int64
	p := Start("test", 5*time.Millisecond, func() (int, error) {
		return 1, nil
	}, func(v int) {
		atomic.AddInt64(&calls, int64(v))
	})

	time.Sleep(40 * time.Millisecond)
	p.Close(time.Second)

	assert.GreaterOrEqual(t, atomic.LoadInt64(&calls), int64(2))
}

func TestPumpStopsOnPollError(t *testing.T) {
	var calls int64
	p := Start("test", 2*time.Millisecond, func() (int, error) {
		n := atomic.AddInt64(&calls, 1)
		if n >= 3 {
			return 0, errors.New("boom")
		}
		return 0, nil
	}, func(int) {})

	time.Sleep(50 * time.Millisecond)
	finalCalls := atomic.LoadInt64(&calls)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, finalCalls, atomic.LoadInt64(&calls), "pump should have stopped polling after the error")

	p.Close(time.Second)
}

func TestPumpCloseIsIdempotent(t *testing.T) {
	p := Start("test", 5*time.Millisecond, func() (int, error) { return 0, nil }, func(int) {})
	p.Close(time.Second)
	assert.NotPanics(t, func() { p.Close(time.Second) })
}
