// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pump provides a small generic harness for running a polling
// producer on its own goroutine and shutting it down cooperatively.
package pump

import (
	"sync"
	"time"

	"github.com/yandex-load/volta-go/pkg/log"
)

// Pump repeatedly calls poll on an interval until Close is requested,
// forwarding whatever poll returns to handle. poll returning an error stops
// the pump.
type Pump struct {
	name string

	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// Start launches a pump named name, calling poll every interval and
// passing its result to handle, until Close is called or poll returns an
// error.
func Start[T any](name string, interval time.Duration, poll func() (T, error), handle func(T)) *Pump {
	p := &Pump{
		name: name,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
				v, err := poll()
				if err != nil {
					log.Errorf("pump %s: poll error, stopping: %v", name, err)
					return
				}
				handle(v)
			}
		}
	}()

	return p
}

// Close signals the pump to stop and blocks until its goroutine has
// returned, or timeout elapses.
func (p *Pump) Close(timeout time.Duration) {
	p.closeOnce.Do(func() { close(p.stop) })

	select {
	case <-p.done:
	case <-time.After(timeout):
		log.Warnf("pump %s: did not shut down within %s", p.name, timeout)
	}
}
