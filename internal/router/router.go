// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package router fans parsed log events out to per-kind listeners and
// zero-bases their clocks: SysUTS to the first event observed in the run,
// LogUTS to the first event that carried a device-clock timestamp.
package router

import (
	"sync"

	"github.com/yandex-load/volta-go/pkg/log"
	"github.com/yandex-load/volta-go/pkg/schema"
)

// Listener receives routed events. A Listener must not block for long:
// the router calls it synchronously from the dispatch goroutine.
type Listener func(schema.LogEvent)

// Router zero-bases event clocks and dispatches each event to every
// listener registered for its kind, plus any listener registered for all
// kinds.
type Router struct {
	mu sync.Mutex

	sysStart    int64
	sysStartSet bool
	logStart    int64
	logStartSet bool

	byKind map[schema.Kind][]Listener
	all    []Listener
}

// New builds an empty Router.
func New() *Router {
	return &Router{byKind: make(map[schema.Kind][]Listener)}
}

// On registers a listener for a specific event kind.
func (r *Router) On(kind schema.Kind, l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKind[kind] = append(r.byKind[kind], l)
}

// OnAny registers a listener invoked for every event kind.
func (r *Router) OnAny(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, l)
}

// Route zero-bases ev's clocks in place and dispatches it. Listener panics
// are recovered and logged so one broken sink cannot take down the
// pipeline for the others.
func (r *Router) Route(ev schema.LogEvent) {
	r.mu.Lock()
	if !r.sysStartSet {
		r.sysStart = ev.SysUTS
		r.sysStartSet = true
	}
	ev.SysUTS -= r.sysStart

	if ev.HasLogUTS() {
		if !r.logStartSet {
			r.logStart = ev.LogUTS
			r.logStartSet = true
		}
		ev.LogUTS -= r.logStart
	}

	listeners := append(append([]Listener{}, r.byKind[ev.Kind]...), r.all...)
	r.mu.Unlock()

	for _, l := range listeners {
		r.dispatchOne(l, ev)
	}
}

func (r *Router) dispatchOne(l Listener, ev schema.LogEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("router: listener panicked on %s event: %v", ev.Kind, rec)
		}
	}()
	l(ev)
}
