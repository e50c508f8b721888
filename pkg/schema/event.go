// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package schema holds the data model shared by every stage of the volta
// pipeline: sample frames produced by the box reader and chopper, and log
// events produced by the log parser and router.
package schema

import "strings"

// Kind classifies a parsed log event. Unknown lines (lines that matched the
// platform regex but whose message did not carry a recognised custom
// envelope kind) are routed as KindUnknown rather than dropped.
type Kind string

const (
	KindEvent    Kind = "event"
	KindSync     Kind = "sync"
	KindMetric   Kind = "metric"
	KindFragment Kind = "fragment"
	KindUnknown  Kind = "unknown"
	// KindCurrents is not a log-event kind, but shares the router/sink
	// dispatch machinery for the box's current-sample stream.
	KindCurrents Kind = "currents"
)

// AllEventKinds lists every kind the log pipeline can produce, in the
// column-projection order used by the file and uploader sinks.
var AllEventKinds = []Kind{KindEvent, KindSync, KindMetric, KindFragment, KindUnknown}

// SampleFrame is a fixed-length block of current samples emitted by the
// time chopper, time-stamped at microsecond resolution relative to test
// start (ts=0 at the first sample of the run).
type SampleFrame struct {
	TS     []int64 // microseconds, strictly increasing, one per sample
	Values []Float // amperes, same length as TS
}

// Len returns the number of samples in the frame.
func (f *SampleFrame) Len() int { return len(f.TS) }

// LogEvent is a single parsed, routed log line.
//
// SysUTS is microseconds since the first event observed in the run (the
// system clock). LogUTS is microseconds since the first custom [volta]
// envelope observed (the device monotonic clock); it is -1 (null) until a
// [volta] envelope has been seen.
type LogEvent struct {
	SysUTS  int64
	LogUTS  int64 // -1 means null/unset
	Kind    Kind
	App     string // originating phone/device id, attached by the orchestrator before routing
	Tag     string // empty means null
	Message string
	Value   Float // only meaningful when Kind == KindMetric
}

// HasLogUTS reports whether this event carries a device-clock timestamp.
func (e *LogEvent) HasLogUTS() bool { return e.LogUTS >= 0 }

// NullLogUTS is the sentinel used before a device clock offset exists.
const NullLogUTS int64 = -1

// SyncEvent is a LogEvent specialisation: tag identifies the flashlight
// signal, message is either "rise" or "fall".
type SyncEvent struct {
	SysUTS  int64
	LogUTS  int64
	Tag     string
	Message string // "rise" or "fall"
}

// IsRise reports whether this sync event is a rising edge.
func (s *SyncEvent) IsRise() bool { return s.Message == "rise" }

// SanitizeMessage replaces control characters the spec calls out explicitly
// with printable sentinels so TSV/JSON rows never embed a literal tab or
// newline.
func SanitizeMessage(s string) string {
	r := strings.NewReplacer(
		"\t", "__tab__",
		"\n", "__nl__",
		"\r", "",
		"\f", "",
		"\v", "",
	)
	return r.Replace(s)
}
