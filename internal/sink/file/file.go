// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package file is the file sink: one TSV file per event kind (plus one for
// the current-sample stream), each opening with a single-line JSON header
// describing its column names and types.
package file

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/yandex-load/volta-go/pkg/schema"
)

// header is the JSON object written as the first line of every TSV file.
type header struct {
	Type   string   `json:"type"`
	Names  []string `json:"names"`
	Dtypes []string `json:"dtypes"`
}

var eventColumns = header{
	Type:   "event",
	Names:  []string{"sys_uts", "log_uts", "tag", "message"},
	Dtypes: []string{"int64", "int64", "string", "string"},
}

var metricColumns = header{
	Type:   "metric",
	Names:  []string{"sys_uts", "log_uts", "tag", "value"},
	Dtypes: []string{"int64", "int64", "string", "float64"},
}

var currentsColumns = header{
	Type:   "currents",
	Names:  []string{"ts", "value"},
	Dtypes: []string{"int64", "float64"},
}

// Sink writes one TSV file per event kind into dir.
type Sink struct {
	dir     string
	files   map[schema.Kind]*bufio.Writer
	closers map[schema.Kind]*os.File
	closed  bool
}

// Open creates dir (if needed) and opens a TSV file for every kind in
// schema.AllEventKinds plus the currents stream, writing each file's
// header line immediately.
func Open(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating sink dir %s: %w", dir, err)
	}

	s := &Sink{
		dir:     dir,
		files:   make(map[schema.Kind]*bufio.Writer),
		closers: make(map[schema.Kind]*os.File),
	}

	for _, k := range schema.AllEventKinds {
		if err := s.openKind(k, columnsFor(k)); err != nil {
			s.Close()
			return nil, err
		}
	}
	if err := s.openKind(schema.KindCurrents, currentsColumns); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func columnsFor(k schema.Kind) header {
	if k == schema.KindMetric {
		return metricColumns
	}
	return eventColumns
}

func (s *Sink) openKind(k schema.Kind, h header) error {
	path := filepath.Join(s.dir, string(k)+".tsv")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}

	hdrBytes, err := json.Marshal(h)
	if err != nil {
		f.Close()
		return fmt.Errorf("encoding header for %s: %w", path, err)
	}

	w := bufio.NewWriter(f)
	if _, err := w.Write(hdrBytes); err != nil {
		f.Close()
		return err
	}
	if _, err := w.WriteString("\n"); err != nil {
		f.Close()
		return err
	}

	s.closers[k] = f
	s.files[k] = w
	return nil
}

// WriteEvent appends ev to the file for its kind, flushing immediately so
// a crash mid-run loses at most the in-flight line.
func (s *Sink) WriteEvent(ev schema.LogEvent) error {
	w, ok := s.files[ev.Kind]
	if !ok {
		return nil
	}

	logUTS := ""
	if ev.HasLogUTS() {
		logUTS = strconv.FormatInt(ev.LogUTS, 10)
	}

	var line string
	if ev.Kind == schema.KindMetric {
		line = fmt.Sprintf("%d\t%s\t%s\t%s\n", ev.SysUTS, logUTS, tsvEscape(ev.Tag), ev.Value.TSV())
	} else {
		line = fmt.Sprintf("%d\t%s\t%s\t%s\n", ev.SysUTS, logUTS, tsvEscape(ev.Tag), tsvEscape(ev.Message))
	}

	if _, err := w.WriteString(line); err != nil {
		return err
	}
	return w.Flush()
}

// WriteFrame appends a chopped current-sample frame to the currents file.
func (s *Sink) WriteFrame(frame schema.SampleFrame) error {
	w := s.files[schema.KindCurrents]
	for i := range frame.TS {
		if _, err := fmt.Fprintf(w, "%d\t%s\n", frame.TS[i], frame.Values[i].TSV()); err != nil {
			return err
		}
	}
	return w.Flush()
}

func tsvEscape(s string) string { return schema.SanitizeMessage(s) }

// Close flushes and closes every open file. Calling it again is a no-op.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var firstErr error
	for k, w := range s.files {
		if err := w.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := s.closers[k].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
