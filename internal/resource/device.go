// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package resource

import (
	"fmt"
	"os"
	"time"
)

// deviceStream wraps a serial device file, surfacing a read that exceeded
// ReadTimeout as a zero-length read (io.Reader contract: n==0, err==nil)
// rather than an error — the box reader polls the stream in a tight loop
// and a timed-out read just means "no bytes yet".
type deviceStream struct {
	f           *os.File
	readTimeout time.Duration
}

func (d *deviceStream) Read(p []byte) (int, error) {
	if d.readTimeout > 0 {
		_ = d.f.SetReadDeadline(time.Now().Add(d.readTimeout))
	}
	n, err := d.f.Read(p)
	if err != nil && os.IsTimeout(err) {
		return 0, nil
	}
	return n, err
}

// Write passes bytes through to the device. The box handshake
// (VOLTAHELLO / DATASTART) only reads; nothing in package box writes.
func (d *deviceStream) Write(p []byte) (int, error) { return d.f.Write(p) }

func (d *deviceStream) Close() error      { return d.f.Close() }
func (d *deviceStream) LocalPath() string { return d.f.Name() }

func openDevice(path string, opts Options) (Stream, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening serial device %s: %w", path, err)
	}

	if err := setBaudRate(f, opts.BaudRate); err != nil {
		f.Close()
		return nil, fmt.Errorf("configuring %s at %d baud: %w", path, opts.BaudRate, err)
	}

	return &deviceStream{f: f, readTimeout: opts.ReadTimeout}, nil
}
