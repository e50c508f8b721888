// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package box

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/yandex-load/volta-go/internal/config"
	"github.com/yandex-load/volta-go/internal/resource"
	"github.com/yandex-load/volta-go/pkg/log"
)

// plainReader speaks the 500Hz box's plaintext protocol: one integer ASCII
// sample per newline-terminated line, no handshake.
type plainReader struct {
	stream resource.Stream
	br     *bufio.Reader
	cfg    *config.VoltaConfig

	// skipRemaining counts down the sample_rate samples dropped right
	// after opening, flushing the device's startup transient before any
	// sample reaches a listener.
	skipRemaining int

	// partial holds a trailing line that had no newline yet when the last
	// Read returned; the next Read prepends it.
	partial string
}

func newPlainReader(stream resource.Stream, cfg *config.VoltaConfig) (Reader, error) {
	return &plainReader{
		stream:        stream,
		br:            bufio.NewReaderSize(stream, 4096),
		cfg:           cfg,
		skipRemaining: cfg.SampleRate,
	}, nil
}

func (r *plainReader) SampleRate() int { return r.cfg.SampleRate }

func (r *plainReader) Close() error { return r.stream.Close() }

// Read consumes whatever whole lines are currently buffered. A trailing
// partial line (no newline yet) is held in r.partial for the next call to
// complete, the line-oriented equivalent of binaryReader's orphan byte.
func (r *plainReader) Read() ([]float64, error) {
	var out []float64
	for {
		line, err := r.br.ReadString('\n')
		line = r.partial + line
		r.partial = ""
		if line != "" && (err == nil || strings.HasSuffix(line, "\n")) {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" {
				raw, perr := strconv.ParseInt(trimmed, 10, 32)
				if perr != nil {
					log.Debugf("box: dropping unparseable plaintext sample %q: %v", trimmed, perr)
				} else if r.skipRemaining > 0 {
					r.skipRemaining--
				} else {
					out = append(out, calibrationBinary(int32(raw), r.cfg))
				}
			}
		}
		if err != nil {
			r.partial = line // ReadString only errors before a newline
			break
		}
	}
	return out, nil
}
