// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package box

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/yandex-load/volta-go/internal/config"
	"github.com/yandex-load/volta-go/internal/resource"
	"github.com/yandex-load/volta-go/pkg/log"
)

const (
	handshakeHello = "VOLTAHELLO\n"
	handshakeStart = "DATASTART\n"
)

// boxHandshake is the JSON payload the board sends back between
// VOLTAHELLO and DATASTART, announcing its actual sampling rate.
type boxHandshake struct {
	SPS int `json:"sps"`
}

// binaryReader speaks the binary box protocol: a text handshake followed
// by a stream of packed big-endian uint16 words, two bytes per sample.
type binaryReader struct {
	stream     resource.Stream
	br         *bufio.Reader
	cfg        *config.VoltaConfig
	calibrate  calibration
	sampleRate int

	orphan     []byte // a single leftover byte from an odd-length read, carried to the next Read
	sampleSwap bool   // config default; re-evaluated per word below, never permanently latched
}

func newBinaryReader(stream resource.Stream, cfg *config.VoltaConfig, cal calibration) (Reader, error) {
	r := &binaryReader{
		stream:     stream,
		br:         bufio.NewReaderSize(stream, 4096),
		cfg:        cfg,
		calibrate:  cal,
		sampleRate: cfg.SampleRate,
		sampleSwap: cfg.SampleSwap,
	}

	if err := r.handshake(); err != nil {
		stream.Close()
		return nil, err
	}
	return r, nil
}

// handshake reads lines until one equals VOLTAHELLO, discarding any
// garbage that precedes it, then reads the JSON {"sps": N} announcement,
// then reads lines until one equals DATASTART, discarding anything in
// between. A malformed handshake is fatal: it means the box is not the
// type the config says it is.
func (r *binaryReader) handshake() error {
	if err := r.readUntilLine(handshakeHello); err != nil {
		return fmt.Errorf("scanning for handshake hello: %w", err)
	}

	line, err := r.br.ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading handshake response: %w", err)
	}

	var hs boxHandshake
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &hs); err != nil {
		return fmt.Errorf("malformed handshake payload %q: %w", line, err)
	}
	if hs.SPS > 0 {
		r.sampleRate = hs.SPS
	}

	if err := r.readUntilLine(handshakeStart); err != nil {
		return fmt.Errorf("scanning for handshake datastart: %w", err)
	}
	return nil
}

// readUntilLine reads and discards lines until one matches want exactly,
// including its trailing newline.
func (r *binaryReader) readUntilLine(want string) error {
	for {
		line, err := r.br.ReadString('\n')
		if line == want {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stream ended before %q, last line %q: %w", want, line, err)
		}
	}
}

func (r *binaryReader) SampleRate() int { return r.sampleRate }

func (r *binaryReader) Close() error { return r.stream.Close() }

// Read drains whatever whole 16-bit words are currently available. An odd
// trailing byte is never discarded: it is held in r.orphan and prepended
// to the next read, so a sample is never split across two Read calls.
func (r *binaryReader) Read() ([]float64, error) {
	buf := make([]byte, 4096)
	n, err := r.br.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("reading box stream: %w", err)
	}
	chunk := buf[:n]

	if len(r.orphan) > 0 {
		chunk = append(append([]byte{}, r.orphan...), chunk...)
		r.orphan = nil
	}

	if len(chunk)%2 != 0 {
		r.orphan = append(r.orphan, chunk[len(chunk)-1])
		chunk = chunk[:len(chunk)-1]
	}

	words := len(chunk) / 2
	out := make([]float64, 0, words)
	for i := 0; i < words; i++ {
		hi, lo := chunk[2*i], chunk[2*i+1]

		// The board occasionally emits a word with its two bytes
		// transposed; detect it locally per word by comparing the
		// magnitude either byte order implies, rather than latching a
		// global "swapped" flag once and trusting it forever.
		straight := binary.BigEndian.Uint16([]byte{hi, lo})
		swapped := binary.BigEndian.Uint16([]byte{lo, hi})

		raw := straight
		if r.sampleSwap && swapped < straight {
			raw = swapped
		}

		out = append(out, r.calibrate(int32(raw), r.cfg))
	}

	if len(out) == 0 {
		log.Debugf("box: read produced no whole samples (got %d bytes, %d orphaned)", n, len(r.orphan))
	}
	return out, nil
}
