// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package box reads current samples off a volta measurement box. Three
// wire formats are supported: a plaintext 500Hz box that writes one ASCII
// line per sample, a binary box that handshakes and streams packed 16-bit
// words, and an stm32 variant of the binary protocol with a different
// calibration constant. Which one is used is a config-time choice, never
// a runtime guess.
package box

import (
	"fmt"

	"github.com/yandex-load/volta-go/internal/config"
	"github.com/yandex-load/volta-go/internal/resource"
)

// Reader produces current samples, in amperes, one call at a time. A
// Reader never blocks forever: a read against a device stream that has no
// data ready returns zero samples and a nil error, matching the
// zero-length-read semantics of the underlying resource.Stream.
type Reader interface {
	// Read returns the next batch of raw sample values already converted
	// to amperes via the box's affine calibration. An empty return with a
	// nil error means "no samples yet", not end of stream.
	Read() ([]float64, error)
	SampleRate() int
	Close() error
}

// Open constructs the Reader matching cfg.Volta.Type, opening the
// underlying resource locator and running any handshake the variant
// requires.
func Open(cfg *config.VoltaConfig) (Reader, error) {
	stream, err := resource.Open(cfg.Source, resource.Options{
		BaudRate:    cfg.BaudRate,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening box source %s: %w", cfg.Source, err)
	}

	switch cfg.Type {
	case config.BoxPlain500:
		return newPlainReader(stream, cfg)
	case config.BoxBinary:
		return newBinaryReader(stream, cfg, calibrationBinary)
	case config.BoxStm32:
		return newBinaryReader(stream, cfg, calibrationStm32)
	default:
		stream.Close()
		return nil, fmt.Errorf("unknown box type %q", cfg.Type)
	}
}

// calibration converts a raw integer sample into amperes.
type calibration func(raw int32, cfg *config.VoltaConfig) float64

// calibrationBinary implements the binary box's affine transform:
// value = raw * (power_voltage / 2^precision) * slope + offset.
func calibrationBinary(raw int32, cfg *config.VoltaConfig) float64 {
	scale := cfg.PowerVoltage / float64(int64(1)<<uint(cfg.Precision))
	return float64(raw)*scale*cfg.Slope + cfg.Offset
}

// calibrationStm32 is the same affine shape; the stm32 board's firmware
// reports raw units pre-scaled by a factor of 2 relative to the plain
// binary board, per the original provider's VoltaBoxStm32 override.
func calibrationStm32(raw int32, cfg *config.VoltaConfig) float64 {
	return calibrationBinary(raw, cfg) / 2
}
