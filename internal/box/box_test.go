// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package box

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yandex-load/volta-go/internal/config"
)

func testVoltaConfig() *config.VoltaConfig {
	return &config.VoltaConfig{
		SampleRate:   10000,
		Precision:    12,
		PowerVoltage: 4096,
		Slope:        1,
		Offset:       0,
	}
}

func TestCalibrationBinary(t *testing.T) {
	cfg := testVoltaConfig()
	got := calibrationBinary(2048, cfg)
	assert.InDelta(t, 2048*1.0, got, 1e-9)
}

func TestCalibrationStm32IsHalfOfBinary(t *testing.T) {
	cfg := testVoltaConfig()
	assert.Equal(t, calibrationBinary(1000, cfg)/2, calibrationStm32(1000, cfg))
}

type fakeStream struct {
	data []byte
	pos  int
}

func (f *fakeStream) Read(p []byte) (int, error) {
	if f.pos >= len(f.data) {
		return 0, nil
	}
	n := copy(p, f.data[f.pos:])
	f.pos += n
	return n, nil
}
func (f *fakeStream) Close() error      { return nil }
func (f *fakeStream) LocalPath() string { return "" }
func (f *fakeStream) Write(p []byte) (int, error) {
	return len(p), nil
}

func TestBinaryReaderOrphanByteCarriesOver(t *testing.T) {
	word := make([]byte, 2)
	binary.BigEndian.PutUint16(word, 100)

	fs := &fakeStream{data: append([]byte("VOLTAHELLO\n{\"sps\":10000}\nDATASTART\n"), append(word, 0x00)...)}
	r, err := newBinaryReader(fs, testVoltaConfig(), calibrationBinary)
	require.NoError(t, err)
	br := r.(*binaryReader)

	samples, err := br.Read()
	require.NoError(t, err)
	require.Len(t, samples, 1)

	assert.Len(t, br.orphan, 1)
}

func TestBinaryReaderHandshakeAdoptsAnnouncedSampleRate(t *testing.T) {
	fs := &fakeStream{data: []byte("VOLTAHELLO\n{\"sps\":5000}\nDATASTART\n")}
	r, err := newBinaryReader(fs, testVoltaConfig(), calibrationBinary)
	require.NoError(t, err)
	assert.Equal(t, 5000, r.SampleRate())
}

func TestBinaryReaderHandshakeDiscardsGarbageAndTrailingLines(t *testing.T) {
	fs := &fakeStream{data: []byte("garbage\nVOLTAHELLO\n{\"sps\":1000}\nmore garbage\nDATASTART\n")}
	r, err := newBinaryReader(fs, testVoltaConfig(), calibrationBinary)
	require.NoError(t, err)
	assert.Equal(t, 1000, r.SampleRate())
}

func TestBinaryReaderMalformedHandshakeIsFatal(t *testing.T) {
	fs := &fakeStream{data: []byte("VOLTAHELLO\nnot json\nDATASTART\n")}
	_, err := newBinaryReader(fs, testVoltaConfig(), calibrationBinary)
	assert.Error(t, err)
}

func TestBinaryReaderHandshakeMissingHelloIsFatal(t *testing.T) {
	fs := &fakeStream{data: []byte("{\"sps\":1000}\nDATASTART\n")}
	_, err := newBinaryReader(fs, testVoltaConfig(), calibrationBinary)
	assert.Error(t, err)
}

func plainTestConfig() *config.VoltaConfig {
	cfg := testVoltaConfig()
	cfg.SampleRate = 0 // no startup transient to skip, so line-parsing tests see every sample
	return cfg
}

func TestPlainReaderParsesLines(t *testing.T) {
	fs := &fakeStream{data: []byte("10\n20\n30")}
	r, err := newPlainReader(fs, plainTestConfig())
	require.NoError(t, err)

	samples, err := r.Read()
	require.NoError(t, err)
	require.Len(t, samples, 2, "the trailing unterminated line should not be consumed yet")
	assert.Equal(t, calibrationBinary(10, plainTestConfig()), samples[0])
	assert.Equal(t, calibrationBinary(20, plainTestConfig()), samples[1])
}

func TestPlainReaderDropsUnparseableLine(t *testing.T) {
	fs := &fakeStream{data: []byte("abc\n42\n")}
	r, err := newPlainReader(fs, plainTestConfig())
	require.NoError(t, err)

	samples, err := r.Read()
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, calibrationBinary(42, plainTestConfig()), samples[0])
}

func TestPlainReaderSkipsStartupTransient(t *testing.T) {
	cfg := testVoltaConfig()
	cfg.SampleRate = 3
	fs := &fakeStream{data: []byte("1\n2\n3\n4\n5\n")}
	r, err := newPlainReader(fs, cfg)
	require.NoError(t, err)

	samples, err := r.Read()
	require.NoError(t, err)
	require.Len(t, samples, 2, "the first sample_rate samples are dropped as the startup transient")
	assert.Equal(t, calibrationBinary(4, cfg), samples[0])
	assert.Equal(t, calibrationBinary(5, cfg), samples[1])
}
