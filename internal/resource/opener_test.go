// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package resource

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenFileLocator(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "samples.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	s, err := Open(path, Options{})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, path, s.LocalPath())
	data, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestOpenFileURLPrefix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "samples.bin")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))

	s, err := Open("file://"+path, Options{})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, path, s.LocalPath())
}

func TestOpenHTTPLocatorDownloadsAndCaches(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("remote-bytes"))
	}))
	defer srv.Close()

	s1, err := Open(srv.URL+"/box.bin", Options{})
	require.NoError(t, err)
	data1, err := io.ReadAll(s1)
	require.NoError(t, err)
	s1.Close()
	assert.Equal(t, "remote-bytes", string(data1))

	s2, err := Open(srv.URL+"/box.bin", Options{})
	require.NoError(t, err)
	data2, err := io.ReadAll(s2)
	require.NoError(t, err)
	s2.Close()
	assert.Equal(t, "remote-bytes", string(data2))

	assert.Equal(t, 1, hits, "second open of the same URL should reuse the cached download")
}

func TestOpenHTTPLocatorErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Open(srv.URL+"/missing.bin", Options{})
	assert.Error(t, err)
}

func TestLooksLikeDevice(t *testing.T) {
	assert.True(t, looksLikeDevice("/dev/ttyUSB0"))
	assert.True(t, looksLikeDevice("/dev/cu.usbmodem1234"))
	assert.True(t, looksLikeDevice("COM3"))
	assert.False(t, looksLikeDevice("/tmp/samples.bin"))
	assert.False(t, looksLikeDevice("https://example.com/x"))
}
