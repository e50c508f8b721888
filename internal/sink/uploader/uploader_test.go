// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package uploader

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yandex-load/volta-go/internal/config"
	"github.com/yandex-load/volta-go/pkg/schema"
)

func TestWriteEventAndFlushPostsTSVBody(t *testing.T) {
	var mu sync.Mutex
	var bodies []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()
	}))
	defer srv.Close()

	cfg := &config.UploaderConfig{Address: srv.URL, Component: "volta"}
	s, err := Open(cfg, "2026-07-31", "test123")
	require.NoError(t, err)

	require.NoError(t, s.WriteEvent(schema.LogEvent{
		Kind: schema.KindEvent, SysUTS: 10, LogUTS: schema.NullLogUTS, Tag: "t", Message: "hello",
	}))
	s.flush()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 1)
	assert.True(t, strings.Contains(bodies[0], "2026-07-31\ttest123\t10"))

	require.NoError(t, s.Close())
}

func TestWriteFrameQueuesCurrentsRows(t *testing.T) {
	cfg := &config.UploaderConfig{Address: "http://127.0.0.1:0", Component: "volta"}
	s, err := Open(cfg, "2026-07-31", "test123")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.WriteFrame(schema.SampleFrame{
		TS:     []int64{0, 10},
		Values: []schema.Float{1, 2},
	}))

	s.mu.Lock()
	rows := s.pending[schema.KindCurrents]
	s.mu.Unlock()
	require.Len(t, rows, 2)
}

func TestFlushOnEmptyPendingSendsNothing(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	cfg := &config.UploaderConfig{Address: srv.URL}
	s, err := Open(cfg, "2026-07-31", "test123")
	require.NoError(t, err)
	s.flush()
	require.NoError(t, s.Close())

	assert.False(t, called)
}

func TestScheduledFlushEventuallyDelivers(t *testing.T) {
	done := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case done <- struct{}{}:
		default:
		}
	}))
	defer srv.Close()

	cfg := &config.UploaderConfig{Address: srv.URL}
	s, err := Open(cfg, "2026-07-31", "test123")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.WriteEvent(schema.LogEvent{Kind: schema.KindEvent, LogUTS: schema.NullLogUTS}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled flush did not fire within 2s")
	}
}
