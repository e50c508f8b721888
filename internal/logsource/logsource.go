// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package logsource launches and drains the platform log subprocess: `adb
// logcat` for Android devices, `cfgutil syslog` for iOS devices. Lines are
// streamed to callers over a channel; the subprocess is kept alive for the
// duration of the run and is terminated, then flushed, at Close.
package logsource

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/yandex-load/volta-go/internal/config"
	"github.com/yandex-load/volta-go/pkg/log"
)

// Source streams raw log lines from a device's platform logging tool.
type Source struct {
	cmd    *exec.Cmd
	lines  chan string
	errs   chan error
	cancel context.CancelFunc
}

// Open launches the platform's log tool for the device identified by
// cfg.Source, after confirming the device is reachable.
func Open(cfg *config.PhoneConfig) (*Source, error) {
	if err := probeLiveness(cfg); err != nil {
		return nil, fmt.Errorf("device %s not reachable: %w", cfg.Source, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	name, args := commandFor(cfg)
	cmd := exec.CommandContext(ctx, name, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("attaching stdout pipe for %s: %w", name, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("attaching stderr pipe for %s: %w", name, err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("starting %s %v: %w", name, args, err)
	}

	s := &Source{
		cmd:    cmd,
		lines:  make(chan string, 1024),
		errs:   make(chan error, 1),
		cancel: cancel,
	}

	go s.drain(stdout, s.lines)
	go s.drainStderr(stderr)

	return s, nil
}

func commandFor(cfg *config.PhoneConfig) (string, []string) {
	switch cfg.Type {
	case config.PhoneIphone:
		return "cfgutil", []string{"-e", cfg.Source, "syslog"}
	case config.PhoneAndroidOld, config.PhoneNexus4:
		// the parser reads these kinds with the `-v time` line pattern
		return "adb", []string{"-s", cfg.Source, "logcat", "-v", "time"}
	default: // android reads adb's default logcat format
		return "adb", []string{"-s", cfg.Source, "logcat"}
	}
}

func probeLiveness(cfg *config.PhoneConfig) error {
	var cmd *exec.Cmd
	switch cfg.Type {
	case config.PhoneIphone:
		cmd = exec.Command("cfgutil", "list")
	default:
		cmd = exec.Command("adb", "-s", cfg.Source, "get-state")
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%v: %w (%s)", cmd.Args, err, out)
	}
	return nil
}

func (s *Source) drain(r io.Reader, out chan<- string) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		out <- scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		log.Warnf("logsource: stdout scan error: %v", err)
	}
	close(out)
}

func (s *Source) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		log.Debugf("logsource: [stderr] %s", scanner.Text())
	}
}

// Lines returns the channel raw log lines arrive on. It is closed when the
// subprocess's stdout is closed (the process exited or was terminated).
func (s *Source) Lines() <-chan string { return s.lines }

// Close terminates the subprocess and waits for its output to drain so no
// buffered lines are lost.
func (s *Source) Close() error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.cmd.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warnf("logsource: subprocess did not exit within 5s of cancellation")
	}

	for range s.lines {
		// drain remaining buffered lines so the producer goroutine exits cleanly
	}
	return nil
}
