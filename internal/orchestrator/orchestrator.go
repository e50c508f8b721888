// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package orchestrator drives one volta run end to end: it builds the box
// reader, log source, parser, router, sync finder and sinks named by the
// validated config, then walks them through the
// configure -> start_test -> wait -> end_test -> post_process lifecycle.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/yandex-load/volta-go/internal/box"
	"github.com/yandex-load/volta-go/internal/chopper"
	"github.com/yandex-load/volta-go/internal/config"
	"github.com/yandex-load/volta-go/internal/logparser"
	"github.com/yandex-load/volta-go/internal/logsource"
	"github.com/yandex-load/volta-go/internal/pump"
	"github.com/yandex-load/volta-go/internal/router"
	"github.com/yandex-load/volta-go/internal/runtimeenv"
	"github.com/yandex-load/volta-go/internal/session"
	consolesink "github.com/yandex-load/volta-go/internal/sink/console"
	filesink "github.com/yandex-load/volta-go/internal/sink/file"
	uploadersink "github.com/yandex-load/volta-go/internal/sink/uploader"
	"github.com/yandex-load/volta-go/internal/sync"
	"github.com/yandex-load/volta-go/pkg/log"
	"github.com/yandex-load/volta-go/pkg/schema"
)

// frameSink and eventSink let the orchestrator fan a frame or event out to
// every enabled sink without knowing which concrete ones are wired up.
type frameSink interface {
	WriteFrame(schema.SampleFrame) error
	Close() error
}
type eventSink interface {
	WriteEvent(schema.LogEvent) error
	Close() error
}

// Orchestrator owns every component for a single run.
type Orchestrator struct {
	cfg     *config.Config
	session *session.Session

	boxReader box.Reader
	chopper   *chopper.Chopper
	logSrc    *logsource.Source
	parser    *logparser.Parser
	router    *router.Router
	syncer    *sync.Finder

	frameSinks []frameSink
	eventSinks []eventSink

	boxPump *pump.Pump
	logDone chan struct{}

	// RuntimeLogPath, if set by the CLI, is the file the process-wide
	// logger was writing to. It is moved into the run's artifacts
	// directory during PostProcess.
	RuntimeLogPath string
}

// New wires every component configure step says to build, without
// starting any of them yet.
func New(cfg *config.Config) (*Orchestrator, error) {
	sess, err := session.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening session: %w", err)
	}

	o := &Orchestrator{cfg: cfg, session: sess, router: router.New()}

	if cfg.Volta.Enabled {
		reader, err := box.Open(&cfg.Volta)
		if err != nil {
			return nil, fmt.Errorf("opening box: %w", err)
		}
		o.boxReader = reader
		o.chopper = chopper.New(reader.SampleRate(), cfg.Volta.ChopRatio)
	}

	if cfg.Phone.Enabled {
		o.parser = logparser.New(cfg.Phone.Type)
	}

	if cfg.Sync.Enabled && cfg.Volta.Enabled {
		o.syncer = sync.New(o.boxReader.SampleRate(), cfg.Sync.SearchInterval)
	}

	if cfg.DataSession.Enabled {
		fs, err := filesink.Open(sess.ArtifactsDir)
		if err != nil {
			return nil, fmt.Errorf("opening file sink: %w", err)
		}
		o.frameSinks = append(o.frameSinks, fs)
		o.eventSinks = append(o.eventSinks, fs)
	}

	if cfg.Uploader.Enabled {
		us, err := uploadersink.Open(&cfg.Uploader, cfg.Core.KeyDate, cfg.Core.TestID)
		if err != nil {
			return nil, fmt.Errorf("opening uploader sink: %w", err)
		}
		o.frameSinks = append(o.frameSinks, us)
		o.eventSinks = append(o.eventSinks, us)
	}

	if cfg.Console.Enabled {
		cs, err := consolesink.Open()
		if err != nil {
			return nil, fmt.Errorf("opening console sink: %w", err)
		}
		o.frameSinks = append(o.frameSinks, cs)
	}

	o.router.OnAny(func(ev schema.LogEvent) {
		o.session.CountEvent(ev.Kind)
		for _, s := range o.eventSinks {
			if err := s.WriteEvent(ev); err != nil {
				log.Errorf("orchestrator: event sink write failed: %v", err)
			}
		}
	})
	if o.syncer != nil {
		o.router.On(schema.KindSync, func(ev schema.LogEvent) {
			o.syncer.FeedSync(schema.SyncEvent{SysUTS: ev.SysUTS, LogUTS: ev.LogUTS, Tag: ev.Tag, Message: ev.Message})
		})
	}

	return o, nil
}

// Configure uninstalls the phone.cleanup_apps packages and opens the log
// subprocess, once the box (if any) is already constructed. It installs
// and launches no test apps. It is a no-op when phone monitoring is
// disabled.
func (o *Orchestrator) Configure() error {
	if !o.cfg.Phone.Enabled {
		return nil
	}
	o.cleanupApps()
	src, err := logsource.Open(&o.cfg.Phone)
	if err != nil {
		return fmt.Errorf("opening log source: %w", err)
	}
	o.logSrc = src
	return nil
}

// StartTest begins sampling and log streaming.
func (o *Orchestrator) StartTest() {
	if o.boxReader != nil {
		o.boxPump = pump.Start("box", 10*time.Millisecond, o.boxReader.Read, o.handleSamples)
	}
	if o.logSrc != nil {
		o.logDone = make(chan struct{})
		go o.drainLog()
	}
	runtimeenv.SystemdNotify(true, "running")
}

func (o *Orchestrator) handleSamples(raw []float64) {
	if len(raw) == 0 {
		return
	}
	o.session.CountSamples(len(raw))
	frames := o.chopper.Feed(raw)
	for _, frame := range frames {
		o.dispatchFrame(frame)
	}
}

func (o *Orchestrator) dispatchFrame(frame schema.SampleFrame) {
	if o.syncer != nil {
		o.syncer.FeedCurrents(frame)
	}
	for _, s := range o.frameSinks {
		if err := s.WriteFrame(frame); err != nil {
			log.Errorf("orchestrator: frame sink write failed: %v", err)
		}
	}
}

func (o *Orchestrator) drainLog() {
	defer close(o.logDone)
	for line := range o.logSrc.Lines() {
		ev, ok := o.parser.Parse(line)
		if !ok {
			continue
		}
		ev.App = o.cfg.Phone.Source
		o.router.Route(*ev)
	}
}

// Wait blocks until ctx is cancelled (by an interrupt signal or the
// caller's own deadline). It does not call EndTest; the caller does that
// once Wait returns.
func (o *Orchestrator) Wait(ctx context.Context) {
	<-ctx.Done()
}

// WaitForInterrupt returns at once with a context that is cancelled on
// SIGINT/SIGTERM, the CLI's usual argument to Wait.
func WaitForInterrupt() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()
	return ctx
}

// EndTest stops sampling and log streaming, with a bounded grace period
// for both worker goroutines to actually exit.
func (o *Orchestrator) EndTest() {
	runtimeenv.SystemdNotify(false, "stopping")

	if o.boxPump != nil {
		o.boxPump.Close(10 * time.Second)
	}
	if o.boxReader != nil {
		o.chopper.Flush()
		if err := o.boxReader.Close(); err != nil {
			log.Warnf("orchestrator: closing box reader: %v", err)
		}
	}

	if o.logSrc != nil {
		if err := o.logSrc.Close(); err != nil {
			log.Warnf("orchestrator: closing log source: %v", err)
		}
		select {
		case <-o.logDone:
		case <-time.After(10 * time.Second):
			log.Warnf("orchestrator: log drain goroutine did not exit within 10s")
		}
	}
}

// PostProcess runs the sync finder (if enabled) and logs its result,
// closes every sink, and relocates the runtime log into the artifacts
// directory. The sync result is not passed to any sink.
func (o *Orchestrator) PostProcess() error {
	if o.syncer != nil {
		result, err := o.syncer.Find()
		if err != nil {
			log.Warnf("orchestrator: sync finder did not produce an offset: %v", err)
		} else {
			log.Infof("orchestrator: sync found at sample %d (sys offset %dus)", result.SyncSample, result.SysUTSOffset)
		}
	}

	var firstErr error
	for _, s := range o.frameSinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, s := range o.eventSinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	o.relocateRuntimeLog()
	return firstErr
}

func (o *Orchestrator) cleanupApps() {
	if o.cfg.Phone.Type == config.PhoneIphone {
		return // cfgutil has no package-uninstall concept the original harness used
	}
	for _, pkg := range o.cfg.Phone.CleanupApps {
		cmd := exec.Command("adb", "-s", o.cfg.Phone.Source, "uninstall", pkg)
		if out, err := cmd.CombinedOutput(); err != nil {
			log.Warnf("orchestrator: uninstalling %s failed: %v (%s)", pkg, err, out)
		}
	}
}

// relocateRuntimeLog moves the process-wide runtime log (if one was
// configured to a file) into this run's artifacts directory, so a run's
// own log travels with its data instead of being overwritten by the next
// run.
func (o *Orchestrator) relocateRuntimeLog() {
	if o.RuntimeLogPath == "" {
		return
	}

	dst := filepath.Join(o.session.ArtifactsDir, "volta.log")
	if err := os.Rename(o.RuntimeLogPath, dst); err != nil {
		log.Warnf("orchestrator: relocating runtime log %s -> %s: %v", o.RuntimeLogPath, dst, err)
	}
}

// Session exposes the run's session for the CLI to snapshot config into.
func (o *Orchestrator) Session() *session.Session { return o.session }
