// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package log is a level-gated logger for the volta CLI. Each level writes
// through its own io.Writer, defaulting to os.Stderr; SetLogLevel demotes
// the writers below the chosen level to io.Discard so a disabled level
// costs nothing but the gate check. Line prefixes carry the syslog/sd-daemon
// priority codes (https://www.freedesktop.org/software/systemd/man/sd-daemon.html)
// so a run launched under systemd gets leveled console output for free.
package log

import (
	"fmt"
	"io"
	"log"
	"os"
)

var (
	debugWriter io.Writer = os.Stderr
	infoWriter  io.Writer = os.Stderr
	warnWriter  io.Writer = os.Stderr
	errWriter   io.Writer = os.Stderr
)

var (
	debugLog = log.New(debugWriter, "<7>[DEBUG]   ", 0)
	infoLog  = log.New(infoWriter, "<6>[INFO]    ", 0)
	warnLog  = log.New(warnWriter, "<4>[WARNING] ", log.Lshortfile)
	errLog   = log.New(errWriter, "<3>[ERROR]   ", log.Llongfile)
)

// SetLogLevel discards output below lvl ("debug", "info", "warn", or
// "err"/"fatal"/"crit", all three of which behave like "warn" and leave
// warning and error output live).
// An unrecognised level falls back to "debug" rather than silently
// swallowing every line.
func SetLogLevel(lvl string) {
	switch lvl {
	case "crit", "err", "fatal", "warn":
		infoWriter = io.Discard
		fallthrough
	case "info":
		debugWriter = io.Discard
	case "debug":
	default:
		fmt.Fprintf(os.Stderr, "pkg/log: unknown log level %q, using \"debug\"\n", lvl)
		SetLogLevel("debug")
		return
	}
	debugLog.SetOutput(debugWriter)
	infoLog.SetOutput(infoWriter)
}

func Debugf(format string, v ...interface{}) {
	if debugWriter != io.Discard {
		debugLog.Output(2, fmt.Sprintf(format, v...))
	}
}

func Infof(format string, v ...interface{}) {
	if infoWriter != io.Discard {
		infoLog.Output(2, fmt.Sprintf(format, v...))
	}
}

func Warn(v ...interface{}) {
	warnLog.Output(2, fmt.Sprint(v...))
}

func Warnf(format string, v ...interface{}) {
	warnLog.Output(2, fmt.Sprintf(format, v...))
}

func Errorf(format string, v ...interface{}) {
	errLog.Output(2, fmt.Sprintf(format, v...))
}

// Fatalf logs at error level, then stops the process.
func Fatalf(format string, v ...interface{}) {
	Errorf(format, v...)
	os.Exit(1)
}

// SetOutput redirects every level still enabled to w, used when relocating
// the runtime log file into a run's artifacts directory at shutdown.
func SetOutput(w io.Writer) {
	if debugWriter != io.Discard {
		debugWriter = w
		debugLog.SetOutput(w)
	}
	if infoWriter != io.Discard {
		infoWriter = w
		infoLog.SetOutput(w)
	}
	warnWriter = w
	errWriter = w
	warnLog.SetOutput(w)
	errLog.SetOutput(w)
}
