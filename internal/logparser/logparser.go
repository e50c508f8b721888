// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package logparser turns raw log lines from the platform log tool into
// schema.LogEvent values. Each platform's log line has its own timestamp
// format; the custom [volta] envelope a test harness emits inside a log
// message is parsed the same way on every platform once the outer line has
// been matched.
package logparser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/yandex-load/volta-go/internal/config"
	"github.com/yandex-load/volta-go/pkg/log"
	"github.com/yandex-load/volta-go/pkg/schema"
)

// androidThreadtime matches `adb logcat -v threadtime` output:
// "07-31 10:15:23.123  1234  1234 I Tag: message"
var androidThreadtime = regexp.MustCompile(
	`^(\d{2})-(\d{2}) (\d{2}):(\d{2}):(\d{2})\.(\d{3})\s+\d+\s+\d+\s+\w\s+([^:]*):\s?(.*)$`)

// androidOld matches `adb logcat -v time` output, which omits pid/tid:
// "07-31 10:15:23.123 I/Tag(  1234): message"
var androidOld = regexp.MustCompile(
	`^(\d{2})-(\d{2}) (\d{2}):(\d{2}):(\d{2})\.(\d{3})\s+\w/([^(]*)\(\s*\d+\):\s?(.*)$`)

// iosSyslog matches cfgutil's syslog line format:
// "Jul 31 10:15:23 deviceName processName[123]: message"
var iosSyslog = regexp.MustCompile(
	`^(\w{3})\s+(\d{1,2})\s+(\d{2}):(\d{2}):(\d{2})\s+\S+\s+([^\[:]+)\S*:\s?(.*)$`)

// envelope matches the custom harness marker embedded in a log message:
// "[volta] <monotonic-nanos> <kind> <tag> <message>"
var envelope = regexp.MustCompile(`^\[volta\]\s+(\d+)\s+(\w+)\s+(\S+)\s+(.*)$`)

var monthNum = map[string]int{
	"Jan": 1, "Feb": 2, "Mar": 3, "Apr": 4, "May": 5, "Jun": 6,
	"Jul": 7, "Aug": 8, "Sep": 9, "Oct": 10, "Nov": 11, "Dec": 12,
}

// Parser converts raw lines into LogEvents for a single platform.
type Parser struct {
	kind    config.PhoneKind
	year    int
	now     func() time.Time
}

// New builds a Parser for the given phone kind, resolving the current year
// once up front for platforms (Android, iOS syslog) whose timestamps carry
// no year field.
func New(kind config.PhoneKind) *Parser {
	return &Parser{kind: kind, year: time.Now().UTC().Year(), now: time.Now}
}

// Parse attempts to turn one raw line into a LogEvent. A line that does
// not match the platform's regex is dropped (logged at debug level), not
// treated as an error: platform log tools interleave lines volta does not
// care about (build banners, binary attach messages) with the ones it does.
func (p *Parser) Parse(line string) (*schema.LogEvent, bool) {
	var ts time.Time
	var tag, message string
	var ok bool

	switch p.kind {
	case config.PhoneAndroid:
		ts, tag, message, ok = p.parseAndroidThreadtime(line)
	case config.PhoneAndroidOld, config.PhoneNexus4:
		ts, tag, message, ok = p.parseAndroidOld(line)
	case config.PhoneIphone:
		ts, tag, message, ok = p.parseIOS(line)
	default:
		ts, tag, message, ok = p.parseAndroidThreadtime(line)
	}

	if !ok {
		log.Debugf("logparser: line did not match %s pattern, dropping: %q", p.kind, line)
		return nil, false
	}

	ev := &schema.LogEvent{
		SysUTS:  ts.UnixMicro(),
		LogUTS:  schema.NullLogUTS,
		Kind:    schema.KindUnknown,
		Tag:     tag,
		Message: schema.SanitizeMessage(message),
	}

	if m := envelope.FindStringSubmatch(message); m != nil {
		nanos, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			log.Debugf("logparser: malformed envelope nanotime %q: %v", m[1], err)
		} else {
			ev.LogUTS = nanos / 1000
		}
		ev.Kind = schema.Kind(strings.ToLower(m[2]))
		switch ev.Kind {
		case schema.KindEvent, schema.KindSync, schema.KindMetric, schema.KindFragment:
		default:
			ev.Kind = schema.KindUnknown
		}
		ev.Tag = m[3]
		ev.Message = schema.SanitizeMessage(m[4])

		if ev.Kind == schema.KindMetric {
			if v, err := strconv.ParseFloat(ev.Message, 64); err == nil {
				ev.Value = schema.Float(v)
			} else {
				log.Debugf("logparser: metric event %q has non-numeric value, downgrading to event", ev.Message)
				ev.Kind = schema.KindEvent
				ev.Value = schema.NaN
			}
		} else {
			ev.Value = schema.NaN
		}
	} else {
		ev.Value = schema.NaN
	}

	return ev, true
}

func (p *Parser) parseAndroidThreadtime(line string) (time.Time, string, string, bool) {
	m := androidThreadtime.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}, "", "", false
	}
	return p.buildAndroidTime(m[1], m[2], m[3], m[4], m[5], m[6]), m[7], m[8], true
}

func (p *Parser) parseAndroidOld(line string) (time.Time, string, string, bool) {
	m := androidOld.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}, "", "", false
	}
	return p.buildAndroidTime(m[1], m[2], m[3], m[4], m[5], m[6]), m[7], m[8], true
}

// buildAndroidTime assembles a timestamp from Android's year-less
// "MM-DD HH:MM:SS.mmm" fields, imputing the current year. If the resulting
// date would be more than a day in the future (the device clock rolled
// over New Year's Eve after the harness started), the previous year is
// used instead.
func (p *Parser) buildAndroidTime(mm, dd, hh, min, ss, ms string) time.Time {
	month, _ := strconv.Atoi(mm)
	day, _ := strconv.Atoi(dd)
	hour, _ := strconv.Atoi(hh)
	minute, _ := strconv.Atoi(min)
	second, _ := strconv.Atoi(ss)
	millis, _ := strconv.Atoi(ms)

	year := p.year
	t := time.Date(year, time.Month(month), day, hour, minute, second, millis*1e6, time.UTC)
	if t.After(p.now().Add(24 * time.Hour)) {
		t = time.Date(year-1, time.Month(month), day, hour, minute, second, millis*1e6, time.UTC)
	}
	return t
}

func (p *Parser) parseIOS(line string) (time.Time, string, string, bool) {
	m := iosSyslog.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}, "", "", false
	}
	month, ok := monthNum[m[1]]
	if !ok {
		return time.Time{}, "", "", false
	}
	day, _ := strconv.Atoi(m[2])
	hour, _ := strconv.Atoi(m[3])
	minute, _ := strconv.Atoi(m[4])
	second, _ := strconv.Atoi(m[5])

	year := p.year
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	if t.After(p.now().Add(24 * time.Hour)) {
		t = time.Date(year-1, time.Month(month), day, hour, minute, second, 0, time.UTC)
	}
	return t, strings.TrimSpace(m[6]), m[7], true
}

// ParseErr wraps a parse failure with the offending line, kept for callers
// that want to surface counts of unparseable lines without logging each
// one individually.
type ParseErr struct {
	Line string
}

func (e *ParseErr) Error() string { return fmt.Sprintf("unparseable log line: %q", e.Line) }
