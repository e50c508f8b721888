// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package logsource

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yandex-load/volta-go/internal/config"
)

func TestCommandForAndroidUsesAdbLogcat(t *testing.T) {
	name, args := commandFor(&config.PhoneConfig{Type: config.PhoneAndroid, Source: "emulator-5554"})
	assert.Equal(t, "adb", name)
	assert.Equal(t, []string{"-s", "emulator-5554", "logcat"}, args)
}

func TestCommandForIphoneUsesCfgutilSyslog(t *testing.T) {
	name, args := commandFor(&config.PhoneConfig{Type: config.PhoneIphone, Source: "00008030-ABC"})
	assert.Equal(t, "cfgutil", name)
	assert.Equal(t, []string{"-e", "00008030-ABC", "syslog"}, args)
}

func TestCommandForAndroidOldAndNexus4AlsoUseAdb(t *testing.T) {
	for _, kind := range []config.PhoneKind{config.PhoneAndroidOld, config.PhoneNexus4} {
		name, _ := commandFor(&config.PhoneConfig{Type: kind, Source: "dev1"})
		assert.Equal(t, "adb", name)
	}
}

func TestDrainForwardsScannedLines(t *testing.T) {
	s := &Source{lines: make(chan string, 8)}
	r := strings.NewReader("line one\nline two\n")
	s.drain(r, s.lines)

	var got []string
	for line := range s.lines {
		got = append(got, line)
	}
	assert.Equal(t, []string{"line one", "line two"}, got)
}
