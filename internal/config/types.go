// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads and validates the volta configuration: a YAML
// document with one section per component (core, volta, phone, sync,
// uploader, data_session, console), each carrying an `enabled` flag that
// gates whether the orchestrator constructs that component.
package config

import "time"

// BoxKind selects which wire protocol the box reader speaks.
type BoxKind string

const (
	BoxPlain500 BoxKind = "500hz"
	BoxBinary   BoxKind = "binary"
	BoxStm32    BoxKind = "stm32"
)

// PhoneKind is the tagged variant for the phone/log-source family.
type PhoneKind string

const (
	PhoneAndroid    PhoneKind = "android"
	PhoneAndroidOld PhoneKind = "android_old"
	PhoneIphone     PhoneKind = "iphone"
	PhoneNexus4     PhoneKind = "nexus4"
)

type CoreConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	PID       int    `yaml:"pid" json:"pid"`
	Cmdline   string `yaml:"cmdline" json:"cmdline"`
	TestID    string `yaml:"test_id" json:"test_id"`
	KeyDate   string `yaml:"key_date" json:"key_date"`
	Operator  string `yaml:"operator" json:"operator"`
	Version   string `yaml:"version" json:"version"`
	ArtifactsBaseDir string `yaml:"artifacts_base_dir" json:"artifacts_base_dir"`
}

type VoltaConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Type         BoxKind `yaml:"type" json:"type"`
	Source       string  `yaml:"source" json:"source"`
	SampleRate   int     `yaml:"sample_rate" json:"sample_rate"`
	BaudRate     int     `yaml:"baud_rate" json:"baud_rate"`
	ChopRatio    float64 `yaml:"chop_ratio" json:"chop_ratio"`
	Slope        float64 `yaml:"slope" json:"slope"`
	Offset       float64 `yaml:"offset" json:"offset"`
	Precision    int     `yaml:"precision" json:"precision"`
	PowerVoltage float64 `yaml:"power_voltage" json:"power_voltage"`
	SampleSwap   bool    `yaml:"sample_swap" json:"sample_swap"`

	ReadTimeout time.Duration `yaml:"read_timeout" json:"-"`
}

type PhoneConfig struct {
	Enabled       bool      `yaml:"enabled" json:"enabled"`
	Type          PhoneKind `yaml:"type" json:"type"`
	Source        string    `yaml:"source" json:"source"`
	EventRegexp   string    `yaml:"event_regexp" json:"event_regexp"`
	Lightning     string    `yaml:"lightning" json:"lightning"`
	LightningClass string   `yaml:"lightning_class" json:"lightning_class"`
	TestApps      []string  `yaml:"test_apps" json:"test_apps"`
	TestClass     string    `yaml:"test_class" json:"test_class"`
	TestPackage   string    `yaml:"test_package" json:"test_package"`
	TestRunner    string    `yaml:"test_runner" json:"test_runner"`
	CleanupApps   []string  `yaml:"cleanup_apps" json:"cleanup_apps"`
}

type SyncConfig struct {
	Enabled        bool `yaml:"enabled" json:"enabled"`
	SearchInterval int  `yaml:"search_interval" json:"search_interval"`
}

type UploaderConfig struct {
	Enabled       bool              `yaml:"enabled" json:"enabled"`
	Address       string            `yaml:"address" json:"address"`
	Task          string            `yaml:"task" json:"task"`
	CreateJobURL  string            `yaml:"create_job_url" json:"create_job_url"`
	UpdateJobURL  string            `yaml:"update_job_url" json:"update_job_url"`
	Component     string            `yaml:"component" json:"component"`
	Name          string            `yaml:"name" json:"name"`
	Dsc           string            `yaml:"dsc" json:"dsc"`
	DeviceID      string            `yaml:"device_id" json:"device_id"`
	DeviceModel   string            `yaml:"device_model" json:"device_model"`
	DeviceOS      string            `yaml:"device_os" json:"device_os"`
	App           string            `yaml:"app" json:"app"`
	Ver           string            `yaml:"ver" json:"ver"`
	Meta          map[string]string `yaml:"meta" json:"meta"`
}

type DataSessionConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

type ConsoleConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// Config is the fully merged, validated, defaulted configuration document.
type Config struct {
	Core        CoreConfig        `yaml:"core" json:"core"`
	Volta       VoltaConfig       `yaml:"volta" json:"volta"`
	Phone       PhoneConfig       `yaml:"phone" json:"phone"`
	Sync        SyncConfig        `yaml:"sync" json:"sync"`
	Uploader    UploaderConfig    `yaml:"uploader" json:"uploader"`
	DataSession DataSessionConfig `yaml:"data_session" json:"data_session"`
	Console     ConsoleConfig     `yaml:"console" json:"console"`
}

// Defaults returns a Config pre-populated with the built-in option
// defaults, before any file, --defaults overlay, or -p patch is merged in.
func Defaults() *Config {
	return &Config{
		Core: CoreConfig{
			Enabled:          true,
			ArtifactsBaseDir: "./artifacts",
			Version:          "volta-go",
		},
		Volta: VoltaConfig{
			Enabled:      true,
			Type:         BoxBinary,
			SampleRate:   10000,
			BaudRate:     230400,
			ChopRatio:    1.0,
			Slope:        1.0,
			Offset:       0.0,
			Precision:    12,
			PowerVoltage: 4700,
			ReadTimeout:  1 * time.Second,
		},
		Phone: PhoneConfig{
			Enabled: true,
			Type:    PhoneAndroid,
		},
		Sync: SyncConfig{
			Enabled:        true,
			SearchInterval: 30,
		},
		Uploader: UploaderConfig{
			Enabled:   false,
			Component: "volta",
		},
		DataSession: DataSessionConfig{Enabled: true},
		Console:     ConsoleConfig{Enabled: true},
	}
}
