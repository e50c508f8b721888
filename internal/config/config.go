// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	yaml "go.yaml.in/yaml/v3"
)

// Load reads configPath, deep-merges an optional defaults file underneath
// it and any number of YAML patch snippets on top of it, validates the
// result against configSchema, and fills in the dynamic options the source
// computes per-run (pid, cmdline, test_id, key_date, operator).
func Load(configPath string, defaultsPath string, patches []string) (*Config, error) {
	base, err := structToMap(Defaults())
	if err != nil {
		return nil, fmt.Errorf("building built-in defaults: %w", err)
	}

	if defaultsPath != "" {
		defaultsMap, err := fileToMap(defaultsPath)
		if err != nil {
			return nil, fmt.Errorf("reading --defaults %s: %w", defaultsPath, err)
		}
		base = deepMerge(base, defaultsMap)
	}

	fileMap, err := fileToMap(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", configPath, err)
	}
	base = deepMerge(base, fileMap)

	for i, patch := range patches {
		var patchMap map[string]interface{}
		if err := yaml.Unmarshal([]byte(patch), &patchMap); err != nil {
			return nil, fmt.Errorf("parsing -p/--patch-cfg #%d: %w", i+1, err)
		}
		base = deepMerge(base, patchMap)
	}

	jsonBytes, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("encoding merged config: %w", err)
	}

	if err := Validate(configSchema, jsonBytes); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(jsonBytes, cfg); err != nil {
		return nil, fmt.Errorf("decoding merged config into struct: %w", err)
	}

	applyDynamicDefaults(cfg)

	if cfg.Volta.ReadTimeout == 0 {
		cfg.Volta.ReadTimeout = 1 * time.Second
	}

	return cfg, nil
}

// dynamicDefaults is a registry of name -> compute-if-empty functions for
// the options that get their default at run time rather than from any
// config file, applied once after schema validation.
var dynamicDefaults = map[string]func(*Config){
	"pid": func(c *Config) {
		if c.Core.PID == 0 {
			c.Core.PID = os.Getpid()
		}
	},
	"cmdline": func(c *Config) {
		if c.Core.Cmdline == "" {
			c.Core.Cmdline = strings.Join(os.Args, " ")
		}
	},
	"key_date": func(c *Config) {
		if c.Core.KeyDate == "" {
			c.Core.KeyDate = time.Now().UTC().Format("2006-01-02")
		}
	},
	"test_id": func(c *Config) {
		if c.Core.TestID == "" {
			c.Core.TestID = fmt.Sprintf("%s_%s", c.Core.KeyDate, uuid.NewString())
		}
	},
	"operator": func(c *Config) {
		if c.Core.Operator == "" {
			if u := os.Getenv("USER"); u != "" {
				c.Core.Operator = u
			} else {
				c.Core.Operator = "unknown"
			}
		}
	},
}

// applyDynamicDefaults runs the registry in an order where test_id's
// default can depend on key_date having already been computed.
func applyDynamicDefaults(c *Config) {
	order := []string{"pid", "cmdline", "key_date", "test_id", "operator"}
	for _, name := range order {
		dynamicDefaults[name](c)
	}
}

func fileToMap(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	if m == nil {
		m = map[string]interface{}{}
	}
	return m, nil
}

func structToMap(v interface{}) (map[string]interface{}, error) {
	b, err := yaml.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// deepMerge overlays src onto dst, recursing into nested maps and letting
// src's scalar/array values win. dst is mutated and returned.
func deepMerge(dst, src map[string]interface{}) map[string]interface{} {
	for k, v := range src {
		if srcMap, ok := v.(map[string]interface{}); ok {
			if dstMap, ok := dst[k].(map[string]interface{}); ok {
				dst[k] = deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[k] = v
	}
	return dst
}
