// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

// configSchema is the JSON Schema the merged configuration document is
// validated against before dynamic defaults are applied. Only the options
// the orchestrator actually reads are constrained; unknown top-level keys
// are tolerated so operators can stash extra uploader metadata without
// edits here.
var configSchema = `
	{
  "type": "object",
  "properties": {
    "core": {
      "type": "object",
      "properties": {
        "enabled": {"type": "boolean"},
        "artifacts_base_dir": {"type": "string"},
        "operator": {"type": "string"}
      }
    },
    "volta": {
      "type": "object",
      "properties": {
        "enabled": {"type": "boolean"},
        "type": {"type": "string", "enum": ["500hz", "binary", "stm32"]},
        "source": {"type": "string", "minLength": 1},
        "sample_rate": {"type": "integer", "minimum": 1},
        "baud_rate": {"type": "integer", "minimum": 1},
        "chop_ratio": {"type": "number", "exclusiveMinimum": 0},
        "slope": {"type": "number"},
        "offset": {"type": "number"},
        "precision": {"type": "integer", "minimum": 1, "maximum": 32},
        "power_voltage": {"type": "number", "exclusiveMinimum": 0},
        "sample_swap": {"type": "boolean"}
      },
      "required": ["source"]
    },
    "phone": {
      "type": "object",
      "properties": {
        "enabled": {"type": "boolean"},
        "type": {
          "type": "string",
          "enum": ["android", "android_old", "iphone", "nexus4"]
        },
        "source": {"type": "string"},
        "event_regexp": {"type": "string"},
        "lightning": {"type": "string"},
        "lightning_class": {"type": "string"},
        "test_apps": {"type": "array", "items": {"type": "string"}},
        "test_class": {"type": "string"},
        "test_package": {"type": "string"},
        "test_runner": {"type": "string"},
        "cleanup_apps": {"type": "array", "items": {"type": "string"}}
      }
    },
    "sync": {
      "type": "object",
      "properties": {
        "enabled": {"type": "boolean"},
        "search_interval": {"type": "integer", "minimum": 1}
      }
    },
    "uploader": {
      "type": "object",
      "properties": {
        "enabled": {"type": "boolean"},
        "address": {"type": "string"},
        "task": {"type": "string"},
        "create_job_url": {"type": "string"},
        "update_job_url": {"type": "string"},
        "component": {"type": "string"}
      }
    },
    "data_session": {
      "type": "object",
      "properties": {
        "enabled": {"type": "boolean"}
      }
    },
    "console": {
      "type": "object",
      "properties": {
        "enabled": {"type": "boolean"}
      }
    }
  },
  "required": ["volta", "phone"]
	}`
