// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validate compiles schema and checks instance against it, returning a
// descriptive error rather than aborting the process: a bad config must
// surface as a clean non-zero exit from the CLI, not a raw process abort
// from a library package.
func Validate(schema string, instance json.RawMessage) error {
	sch, err := jsonschema.CompileString("volta-config.json", schema)
	if err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}

	var v any
	if err := json.Unmarshal(instance, &v); err != nil {
		return fmt.Errorf("decoding config document for validation: %w", err)
	}

	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	return nil
}
