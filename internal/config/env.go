// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads a .env file (if present) into the process environment,
// used to overlay uploader credentials/secrets without putting them in the
// YAML config that ends up copied into the artifacts directory. Missing
// .env files are not an error — most deployments set the environment some
// other way.
func LoadDotEnv(path string) {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}
