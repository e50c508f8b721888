// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package resource

import (
	"fmt"
	"os"
)

func setBaudRate(f *os.File, baud int) error {
	if baud == 0 {
		return nil
	}
	return fmt.Errorf("serial baud rate configuration is not implemented on this platform")
}
