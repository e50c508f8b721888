// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

import (
	"math"
	"strconv"
)

// A custom float type is used so that (Un)MarshalJSON can be overloaded and
// NaN/null can be used, and so the same value can render as an empty TSV
// field instead of allocating every nullable numeric column behind a
// pointer.
type Float float64

var NaN Float = Float(math.NaN())

func (f Float) IsNaN() bool {
	return math.IsNaN(float64(f))
}

// NaN will be serialized to `null`.
func (f Float) MarshalJSON() ([]byte, error) {
	if f.IsNaN() {
		return []byte("null"), nil
	}

	return []byte(strconv.FormatFloat(float64(f), 'f', -1, 64)), nil
}

// `null` will be unserialized to NaN.
func (f *Float) UnmarshalJSON(input []byte) error {
	s := string(input)
	if s == "null" {
		*f = NaN
		return nil
	}

	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = Float(val)
	return nil
}

// TSV renders the value the way the file and uploader sinks want it: NaN
// becomes the empty field, per spec "NULL encoded as empty field".
func (f Float) TSV() string {
	if f.IsNaN() {
		return ""
	}
	return strconv.FormatFloat(float64(f), 'f', -1, 64)
}
