// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package schema

// SyncResult is the output of the sync finder: the current-sample index
// aligned to the first rise event, and the two derived clock offsets. A
// zero-value SyncResult with Found == false means sync was infeasible; the
// run still completes. The orchestrator only logs the result: no offsets
// are sent to the uploader.
type SyncResult struct {
	Found         bool
	SyncSample    int64
	SysUTSOffset  int64
	LogUTSOffset  int64
	HasLogOffset  bool
}
