// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Command ligavision checks, inspects and benchmarks datasets of vision
// types.
//
//	ligavision roundtrip --format all
//	ligavision show /data/detections --format parquet -n 5
//	ligavision bench --rows 10000
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
