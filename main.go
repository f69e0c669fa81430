// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// crsfscope - CRSF Link Analyzer
//
// A CLI tool for monitoring, decoding and driving CRSF (Crossfire / ExpressLRS)
// serial links in human-readable format.

package main

import (
	"os"

	"github.com/Thermoquad/crsfscope/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
