// Copyright 2025 The PsWeed Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/jcodagnone/psweed/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
