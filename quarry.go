// Copyright 2026 Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import "github.com/quarrylabs/quarry/cmd"

func main() {
	cmd.Execute()
}
