/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is overridden at build time via -ldflags, matching the
// teacher's release tooling convention for stamping binaries.
var version = "dev"

// NewVersionCmd builds the `version` subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the panupgraded version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("panupgraded " + version)
			return nil
		},
	}
}
