/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package main

import (
	"flag"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var (
	flagWorkDir    string
	flagConfigFile string
)

// NewRootCmd assembles the panupgraded command tree, grounded on the
// pack's cobra-plus-pflag CLI convention (see hashmap-kz-katomik's
// cmd.NewRootCmd): a silent-errors root with klog's flags folded into
// --help instead of living on their own undocumented flag.FlagSet.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "panupgraded",
		Short:         "Fleet PAN-OS firewall upgrade orchestrator daemon",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().StringVar(&flagWorkDir, "work-dir", "", "orchestrator work directory (required)")
	root.PersistentFlags().StringVar(&flagConfigFile, "config", "", "path to an optional YAML config overlay")

	goFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(goFlags)
	root.PersistentFlags().AddGoFlagSet(goFlags)

	root.AddCommand(NewRunCmd())
	root.AddCommand(NewVersionCmd())
	return root
}
