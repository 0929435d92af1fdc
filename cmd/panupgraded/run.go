/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/natej/panos-upgrade/internal/config"
	"github.com/natej/panos-upgrade/internal/daemon"
	"github.com/natej/panos-upgrade/internal/errs"
	"github.com/natej/panos-upgrade/internal/logging"
)

// shutdownGracePeriod bounds how long Stop waits for in-flight device
// work to reach a checkpoint before giving up and returning anyway.
const shutdownGracePeriod = 30 * time.Second

// NewRunCmd builds the `run` subcommand: load config, wire the daemon,
// and block until a terminating signal arrives.
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the orchestrator daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context())
		},
	}
}

func runDaemon(parent context.Context) error {
	log := logging.New()

	if flagWorkDir == "" {
		return errs.New(errs.BadJob, "--work-dir is required")
	}

	cfg, err := config.Load(flagConfigFile, flagWorkDir)
	if err != nil {
		return err
	}

	d, err := daemon.New(cfg, newUnimplementedClientFactory(), log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := d.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	log.Infow("shutdown signal received, draining in-flight work")
	d.Stop(shutdownGracePeriod)
	return nil
}
