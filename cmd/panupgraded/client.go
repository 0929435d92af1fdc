/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package main

import (
	"context"
	"time"

	"github.com/natej/panos-upgrade/internal/daemon"
	"github.com/natej/panos-upgrade/internal/deviceclient"
	"github.com/natej/panos-upgrade/internal/errs"
	"github.com/natej/panos-upgrade/internal/ratelimit"
)

// unimplementedClient satisfies deviceclient.DeviceClient for every
// mgmtAddr this binary is pointed at. The appliance's actual
// operational-command wire protocol is out of core scope (SPEC_FULL.md
// §4.3 names it a sibling-package concern); wiring a real transport
// here is the one piece of this orchestrator that a deployment must
// supply itself before pointing panupgraded at live hardware.
type unimplementedClient struct {
	mgmtAddr string
	rate     *ratelimit.Limiter
}

func newUnimplementedClientFactory() daemon.ClientFactory {
	return func(mgmtAddr string, rate *ratelimit.Limiter) deviceclient.DeviceClient {
		return &unimplementedClient{mgmtAddr: mgmtAddr, rate: rate}
	}
}

func (c *unimplementedClient) unsupported(op string) error {
	return errs.Newf(errs.Connect, "%s: no device transport wired for %s", op, c.mgmtAddr)
}

func (c *unimplementedClient) SystemInfo(ctx context.Context) (deviceclient.SystemInfo, error) {
	return deviceclient.SystemInfo{}, c.unsupported("system_info")
}

func (c *unimplementedClient) HAState(ctx context.Context) (deviceclient.HAState, error) {
	return deviceclient.HAState{}, c.unsupported("ha_state")
}

func (c *unimplementedClient) Metrics(ctx context.Context) (deviceclient.Metrics, error) {
	return deviceclient.Metrics{}, c.unsupported("metrics")
}

func (c *unimplementedClient) DiskSpace(ctx context.Context) (float64, error) {
	return 0, c.unsupported("disk_space")
}

func (c *unimplementedClient) RefreshSoftwareList(ctx context.Context) bool {
	return false
}

func (c *unimplementedClient) SoftwareInfo(ctx context.Context) ([]deviceclient.SoftwareVersion, error) {
	return nil, c.unsupported("software_info")
}

func (c *unimplementedClient) DownloadStart(ctx context.Context, version string) (string, error) {
	return "", c.unsupported("download_start")
}

func (c *unimplementedClient) InstallStart(ctx context.Context, version string) (string, error) {
	return "", c.unsupported("install_start")
}

func (c *unimplementedClient) RebootStart(ctx context.Context) (bool, error) {
	return false, c.unsupported("reboot_start")
}

func (c *unimplementedClient) DeviceJobStatus(ctx context.Context, jobID string) (deviceclient.DeviceJobStatus, error) {
	return deviceclient.DeviceJobStatus{}, c.unsupported("device_job_status")
}

func (c *unimplementedClient) WaitReady(ctx context.Context, timeout, maxPollInterval time.Duration) bool {
	return false
}

var _ deviceclient.DeviceClient = (*unimplementedClient)(nil)
