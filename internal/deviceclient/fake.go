/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package deviceclient

import (
	"context"
	"sync"
	"time"
)

// FakeClient is a scriptable, in-memory DeviceClient used by every test
// in this module that needs a device without a network. Grounded on the
// teacher's fake.NewClientBuilder()....Build() pattern (see
// legacy/common_workload's workload_test.go): a fluent builder seeds
// canned responses, Build() returns a client satisfying the real
// interface.
type FakeClient struct {
	mu sync.Mutex

	info    SystemInfo
	ha      HAState
	metrics Metrics
	disk    float64

	softwareVersions []SoftwareVersion
	refreshOK        bool

	// jobs maps a job id to the sequence of statuses DeviceJobStatus
	// returns on successive calls; the last entry repeats once
	// exhausted.
	jobs map[string][]DeviceJobStatus
	jobCalls map[string]int

	downloadJobID string
	installJobID  string
	rebootOK      bool
	waitReadyOK   bool

	// errOn, if set for an operation name, is returned instead of a
	// canned response, letting tests drive the retry/error paths.
	errOn map[string]error

	calls map[string]int
}

// FakeClientBuilder builds a FakeClient fluently.
type FakeClientBuilder struct {
	c *FakeClient
}

// NewFakeClientBuilder starts a new builder with reasonable, healthy
// defaults (HA standalone, empty metrics, no jobs).
func NewFakeClientBuilder() *FakeClientBuilder {
	return &FakeClientBuilder{c: &FakeClient{
		ha:          HAState{Enabled: false, LocalState: HAStandalone},
		refreshOK:   true,
		rebootOK:    true,
		waitReadyOK: true,
		jobs:        map[string][]DeviceJobStatus{},
		jobCalls:    map[string]int{},
		errOn:       map[string]error{},
		calls:       map[string]int{},
	}}
}

func (b *FakeClientBuilder) WithSystemInfo(info SystemInfo) *FakeClientBuilder {
	b.c.info = info
	return b
}

func (b *FakeClientBuilder) WithHAState(ha HAState) *FakeClientBuilder {
	b.c.ha = ha
	return b
}

func (b *FakeClientBuilder) WithMetrics(m Metrics) *FakeClientBuilder {
	b.c.metrics = m
	return b
}

func (b *FakeClientBuilder) WithDiskSpace(gb float64) *FakeClientBuilder {
	b.c.disk = gb
	return b
}

func (b *FakeClientBuilder) WithSoftwareVersions(vs ...SoftwareVersion) *FakeClientBuilder {
	b.c.softwareVersions = vs
	return b
}

func (b *FakeClientBuilder) WithRefreshResult(ok bool) *FakeClientBuilder {
	b.c.refreshOK = ok
	return b
}

// WithJobSequence scripts the DeviceJobStatus responses returned for
// jobID on successive polls; the final entry repeats once exhausted.
func (b *FakeClientBuilder) WithJobSequence(jobID string, seq ...DeviceJobStatus) *FakeClientBuilder {
	b.c.jobs[jobID] = seq
	return b
}

func (b *FakeClientBuilder) WithDownloadJobID(id string) *FakeClientBuilder {
	b.c.downloadJobID = id
	return b
}

func (b *FakeClientBuilder) WithInstallJobID(id string) *FakeClientBuilder {
	b.c.installJobID = id
	return b
}

func (b *FakeClientBuilder) WithRebootResult(ok bool) *FakeClientBuilder {
	b.c.rebootOK = ok
	return b
}

func (b *FakeClientBuilder) WithWaitReadyResult(ok bool) *FakeClientBuilder {
	b.c.waitReadyOK = ok
	return b
}

// WithError scripts operation name ("system_info", "metrics",
// "disk_space", "software_info", "download_start", "install_start",
// "reboot_start", "device_job_status") to return err instead of its
// canned response.
func (b *FakeClientBuilder) WithError(op string, err error) *FakeClientBuilder {
	b.c.errOn[op] = err
	return b
}

func (b *FakeClientBuilder) Build() *FakeClient {
	return b.c
}

func (c *FakeClient) record(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[op]++
	return c.errOn[op]
}

// CallCount returns how many times op was invoked, for assertions on
// retry behavior.
func (c *FakeClient) CallCount(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

func (c *FakeClient) SystemInfo(ctx context.Context) (SystemInfo, error) {
	if err := c.record("system_info"); err != nil {
		return SystemInfo{}, err
	}
	return c.info, nil
}

func (c *FakeClient) HAState(ctx context.Context) (HAState, error) {
	if err := c.record("ha_state"); err != nil {
		return HAState{}, err
	}
	return c.ha, nil
}

func (c *FakeClient) Metrics(ctx context.Context) (Metrics, error) {
	if err := c.record("metrics"); err != nil {
		return Metrics{}, err
	}
	return c.metrics, nil
}

func (c *FakeClient) DiskSpace(ctx context.Context) (float64, error) {
	if err := c.record("disk_space"); err != nil {
		return 0, err
	}
	return c.disk, nil
}

func (c *FakeClient) RefreshSoftwareList(ctx context.Context) bool {
	c.record("refresh_software_list")
	return c.refreshOK
}

func (c *FakeClient) SoftwareInfo(ctx context.Context) ([]SoftwareVersion, error) {
	if err := c.record("software_info"); err != nil {
		return nil, err
	}
	return c.softwareVersions, nil
}

func (c *FakeClient) DownloadStart(ctx context.Context, version string) (string, error) {
	if err := c.record("download_start"); err != nil {
		return "", err
	}
	return c.downloadJobID, nil
}

func (c *FakeClient) InstallStart(ctx context.Context, version string) (string, error) {
	if err := c.record("install_start"); err != nil {
		return "", err
	}
	return c.installJobID, nil
}

func (c *FakeClient) RebootStart(ctx context.Context) (bool, error) {
	if err := c.record("reboot_start"); err != nil {
		return false, err
	}
	return c.rebootOK, nil
}

func (c *FakeClient) DeviceJobStatus(ctx context.Context, jobID string) (DeviceJobStatus, error) {
	if err := c.record("device_job_status"); err != nil {
		return DeviceJobStatus{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	seq := c.jobs[jobID]
	if len(seq) == 0 {
		return DeviceJobStatus{Status: JobPending, Result: ResultNone}, nil
	}
	idx := c.jobCalls[jobID]
	if idx >= len(seq) {
		idx = len(seq) - 1
	}
	c.jobCalls[jobID] = idx + 1
	return seq[idx], nil
}

func (c *FakeClient) WaitReady(ctx context.Context, timeout, maxPollInterval time.Duration) bool {
	c.record("wait_ready")
	return c.waitReadyOK
}

var _ DeviceClient = (*FakeClient)(nil)
