/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package upgrade implements the per-device upgrade state machine
// (C7): the canonical phase sequence of spec.md §4.7 — load-or-init,
// identify device, pre-flight, refresh-list, download-all, verify-all,
// install-final, reboot, post-flight, finalize — plus HA-pair
// ordering, download-only truncation, dry-run, and cancellation
// checkpoints. Grounded on upgrade_manager.py's UpgradeManager,
// generalized from its Python control flow into explicit Go states
// persisted through internal/atomicstore on every transition.
package upgrade

import (
	"context"
	"fmt"
	"time"

	"github.com/natej/panos-upgrade/internal/atomicstore"
	"github.com/natej/panos-upgrade/internal/cancelset"
	"github.com/natej/panos-upgrade/internal/deviceclient"
	"github.com/natej/panos-upgrade/internal/errs"
	"github.com/natej/panos-upgrade/internal/inventory"
	"github.com/natej/panos-upgrade/internal/logging"
	"github.com/natej/panos-upgrade/internal/metrics"
	"github.com/natej/panos-upgrade/internal/model"
	"github.com/natej/panos-upgrade/internal/poller"
	"github.com/natej/panos-upgrade/internal/validator"
)

// Config is the subset of orchestrator configuration the state machine
// needs, independent of how it was loaded (internal/config.Config maps
// onto this directly).
type Config struct {
	MinDiskGB             float64
	DownloadRetryAttempts int
	JobStallTimeout       time.Duration
	RebootInitialDelay    time.Duration
	RebootReadyTimeout    time.Duration
	MaxRebootPollInterval time.Duration
	RebootStabilizeDelay  time.Duration
}

// ClientFactory resolves a DeviceClient for a given management address.
// Factoring this out lets the daemon construct real clients lazily
// per-device while tests inject a single shared fake.
type ClientFactory func(mgmtAddr string) deviceclient.DeviceClient

// Machine drives one device (or, via RunHAPair, one HA pair) through
// its upgrade.
type Machine struct {
	clients   ClientFactory
	inv       *inventory.Inventory
	paths     model.UpgradePaths
	validator func(deviceclient.DeviceClient) *validator.Validator
	cfg       Config
	workDir   string
	cancels   *cancelset.Set
	log       *logging.Logger
	metrics   *metrics.Registry
}

// New builds a Machine. newValidator constructs a per-device validator
// bound to that device's client (validators are cheap and stateless
// beyond their client/config, so one is built per run rather than
// shared). metricsReg may be nil in tests that don't care about C14
// observability.
func New(
	clients ClientFactory,
	inv *inventory.Inventory,
	paths model.UpgradePaths,
	newValidator func(deviceclient.DeviceClient) *validator.Validator,
	cfg Config,
	workDir string,
	cancels *cancelset.Set,
	log *logging.Logger,
	metricsReg *metrics.Registry,
) *Machine {
	return &Machine{
		clients: clients, inv: inv, paths: paths, validator: newValidator,
		cfg: cfg, workDir: workDir, cancels: cancels, log: log, metrics: metricsReg,
	}
}

func (m *Machine) statusPath(serial string) string {
	return fmt.Sprintf("%s/status/devices/%s.json", m.workDir, serial)
}

func (m *Machine) loadStatus(serial string) (model.DeviceStatus, bool) {
	var st model.DeviceStatus
	found, err := atomicstore.ReadJSON(m.statusPath(serial), &st)
	if err != nil || !found {
		return model.DeviceStatus{}, false
	}
	return st, true
}

func (m *Machine) save(st *model.DeviceStatus) {
	st.LastUpdated = time.Now().UTC()
	if err := atomicstore.WriteJSON(m.statusPath(st.Serial), st); err != nil {
		m.log.Errorw(err, "failed to persist device status", "serial", st.Serial)
	}
}

func (m *Machine) fail(st *model.DeviceStatus, phase, message string, cause error) {
	st.UpgradeStatus = model.StatusFailed
	st.CurrentPhase = phase
	st.UpgradeMessage = message
	entry := model.DeviceError{Timestamp: time.Now().UTC(), Phase: phase, Message: message}
	if cause != nil {
		entry.Details = cause.Error()
	}
	st.Errors = append(st.Errors, entry)
	m.save(st)
}

func (m *Machine) cancelled(st *model.DeviceStatus, jobID string) bool {
	if !m.cancels.IsCancelled(jobID, st.Serial) {
		return false
	}
	st.UpgradeStatus = model.StatusCancelled
	st.CurrentPhase = "cancelled"
	m.save(st)
	return true
}

// RunDevice drives one standalone (or one member of an HA pair)
// device's upgrade job to a terminal state. jobID is used only for
// cancellation lookups. downloadOnly truncates the machine after
// verify-all; dryRun replaces every device side effect with a log
// line and a short sleep. targetOverride, if non-empty, forces the
// final target version instead of deriving it from paths (used by HA
// pair orchestration, which computes one shared target up front).
func (m *Machine) RunDevice(ctx context.Context, jobID, serial string, downloadOnly, dryRun bool, targetOverride string) model.DeviceStatus {
	st, resumed := m.loadStatus(serial)
	if !resumed {
		st = model.DeviceStatus{Serial: serial, UpgradeStatus: model.StatusPending}
	} else if model.Terminal(st.UpgradeStatus) {
		// Already terminal from a prior call (daemon restart recovery
		// re-driving this device): nothing actually runs, so it
		// contributes no new sample to the duration histogram.
		return st
	}

	start := time.Now()
	defer func() {
		if m.metrics != nil {
			m.metrics.DeviceUpgradeDuration.Observe(time.Since(start).Seconds())
		}
	}()

	rec, ok := m.inv.Get(serial)
	if !ok {
		m.fail(&st, "identify", "device not found in inventory", nil)
		return st
	}
	st.Hostname = rec.Hostname
	st.HARole = rec.HARole

	client := m.clients(rec.MgmtAddr)

	if m.cancelled(&st, jobID) {
		return st
	}

	if err := m.identify(ctx, client, &st, targetOverride); err != nil {
		m.fail(&st, "identify", err.Error(), err)
		return st
	}
	if st.UpgradeStatus == model.StatusComplete {
		m.save(&st)
		return st
	}

	v := m.validator(client)

	st.UpgradeStatus = model.StatusValidating
	st.CurrentPhase = "pre_flight"
	m.save(&st)
	if m.cancelled(&st, jobID) {
		return st
	}

	if dryRun {
		m.log.Infow("dry-run: skipping pre-flight device call", "serial", serial)
	} else {
		snap, passed, err := v.PreFlight(ctx, serial)
		if err != nil {
			m.fail(&st, "pre_flight", "pre-flight validation failed", err)
			return st
		}
		st.DiskSpace = model.DiskSpaceCheck{
			AvailableGB: snap.Metrics.DiskAvailableGB,
			RequiredGB:  m.cfg.MinDiskGB,
			CheckPassed: passed,
		}
		if !passed {
			m.fail(&st, "pre_flight", "insufficient disk space", errs.New(errs.InsufficientDisk, "disk check failed"))
			return st
		}
	}
	m.save(&st)

	if dryRun {
		time.Sleep(time.Millisecond)
	} else {
		if !client.RefreshSoftwareList(ctx) {
			m.log.Warnw("refresh_software_list failed, continuing", "serial", serial)
		}
	}

	st.UpgradeStatus = model.StatusDownloading
	st.CurrentPhase = "download_all"
	m.save(&st)

	if err := m.downloadAll(ctx, client, &st, jobID, dryRun); err != nil {
		m.fail(&st, "download_all", err.Error(), err)
		return st
	}
	if m.cancelled(&st, jobID) {
		return st
	}

	if err := m.verifyAll(ctx, client, &st, dryRun); err != nil {
		m.fail(&st, "verify_all", err.Error(), err)
		return st
	}

	if downloadOnly {
		st.UpgradeStatus = model.StatusDownloadComplete
		st.CurrentPhase = "download_complete"
		st.ReadyForInstall = true
		st.Progress = 100
		m.save(&st)
		return st
	}

	if m.cancelled(&st, jobID) {
		return st
	}

	st.UpgradeStatus = model.StatusInstalling
	st.CurrentPhase = "install_final"
	m.save(&st)
	if err := m.installFinal(ctx, client, &st, jobID, dryRun); err != nil {
		m.fail(&st, "install_final", err.Error(), err)
		return st
	}

	st.UpgradeStatus = model.StatusRebooting
	st.CurrentPhase = "reboot"
	m.save(&st)
	if err := m.reboot(ctx, client, &st, dryRun); err != nil {
		m.fail(&st, "reboot", err.Error(), err)
		return st
	}

	st.CurrentPhase = "post_flight"
	m.save(&st)
	if !dryRun {
		pre, _ := v.LatestSnapshot(serial)
		_, _, _ = v.PostFlight(ctx, serial, pre)
	}

	st.CurrentVersion = st.TargetVersion
	st.Progress = 100
	st.UpgradeStatus = model.StatusComplete
	st.CurrentPhase = "complete"
	m.save(&st)
	return st
}

func (m *Machine) identify(ctx context.Context, client deviceclient.DeviceClient, st *model.DeviceStatus, targetOverride string) error {
	info, err := client.SystemInfo(ctx)
	if err != nil {
		return err
	}
	st.CurrentVersion = info.SWVersion
	if st.Hostname == "" {
		st.Hostname = info.Hostname
	}

	if st.StartingVersion == "" {
		st.StartingVersion = info.SWVersion
	}

	var target string
	var path []string
	if targetOverride != "" {
		target = targetOverride
		path = m.paths[st.StartingVersion]
	} else {
		path = m.paths[st.StartingVersion]
		target = model.UpgradePaths(m.paths).FinalTarget(st.StartingVersion)
	}
	if target == "" {
		return errs.New(errs.NoUpgradePath, "no upgrade path configured for "+st.StartingVersion)
	}
	st.TargetVersion = target
	st.UpgradePath = path

	if info.SWVersion == target {
		st.UpgradeStatus = model.StatusComplete
		st.CurrentPhase = "complete"
		st.Progress = 100
		return nil
	}

	idx := 0
	for i, v := range path {
		if v == info.SWVersion {
			idx = i + 1
		}
	}
	st.CurrentPathIndex = idx
	return nil
}

func (m *Machine) downloadAll(ctx context.Context, client deviceclient.DeviceClient, st *model.DeviceStatus, jobID string, dryRun bool) error {
	attempts := m.cfg.DownloadRetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	for i := st.CurrentPathIndex; i < len(st.UpgradePath); i++ {
		version := st.UpgradePath[i]
		if contains(st.DownloadedVersions, version) || contains(st.SkippedVersions, version) {
			continue
		}
		if m.cancels.IsCancelled(jobID, st.Serial) {
			return nil
		}

		if dryRun {
			m.log.Infow("dry-run: skipping download", "serial", st.Serial, "version", version)
			time.Sleep(time.Millisecond)
			st.DownloadedVersions = append(st.DownloadedVersions, version)
			m.save(st)
			continue
		}

		versions, err := client.SoftwareInfo(ctx)
		if err != nil {
			return err
		}
		if alreadyDownloaded(versions, version) {
			st.SkippedVersions = append(st.SkippedVersions, version)
			m.save(st)
			continue
		}

		var lastErr error
		var lastDetails string
		ok := false
		for attempt := 1; attempt <= attempts && !ok; attempt++ {
			jobID2, err := client.DownloadStart(ctx, version)
			if err != nil {
				lastErr = err
				continue
			}
			if jobID2 == "" {
				lastErr = errs.Newf(errs.ProtocolError, "download_start returned no job id for %s", version)
				continue
			}
			res := poller.Poll(ctx, client, jobID2, m.cfg.JobStallTimeout, func(p int) {
				st.Progress = p
				st.UpgradeMessage = fmt.Sprintf("downloading %s", version)
				m.save(st)
			}, func() bool { return m.cancels.IsCancelled(jobID, st.Serial) })

			switch res.Outcome {
			case poller.Success:
				ok = true
			case poller.Cancelled:
				return nil
			default:
				lastErr = errs.Newf(errs.ProtocolError, "download of %s ended in %s", version, res.Outcome)
				lastDetails = res.Details
			}
		}
		if !ok {
			if lastDetails != "" {
				return errs.Wrap(errs.ProtocolError, "download failed: "+lastDetails, lastErr)
			}
			return lastErr
		}

		st.DownloadedVersions = append(st.DownloadedVersions, version)
		m.save(st)
	}
	return nil
}

func (m *Machine) verifyAll(ctx context.Context, client deviceclient.DeviceClient, st *model.DeviceStatus, dryRun bool) error {
	if dryRun {
		return nil
	}
	versions, err := client.SoftwareInfo(ctx)
	if err != nil {
		return err
	}
	var missing []string
	for _, v := range st.UpgradePath {
		if !alreadyDownloaded(versions, v) {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		return errs.Newf(errs.MissingImage, "missing downloaded images: %v", missing)
	}
	return nil
}

func (m *Machine) installFinal(ctx context.Context, client deviceclient.DeviceClient, st *model.DeviceStatus, jobID string, dryRun bool) error {
	final := st.TargetVersion
	if dryRun {
		m.log.Infow("dry-run: skipping install", "serial", st.Serial, "version", final)
		time.Sleep(time.Millisecond)
		return nil
	}

	jid, err := client.InstallStart(ctx, final)
	if err != nil {
		return err
	}
	if jid == "" {
		return errs.New(errs.ProtocolError, "install_start returned no job id")
	}
	res := poller.Poll(ctx, client, jid, m.cfg.JobStallTimeout, func(p int) {
		st.Progress = p
		st.UpgradeMessage = "installing " + final
		m.save(st)
	}, func() bool { return m.cancels.IsCancelled(jobID, st.Serial) })

	switch res.Outcome {
	case poller.Success:
		return nil
	case poller.Cancelled:
		return nil
	default:
		return errs.Newf(errs.ProtocolError, "install ended in %s: %s", res.Outcome, res.Details)
	}
}

func (m *Machine) reboot(ctx context.Context, client deviceclient.DeviceClient, st *model.DeviceStatus, dryRun bool) error {
	if dryRun {
		m.log.Infow("dry-run: skipping reboot", "serial", st.Serial)
		time.Sleep(time.Millisecond)
		return nil
	}

	ok, err := client.RebootStart(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errs.New(errs.ProtocolError, "reboot_start refused")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.cfg.RebootInitialDelay):
	}

	readyCtx, cancel := context.WithTimeout(ctx, m.cfg.RebootReadyTimeout)
	defer cancel()
	if !client.WaitReady(readyCtx, m.cfg.RebootReadyTimeout, m.cfg.MaxRebootPollInterval) {
		return errs.New(errs.Timeout, "device did not become ready after reboot")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.cfg.RebootStabilizeDelay):
	}
	return nil
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func alreadyDownloaded(versions []deviceclient.SoftwareVersion, version string) bool {
	for _, v := range versions {
		if v.Version == version && v.Downloaded {
			return true
		}
	}
	return false
}
