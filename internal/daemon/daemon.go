/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package daemon implements the orchestrator daemon (C10): wires
// C2-C9 together from a loaded config, ensures the work directory
// layout, republishes DaemonStatus/WorkerStatus on a schedule, and
// recovers in-flight jobs on restart. It installs no signal handlers
// itself: the caller (cmd/panupgraded) turns SIGINT/SIGTERM into Stop.
// Grounded on daemon.py's UpgradeDaemon (start/stop,
// _process_job_queue, _update_status_loop, restart's queue/active
// re-submission), generalized into Go goroutines plus a
// robfig/cron schedule for the republish tick.
package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/natej/panos-upgrade/internal/atomicstore"
	"github.com/natej/panos-upgrade/internal/cancelset"
	"github.com/natej/panos-upgrade/internal/config"
	"github.com/natej/panos-upgrade/internal/deviceclient"
	"github.com/natej/panos-upgrade/internal/inventory"
	"github.com/natej/panos-upgrade/internal/logging"
	"github.com/natej/panos-upgrade/internal/metrics"
	"github.com/natej/panos-upgrade/internal/model"
	"github.com/natej/panos-upgrade/internal/queue"
	"github.com/natej/panos-upgrade/internal/ratelimit"
	"github.com/natej/panos-upgrade/internal/upgrade"
	"github.com/natej/panos-upgrade/internal/validator"
	"github.com/natej/panos-upgrade/internal/workerpool"
)

var dirLayout = []string{
	"config", "devices",
	"queue/pending", "queue/active", "queue/completed", "queue/cancelled",
	"status/devices/ha_pairs",
	"logs/structured", "logs/text",
	"validation/pre_flight", "validation/post_flight",
	"commands/incoming", "commands/processed",
}

// Daemon is one running orchestrator instance.
type Daemon struct {
	cfg     *config.Config
	log     *logging.Logger
	metrics *metrics.Registry

	cancels *cancelset.Set
	rate    *ratelimit.Limiter
	inv     *inventory.Inventory
	pool    *workerpool.Pool
	disp    *queue.Dispatcher
	machine *upgrade.Machine

	startedAt time.Time
	cron      *cron.Cron

	mu      sync.Mutex
	running bool
}

// ClientFactory builds a rate-limited DeviceClient bound to mgmtAddr.
// The real implementation (out of this core's scope per spec §4.3)
// would wrap its transport calls with rate.Acquire before every
// operational command.
type ClientFactory func(mgmtAddr string, rate *ratelimit.Limiter) deviceclient.DeviceClient

// New constructs a Daemon from cfg. clientFactory is supplied by the
// caller (production main.go or a test) since this core only consumes
// the DeviceClient interface.
func New(cfg *config.Config, clientFactory ClientFactory, log *logging.Logger) (*Daemon, error) {
	if err := atomicstore.EnsureDirs(cfg.WorkDir, dirLayout...); err != nil {
		return nil, err
	}

	inv, err := inventory.New(filepath.Join(cfg.WorkDir, "devices", "inventory.json"))
	if err != nil {
		return nil, err
	}

	var paths model.UpgradePaths
	_, err = atomicstore.ReadJSON(filepath.Join(cfg.WorkDir, "config", "upgrade_paths.json"), &paths)
	if err != nil {
		return nil, err
	}
	if paths == nil {
		paths = model.UpgradePaths{}
	}

	rate := ratelimit.New(cfg.Panorama.RateLimit)
	cancels := cancelset.New()
	metricsReg := metrics.New()
	pool := workerpool.New(cfg.Workers.Max, cfg.Workers.QueueSize, log)

	clients := func(mgmtAddr string) deviceclient.DeviceClient {
		return clientFactory(mgmtAddr, rate)
	}
	newValidator := func(c deviceclient.DeviceClient) *validator.Validator {
		return validator.New(c, validator.Config{
			MinDiskGB: cfg.Validation.MinDiskGB,
			Margins: validator.Margins{
				TCPSessionPercent: cfg.Validation.TCPSessionMargin,
				RouteAbsolute:     cfg.Validation.RouteMargin,
				ArpAbsolute:       cfg.Validation.ArpMargin,
			},
			Retry: validator.RetryConfig{
				Attempts: cfg.Validation.RetryAttempts,
				Delay:    cfg.Validation.RetryDelay,
				Backoff:  cfg.Validation.RetryBackoff,
			},
		}, cfg.WorkDir, log)
	}
	machine := upgrade.New(clients, inv, paths, newValidator, upgrade.Config{
		MinDiskGB:             cfg.Validation.MinDiskGB,
		DownloadRetryAttempts: cfg.DownloadRetryAttempts,
		JobStallTimeout:       cfg.JobStallTimeout,
		RebootInitialDelay:    cfg.Reboot.InitialDelay,
		RebootReadyTimeout:    cfg.Reboot.ReadyTimeout,
		MaxRebootPollInterval: cfg.Firewall.MaxRebootPollInterval,
		RebootStabilizeDelay:  cfg.Reboot.StabilizationDelay,
	}, cfg.WorkDir, cancels, log, metricsReg)

	runner := func(ctx context.Context, job model.Job) string {
		switch job.Type {
		case model.JobTypeHAPair:
			if len(job.Devices) < 2 {
				return model.JobStatusFailed
			}
			results, err := machine.RunHAPair(ctx, job.JobID, [2]string{job.Devices[0], job.Devices[1]}, job.DownloadOnly, job.DryRun)
			if err != nil {
				return model.JobStatusFailed
			}
			return jobStatusFromDeviceResults(results[:])
		default:
			st := machine.RunDevice(ctx, job.JobID, job.Devices[0], job.DownloadOnly, job.DryRun, "")
			return jobStatusFromDeviceResults([]model.DeviceStatus{st})
		}
	}

	disp := queue.New(cfg.WorkDir, pool, cancels, runner, 5*time.Second, log, metricsReg)

	return &Daemon{
		cfg: cfg, log: log, metrics: metricsReg,
		cancels: cancels, rate: rate, inv: inv, pool: pool, disp: disp, machine: machine,
	}, nil
}

func jobStatusFromDeviceResults(results []model.DeviceStatus) string {
	for _, r := range results {
		if r.UpgradeStatus == model.StatusCancelled {
			return model.JobStatusCancelled
		}
	}
	for _, r := range results {
		if r.UpgradeStatus == model.StatusFailed {
			return model.JobStatusFailed
		}
	}
	return model.JobStatusComplete
}

func (d *Daemon) statusPath() string  { return filepath.Join(d.cfg.WorkDir, "status", "daemon.json") }
func (d *Daemon) workersPath() string { return filepath.Join(d.cfg.WorkDir, "status", "workers.json") }

// Start launches the worker pool, the queue dispatcher, restart
// recovery, and the periodic status-republish schedule. It returns
// once everything is running; call Stop (or cancel ctx) to halt it.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = true
	d.startedAt = time.Now().UTC()
	d.mu.Unlock()

	d.pool.Start()
	if err := d.disp.Start(ctx); err != nil {
		return err
	}
	d.recoverActiveJobs()

	d.cron = cron.New()
	if _, err := d.cron.AddFunc("@every 10s", d.publishStatus); err != nil {
		return err
	}
	d.cron.Start()

	d.publishStatus()
	d.log.Infow("daemon started", "workers", d.cfg.Workers.Max)
	return nil
}

// recoverActiveJobs re-submits every job file still sitting in
// queue/active/ from a prior, unclean shutdown — their per-device
// status files are the source of truth for where each resumes (spec
// §5 "Daemon restart recovery").
func (d *Daemon) recoverActiveJobs() {
	activeDir := filepath.Join(d.cfg.WorkDir, "queue", "active")
	entries, err := os.ReadDir(activeDir)
	if err != nil {
		return
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(activeDir, name)
		var job model.Job
		found, err := atomicstore.ReadJSON(path, &job)
		if err != nil || !found {
			d.log.Errorw(err, "failed to read active job during recovery", "file", name)
			continue
		}
		d.log.Infow("recovering in-flight job after restart", "job_id", job.JobID)
		d.disp.Resubmit(job, path, name)
	}
}

// Stop halts the dispatcher and worker pool and publishes a final
// running=false status.
func (d *Daemon) Stop(shutdownDeadline time.Duration) {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	d.log.Infow("stopping daemon")
	if d.cron != nil {
		d.cron.Stop()
	}
	d.disp.Stop()
	d.pool.Shutdown(shutdownDeadline)

	status := d.buildStatus()
	status.Running = false
	if err := atomicstore.WriteJSON(d.statusPath(), status); err != nil {
		d.log.Errorw(err, "failed to publish final daemon status")
	}
	d.log.Infow("daemon stopped")
}

func (d *Daemon) buildStatus() model.DaemonStatus {
	workers := d.pool.Statuses()
	active, pending := 0, d.pool.QueueLen()
	for _, w := range workers {
		if w.State == model.WorkerBusy {
			active++
		}
	}
	return model.DaemonStatus{
		Running:       true,
		StartedAt:     d.startedAt,
		LastUpdated:   time.Now().UTC(),
		ActiveJobs:    active,
		PendingJobs:   pending,
		CompletedJobs: d.disp.CompletedCount(),
		CancelledJobs: d.disp.CancelledCount(),
		Workers:       workers,
	}
}

func (d *Daemon) publishStatus() {
	status := d.buildStatus()
	if err := atomicstore.WriteJSON(d.statusPath(), status); err != nil {
		d.log.Errorw(err, "failed to publish daemon status")
	}
	if err := atomicstore.WriteJSON(d.workersPath(), status.Workers); err != nil {
		d.log.Errorw(err, "failed to publish worker statuses")
	}

	d.metrics.WorkersBusy.Set(float64(status.ActiveJobs))
	d.metrics.QueuePendingDepth.Set(float64(status.PendingJobs))
}

// Metrics exposes the daemon's private metrics registry, e.g. for a
// caller that wants to wire an opt-in /metrics HTTP handler.
func (d *Daemon) Metrics() *metrics.Registry { return d.metrics }
