/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package queue implements the queue watcher and dispatcher (C9):
// watches queue/pending/ and commands/incoming/, atomically moves a new
// job file into queue/active/, submits one work item per job to the
// worker pool, and finalizes the job file into queue/completed/ or
// queue/cancelled/ when that item's run finishes. Command files are
// read once, fold into the shared cancellation set, and moved to
// commands/processed/.
//
// Grounded on daemon.py's _process_job_queue (pending-dir glob, sorted,
// rename-then-submit, per-job-type dispatch) and process_command
// (read, act, move-to-processed). Uses fsnotify as the primary trigger
// with a periodic scan as a fallback — spec.md §9 calls filesystem
// notification "an optimization" and a bounded periodic scan
// "acceptable", so both run together here rather than picking one.
package queue

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/natej/panos-upgrade/internal/atomicstore"
	"github.com/natej/panos-upgrade/internal/cancelset"
	"github.com/natej/panos-upgrade/internal/logging"
	"github.com/natej/panos-upgrade/internal/metrics"
	"github.com/natej/panos-upgrade/internal/model"
	"github.com/natej/panos-upgrade/internal/workerpool"
)

// Runner executes one job's device work and returns the job's terminal
// status (model.JobStatusComplete/Failed/Cancelled). The daemon wires
// this to the upgrade.Machine, choosing RunDevice or RunHAPair by job
// type; kept as a narrow function type here so this package does not
// need to import internal/upgrade directly.
type Runner func(ctx context.Context, job model.Job) string

// Dispatcher watches the on-disk queue and command directories and
// drives jobs into the worker pool.
type Dispatcher struct {
	workDir      string
	pool         *workerpool.Pool
	cancels      *cancelset.Set
	run          Runner
	log          *logging.Logger
	scanInterval time.Duration
	metrics      *metrics.Registry

	watcher *fsnotify.Watcher
	stop    chan struct{}
	done    chan struct{}
}

// New builds a Dispatcher rooted at workDir. metricsReg may be nil in
// tests that don't care about C14 observability.
func New(workDir string, pool *workerpool.Pool, cancels *cancelset.Set, run Runner, scanInterval time.Duration, log *logging.Logger, metricsReg *metrics.Registry) *Dispatcher {
	if scanInterval <= 0 {
		scanInterval = 5 * time.Second
	}
	return &Dispatcher{
		workDir: workDir, pool: pool, cancels: cancels, run: run,
		log: log, scanInterval: scanInterval, metrics: metricsReg,
		stop: make(chan struct{}), done: make(chan struct{}),
	}
}

func (d *Dispatcher) pendingDir() string   { return filepath.Join(d.workDir, "queue", "pending") }
func (d *Dispatcher) activeDir() string    { return filepath.Join(d.workDir, "queue", "active") }
func (d *Dispatcher) completedDir() string { return filepath.Join(d.workDir, "queue", "completed") }
func (d *Dispatcher) cancelledDir() string { return filepath.Join(d.workDir, "queue", "cancelled") }
func (d *Dispatcher) incomingDir() string  { return filepath.Join(d.workDir, "commands", "incoming") }
func (d *Dispatcher) processedDir() string { return filepath.Join(d.workDir, "commands", "processed") }

// Start begins watching; it returns once the watcher is established
// and the background loop is running. Call Stop to halt it.
func (d *Dispatcher) Start(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(d.pendingDir()); err != nil {
		w.Close()
		return err
	}
	if err := w.Add(d.incomingDir()); err != nil {
		w.Close()
		return err
	}
	d.watcher = w

	go d.loop(ctx)
	return nil
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer close(d.done)
	ticker := time.NewTicker(d.scanInterval)
	defer ticker.Stop()

	// Catch anything dropped before the watcher was established.
	d.scanPending()
	d.scanCommands()

	for {
		select {
		case <-d.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.scanPending()
			d.scanCommands()
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if filepath.Dir(event.Name) == d.pendingDir() {
				d.scanPending()
			} else {
				d.scanCommands()
			}
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.log.Errorw(err, "fsnotify watcher error")
		}
	}
}

// Stop halts the watch loop and closes the underlying fsnotify watcher.
func (d *Dispatcher) Stop() {
	close(d.stop)
	<-d.done
	if d.watcher != nil {
		d.watcher.Close()
	}
}

func listJSONSorted(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// scanPending picks up every job file currently in queue/pending, in
// lexical filename order (spec §5: "FIFO by pending-queue filename
// sort"), moves each atomically into queue/active, and submits it.
func (d *Dispatcher) scanPending() {
	for _, name := range listJSONSorted(d.pendingDir()) {
		pendingPath := filepath.Join(d.pendingDir(), name)
		var job model.Job
		found, err := atomicstore.ReadJSON(pendingPath, &job)
		if err != nil || !found {
			d.log.Errorw(err, "failed to read pending job file", "file", name)
			continue
		}

		activePath := filepath.Join(d.activeDir(), name)
		if err := os.Rename(pendingPath, activePath); err != nil {
			d.log.Errorw(err, "failed to move job to active", "file", name)
			continue
		}

		d.submit(job, activePath, name)
	}
}

// Resubmit re-submits a job file already sitting in queue/active (used
// by the daemon's restart recovery, spec §5): unlike scanPending, it
// does not rename pending->active since the file is already active.
func (d *Dispatcher) Resubmit(job model.Job, activePath, filename string) {
	d.submit(job, activePath, filename)
}

func (d *Dispatcher) submit(job model.Job, activePath, filename string) {
	ok := d.pool.Submit(workerpool.WorkItem{
		JobID:  job.JobID,
		Device: job.Devices[0],
		Run: func() {
			status := d.run(context.Background(), job)
			d.finalize(job, activePath, filename, status)
		},
	})
	if !ok {
		d.log.Errorw(nil, "worker pool full, job stays active for retry on next scan", "job_id", job.JobID)
	}
}

// finalize renames the active job file into completed/ or cancelled/
// and stamps its terminal fields. A status of model.JobStatusFailed
// still lands in completed/ — "failed" and "complete" are both
// terminal job outcomes; only an explicit cancellation moves a file to
// cancelled/ (spec §3: status ∈ {pending, complete, failed, cancelled}).
func (d *Dispatcher) finalize(job model.Job, activePath, filename, status string) {
	now := time.Now().UTC()
	job.Status = status
	job.CompletedAt = &now

	destDir := d.completedDir()
	if status == model.JobStatusCancelled {
		destDir = d.cancelledDir()
	}
	destPath := filepath.Join(destDir, filename)

	if err := atomicstore.WriteJSON(activePath, job); err != nil {
		d.log.Errorw(err, "failed to stamp terminal job status", "job_id", job.JobID)
	}
	if err := os.Rename(activePath, destPath); err != nil {
		d.log.Errorw(err, "failed to move job to terminal directory", "job_id", job.JobID)
	}
	d.cancels.Clear(job.JobID, "")
	for _, serial := range job.Devices {
		d.cancels.Clear("", serial)
	}

	if d.metrics != nil {
		switch status {
		case model.JobStatusComplete:
			d.metrics.JobsCompletedTotal.Inc()
		case model.JobStatusFailed:
			d.metrics.JobsFailedTotal.Inc()
		}
	}
}

// CompletedCount and CancelledCount report how many job files currently
// sit in queue/completed and queue/cancelled, for DaemonStatus (spec
// §3 "counts of active/pending/completed/cancelled jobs"). A directory
// scan, same as recoverActiveJobs uses for queue/active, is simpler
// than threading an in-memory counter through restarts.
func (d *Dispatcher) CompletedCount() int { return countJSON(d.completedDir()) }
func (d *Dispatcher) CancelledCount() int { return countJSON(d.cancelledDir()) }

func countJSON(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			n++
		}
	}
	return n
}

// scanCommands reads every cancel command dropped in commands/incoming,
// applies it to the shared cancellation set, and moves it to
// commands/processed so it is never re-applied.
func (d *Dispatcher) scanCommands() {
	for _, name := range listJSONSorted(d.incomingDir()) {
		path := filepath.Join(d.incomingDir(), name)
		var cmd model.CancelCommand
		found, err := atomicstore.ReadJSON(path, &cmd)
		if err != nil || !found {
			d.log.Errorw(err, "failed to read command file", "file", name)
			continue
		}

		if cmd.JobID != "" {
			d.cancels.CancelJob(cmd.JobID)
		}
		if cmd.DeviceSerial != "" {
			d.cancels.CancelDevice(cmd.DeviceSerial)
		}
		d.log.Infow("cancellation requested", "job_id", cmd.JobID, "device_serial", cmd.DeviceSerial, "reason", cmd.Reason)

		processedPath := filepath.Join(d.processedDir(), name)
		if err := os.Rename(path, processedPath); err != nil {
			d.log.Errorw(err, "failed to move processed command file", "file", name)
		}
	}
}
