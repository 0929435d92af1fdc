/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package poller implements the generic device-job poller (C6):
// "wait for device job id to finish" with progress callback, stall
// detection, and tolerance for transient status-query errors. Grounded
// on worker_pool.py's polling loops and validation.py's retry
// structure, generalized into the single reusable primitive spec §4.6
// describes.
package poller

import (
	"context"
	"time"

	"github.com/natej/panos-upgrade/internal/deviceclient"
)

// Outcome is the poller's result variant (spec §4.6).
type Outcome int

const (
	// Success: device reports FIN/OK.
	Success Outcome = iota
	// Failed: device reports FIN/FAIL or any other terminal, non-OK result.
	Failed
	// Stalled: progress has not advanced for the stall timeout.
	Stalled
	// Cancelled: the caller's cancellation check fired mid-poll.
	Cancelled
	// TimedOut: the overall context deadline elapsed.
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failed:
		return "failed"
	case Stalled:
		return "stalled"
	case Cancelled:
		return "cancelled"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Result is the full outcome of a Poll call.
type Result struct {
	Outcome      Outcome
	Details      string
	LastProgress int
}

// pollInterval is the fixed short interval between device_job_status
// calls (spec §4.6 calls for "a fixed short interval", not a backoff).
// A var, not a const, so tests can shrink it instead of waiting out
// real wall-clock polling delays.
var pollInterval = 5 * time.Second

// Poll waits for jobID to reach a terminal state, invoking progressCb
// only when the device's reported progress strictly increases.
// shouldCancel is consulted before every sleep; if it returns true,
// Poll returns {Cancelled} immediately without another status query.
func Poll(
	ctx context.Context,
	client deviceclient.DeviceClient,
	jobID string,
	stallTimeout time.Duration,
	progressCb func(progress int),
	shouldCancel func() bool,
) Result {
	lastProgress := -1
	lastProgressAt := time.Now()

	for {
		if shouldCancel != nil && shouldCancel() {
			return Result{Outcome: Cancelled, LastProgress: maxInt(lastProgress, 0)}
		}

		status, err := client.DeviceJobStatus(ctx, jobID)
		if err != nil {
			// Transient status-query errors are expected during reboot
			// races; keep polling up to the overall context deadline.
			select {
			case <-ctx.Done():
				return Result{Outcome: TimedOut, LastProgress: maxInt(lastProgress, 0)}
			case <-time.After(pollInterval):
				continue
			}
		}

		if status.Progress > lastProgress {
			lastProgress = status.Progress
			lastProgressAt = time.Now()
			if progressCb != nil {
				progressCb(status.Progress)
			}
		}

		if status.Status == deviceclient.JobFinished {
			if status.Result == deviceclient.ResultOK {
				return Result{Outcome: Success, LastProgress: lastProgress}
			}
			return Result{Outcome: Failed, Details: status.Details, LastProgress: lastProgress}
		}

		if stallTimeout > 0 && time.Since(lastProgressAt) >= stallTimeout {
			return Result{Outcome: Stalled, LastProgress: lastProgress}
		}

		select {
		case <-ctx.Done():
			return Result{Outcome: TimedOut, LastProgress: maxInt(lastProgress, 0)}
		case <-time.After(pollInterval):
		}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
