/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package model defines the durable entities of spec.md §3 (Job,
// DeviceStatus, CancelCommand, UpgradePaths, ValidationSnapshot,
// WorkerStatus, DaemonStatus) as plain Go structs persisted through
// internal/atomicstore. Fields use Go-native types (time.Time,
// string-typed enums) per SPEC_FULL.md §3, but the JSON field names
// keep the lowercase snake_case on-disk shape the original tooling and
// any operator scripts that drop job files already expect.
package model

import "time"

// Job types.
const (
	JobTypeStandalone   = "standalone"
	JobTypeHAPair       = "ha_pair"
	JobTypeDownloadOnly = "download_only"
)

// Job terminal statuses (as distinct from DeviceStatus.UpgradeStatus).
const (
	JobStatusPending   = "pending"
	JobStatusComplete  = "complete"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

// Job is the durable, one-file-per-job submission record. A job file
// exists in exactly one of queue/{pending,active,completed,cancelled}
// at any instant; that location, not a field on Job, is the source of
// truth for which of those four directories currently owns it.
type Job struct {
	JobID        string     `json:"job_id"`
	Type         string     `json:"type"`
	Devices      []string   `json:"devices"`
	DryRun       bool       `json:"dry_run"`
	DownloadOnly bool       `json:"download_only"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Status       string     `json:"status"`
}

// DeviceStatus upgrade_status values (spec §4.7).
const (
	StatusPending           = "pending"
	StatusValidating        = "validating"
	StatusDownloading       = "downloading"
	StatusInstalling        = "installing"
	StatusRebooting         = "rebooting"
	StatusComplete          = "complete"
	StatusDownloadComplete  = "download_complete"
	StatusFailed            = "failed"
	StatusCancelled         = "cancelled"
	StatusSkipped           = "skipped"
)

// HA roles.
const (
	HARoleActive     = "active"
	HARolePassive    = "passive"
	HARoleStandalone = "standalone"
)

// DiskSpaceCheck is DeviceStatus.disk_space.
type DiskSpaceCheck struct {
	AvailableGB  float64 `json:"available_gb"`
	RequiredGB   float64 `json:"required_gb"`
	CheckPassed  bool    `json:"check_passed"`
}

// DeviceError is one entry of DeviceStatus.errors.
type DeviceError struct {
	Timestamp time.Time `json:"timestamp"`
	Phase     string    `json:"phase"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
}

// DeviceStatus is the durable, one-file-per-device, last-writer-wins
// upgrade record, owned exclusively by the upgrade state machine (C7)
// for the device's serial.
type DeviceStatus struct {
	Serial            string         `json:"serial"`
	Hostname          string         `json:"hostname"`
	HARole            string         `json:"ha_role"`
	CurrentVersion    string         `json:"current_version"`
	StartingVersion   string         `json:"starting_version"`
	TargetVersion     string         `json:"target_version"`
	UpgradePath       []string       `json:"upgrade_path"`
	CurrentPathIndex  int            `json:"current_path_index"`
	UpgradeStatus     string         `json:"upgrade_status"`
	Progress          int            `json:"progress"`
	CurrentPhase      string         `json:"current_phase"`
	UpgradeMessage    string         `json:"upgrade_message,omitempty"`
	DiskSpace         DiskSpaceCheck `json:"disk_space"`
	DownloadedVersions []string      `json:"downloaded_versions"`
	SkippedVersions    []string      `json:"skipped_versions"`
	ReadyForInstall    bool          `json:"ready_for_install"`
	Errors             []DeviceError `json:"errors"`
	LastUpdated        time.Time     `json:"last_updated"`
}

// Terminal reports whether status stops all further orchestrator
// mutation (spec §3 DeviceStatus invariant).
func Terminal(status string) bool {
	switch status {
	case StatusComplete, StatusFailed, StatusCancelled, StatusSkipped, StatusDownloadComplete:
		return true
	default:
		return false
	}
}

// CancelCommand is a durable command-file drop targeting either a job
// or a single device serial. Consumed exactly once, then moved to
// commands/processed/.
type CancelCommand struct {
	CmdID        string    `json:"cmd_id"`
	JobID        string    `json:"job_id,omitempty"`
	DeviceSerial string    `json:"device_serial,omitempty"`
	Reason       string    `json:"reason"`
	Timestamp    time.Time `json:"timestamp"`
}

// UpgradePaths is the durable, read-only-to-the-orchestrator mapping
// from a starting version to its ordered chain of intermediate and
// final target versions. The last element of the slice is the final
// target.
type UpgradePaths map[string][]string

// FinalTarget returns the last element of the path for fromVersion, or
// "" if no path is configured.
func (p UpgradePaths) FinalTarget(fromVersion string) string {
	path := p[fromVersion]
	if len(path) == 0 {
		return ""
	}
	return path[len(path)-1]
}

// RouteSnapshot and ARPSnapshot are the metric-table entries recorded
// in a ValidationSnapshot.
type RouteSnapshot struct {
	Dst   string `json:"dst"`
	Gw    string `json:"gw"`
	Iface string `json:"iface"`
}

type ARPSnapshot struct {
	IP    string `json:"ip"`
	MAC   string `json:"mac"`
	Iface string `json:"iface"`
}

// SnapshotMetrics is ValidationSnapshot.metrics.
type SnapshotMetrics struct {
	TCPSessions     int             `json:"tcp_sessions"`
	Routes          []RouteSnapshot `json:"routes"`
	ARP             []ARPSnapshot   `json:"arp"`
	DiskAvailableGB float64         `json:"disk_available_gb"`
}

// ValidationSnapshot is one durable, append-only pre- or post-flight
// record for a device.
type ValidationSnapshot struct {
	Timestamp time.Time       `json:"timestamp"`
	Serial    string          `json:"serial"`
	Metrics   SnapshotMetrics `json:"metrics"`
}

// Worker states.
const (
	WorkerIdle  = "idle"
	WorkerBusy  = "busy"
	WorkerError = "error"
)

// WorkerStatus is one worker pool slot's current state, part of the
// periodically-republished status.
type WorkerStatus struct {
	ID     int    `json:"id"`
	State  string `json:"state"`
	JobID  string `json:"job_id,omitempty"`
	Device string `json:"device,omitempty"`
}

// DaemonStatus is the periodically-republished overview of the whole
// orchestrator instance.
type DaemonStatus struct {
	Running         bool           `json:"running"`
	StartedAt       time.Time      `json:"started_at"`
	LastUpdated     time.Time      `json:"last_updated"`
	ActiveJobs      int            `json:"active_jobs"`
	PendingJobs     int            `json:"pending_jobs"`
	CompletedJobs   int            `json:"completed_jobs"`
	CancelledJobs   int            `json:"cancelled_jobs"`
	Workers         []WorkerStatus `json:"workers"`
}
