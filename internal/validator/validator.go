/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package validator implements the pre/post-flight device validator
// (C5): snapshot device metrics, compare against configured margins,
// and persist every snapshot for forensics regardless of outcome.
// Grounded on validation.py's ValidationSystem (_compare_metrics,
// run_pre_flight_validation, run_post_flight_validation and their
// retry/backoff loops).
package validator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/natej/panos-upgrade/internal/atomicstore"
	"github.com/natej/panos-upgrade/internal/deviceclient"
	"github.com/natej/panos-upgrade/internal/errs"
	"github.com/natej/panos-upgrade/internal/logging"
	"github.com/natej/panos-upgrade/internal/model"
)

// RetryConfig is the exponential-backoff envelope shared by both
// validation phases.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
	Backoff  float64
}

// Margins are the configured tolerances for post-flight comparison
// (spec §4.5): TCP sessions as a percentage, route/ARP counts as
// absolute differences.
type Margins struct {
	TCPSessionPercent float64
	RouteAbsolute     float64
	ArpAbsolute       float64
}

// Config bundles a validator's disk/margin/retry settings.
type Config struct {
	MinDiskGB float64
	Margins   Margins
	Retry     RetryConfig
}

// Validator runs pre/post-flight checks for one orchestrator instance.
type Validator struct {
	client    deviceclient.DeviceClient
	cfg       Config
	workDir   string
	log       *logging.Logger
}

// New builds a Validator. workDir is the orchestrator's root work
// directory; snapshots are written under
// validation/{pre_flight,post_flight}/<serial>_<ts>.json beneath it.
func New(client deviceclient.DeviceClient, cfg Config, workDir string, log *logging.Logger) *Validator {
	return &Validator{client: client, cfg: cfg, workDir: workDir, log: log}
}

func snapshotFromMetrics(serial string, m deviceclient.Metrics, now time.Time) model.ValidationSnapshot {
	routes := make([]model.RouteSnapshot, 0, len(m.Routes))
	for _, r := range m.Routes {
		routes = append(routes, model.RouteSnapshot{Dst: r.Dst, Gw: r.Gw, Iface: r.Iface})
	}
	arp := make([]model.ARPSnapshot, 0, len(m.ARP))
	for _, a := range m.ARP {
		arp = append(arp, model.ARPSnapshot{IP: a.IP, MAC: a.MAC})
	}
	return model.ValidationSnapshot{
		Timestamp: now,
		Serial:    serial,
		Metrics: model.SnapshotMetrics{
			TCPSessions:     m.TCPSessions,
			Routes:          routes,
			ARP:             arp,
			DiskAvailableGB: m.DiskAvailableGB,
		},
	}
}

func (v *Validator) snapshotPath(phase, serial string, ts time.Time) string {
	return fmt.Sprintf("%s/validation/%s/%s_%d.json", v.workDir, phase, serial, ts.UnixNano())
}

// sleep is a var so tests can stub out the retry delay.
var sleep = time.Sleep

// fetchMetricsWithRetry retries client.Metrics with exponential
// backoff, after validation.py's current_delay = int(current_delay
// * retry_backoff) progression. Each step truncates to whole
// nanoseconds, not whole seconds, so 5s * 1.5 gives 7.5s, not 7s.
func (v *Validator) fetchMetricsWithRetry(ctx context.Context, serial string) (deviceclient.Metrics, error) {
	attempts := v.cfg.Retry.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := v.cfg.Retry.Delay
	backoff := v.cfg.Retry.Backoff
	if backoff <= 0 {
		backoff = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		m, err := v.client.Metrics(ctx)
		if err == nil {
			return m, nil
		}
		lastErr = err
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return deviceclient.Metrics{}, ctx.Err()
			default:
			}
			sleep(delay)
			delay = time.Duration(int64(float64(delay) * backoff))
		}
	}
	return deviceclient.Metrics{}, errs.Wrap(errs.ProtocolError, "metrics fetch exhausted retries for "+serial, lastErr)
}

// PreFlight fetches metrics, checks disk space against MinDiskGB, and
// always persists the snapshot (even on a failing disk check) for
// forensics. It returns the snapshot, whether the disk check passed,
// and an error only when metrics could not be fetched at all.
func (v *Validator) PreFlight(ctx context.Context, serial string) (model.ValidationSnapshot, bool, error) {
	m, err := v.fetchMetricsWithRetry(ctx, serial)
	if err != nil {
		return model.ValidationSnapshot{}, false, err
	}
	now := time.Now().UTC()
	snap := snapshotFromMetrics(serial, m, now)

	if werr := atomicstore.WriteJSON(v.snapshotPath("pre_flight", serial, now), snap); werr != nil {
		v.log.Errorw(werr, "failed to persist pre-flight snapshot", "serial", serial)
	}

	passed := m.DiskAvailableGB >= v.cfg.MinDiskGB
	if !passed {
		v.log.Warnw("pre-flight disk check failed", "serial", serial,
			"available_gb", m.DiskAvailableGB, "required_gb", v.cfg.MinDiskGB)
	}
	return snap, passed, nil
}

// LatestSnapshot returns the newest persisted pre-flight snapshot for
// serial, consulted by post-flight after a daemon restart (spec §3:
// "the newest snapshot per device is consulted in post-flight"). ok is
// false if no pre-flight snapshot has ever been written for serial.
func (v *Validator) LatestSnapshot(serial string) (snap model.ValidationSnapshot, ok bool) {
	dir := filepath.Join(v.workDir, "validation", "pre_flight")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return model.ValidationSnapshot{}, false
	}
	prefix := serial + "_"
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if len(e.Name()) > len(prefix) && e.Name()[:len(prefix)] == prefix {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return model.ValidationSnapshot{}, false
	}
	// Filenames are "<serial>_<unixnano>.json"; the unix-nanosecond
	// suffix has a stable digit width at any point in time, so a
	// lexical sort is also the chronological order.
	sort.Strings(names)
	latest := names[len(names)-1]

	var out model.ValidationSnapshot
	found, rerr := atomicstore.ReadJSON(filepath.Join(dir, latest), &out)
	if rerr != nil || !found {
		return model.ValidationSnapshot{}, false
	}
	return out, true
}

// MetricComparison is one named metric's pre/post comparison result.
type MetricComparison struct {
	Difference  float64
	Percentage  float64
	WithinMargin bool
	Added       []string
	Removed     []string
}

// PostFlightResult is the full comparison produced by PostFlight.
type PostFlightResult struct {
	TCPSessions MetricComparison
	Routes      MetricComparison
	ARP         MetricComparison
}

// AllWithinMargin reports whether every compared metric stayed within
// its configured margin.
func (r PostFlightResult) AllWithinMargin() bool {
	return r.TCPSessions.WithinMargin && r.Routes.WithinMargin && r.ARP.WithinMargin
}

func diffKeys(preKeys, postKeys []string) (added, removed []string) {
	preSet := make(map[string]bool, len(preKeys))
	for _, k := range preKeys {
		preSet[k] = true
	}
	postSet := make(map[string]bool, len(postKeys))
	for _, k := range postKeys {
		postSet[k] = true
	}
	for _, k := range postKeys {
		if !preSet[k] {
			added = append(added, k)
		}
	}
	for _, k := range preKeys {
		if !postSet[k] {
			removed = append(removed, k)
		}
	}
	return added, removed
}

func (v *Validator) compare(pre, post model.ValidationSnapshot) PostFlightResult {
	var res PostFlightResult

	tcpDiff := float64(post.Metrics.TCPSessions - pre.Metrics.TCPSessions)
	var tcpPct float64
	if pre.Metrics.TCPSessions > 0 {
		tcpPct = tcpDiff / float64(pre.Metrics.TCPSessions) * 100
	}
	res.TCPSessions = MetricComparison{
		Difference:   tcpDiff,
		Percentage:   tcpPct,
		WithinMargin: absF(tcpPct) <= v.cfg.Margins.TCPSessionPercent,
	}

	preRouteKeys := make([]string, 0, len(pre.Metrics.Routes))
	for _, r := range pre.Metrics.Routes {
		preRouteKeys = append(preRouteKeys, r.Dst+"|"+r.Gw+"|"+r.Iface)
	}
	postRouteKeys := make([]string, 0, len(post.Metrics.Routes))
	for _, r := range post.Metrics.Routes {
		postRouteKeys = append(postRouteKeys, r.Dst+"|"+r.Gw+"|"+r.Iface)
	}
	addedRoutes, removedRoutes := diffKeys(preRouteKeys, postRouteKeys)
	routeDiff := float64(len(post.Metrics.Routes) - len(pre.Metrics.Routes))
	res.Routes = MetricComparison{
		Difference:   routeDiff,
		WithinMargin: absF(routeDiff) <= v.cfg.Margins.RouteAbsolute,
		Added:        addedRoutes,
		Removed:      removedRoutes,
	}

	preArpKeys := make([]string, 0, len(pre.Metrics.ARP))
	for _, a := range pre.Metrics.ARP {
		preArpKeys = append(preArpKeys, a.IP+"|"+a.MAC)
	}
	postArpKeys := make([]string, 0, len(post.Metrics.ARP))
	for _, a := range post.Metrics.ARP {
		postArpKeys = append(postArpKeys, a.IP+"|"+a.MAC)
	}
	addedArp, removedArp := diffKeys(preArpKeys, postArpKeys)
	arpDiff := float64(len(post.Metrics.ARP) - len(pre.Metrics.ARP))
	res.ARP = MetricComparison{
		Difference:   arpDiff,
		WithinMargin: absF(arpDiff) <= v.cfg.Margins.ArpAbsolute,
		Added:        addedArp,
		Removed:      removedArp,
	}

	return res
}

func absF(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// PostFlight fetches post-upgrade metrics, persists the snapshot, and
// diffs it against pre. It never returns an error that should fail the
// upgrade: a metrics-fetch failure here is logged and reported as an
// empty, all-false comparison rather than propagated, because the
// device being reachable at all is already the real success criterion
// (spec §4.5).
func (v *Validator) PostFlight(ctx context.Context, serial string, pre model.ValidationSnapshot) (PostFlightResult, model.ValidationSnapshot, error) {
	m, err := v.fetchMetricsWithRetry(ctx, serial)
	if err != nil {
		v.log.Errorw(err, "post-flight validation failed, not fatal to upgrade", "serial", serial)
		return PostFlightResult{}, model.ValidationSnapshot{}, nil
	}
	now := time.Now().UTC()
	post := snapshotFromMetrics(serial, m, now)

	if werr := atomicstore.WriteJSON(v.snapshotPath("post_flight", serial, now), post); werr != nil {
		v.log.Errorw(werr, "failed to persist post-flight snapshot", "serial", serial)
	}

	result := v.compare(pre, post)
	if !result.AllWithinMargin() {
		v.log.Warnw("post-flight validation outside configured margins", "serial", serial)
	}
	return result, post, nil
}
