/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package validator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natej/panos-upgrade/internal/deviceclient"
	"github.com/natej/panos-upgrade/internal/logging"
	"github.com/natej/panos-upgrade/internal/model"
)

func emptySnapshot(serial string) model.ValidationSnapshot {
	return model.ValidationSnapshot{Serial: serial}
}

func model_ValidationSnapshot(tcpSessions int, routes []deviceclient.Route, arp []deviceclient.ARPEntry) model.ValidationSnapshot {
	snap := model.ValidationSnapshot{Metrics: model.SnapshotMetrics{TCPSessions: tcpSessions}}
	for _, r := range routes {
		snap.Metrics.Routes = append(snap.Metrics.Routes, model.RouteSnapshot{Dst: r.Dst, Gw: r.Gw, Iface: r.Iface})
	}
	for _, a := range arp {
		snap.Metrics.ARP = append(snap.Metrics.ARP, model.ARPSnapshot{IP: a.IP, MAC: a.MAC})
	}
	return snap
}

func testConfig() Config {
	return Config{
		MinDiskGB: 5.0,
		Margins: Margins{
			TCPSessionPercent: 5.0,
			RouteAbsolute:     0,
			ArpAbsolute:       0,
		},
		Retry: RetryConfig{Attempts: 3, Delay: time.Millisecond, Backoff: 2.0},
	}
}

func TestPreFlightDiskCheckPassed(t *testing.T) {
	client := deviceclient.NewFakeClientBuilder().
		WithMetrics(deviceclient.Metrics{TCPSessions: 100, DiskAvailableGB: 15}).
		Build()

	v := New(client, testConfig(), t.TempDir(), logging.New())
	snap, passed, err := v.PreFlight(context.Background(), "0001A")

	require.NoError(t, err)
	assert.True(t, passed)
	assert.Equal(t, 100, snap.Metrics.TCPSessions)
}

func TestPreFlightDiskCheckFailedStillPersists(t *testing.T) {
	client := deviceclient.NewFakeClientBuilder().
		WithMetrics(deviceclient.Metrics{TCPSessions: 100, DiskAvailableGB: 1}).
		Build()

	v := New(client, testConfig(), t.TempDir(), logging.New())
	_, passed, err := v.PreFlight(context.Background(), "0001A")

	require.NoError(t, err)
	assert.False(t, passed)
	_, found := v.LatestSnapshot("0001A")
	assert.True(t, found)
}

func TestFetchMetricsSucceedsOnFirstAttempt(t *testing.T) {
	origSleep := sleep
	sleep = func(time.Duration) {}
	defer func() { sleep = origSleep }()

	client := deviceclient.NewFakeClientBuilder().Build()
	// No scripted error means every call succeeds immediately; this
	// just exercises the single-attempt happy path through the retry
	// wrapper.
	v := New(client, testConfig(), t.TempDir(), logging.New())
	_, _, err := v.PreFlight(context.Background(), "0001A")
	require.NoError(t, err)
	assert.Equal(t, 1, client.CallCount("metrics"))
}

func TestFetchMetricsExhaustsRetries(t *testing.T) {
	origSleep := sleep
	sleep = func(time.Duration) {}
	defer func() { sleep = origSleep }()

	client := deviceclient.NewFakeClientBuilder().
		WithError("metrics", errors.New("connect refused")).
		Build()

	v := New(client, testConfig(), t.TempDir(), logging.New())
	_, _, err := v.PreFlight(context.Background(), "0001A")

	require.Error(t, err)
	assert.Equal(t, 3, client.CallCount("metrics"))
}

func TestPostFlightNeverFailsUpgradeOnMetricsError(t *testing.T) {
	origSleep := sleep
	sleep = func(time.Duration) {}
	defer func() { sleep = origSleep }()

	client := deviceclient.NewFakeClientBuilder().
		WithError("metrics", errors.New("timeout")).
		Build()

	v := New(client, testConfig(), t.TempDir(), logging.New())
	result, _, err := v.PostFlight(context.Background(), "0001A", emptySnapshot("0001A"))

	require.NoError(t, err)
	assert.False(t, result.AllWithinMargin())
}

func TestPostFlightWithinMargin(t *testing.T) {
	client := deviceclient.NewFakeClientBuilder().
		WithMetrics(deviceclient.Metrics{
			TCPSessions: 102,
			Routes:      []deviceclient.Route{{Dst: "10.0.0.0/24", Gw: "10.0.0.1", Iface: "eth1"}},
			ARP:         []deviceclient.ARPEntry{{IP: "10.0.0.5", MAC: "aa:bb:cc:dd:ee:ff"}},
		}).
		Build()

	v := New(client, testConfig(), t.TempDir(), logging.New())
	pre := model_ValidationSnapshot(100,
		[]deviceclient.Route{{Dst: "10.0.0.0/24", Gw: "10.0.0.1", Iface: "eth1"}},
		[]deviceclient.ARPEntry{{IP: "10.0.0.5", MAC: "aa:bb:cc:dd:ee:ff"}})

	result, _, err := v.PostFlight(context.Background(), "0001A", pre)
	require.NoError(t, err)
	assert.True(t, result.AllWithinMargin())
	assert.Empty(t, result.Routes.Added)
	assert.Empty(t, result.Routes.Removed)
}

func TestPostFlightDetectsRemovedRoute(t *testing.T) {
	client := deviceclient.NewFakeClientBuilder().
		WithMetrics(deviceclient.Metrics{TCPSessions: 100}).
		Build()

	v := New(client, testConfig(), t.TempDir(), logging.New())
	pre := model_ValidationSnapshot(100,
		[]deviceclient.Route{{Dst: "10.0.0.0/24", Gw: "10.0.0.1", Iface: "eth1"}}, nil)

	result, _, err := v.PostFlight(context.Background(), "0001A", pre)
	require.NoError(t, err)
	assert.False(t, result.Routes.WithinMargin)
	assert.Contains(t, result.Routes.Removed, "10.0.0.0/24|10.0.0.1|eth1")
}

func TestLatestSnapshotReturnsNewestPreFlight(t *testing.T) {
	client := deviceclient.NewFakeClientBuilder().
		WithMetrics(deviceclient.Metrics{TCPSessions: 10, DiskAvailableGB: 50}).
		Build()
	v := New(client, testConfig(), t.TempDir(), logging.New())

	_, found := v.LatestSnapshot("0001A")
	assert.False(t, found)

	_, _, err := v.PreFlight(context.Background(), "0001A")
	require.NoError(t, err)

	snap, found := v.LatestSnapshot("0001A")
	assert.True(t, found)
	assert.Equal(t, "0001A", snap.Serial)
	assert.Equal(t, 10, snap.Metrics.TCPSessions)
}

func TestLatestSnapshotIgnoresOtherSerials(t *testing.T) {
	client := deviceclient.NewFakeClientBuilder().
		WithMetrics(deviceclient.Metrics{TCPSessions: 10}).
		Build()
	v := New(client, testConfig(), t.TempDir(), logging.New())

	_, _, err := v.PreFlight(context.Background(), "0002B")
	require.NoError(t, err)

	_, found := v.LatestSnapshot("0001A")
	assert.False(t, found)
}
