/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package deviceclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDiskSpace(t *testing.T) {
	cases := []struct {
		name   string
		output string
		want   float64
	}{
		{
			name: "gigabytes on panrepo",
			output: "Filesystem     Size  Used Avail Use% Mounted on\n" +
				"/dev/sda8      7.6G  4.0G  3.3G   55% /opt/panrepo\n",
			want: 3.3,
		},
		{
			name: "prefers panrepo over root when both present",
			output: "/dev/sda1      20G   10G  8.0G  60% /\n" +
				"/dev/sda8      7.6G  4.0G  3.3G  55% /opt/panrepo\n",
			want: 3.3,
		},
		{
			name: "falls back to root when panrepo absent",
			output: "/dev/sda1      20G   10G  8.0G  60% /\n",
			want:   8.0,
		},
		{
			name:   "avoids backup-suffixed mount collision",
			output: "/dev/sda9      7.6G  4.0G  1.0G  90% /opt/panrepo_backup\n",
			want:   0.0,
		},
		{
			name:   "megabytes converted to fractional GB",
			output: "/dev/sda1      1.0G  900M  100M  90% /\n",
			want:   100.0 / 1024,
		},
		{
			name:   "terabytes converted to GB",
			output: "/dev/sda1      2.0T  1.0T  1.0T  50% /\n",
			want:   1024.0,
		},
		{
			name:   "bytes with no suffix",
			output: "/dev/sda1      2000000000  1000000000  1000000000  50% /\n",
			want:   1000000000.0 / (1024 * 1024 * 1024),
		},
		{
			name:   "unparseable input returns zero",
			output: "garbage\n",
			want:   0.0,
		},
		{
			name:   "empty input returns zero",
			output: "",
			want:   0.0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseDiskSpace(tc.output)
			assert.InDelta(t, tc.want, got, 0.001)
		})
	}
}

func TestRouteAndARPKeys(t *testing.T) {
	r := Route{Dst: "10.0.0.0/24", Gw: "10.0.0.1", Iface: "eth1"}
	assert.Equal(t, "10.0.0.0/24|10.0.0.1|eth1", r.Key())

	a := ARPEntry{IP: "10.0.0.5", MAC: "aa:bb:cc:dd:ee:ff"}
	assert.Equal(t, "10.0.0.5|aa:bb:cc:dd:ee:ff", a.Key())
}

func TestFakeClientScriptedError(t *testing.T) {
	boom := errBoom()
	c := NewFakeClientBuilder().WithError("metrics", boom).Build()

	_, err := c.Metrics(context.Background())
	assert.Equal(t, boom, err)
	assert.Equal(t, 1, c.CallCount("metrics"))
}

func TestFakeClientJobSequence(t *testing.T) {
	c := NewFakeClientBuilder().WithJobSequence("job-1",
		DeviceJobStatus{Status: JobActive, Result: ResultNone, Progress: 10},
		DeviceJobStatus{Status: JobActive, Result: ResultNone, Progress: 50},
		DeviceJobStatus{Status: JobFinished, Result: ResultOK, Progress: 100},
	).Build()

	ctx := context.Background()
	s1, _ := c.DeviceJobStatus(ctx, "job-1")
	s2, _ := c.DeviceJobStatus(ctx, "job-1")
	s3, _ := c.DeviceJobStatus(ctx, "job-1")
	s4, _ := c.DeviceJobStatus(ctx, "job-1")

	assert.Equal(t, 10, s1.Progress)
	assert.Equal(t, 50, s2.Progress)
	assert.Equal(t, ResultOK, s3.Result)
	assert.Equal(t, s3, s4)
}

func errBoom() error {
	return assert.AnError
}
