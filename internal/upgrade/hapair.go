/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package upgrade

import (
	"context"

	"github.com/natej/panos-upgrade/internal/deviceclient"
	"github.com/natej/panos-upgrade/internal/errs"
	"github.com/natej/panos-upgrade/internal/model"
)

// RunHAPair orchestrates an HA-pair upgrade job (spec §4.7 "HA pair
// orchestration"): determine one shared target version from both
// members' upgrade paths, upgrade the passive member first, then the
// active member, checking cancellation between them.
func (m *Machine) RunHAPair(ctx context.Context, jobID string, serials [2]string, downloadOnly, dryRun bool) ([2]model.DeviceStatus, error) {
	var results [2]model.DeviceStatus

	targets := make([]string, 0, 2)
	versions := make([]string, 0, 2)
	haStates := make([]deviceclient.HAState, 2)

	for i, serial := range serials {
		rec, ok := m.inv.Get(serial)
		if !ok {
			return results, errs.New(errs.DeviceNotFound, "device not found in inventory: "+serial)
		}
		client := m.clients(rec.MgmtAddr)

		ha, err := client.HAState(ctx)
		if err != nil {
			return results, err
		}
		haStates[i] = ha

		info, err := client.SystemInfo(ctx)
		if err != nil {
			return results, err
		}
		versions = append(versions, info.SWVersion)
		if t := m.paths.FinalTarget(info.SWVersion); t != "" {
			targets = append(targets, t)
		}
	}

	var target string
	switch {
	case len(targets) > 0:
		target = targets[0]
	case versions[0] == versions[1]:
		// Neither member has a configured path and both already agree:
		// trivially complete, nothing to upgrade.
		for i, serial := range serials {
			results[i] = model.DeviceStatus{
				Serial:          serial,
				CurrentVersion:  versions[i],
				StartingVersion: versions[i],
				TargetVersion:   versions[i],
				UpgradeStatus:   model.StatusComplete,
				CurrentPhase:    "complete",
				Progress:        100,
			}
		}
		return results, nil
	default:
		return results, errs.New(errs.NoUpgradePath, "no upgrade path for either HA member and versions differ")
	}

	// Determine upgrade order (passive first). Mirrors
	// upgrade_manager.py's upgrade_ha_pair: check the first member for
	// "passive", then the second, and fail rather than guess if neither
	// reports it (e.g. both standalone/unknown). If both report
	// passive, the first member is treated as the passive one.
	var passiveIdx, activeIdx int
	switch {
	case haStates[0].LocalState == deviceclient.HAPassive:
		passiveIdx, activeIdx = 0, 1
	case haStates[1].LocalState == deviceclient.HAPassive:
		passiveIdx, activeIdx = 1, 0
	default:
		return results, errs.New(errs.NoPassiveMember, "could not determine passive member for HA pair")
	}

	order := []int{passiveIdx, activeIdx}
	for n, idx := range order {
		if n > 0 && m.cancels.IsCancelled(jobID, "") {
			break
		}
		results[idx] = m.RunDevice(ctx, jobID, serials[idx], downloadOnly, dryRun, target)
	}
	return results, nil
}
