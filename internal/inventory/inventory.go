/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package inventory keeps a read-only snapshot mapping device serials
// to their inventory record (C4), reloaded on demand from
// devices/inventory.json through internal/atomicstore. The orchestrator
// never mutates this file; the spec's inventory-mutation non-goal
// applies here, grounded on device_inventory.py's reload()/get()
// surface, kept deliberately read-only in this Go port.
package inventory

import (
	"sync"

	"github.com/natej/panos-upgrade/internal/atomicstore"
)

// Record is one device's inventory entry.
type Record struct {
	Serial   string `json:"serial"`
	MgmtAddr string `json:"mgmt_addr"`
	Hostname string `json:"hostname"`
	Version  string `json:"version"`
	Model    string `json:"model"`
	HARole   string `json:"ha_role"`
	Peer     string `json:"peer,omitempty"`
}

type fileFormat struct {
	Devices map[string]Record `json:"devices"`
}

// Inventory is a reloadable, read-only snapshot of the device fleet.
// Other components treat it as immutable for the duration of a single
// upgrade task (spec §4.4) — a Reload mid-task does not retroactively
// change what an in-flight task sees via an already-taken Get result.
type Inventory struct {
	path string

	mu      sync.RWMutex
	devices map[string]Record
}

// New builds an Inventory backed by path and performs an initial load.
// A missing file loads as empty rather than erroring, matching
// device_inventory.py's safe_read_json(default={}) behavior.
func New(path string) (*Inventory, error) {
	inv := &Inventory{path: path}
	if err := inv.Reload(); err != nil {
		return nil, err
	}
	return inv, nil
}

// Reload re-reads the inventory file from disk.
func (inv *Inventory) Reload() error {
	var ff fileFormat
	found, err := atomicstore.ReadJSON(inv.path, &ff)
	if err != nil {
		return err
	}
	if !found || ff.Devices == nil {
		ff.Devices = map[string]Record{}
	}

	inv.mu.Lock()
	inv.devices = ff.Devices
	inv.mu.Unlock()
	return nil
}

// Get returns the record for serial, or (Record{}, false) on miss.
func (inv *Inventory) Get(serial string) (Record, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	r, ok := inv.devices[serial]
	return r, ok
}

// All returns a snapshot copy of every known device record.
func (inv *Inventory) All() map[string]Record {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	out := make(map[string]Record, len(inv.devices))
	for k, v := range inv.devices {
		out[k] = v
	}
	return out
}

// Len returns the number of known devices.
func (inv *Inventory) Len() int {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return len(inv.devices)
}
