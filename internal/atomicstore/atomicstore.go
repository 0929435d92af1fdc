/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package atomicstore implements durable JSON persistence (C1):
// write-temp-then-rename so a concurrent reader always sees either the
// old or the new value, never a partial write, plus directory
// ensure helpers for the work-directory layout in spec.md §6.
//
// No third-party library improves on temp-file-then-rename for this —
// see DESIGN.md's stdlib-justification entry for C1.
package atomicstore

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/natej/panos-upgrade/internal/errs"
)

// WriteJSON marshals value as indented JSON and atomically replaces
// the file at path: it writes to a temp file in path's directory,
// fsyncs it, then renames over path.
func WriteJSON(path string, value any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "atomicstore: ensure dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "atomicstore: create temp in %s", dir)
	}
	tmpPath := tmp.Name()
	// Best-effort cleanup of the temp file if we bail before rename.
	succeeded := false
	defer func() {
		if !succeeded {
			_ = os.Remove(tmpPath)
		}
	}()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "atomicstore: encode %s", path)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "atomicstore: sync %s", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "atomicstore: close %s", tmpPath)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrapf(err, "atomicstore: rename %s -> %s", tmpPath, path)
	}
	succeeded = true
	return nil
}

// ReadJSON unmarshals the file at path into dst. If the file does not
// exist, dst is left untouched (the caller is expected to have set
// dst to its zero/default value already) and ReadJSON returns
// (false, nil). If the file exists but cannot be parsed, it returns a
// CorruptFile error.
func ReadJSON(path string, dst any) (found bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "atomicstore: read %s", path)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return true, errs.Wrap(errs.CorruptFile, "unparseable JSON in "+path, err)
	}
	return true, nil
}

// EnsureDirs creates base and every relative path under it, including
// intermediate directories.
func EnsureDirs(base string, paths ...string) error {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return errors.Wrapf(err, "atomicstore: ensure base %s", base)
	}
	for _, p := range paths {
		full := filepath.Join(base, p)
		if err := os.MkdirAll(full, 0o755); err != nil {
			return errors.Wrapf(err, "atomicstore: ensure dir %s", full)
		}
	}
	return nil
}
