/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package logging wraps klog's structured, leveled logging behind a
// small interface so call sites take a *Logger as an explicit
// constructor dependency instead of reaching for a package-level
// global — klog itself is process-wide (it has no per-instance sink),
// but nothing in internal/ ever calls klog directly; only this package
// and main do. Grounded on the structured klog.InfoS/ErrorS usage in
// the teacher's apiserver/pkg/handlers/cd-handlers and cmd/main.go.
package logging

import (
	"fmt"

	"k8s.io/klog/v2"
)

// Logger is a structured, leveled logger with a fixed set of
// key/value fields attached (e.g. "serial", "job_id").
type Logger struct {
	fields []any
}

// New returns a root logger with no attached fields.
func New() *Logger {
	return &Logger{}
}

// With returns a derived logger with additional key/value fields
// merged in; keys should be constant strings at call sites.
func (l *Logger) With(kvs ...any) *Logger {
	merged := make([]any, 0, len(l.fields)+len(kvs))
	merged = append(merged, l.fields...)
	merged = append(merged, kvs...)
	return &Logger{fields: merged}
}

func (l *Logger) merge(kvs []any) []any {
	if len(l.fields) == 0 {
		return kvs
	}
	out := make([]any, 0, len(l.fields)+len(kvs))
	out = append(out, l.fields...)
	out = append(out, kvs...)
	return out
}

// Infow logs an informational structured message.
func (l *Logger) Infow(msg string, kvs ...any) {
	klog.InfoSDepth(1, msg, l.merge(kvs)...)
}

// Warnw logs a warning structured message.
func (l *Logger) Warnw(msg string, kvs ...any) {
	klog.V(0).InfoSDepth(1, "WARN "+msg, l.merge(kvs)...)
}

// Errorw logs an error structured message.
func (l *Logger) Errorw(err error, msg string, kvs ...any) {
	klog.ErrorSDepth(1, err, msg, l.merge(kvs)...)
}

// Debugw logs at verbosity level 2, the repo's convention for
// per-poll-tick and per-field detail that would otherwise flood
// normal operation logs.
func (l *Logger) Debugw(msg string, kvs ...any) {
	if klog.V(2).Enabled() {
		klog.InfoSDepth(1, msg, l.merge(kvs)...)
	}
}

// Sync flushes any buffered log lines; call before process exit.
func Sync() {
	klog.Flush()
}

// String renders the logger's attached fields as a single string,
// useful in tests that assert on log content without a klog sink.
func (l *Logger) String() string {
	return fmt.Sprint(l.fields...)
}
