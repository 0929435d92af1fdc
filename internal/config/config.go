/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

// Package config loads the orchestrator's configuration (C11): defaults,
// overlaid with an optional YAML file, overlaid with environment
// variables. Grounded on the teacher's common/pkg/config, which wraps
// Viper behind dotted-key getInt/getString/getBool/getFloat/getStrings
// accessors (see common/pkg/config/config_test.go); this package keeps
// that same Viper-backed, dotted-key loading style but exposes a typed
// Config struct over the §6 configuration surface instead of ad hoc
// accessor calls scattered through the business logic.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/natej/panos-upgrade/internal/errs"
)

// Config is the fully-resolved, typed configuration for one orchestrator
// instance.
type Config struct {
	WorkDir string

	Workers struct {
		Max       int
		QueueSize int
	}

	Panorama struct {
		RateLimit int // requests per minute; <=0 means unlimited
	}

	Firewall struct {
		Timeout                time.Duration
		SoftwareCheckTimeout   time.Duration
		SoftwareInfoTimeout    time.Duration
		DownloadTimeout        time.Duration
		UpgradeTimeout         time.Duration
		MaxRebootPollInterval  time.Duration
	}

	Discovery struct {
		RetryAttempts int
	}

	Validation struct {
		TCPSessionMargin float64
		RouteMargin      float64
		ArpMargin        float64
		MinDiskGB        float64
		RetryAttempts    int
		RetryDelay       time.Duration
		RetryBackoff     float64
	}

	Reboot struct {
		InitialDelay        time.Duration
		ReadyTimeout        time.Duration
		StabilizationDelay  time.Duration
	}

	JobStallTimeout       time.Duration
	DownloadRetryAttempts int
}

// setDefaults mirrors original_source/constants.py's DEFAULT_* values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("workers.max", 5)
	v.SetDefault("workers.queue_size", 1000)

	v.SetDefault("panorama.rate_limit", 10)

	v.SetDefault("firewall.timeout_seconds", 300)
	v.SetDefault("firewall.software_check_timeout_seconds", 90)
	v.SetDefault("firewall.software_info_timeout_seconds", 120)
	v.SetDefault("firewall.download_timeout_seconds", 300)
	v.SetDefault("firewall.upgrade_timeout_seconds", 300)
	v.SetDefault("firewall.max_reboot_poll_interval_seconds", 300)

	v.SetDefault("discovery.retry_attempts", 3)

	v.SetDefault("validation.tcp_session_margin", 5.0)
	v.SetDefault("validation.route_margin", 0.0)
	v.SetDefault("validation.arp_margin", 0.0)
	v.SetDefault("validation.min_disk_gb", 5.0)
	v.SetDefault("validation.retry_attempts", 3)
	v.SetDefault("validation.retry_delay_seconds", 5)
	v.SetDefault("validation.retry_backoff", 2.0)

	v.SetDefault("reboot_initial_delay_seconds", 60)
	v.SetDefault("reboot_ready_timeout_seconds", 1800)
	v.SetDefault("reboot_stabilization_delay_seconds", 30)

	v.SetDefault("job_stall_timeout_seconds", 600)
	v.SetDefault("download_retry_attempts", 3)
}

// maxWorkersCap mirrors constants.py's MAX_WORKERS ceiling: workers.max is
// clamped rather than rejected, since an operator-supplied value larger
// than the ceiling is a misconfiguration, not a fatal error.
const maxWorkersCap = 50

// Load reads defaults, then path (if non-empty), then environment
// variables prefixed PANUPGRADE_ (dots become underscores, e.g.
// PANUPGRADE_WORKERS_MAX), and returns the resolved Config.
//
// workDir is always taken from the caller (resolved by the CLI), never
// from the file or environment, matching the teacher's convention of
// resolving the work/base directory before config load rather than
// letting config mutate it.
func Load(path string, workDir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("panupgrade")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errs.Wrap(errs.CorruptFile, "read config file "+path, err)
		}
	}

	cfg := &Config{WorkDir: workDir}

	cfg.Workers.Max = v.GetInt("workers.max")
	if cfg.Workers.Max <= 0 {
		cfg.Workers.Max = 5
	}
	if cfg.Workers.Max > maxWorkersCap {
		cfg.Workers.Max = maxWorkersCap
	}
	cfg.Workers.QueueSize = v.GetInt("workers.queue_size")

	cfg.Panorama.RateLimit = v.GetInt("panorama.rate_limit")

	cfg.Firewall.Timeout = v.GetDuration("firewall.timeout_seconds") * time.Second
	cfg.Firewall.SoftwareCheckTimeout = seconds(v, "firewall.software_check_timeout_seconds")
	cfg.Firewall.SoftwareInfoTimeout = seconds(v, "firewall.software_info_timeout_seconds")
	cfg.Firewall.DownloadTimeout = seconds(v, "firewall.download_timeout_seconds")
	cfg.Firewall.UpgradeTimeout = seconds(v, "firewall.upgrade_timeout_seconds")
	cfg.Firewall.MaxRebootPollInterval = seconds(v, "firewall.max_reboot_poll_interval_seconds")

	cfg.Discovery.RetryAttempts = v.GetInt("discovery.retry_attempts")

	cfg.Validation.TCPSessionMargin = v.GetFloat64("validation.tcp_session_margin")
	cfg.Validation.RouteMargin = v.GetFloat64("validation.route_margin")
	cfg.Validation.ArpMargin = v.GetFloat64("validation.arp_margin")
	cfg.Validation.MinDiskGB = v.GetFloat64("validation.min_disk_gb")
	cfg.Validation.RetryAttempts = v.GetInt("validation.retry_attempts")
	cfg.Validation.RetryDelay = seconds(v, "validation.retry_delay_seconds")
	cfg.Validation.RetryBackoff = v.GetFloat64("validation.retry_backoff")

	cfg.Reboot.InitialDelay = seconds(v, "reboot_initial_delay_seconds")
	cfg.Reboot.ReadyTimeout = seconds(v, "reboot_ready_timeout_seconds")
	cfg.Reboot.StabilizationDelay = seconds(v, "reboot_stabilization_delay_seconds")

	cfg.JobStallTimeout = seconds(v, "job_stall_timeout_seconds")
	cfg.DownloadRetryAttempts = v.GetInt("download_retry_attempts")

	return cfg, nil
}

// seconds reads an integer-seconds key as a time.Duration. Viper's
// GetDuration parses bare integers as nanoseconds, not seconds, so
// plain-integer config values (the format every key in this file uses)
// need the explicit multiply rather than GetDuration directly.
func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt(key)) * time.Second
}
