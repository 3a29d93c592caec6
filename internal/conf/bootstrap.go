// Package conf provides configuration management using Viper.
// It supports loading configuration from YAML files and environment variables,
// with CLI flag overrides.
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"google.golang.org/protobuf/types/known/durationpb"
)

// NewBootstrap creates and initializes a Bootstrap configuration.
// It loads configuration from the specified config file path, applies defaults,
// and allows overrides from environment variables prefixed with LABSENTRY_.
//
// Configuration priority: CLI flags > Environment variables > Config file > Defaults
//
// Required environment variables:
//   - MYSQL_DSN or LABSENTRY_DATA_DATABASE_SOURCE: MySQL connection string
func NewBootstrap(configPath string) (*Bootstrap, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Enable environment variable support with LABSENTRY_ prefix
	v.SetEnvPrefix("LABSENTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Allow direct environment variable names (without LABSENTRY_ prefix)
	// for required or commonly overridden fields
	_ = v.BindEnv("data.database.source", "MYSQL_DSN", "LABSENTRY_DATA_DATABASE_SOURCE")
	_ = v.BindEnv("data.redis.addr", "LABSENTRY_DATA_REDIS_ADDR")
	_ = v.BindEnv("data.ups.addr", "UPSD_ADDR", "LABSENTRY_DATA_UPS_ADDR")
	_ = v.BindEnv("shutdown.enabled", "LABSENTRY_SHUTDOWN_ENABLED")
	_ = v.BindEnv("notify.url", "WEBHOOK_URL", "LABSENTRY_NOTIFY_URL")

	// Load configuration file
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// If config file is specified but not found, return error
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	// Parse configuration into Bootstrap structure
	bc := &Bootstrap{
		Server: &Server{
			Http: &Server_HTTP{
				Network: v.GetString("server.http.network"),
				Addr:    v.GetString("server.http.addr"),
				Timeout: durationpb.New(v.GetDuration("server.http.timeout")),
			},
		},
		Data: &Data{
			Database: &Data_Database{
				Driver: v.GetString("data.database.driver"),
				Source: v.GetString("data.database.source"),
			},
			Redis: &Data_Redis{
				Network:      v.GetString("data.redis.network"),
				Addr:         v.GetString("data.redis.addr"),
				ReadTimeout:  durationpb.New(v.GetDuration("data.redis.read_timeout")),
				WriteTimeout: durationpb.New(v.GetDuration("data.redis.write_timeout")),
			},
			Ups: &Data_UPS{
				Addr:    v.GetString("data.ups.addr"),
				Name:    v.GetString("data.ups.name"),
				Timeout: durationpb.New(v.GetDuration("data.ups.timeout")),
			},
			Docker: &Data_Docker{
				Host:    v.GetString("data.docker.host"),
				Timeout: durationpb.New(v.GetDuration("data.docker.timeout")),
			},
			Zfs: &Data_ZFS{
				SnapshotPrefix: v.GetString("data.zfs.snapshot_prefix"),
				Timeout:        durationpb.New(v.GetDuration("data.zfs.timeout")),
			},
		},
		Breaker: &Breaker{
			FailureThreshold: v.GetInt32("breaker.failure_threshold"),
			SuccessThreshold: v.GetInt32("breaker.success_threshold"),
			VolumeThreshold:  v.GetInt32("breaker.volume_threshold"),
			Timeout:          durationpb.New(v.GetDuration("breaker.timeout")),
		},
		Power: &Power{
			PollIntervalOnline:    durationpb.New(v.GetDuration("power.poll_interval_online")),
			PollIntervalOnBattery: durationpb.New(v.GetDuration("power.poll_interval_on_battery")),
			LowBatteryPercent:     v.GetInt32("power.low_battery_percent"),
			CriticalRuntime:       durationpb.New(v.GetDuration("power.critical_runtime")),
		},
		Shutdown: &Shutdown{
			Enabled:               v.GetBool("shutdown.enabled"),
			NonEssentialWorkloads: v.GetStringSlice("shutdown.non_essential_workloads"),
			TrackedVolumes:        v.GetStringSlice("shutdown.tracked_volumes"),
			StopTimeout:           durationpb.New(v.GetDuration("shutdown.stop_timeout")),
			BulkStopTimeout:       durationpb.New(v.GetDuration("shutdown.bulk_stop_timeout")),
			SnapshotTimeout:       durationpb.New(v.GetDuration("shutdown.snapshot_timeout")),
		},
		Remediation: &Remediation{
			ExecTimeout:    durationpb.New(v.GetDuration("remediation.exec_timeout")),
			CooldownWindow: durationpb.New(v.GetDuration("remediation.cooldown_window")),
			CooldownLimit:  v.GetInt32("remediation.cooldown_limit"),
		},
		Notify: &Notify{
			Enabled:  v.GetBool("notify.enabled"),
			Url:      v.GetString("notify.url"),
			Cooldown: durationpb.New(v.GetDuration("notify.cooldown")),
		},
		Retention: &Retention{
			MaxAge:   durationpb.New(v.GetDuration("retention.max_age")),
			Schedule: v.GetString("retention.schedule"),
		},
		Log: &Log{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Env:        v.GetString("log.env"),
			OutputFile: v.GetString("log.output_file"),
		},
	}

	// Validate required fields
	if err := Validate(bc); err != nil {
		return nil, err
	}

	return bc, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http.network", "tcp")
	v.SetDefault("server.http.addr", ":8080")
	v.SetDefault("server.http.timeout", 30*time.Second)

	// Data defaults
	v.SetDefault("data.database.driver", "mysql")
	// Note: data.database.source (MYSQL_DSN) is required from environment

	v.SetDefault("data.redis.network", "tcp")
	v.SetDefault("data.redis.addr", "127.0.0.1:6379")
	v.SetDefault("data.redis.read_timeout", 200*time.Millisecond)
	v.SetDefault("data.redis.write_timeout", 200*time.Millisecond)

	v.SetDefault("data.ups.addr", "127.0.0.1:3493")
	v.SetDefault("data.ups.name", "ups")
	v.SetDefault("data.ups.timeout", 5*time.Second)

	v.SetDefault("data.docker.host", "unix:///var/run/docker.sock")
	v.SetDefault("data.docker.timeout", 30*time.Second)

	v.SetDefault("data.zfs.snapshot_prefix", "labsentry")
	v.SetDefault("data.zfs.timeout", 60*time.Second)

	// Breaker defaults
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.success_threshold", 2)
	v.SetDefault("breaker.volume_threshold", 10)
	v.SetDefault("breaker.timeout", 60*time.Second)

	// Power monitor defaults
	v.SetDefault("power.poll_interval_online", 60*time.Second)
	v.SetDefault("power.poll_interval_on_battery", 10*time.Second)
	v.SetDefault("power.low_battery_percent", 25)
	v.SetDefault("power.critical_runtime", 10*time.Minute)

	// Shutdown defaults: disabled until explicitly armed
	v.SetDefault("shutdown.enabled", false)
	v.SetDefault("shutdown.non_essential_workloads", []string{})
	v.SetDefault("shutdown.tracked_volumes", []string{})
	v.SetDefault("shutdown.stop_timeout", 30*time.Second)
	v.SetDefault("shutdown.bulk_stop_timeout", 2*time.Minute)
	v.SetDefault("shutdown.snapshot_timeout", 60*time.Second)

	// Remediation defaults
	v.SetDefault("remediation.exec_timeout", 60*time.Second)
	v.SetDefault("remediation.cooldown_window", 10*time.Minute)
	v.SetDefault("remediation.cooldown_limit", 3)

	// Notify defaults
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.cooldown", 5*time.Minute)

	// Retention defaults: prune at 03:30 every night, keep 90 days
	v.SetDefault("retention.max_age", 90*24*time.Hour)
	v.SetDefault("retention.schedule", "0 30 3 * * *")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that all required configuration fields are present and valid.
// It returns an error listing all missing required fields.
func Validate(bc *Bootstrap) error {
	var missingFields []string

	// Check required database configuration
	if bc.Data == nil || bc.Data.Database == nil || bc.Data.Database.Source == "" {
		missingFields = append(missingFields, "data.database.source (MYSQL_DSN)")
	}

	// A webhook notifier without a URL cannot deliver anything
	if bc.Notify != nil && bc.Notify.Enabled && bc.Notify.Url == "" {
		missingFields = append(missingFields, "notify.url (WEBHOOK_URL)")
	}

	// An armed shutdown orchestrator with nothing to act on is almost
	// certainly a configuration mistake
	if bc.Shutdown != nil && bc.Shutdown.Enabled &&
		len(bc.Shutdown.NonEssentialWorkloads) == 0 && len(bc.Shutdown.TrackedVolumes) == 0 {
		missingFields = append(missingFields, "shutdown.non_essential_workloads or shutdown.tracked_volumes")
	}

	if len(missingFields) > 0 {
		return fmt.Errorf("missing required configuration fields: %s", strings.Join(missingFields, ", "))
	}

	return nil
}
