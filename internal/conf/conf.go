package conf

import (
	"google.golang.org/protobuf/types/known/durationpb"
)

// Bootstrap is the root configuration tree loaded at startup.
type Bootstrap struct {
	Server      *Server
	Data        *Data
	Breaker     *Breaker
	Power       *Power
	Shutdown    *Shutdown
	Remediation *Remediation
	Notify      *Notify
	Retention   *Retention
	Log         *Log
}

// Server holds transport configuration.
type Server struct {
	Http *Server_HTTP
}

// Server_HTTP holds the HTTP listener configuration.
type Server_HTTP struct {
	Network string
	Addr    string
	Timeout *durationpb.Duration
}

// Data holds data layer and external system configuration.
type Data struct {
	Database *Data_Database
	Redis    *Data_Redis
	Ups      *Data_UPS
	Docker   *Data_Docker
	Zfs      *Data_ZFS
}

// Data_Database holds the MySQL connection configuration.
type Data_Database struct {
	Driver string
	Source string
}

// Data_Redis holds the Redis connection configuration.
type Data_Redis struct {
	Network      string
	Addr         string
	ReadTimeout  *durationpb.Duration
	WriteTimeout *durationpb.Duration
}

// Data_UPS holds the NUT (Network UPS Tools) upsd endpoint configuration.
type Data_UPS struct {
	Addr    string // host:port of upsd, default 127.0.0.1:3493
	Name    string // UPS name as registered in upsd
	Timeout *durationpb.Duration
}

// Data_Docker holds the Docker Engine API endpoint configuration.
type Data_Docker struct {
	Host    string // unix socket path or tcp address
	Timeout *durationpb.Duration
}

// Data_ZFS holds snapshot tooling configuration.
type Data_ZFS struct {
	SnapshotPrefix string
	Timeout        *durationpb.Duration
}

// Breaker holds default circuit breaker thresholds applied to every
// dependency registered in the breaker registry.
type Breaker struct {
	FailureThreshold int32
	SuccessThreshold int32
	VolumeThreshold  int32
	Timeout          *durationpb.Duration
}

// Power holds power monitor classification thresholds and poll cadence.
type Power struct {
	PollIntervalOnline    *durationpb.Duration
	PollIntervalOnBattery *durationpb.Duration
	LowBatteryPercent     int32
	CriticalRuntime       *durationpb.Duration
}

// Shutdown holds shutdown orchestrator configuration. Enabled is the single
// safety gate: when false every destructive external call becomes a logged
// no-op while state machine and audit records stay identical.
type Shutdown struct {
	Enabled               bool
	NonEssentialWorkloads []string
	TrackedVolumes        []string
	StopTimeout           *durationpb.Duration
	BulkStopTimeout       *durationpb.Duration
	SnapshotTimeout       *durationpb.Duration
}

// Remediation holds remediation engine configuration.
type Remediation struct {
	ExecTimeout    *durationpb.Duration
	CooldownWindow *durationpb.Duration
	CooldownLimit  int32
}

// Notify holds webhook notifier configuration.
type Notify struct {
	Enabled  bool
	Url      string
	Cooldown *durationpb.Duration
}

// Retention holds audit table retention configuration.
type Retention struct {
	MaxAge   *durationpb.Duration
	Schedule string // cron expression with seconds field
}

// Log holds logging configuration.
type Log struct {
	Level      string
	Format     string
	Env        string
	OutputFile string
}
