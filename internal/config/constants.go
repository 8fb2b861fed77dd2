package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 10
	DBMaxIdleConns    = 2
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 30 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Dependency ping timeout for startup and readiness checks
const PingTimeout = 5 * time.Second

// Background job intervals
const (
	HealthReportInterval  = 5 * time.Second
	MirrorCleanupInterval = 10 * time.Minute
)

// Health snapshots outlive a few missed reports before they disappear.
const HealthSnapshotTTL = 30 * time.Second

// Mirror writes are fire-and-forget; each one gets this long.
const MirrorWriteTimeout = 5 * time.Second

// Maximum accepted request body for the HTTP surface.
const MaxBodySize = 256 << 10

// Websocket connection tuning
const (
	WSWriteWait      = 10 * time.Second
	WSPongWait       = 60 * time.Second
	WSPingPeriod     = (WSPongWait * 9) / 10
	WSMaxMessageSize = 64 << 10
	WSSendBuffer     = 256
)
