package config

import (
	"time"
)

// ScanConfig holds the tunable parameters of the discovery core and its
// surrounding service.
type ScanConfig struct {
	// Registry bounds
	RegistryCapacity int
	CapacityPolicy   string // "reject-new" or "evict-oldest"

	// Scan timing
	BlockingScanTimeout time.Duration
	EventScanWindow     time.Duration

	// Telemetry event buffering
	EventBufferSize      int
	EventBufferRetention time.Duration

	// SSE heartbeat
	HeartbeatInterval time.Duration
	HeartbeatJitter   time.Duration

	// HTTP server timeouts
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// Audit
	AuditLogDir string
}

// LoadScanBaseline returns the built-in defaults.
//
// Capacity and scan windows follow the supported radio firmware: 20-entry
// result buffers, a 10 second BLE discovery window, and active Wi-Fi dwell
// times that finish a full sweep well inside 8 seconds.
func LoadScanBaseline() *ScanConfig {
	return &ScanConfig{
		RegistryCapacity: 20,
		CapacityPolicy:   "reject-new",

		BlockingScanTimeout: 8 * time.Second,
		EventScanWindow:     10 * time.Second,

		EventBufferSize:      50,
		EventBufferRetention: 1 * time.Hour,

		HeartbeatInterval: 15 * time.Second,
		HeartbeatJitter:   2 * time.Second,

		HTTPReadTimeout:  30 * time.Second,
		HTTPWriteTimeout: 30 * time.Second,
		HTTPIdleTimeout:  120 * time.Second,

		AuditLogDir: "logs",
	}
}
