package config

import (
	"fmt"

	"github.com/wireless-discovery/wdc/internal/registry"
)

// Validate enforces the configuration constraints.
func Validate(config *ScanConfig) error {
	if config == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateRegistry(config); err != nil {
		return fmt.Errorf("registry validation failed: %w", err)
	}

	if err := validateScanTiming(config); err != nil {
		return fmt.Errorf("scan timing validation failed: %w", err)
	}

	if err := validateTelemetry(config); err != nil {
		return fmt.Errorf("telemetry validation failed: %w", err)
	}

	return nil
}

// validateRegistry validates registry bounds and policy.
func validateRegistry(config *ScanConfig) error {
	if config.RegistryCapacity <= 0 {
		return fmt.Errorf("registry capacity must be positive, got %d", config.RegistryCapacity)
	}

	if _, err := registry.ParsePolicy(config.CapacityPolicy); err != nil {
		return err
	}

	return nil
}

// validateScanTiming validates scan timing parameters.
func validateScanTiming(config *ScanConfig) error {
	if config.BlockingScanTimeout <= 0 {
		return fmt.Errorf("blocking scan timeout must be positive, got %v", config.BlockingScanTimeout)
	}

	if config.EventScanWindow <= 0 {
		return fmt.Errorf("event scan window must be positive, got %v", config.EventScanWindow)
	}

	return nil
}

// validateTelemetry validates event buffer and heartbeat parameters.
func validateTelemetry(config *ScanConfig) error {
	if config.EventBufferSize <= 0 {
		return fmt.Errorf("event buffer size must be positive, got %d", config.EventBufferSize)
	}

	if config.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %v", config.HeartbeatInterval)
	}

	if config.HeartbeatJitter < 0 {
		return fmt.Errorf("heartbeat jitter must be non-negative, got %v", config.HeartbeatJitter)
	}

	// Jitter above half the interval defeats its purpose.
	if config.HeartbeatJitter > config.HeartbeatInterval/2 {
		return fmt.Errorf("heartbeat jitter %v exceeds 50%% of interval %v", config.HeartbeatJitter, config.HeartbeatInterval)
	}

	return nil
}
