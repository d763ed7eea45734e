package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Load merges defaults from LoadScanBaseline() + env overrides (WDC_*) +
// optional config.json, then validates the result.
func Load() (*ScanConfig, error) {
	config := LoadScanBaseline()

	if err := applyEnvOverrides(config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if _, err := os.Stat("config.json"); err == nil {
		fileConfig, err := loadFromFile("config.json")
		if err != nil {
			return nil, fmt.Errorf("failed to load config.json: %w", err)
		}
		mergeFileConfig(config, fileConfig)
	}

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// applyEnvOverrides applies WDC_* environment variables to the config.
func applyEnvOverrides(config *ScanConfig) error {
	if val := os.Getenv("WDC_REGISTRY_CAPACITY"); val != "" {
		capacity, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid WDC_REGISTRY_CAPACITY %q: %w", val, err)
		}
		config.RegistryCapacity = capacity
	}

	if val := os.Getenv("WDC_CAPACITY_POLICY"); val != "" {
		config.CapacityPolicy = val
	}

	if val := os.Getenv("WDC_BLOCKING_SCAN_TIMEOUT"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			config.BlockingScanTimeout = duration
		}
	}

	if val := os.Getenv("WDC_EVENT_SCAN_WINDOW"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			config.EventScanWindow = duration
		}
	}

	if val := os.Getenv("WDC_EVENT_BUFFER_SIZE"); val != "" {
		size, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid WDC_EVENT_BUFFER_SIZE %q: %w", val, err)
		}
		config.EventBufferSize = size
	}

	if val := os.Getenv("WDC_HEARTBEAT_INTERVAL"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			config.HeartbeatInterval = duration
		}
	}

	if val := os.Getenv("WDC_HEARTBEAT_JITTER"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			config.HeartbeatJitter = duration
		}
	}

	if val := os.Getenv("WDC_AUDIT_LOG_DIR"); val != "" {
		config.AuditLogDir = val
	}

	return nil
}

// fileScanConfig mirrors ScanConfig for JSON loading; durations are strings
// in time.ParseDuration format, absent fields keep the merged value.
type fileScanConfig struct {
	RegistryCapacity    *int    `json:"registryCapacity"`
	CapacityPolicy      *string `json:"capacityPolicy"`
	BlockingScanTimeout *string `json:"blockingScanTimeout"`
	EventScanWindow     *string `json:"eventScanWindow"`
	EventBufferSize     *int    `json:"eventBufferSize"`
	HeartbeatInterval   *string `json:"heartbeatInterval"`
	HeartbeatJitter     *string `json:"heartbeatJitter"`
	AuditLogDir         *string `json:"auditLogDir"`
}

// loadFromFile parses a config.json file.
func loadFromFile(path string) (*fileScanConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var fileConfig fileScanConfig
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return &fileConfig, nil
}

// mergeFileConfig applies present file fields over the current config.
func mergeFileConfig(config *ScanConfig, fileConfig *fileScanConfig) {
	if fileConfig.RegistryCapacity != nil {
		config.RegistryCapacity = *fileConfig.RegistryCapacity
	}
	if fileConfig.CapacityPolicy != nil {
		config.CapacityPolicy = *fileConfig.CapacityPolicy
	}
	if fileConfig.BlockingScanTimeout != nil {
		if duration, err := time.ParseDuration(*fileConfig.BlockingScanTimeout); err == nil {
			config.BlockingScanTimeout = duration
		}
	}
	if fileConfig.EventScanWindow != nil {
		if duration, err := time.ParseDuration(*fileConfig.EventScanWindow); err == nil {
			config.EventScanWindow = duration
		}
	}
	if fileConfig.EventBufferSize != nil {
		config.EventBufferSize = *fileConfig.EventBufferSize
	}
	if fileConfig.HeartbeatInterval != nil {
		if duration, err := time.ParseDuration(*fileConfig.HeartbeatInterval); err == nil {
			config.HeartbeatInterval = duration
		}
	}
	if fileConfig.HeartbeatJitter != nil {
		if duration, err := time.ParseDuration(*fileConfig.HeartbeatJitter); err == nil {
			config.HeartbeatJitter = duration
		}
	}
	if fileConfig.AuditLogDir != nil {
		config.AuditLogDir = *fileConfig.AuditLogDir
	}
}
