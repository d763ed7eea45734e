// Package main implements the Wireless Discovery Container entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/wireless-discovery/wdc/internal/api"
	"github.com/wireless-discovery/wdc/internal/audit"
	"github.com/wireless-discovery/wdc/internal/auth"
	"github.com/wireless-discovery/wdc/internal/config"
	"github.com/wireless-discovery/wdc/internal/driver"
	"github.com/wireless-discovery/wdc/internal/driver/fake"
	"github.com/wireless-discovery/wdc/internal/registry"
	"github.com/wireless-discovery/wdc/internal/scan"
	"github.com/wireless-discovery/wdc/internal/telemetry"
)

const (
	DefaultPort = "8000"
	DefaultAddr = ":" + DefaultPort
	Version     = "1.0.0"
)

func main() {
	log := newLogger()
	log.Info().Str("version", Version).Msg("starting wireless discovery container")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	log.Info().
		Int("registryCapacity", cfg.RegistryCapacity).
		Str("capacityPolicy", cfg.CapacityPolicy).
		Msg("configuration loaded")

	telemetryHub := telemetry.NewHub(cfg)
	telemetryHub.SetLogger(log)

	auditLogger, err := audit.NewLogger(cfg.AuditLogDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize audit logger")
	}

	manager := scan.NewManager()
	if err := registerInterfaces(manager, cfg, telemetryHub, auditLogger, log); err != nil {
		log.Fatal().Err(err).Msg("failed to register interfaces")
	}

	server := buildServer(telemetryHub, manager, cfg, log)
	server.SetLogger(log)

	addr := serverAddress()
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(addr); err != nil {
			serverErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	log.Info().Str("addr", addr).Msg("wireless discovery container started")

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		log.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
	case err := <-serverErr:
		log.Error().Err(err).Msg("server error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	telemetryHub.Stop()
	if err := auditLogger.Close(); err != nil {
		log.Warn().Err(err).Msg("error closing audit logger")
	}
	if err := server.Stop(ctx); err != nil {
		log.Warn().Err(err).Msg("error stopping HTTP server")
	}

	log.Info().Msg("shutdown complete")
}

// registerInterfaces wires one controller per configured radio interface.
//
// Until a hardware transport lands this registers the scripted drivers, which
// keeps the full northbound surface exercisable on a dev machine.
func registerInterfaces(manager *scan.Manager, cfg *config.ScanConfig, hub *telemetry.Hub, auditLogger *audit.Logger, log zerolog.Logger) error {
	policy, err := registry.ParsePolicy(cfg.CapacityPolicy)
	if err != nil {
		return err
	}

	wifi := scan.NewController("wifi0", registry.NewTable(cfg.RegistryCapacity, policy), cfg)
	wifi.SetBlockingDriver(fake.NewBlockingDriver(demoWifiRecords()))
	wifi.SetVendor("esp-hosted")
	wifi.SetTelemetryHub(hub)
	wifi.SetAuditLogger(auditLogger)
	wifi.SetLogger(log)
	if err := manager.Register(wifi); err != nil {
		return err
	}

	ble := scan.NewController("ble0", registry.NewTable(cfg.RegistryCapacity, policy), cfg)
	ble.SetEventDriver(fake.NewEventDriver(demoBleRecords()))
	ble.SetVendor("esp-hosted")
	ble.SetTelemetryHub(hub)
	ble.SetAuditLogger(auditLogger)
	ble.SetLogger(log)
	return manager.Register(ble)
}

// buildServer enables JWT auth when a verifier secret is configured.
func buildServer(hub *telemetry.Hub, manager *scan.Manager, cfg *config.ScanConfig, log zerolog.Logger) *api.Server {
	secret := os.Getenv("WDC_AUTH_SECRET")
	if secret == "" {
		log.Warn().Msg("WDC_AUTH_SECRET not set, API authentication disabled")
		return api.NewServer(hub, manager, cfg.HTTPReadTimeout, cfg.HTTPWriteTimeout, cfg.HTTPIdleTimeout)
	}

	verifier, err := auth.NewVerifier(auth.VerifierConfig{Algorithm: "HS256", SecretKey: secret})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build token verifier")
	}
	return api.NewServerWithAuth(hub, manager, auth.NewMiddleware(verifier), cfg.HTTPReadTimeout, cfg.HTTPWriteTimeout, cfg.HTTPIdleTimeout)
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(os.Getenv("WDC_LOG_LEVEL")); err == nil && parsed != zerolog.NoLevel {
		level = parsed
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

// serverAddress returns the listen address from environment or default.
func serverAddress() string {
	if addr := os.Getenv("WDC_ADDR"); addr != "" {
		return addr
	}
	return DefaultAddr
}

func demoWifiRecords() []driver.RawRecord {
	return []driver.RawRecord{
		{Identity: []byte{0x3C, 0x71, 0xBF, 0x0A, 0x11, 0x20}, SignalDbm: -42, Name: "lab-ap", Channel: 6, Security: "WPA2"},
		{Identity: []byte{0x3C, 0x71, 0xBF, 0x0A, 0x11, 0x21}, SignalDbm: -58, Name: "lab-ap-5g", Channel: 36, Security: "WPA3"},
		{Identity: []byte{0xF0, 0x9F, 0xC2, 0x00, 0x4E, 0x02}, SignalDbm: -71, Name: "guest", Channel: 11, Security: "open"},
	}
}

func demoBleRecords() []driver.RawRecord {
	return []driver.RawRecord{
		{Identity: []byte{0xD4, 0x3B, 0x04, 0x7A, 0x9E, 0x01}, SignalDbm: -55, Name: "hr-sensor"},
		{Identity: []byte{0xD4, 0x3B, 0x04, 0x7A, 0x9E, 0x02}, SignalDbm: -63},
		{Identity: []byte{0xC8, 0x12, 0xAA, 0x30, 0x01, 0x7F}, SignalDbm: -80, Name: "beacon-7f"},
	}
}
