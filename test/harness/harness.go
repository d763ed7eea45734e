// Package harness provides a unified test harness for API and audit tests.
// Every end-to-end test runs against the same fully-wired system with
// predictable interface IDs and scripted scan data.
package harness

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

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

// AuthSecret signs harness-issued tokens when WithAuth is set.
const AuthSecret = "harness-secret"

// Options configures the test harness.
type Options struct {
	WifiRecords []driver.RawRecord
	BleRecords  []driver.RawRecord
	// BleInterval spaces scripted BLE record delivery so SSE tests can
	// observe the scan in flight.
	BleInterval time.Duration
	WithAuth    bool
	TempDir     string
}

// DefaultOptions returns sensible defaults for testing.
func DefaultOptions() Options {
	return Options{
		WifiRecords: []driver.RawRecord{
			{Identity: []byte{0x3C, 0x71, 0xBF, 0x0A, 0x11, 0x20}, SignalDbm: -42, Name: "lab-ap", Channel: 6, Security: "WPA2"},
			{Identity: []byte{0xF0, 0x9F, 0xC2, 0x00, 0x4E, 0x02}, SignalDbm: -71, Name: "guest", Channel: 11, Security: "open"},
		},
		BleRecords: []driver.RawRecord{
			{Identity: []byte{0xD4, 0x3B, 0x04, 0x7A, 0x9E, 0x01}, SignalDbm: -55, Name: "hr-sensor"},
			{Identity: []byte{0xD4, 0x3B, 0x04, 0x7A, 0x9E, 0x02}, SignalDbm: -63},
		},
	}
}

// Server represents a test server with all components wired.
type Server struct {
	URL          string
	Shutdown     func()
	Manager      *scan.Manager
	TelemetryHub *telemetry.Hub
	AuditLogger  *audit.Logger
	WifiDriver   *fake.BlockingDriver
	BleDriver    *fake.EventDriver
}

// NewServer creates a fully-wired test server.
func NewServer(t *testing.T, opts Options) *Server {
	tempDir := opts.TempDir
	if tempDir == "" {
		tempDir = t.TempDir()
	}

	cfg := config.LoadScanBaseline()

	hub := telemetry.NewHub(cfg)
	t.Cleanup(func() { hub.Stop() })

	auditLogger, err := audit.NewLogger(tempDir)
	if err != nil {
		t.Fatalf("Failed to create audit logger: %v", err)
	}
	t.Cleanup(func() { auditLogger.Close() })

	wifiDriver := fake.NewBlockingDriver(opts.WifiRecords)
	wifi := scan.NewController("wifi0", registry.NewTable(cfg.RegistryCapacity, registry.RejectNew), cfg)
	wifi.SetBlockingDriver(wifiDriver)
	wifi.SetVendor("esp-hosted")
	wifi.SetTelemetryHub(hub)
	wifi.SetAuditLogger(auditLogger)

	bleDriver := fake.NewEventDriver(opts.BleRecords)
	if opts.BleInterval > 0 {
		bleDriver.SetInterval(opts.BleInterval)
	}
	ble := scan.NewController("ble0", registry.NewTable(cfg.RegistryCapacity, registry.RejectNew), cfg)
	ble.SetEventDriver(bleDriver)
	ble.SetVendor("esp-hosted")
	ble.SetTelemetryHub(hub)
	ble.SetAuditLogger(auditLogger)

	manager := scan.NewManager()
	if err := manager.Register(wifi); err != nil {
		t.Fatalf("Failed to register wifi0: %v", err)
	}
	if err := manager.Register(ble); err != nil {
		t.Fatalf("Failed to register ble0: %v", err)
	}

	var apiServer *api.Server
	if opts.WithAuth {
		verifier, err := auth.NewVerifier(auth.VerifierConfig{Algorithm: "HS256", SecretKey: AuthSecret})
		if err != nil {
			t.Fatalf("Failed to create verifier: %v", err)
		}
		apiServer = api.NewServerWithAuth(hub, manager, auth.NewMiddleware(verifier), 30*time.Second, 30*time.Second, 120*time.Second)
	} else {
		apiServer = api.NewServer(hub, manager, 30*time.Second, 30*time.Second, 120*time.Second)
	}

	mux := http.NewServeMux()
	apiServer.RegisterRoutes(mux)
	httpServer := httptest.NewServer(mux)

	return &Server{
		URL:          httpServer.URL,
		Shutdown:     httpServer.Close,
		Manager:      manager,
		TelemetryHub: hub,
		AuditLogger:  auditLogger,
		WifiDriver:   wifiDriver,
		BleDriver:    bleDriver,
	}
}

// MakeToken issues an HS256 token signed with the harness secret.
func MakeToken(t *testing.T, roles, scopes []string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":    "e2e-user",
		"roles":  roles,
		"scopes": scopes,
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(AuthSecret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return signed
}
