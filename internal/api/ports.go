// Package api defines ports (interfaces) for API server dependencies.
package api

import (
	"context"
	"net/http"

	"github.com/wireless-discovery/wdc/internal/scan"
	"github.com/wireless-discovery/wdc/internal/telemetry"
)

// InventoryPort defines the minimal interface the API needs from the
// interface manager.
type InventoryPort interface {
	Get(interfaceID string) (*scan.Controller, error)
	List() *scan.InterfaceList
}

// TelemetryPort defines the minimal interface the API needs from the
// telemetry hub.
type TelemetryPort interface {
	Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// Compile-time assertions for port conformance
var _ InventoryPort = (*scan.Manager)(nil)
var _ TelemetryPort = (*telemetry.Hub)(nil)
