package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wireless-discovery/wdc/internal/auth"
	"github.com/wireless-discovery/wdc/internal/scan"
)

// RegisterRoutes registers all v1 endpoints.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	apiV1 := "/api/v1"

	// Health endpoint (no auth required)
	mux.HandleFunc(apiV1+"/health", s.handleHealth)

	// If no auth middleware, register routes without protection
	if s.authMiddleware == nil {
		mux.HandleFunc(apiV1+"/capabilities", s.handleCapabilities)
		mux.HandleFunc(apiV1+"/interfaces", s.handleInterfaces)
		mux.HandleFunc(apiV1+"/interfaces/", s.handleInterfaceEndpoints)
		mux.HandleFunc(apiV1+"/telemetry", s.handleTelemetry)
		return
	}

	// Capabilities and inventory (observer access)
	mux.HandleFunc(apiV1+"/capabilities", s.authMiddleware.RequireAuth(s.authMiddleware.RequireScope(auth.ScopeRead)(s.handleCapabilities)))
	mux.HandleFunc(apiV1+"/interfaces", s.authMiddleware.RequireAuth(s.authMiddleware.RequireScope(auth.ScopeRead)(s.handleInterfaces)))

	// Interface-specific endpoints (scan control, devices, individual interface)
	mux.HandleFunc(apiV1+"/interfaces/", s.handleInterfaceEndpoints)

	// Telemetry endpoint (observer access)
	mux.HandleFunc(apiV1+"/telemetry", s.authMiddleware.RequireAuth(s.authMiddleware.RequireScope(auth.ScopeTelemetry)(s.handleTelemetry)))
}

// handleCapabilities handles GET /capabilities
func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET method is allowed", nil)
		return
	}

	capabilities := map[string]interface{}{
		"telemetry": []string{"sse"},
		"commands":  []string{"http-json"},
		"scanModes": []string{string(scan.ModeBlocking), string(scan.ModeEventDriven)},
		"version":   "1.0.0",
	}

	WriteSuccess(w, capabilities)
}

// handleInterfaces handles GET /interfaces
func (s *Server) handleInterfaces(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET method is allowed", nil)
		return
	}

	if s.inventory == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE",
			"Interface inventory not available", nil)
		return
	}

	WriteSuccess(w, s.inventory.List())
}

// handleInterfaceEndpoints routes all interface-specific endpoints based on
// the path suffix, applying the scope each operation requires.
func (s *Server) handleInterfaceEndpoints(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	interfaceID := extractInterfaceID(path)
	if interfaceID == "" {
		WriteError(w, http.StatusBadRequest, "INVALID_PARAMETER",
			"Interface ID is required", nil)
		return
	}

	var handler http.HandlerFunc
	var requiredScope string

	switch {
	case strings.HasSuffix(path, "/scan/stop"):
		handler = s.handleStopScan
		requiredScope = auth.ScopeControl
	case strings.HasSuffix(path, "/scan"):
		handler = s.handleStartScan
		requiredScope = auth.ScopeControl
	case strings.HasSuffix(path, "/devices"):
		handler = s.handleDevices
		requiredScope = auth.ScopeRead
	default:
		handler = s.handleInterfaceByID
		requiredScope = auth.ScopeRead
	}

	if s.authMiddleware != nil {
		s.authMiddleware.RequireAuth(s.authMiddleware.RequireScope(requiredScope)(handler))(w, r)
		return
	}
	handler(w, r)
}

// handleInterfaceByID handles GET /interfaces/{id}
func (s *Server) handleInterfaceByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET method is allowed", nil)
		return
	}

	controller, ok := s.lookupController(w, r)
	if !ok {
		return
	}

	WriteSuccess(w, controller.Describe())
}

// handleStartScan handles POST /interfaces/{id}/scan
func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only POST method is allowed", nil)
		return
	}

	// Parse request (strict JSON); an empty body selects blocking mode.
	var req struct {
		Mode string `json:"mode"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && err != io.EOF {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Malformed JSON or unknown fields", nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Trailing data after JSON object", nil)
		return
	}

	mode := scan.ModeBlocking
	if req.Mode != "" {
		mode = scan.Mode(req.Mode)
	}

	controller, ok := s.lookupController(w, r)
	if !ok {
		return
	}

	if err := controller.StartScan(r.Context(), mode); err != nil {
		WriteDomainError(w, err)
		return
	}

	if mode == scan.ModeBlocking {
		// Blocking scans finish before StartScan returns; hand back the batch.
		WriteSuccess(w, map[string]interface{}{
			"state":     controller.State(),
			"sessionId": controller.SessionID(),
			"count":     controller.Count(),
			"devices":   controller.Snapshot(),
		})
		return
	}

	WriteAccepted(w, map[string]interface{}{
		"state":     controller.State(),
		"sessionId": controller.SessionID(),
	})
}

// handleStopScan handles POST /interfaces/{id}/scan/stop
func (s *Server) handleStopScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only POST method is allowed", nil)
		return
	}

	controller, ok := s.lookupController(w, r)
	if !ok {
		return
	}

	controller.StopScan(r.Context())
	WriteSuccess(w, map[string]interface{}{
		"state":     controller.State(),
		"sessionId": controller.SessionID(),
	})
}

// handleDevices handles GET /interfaces/{id}/devices
func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET method is allowed", nil)
		return
	}

	controller, ok := s.lookupController(w, r)
	if !ok {
		return
	}

	WriteSuccess(w, map[string]interface{}{
		"state":     controller.State(),
		"sessionId": controller.SessionID(),
		"count":     controller.Count(),
		"devices":   controller.Snapshot(),
	})
}

// handleTelemetry handles GET /telemetry (SSE)
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET method is allowed", nil)
		return
	}

	if s.telemetryHub == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE",
			"Telemetry service not available", nil)
		return
	}

	if err := s.telemetryHub.Subscribe(r.Context(), w, r); err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL",
			"Failed to subscribe to telemetry stream", nil)
		return
	}
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			"Only GET method is allowed", nil)
		return
	}

	uptime := 0.0
	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime).Seconds()
	}

	subsystems := map[string]bool{
		"telemetry": s.telemetryHub != nil,
		"inventory": s.inventory != nil,
	}

	overallStatus := "ok"
	if !subsystems["telemetry"] || !subsystems["inventory"] {
		overallStatus = "degraded"
	}

	health := map[string]interface{}{
		"status":     overallStatus,
		"uptimeSec":  uptime,
		"version":    "1.0.0",
		"subsystems": subsystems,
	}

	if overallStatus == "ok" {
		WriteSuccess(w, health)
		return
	}
	WriteError(w, http.StatusServiceUnavailable, "SERVICE_DEGRADED",
		"One or more subsystems are unavailable", health)
}

// lookupController resolves the interface id in the request path, writing the
// error response itself when the interface is missing.
func (s *Server) lookupController(w http.ResponseWriter, r *http.Request) (*scan.Controller, bool) {
	if s.inventory == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE",
			"Interface inventory not available", nil)
		return nil, false
	}

	interfaceID := extractInterfaceID(r.URL.Path)
	controller, err := s.inventory.Get(interfaceID)
	if err != nil {
		if errors.Is(err, scan.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", "Interface not found", nil)
		} else {
			WriteDomainError(w, err)
		}
		return nil, false
	}
	return controller, true
}

// extractInterfaceID extracts the interface ID from a URL path.
// Handles paths like /api/v1/interfaces/{id}/scan, /api/v1/interfaces/{id}/devices, etc.
func extractInterfaceID(path string) string {
	prefix := "/api/v1/interfaces/"
	if !strings.HasPrefix(path, prefix) {
		return ""
	}

	remaining := path[len(prefix):]
	parts := strings.Split(remaining, "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}
