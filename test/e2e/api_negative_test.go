package e2e

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/wireless-discovery/wdc/test/harness"
)

func TestE2E_UnknownInterface(t *testing.T) {
	server := harness.NewServer(t, harness.DefaultOptions())
	defer server.Shutdown()

	resp := httpGetWithStatus(t, server.URL+"/api/v1/interfaces/eth0")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	mustHave(t, body, "result", "error")
	mustHave(t, body, "code", "NOT_FOUND")
	if body["correlationId"] == "" {
		t.Error("Expected a correlation ID on error responses")
	}
}

func TestE2E_MalformedScanRequests(t *testing.T) {
	server := harness.NewServer(t, harness.DefaultOptions())
	defer server.Shutdown()

	tests := []struct {
		name       string
		payload    string
		wantStatus int
		wantCode   string
	}{
		{"unknown field", `{"mode":"blocking","channels":[1,6]}`, 400, "BAD_REQUEST"},
		{"trailing garbage", `{"mode":"blocking"} extra`, 400, "BAD_REQUEST"},
		{"unknown mode", `{"mode":"periodic"}`, 400, "MODE_UNSUPPORTED"},
		{"wifi has no event driver", `{"mode":"event"}`, 400, "MODE_UNSUPPORTED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := httpPostWithStatus(t, server.URL+"/api/v1/interfaces/wifi0/scan", tt.payload)
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("Expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}

			var body map[string]interface{}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode: %v", err)
			}
			mustHave(t, body, "code", tt.wantCode)
		})
	}
}

func TestE2E_ConcurrentScanConflict(t *testing.T) {
	opts := harness.DefaultOptions()
	opts.BleInterval = 50 * time.Millisecond
	server := harness.NewServer(t, opts)
	defer server.Shutdown()

	httpPostJSON(t, server.URL+"/api/v1/interfaces/ble0/scan",
		map[string]any{"mode": "event"}, 202)

	resp := httpPostWithStatus(t, server.URL+"/api/v1/interfaces/ble0/scan", `{"mode":"event"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("Expected 409, got %d", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	mustHave(t, body, "code", "ALREADY_SCANNING")
}

func TestE2E_DriverFailureSurfacesNormalizedCode(t *testing.T) {
	server := harness.NewServer(t, harness.DefaultOptions())
	defer server.Shutdown()

	server.WifiDriver.FailWith(errors.New("HOSTED_TRANSPORT_DOWN"))

	resp := httpPostWithStatus(t, server.URL+"/api/v1/interfaces/wifi0/scan", `{"mode":"blocking"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", resp.StatusCode)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	mustHave(t, body, "code", "UNAVAILABLE")

	// The interface reports failed until the next start.
	status := httpGetJSON(t, server.URL+"/api/v1/interfaces/wifi0")
	mustHave(t, status, "data.state", "failed")
}

func TestE2E_AuthEnforced(t *testing.T) {
	opts := harness.DefaultOptions()
	opts.WithAuth = true
	server := harness.NewServer(t, opts)
	defer server.Shutdown()

	// Health stays open.
	resp := httpGetWithStatus(t, server.URL+"/api/v1/health")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected health to be open, got %d", resp.StatusCode)
	}

	// No token: 401.
	resp = httpGetWithStatus(t, server.URL+"/api/v1/interfaces")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without token, got %d", resp.StatusCode)
	}

	// Observer token can read but not start scans.
	observer := harness.MakeToken(t, []string{"observer"}, []string{"read", "telemetry"})
	resp = authedRequest(t, http.MethodGet, server.URL+"/api/v1/interfaces", observer)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for observer read, got %d", resp.StatusCode)
	}

	resp = authedRequest(t, http.MethodPost, server.URL+"/api/v1/interfaces/wifi0/scan", observer)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected 403 for observer scan, got %d", resp.StatusCode)
	}

	// Operator token can start scans.
	operator := harness.MakeToken(t, []string{"operator"}, []string{"read", "control", "telemetry"})
	resp = authedRequest(t, http.MethodPost, server.URL+"/api/v1/interfaces/wifi0/scan", operator)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for operator scan, got %d", resp.StatusCode)
	}
}

func authedRequest(t *testing.T, method, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	return resp
}
