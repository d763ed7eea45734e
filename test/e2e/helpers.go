// Package e2e provides shared helper functions for end-to-end tests.
package e2e

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"testing"
)

func httpGetJSON(t *testing.T, url string) map[string]interface{} {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s returned status %d", url, resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
	return result
}

func httpPostJSON(t *testing.T, url string, payload map[string]any, wantStatus int) map[string]interface{} {
	t.Helper()
	jsonData, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal JSON: %v", err)
	}

	resp, err := http.Post(url, "application/json", strings.NewReader(string(jsonData)))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("POST %s returned status %d, want %d", url, resp.StatusCode, wantStatus)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
	return result
}

func httpGetWithStatus(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	return resp
}

func httpPostWithStatus(t *testing.T, url, payload string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

// mustHave asserts a dotted JSON path resolves to the expected value.
func mustHave(t *testing.T, data map[string]interface{}, path string, expected interface{}) {
	t.Helper()
	actual := getJSONPath(data, path)
	if actual != expected {
		t.Errorf("Expected %s to be %v, got %v", path, expected, actual)
	}
}

func mustHaveNumber(t *testing.T, data map[string]interface{}, path string, expected float64) {
	t.Helper()
	actual := getJSONPath(data, path)
	num, ok := actual.(float64)
	if !ok {
		t.Errorf("Expected %s to be a number, got %T: %v", path, actual, actual)
		return
	}
	if num != expected {
		t.Errorf("Expected %s to be %v, got %v", path, expected, num)
	}
}

// getJSONPath walks a dotted path like "data.devices[0].identity".
func getJSONPath(data map[string]interface{}, path string) interface{} {
	parts := strings.Split(path, ".")
	var current interface{} = data

	for _, part := range parts {
		arrayName := part
		index := -1
		if open := strings.Index(part, "["); open > 0 && strings.HasSuffix(part, "]") {
			arrayName = part[:open]
			idx, err := strconv.Atoi(part[open+1 : len(part)-1])
			if err != nil {
				return nil
			}
			index = idx
		}

		m, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current = m[arrayName]

		if index >= 0 {
			arr, ok := current.([]interface{})
			if !ok || index >= len(arr) {
				return nil
			}
			current = arr[index]
		}
	}

	return current
}
