// Table-driven normalization of vendor scan errors to container codes.
// Unknown tokens map to INTERNAL; no heuristics.
package driver

import (
	"errors"
	"fmt"
	"strings"
)

// Normalized container errors.
var (
	ErrInvalidParameter = errors.New("INVALID_PARAMETER")
	ErrBusy             = errors.New("BUSY")
	ErrUnavailable      = errors.New("UNAVAILABLE")
	ErrInternal         = errors.New("INTERNAL")
)

// VendorMap defines the error token mapping for a specific vendor.
type VendorMap struct {
	Invalid     []string // Tokens that map to INVALID_PARAMETER
	Busy        []string // Tokens that map to BUSY
	Unavailable []string // Tokens that map to UNAVAILABLE
}

// VendorErrorMappings contains the deterministic error mapping tables for all
// supported radio stacks.
//
// How to extend safely:
//  1. Add a vendor entry with specific token arrays.
//  2. Test each token against its exact normalized code.
//  3. Unknown tokens automatically map to INTERNAL.
//  4. Use NormalizeVendorErrorWithVendor(err, payload, "vendorID") for
//     specific vendors; "generic" covers the rest.
var VendorErrorMappings = map[string]VendorMap{
	// ESP-HOSTED style co-processor stacks (Wi-Fi remote + Bluedroid remote).
	"esp-hosted": {
		Invalid: []string{
			"ESP_ERR_INVALID_ARG",
			"INVALID_SCAN_PARAM",
			"BAD_CHANNEL",
			"INVALID_DURATION",
		},
		Busy: []string{
			"ESP_ERR_WIFI_STATE",
			"SCAN_IN_PROGRESS",
			"DISCOVERY_IN_PROGRESS",
			"CONTROLLER_BUSY",
		},
		Unavailable: []string{
			"ESP_ERR_WIFI_NOT_INIT",
			"ESP_ERR_WIFI_NOT_STARTED",
			"HOSTED_TRANSPORT_DOWN",
			"COPROCESSOR_OFFLINE",
			"BT_STACK_NOT_READY",
			"NOT_READY",
		},
	},
	"generic": {
		Invalid: []string{
			"INVALID_PARAMETER",
			"INVALID_ARG",
			"OUT_OF_RANGE",
			"BAD_VALUE",
		},
		Busy: []string{
			"BUSY",
			"IN_PROGRESS",
			"RETRY",
			"RATE_LIMIT",
		},
		Unavailable: []string{
			"UNAVAILABLE",
			"OFFLINE",
			"NOT_READY",
			"NOT_INIT",
			"TRANSPORT_DOWN",
		},
	},
}

// VendorError wraps a vendor error with its normalized code and the opaque
// diagnostic payload the radio returned.
type VendorError struct {
	Code     error       // Normalized container code
	Original error       // Vendor error
	Details  interface{} // Vendor payload (opaque)
}

func (e *VendorError) Error() string {
	return fmt.Sprintf("%v (vendor: %v)", e.Code, e.Original)
}

func (e *VendorError) Unwrap() error {
	return e.Code
}

// NormalizeVendorError maps a vendor error using the generic mapping table.
func NormalizeVendorError(vendorErr error, vendorPayload interface{}) error {
	return NormalizeVendorErrorWithVendor(vendorErr, vendorPayload, "generic")
}

// NormalizeVendorErrorWithVendor maps a vendor error using a specific vendor's
// mapping table, preserving the original error and payload for diagnostics.
func NormalizeVendorErrorWithVendor(vendorErr error, vendorPayload interface{}, vendorID string) error {
	if vendorErr == nil {
		return nil
	}

	return &VendorError{
		Code:     mapVendorErrorToCode(vendorErr.Error(), vendorID),
		Original: vendorErr,
		Details:  vendorPayload,
	}
}

// mapVendorErrorToCode resolves a vendor error message to a normalized code.
func mapVendorErrorToCode(msg, vendorID string) error {
	vendorMap, exists := VendorErrorMappings[vendorID]
	if !exists {
		vendorMap = VendorErrorMappings["generic"]
	}

	upperMsg := strings.ToUpper(msg)

	for _, token := range vendorMap.Invalid {
		if strings.Contains(upperMsg, strings.ToUpper(token)) {
			return ErrInvalidParameter
		}
	}

	for _, token := range vendorMap.Busy {
		if strings.Contains(upperMsg, strings.ToUpper(token)) {
			return ErrBusy
		}
	}

	for _, token := range vendorMap.Unavailable {
		if strings.Contains(upperMsg, strings.ToUpper(token)) {
			return ErrUnavailable
		}
	}

	return ErrInternal
}
