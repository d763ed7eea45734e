package api

import (
	"errors"
	"net/http"

	"github.com/wireless-discovery/wdc/internal/driver"
	"github.com/wireless-discovery/wdc/internal/scan"
)

// WriteDomainError maps a controller or driver error onto the envelope format
// and HTTP status code.
func WriteDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		WriteSuccess(w, nil)
		return
	}

	var vendorErr *driver.VendorError
	if errors.As(err, &vendorErr) {
		code, statusCode := mapDriverError(vendorErr.Code)
		WriteError(w, statusCode, code, errorMessage(vendorErr.Code), vendorErr.Details)
		return
	}

	switch {
	case errors.Is(err, scan.ErrAlreadyScanning):
		WriteError(w, http.StatusConflict, "ALREADY_SCANNING",
			"A scan is already in progress on this interface", nil)
	case errors.Is(err, scan.ErrModeUnsupported):
		WriteError(w, http.StatusBadRequest, "MODE_UNSUPPORTED",
			"The interface does not support the requested scan mode", nil)
	case errors.Is(err, scan.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "Interface not found", nil)
	case errors.Is(err, driver.ErrInvalidParameter):
		WriteError(w, http.StatusBadRequest, "INVALID_PARAMETER",
			errorMessage(driver.ErrInvalidParameter), nil)
	case errors.Is(err, driver.ErrBusy):
		WriteError(w, http.StatusServiceUnavailable, "BUSY",
			errorMessage(driver.ErrBusy), nil)
	case errors.Is(err, driver.ErrUnavailable):
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE",
			errorMessage(driver.ErrUnavailable), nil)
	default:
		WriteError(w, http.StatusInternalServerError, "INTERNAL",
			"Internal server error", map[string]interface{}{"original": err.Error()})
	}
}

// mapDriverError maps driver sentinel errors to API error codes and HTTP
// status codes.
func mapDriverError(driverErr error) (string, int) {
	switch {
	case errors.Is(driverErr, driver.ErrInvalidParameter):
		return "INVALID_PARAMETER", http.StatusBadRequest
	case errors.Is(driverErr, driver.ErrBusy):
		return "BUSY", http.StatusServiceUnavailable
	case errors.Is(driverErr, driver.ErrUnavailable):
		return "UNAVAILABLE", http.StatusServiceUnavailable
	default:
		return "INTERNAL", http.StatusInternalServerError
	}
}

// errorMessage returns a user-facing message for a driver sentinel.
func errorMessage(code error) string {
	switch {
	case errors.Is(code, driver.ErrInvalidParameter):
		return "Parameter value is invalid for this driver"
	case errors.Is(code, driver.ErrBusy):
		return "Driver is busy, please retry with backoff"
	case errors.Is(code, driver.ErrUnavailable):
		return "Driver transport is temporarily unavailable"
	default:
		return "Internal server error"
	}
}
