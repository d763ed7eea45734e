package driver

import (
	"context"
)

// Kind names the radio technology behind a driver.
type Kind string

const (
	KindWiFi Kind = "wifi"
	KindBLE  Kind = "ble"
)

// RawRecord is one scan result as delivered by a radio driver, before
// de-duplication.
type RawRecord struct {
	// Identity is the hardware address of the observed entity.
	Identity []byte

	// SignalDbm is the received signal strength.
	SignalDbm int

	// Name is the advertised name, empty when the radio saw none.
	Name string

	// Channel and Security are driver-specific metadata passed through
	// opaquely to the registry.
	Channel  int
	Security string
}

// Info describes a driver to the interface inventory.
type Info struct {
	Kind  Kind   `json:"kind"`
	Model string `json:"model"`
}

// BlockingDriver is a radio whose scan primitive suspends the caller and
// returns the whole result batch at once.
type BlockingDriver interface {
	// Info returns static driver metadata.
	Info() Info

	// Scan performs one full scan pass. It blocks until the radio reports
	// completion or ctx is done, and returns every record the radio saw.
	Scan(ctx context.Context) ([]RawRecord, error)
}

// EventDriver is a radio that streams scan results through callbacks from its
// own execution context.
type EventDriver interface {
	// Info returns static driver metadata.
	Info() Info

	// Start begins an asynchronous scan. onRecord is invoked once per
	// sighting, possibly from a different goroutine than the caller's;
	// onComplete is invoked exactly once when the scan window closes or the
	// radio fails mid-scan. Start returns an error only when the radio
	// refused to begin scanning.
	Start(ctx context.Context, onRecord func(RawRecord), onComplete func(error)) error

	// Stop requests cancellation of an in-flight scan. Best effort: a small
	// number of records may still arrive after Stop returns.
	Stop()
}
