package fake_test

import (
	"testing"
	"time"

	"github.com/wireless-discovery/wdc/internal/driver"
	"github.com/wireless-discovery/wdc/internal/driver/fake"
	"github.com/wireless-discovery/wdc/internal/drivertest"
)

func conformanceRecords() []driver.RawRecord {
	return []driver.RawRecord{
		{Identity: []byte{0x10, 0x20, 0x30, 0x40, 0x50, 0x60}, SignalDbm: -48, Name: "node-a", Channel: 1, Security: "WPA2"},
		{Identity: []byte{0x10, 0x20, 0x30, 0x40, 0x50, 0x61}, SignalDbm: -66, Name: "node-b", Channel: 6, Security: "open"},
	}
}

func TestBlockingDriverConformance(t *testing.T) {
	drivertest.RunBlockingConformance(t,
		func() driver.BlockingDriver {
			return fake.NewBlockingDriver(conformanceRecords())
		},
		drivertest.Capabilities{MinRecords: 2, MaxScanTime: 2 * time.Second},
	)
}

func TestEventDriverConformance(t *testing.T) {
	drivertest.RunEventConformance(t,
		func() driver.EventDriver {
			return fake.NewEventDriver(conformanceRecords())
		},
		drivertest.Capabilities{MinRecords: 2, MaxScanTime: 2 * time.Second},
	)
}
