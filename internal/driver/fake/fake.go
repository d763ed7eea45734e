// Package fake provides fake scan driver implementations for testing and
// demo wiring.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/wireless-discovery/wdc/internal/driver"
)

// BlockingDriver implements driver.BlockingDriver with scripted results.
type BlockingDriver struct {
	mu       sync.Mutex
	info     driver.Info
	records  []driver.RawRecord
	scanTime time.Duration
	failWith error
}

// NewBlockingDriver creates a fake blocking Wi-Fi driver returning the given
// records from every scan.
func NewBlockingDriver(records []driver.RawRecord) *BlockingDriver {
	return &BlockingDriver{
		info:    driver.Info{Kind: driver.KindWiFi, Model: "Fake-WiFi-Remote"},
		records: records,
	}
}

// SetRecords replaces the scripted scan results.
func (d *BlockingDriver) SetRecords(records []driver.RawRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = records
}

// SetScanTime makes Scan take the given duration, for cancellation tests.
func (d *BlockingDriver) SetScanTime(dur time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scanTime = dur
}

// FailWith makes every subsequent Scan return the given vendor error.
func (d *BlockingDriver) FailWith(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failWith = err
}

// Info returns static driver metadata.
func (d *BlockingDriver) Info() driver.Info {
	return d.info
}

// Scan returns the scripted batch after the configured scan time.
func (d *BlockingDriver) Scan(ctx context.Context) ([]driver.RawRecord, error) {
	d.mu.Lock()
	scanTime := d.scanTime
	failWith := d.failWith
	records := make([]driver.RawRecord, len(d.records))
	copy(records, d.records)
	d.mu.Unlock()

	if scanTime > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(scanTime):
		}
	}

	if failWith != nil {
		return nil, failWith
	}

	return records, nil
}

// EventDriver implements driver.EventDriver. In scripted mode Start delivers
// the configured records from its own goroutine; in manual mode the test
// drives delivery through Emit and Complete.
type EventDriver struct {
	mu         sync.Mutex
	info       driver.Info
	records    []driver.RawRecord
	interval   time.Duration
	startErr   error
	scanErr    error
	manual     bool
	onRecord   func(driver.RawRecord)
	onComplete func(error)
	stop       chan struct{}
	stopOnce   *sync.Once
}

// NewEventDriver creates a fake event-driven BLE driver delivering the given
// records.
func NewEventDriver(records []driver.RawRecord) *EventDriver {
	return &EventDriver{
		info:    driver.Info{Kind: driver.KindBLE, Model: "Fake-BLE-Remote"},
		records: records,
	}
}

// NewManualEventDriver creates a fake event driver whose delivery is driven
// entirely by the test via Emit and Complete.
func NewManualEventDriver() *EventDriver {
	return &EventDriver{
		info:   driver.Info{Kind: driver.KindBLE, Model: "Fake-BLE-Remote"},
		manual: true,
	}
}

// SetInterval spaces scripted record delivery by the given duration.
func (d *EventDriver) SetInterval(dur time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.interval = dur
}

// FailStartWith makes the next Start call return the given vendor error.
func (d *EventDriver) FailStartWith(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.startErr = err
}

// FailScanWith makes the scripted scan complete with the given vendor error.
func (d *EventDriver) FailScanWith(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scanErr = err
}

// Info returns static driver metadata.
func (d *EventDriver) Info() driver.Info {
	return d.info
}

// Start begins delivering scripted records, or captures the callbacks in
// manual mode.
func (d *EventDriver) Start(ctx context.Context, onRecord func(driver.RawRecord), onComplete func(error)) error {
	d.mu.Lock()
	if d.startErr != nil {
		err := d.startErr
		d.mu.Unlock()
		return err
	}

	d.onRecord = onRecord
	d.onComplete = onComplete
	d.stop = make(chan struct{})
	d.stopOnce = &sync.Once{}
	stop := d.stop
	interval := d.interval
	scanErr := d.scanErr
	records := make([]driver.RawRecord, len(d.records))
	copy(records, d.records)
	manual := d.manual
	d.mu.Unlock()

	if manual {
		return nil
	}

	go func() {
		for _, rec := range records {
			if interval > 0 {
				select {
				case <-ctx.Done():
					onComplete(ctx.Err())
					return
				case <-stop:
					onComplete(nil)
					return
				case <-time.After(interval):
				}
			} else {
				select {
				case <-ctx.Done():
					onComplete(ctx.Err())
					return
				case <-stop:
					onComplete(nil)
					return
				default:
				}
			}
			onRecord(rec)
		}
		onComplete(scanErr)
	}()

	return nil
}

// Stop requests cancellation of the scripted delivery goroutine.
func (d *EventDriver) Stop() {
	d.mu.Lock()
	stop := d.stop
	once := d.stopOnce
	d.mu.Unlock()

	if stop != nil && once != nil {
		once.Do(func() { close(stop) })
	}
}

// Emit delivers one record through the captured callback. Manual mode only.
func (d *EventDriver) Emit(rec driver.RawRecord) {
	d.mu.Lock()
	onRecord := d.onRecord
	d.mu.Unlock()

	if onRecord != nil {
		onRecord(rec)
	}
}

// Complete fires the captured completion callback. Manual mode only.
func (d *EventDriver) Complete(err error) {
	d.mu.Lock()
	onComplete := d.onComplete
	d.mu.Unlock()

	if onComplete != nil {
		onComplete(err)
	}
}

// Compile-time conformance checks.
var (
	_ driver.BlockingDriver = (*BlockingDriver)(nil)
	_ driver.EventDriver    = (*EventDriver)(nil)
)
