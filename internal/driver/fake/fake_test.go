package fake

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wireless-discovery/wdc/internal/driver"
)

var sampleRecords = []driver.RawRecord{
	{Identity: []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}, SignalDbm: -42, Name: "HomeNet", Channel: 6, Security: "WPA2"},
	{Identity: []byte{0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F}, SignalDbm: -71, Channel: 11, Security: "Open"},
}

func TestBlockingDriverScan(t *testing.T) {
	d := NewBlockingDriver(sampleRecords)

	records, err := d.Scan(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, driver.KindWiFi, d.Info().Kind)
}

func TestBlockingDriverFailure(t *testing.T) {
	d := NewBlockingDriver(sampleRecords)
	d.FailWith(errors.New("HOSTED_TRANSPORT_DOWN"))

	_, err := d.Scan(context.Background())
	require.Error(t, err)
}

func TestBlockingDriverHonorsContext(t *testing.T) {
	d := NewBlockingDriver(sampleRecords)
	d.SetScanTime(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEventDriverDeliversAll(t *testing.T) {
	d := NewEventDriver(sampleRecords)

	var mu sync.Mutex
	var got []driver.RawRecord
	done := make(chan error, 1)

	err := d.Start(context.Background(), func(rec driver.RawRecord) {
		mu.Lock()
		got = append(got, rec)
		mu.Unlock()
	}, func(err error) {
		done <- err
	})
	require.NoError(t, err)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scan did not complete")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, got, 2)
}

func TestEventDriverStartFailure(t *testing.T) {
	d := NewEventDriver(sampleRecords)
	d.FailStartWith(errors.New("BT_STACK_NOT_READY"))

	err := d.Start(context.Background(), func(driver.RawRecord) {}, func(error) {})
	require.Error(t, err)
}

func TestEventDriverStop(t *testing.T) {
	d := NewEventDriver(sampleRecords)
	d.SetInterval(time.Hour) // Never delivers unless stopped.

	done := make(chan error, 1)
	err := d.Start(context.Background(), func(driver.RawRecord) {
		t.Error("no record should be delivered before the interval")
	}, func(err error) {
		done <- err
	})
	require.NoError(t, err)

	d.Stop()
	d.Stop() // Idempotent.

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("stop did not complete the scan")
	}
}

func TestManualEventDriver(t *testing.T) {
	d := NewManualEventDriver()

	var got []driver.RawRecord
	var completeErr error
	completed := false

	err := d.Start(context.Background(), func(rec driver.RawRecord) {
		got = append(got, rec)
	}, func(err error) {
		completed = true
		completeErr = err
	})
	require.NoError(t, err)

	d.Emit(sampleRecords[0])
	d.Emit(sampleRecords[1])
	assert.False(t, completed)

	d.Complete(nil)
	assert.True(t, completed)
	assert.NoError(t, completeErr)
	assert.Len(t, got, 2)
}
