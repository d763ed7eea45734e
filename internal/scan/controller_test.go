package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wireless-discovery/wdc/internal/config"
	"github.com/wireless-discovery/wdc/internal/driver"
	"github.com/wireless-discovery/wdc/internal/driver/fake"
	"github.com/wireless-discovery/wdc/internal/registry"
	"github.com/wireless-discovery/wdc/internal/telemetry"
)

// mockEventDriver captures the callbacks of every Start call so tests can
// deliver events for superseded sessions.
type mockEventDriver struct {
	mu        sync.Mutex
	starts    []capturedStart
	startErr  error
	stopCalls int
}

type capturedStart struct {
	onRecord   func(driver.RawRecord)
	onComplete func(error)
}

func (m *mockEventDriver) Info() driver.Info {
	return driver.Info{Kind: driver.KindBLE, Model: "Mock-BLE"}
}

func (m *mockEventDriver) Start(_ context.Context, onRecord func(driver.RawRecord), onComplete func(error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.starts = append(m.starts, capturedStart{onRecord: onRecord, onComplete: onComplete})
	return nil
}

func (m *mockEventDriver) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++
}

func (m *mockEventDriver) start(n int) capturedStart {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts[n]
}

// mockAudit records audit actions for assertions.
type mockAudit struct {
	mu      sync.Mutex
	actions []string
	results []string
}

func (m *mockAudit) LogAction(_ context.Context, action, _ string, result string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, action)
	m.results = append(m.results, result)
}

// publishRecorder records telemetry events the controller publishes.
type publishRecorder struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (p *publishRecorder) PublishInterface(interfaceID string, event telemetry.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	event.Interface = interfaceID
	p.events = append(p.events, event)
	return nil
}

func (p *publishRecorder) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, len(p.events))
	for i, e := range p.events {
		types[i] = e.Type
	}
	return types
}

func bda(last byte) []byte {
	return []byte{0xD4, 0x3B, 0x04, 0x00, 0x00, last}
}

func newTestController(t *testing.T, capacity int) *Controller {
	t.Helper()
	cfg := config.LoadScanBaseline()
	table := registry.NewTable(capacity, registry.RejectNew)
	return NewController("wifi0", table, cfg)
}

func TestBlockingScanPopulatesRegistry(t *testing.T) {
	c := newTestController(t, 20)
	c.SetBlockingDriver(fake.NewBlockingDriver([]driver.RawRecord{
		{Identity: bda(1), SignalDbm: -42, Name: "HomeNet", Channel: 6, Security: "WPA2"},
		{Identity: bda(2), SignalDbm: -71, Channel: 11, Security: "Open"},
	}))
	hub := &publishRecorder{}
	c.SetTelemetryHub(hub)

	err := c.StartScan(context.Background(), ModeBlocking)
	require.NoError(t, err)

	assert.Equal(t, StateComplete, c.State())
	assert.Equal(t, 2, c.Count())
	assert.NoError(t, c.LastError())

	devices := c.Snapshot()
	require.Len(t, devices, 2)
	assert.Equal(t, "HomeNet", devices[0].DisplayName)

	assert.Contains(t, hub.types(), "scanStarted")
	assert.Contains(t, hub.types(), "scanComplete")
}

func TestBlockingScanZeroRecordsIsComplete(t *testing.T) {
	c := newTestController(t, 20)
	c.SetBlockingDriver(fake.NewBlockingDriver(nil))

	err := c.StartScan(context.Background(), ModeBlocking)
	require.NoError(t, err)

	assert.Equal(t, StateComplete, c.State(), "an empty scan is a successful scan")
	assert.Equal(t, 0, c.Count())
}

func TestBlockingScanDriverFailure(t *testing.T) {
	c := newTestController(t, 20)
	d := fake.NewBlockingDriver(nil)
	d.FailWith(errors.New("HOSTED_TRANSPORT_DOWN"))
	c.SetBlockingDriver(d)
	c.SetVendor("esp-hosted")
	hub := &publishRecorder{}
	c.SetTelemetryHub(hub)

	err := c.StartScan(context.Background(), ModeBlocking)
	require.Error(t, err)
	assert.ErrorIs(t, err, driver.ErrUnavailable)

	assert.Equal(t, StateFailed, c.State())
	assert.ErrorIs(t, c.LastError(), driver.ErrUnavailable)
	assert.Contains(t, hub.types(), "scanFailed")
}

func TestBlockingScanDuplicateIdentity(t *testing.T) {
	c := newTestController(t, 20)
	c.SetBlockingDriver(fake.NewBlockingDriver([]driver.RawRecord{
		{Identity: bda(1), SignalDbm: -60},
		{Identity: bda(1), SignalDbm: -45},
	}))

	require.NoError(t, c.StartScan(context.Background(), ModeBlocking))

	devices := c.Snapshot()
	require.Len(t, devices, 1)
	assert.Equal(t, -45, devices[0].SignalDbm)
}

func TestStartScanRejectsConcurrentScan(t *testing.T) {
	c := newTestController(t, 20)
	d := &mockEventDriver{}
	c.SetEventDriver(d)
	audit := &mockAudit{}
	c.SetAuditLogger(audit)

	require.NoError(t, c.StartScan(context.Background(), ModeEventDriven))
	assert.Equal(t, StateScanning, c.State())

	err := c.StartScan(context.Background(), ModeEventDriven)
	assert.ErrorIs(t, err, ErrAlreadyScanning)

	audit.mu.Lock()
	defer audit.mu.Unlock()
	assert.Contains(t, audit.results, "ALREADY_SCANNING")
}

func TestStartScanModeUnsupported(t *testing.T) {
	c := newTestController(t, 20)
	c.SetEventDriver(&mockEventDriver{})

	err := c.StartScan(context.Background(), ModeBlocking)
	assert.ErrorIs(t, err, ErrModeUnsupported)
	assert.Equal(t, StateIdle, c.State())
}

func TestEventScanCapacityScenario(t *testing.T) {
	// 25 unique identities against a 20-entry registry: exactly 20 stored.
	c := newTestController(t, 20)
	d := &mockEventDriver{}
	c.SetEventDriver(d)

	require.NoError(t, c.StartScan(context.Background(), ModeEventDriven))
	cb := d.start(0)

	for i := 0; i < 25; i++ {
		cb.onRecord(driver.RawRecord{Identity: bda(byte(i)), SignalDbm: -50, Name: fmt.Sprintf("dev-%d", i)})
	}
	cb.onComplete(nil)

	assert.Equal(t, StateComplete, c.State())
	assert.Equal(t, 20, c.Count())
	assert.Len(t, c.Snapshot(), 20)
}

func TestEventScanStartRefused(t *testing.T) {
	c := newTestController(t, 20)
	d := &mockEventDriver{startErr: errors.New("BT_STACK_NOT_READY")}
	c.SetEventDriver(d)
	c.SetVendor("esp-hosted")

	err := c.StartScan(context.Background(), ModeEventDriven)
	require.Error(t, err)
	assert.ErrorIs(t, err, driver.ErrUnavailable)
	assert.Equal(t, StateFailed, c.State())
}

func TestEventScanFailureMidScanPreservesPartialResults(t *testing.T) {
	c := newTestController(t, 20)
	d := &mockEventDriver{}
	c.SetEventDriver(d)

	require.NoError(t, c.StartScan(context.Background(), ModeEventDriven))
	cb := d.start(0)

	cb.onRecord(driver.RawRecord{Identity: bda(1), SignalDbm: -50})
	cb.onRecord(driver.RawRecord{Identity: bda(2), SignalDbm: -55})
	cb.onComplete(errors.New("CONTROLLER_BUSY"))

	assert.Equal(t, StateFailed, c.State())
	assert.Equal(t, 2, c.Count(), "partial contents stay inspectable after failure")
}

func TestStaleSessionEventsDiscarded(t *testing.T) {
	c := newTestController(t, 20)
	d := &mockEventDriver{}
	c.SetEventDriver(d)

	// Session A.
	require.NoError(t, c.StartScan(context.Background(), ModeEventDriven))
	sessionA := d.start(0)
	sessionA.onRecord(driver.RawRecord{Identity: bda(1), SignalDbm: -50})

	// Supersede with session B.
	c.StopScan(context.Background())
	require.NoError(t, c.StartScan(context.Background(), ModeEventDriven))
	sessionB := d.start(1)
	sessionB.onRecord(driver.RawRecord{Identity: bda(2), SignalDbm: -60})

	// Late events from session A must not touch session B's registry.
	sessionA.onRecord(driver.RawRecord{Identity: bda(3), SignalDbm: -40})
	sessionA.onComplete(nil)

	assert.Equal(t, StateScanning, c.State(), "stale completion must not end session B")
	assert.Equal(t, 1, c.Count())
	devices := c.Snapshot()
	require.Len(t, devices, 1)
	assert.Equal(t, registry.FormatIdentity(bda(2)), devices[0].Identity)

	sessionB.onComplete(nil)
	assert.Equal(t, StateComplete, c.State())
}

func TestStopScanReArms(t *testing.T) {
	c := newTestController(t, 20)
	d := &mockEventDriver{}
	c.SetEventDriver(d)

	require.NoError(t, c.StartScan(context.Background(), ModeEventDriven))
	cb := d.start(0)
	cb.onRecord(driver.RawRecord{Identity: bda(1), SignalDbm: -50})

	c.StopScan(context.Background())

	assert.Equal(t, StateIdle, c.State())
	d.mu.Lock()
	assert.Equal(t, 1, d.stopCalls)
	d.mu.Unlock()

	// Stopping does not wipe the partial registry; the next start does.
	assert.Equal(t, 1, c.Count())
	require.NoError(t, c.StartScan(context.Background(), ModeEventDriven))
	assert.Equal(t, 0, c.Count())
}

func TestEventScanWindowClosesSession(t *testing.T) {
	cfg := config.LoadScanBaseline()
	cfg.EventScanWindow = 30 * time.Millisecond
	c := NewController("ble0", registry.NewTable(20, registry.RejectNew), cfg)
	d := &mockEventDriver{}
	c.SetEventDriver(d)
	hub := &publishRecorder{}
	c.SetTelemetryHub(hub)

	require.NoError(t, c.StartScan(context.Background(), ModeEventDriven))
	cb := d.start(0)
	cb.onRecord(driver.RawRecord{Identity: bda(1), SignalDbm: -50})

	// The driver never completes; the discovery window must close the session.
	require.Eventually(t, func() bool {
		return c.State() == StateComplete
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, c.Count())
	d.mu.Lock()
	assert.Equal(t, 1, d.stopCalls)
	d.mu.Unlock()
	assert.Contains(t, hub.types(), "scanComplete")

	// A late completion from the closed window is stale.
	cb.onComplete(nil)
	assert.Equal(t, StateComplete, c.State())
}

func TestStopScanWhileIdleIsHarmless(t *testing.T) {
	c := newTestController(t, 20)
	d := &mockEventDriver{}
	c.SetEventDriver(d)

	c.StopScan(context.Background())
	assert.Equal(t, StateIdle, c.State())
	d.mu.Lock()
	assert.Equal(t, 0, d.stopCalls)
	d.mu.Unlock()
}

func TestNewSessionIdPerScan(t *testing.T) {
	c := newTestController(t, 20)
	c.SetBlockingDriver(fake.NewBlockingDriver(nil))

	require.NoError(t, c.StartScan(context.Background(), ModeBlocking))
	first := c.SessionID()
	require.NoError(t, c.StartScan(context.Background(), ModeBlocking))

	assert.Greater(t, c.SessionID(), first)
}

func TestRestartAfterCompleteClearsRegistry(t *testing.T) {
	c := newTestController(t, 20)
	blk := fake.NewBlockingDriver([]driver.RawRecord{
		{Identity: bda(1), SignalDbm: -42, Name: "HomeNet"},
	})
	c.SetBlockingDriver(blk)

	require.NoError(t, c.StartScan(context.Background(), ModeBlocking))
	require.Equal(t, 1, c.Count())

	blk.SetRecords(nil)
	require.NoError(t, c.StartScan(context.Background(), ModeBlocking))
	assert.Equal(t, 0, c.Count(), "registry is cleared on each new session")
}

func TestDescribe(t *testing.T) {
	c := newTestController(t, 20)
	c.SetBlockingDriver(fake.NewBlockingDriver(nil))
	c.SetEventDriver(&mockEventDriver{})

	status := c.Describe()
	assert.Equal(t, "wifi0", status.ID)
	assert.Equal(t, StateIdle, status.State)
	assert.Equal(t, 20, status.Capacity)
	assert.ElementsMatch(t, []Mode{ModeBlocking, ModeEventDriven}, status.Modes)
	assert.Empty(t, status.LastError)
}

func TestDeviceFoundEventsPublished(t *testing.T) {
	c := newTestController(t, 20)
	d := &mockEventDriver{}
	c.SetEventDriver(d)
	hub := &publishRecorder{}
	c.SetTelemetryHub(hub)

	require.NoError(t, c.StartScan(context.Background(), ModeEventDriven))
	cb := d.start(0)

	cb.onRecord(driver.RawRecord{Identity: bda(1), SignalDbm: -50})
	cb.onRecord(driver.RawRecord{Identity: bda(1), SignalDbm: -45}) // update, no new event
	cb.onComplete(nil)

	types := hub.types()
	found := 0
	for _, typ := range types {
		if typ == "deviceFound" {
			found++
		}
	}
	assert.Equal(t, 1, found, "deviceFound fires on insert, not on update")
	assert.Equal(t, "scanComplete", types[len(types)-1])
}
