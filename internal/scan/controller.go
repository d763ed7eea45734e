package scan

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wireless-discovery/wdc/internal/config"
	"github.com/wireless-discovery/wdc/internal/driver"
	"github.com/wireless-discovery/wdc/internal/registry"
	"github.com/wireless-discovery/wdc/internal/telemetry"
)

// State is the lifecycle state of one scan controller.
type State string

const (
	StateIdle     State = "idle"
	StateScanning State = "scanning"
	StateComplete State = "complete"
	StateFailed   State = "failed"
)

// Mode selects which scan primitive StartScan drives.
type Mode string

const (
	// ModeBlocking suspends the caller until the driver returns its batch.
	ModeBlocking Mode = "blocking"
	// ModeEventDriven returns once the driver accepted the start request;
	// records arrive via callback.
	ModeEventDriven Mode = "event"
)

// Controller-level errors returned to the caller.
var (
	// ErrAlreadyScanning means a scan is in progress; wait for it to finish
	// or call StopScan first.
	ErrAlreadyScanning = errors.New("ALREADY_SCANNING")
	// ErrModeUnsupported means the interface has no driver for the requested
	// mode.
	ErrModeUnsupported = errors.New("MODE_UNSUPPORTED")
)

// AuditLogger interface for writing audit records.
type AuditLogger interface {
	LogAction(ctx context.Context, action string, interfaceID string, result string, latency time.Duration)
}

// TelemetryPublisher is the minimal hub interface the controller publishes to.
type TelemetryPublisher interface {
	PublishInterface(interfaceID string, event telemetry.Event) error
}

// Status is a read-only view of a controller for inventory listings.
type Status struct {
	ID        string      `json:"id"`
	Kind      driver.Kind `json:"kind"`
	Model     string      `json:"model"`
	Modes     []Mode      `json:"modes"`
	State     State       `json:"state"`
	SessionID uint64      `json:"sessionId"`
	Count     int         `json:"count"`
	Capacity  int         `json:"capacity"`
	LastError string      `json:"lastError,omitempty"`
}

// Controller drives one radio interface's scan lifecycle and owns its
// discovery registry.
type Controller struct {
	id       string
	table    *registry.Table
	cfg      *config.ScanConfig
	vendorID string

	blocking driver.BlockingDriver
	event    driver.EventDriver

	hub   TelemetryPublisher
	audit AuditLogger
	log   zerolog.Logger

	// mu guards the lifecycle fields below. It is never held across a driver
	// call; the registry has its own lock.
	mu      sync.Mutex
	state   State
	session uint64
	lastErr error
}

// NewController creates an idle controller for the named interface.
func NewController(id string, table *registry.Table, cfg *config.ScanConfig) *Controller {
	return &Controller{
		id:       id,
		table:    table,
		cfg:      cfg,
		vendorID: "generic",
		state:    StateIdle,
		log:      zerolog.Nop(),
	}
}

// SetBlockingDriver attaches the blocking scan driver.
func (c *Controller) SetBlockingDriver(d driver.BlockingDriver) {
	c.blocking = d
}

// SetEventDriver attaches the event-driven scan driver.
func (c *Controller) SetEventDriver(d driver.EventDriver) {
	c.event = d
}

// SetVendor selects the vendor error mapping table for this interface.
func (c *Controller) SetVendor(vendorID string) {
	c.vendorID = vendorID
}

// SetTelemetryHub attaches the telemetry hub.
func (c *Controller) SetTelemetryHub(hub TelemetryPublisher) {
	c.hub = hub
}

// SetAuditLogger attaches the audit logger.
func (c *Controller) SetAuditLogger(logger AuditLogger) {
	c.audit = logger
}

// SetLogger attaches a structured logger.
func (c *Controller) SetLogger(log zerolog.Logger) {
	c.log = log.With().Str("component", "scan").Str("interface", c.id).Logger()
}

// ID returns the interface id this controller serves.
func (c *Controller) ID() string {
	return c.id
}

// StartScan begins a new scan session in the given mode.
//
// Returns ErrAlreadyScanning when a scan is in progress, ErrModeUnsupported
// when the interface has no driver for the mode, and a normalized driver
// error when the radio refused to scan. In blocking mode the call suspends
// until the driver's batch is processed; in event mode it returns once the
// driver accepted the start request.
func (c *Controller) StartScan(ctx context.Context, mode Mode) error {
	start := time.Now()

	c.mu.Lock()
	if c.state == StateScanning {
		c.mu.Unlock()
		c.logAudit(ctx, "startScan", "ALREADY_SCANNING", time.Since(start))
		return ErrAlreadyScanning
	}

	switch mode {
	case ModeBlocking:
		if c.blocking == nil {
			c.mu.Unlock()
			c.logAudit(ctx, "startScan", "MODE_UNSUPPORTED", time.Since(start))
			return ErrModeUnsupported
		}
	case ModeEventDriven:
		if c.event == nil {
			c.mu.Unlock()
			c.logAudit(ctx, "startScan", "MODE_UNSUPPORTED", time.Since(start))
			return ErrModeUnsupported
		}
	default:
		c.mu.Unlock()
		c.logAudit(ctx, "startScan", "MODE_UNSUPPORTED", time.Since(start))
		return ErrModeUnsupported
	}

	c.session++
	sid := c.session
	c.state = StateScanning
	c.lastErr = nil
	c.table.Clear()
	c.mu.Unlock()

	c.log.Info().Uint64("session", sid).Str("mode", string(mode)).Msg("scan started")
	c.publishEvent("scanStarted", map[string]interface{}{
		"sessionId": sid,
		"mode":      string(mode),
		"ts":        time.Now().UTC().Format(time.RFC3339),
	})

	if mode == ModeBlocking {
		return c.runBlocking(ctx, sid, start)
	}
	return c.startEventDriven(ctx, sid, start)
}

// runBlocking drives one synchronous scan pass on the caller's goroutine.
func (c *Controller) runBlocking(ctx context.Context, sid uint64, start time.Time) error {
	timeout := c.cfg.BlockingScanTimeout
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	records, err := c.blocking.Scan(ctx)
	latency := time.Since(start)

	c.mu.Lock()
	if c.session != sid {
		// A stop or a newer scan superseded this one while the driver was
		// blocked; its results belong to a dead session.
		c.mu.Unlock()
		c.log.Debug().Uint64("session", sid).Msg("discarding results from superseded blocking scan")
		return nil
	}

	if err != nil {
		normalizedErr := driver.NormalizeVendorErrorWithVendor(err, nil, c.vendorID)
		c.state = StateFailed
		c.lastErr = normalizedErr
		c.mu.Unlock()

		c.logAudit(ctx, "startScan", "ERROR", latency)
		c.log.Warn().Err(normalizedErr).Uint64("session", sid).Msg("blocking scan failed")
		c.publishEvent("scanFailed", map[string]interface{}{
			"sessionId": sid,
			"code":      normalizedErr.Error(),
			"ts":        time.Now().UTC().Format(time.RFC3339),
		})
		return normalizedErr
	}

	rejected := 0
	for _, rec := range records {
		if c.feedLocked(rec) == registry.Rejected {
			rejected++
		}
	}
	c.state = StateComplete
	count := c.table.Count()
	c.mu.Unlock()

	c.logAudit(ctx, "startScan", "SUCCESS", latency)
	c.log.Info().Uint64("session", sid).Int("found", count).Int("rejected", rejected).Msg("blocking scan complete")
	c.publishEvent("scanComplete", map[string]interface{}{
		"sessionId": sid,
		"count":     count,
		"rejected":  rejected,
		"ts":        time.Now().UTC().Format(time.RFC3339),
	})
	return nil
}

// startEventDriven issues the asynchronous start request and returns.
func (c *Controller) startEventDriven(ctx context.Context, sid uint64, start time.Time) error {
	err := c.event.Start(ctx,
		func(rec driver.RawRecord) { c.onRecord(sid, rec) },
		func(scanErr error) { c.onComplete(sid, scanErr) },
	)
	latency := time.Since(start)

	if err != nil {
		normalizedErr := driver.NormalizeVendorErrorWithVendor(err, nil, c.vendorID)
		c.mu.Lock()
		if c.session == sid {
			c.state = StateFailed
			c.lastErr = normalizedErr
		}
		c.mu.Unlock()

		c.logAudit(ctx, "startScan", "ERROR", latency)
		c.log.Warn().Err(normalizedErr).Uint64("session", sid).Msg("event scan start refused")
		c.publishEvent("scanFailed", map[string]interface{}{
			"sessionId": sid,
			"code":      normalizedErr.Error(),
			"ts":        time.Now().UTC().Format(time.RFC3339),
		})
		return normalizedErr
	}

	c.logAudit(ctx, "startScan", "SUCCESS", latency)

	// The discovery window bounds the session: drivers that never signal
	// completion on their own are closed out with whatever was found.
	go func() {
		timer := time.NewTimer(c.cfg.EventScanWindow)
		defer timer.Stop()
		<-timer.C
		c.windowExpired(sid)
	}()
	return nil
}

// windowExpired ends an event session still scanning when its discovery
// window elapses. Superseded sessions are ignored.
func (c *Controller) windowExpired(sid uint64) {
	c.mu.Lock()
	if c.session != sid || c.state != StateScanning {
		c.mu.Unlock()
		return
	}
	c.state = StateComplete
	count := c.table.Count()
	c.mu.Unlock()

	if c.event != nil {
		c.event.Stop()
	}

	c.log.Info().Uint64("session", sid).Int("found", count).Msg("discovery window elapsed")
	c.publishEvent("scanComplete", map[string]interface{}{
		"sessionId": sid,
		"count":     count,
		"reason":    "window",
		"ts":        time.Now().UTC().Format(time.RFC3339),
	})
}

// onRecord handles one driver callback. Records tagged with a superseded
// session id are discarded silently; that is the guard against late events
// from a cancelled or replaced scan.
func (c *Controller) onRecord(sid uint64, rec driver.RawRecord) {
	c.mu.Lock()
	if c.session != sid || c.state != StateScanning {
		c.mu.Unlock()
		c.log.Debug().
			Uint64("eventSession", sid).
			Str("identity", registry.FormatIdentity(rec.Identity)).
			Msg("discarding stale scan event")
		return
	}

	result := c.feedLocked(rec)
	count := c.table.Count()
	c.mu.Unlock()

	if result == registry.Rejected {
		c.log.Debug().
			Str("identity", registry.FormatIdentity(rec.Identity)).
			Msg("registry full, record rejected")
		return
	}

	if result == registry.Inserted {
		c.publishEvent("deviceFound", map[string]interface{}{
			"sessionId": sid,
			"identity":  registry.FormatIdentity(rec.Identity),
			"signalDbm": rec.SignalDbm,
			"count":     count,
			"ts":        time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// onComplete handles the driver's scan-complete callback.
func (c *Controller) onComplete(sid uint64, scanErr error) {
	c.mu.Lock()
	if c.session != sid || c.state != StateScanning {
		c.mu.Unlock()
		c.log.Debug().Uint64("eventSession", sid).Msg("discarding stale scan completion")
		return
	}

	if scanErr != nil {
		normalizedErr := driver.NormalizeVendorErrorWithVendor(scanErr, nil, c.vendorID)
		c.state = StateFailed
		c.lastErr = normalizedErr
		c.mu.Unlock()

		c.log.Warn().Err(normalizedErr).Uint64("session", sid).Msg("event scan failed")
		c.publishEvent("scanFailed", map[string]interface{}{
			"sessionId": sid,
			"code":      normalizedErr.Error(),
			"ts":        time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	c.state = StateComplete
	count := c.table.Count()
	c.mu.Unlock()

	c.log.Info().Uint64("session", sid).Int("found", count).Msg("event scan complete")
	c.publishEvent("scanComplete", map[string]interface{}{
		"sessionId": sid,
		"count":     count,
		"ts":        time.Now().UTC().Format(time.RFC3339),
	})
}

// feedLocked translates one raw record into a registry upsert. Caller holds
// c.mu; the registry takes its own lock per call.
func (c *Controller) feedLocked(rec driver.RawRecord) registry.UpsertResult {
	return c.table.Upsert(registry.Observation{
		Identity:  rec.Identity,
		SignalDbm: rec.SignalDbm,
		Name:      rec.Name,
		Channel:   rec.Channel,
		Security:  rec.Security,
	})
}

// StopScan requests best-effort cancellation and re-arms the controller.
//
// The session id is bumped so any in-flight events from the old session are
// discarded. The registry keeps its partial contents until the next StartScan
// clears it.
func (c *Controller) StopScan(ctx context.Context) {
	start := time.Now()

	c.mu.Lock()
	wasScanning := c.state == StateScanning
	c.session++
	c.state = StateIdle
	c.lastErr = nil
	c.mu.Unlock()

	if wasScanning && c.event != nil {
		c.event.Stop()
	}

	c.logAudit(ctx, "stopScan", "SUCCESS", time.Since(start))
	c.log.Info().Bool("wasScanning", wasScanning).Msg("scan stopped")
	c.publishEvent("scanStopped", map[string]interface{}{
		"ts": time.Now().UTC().Format(time.RFC3339),
	})
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the currently active session id.
func (c *Controller) SessionID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// LastError returns the normalized error of the most recent failure, nil
// while Idle, Scanning, or Complete.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Snapshot delegates to the registry.
func (c *Controller) Snapshot() []registry.Device {
	return c.table.Snapshot()
}

// Count delegates to the registry.
func (c *Controller) Count() int {
	return c.table.Count()
}

// Describe returns the inventory view of this controller.
func (c *Controller) Describe() Status {
	c.mu.Lock()
	state := c.state
	session := c.session
	lastErr := c.lastErr
	c.mu.Unlock()

	status := Status{
		ID:        c.id,
		State:     state,
		SessionID: session,
		Count:     c.table.Count(),
		Capacity:  c.table.Capacity(),
	}
	if lastErr != nil {
		status.LastError = lastErr.Error()
	}
	if c.blocking != nil {
		info := c.blocking.Info()
		status.Kind = info.Kind
		status.Model = info.Model
		status.Modes = append(status.Modes, ModeBlocking)
	}
	if c.event != nil {
		info := c.event.Info()
		status.Kind = info.Kind
		status.Model = info.Model
		status.Modes = append(status.Modes, ModeEventDriven)
	}
	return status
}

// publishEvent publishes one telemetry event, skipping silently without a hub.
func (c *Controller) publishEvent(eventType string, data map[string]interface{}) {
	if c.hub == nil {
		return
	}

	event := telemetry.Event{
		Type: eventType,
		Data: data,
	}
	if err := c.hub.PublishInterface(c.id, event); err != nil {
		c.log.Warn().Err(err).Str("event", eventType).Msg("telemetry publish failed")
	}
}

// logAudit logs an audit record for a controller action.
func (c *Controller) logAudit(ctx context.Context, action, result string, latency time.Duration) {
	if c.audit != nil {
		c.audit.LogAction(ctx, action, c.id, result, latency)
	}
}
