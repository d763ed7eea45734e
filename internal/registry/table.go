package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultCapacity matches the fixed result buffers of the supported radio drivers.
const DefaultCapacity = 20

// CapacityPolicy selects what happens when a new identity arrives at capacity.
type CapacityPolicy int

const (
	// RejectNew drops new identities once the table is full. Recency is not a
	// reliable signal of relevance inside a short scan window, so a full table
	// keeps what it has.
	RejectNew CapacityPolicy = iota

	// EvictOldest replaces the least-recently-seen device with the newcomer.
	// Intended for long-running continuous scanning.
	EvictOldest
)

// String returns the policy name used in config files.
func (p CapacityPolicy) String() string {
	switch p {
	case RejectNew:
		return "reject-new"
	case EvictOldest:
		return "evict-oldest"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy parses a config policy name.
func ParsePolicy(s string) (CapacityPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject-new":
		return RejectNew, nil
	case "evict-oldest":
		return EvictOldest, nil
	default:
		return RejectNew, fmt.Errorf("unknown capacity policy %q", s)
	}
}

// UpsertResult is the per-record outcome of an Upsert call.
type UpsertResult int

const (
	// Inserted means a new identity was added to the table.
	Inserted UpsertResult = iota
	// Updated means an existing record was refreshed in place.
	Updated
	// Rejected means the table was full and the policy dropped the newcomer.
	// Not session-fatal; the scan keeps processing other records.
	Rejected
)

// String returns the result name for logs.
func (r UpsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Observation is one raw sighting of a device, as delivered by a scan driver.
type Observation struct {
	// Identity is the device hardware address (e.g. a 6-byte BDA or BSSID).
	Identity []byte
	// SignalDbm is the received signal strength indicator.
	SignalDbm int
	// Name is the advertised display name, empty when the frame carried none.
	Name string
	// Channel and Security are driver-specific classification metadata,
	// opaque to the registry.
	Channel  int
	Security string
}

// Device is one de-duplicated registry entry.
type Device struct {
	Identity    string    `json:"identity"`
	SignalDbm   int       `json:"signalDbm"`
	DisplayName string    `json:"displayName,omitempty"`
	Channel     int       `json:"channel,omitempty"`
	Security    string    `json:"security,omitempty"`
	FirstSeen   time.Time `json:"firstSeen"`
	LastSeen    time.Time `json:"lastSeen"`
}

// FormatIdentity renders a hardware address in colon-separated hex.
func FormatIdentity(addr []byte) string {
	parts := make([]string, len(addr))
	for i, b := range addr {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":")
}

// Table is a capacity-bounded, de-duplicated device table guarded by a single
// mutex. The lock is held only for the duration of one Upsert/Snapshot/Clear
// call, never across a driver call.
type Table struct {
	mu       sync.RWMutex
	devices  map[string]*Device
	capacity int
	policy   CapacityPolicy
	now      func() time.Time
}

// NewTable creates an empty table with the given capacity and policy.
// A non-positive capacity falls back to DefaultCapacity.
func NewTable(capacity int, policy CapacityPolicy) *Table {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Table{
		devices:  make(map[string]*Device),
		capacity: capacity,
		policy:   policy,
		now:      time.Now,
	}
}

// Clear removes all entries. Safe to call in any state.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.devices = make(map[string]*Device)
}

// Upsert updates the record for obs.Identity in place, or inserts a new one
// if capacity allows. A display name, once stored, is never overwritten or
// cleared by a later observation without one.
func (t *Table) Upsert(obs Observation) UpsertResult {
	identity := FormatIdentity(obs.Identity)

	t.mu.Lock()
	defer t.mu.Unlock()

	ts := t.now()

	if existing, ok := t.devices[identity]; ok {
		existing.SignalDbm = obs.SignalDbm
		existing.Channel = obs.Channel
		existing.Security = obs.Security
		existing.LastSeen = ts
		if existing.DisplayName == "" && obs.Name != "" {
			existing.DisplayName = obs.Name
		}
		return Updated
	}

	if len(t.devices) >= t.capacity {
		if t.policy == RejectNew {
			return Rejected
		}
		t.evictOldestLocked()
	}

	t.devices[identity] = &Device{
		Identity:    identity,
		SignalDbm:   obs.SignalDbm,
		DisplayName: obs.Name,
		Channel:     obs.Channel,
		Security:    obs.Security,
		FirstSeen:   ts,
		LastSeen:    ts,
	}
	return Inserted
}

// evictOldestLocked removes the least-recently-seen device. Caller holds t.mu.
func (t *Table) evictOldestLocked() {
	var oldestID string
	var oldestSeen time.Time
	for id, dev := range t.devices {
		if oldestID == "" || dev.LastSeen.Before(oldestSeen) {
			oldestID = id
			oldestSeen = dev.LastSeen
		}
	}
	if oldestID != "" {
		delete(t.devices, oldestID)
	}
}

// Snapshot returns a point-in-time copy of the table, strongest signal first.
// Ties break on identity so the order is deterministic.
func (t *Table) Snapshot() []Device {
	t.mu.RLock()
	devices := make([]Device, 0, len(t.devices))
	for _, dev := range t.devices {
		devices = append(devices, *dev)
	}
	t.mu.RUnlock()

	sort.Slice(devices, func(i, j int) bool {
		if devices[i].SignalDbm != devices[j].SignalDbm {
			return devices[i].SignalDbm > devices[j].SignalDbm
		}
		return devices[i].Identity < devices[j].Identity
	})

	return devices
}

// Count returns the number of distinct identities currently stored.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.devices)
}

// Capacity returns the fixed capacity the table was created with.
func (t *Table) Capacity() int {
	return t.capacity
}

// Policy returns the capacity policy the table was created with.
func (t *Table) Policy() CapacityPolicy {
	return t.policy
}
