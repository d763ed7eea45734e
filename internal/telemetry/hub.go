package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wireless-discovery/wdc/internal/config"
)

// Event represents a telemetry event with SSE formatting.
type Event struct {
	ID        int64                  `json:"id,omitempty"`
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Interface string                 `json:"interface,omitempty"`
}

// Client represents an SSE client connection.
type Client struct {
	ID        string
	Writer    http.ResponseWriter
	Request   *http.Request
	Context   context.Context
	Cancel    context.CancelFunc
	LastID    int64
	Interface string
	Events    chan Event
	once      sync.Once
	mu        sync.Mutex // Protect Writer access
}

// Hub manages SSE telemetry distribution with per-interface buffering.
//
// LOCK ORDERING:
// 1. h.mu (Hub's RWMutex) - protects clients, eventIDs, buffers maps
// 2. EventBuffer.mu (per-buffer mutex) - protects individual buffer state
// 3. Client.once (sync.Once) - ensures single channel close
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	eventIDs map[string]*int64 // Monotonic event IDs per interface

	// Per-interface event buffers
	buffers map[string]*EventBuffer

	// Configuration
	config *config.ScanConfig

	log zerolog.Logger

	// Heartbeat ticker
	heartbeatTicker *time.Ticker
	stopHeartbeat   chan bool

	// Synchronization for shutdown
	done chan struct{}
	wg   sync.WaitGroup
}

// EventBuffer maintains a circular buffer of events for a specific interface.
type EventBuffer struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
	nextID   int64
	created  time.Time
}

// NewHub creates a new telemetry hub with the specified configuration.
func NewHub(scanConfig *config.ScanConfig) *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		eventIDs: make(map[string]*int64),
		buffers:  make(map[string]*EventBuffer),
		config:   scanConfig,
		log:      zerolog.Nop(),
		done:     make(chan struct{}),
	}
}

// SetLogger attaches a structured logger.
func (h *Hub) SetLogger(log zerolog.Logger) {
	h.log = log.With().Str("component", "telemetry").Logger()
}

// Subscribe handles SSE client subscription with Last-Event-ID resume support.
func (h *Hub) Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control")

	clientCtx, cancel := context.WithCancel(ctx)
	clientID := uuid.NewString()

	// Parse Last-Event-ID header for resume
	lastEventID := int64(0)
	if lastIDStr := r.Header.Get("Last-Event-ID"); lastIDStr != "" {
		if id, err := strconv.ParseInt(lastIDStr, 10, 64); err == nil {
			lastEventID = id
		}
	}

	// Interface filter from query parameter
	interfaceID := r.URL.Query().Get("interface")

	client := &Client{
		ID:        clientID,
		Writer:    w,
		Request:   r,
		Context:   clientCtx,
		Cancel:    cancel,
		LastID:    lastEventID,
		Interface: interfaceID,
		Events:    make(chan Event, 100),
	}

	h.mu.Lock()
	h.clients[clientID] = client
	h.mu.Unlock()

	h.log.Debug().Str("client", clientID).Str("interface", interfaceID).Msg("sse client subscribed")

	// Send initial ready event
	if err := h.sendReadyEvent(client); err != nil {
		h.unregisterClient(clientID)
		return fmt.Errorf("failed to send ready event: %w", err)
	}

	// Replay buffered events if Last-Event-ID provided
	if lastEventID > 0 {
		if err := h.replayEvents(client, lastEventID); err != nil {
			h.unregisterClient(clientID)
			return fmt.Errorf("failed to replay events: %w", err)
		}
	}

	// Start heartbeat if this is the first client
	h.mu.Lock()
	if len(h.clients) == 1 && h.heartbeatTicker == nil {
		h.startHeartbeat()
	}
	h.mu.Unlock()

	// Handle client events (blocks until client disconnects)
	h.handleClient(client)

	return nil
}

// Publish publishes an event to all connected clients.
func (h *Hub) Publish(event Event) error {
	if event.ID == 0 {
		event.ID = h.getNextEventID(event.Interface)
	}

	if event.Interface != "" {
		h.bufferEvent(event)
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	// Send to all clients without holding the lock
	for _, client := range clients {
		// Interface-filtered clients skip events for other interfaces.
		if client.Interface != "" && event.Interface != "" && client.Interface != event.Interface {
			continue
		}

		select {
		case <-client.Context.Done():
			continue
		case <-h.done:
			return nil
		case client.Events <- event:
		case <-time.After(100 * time.Millisecond):
			// Drop event if client is slow to prevent blocking the core.
			h.log.Debug().Str("client", client.ID).Str("event", event.Type).Msg("dropped event for slow client")
		}
	}

	return nil
}

// PublishInterface publishes an event for a specific interface.
func (h *Hub) PublishInterface(interfaceID string, event Event) error {
	event.Interface = interfaceID
	return h.Publish(event)
}

// sendReadyEvent sends the initial ready event to a client.
func (h *Hub) sendReadyEvent(client *Client) error {
	readyEvent := Event{
		ID:   h.getNextEventID(client.Interface),
		Type: "ready",
		Data: map[string]interface{}{
			"interface": client.Interface,
			"ts":        time.Now().UTC().Format(time.RFC3339),
		},
	}

	return h.sendEventToClient(client, readyEvent)
}

// replayEvents replays buffered events for a client based on Last-Event-ID.
func (h *Hub) replayEvents(client *Client, lastEventID int64) error {
	h.mu.RLock()
	buffer, exists := h.buffers[client.Interface]
	h.mu.RUnlock()

	if !exists {
		return nil // No buffer for this interface
	}

	for _, event := range buffer.GetEventsAfter(lastEventID) {
		if err := h.sendEventToClient(client, event); err != nil {
			return err
		}
	}

	return nil
}

// sendEventToClient sends a single event to a client via SSE.
func (h *Hub) sendEventToClient(client *Client, event Event) error {
	client.mu.Lock()
	defer client.mu.Unlock()

	if event.ID > 0 {
		if _, err := fmt.Fprintf(client.Writer, "id: %d\n", event.ID); err != nil {
			return fmt.Errorf("failed to write event ID: %w", err)
		}
	}
	if _, err := fmt.Fprintf(client.Writer, "event: %s\n", event.Type); err != nil {
		return fmt.Errorf("failed to write event type: %w", err)
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	if _, err := fmt.Fprintf(client.Writer, "data: %s\n\n", string(data)); err != nil {
		return fmt.Errorf("failed to write event data: %w", err)
	}

	if flusher, ok := client.Writer.(http.Flusher); ok {
		flusher.Flush()
	}

	return nil
}

// handleClient manages a client connection and event delivery.
func (h *Hub) handleClient(client *Client) {
	defer func() {
		client.once.Do(func() {
			close(client.Events)
		})
		h.unregisterClient(client.ID)
	}()

	for {
		// Check context first so cancellation wins over pending events.
		select {
		case <-client.Context.Done():
			return
		default:
		}

		timeout := time.NewTimer(100 * time.Millisecond)
		select {
		case <-client.Context.Done():
			timeout.Stop()
			return
		case <-timeout.C:
			continue
		case event, ok := <-client.Events:
			timeout.Stop()
			if !ok {
				return
			}
			if err := h.sendEventToClient(client, event); err != nil {
				return
			}
		}
	}
}

// unregisterClient removes a client from the hub.
func (h *Hub) unregisterClient(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client, exists := h.clients[clientID]; exists {
		client.Cancel()
		// The channel is closed when the client goroutine exits, not here,
		// to avoid racing the heartbeat sender.
		delete(h.clients, clientID)

		h.log.Debug().Str("client", clientID).Msg("sse client unregistered")

		if len(h.clients) == 0 && h.heartbeatTicker != nil {
			h.heartbeatTicker.Stop()
			h.heartbeatTicker = nil
			if h.stopHeartbeat != nil {
				close(h.stopHeartbeat)
				h.stopHeartbeat = nil
			}
		}
	}
}

// getNextEventID returns the next monotonic event ID for an interface.
func (h *Hub) getNextEventID(interfaceID string) int64 {
	if interfaceID == "" {
		interfaceID = "global"
	}

	h.mu.RLock()
	counter, exists := h.eventIDs[interfaceID]
	h.mu.RUnlock()

	if exists {
		return atomic.AddInt64(counter, 1)
	}

	h.mu.Lock()
	// Double-check: another goroutine might have created it.
	counter, exists = h.eventIDs[interfaceID]
	if !exists {
		var initial int64
		counter = &initial
		h.eventIDs[interfaceID] = counter
	}
	h.mu.Unlock()

	return atomic.AddInt64(counter, 1)
}

// bufferEvent adds an event to the per-interface buffer.
//
// SAFETY ASSUMPTION: EventBuffer references are never removed from h.buffers,
// so a buffer reference stays valid after releasing h.mu; AddEvent has its
// own internal synchronization.
func (h *Hub) bufferEvent(event Event) {
	if event.Interface == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	buffer, exists := h.buffers[event.Interface]
	if !exists {
		buffer = NewEventBuffer(h.config.EventBufferSize)
		h.buffers[event.Interface] = buffer
	}

	buffer.AddEvent(event)
}

// startHeartbeat starts the heartbeat ticker.
// Caller must hold h.mu and verify h.heartbeatTicker == nil.
func (h *Hub) startHeartbeat() {
	interval := h.config.HeartbeatInterval
	jitter := h.config.HeartbeatJitter

	// Offset by half the jitter to avoid thundering herd with other hubs.
	actualInterval := interval + time.Duration(float64(jitter)*0.5)

	h.heartbeatTicker = time.NewTicker(actualInterval)
	h.stopHeartbeat = make(chan bool)

	ticker := h.heartbeatTicker
	stopChan := h.stopHeartbeat

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer func() {
			h.mu.Lock()
			if h.heartbeatTicker != nil {
				h.heartbeatTicker.Stop()
			}
			h.mu.Unlock()
		}()

		for {
			select {
			case <-ticker.C:
				h.sendHeartbeat()
			case <-stopChan:
				return
			case <-h.done:
				return
			}
		}
	}()
}

// sendHeartbeat sends a heartbeat event to all clients.
func (h *Hub) sendHeartbeat() {
	h.Publish(Event{
		Type: "heartbeat",
		Data: map[string]interface{}{
			"ts": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// Stop stops the telemetry hub and cleans up resources.
func (h *Hub) Stop() {
	close(h.done)

	h.mu.Lock()
	for _, client := range h.clients {
		client.Cancel()
	}
	if h.heartbeatTicker != nil {
		h.heartbeatTicker.Stop()
		h.heartbeatTicker = nil
	}
	if h.stopHeartbeat != nil {
		close(h.stopHeartbeat)
		h.stopHeartbeat = nil
	}
	h.mu.Unlock()

	// Wait for goroutines with a timeout; a stuck client writer must not
	// wedge shutdown.
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		h.log.Warn().Msg("telemetry hub shutdown timed out")
	}

	h.mu.Lock()
	for _, client := range h.clients {
		client.Cancel()
		client.once.Do(func() {
			close(client.Events)
		})
	}
	h.clients = make(map[string]*Client)
	h.mu.Unlock()
}

// NewEventBuffer creates a new event buffer with the specified capacity.
func NewEventBuffer(capacity int) *EventBuffer {
	return &EventBuffer{
		events:   make([]Event, 0, capacity),
		capacity: capacity,
		nextID:   1,
		created:  time.Now(),
	}
}

// AddEvent adds an event to the buffer.
func (b *EventBuffer) AddEvent(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if event.ID == 0 {
		event.ID = b.nextID
		b.nextID++
	}

	b.events = append(b.events, event)

	if len(b.events) > b.capacity {
		b.events = b.events[1:]
	}
}

// GetEventsAfter returns events after the specified ID.
func (b *EventBuffer) GetEventsAfter(lastID int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []Event
	for _, event := range b.events {
		if event.ID > lastID {
			result = append(result, event)
		}
	}

	return result
}

// GetCapacity returns the buffer capacity.
func (b *EventBuffer) GetCapacity() int {
	return b.capacity
}

// GetSize returns the current buffer size.
func (b *EventBuffer) GetSize() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}
