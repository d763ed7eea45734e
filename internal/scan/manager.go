package scan

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound indicates a requested interface was not registered.
var ErrNotFound = errors.New("NOT_FOUND")

// InterfaceList is the response format for GET /interfaces.
type InterfaceList struct {
	Items []Status `json:"items"`
}

// Manager maintains the inventory of radio interfaces and their controllers.
type Manager struct {
	mu          sync.RWMutex
	controllers map[string]*Controller
}

// NewManager creates an empty interface inventory.
func NewManager() *Manager {
	return &Manager{
		controllers: make(map[string]*Controller),
	}
}

// Register adds a controller under its interface id.
func (m *Manager) Register(c *Controller) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.controllers[c.ID()]; exists {
		return fmt.Errorf("interface %s already registered", c.ID())
	}

	m.controllers[c.ID()] = c
	return nil
}

// Get returns the controller for an interface id.
func (m *Manager) Get(interfaceID string) (*Controller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, exists := m.controllers[interfaceID]
	if !exists {
		return nil, fmt.Errorf("interface %s: %w", interfaceID, ErrNotFound)
	}
	return c, nil
}

// List returns the interface inventory sorted by id.
func (m *Manager) List() *InterfaceList {
	m.mu.RLock()
	controllers := make([]*Controller, 0, len(m.controllers))
	for _, c := range m.controllers {
		controllers = append(controllers, c)
	}
	m.mu.RUnlock()

	sort.Slice(controllers, func(i, j int) bool {
		return controllers[i].ID() < controllers[j].ID()
	})

	items := make([]Status, 0, len(controllers))
	for _, c := range controllers {
		items = append(items, c.Describe())
	}
	return &InterfaceList{Items: items}
}
