package connector

import (
	"fmt"
	"log"
	"sync"

	"github.com/mangadl/manga-downloader/internal/event"
	"github.com/mangadl/manga-downloader/internal/model"
)

// LoadError records a connector that failed validation at load time. Kept and
// reported rather than silently dropped.
type LoadError struct {
	Connector string `json:"connector"`
	Reason    string `json:"reason"`
}

// Registry indexes loaded connectors and resolves one for a given input by
// first-match capability probing in registration order. Read-mostly after
// startup; Reload swaps the set under the write lock so in-flight
// resolutions never observe a partial set.
type Registry struct {
	mu         sync.RWMutex
	connectors []Connector // registration order, drives resolution order
	disabled   map[string]bool
	loadErrors []LoadError
	bus        *event.Bus
}

// NewRegistry creates an empty registry publishing load events to bus.
// A nil bus is allowed; events are then skipped.
func NewRegistry(bus *event.Bus) *Registry {
	return &Registry{
		disabled: make(map[string]bool),
		bus:      bus,
	}
}

// Load registers a set of connector implementations, version-gating each one.
// Returns the number successfully loaded. A rejected connector is recorded in
// LoadErrors and does not abort the rest of the scan.
func (r *Registry) Load(connectors ...Connector) int {
	loaded := 0
	for _, c := range connectors {
		if err := r.Register(c); err != nil {
			continue
		}
		loaded++
	}
	return loaded
}

// Register validates and adds one connector
func (r *Registry) Register(c Connector) error {
	desc := c.Describe()

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := validateDescriptor(r.connectors, desc); err != nil {
		r.loadErrors = append(r.loadErrors, LoadError{Connector: desc.Name, Reason: err.Error()})
		r.emitLog(event.LevelError, fmt.Sprintf("failed to load connector %s: %v", desc.Name, err))
		return err
	}

	r.connectors = append(r.connectors, c)
	r.emitLog(event.LevelInfo, fmt.Sprintf("loaded connector: %s v%s", desc.Name, desc.Version))
	return nil
}

func validateDescriptor(existing []Connector, desc Descriptor) error {
	if desc.ID == "" {
		return fmt.Errorf("connector has no identifier")
	}
	for _, e := range existing {
		if e.Describe().ID == desc.ID {
			return fmt.Errorf("duplicate connector id %q", desc.ID)
		}
	}
	if desc.ContractVersion != ContractVersion {
		return &model.ContractVersionError{
			Connector: desc.Name,
			Declared:  desc.ContractVersion,
			Supported: ContractVersion,
		}
	}
	return nil
}

// Resolve returns the first enabled connector whose Matches accepts the input.
// Resolution is deterministic for a fixed registration order. Fails with
// model.ErrNoConnector when nothing matches.
func (r *Registry) Resolve(rawURL string) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.connectors {
		if r.disabled[c.Describe().ID] {
			continue
		}
		if c.Matches(rawURL) {
			return c, nil
		}
	}
	return nil, model.ErrNoConnector
}

// Get returns a connector by its identifier regardless of enabled state
func (r *Registry) Get(id string) (Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.connectors {
		if c.Describe().ID == id {
			return c, true
		}
	}
	return nil, false
}

// All returns the loaded connectors in registration order
func (r *Registry) All() []Connector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Connector(nil), r.connectors...)
}

// LoadErrors returns the recorded load failures
func (r *Registry) LoadErrors() []LoadError {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]LoadError(nil), r.loadErrors...)
}

// Enabled reports whether a connector participates in resolution
func (r *Registry) Enabled(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.disabled[id]
}

// SetEnabled includes or excludes a connector from resolution. Jobs already
// bound to the connector keep their instance either way.
func (r *Registry) SetEnabled(id string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if enabled {
		delete(r.disabled, id)
	} else {
		r.disabled[id] = true
	}
}

// Reload replaces the connector set wholesale. The next set is validated
// off-lock and swapped in with one write, so a concurrent resolution sees
// either the old set or the complete new one, never a partial swap. Jobs
// bound to an old instance keep using it.
func (r *Registry) Reload(connectors ...Connector) int {
	var next []Connector
	var loadErrors []LoadError
	for _, c := range connectors {
		desc := c.Describe()
		if err := validateDescriptor(next, desc); err != nil {
			loadErrors = append(loadErrors, LoadError{Connector: desc.Name, Reason: err.Error()})
			r.emitLog(event.LevelError, fmt.Sprintf("failed to load connector %s: %v", desc.Name, err))
			continue
		}
		next = append(next, c)
		r.emitLog(event.LevelInfo, fmt.Sprintf("loaded connector: %s v%s", desc.Name, desc.Version))
	}

	r.mu.Lock()
	r.connectors = next
	r.loadErrors = loadErrors
	r.disabled = make(map[string]bool)
	r.mu.Unlock()

	return len(next)
}

func (r *Registry) emitLog(level, message string) {
	log.Printf("[registry] %s", message)
	if r.bus != nil {
		r.bus.Publish(event.NewLog("", level, message))
	}
}
