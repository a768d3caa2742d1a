package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// LayerService owns the layer catalog and the single visibility map that
// every layer toggle reads and writes.
type LayerService struct {
	dataDir string
	layers  []LayerConfig
	byID    map[string]int
	visible map[string]bool
	bus     *EventBus
	mu      sync.RWMutex
}

// NewLayerService creates a layer service over the catalog. Visibility
// starts from each layer's default and is then overridden by whatever was
// persisted in the data directory.
func NewLayerService(dataDir string, layers []LayerConfig, bus *EventBus) *LayerService {
	s := &LayerService{
		dataDir: dataDir,
		layers:  append([]LayerConfig(nil), layers...),
		byID:    make(map[string]int, len(layers)),
		visible: make(map[string]bool, len(layers)+1),
		bus:     bus,
	}
	for i, l := range s.layers {
		s.byID[l.ID] = i
		s.visible[l.ID] = l.Visible
	}
	s.visible[FilteredLayerID] = true
	s.loadFromDisk()
	return s
}

// List returns the catalog in configured order.
func (s *LayerService) List() []LayerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]LayerConfig(nil), s.layers...)
}

// Get returns a layer by ID.
func (s *LayerService) Get(id string) (LayerConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return LayerConfig{}, false
	}
	return s.layers[i], true
}

// ByTypeName returns the first catalog layer serving a qualified type name.
func (s *LayerService) ByTypeName(typeName string) (LayerConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.layers {
		if l.TypeName == typeName {
			return l, true
		}
	}
	return LayerConfig{}, false
}

// Known reports whether id names a catalog layer or the filtered layer.
func (s *LayerService) Known(id string) bool {
	if id == FilteredLayerID {
		return true
	}
	_, ok := s.Get(id)
	return ok
}

// Visible returns the current visibility of a layer.
func (s *LayerService) Visible(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visible[id]
}

// Visibility returns a copy of the visibility map.
func (s *LayerService) Visibility() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]bool, len(s.visible))
	for k, v := range s.visible {
		result[k] = v
	}
	return result
}

// SetVisible sets a layer's visibility and persists the map.
func (s *LayerService) SetVisible(id string, visible bool) error {
	if !s.Known(id) {
		return fmt.Errorf("%w: %q", ErrUnknownLayer, id)
	}

	s.mu.Lock()
	err := s.setLocked(id, visible)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.bus.Publish(Event{Resource: ResourceLayers, Action: "updated", ID: id})
	return nil
}

// Toggle flips a layer's visibility and returns the new value.
func (s *LayerService) Toggle(id string) (bool, error) {
	if !s.Known(id) {
		return false, fmt.Errorf("%w: %q", ErrUnknownLayer, id)
	}

	s.mu.Lock()
	v := !s.visible[id]
	err := s.setLocked(id, v)
	s.mu.Unlock()
	if err != nil {
		return !v, err
	}

	s.bus.Publish(Event{Resource: ResourceLayers, Action: "updated", ID: id})
	return v, nil
}

// setLocked stores and persists one entry. A failed save restores the
// previous value so memory never runs ahead of disk.
func (s *LayerService) setLocked(id string, visible bool) error {
	prev := s.visible[id]
	s.visible[id] = visible
	if err := s.saveToDisk(); err != nil {
		s.visible[id] = prev
		return fmt.Errorf("saving layer visibility: %w", err)
	}
	return nil
}

// configFile returns the path to the visibility file.
func (s *LayerService) configFile() string {
	return filepath.Join(s.dataDir, "layers.json")
}

// loadFromDisk overlays persisted visibility. Entries for layers no longer
// in the catalog are dropped.
func (s *LayerService) loadFromDisk() {
	if s.dataDir == "" {
		return
	}
	data, err := os.ReadFile(s.configFile())
	if err != nil {
		return // File doesn't exist yet, keep defaults
	}

	var visible map[string]bool
	if err := json.Unmarshal(data, &visible); err != nil {
		return // Invalid JSON, keep defaults
	}

	for id, v := range visible {
		if _, ok := s.visible[id]; ok {
			s.visible[id] = v
		}
	}
}

// saveToDisk persists the visibility map. Callers hold mu.
func (s *LayerService) saveToDisk() error {
	if s.dataDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s.visible, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.configFile(), data, 0644)
}
