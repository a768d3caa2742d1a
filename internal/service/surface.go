package service

import "sync"

// SurfaceLayer is a vector layer currently drawn on the map.
type SurfaceLayer struct {
	ID        string `json:"id" doc:"Layer ID" example:"filtered"`
	SessionID string `json:"sessionId,omitempty" doc:"Session whose features are drawn"`
}

// Surface is the ordered set of vector layers present on the map. Adding a
// layer that is already present is a no-op; removing one that is absent is
// a no-op.
type Surface struct {
	mu     sync.RWMutex
	order  []string
	layers map[string]SurfaceLayer
	bus    *EventBus
}

// NewSurface creates an empty surface.
func NewSurface(bus *EventBus) *Surface {
	return &Surface{layers: make(map[string]SurfaceLayer), bus: bus}
}

// Add places l on the surface. A layer with the same ID but a different
// session is replaced in place. Reports whether anything changed.
func (s *Surface) Add(l SurfaceLayer) bool {
	s.mu.Lock()
	cur, ok := s.layers[l.ID]
	if ok && cur == l {
		s.mu.Unlock()
		return false
	}
	if !ok {
		s.order = append(s.order, l.ID)
	}
	s.layers[l.ID] = l
	s.mu.Unlock()

	s.bus.Publish(Event{Resource: ResourceLayers, Action: "added", ID: l.ID})
	return true
}

// Remove takes the layer off the surface. Reports whether it was present.
func (s *Surface) Remove(id string) bool {
	s.mu.Lock()
	if _, ok := s.layers[id]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.layers, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.bus.Publish(Event{Resource: ResourceLayers, Action: "removed", ID: id})
	return true
}

// Get returns the surface entry for id.
func (s *Surface) Get(id string) (SurfaceLayer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.layers[id]
	return l, ok
}

// Has reports whether id is on the surface.
func (s *Surface) Has(id string) bool {
	_, ok := s.Get(id)
	return ok
}

// List returns the surface in insertion order.
func (s *Surface) List() []SurfaceLayer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SurfaceLayer, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.layers[id])
	}
	return out
}

// TrackSessions keeps catalog layers on the surface in step with their
// sessions: a ready session adds its layer, a failed one removes it. The
// filtered layer is managed by FilterService.
func (s *Surface) TrackSessions(sessions *SessionService) {
	sessions.OnFinish(func(sess Session) {
		if sess.LayerID == FilteredLayerID {
			return
		}
		switch sess.Status {
		case StatusReady:
			s.Add(SurfaceLayer{ID: sess.LayerID, SessionID: sess.ID})
		case StatusFailed:
			s.Remove(sess.LayerID)
		}
	})
}
