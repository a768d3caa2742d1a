package service

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/joeblew999/plat-geoview/internal/cql"
	"github.com/joeblew999/plat-geoview/internal/logger"
	"github.com/joeblew999/plat-geoview/internal/wfs"
	"github.com/joeblew999/plat-geoview/internal/wms"
)

// FilterOptions configures a FilterService.
type FilterOptions struct {
	// Layers lists the qualified type names the form may target. Empty
	// allows any type name.
	Layers []string
	// Fields is the filterable-attribute allow-list. Empty allows any field.
	Fields cql.Fields
	// Query returns the base WFS query for a qualified type name.
	Query func(typeName string) wfs.Query
}

// FilterService owns the single filtered layer slot. Each submission
// replaces the previous result; a completion that arrives after its
// session was replaced or cleared is ignored.
type FilterService struct {
	opts     FilterOptions
	allowed  map[string]bool
	sessions *SessionService
	surface  *Surface
	bus      *EventBus
	log      *slog.Logger

	mu       sync.Mutex
	slot     FilterSlot
	onSubmit []func(typeName, expression string)
}

// NewFilterService creates the filter slot and subscribes it to session
// completions.
func NewFilterService(opts FilterOptions, sessions *SessionService, surface *Surface, bus *EventBus, log *slog.Logger) *FilterService {
	f := &FilterService{
		opts:     opts,
		allowed:  make(map[string]bool, len(opts.Layers)),
		sessions: sessions,
		surface:  surface,
		bus:      bus,
		log:      logger.Or(log),
		slot:     FilterSlot{State: SlotEmpty},
	}
	for _, l := range opts.Layers {
		f.allowed[l] = true
	}
	sessions.OnFinish(f.finished)
	return f
}

// Fields returns the filterable-attribute allow-list.
func (f *FilterService) Fields() cql.Fields {
	return f.opts.Fields
}

// OnSubmit registers fn to run with every accepted submission, before the
// load starts.
func (f *FilterService) OnSubmit(fn func(typeName, expression string)) {
	f.mu.Lock()
	f.onSubmit = append(f.onSubmit, fn)
	f.mu.Unlock()
}

// Slot returns the current slot.
func (f *FilterService) Slot() FilterSlot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slot
}

// Submit builds the expression for rows and starts loading it from
// typeName into the slot. When no row is complete it returns
// cql.ErrEmptyFilter and leaves everything as it was.
func (f *FilterService) Submit(typeName string, rows []cql.Row) (FilterSlot, error) {
	expr, err := cql.BuildErr(rows)
	if err != nil {
		f.log.Info("no valid filters, aborting", "typeName", typeName)
		return f.Slot(), err
	}
	if typeName == "" || (len(f.allowed) > 0 && !f.allowed[typeName]) {
		return f.Slot(), fmt.Errorf("%w: %q", ErrUnknownLayer, typeName)
	}
	if len(f.opts.Fields) > 0 {
		if err := f.opts.Fields.ValidateRows(rows); err != nil {
			return f.Slot(), fmt.Errorf("%w: %w", ErrInvalidFilter, err)
		}
	}

	f.mu.Lock()
	callbacks := slices.Clone(f.onSubmit)
	f.mu.Unlock()
	for _, fn := range callbacks {
		fn(typeName, expr)
	}

	f.log.Info("applying filter", "typeName", typeName, "cql", expr)

	f.mu.Lock()
	f.teardownLocked()
	q := f.opts.Query(typeName).WithFilter(expr)
	sess, err := f.sessions.Start(FilteredLayerID, q)
	if err != nil {
		slot := f.slot
		f.mu.Unlock()
		return slot, fmt.Errorf("starting filter load: %w", err)
	}
	f.slot = FilterSlot{
		State:      SlotLoading,
		TypeName:   typeName,
		Expression: expr,
		SessionID:  sess.ID,
		WMSParams:  wms.LayerParams(typeName, expr),
	}
	slot := f.slot
	f.mu.Unlock()

	f.bus.Publish(Event{Resource: ResourceFilter, Action: "submitted", ID: sess.ID})
	return slot, nil
}

// Clear empties the slot, abandoning any load in flight.
func (f *FilterService) Clear() FilterSlot {
	f.mu.Lock()
	f.teardownLocked()
	slot := f.slot
	f.mu.Unlock()

	f.bus.Publish(Event{Resource: ResourceFilter, Action: "cleared"})
	return slot
}

func (f *FilterService) teardownLocked() {
	f.surface.Remove(FilteredLayerID)
	if f.slot.SessionID != "" {
		f.sessions.Cancel(f.slot.SessionID)
	}
	f.slot = FilterSlot{State: SlotEmpty}
}

func (f *FilterService) finished(sess Session) {
	if sess.LayerID != FilteredLayerID {
		return
	}

	f.mu.Lock()
	if sess.ID != f.slot.SessionID || f.slot.State != SlotLoading {
		f.mu.Unlock()
		f.log.Debug("ignoring stale filter result", "session", sess.ID)
		return
	}
	switch sess.Status {
	case StatusReady:
		f.slot.State = SlotReady
		f.slot.Features = sess.Loaded
		f.surface.Add(SurfaceLayer{ID: FilteredLayerID, SessionID: sess.ID})
	case StatusFailed:
		f.slot = FilterSlot{State: SlotEmpty, Error: sess.Error}
	}
	state := f.slot.State
	f.mu.Unlock()

	f.bus.Publish(Event{Resource: ResourceFilter, Action: string(state), ID: sess.ID})
}
