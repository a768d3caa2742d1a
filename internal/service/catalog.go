package service

import (
	"github.com/joeblew999/plat-geoview/internal/config"
	"github.com/joeblew999/plat-geoview/internal/wfs"
)

// QueryFor returns the paged WFS query for a catalog layer.
func QueryFor(cfg *config.Config, l LayerConfig) wfs.Query {
	q := cfg.BaseQuery(l.TypeName, l.SortBy)
	q.CQLFilter = l.CQLFilter
	return q
}

// LayerView is a catalog layer joined with its live state.
type LayerView struct {
	LayerConfig
	Visible   bool          `json:"visible" doc:"Current visibility"`
	OnSurface bool          `json:"onSurface" doc:"Whether the layer is drawn on the map"`
	SessionID string        `json:"sessionId,omitempty" doc:"Session feeding a WFS layer"`
	Status    SessionStatus `json:"status,omitempty" doc:"Load status of a WFS layer"`
	Loaded    int           `json:"loaded,omitempty" doc:"Features loaded so far"`
}

// Catalog joins the layer catalog with the surface, the sessions and the
// filtered layer slot.
type Catalog struct {
	Layers   *LayerService
	Surface  *Surface
	Sessions *SessionService
	Filter   *FilterService

	// Filtered describes how the filter result is drawn.
	Filtered LayerConfig
}

// Views returns every catalog layer followed by the filtered layer when
// the slot is not empty.
func (c *Catalog) Views() []LayerView {
	layers := c.Layers.List()
	out := make([]LayerView, 0, len(layers)+1)
	for _, l := range layers {
		out = append(out, c.view(l))
	}
	if v, ok := c.filtered(); ok {
		out = append(out, v)
	}
	return out
}

// View returns the view of one layer, including the filtered layer.
func (c *Catalog) View(id string) (LayerView, bool) {
	if id == FilteredLayerID {
		return c.filtered()
	}
	l, ok := c.Layers.Get(id)
	if !ok {
		return LayerView{}, false
	}
	return c.view(l), true
}

func (c *Catalog) view(l LayerConfig) LayerView {
	v := LayerView{LayerConfig: l, Visible: c.Layers.Visible(l.ID)}
	if s, ok := c.Surface.Get(l.ID); ok {
		v.OnSurface = true
		v.SessionID = s.SessionID
	}
	if sess, ok := c.Sessions.Latest(l.ID); ok {
		v.SessionID = sess.ID
		v.Status = sess.Status
		v.Loaded = sess.Loaded
	}
	return v
}

func (c *Catalog) filtered() (LayerView, bool) {
	if c.Filter == nil {
		return LayerView{}, false
	}
	slot := c.Filter.Slot()
	if slot.State == SlotEmpty {
		return LayerView{}, false
	}

	l := c.Filtered
	l.ID = FilteredLayerID
	l.Kind = config.KindWFS
	l.TypeName = slot.TypeName
	l.CQLFilter = slot.Expression
	l.WMSParams = slot.WMSParams
	if l.Name == "" {
		l.Name = "Filter result"
	}

	v := c.view(l)
	v.SessionID = slot.SessionID
	return v, true
}
