package viewer

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geoview/internal/humastar"
	"github.com/joeblew999/plat-geoview/internal/service"
)

// RegisterEvents registers the change stream the viewer redraws from.
func (h *Handler) RegisterEvents(api huma.API) {
	huma.Get(api, "/api/v1/viewer/events", h.Events, huma.OperationTags(Tag))
}

// Events streams resource changes. Layer and session changes redraw the
// layer panel, filter changes the slot. Every change except load progress
// also dispatches a "resource-changed" window event so the map redraws.
func (h *Handler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := humastar.NewSSE(humaCtx)
			ch := h.svc.Bus.Subscribe()
			defer h.svc.Bus.Unsubscribe(ch)

			done := humaCtx.Context().Done()
			for {
				select {
				case <-done:
					return
				case ev, ok := <-ch:
					if !ok {
						return
					}
					h.apply(sse, ev)
				}
			}
		},
	}, nil
}

func (h *Handler) apply(sse humastar.SSE, ev service.Event) {
	switch ev.Resource {
	case service.ResourceLayers:
		sse.Patch(h.renderLayers(), "#layer-list")
	case service.ResourceSessions:
		sse.Patch(h.renderLayers(), "#layer-list")
		if slot := h.svc.Filter.Slot(); slot.SessionID != "" && slot.SessionID == ev.ID {
			sse.Patch(h.renderSlot(), "#filter-slot")
		}
	case service.ResourceFilter:
		sse.Patch(h.renderSlot(), "#filter-slot")
	}
	if ev.Action == "progress" {
		return
	}
	sse.DispatchCustomEvent("resource-changed", map[string]any{
		"resource": ev.Resource,
		"action":   ev.Action,
		"id":       ev.ID,
	})
}
