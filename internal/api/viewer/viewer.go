// Package viewer contains Datastar SSE handlers for the map viewer UI.
package viewer

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geoview/internal/api"
	"github.com/joeblew999/plat-geoview/internal/humastar"
	"github.com/joeblew999/plat-geoview/internal/templates"
)

// Tag marks viewer operations; they get no hypermedia links.
const Tag = "viewer"

// Signal names shared with the viewer page.
const (
	sigRows    = "filterrows"
	sigLayer   = "filterlayer"
	sigEdit    = "edit"
	sigError   = "error"
	sigSuccess = "success"
)

// Handler serves the viewer's SSE fragments. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type Handler struct {
	humastar.Handler
	svc *api.Services
}

// New creates a viewer handler.
func New(svc *api.Services, renderer *templates.Renderer) *Handler {
	return &Handler{
		Handler: humastar.Handler{Renderer: renderer},
		svc:     svc,
	}
}

// RegisterRoutes registers every viewer route on a.
func RegisterRoutes(a huma.API, svc *api.Services, renderer *templates.Renderer) *Handler {
	h := New(svc, renderer)
	huma.AutoRegister(a, h)
	return h
}
