// Package api defines the Huma REST routes and handlers.
package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geoview/internal/config"
	"github.com/joeblew999/plat-geoview/internal/cql"
	"github.com/joeblew999/plat-geoview/internal/service"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Config   *config.Config
	Bus      *service.EventBus
	Layers   *service.LayerService
	Surface  *service.Surface
	Sessions *service.SessionService
	Filter   *service.FilterService
	Popup    *service.PopupService
	Catalog  *service.Catalog
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Layer ID" example:"mosdar_wfs"`
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterRoutes registers every REST route on api.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

// toHTTP maps service errors onto Huma status errors.
func toHTTP(err error) error {
	var se huma.StatusError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &se):
		return err
	case errors.Is(err, service.ErrUnknownLayer), errors.Is(err, service.ErrSessionNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrNotReady):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, service.ErrInvalidFilter), errors.Is(err, cql.ErrEmptyFilter):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, service.ErrClosed):
		return huma.Error503ServiceUnavailable(err.Error())
	}
	return huma.Error500InternalServerError("internal error", err)
}
