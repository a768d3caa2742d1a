package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-geoview/internal/config"
	"github.com/joeblew999/plat-geoview/internal/humastar"
	"github.com/joeblew999/plat-geoview/internal/service"
	"github.com/joeblew999/plat-geoview/internal/vtile"
)

var sessionActions = struct {
	ready, loading []humastar.ActionDef
}{
	ready: []humastar.ActionDef{
		{Rel: "geojson", Pattern: "/api/v1/sessions/%s/geojson", Method: http.MethodGet, Title: "Download features"},
	},
	loading: []humastar.ActionDef{
		{Rel: "cancel", Pattern: "/api/v1/sessions/%s", Method: http.MethodDelete, Title: "Cancel load"},
	},
}

func actionsFor(s service.Session) []humastar.Action {
	switch s.Status {
	case service.StatusReady:
		return humastar.ActionsFor(s.ID, sessionActions.ready...)
	case service.StatusLoading:
		return humastar.ActionsFor(s.ID, sessionActions.loading...)
	}
	return nil
}

// SessionBody is a session without its features.
type SessionBody struct {
	service.Session
}

func (b SessionBody) Actions() []humastar.Action { return actionsFor(b.Session) }

// SessionPage is a session with one page of its features.
type SessionPage struct {
	Session service.Session `json:"session" doc:"Session state"`
	humastar.PageBody[*geojson.Feature]
}

func (b SessionPage) Actions() []humastar.Action { return actionsFor(b.Session) }

type SessionIDInput struct {
	ID string `path:"id" doc:"Session ID"`
}

type StartSessionInput struct {
	Body struct {
		LayerID string `json:"layerId" required:"true" doc:"WFS catalog layer to load" example:"mosdar_wfs"`
	}
}

type SessionPageInput struct {
	SessionIDInput
	Offset int `query:"offset" minimum:"0" default:"0" doc:"First feature"`
	Limit  int `query:"limit" minimum:"1" maximum:"10000" default:"1000" doc:"Features per page"`
}

type GeoJSONOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type TileInput struct {
	SessionIDInput
	Z int `path:"z" minimum:"0" maximum:"22" doc:"Zoom"`
	X int `path:"x" minimum:"0" doc:"Tile column"`
	Y int `path:"y" minimum:"0" doc:"Tile row (XYZ scheme)"`
}

type TileOutput struct {
	Status          int
	ContentType     string `header:"Content-Type"`
	ContentEncoding string `header:"Content-Encoding"`
	Body            []byte
}

// RegisterSessions registers fetch session routes.
func (h *APIHandler) RegisterSessions(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "start-session",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions",
		Summary:       "Start loading a WFS layer",
		Tags:          []string{"sessions"},
		DefaultStatus: http.StatusAccepted,
	}, h.StartSession)
	huma.Get(api, "/api/v1/sessions/{id}", h.GetSession, huma.OperationTags("sessions"))
	huma.Get(api, "/api/v1/sessions/{id}/geojson", h.GetSessionGeoJSON, huma.OperationTags("sessions"))
	huma.Get(api, "/api/v1/sessions/{id}/tiles/{z}/{x}/{y}", h.GetSessionTile, huma.OperationTags("sessions"))
	huma.Delete(api, "/api/v1/sessions/{id}", h.CancelSession, huma.OperationTags("sessions"))
}

func (h *APIHandler) StartSession(ctx context.Context, input *StartSessionInput) (*struct{ Body SessionBody }, error) {
	l, ok := h.svc.Layers.Get(input.Body.LayerID)
	if !ok {
		return nil, huma.Error404NotFound("layer not found")
	}
	if l.Kind != config.KindWFS {
		return nil, huma.Error422UnprocessableEntity("layer " + l.ID + " is not a WFS layer")
	}
	sess, err := h.svc.Sessions.Start(l.ID, service.QueryFor(h.svc.Config, l))
	if err != nil {
		return nil, toHTTP(err)
	}
	return &struct{ Body SessionBody }{Body: SessionBody{sess}}, nil
}

// GetSession returns the assembled layer, one page of features at a time.
// A session still loading has no features yet.
func (h *APIHandler) GetSession(ctx context.Context, input *SessionPageInput) (*struct{ Body SessionPage }, error) {
	sess, ok := h.svc.Sessions.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("session not found")
	}
	return &struct{ Body SessionPage }{Body: SessionPage{
		Session:  sess,
		PageBody: humastar.Paginate(sess.Features, input.Offset, input.Limit),
	}}, nil
}

func (h *APIHandler) GetSessionGeoJSON(ctx context.Context, input *SessionIDInput) (*GeoJSONOutput, error) {
	sess, err := h.svc.Sessions.Features(input.ID)
	if err != nil {
		return nil, toHTTP(err)
	}
	data, err := sess.Collection().MarshalJSON()
	if err != nil {
		return nil, huma.Error500InternalServerError("encoding features", err)
	}
	return &GeoJSONOutput{ContentType: "application/geo+json", Body: data}, nil
}

// GetSessionTile cuts one vector tile out of a ready session. Tiles with
// no features answer 204.
func (h *APIHandler) GetSessionTile(ctx context.Context, input *TileInput) (*TileOutput, error) {
	tile, err := vtile.Tile(input.Z, input.X, input.Y)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	sess, err := h.svc.Sessions.Features(input.ID)
	if err != nil {
		return nil, toHTTP(err)
	}
	data, err := vtile.Encode(sess.Features, tile, sess.LayerID, vtile.Mercator(h.svc.Config.Loader.SRSName))
	if err != nil {
		return nil, huma.Error500InternalServerError("encoding tile", err)
	}
	if data == nil {
		return &TileOutput{Status: http.StatusNoContent}, nil
	}
	return &TileOutput{Status: http.StatusOK, ContentType: "application/vnd.mapbox-vector-tile", ContentEncoding: "gzip", Body: data}, nil
}

func (h *APIHandler) CancelSession(ctx context.Context, input *SessionIDInput) (*struct{ Body MessageBody }, error) {
	sess, ok := h.svc.Sessions.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("session not found")
	}
	// the filtered slot must not be left pointing at a dead session
	if sess.LayerID == service.FilteredLayerID && h.svc.Filter.Slot().SessionID == sess.ID {
		h.svc.Filter.Clear()
	} else {
		h.svc.Sessions.Cancel(input.ID)
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Session cancelled"}}, nil
}
