package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geoview/internal/cql"
	"github.com/joeblew999/plat-geoview/internal/service"
)

type RowsInput struct {
	Body struct {
		Rows []cql.Row `json:"rows" doc:"Filter rows in form order"`
	}
}

type ExpressionBody struct {
	Expression string `json:"expression" doc:"CQL expression, empty when no row is complete" example:"region_name = 'Tel Aviv' OR county_name = 5"`
	Valid      bool   `json:"valid" doc:"Whether at least one row is complete"`
}

type SubmitFilterInput struct {
	Body struct {
		TypeName string    `json:"typeName" required:"true" doc:"Qualified layer to filter" example:"test_nadlan:nadlan_mosdar"`
		Rows     []cql.Row `json:"rows" doc:"Filter rows in form order"`
	}
}

type SubmitFilterBody struct {
	Applied bool               `json:"applied" doc:"False when no row was complete and nothing changed"`
	Message string             `json:"message" doc:"Result message"`
	Slot    service.FilterSlot `json:"slot" doc:"Filtered layer slot after the submission"`
}

type FilterFormBody struct {
	Slot   service.FilterSlot `json:"slot" doc:"Filtered layer slot"`
	Layers []FilterLayerBody  `json:"layers" doc:"Layers the form may target"`
	Fields cql.Fields         `json:"fields" doc:"Filterable attributes"`
}

type FilterLayerBody struct {
	TypeName string `json:"typeName" doc:"Qualified layer name"`
	Label    string `json:"label" doc:"Display label"`
	Default  bool   `json:"default,omitempty" doc:"Preselected in the form"`
}

// RegisterFilter registers filter builder and filtered slot routes.
func (h *APIHandler) RegisterFilter(api huma.API) {
	huma.Post(api, "/api/v1/filter/expression", h.BuildExpression, huma.OperationTags("filter"))
	huma.Get(api, "/api/v1/filter", h.GetFilter, huma.OperationTags("filter"))
	huma.Post(api, "/api/v1/filter", h.SubmitFilter, huma.OperationTags("filter"))
	huma.Delete(api, "/api/v1/filter", h.ClearFilter, huma.OperationTags("filter"))
}

func (h *APIHandler) BuildExpression(ctx context.Context, input *RowsInput) (*struct{ Body ExpressionBody }, error) {
	if fields := h.svc.Filter.Fields(); len(fields) > 0 {
		if err := fields.ValidateRows(input.Body.Rows); err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
	}
	expr, ok := cql.Build(input.Body.Rows)
	return &struct{ Body ExpressionBody }{Body: ExpressionBody{Expression: expr, Valid: ok}}, nil
}

func (h *APIHandler) GetFilter(ctx context.Context, input *struct{}) (*struct{ Body FilterFormBody }, error) {
	return &struct{ Body FilterFormBody }{Body: FilterFormBody{
		Slot:   h.svc.Filter.Slot(),
		Layers: FilterLayers(h.svc),
		Fields: h.svc.Filter.Fields(),
	}}, nil
}

func (h *APIHandler) SubmitFilter(ctx context.Context, input *SubmitFilterInput) (*struct{ Body SubmitFilterBody }, error) {
	slot, err := h.svc.Filter.Submit(input.Body.TypeName, input.Body.Rows)
	switch {
	case errors.Is(err, cql.ErrEmptyFilter):
		return &struct{ Body SubmitFilterBody }{Body: SubmitFilterBody{
			Message: "No valid filters", Slot: slot,
		}}, nil
	case err != nil:
		return nil, toHTTP(err)
	}
	return &struct{ Body SubmitFilterBody }{Body: SubmitFilterBody{
		Applied: true, Message: "Filter applied", Slot: slot,
	}}, nil
}

func (h *APIHandler) ClearFilter(ctx context.Context, input *struct{}) (*struct{ Body service.FilterSlot }, error) {
	return &struct{ Body service.FilterSlot }{Body: h.svc.Filter.Clear()}, nil
}

// FilterLayers lists the layers the filter form may target.
func FilterLayers(svc *Services) []FilterLayerBody {
	def := svc.Config.Qualify(svc.Config.Filter.DefaultLayer)
	out := make([]FilterLayerBody, 0, len(svc.Config.Filter.Layers))
	for _, l := range svc.Config.Filter.Layers {
		tn := svc.Config.Qualify(l.TypeName)
		out = append(out, FilterLayerBody{TypeName: tn, Label: l.Label, Default: tn == def})
	}
	return out
}
