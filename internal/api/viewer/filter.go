package viewer

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-geoview/internal/api"
	"github.com/joeblew999/plat-geoview/internal/cql"
	"github.com/joeblew999/plat-geoview/internal/humastar"
	"github.com/joeblew999/plat-geoview/internal/service"
)

type FilterFormInput struct {
	humastar.QuerySignals
}

type RowInput struct {
	Index int `path:"index" minimum:"0" doc:"Row position in the form"`
	humastar.SignalsInput
}

type EditRowInput struct {
	Index int    `path:"index" minimum:"0" doc:"Row position in the form"`
	Attr  string `path:"attr" enum:"field,value,connective" doc:"Row attribute to replace"`
	humastar.SignalsInput
}

type FilterRowData struct {
	Index        int
	FieldOptions template.HTML
	Value        string
	Connective   string
}

type SlotData struct {
	service.FilterSlot
	Loaded int
}

// RegisterFilter registers the filter form routes.
func (h *Handler) RegisterFilter(api huma.API) {
	huma.Get(api, "/api/v1/viewer/filter", h.FilterForm, huma.OperationTags(Tag))
	huma.Post(api, "/api/v1/viewer/filter/rows", h.AddRow, huma.OperationTags(Tag))
	huma.Delete(api, "/api/v1/viewer/filter/rows/{index}", h.RemoveRow, huma.OperationTags(Tag))
	huma.Put(api, "/api/v1/viewer/filter/rows/{index}/{attr}", h.EditRow, huma.OperationTags(Tag))
	huma.Post(api, "/api/v1/viewer/filter/submit", h.Submit, huma.OperationTags(Tag))
	huma.Post(api, "/api/v1/viewer/filter/clear", h.Clear, huma.OperationTags(Tag))
}

func (h *Handler) FilterForm(ctx context.Context, input *FilterFormInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	rows, err := rowsFrom(signals)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	return h.Stream(func(sse humastar.SSE) {
		sse.Patch(h.renderLayerSelect(signals.String(sigLayer)), "#filter-form")
		sse.Patch(h.renderRows(rows), "#filter-rows")
		sse.Patch(h.renderSlot(), "#filter-slot")
	}), nil
}

func (h *Handler) AddRow(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	rows, err := rowsFrom(signals)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	rows = cql.AddRow(rows)

	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(map[string]any{sigRows: rows})
		sse.Patch(h.renderRows(rows), "#filter-rows")
	}), nil
}

// RemoveRow drops one row. An out-of-range index redraws the rows unchanged.
func (h *Handler) RemoveRow(ctx context.Context, input *RowInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	rows, err := rowsFrom(signals)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	rows = cql.RemoveRow(rows, input.Index)
	if len(rows) == 0 {
		rows = []cql.Row{cql.NewRow()}
	}

	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(map[string]any{sigRows: rows})
		sse.Patch(h.renderRows(rows), "#filter-rows")
	}), nil
}

// EditRow replaces one attribute of a row with the "edit" signal. Fields
// outside the allow-list are rejected and the rows redrawn unchanged.
func (h *Handler) EditRow(ctx context.Context, input *EditRowInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	rows, err := rowsFrom(signals)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	if input.Index >= len(rows) {
		return nil, huma.Error404NotFound(fmt.Sprintf("no filter row %d", input.Index))
	}
	attr := cql.Attribute(input.Attr)
	value := signals.String(sigEdit)

	return h.Stream(func(sse humastar.SSE) {
		var invalid error
		switch attr {
		case cql.AttrField:
			invalid = h.svc.Filter.Fields().Validate(value)
		case cql.AttrConnective:
			if !cql.Connective(value).Valid() {
				invalid = fmt.Errorf("connective %q must be AND or OR", value)
			}
		}
		if invalid != nil {
			sse.Error(invalid.Error())
			sse.Patch(h.renderRows(rows), "#filter-rows")
			return
		}

		rows = cql.EditRow(rows, input.Index, attr, value)
		sse.Signals(map[string]any{sigRows: rows, sigEdit: "", sigError: ""})
		if attr != cql.AttrValue {
			sse.Patch(h.renderRows(rows), "#filter-rows")
		}
	}), nil
}

// Submit builds the expression from the form rows and replaces the
// filtered layer. Rows with nothing to match leave the map untouched.
func (h *Handler) Submit(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	rows, err := rowsFrom(signals)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	typeName := signals.String(sigLayer)
	if typeName == "" {
		typeName = h.defaultLayer()
	}

	return h.Stream(func(sse humastar.SSE) {
		slot, err := h.svc.Filter.Submit(typeName, rows)
		switch {
		case errors.Is(err, cql.ErrEmptyFilter):
			sse.Error("No valid filters: pick a field and enter a value")
			return
		case err != nil:
			sse.Error(err.Error())
			return
		}
		sse.Success("Filter applied: " + slot.Expression)
		sse.Patch(h.renderSlot(), "#filter-slot")
	}), nil
}

func (h *Handler) Clear(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		h.svc.Filter.Clear()
		sse.Success("Filter cleared")
		sse.Patch(h.renderSlot(), "#filter-slot")
	}), nil
}

// rowsFrom decodes the form rows; the form always shows at least one.
func rowsFrom(signals humastar.Signals) ([]cql.Row, error) {
	var rows []cql.Row
	if err := signals.Decode(sigRows, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		rows = []cql.Row{cql.NewRow()}
	}
	return rows, nil
}

func (h *Handler) defaultLayer() string {
	for _, l := range api.FilterLayers(h.svc) {
		if l.Default {
			return l.TypeName
		}
	}
	return ""
}

func (h *Handler) renderLayerSelect(selected string) string {
	if selected == "" {
		selected = h.defaultLayer()
	}
	layers := api.FilterLayers(h.svc)
	options := make([]humastar.SelectOptionData, len(layers))
	for i, l := range layers {
		options[i] = humastar.SelectOptionData{Value: l.TypeName, Label: l.Label, Selected: l.TypeName == selected}
	}
	return h.Render("filter-layer", template.HTML(h.RenderSelect("Select a layer", options)))
}

func (h *Handler) renderRows(rows []cql.Row) string {
	fields := h.svc.Filter.Fields()
	var b strings.Builder
	for i, r := range rows {
		options := make([]humastar.SelectOptionData, len(fields))
		for j, f := range fields {
			options[j] = humastar.SelectOptionData{Value: f.Name, Label: f.Label, Selected: f.Name == r.Field}
		}
		b.WriteString(h.Render("filter-row", FilterRowData{
			Index:        i,
			FieldOptions: template.HTML(h.RenderSelect("Select a field", options)),
			Value:        r.Value,
			Connective:   r.Connective.String(),
		}))
	}
	return b.String()
}

func (h *Handler) renderSlot() string {
	slot := h.svc.Filter.Slot()
	data := SlotData{FilterSlot: slot}
	if slot.State == service.SlotLoading {
		if sess, ok := h.svc.Sessions.Get(slot.SessionID); ok {
			data.Loaded = sess.Loaded
		}
	}
	return h.Render("filter-slot", data)
}
